package worker

import (
	"math"
	"math/rand"
	"time"
)

// RetryPolicy controls the backoff loop around the retryable pipeline steps.
// The delay grows as BaseDelay^attempt, capped at CapDelay, with optional
// 80%-120% jitter. The worker sleeps synchronously between attempts.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	CapDelay    time.Duration
	Jitter      bool

	// Sleep is a test seam; nil means time.Sleep.
	Sleep func(time.Duration)
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   1500 * time.Millisecond,
		CapDelay:    30 * time.Second,
		Jitter:      true,
	}
}

// Delay returns the backoff before the next try after the given attempt
// number (1-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	base := p.BaseDelay.Seconds()
	if base <= 0 {
		return 0
	}

	delay := time.Duration(math.Pow(base, float64(attempt)) * float64(time.Second))
	if p.CapDelay > 0 && delay > p.CapDelay {
		delay = p.CapDelay
	}
	if p.Jitter {
		delay = time.Duration(float64(delay) * (0.8 + 0.4*rand.Float64()))
	}
	return delay
}

func (p RetryPolicy) sleep(d time.Duration) {
	if p.Sleep != nil {
		p.Sleep(d)
		return
	}
	time.Sleep(d)
}
