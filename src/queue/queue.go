// Package queue carries upload jobs between the submission API and the
// worker with at-least-once delivery and explicit acknowledgment.
//
// Three interchangeable backends share the contract: SQS (managed, durable,
// visibility-timeout redelivery), AMQP (broker-backed, unacked deliveries
// are requeued), and an in-process channel queue with no cross-process
// durability, suitable for a single instance in development only. The worker
// never varies by backend; each backend's delivery guarantee lives here.
package queue

import (
	"context"
	"encoding/json"
	"time"
)

// Job is an opaque envelope referencing one upload, plus the receipt state
// the backend needs to acknowledge it.
type Job struct {
	UploadID int64

	receipt string
	ack     func() // broker backends acknowledge through the delivery itself
}

// Queue is the enqueue/dequeue/acknowledge contract shared by all backends.
type Queue interface {
	// Enqueue publishes a job for the upload. Failures propagate to the
	// caller; the upload stays pending.
	Enqueue(ctx context.Context, uploadID int64) error

	// Dequeue blocks up to timeout and returns the next job, or (nil, nil)
	// when none arrived in time.
	Dequeue(ctx context.Context, timeout time.Duration) (*Job, error)

	// Ack removes a delivered job so it is not redelivered. Called on
	// success and on permanent failure alike.
	Ack(ctx context.Context, job *Job) error

	Close() error
}

type jobPayload struct {
	UploadID int64 `json:"upload_id"`
}

func encodeJobPayload(uploadID int64) ([]byte, error) {
	return json.Marshal(jobPayload{UploadID: uploadID})
}

func decodeJobPayload(data []byte) (int64, error) {
	var payload jobPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return 0, err
	}
	return payload.UploadID, nil
}
