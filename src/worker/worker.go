// Package worker polls the job queue and drives each upload job through
// extraction, scrubbing, generation, filtering and persistence.
//
// One worker instance processes one job at a time on a single goroutine;
// throughput comes from running more instances against the same queue and
// database, never from concurrency inside an instance.
package worker

import (
	"context"
	"errors"
	"time"

	"wordbridge/src/extraction"
	"wordbridge/src/log"
	"wordbridge/src/pii"
	"wordbridge/src/queue"
	"wordbridge/src/recommendation"
	"wordbridge/src/storage/postgres/profilectrl"
	"wordbridge/src/storage/postgres/uploadctrl"
)

// Config is the tuning surface of the pipeline.
type Config struct {
	PollInterval       time.Duration
	MinInitialWords    int // first-ever upload for a student
	MinUpdateWords     int // subsequent uploads
	MinRecommendations int // batch minimum after filtering
	BaselineWordLimit  int
	Retry              RetryPolicy

	// Stuck-pending recovery: uploads whose enqueue was lost get re-queued
	// on startup and periodically while the queue is idle.
	RecoveryInterval time.Duration
	StaleAge         time.Duration
	StaleBatchLimit  int

	// MaxJobs bounds the loop to a fixed number of processed jobs. Zero
	// means run until the context is canceled. Test use only.
	MaxJobs int
}

func DefaultConfig() Config {
	return Config{
		PollInterval:       3 * time.Second,
		MinInitialWords:    200,
		MinUpdateWords:     100,
		MinRecommendations: 5,
		BaselineWordLimit:  60,
		Retry:              DefaultRetryPolicy(),
		RecoveryInterval:   5 * time.Minute,
		StaleAge:           2 * time.Minute,
		StaleBatchLimit:    10,
	}
}

// UploadStore is the slice of the data-access collaborator the worker needs
// for upload rows.
type UploadStore interface {
	GetByID(ctx context.Context, id int64) (*uploadctrl.Upload, error)
	UpdateStatus(ctx context.Context, id int64, status uploadctrl.UploadStatus, processedAt *time.Time) error
	ListStalePending(ctx context.Context, olderThan time.Duration, limit int) ([]uploadctrl.Upload, error)
}

type ProfileStore interface {
	GetByStudentID(ctx context.Context, studentID int64) (*profilectrl.StudentProfile, error)
	LoadBaselineWords(ctx context.Context, gradeLevel, limit int) ([]string, error)
	UpdateVocabularyLevel(ctx context.Context, studentID int64, level int) error
	MarkAnalyzed(ctx context.Context, studentID int64, at time.Time) error
}

type RecommendationStore interface {
	ReplaceForUpload(ctx context.Context, studentID, uploadID int64, candidates []recommendation.Candidate) error
}

type ObjectStore interface {
	GetObjectByLocation(ctx context.Context, location string) ([]byte, error)
}

type Generator interface {
	Generate(ctx context.Context, sample string, subject recommendation.SubjectContext) ([]recommendation.Candidate, error)
}

type ContentFilter interface {
	Filter(candidates []recommendation.Candidate) []recommendation.Candidate
}

// JobResult reports the outcome of one processed job.
type JobResult struct {
	UploadID int64
	Success  bool
	Err      error
}

type Worker struct {
	queue           queue.Queue
	uploads         UploadStore
	profiles        ProfileStore
	recommendations RecommendationStore
	objects         ObjectStore
	generator       Generator
	filter          ContentFilter
	cfg             Config
}

func New(
	q queue.Queue,
	uploads UploadStore,
	profiles ProfileStore,
	recommendations RecommendationStore,
	objects ObjectStore,
	generator Generator,
	filter ContentFilter,
	cfg Config,
) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 3 * time.Second
	}
	if cfg.MinRecommendations <= 0 {
		cfg.MinRecommendations = 5
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryPolicy()
	}
	return &Worker{
		queue:           q,
		uploads:         uploads,
		profiles:        profiles,
		recommendations: recommendations,
		objects:         objects,
		generator:       generator,
		filter:          filter,
		cfg:             cfg,
	}
}

// Run polls the queue until ctx is canceled. A job in flight when the signal
// arrives is finished before the loop exits; cancellation is only observed
// between jobs.
func (w *Worker) Run(ctx context.Context) error {
	w.recoverStuckUploads(ctx)
	lastRecovery := time.Now()

	processed := 0
	for {
		select {
		case <-ctx.Done():
			log.Info("worker stopping", "processed", processed)
			return nil
		default:
		}

		job, err := w.queue.Dequeue(ctx, w.cfg.PollInterval)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error(err, "failed to dequeue job")
			continue
		}
		if job == nil {
			if w.cfg.RecoveryInterval > 0 && time.Since(lastRecovery) >= w.cfg.RecoveryInterval {
				w.recoverStuckUploads(ctx)
				lastRecovery = time.Now()
			}
			if w.cfg.MaxJobs > 0 && processed >= w.cfg.MaxJobs {
				return nil
			}
			continue
		}

		result := w.ProcessJob(ctx, job.UploadID)
		if result.Success {
			log.Info("processed upload", "upload_id", result.UploadID)
		} else {
			log.Info("upload processing failed", "upload_id", result.UploadID, "reason", result.Err.Error())
		}

		// Acknowledged on success and on permanent failure alike; a job that
		// can never succeed must not be redelivered forever.
		if err := w.queue.Ack(ctx, job); err != nil {
			log.Error(err, "failed to acknowledge job", "upload_id", job.UploadID)
		}

		processed++
		if w.cfg.MaxJobs > 0 && processed >= w.cfg.MaxJobs {
			return nil
		}
	}
}

// ProcessJob runs one upload through the pipeline state machine and returns
// the outcome. It never propagates processing errors out of the job loop.
func (w *Worker) ProcessJob(ctx context.Context, uploadID int64) JobResult {
	now := time.Now().UTC()

	if err := w.uploads.UpdateStatus(ctx, uploadID, uploadctrl.StatusProcessing, nil); err != nil {
		log.Error(err, "failed to mark upload processing", "upload_id", uploadID)
	}

	if err := w.processWithRetry(ctx, uploadID); err != nil {
		if statusErr := w.uploads.UpdateStatus(ctx, uploadID, uploadctrl.StatusFailed, &now); statusErr != nil {
			log.Error(statusErr, "failed to mark upload failed", "upload_id", uploadID)
		}
		return JobResult{UploadID: uploadID, Success: false, Err: err}
	}

	if err := w.uploads.UpdateStatus(ctx, uploadID, uploadctrl.StatusCompleted, &now); err != nil {
		log.Error(err, "failed to mark upload completed", "upload_id", uploadID)
	}
	return JobResult{UploadID: uploadID, Success: true}
}

// prepared carries the results of the one-shot stages (fetch, extract, word
// gate, scrub) into the retry loop, so retries restart at generation.
type prepared struct {
	upload   *uploadctrl.Upload
	profile  *profilectrl.StudentProfile
	cleaned  string
	baseline []string
}

func (w *Worker) processWithRetry(ctx context.Context, uploadID int64) error {
	var (
		prep           *prepared
		attempt        int
		unknownRetried bool
	)

	for {
		attempt++

		err := func() error {
			if prep == nil {
				p, err := w.prepare(ctx, uploadID)
				if err != nil {
					return err
				}
				prep = p
			}
			return w.generateAndPersist(ctx, prep)
		}()
		if err == nil {
			return nil
		}

		switch classify(err) {
		case classPermanent:
			var perm *PermanentError
			if errors.As(err, &perm) {
				return perm
			}
			return permanentf(err, "permanent failure processing upload %d", uploadID)
		case classRetryable:
			// fall through to the backoff below
		default:
			if unknownRetried {
				return permanentf(err, "unexpected error processing upload %d", uploadID)
			}
			unknownRetried = true
		}

		if attempt >= w.cfg.Retry.MaxAttempts {
			return permanentf(err, "upload %d failed after %d attempts", uploadID, attempt)
		}

		delay := w.cfg.Retry.Delay(attempt)
		log.Info("retrying upload job", "upload_id", uploadID, "attempt", attempt, "delay", delay.String(), "reason", err.Error())
		w.cfg.Retry.sleep(delay)
	}
}

func (w *Worker) prepare(ctx context.Context, uploadID int64) (*prepared, error) {
	upload, err := w.uploads.GetByID(ctx, uploadID)
	if err != nil {
		return nil, retryable(err)
	}
	if upload == nil {
		return nil, permanentf(nil, "upload %d was not found", uploadID)
	}

	profile, err := w.profiles.GetByStudentID(ctx, upload.StudentID)
	if err != nil {
		return nil, retryable(err)
	}
	if profile == nil {
		return nil, permanentf(nil, "student profile %d not found", upload.StudentID)
	}

	fileBytes, err := w.objects.GetObjectByLocation(ctx, upload.StorageURL)
	if err != nil {
		return nil, permanentf(err, "upload file missing for upload %d", uploadID)
	}

	text, err := extraction.Extract(fileBytes, upload.Filename)
	if err != nil {
		return nil, err
	}

	words := extraction.WordCount(text)
	required := w.cfg.MinInitialWords
	if profile.LastAnalyzedAt != nil {
		required = w.cfg.MinUpdateWords
	}
	if words < required {
		return nil, permanentf(nil, "upload %d has %d words; %d required", uploadID, words, required)
	}

	cleaned := pii.Scrub(text)

	var baseline []string
	if profile.GradeLevel > 0 {
		baseline, err = w.profiles.LoadBaselineWords(ctx, profile.GradeLevel, w.cfg.BaselineWordLimit)
		if err != nil {
			return nil, retryable(err)
		}
	}

	return &prepared{
		upload:   upload,
		profile:  profile,
		cleaned:  cleaned,
		baseline: baseline,
	}, nil
}

func (w *Worker) generateAndPersist(ctx context.Context, prep *prepared) error {
	subject := recommendation.SubjectContext{
		GradeLevel:    prep.profile.GradeLevel,
		BaselineWords: prep.baseline,
	}
	if prep.profile.VocabularyLevel != nil {
		subject.VocabularyLevel = *prep.profile.VocabularyLevel
	}

	generated, err := w.generator.Generate(ctx, prep.cleaned, subject)
	if err != nil {
		return err
	}

	filtered := w.filter.Filter(generated)
	if len(filtered) < w.cfg.MinRecommendations {
		// Regenerating with the same input is not expected to fix the
		// shortfall, so this is not retried.
		return permanentf(nil, "fewer than %d recommendations remained after filtering", w.cfg.MinRecommendations)
	}

	if err := w.recommendations.ReplaceForUpload(ctx, prep.upload.StudentID, prep.upload.ID, filtered); err != nil {
		return retryable(err)
	}

	previousLevel := 0
	if prep.profile.VocabularyLevel != nil {
		previousLevel = *prep.profile.VocabularyLevel
	}
	newLevel := recommendation.ComputeVocabularyLevel(
		prep.profile.GradeLevel,
		previousLevel,
		prep.profile.LastAnalyzedAt != nil,
		filtered,
	)
	if err := w.profiles.UpdateVocabularyLevel(ctx, prep.upload.StudentID, newLevel); err != nil {
		return retryable(err)
	}
	if err := w.profiles.MarkAnalyzed(ctx, prep.upload.StudentID, time.Now().UTC()); err != nil {
		return retryable(err)
	}
	return nil
}

// recoverStuckUploads re-enqueues uploads that sat in pending past the stale
// age, covering enqueues lost between record creation and queue publish.
func (w *Worker) recoverStuckUploads(ctx context.Context) {
	if w.cfg.StaleAge <= 0 || w.cfg.StaleBatchLimit <= 0 {
		return
	}

	stale, err := w.uploads.ListStalePending(ctx, w.cfg.StaleAge, w.cfg.StaleBatchLimit)
	if err != nil {
		log.Error(err, "failed to check for stuck pending uploads")
		return
	}
	if len(stale) == 0 {
		return
	}

	log.Info("re-enqueueing stuck pending uploads", "count", len(stale))
	for _, upload := range stale {
		if err := w.queue.Enqueue(ctx, upload.ID); err != nil {
			log.Error(err, "failed to re-enqueue stuck upload", "upload_id", upload.ID)
		}
	}
}
