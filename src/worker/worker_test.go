package worker

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"wordbridge/src/openai"
	"wordbridge/src/pii"
	"wordbridge/src/queue"
	"wordbridge/src/recommendation"
	"wordbridge/src/storage/postgres/profilectrl"
	"wordbridge/src/storage/postgres/uploadctrl"
)

type fakeQueue struct {
	jobs     []*queue.Job
	enqueued []int64
	acked    []int64
}

func (q *fakeQueue) Enqueue(ctx context.Context, uploadID int64) error {
	q.enqueued = append(q.enqueued, uploadID)
	q.jobs = append(q.jobs, &queue.Job{UploadID: uploadID})
	return nil
}

func (q *fakeQueue) Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error) {
	if len(q.jobs) == 0 {
		return nil, nil
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	return job, nil
}

func (q *fakeQueue) Ack(ctx context.Context, job *queue.Job) error {
	q.acked = append(q.acked, job.UploadID)
	return nil
}

func (q *fakeQueue) Close() error { return nil }

type statusChange struct {
	status      uploadctrl.UploadStatus
	processedAt bool
}

type fakeUploads struct {
	uploads map[int64]*uploadctrl.Upload
	stale   []uploadctrl.Upload
	getErrs []error // consumed one per GetByID call

	changes []statusChange
}

func (s *fakeUploads) GetByID(ctx context.Context, id int64) (*uploadctrl.Upload, error) {
	if len(s.getErrs) > 0 {
		err := s.getErrs[0]
		s.getErrs = s.getErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return s.uploads[id], nil
}

func (s *fakeUploads) UpdateStatus(ctx context.Context, id int64, status uploadctrl.UploadStatus, processedAt *time.Time) error {
	s.changes = append(s.changes, statusChange{status: status, processedAt: processedAt != nil})
	return nil
}

func (s *fakeUploads) ListStalePending(ctx context.Context, olderThan time.Duration, limit int) ([]uploadctrl.Upload, error) {
	return s.stale, nil
}

func (s *fakeUploads) lastStatus() uploadctrl.UploadStatus {
	if len(s.changes) == 0 {
		return ""
	}
	return s.changes[len(s.changes)-1].status
}

type fakeProfiles struct {
	profiles map[int64]*profilectrl.StudentProfile
	baseline []string

	levels   []int
	analyzed []time.Time
}

func (s *fakeProfiles) GetByStudentID(ctx context.Context, studentID int64) (*profilectrl.StudentProfile, error) {
	return s.profiles[studentID], nil
}

func (s *fakeProfiles) LoadBaselineWords(ctx context.Context, gradeLevel, limit int) ([]string, error) {
	return s.baseline, nil
}

func (s *fakeProfiles) UpdateVocabularyLevel(ctx context.Context, studentID int64, level int) error {
	s.levels = append(s.levels, level)
	return nil
}

func (s *fakeProfiles) MarkAnalyzed(ctx context.Context, studentID int64, at time.Time) error {
	s.analyzed = append(s.analyzed, at)
	return nil
}

type fakeRecommendations struct {
	errs   []error // consumed one per call
	stored map[int64][]recommendation.Candidate
}

func (s *fakeRecommendations) ReplaceForUpload(ctx context.Context, studentID, uploadID int64, candidates []recommendation.Candidate) error {
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return err
		}
	}
	if s.stored == nil {
		s.stored = make(map[int64][]recommendation.Candidate)
	}
	s.stored[uploadID] = candidates
	return nil
}

type fakeObjects struct {
	objects map[string][]byte
}

func (s *fakeObjects) GetObjectByLocation(ctx context.Context, location string) ([]byte, error) {
	data, ok := s.objects[location]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

type fakeGenerator struct {
	errs []error // consumed one per call; nil entries succeed
	out  []recommendation.Candidate

	calls   int
	samples []string
}

func (g *fakeGenerator) Generate(ctx context.Context, sample string, subject recommendation.SubjectContext) ([]recommendation.Candidate, error) {
	g.calls++
	g.samples = append(g.samples, sample)
	if len(g.errs) > 0 {
		err := g.errs[0]
		g.errs = g.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return g.out, nil
}

// passFilter passes candidates through, optionally truncating to keep.
type passFilter struct {
	keep int
}

func (f passFilter) Filter(candidates []recommendation.Candidate) []recommendation.Candidate {
	if f.keep > 0 && len(candidates) > f.keep {
		return candidates[:f.keep]
	}
	return candidates
}

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("steady practice builds strong writing ", (n+4)/5))
}

func batch(n, difficulty int) []recommendation.Candidate {
	out := make([]recommendation.Candidate, n)
	for i := range out {
		out[i] = recommendation.Candidate{
			Word:            "word",
			Definition:      "definition",
			DifficultyScore: difficulty,
			Status:          recommendation.StatusPending,
		}
	}
	return out
}

type fixture struct {
	queue     *fakeQueue
	uploads   *fakeUploads
	profiles  *fakeProfiles
	recs      *fakeRecommendations
	objects   *fakeObjects
	generator *fakeGenerator
	filter    passFilter

	sleeps int
}

func newFixture() *fixture {
	return &fixture{
		queue: &fakeQueue{},
		uploads: &fakeUploads{
			uploads: map[int64]*uploadctrl.Upload{
				100: {ID: 100, StudentID: 1, Filename: "essay.txt", StorageURL: "uploads/essay.txt", Status: uploadctrl.StatusPending},
			},
		},
		profiles: &fakeProfiles{
			profiles: map[int64]*profilectrl.StudentProfile{
				1: {StudentID: 1, GradeLevel: 7},
			},
			baseline: []string{"apple", "banana"},
		},
		recs:      &fakeRecommendations{},
		objects:   &fakeObjects{objects: map[string][]byte{"uploads/essay.txt": []byte(words(250))}},
		generator: &fakeGenerator{out: batch(5, 7)},
	}
}

func (f *fixture) worker() *Worker {
	cfg := DefaultConfig()
	cfg.Retry = RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		CapDelay:    time.Millisecond,
		Sleep:       func(time.Duration) { f.sleeps++ },
	}
	return New(f.queue, f.uploads, f.profiles, f.recs, f.objects, f.generator, f.filter, cfg)
}

func TestProcessJobSuccess(t *testing.T) {
	f := newFixture()
	w := f.worker()

	result := w.ProcessJob(context.Background(), 100)
	if !result.Success {
		t.Fatalf("ProcessJob() failed: %v", result.Err)
	}

	if f.uploads.lastStatus() != uploadctrl.StatusCompleted {
		t.Errorf("final status = %q, want completed", f.uploads.lastStatus())
	}
	if first := f.uploads.changes[0]; first.status != uploadctrl.StatusProcessing || first.processedAt {
		t.Errorf("first transition = %+v, want processing without processed_at", first)
	}
	if last := f.uploads.changes[len(f.uploads.changes)-1]; !last.processedAt {
		t.Error("completed transition did not set processed_at")
	}

	if len(f.recs.stored[100]) != 5 {
		t.Errorf("stored %d recommendations, want 5", len(f.recs.stored[100]))
	}
	// grade 7 baseline 550, difficulty 7 batch shifts +80
	if len(f.profiles.levels) != 1 || f.profiles.levels[0] != 630 {
		t.Errorf("vocabulary levels = %v, want [630]", f.profiles.levels)
	}
	if len(f.profiles.analyzed) != 1 {
		t.Errorf("profile analyzed %d times, want 1", len(f.profiles.analyzed))
	}
}

func TestProcessJobScrubsBeforeGeneration(t *testing.T) {
	f := newFixture()
	text := "my email is student@example.com and here is my essay " + words(250)
	f.objects.objects["uploads/essay.txt"] = []byte(text)
	w := f.worker()

	result := w.ProcessJob(context.Background(), 100)
	if !result.Success {
		t.Fatalf("ProcessJob() failed: %v", result.Err)
	}

	sample := f.generator.samples[0]
	if strings.Contains(sample, "student@example.com") {
		t.Error("generator received an unscrubbed email address")
	}
	if !strings.Contains(sample, pii.RedactedEmail) {
		t.Error("generator sample is missing the redaction token")
	}
}

func TestProcessJobMissingUpload(t *testing.T) {
	f := newFixture()
	delete(f.uploads.uploads, 100)
	w := f.worker()

	result := w.ProcessJob(context.Background(), 100)
	if result.Success {
		t.Fatal("ProcessJob() succeeded for a missing upload")
	}
	var perm *PermanentError
	if !errors.As(result.Err, &perm) {
		t.Errorf("error = %v, want PermanentError", result.Err)
	}
	if f.generator.calls != 0 {
		t.Errorf("generator called %d times, want 0", f.generator.calls)
	}
	if f.uploads.lastStatus() != uploadctrl.StatusFailed {
		t.Errorf("final status = %q, want failed", f.uploads.lastStatus())
	}
	if last := f.uploads.changes[len(f.uploads.changes)-1]; !last.processedAt {
		t.Error("failed transition did not set processed_at")
	}
}

func TestProcessJobMissingProfile(t *testing.T) {
	f := newFixture()
	delete(f.profiles.profiles, 1)
	w := f.worker()

	result := w.ProcessJob(context.Background(), 100)
	if result.Success {
		t.Fatal("ProcessJob() succeeded without a student profile")
	}
	if f.generator.calls != 0 {
		t.Errorf("generator called %d times, want 0", f.generator.calls)
	}
}

func TestProcessJobTooFewWordsInitial(t *testing.T) {
	f := newFixture()
	f.objects.objects["uploads/essay.txt"] = []byte(words(50))
	w := f.worker()

	result := w.ProcessJob(context.Background(), 100)
	if result.Success {
		t.Fatal("ProcessJob() succeeded below the initial word minimum")
	}
	if f.generator.calls != 0 {
		t.Errorf("generator called %d times, want 0", f.generator.calls)
	}
	if f.sleeps != 0 {
		t.Errorf("slept %d times, want no retries for the word gate", f.sleeps)
	}
	if f.uploads.lastStatus() != uploadctrl.StatusFailed {
		t.Errorf("final status = %q, want failed", f.uploads.lastStatus())
	}
}

func TestProcessJobUpdateWordThreshold(t *testing.T) {
	f := newFixture()
	analyzedAt := time.Now().Add(-24 * time.Hour)
	level := 600
	f.profiles.profiles[1].LastAnalyzedAt = &analyzedAt
	f.profiles.profiles[1].VocabularyLevel = &level
	f.objects.objects["uploads/essay.txt"] = []byte(words(150))
	w := f.worker()

	result := w.ProcessJob(context.Background(), 100)
	if !result.Success {
		t.Fatalf("ProcessJob() failed: %v", result.Err)
	}
	// re-analysis blends: 0.7*600 + 0.3*630
	if len(f.profiles.levels) != 1 || f.profiles.levels[0] != 609 {
		t.Errorf("vocabulary levels = %v, want [609]", f.profiles.levels)
	}
}

func TestProcessJobUnsupportedFileType(t *testing.T) {
	f := newFixture()
	f.uploads.uploads[100].Filename = "essay.exe"
	f.objects.objects["uploads/essay.exe"] = []byte("binary")
	f.uploads.uploads[100].StorageURL = "uploads/essay.exe"
	w := f.worker()

	result := w.ProcessJob(context.Background(), 100)
	if result.Success {
		t.Fatal("ProcessJob() succeeded for an unsupported file type")
	}
	if f.sleeps != 0 {
		t.Errorf("slept %d times, want no retries for unsupported types", f.sleeps)
	}
}

func TestProcessJobRetriesTransientGeneration(t *testing.T) {
	f := newFixture()
	f.generator.errs = []error{
		&openai.ResponseError{Message: "status 429"},
		&openai.ResponseError{Message: "status 500"},
		nil,
	}
	w := f.worker()

	result := w.ProcessJob(context.Background(), 100)
	if !result.Success {
		t.Fatalf("ProcessJob() failed: %v", result.Err)
	}
	if f.generator.calls != 3 {
		t.Errorf("generator called %d times, want 3", f.generator.calls)
	}
	if f.sleeps != 2 {
		t.Errorf("slept %d times, want 2", f.sleeps)
	}
	if f.uploads.lastStatus() != uploadctrl.StatusCompleted {
		t.Errorf("final status = %q, want completed", f.uploads.lastStatus())
	}
}

func TestProcessJobRetriesExhausted(t *testing.T) {
	f := newFixture()
	f.generator.errs = []error{
		&openai.ResponseError{Message: "down"},
		&openai.ResponseError{Message: "down"},
		&openai.ResponseError{Message: "down"},
	}
	w := f.worker()

	result := w.ProcessJob(context.Background(), 100)
	if result.Success {
		t.Fatal("ProcessJob() succeeded after exhausting retries")
	}
	if f.generator.calls != 3 {
		t.Errorf("generator called %d times, want 3", f.generator.calls)
	}
	if f.uploads.lastStatus() != uploadctrl.StatusFailed {
		t.Errorf("final status = %q, want failed", f.uploads.lastStatus())
	}
}

func TestProcessJobParseErrorIsPermanent(t *testing.T) {
	f := newFixture()
	f.generator.errs = []error{&recommendation.ParseError{Message: "model returned prose"}}
	w := f.worker()

	result := w.ProcessJob(context.Background(), 100)
	if result.Success {
		t.Fatal("ProcessJob() succeeded on a parse error")
	}
	if f.generator.calls != 1 {
		t.Errorf("generator called %d times, want 1", f.generator.calls)
	}
	if f.sleeps != 0 {
		t.Errorf("slept %d times, want 0", f.sleeps)
	}
}

func TestProcessJobMissingAPIKeyIsPermanent(t *testing.T) {
	f := newFixture()
	f.generator.errs = []error{&openai.ConfigurationError{Message: "api key is not configured"}}
	w := f.worker()

	result := w.ProcessJob(context.Background(), 100)
	if result.Success {
		t.Fatal("ProcessJob() succeeded without model credentials")
	}
	if f.generator.calls != 1 {
		t.Errorf("generator called %d times, want 1", f.generator.calls)
	}
}

func TestProcessJobUnknownErrorRetriedOnce(t *testing.T) {
	f := newFixture()
	f.generator.errs = []error{errors.New("boom"), errors.New("boom again")}
	w := f.worker()

	result := w.ProcessJob(context.Background(), 100)
	if result.Success {
		t.Fatal("ProcessJob() succeeded on repeated unclassified errors")
	}
	if f.generator.calls != 2 {
		t.Errorf("generator called %d times, want exactly one retry", f.generator.calls)
	}
}

func TestProcessJobFilterShortfall(t *testing.T) {
	f := newFixture()
	f.filter = passFilter{keep: 3}
	w := f.worker()

	result := w.ProcessJob(context.Background(), 100)
	if result.Success {
		t.Fatal("ProcessJob() succeeded with too few filtered recommendations")
	}
	if f.generator.calls != 1 {
		t.Errorf("generator called %d times, want 1", f.generator.calls)
	}
	if len(f.recs.stored) != 0 {
		t.Errorf("stored %v, want nothing persisted on shortfall", f.recs.stored)
	}
}

func TestProcessJobRetriesTransientRead(t *testing.T) {
	f := newFixture()
	f.uploads.getErrs = []error{errors.New("connection reset")}
	w := f.worker()

	result := w.ProcessJob(context.Background(), 100)
	if !result.Success {
		t.Fatalf("ProcessJob() failed: %v", result.Err)
	}
	if f.sleeps != 1 {
		t.Errorf("slept %d times, want 1", f.sleeps)
	}
}

func TestProcessJobRetriesTransientPersist(t *testing.T) {
	f := newFixture()
	f.recs.errs = []error{errors.New("deadlock detected")}
	w := f.worker()

	result := w.ProcessJob(context.Background(), 100)
	if !result.Success {
		t.Fatalf("ProcessJob() failed: %v", result.Err)
	}
	// prepare ran once; only generation and persistence were re-attempted
	if f.generator.calls != 2 {
		t.Errorf("generator called %d times, want 2", f.generator.calls)
	}
	if len(f.recs.stored[100]) != 5 {
		t.Errorf("stored %d recommendations, want 5", len(f.recs.stored[100]))
	}
}

func TestProcessJobIdempotentRedelivery(t *testing.T) {
	f := newFixture()
	w := f.worker()

	ctx := context.Background()
	if result := w.ProcessJob(ctx, 100); !result.Success {
		t.Fatalf("first ProcessJob() failed: %v", result.Err)
	}
	if result := w.ProcessJob(ctx, 100); !result.Success {
		t.Fatalf("second ProcessJob() failed: %v", result.Err)
	}

	// the replace semantics keep a redelivered job from duplicating rows
	if len(f.recs.stored[100]) != 5 {
		t.Errorf("stored %d recommendations after redelivery, want 5", len(f.recs.stored[100]))
	}
}

func TestRunProcessesAndAcks(t *testing.T) {
	f := newFixture()
	f.uploads.uploads[101] = &uploadctrl.Upload{ID: 101, StudentID: 9, Filename: "lost.txt", StorageURL: "uploads/lost.txt", Status: uploadctrl.StatusPending}
	f.queue.jobs = []*queue.Job{{UploadID: 100}, {UploadID: 101}}

	w := f.worker()
	w.cfg.MaxJobs = 2
	w.cfg.PollInterval = time.Millisecond

	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	// upload 101 has no profile or file, so it fails permanently, but both
	// jobs must be acknowledged exactly once
	if len(f.queue.acked) != 2 {
		t.Fatalf("acked %d jobs, want 2", len(f.queue.acked))
	}
	if f.queue.acked[0] != 100 || f.queue.acked[1] != 101 {
		t.Errorf("acked = %v, want [100 101]", f.queue.acked)
	}
}

func TestRunRecoversStuckUploads(t *testing.T) {
	f := newFixture()
	f.uploads.stale = []uploadctrl.Upload{{ID: 100, Status: uploadctrl.StatusPending}}

	w := f.worker()
	w.cfg.MaxJobs = 1
	w.cfg.PollInterval = time.Millisecond

	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(f.queue.enqueued) != 1 || f.queue.enqueued[0] != 100 {
		t.Errorf("enqueued = %v, want the stale upload requeued", f.queue.enqueued)
	}
	if f.uploads.lastStatus() != uploadctrl.StatusCompleted {
		t.Errorf("final status = %q, want completed", f.uploads.lastStatus())
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	f := newFixture()
	w := f.worker()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not stop after cancellation")
	}
}
