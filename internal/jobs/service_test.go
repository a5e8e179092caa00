package jobs

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"findoc-backend/internal/archive"
	"findoc-backend/internal/documents"
	"findoc-backend/internal/pipeline"
	"findoc-backend/internal/queue"
)

const finalReport = "Report from: You are a Financial Risk Assessment Specialist."

type failingQueue struct{ err error }

func (q failingQueue) Send(ctx context.Context, msg queue.Message) error { return q.err }

type panickingExecutor struct{}

func (panickingExecutor) Execute(ctx context.Context, in pipeline.Input) (pipeline.Result, error) {
	panic("boom")
}

type ctxCheckingExecutor struct {
	sawErr error
}

func (e *ctxCheckingExecutor) Execute(ctx context.Context, in pipeline.Input) (pipeline.Result, error) {
	e.sawErr = ctx.Err()
	return pipeline.Result{State: pipeline.Completed, Output: "inline report"}, nil
}

// flakyRepo fails Complete a fixed number of times before delegating.
type flakyRepo struct {
	*MemoryRepo
	mu       sync.Mutex
	failures int
	calls    int
}

func (r *flakyRepo) Complete(ctx context.Context, jobID string, out Outcome) error {
	r.mu.Lock()
	r.calls++
	fail := r.calls <= r.failures
	r.mu.Unlock()
	if fail {
		return errors.New("connection reset")
	}
	return r.MemoryRepo.Complete(ctx, jobID, out)
}

type recordingArchive struct {
	mu      sync.Mutex
	records []archive.Record
	err     error
}

func (a *recordingArchive) Append(ctx context.Context, rec archive.Record) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, rec)
	return a.err
}

func TestSubmitThenPollIsPending(t *testing.T) {
	env := newTestEnv(t, "Revenue grew 12% year over year.")
	doc := env.acceptPDF(t)

	job, err := env.svc.Submit(context.Background(), "   ", doc)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if job.Query != documents.DefaultQuery {
		t.Fatalf("expected default query, got %q", job.Query)
	}

	polled, err := env.svc.Poll(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if polled.Status != StatusPending {
		t.Fatalf("expected PENDING, got %s", polled.Status)
	}
	if polled.Result != "" {
		t.Fatalf("expected no result yet, got %q", polled.Result)
	}

	msg := env.nextMessage(t)
	if msg.JobID != job.ID {
		t.Fatalf("expected message for %s, got %s", job.ID, msg.JobID)
	}
	if msg.Version != queue.MessageVersion {
		t.Fatalf("expected version %d, got %d", queue.MessageVersion, msg.Version)
	}
	if msg.DocumentKey != job.Document.StorageKey || msg.FileName != job.Document.FileName {
		t.Fatalf("expected document reference on message, got %+v", msg)
	}
}

func TestRequeueResendsPendingJobs(t *testing.T) {
	env := newTestEnv(t, "text")
	first, err := env.svc.Submit(context.Background(), "q", env.acceptPDF(t))
	if err != nil {
		t.Fatalf("submit first: %v", err)
	}
	second, err := env.svc.Submit(context.Background(), "q", env.acceptPDF(t))
	if err != nil {
		t.Fatalf("submit second: %v", err)
	}
	env.nextMessage(t)
	env.nextMessage(t)
	if _, err := env.repo.Claim(context.Background(), second.ID, "other", time.Now()); err != nil {
		t.Fatalf("claim: %v", err)
	}

	n, err := env.svc.Requeue(context.Background(), 0)
	if err != nil {
		t.Fatalf("requeue: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 requeued, got %d", n)
	}
	msg := env.nextMessage(t)
	if msg.JobID != first.ID || msg.DocumentKey != first.Document.StorageKey {
		t.Fatalf("unexpected message %+v", msg)
	}
}

func TestRequeueStopsWhenBrokerIsFull(t *testing.T) {
	env := newTestEnv(t, "text")
	for i := 0; i < 16; i++ {
		if _, err := env.svc.Submit(context.Background(), "q", env.acceptPDF(t)); err != nil {
			t.Fatalf("submit %d: %v", i, err)
		}
	}
	n, err := env.svc.Requeue(context.Background(), 0)
	if err != nil {
		t.Fatalf("requeue: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected nothing sent to a full broker, got %d", n)
	}
}

func TestPollUnknownJob(t *testing.T) {
	env := newTestEnv(t, "text")
	if _, err := env.svc.Poll(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := env.svc.Poll(context.Background(), " "); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for blank id, got %v", err)
	}
}

func TestSubmitQueueFailureRemovesJobAndDocument(t *testing.T) {
	env := newTestEnv(t, "text")
	env.svc.Queue = failingQueue{err: errors.New("broker down")}
	doc := env.acceptPDF(t)

	_, err := env.svc.Submit(context.Background(), "q", doc)
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if env.jobCount() != 0 {
		t.Fatalf("expected no job records, got %d", env.jobCount())
	}
	if env.documentExists(t, doc) {
		t.Fatalf("expected document to be released")
	}
}

func TestSubmitWithoutQueue(t *testing.T) {
	env := newTestEnv(t, "text")
	env.svc.Queue = nil
	doc := env.acceptPDF(t)

	if _, err := env.svc.Submit(context.Background(), "q", doc); !errors.Is(err, ErrJobQueueNotConfigured) {
		t.Fatalf("expected ErrJobQueueNotConfigured, got %v", err)
	}
	if env.documentExists(t, doc) {
		t.Fatalf("expected document to be released")
	}
}

func TestProcessSuccessStoresFinalOutputAndReleasesDocument(t *testing.T) {
	env := newTestEnv(t, "Revenue grew 12% year over year.")
	rec := &recordingArchive{}
	env.svc.Archive = rec
	doc := env.acceptPDF(t)

	job, err := env.svc.Submit(context.Background(), "Is this company healthy?", doc)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := env.svc.Process(context.Background(), env.nextMessage(t).JobID); err != nil {
		t.Fatalf("process: %v", err)
	}

	got, err := env.svc.Poll(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if got.Status != StatusSuccess {
		t.Fatalf("expected SUCCESS, got %s (%s)", got.Status, got.ErrorMessage)
	}
	if got.Result != finalReport {
		t.Fatalf("expected final stage output, got %q", got.Result)
	}
	if got.CompletedAt == nil || got.ClaimedAt == nil {
		t.Fatalf("expected claimed_at and completed_at to be set")
	}
	if got.WorkerID != "test-worker" {
		t.Fatalf("expected worker id to be recorded, got %q", got.WorkerID)
	}
	if env.documentExists(t, doc) {
		t.Fatalf("expected document to be released")
	}
	if env.calls.Load() != 4 {
		t.Fatalf("expected one model call per stage, got %d", env.calls.Load())
	}
	if len(rec.records) != 1 || rec.records[0].Status != StatusSuccess || rec.records[0].AnalysisOutput != finalReport {
		t.Fatalf("unexpected archive records: %+v", rec.records)
	}
}

func TestProcessEmptyDocumentFailsAtVerification(t *testing.T) {
	env := newTestEnv(t, "   ")
	doc := env.acceptPDF(t)

	job, err := env.svc.Submit(context.Background(), "q", doc)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := env.svc.Process(context.Background(), job.ID); err != nil {
		t.Fatalf("process: %v", err)
	}

	got, _ := env.svc.Poll(context.Background(), job.ID)
	if got.Status != StatusFailure {
		t.Fatalf("expected FAILURE, got %s", got.Status)
	}
	if got.FailedStage != pipeline.StageVerification {
		t.Fatalf("expected failure at %s, got %q", pipeline.StageVerification, got.FailedStage)
	}
	if got.ErrorCode != ErrorCodeInput {
		t.Fatalf("expected %s, got %s", ErrorCodeInput, got.ErrorCode)
	}
	if !strings.Contains(got.ErrorMessage, "empty content") {
		t.Fatalf("expected empty content message, got %q", got.ErrorMessage)
	}
	if got.Result != "" {
		t.Fatalf("expected no result on failure, got %q", got.Result)
	}
	if env.calls.Load() != 0 {
		t.Fatalf("expected no model calls, got %d", env.calls.Load())
	}
	if env.documentExists(t, doc) {
		t.Fatalf("expected document to be released")
	}
}

func TestProcessRedeliveryIsSkipped(t *testing.T) {
	env := newTestEnv(t, "text")
	doc := env.acceptPDF(t)
	job, err := env.svc.Submit(context.Background(), "q", doc)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if err := env.svc.Process(context.Background(), job.ID); err != nil {
		t.Fatalf("first process: %v", err)
	}
	calls := env.calls.Load()
	if err := env.svc.Process(context.Background(), job.ID); err != nil {
		t.Fatalf("second process: %v", err)
	}
	if env.calls.Load() != calls {
		t.Fatalf("expected redelivery to be skipped, model calls went %d -> %d", calls, env.calls.Load())
	}
	if err := env.svc.Process(context.Background(), "unknown"); err != nil {
		t.Fatalf("expected unknown job to be skipped, got %v", err)
	}
}

func TestProcessPanicBecomesFailure(t *testing.T) {
	env := newTestEnv(t, "text")
	env.svc.Pipeline = panickingExecutor{}
	doc := env.acceptPDF(t)
	job, err := env.svc.Submit(context.Background(), "q", doc)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if err := env.svc.Process(context.Background(), job.ID); err != nil {
		t.Fatalf("process: %v", err)
	}
	got, _ := env.svc.Poll(context.Background(), job.ID)
	if got.Status != StatusFailure || got.ErrorCode != ErrorCodeInternal {
		t.Fatalf("expected internal FAILURE, got %s %s", got.Status, got.ErrorCode)
	}
	if !strings.Contains(got.ErrorMessage, "boom") {
		t.Fatalf("expected panic value in message, got %q", got.ErrorMessage)
	}
	if env.documentExists(t, doc) {
		t.Fatalf("expected document to be released")
	}
}

func TestProcessRetriesTerminalWrite(t *testing.T) {
	env := newTestEnv(t, "text")
	repo := &flakyRepo{MemoryRepo: env.repo, failures: 2}
	env.svc.Repo = repo
	doc := env.acceptPDF(t)
	job, err := env.svc.Submit(context.Background(), "q", doc)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if err := env.svc.Process(context.Background(), job.ID); err != nil {
		t.Fatalf("process: %v", err)
	}
	if repo.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", repo.calls)
	}
	got, _ := env.svc.Poll(context.Background(), job.ID)
	if got.Status != StatusSuccess {
		t.Fatalf("expected SUCCESS, got %s", got.Status)
	}
}

func TestProcessPersistenceFailure(t *testing.T) {
	env := newTestEnv(t, "text")
	env.svc.Repo = &flakyRepo{MemoryRepo: env.repo, failures: 100}
	doc := env.acceptPDF(t)
	job, err := env.svc.Submit(context.Background(), "q", doc)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	err = env.svc.Process(context.Background(), job.ID)
	var pe *PersistenceError
	if !errors.As(err, &pe) || pe.JobID != job.ID {
		t.Fatalf("expected PersistenceError for %s, got %v", job.ID, err)
	}
	if env.documentExists(t, doc) {
		t.Fatalf("expected document to be released even when the result is lost")
	}
}

func TestProcessArchiveFailureDoesNotFailJob(t *testing.T) {
	env := newTestEnv(t, "text")
	env.svc.Archive = &recordingArchive{err: errors.New("bucket missing")}
	doc := env.acceptPDF(t)
	job, err := env.svc.Submit(context.Background(), "q", doc)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if err := env.svc.Process(context.Background(), job.ID); err != nil {
		t.Fatalf("process: %v", err)
	}
	got, _ := env.svc.Poll(context.Background(), job.ID)
	if got.Status != StatusSuccess {
		t.Fatalf("expected SUCCESS, got %s", got.Status)
	}
}

func TestRunSyncOutlivesCallerCancellation(t *testing.T) {
	env := newTestEnv(t, "text")
	exec := &ctxCheckingExecutor{}
	env.svc.Pipeline = exec
	doc := env.acceptPDF(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out, err := env.svc.RunSync(ctx, "q", doc)
	if err != nil {
		t.Fatalf("run sync: %v", err)
	}
	if out != "inline report" {
		t.Fatalf("unexpected output %q", out)
	}
	if exec.sawErr != nil {
		t.Fatalf("expected pipeline context to be live, got %v", exec.sawErr)
	}
	if env.documentExists(t, doc) {
		t.Fatalf("expected document to be released")
	}
	if env.jobCount() != 0 {
		t.Fatalf("expected sync run to create no job, got %d", env.jobCount())
	}
}

func TestRunSyncReturnsStageError(t *testing.T) {
	env := newTestEnv(t, "")
	doc := env.acceptPDF(t)

	_, err := env.svc.RunSync(context.Background(), "q", doc)
	se, ok := pipeline.AsStageError(err)
	if !ok || se.Kind != pipeline.KindInput {
		t.Fatalf("expected input StageError, got %v", err)
	}
}

func TestSanitizeError(t *testing.T) {
	msg := sanitizeError(errors.New("line one\nline two\r"))
	if msg != "line one line two" {
		t.Fatalf("unexpected message %q", msg)
	}
	long := sanitizeError(errors.New(strings.Repeat("x", 5000)))
	if len(long) > maxErrorMessageLen+3 {
		t.Fatalf("expected truncation, got %d chars", len(long))
	}
}

func TestOutcomeOfStageError(t *testing.T) {
	err := &pipeline.StageError{Stage: pipeline.StageRisk, Index: 3, Kind: pipeline.KindTimeout, Err: context.DeadlineExceeded}
	out := outcomeOf(pipeline.Result{State: pipeline.Failed}, err, time.Unix(0, 0))
	if out.Status != StatusFailure || out.FailedStage != pipeline.StageRisk || out.ErrorCode != "STAGE_TIMEOUT" {
		t.Fatalf("unexpected outcome %+v", out)
	}
}
