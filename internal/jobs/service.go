// Package jobs runs the document pipeline as tracked, pollable units of work.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"findoc-backend/internal/archive"
	"findoc-backend/internal/cleanup"
	"findoc-backend/internal/documents"
	"findoc-backend/internal/pipeline"
	"findoc-backend/internal/queue"
	"findoc-backend/internal/shared/metrics"
	"findoc-backend/internal/shared/telemetry"
	"findoc-backend/internal/shared/util"
)

const (
	maxErrorMessageLen     = 2000
	defaultTerminalRetries = 3
	terminalRetryBaseDelay = 200 * time.Millisecond
)

// Executor runs the pipeline for one document.
type Executor interface {
	Execute(ctx context.Context, in pipeline.Input) (pipeline.Result, error)
}

// TextSource loads a stored document's text.
type TextSource interface {
	Text(ctx context.Context, h documents.Handle) (string, error)
}

// Service submits, processes and reports jobs.
type Service struct {
	Repo      Repo
	Queue     queue.Client
	Pipeline  Executor
	Documents TextSource
	Cleanup   *cleanup.Coordinator
	// Archive receives terminal results. Optional.
	Archive  archive.Store
	WorkerID string
	Now      func() time.Time
	// TerminalRetries bounds attempts to store a finished run.
	TerminalRetries int
	RetryDelay      time.Duration
}

// Submit records a PENDING job and hands it to the broker. The document belongs to the job from
// here on; if the job cannot be queued the record is removed and the document released.
func (s *Service) Submit(ctx context.Context, query string, doc documents.Handle) (Job, error) {
	job := Job{
		ID:        uuid.NewString(),
		Status:    StatusPending,
		Query:     documents.EffectiveQuery(query),
		Document:  doc,
		RequestID: RequestIDFrom(ctx),
		CreatedAt: s.now(),
	}

	if s.Queue == nil {
		s.releaseUnowned(ctx, doc)
		return Job{}, ErrJobQueueNotConfigured
	}
	if err := s.Repo.Create(ctx, job); err != nil {
		s.releaseUnowned(ctx, doc)
		return Job{}, fmt.Errorf("create job: %w", err)
	}

	msg := queue.Message{
		JobID:       job.ID,
		RequestID:   job.RequestID,
		DocumentKey: doc.StorageKey,
		FileName:    doc.FileName,
		EnqueuedAt:  job.CreatedAt,
		Version:     queue.MessageVersion,
	}
	if err := s.Queue.Send(ctx, msg); err != nil {
		metrics.IncEnqueueFailed()
		detached := context.WithoutCancel(ctx)
		if delErr := s.Repo.Delete(detached, job.ID); delErr != nil {
			fields := job.logFields()
			fields["error"] = delErr
			telemetry.Error("job.delete_failed", fields)
		}
		s.releaseUnowned(detached, doc)
		fields := job.logFields()
		fields["error"] = err
		telemetry.Error("job.enqueue_failed", fields)
		return Job{}, &TransportError{JobID: job.ID, Err: err}
	}

	metrics.IncJobSubmitted()
	fields := job.logFields()
	fields["status_transition"] = "->" + StatusPending
	telemetry.Info("job.status", fields)
	return job, nil
}

// Requeue sends a message for every PENDING job in the repo, oldest first, and reports how many
// were sent. It is meant for startup with a broker that loses messages on restart. A full broker
// stops the pass; the janitor expires whatever is left.
func (s *Service) Requeue(ctx context.Context, limit int) (int, error) {
	if s.Queue == nil {
		return 0, ErrJobQueueNotConfigured
	}
	pending, err := s.Repo.ListPending(ctx, s.now().Add(time.Nanosecond), limit)
	if err != nil {
		return 0, fmt.Errorf("list pending jobs: %w", err)
	}
	sent := 0
	for _, job := range pending {
		err := s.Queue.Send(ctx, queue.Message{
			JobID:       job.ID,
			RequestID:   job.RequestID,
			DocumentKey: job.Document.StorageKey,
			FileName:    job.Document.FileName,
			EnqueuedAt:  s.now(),
			Version:     queue.MessageVersion,
		})
		if errors.Is(err, queue.ErrFull) {
			break
		}
		if err != nil {
			metrics.IncJobRequeued(sent)
			return sent, &TransportError{JobID: job.ID, Err: err}
		}
		sent++
	}
	metrics.IncJobRequeued(sent)
	if sent > 0 || len(pending) > 0 {
		telemetry.Info("job.requeue", map[string]any{"pending": len(pending), "sent": sent})
	}
	return sent, nil
}

// Poll returns the job's current record. It never waits on the pipeline.
func (s *Service) Poll(ctx context.Context, jobID string) (Job, error) {
	if strings.TrimSpace(jobID) == "" {
		return Job{}, ErrNotFound
	}
	return s.Repo.Get(ctx, jobID)
}

// Process claims and runs a queued job. A job that is not PENDING is skipped, so a redelivered
// message never runs the pipeline twice. The returned error is non-nil only when the claim
// itself could not be attempted or the terminal state could not be stored.
func (s *Service) Process(ctx context.Context, jobID string) error {
	job, err := s.Repo.Claim(ctx, jobID, s.WorkerID, s.now())
	switch {
	case errors.Is(err, ErrNotPending), errors.Is(err, ErrNotFound):
		telemetry.Warn("job.skip", map[string]any{
			"job_id":     jobID,
			"request_id": RequestIDFrom(ctx),
			"status":     job.Status,
			"reason":     err.Error(),
		})
		return nil
	case err != nil:
		return fmt.Errorf("claim job %s: %w", jobID, err)
	}

	metrics.IncJobStarted()
	fields := job.logFields()
	fields["worker_id"] = s.WorkerID
	fields["status_transition"] = StatusPending + "->" + StatusRunning
	telemetry.Info("job.status", fields)

	startedAt := s.now()
	var result pipeline.Result
	runErr := s.Cleanup.Scope(ctx, job.Document, func(ctx context.Context) error {
		var err error
		result, err = s.execute(ctx, job.Query, job.Document, map[string]any{
			"job_id":     job.ID,
			"request_id": job.RequestID,
		})
		return err
	})

	outcome := outcomeOf(result, runErr, s.now())
	metrics.ObserveJobDurationMs(float64(outcome.CompletedAt.Sub(startedAt).Microseconds()) / 1000.0)
	if outcome.Status == StatusSuccess {
		metrics.IncJobSucceeded()
	} else {
		metrics.IncJobFailed()
	}

	if err := s.storeTerminal(ctx, job, outcome); err != nil {
		return err
	}
	fields = job.logFields()
	fields["status"] = outcome.Status
	fields["status_transition"] = StatusRunning + "->" + outcome.Status
	fields["duration_ms"] = outcome.CompletedAt.Sub(startedAt).Milliseconds()
	if outcome.Status == StatusFailure {
		fields["error_code"] = outcome.ErrorCode
		fields["failed_stage"] = outcome.FailedStage
	}
	telemetry.Info("job.status", fields)

	s.archive(ctx, job, outcome)
	return nil
}

// RunSync runs the pipeline inline. Cancellation of ctx does not stop the run; the document
// is released when it ends.
func (s *Service) RunSync(ctx context.Context, query string, doc documents.Handle) (string, error) {
	metrics.IncSyncRun()
	detached := context.WithoutCancel(ctx)
	var result pipeline.Result
	err := s.Cleanup.Scope(detached, doc, func(ctx context.Context) error {
		var err error
		result, err = s.execute(ctx, query, doc, map[string]any{
			"request_id": RequestIDFrom(ctx),
			"mode":       "sync",
		})
		return err
	})
	if err != nil {
		return "", err
	}
	return result.Output, nil
}

// execute converts a panic anywhere in the pipeline into an error.
func (s *Service) execute(ctx context.Context, query string, doc documents.Handle, logFields map[string]any) (res pipeline.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			fields := doc.LogFields()
			for k, v := range logFields {
				fields[k] = v
			}
			fields["panic"] = fmt.Sprint(r)
			telemetry.Error("pipeline.panic", fields)
			res = pipeline.Result{State: pipeline.Failed}
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	if s.Pipeline == nil {
		return pipeline.Result{}, errors.New("pipeline not configured")
	}
	return s.Pipeline.Execute(ctx, pipeline.Input{
		Query:    query,
		Document: doc,
		DocumentText: func(ctx context.Context) (string, error) {
			if s.Documents == nil {
				return "", errors.New("document text source not configured")
			}
			return s.Documents.Text(ctx, doc)
		},
		LogFields: logFields,
	})
}

func outcomeOf(result pipeline.Result, err error, completedAt time.Time) Outcome {
	if err == nil {
		return Outcome{Status: StatusSuccess, Result: result.Output, CompletedAt: completedAt}
	}
	out := Outcome{
		Status:       StatusFailure,
		ErrorCode:    ErrorCodeInternal,
		ErrorMessage: sanitizeError(err),
		CompletedAt:  completedAt,
	}
	if se, ok := pipeline.AsStageError(err); ok {
		out.FailedStage = se.Stage
		out.ErrorCode = errorCodeStagePrefix + strings.ToUpper(string(se.Kind))
		if se.Kind == pipeline.KindInput {
			out.ErrorCode = ErrorCodeInput
		}
	}
	return out
}

// storeTerminal retries the terminal write on a context that outlives the run.
func (s *Service) storeTerminal(ctx context.Context, job Job, outcome Outcome) error {
	writeCtx := context.WithoutCancel(ctx)
	attempts := s.TerminalRetries
	if attempts <= 0 {
		attempts = defaultTerminalRetries
	}
	delay := s.RetryDelay
	if delay <= 0 {
		delay = terminalRetryBaseDelay
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = s.Repo.Complete(writeCtx, job.ID, outcome)
		if err == nil || errors.Is(err, ErrNotRunning) || errors.Is(err, ErrNotFound) {
			break
		}
		if attempt < attempts {
			time.Sleep(time.Duration(attempt) * delay)
		}
	}
	if err == nil {
		return nil
	}

	metrics.IncPersistFailed()
	fields := job.logFields()
	fields["status"] = outcome.Status
	fields["error"] = err
	telemetry.Error("job.persist_failed", fields)
	return &PersistenceError{JobID: job.ID, Op: "complete", Err: err}
}

func (s *Service) archive(ctx context.Context, job Job, outcome Outcome) {
	if s.Archive == nil {
		return
	}
	output := outcome.Result
	if outcome.Status == StatusFailure {
		output = outcome.ErrorMessage
	}
	rec := archive.Record{
		JobID:          job.ID,
		FileName:       job.Document.FileName,
		Query:          job.Query,
		Status:         outcome.Status,
		AnalysisOutput: output,
		CreatedAt:      job.CreatedAt,
		CompletedAt:    outcome.CompletedAt,
	}
	if err := s.Archive.Append(context.WithoutCancel(ctx), rec); err != nil {
		metrics.IncPersistFailed()
		fields := job.logFields()
		fields["error"] = (&PersistenceError{JobID: job.ID, Op: "archive", Err: err}).Error()
		telemetry.Error("job.archive_failed", fields)
	}
}

// releaseUnowned frees a document that never became part of a running job.
func (s *Service) releaseUnowned(ctx context.Context, doc documents.Handle) {
	if s.Cleanup == nil {
		return
	}
	_ = s.Cleanup.Acquire(doc).Release(ctx)
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	return util.Truncate(msg, maxErrorMessageLen)
}
