package jobs

import (
	"context"
	"time"
)

// Repo persists jobs. Implementations must be safe for concurrent use by workers and pollers.
type Repo interface {
	Create(ctx context.Context, job Job) error
	Get(ctx context.Context, jobID string) (Job, error)
	Delete(ctx context.Context, jobID string) error
	// Claim moves a PENDING job to RUNNING, or returns ErrNotPending.
	Claim(ctx context.Context, jobID, workerID string, at time.Time) (Job, error)
	// Complete writes status and result together for a RUNNING job, or returns ErrNotRunning.
	Complete(ctx context.Context, jobID string, outcome Outcome) error
	// ListPending returns PENDING jobs created before the cutoff, oldest first.
	ListPending(ctx context.Context, createdBefore time.Time, limit int) ([]Job, error)
	// Expire fails a PENDING job no worker picked up, or returns ErrNotPending.
	Expire(ctx context.Context, jobID string, outcome Outcome) error
	// ListExpired returns RUNNING jobs claimed before the cutoff.
	ListExpired(ctx context.Context, claimedBefore time.Time, limit int) ([]Job, error)
	// PurgeTerminal deletes SUCCESS and FAILURE jobs completed before the cutoff.
	PurgeTerminal(ctx context.Context, completedBefore time.Time) (int64, error)
}
