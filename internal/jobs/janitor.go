package jobs

import (
	"context"
	"errors"
	"time"

	"findoc-backend/internal/cleanup"
	"findoc-backend/internal/shared/metrics"
	"findoc-backend/internal/shared/telemetry"
)

const (
	DefaultLease           = 30 * time.Minute
	DefaultPendingTimeout  = 6 * time.Hour
	DefaultRetention       = 720 * time.Hour
	DefaultJanitorInterval = time.Minute
	leaseExpiredMessage    = "worker lease expired"
	notPickedMessage       = "job was not picked up by a worker in time"
	defaultSweepBatch      = 100
)

// Janitor fails jobs whose worker stopped reporting or that no worker ever picked up, and
// purges old terminal jobs.
type Janitor struct {
	Repo    Repo
	Cleanup *cleanup.Coordinator
	// Lease is how long a job may stay RUNNING.
	Lease time.Duration
	// PendingTimeout is how long a job may wait in PENDING; zero never expires it.
	PendingTimeout time.Duration
	// Retention is how long terminal jobs are kept; zero keeps them forever.
	Retention time.Duration
	Interval  time.Duration
	Now       func() time.Time
}

// Run sweeps every Interval until ctx ends.
func (j *Janitor) Run(ctx context.Context) error {
	interval := j.Interval
	if interval <= 0 {
		interval = DefaultJanitorInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, _, err := j.Sweep(ctx); err != nil && ctx.Err() == nil {
			telemetry.Error("janitor.sweep_failed", map[string]any{"error": err})
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Sweep runs one pass and reports how many jobs were failed and purged.
func (j *Janitor) Sweep(ctx context.Context) (int, int64, error) {
	metrics.IncJanitorSweep()
	now := j.now()

	expiredPending, err := j.expirePending(ctx, now)
	if err != nil {
		return expiredPending, 0, err
	}
	lease := j.Lease
	if lease <= 0 {
		lease = DefaultLease
	}

	expired, err := j.Repo.ListExpired(ctx, now.Add(-lease), defaultSweepBatch)
	if err != nil {
		return expiredPending, 0, err
	}
	reclaimed := expiredPending
	for _, job := range expired {
		err := j.Repo.Complete(ctx, job.ID, Outcome{
			Status:       StatusFailure,
			ErrorCode:    ErrorCodeLeaseExpired,
			ErrorMessage: leaseExpiredMessage,
			CompletedAt:  now,
		})
		if errors.Is(err, ErrNotRunning) || errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return reclaimed, 0, err
		}
		reclaimed++
		if j.Cleanup != nil {
			_ = j.Cleanup.Acquire(job.Document).Release(ctx)
		}
		fields := job.logFields()
		fields["status"] = StatusFailure
		fields["status_transition"] = StatusRunning + "->" + StatusFailure
		fields["error_code"] = ErrorCodeLeaseExpired
		telemetry.Warn("job.status", fields)
	}
	metrics.IncJobReclaimed(reclaimed - expiredPending)

	var purged int64
	if j.Retention > 0 {
		purged, err = j.Repo.PurgeTerminal(ctx, now.Add(-j.Retention))
		if err != nil {
			return reclaimed, 0, err
		}
		metrics.IncJobsPurged(purged)
	}
	if reclaimed > 0 || purged > 0 {
		telemetry.Info("janitor.sweep", map[string]any{"reclaimed": reclaimed, "purged": purged})
	}
	return reclaimed, purged, nil
}

// expirePending fails PENDING jobs older than PendingTimeout. Their broker message was lost or
// is still waiting behind a backlog; a late delivery finds the job terminal and skips it.
func (j *Janitor) expirePending(ctx context.Context, now time.Time) (int, error) {
	if j.PendingTimeout <= 0 {
		return 0, nil
	}
	stale, err := j.Repo.ListPending(ctx, now.Add(-j.PendingTimeout), defaultSweepBatch)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, job := range stale {
		err := j.Repo.Expire(ctx, job.ID, Outcome{
			Status:       StatusFailure,
			ErrorCode:    ErrorCodeNotPicked,
			ErrorMessage: notPickedMessage,
			CompletedAt:  now,
		})
		if errors.Is(err, ErrNotPending) || errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return n, err
		}
		n++
		if j.Cleanup != nil {
			_ = j.Cleanup.Acquire(job.Document).Release(ctx)
		}
		fields := job.logFields()
		fields["status"] = StatusFailure
		fields["status_transition"] = StatusPending + "->" + StatusFailure
		fields["error_code"] = ErrorCodeNotPicked
		telemetry.Warn("job.status", fields)
	}
	metrics.IncJobExpired(n)
	return n, nil
}

func (j *Janitor) now() time.Time {
	if j.Now != nil {
		return j.Now().UTC()
	}
	return time.Now().UTC()
}
