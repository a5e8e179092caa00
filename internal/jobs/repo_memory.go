package jobs

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo stores jobs in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Job
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]Job)}
}

// Create stores the job.
func (r *MemoryRepo) Create(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[job.ID] = job
	return nil
}

// Get returns a job by its ID.
func (r *MemoryRepo) Get(ctx context.Context, jobID string) (Job, error) {
	if err := ctx.Err(); err != nil {
		return Job{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.byID[jobID]
	if !ok {
		return Job{}, ErrNotFound
	}
	return job, nil
}

// Delete removes a job. Deleting a missing job is not an error.
func (r *MemoryRepo) Delete(ctx context.Context, jobID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byID, jobID)
	return nil
}

func (r *MemoryRepo) Claim(ctx context.Context, jobID, workerID string, at time.Time) (Job, error) {
	if err := ctx.Err(); err != nil {
		return Job{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.byID[jobID]
	if !ok {
		return Job{}, ErrNotFound
	}
	if job.Status != StatusPending {
		return job, ErrNotPending
	}
	claimed := at.UTC()
	job.Status = StatusRunning
	job.WorkerID = workerID
	job.ClaimedAt = &claimed
	r.byID[jobID] = job
	return job, nil
}

func (r *MemoryRepo) Complete(ctx context.Context, jobID string, outcome Outcome) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.byID[jobID]
	if !ok {
		return ErrNotFound
	}
	if job.Status != StatusRunning {
		return ErrNotRunning
	}
	completed := outcome.CompletedAt.UTC()
	job.Status = outcome.Status
	job.Result = outcome.Result
	job.ErrorCode = outcome.ErrorCode
	job.ErrorMessage = outcome.ErrorMessage
	job.FailedStage = outcome.FailedStage
	job.CompletedAt = &completed
	r.byID[jobID] = job
	return nil
}

func (r *MemoryRepo) ListPending(ctx context.Context, createdBefore time.Time, limit int) ([]Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]Job, 0)
	for _, job := range r.byID {
		if job.Status == StatusPending && job.CreatedAt.Before(createdBefore) {
			out = append(out, job)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepo) Expire(ctx context.Context, jobID string, outcome Outcome) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.byID[jobID]
	if !ok {
		return ErrNotFound
	}
	if job.Status != StatusPending {
		return ErrNotPending
	}
	completed := outcome.CompletedAt.UTC()
	job.Status = outcome.Status
	job.ErrorCode = outcome.ErrorCode
	job.ErrorMessage = outcome.ErrorMessage
	job.CompletedAt = &completed
	r.byID[jobID] = job
	return nil
}

func (r *MemoryRepo) ListExpired(ctx context.Context, claimedBefore time.Time, limit int) ([]Job, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]Job, 0)
	for _, job := range r.byID {
		if job.Status == StatusRunning && job.ClaimedAt != nil && job.ClaimedAt.Before(claimedBefore) {
			out = append(out, job)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].ClaimedAt.Before(*out[j].ClaimedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepo) PurgeTerminal(ctx context.Context, completedBefore time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, job := range r.byID {
		if job.Terminal() && job.CompletedAt != nil && job.CompletedAt.Before(completedBefore) {
			delete(r.byID, id)
			n++
		}
	}
	return n, nil
}

var _ Repo = (*MemoryRepo)(nil)
