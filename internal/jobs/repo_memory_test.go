package jobs

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryRepoClaimIsConditional(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Now().UTC()
	seedJob(t, repo, Job{ID: "j1", Status: StatusPending, CreatedAt: now})

	job, err := repo.Claim(context.Background(), "j1", "w1", now)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if job.Status != StatusRunning || job.WorkerID != "w1" || job.ClaimedAt == nil {
		t.Fatalf("unexpected claimed job %+v", job)
	}
	if _, err := repo.Claim(context.Background(), "j1", "w2", now); !errors.Is(err, ErrNotPending) {
		t.Fatalf("expected ErrNotPending on second claim, got %v", err)
	}
	if _, err := repo.Claim(context.Background(), "missing", "w1", now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryRepoCompleteRequiresRunning(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Now().UTC()
	seedJob(t, repo, Job{ID: "j1", Status: StatusPending, CreatedAt: now})

	out := Outcome{Status: StatusSuccess, Result: "report", CompletedAt: now}
	if err := repo.Complete(context.Background(), "j1", out); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning for pending job, got %v", err)
	}
	if _, err := repo.Claim(context.Background(), "j1", "w1", now); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := repo.Complete(context.Background(), "j1", out); err != nil {
		t.Fatalf("complete: %v", err)
	}
	failed := Outcome{Status: StatusFailure, ErrorMessage: "late", CompletedAt: now}
	if err := repo.Complete(context.Background(), "j1", failed); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected terminal job to stay terminal, got %v", err)
	}

	got, _ := repo.Get(context.Background(), "j1")
	if got.Status != StatusSuccess || got.Result != "report" || got.ErrorMessage != "" {
		t.Fatalf("unexpected job %+v", got)
	}
}

func TestMemoryRepoListExpiredOrdersByClaim(t *testing.T) {
	repo := NewMemoryRepo()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"c", "a", "b"} {
		seedJob(t, repo, Job{ID: id, Status: StatusPending, CreatedAt: base})
		if _, err := repo.Claim(context.Background(), id, "w", base.Add(time.Duration(3-i)*time.Minute)); err != nil {
			t.Fatalf("claim %s: %v", id, err)
		}
	}

	got, err := repo.ListExpired(context.Background(), base.Add(time.Hour), 2)
	if err != nil {
		t.Fatalf("list expired: %v", err)
	}
	if len(got) != 2 || got[0].ID != "b" || got[1].ID != "a" {
		t.Fatalf("unexpected expired jobs %+v", got)
	}
}
