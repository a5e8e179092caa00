// Package cleanup removes uploaded documents once the work that owns them is over.
package cleanup

import (
	"context"
	"sync"
	"time"

	"findoc-backend/internal/documents"
	"findoc-backend/internal/shared/metrics"
	"findoc-backend/internal/shared/telemetry"
)

const defaultReleaseTimeout = 30 * time.Second

// Releaser deletes a document's backing storage.
type Releaser interface {
	Release(ctx context.Context, h documents.Handle) error
}

// Coordinator hands out leases on document handles.
type Coordinator struct {
	Releaser Releaser
	Timeout  time.Duration
}

// Lease owns one document handle until Release is called.
type Lease struct {
	handle   documents.Handle
	releaser Releaser
	timeout  time.Duration
	once     sync.Once
	err      error
}

// Acquire takes ownership of h. The caller must defer Release.
func (c *Coordinator) Acquire(h documents.Handle) *Lease {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultReleaseTimeout
	}
	return &Lease{handle: h, releaser: c.Releaser, timeout: timeout}
}

// Release deletes the document exactly once; later calls return the first result.
// It runs on a context detached from ctx's cancellation so an expired run still cleans up.
func (l *Lease) Release(ctx context.Context) error {
	l.once.Do(func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
		defer cancel()

		fields := l.handle.LogFields()
		l.err = l.releaser.Release(releaseCtx, l.handle)
		if l.err != nil {
			fields["error"] = l.err.Error()
			telemetry.Error("document.release_failed", fields)
			return
		}
		metrics.IncDocumentReleased()
		telemetry.Info("document.released", fields)
	})
	return l.err
}

// Scope runs fn while holding h and releases h on every exit path, panics included.
func (c *Coordinator) Scope(ctx context.Context, h documents.Handle, fn func(ctx context.Context) error) error {
	lease := c.Acquire(h)
	defer func() { _ = lease.Release(ctx) }()
	return fn(ctx)
}
