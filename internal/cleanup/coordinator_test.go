package cleanup

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"findoc-backend/internal/documents"
)

type countingReleaser struct {
	calls atomic.Int32
	err   error
	ctxOK atomic.Bool
}

func (r *countingReleaser) Release(ctx context.Context, h documents.Handle) error {
	r.calls.Add(1)
	r.ctxOK.Store(ctx.Err() == nil)
	return r.err
}

func TestScopeReleasesOnSuccessAndFailure(t *testing.T) {
	for _, runErr := range []error{nil, errors.New("stage failed")} {
		rel := &countingReleaser{}
		c := &Coordinator{Releaser: rel}

		err := c.Scope(context.Background(), documents.Handle{ID: "d1", StorageKey: "k"}, func(ctx context.Context) error {
			return runErr
		})

		assert.Equal(t, runErr, err)
		assert.EqualValues(t, 1, rel.calls.Load())
	}
}

func TestScopeReleasesOnPanic(t *testing.T) {
	rel := &countingReleaser{}
	c := &Coordinator{Releaser: rel}

	func() {
		defer func() { require.NotNil(t, recover()) }()
		_ = c.Scope(context.Background(), documents.Handle{ID: "d1", StorageKey: "k"}, func(ctx context.Context) error {
			panic("executor blew up")
		})
	}()

	assert.EqualValues(t, 1, rel.calls.Load())
}

func TestReleaseUsesLiveContextAfterCancel(t *testing.T) {
	rel := &countingReleaser{}
	c := &Coordinator{Releaser: rel}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	lease := c.Acquire(documents.Handle{ID: "d1", StorageKey: "k"})
	require.NoError(t, lease.Release(ctx))
	assert.True(t, rel.ctxOK.Load(), "release context must not inherit cancellation")
}

func TestReleaseExactlyOnceUnderConcurrency(t *testing.T) {
	rel := &countingReleaser{err: errors.New("bucket offline")}
	c := &Coordinator{Releaser: rel}
	lease := c.Acquire(documents.Handle{ID: "d1", StorageKey: "k"})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.EqualError(t, lease.Release(context.Background()), "bucket offline")
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, rel.calls.Load())
}
