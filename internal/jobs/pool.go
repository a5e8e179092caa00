package jobs

import (
	"context"

	"golang.org/x/sync/errgroup"

	"findoc-backend/internal/queue"
	"findoc-backend/internal/shared/metrics"
	"findoc-backend/internal/shared/telemetry"
)

// MessageHandler processes one broker message.
type MessageHandler func(ctx context.Context, msg queue.Message) error

// Pool drains a local broker with a bounded number of concurrent handlers.
type Pool struct {
	Messages    <-chan queue.Message
	Handle      MessageHandler
	Concurrency int
}

// Run consumes until ctx ends or Messages is closed, then waits for in-flight handlers. Handlers
// run on a context that is not canceled with ctx, so a started job finishes under its own
// pipeline deadline.
func (p *Pool) Run(ctx context.Context) error {
	limit := p.Concurrency
	if limit <= 0 {
		limit = 1
	}
	work := context.WithoutCancel(ctx)
	var g errgroup.Group
	g.SetLimit(limit)

	for {
		select {
		case <-ctx.Done():
			return g.Wait()
		case msg, ok := <-p.Messages:
			if !ok {
				return g.Wait()
			}
			g.Go(func() error {
				p.handle(work, msg)
				return nil
			})
		}
	}
}

func (p *Pool) handle(ctx context.Context, msg queue.Message) {
	fields := map[string]any{"job_id": msg.JobID, "request_id": msg.RequestID}
	if err := p.Handle(ctx, msg); err != nil {
		fields["error"] = err
		telemetry.Error("worker.message_failed", fields)
		metrics.IncWorkerMessage("failed")
		return
	}
	telemetry.Info("worker.message", fields)
	metrics.IncWorkerMessage("completed")
}
