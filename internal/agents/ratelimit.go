package agents

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	"findoc-backend/internal/shared/metrics"
)

// Limiters throttles model calls per role. Agents with the same role share one budget across
// every concurrent run; safe for concurrent use.
type Limiters struct {
	mu     sync.Mutex
	byRole map[string]*rate.Limiter
}

// NewLimiters returns an empty registry.
func NewLimiters() *Limiters {
	return &Limiters{byRole: make(map[string]*rate.Limiter)}
}

// Wait blocks until role may make another call or ctx ends. perMinute is both the sustained
// rate and the burst. When the next slot lies past ctx's deadline Wait fails at once with an
// error wrapping context.DeadlineExceeded.
func (l *Limiters) Wait(ctx context.Context, role string, perMinute int) error {
	lim := l.limiter(role, perMinute)
	if lim.Allow() {
		return nil
	}
	metrics.IncRateLimitWait()
	err := lim.Wait(ctx)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if _, ok := ctx.Deadline(); ok {
		return fmt.Errorf("role %q: %w: %v", role, context.DeadlineExceeded, err)
	}
	return err
}

func (l *Limiters) limiter(role string, perMinute int) *rate.Limiter {
	if perMinute < 1 {
		perMinute = 1
	}
	limit := rate.Limit(float64(perMinute) / 60)

	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.byRole[role]
	if !ok {
		lim = rate.NewLimiter(limit, perMinute)
		l.byRole[role] = lim
		return lim
	}
	if lim.Limit() != limit {
		lim.SetLimit(limit)
		lim.SetBurst(perMinute)
	}
	return lim
}
