package llm

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"findoc-backend/internal/shared/telemetry"
)

const retryBaseDelay = 300 * time.Millisecond

// Retrying wraps a Client and retries once on transient transport failures.
type Retrying struct {
	Base  Client
	Delay time.Duration
}

// WithRetry wraps base unless it is nil.
func WithRetry(base Client) Client {
	if base == nil {
		return nil
	}
	return &Retrying{Base: base, Delay: retryBaseDelay}
}

// Complete calls the base client, retrying one time after Delay when ShouldRetry(err).
func (r *Retrying) Complete(ctx context.Context, req Request) (Response, error) {
	resp, err := r.Base.Complete(ctx, req)
	if err == nil || !ShouldRetry(err) || ctx.Err() != nil {
		return resp, err
	}

	telemetry.Warn("llm.retry", map[string]any{"attempt": 1, "error": err.Error()})
	select {
	case <-time.After(r.Delay):
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
	return r.Base.Complete(ctx, req)
}

// ShouldRetry reports whether err looks transient (timeouts, 5xx, 429, dropped connections).
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "http status 5") || strings.Contains(msg, "server_error") {
		return true
	}
	if strings.Contains(msg, "http status 429") || strings.Contains(msg, "resource_exhausted") {
		return true
	}
	if strings.Contains(msg, "request timeout") || strings.Contains(msg, "client.timeout") {
		return true
	}
	if strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection closed") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "tls handshake timeout") ||
		strings.Contains(msg, "unexpected eof") {
		return true
	}
	return false
}
