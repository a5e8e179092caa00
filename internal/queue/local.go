package queue

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrClosed is returned by Send after Close.
	ErrClosed = errors.New("queue closed")
	// ErrFull is returned by Send when the buffer holds as many messages as it can.
	ErrFull = errors.New("queue full")
)

const defaultLocalBuffer = 64

// Local is an in-process broker backed by a buffered channel. Messages do not survive a
// restart.
type Local struct {
	mu     sync.RWMutex
	ch     chan Message
	closed bool
}

// NewLocal returns a broker holding up to buffer unconsumed messages.
func NewLocal(buffer int) *Local {
	if buffer <= 0 {
		buffer = defaultLocalBuffer
	}
	return &Local{ch: make(chan Message, buffer)}
}

// Send never waits for a consumer: a full buffer fails with ErrFull.
func (l *Local) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return ErrClosed
	}
	select {
	case l.ch <- msg:
		return nil
	default:
		return ErrFull
	}
}

// Messages is the consumer side. It is closed by Close.
func (l *Local) Messages() <-chan Message {
	return l.ch
}

// Close stops accepting messages. Buffered messages can still be drained.
func (l *Local) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.closed {
		l.closed = true
		close(l.ch)
	}
}

var _ Client = (*Local)(nil)
