package jobs

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound              = errors.New("not found")
	ErrNotPending            = errors.New("job is not pending")
	ErrNotRunning            = errors.New("job is not running")
	ErrJobQueueNotConfigured = errors.New("job queue not configured")
)

const (
	ErrorCodeInput        = "INPUT_ERROR"
	ErrorCodeInternal     = "INTERNAL_ERROR"
	ErrorCodeLeaseExpired = "LEASE_EXPIRED"
	ErrorCodeNotPicked    = "NOT_PICKED_UP"
	errorCodeStagePrefix  = "STAGE_"
)

// TransportError means the broker did not accept a job. No record is left behind.
type TransportError struct {
	JobID string
	Err   error
}

func (e *TransportError) Error() string { return fmt.Sprintf("enqueue job %s: %v", e.JobID, e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// PersistenceError means a completed run's state could not be stored. It never re-runs the
// pipeline.
type PersistenceError struct {
	JobID string
	Op    string
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist job %s (%s): %v", e.JobID, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
