package jobs

import (
	"time"

	"findoc-backend/internal/documents"
)

const (
	StatusPending = "PENDING"
	StatusRunning = "RUNNING"
	StatusSuccess = "SUCCESS"
	StatusFailure = "FAILURE"
)

// Job is one asynchronous pipeline run.
type Job struct {
	ID           string
	Status       string
	Query        string
	Document     documents.Handle
	RequestID    string
	Result       string
	ErrorCode    string
	ErrorMessage string
	FailedStage  string
	WorkerID     string
	CreatedAt    time.Time
	ClaimedAt    *time.Time
	CompletedAt  *time.Time
}

// Terminal reports whether the job reached SUCCESS or FAILURE.
func (j Job) Terminal() bool {
	return j.Status == StatusSuccess || j.Status == StatusFailure
}

// Outcome is the terminal state written by a worker or the janitor.
type Outcome struct {
	Status       string
	Result       string
	ErrorCode    string
	ErrorMessage string
	FailedStage  string
	CompletedAt  time.Time
}

func (j Job) logFields() map[string]any {
	fields := j.Document.LogFields()
	fields["job_id"] = j.ID
	fields["request_id"] = j.RequestID
	fields["status"] = j.Status
	return fields
}
