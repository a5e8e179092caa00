// Package workerproc turns broker payloads into job processing calls. It is shared by the SQS
// poll loop and the Lambda batch handler so both apply the same ack rules.
package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"findoc-backend/internal/jobs"
	"findoc-backend/internal/queue"
)

// Processor runs one job by id.
type Processor interface {
	Process(ctx context.Context, jobID string) error
}

// Fingerprint identifies a payload in logs without echoing it.
type Fingerprint struct {
	Size   int
	SHA256 string
}

// Fields returns the fingerprint as log fields.
func (f Fingerprint) Fields() map[string]any {
	fields := map[string]any{"body_len": f.Size}
	if f.SHA256 != "" {
		fields["body_sha256"] = f.SHA256
	}
	return fields
}

func fingerprint(body string) Fingerprint {
	if body == "" {
		return Fingerprint{}
	}
	sum := sha256.Sum256([]byte(body))
	return Fingerprint{Size: len(body), SHA256: hex.EncodeToString(sum[:])}
}

// Payload rejection reasons.
const (
	ReasonEmpty      = "empty_body"
	ReasonMalformed  = "malformed"
	ReasonVersion    = "unsupported_version"
	ReasonMissingJob = "missing_job_id"
)

// PayloadError means the message itself is unusable; redelivery cannot fix it.
type PayloadError struct {
	Reason string
	Body   Fingerprint
	Err    error
}

func (e *PayloadError) Error() string {
	if e.Err == nil {
		return "bad job message: " + e.Reason
	}
	return fmt.Sprintf("bad job message: %s: %v", e.Reason, e.Err)
}

func (e *PayloadError) Unwrap() error { return e.Err }

// ProcessError wraps a failure that happened after the payload was accepted.
type ProcessError struct {
	JobID     string
	RequestID string
	Err       error
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("process job %s: %v", e.JobID, e.Err)
}

func (e *ProcessError) Unwrap() error { return e.Err }

// Unrecoverable reports whether the message should be dropped instead of redelivered.
func Unrecoverable(err error) bool {
	var payloadErr *PayloadError
	return errors.As(err, &payloadErr)
}

// Parse decodes and validates a message body.
func Parse(body string) (queue.Message, Fingerprint, error) {
	fp := fingerprint(body)
	if strings.TrimSpace(body) == "" {
		return queue.Message{}, fp, &PayloadError{Reason: ReasonEmpty, Body: fp}
	}

	msg, err := queue.Decode([]byte(body))
	switch {
	case errors.Is(err, queue.ErrUnsupportedVersion):
		return msg, fp, &PayloadError{Reason: ReasonVersion, Body: fp, Err: err}
	case err != nil:
		return queue.Message{}, fp, &PayloadError{Reason: ReasonMalformed, Body: fp, Err: err}
	}
	if strings.TrimSpace(msg.JobID) == "" {
		return msg, fp, &PayloadError{Reason: ReasonMissingJob, Body: fp}
	}
	return msg, fp, nil
}

// Handle parses body and runs the job it names.
func Handle(ctx context.Context, proc Processor, body string) error {
	msg, _, err := Parse(body)
	if err != nil {
		return err
	}
	return Run(ctx, proc, msg)
}

// Run processes an already parsed message under its originating request id.
func Run(ctx context.Context, proc Processor, msg queue.Message) error {
	if proc == nil {
		return errors.New("job processor not configured")
	}
	if strings.TrimSpace(msg.JobID) == "" {
		return &PayloadError{Reason: ReasonMissingJob}
	}
	if err := proc.Process(jobs.WithRequestID(ctx, msg.RequestID), msg.JobID); err != nil {
		return &ProcessError{JobID: msg.JobID, RequestID: msg.RequestID, Err: err}
	}
	return nil
}
