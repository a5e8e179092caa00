// Package queue carries analysis jobs from the API to workers.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// MessageVersion is the newest payload layout this build reads and writes.
const MessageVersion = 2

// ErrUnsupportedVersion marks a payload written by a newer producer.
var ErrUnsupportedVersion = errors.New("unsupported message version")

// Client hands a job message to a broker.
type Client interface {
	Send(ctx context.Context, msg Message) error
}

// Message announces one PENDING job. The job record is authoritative; document and file name
// ride along so a stuck or dead-lettered message can be traced without a database lookup.
type Message struct {
	JobID       string    `json:"job_id"`
	RequestID   string    `json:"request_id,omitempty"`
	DocumentKey string    `json:"document_key,omitempty"`
	FileName    string    `json:"file_name,omitempty"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
	Version     int       `json:"version"`
}

// Encode returns the wire form of msg.
func Encode(msg Message) ([]byte, error) {
	if msg.Version == 0 {
		msg.Version = MessageVersion
	}
	return json.Marshal(msg)
}

// Decode parses a wire payload. Version 0 payloads are accepted as the current layout.
func Decode(payload []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Message{}, err
	}
	if msg.Version > MessageVersion {
		return msg, fmt.Errorf("%w: %d", ErrUnsupportedVersion, msg.Version)
	}
	return msg, nil
}
