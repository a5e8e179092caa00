// Package archive appends terminal job results to a durable store.
package archive

import (
	"context"
	"time"
)

// Record is one archived analysis.
type Record struct {
	JobID          string    `json:"job_id" firestore:"job_id"`
	FileName       string    `json:"filename" firestore:"filename"`
	Query          string    `json:"query" firestore:"query"`
	Status         string    `json:"status" firestore:"status"`
	AnalysisOutput string    `json:"analysis_output" firestore:"analysis_output"`
	CreatedAt      time.Time `json:"created_at" firestore:"created_at"`
	CompletedAt    time.Time `json:"completed_at" firestore:"completed_at"`
}

// Store appends records. Appending the same job twice keeps the first record.
type Store interface {
	Append(ctx context.Context, rec Record) error
}

// Nop discards records.
type Nop struct{}

func (Nop) Append(ctx context.Context, rec Record) error { return nil }
