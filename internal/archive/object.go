package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"

	"findoc-backend/internal/shared/storage/object"
)

// ObjectStore writes each record as a JSON object under Prefix/yyyy/mm/dd/<job_id>.json.
type ObjectStore struct {
	Store  object.ObjectStore
	Prefix string
}

// NewObjectStore returns an archive writing under prefix (default "results").
func NewObjectStore(store object.ObjectStore, prefix string) *ObjectStore {
	if prefix == "" {
		prefix = "results"
	}
	return &ObjectStore{Store: store, Prefix: prefix}
}

// Key is where rec is written.
func (s *ObjectStore) Key(rec Record) string {
	return path.Join(s.Prefix, rec.CompletedAt.UTC().Format("2006/01/02"), rec.JobID+".json")
}

func (s *ObjectStore) Append(ctx context.Context, rec Record) error {
	if rec.JobID == "" {
		return errors.New("archive record has no job id")
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode archive record: %w", err)
	}
	if _, err := s.Store.Put(ctx, s.Key(rec), "application/json", bytes.NewReader(payload)); err != nil {
		return fmt.Errorf("write archive record: %w", err)
	}
	return nil
}

var _ Store = (*ObjectStore)(nil)
