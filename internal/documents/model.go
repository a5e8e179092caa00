package documents

import "time"

// Handle references an uploaded document's stored bytes. It is never mutated after Accept.
type Handle struct {
	ID         string
	StorageKey string
	FileName   string
	SizeBytes  int64
	PageCount  int
	SHA256     string
	CreatedAt  time.Time
}

// LogFields returns the handle's identifying fields for structured logs.
func (h Handle) LogFields() map[string]any {
	return map[string]any{
		"document_id": h.ID,
		"storage_key": h.StorageKey,
		"file_name":   h.FileName,
		"size_bytes":  h.SizeBytes,
	}
}
