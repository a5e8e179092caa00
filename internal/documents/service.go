package documents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"findoc-backend/internal/extract"
	"findoc-backend/internal/shared/storage/object"
	"findoc-backend/internal/shared/util"
)

// DefaultQuery is used when the client sends a blank query.
const DefaultQuery = "Provide a comprehensive financial analysis of this document"

const defaultMaxBytes = 20 << 20

// Service stores uploads, extracts their text and releases them.
type Service struct {
	Store     object.ObjectStore
	Extractor extract.Extractor
	// Inspect validates PDF structure and returns the page count. Defaults to extract.Inspect.
	Inspect  func(data []byte) (int, error)
	MaxBytes int64
	Now      func() time.Time
}

// EffectiveQuery returns the trimmed query or DefaultQuery when blank.
func EffectiveQuery(query string) string {
	if q := strings.TrimSpace(query); q != "" {
		return q
	}
	return DefaultQuery
}

// StorageKey is where a document with the given id is stored.
func StorageKey(id string) string {
	return fmt.Sprintf("documents/financial_document_%s.pdf", id)
}

// Accept validates an upload and stores it, returning its handle.
func (s *Service) Accept(ctx context.Context, fileName string, r io.Reader) (Handle, error) {
	if r == nil {
		return Handle{}, inputError(CodeMissingFile, "file is required")
	}
	if !strings.EqualFold(filepath.Ext(strings.TrimSpace(fileName)), ".pdf") {
		return Handle{}, inputError(CodeNotPDF, "Only PDF files are supported")
	}
	name, err := util.SanitizeFileName(fileName)
	if err != nil {
		return Handle{}, inputError(CodeInvalidName, "invalid file name")
	}

	limit := s.MaxBytes
	if limit <= 0 {
		limit = defaultMaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return Handle{}, inputError(CodeTooLarge, "Uploaded file is too large")
		}
		return Handle{}, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > limit {
		return Handle{}, inputError(CodeTooLarge, "Uploaded file is too large")
	}
	if len(data) == 0 {
		return Handle{}, inputError(CodeEmptyFile, "Uploaded file is empty")
	}

	inspect := s.Inspect
	if inspect == nil {
		inspect = extract.Inspect
	}
	pages, err := inspect(data)
	if err != nil {
		return Handle{}, inputError(CodeUnreadable, "File is not a readable PDF")
	}

	if err := ctx.Err(); err != nil {
		return Handle{}, err
	}

	id := uuid.NewString()
	key := StorageKey(id)
	size, err := s.Store.Put(ctx, key, "application/pdf", bytes.NewReader(data))
	if err != nil {
		return Handle{}, fmt.Errorf("store document: %w", err)
	}

	return Handle{
		ID:         id,
		StorageKey: key,
		FileName:   name,
		SizeBytes:  size,
		PageCount:  pages,
		SHA256:     util.SHA256Hex(data),
		CreatedAt:  s.now(),
	}, nil
}

// Text extracts the document's plain text.
func (s *Service) Text(ctx context.Context, h Handle) (string, error) {
	ex := s.Extractor
	if ex == nil {
		ex = extract.PDF{}
	}
	return extract.ExtractText(ctx, s.Store, ex, h.StorageKey)
}

// Release deletes the stored bytes. A document that is already gone counts as released.
func (s *Service) Release(ctx context.Context, h Handle) error {
	if strings.TrimSpace(h.StorageKey) == "" {
		return errors.New("document handle has no storage key")
	}
	err := s.Store.Delete(ctx, h.StorageKey)
	if errors.Is(err, object.ErrNotFound) {
		return nil
	}
	return err
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
