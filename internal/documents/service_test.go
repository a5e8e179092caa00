package documents

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"findoc-backend/internal/shared/storage/object"
	"findoc-backend/internal/shared/storage/object/local"
)

func okInspect(data []byte) (int, error) { return 3, nil }

func newTestService(t *testing.T) (*Service, *local.Store) {
	t.Helper()
	store := local.New(t.TempDir())
	return &Service{Store: store, Inspect: okInspect, MaxBytes: 1024}, store
}

func TestAcceptStoresPDF(t *testing.T) {
	svc, store := newTestService(t)

	h, err := svc.Accept(context.Background(), "Q3 Report.PDF", strings.NewReader("%PDF-1.7 fake"))
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if h.ID == "" || h.StorageKey != StorageKey(h.ID) {
		t.Fatalf("unexpected handle %+v", h)
	}
	if !strings.HasPrefix(h.StorageKey, "documents/financial_document_") {
		t.Fatalf("unexpected storage key %q", h.StorageKey)
	}
	if h.PageCount != 3 || h.SizeBytes != int64(len("%PDF-1.7 fake")) || len(h.SHA256) != 64 {
		t.Fatalf("unexpected metadata %+v", h)
	}
	rc, err := store.Open(context.Background(), h.StorageKey)
	if err != nil {
		t.Fatalf("open stored: %v", err)
	}
	_ = rc.Close()
}

func TestAcceptRejectsInvalidUploads(t *testing.T) {
	svc, _ := newTestService(t)
	failInspect := &Service{Store: svc.Store, Inspect: func([]byte) (int, error) { return 0, errors.New("bad xref") }}

	cases := []struct {
		name string
		svc  *Service
		file string
		body io.Reader
		code string
	}{
		{"text file", svc, "report.txt", strings.NewReader("hello"), CodeNotPDF},
		{"no extension", svc, "report", strings.NewReader("hello"), CodeNotPDF},
		{"empty", svc, "report.pdf", strings.NewReader(""), CodeEmptyFile},
		{"too large", svc, "report.pdf", strings.NewReader(strings.Repeat("x", 2048)), CodeTooLarge},
		{"unreadable", failInspect, "report.pdf", strings.NewReader("garbage"), CodeUnreadable},
		{"missing", svc, "report.pdf", nil, CodeMissingFile},
	}
	for _, tc := range cases {
		_, err := tc.svc.Accept(context.Background(), tc.file, tc.body)
		ie, ok := AsInputError(err)
		if !ok {
			t.Fatalf("%s: expected InputError, got %v", tc.name, err)
		}
		if ie.Code != tc.code {
			t.Fatalf("%s: expected code %s, got %s", tc.name, tc.code, ie.Code)
		}
	}
}

func TestAcceptNotPDFMessage(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Accept(context.Background(), "report.txt", strings.NewReader("x"))
	if err == nil || err.Error() != "Only PDF files are supported" {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestReleaseIsIdempotentOnStorage(t *testing.T) {
	svc, store := newTestService(t)
	h, err := svc.Accept(context.Background(), "a.pdf", strings.NewReader("%PDF"))
	if err != nil {
		t.Fatalf("accept: %v", err)
	}

	if err := svc.Release(context.Background(), h); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := store.Open(context.Background(), h.StorageKey); !errors.Is(err, object.ErrNotFound) {
		t.Fatalf("expected document gone, got %v", err)
	}
	if err := svc.Release(context.Background(), h); err != nil {
		t.Fatalf("second release should be a no-op, got %v", err)
	}
}

func TestEffectiveQuery(t *testing.T) {
	if got := EffectiveQuery("   "); got != DefaultQuery {
		t.Fatalf("expected default query, got %q", got)
	}
	if got := EffectiveQuery(" summarize "); got != "summarize" {
		t.Fatalf("expected trimmed query, got %q", got)
	}
}
