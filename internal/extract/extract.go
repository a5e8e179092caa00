package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"findoc-backend/internal/shared/storage/object"
)

var (
	// ErrEmptyText means the PDF parsed but held no extractable text (for example a scanned image).
	ErrEmptyText = errors.New("document contains no extractable text (empty content)")
	// ErrUnreadable means the payload is not a PDF the parsers can read.
	ErrUnreadable = errors.New("document is not a readable PDF")
)

// Extractor turns stored PDF bytes into plain text.
type Extractor interface {
	Text(ctx context.Context, data []byte) (string, error)
}

// PDF is the default Extractor backed by github.com/ledongthuc/pdf.
type PDF struct{}

// Text extracts and normalizes text, failing with ErrEmptyText when nothing is left.
func (PDF) Text(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	raw, err := extractPDF(data)
	if err != nil {
		return "", err
	}
	text := normalizeText(raw)
	if text == "" {
		return "", ErrEmptyText
	}
	return text, nil
}

// ExtractText reads a stored object and extracts its text.
func ExtractText(ctx context.Context, store object.ObjectStore, ex Extractor, storageKey string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	body, err := store.Open(ctx, storageKey)
	if err != nil {
		return "", fmt.Errorf("extract text key=%s: %w", storageKey, err)
	}
	defer body.Close()

	raw, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("extract text key=%s: read: %w", storageKey, err)
	}

	text, err := ex.Text(ctx, raw)
	if err != nil {
		return "", fmt.Errorf("extract text key=%s: %w", storageKey, err)
	}
	return text, nil
}

// Inspect validates PDF structure with pdfcpu and returns the page count.
func Inspect(data []byte) (pages int, err error) {
	if len(data) == 0 {
		return 0, ErrUnreadable
	}
	defer func() {
		if r := recover(); r != nil {
			pages, err = 0, fmt.Errorf("%w: %v", ErrUnreadable, r)
		}
	}()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if err := api.Validate(bytes.NewReader(data), conf); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	n, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	return n, nil
}

func extractPDF(data []byte) (text string, err error) {
	if len(data) == 0 {
		return "", ErrUnreadable
	}
	// ledongthuc/pdf panics on some malformed streams.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: %v", ErrUnreadable, r)
		}
	}()

	pdfReader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	plain, err := pdfReader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// normalizeText collapses runs of blank lines and trailing spaces left by the PDF text layer.
func normalizeText(raw string) string {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t ")
		if strings.TrimSpace(line) == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

var _ Extractor = PDF{}
