package tools

import (
	"context"
	"errors"
	"strings"

	"findoc-backend/internal/extract"
	"findoc-backend/internal/llm"
	"findoc-backend/internal/shared/util"
)

const defaultDocumentChars = 60000

// DocumentReader returns the run's document text.
type DocumentReader struct {
	// MaxChars bounds the text returned to the model.
	MaxChars int
}

func (DocumentReader) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        ReadDocument,
		Description: "Read the full text content of the uploaded financial document. The input is ignored.",
	}
}

func (d DocumentReader) Run(ctx context.Context, env Env, input string) (string, error) {
	if env.DocumentText == nil {
		return "", errors.New("no document attached to this run")
	}
	text, err := env.DocumentText(ctx)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", extract.ErrEmptyText
	}
	max := d.MaxChars
	if max <= 0 {
		max = defaultDocumentChars
	}
	if len(text) > max {
		return util.Truncate(text, max) + "\n\n[document truncated]", nil
	}
	return text, nil
}
