package pipeline

import (
	"context"
	"errors"
	"fmt"

	"findoc-backend/internal/agents"
	"findoc-backend/internal/extract"
)

// Kind classifies why a stage failed.
type Kind string

const (
	KindTool        Kind = "tool"
	KindModel       Kind = "model"
	KindEmptyOutput Kind = "empty_output"
	KindIterations  Kind = "iterations"
	KindTimeout     Kind = "timeout"
	KindInput       Kind = "input"
	KindCanceled    Kind = "canceled"
)

// StageError is the terminal failure of a run, attributed to the stage that produced it.
type StageError struct {
	Stage string
	Index int
	Kind  Kind
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed (%s): %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// AsStageError extracts a StageError from err.
func AsStageError(err error) (*StageError, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// classify maps an agent failure onto a Kind. stageCtx is checked first so that a deadline
// surfacing as a model or tool error is still reported as a timeout.
func classify(stageCtx context.Context, err error) Kind {
	if ctxErr := stageCtx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return KindTimeout
		}
		return KindCanceled
	}

	var toolErr *agents.ToolError
	var modelErr *agents.ModelError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, extract.ErrEmptyText), errors.Is(err, extract.ErrUnreadable):
		return KindInput
	case errors.Is(err, agents.ErrIterationsExhausted):
		return KindIterations
	case errors.Is(err, agents.ErrEmptyOutput):
		return KindEmptyOutput
	case errors.As(err, &toolErr):
		return KindTool
	case errors.As(err, &modelErr):
		return KindModel
	default:
		return KindModel
	}
}
