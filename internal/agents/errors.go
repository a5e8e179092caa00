package agents

import (
	"errors"
	"fmt"
)

var (
	// ErrIterationsExhausted means the agent was still calling tools when its iteration budget ran out.
	ErrIterationsExhausted = errors.New("agent iteration limit reached without a final answer")
	// ErrEmptyOutput means the model produced no usable text.
	ErrEmptyOutput = errors.New("agent produced empty output")
)

// ToolError wraps a failure raised by a tool the agent called.
type ToolError struct {
	Tool string
	Err  error
}

func (e *ToolError) Error() string { return fmt.Sprintf("tool %s: %v", e.Tool, e.Err) }
func (e *ToolError) Unwrap() error { return e.Err }

// ModelError wraps a failure from the text-completion provider.
type ModelError struct {
	Err error
}

func (e *ModelError) Error() string { return fmt.Sprintf("model call: %v", e.Err) }
func (e *ModelError) Unwrap() error { return e.Err }
