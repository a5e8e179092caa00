// Package llmtest provides scripted llm.Client fakes for tests.
package llmtest

import (
	"context"
	"errors"
	"sync"

	"findoc-backend/internal/llm"
)

// ErrScriptExhausted is returned when a Script has no responses left.
var ErrScriptExhausted = errors.New("llmtest: script exhausted")

// Func adapts a function to llm.Client.
type Func func(ctx context.Context, req llm.Request) (llm.Response, error)

func (f Func) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	return f(ctx, req)
}

// Step is one scripted reply.
type Step struct {
	Response llm.Response
	Err      error
}

// Script replies with its steps in order and records every request.
type Script struct {
	mu       sync.Mutex
	steps    []Step
	requests []llm.Request
}

// NewScript returns a Script that replies with steps in order.
func NewScript(steps ...Step) *Script {
	return &Script{steps: steps}
}

// Text is a Step replying with final text.
func Text(s string) Step { return Step{Response: llm.Response{Text: s}} }

// Call is a Step requesting a single tool call.
func Call(id, name, input string) Step {
	return Step{Response: llm.Response{ToolCalls: []llm.ToolCall{{ID: id, Name: name, Input: input}}}}
}

// Fail is a Step returning err.
func Fail(err error) Step { return Step{Err: err} }

func (s *Script) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	if err := ctx.Err(); err != nil {
		return llm.Response{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if len(s.steps) == 0 {
		return llm.Response{}, ErrScriptExhausted
	}
	step := s.steps[0]
	s.steps = s.steps[1:]
	return step.Response, step.Err
}

// Requests returns a copy of the recorded requests.
func (s *Script) Requests() []llm.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]llm.Request(nil), s.requests...)
}

// Remaining reports how many steps have not been consumed.
func (s *Script) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.steps)
}
