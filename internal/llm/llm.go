package llm

import (
	"context"
	"errors"
	"strings"
)

// Role identifies who produced a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolDefinition describes a capability the model may call. Every tool takes a single
// free-text "input" argument.
type ToolDefinition struct {
	Name        string
	Description string
}

// ToolCall is a model's request to run a tool.
type ToolCall struct {
	ID    string
	Name  string
	Input string
}

// Message is one turn of the conversation sent to the model.
type Message struct {
	Role    Role
	Content string
	// ToolCalls is set on assistant turns that requested tools.
	ToolCalls []ToolCall
	// ToolCallID and ToolName are set on tool-result turns.
	ToolCallID string
	ToolName   string
}

// Request is a completion request: persona as system text, conversation, and offered tools.
type Request struct {
	System   string
	Messages []Message
	Tools    []ToolDefinition
}

// Response is either final text or a set of tool calls (or both).
type Response struct {
	Text      string
	ToolCalls []ToolCall
	Usage     Usage
}

// Usage reports token counts when the provider returns them.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Client abstracts text-completion providers.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// InputArgument is the JSON property name carrying a tool's input.
const InputArgument = "input"

// ErrNotImplemented is returned by the placeholder client.
var ErrNotImplemented = errors.New("LLM not implemented")

// ErrEmptyResponse is returned when the provider answered with neither text nor tool calls.
var ErrEmptyResponse = errors.New("llm response empty content")

// PlaceholderClient is used when no provider is configured.
type PlaceholderClient struct{}

// Complete returns ErrNotImplemented.
func (PlaceholderClient) Complete(ctx context.Context, req Request) (Response, error) {
	_ = ctx
	_ = req
	return Response{}, ErrNotImplemented
}

// LastUserContent returns the most recent user message, useful for logging and fakes.
func LastUserContent(req Request) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == RoleUser {
			return req.Messages[i].Content
		}
	}
	return ""
}

// Empty reports whether a response carries nothing usable.
func (r Response) Empty() bool {
	return strings.TrimSpace(r.Text) == "" && len(r.ToolCalls) == 0
}
