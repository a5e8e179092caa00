// Package tools holds the capabilities agents may call during a stage.
package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"findoc-backend/internal/documents"
	"findoc-backend/internal/llm"
)

const (
	ReadDocument       = "read_financial_document"
	WebSearch          = "web_search"
	InvestmentAnalysis = "investment_analysis"
	RiskAssessment     = "risk_assessment"
)

// ErrUnknownTool is returned for a name that is not registered.
var ErrUnknownTool = errors.New("unknown tool")

// Env is the per-run state a tool may read. It is owned by one pipeline run.
type Env struct {
	Query    string
	Document documents.Handle
	// DocumentText loads the document's extracted text.
	DocumentText func(ctx context.Context) (string, error)
}

// Tool is one callable capability.
type Tool interface {
	Definition() llm.ToolDefinition
	Run(ctx context.Context, env Env, input string) (string, error)
}

// Registry maps tool names to implementations. It is read-only once built.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry builds a registry, rejecting duplicate names.
func NewRegistry(ts ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]Tool, len(ts))}
	for _, t := range ts {
		name := t.Definition().Name
		if _, dup := r.tools[name]; dup {
			return nil, fmt.Errorf("duplicate tool %q", name)
		}
		r.tools[name] = t
	}
	return r, nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.tools[name]
	return ok
}

// Names lists registered tools in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.tools))
	for name := range r.tools {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Definitions returns definitions for the given names, skipping unknown ones.
func (r *Registry) Definitions(names []string) []llm.ToolDefinition {
	out := make([]llm.ToolDefinition, 0, len(names))
	for _, name := range names {
		if t, ok := r.tools[name]; ok {
			out = append(out, t.Definition())
		}
	}
	return out
}

// Run executes a registered tool.
func (r *Registry) Run(ctx context.Context, env Env, name, input string) (string, error) {
	t, ok := r.tools[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return t.Run(ctx, env, input)
}
