package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"findoc-backend/internal/agents"
	"findoc-backend/internal/prompts"
)

// Stage binds one agent to one prompt template.
type Stage struct {
	Name     string
	Agent    agents.Spec
	Template *prompts.Template
	// DependsOn names earlier stages whose outputs the prompt reads.
	DependsOn []string
	// LoadsDocument extracts the document text before the agent runs; extraction errors fail
	// this stage with KindInput.
	LoadsDocument bool
}

func (s Stage) prompt(c *Context) (string, error) {
	doc := c.Document()
	return s.Template.Render(prompts.Data{
		Query: c.Query(),
		Document: prompts.DocumentRef{
			ID:       doc.ID,
			FileName: doc.FileName,
			Pages:    doc.PageCount,
		},
		Prior: c.prior(s.DependsOn),
	})
}

// Pipeline is a validated, strictly ordered list of stages.
type Pipeline struct {
	stages []Stage
}

// New validates stages: unique non-empty names, an agent and template for each, and
// dependencies that only point at earlier stages.
func New(stages ...Stage) (*Pipeline, error) {
	if len(stages) == 0 {
		return nil, errors.New("pipeline has no stages")
	}
	seen := make(map[string]bool, len(stages))
	for i, s := range stages {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			return nil, fmt.Errorf("stage %d has no name", i)
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate stage %q", name)
		}
		if s.Template == nil {
			return nil, fmt.Errorf("stage %q has no prompt template", name)
		}
		if err := s.Agent.Validate(); err != nil {
			return nil, fmt.Errorf("stage %q: %w", name, err)
		}
		for _, dep := range s.DependsOn {
			if !seen[dep] {
				return nil, fmt.Errorf("stage %q depends on %q, which is not an earlier stage", name, dep)
			}
		}
		seen[name] = true
	}
	return &Pipeline{stages: append([]Stage(nil), stages...)}, nil
}

// Stages returns the stages in execution order.
func (p *Pipeline) Stages() []Stage {
	return append([]Stage(nil), p.stages...)
}

// Names returns stage names in execution order.
func (p *Pipeline) Names() []string {
	out := make([]string, 0, len(p.stages))
	for _, s := range p.stages {
		out = append(out, s.Name)
	}
	return out
}
