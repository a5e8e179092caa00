// Package agents defines role-specialized agents and runs their bounded tool-calling loop.
package agents

import (
	"errors"
	"fmt"
	"strings"
)

// Spec is an agent's immutable configuration. One value is shared by every run.
type Spec struct {
	Key               string   `yaml:"key"`
	Role              string   `yaml:"role"`
	Goal              string   `yaml:"goal"`
	Persona           string   `yaml:"backstory"`
	Tools             []string `yaml:"tools"`
	MaxIterations     int      `yaml:"max_iterations"`
	MaxCallsPerMinute int      `yaml:"max_calls_per_minute"`
	AllowDelegation   bool     `yaml:"allow_delegation"`
}

// Validate checks limits and required fields.
func (s Spec) Validate() error {
	var errs []error
	if strings.TrimSpace(s.Key) == "" {
		errs = append(errs, errors.New("key is required"))
	}
	if strings.TrimSpace(s.Role) == "" {
		errs = append(errs, errors.New("role is required"))
	}
	if s.MaxIterations < 1 {
		errs = append(errs, fmt.Errorf("max_iterations must be >= 1, got %d", s.MaxIterations))
	}
	if s.MaxCallsPerMinute < 1 {
		errs = append(errs, fmt.Errorf("max_calls_per_minute must be >= 1, got %d", s.MaxCallsPerMinute))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("agent %q: %w", s.Key, err)
	}
	return nil
}

// SystemPrompt is the persona text sent as the model's system instruction.
func (s Spec) SystemPrompt() string {
	var b strings.Builder
	b.WriteString("You are a ")
	b.WriteString(s.Role)
	b.WriteString(".\n")
	if s.Goal != "" {
		b.WriteString("Your goal: ")
		b.WriteString(s.Goal)
		b.WriteString("\n")
	}
	if s.Persona != "" {
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(s.Persona))
		b.WriteString("\n")
	}
	b.WriteString("\nBase every statement on the document and tool results. When you have enough information, reply with your final answer as plain text.")
	return b.String()
}

// CanUse reports whether the agent may call the named tool.
func (s Spec) CanUse(tool string) bool {
	for _, t := range s.Tools {
		if t == tool {
			return true
		}
	}
	return false
}

// withoutDelegation returns a copy that must answer itself.
func (s Spec) withoutDelegation() Spec {
	c := s
	c.Tools = append([]string(nil), s.Tools...)
	c.AllowDelegation = false
	return c
}
