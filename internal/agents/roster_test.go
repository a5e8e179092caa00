package agents

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"findoc-backend/internal/tools"
)

func knownTools(name string) bool {
	switch name {
	case tools.ReadDocument, tools.WebSearch, tools.InvestmentAnalysis, tools.RiskAssessment:
		return true
	}
	return false
}

func TestDefaultRoster(t *testing.T) {
	r, err := LoadRoster("", knownTools)
	require.NoError(t, err)

	var keys []string
	for _, s := range r.All() {
		keys = append(keys, s.Key)
	}
	assert.Equal(t, []string{"verifier", "financial_analyst", "investment_advisor", "risk_assessor"}, keys)

	analyst, ok := r.Get("financial_analyst")
	require.True(t, ok)
	assert.True(t, analyst.CanUse(tools.WebSearch))
	assert.False(t, analyst.CanUse(tools.RiskAssessment))
	assert.Len(t, r.Coworkers("financial_analyst"), 3)

	_, ok = r.Get("intern")
	assert.False(t, ok)
}

func TestRosterRejectsInvalidSpecs(t *testing.T) {
	cases := map[string]string{
		"unknown tool": `
agents:
  - {key: a, role: A, tools: [teleport], max_iterations: 1, max_calls_per_minute: 1}
`,
		"zero iterations": `
agents:
  - {key: a, role: A, max_iterations: 0, max_calls_per_minute: 1}
`,
		"duplicate role": `
agents:
  - {key: a, role: Analyst, max_iterations: 1, max_calls_per_minute: 1}
  - {key: b, role: analyst, max_iterations: 1, max_calls_per_minute: 1}
`,
		"empty":   `agents: []`,
		"garbage": `agents: {`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRoster([]byte(doc), knownTools)
			assert.Error(t, err)
		})
	}
}

func TestLoadRosterFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agents.yaml")
	doc := "agents:\n  - {key: solo, role: Solo, tools: [web_search], max_iterations: 2, max_calls_per_minute: 5}\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	r, err := LoadRoster(path, knownTools)
	require.NoError(t, err)
	solo, ok := r.Get("solo")
	require.True(t, ok)
	assert.Equal(t, 2, solo.MaxIterations)

	_, err = LoadRoster(filepath.Join(t.TempDir(), "missing.yaml"), knownTools)
	assert.Error(t, err)
}

func TestRosterCopiesTools(t *testing.T) {
	r, err := NewRoster(nil, Spec{Key: "a", Role: "A", Tools: []string{"x"}, MaxIterations: 1, MaxCallsPerMinute: 1})
	require.NoError(t, err)

	s, _ := r.Get("a")
	s.Tools[0] = "mutated"
	again, _ := r.Get("a")
	assert.Equal(t, []string{"x"}, again.Tools)
}

func TestSystemPromptCarriesPersona(t *testing.T) {
	s := Spec{Role: "Senior Financial Analyst", Goal: "answer", Persona: "  Fifteen years in equity research. "}
	prompt := s.SystemPrompt()
	assert.Contains(t, prompt, "You are a Senior Financial Analyst.")
	assert.Contains(t, prompt, "Your goal: answer")
	assert.Contains(t, prompt, "Fifteen years in equity research.")
}
