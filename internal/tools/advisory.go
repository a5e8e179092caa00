package tools

import (
	"context"
	"fmt"
	"strings"

	"findoc-backend/internal/llm"
)

// Note acknowledges a request for a specialist analysis. The agent's own reasoning does the work;
// the tool gives it a place to record the focus of that analysis.
type Note struct {
	name        string
	description string
	label       string
}

// NewInvestmentAnalysis returns the investment_analysis tool.
func NewInvestmentAnalysis() Note {
	return Note{name: InvestmentAnalysis, label: "Investment analysis", description: "Record the focus of an investment analysis (ticker, thesis, horizon)."}
}

// NewRiskAssessment returns the risk_assessment tool.
func NewRiskAssessment() Note {
	return Note{name: RiskAssessment, label: "Risk assessment", description: "Record the focus of a risk assessment (risk category, exposure)."}
}

func (n Note) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{Name: n.name, Description: n.description}
}

func (n Note) Run(ctx context.Context, env Env, input string) (string, error) {
	focus := strings.TrimSpace(input)
	if focus == "" {
		focus = env.Query
	}
	return fmt.Sprintf("%s for '%s' has been noted and will be incorporated.", n.label, focus), nil
}
