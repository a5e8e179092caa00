package pipeline

import (
	"fmt"

	"findoc-backend/internal/agents"
	"findoc-backend/internal/prompts"
)

const (
	StageVerification = "verification"
	StageAnalysis     = "analysis"
	StageInvestment   = "investment"
	StageRisk         = "risk"
)

type stageDef struct {
	name      string
	agent     string
	dependsOn []string
	loadsDoc  bool
}

var financialStages = []stageDef{
	{name: StageVerification, agent: "verifier", loadsDoc: true},
	{name: StageAnalysis, agent: "financial_analyst", dependsOn: []string{StageVerification}},
	{name: StageInvestment, agent: "investment_advisor", dependsOn: []string{StageVerification, StageAnalysis}},
	{name: StageRisk, agent: "risk_assessor", dependsOn: []string{StageVerification, StageAnalysis, StageInvestment}},
}

// Financial builds the four-stage document review: verification, analysis, investment advice,
// risk assessment. Templates are looked up by stage name.
func Financial(roster *agents.Roster) (*Pipeline, error) {
	stages := make([]Stage, 0, len(financialStages))
	for _, def := range financialStages {
		spec, ok := roster.Get(def.agent)
		if !ok {
			return nil, fmt.Errorf("stage %q: agent %q not in roster", def.name, def.agent)
		}
		tmpl, err := prompts.Lookup(def.name)
		if err != nil {
			return nil, fmt.Errorf("stage %q: %w", def.name, err)
		}
		stages = append(stages, Stage{
			Name:          def.name,
			Agent:         spec,
			Template:      tmpl,
			DependsOn:     def.dependsOn,
			LoadsDocument: def.loadsDoc,
		})
	}
	return New(stages...)
}
