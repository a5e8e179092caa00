package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"findoc-backend/internal/agents"
	"findoc-backend/internal/documents"
	"findoc-backend/internal/pipeline"
	"findoc-backend/internal/prompts"
	"findoc-backend/internal/tools"
)

var (
	agentsYAML  bool
	promptQuery string
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List the agent roster",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		roster, err := loadRoster()
		if err != nil {
			return err
		}
		return printAgents(cmd.OutOrStdout(), roster, agentsYAML)
	},
}

var promptCmd = &cobra.Command{
	Use:   "prompt <stage>",
	Short: "Render a stage prompt with placeholder upstream outputs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		roster, err := loadRoster()
		if err != nil {
			return err
		}
		p, err := pipeline.Financial(roster)
		if err != nil {
			return err
		}
		return printPrompt(cmd.OutOrStdout(), p, args[0], promptQuery)
	},
}

func init() {
	agentsCmd.Flags().BoolVar(&agentsYAML, "yaml", false, "print the roster as YAML")
	promptCmd.Flags().StringVarP(&promptQuery, "query", "q", "", "query to render into the prompt")
}

func loadRoster() (*agents.Roster, error) {
	path := agentsFile
	if path == "" {
		path = os.Getenv("AGENTS_FILE")
	}
	registry, err := tools.NewRegistry(
		tools.DocumentReader{},
		tools.NewSearch(""),
		tools.NewInvestmentAnalysis(),
		tools.NewRiskAssessment(),
	)
	if err != nil {
		return nil, err
	}
	return agents.LoadRoster(path, registry.Has)
}

func printAgents(w io.Writer, roster *agents.Roster, asYAML bool) error {
	specs := roster.All()
	if asYAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(map[string]any{"agents": specs}); err != nil {
			return err
		}
		return enc.Close()
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tROLE\tTOOLS\tITERATIONS\tCALLS/MIN\tDELEGATES")
	for _, s := range specs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%t\n",
			s.Key, s.Role, strings.Join(s.Tools, ","), s.MaxIterations, s.MaxCallsPerMinute, s.AllowDelegation)
	}
	return tw.Flush()
}

func printPrompt(w io.Writer, p *pipeline.Pipeline, stageName, query string) error {
	for _, st := range p.Stages() {
		if st.Name != stageName {
			continue
		}
		prior := make(map[string]string, len(st.DependsOn))
		for _, dep := range st.DependsOn {
			prior[dep] = fmt.Sprintf("<output of %s>", dep)
		}
		text, err := st.Template.Render(prompts.Data{
			Query:    documents.EffectiveQuery(query),
			Document: prompts.DocumentRef{ID: "example", FileName: "example.pdf", Pages: 1},
			Prior:    prior,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "# %s (%s)\n\n%s\n\n%s\n", st.Name, st.Agent.Role, st.Agent.SystemPrompt(), text)
		return nil
	}
	return fmt.Errorf("unknown stage %q (want one of %s)", stageName, strings.Join(p.Names(), ", "))
}
