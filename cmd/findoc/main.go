// Command findoc runs the analysis pipeline from a terminal and inspects its agents and prompts.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "findoc",
	Short:         "Financial document analyzer CLI",
	Long:          `findoc runs the four-stage financial analysis pipeline on a local PDF and shows the agents and prompts behind it.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var agentsFile string

func init() {
	rootCmd.PersistentFlags().StringVar(&agentsFile, "agents", "", "agents YAML file (overrides AGENTS_FILE)")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(agentsCmd)
	rootCmd.AddCommand(promptCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
