package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"findoc-backend/internal/bootstrap"
	"findoc-backend/internal/pipeline"
	"findoc-backend/internal/shared/config"
)

var (
	analyzeQuery string
	analyzeRaw   bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file.pdf>",
	Short: "Run the pipeline on a PDF and print the final report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAnalyze(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), args[0])
	},
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeQuery, "query", "q", "", "question to answer (defaults to a comprehensive analysis)")
	analyzeCmd.Flags().BoolVar(&analyzeRaw, "raw", false, "print the report without markdown rendering")
}

func runAnalyze(ctx context.Context, stdout, stderr io.Writer, path string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := config.Load()
	cfg.QueueType = "local"
	cfg.ArchiveType = "none"
	cfg.LocalStoreDir = filepath.Join(os.TempDir(), "findoc")
	if agentsFile != "" {
		cfg.AgentsFile = agentsFile
	}

	app, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()
	app.Executor.Observer = pipeline.Observers{pipeline.MetricsObserver{}, progress{w: stderr}}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	doc, err := app.Documents.Accept(ctx, filepath.Base(path), f)
	if err != nil {
		return err
	}
	output, err := app.Jobs.RunSync(ctx, analyzeQuery, doc)
	if err != nil {
		return err
	}
	return printReport(stdout, output, analyzeRaw)
}

func printReport(w io.Writer, report string, raw bool) error {
	if !raw {
		r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
		if err == nil {
			if rendered, err := r.Render(report); err == nil {
				report = rendered
			}
		}
	}
	_, err := fmt.Fprintln(w, report)
	return err
}

// progress prints one line per stage transition.
type progress struct {
	w io.Writer
}

func (p progress) OnStageStart(name string, index int) {
	fmt.Fprintf(p.w, "[%d] %s ...\n", index+1, name)
}

func (p progress) OnStageFinish(name string, index int, elapsed time.Duration, err error) {
	if err != nil {
		fmt.Fprintf(p.w, "[%d] %s failed after %s: %v\n", index+1, name, elapsed.Round(time.Millisecond), err)
		return
	}
	fmt.Fprintf(p.w, "[%d] %s done in %s\n", index+1, name, elapsed.Round(time.Millisecond))
}
