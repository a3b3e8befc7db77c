package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tdr-agent/internal/batch"
	"tdr-agent/internal/reporter"
)

func newBatchCmd(opts *rootOptions) *cobra.Command {
	var (
		input     string
		workers   int
		outputDir string
		formats   []string
	)

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Resolve every query in a file and write a report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if input == "" {
				return newUsageError("--input is required")
			}

			queries, err := batch.Load(input)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			if workers > 0 {
				a.settings.Batch.Workers = workers
			}
			if outputDir != "" {
				a.settings.Reporting.OutputDir = outputDir
			}
			if len(formats) > 0 {
				a.settings.Reporting.Format = formats
			}

			start := time.Now()
			outcomes, err := batch.NewRunner(a.pipeline, a.settings.Batch.Workers).Run(cmd.Context(), queries)
			if err != nil {
				return err
			}
			report := reporter.NewReport(outcomes, time.Since(start))

			paths, err := reporter.NewReporter(a.settings.Reporting).Write(report)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Resolved %d queries: %d rule-based, %d model-assisted, %d failed\n",
				report.TotalQueries, report.RuleBased, report.ModelAssisted, report.Failed)
			if report.Mismatched > 0 {
				fmt.Fprintf(out, "%d queries resolved to an unexpected endpoint\n", report.Mismatched)
			}
			for _, p := range paths {
				fmt.Fprintf(out, "Report written to %s\n", p)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "query file (json, yaml or one query per line)")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "concurrent resolutions (overrides settings)")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "report directory (overrides settings)")
	cmd.Flags().StringSliceVar(&formats, "format", nil, "report formats: json, yaml")
	return cmd
}
