package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"macro-regime-lab/internal/domain"
	"macro-regime-lab/internal/orchestrator"
)

var (
	runOutputDir string
	runID        string
	runNoReport  bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full analysis and write the report",
	Long: `Acquires and aligns the panel, classifies regimes, computes regime-conditioned
performance and correlation, detects rate shocks, runs the stress test and the
threshold sensitivity grid, stores the results and writes the report directory.`,
	RunE: runAnalysis,
}

func init() {
	runCmd.Flags().StringVar(&runOutputDir, "output-dir", "", "Report directory (overrides output.dir)")
	runCmd.Flags().StringVar(&runID, "run-id", "", "Run identifier (random UUID when empty)")
	runCmd.Flags().BoolVar(&runNoReport, "no-report", false, "Store results without writing report files")
	rootCmd.AddCommand(runCmd)
}

func runAnalysis(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	panels, results, err := a.stores(ctx)
	if err != nil {
		return err
	}
	src, err := a.source(ctx)
	if err != nil {
		return err
	}

	outputDir := a.cfg.Output.Dir
	if runOutputDir != "" {
		outputDir = runOutputDir
	}
	if runNoReport {
		outputDir = ""
	}

	opts := orchestrator.Options{
		PanelStore:  panels,
		ResultStore: results,
		Source:      src,
		Config:      a.cfg,
		Logger:      a.log,
		Metrics:     a.metrics,
		OutputDir:   outputDir,
	}
	if runID != "" {
		id := runID
		opts.NewRunID = func() string { return id }
	}

	result, err := orchestrator.New(opts).Run(ctx)
	a.pushMetrics(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s completed:\n", result.Run.RunID)
	fmt.Fprintf(out, "  Rows: %d (%s to %s)\n", result.Run.Rows,
		result.Run.StartDate.Format(domain.DateLayout), result.Run.EndDate.Format(domain.DateLayout))
	for _, s := range result.Summary {
		fmt.Fprintf(out, "  %-10s %5d days (%5.1f%%)\n", s.Regime, s.Days, s.Percentage)
	}
	fmt.Fprintf(out, "  Transitions: %d\n", len(result.Transitions))
	fmt.Fprintf(out, "  Shock events: %d, responses: %d\n", len(result.Events), len(result.Responses))
	if result.Stress != nil {
		fmt.Fprintf(out, "  Portfolio shock return: median %.2f%%, p10 %.2f%%, p90 %.2f%%\n",
			result.Stress.Summary.Median, result.Stress.Summary.P10, result.Stress.Summary.P90)
	}
	if len(result.Warnings) > 0 {
		fmt.Fprintf(out, "  Warnings: %d\n", len(result.Warnings))
	}
	if outputDir != "" {
		fmt.Fprintf(out, "  Report: %s\n", outputDir)
	}
	return nil
}
