package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"macro-regime-lab/internal/domain"
	"macro-regime-lab/internal/orchestrator"
	"macro-regime-lab/internal/pipeline"
)

var reportOutputDir string

var reportCmd = &cobra.Command{
	Use:   "report RUN_ID",
	Short: "Regenerate the report of a stored run",
	Long: `Rebuilds the report directory of a run from the configured PostgreSQL and
ClickHouse stores. Sufficiency checks are recomputed from the stored labels.`,
	Args: cobra.ExactArgs(1),
	RunE: runReport,
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List stored runs",
	RunE:  runListRuns,
}

func init() {
	reportCmd.Flags().StringVar(&reportOutputDir, "output-dir", "", "Report directory (overrides output.dir)")
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(runsCmd)
}

func requirePersistentStores(a *app) error {
	if a.cfg.Storage.PostgresDSN == "" || a.cfg.Storage.ClickHouseDSN == "" {
		return fmt.Errorf("%w: storage.postgres_dsn and storage.clickhouse_dsn must be set", domain.ErrPrecondition)
	}
	return nil
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := requirePersistentStores(a); err != nil {
		return err
	}
	panels, results, err := a.stores(ctx)
	if err != nil {
		return err
	}

	outputDir := a.cfg.Output.Dir
	if reportOutputDir != "" {
		outputDir = reportOutputDir
	}

	report, err := pipeline.NewReportPipeline(panels, results, orchestrator.ReportOptions(a.cfg), outputDir).
		WithSufficiencyChecker(pipeline.NewSufficiencyChecker(a.cfg.Regime.QuarterlyLookbackDays, a.cfg.Shock.HorizonDays)).
		WithLogger(a.log).
		Run(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Report for run %s written to %s\n", report.Run.RunID, outputDir)
	return nil
}

func runListRuns(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if a.cfg.Storage.PostgresDSN == "" {
		return fmt.Errorf("%w: storage.postgres_dsn must be set", domain.ErrPrecondition)
	}
	_, results, err := a.stores(ctx)
	if err != nil {
		return err
	}
	runs, err := results.ListRuns(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN_ID\tCREATED_AT\tPERIOD\tROWS\tCONFIG_HASH")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s..%s\t%d\t%.12s\n",
			r.RunID,
			r.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
			r.StartDate.Format(domain.DateLayout),
			r.EndDate.Format(domain.DateLayout),
			r.Rows,
			r.ConfigHash)
	}
	return w.Flush()
}
