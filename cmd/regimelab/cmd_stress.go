package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"macro-regime-lab/internal/domain"
	"macro-regime-lab/internal/reporting"
	"macro-regime-lab/internal/scenario"
)

var stressEventsOut string

var stressCmd = &cobra.Command{
	Use:   "stress",
	Short: "Detect rate shocks and run the stress test",
	Long: `Detects long-yield shocks, measures every asset's return over the forward
horizon and prints the percentile table of asset and portfolio returns as CSV.`,
	RunE: runStress,
}

func init() {
	stressCmd.Flags().StringVar(&stressEventsOut, "events", "", "Write the shock events CSV to this path")
	rootCmd.AddCommand(stressCmd)
}

func runStress(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	panel, err := a.loadPanel(ctx)
	if err != nil {
		return err
	}

	scfg := a.cfg.ScenarioConfig()
	events, err := scenario.Detect(panel, scfg)
	if err != nil {
		return err
	}
	responses, _, err := scenario.MeasureResponses(ctx, panel, events, scfg)
	if err != nil {
		return err
	}
	if err := writeFile(stressEventsOut, reporting.RenderShockEventsCSV(events, responses, panel.Assets)); err != nil {
		return err
	}

	stress, err := scenario.StressTest(responses, panel.Assets, a.cfg.Weights())
	if errors.Is(err, domain.ErrInsufficientSample) {
		fmt.Fprintln(cmd.OutOrStdout(), reporting.InsufficientShocks)
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), reporting.RenderShockTableCSV(stress))
	fmt.Fprintf(cmd.ErrOrStderr(), "%d shock events, %d responses\n", len(events), len(responses))
	return nil
}
