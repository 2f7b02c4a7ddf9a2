package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"macro-regime-lab/internal/domain"
	"macro-regime-lab/internal/regime"
	"macro-regime-lab/internal/reporting"
)

var (
	sensitivityRates []float64
	sensitivityVols  []float64
)

var sensitivityCmd = &cobra.Command{
	Use:   "sensitivity",
	Short: "Reclassify over a grid of thresholds",
	Long: `Reclassifies the panel for every pair of rate-change and volatility thresholds
and prints the regime day counts of each pair as CSV.`,
	RunE: runSensitivity,
}

func init() {
	sensitivityCmd.Flags().Float64SliceVar(&sensitivityRates, "rate", nil, "Rate-change thresholds (overrides sensitivity.rate_thresholds)")
	sensitivityCmd.Flags().Float64SliceVar(&sensitivityVols, "vol", nil, "Volatility thresholds (overrides sensitivity.volatility_thresholds)")
	rootCmd.AddCommand(sensitivityCmd)
}

func runSensitivity(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	rates, vols := a.cfg.Sensitivity.RateThresholds, a.cfg.Sensitivity.VolatilityThresholds
	if len(sensitivityRates) > 0 {
		rates = sensitivityRates
	}
	if len(sensitivityVols) > 0 {
		vols = sensitivityVols
	}
	if len(rates) == 0 || len(vols) == 0 {
		return fmt.Errorf("%w: both threshold grids must be non-empty", domain.ErrPrecondition)
	}

	panel, err := a.loadPanel(ctx)
	if err != nil {
		return err
	}
	points, err := regime.Sensitivity(ctx, panel, a.cfg.RegimeConfig(), rates, vols)
	if err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), reporting.RenderSensitivityCSV(points))
	return nil
}
