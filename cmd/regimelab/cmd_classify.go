package main

import (
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"macro-regime-lab/internal/regime"
	"macro-regime-lab/internal/reporting"
)

var (
	classifyLabelsOut      string
	classifyTransitionsOut string
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Label every day with a regime",
	Long: `Classifies the panel and prints the regime summary as CSV. The labeled panel
and the transition list are written to files when requested.`,
	RunE: runClassify,
}

func init() {
	classifyCmd.Flags().StringVar(&classifyLabelsOut, "labels", "", "Write the labeled panel CSV to this path")
	classifyCmd.Flags().StringVar(&classifyTransitionsOut, "transitions", "", "Write the transitions CSV to this path")
	rootCmd.AddCommand(classifyCmd)
}

func runClassify(cmd *cobra.Command, _ []string) error {
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
	lp, err := regime.Classify(panel, a.cfg.RegimeConfig())
	if err != nil {
		return err
	}
	summary, err := regime.Summarize(lp)
	if err != nil {
		return err
	}
	transitions := slices.Collect(regime.Transitions(lp))

	if err := writeFile(classifyLabelsOut, reporting.RenderLabeledPanelCSV(lp)); err != nil {
		return err
	}
	if err := writeFile(classifyTransitionsOut, reporting.RenderTransitionsCSV(transitions)); err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), reporting.RenderRegimeSummaryCSV(summary))
	fmt.Fprintf(cmd.ErrOrStderr(), "%d rows, %d transitions\n", lp.Len(), len(transitions))
	return nil
}

// writeFile writes content to path. An empty path writes nothing.
func writeFile(path, content string) error {
	if path == "" {
		return nil
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
