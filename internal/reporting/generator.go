package reporting

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"macro-regime-lab/internal/domain"
	"macro-regime-lab/internal/performance"
	"macro-regime-lab/internal/regime"
	"macro-regime-lab/internal/scenario"
	"macro-regime-lab/internal/storage"
)

// Options selects the derived views computed at report time.
type Options struct {
	Weights              domain.Weights
	CorrelationPair      [2]string
	CorrelationWindow    int
	Regime               regime.Config
	RateThresholds       []float64
	VolatilityThresholds []float64
	HorizonDays          int
}

// Generator produces reports from stored data.
type Generator struct {
	panelStore  storage.PanelStore
	resultStore storage.ResultStore
	opts        Options
	now         func() time.Time // Injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(panelStore storage.PanelStore, resultStore storage.ResultStore, opts Options) *Generator {
	return &Generator{
		panelStore:  panelStore,
		resultStore: resultStore,
		opts:        opts,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate builds the report for a stored run. Labels, performance records,
// shock events and responses come from the stores; the stress table,
// correlation summary and sensitivity grid are recomputed from them.
// DataQuality is left empty for the caller to fill.
func (g *Generator) Generate(ctx context.Context, runID string) (*Report, error) {
	run, err := g.resultStore.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}

	lp, err := g.panelStore.GetLabels(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("get labels for run %s: %w", runID, err)
	}

	summary, err := regime.Summarize(lp)
	if err != nil {
		return nil, err
	}

	perf, err := g.resultStore.GetPerformance(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("get performance: %w", err)
	}

	correlation, err := g.correlation(lp)
	if err != nil {
		return nil, err
	}

	shock, err := g.shock(ctx, runID, lp.Assets)
	if err != nil {
		return nil, err
	}

	var sensitivity []regime.SensitivityPoint
	if len(g.opts.RateThresholds) > 0 && len(g.opts.VolatilityThresholds) > 0 {
		sensitivity, err = regime.Sensitivity(ctx, lp.Panel(), g.opts.Regime, g.opts.RateThresholds, g.opts.VolatilityThresholds)
		if err != nil {
			return nil, fmt.Errorf("sensitivity: %w", err)
		}
	}

	return &Report{
		GeneratedAt: g.now(),
		Run:         run,
		Weights:     g.opts.Weights,
		Regimes:     summary,
		Transitions: slices.Collect(regime.Transitions(lp)),
		Performance: perf,
		Correlation: correlation,
		Shock:       shock,
		Sensitivity: sensitivity,
	}, nil
}

// correlation summarizes the configured pair by regime. A pair missing from
// the panel leaves the section empty.
func (g *Generator) correlation(lp *domain.LabeledPanel) (CorrelationSection, error) {
	section := CorrelationSection{Window: g.opts.CorrelationWindow}
	a, b := g.opts.CorrelationPair[0], g.opts.CorrelationPair[1]
	if a == "" || b == "" || !slices.Contains(lp.Assets, a) || !slices.Contains(lp.Assets, b) {
		return section, nil
	}

	rp, err := performance.Returns(lp)
	if err != nil {
		return section, err
	}
	corr, err := performance.RollingCorrelation(rp, a, b, g.opts.CorrelationWindow)
	if err != nil {
		return section, fmt.Errorf("rolling correlation: %w", err)
	}
	byRegime, err := performance.CorrelationByRegime(rp, corr)
	if err != nil {
		return section, fmt.Errorf("correlation by regime: %w", err)
	}

	section.Name = corr.Name
	section.ByRegime = byRegime
	return section, nil
}

func (g *Generator) shock(ctx context.Context, runID string, assets []string) (ShockSection, error) {
	section := ShockSection{HorizonDays: g.opts.HorizonDays}

	events, err := g.resultStore.GetShockEvents(ctx, runID)
	if err != nil {
		return section, fmt.Errorf("get shock events: %w", err)
	}
	responses, err := g.resultStore.GetResponses(ctx, runID)
	if err != nil {
		return section, fmt.Errorf("get shock responses: %w", err)
	}
	section.Events = events
	section.Responses = responses

	stress, err := scenario.StressTest(responses, assets, g.opts.Weights)
	switch {
	case errors.Is(err, domain.ErrInsufficientSample):
		section.Unavailable = InsufficientShocks
		return section, nil
	case err != nil:
		return section, fmt.Errorf("stress test: %w", err)
	}
	section.Stress = stress
	return section, nil
}
