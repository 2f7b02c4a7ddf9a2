package regime

import (
	"context"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"

	"macro-regime-lab/internal/domain"
)

// SensitivityPoint is the regime distribution for one threshold pair.
type SensitivityPoint struct {
	RateChangeThreshold       float64
	VolatilityStressThreshold float64
	Summary                   []domain.RegimeSummary
	Transitions               int
}

// Days returns the day count for r, or 0 if r never occurs.
func (p SensitivityPoint) Days(r domain.Regime) int {
	for _, s := range p.Summary {
		if s.Regime == r {
			return s.Days
		}
	}
	return 0
}

// Sensitivity reclassifies the panel for every combination of rate-change and
// volatility thresholds. Other parameters come from base. Points are ordered
// by rate threshold, then volatility threshold, as given.
func Sensitivity(ctx context.Context, panel *domain.Panel, base Config, rateThresholds, volThresholds []float64) ([]SensitivityPoint, error) {
	points := make([]SensitivityPoint, len(rateThresholds)*len(volThresholds))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, rate := range rateThresholds {
		for j, vol := range volThresholds {
			idx := i*len(volThresholds) + j
			cfg := base
			cfg.RateChangeThreshold = rate
			cfg.VolatilityStressThreshold = vol

			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				lp, err := Classify(panel, cfg)
				if err != nil {
					return err
				}
				summary, err := Summarize(lp)
				if err != nil {
					return err
				}
				points[idx] = SensitivityPoint{
					RateChangeThreshold:       rate,
					VolatilityStressThreshold: vol,
					Summary:                   summary,
					Transitions:               len(slices.Collect(Transitions(lp))),
				}
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return points, nil
}
