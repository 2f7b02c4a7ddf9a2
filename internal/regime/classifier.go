// Package regime labels each trading day TIGHTENING, EASING, STRESS or NORMAL.
//
// Labels are produced by a single chronological fold over the panel. The
// fold state holds only trailing windows, so a day's label depends on that
// day and earlier rows and never on later ones.
package regime

import (
	"fmt"
	"math"

	"macro-regime-lab/internal/domain"
)

// Config holds the classifier parameters.
type Config struct {
	QuarterlyLookback         int     // trading days for rate/yield change
	RateChangeThreshold       float64 // percentage points
	VolatilityStressThreshold float64
	VolatilityLookback        int // trading days for the volatility moving average
}

// Validate checks that every parameter is in range.
func (c Config) Validate() error {
	if c.QuarterlyLookback < 1 {
		return fmt.Errorf("%w: quarterly lookback must be >= 1, got %d", domain.ErrPrecondition, c.QuarterlyLookback)
	}
	if c.VolatilityLookback < 1 {
		return fmt.Errorf("%w: volatility lookback must be >= 1, got %d", domain.ErrPrecondition, c.VolatilityLookback)
	}
	if !(c.RateChangeThreshold > 0) {
		return fmt.Errorf("%w: rate change threshold must be > 0", domain.ErrPrecondition)
	}
	if !(c.VolatilityStressThreshold > 0) {
		return fmt.Errorf("%w: volatility stress threshold must be > 0", domain.ErrPrecondition)
	}
	return nil
}

// Classify labels every row of the panel. The input panel is not modified.
func Classify(panel *domain.Panel, cfg Config) (*domain.LabeledPanel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := panel.Validate(); err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}

	out := &domain.LabeledPanel{
		Assets: append([]string(nil), panel.Assets...),
		Rows:   make([]domain.LabeledObservation, 0, len(panel.Rows)),
	}
	acc := newAccumulator(cfg)
	for _, obs := range panel.Rows {
		var row domain.LabeledObservation
		acc, row = acc.step(obs)
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

// Label applies the priority rules to one day's derived values:
// STRESS, then TIGHTENING, then EASING, otherwise NORMAL.
// NaN inputs never satisfy a condition.
func Label(volatilityMA, rateChange, yieldChange float64, cfg Config) domain.Regime {
	thr := cfg.RateChangeThreshold
	switch {
	case volatilityMA > cfg.VolatilityStressThreshold:
		return domain.RegimeStress
	case rateChange > thr || yieldChange > thr:
		return domain.RegimeTightening
	case rateChange < -thr || yieldChange < -thr:
		return domain.RegimeEasing
	default:
		return domain.RegimeNormal
	}
}

// accumulator is the fold state. step returns a new value and leaves the
// receiver's history untouched so earlier states stay valid.
type accumulator struct {
	cfg    Config
	t      int       // index of the next row
	rates  []float64 // last QuarterlyLookback policy rates
	yields []float64 // last QuarterlyLookback long yields
	vols   []float64 // last VolatilityLookback volatility readings
}

func newAccumulator(cfg Config) accumulator {
	return accumulator{cfg: cfg}
}

func (a accumulator) step(obs domain.Observation) (accumulator, domain.LabeledObservation) {
	lookback := a.cfg.QuarterlyLookback

	rateChange, yieldChange := math.NaN(), math.NaN()
	if len(a.rates) == lookback {
		rateChange = obs.PolicyRate - a.rates[0]
		yieldChange = obs.LongYield - a.yields[0]
	}

	next := accumulator{
		cfg:    a.cfg,
		t:      a.t + 1,
		rates:  pushWindow(a.rates, obs.PolicyRate, lookback),
		yields: pushWindow(a.yields, obs.LongYield, lookback),
		vols:   pushWindow(a.vols, obs.Volatility, a.cfg.VolatilityLookback),
	}
	volMA := trailingMean(next.vols)

	regime := domain.RegimeNormal
	if a.t >= lookback {
		regime = Label(volMA, rateChange, yieldChange, a.cfg)
	}

	return next, domain.LabeledObservation{
		Observation:  obs.Clone(),
		RateChange:   rateChange,
		YieldChange:  yieldChange,
		VolatilityMA: volMA,
		Regime:       regime,
	}
}

// pushWindow returns a new window with v appended, keeping at most size values.
func pushWindow(window []float64, v float64, size int) []float64 {
	start := 0
	if len(window) >= size {
		start = len(window) - size + 1
	}
	out := make([]float64, 0, size)
	out = append(out, window[start:]...)
	return append(out, v)
}

// trailingMean averages the non-NaN values, matching a rolling mean with a
// one-observation minimum.
func trailingMean(window []float64) float64 {
	sum, n := 0.0, 0
	for _, v := range window {
		if !math.IsNaN(v) {
			sum += v
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}
