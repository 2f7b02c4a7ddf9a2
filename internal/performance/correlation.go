package performance

import (
	"fmt"
	"math"
	"sort"

	"macro-regime-lab/internal/domain"
	"macro-regime-lab/internal/metrics"
)

// RollingCorrelation computes the trailing Pearson correlation of two assets'
// returns. A row is NaN until its window holds `window` rows where both
// returns are defined.
func RollingCorrelation(rp *ReturnsPanel, assetA, assetB string, window int) (domain.Series, error) {
	a, err := rp.Column(assetA)
	if err != nil {
		return domain.Series{}, err
	}
	b, err := rp.Column(assetB)
	if err != nil {
		return domain.Series{}, err
	}
	if window < 2 {
		return domain.Series{}, fmt.Errorf("%w: correlation window must be >= 2, got %d", domain.ErrPrecondition, window)
	}

	out := make([]float64, len(a))
	xs := make([]float64, 0, window)
	ys := make([]float64, 0, window)
	for i := range a {
		out[i] = math.NaN()
		if i+1 < window {
			continue
		}
		xs, ys = xs[:0], ys[:0]
		for j := i - window + 1; j <= i; j++ {
			if math.IsNaN(a[j]) || math.IsNaN(b[j]) {
				break
			}
			xs = append(xs, a[j])
			ys = append(ys, b[j])
		}
		if len(xs) == window {
			out[i] = metrics.Pearson(xs, ys)
		}
	}

	return domain.Series{Name: CorrelationName(assetA, assetB), Values: out}, nil
}

// CorrelationName is the column name for a pairwise correlation series.
func CorrelationName(assetA, assetB string) string {
	return assetA + "_" + assetB + "_CORR"
}

// CorrelationByRegime summarizes a correlation series within each regime,
// skipping undefined rows. Regimes without defined values are omitted;
// the rest follow reporting order.
func CorrelationByRegime(rp *ReturnsPanel, corr domain.Series) ([]domain.CorrelationSummary, error) {
	if err := rp.check(); err != nil {
		return nil, err
	}
	if len(corr.Values) != rp.Len() {
		return nil, fmt.Errorf("%w: correlation series has %d rows, panel has %d",
			domain.ErrPrecondition, len(corr.Values), rp.Len())
	}

	byRegime := make(map[domain.Regime][]float64)
	for i, row := range rp.Labeled.Rows {
		if v := corr.Values[i]; !math.IsNaN(v) {
			byRegime[row.Regime] = append(byRegime[row.Regime], v)
		}
	}

	out := make([]domain.CorrelationSummary, 0, len(byRegime))
	for r, values := range byRegime {
		lo, hi := metrics.MinMax(values)
		std := math.NaN()
		if len(values) > 1 {
			std = metrics.SampleStddev(values)
		}
		out = append(out, domain.CorrelationSummary{
			Regime: r,
			Mean:   metrics.Mean(values),
			Std:    std,
			Min:    lo,
			Max:    hi,
			Count:  len(values),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Regime.Ordinal() < out[j].Regime.Ordinal()
	})
	return out, nil
}

// PortfolioReturns computes the weighted sum of asset returns on each row.
// Weighted assets without a returns column contribute zero. Weights are
// validated once at configuration time and are not re-checked here.
func PortfolioReturns(rp *ReturnsPanel, weights domain.Weights) (domain.Series, error) {
	if err := rp.check(); err != nil {
		return domain.Series{}, err
	}

	out := make([]float64, rp.Len())
	row := make(map[string]float64, len(rp.returns))
	for i := range out {
		for asset, col := range rp.returns {
			row[asset] = col[i]
		}
		out[i] = weights.Apply(row)
	}
	return domain.Series{Name: "PORTFOLIO_RET", Values: out}, nil
}
