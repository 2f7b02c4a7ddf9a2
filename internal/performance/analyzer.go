package performance

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"macro-regime-lab/internal/domain"
	"macro-regime-lab/internal/metrics"
)

// Sample-size floors for regime statistics.
const (
	MinRegimeDays        = 10
	MinAssetObservations = 5
	DefaultAnnualization = 252
)

// zeroVolatility is the annualized volatility, in percent, below which a
// series is treated as flat. It only absorbs float rounding on constant
// returns.
const zeroVolatility = 1e-9

// Performance computes a PerformanceRecord for every (regime, asset) pair in
// regimes x panel assets. Regimes with fewer than MinRegimeDays rows and
// assets with fewer than MinAssetObservations valid returns are skipped.
// Records are ordered by the regimes argument, then panel asset order.
func Performance(ctx context.Context, rp *ReturnsPanel, regimes []domain.Regime, annualization int) ([]domain.PerformanceRecord, error) {
	if err := rp.check(); err != nil {
		return nil, err
	}
	if annualization < 1 {
		return nil, fmt.Errorf("%w: annualization factor must be >= 1, got %d", domain.ErrPrecondition, annualization)
	}
	for _, r := range regimes {
		if !r.IsValid() {
			return nil, fmt.Errorf("%w: unknown regime %q", domain.ErrPrecondition, r)
		}
	}

	rows := rowsByRegime(rp.Labeled)
	assets := rp.Assets()

	type pair struct {
		regime domain.Regime
		asset  string
	}
	var pairs []pair
	for _, r := range regimes {
		if len(rows[r]) < MinRegimeDays {
			continue
		}
		for _, asset := range assets {
			pairs = append(pairs, pair{r, asset})
		}
	}

	// Pairs are independent; each goroutine writes only its own slot.
	results := make([]*domain.PerformanceRecord, len(pairs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, p := range pairs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			col := rp.returns[p.asset]
			sample := make([]float64, 0, len(rows[p.regime]))
			for _, idx := range rows[p.regime] {
				sample = append(sample, col[idx])
			}
			results[i] = computeRecord(p.regime, p.asset, metrics.Finite(sample), annualization)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]domain.PerformanceRecord, 0, len(results))
	for _, rec := range results {
		if rec != nil {
			out = append(out, *rec)
		}
	}
	return out, nil
}

// computeRecord returns nil when the sample is too small.
func computeRecord(regime domain.Regime, asset string, returns []float64, annualization int) *domain.PerformanceRecord {
	n := len(returns)
	if n < MinAssetObservations {
		return nil
	}

	factor := float64(annualization)
	annReturn := metrics.Mean(returns) * factor * 100
	annVol := metrics.SampleStddev(returns) * math.Sqrt(factor) * 100

	sharpe := 0.0
	if annVol > zeroVolatility {
		sharpe = annReturn / annVol
	}

	return &domain.PerformanceRecord{
		Regime:         regime,
		Asset:          asset,
		AnnReturnPct:   metrics.Round(annReturn, 2),
		AnnVolPct:      metrics.Round(annVol, 2),
		Sharpe:         metrics.Round(sharpe, 2),
		MaxDrawdownPct: metrics.Round(metrics.CompoundedDrawdown(returns)*100, 2),
		WinRatePct:     metrics.Round(metrics.WinRate(returns)*100, 1),
		Observations:   n,
	}
}

// rowsByRegime returns the row indexes carrying each label, in row order.
func rowsByRegime(lp *domain.LabeledPanel) map[domain.Regime][]int {
	out := make(map[domain.Regime][]int)
	for i, row := range lp.Rows {
		out[row.Regime] = append(out[row.Regime], i)
	}
	return out
}
