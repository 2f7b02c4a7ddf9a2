package scenario

import (
	"fmt"
	"math"
	"sort"

	"macro-regime-lab/internal/domain"
	"macro-regime-lab/internal/metrics"
)

var tableRows = []struct {
	scenario   string
	percentile float64
}{
	{domain.ScenarioTail, 0.10},
	{domain.ScenarioMedian, 0.50},
	{domain.ScenarioBest, 0.90},
}

// StressTest applies weights to every response and summarizes the resulting
// portfolio return distribution. Assets listed in weights but absent from a
// response contribute zero. assets fixes the table column order; when empty,
// every asset seen in the responses is used, sorted by name.
//
// Zero responses return ErrInsufficientSample.
func StressTest(responses []domain.ShockResponse, assets []string, weights domain.Weights) (*domain.StressResult, error) {
	if len(responses) == 0 {
		return nil, fmt.Errorf("%w: stress test needs at least one shock response", domain.ErrInsufficientSample)
	}
	if len(weights) == 0 {
		return nil, fmt.Errorf("%w: stress test needs portfolio weights", domain.ErrPrecondition)
	}
	if len(assets) == 0 {
		assets = responseAssets(responses)
	}

	portfolio := make([]float64, len(responses))
	for i, r := range responses {
		portfolio[i] = weights.Apply(r.Returns)
	}

	sorted := metrics.Sorted(portfolio)
	lo, hi := metrics.MinMax(portfolio)
	result := &domain.StressResult{
		Summary: domain.StressSummary{
			Median: metrics.Percentile(sorted, 0.50),
			P10:    metrics.Percentile(sorted, 0.10),
			P90:    metrics.Percentile(sorted, 0.90),
			Mean:   metrics.Mean(portfolio),
			Std:    metrics.PopulationStddev(portfolio),
			Min:    lo,
			Max:    hi,
			Count:  len(portfolio),
		},
		Assets:           append([]string(nil), assets...),
		PortfolioReturns: portfolio,
	}

	byAsset := make(map[string][]float64, len(assets))
	for _, asset := range assets {
		var values []float64
		for _, r := range responses {
			if v, ok := r.Returns[asset]; ok && !math.IsNaN(v) {
				values = append(values, v)
			}
		}
		byAsset[asset] = metrics.Sorted(values)
	}

	for _, tr := range tableRows {
		row := domain.PercentileRow{
			Scenario:   tr.scenario,
			Percentile: tr.percentile,
			Assets:     make(map[string]float64, len(assets)),
			Portfolio:  metrics.Percentile(sorted, tr.percentile),
		}
		for _, asset := range assets {
			if values := byAsset[asset]; len(values) > 0 {
				row.Assets[asset] = metrics.Percentile(values, tr.percentile)
			}
		}
		result.Table = append(result.Table, row)
	}
	return result, nil
}

func responseAssets(responses []domain.ShockResponse) []string {
	seen := make(map[string]struct{})
	for _, r := range responses {
		for asset := range r.Returns {
			seen[asset] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for asset := range seen {
		out = append(out, asset)
	}
	sort.Strings(out)
	return out
}
