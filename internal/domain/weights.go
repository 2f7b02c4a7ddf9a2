package domain

import (
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

// WeightTolerance is the allowed distance between the weight sum and 1.
var WeightTolerance = decimal.New(1, -6)

// Weights maps an asset to its portfolio weight.
type Weights map[string]float64

// Validate checks that weights are non-negative, finite and sum to 1 within WeightTolerance.
// The sum is computed in decimal so that e.g. 0.6+0.3+0.1 is exactly 1.
func (w Weights) Validate() error {
	if len(w) == 0 {
		return fmt.Errorf("%w: portfolio weights are empty", ErrPrecondition)
	}
	sum := decimal.Zero
	for _, asset := range w.Assets() {
		v := w[asset]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: weight for %s is not finite", ErrPrecondition, asset)
		}
		if v < 0 {
			return fmt.Errorf("%w: weight for %s is negative (%v)", ErrPrecondition, asset, v)
		}
		sum = sum.Add(decimal.NewFromFloat(v))
	}
	if sum.Sub(decimal.NewFromInt(1)).Abs().GreaterThanOrEqual(WeightTolerance) {
		return fmt.Errorf("%w: portfolio weights sum to %s, want 1", ErrPrecondition, sum.String())
	}
	return nil
}

// Assets returns the weighted assets sorted by name.
func (w Weights) Assets() []string {
	out := make([]string, 0, len(w))
	for asset := range w {
		out = append(out, asset)
	}
	sort.Strings(out)
	return out
}

// Apply returns the weighted sum of returns. Assets missing from returns contribute zero.
func (w Weights) Apply(returns map[string]float64) float64 {
	total := 0.0
	for _, asset := range w.Assets() {
		if r, ok := returns[asset]; ok {
			total += w[asset] * r
		}
	}
	return total
}
