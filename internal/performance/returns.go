// Package performance computes daily returns and regime-conditioned statistics.
package performance

import (
	"fmt"
	"math"

	"macro-regime-lab/internal/domain"
)

// ReturnsPanel is a labeled panel with one simple-return column per asset.
// Only Returns produces a ReturnsPanel, so holding one proves returns exist.
type ReturnsPanel struct {
	Labeled *domain.LabeledPanel
	returns map[string][]float64
}

// Returns computes the simple daily return of every asset.
// The first row is NaN.
func Returns(lp *domain.LabeledPanel) (*ReturnsPanel, error) {
	if err := lp.Validate(); err != nil {
		return nil, fmt.Errorf("returns: %w", err)
	}

	cols := make(map[string][]float64, len(lp.Assets))
	for _, asset := range lp.Assets {
		col := make([]float64, len(lp.Rows))
		col[0] = math.NaN()
		for i := 1; i < len(lp.Rows); i++ {
			prev, okPrev := lp.Rows[i-1].Prices[asset]
			cur, okCur := lp.Rows[i].Prices[asset]
			if !okPrev || !okCur || prev == 0 {
				col[i] = math.NaN()
				continue
			}
			col[i] = cur/prev - 1
		}
		cols[asset] = col
	}

	return &ReturnsPanel{Labeled: lp, returns: cols}, nil
}

// Len returns the number of rows.
func (rp *ReturnsPanel) Len() int {
	if rp == nil {
		return 0
	}
	return rp.Labeled.Len()
}

// Assets returns the assets that have a return column, in panel order.
func (rp *ReturnsPanel) Assets() []string {
	out := make([]string, 0, len(rp.returns))
	for _, asset := range rp.Labeled.Assets {
		if _, ok := rp.returns[asset]; ok {
			out = append(out, asset)
		}
	}
	return out
}

// Column returns a copy of an asset's return series.
func (rp *ReturnsPanel) Column(asset string) ([]float64, error) {
	if err := rp.check(); err != nil {
		return nil, err
	}
	col, ok := rp.returns[asset]
	if !ok {
		return nil, fmt.Errorf("%w: no returns column for %s", domain.ErrPrecondition, asset)
	}
	return append([]float64(nil), col...), nil
}

// check rejects a nil or zero-value panel, i.e. one not built by Returns.
func (rp *ReturnsPanel) check() error {
	if rp == nil || rp.Labeled == nil || rp.returns == nil {
		return fmt.Errorf("%w: returns have not been computed", domain.ErrPrecondition)
	}
	return nil
}
