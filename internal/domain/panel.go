package domain

import (
	"fmt"
	"math"
	"slices"
	"time"
)

// DateLayout is the calendar date format used in files and stores.
const DateLayout = "2006-01-02"

// Observation is one trading day of macro and market data.
type Observation struct {
	Date       time.Time
	PolicyRate float64            // %, e.g. effective fed funds
	LongYield  float64            // %, e.g. 10Y treasury
	Volatility float64            // volatility index level
	Prices     map[string]float64 // asset -> price
}

// Panel is an aligned daily observation panel.
// Rows are ordered by Date ASC with no duplicates.
type Panel struct {
	Assets []string
	Rows   []Observation
}

// Len returns the number of rows.
func (p *Panel) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Rows)
}

// HasAsset reports whether the panel tracks asset.
func (p *Panel) HasAsset(asset string) bool {
	return slices.Contains(p.Assets, asset)
}

// Validate checks the panel invariants: strictly increasing dates, finite
// macro values, and a positive finite price for every tracked asset.
func (p *Panel) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: nil panel", ErrPrecondition)
	}
	if len(p.Assets) == 0 {
		return fmt.Errorf("%w: panel has no assets", ErrPrecondition)
	}
	for i, row := range p.Rows {
		if i > 0 && !row.Date.After(p.Rows[i-1].Date) {
			return fmt.Errorf("%w: row %d date %s not after %s", ErrPrecondition,
				i, row.Date.Format(DateLayout), p.Rows[i-1].Date.Format(DateLayout))
		}
		if !isFinite(row.PolicyRate) || !isFinite(row.LongYield) || !isFinite(row.Volatility) {
			return fmt.Errorf("%w: row %s has missing macro values", ErrPrecondition, row.Date.Format(DateLayout))
		}
		for _, asset := range p.Assets {
			price, ok := row.Prices[asset]
			if !ok {
				return fmt.Errorf("%w: row %s missing price column %s", ErrPrecondition, row.Date.Format(DateLayout), asset)
			}
			if !isFinite(price) || price <= 0 {
				return fmt.Errorf("%w: row %s has invalid %s price %v", ErrPrecondition, row.Date.Format(DateLayout), asset, price)
			}
		}
	}
	return nil
}

// IndexOf returns the row position of date.
func (p *Panel) IndexOf(date time.Time) (int, bool) {
	return slices.BinarySearchFunc(p.Rows, date, func(o Observation, d time.Time) int {
		return o.Date.Compare(d)
	})
}

// Head returns a new panel holding the first n rows.
func (p *Panel) Head(n int) *Panel {
	n = min(max(n, 0), len(p.Rows))
	out := &Panel{Assets: slices.Clone(p.Assets), Rows: make([]Observation, n)}
	for i := range n {
		out.Rows[i] = p.Rows[i].Clone()
	}
	return out
}

// Clone returns a deep copy of the panel.
func (p *Panel) Clone() *Panel {
	return p.Head(len(p.Rows))
}

// Clone returns a copy of the observation with its own price map.
func (o Observation) Clone() Observation {
	out := o
	out.Prices = make(map[string]float64, len(o.Prices))
	for k, v := range o.Prices {
		out.Prices[k] = v
	}
	return out
}

// LabeledObservation is an observation with its classifier output.
// Derived fields are NaN while undefined.
type LabeledObservation struct {
	Observation
	RateChange   float64
	YieldChange  float64
	VolatilityMA float64
	Regime       Regime
}

// LabeledPanel is the classifier output: one label per panel row.
type LabeledPanel struct {
	Assets []string
	Rows   []LabeledObservation
}

// Len returns the number of rows.
func (lp *LabeledPanel) Len() int {
	if lp == nil {
		return 0
	}
	return len(lp.Rows)
}

// Panel returns the underlying observations as a new Panel.
func (lp *LabeledPanel) Panel() *Panel {
	out := &Panel{Assets: slices.Clone(lp.Assets), Rows: make([]Observation, len(lp.Rows))}
	for i, row := range lp.Rows {
		out.Rows[i] = row.Observation.Clone()
	}
	return out
}

// Regimes returns the label column.
func (lp *LabeledPanel) Regimes() []Regime {
	out := make([]Regime, len(lp.Rows))
	for i, row := range lp.Rows {
		out[i] = row.Regime
	}
	return out
}

// Validate checks that the labeled panel is non-empty and every label is known.
func (lp *LabeledPanel) Validate() error {
	if lp == nil || len(lp.Rows) == 0 {
		return fmt.Errorf("%w: empty labeled panel", ErrPrecondition)
	}
	for _, row := range lp.Rows {
		if !row.Regime.IsValid() {
			return fmt.Errorf("%w: row %s has label %q", ErrPrecondition, row.Date.Format(DateLayout), row.Regime)
		}
	}
	return nil
}

// Series is a named derived column aligned with a panel's rows.
type Series struct {
	Name   string
	Values []float64
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
