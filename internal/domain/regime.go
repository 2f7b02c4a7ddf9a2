package domain

import (
	"fmt"
	"time"
)

// Regime is the macro environment label assigned to a trading day.
type Regime string

const (
	RegimeTightening Regime = "TIGHTENING"
	RegimeEasing     Regime = "EASING"
	RegimeStress     Regime = "STRESS"
	RegimeNormal     Regime = "NORMAL"
)

// AllRegimes returns every regime in reporting order.
func AllRegimes() []Regime {
	return []Regime{RegimeTightening, RegimeEasing, RegimeStress, RegimeNormal}
}

// String returns the string representation of Regime.
func (r Regime) String() string {
	return string(r)
}

// IsValid checks if the regime is one of the four known labels.
func (r Regime) IsValid() bool {
	switch r {
	case RegimeTightening, RegimeEasing, RegimeStress, RegimeNormal:
		return true
	default:
		return false
	}
}

// Ordinal returns the position of r in AllRegimes, or -1 for unknown labels.
func (r Regime) Ordinal() int {
	for i, known := range AllRegimes() {
		if r == known {
			return i
		}
	}
	return -1
}

// ParseRegime converts a stored label back into a Regime.
func ParseRegime(s string) (Regime, error) {
	r := Regime(s)
	if !r.IsValid() {
		return "", fmt.Errorf("%w: unknown regime %q", ErrPrecondition, s)
	}
	return r, nil
}

// RegimeSummary describes how much of the history a regime occupies.
type RegimeSummary struct {
	Regime        Regime
	Days          int
	Percentage    float64 // share of all labeled days, 0..100
	MeanRunLength float64 // mean length of consecutive same-label streaks
	Runs          int
}

// Transition marks a day whose label differs from the previous day's.
type Transition struct {
	Date       time.Time
	Regime     Regime
	Previous   Regime
	Volatility float64
	PolicyRate float64
	LongYield  float64
}
