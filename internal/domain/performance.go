package domain

// PerformanceRecord holds regime-conditioned return statistics for one asset.
// Percent fields are rounded to two decimals, WinRatePct to one.
type PerformanceRecord struct {
	Regime         Regime
	Asset          string
	AnnReturnPct   float64
	AnnVolPct      float64
	Sharpe         float64
	MaxDrawdownPct float64 // <= 0
	WinRatePct     float64
	Observations   int
}

// CorrelationSummary describes a rolling correlation series within one regime.
type CorrelationSummary struct {
	Regime Regime
	Mean   float64
	Std    float64
	Min    float64
	Max    float64
	Count  int
}
