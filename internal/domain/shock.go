package domain

import "time"

// ShockEvent is a day flagged for an abnormally large rise in the long yield.
type ShockEvent struct {
	Date        time.Time
	Index       int     // row position in the panel
	Yield       float64 // long yield on Date
	YieldChange float64 // trailing change that triggered the event
}

// ShockResponse holds forward outcomes after one accepted ShockEvent.
type ShockResponse struct {
	EventDate  time.Time
	EndDate    time.Time
	StartYield float64
	EndYield   float64
	Returns    map[string]float64 // asset -> forward return, %
}

// StressSummary describes the cross-event distribution of portfolio returns.
type StressSummary struct {
	Median float64
	P10    float64 // tail loss
	P90    float64 // best case
	Mean   float64
	Std    float64 // population standard deviation
	Min    float64
	Max    float64
	Count  int
}

// PercentileRow is one row of the stress percentile table.
type PercentileRow struct {
	Scenario   string
	Percentile float64
	Assets     map[string]float64
	Portfolio  float64
}

// Percentile table scenarios.
const (
	ScenarioTail   = "Tail (10th pct)"
	ScenarioMedian = "Median"
	ScenarioBest   = "Best (90th pct)"
)

// StressResult is the output of a portfolio stress test.
type StressResult struct {
	Summary          StressSummary
	Table            []PercentileRow
	Assets           []string  // table column order
	PortfolioReturns []float64 // one per response, in response order
}
