package reporting

import (
	"time"

	"macro-regime-lab/internal/domain"
	"macro-regime-lab/internal/regime"
)

// InsufficientShocks is shown in place of the stress test when no shock
// response is available.
const InsufficientShocks = "Insufficient rate shock events in sample period for analysis"

// Report represents one run's analysis report.
type Report struct {
	// Metadata
	GeneratedAt time.Time
	Run         *domain.Run
	Weights     domain.Weights

	// Regimes (summary by day count descending, transitions by date)
	Regimes     []domain.RegimeSummary
	Transitions []domain.Transition

	// Performance records ordered by regime, then asset
	Performance []domain.PerformanceRecord

	Correlation CorrelationSection
	Shock       ShockSection

	// Sensitivity points ordered by rate threshold, then volatility threshold
	Sensitivity []regime.SensitivityPoint

	// Data Quality (sufficiency checks and warnings)
	DataQuality DataQualitySection
}

// CorrelationSection summarizes the rolling correlation of one asset pair.
type CorrelationSection struct {
	Name     string // e.g. SPY_TLT_CORR, empty when unavailable
	Window   int
	ByRegime []domain.CorrelationSummary
}

// ShockSection holds the rate-shock scenario results.
type ShockSection struct {
	HorizonDays int
	Events      []domain.ShockEvent
	Responses   []domain.ShockResponse
	Stress      *domain.StressResult // nil when Unavailable is set
	Unavailable string
}

// DataQualitySection contains data sufficiency checks and warnings.
type DataQualitySection struct {
	SufficiencyChecks []SufficiencyCheckRow
	Warnings          []string
	AllChecksPassed   bool
}

// SufficiencyCheckRow represents one sufficiency criterion.
type SufficiencyCheckRow struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// BestWorst returns the highest and lowest annualized-return records for reg.
// ok is false when reg has no records.
func (r *Report) BestWorst(reg domain.Regime) (best, worst domain.PerformanceRecord, ok bool) {
	for _, p := range r.Performance {
		if p.Regime != reg {
			continue
		}
		if !ok {
			best, worst, ok = p, p, true
			continue
		}
		if p.AnnReturnPct > best.AnnReturnPct {
			best = p
		}
		if p.AnnReturnPct < worst.AnnReturnPct {
			worst = p
		}
	}
	return best, worst, ok
}
