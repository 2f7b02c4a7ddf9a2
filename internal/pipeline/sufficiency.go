package pipeline

import (
	"fmt"

	"macro-regime-lab/internal/domain"
	"macro-regime-lab/internal/performance"
)

// SufficiencyCheck represents one data sufficiency criterion.
type SufficiencyCheck struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// SufficiencyResult contains every check in evaluation order.
type SufficiencyResult struct {
	Checks  []SufficiencyCheck
	AllPass bool
}

// Failed returns the names of failing checks.
func (r *SufficiencyResult) Failed() []string {
	var out []string
	for _, c := range r.Checks {
		if !c.Pass {
			out = append(out, c.Name)
		}
	}
	return out
}

// SufficiencyChecker validates that a run has enough data for its statistics
// to mean anything. Failures are reported, never fatal.
type SufficiencyChecker struct {
	minPanelRows  int
	minRegimeDays int
	minResponses  int
}

// NewSufficiencyChecker creates a checker requiring at least
// quarterlyLookback+horizon panel rows.
func NewSufficiencyChecker(quarterlyLookback, horizon int) *SufficiencyChecker {
	return &SufficiencyChecker{
		minPanelRows:  quarterlyLookback + horizon,
		minRegimeDays: performance.MinRegimeDays,
		minResponses:  1,
	}
}

// Check evaluates the labeled panel, its regime summary and the number of
// measured shock responses.
func (c *SufficiencyChecker) Check(lp *domain.LabeledPanel, summary []domain.RegimeSummary, responses int) *SufficiencyResult {
	result := &SufficiencyResult{
		Checks:  make([]SufficiencyCheck, 0, 2+len(domain.AllRegimes())),
		AllPass: true,
	}

	// Check 1: panel covers the lookback plus one full horizon
	result.add(SufficiencyCheck{
		Name:      "Panel rows",
		Threshold: fmt.Sprintf(">= %d", c.minPanelRows),
		Actual:    fmt.Sprintf("%d", lp.Len()),
		Pass:      lp.Len() >= c.minPanelRows,
	})

	// Check 2: every regime has enough days for performance statistics
	days := make(map[domain.Regime]int, len(summary))
	for _, s := range summary {
		days[s.Regime] = s.Days
	}
	for _, r := range domain.AllRegimes() {
		result.add(SufficiencyCheck{
			Name:      fmt.Sprintf("%s days", r),
			Threshold: fmt.Sprintf(">= %d", c.minRegimeDays),
			Actual:    fmt.Sprintf("%d", days[r]),
			Pass:      days[r] >= c.minRegimeDays,
		})
	}

	// Check 3: at least one shock analog for the stress test
	result.add(SufficiencyCheck{
		Name:      "Shock responses",
		Threshold: fmt.Sprintf(">= %d", c.minResponses),
		Actual:    fmt.Sprintf("%d", responses),
		Pass:      responses >= c.minResponses,
	})

	return result
}

func (r *SufficiencyResult) add(c SufficiencyCheck) {
	r.Checks = append(r.Checks, c)
	if !c.Pass {
		r.AllPass = false
	}
}
