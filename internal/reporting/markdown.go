package reporting

import (
	"fmt"
	"strings"
	"time"

	"macro-regime-lab/internal/domain"
)

// RenderTraderNote renders report as the Markdown trader note.
func RenderTraderNote(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Trader Insight Note\n\n")
	sb.WriteString("## Macro Regime Analysis: Rate Cycles and Asset Behavior\n\n")
	if r.Run != nil {
		sb.WriteString(fmt.Sprintf("**Analysis Period:** %s to %s\n",
			r.Run.StartDate.Format(domain.DateLayout), r.Run.EndDate.Format(domain.DateLayout)))
		sb.WriteString(fmt.Sprintf("**Run:** %s (%d rows)\n", r.Run.RunID, r.Run.Rows))
	}
	sb.WriteString(fmt.Sprintf("**Report Generated:** %s\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("**Portfolio:** %s\n\n", formatWeights(r.Weights)))

	// Regime distribution
	sb.WriteString("## 1. Regime Distribution\n\n")
	if len(r.Regimes) > 0 {
		sb.WriteString("| Regime | Days | Percentage | Mean Run | Runs |\n")
		sb.WriteString("|--------|------|------------|----------|------|\n")
		for _, s := range r.Regimes {
			sb.WriteString(fmt.Sprintf("| %s | %d | %.1f%% | %.1f | %d |\n",
				s.Regime, s.Days, s.Percentage, s.MeanRunLength, s.Runs))
		}
		sb.WriteString(fmt.Sprintf("\nTransitions: %d\n", len(r.Transitions)))
	} else {
		sb.WriteString("No labeled days.\n")
	}
	sb.WriteString("\n")

	// Asset performance
	sb.WriteString("## 2. Asset Performance Highlights\n\n")
	found := false
	for _, reg := range domain.AllRegimes() {
		best, worst, ok := r.BestWorst(reg)
		if !ok {
			continue
		}
		found = true
		sb.WriteString(fmt.Sprintf("**%s:**\n", reg))
		sb.WriteString(fmt.Sprintf("- Best: %s (%+.1f%% annual, Sharpe %.2f)\n", best.Asset, best.AnnReturnPct, best.Sharpe))
		sb.WriteString(fmt.Sprintf("- Worst: %s (%+.1f%% annual, Max DD %.1f%%)\n\n", worst.Asset, worst.AnnReturnPct, worst.MaxDrawdownPct))
	}
	if !found {
		sb.WriteString("No regime had enough observations for performance statistics.\n\n")
	}

	// Rate shock
	sb.WriteString("## 3. Rate Shock Scenario\n\n")
	if s := r.Shock.Stress; s != nil {
		sb.WriteString(fmt.Sprintf("**Portfolio Impact (%d-Day Horizon):**\n", r.Shock.HorizonDays))
		sb.WriteString(fmt.Sprintf("- Median: %.2f%%\n", s.Summary.Median))
		sb.WriteString(fmt.Sprintf("- Tail (10th pct): %.2f%%\n", s.Summary.P10))
		sb.WriteString(fmt.Sprintf("- Best Case (90th pct): %.2f%%\n", s.Summary.P90))
		sb.WriteString(fmt.Sprintf("- Sample Size: %d historical events\n\n", s.Summary.Count))

		sb.WriteString("**Asset-Level Impact:**\n\n")
		sb.WriteString("| Scenario | " + strings.Join(s.Assets, " | ") + " | Portfolio |\n")
		sb.WriteString("|----------|" + strings.Repeat("------|", len(s.Assets)) + "-----------|\n")
		for _, row := range s.Table {
			sb.WriteString("| " + row.Scenario + " |")
			for _, a := range s.Assets {
				sb.WriteString(fmt.Sprintf(" %.2f%% |", row.Assets[a]))
			}
			sb.WriteString(fmt.Sprintf(" %.2f%% |\n", row.Portfolio))
		}
	} else {
		unavailable := r.Shock.Unavailable
		if unavailable == "" {
			unavailable = InsufficientShocks
		}
		sb.WriteString("*" + unavailable + "*\n")
	}
	sb.WriteString("\n")

	// Correlation
	sb.WriteString("## 4. Correlation by Regime\n\n")
	if r.Correlation.Name != "" && len(r.Correlation.ByRegime) > 0 {
		sb.WriteString(fmt.Sprintf("%s, %d-day rolling window.\n\n", r.Correlation.Name, r.Correlation.Window))
		sb.WriteString("| Regime | Mean | Std | Min | Max | Count |\n")
		sb.WriteString("|--------|------|-----|-----|-----|-------|\n")
		for _, c := range r.Correlation.ByRegime {
			sb.WriteString(fmt.Sprintf("| %s | %.3f | %.3f | %.3f | %.3f | %d |\n",
				c.Regime, c.Mean, c.Std, c.Min, c.Max, c.Count))
		}
	} else {
		sb.WriteString("No correlation data available.\n")
	}
	sb.WriteString("\n")

	// Sensitivity
	sb.WriteString("## 5. Threshold Sensitivity\n\n")
	if len(r.Sensitivity) > 0 {
		sb.WriteString("| Rate Threshold | VIX Threshold | TIGHTENING | EASING | STRESS | NORMAL | Transitions |\n")
		sb.WriteString("|----------------|---------------|------------|--------|--------|--------|-------------|\n")
		for _, p := range r.Sensitivity {
			sb.WriteString(fmt.Sprintf("| %.2f | %.1f | %d | %d | %d | %d | %d |\n",
				p.RateChangeThreshold, p.VolatilityStressThreshold,
				p.Days(domain.RegimeTightening), p.Days(domain.RegimeEasing),
				p.Days(domain.RegimeStress), p.Days(domain.RegimeNormal), p.Transitions))
		}
	} else {
		sb.WriteString("No sensitivity grid configured.\n")
	}
	sb.WriteString("\n")

	// Data Quality
	sb.WriteString("## Data Quality\n\n")
	if len(r.DataQuality.SufficiencyChecks) > 0 {
		sb.WriteString("| Check | Threshold | Actual | Status |\n")
		sb.WriteString("|-------|-----------|--------|--------|\n")
		for _, check := range r.DataQuality.SufficiencyChecks {
			status := "FAIL"
			if check.Pass {
				status = "PASS"
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
				check.Name, check.Threshold, check.Actual, status))
		}
		sb.WriteString("\n")

		if r.DataQuality.AllChecksPassed {
			sb.WriteString("**All checks passed.**\n\n")
		} else {
			sb.WriteString("**Some checks failed.** Treat regime statistics with caution.\n\n")
		}
	} else if len(r.DataQuality.Warnings) == 0 {
		sb.WriteString("No data quality checks performed.\n\n")
	}

	// Warnings are always shown if present
	if len(r.DataQuality.Warnings) > 0 {
		sb.WriteString("### Warnings\n\n")
		for _, w := range r.DataQuality.Warnings {
			sb.WriteString(fmt.Sprintf("- %s\n", w))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Limitations\n\n")
	sb.WriteString("- Regime thresholds are fixed rules, not fitted; see the sensitivity grid.\n")
	sb.WriteString("- Historical analogs assume future shocks behave like past ones.\n")
	sb.WriteString("- Transaction costs and rebalancing frictions are ignored.\n")

	return sb.String()
}

func formatWeights(w domain.Weights) string {
	if len(w) == 0 {
		return "n/a"
	}
	parts := make([]string, 0, len(w))
	for _, a := range w.Assets() {
		parts = append(parts, fmt.Sprintf("%.0f%% %s", w[a]*100, a))
	}
	return strings.Join(parts, " / ")
}
