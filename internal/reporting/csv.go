package reporting

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"macro-regime-lab/internal/domain"
	"macro-regime-lab/internal/regime"
)

// RenderPerformanceCSV renders performance records as CSV string.
func RenderPerformanceCSV(records []domain.PerformanceRecord) string {
	var sb strings.Builder

	sb.WriteString("regime,asset,ann_return_pct,ann_vol_pct,sharpe,max_dd_pct,win_rate_pct,observations\n")
	for _, r := range records {
		sb.WriteString(fmt.Sprintf("%s,%s,%.2f,%.2f,%.2f,%.2f,%.1f,%d\n",
			r.Regime,
			r.Asset,
			r.AnnReturnPct,
			r.AnnVolPct,
			r.Sharpe,
			r.MaxDrawdownPct,
			r.WinRatePct,
			r.Observations,
		))
	}

	return sb.String()
}

// RenderRegimeSummaryCSV renders the regime distribution as CSV string.
func RenderRegimeSummaryCSV(summary []domain.RegimeSummary) string {
	var sb strings.Builder

	sb.WriteString("regime,days,percentage,mean_run_length,runs\n")
	for _, s := range summary {
		sb.WriteString(fmt.Sprintf("%s,%d,%.2f,%.2f,%d\n",
			s.Regime, s.Days, s.Percentage, s.MeanRunLength, s.Runs))
	}

	return sb.String()
}

// RenderLabeledPanelCSV renders every labeled row with its derived columns.
// Undefined values are written as empty cells.
func RenderLabeledPanelCSV(lp *domain.LabeledPanel) string {
	var sb strings.Builder

	sb.WriteString("date,policy_rate,long_yield,volatility")
	for _, a := range lp.Assets {
		sb.WriteString("," + a)
	}
	sb.WriteString(",rate_change,yield_change,volatility_ma,regime\n")

	for _, row := range lp.Rows {
		sb.WriteString(row.Date.Format(domain.DateLayout))
		sb.WriteString("," + cell(row.PolicyRate))
		sb.WriteString("," + cell(row.LongYield))
		sb.WriteString("," + cell(row.Volatility))
		for _, a := range lp.Assets {
			p, ok := row.Prices[a]
			if !ok {
				p = math.NaN()
			}
			sb.WriteString("," + cell(p))
		}
		sb.WriteString("," + cell(row.RateChange))
		sb.WriteString("," + cell(row.YieldChange))
		sb.WriteString("," + cell(row.VolatilityMA))
		sb.WriteString("," + row.Regime.String() + "\n")
	}

	return sb.String()
}

// RenderShockTableCSV renders the stress percentile table as CSV string.
func RenderShockTableCSV(stress *domain.StressResult) string {
	var sb strings.Builder

	sb.WriteString("scenario,percentile")
	for _, a := range stress.Assets {
		sb.WriteString("," + a)
	}
	sb.WriteString(",portfolio\n")

	for _, row := range stress.Table {
		sb.WriteString(fmt.Sprintf("%s,%.2f", row.Scenario, row.Percentile))
		for _, a := range stress.Assets {
			sb.WriteString(fmt.Sprintf(",%.2f", row.Assets[a]))
		}
		sb.WriteString(fmt.Sprintf(",%.2f\n", row.Portfolio))
	}

	return sb.String()
}

// RenderShockEventsCSV renders responses joined with their triggering events.
func RenderShockEventsCSV(events []domain.ShockEvent, responses []domain.ShockResponse, assets []string) string {
	var sb strings.Builder

	sb.WriteString("event_date,yield,yield_change,end_date,end_yield")
	for _, a := range assets {
		sb.WriteString("," + a + "_return_pct")
	}
	sb.WriteString("\n")

	byDate := make(map[string]domain.ShockResponse, len(responses))
	for _, r := range responses {
		byDate[r.EventDate.Format(domain.DateLayout)] = r
	}
	for _, e := range events {
		date := e.Date.Format(domain.DateLayout)
		sb.WriteString(fmt.Sprintf("%s,%.4f,%.4f", date, e.Yield, e.YieldChange))
		r, ok := byDate[date]
		if !ok {
			// event without a full forward horizon
			sb.WriteString(",,")
			for range assets {
				sb.WriteString(",")
			}
			sb.WriteString("\n")
			continue
		}
		sb.WriteString(fmt.Sprintf(",%s,%.4f", r.EndDate.Format(domain.DateLayout), r.EndYield))
		for _, a := range assets {
			v, ok := r.Returns[a]
			if !ok {
				v = math.NaN()
			}
			sb.WriteString("," + cell(v))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// RenderTransitionsCSV renders regime changes with the levels on the day of change.
func RenderTransitionsCSV(transitions []domain.Transition) string {
	var sb strings.Builder

	sb.WriteString("date,previous,regime,volatility,policy_rate,long_yield\n")
	for _, t := range transitions {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%s,%s\n",
			t.Date.Format(domain.DateLayout), t.Previous, t.Regime,
			cell(t.Volatility), cell(t.PolicyRate), cell(t.LongYield)))
	}

	return sb.String()
}

// RenderSensitivityCSV renders one row per threshold pair with the day count
// of every regime.
func RenderSensitivityCSV(points []regime.SensitivityPoint) string {
	var sb strings.Builder

	sb.WriteString("rate_threshold,volatility_threshold")
	for _, r := range domain.AllRegimes() {
		sb.WriteString("," + strings.ToLower(r.String()) + "_days")
	}
	sb.WriteString(",transitions\n")

	for _, p := range points {
		sb.WriteString(cell(p.RateChangeThreshold) + "," + cell(p.VolatilityStressThreshold))
		for _, r := range domain.AllRegimes() {
			sb.WriteString("," + strconv.Itoa(p.Days(r)))
		}
		sb.WriteString("," + strconv.Itoa(p.Transitions) + "\n")
	}

	return sb.String()
}

func cell(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
