// Package acquisition produces the aligned observation panel: it fetches or
// loads macro and market series, joins them on date and fills gaps.
package acquisition

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"macro-regime-lab/internal/domain"
)

// MacroRow is one day of economic series. Missing values are NaN.
type MacroRow struct {
	Date       time.Time
	PolicyRate float64
	LongYield  float64
}

// MarketRow is one trading day of market data. A missing price is absent or NaN.
type MarketRow struct {
	Date       time.Time
	Volatility float64
	Prices     map[string]float64
}

// Align inner-joins macro and market rows on date, forward-fills gaps and
// drops rows that are still incomplete. Requested assets with no price at
// all are removed from the panel with a warning.
func Align(macro []MacroRow, market []MarketRow, assets []string) (*domain.Panel, domain.Warnings, error) {
	var warnings domain.Warnings

	present := make([]string, 0, len(assets))
	var missing []string
	for _, asset := range assets {
		if hasAnyPrice(market, asset) {
			present = append(present, asset)
		} else {
			missing = append(missing, asset)
		}
	}
	if len(missing) > 0 {
		warnings.Addf("acquisition", "missing tickers: %s", strings.Join(missing, ", "))
	}
	if len(present) == 0 {
		return nil, warnings, fmt.Errorf("%w: none of the requested assets has price data", domain.ErrPrecondition)
	}

	byDate := make(map[time.Time]MacroRow, len(macro))
	for _, m := range macro {
		byDate[dayOf(m.Date)] = m
	}

	sorted := append([]MarketRow(nil), market...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	rows := make([]domain.Observation, 0, len(sorted))
	duplicates := 0
	for _, mk := range sorted {
		day := dayOf(mk.Date)
		m, ok := byDate[day]
		if !ok {
			continue
		}
		if n := len(rows); n > 0 && rows[n-1].Date.Equal(day) {
			duplicates++
			rows = rows[:n-1]
		}
		obs := domain.Observation{
			Date:       day,
			PolicyRate: m.PolicyRate,
			LongYield:  m.LongYield,
			Volatility: mk.Volatility,
			Prices:     make(map[string]float64, len(present)),
		}
		for _, asset := range present {
			if p, ok := mk.Prices[asset]; ok {
				obs.Prices[asset] = p
			} else {
				obs.Prices[asset] = math.NaN()
			}
		}
		rows = append(rows, obs)
	}
	if duplicates > 0 {
		warnings.Addf("acquisition", "kept the last of %d duplicate market dates", duplicates)
	}

	forwardFill(rows, present)

	kept := rows[:0]
	for _, obs := range rows {
		if complete(obs, present) {
			kept = append(kept, obs)
		}
	}
	if dropped := len(rows) - len(kept); dropped > 0 {
		warnings.Addf("acquisition", "dropped %d rows with missing data", dropped)
	}
	if len(kept) == 0 {
		return nil, warnings, fmt.Errorf("%w: no rows left after aligning macro and market data", domain.ErrPrecondition)
	}

	panel := &domain.Panel{Assets: present, Rows: kept}
	if err := panel.Validate(); err != nil {
		return nil, warnings, fmt.Errorf("align: %w", err)
	}
	return panel, warnings, nil
}

func forwardFill(rows []domain.Observation, assets []string) {
	for i := 1; i < len(rows); i++ {
		prev, cur := &rows[i-1], &rows[i]
		if math.IsNaN(cur.PolicyRate) {
			cur.PolicyRate = prev.PolicyRate
		}
		if math.IsNaN(cur.LongYield) {
			cur.LongYield = prev.LongYield
		}
		if math.IsNaN(cur.Volatility) {
			cur.Volatility = prev.Volatility
		}
		for _, asset := range assets {
			if math.IsNaN(cur.Prices[asset]) {
				cur.Prices[asset] = prev.Prices[asset]
			}
		}
	}
}

func complete(obs domain.Observation, assets []string) bool {
	if math.IsNaN(obs.PolicyRate) || math.IsNaN(obs.LongYield) || math.IsNaN(obs.Volatility) {
		return false
	}
	for _, asset := range assets {
		if math.IsNaN(obs.Prices[asset]) {
			return false
		}
	}
	return true
}

func hasAnyPrice(market []MarketRow, asset string) bool {
	for _, row := range market {
		if p, ok := row.Prices[asset]; ok && !math.IsNaN(p) {
			return true
		}
	}
	return false
}

// dayOf truncates t to midnight UTC of its calendar day.
func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
