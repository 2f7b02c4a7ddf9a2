package regime

import (
	"iter"
	"sort"

	"macro-regime-lab/internal/domain"
)

// Summarize returns day count, share of days and mean run length per regime
// present in the panel, sorted by day count descending.
func Summarize(lp *domain.LabeledPanel) ([]domain.RegimeSummary, error) {
	if err := lp.Validate(); err != nil {
		return nil, err
	}
	return summarizeLabels(lp.Regimes()), nil
}

func summarizeLabels(labels []domain.Regime) []domain.RegimeSummary {
	days := make(map[domain.Regime]int)
	runs := make(map[domain.Regime]int)
	for _, run := range RunLengths(labels) {
		days[run.Regime] += run.Length
		runs[run.Regime]++
	}

	total := float64(len(labels))
	out := make([]domain.RegimeSummary, 0, len(days))
	for r, n := range days {
		out = append(out, domain.RegimeSummary{
			Regime:        r,
			Days:          n,
			Percentage:    float64(n) / total * 100,
			MeanRunLength: float64(n) / float64(runs[r]),
			Runs:          runs[r],
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Days != out[j].Days {
			return out[i].Days > out[j].Days
		}
		return out[i].Regime.Ordinal() < out[j].Regime.Ordinal()
	})
	return out
}

// RunLengths returns the length of every consecutive same-label streak, in order.
// The final streak is closed at the end of the series.
func RunLengths(labels []domain.Regime) []Run {
	var out []Run
	for i, r := range labels {
		if i > 0 && r == out[len(out)-1].Regime {
			out[len(out)-1].Length++
			continue
		}
		out = append(out, Run{Regime: r, Length: 1})
	}
	return out
}

// Run is one streak of identical labels.
type Run struct {
	Regime domain.Regime
	Length int
}

// Transitions yields every row whose label differs from the previous row,
// paired with the previous label. The first row has no predecessor and is
// never a transition. The sequence is lazy and reads the panel once.
func Transitions(lp *domain.LabeledPanel) iter.Seq[domain.Transition] {
	return func(yield func(domain.Transition) bool) {
		if lp == nil {
			return
		}
		for i := 1; i < len(lp.Rows); i++ {
			prev, row := lp.Rows[i-1], lp.Rows[i]
			if row.Regime == prev.Regime {
				continue
			}
			t := domain.Transition{
				Date:       row.Date,
				Regime:     row.Regime,
				Previous:   prev.Regime,
				Volatility: row.Volatility,
				PolicyRate: row.PolicyRate,
				LongYield:  row.LongYield,
			}
			if !yield(t) {
				return
			}
		}
	}
}
