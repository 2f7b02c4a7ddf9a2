package performance

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"macro-regime-lab/internal/domain"
)

// labeledPanel builds an n-row labeled panel. price(i, asset) sets prices and
// label(i) sets the regime of row i.
func labeledPanel(n int, assets []string, price func(i int, asset string) float64, label func(i int) domain.Regime) *domain.LabeledPanel {
	start := time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC)
	lp := &domain.LabeledPanel{Assets: assets}
	for i := 0; i < n; i++ {
		prices := make(map[string]float64, len(assets))
		for _, a := range assets {
			prices[a] = price(i, a)
		}
		lp.Rows = append(lp.Rows, domain.LabeledObservation{
			Observation: domain.Observation{
				Date:       start.AddDate(0, 0, i),
				PolicyRate: 1,
				LongYield:  2,
				Volatility: 15,
				Prices:     prices,
			},
			Regime: label(i),
		})
	}
	return lp
}

func allNormal(int) domain.Regime { return domain.RegimeNormal }

func TestReturns_SimpleChange(t *testing.T) {
	lp := labeledPanel(3, []string{"SPY"}, func(i int, _ string) float64 {
		return []float64{100, 110, 99}[i]
	}, allNormal)

	rp, err := Returns(lp)
	require.NoError(t, err)

	col, err := rp.Column("SPY")
	require.NoError(t, err)
	assert.True(t, math.IsNaN(col[0]), "first return is undefined")
	assert.InDelta(t, 0.10, col[1], 1e-12)
	assert.InDelta(t, -0.10, col[2], 1e-12)

	// Column hands out a copy.
	col[1] = 42
	again, _ := rp.Column("SPY")
	assert.InDelta(t, 0.10, again[1], 1e-12)
}

func TestPerformance_RequiresReturns(t *testing.T) {
	regimes := domain.AllRegimes()

	_, err := Performance(context.Background(), nil, regimes, DefaultAnnualization)
	assert.ErrorIs(t, err, domain.ErrPrecondition)

	_, err = Performance(context.Background(), &ReturnsPanel{}, regimes, DefaultAnnualization)
	require.ErrorIs(t, err, domain.ErrPrecondition)
	assert.Contains(t, err.Error(), "returns have not been computed")
}

func TestPerformance_ConstantGrowth(t *testing.T) {
	// 1% per day, every day NORMAL.
	lp := labeledPanel(21, []string{"SPY"}, func(i int, _ string) float64 {
		return 100 * math.Pow(1.01, float64(i))
	}, allNormal)
	rp, err := Returns(lp)
	require.NoError(t, err)

	records, err := Performance(context.Background(), rp, domain.AllRegimes(), DefaultAnnualization)
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, domain.RegimeNormal, rec.Regime)
	assert.Equal(t, "SPY", rec.Asset)
	assert.Equal(t, 20, rec.Observations)
	assert.InDelta(t, 252.0, rec.AnnReturnPct, 1e-9)
	assert.Equal(t, 0.0, rec.AnnVolPct)
	assert.Equal(t, 0.0, rec.Sharpe, "zero volatility yields zero Sharpe")
	assert.Equal(t, 0.0, rec.MaxDrawdownPct)
	assert.Equal(t, 100.0, rec.WinRatePct)
}

func TestPerformance_SkipsShortRegimes(t *testing.T) {
	// 9 STRESS days then 30 NORMAL days.
	lp := labeledPanel(39, []string{"SPY", "TLT"}, func(i int, a string) float64 {
		if a == "SPY" {
			return 100 + float64(i%4)
		}
		return 90 - float64(i%3)
	}, func(i int) domain.Regime {
		if i < 9 {
			return domain.RegimeStress
		}
		return domain.RegimeNormal
	})
	rp, err := Returns(lp)
	require.NoError(t, err)

	records, err := Performance(context.Background(), rp, domain.AllRegimes(), DefaultAnnualization)
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, rec := range records {
		assert.Equal(t, domain.RegimeNormal, rec.Regime)
	}
	// Panel asset order is kept.
	assert.Equal(t, "SPY", records[0].Asset)
	assert.Equal(t, "TLT", records[1].Asset)
}

func TestComputeRecord_SkipsSmallSamples(t *testing.T) {
	assert.Nil(t, computeRecord(domain.RegimeEasing, "GLD", []float64{0.01, 0.02, -0.01, 0.0}, 252))
	assert.NotNil(t, computeRecord(domain.RegimeEasing, "GLD", []float64{0.01, 0.02, -0.01, 0.0, 0.03}, 252))
}

func TestComputeRecord_SharpeOnTinyVolatility(t *testing.T) {
	// Volatility far below the reported two decimals still divides.
	returns := []float64{0.0010, 0.0010001, 0.0010, 0.0010001, 0.0010, 0.0010001}
	rec := computeRecord(domain.RegimeNormal, "SPY", returns, 252)
	require.NotNil(t, rec)

	annReturn := 0.00100005 * 252 * 100
	annVol := 5e-8 * math.Sqrt(6.0/5.0) * math.Sqrt(252) * 100
	assert.Equal(t, 0.0, rec.AnnVolPct)
	assert.InDelta(t, annReturn/annVol, rec.Sharpe, 1)
	assert.Greater(t, rec.Sharpe, 1e5)
}

func TestPerformance_DrawdownAndSharpeBounds(t *testing.T) {
	lp := labeledPanel(400, []string{"SPY", "TLT", "GLD"}, func(i int, a string) float64 {
		x := float64(i)
		switch a {
		case "SPY":
			return 100 + 30*math.Sin(x/13) + x/10
		case "TLT":
			return 120 - 40*math.Cos(x/29)
		default:
			return 80 // flat price, zero volatility
		}
	}, func(i int) domain.Regime {
		return domain.AllRegimes()[(i/50)%4]
	})
	rp, err := Returns(lp)
	require.NoError(t, err)

	records, err := Performance(context.Background(), rp, domain.AllRegimes(), DefaultAnnualization)
	require.NoError(t, err)
	require.Len(t, records, 12)

	for _, rec := range records {
		assert.LessOrEqual(t, rec.MaxDrawdownPct, 0.0, "%s/%s", rec.Regime, rec.Asset)
		assert.GreaterOrEqual(t, rec.MaxDrawdownPct, -100.0, "%s/%s", rec.Regime, rec.Asset)
		if rec.Asset == "GLD" {
			assert.Equal(t, 0.0, rec.AnnVolPct)
			assert.Equal(t, 0.0, rec.Sharpe)
		} else {
			assert.Greater(t, rec.AnnVolPct, 0.0, "%s/%s", rec.Regime, rec.Asset)
		}
	}
}

func TestPerformance_RejectsUnknownRegime(t *testing.T) {
	lp := labeledPanel(12, []string{"SPY"}, func(i int, _ string) float64 { return 100 + float64(i) }, allNormal)
	rp, err := Returns(lp)
	require.NoError(t, err)

	_, err = Performance(context.Background(), rp, []domain.Regime{"BOOM"}, DefaultAnnualization)
	assert.ErrorIs(t, err, domain.ErrPrecondition)
}

func TestRollingCorrelation(t *testing.T) {
	const window = 10
	lp := labeledPanel(40, []string{"SPY", "QQQ", "TLT"}, func(i int, a string) float64 {
		base := 100 + 5*math.Sin(float64(i)/3)
		switch a {
		case "SPY":
			return base
		case "QQQ":
			return 2 * base
		default:
			return 300 - base
		}
	}, allNormal)
	rp, err := Returns(lp)
	require.NoError(t, err)

	corr, err := RollingCorrelation(rp, "SPY", "QQQ", window)
	require.NoError(t, err)
	assert.Equal(t, "SPY_QQQ_CORR", corr.Name)
	require.Len(t, corr.Values, 40)

	// Returns start on row 1, so the first full window ends on row `window`.
	for i := 0; i < window; i++ {
		assert.True(t, math.IsNaN(corr.Values[i]), "row %d should be undefined", i)
	}
	for i := window; i < 40; i++ {
		assert.InDelta(t, 1.0, corr.Values[i], 1e-9, "row %d", i)
	}

	inverse, err := RollingCorrelation(rp, "SPY", "TLT", window)
	require.NoError(t, err)
	assert.Less(t, inverse.Values[20], 0.0)
}

func TestRollingCorrelation_MissingAsset(t *testing.T) {
	lp := labeledPanel(5, []string{"SPY"}, func(i int, _ string) float64 { return 100 + float64(i) }, allNormal)
	rp, err := Returns(lp)
	require.NoError(t, err)

	_, err = RollingCorrelation(rp, "SPY", "TLT", 3)
	require.ErrorIs(t, err, domain.ErrPrecondition)
	assert.Contains(t, err.Error(), "TLT")
}

func TestCorrelationByRegime(t *testing.T) {
	lp := labeledPanel(6, []string{"SPY"}, func(i int, _ string) float64 { return 100 }, func(i int) domain.Regime {
		if i < 3 {
			return domain.RegimeEasing
		}
		return domain.RegimeStress
	})
	rp, err := Returns(lp)
	require.NoError(t, err)

	nan := math.NaN()
	corr := domain.Series{Name: "X", Values: []float64{nan, 0.2, 0.4, -0.5, nan, 0.1}}
	summary, err := CorrelationByRegime(rp, corr)
	require.NoError(t, err)
	require.Len(t, summary, 2)

	easing, stress := summary[0], summary[1]
	assert.Equal(t, domain.RegimeEasing, easing.Regime)
	assert.Equal(t, 2, easing.Count)
	assert.InDelta(t, 0.3, easing.Mean, 1e-12)
	assert.InDelta(t, math.Sqrt(0.02), easing.Std, 1e-12)
	assert.Equal(t, 0.2, easing.Min)
	assert.Equal(t, 0.4, easing.Max)

	assert.Equal(t, domain.RegimeStress, stress.Regime)
	assert.InDelta(t, -0.2, stress.Mean, 1e-12)

	_, err = CorrelationByRegime(rp, domain.Series{Values: []float64{1}})
	assert.ErrorIs(t, err, domain.ErrPrecondition)
}

func TestPortfolioReturns_MissingAssetContributesZero(t *testing.T) {
	lp := labeledPanel(3, []string{"SPY", "TLT"}, func(i int, a string) float64 {
		if a == "SPY" {
			return []float64{100, 110, 110}[i]
		}
		return []float64{50, 50, 55}[i]
	}, allNormal)
	rp, err := Returns(lp)
	require.NoError(t, err)

	weights := domain.Weights{"SPY": 0.6, "TLT": 0.3, "GLD": 0.1}
	port, err := PortfolioReturns(rp, weights)
	require.NoError(t, err)

	assert.True(t, math.IsNaN(port.Values[0]))
	assert.InDelta(t, 0.06, port.Values[1], 1e-12)
	assert.InDelta(t, 0.03, port.Values[2], 1e-12)

	_, err = PortfolioReturns(nil, weights)
	assert.ErrorIs(t, err, domain.ErrPrecondition)
}
