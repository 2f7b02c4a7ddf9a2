package clickhouse

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"macro-regime-lab/internal/domain"
	"macro-regime-lab/internal/storage"
)

func day(i int) time.Time {
	return time.Date(2022, 3, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
}

func testPanel(from, n int) *domain.Panel {
	p := &domain.Panel{Assets: []string{"SPY", "TLT"}}
	for i := from; i < from+n; i++ {
		p.Rows = append(p.Rows, domain.Observation{
			Date:       day(i),
			PolicyRate: 0.25 + float64(i)/100,
			LongYield:  1.8,
			Volatility: 22.5,
			Prices:     map[string]float64{"SPY": 430 + float64(i), "TLT": 135},
		})
	}
	return p
}

func TestPanelStore_SaveAndLoad(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPanelStore(conn)
	ctx := context.Background()

	added, err := store.SaveObservations(ctx, testPanel(0, 5))
	require.NoError(t, err)
	assert.Equal(t, 5, added)

	added, err = store.SaveObservations(ctx, testPanel(3, 4))
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	panel, err := store.LoadPanel(ctx, day(1), day(5), []string{"SPY", "TLT"})
	require.NoError(t, err)
	require.Equal(t, 5, panel.Len())
	assert.Equal(t, day(1), panel.Rows[0].Date)
	assert.Equal(t, 431.0, panel.Rows[0].Prices["SPY"])
	assert.InDelta(t, 0.30, panel.Rows[4].PolicyRate, 1e-12)
	require.NoError(t, panel.Validate())

	_, err = store.LoadPanel(ctx, day(1), day(5), []string{"GLD"})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPanelStore_Labels(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewPanelStore(conn)
	ctx := context.Background()

	p := testPanel(0, 3)
	lp := &domain.LabeledPanel{Assets: p.Assets}
	for i, row := range p.Rows {
		lp.Rows = append(lp.Rows, domain.LabeledObservation{
			Observation:  row,
			RateChange:   math.NaN(),
			YieldChange:  float64(i) / 10,
			VolatilityMA: 22.5,
			Regime:       domain.AllRegimes()[i],
		})
	}

	require.NoError(t, store.SaveLabels(ctx, "run-1", lp))
	assert.ErrorIs(t, store.SaveLabels(ctx, "run-1", lp), storage.ErrDuplicateKey)

	got, err := store.GetLabels(ctx, "run-1")
	require.NoError(t, err)
	require.Equal(t, 3, got.Len())
	assert.Equal(t, []string{"SPY", "TLT"}, got.Assets)
	assert.Equal(t, domain.RegimeEasing, got.Rows[1].Regime)
	assert.True(t, math.IsNaN(got.Rows[0].RateChange))
	assert.Equal(t, 432.0, got.Rows[2].Prices["SPY"])

	_, err = store.GetLabels(ctx, "run-2")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
