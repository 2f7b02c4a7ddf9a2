package acquisition

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"macro-regime-lab/internal/domain"
)

type stubMacro struct {
	rows []MacroRow
	err  error
}

func (s stubMacro) Macro(context.Context, time.Time, time.Time) ([]MacroRow, error) {
	return s.rows, s.err
}

func TestSource_Panel(t *testing.T) {
	macro := stubMacro{rows: []MacroRow{
		{Date: d(2), PolicyRate: 4.3, LongYield: 3.9},
		{Date: d(3), PolicyRate: 4.3, LongYield: 3.8},
	}}
	market := Simulated{Seed: 1}

	src := Source{Macro: macro, Market: market, Start: d(2), End: d(3), Assets: []string{"SPY"}}
	panel, _, err := src.Panel(context.Background())
	require.NoError(t, err)
	require.NotNil(t, panel)
	assert.Equal(t, []string{"SPY"}, panel.Assets)
	for _, row := range panel.Rows {
		assert.Equal(t, 4.3, row.PolicyRate)
	}
}

func TestSource_MacroError(t *testing.T) {
	boom := errors.New("boom")
	src := Source{Macro: stubMacro{err: boom}, Market: Simulated{}, Start: d(2), End: d(9)}

	_, _, err := src.Panel(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestSimulatedSource_Deterministic(t *testing.T) {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2020, 6, 30, 0, 0, 0, 0, time.UTC)
	src := Source{Macro: Simulated{Seed: 7}, Market: Simulated{Seed: 7}, Start: start, End: end, Assets: []string{"SPY", "TLT"}}

	a, _, err := src.Panel(context.Background())
	require.NoError(t, err)
	b, _, err := src.Panel(context.Background())
	require.NoError(t, err)

	require.Greater(t, a.Len(), 100)
	assert.Equal(t, a.Rows, b.Rows)
	assert.NoError(t, a.Validate())
}

func TestMarketFile_FiltersRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "market.csv")
	data := "date,volatility,SPY\n2023-01-02,20,100\n2023-01-03,21,101\n2023-01-04,22,102\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	rows, err := MarketFile{Path: path}.Market(context.Background(), d(3), d(4), nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, d(3), rows[0].Date)
	assert.Equal(t, 102.0, rows[1].Prices["SPY"])
}

func TestMarketFile_Missing(t *testing.T) {
	_, err := MarketFile{Path: filepath.Join(t.TempDir(), "nope.csv")}.Market(context.Background(), d(1), d(2), nil)
	assert.Error(t, err)
}

func TestPanelFile_ProjectsAssets(t *testing.T) {
	panel := &domain.Panel{Assets: []string{"SPY", "TLT"}}
	for i := 2; i <= 6; i++ {
		panel.Rows = append(panel.Rows, domain.Observation{
			Date: d(i), PolicyRate: 4, LongYield: 3.5, Volatility: 18,
			Prices: map[string]float64{"SPY": 100 + float64(i), "TLT": 90},
		})
	}
	path := filepath.Join(t.TempDir(), "combined_data.csv")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, WritePanelCSV(f, panel))
	require.NoError(t, f.Close())

	got, warnings, err := PanelFile{Path: path, Start: d(3), End: d(5), Assets: []string{"SPY", "GLD"}}.Panel(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"SPY"}, got.Assets)
	require.Equal(t, 3, got.Len())
	assert.Equal(t, d(3), got.Rows[0].Date)
	assert.NotContains(t, got.Rows[0].Prices, "TLT")
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Message, "GLD")

	_, _, err = PanelFile{Path: path, Assets: []string{"GLD"}}.Panel(context.Background())
	assert.ErrorIs(t, err, domain.ErrPrecondition)
}
