package storage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"macro-regime-lab/internal/domain"
	"macro-regime-lab/internal/storage"
	"macro-regime-lab/internal/storage/memory"
)

type call struct {
	database, operation string
	err                 error
}

type recorder struct{ calls []call }

func (r *recorder) RecordDBQuery(database, operation string, _ float64, err error) {
	r.calls = append(r.calls, call{database, operation, err})
}

func TestInstrumentResultStore(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	store := storage.InstrumentResultStore(memory.NewResultStore(), "postgres", rec)

	run := &domain.Run{RunID: "r1", CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, store.InsertRun(ctx, run))
	err := store.InsertRun(ctx, run)
	require.ErrorIs(t, err, storage.ErrDuplicateKey)
	_, err = store.GetStressSummary(ctx, "r1")
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.Len(t, rec.calls, 3)
	assert.Equal(t, call{"postgres", "insert_run", nil}, rec.calls[0])
	assert.Equal(t, "insert_run", rec.calls[1].operation)
	assert.True(t, errors.Is(rec.calls[1].err, storage.ErrDuplicateKey))
	assert.Equal(t, "get_stress_summary", rec.calls[2].operation)
	assert.True(t, errors.Is(rec.calls[2].err, storage.ErrNotFound))
}

func TestInstrumentPanelStore(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	store := storage.InstrumentPanelStore(memory.NewPanelStore(), "clickhouse", rec)

	panel := &domain.Panel{Assets: []string{"SPY"}, Rows: []domain.Observation{{
		Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), PolicyRate: 5, LongYield: 4, Volatility: 13,
		Prices: map[string]float64{"SPY": 470},
	}}}
	n, err := store.SaveObservations(ctx, panel)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = store.GetLabels(ctx, "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.Len(t, rec.calls, 2)
	assert.Equal(t, call{"clickhouse", "save_observations", nil}, rec.calls[0])
	assert.Equal(t, "get_labels", rec.calls[1].operation)
	assert.Error(t, rec.calls[1].err)
}
