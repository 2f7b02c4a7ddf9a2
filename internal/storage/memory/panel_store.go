package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"macro-regime-lab/internal/domain"
	"macro-regime-lab/internal/storage"
)

// PanelStore is an in-memory implementation of storage.PanelStore.
type PanelStore struct {
	mu     sync.RWMutex
	rows   map[time.Time]domain.Observation // keyed by date
	labels map[string][]labelRow            // keyed by run_id
	assets map[string][]string              // keyed by run_id
}

type labelRow struct {
	date         time.Time
	rateChange   float64
	yieldChange  float64
	volatilityMA float64
	regime       domain.Regime
}

// NewPanelStore creates a new in-memory panel store.
func NewPanelStore() *PanelStore {
	return &PanelStore{
		rows:   make(map[time.Time]domain.Observation),
		labels: make(map[string][]labelRow),
		assets: make(map[string][]string),
	}
}

// SaveObservations stores rows whose dates are new. Existing rows are kept as is.
func (s *PanelStore) SaveObservations(_ context.Context, panel *domain.Panel) (int, error) {
	if panel == nil {
		return 0, storage.ErrInvalidInput
	}
	if err := panel.Validate(); err != nil {
		return 0, fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, row := range panel.Rows {
		if _, exists := s.rows[row.Date]; exists {
			continue
		}
		s.rows[row.Date] = row.Clone()
		added++
	}
	return added, nil
}

// LoadPanel returns rows within [start, end] that carry every requested asset.
func (s *PanelStore) LoadPanel(_ context.Context, start, end time.Time, assets []string) (*domain.Panel, error) {
	if len(assets) == 0 {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	panel := &domain.Panel{Assets: slices.Clone(assets)}
	for date, row := range s.rows {
		if date.Before(start) || date.After(end) || !hasAll(row, assets) {
			continue
		}
		panel.Rows = append(panel.Rows, project(row, assets))
	}
	if len(panel.Rows) == 0 {
		return nil, storage.ErrNotFound
	}

	sort.Slice(panel.Rows, func(i, j int) bool {
		return panel.Rows[i].Date.Before(panel.Rows[j].Date)
	})
	return panel, nil
}

// SaveLabels stores a run's labels. Observations are saved alongside so
// GetLabels can rebuild the panel.
func (s *PanelStore) SaveLabels(ctx context.Context, runID string, lp *domain.LabeledPanel) error {
	if runID == "" || lp == nil {
		return storage.ErrInvalidInput
	}
	if err := lp.Validate(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}

	s.mu.RLock()
	_, exists := s.labels[runID]
	s.mu.RUnlock()
	if exists {
		return storage.ErrDuplicateKey
	}

	if _, err := s.SaveObservations(ctx, lp.Panel()); err != nil {
		return err
	}

	rows := make([]labelRow, len(lp.Rows))
	for i, r := range lp.Rows {
		rows[i] = labelRow{
			date:         r.Date,
			rateChange:   r.RateChange,
			yieldChange:  r.YieldChange,
			volatilityMA: r.VolatilityMA,
			regime:       r.Regime,
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.labels[runID]; exists {
		return storage.ErrDuplicateKey
	}
	s.labels[runID] = rows
	s.assets[runID] = slices.Clone(lp.Assets)
	return nil
}

// GetLabels rebuilds a run's labeled panel from its labels and stored observations.
func (s *PanelStore) GetLabels(_ context.Context, runID string) (*domain.LabeledPanel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, ok := s.labels[runID]
	if !ok {
		return nil, storage.ErrNotFound
	}

	assets := s.assets[runID]
	lp := &domain.LabeledPanel{Assets: slices.Clone(assets), Rows: make([]domain.LabeledObservation, 0, len(rows))}
	for _, r := range rows {
		obs, ok := s.rows[r.date]
		if !ok {
			return nil, fmt.Errorf("labels for run %s reference missing observation %s", runID, r.date.Format(domain.DateLayout))
		}
		lp.Rows = append(lp.Rows, domain.LabeledObservation{
			Observation:  project(obs, assets),
			RateChange:   r.rateChange,
			YieldChange:  r.yieldChange,
			VolatilityMA: r.volatilityMA,
			Regime:       r.regime,
		})
	}
	return lp, nil
}

func hasAll(row domain.Observation, assets []string) bool {
	for _, a := range assets {
		if _, ok := row.Prices[a]; !ok {
			return false
		}
	}
	return true
}

func project(row domain.Observation, assets []string) domain.Observation {
	out := row
	out.Prices = make(map[string]float64, len(assets))
	for _, a := range assets {
		out.Prices[a] = row.Prices[a]
	}
	return out
}

var _ storage.PanelStore = (*PanelStore)(nil)
