package memory

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"macro-regime-lab/internal/domain"
	"macro-regime-lab/internal/storage"
)

// ResultStore is an in-memory implementation of storage.ResultStore.
type ResultStore struct {
	mu          sync.RWMutex
	runs        map[string]*domain.Run                       // keyed by run_id
	performance map[string][]domain.PerformanceRecord        // keyed by run_id
	events      map[string]map[time.Time]domain.ShockEvent    // run_id -> event_date
	responses   map[string]map[time.Time]domain.ShockResponse // run_id -> event_date
	stress      map[string]domain.StressSummary              // keyed by run_id
}

// NewResultStore creates a new in-memory result store.
func NewResultStore() *ResultStore {
	return &ResultStore{
		runs:        make(map[string]*domain.Run),
		performance: make(map[string][]domain.PerformanceRecord),
		events:      make(map[string]map[time.Time]domain.ShockEvent),
		responses:   make(map[string]map[time.Time]domain.ShockResponse),
		stress:      make(map[string]domain.StressSummary),
	}
}

// InsertRun adds run metadata. Returns ErrDuplicateKey if run_id exists.
func (s *ResultStore) InsertRun(_ context.Context, run *domain.Run) error {
	if run == nil || run.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[run.RunID]; exists {
		return storage.ErrDuplicateKey
	}
	s.runs[run.RunID] = copyRun(run)
	return nil
}

// GetRun retrieves a run by ID. Returns ErrNotFound if not exists.
func (s *ResultStore) GetRun(_ context.Context, runID string) (*domain.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, exists := s.runs[runID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyRun(run), nil
}

// ListRuns returns all runs ordered by created_at ASC, run_id ASC.
func (s *ResultStore) ListRuns(_ context.Context) ([]*domain.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Run, 0, len(s.runs))
	for _, run := range s.runs {
		result = append(result, copyRun(run))
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].RunID < result[j].RunID
	})
	return result, nil
}

// InsertPerformance adds a run's records atomically. Fails entire batch on any duplicate.
func (s *ResultStore) InsertPerformance(_ context.Context, runID string, records []domain.PerformanceRecord) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[runID]; !exists {
		return storage.ErrNotFound
	}

	existing := make(map[string]struct{}, len(s.performance[runID])+len(records))
	for _, r := range s.performance[runID] {
		existing[performanceKey(r)] = struct{}{}
	}

	// First pass: check for duplicates (existing + intra-batch)
	for _, r := range records {
		if !r.Regime.IsValid() || r.Asset == "" {
			return storage.ErrInvalidInput
		}
		key := performanceKey(r)
		if _, exists := existing[key]; exists {
			return storage.ErrDuplicateKey
		}
		existing[key] = struct{}{}
	}

	s.performance[runID] = append(s.performance[runID], records...)
	return nil
}

// GetPerformance returns a run's records ordered by regime, then asset.
func (s *ResultStore) GetPerformance(_ context.Context, runID string) ([]domain.PerformanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := slices.Clone(s.performance[runID])
	sort.Slice(result, func(i, j int) bool {
		if result[i].Regime != result[j].Regime {
			return result[i].Regime < result[j].Regime
		}
		return result[i].Asset < result[j].Asset
	})
	return result, nil
}

// InsertShockEvents adds a run's events atomically. Fails entire batch on any duplicate.
func (s *ResultStore) InsertShockEvents(_ context.Context, runID string, events []domain.ShockEvent) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[runID]; !exists {
		return storage.ErrNotFound
	}

	stored := s.events[runID]
	batchKeys := make(map[time.Time]struct{}, len(events))
	for _, e := range events {
		if e.Date.IsZero() {
			return storage.ErrInvalidInput
		}
		if _, exists := stored[e.Date]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[e.Date]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[e.Date] = struct{}{}
	}

	if stored == nil {
		stored = make(map[time.Time]domain.ShockEvent, len(events))
		s.events[runID] = stored
	}
	for _, e := range events {
		stored[e.Date] = e
	}
	return nil
}

// GetShockEvents returns a run's events ordered by date.
func (s *ResultStore) GetShockEvents(_ context.Context, runID string) ([]domain.ShockEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.ShockEvent, 0, len(s.events[runID]))
	for _, e := range s.events[runID] {
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})
	return result, nil
}

// InsertResponses adds a run's responses atomically. Fails entire batch on any duplicate.
func (s *ResultStore) InsertResponses(_ context.Context, runID string, responses []domain.ShockResponse) error {
	if len(responses) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[runID]; !exists {
		return storage.ErrNotFound
	}

	stored := s.responses[runID]
	batchKeys := make(map[time.Time]struct{}, len(responses))
	for _, r := range responses {
		if r.EventDate.IsZero() {
			return storage.ErrInvalidInput
		}
		if _, exists := stored[r.EventDate]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[r.EventDate]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[r.EventDate] = struct{}{}
	}

	if stored == nil {
		stored = make(map[time.Time]domain.ShockResponse, len(responses))
		s.responses[runID] = stored
	}
	for _, r := range responses {
		stored[r.EventDate] = copyResponse(r)
	}
	return nil
}

// GetResponses returns a run's responses ordered by event date.
func (s *ResultStore) GetResponses(_ context.Context, runID string) ([]domain.ShockResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.ShockResponse, 0, len(s.responses[runID]))
	for _, r := range s.responses[runID] {
		result = append(result, copyResponse(r))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].EventDate.Before(result[j].EventDate)
	})
	return result, nil
}

// InsertStressSummary adds a run's stress summary. Returns ErrDuplicateKey if one exists.
func (s *ResultStore) InsertStressSummary(_ context.Context, runID string, summary *domain.StressSummary) error {
	if summary == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[runID]; !exists {
		return storage.ErrNotFound
	}
	if _, exists := s.stress[runID]; exists {
		return storage.ErrDuplicateKey
	}
	s.stress[runID] = *summary
	return nil
}

// GetStressSummary returns a run's stress summary. Returns ErrNotFound if not exists.
func (s *ResultStore) GetStressSummary(_ context.Context, runID string) (*domain.StressSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary, exists := s.stress[runID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return &summary, nil
}

func performanceKey(r domain.PerformanceRecord) string {
	return string(r.Regime) + ":" + r.Asset
}

func copyRun(run *domain.Run) *domain.Run {
	c := *run
	c.Assets = slices.Clone(run.Assets)
	return &c
}

func copyResponse(r domain.ShockResponse) domain.ShockResponse {
	r.Returns = maps.Clone(r.Returns)
	return r
}

var _ storage.ResultStore = (*ResultStore)(nil)
