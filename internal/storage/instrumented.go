package storage

import (
	"context"
	"time"

	"macro-regime-lab/internal/domain"
)

// QueryRecorder receives the duration and outcome of every store call.
type QueryRecorder interface {
	RecordDBQuery(database, operation string, seconds float64, err error)
}

// InstrumentPanelStore wraps s so each call is reported to rec under database.
func InstrumentPanelStore(s PanelStore, database string, rec QueryRecorder) PanelStore {
	return &instrumentedPanelStore{next: s, timer: timer{database: database, rec: rec}}
}

// InstrumentResultStore wraps s so each call is reported to rec under database.
func InstrumentResultStore(s ResultStore, database string, rec QueryRecorder) ResultStore {
	return &instrumentedResultStore{next: s, timer: timer{database: database, rec: rec}}
}

type timer struct {
	database string
	rec      QueryRecorder
}

func (t timer) observe(operation string, start time.Time, err error) {
	t.rec.RecordDBQuery(t.database, operation, time.Since(start).Seconds(), err)
}

type instrumentedPanelStore struct {
	next PanelStore
	timer
}

func (s *instrumentedPanelStore) SaveObservations(ctx context.Context, panel *domain.Panel) (n int, err error) {
	defer func(t time.Time) { s.observe("save_observations", t, err) }(time.Now())
	return s.next.SaveObservations(ctx, panel)
}

func (s *instrumentedPanelStore) LoadPanel(ctx context.Context, start, end time.Time, assets []string) (p *domain.Panel, err error) {
	defer func(t time.Time) { s.observe("load_panel", t, err) }(time.Now())
	return s.next.LoadPanel(ctx, start, end, assets)
}

func (s *instrumentedPanelStore) SaveLabels(ctx context.Context, runID string, lp *domain.LabeledPanel) (err error) {
	defer func(t time.Time) { s.observe("save_labels", t, err) }(time.Now())
	return s.next.SaveLabels(ctx, runID, lp)
}

func (s *instrumentedPanelStore) GetLabels(ctx context.Context, runID string) (lp *domain.LabeledPanel, err error) {
	defer func(t time.Time) { s.observe("get_labels", t, err) }(time.Now())
	return s.next.GetLabels(ctx, runID)
}

type instrumentedResultStore struct {
	next ResultStore
	timer
}

func (s *instrumentedResultStore) InsertRun(ctx context.Context, run *domain.Run) (err error) {
	defer func(t time.Time) { s.observe("insert_run", t, err) }(time.Now())
	return s.next.InsertRun(ctx, run)
}

func (s *instrumentedResultStore) GetRun(ctx context.Context, runID string) (run *domain.Run, err error) {
	defer func(t time.Time) { s.observe("get_run", t, err) }(time.Now())
	return s.next.GetRun(ctx, runID)
}

func (s *instrumentedResultStore) ListRuns(ctx context.Context) (runs []*domain.Run, err error) {
	defer func(t time.Time) { s.observe("list_runs", t, err) }(time.Now())
	return s.next.ListRuns(ctx)
}

func (s *instrumentedResultStore) InsertPerformance(ctx context.Context, runID string, records []domain.PerformanceRecord) (err error) {
	defer func(t time.Time) { s.observe("insert_performance", t, err) }(time.Now())
	return s.next.InsertPerformance(ctx, runID, records)
}

func (s *instrumentedResultStore) GetPerformance(ctx context.Context, runID string) (records []domain.PerformanceRecord, err error) {
	defer func(t time.Time) { s.observe("get_performance", t, err) }(time.Now())
	return s.next.GetPerformance(ctx, runID)
}

func (s *instrumentedResultStore) InsertShockEvents(ctx context.Context, runID string, events []domain.ShockEvent) (err error) {
	defer func(t time.Time) { s.observe("insert_shock_events", t, err) }(time.Now())
	return s.next.InsertShockEvents(ctx, runID, events)
}

func (s *instrumentedResultStore) GetShockEvents(ctx context.Context, runID string) (events []domain.ShockEvent, err error) {
	defer func(t time.Time) { s.observe("get_shock_events", t, err) }(time.Now())
	return s.next.GetShockEvents(ctx, runID)
}

func (s *instrumentedResultStore) InsertResponses(ctx context.Context, runID string, responses []domain.ShockResponse) (err error) {
	defer func(t time.Time) { s.observe("insert_responses", t, err) }(time.Now())
	return s.next.InsertResponses(ctx, runID, responses)
}

func (s *instrumentedResultStore) GetResponses(ctx context.Context, runID string) (responses []domain.ShockResponse, err error) {
	defer func(t time.Time) { s.observe("get_responses", t, err) }(time.Now())
	return s.next.GetResponses(ctx, runID)
}

func (s *instrumentedResultStore) InsertStressSummary(ctx context.Context, runID string, summary *domain.StressSummary) (err error) {
	defer func(t time.Time) { s.observe("insert_stress_summary", t, err) }(time.Now())
	return s.next.InsertStressSummary(ctx, runID, summary)
}

func (s *instrumentedResultStore) GetStressSummary(ctx context.Context, runID string) (summary *domain.StressSummary, err error) {
	defer func(t time.Time) { s.observe("get_stress_summary", t, err) }(time.Now())
	return s.next.GetStressSummary(ctx, runID)
}
