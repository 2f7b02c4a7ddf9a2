package storage

import (
	"context"
	"time"

	"macro-regime-lab/internal/domain"
)

// PanelStore provides access to observation and regime label storage.
type PanelStore interface {
	// SaveObservations stores panel rows whose dates are not stored yet and
	// returns how many rows were added. Stored rows are never updated.
	SaveObservations(ctx context.Context, panel *domain.Panel) (int, error)

	// LoadPanel returns stored rows within [start, end] (inclusive) for the
	// given assets, ordered by date. Rows lacking any asset are skipped.
	// Returns ErrNotFound if no row matches.
	LoadPanel(ctx context.Context, start, end time.Time, assets []string) (*domain.Panel, error)

	// SaveLabels stores the classifier output of a run.
	// Returns ErrDuplicateKey if labels for runID exist.
	SaveLabels(ctx context.Context, runID string, lp *domain.LabeledPanel) error

	// GetLabels returns a run's labeled panel, ordered by date.
	// Returns ErrNotFound if the run has no labels.
	GetLabels(ctx context.Context, runID string) (*domain.LabeledPanel, error)
}

// ResultStore provides access to run metadata and analysis results.
// Result inserts for an unknown run return ErrNotFound.
type ResultStore interface {
	// InsertRun adds run metadata. Returns ErrDuplicateKey if run_id exists.
	InsertRun(ctx context.Context, run *domain.Run) error

	// GetRun retrieves a run by ID. Returns ErrNotFound if not exists.
	GetRun(ctx context.Context, runID string) (*domain.Run, error)

	// ListRuns returns all runs ordered by created_at ASC, run_id ASC.
	ListRuns(ctx context.Context) ([]*domain.Run, error)

	// InsertPerformance adds a run's performance records atomically.
	// Fails entire batch on duplicate (run_id, regime, asset).
	InsertPerformance(ctx context.Context, runID string, records []domain.PerformanceRecord) error

	// GetPerformance returns a run's records ordered by regime, then asset.
	GetPerformance(ctx context.Context, runID string) ([]domain.PerformanceRecord, error)

	// InsertShockEvents adds a run's shock events atomically.
	// Fails entire batch on duplicate (run_id, event_date).
	InsertShockEvents(ctx context.Context, runID string, events []domain.ShockEvent) error

	// GetShockEvents returns a run's events ordered by date.
	GetShockEvents(ctx context.Context, runID string) ([]domain.ShockEvent, error)

	// InsertResponses adds a run's shock responses atomically.
	// Fails entire batch on duplicate (run_id, event_date).
	InsertResponses(ctx context.Context, runID string, responses []domain.ShockResponse) error

	// GetResponses returns a run's responses ordered by event date.
	GetResponses(ctx context.Context, runID string) ([]domain.ShockResponse, error)

	// InsertStressSummary adds a run's stress summary.
	// Returns ErrDuplicateKey if one exists.
	InsertStressSummary(ctx context.Context, runID string, s *domain.StressSummary) error

	// GetStressSummary returns a run's stress summary. Returns ErrNotFound if not exists.
	GetStressSummary(ctx context.Context, runID string) (*domain.StressSummary, error)
}
