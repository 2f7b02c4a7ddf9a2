package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"macro-regime-lab/internal/domain"
	"macro-regime-lab/internal/storage"
)

// ResultStore implements storage.ResultStore using PostgreSQL.
type ResultStore struct {
	pool *Pool
}

// NewResultStore creates a new ResultStore.
func NewResultStore(pool *Pool) *ResultStore {
	return &ResultStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ResultStore = (*ResultStore)(nil)

// InsertRun adds run metadata. Returns ErrDuplicateKey if run_id exists.
func (s *ResultStore) InsertRun(ctx context.Context, run *domain.Run) error {
	if run == nil || run.RunID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO runs (
			run_id, created_at, config_hash, data_hash,
			start_date, end_date, row_count, assets, generator_version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := s.pool.Exec(ctx, query,
		run.RunID, run.CreatedAt, run.ConfigHash, run.DataHash,
		run.StartDate, run.EndDate, run.Rows, run.Assets, run.GeneratorVersion,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

const selectRun = `
	SELECT run_id, created_at, config_hash, data_hash,
		start_date, end_date, row_count, assets, generator_version
	FROM runs
`

// GetRun retrieves a run by ID. Returns ErrNotFound if not exists.
func (s *ResultStore) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	row := s.pool.QueryRow(ctx, selectRun+` WHERE run_id = $1`, runID)
	run, err := scanRun(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListRuns returns all runs ordered by created_at ASC, run_id ASC.
func (s *ResultStore) ListRuns(ctx context.Context) ([]*domain.Run, error) {
	rows, err := s.pool.Query(ctx, selectRun+` ORDER BY created_at ASC, run_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// InsertPerformance adds a run's records atomically. Fails entire batch on any duplicate.
func (s *ResultStore) InsertPerformance(ctx context.Context, runID string, records []domain.PerformanceRecord) error {
	query := `
		INSERT INTO performance_records (
			run_id, regime, asset, ann_return_pct, ann_vol_pct,
			sharpe, max_drawdown_pct, win_rate_pct, observations
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	return s.inTx(ctx, len(records), "insert performance record", func(tx pgx.Tx) error {
		for _, r := range records {
			if !r.Regime.IsValid() || r.Asset == "" {
				return storage.ErrInvalidInput
			}
			_, err := tx.Exec(ctx, query,
				runID, string(r.Regime), r.Asset, r.AnnReturnPct, r.AnnVolPct,
				r.Sharpe, r.MaxDrawdownPct, r.WinRatePct, r.Observations,
			)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// GetPerformance returns a run's records ordered by regime, then asset.
func (s *ResultStore) GetPerformance(ctx context.Context, runID string) ([]domain.PerformanceRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT regime, asset, ann_return_pct, ann_vol_pct,
			sharpe, max_drawdown_pct, win_rate_pct, observations
		FROM performance_records
		WHERE run_id = $1
		ORDER BY regime ASC, asset ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query performance records: %w", err)
	}
	defer rows.Close()

	var records []domain.PerformanceRecord
	for rows.Next() {
		var r domain.PerformanceRecord
		var regime string
		err := rows.Scan(&regime, &r.Asset, &r.AnnReturnPct, &r.AnnVolPct,
			&r.Sharpe, &r.MaxDrawdownPct, &r.WinRatePct, &r.Observations)
		if err != nil {
			return nil, fmt.Errorf("scan performance record: %w", err)
		}
		if r.Regime, err = domain.ParseRegime(regime); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate performance records: %w", err)
	}
	return records, nil
}

// InsertShockEvents adds a run's events atomically. Fails entire batch on any duplicate.
func (s *ResultStore) InsertShockEvents(ctx context.Context, runID string, events []domain.ShockEvent) error {
	query := `
		INSERT INTO shock_events (run_id, event_date, row_index, yield, yield_change)
		VALUES ($1, $2, $3, $4, $5)
	`

	return s.inTx(ctx, len(events), "insert shock event", func(tx pgx.Tx) error {
		for _, e := range events {
			if _, err := tx.Exec(ctx, query, runID, e.Date, e.Index, e.Yield, e.YieldChange); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetShockEvents returns a run's events ordered by date.
func (s *ResultStore) GetShockEvents(ctx context.Context, runID string) ([]domain.ShockEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT event_date, row_index, yield, yield_change
		FROM shock_events
		WHERE run_id = $1
		ORDER BY event_date ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query shock events: %w", err)
	}
	defer rows.Close()

	var events []domain.ShockEvent
	for rows.Next() {
		var e domain.ShockEvent
		if err := rows.Scan(&e.Date, &e.Index, &e.Yield, &e.YieldChange); err != nil {
			return nil, fmt.Errorf("scan shock event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shock events: %w", err)
	}
	return events, nil
}

// InsertResponses adds a run's responses atomically. Fails entire batch on any duplicate.
func (s *ResultStore) InsertResponses(ctx context.Context, runID string, responses []domain.ShockResponse) error {
	query := `
		INSERT INTO shock_responses (run_id, event_date, end_date, start_yield, end_yield, returns)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	return s.inTx(ctx, len(responses), "insert shock response", func(tx pgx.Tx) error {
		for _, r := range responses {
			_, err := tx.Exec(ctx, query, runID, r.EventDate, r.EndDate, r.StartYield, r.EndYield, r.Returns)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// GetResponses returns a run's responses ordered by event date.
func (s *ResultStore) GetResponses(ctx context.Context, runID string) ([]domain.ShockResponse, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT event_date, end_date, start_yield, end_yield, returns
		FROM shock_responses
		WHERE run_id = $1
		ORDER BY event_date ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query shock responses: %w", err)
	}
	defer rows.Close()

	var responses []domain.ShockResponse
	for rows.Next() {
		var r domain.ShockResponse
		if err := rows.Scan(&r.EventDate, &r.EndDate, &r.StartYield, &r.EndYield, &r.Returns); err != nil {
			return nil, fmt.Errorf("scan shock response: %w", err)
		}
		responses = append(responses, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shock responses: %w", err)
	}
	return responses, nil
}

// InsertStressSummary adds a run's stress summary. Returns ErrDuplicateKey if one exists.
func (s *ResultStore) InsertStressSummary(ctx context.Context, runID string, summary *domain.StressSummary) error {
	if summary == nil {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO stress_summaries (run_id, median, p10, p90, mean, std, min_value, max_value, count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, runID, summary.Median, summary.P10, summary.P90, summary.Mean,
		summary.Std, summary.Min, summary.Max, summary.Count)
	if err != nil {
		return mapInsertError(err, "insert stress summary")
	}
	return nil
}

// GetStressSummary returns a run's stress summary. Returns ErrNotFound if not exists.
func (s *ResultStore) GetStressSummary(ctx context.Context, runID string) (*domain.StressSummary, error) {
	var summary domain.StressSummary
	err := s.pool.QueryRow(ctx, `
		SELECT median, p10, p90, mean, std, min_value, max_value, count
		FROM stress_summaries
		WHERE run_id = $1
	`, runID).Scan(&summary.Median, &summary.P10, &summary.P90, &summary.Mean,
		&summary.Std, &summary.Min, &summary.Max, &summary.Count)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get stress summary: %w", err)
	}
	return &summary, nil
}

// inTx runs insert inside a transaction. Empty batches are a no-op.
func (s *ResultStore) inTx(ctx context.Context, n int, op string, insert func(pgx.Tx) error) error {
	if n == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := insert(tx); err != nil {
		return mapInsertError(err, op)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func mapInsertError(err error, op string) error {
	switch {
	case errors.Is(err, storage.ErrInvalidInput):
		return err
	case isDuplicateKeyError(err):
		return storage.ErrDuplicateKey
	case isMissingParentError(err):
		return storage.ErrNotFound
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func scanRun(row pgx.Row) (*domain.Run, error) {
	var run domain.Run
	err := row.Scan(
		&run.RunID, &run.CreatedAt, &run.ConfigHash, &run.DataHash,
		&run.StartDate, &run.EndDate, &run.Rows, &run.Assets, &run.GeneratorVersion,
	)
	if err != nil {
		return nil, err
	}
	return &run, nil
}
