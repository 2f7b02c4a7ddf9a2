package clickhouse

import (
	"context"
	"fmt"
	"slices"
	"time"

	"macro-regime-lab/internal/domain"
	"macro-regime-lab/internal/storage"
)

// PanelStore implements storage.PanelStore using ClickHouse.
// Macro series live in macro_observations, prices in asset_prices (one row
// per date and asset), and classifier output in regime_labels.
type PanelStore struct {
	conn *Conn
}

// NewPanelStore creates a new PanelStore.
func NewPanelStore(conn *Conn) *PanelStore {
	return &PanelStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PanelStore = (*PanelStore)(nil)

// SaveObservations inserts the rows whose dates are not stored yet.
func (s *PanelStore) SaveObservations(ctx context.Context, panel *domain.Panel) (int, error) {
	if panel == nil {
		return 0, storage.ErrInvalidInput
	}
	if err := panel.Validate(); err != nil {
		return 0, fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}
	if panel.Len() == 0 {
		return 0, nil
	}

	stored, err := s.storedDates(ctx, panel.Rows[0].Date, panel.Rows[panel.Len()-1].Date)
	if err != nil {
		return 0, fmt.Errorf("load stored dates: %w", err)
	}

	var fresh []domain.Observation
	for _, row := range panel.Rows {
		if _, ok := stored[dayKey(row.Date)]; !ok {
			fresh = append(fresh, row)
		}
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	macro, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO macro_observations (date, policy_rate, long_yield, volatility)
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare macro batch: %w", err)
	}
	for _, row := range fresh {
		if err := macro.Append(row.Date, row.PolicyRate, row.LongYield, row.Volatility); err != nil {
			return 0, fmt.Errorf("append macro row: %w", err)
		}
	}

	prices, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO asset_prices (date, asset, price)
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare price batch: %w", err)
	}
	for _, row := range fresh {
		for _, asset := range panel.Assets {
			if err := prices.Append(row.Date, asset, row.Prices[asset]); err != nil {
				return 0, fmt.Errorf("append price row: %w", err)
			}
		}
	}

	// Prices first: a row is only visible once its macro row exists.
	if err := prices.Send(); err != nil {
		return 0, fmt.Errorf("send price batch: %w", err)
	}
	if err := macro.Send(); err != nil {
		return 0, fmt.Errorf("send macro batch: %w", err)
	}
	return len(fresh), nil
}

// LoadPanel returns rows within [start, end] carrying every requested asset.
func (s *PanelStore) LoadPanel(ctx context.Context, start, end time.Time, assets []string) (*domain.Panel, error) {
	if len(assets) == 0 {
		return nil, storage.ErrInvalidInput
	}

	rows, err := s.conn.Query(ctx, `
		SELECT date, policy_rate, long_yield, volatility
		FROM macro_observations
		WHERE date >= ? AND date <= ?
		ORDER BY date ASC
	`, start, end)
	if err != nil {
		return nil, fmt.Errorf("query macro observations: %w", err)
	}
	defer rows.Close()

	var observations []domain.Observation
	for rows.Next() {
		var o domain.Observation
		if err := rows.Scan(&o.Date, &o.PolicyRate, &o.LongYield, &o.Volatility); err != nil {
			return nil, fmt.Errorf("scan macro row: %w", err)
		}
		o.Date = utcDay(o.Date)
		o.Prices = make(map[string]float64, len(assets))
		observations = append(observations, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate macro rows: %w", err)
	}

	byDate := make(map[string]int, len(observations))
	for i, o := range observations {
		byDate[dayKey(o.Date)] = i
	}
	for _, asset := range assets {
		if err := s.loadPrices(ctx, asset, start, end, observations, byDate); err != nil {
			return nil, err
		}
	}

	panel := &domain.Panel{Assets: slices.Clone(assets)}
	for _, o := range observations {
		if len(o.Prices) == len(assets) {
			panel.Rows = append(panel.Rows, o)
		}
	}
	if len(panel.Rows) == 0 {
		return nil, storage.ErrNotFound
	}
	return panel, nil
}

func (s *PanelStore) loadPrices(ctx context.Context, asset string, start, end time.Time, observations []domain.Observation, byDate map[string]int) error {
	rows, err := s.conn.Query(ctx, `
		SELECT date, price
		FROM asset_prices
		WHERE asset = ? AND date >= ? AND date <= ?
	`, asset, start, end)
	if err != nil {
		return fmt.Errorf("query %s prices: %w", asset, err)
	}
	defer rows.Close()

	for rows.Next() {
		var date time.Time
		var price float64
		if err := rows.Scan(&date, &price); err != nil {
			return fmt.Errorf("scan %s price: %w", asset, err)
		}
		if i, ok := byDate[dayKey(date)]; ok {
			observations[i].Prices[asset] = price
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate %s prices: %w", asset, err)
	}
	return nil
}

// SaveLabels stores a run's labels along with any observations not stored yet.
func (s *PanelStore) SaveLabels(ctx context.Context, runID string, lp *domain.LabeledPanel) error {
	if runID == "" || lp == nil {
		return storage.ErrInvalidInput
	}
	if err := lp.Validate(); err != nil {
		return fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}

	exists, err := s.runExists(ctx, runID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	if _, err := s.SaveObservations(ctx, lp.Panel()); err != nil {
		return err
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO regime_labels (run_id, date, rate_change, yield_change, volatility_ma, regime)
	`)
	if err != nil {
		return fmt.Errorf("prepare label batch: %w", err)
	}
	for _, row := range lp.Rows {
		err := batch.Append(runID, row.Date, row.RateChange, row.YieldChange, row.VolatilityMA, string(row.Regime))
		if err != nil {
			return fmt.Errorf("append label row: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("send label batch: %w", err)
	}

	if err := s.conn.Exec(ctx, `INSERT INTO label_runs (run_id, assets) VALUES (?, ?)`, runID, lp.Assets); err != nil {
		return fmt.Errorf("insert label run: %w", err)
	}
	return nil
}

// GetLabels rebuilds a run's labeled panel, ordered by date.
func (s *PanelStore) GetLabels(ctx context.Context, runID string) (*domain.LabeledPanel, error) {
	var assets []string
	if err := s.conn.QueryRow(ctx, `SELECT assets FROM label_runs WHERE run_id = ? LIMIT 1`, runID).Scan(&assets); err != nil {
		if isNoRows(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("query label run: %w", err)
	}

	rows, err := s.conn.Query(ctx, `
		SELECT date, rate_change, yield_change, volatility_ma, regime
		FROM regime_labels
		WHERE run_id = ?
		ORDER BY date ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query labels: %w", err)
	}
	defer rows.Close()

	lp := &domain.LabeledPanel{Assets: assets}
	for rows.Next() {
		var row domain.LabeledObservation
		var regime string
		if err := rows.Scan(&row.Date, &row.RateChange, &row.YieldChange, &row.VolatilityMA, &regime); err != nil {
			return nil, fmt.Errorf("scan label row: %w", err)
		}
		if row.Regime, err = domain.ParseRegime(regime); err != nil {
			return nil, err
		}
		row.Date = utcDay(row.Date)
		lp.Rows = append(lp.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate label rows: %w", err)
	}
	if len(lp.Rows) == 0 {
		return nil, storage.ErrNotFound
	}

	panel, err := s.LoadPanel(ctx, lp.Rows[0].Date, lp.Rows[len(lp.Rows)-1].Date, assets)
	if err != nil {
		return nil, fmt.Errorf("load labeled observations: %w", err)
	}
	byDate := make(map[string]domain.Observation, panel.Len())
	for _, o := range panel.Rows {
		byDate[dayKey(o.Date)] = o
	}
	for i := range lp.Rows {
		o, ok := byDate[dayKey(lp.Rows[i].Date)]
		if !ok {
			return nil, fmt.Errorf("labels for run %s reference missing observation %s", runID, lp.Rows[i].Date.Format(domain.DateLayout))
		}
		lp.Rows[i].Observation = o
	}
	return lp, nil
}

func (s *PanelStore) storedDates(ctx context.Context, start, end time.Time) (map[string]struct{}, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT date FROM macro_observations
		WHERE date >= ? AND date <= ?
	`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var date time.Time
		if err := rows.Scan(&date); err != nil {
			return nil, err
		}
		out[dayKey(date)] = struct{}{}
	}
	return out, rows.Err()
}

func (s *PanelStore) runExists(ctx context.Context, runID string) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `SELECT count(*) FROM label_runs WHERE run_id = ?`, runID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// dayKey identifies a calendar day independent of the location ClickHouse
// attaches to Date values.
func dayKey(t time.Time) string {
	return t.Format(domain.DateLayout)
}

func utcDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
