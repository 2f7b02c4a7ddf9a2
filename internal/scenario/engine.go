// Package scenario detects historical long-yield shocks and stress-tests a
// portfolio against the forward returns that followed them.
package scenario

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"macro-regime-lab/internal/domain"
)

// DefaultMinSpacingDays is the calendar-day gap required between accepted events.
const DefaultMinSpacingDays = 180

// Config holds shock detection and response parameters.
type Config struct {
	YieldThreshold float64 // trailing yield change, percentage points
	Lookback       int     // trading days for the trailing change
	Horizon        int     // trading days forward for responses
	MinSpacingDays int     // calendar days; 0 means DefaultMinSpacingDays
}

// Validate checks that every parameter is in range.
func (c Config) Validate() error {
	if !(c.YieldThreshold > 0) {
		return fmt.Errorf("%w: shock yield threshold must be > 0", domain.ErrPrecondition)
	}
	if c.Lookback < 1 {
		return fmt.Errorf("%w: shock lookback must be >= 1, got %d", domain.ErrPrecondition, c.Lookback)
	}
	if c.Horizon < 1 {
		return fmt.Errorf("%w: shock horizon must be >= 1, got %d", domain.ErrPrecondition, c.Horizon)
	}
	if c.MinSpacingDays < 0 {
		return fmt.Errorf("%w: minimum spacing must be >= 0, got %d", domain.ErrPrecondition, c.MinSpacingDays)
	}
	return nil
}

func (c Config) spacingDays() int {
	if c.MinSpacingDays == 0 {
		return DefaultMinSpacingDays
	}
	return c.MinSpacingDays
}

// Detect returns shock events in chronological order. A row is a candidate
// when its long yield rose by more than YieldThreshold over Lookback rows.
// Candidates are accepted greedily: the earliest one in a cluster wins and
// later ones within the spacing window of it are skipped, even if larger.
func Detect(panel *domain.Panel, cfg Config) ([]domain.ShockEvent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := panel.Validate(); err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}

	spacing := float64(cfg.spacingDays())
	var events []domain.ShockEvent
	for i := cfg.Lookback; i < panel.Len(); i++ {
		row := panel.Rows[i]
		change := row.LongYield - panel.Rows[i-cfg.Lookback].LongYield
		if !(change > cfg.YieldThreshold) {
			continue
		}
		if n := len(events); n > 0 && row.Date.Sub(events[n-1].Date).Hours()/24 <= spacing {
			continue
		}
		events = append(events, domain.ShockEvent{
			Date:        row.Date,
			Index:       i,
			Yield:       row.LongYield,
			YieldChange: change,
		})
	}
	return events, nil
}

// MeasureResponses computes, for each event, every asset's percentage price
// change over the next Horizon rows plus the start and end yields. Events
// whose horizon runs past the last row, or whose date is not in the panel,
// are dropped with a warning. Responses keep the order of events.
func MeasureResponses(ctx context.Context, panel *domain.Panel, events []domain.ShockEvent, cfg Config) ([]domain.ShockResponse, domain.Warnings, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	if err := panel.Validate(); err != nil {
		return nil, nil, fmt.Errorf("measure responses: %w", err)
	}

	slots := make([]*domain.ShockResponse, len(events))
	skipped := make([]string, len(events))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, ev := range events {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			idx, ok := panel.IndexOf(ev.Date)
			if !ok {
				skipped[i] = fmt.Sprintf("shock %s is not a panel date", ev.Date.Format(domain.DateLayout))
				return nil
			}
			end := idx + cfg.Horizon
			if end >= panel.Len() {
				skipped[i] = fmt.Sprintf("skipping shock %s: insufficient forward data (%d rows needed, %d available)",
					ev.Date.Format(domain.DateLayout), cfg.Horizon, panel.Len()-1-idx)
				return nil
			}
			slots[i] = response(panel, idx, end)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var warnings domain.Warnings
	responses := make([]domain.ShockResponse, 0, len(events))
	for i := range events {
		if skipped[i] != "" {
			warnings.Addf("scenario", "%s", skipped[i])
			continue
		}
		responses = append(responses, *slots[i])
	}
	return responses, warnings, nil
}

func response(panel *domain.Panel, start, end int) *domain.ShockResponse {
	from, to := panel.Rows[start], panel.Rows[end]
	out := &domain.ShockResponse{
		EventDate:  from.Date,
		EndDate:    to.Date,
		StartYield: from.LongYield,
		EndYield:   to.LongYield,
		Returns:    make(map[string]float64, len(panel.Assets)),
	}
	for _, asset := range panel.Assets {
		p0, p1 := from.Prices[asset], to.Prices[asset]
		if p0 == 0 {
			out.Returns[asset] = math.NaN()
			continue
		}
		out.Returns[asset] = (p1/p0 - 1) * 100
	}
	return out
}
