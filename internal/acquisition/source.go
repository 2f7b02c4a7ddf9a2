package acquisition

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"macro-regime-lab/internal/domain"
)

// MacroProvider supplies policy-rate and long-yield rows.
type MacroProvider interface {
	Macro(ctx context.Context, start, end time.Time) ([]MacroRow, error)
}

// MarketProvider supplies volatility-index and price rows.
type MarketProvider interface {
	Market(ctx context.Context, start, end time.Time, assets []string) ([]MarketRow, error)
}

// Source builds an aligned panel from a macro and a market provider.
type Source struct {
	Macro  MacroProvider
	Market MarketProvider
	Start  time.Time
	End    time.Time
	Assets []string
}

// Panel fetches both sides and aligns them.
func (s Source) Panel(ctx context.Context) (*domain.Panel, domain.Warnings, error) {
	macro, err := s.Macro.Macro(ctx, s.Start, s.End)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch macro series: %w", err)
	}
	market, err := s.Market.Market(ctx, s.Start, s.End, s.Assets)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch market series: %w", err)
	}
	return Align(macro, market, s.Assets)
}

// FREDMacro reads the policy rate and long yield from FRED.
type FREDMacro struct {
	Client       *FREDClient
	PolicySeries string // e.g. DFF
	YieldSeries  string // e.g. DGS10
}

// Macro implements MacroProvider.
func (f FREDMacro) Macro(ctx context.Context, start, end time.Time) ([]MacroRow, error) {
	return f.Client.Macro(ctx, f.PolicySeries, f.YieldSeries, start, end)
}

// MarketFile reads a market CSV with a date,volatility,<asset>... header.
type MarketFile struct {
	Path string
}

// Market implements MarketProvider. Rows outside [start, end] are dropped.
// Assets absent from the file are left for Align to report.
func (m MarketFile) Market(_ context.Context, start, end time.Time, _ []string) ([]MarketRow, error) {
	f, err := os.Open(m.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, _, err := LoadMarketCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.Path, err)
	}
	return slices.DeleteFunc(rows, func(r MarketRow) bool {
		return r.Date.Before(dayOf(start)) || r.Date.After(dayOf(end))
	}), nil
}

// Simulated generates both sides with Simulate. Macro and Market draw from
// the same seeded generator, so each call regenerates the full history.
type Simulated struct {
	Seed int64
}

// Macro implements MacroProvider.
func (s Simulated) Macro(_ context.Context, start, end time.Time) ([]MacroRow, error) {
	macro, _ := Simulate(SimulateOptions{Start: start, End: end, Seed: s.Seed})
	return macro, nil
}

// Market implements MarketProvider.
func (s Simulated) Market(_ context.Context, start, end time.Time, assets []string) ([]MarketRow, error) {
	_, market := Simulate(SimulateOptions{Start: start, End: end, Assets: assets, Seed: s.Seed})
	return market, nil
}

// PanelFile reads an already aligned panel CSV, such as combined_data.csv
// written by a previous run.
type PanelFile struct {
	Path   string
	Start  time.Time
	End    time.Time
	Assets []string
}

// Panel loads the file, keeps rows within [Start, End] and projects the
// panel onto Assets. Missing assets are warned about and skipped.
func (p PanelFile) Panel(_ context.Context) (*domain.Panel, domain.Warnings, error) {
	f, err := os.Open(p.Path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	panel, err := LoadPanelCSV(f)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", p.Path, err)
	}

	var warnings domain.Warnings
	var assets []string
	var missing []string
	for _, a := range p.Assets {
		if panel.HasAsset(a) {
			assets = append(assets, a)
		} else {
			missing = append(missing, a)
		}
	}
	if len(missing) > 0 {
		warnings.Addf("acquisition", "missing tickers: %s", strings.Join(missing, ", "))
	}
	if len(assets) == 0 {
		return nil, warnings, fmt.Errorf("%w: %s has none of the requested assets", domain.ErrPrecondition, p.Path)
	}

	out := &domain.Panel{Assets: assets}
	for _, row := range panel.Rows {
		if (!p.Start.IsZero() && row.Date.Before(dayOf(p.Start))) || (!p.End.IsZero() && row.Date.After(dayOf(p.End))) {
			continue
		}
		prices := make(map[string]float64, len(assets))
		for _, a := range assets {
			prices[a] = row.Prices[a]
		}
		row.Prices = prices
		out.Rows = append(out.Rows, row)
	}
	if out.Len() == 0 {
		return nil, warnings, fmt.Errorf("%w: %s has no rows in range", domain.ErrPrecondition, p.Path)
	}
	return out, warnings, nil
}
