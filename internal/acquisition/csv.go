package acquisition

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"macro-regime-lab/internal/domain"
)

var panelPrefix = []string{"date", "policy_rate", "long_yield", "volatility"}

// WritePanelCSV writes the panel with header
// date,policy_rate,long_yield,volatility,<asset>...
func WritePanelCSV(w io.Writer, panel *domain.Panel) error {
	cw := csv.NewWriter(w)
	header := append(append([]string(nil), panelPrefix...), panel.Assets...)
	if err := cw.Write(header); err != nil {
		return err
	}
	record := make([]string, len(header))
	for _, row := range panel.Rows {
		record[0] = row.Date.Format(domain.DateLayout)
		record[1] = formatFloat(row.PolicyRate)
		record[2] = formatFloat(row.LongYield)
		record[3] = formatFloat(row.Volatility)
		for i, asset := range panel.Assets {
			record[4+i] = formatFloat(row.Prices[asset])
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// LoadPanelCSV reads a panel written by WritePanelCSV and validates it.
func LoadPanelCSV(r io.Reader) (*domain.Panel, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read panel header: %w", err)
	}
	if len(header) <= len(panelPrefix) {
		return nil, fmt.Errorf("%w: panel header has no asset columns", domain.ErrPrecondition)
	}
	for i, want := range panelPrefix {
		if strings.TrimSpace(header[i]) != want {
			return nil, fmt.Errorf("%w: panel column %d is %q, want %q", domain.ErrPrecondition, i, header[i], want)
		}
	}
	assets := trimAll(header[len(panelPrefix):])

	panel := &domain.Panel{Assets: assets}
	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read panel line %d: %w", line, err)
		}
		date, err := time.Parse(domain.DateLayout, strings.TrimSpace(record[0]))
		if err != nil {
			return nil, fmt.Errorf("panel line %d: %w", line, err)
		}
		values, err := parseFloats(record[1:])
		if err != nil {
			return nil, fmt.Errorf("panel line %d: %w", line, err)
		}
		obs := domain.Observation{
			Date:       date,
			PolicyRate: values[0],
			LongYield:  values[1],
			Volatility: values[2],
			Prices:     make(map[string]float64, len(assets)),
		}
		for i, asset := range assets {
			obs.Prices[asset] = values[3+i]
		}
		panel.Rows = append(panel.Rows, obs)
	}

	if err := panel.Validate(); err != nil {
		return nil, fmt.Errorf("load panel: %w", err)
	}
	return panel, nil
}

// LoadMarketCSV reads market rows with header date,volatility,<asset>...
// Empty cells are missing values.
func LoadMarketCSV(r io.Reader) ([]MarketRow, []string, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read market header: %w", err)
	}
	if len(header) < 3 || strings.TrimSpace(header[0]) != "date" || strings.TrimSpace(header[1]) != "volatility" {
		return nil, nil, fmt.Errorf("%w: market header must start with date,volatility and name at least one asset", domain.ErrPrecondition)
	}
	assets := trimAll(header[2:])

	var rows []MarketRow
	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read market line %d: %w", line, err)
		}
		date, err := time.Parse(domain.DateLayout, strings.TrimSpace(record[0]))
		if err != nil {
			return nil, nil, fmt.Errorf("market line %d: %w", line, err)
		}
		values, err := parseFloats(record[1:])
		if err != nil {
			return nil, nil, fmt.Errorf("market line %d: %w", line, err)
		}
		row := MarketRow{Date: date, Volatility: values[0], Prices: make(map[string]float64, len(assets))}
		for i, asset := range assets {
			if !math.IsNaN(values[1+i]) {
				row.Prices[asset] = values[1+i]
			}
		}
		rows = append(rows, row)
	}
	return rows, assets, nil
}

// parseFloats parses cells, mapping empty cells and "." to NaN.
func parseFloats(cells []string) ([]float64, error) {
	out := make([]float64, len(cells))
	for i, cell := range cells {
		cell = strings.TrimSpace(cell)
		if cell == "" || cell == "." {
			out[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func trimAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.TrimSpace(s)
	}
	return out
}
