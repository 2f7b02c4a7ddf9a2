package scenario

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"macro-regime-lab/internal/domain"
)

var defaultConfig = Config{YieldThreshold: 0.70, Lookback: 21, Horizon: 63}

// yieldPanel builds n consecutive days. The long yield rises by 1pp at each
// step row; SPY trends up by 1 per day.
func yieldPanel(n int, steps ...int) *domain.Panel {
	start := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)
	p := &domain.Panel{Assets: []string{"SPY", "TLT"}}
	for i := 0; i < n; i++ {
		y := 2.0
		for _, s := range steps {
			if i >= s {
				y++
			}
		}
		p.Rows = append(p.Rows, domain.Observation{
			Date:       start.AddDate(0, 0, i),
			PolicyRate: 1,
			LongYield:  y,
			Volatility: 18,
			Prices:     map[string]float64{"SPY": 100 + float64(i), "TLT": 200 - 0.5*float64(i)},
		})
	}
	return p
}

func TestDetect_GreedySpacing(t *testing.T) {
	// Steps at rows 30, 100 and 300. The second is within 180 days of the first.
	panel := yieldPanel(320, 30, 100, 300)

	events, err := Detect(panel, defaultConfig)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Index != 30 || events[1].Index != 300 {
		t.Errorf("expected events at rows 30 and 300, got %d and %d", events[0].Index, events[1].Index)
	}
	if math.Abs(events[0].YieldChange-1) > 1e-12 {
		t.Errorf("expected trailing change 1.0, got %f", events[0].YieldChange)
	}
	if events[0].Yield != 3 {
		t.Errorf("expected yield 3 at first event, got %f", events[0].Yield)
	}

	for i := range events {
		for j := i + 1; j < len(events); j++ {
			if gap := events[j].Date.Sub(events[i].Date).Hours() / 24; gap <= 180 {
				t.Errorf("events %d and %d are %.0f days apart", i, j, gap)
			}
		}
	}
}

func TestDetect_BelowThreshold(t *testing.T) {
	panel := yieldPanel(100)
	for i := range panel.Rows {
		panel.Rows[i].LongYield = 2 + 0.02*float64(i) // +0.42 over 21 rows
	}

	events, err := Detect(panel, defaultConfig)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected no events, got %d", len(events))
	}
}

func TestDetect_InvalidConfig(t *testing.T) {
	bad := defaultConfig
	bad.Lookback = 0
	if _, err := Detect(yieldPanel(10), bad); !errors.Is(err, domain.ErrPrecondition) {
		t.Errorf("expected ErrPrecondition, got %v", err)
	}
}

func TestMeasureResponses_HorizonBound(t *testing.T) {
	panel := yieldPanel(320, 30, 300)
	events, err := Detect(panel, defaultConfig)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("setup: expected 2 events, got %d", len(events))
	}

	responses, warnings, err := MeasureResponses(context.Background(), panel, events, defaultConfig)
	if err != nil {
		t.Fatalf("measure: %v", err)
	}
	if len(responses) != 1 {
		t.Fatalf("expected 1 response, got %d", len(responses))
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0].Message, "insufficient forward data") {
		t.Errorf("expected an insufficient-data warning, got %v", warnings.Strings())
	}

	for _, r := range responses {
		idx, ok := panel.IndexOf(r.EndDate)
		if !ok || idx >= panel.Len() {
			t.Errorf("response end %s is outside the panel", r.EndDate)
		}
	}

	r := responses[0]
	if want := panel.Rows[93].Date; !r.EndDate.Equal(want) {
		t.Errorf("expected end date %s, got %s", want, r.EndDate)
	}
	if want := (193.0/130.0 - 1) * 100; math.Abs(r.Returns["SPY"]-want) > 1e-9 {
		t.Errorf("SPY return: expected %f, got %f", want, r.Returns["SPY"])
	}
	if r.StartYield != 3 || r.EndYield != 3 {
		t.Errorf("expected start/end yield 3/3, got %f/%f", r.StartYield, r.EndYield)
	}
}

func TestMeasureResponses_UnknownDate(t *testing.T) {
	panel := yieldPanel(100)
	events := []domain.ShockEvent{{Date: time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)}}

	responses, warnings, err := MeasureResponses(context.Background(), panel, events, defaultConfig)
	if err != nil {
		t.Fatalf("measure: %v", err)
	}
	if len(responses) != 0 || len(warnings) != 1 {
		t.Errorf("expected 0 responses and 1 warning, got %d and %d", len(responses), len(warnings))
	}
}

func fixedResponses() []domain.ShockResponse {
	spy := []float64{-10, -5, 0, 5, 10}
	tlt := []float64{2, 1, 0, -1, -2}
	out := make([]domain.ShockResponse, len(spy))
	for i := range spy {
		out[i] = domain.ShockResponse{
			EventDate: time.Date(2000+i, 6, 1, 0, 0, 0, 0, time.UTC),
			Returns:   map[string]float64{"SPY": spy[i], "TLT": tlt[i]},
		}
	}
	return out
}

func TestStressTest_Summary(t *testing.T) {
	weights := domain.Weights{"SPY": 0.6, "TLT": 0.3, "GLD": 0.1}

	result, err := StressTest(fixedResponses(), nil, weights)
	if err != nil {
		t.Fatalf("stress test: %v", err)
	}

	s := result.Summary
	checks := []struct {
		name      string
		got, want float64
	}{
		{"median", s.Median, 0},
		{"p10", s.P10, -4.32},
		{"p90", s.P90, 4.32},
		{"mean", s.Mean, 0},
		{"std", s.Std, math.Sqrt(14.58)},
		{"min", s.Min, -5.4},
		{"max", s.Max, 5.4},
	}
	for _, c := range checks {
		if math.Abs(c.got-c.want) > 1e-9 {
			t.Errorf("%s: expected %f, got %f", c.name, c.want, c.got)
		}
	}
	if s.Count != 5 {
		t.Errorf("expected count 5, got %d", s.Count)
	}

	if len(result.Table) != 3 {
		t.Fatalf("expected 3 table rows, got %d", len(result.Table))
	}
	tail := result.Table[0]
	if tail.Scenario != domain.ScenarioTail {
		t.Errorf("expected first row %q, got %q", domain.ScenarioTail, tail.Scenario)
	}
	if math.Abs(tail.Assets["SPY"]-(-8)) > 1e-9 {
		t.Errorf("SPY tail: expected -8, got %f", tail.Assets["SPY"])
	}
	if math.Abs(tail.Portfolio-s.P10) > 1e-12 {
		t.Errorf("portfolio tail %f differs from summary p10 %f", tail.Portfolio, s.P10)
	}
	if got := result.Assets; len(got) != 2 || got[0] != "SPY" || got[1] != "TLT" {
		t.Errorf("expected assets [SPY TLT], got %v", got)
	}
}

func TestStressTest_ZeroResponses(t *testing.T) {
	result, err := StressTest(nil, nil, domain.Weights{"SPY": 1})
	if !errors.Is(err, domain.ErrInsufficientSample) {
		t.Fatalf("expected ErrInsufficientSample, got %v", err)
	}
	if result != nil {
		t.Error("expected no result alongside the error")
	}
}
