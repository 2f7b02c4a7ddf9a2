package pipeline

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"macro-regime-lab/internal/acquisition"
	"macro-regime-lab/internal/domain"
	"macro-regime-lab/internal/regime"
	"macro-regime-lab/internal/reporting"
	"macro-regime-lab/internal/storage/memory"
)

var testRegime = regime.Config{
	QuarterlyLookback:         5,
	RateChangeThreshold:       0.20,
	VolatilityStressThreshold: 25,
	VolatilityLookback:        2,
}

func storeRun(t *testing.T, withResponses bool) (*memory.PanelStore, *memory.ResultStore) {
	t.Helper()
	ctx := context.Background()
	start := time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)

	panel := &domain.Panel{Assets: []string{"SPY", "TLT"}}
	for i := 0; i < 120; i++ {
		rate := 1.0
		if i > 60 {
			rate += float64(i-60) * 0.06
		}
		panel.Rows = append(panel.Rows, domain.Observation{
			Date:       start.AddDate(0, 0, i),
			PolicyRate: rate,
			LongYield:  rate + 1,
			Volatility: 18,
			Prices: map[string]float64{
				"SPY": 200 + float64(i) + 4*math.Sin(float64(i)/3),
				"TLT": 120 - 0.2*float64(i) + math.Cos(float64(i)),
			},
		})
	}
	lp, err := regime.Classify(panel, testRegime)
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}

	panelStore := memory.NewPanelStore()
	resultStore := memory.NewResultStore()
	run := &domain.Run{
		RunID:            "run-x",
		CreatedAt:        time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC),
		ConfigHash:       "cfg-hash",
		DataHash:         "data-hash",
		StartDate:        panel.Rows[0].Date,
		EndDate:          panel.Rows[len(panel.Rows)-1].Date,
		Rows:             panel.Len(),
		Assets:           panel.Assets,
		GeneratorVersion: GeneratorVersion,
	}
	if err := resultStore.InsertRun(ctx, run); err != nil {
		t.Fatalf("InsertRun failed: %v", err)
	}
	if err := panelStore.SaveLabels(ctx, run.RunID, lp); err != nil {
		t.Fatalf("SaveLabels failed: %v", err)
	}
	if withResponses {
		event := domain.ShockEvent{Date: start.AddDate(0, 0, 70), Index: 70, Yield: 2.6, YieldChange: 0.75}
		if err := resultStore.InsertShockEvents(ctx, run.RunID, []domain.ShockEvent{event}); err != nil {
			t.Fatalf("InsertShockEvents failed: %v", err)
		}
		resp := domain.ShockResponse{
			EventDate: event.Date, EndDate: start.AddDate(0, 0, 90),
			StartYield: 2.6, EndYield: 3.8,
			Returns: map[string]float64{"SPY": 4, "TLT": -6},
		}
		if err := resultStore.InsertResponses(ctx, run.RunID, []domain.ShockResponse{resp}); err != nil {
			t.Fatalf("InsertResponses failed: %v", err)
		}
	}
	return panelStore, resultStore
}

func reportOptions() reporting.Options {
	return reporting.Options{
		Weights:           domain.Weights{"SPY": 0.5, "TLT": 0.5},
		CorrelationPair:   [2]string{"SPY", "TLT"},
		CorrelationWindow: 10,
		Regime:            testRegime,
		HorizonDays:       20,
	}
}

func TestReportPipeline_Run(t *testing.T) {
	tempDir := t.TempDir()
	processed := filepath.Join(tempDir, "processed")
	panelStore, resultStore := storeRun(t, true)

	var warnings domain.Warnings
	warnings.Addf("acquisition", "dropped %d rows with missing data", 2)

	fixedTime := time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)
	p := NewReportPipeline(panelStore, resultStore, reportOptions(), tempDir).
		WithClock(func() time.Time { return fixedTime }).
		WithSufficiencyChecker(NewSufficiencyChecker(5, 20)).
		WithWarnings(warnings).
		WithProcessedDir(processed)

	report, err := p.Run(context.Background(), "run-x")
	if err != nil {
		t.Fatalf("Pipeline run failed: %v", err)
	}

	files := []string{TraderNoteFile, PerformanceFile, RegimeSummaryFile, LabeledPanelFile, ShockEventsFile, ShockTableFile, TransitionsFile, RunManifestFile}
	for _, f := range files {
		if _, err := os.Stat(filepath.Join(tempDir, f)); err != nil {
			t.Errorf("Expected file %s: %v", f, err)
		}
	}

	note, err := os.ReadFile(filepath.Join(tempDir, TraderNoteFile))
	if err != nil {
		t.Fatalf("Failed to read trader note: %v", err)
	}
	for _, s := range []string{"| Panel rows | >= 25 | 120 | PASS |", "| Shock responses | >= 1 | 1 | PASS |", "acquisition: dropped 2 rows with missing data"} {
		if !strings.Contains(string(note), s) {
			t.Errorf("trader note missing %q", s)
		}
	}
	if len(report.DataQuality.SufficiencyChecks) != 6 {
		t.Errorf("expected 6 sufficiency checks, got %d", len(report.DataQuality.SufficiencyChecks))
	}

	raw, err := os.ReadFile(filepath.Join(tempDir, RunManifestFile))
	if err != nil {
		t.Fatalf("Failed to read manifest: %v", err)
	}
	var manifest runManifest
	if err := yaml.Unmarshal(raw, &manifest); err != nil {
		t.Fatalf("Failed to parse manifest: %v", err)
	}
	if manifest.RunID != "run-x" || manifest.ConfigHash != "cfg-hash" || manifest.ShockResponses != 1 {
		t.Errorf("unexpected manifest: %+v", manifest)
	}
	if manifest.GeneratedAt != "2025-02-01T12:00:00Z" {
		t.Errorf("GeneratedAt = %s", manifest.GeneratedAt)
	}

	f, err := os.Open(filepath.Join(processed, CombinedDataFile))
	if err != nil {
		t.Fatalf("combined data not written: %v", err)
	}
	defer f.Close()
	panel, err := acquisition.LoadPanelCSV(f)
	if err != nil {
		t.Fatalf("LoadPanelCSV failed: %v", err)
	}
	if panel.Len() != 120 {
		t.Errorf("combined data rows = %d, want 120", panel.Len())
	}
}

func TestReportPipeline_NoShockTable(t *testing.T) {
	tempDir := t.TempDir()
	panelStore, resultStore := storeRun(t, false)

	report, err := NewReportPipeline(panelStore, resultStore, reportOptions(), tempDir).
		WithSufficiencyChecker(NewSufficiencyChecker(5, 20)).
		Run(context.Background(), "run-x")
	if err != nil {
		t.Fatalf("Pipeline run failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(tempDir, ShockTableFile)); !os.IsNotExist(err) {
		t.Errorf("shock table should not be written without responses")
	}
	if report.DataQuality.AllChecksPassed {
		t.Error("expected failing shock response check")
	}

	note, err := os.ReadFile(filepath.Join(tempDir, TraderNoteFile))
	if err != nil {
		t.Fatalf("Failed to read trader note: %v", err)
	}
	if !strings.Contains(string(note), reporting.InsufficientShocks) {
		t.Error("trader note should state that shock analysis is unavailable")
	}
	if !strings.Contains(string(note), "**Some checks failed.**") {
		t.Error("trader note should flag failed checks")
	}
}
