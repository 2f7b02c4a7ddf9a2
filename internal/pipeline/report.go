// Package pipeline turns a stored run into report files.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"macro-regime-lab/internal/acquisition"
	"macro-regime-lab/internal/domain"
	"macro-regime-lab/internal/logger"
	"macro-regime-lab/internal/regime"
	"macro-regime-lab/internal/reporting"
	"macro-regime-lab/internal/storage"
)

// GeneratorVersion is stamped on every run for reproducibility.
const GeneratorVersion = "1.0.0"

// Output file names.
const (
	TraderNoteFile    = "trader_note.md"
	PerformanceFile   = "performance_metrics.csv"
	RegimeSummaryFile = "regime_summary.csv"
	LabeledPanelFile  = "labeled_panel.csv"
	ShockTableFile    = "shock_table.csv"
	ShockEventsFile   = "shock_events.csv"
	TransitionsFile   = "transitions.csv"
	SensitivityFile   = "sensitivity.csv"
	CombinedDataFile  = "combined_data.csv"
	RunManifestFile   = "run.yaml"
)

// ReportPipeline generates the report of a stored run and writes its files.
type ReportPipeline struct {
	reportGen    *reporting.Generator
	panelStore   storage.PanelStore
	sufficiency  *SufficiencyChecker
	outputDir    string
	processedDir string // combined_data.csv is skipped when empty
	warnings     []string
	log          *logger.Logger
}

// NewReportPipeline creates a new pipeline.
func NewReportPipeline(
	panelStore storage.PanelStore,
	resultStore storage.ResultStore,
	opts reporting.Options,
	outputDir string,
) *ReportPipeline {
	return &ReportPipeline{
		reportGen:  reporting.NewGenerator(panelStore, resultStore, opts),
		panelStore: panelStore,
		outputDir:  outputDir,
		log:        logger.Nop(),
	}
}

// WithClock sets a custom clock function for deterministic output.
func (p *ReportPipeline) WithClock(clock func() time.Time) *ReportPipeline {
	p.reportGen = p.reportGen.WithClock(clock)
	return p
}

// WithSufficiencyChecker adds data sufficiency checks to the report.
func (p *ReportPipeline) WithSufficiencyChecker(c *SufficiencyChecker) *ReportPipeline {
	p.sufficiency = c
	return p
}

// WithWarnings adds data-quality warnings collected by earlier stages.
func (p *ReportPipeline) WithWarnings(ws domain.Warnings) *ReportPipeline {
	p.warnings = append(p.warnings, ws.Strings()...)
	return p
}

// WithProcessedDir sets where the aligned panel is written.
func (p *ReportPipeline) WithProcessedDir(dir string) *ReportPipeline {
	p.processedDir = dir
	return p
}

// WithLogger sets the pipeline logger.
func (p *ReportPipeline) WithLogger(l *logger.Logger) *ReportPipeline {
	p.log = l
	return p
}

// Run generates the report for runID and writes:
// - trader_note.md
// - performance_metrics.csv
// - regime_summary.csv
// - labeled_panel.csv
// - shock_events.csv
// - transitions.csv
// - sensitivity.csv (only when threshold grids are configured)
// - shock_table.csv (only when the stress test is available)
// - run.yaml
// - <processed dir>/combined_data.csv (when a processed dir is set)
func (p *ReportPipeline) Run(ctx context.Context, runID string) (*reporting.Report, error) {
	if err := os.MkdirAll(p.outputDir, 0755); err != nil {
		return nil, err
	}

	report, err := p.reportGen.Generate(ctx, runID)
	if err != nil {
		return nil, err
	}

	lp, err := p.panelStore.GetLabels(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("get labels for run %s: %w", runID, err)
	}

	report.DataQuality = reporting.DataQualitySection{
		Warnings:        p.warnings,
		AllChecksPassed: true,
	}
	if p.sufficiency != nil {
		result := p.sufficiency.Check(lp, report.Regimes, len(report.Shock.Responses))
		report.DataQuality = convertToDataQuality(result, p.warnings)
		if !result.AllPass {
			p.log.Warn("sufficiency checks failed",
				logger.String("run_id", runID),
				logger.Strings("checks", result.Failed()))
		}
	}

	files := map[string]string{
		TraderNoteFile:    reporting.RenderTraderNote(report),
		PerformanceFile:   reporting.RenderPerformanceCSV(report.Performance),
		RegimeSummaryFile: reporting.RenderRegimeSummaryCSV(report.Regimes),
		LabeledPanelFile:  reporting.RenderLabeledPanelCSV(lp),
		ShockEventsFile:   reporting.RenderShockEventsCSV(report.Shock.Events, report.Shock.Responses, lp.Assets),
		TransitionsFile:   reporting.RenderTransitionsCSV(report.Transitions),
	}
	if len(report.Sensitivity) > 0 {
		files[SensitivityFile] = reporting.RenderSensitivityCSV(report.Sensitivity)
	}
	if report.Shock.Stress != nil {
		files[ShockTableFile] = reporting.RenderShockTableCSV(report.Shock.Stress)
	}

	manifest, err := p.manifest(report)
	if err != nil {
		return nil, err
	}
	files[RunManifestFile] = manifest

	for name, content := range files {
		if err := os.WriteFile(filepath.Join(p.outputDir, name), []byte(content), 0644); err != nil {
			return nil, fmt.Errorf("write %s: %w", name, err)
		}
	}

	if p.processedDir != "" {
		if err := writeCombinedData(p.processedDir, lp.Panel()); err != nil {
			return nil, err
		}
	}

	p.log.Info("report written",
		logger.String("run_id", runID),
		logger.String("dir", p.outputDir),
		logger.Int("files", len(files)))

	return report, nil
}

// runManifest is the reproducibility record written next to the report.
type runManifest struct {
	RunID            string           `yaml:"run_id"`
	CreatedAt        string           `yaml:"created_at"`
	GeneratedAt      string           `yaml:"generated_at"`
	StartDate        string           `yaml:"start_date"`
	EndDate          string           `yaml:"end_date"`
	Rows             int              `yaml:"rows"`
	Assets           []string         `yaml:"assets"`
	ConfigHash       string           `yaml:"config_hash"`
	DataHash         string           `yaml:"data_hash"`
	GeneratorVersion string           `yaml:"generator_version"`
	GitCommit        string           `yaml:"git_commit"`
	Regimes          map[string]int   `yaml:"regime_days"`
	ShockEvents      int              `yaml:"shock_events"`
	ShockResponses   int              `yaml:"shock_responses"`
	Sensitivity      []sensitivityRow `yaml:"sensitivity,omitempty"`
}

type sensitivityRow struct {
	RateThreshold       float64        `yaml:"rate_threshold"`
	VolatilityThreshold float64        `yaml:"volatility_threshold"`
	Days                map[string]int `yaml:"regime_days"`
	Transitions         int            `yaml:"transitions"`
}

func (p *ReportPipeline) manifest(r *reporting.Report) (string, error) {
	m := runManifest{
		RunID:            r.Run.RunID,
		CreatedAt:        r.Run.CreatedAt.UTC().Format(time.RFC3339),
		GeneratedAt:      r.GeneratedAt.UTC().Format(time.RFC3339),
		StartDate:        r.Run.StartDate.Format(domain.DateLayout),
		EndDate:          r.Run.EndDate.Format(domain.DateLayout),
		Rows:             r.Run.Rows,
		Assets:           r.Run.Assets,
		ConfigHash:       r.Run.ConfigHash,
		DataHash:         r.Run.DataHash,
		GeneratorVersion: r.Run.GeneratorVersion,
		GitCommit:        getGitCommitHash(),
		Regimes:          make(map[string]int, len(r.Regimes)),
		ShockEvents:      len(r.Shock.Events),
		ShockResponses:   len(r.Shock.Responses),
	}
	for _, s := range r.Regimes {
		m.Regimes[s.Regime.String()] = s.Days
	}
	for _, pt := range r.Sensitivity {
		m.Sensitivity = append(m.Sensitivity, sensitivityRow{
			RateThreshold:       pt.RateChangeThreshold,
			VolatilityThreshold: pt.VolatilityStressThreshold,
			Days:                sensitivityDays(pt),
			Transitions:         pt.Transitions,
		})
	}

	b, err := yaml.Marshal(&m)
	if err != nil {
		return "", fmt.Errorf("marshal run manifest: %w", err)
	}
	return string(b), nil
}

func writeCombinedData(dir string, panel *domain.Panel) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	f, err := os.Create(filepath.Join(dir, CombinedDataFile))
	if err != nil {
		return err
	}
	if err := acquisition.WritePanelCSV(f, panel); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", CombinedDataFile, err)
	}
	return f.Close()
}

// getGitCommitHash returns current git commit hash or "unknown" if not in git repo.
func getGitCommitHash() string {
	cmd := exec.Command("git", "rev-parse", "--short", "HEAD")
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "unknown"
	}
	return strings.TrimSpace(out.String())
}

// convertToDataQuality converts SufficiencyResult to reporting.DataQualitySection.
func convertToDataQuality(result *SufficiencyResult, warnings []string) reporting.DataQualitySection {
	checks := make([]reporting.SufficiencyCheckRow, len(result.Checks))
	for i, c := range result.Checks {
		checks[i] = reporting.SufficiencyCheckRow{
			Name:      c.Name,
			Threshold: c.Threshold,
			Actual:    c.Actual,
			Pass:      c.Pass,
		}
	}
	return reporting.DataQualitySection{
		SufficiencyChecks: checks,
		Warnings:          warnings,
		AllChecksPassed:   result.AllPass,
	}
}

// sensitivityDays flattens a sensitivity point into per-regime day counts.
func sensitivityDays(pt regime.SensitivityPoint) map[string]int {
	out := make(map[string]int, len(domain.AllRegimes()))
	for _, r := range domain.AllRegimes() {
		out[r.String()] = pt.Days(r)
	}
	return out
}
