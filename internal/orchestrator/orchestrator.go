// Package orchestrator runs the full analysis.
// Flow: acquisition → classification → performance → shocks → sensitivity → persistence → report
package orchestrator

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"macro-regime-lab/internal/acquisition"
	"macro-regime-lab/internal/config"
	"macro-regime-lab/internal/domain"
	"macro-regime-lab/internal/logger"
	"macro-regime-lab/internal/observability"
	"macro-regime-lab/internal/performance"
	"macro-regime-lab/internal/pipeline"
	"macro-regime-lab/internal/regime"
	"macro-regime-lab/internal/reporting"
	"macro-regime-lab/internal/scenario"
	"macro-regime-lab/internal/storage"
)

// PanelSource produces the aligned panel a run analyzes.
type PanelSource interface {
	Panel(ctx context.Context) (*domain.Panel, domain.Warnings, error)
}

// Orchestrator coordinates one analysis run.
type Orchestrator struct {
	// Stores
	panelStore  storage.PanelStore
	resultStore storage.ResultStore

	source  PanelSource
	cfg     *config.Config
	log     *logger.Logger
	metrics *observability.Metrics

	// Options
	outputDir string
	clock     func() time.Time
	newRunID  func() string
}

// Options for creating Orchestrator.
type Options struct {
	// Required
	PanelStore  storage.PanelStore
	ResultStore storage.ResultStore
	Source      PanelSource
	Config      *config.Config

	// Optional
	Logger    *logger.Logger
	Metrics   *observability.Metrics
	OutputDir string // report files are skipped when empty
	Clock     func() time.Time
	NewRunID  func() string
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		panelStore:  opts.PanelStore,
		resultStore: opts.ResultStore,
		source:      opts.Source,
		cfg:         opts.Config,
		log:         opts.Logger,
		metrics:     opts.Metrics,
		outputDir:   opts.OutputDir,
		clock:       opts.Clock,
		newRunID:    opts.NewRunID,
	}
	if o.log == nil {
		o.log = logger.Nop()
	}
	if o.metrics == nil {
		o.metrics = observability.NewMetrics("")
	}
	if o.clock == nil {
		o.clock = func() time.Time { return time.Now().UTC() }
	}
	if o.newRunID == nil {
		o.newRunID = func() string { return uuid.NewString() }
	}
	return o
}

// RunResult contains everything one run computed.
type RunResult struct {
	Run         *domain.Run
	Labeled     *domain.LabeledPanel
	Summary     []domain.RegimeSummary
	Transitions []domain.Transition
	Performance []domain.PerformanceRecord
	Correlation []domain.CorrelationSummary
	Portfolio   domain.Series
	Events      []domain.ShockEvent
	Responses   []domain.ShockResponse
	Stress      *domain.StressResult // nil when no shock response was measured
	Sensitivity []regime.SensitivityPoint
	Report      *reporting.Report // nil when no output dir is configured
	ObsAdded    int
	Warnings    domain.Warnings
}

// Run executes the full pipeline.
// Stages:
//  1. Acquire and align the panel, store new observations
//  2. Classify regimes
//  3. Regime-conditioned performance and correlation
//  4. Rate-shock detection, responses and stress test
//  5. Threshold sensitivity grid
//  6. Persist run metadata and results
//  7. Write the report
func (o *Orchestrator) Run(ctx context.Context) (*RunResult, error) {
	if err := o.validate(); err != nil {
		return nil, err
	}

	result, err := o.run(ctx)
	status := observability.StatusSuccess
	if err != nil {
		status = observability.StatusFailure
	}
	o.metrics.RecordRun(status, float64(o.clock().Unix()))
	return result, err
}

func (o *Orchestrator) run(ctx context.Context) (*RunResult, error) {
	result := &RunResult{}
	runID := o.newRunID()
	log := o.log.With(logger.String("run_id", runID))
	log.Info("run started",
		logger.String("start", o.cfg.Data.StartDate),
		logger.String("end", o.cfg.Data.EndDate),
		logger.Strings("assets", o.cfg.Data.Assets))

	// Stage 1: acquisition
	var panel *domain.Panel
	err := o.stage(log, "acquisition", func() error {
		p, ws, err := o.source.Panel(ctx)
		result.Warnings = append(result.Warnings, ws...)
		if err != nil {
			return err
		}
		panel = p
		result.ObsAdded, err = o.panelStore.SaveObservations(ctx, panel)
		if err != nil {
			return fmt.Errorf("save observations: %w", err)
		}
		o.metrics.PanelRows.Set(float64(panel.Len()))
		log.Info("panel ready",
			logger.Int("rows", panel.Len()),
			logger.Int("stored", result.ObsAdded),
			logger.Strings("assets", panel.Assets))
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Stage 2: classification
	err = o.stage(log, "classification", func() error {
		lp, err := regime.Classify(panel, o.cfg.RegimeConfig())
		if err != nil {
			return err
		}
		result.Labeled = lp
		if result.Summary, err = regime.Summarize(lp); err != nil {
			return err
		}
		result.Transitions = slices.Collect(regime.Transitions(lp))
		o.metrics.RecordRegimes(result.Summary)
		for _, s := range result.Summary {
			log.Info("regime",
				logger.String("regime", s.Regime.String()),
				logger.Int("days", s.Days),
				logger.Float64("pct", s.Percentage))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Stage 3: performance
	err = o.stage(log, "performance", func() error {
		return o.analyzePerformance(ctx, result)
	})
	if err != nil {
		return nil, err
	}

	// Stage 4: shocks
	err = o.stage(log, "scenario", func() error {
		return o.analyzeShocks(ctx, panel, result)
	})
	if err != nil {
		return nil, err
	}

	// Stage 5: sensitivity
	err = o.stage(log, "sensitivity", func() error {
		s := o.cfg.Sensitivity
		if len(s.RateThresholds) == 0 || len(s.VolatilityThresholds) == 0 {
			return nil
		}
		points, err := regime.Sensitivity(ctx, panel, o.cfg.RegimeConfig(), s.RateThresholds, s.VolatilityThresholds)
		result.Sensitivity = points
		return err
	})
	if err != nil {
		return nil, err
	}

	// Stage 6: persistence
	err = o.stage(log, "persistence", func() error {
		run, err := o.newRun(runID, panel)
		if err != nil {
			return err
		}
		result.Run = run
		return o.persist(ctx, result)
	})
	if err != nil {
		return nil, err
	}

	for _, w := range result.Warnings {
		log.Warn("data quality", logger.String("stage", w.Stage), logger.String("warning", w.Message))
	}
	o.metrics.RecordWarnings(result.Warnings)

	// Stage 7: report
	if o.outputDir != "" {
		err = o.stage(log, "report", func() error {
			report, err := pipeline.NewReportPipeline(o.panelStore, o.resultStore, ReportOptions(o.cfg), o.outputDir).
				WithClock(o.clock).
				WithSufficiencyChecker(pipeline.NewSufficiencyChecker(o.cfg.Regime.QuarterlyLookbackDays, o.cfg.Shock.HorizonDays)).
				WithWarnings(result.Warnings).
				WithProcessedDir(o.cfg.Data.ProcessedDir).
				WithLogger(log).
				Run(ctx, runID)
			result.Report = report
			return err
		})
		if err != nil {
			return nil, err
		}
	}

	log.Info("run completed",
		logger.Int("rows", result.Labeled.Len()),
		logger.Int("transitions", len(result.Transitions)),
		logger.Int("performance_records", len(result.Performance)),
		logger.Int("shock_events", len(result.Events)),
		logger.Int("shock_responses", len(result.Responses)),
		logger.Int("warnings", len(result.Warnings)))

	return result, nil
}

func (o *Orchestrator) analyzePerformance(ctx context.Context, result *RunResult) error {
	rp, err := performance.Returns(result.Labeled)
	if err != nil {
		return err
	}

	result.Performance, err = performance.Performance(ctx, rp, domain.AllRegimes(), o.cfg.Analysis.AnnualizationFactor)
	if err != nil {
		return err
	}
	for _, s := range result.Summary {
		if s.Days > 0 && s.Days < performance.MinRegimeDays {
			result.Warnings.Addf("performance", "%s has %d days, below the %d-day minimum; skipped",
				s.Regime, s.Days, performance.MinRegimeDays)
		}
	}

	a, b := o.cfg.Analysis.CorrelationPair[0], o.cfg.Analysis.CorrelationPair[1]
	if slices.Contains(result.Labeled.Assets, a) && slices.Contains(result.Labeled.Assets, b) {
		corr, err := performance.RollingCorrelation(rp, a, b, o.cfg.Analysis.CorrelationWindow)
		if err != nil {
			return err
		}
		if result.Correlation, err = performance.CorrelationByRegime(rp, corr); err != nil {
			return err
		}
	} else {
		result.Warnings.Addf("performance", "correlation pair %s/%s not in panel; skipped", a, b)
	}

	result.Portfolio, err = performance.PortfolioReturns(rp, o.cfg.Weights())
	return err
}

func (o *Orchestrator) analyzeShocks(ctx context.Context, panel *domain.Panel, result *RunResult) error {
	scfg := o.cfg.ScenarioConfig()

	events, err := scenario.Detect(panel, scfg)
	if err != nil {
		return err
	}
	responses, ws, err := scenario.MeasureResponses(ctx, panel, events, scfg)
	if err != nil {
		return err
	}
	result.Events = events
	result.Responses = responses
	result.Warnings = append(result.Warnings, ws...)
	o.metrics.ShockEvents.Set(float64(len(events)))
	o.metrics.ShockResponses.Set(float64(len(responses)))

	stress, err := scenario.StressTest(responses, panel.Assets, o.cfg.Weights())
	if errors.Is(err, domain.ErrInsufficientSample) {
		result.Warnings.Addf("scenario", "no shock response measured; stress test skipped")
		return nil
	}
	if err != nil {
		return err
	}
	result.Stress = stress
	o.metrics.PortfolioTailPct.Set(stress.Summary.P10)
	return nil
}

func (o *Orchestrator) persist(ctx context.Context, result *RunResult) error {
	runID := result.Run.RunID
	if err := o.resultStore.InsertRun(ctx, result.Run); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	if err := o.panelStore.SaveLabels(ctx, runID, result.Labeled); err != nil {
		return fmt.Errorf("save labels: %w", err)
	}
	if err := o.resultStore.InsertPerformance(ctx, runID, result.Performance); err != nil {
		return fmt.Errorf("insert performance: %w", err)
	}
	if err := o.resultStore.InsertShockEvents(ctx, runID, result.Events); err != nil {
		return fmt.Errorf("insert shock events: %w", err)
	}
	if err := o.resultStore.InsertResponses(ctx, runID, result.Responses); err != nil {
		return fmt.Errorf("insert shock responses: %w", err)
	}
	if result.Stress != nil {
		if err := o.resultStore.InsertStressSummary(ctx, runID, &result.Stress.Summary); err != nil {
			return fmt.Errorf("insert stress summary: %w", err)
		}
	}
	return nil
}

func (o *Orchestrator) newRun(runID string, panel *domain.Panel) (*domain.Run, error) {
	configHash, err := o.cfg.Hash()
	if err != nil {
		return nil, err
	}
	dataHash, err := PanelHash(panel)
	if err != nil {
		return nil, err
	}
	return &domain.Run{
		RunID:            runID,
		CreatedAt:        o.clock().UTC(),
		ConfigHash:       configHash,
		DataHash:         dataHash,
		StartDate:        panel.Rows[0].Date,
		EndDate:          panel.Rows[panel.Len()-1].Date,
		Rows:             panel.Len(),
		Assets:           slices.Clone(panel.Assets),
		GeneratorVersion: pipeline.GeneratorVersion,
	}, nil
}

// stage times fn, logs its outcome and records its duration.
func (o *Orchestrator) stage(log *logger.Logger, name string, fn func() error) error {
	start := time.Now()
	log.Debug("stage started", logger.String("stage", name))

	err := fn()
	elapsed := time.Since(start)
	o.metrics.RecordStage(name, elapsed.Seconds())
	if err != nil {
		log.Error("stage failed", logger.String("stage", name), logger.Error(err))
		return fmt.Errorf("%s: %w", name, err)
	}
	log.Info("stage completed", logger.String("stage", name), logger.Duration("elapsed", elapsed))
	return nil
}

func (o *Orchestrator) validate() error {
	switch {
	case o.panelStore == nil || o.resultStore == nil:
		return fmt.Errorf("%w: orchestrator needs a panel store and a result store", domain.ErrPrecondition)
	case o.source == nil:
		return fmt.Errorf("%w: orchestrator needs a panel source", domain.ErrPrecondition)
	case o.cfg == nil:
		return fmt.Errorf("%w: orchestrator needs a configuration", domain.ErrPrecondition)
	}
	return o.cfg.Validate()
}

// PanelHash returns the sha256 of the panel's CSV rendering.
func PanelHash(panel *domain.Panel) (string, error) {
	var buf bytes.Buffer
	if err := acquisition.WritePanelCSV(&buf, panel); err != nil {
		return "", fmt.Errorf("hash panel: %w", err)
	}
	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:]), nil
}

// ReportOptions derives the report generator options from cfg.
func ReportOptions(cfg *config.Config) reporting.Options {
	return reporting.Options{
		Weights:              cfg.Weights(),
		CorrelationPair:      [2]string{cfg.Analysis.CorrelationPair[0], cfg.Analysis.CorrelationPair[1]},
		CorrelationWindow:    cfg.Analysis.CorrelationWindow,
		Regime:               cfg.RegimeConfig(),
		RateThresholds:       cfg.Sensitivity.RateThresholds,
		VolatilityThresholds: cfg.Sensitivity.VolatilityThresholds,
		HorizonDays:          cfg.Shock.HorizonDays,
	}
}
