package main

import (
	"context"
	"fmt"
	"net/http"

	"macro-regime-lab/internal/acquisition"
	"macro-regime-lab/internal/config"
	"macro-regime-lab/internal/domain"
	"macro-regime-lab/internal/logger"
	"macro-regime-lab/internal/observability"
	"macro-regime-lab/internal/orchestrator"
	"macro-regime-lab/internal/storage"
	chstore "macro-regime-lab/internal/storage/clickhouse"
	"macro-regime-lab/internal/storage/memory"
	"macro-regime-lab/internal/storage/migrations"
	pgstore "macro-regime-lab/internal/storage/postgres"
)

const metricsNamespace = "regimelab"

// app holds what every subcommand needs: config, logger, metrics and the
// resources to release on exit.
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	metrics *observability.Metrics
	closers []func()
}

// newApp loads the config and applies the persistent flag overrides.
func newApp() (*app, error) {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}

	log, err := logger.New(&logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:     cfg,
		log:     log,
		metrics: observability.NewMetrics(metricsNamespace),
	}, nil
}

func (a *app) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// stores opens the configured backends. Results go to PostgreSQL and panels
// to ClickHouse when their DSNs are set; otherwise to memory.
func (a *app) stores(ctx context.Context) (storage.PanelStore, storage.ResultStore, error) {
	var (
		panels  storage.PanelStore  = memory.NewPanelStore()
		results storage.ResultStore = memory.NewResultStore()
	)

	if dsn := a.cfg.Storage.PostgresDSN; dsn != "" {
		pool, err := pgstore.NewPool(ctx, dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		a.onClose(pool.Close)
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			return nil, nil, fmt.Errorf("postgres migrations: %w", err)
		}
		results = storage.InstrumentResultStore(pgstore.NewResultStore(pool), "postgres", a.metrics)
		a.log.Info("result store", logger.String("backend", "postgres"))
	}

	if dsn := a.cfg.Storage.ClickHouseDSN; dsn != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		a.onClose(func() { _ = conn.Close() })
		panels = storage.InstrumentPanelStore(chstore.NewPanelStore(conn), "clickhouse", a.metrics)
		a.log.Info("panel store", logger.String("backend", "clickhouse"))
	}

	return panels, results, nil
}

// source picks where the panel comes from: an aligned panel file, or a macro
// provider (FRED with an API key, otherwise simulated) joined with a market
// provider (market file, otherwise simulated).
func (a *app) source(ctx context.Context) (orchestrator.PanelSource, error) {
	cfg := a.cfg
	if cfg.Data.File != "" {
		a.log.Info("panel source", logger.String("file", cfg.Data.File))
		return acquisition.PanelFile{
			Path:   cfg.Data.File,
			Start:  cfg.StartTime(),
			End:    cfg.EndTime(),
			Assets: cfg.Data.Assets,
		}, nil
	}

	src := acquisition.Source{
		Macro:  acquisition.Simulated{Seed: cfg.Data.Seed},
		Market: acquisition.Simulated{Seed: cfg.Data.Seed},
		Start:  cfg.StartTime(),
		End:    cfg.EndTime(),
		Assets: cfg.Data.Assets,
	}
	macroName, marketName := "simulated", "simulated"

	if cfg.FRED.APIKey != "" {
		client, err := a.fredClient(ctx)
		if err != nil {
			return nil, err
		}
		src.Macro = acquisition.FREDMacro{
			Client:       client,
			PolicySeries: cfg.FRED.PolicyRateSeries,
			YieldSeries:  cfg.FRED.LongYieldSeries,
		}
		macroName = "fred"
	}
	if cfg.Data.MarketFile != "" {
		src.Market = acquisition.MarketFile{Path: cfg.Data.MarketFile}
		marketName = cfg.Data.MarketFile
	}

	a.log.Info("panel source",
		logger.String("macro", macroName),
		logger.String("market", marketName),
		logger.Any("seed", cfg.Data.Seed))
	return src, nil
}

func (a *app) fredClient(ctx context.Context) (*acquisition.FREDClient, error) {
	cfg := a.cfg.FRED

	var cache acquisition.SeriesCache = acquisition.NewMemoryCache()
	if addr := a.cfg.Storage.RedisAddr; addr != "" {
		rc, err := acquisition.NewRedisCache(ctx, addr, a.cfg.Storage.RedisPassword, a.cfg.Storage.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.onClose(func() { _ = rc.Close() })
		cache = rc
	}

	return acquisition.NewFREDClient(cfg.BaseURL, cfg.APIKey,
		acquisition.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		acquisition.WithRateLimit(cfg.RequestsPerSecond),
		acquisition.WithCache(cache, cfg.CacheTTL),
		acquisition.WithLogger(a.log),
		acquisition.WithMetrics(a.metrics),
	), nil
}

// loadPanel acquires the panel without storing it.
func (a *app) loadPanel(ctx context.Context) (*domain.Panel, error) {
	src, err := a.source(ctx)
	if err != nil {
		return nil, err
	}
	panel, warnings, err := src.Panel(ctx)
	for _, w := range warnings {
		a.log.Warn("data quality", logger.String("stage", w.Stage), logger.String("warning", w.Message))
	}
	if err != nil {
		return nil, err
	}
	a.log.Info("panel ready", logger.Int("rows", panel.Len()), logger.Strings("assets", panel.Assets))
	return panel, nil
}

// pushMetrics sends the run's metrics to the configured Pushgateway.
func (a *app) pushMetrics(ctx context.Context) {
	url := a.cfg.Metrics.PushgatewayURL
	if url == "" {
		return
	}
	if err := a.metrics.Push(ctx, url, a.cfg.Metrics.Job); err != nil {
		a.log.Warn("metrics push failed", logger.String("url", url), logger.Error(err))
		return
	}
	a.log.Debug("metrics pushed", logger.String("url", url))
}
