// Package config loads the YAML run configuration, fills defaults from struct
// tags and validates it once at start-up.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"macro-regime-lab/internal/domain"
	"macro-regime-lab/internal/regime"
	"macro-regime-lab/internal/scenario"
)

var validate = validator.New()

// Config is the whole run configuration.
type Config struct {
	Data        DataConfig        `yaml:"data"`
	FRED        FREDConfig        `yaml:"fred"`
	Regime      RegimeConfig      `yaml:"regime"`
	Shock       ShockConfig       `yaml:"shock"`
	Portfolio   PortfolioConfig   `yaml:"portfolio"`
	Analysis    AnalysisConfig    `yaml:"analysis"`
	Sensitivity SensitivityConfig `yaml:"sensitivity"`
	Output      OutputConfig      `yaml:"output"`
	Log         LogConfig         `yaml:"log"`
	Storage     StorageConfig     `yaml:"storage"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// DataConfig selects the sample period, the tracked assets and where the panel comes from.
type DataConfig struct {
	StartDate    string   `yaml:"start_date" default:"2000-01-01" validate:"required,datetime=2006-01-02"`
	EndDate      string   `yaml:"end_date" default:"2024-12-31" validate:"required,datetime=2006-01-02"`
	Assets       []string `yaml:"assets" default:"[\"SPY\",\"TLT\",\"GLD\"]" validate:"required,min=1,dive,required"`
	File         string   `yaml:"file"`
	MarketFile   string   `yaml:"market_file"`
	ProcessedDir string   `yaml:"processed_dir" default:"data/processed"`
	Seed         int64    `yaml:"seed" default:"42"`
}

// FREDConfig configures the economic data client.
type FREDConfig struct {
	APIKey            string        `yaml:"api_key"`
	BaseURL           string        `yaml:"base_url" default:"https://api.stlouisfed.org/fred" validate:"required,url"`
	PolicyRateSeries  string        `yaml:"policy_rate_series" default:"DFF" validate:"required"`
	LongYieldSeries   string        `yaml:"long_yield_series" default:"DGS10" validate:"required"`
	RequestsPerSecond float64       `yaml:"requests_per_second" default:"2" validate:"gt=0"`
	Timeout           time.Duration `yaml:"timeout" default:"30s" validate:"gt=0"`
	CacheTTL          time.Duration `yaml:"cache_ttl" default:"24h"`
}

type RegimeConfig struct {
	QuarterlyLookbackDays     int     `yaml:"quarterly_lookback_days" default:"63" validate:"gte=1"`
	RateChangeThreshold       float64 `yaml:"rate_change_threshold" default:"0.20" validate:"gt=0"`
	VolatilityStressThreshold float64 `yaml:"volatility_stress_threshold" default:"25" validate:"gt=0"`
	VolatilityLookbackDays    int     `yaml:"volatility_lookback_days" default:"5" validate:"gte=1"`
}

type ShockConfig struct {
	YieldThreshold float64 `yaml:"yield_threshold" default:"0.70" validate:"gt=0"`
	HorizonDays    int     `yaml:"horizon_days" default:"63" validate:"gte=1"`
	LookbackDays   int     `yaml:"lookback_days" default:"21" validate:"gte=1"`
	MinSpacingDays int     `yaml:"min_spacing_days" default:"180" validate:"gte=1"`
}

type PortfolioConfig struct {
	Weights map[string]float64 `yaml:"weights" default:"{\"SPY\":0.6,\"TLT\":0.3,\"GLD\":0.1}" validate:"required,min=1"`
}

type AnalysisConfig struct {
	AnnualizationFactor int      `yaml:"annualization_factor" default:"252" validate:"gte=1"`
	CorrelationWindow   int      `yaml:"correlation_window" default:"60" validate:"gte=2"`
	CorrelationPair     []string `yaml:"correlation_pair" default:"[\"SPY\",\"TLT\"]" validate:"len=2,dive,required"`
}

// SensitivityConfig holds the threshold grids for the sensitivity sweep.
type SensitivityConfig struct {
	RateThresholds       []float64 `yaml:"rate_thresholds" default:"[0.10,0.20,0.30]" validate:"dive,gt=0"`
	VolatilityThresholds []float64 `yaml:"volatility_thresholds" default:"[20,25,30]" validate:"dive,gt=0"`
}

type OutputConfig struct {
	Dir string `yaml:"dir" default:"output" validate:"required"`
}

type LogConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" default:"console" validate:"oneof=console json"`
}

// StorageConfig holds optional backends. Empty values disable a backend.
type StorageConfig struct {
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickHouseDSN string `yaml:"clickhouse_dsn"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
}

type MetricsConfig struct {
	PushgatewayURL string `yaml:"pushgateway_url" validate:"omitempty,url"`
	Job            string `yaml:"job" default:"regimelab"`
}

// Default returns the configuration with every default applied.
func Default() *Config {
	c := &Config{}
	if err := defaults.Set(c); err != nil {
		// Struct tags are static; a failure here is a programming error.
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return c
}

// Load reads and parses a YAML configuration file. Fields absent from the
// file keep their defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse parses YAML bytes, applies defaults and validates.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML, or defaults when path is empty, and
// overrides it with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	var (
		c   *Config
		err error
	)
	if path == "" {
		c = Default()
	} else if c, err = Load(path); err != nil {
		return nil, err
	}

	if v := os.Getenv("FRED_API_KEY"); v != "" {
		c.FRED.APIKey = v
	}
	if v := os.Getenv("REGIMELAB_POSTGRES_DSN"); v != "" {
		c.Storage.PostgresDSN = v
	}
	if v := os.Getenv("REGIMELAB_CLICKHOUSE_DSN"); v != "" {
		c.Storage.ClickHouseDSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Storage.RedisAddr = v
	}
	if v := os.Getenv("REGIMELAB_ASSETS"); v != "" {
		c.Data.Assets = strings.Split(v, ",")
	}
	if v := os.Getenv("REGIMELAB_SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("REGIMELAB_SEED: %w", err)
		}
		c.Data.Seed = seed
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Validate checks struct-tag rules, the date range and the portfolio weights.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed %q (value %v)", domain.ErrPrecondition, fe.Namespace(), fe.Tag(), fe.Value())
		}
		return err
	}

	start, end := c.StartTime(), c.EndTime()
	if !end.After(start) {
		return fmt.Errorf("%w: data.end_date %s is not after data.start_date %s",
			domain.ErrPrecondition, c.Data.EndDate, c.Data.StartDate)
	}
	if err := c.Weights().Validate(); err != nil {
		return err
	}
	return nil
}

// StartTime returns the parsed start date. Validate guarantees the format.
func (c *Config) StartTime() time.Time {
	t, _ := time.Parse(domain.DateLayout, c.Data.StartDate)
	return t
}

// EndTime returns the parsed end date.
func (c *Config) EndTime() time.Time {
	t, _ := time.Parse(domain.DateLayout, c.Data.EndDate)
	return t
}

// Weights returns a copy of the portfolio weights.
func (c *Config) Weights() domain.Weights {
	out := make(domain.Weights, len(c.Portfolio.Weights))
	for k, v := range c.Portfolio.Weights {
		out[k] = v
	}
	return out
}

// RegimeConfig returns the classifier parameters.
func (c *Config) RegimeConfig() regime.Config {
	return regime.Config{
		QuarterlyLookback:         c.Regime.QuarterlyLookbackDays,
		RateChangeThreshold:       c.Regime.RateChangeThreshold,
		VolatilityStressThreshold: c.Regime.VolatilityStressThreshold,
		VolatilityLookback:        c.Regime.VolatilityLookbackDays,
	}
}

// ScenarioConfig returns the shock engine parameters.
func (c *Config) ScenarioConfig() scenario.Config {
	return scenario.Config{
		YieldThreshold: c.Shock.YieldThreshold,
		Lookback:       c.Shock.LookbackDays,
		Horizon:        c.Shock.HorizonDays,
		MinSpacingDays: c.Shock.MinSpacingDays,
	}
}

// Hash returns a sha256 of the analysis-relevant configuration. Secrets,
// connection strings and output locations are excluded so the same analysis
// hashes the same on every machine.
func (c *Config) Hash() (string, error) {
	clean := *c
	clean.FRED.APIKey = ""
	clean.Storage = StorageConfig{}
	clean.Output = OutputConfig{}
	clean.Log = LogConfig{}
	clean.Metrics = MetricsConfig{}

	b, err := yaml.Marshal(&clean)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
