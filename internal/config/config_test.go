package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"macro-regime-lab/internal/domain"
)

func TestDefault(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())

	assert.Equal(t, "2000-01-01", c.Data.StartDate)
	assert.Equal(t, "2024-12-31", c.Data.EndDate)
	assert.Equal(t, []string{"SPY", "TLT", "GLD"}, c.Data.Assets)
	assert.Equal(t, 63, c.Regime.QuarterlyLookbackDays)
	assert.Equal(t, 0.20, c.Regime.RateChangeThreshold)
	assert.Equal(t, 25.0, c.Regime.VolatilityStressThreshold)
	assert.Equal(t, 5, c.Regime.VolatilityLookbackDays)
	assert.Equal(t, 0.70, c.Shock.YieldThreshold)
	assert.Equal(t, 63, c.Shock.HorizonDays)
	assert.Equal(t, 21, c.Shock.LookbackDays)
	assert.Equal(t, map[string]float64{"SPY": 0.6, "TLT": 0.3, "GLD": 0.1}, c.Portfolio.Weights)
	assert.Equal(t, 252, c.Analysis.AnnualizationFactor)
	assert.Equal(t, 60, c.Analysis.CorrelationWindow)
	assert.Equal(t, []float64{0.10, 0.20, 0.30}, c.Sensitivity.RateThresholds)
	assert.Equal(t, []float64{20, 25, 30}, c.Sensitivity.VolatilityThresholds)
	assert.Equal(t, 30*time.Second, c.FRED.Timeout)
	assert.Equal(t, "DFF", c.FRED.PolicyRateSeries)
	assert.Equal(t, "DGS10", c.FRED.LongYieldSeries)
}

func TestParse_PartialFileKeepsDefaults(t *testing.T) {
	c, err := Parse([]byte(`
regime:
  rate_change_threshold: 0.30
portfolio:
  weights: {SPY: 0.5, TLT: 0.5}
`))
	require.NoError(t, err)

	assert.Equal(t, 0.30, c.Regime.RateChangeThreshold)
	assert.Equal(t, 25.0, c.Regime.VolatilityStressThreshold)
	assert.Equal(t, domain.Weights{"SPY": 0.5, "TLT": 0.5}, c.Weights())

	rc := c.RegimeConfig()
	assert.Equal(t, 63, rc.QuarterlyLookback)
	assert.Equal(t, 0.30, rc.RateChangeThreshold)

	sc := c.ScenarioConfig()
	assert.Equal(t, 0.70, sc.YieldThreshold)
	assert.Equal(t, 180, sc.MinSpacingDays)
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"weights sum to 0.95", "portfolio:\n  weights: {SPY: 0.6, TLT: 0.25, GLD: 0.1}\n"},
		{"negative weight", "portfolio:\n  weights: {SPY: 1.2, TLT: -0.2}\n"},
		{"negative threshold", "regime:\n  rate_change_threshold: -0.1\n"},
		{"bad date", "data:\n  start_date: 2000/01/01\n"},
		{"end before start", "data:\n  start_date: \"2010-01-01\"\n  end_date: \"2009-01-01\"\n"},
		{"unknown log level", "log:\n  level: loud\n"},
		{"single correlation asset", "analysis:\n  correlation_pair: [SPY]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrPrecondition)
		})
	}
}

func TestLoad_ShippedConfig(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "configs", "regimelab.yaml"))
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, def.RegimeConfig(), c.RegimeConfig())
	assert.Equal(t, def.ScenarioConfig(), c.ScenarioConfig())
	assert.Equal(t, def.Weights(), c.Weights())
}

func TestLoadWithEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fred:\n  api_key: from-file\n"), 0o644))

	t.Setenv("FRED_API_KEY", "from-env")
	t.Setenv("REGIMELAB_POSTGRES_DSN", "postgres://u:p@localhost/db")
	t.Setenv("REGIMELAB_ASSETS", "SPY,TLT")
	t.Setenv("REGIMELAB_SEED", "7")

	c, err := LoadWithEnv(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", c.FRED.APIKey)
	assert.Equal(t, "postgres://u:p@localhost/db", c.Storage.PostgresDSN)
	assert.Equal(t, []string{"SPY", "TLT"}, c.Data.Assets)
	assert.Equal(t, int64(7), c.Data.Seed)

	t.Setenv("REGIMELAB_SEED", "seven")
	_, err = LoadWithEnv("")
	assert.Error(t, err)
}

func TestHash(t *testing.T) {
	a, b := Default(), Default()

	ha, err := a.Hash()
	require.NoError(t, err)
	hb, err := b.Hash()
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
	assert.Len(t, ha, 64)

	// Secrets and locations do not change the hash.
	b.FRED.APIKey = "secret"
	b.Storage.PostgresDSN = "postgres://elsewhere"
	b.Output.Dir = "/tmp/x"
	hb, err = b.Hash()
	require.NoError(t, err)
	assert.Equal(t, ha, hb)

	// Analysis parameters do.
	b.Regime.RateChangeThreshold = 0.25
	hb, err = b.Hash()
	require.NoError(t, err)
	assert.NotEqual(t, ha, hb)
}
