package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "auction.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)

	assert.Equal(t, 75, cfg.Pipeline.Limit)
	assert.Equal(t, 12, cfg.Pipeline.SampleSize)
	assert.Equal(t, 3, cfg.Pipeline.CandidateMultiplier)
	assert.Equal(t, 1, cfg.Pipeline.Concurrency)
	assert.Equal(t, PricePolicyReject, cfg.Pipeline.PricePolicy)
	assert.Equal(t, RepairPolicyAgeTiered, cfg.Pipeline.RepairPolicy)
	assert.Equal(t, PastAuctionExclude, cfg.Pipeline.PastAuctionPolicy)

	assert.Equal(t, []string{"Oregon", "Texas", "Washington"}, cfg.Market.TargetStates)
	assert.InDelta(t, 100_000, cfg.Market.MinPrice, 0.01)
	assert.InDelta(t, 1_200_000, cfg.Market.MaxPrice, 0.01)
	assert.Equal(t, []string{"Single Family"}, cfg.Market.PropertyTypes)

	regions, ok := cfg.Market.StateRegions("Oregon")
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"Central Oregon", "Southern Oregon"}, regions)
	regions, ok = cfg.Market.StateRegions("washington")
	require.True(t, ok)
	assert.Equal(t, []string{"*"}, regions)

	assert.InDelta(t, 200, cfg.Market.PricePerSqftFor("Oregon"), 0.01)
	assert.InDelta(t, 160, cfg.Market.PricePerSqftFor("Texas"), 0.01)
	assert.InDelta(t, 180, cfg.Market.PricePerSqftFor("Nevada"), 0.01)

	assert.InDelta(t, 0.03, cfg.Scoring.ClosingCostPct, 0.0001)
	assert.InDelta(t, 0.01, cfg.Scoring.HoldingCostPctPerMonth, 0.0001)
	assert.Equal(t, 6, cfg.Scoring.HoldingMonths)
	assert.InDelta(t, 0.08, cfg.Scoring.SellingCostPct, 0.0001)
	assert.InDelta(t, 40, cfg.Scoring.ProfitMarginWeight, 0.01)
	assert.InDelta(t, 20, cfg.Scoring.RepairEfficiencyWeight, 0.01)
	assert.InDelta(t, 30, cfg.Scoring.MinProfitMargin, 0.01)
	assert.InDelta(t, 80_000, cfg.Scoring.MaxRepairCost, 0.01)
	assert.InDelta(t, 60, cfg.Scoring.MinDealScore, 0.01)
	assert.Equal(t, 1500, cfg.Scoring.IdealSqftMin)
	assert.InDelta(t, 1.5, cfg.Scoring.PartialBaths, 0.001)

	assert.InDelta(t, 40, cfg.Alerts.HotMargin, 0.01)
	assert.Equal(t, 20, cfg.Alerts.TopDeals)
	assert.Equal(t, 10, cfg.Alerts.MaxAlerts)

	assert.True(t, cfg.Enrich.Valuation)
	assert.False(t, cfg.Enrich.Synthetic)
	assert.Equal(t, 15, cfg.Enrich.MaxValuationCalls)
	assert.Equal(t, []string{"attom_avm", "batchdata", "record"}, cfg.Enrich.ValuationPriority)

	assert.True(t, cfg.Sources.ATTOM.Enabled)
	assert.Equal(t, 2000, cfg.Sources.ATTOM.MinIntervalMs)
	assert.Equal(t, 500, cfg.Sources.BatchData.MinIntervalMs)
	assert.False(t, cfg.Sources.Redfin.Enabled)
	assert.Equal(t, 3000, cfg.Sources.Redfin.MinIntervalMs)
	assert.Equal(t, 3, cfg.Breaker.FailureThreshold)

	assert.NoError(t, cfg.Validate())
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
log:
  level: debug
  format: console
pipeline:
  limit: 10
  price_policy: estimate
market:
  active_regions:
    Texas: ["*"]
    Oregon: []
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 10, cfg.Pipeline.Limit)
	assert.Equal(t, PricePolicyEstimate, cfg.Pipeline.PricePolicy)

	regions, ok := cfg.Market.StateRegions("Oregon")
	require.True(t, ok)
	assert.Empty(t, regions)

	// Defaults still apply for unset values
	assert.Equal(t, 12, cfg.Pipeline.SampleSize)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("AUCTION_STORE_DRIVER", "sqlite")
	t.Setenv("AUCTION_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvSourceKeys(t *testing.T) {
	chdirTemp(t)

	t.Setenv("AUCTION_SOURCES_ATTOM_KEY", "rapid-key")
	t.Setenv("AUCTION_SOURCES_BATCHDATA_KEY", "bd-token")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "rapid-key", cfg.Sources.ATTOM.Key)
	assert.Equal(t, "bd-token", cfg.Sources.BatchData.Key)
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdirTemp(t)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("AUCTION_SOURCES_CENSUS_KEY=census-from-dotenv\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("AUCTION_SOURCES_CENSUS_KEY") }) //nolint:errcheck

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "census-from-dotenv", cfg.Sources.Census.Key)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("pipeline: [unclosed"), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validConfig returns a Config that passes Validate.
func validConfig() *Config {
	return &Config{
		Store: StoreConfig{Driver: "sqlite"},
		Pipeline: PipelineConfig{
			Limit:               75,
			SampleSize:          12,
			CandidateMultiplier: 3,
			Concurrency:         1,
			PricePolicy:         PricePolicyReject,
			RepairPolicy:        RepairPolicyAgeTiered,
			PastAuctionPolicy:   PastAuctionExclude,
		},
		Market: MarketConfig{
			ActiveRegions:       map[string][]string{"oregon": {"*"}},
			MinPrice:            100_000,
			MaxPrice:            1_200_000,
			PricePerSqft:        map[string]float64{"oregon": 200},
			DefaultPricePerSqft: 180,
		},
		Breaker: BreakerConfig{FailureThreshold: 3},
	}
}

func TestValidate_OK(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Pipeline.Limit = 0
	cfg.Pipeline.PricePolicy = "guess"
	cfg.Market.MaxPrice = 50_000
	cfg.Market.PricePerSqft["texas"] = -1
	cfg.Breaker.FailureThreshold = 0
	cfg.Store.Driver = "mysql"

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "config: invalid")
	assert.Contains(t, msg, "pipeline.limit must be > 0")
	assert.Contains(t, msg, `pipeline.price_policy must be "reject" or "estimate", got "guess"`)
	assert.Contains(t, msg, "market.max_price must be > market.min_price")
	assert.Contains(t, msg, "market.price_per_sqft[texas] must be > 0")
	assert.Contains(t, msg, "breaker.failure_threshold must be >= 1")
	assert.Contains(t, msg, "store.driver must be sqlite or postgres")
}

func TestValidate_UnknownPolicies(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"repair", func(c *Config) { c.Pipeline.RepairPolicy = "inspect" }, "pipeline.repair_policy"},
		{"past_auction", func(c *Config) { c.Pipeline.PastAuctionPolicy = "keep" }, "pipeline.past_auction_policy"},
		{"concurrency", func(c *Config) { c.Pipeline.Concurrency = 0 }, "pipeline.concurrency"},
		{"no_states", func(c *Config) { c.Market.ActiveRegions = nil }, "market.active_regions"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestStateRegions_Missing(t *testing.T) {
	cfg := validConfig()
	_, ok := cfg.Market.StateRegions("Texas")
	assert.False(t, ok)
}
