package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Market   MarketConfig   `yaml:"market" mapstructure:"market"`
	Scoring  ScoringConfig  `yaml:"scoring" mapstructure:"scoring"`
	Alerts   AlertConfig    `yaml:"alerts" mapstructure:"alerts"`
	Enrich   EnrichConfig   `yaml:"enrich" mapstructure:"enrich"`
	Sources  SourcesConfig  `yaml:"sources" mapstructure:"sources"`
	Breaker  BreakerConfig  `yaml:"breaker" mapstructure:"breaker"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the read-only HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Record builder policies.
const (
	PricePolicyReject   = "reject"
	PricePolicyEstimate = "estimate"

	RepairPolicyAgeTiered = "age_tiered"
	RepairPolicyZero      = "zero"

	PastAuctionExclude   = "exclude"
	PastAuctionReproject = "reproject"
)

// PipelineConfig configures a single aggregation run.
type PipelineConfig struct {
	Limit               int    `yaml:"limit" mapstructure:"limit"`
	SampleSize          int    `yaml:"sample_size" mapstructure:"sample_size"`
	CandidateMultiplier int    `yaml:"candidate_multiplier" mapstructure:"candidate_multiplier"`
	Concurrency         int    `yaml:"concurrency" mapstructure:"concurrency"`
	Seed                uint64 `yaml:"seed" mapstructure:"seed"` // 0 = time-seeded
	PricePolicy         string `yaml:"price_policy" mapstructure:"price_policy"`
	RepairPolicy        string `yaml:"repair_policy" mapstructure:"repair_policy"`
	PastAuctionPolicy   string `yaml:"past_auction_policy" mapstructure:"past_auction_policy"`
	RegionsFile         string `yaml:"regions_file" mapstructure:"regions_file"`
}

// MarketConfig describes which markets are searched and what is acceptable.
//
// ActiveRegions maps a state to its enabled sub-regions: ["*"] enables every
// region, an empty list disables the state, otherwise the list is an
// allow-list. Viper lowercases map keys, so lookups go through the helpers.
type MarketConfig struct {
	TargetStates        []string            `yaml:"target_states" mapstructure:"target_states"`
	ActiveRegions       map[string][]string `yaml:"active_regions" mapstructure:"active_regions"`
	MinPrice            float64             `yaml:"min_price" mapstructure:"min_price"`
	MaxPrice            float64             `yaml:"max_price" mapstructure:"max_price"`
	PropertyTypes       []string            `yaml:"property_types" mapstructure:"property_types"`
	PricePerSqft        map[string]float64  `yaml:"price_per_sqft" mapstructure:"price_per_sqft"`
	DefaultPricePerSqft float64             `yaml:"default_price_per_sqft" mapstructure:"default_price_per_sqft"`
}

// PricePerSqftFor returns the per-square-foot rate for a full state name.
func (m MarketConfig) PricePerSqftFor(state string) float64 {
	if r, ok := m.PricePerSqft[strings.ToLower(state)]; ok && r > 0 {
		return r
	}
	for k, r := range m.PricePerSqft {
		if strings.EqualFold(k, state) && r > 0 {
			return r
		}
	}
	return m.DefaultPricePerSqft
}

// ScoringConfig holds cost assumptions, score weights and recommendation
// thresholds used by the metrics engine.
type ScoringConfig struct {
	ClosingCostPct         float64 `yaml:"closing_cost_pct" mapstructure:"closing_cost_pct"`
	HoldingCostPctPerMonth float64 `yaml:"holding_cost_pct_per_month" mapstructure:"holding_cost_pct_per_month"`
	HoldingMonths          int     `yaml:"holding_months" mapstructure:"holding_months"`
	SellingCostPct         float64 `yaml:"selling_cost_pct" mapstructure:"selling_cost_pct"`

	// Weights (sum = 100).
	ProfitMarginWeight     float64 `yaml:"profit_margin_weight" mapstructure:"profit_margin_weight"`
	RepairEfficiencyWeight float64 `yaml:"repair_efficiency_weight" mapstructure:"repair_efficiency_weight"`
	NeighborhoodWeight     float64 `yaml:"neighborhood_weight" mapstructure:"neighborhood_weight"`
	CharacteristicsWeight  float64 `yaml:"characteristics_weight" mapstructure:"characteristics_weight"`

	// Recommendation thresholds (inclusive).
	MinProfitMargin float64 `yaml:"min_profit_margin" mapstructure:"min_profit_margin"`
	MaxRepairCost   float64 `yaml:"max_repair_cost" mapstructure:"max_repair_cost"`
	MinDealScore    float64 `yaml:"min_deal_score" mapstructure:"min_deal_score"`

	// Margin and repair bands.
	MarginExcellent float64 `yaml:"margin_excellent" mapstructure:"margin_excellent"`
	MarginGood      float64 `yaml:"margin_good" mapstructure:"margin_good"`
	RepairRatioLow  float64 `yaml:"repair_ratio_low" mapstructure:"repair_ratio_low"`
	RepairRatioMid  float64 `yaml:"repair_ratio_mid" mapstructure:"repair_ratio_mid"`
	RepairDecayRate float64 `yaml:"repair_decay_rate" mapstructure:"repair_decay_rate"`

	// Property characteristic bands.
	IdealSqftMin      int     `yaml:"ideal_sqft_min" mapstructure:"ideal_sqft_min"`
	IdealSqftMax      int     `yaml:"ideal_sqft_max" mapstructure:"ideal_sqft_max"`
	AcceptableSqftMin int     `yaml:"acceptable_sqft_min" mapstructure:"acceptable_sqft_min"`
	AcceptableSqftMax int     `yaml:"acceptable_sqft_max" mapstructure:"acceptable_sqft_max"`
	IdealBedsMin      int     `yaml:"ideal_beds_min" mapstructure:"ideal_beds_min"`
	IdealBedsMax      int     `yaml:"ideal_beds_max" mapstructure:"ideal_beds_max"`
	GoodBaths         float64 `yaml:"good_baths" mapstructure:"good_baths"`
	PartialBaths      float64 `yaml:"partial_baths" mapstructure:"partial_baths"`
	NewAgeYears       int     `yaml:"new_age_years" mapstructure:"new_age_years"`
	MidAgeYears       int     `yaml:"mid_age_years" mapstructure:"mid_age_years"`
	OldAgeYears       int     `yaml:"old_age_years" mapstructure:"old_age_years"`

	// 70% rule with a safety discount.
	MaxBidARVRatio float64 `yaml:"max_bid_arv_ratio" mapstructure:"max_bid_arv_ratio"`
	MaxBidDiscount float64 `yaml:"max_bid_discount" mapstructure:"max_bid_discount"`
}

// AlertConfig configures alert levels and result sizing for analysis.
type AlertConfig struct {
	HotMargin       float64 `yaml:"hot_margin" mapstructure:"hot_margin"`
	ExcellentMargin float64 `yaml:"excellent_margin" mapstructure:"excellent_margin"`
	GoodMargin      float64 `yaml:"good_margin" mapstructure:"good_margin"`
	TopDeals        int     `yaml:"top_deals" mapstructure:"top_deals"`
	MaxAlerts       int     `yaml:"max_alerts" mapstructure:"max_alerts"`
}

// EnrichConfig toggles enrichment stages.
type EnrichConfig struct {
	Valuation         bool     `yaml:"valuation" mapstructure:"valuation"`
	Foreclosure       bool     `yaml:"foreclosure" mapstructure:"foreclosure"`
	Neighborhood      bool     `yaml:"neighborhood" mapstructure:"neighborhood"`
	Synthetic         bool     `yaml:"synthetic" mapstructure:"synthetic"`
	MaxValuationCalls int      `yaml:"max_valuation_calls" mapstructure:"max_valuation_calls"`
	ValuationPriority []string `yaml:"valuation_priority" mapstructure:"valuation_priority"`
	CacheTTLHours     int      `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
}

// SourcesConfig holds per-source adapter settings.
type SourcesConfig struct {
	ATTOM      SourceConfig `yaml:"attom" mapstructure:"attom"`
	BatchData  SourceConfig `yaml:"batchdata" mapstructure:"batchdata"`
	Census     SourceConfig `yaml:"census" mapstructure:"census"`
	Redfin     SourceConfig `yaml:"redfin" mapstructure:"redfin"`
	Sheriff    SourceConfig `yaml:"sheriff" mapstructure:"sheriff"`
	AuctionCom SourceConfig `yaml:"auctioncom" mapstructure:"auctioncom"`
}

// SourceConfig configures one source adapter.
type SourceConfig struct {
	Enabled       bool   `yaml:"enabled" mapstructure:"enabled"`
	Key           string `yaml:"key" mapstructure:"key"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	MinIntervalMs int    `yaml:"min_interval_ms" mapstructure:"min_interval_ms"`
	MaxRetries    int    `yaml:"max_retries" mapstructure:"max_retries"`
	TimeoutSecs   int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	DatasetID     string `yaml:"dataset_id" mapstructure:"dataset_id"`
}

// BreakerConfig configures scraper circuit breakers.
type BreakerConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
}

// Load reads configuration from .env, config file and environment.
func Load() (*Config, error) {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("AUCTION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "auction.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)

	v.SetDefault("pipeline.limit", 75)
	v.SetDefault("pipeline.sample_size", 12)
	v.SetDefault("pipeline.candidate_multiplier", 3)
	v.SetDefault("pipeline.concurrency", 1)
	v.SetDefault("pipeline.seed", 0)
	v.SetDefault("pipeline.price_policy", PricePolicyReject)
	v.SetDefault("pipeline.repair_policy", RepairPolicyAgeTiered)
	v.SetDefault("pipeline.past_auction_policy", PastAuctionExclude)
	v.SetDefault("pipeline.regions_file", "")

	v.SetDefault("market.target_states", []string{"Oregon", "Texas", "Washington"})
	v.SetDefault("market.active_regions", map[string][]string{
		"Oregon":     {"Central Oregon", "Southern Oregon"},
		"Texas":      {"Greater Austin"},
		"Washington": {"*"},
	})
	v.SetDefault("market.min_price", 100_000)
	v.SetDefault("market.max_price", 1_200_000)
	v.SetDefault("market.property_types", []string{"Single Family"})
	v.SetDefault("market.price_per_sqft", map[string]float64{
		"Oregon":     200,
		"Texas":      160,
		"California": 350,
		"Washington": 220,
		"Arizona":    170,
		"Colorado":   230,
	})
	v.SetDefault("market.default_price_per_sqft", 180)

	v.SetDefault("scoring.closing_cost_pct", 0.03)
	v.SetDefault("scoring.holding_cost_pct_per_month", 0.01)
	v.SetDefault("scoring.holding_months", 6)
	v.SetDefault("scoring.selling_cost_pct", 0.08)
	v.SetDefault("scoring.profit_margin_weight", 40)
	v.SetDefault("scoring.repair_efficiency_weight", 20)
	v.SetDefault("scoring.neighborhood_weight", 20)
	v.SetDefault("scoring.characteristics_weight", 20)
	v.SetDefault("scoring.min_profit_margin", 30)
	v.SetDefault("scoring.max_repair_cost", 80_000)
	v.SetDefault("scoring.min_deal_score", 60)
	v.SetDefault("scoring.margin_excellent", 40)
	v.SetDefault("scoring.margin_good", 30)
	v.SetDefault("scoring.repair_ratio_low", 0.15)
	v.SetDefault("scoring.repair_ratio_mid", 0.30)
	v.SetDefault("scoring.repair_decay_rate", 50)
	v.SetDefault("scoring.ideal_sqft_min", 1500)
	v.SetDefault("scoring.ideal_sqft_max", 3000)
	v.SetDefault("scoring.acceptable_sqft_min", 1200)
	v.SetDefault("scoring.acceptable_sqft_max", 3500)
	v.SetDefault("scoring.ideal_beds_min", 3)
	v.SetDefault("scoring.ideal_beds_max", 4)
	v.SetDefault("scoring.good_baths", 2)
	v.SetDefault("scoring.partial_baths", 1.5)
	v.SetDefault("scoring.new_age_years", 20)
	v.SetDefault("scoring.mid_age_years", 40)
	v.SetDefault("scoring.old_age_years", 60)
	v.SetDefault("scoring.max_bid_arv_ratio", 0.70)
	v.SetDefault("scoring.max_bid_discount", 0.09)

	v.SetDefault("alerts.hot_margin", 40)
	v.SetDefault("alerts.excellent_margin", 35)
	v.SetDefault("alerts.good_margin", 30)
	v.SetDefault("alerts.top_deals", 20)
	v.SetDefault("alerts.max_alerts", 10)

	v.SetDefault("enrich.valuation", true)
	v.SetDefault("enrich.foreclosure", true)
	v.SetDefault("enrich.neighborhood", true)
	v.SetDefault("enrich.synthetic", false)
	v.SetDefault("enrich.max_valuation_calls", 15)
	v.SetDefault("enrich.valuation_priority", []string{"attom_avm", "batchdata", "record"})
	v.SetDefault("enrich.cache_ttl_hours", 24)

	v.SetDefault("sources.attom.enabled", true)
	v.SetDefault("sources.attom.key", "")
	v.SetDefault("sources.attom.base_url", "https://attom-property.p.rapidapi.com/propertyapi/v1.0.0")
	v.SetDefault("sources.attom.min_interval_ms", 2000)
	v.SetDefault("sources.attom.max_retries", 2)
	v.SetDefault("sources.attom.timeout_secs", 30)

	v.SetDefault("sources.batchdata.enabled", true)
	v.SetDefault("sources.batchdata.key", "")
	v.SetDefault("sources.batchdata.base_url", "https://api.batchdata.com/api/v1")
	v.SetDefault("sources.batchdata.min_interval_ms", 500)
	v.SetDefault("sources.batchdata.max_retries", 2)
	v.SetDefault("sources.batchdata.timeout_secs", 30)

	v.SetDefault("sources.census.enabled", true)
	v.SetDefault("sources.census.key", "")
	v.SetDefault("sources.census.base_url", "https://api.census.gov/data/2022/acs/acs5")
	v.SetDefault("sources.census.min_interval_ms", 200)
	v.SetDefault("sources.census.max_retries", 2)
	v.SetDefault("sources.census.timeout_secs", 15)

	v.SetDefault("sources.redfin.enabled", false)
	v.SetDefault("sources.redfin.base_url", "https://www.redfin.com/stingray/api/gis-csv")
	v.SetDefault("sources.redfin.min_interval_ms", 3000)
	v.SetDefault("sources.redfin.max_retries", 2)
	v.SetDefault("sources.redfin.timeout_secs", 20)

	v.SetDefault("sources.sheriff.enabled", false)
	v.SetDefault("sources.sheriff.base_url", "https://oregonsheriffssales.org")
	v.SetDefault("sources.sheriff.min_interval_ms", 2000)
	v.SetDefault("sources.sheriff.max_retries", 2)
	v.SetDefault("sources.sheriff.timeout_secs", 20)

	v.SetDefault("sources.auctioncom.enabled", false)
	v.SetDefault("sources.auctioncom.key", "")
	v.SetDefault("sources.auctioncom.base_url", "https://api.apify.com/v2")
	v.SetDefault("sources.auctioncom.dataset_id", "")
	v.SetDefault("sources.auctioncom.min_interval_ms", 1000)
	v.SetDefault("sources.auctioncom.max_retries", 2)
	v.SetDefault("sources.auctioncom.timeout_secs", 30)

	v.SetDefault("breaker.failure_threshold", 3)
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
