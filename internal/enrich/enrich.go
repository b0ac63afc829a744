// Package enrich runs the post-selection enrichment stages over a property
// set: external valuations, foreclosure context, neighborhood scores and an
// optional synthetic foreclosure fallback.
package enrich

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/sells-group/auction-cli/internal/config"
	"github.com/sells-group/auction-cli/internal/model"
)

// Stage names used in reports and metrics.
const (
	StageValuation    = "valuation"
	StageForeclosure  = "foreclosure"
	StageNeighborhood = "neighborhood"
	StageSynthetic    = "synthetic"
)

// Valuation is an automated valuation for one property.
type Valuation struct {
	Source string
	Value  float64
	Low    float64
	High   float64
}

// ForeclosureDetail is lender, debt and history context for one property.
type ForeclosureDetail struct {
	Entity           string
	MortgageLender   string
	MortgageBalance  float64
	TotalDebt        float64
	LoanType         string
	DefaultDate      string
	Stage            string
	LastSaleDate     string
	LastSalePrice    float64
	TaxAssessedValue float64
	AnnualTax        float64
	RentEstimate     float64
}

// ValuationLookup returns an automated valuation for a property.
type ValuationLookup interface {
	// Name is the valuation source tag ranked by valuation_priority.
	Name() string
	Valuation(ctx context.Context, p *model.Property) (*Valuation, error)
}

// ForeclosureLookup returns foreclosure context for a property.
type ForeclosureLookup interface {
	Name() string
	Foreclosure(ctx context.Context, p *model.Property) (*ForeclosureDetail, error)
}

// NeighborhoodScorer returns a 1..10 neighborhood score for a zip code.
type NeighborhoodScorer interface {
	Score(ctx context.Context, zip string) (int, error)
}

// Calculator recomputes a property's derived metrics.
type Calculator interface {
	Calculate(p *model.Property)
}

// Observer receives one event per enrichment call outcome.
type Observer func(stage, outcome string)

// Orchestrator applies the enrichment stages in order. A single instance
// may be reused across runs; the neighborhood cache persists between them.
type Orchestrator struct {
	cfg          config.EnrichConfig
	calc         Calculator
	valuations   []ValuationLookup
	foreclosures []ForeclosureLookup
	neighborhood NeighborhoodScorer
	cache        *cache.Cache
	rng          *rand.Rand
	now          func() time.Time
	observe      Observer
	log          *zap.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithValuations registers valuation lookups. They are tried in
// valuation_priority order regardless of registration order.
func WithValuations(v ...ValuationLookup) Option {
	return func(o *Orchestrator) { o.valuations = append(o.valuations, v...) }
}

// WithForeclosures registers foreclosure context lookups.
func WithForeclosures(f ...ForeclosureLookup) Option {
	return func(o *Orchestrator) { o.foreclosures = append(o.foreclosures, f...) }
}

// WithNeighborhood sets the neighborhood scorer.
func WithNeighborhood(n NeighborhoodScorer) Option {
	return func(o *Orchestrator) { o.neighborhood = n }
}

// WithRand sets the random source used by the synthetic stage.
func WithRand(rng *rand.Rand) Option {
	return func(o *Orchestrator) { o.rng = rng }
}

// WithNow sets the clock used for synthetic default dates.
func WithNow(fn func() time.Time) Option {
	return func(o *Orchestrator) { o.now = fn }
}

// WithObserver sets a callback invoked for every call outcome.
func WithObserver(fn Observer) Option {
	return func(o *Orchestrator) { o.observe = fn }
}

// New creates an Orchestrator. calc reruns the metrics after any change.
func New(cfg config.EnrichConfig, calc Calculator, opts ...Option) *Orchestrator {
	ttl := time.Duration(cfg.CacheTTLHours) * time.Hour
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	o := &Orchestrator{
		cfg:   cfg,
		calc:  calc,
		cache: cache.New(ttl, 2*ttl),
		now:   time.Now,
		log:   zap.L().With(zap.String("component", "enrich")),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.rng == nil {
		o.rng = rand.New(rand.NewPCG(uint64(o.now().UnixNano()), 0x9e3779b9))
	}
	return o
}

// Enrich runs every enabled stage over props in place and returns a report.
// Individual call failures are logged and counted; the batch never aborts.
func (o *Orchestrator) Enrich(ctx context.Context, props []*model.Property) *Report {
	report := NewReport()
	if len(props) == 0 {
		return report
	}

	if o.cfg.Valuation && len(o.valuations) > 0 {
		o.enrichValuations(ctx, props, report)
	}
	if o.cfg.Foreclosure && len(o.foreclosures) > 0 {
		o.enrichForeclosures(ctx, props, report)
	}
	if o.cfg.Neighborhood && o.neighborhood != nil {
		o.enrichNeighborhoods(ctx, props, report)
	}
	if o.cfg.Synthetic {
		o.fillSynthetic(props, report)
	}

	o.log.Info("enrichment complete",
		zap.Int("properties", len(props)),
		zap.Any("stages", report.Stages()),
	)
	return report
}

func (o *Orchestrator) record(r *Report, stage, outcome string) {
	r.add(stage, outcome)
	if o.observe != nil {
		o.observe(stage, outcome)
	}
}
