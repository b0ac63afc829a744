package pipeline

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/auction-cli/internal/allocate"
	"github.com/sells-group/auction-cli/internal/builder"
	"github.com/sells-group/auction-cli/internal/config"
	"github.com/sells-group/auction-cli/internal/dedup"
	"github.com/sells-group/auction-cli/internal/enrich"
	"github.com/sells-group/auction-cli/internal/metrics"
	"github.com/sells-group/auction-cli/internal/model"
	"github.com/sells-group/auction-cli/internal/region"
	"github.com/sells-group/auction-cli/internal/resilience"
)

// Rejection reasons reported in the run summary.
const (
	RejectDuplicate     = "duplicate"
	RejectNoAddress     = "no_address"
	RejectNoPrice       = "no_price"
	RejectPastAuction   = "past_auction"
	RejectStateDisabled = "state_disabled"
	RejectPriceRange    = "price_range"
	RejectAllocation    = "allocation"
)

// NoSourcesMessage is set on the result when no source is enabled.
const NoSourcesMessage = "no sources enabled: enable at least one source and set its key"

// Result is the outcome of one run.
type Result struct {
	Properties []*model.Property `json:"properties"`
	Summary    model.RunSummary  `json:"summary"`
}

// Pipeline runs aggregation passes. A Pipeline may run repeatedly but not
// concurrently with itself.
type Pipeline struct {
	cfg      *config.Config
	catalog  *region.Catalog
	selector region.Selector
	engine   *metrics.Engine
	sources  []Source
	enricher Enricher
	breakers *resilience.Breakers
	recorder Recorder
	rng      *rand.Rand
	now      func() time.Time
	log      *zap.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithSources registers the enabled sources, queried in order.
func WithSources(s ...Source) Option {
	return func(p *Pipeline) { p.sources = append(p.sources, s...) }
}

// WithEnricher sets the enrichment orchestrator.
func WithEnricher(e Enricher) Option {
	return func(p *Pipeline) { p.enricher = e }
}

// WithBreakers sets the scraper breaker registry.
func WithBreakers(b *resilience.Breakers) Option {
	return func(p *Pipeline) { p.breakers = b }
}

// WithRecorder sets the counter sink.
func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

// WithRand fixes the random source for every run.
func WithRand(rng *rand.Rand) Option {
	return func(p *Pipeline) { p.rng = rng }
}

// WithNow sets the clock used by the builder.
func WithNow(fn func() time.Time) Option {
	return func(p *Pipeline) { p.now = fn }
}

// New creates a Pipeline.
func New(cfg *config.Config, catalog *region.Catalog, engine *metrics.Engine, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:      cfg,
		catalog:  catalog,
		selector: region.NewSelector(cfg.Market.ActiveRegions),
		engine:   engine,
		recorder: nopRecorder{},
		now:      time.Now,
		log:      zap.L().With(zap.String("component", "pipeline")),
	}
	for _, o := range opts {
		o(p)
	}
	if p.breakers == nil {
		p.breakers = resilience.NewBreakers(breakerConfig(cfg.Breaker))
	}
	return p
}

func breakerConfig(bc config.BreakerConfig) resilience.CircuitBreakerConfig {
	cfg := resilience.FromBreakerConfig(bc)
	cfg.ShouldTrip = func(err error) bool {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, ErrUnavailable)
	}
	return cfg
}

// Breakers returns the scraper breaker registry.
func (p *Pipeline) Breakers() *resilience.Breakers { return p.breakers }

// candidate is a deduplicated raw record awaiting the builder.
type candidate struct {
	raw    model.RawRecord
	source string
	hints  builder.Hints
}

// Run executes one pass. Source failures are absorbed into the summary; the
// returned error is non-nil only when ctx ends.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	p.breakers.ResetAll()
	tripsBefore := p.trips()

	res := &Result{Summary: model.RunSummary{
		Sources:    make(map[string]model.SourceStats),
		Rejections: make(map[string]int),
	}}

	if len(p.sources) == 0 {
		res.Summary.Message = NoSourcesMessage
		p.log.Warn("pipeline: " + NoSourcesMessage)
		return res, nil
	}

	rng := p.runRand()
	units := region.NewSampler(p.catalog, p.selector, rng).Sample(p.cfg.Pipeline.SampleSize)
	res.Summary.Units = len(units)
	p.log.Info("pipeline: starting run",
		zap.Int("units", len(units)),
		zap.Int("sources", len(p.sources)),
		zap.Int("limit", p.cfg.Pipeline.Limit),
	)

	run := newRunState(p, res)
	cands, err := run.collect(ctx, units)
	if err != nil {
		return nil, err
	}
	res.Summary.Candidates = len(cands)

	b := builder.New(p.cfg.Pipeline, p.cfg.Market, p.catalog, rng, builder.WithNow(p.now))
	var props []*model.Property
	for _, c := range cands {
		prop, err := b.Build(c.raw, c.source, c.hints)
		if err != nil {
			p.reject(res, rejectReason(err))
			p.log.Debug("pipeline: record skipped", zap.String("source", c.source), zap.Error(err))
			continue
		}
		p.engine.Calculate(prop)
		if reason := p.filter(prop); reason != "" {
			p.reject(res, reason)
			continue
		}
		stats := res.Summary.Sources[c.source]
		stats.Accepted++
		res.Summary.Sources[c.source] = stats
		props = append(props, prop)
	}

	selected := allocate.Allocate(props, p.cfg.Pipeline.Limit, rng)
	for range len(props) - len(selected) {
		p.reject(res, RejectAllocation)
	}
	allocate.ReassignIDs(selected)

	if p.enricher != nil && len(selected) > 0 {
		report := p.enricher.Enrich(ctx, selected)
		res.Summary.Enrichment = report.Stages()
	}

	res.Properties = selected
	res.Summary.Properties = len(selected)
	for _, prop := range selected {
		if prop.Recommended {
			res.Summary.Recommended++
		}
	}
	res.Summary.Breakers = make(map[string]string)
	for name, state := range p.breakers.States() {
		res.Summary.Breakers[name] = state.String()
		if n := p.breakers.Get(name).Trips() - tripsBefore[name]; n > 0 {
			for range n {
				p.recorder.BreakerTripped(name)
			}
		}
	}
	res.Summary.DurationMs = time.Since(start).Milliseconds()

	p.log.Info("pipeline: run complete",
		zap.Int("candidates", res.Summary.Candidates),
		zap.Int("properties", res.Summary.Properties),
		zap.Int("recommended", res.Summary.Recommended),
		zap.Int64("duration_ms", res.Summary.DurationMs),
	)
	return res, nil
}

func (p *Pipeline) runRand() *rand.Rand {
	if p.rng != nil {
		return p.rng
	}
	seed := p.cfg.Pipeline.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed^0x5851f42d4c957f2d))
}

func (p *Pipeline) trips() map[string]int {
	out := make(map[string]int)
	for _, name := range p.breakers.Names() {
		out[name] = p.breakers.Get(name).Trips()
	}
	return out
}

// filter returns the rejection reason for a built property, or "".
func (p *Pipeline) filter(prop *model.Property) string {
	m := p.cfg.Market
	switch {
	case prop.PastAuction:
		return RejectPastAuction
	case !p.selector.StateEnabled(prop.State):
		return RejectStateDisabled
	case prop.AuctionPrice < m.MinPrice:
		return RejectPriceRange
	case m.MaxPrice > 0 && prop.AuctionPrice > m.MaxPrice:
		return RejectPriceRange
	}
	return ""
}

func (p *Pipeline) reject(res *Result, reason string) {
	res.Summary.Rejections[reason]++
	p.recorder.RecordRejected(reason)
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, builder.ErrNoAddress):
		return RejectNoAddress
	case errors.Is(err, builder.ErrNoPrice):
		return RejectNoPrice
	default:
		return "build_error"
	}
}

// runState is the shared, mutex-guarded bookkeeping of one collection pass.
type runState struct {
	p       *Pipeline
	res     *Result
	seen    *dedup.Set
	max     int
	mu      sync.Mutex
	count   int
	dropped map[string]bool
	slots   [][]candidate
}

func newRunState(p *Pipeline, res *Result) *runState {
	mult := p.cfg.Pipeline.CandidateMultiplier
	if mult <= 0 {
		mult = 3
	}
	return &runState{
		p:       p,
		res:     res,
		seen:    dedup.NewSet(),
		max:     p.cfg.Pipeline.Limit * mult,
		dropped: make(map[string]bool),
	}
}

// collect queries every source for every unit and returns the deduplicated
// candidates in unit order.
func (r *runState) collect(ctx context.Context, units []region.SampleUnit) ([]candidate, error) {
	r.slots = make([][]candidate, len(units))

	workers := r.p.cfg.Pipeline.Concurrency
	if workers <= 0 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, u := range units {
		if r.full() {
			break
		}
		g.Go(func() error {
			r.searchUnit(gctx, i, u)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []candidate
	for _, s := range r.slots {
		out = append(out, s...)
	}
	return out, nil
}

func (r *runState) full() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.max > 0 && r.count >= r.max
}

func (r *runState) searchUnit(ctx context.Context, idx int, u region.SampleUnit) {
	q := Query{
		City:     u.City,
		State:    u.State,
		Zip:      u.Zip,
		Region:   u.Region,
		MinPrice: r.p.cfg.Market.MinPrice,
		MaxPrice: r.p.cfg.Market.MaxPrice,
	}
	hints := builder.Hints{City: u.City, State: u.State, Zip: u.Zip, Region: u.Region}

	for _, src := range r.p.sources {
		if ctx.Err() != nil || r.full() {
			return
		}
		name := src.Name()
		if r.isDropped(name) {
			r.stat(name, func(s *model.SourceStats) { s.Skipped++ })
			continue
		}

		recs, err := r.search(ctx, src, q)
		if err != nil {
			r.handleError(src, err)
			continue
		}
		r.p.recorder.RecordsFetched(name, len(recs))
		r.accept(idx, name, recs, hints)
	}
}

func (r *runState) search(ctx context.Context, src Source, q Query) ([]model.RawRecord, error) {
	if src.Kind() != KindScraper {
		return src.Search(ctx, q)
	}
	return resilience.ExecuteVal(ctx, r.p.breakers.Get(src.Name()), func(ctx context.Context) ([]model.RawRecord, error) {
		return src.Search(ctx, q)
	})
}

// handleError drops a source for the run when it is unavailable. Scrapers are
// dropped only on ErrUnavailable; a 401/403 from a site is a block, which the
// breaker has already counted.
func (r *runState) handleError(src Source, err error) {
	name := src.Name()
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		r.stat(name, func(s *model.SourceStats) { s.Skipped++ })
	case errors.Is(err, ErrUnavailable) || (src.Kind() != KindScraper && resilience.IsAuthFailure(err)):
		r.mu.Lock()
		first := !r.dropped[name]
		r.dropped[name] = true
		r.mu.Unlock()
		if first {
			r.p.log.Warn("pipeline: source unavailable for this run",
				zap.String("source", name),
				zap.Error(err),
			)
		}
		r.stat(name, func(s *model.SourceStats) {
			s.Calls++
			s.Errors++
			s.LastError = err.Error()
		})
		r.p.recorder.SourceError(name)
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
	default:
		r.p.log.Debug("pipeline: source call failed", zap.String("source", name), zap.Error(err))
		r.stat(name, func(s *model.SourceStats) {
			s.Calls++
			s.Errors++
			s.LastError = err.Error()
		})
		r.p.recorder.SourceError(name)
	}
}

func (r *runState) accept(idx int, name string, recs []model.RawRecord, hints builder.Hints) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := r.res.Summary.Sources[name]
	stats.Calls++
	stats.Records += len(recs)
	r.res.Summary.Sources[name] = stats

	for _, raw := range recs {
		if r.max > 0 && r.count >= r.max {
			return
		}
		// Records without an address pass through so the builder counts them.
		if addr := builder.Address(raw); addr != "" && !r.seen.Add(addr) {
			r.res.Summary.Rejections[RejectDuplicate]++
			r.p.recorder.RecordRejected(RejectDuplicate)
			continue
		}
		r.slots[idx] = append(r.slots[idx], candidate{raw: raw, source: name, hints: hints})
		r.count++
	}
}

func (r *runState) isDropped(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped[name]
}

func (r *runState) stat(name string, fn func(*model.SourceStats)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.res.Summary.Sources[name]
	fn(&s)
	r.res.Summary.Sources[name] = s
}

// Check that the enrichment orchestrator satisfies Enricher.
var _ Enricher = (*enrich.Orchestrator)(nil)
