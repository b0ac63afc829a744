package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sells-group/auction-cli/internal/config"
	"github.com/sells-group/auction-cli/internal/enrich"
	"github.com/sells-group/auction-cli/internal/metrics"
	"github.com/sells-group/auction-cli/internal/model"
	"github.com/sells-group/auction-cli/internal/region"
	"github.com/sells-group/auction-cli/internal/resilience"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// --- Source Mock ---

type mockSource struct {
	mock.Mock
	name string
	kind Kind
}

func newMockSource(name string, kind Kind) *mockSource {
	return &mockSource{name: name, kind: kind}
}

func (m *mockSource) Name() string { return m.name }
func (m *mockSource) Kind() Kind   { return m.kind }

func (m *mockSource) Search(ctx context.Context, q Query) ([]model.RawRecord, error) {
	args := m.Called(ctx, q)
	if fn, ok := args.Get(0).(func(Query) []model.RawRecord); ok {
		return fn(q), args.Error(1)
	}
	recs, _ := args.Get(0).([]model.RawRecord)
	return recs, args.Error(1)
}

// listings returns n distinct, valid records for the queried zip.
func listings(n int) func(Query) []model.RawRecord {
	return func(q Query) []model.RawRecord {
		out := make([]model.RawRecord, 0, n)
		for i := range n {
			out = append(out, model.RawRecord{
				"address":      fmt.Sprintf("%d%s Oak St", i+1, q.Zip),
				"city":         q.City,
				"sale_amount":  200000.0,
				"market_value": 360000.0,
				"year_built":   2005,
				"auction_date": "2026-06-01",
			})
		}
		return out
	}
}

type stubEnricher struct {
	calls int
	seen  int
}

func (s *stubEnricher) Enrich(_ context.Context, props []*model.Property) *enrich.Report {
	s.calls++
	s.seen = len(props)
	r := enrich.NewReport()
	return r
}

func testConfig() *config.Config {
	return &config.Config{
		Pipeline: config.PipelineConfig{
			Limit:               10,
			SampleSize:          4,
			CandidateMultiplier: 3,
			Concurrency:         1,
			PricePolicy:         config.PricePolicyReject,
			RepairPolicy:        config.RepairPolicyAgeTiered,
			PastAuctionPolicy:   config.PastAuctionExclude,
		},
		Market: config.MarketConfig{
			ActiveRegions:       map[string][]string{"oregon": {"Central Oregon"}},
			MinPrice:            100_000,
			MaxPrice:            1_200_000,
			DefaultPricePerSqft: 180,
		},
		Breaker: config.BreakerConfig{FailureThreshold: 3},
	}
}

func newTestPipeline(t *testing.T, cfg *config.Config, opts ...Option) *Pipeline {
	t.Helper()
	catalog, err := region.DefaultCatalog()
	require.NoError(t, err)
	engine := metrics.NewEngine(metrics.DefaultScoringConfig(), metrics.WithNow(func() time.Time { return fixedNow }))
	opts = append([]Option{
		WithRand(rand.New(rand.NewPCG(7, 11))),
		WithNow(func() time.Time { return fixedNow }),
	}, opts...)
	return New(cfg, catalog, engine, opts...)
}

func TestRun_NoSources(t *testing.T) {
	p := newTestPipeline(t, testConfig())
	res, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Properties)
	assert.Equal(t, NoSourcesMessage, res.Summary.Message)
}

func TestRun_BuildsScoresAndNumbers(t *testing.T) {
	src := newMockSource("attom_sale", KindAPI)
	src.On("Search", mock.Anything, mock.Anything).Return(listings(2), nil)
	enr := &stubEnricher{}

	p := newTestPipeline(t, testConfig(), WithSources(src), WithEnricher(enr))
	res, err := p.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Properties, 8)
	for i, prop := range res.Properties {
		assert.Equal(t, fmt.Sprintf("ATTOM-%04d", i+1), prop.ID)
		assert.Equal(t, "Oregon", prop.State)
		assert.Equal(t, "Central Oregon", prop.Region)
		assert.Greater(t, prop.DealScore, 0.0)
		assert.Equal(t, 396000.0, prop.EstimatedARV)
	}
	src.AssertNumberOfCalls(t, "Search", 4)

	s := res.Summary
	assert.Equal(t, 4, s.Units)
	assert.Equal(t, 8, s.Candidates)
	assert.Equal(t, 8, s.Properties)
	assert.Equal(t, model.SourceStats{Calls: 4, Records: 8, Accepted: 8}, s.Sources["attom_sale"])
	assert.Equal(t, 1, enr.calls)
	assert.Equal(t, 8, enr.seen)
}

func TestRun_QueryCarriesUnitAndBounds(t *testing.T) {
	src := newMockSource("batchdata", KindAPI)
	src.On("Search", mock.Anything, mock.MatchedBy(func(q Query) bool {
		return q.State == "Oregon" && q.Region == "Central Oregon" && q.Zip != "" &&
			q.MinPrice == 100_000 && q.MaxPrice == 1_200_000
	})).Return(nil, nil)

	p := newTestPipeline(t, testConfig(), WithSources(src))
	_, err := p.Run(context.Background())
	require.NoError(t, err)
	src.AssertNumberOfCalls(t, "Search", 4)
}

func TestRun_DeduplicatesAcrossSources(t *testing.T) {
	rec := func(addr string) model.RawRecord {
		return model.RawRecord{"address": addr, "sale_amount": 200000.0, "market_value": 300000.0}
	}
	a := newMockSource("attom_sale", KindAPI)
	a.On("Search", mock.Anything, mock.Anything).Return([]model.RawRecord{rec("100 Oak St")}, nil)
	b := newMockSource("batchdata", KindAPI)
	b.On("Search", mock.Anything, mock.Anything).Return([]model.RawRecord{rec("100 OAK STREET"), rec("7 Elm Dr.")}, nil)

	p := newTestPipeline(t, testConfig(), WithSources(a, b))
	res, err := p.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Properties, 2)
	// 4 units x 3 records, of which only the first unit's two are new.
	assert.Equal(t, 10, res.Summary.Rejections[RejectDuplicate])
}

func TestRun_RejectsAndFilters(t *testing.T) {
	recs := []model.RawRecord{
		{"sale_amount": 200000.0},                     // no address
		{"address": "1 No Price Ln"},                  // no price
		{"address": "2 Cheap Ct", "sale_amount": 50000.0},
		{"address": "3 Past Pl", "sale_amount": 200000.0, "auction_date": "2025-01-01"},
		{"address": "4 Good Rd", "sale_amount": 200000.0, "market_value": 300000.0},
	}
	src := newMockSource("attom_sale", KindAPI)
	src.On("Search", mock.Anything, mock.Anything).Return(recs, nil).Once()
	src.On("Search", mock.Anything, mock.Anything).Return(nil, nil)

	p := newTestPipeline(t, testConfig(), WithSources(src))
	res, err := p.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Properties, 1)
	assert.Equal(t, "4 Good Rd", res.Properties[0].Address)
	assert.Equal(t, map[string]int{
		RejectNoAddress:   1,
		RejectNoPrice:     1,
		RejectPriceRange:  1,
		RejectPastAuction: 1,
	}, res.Summary.Rejections)
}

func TestRun_UnavailableSourceDroppedForRun(t *testing.T) {
	src := newMockSource("attom_sale", KindAPI)
	src.On("Search", mock.Anything, mock.Anything).Return(nil, ErrUnavailable)

	p := newTestPipeline(t, testConfig(), WithSources(src))
	res, err := p.Run(context.Background())
	require.NoError(t, err)

	src.AssertNumberOfCalls(t, "Search", 1)
	stats := res.Summary.Sources["attom_sale"]
	assert.Equal(t, 1, stats.Errors)
	assert.Equal(t, 3, stats.Skipped)
}

func TestRun_AuthFailureDropsSource(t *testing.T) {
	src := newMockSource("batchdata", KindAPI)
	src.On("Search", mock.Anything, mock.Anything).Return(nil, resilience.CheckStatus("batchdata", 401))

	p := newTestPipeline(t, testConfig(), WithSources(src))
	_, err := p.Run(context.Background())
	require.NoError(t, err)
	src.AssertNumberOfCalls(t, "Search", 1)
}

func TestRun_ScraperForbiddenCountsTowardBreaker(t *testing.T) {
	cfg := testConfig()
	cfg.Pipeline.SampleSize = 5
	scraper := newMockSource("redfin", KindScraper)
	scraper.On("Search", mock.Anything, mock.Anything).Return(nil, resilience.CheckStatus("redfin", 403)).Once()
	scraper.On("Search", mock.Anything, mock.Anything).Return(listings(1), nil)

	p := newTestPipeline(t, cfg, WithSources(scraper))
	res, err := p.Run(context.Background())
	require.NoError(t, err)

	scraper.AssertNumberOfCalls(t, "Search", 5)
	stats := res.Summary.Sources["redfin"]
	assert.Equal(t, 5, stats.Calls)
	assert.Equal(t, 1, stats.Errors)
	assert.Zero(t, stats.Skipped)
	assert.Equal(t, "closed", res.Summary.Breakers["redfin"])
	assert.Len(t, res.Properties, 4)
}

func TestRun_ScraperBreakerOpensAndResets(t *testing.T) {
	cfg := testConfig()
	cfg.Pipeline.SampleSize = 5
	scraper := newMockSource("redfin", KindScraper)
	scraper.On("Search", mock.Anything, mock.Anything).Return(nil, errors.New("redfin: html instead of csv"))
	api := newMockSource("attom_sale", KindAPI)
	api.On("Search", mock.Anything, mock.Anything).Return(listings(1), nil)

	rec := &countingRecorder{trips: map[string]int{}}
	p := newTestPipeline(t, cfg, WithSources(scraper, api), WithRecorder(rec))

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	scraper.AssertNumberOfCalls(t, "Search", 3)
	assert.Equal(t, "open", res.Summary.Breakers["redfin"])
	assert.Equal(t, 2, res.Summary.Sources["redfin"].Skipped)
	assert.Equal(t, 1, rec.trips["redfin"])
	assert.Len(t, res.Properties, 5, "an open scraper must not stop other sources")

	// The next run starts with every breaker closed.
	_, err = p.Run(context.Background())
	require.NoError(t, err)
	scraper.AssertNumberOfCalls(t, "Search", 6)
	assert.Equal(t, 2, rec.trips["redfin"])
}

func TestRun_CandidateCap(t *testing.T) {
	cfg := testConfig()
	cfg.Pipeline.Limit = 2
	cfg.Pipeline.CandidateMultiplier = 2
	src := newMockSource("attom_sale", KindAPI)
	src.On("Search", mock.Anything, mock.Anything).Return(listings(3), nil)

	p := newTestPipeline(t, cfg, WithSources(src))
	res, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, res.Summary.Candidates)
	assert.Len(t, res.Properties, 2)
	assert.Equal(t, 2, res.Summary.Rejections[RejectAllocation])
	src.AssertNumberOfCalls(t, "Search", 2)
}

func TestRun_ConcurrentMatchesSequential(t *testing.T) {
	run := func(workers int) []string {
		cfg := testConfig()
		cfg.Pipeline.Limit = 50
		cfg.Pipeline.SampleSize = 5
		cfg.Pipeline.Concurrency = workers
		a := newMockSource("attom_sale", KindAPI)
		a.On("Search", mock.Anything, mock.Anything).Return(listings(2), nil)
		r := newMockSource("redfin", KindScraper)
		r.On("Search", mock.Anything, mock.Anything).Return(listings(1), nil)

		p := newTestPipeline(t, cfg, WithSources(a, r))
		res, err := p.Run(context.Background())
		require.NoError(t, err)
		var out []string
		for _, prop := range res.Properties {
			out = append(out, prop.ID+" "+prop.Address)
		}
		return out
	}

	seq := run(1)
	require.NotEmpty(t, seq)
	assert.Equal(t, seq, run(4))
}

func TestRun_ContextCancelled(t *testing.T) {
	src := newMockSource("attom_sale", KindAPI)
	src.On("Search", mock.Anything, mock.Anything).Return(listings(1), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := newTestPipeline(t, testConfig(), WithSources(src))
	_, err := p.Run(ctx)
	require.Error(t, err)
}

type countingRecorder struct {
	trips   map[string]int
	fetched int
}

func (c *countingRecorder) RecordsFetched(_ string, n int) { c.fetched += n }
func (c *countingRecorder) SourceError(string)            {}
func (c *countingRecorder) RecordRejected(string)         {}
func (c *countingRecorder) BreakerTripped(name string)    { c.trips[name]++ }
