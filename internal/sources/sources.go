// Package sources adapts the listing, valuation and neighborhood clients in
// pkg/ to the pipeline and enrichment interfaces.
package sources

import (
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/auction-cli/internal/config"
	"github.com/sells-group/auction-cli/internal/enrich"
	"github.com/sells-group/auction-cli/internal/model"
	"github.com/sells-group/auction-cli/internal/pipeline"
	"github.com/sells-group/auction-cli/internal/resilience"
	"github.com/sells-group/auction-cli/pkg/attom"
	"github.com/sells-group/auction-cli/pkg/auctioncom"
	"github.com/sells-group/auction-cli/pkg/batchdata"
	"github.com/sells-group/auction-cli/pkg/census"
	"github.com/sells-group/auction-cli/pkg/redfin"
	"github.com/sells-group/auction-cli/pkg/sheriff"
)

// defaultMemoTTL bounds how long scraped pages are reused across units and
// runs.
const defaultMemoTTL = time.Hour

// Set is everything built from the sources configuration.
type Set struct {
	Sources      []pipeline.Source
	Valuations   []enrich.ValuationLookup
	Foreclosures []enrich.ForeclosureLookup
	Neighborhood enrich.NeighborhoodScorer
}

// Names returns the names of the listing sources in order.
func (s *Set) Names() []string {
	out := make([]string, len(s.Sources))
	for i, src := range s.Sources {
		out[i] = src.Name()
	}
	return out
}

// Build constructs the clients for every enabled source. Keyed sources
// without a key are still registered; their first call reports them
// unavailable and the pipeline drops them for the run.
func Build(cfg config.SourcesConfig) *Set {
	log := zap.L().With(zap.String("component", "sources"))
	set := &Set{}

	if sc := cfg.ATTOM; sc.Enabled {
		c := attom.NewClient(sc.Key, attomOptions(sc)...)
		set.Sources = append(set.Sources, NewATTOMSale(c), NewATTOMProperty(c))
		set.Valuations = append(set.Valuations, NewATTOMValuation(c))
	}
	if sc := cfg.BatchData; sc.Enabled {
		c := batchdata.NewClient(sc.Key, batchDataOptions(sc)...)
		lookup := newBatchLookup(c, defaultMemoTTL)
		set.Sources = append(set.Sources, NewBatchData(c))
		set.Valuations = append(set.Valuations, &batchValuation{lookup: lookup})
		set.Foreclosures = append(set.Foreclosures, &batchForeclosure{lookup: lookup})
	}
	if sc := cfg.Redfin; sc.Enabled {
		set.Sources = append(set.Sources, NewRedfin(redfin.NewClient(redfinOptions(sc)...)))
	}
	if sc := cfg.Sheriff; sc.Enabled {
		set.Sources = append(set.Sources, NewSheriff(sheriff.NewClient(sheriffOptions(sc)...), defaultMemoTTL))
	}
	if sc := cfg.AuctionCom; sc.Enabled {
		set.Sources = append(set.Sources, NewAuctionCom(auctioncom.NewClient(sc.Key, auctionComOptions(sc)...), defaultMemoTTL))
	}
	if sc := cfg.Census; sc.Enabled {
		set.Neighborhood = census.NewClient(sc.Key, censusOptions(sc)...)
	}

	log.Info("sources configured",
		zap.Strings("sources", set.Names()),
		zap.Int("valuations", len(set.Valuations)),
		zap.Int("foreclosures", len(set.Foreclosures)),
		zap.Bool("neighborhood", set.Neighborhood != nil),
	)
	return set
}

// unavailable converts a missing key or rejected credentials into
// pipeline.ErrUnavailable. Other errors pass through.
func unavailable(name string, err error, noKey error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, noKey) || resilience.IsAuthFailure(err) {
		return eris.Wrapf(pipeline.ErrUnavailable, "%s: %v", name, err)
	}
	return err
}

func timeout(sc config.SourceConfig) time.Duration {
	if sc.TimeoutSecs <= 0 {
		return 0
	}
	return time.Duration(sc.TimeoutSecs) * time.Second
}

func attomOptions(sc config.SourceConfig) []attom.Option {
	opts := []attom.Option{
		attom.WithLimiter(resilience.LimiterFor(model.SourceATTOMSale, sc)),
		attom.WithRetry(resilience.FromSourceConfig("attom", sc)),
	}
	if sc.BaseURL != "" {
		opts = append(opts, attom.WithBaseURL(sc.BaseURL))
	}
	if d := timeout(sc); d > 0 {
		opts = append(opts, attom.WithTimeout(d))
	}
	return opts
}

func batchDataOptions(sc config.SourceConfig) []batchdata.Option {
	opts := []batchdata.Option{
		batchdata.WithLimiter(resilience.LimiterFor(model.SourceBatchData, sc)),
		batchdata.WithRetry(resilience.FromSourceConfig(model.SourceBatchData, sc)),
	}
	if sc.BaseURL != "" {
		opts = append(opts, batchdata.WithBaseURL(sc.BaseURL))
	}
	if d := timeout(sc); d > 0 {
		opts = append(opts, batchdata.WithTimeout(d))
	}
	return opts
}

func censusOptions(sc config.SourceConfig) []census.Option {
	opts := []census.Option{
		census.WithLimiter(resilience.LimiterFor("census", sc)),
		census.WithRetry(resilience.FromSourceConfig("census", sc)),
	}
	if sc.BaseURL != "" {
		opts = append(opts, census.WithBaseURL(sc.BaseURL))
	}
	if d := timeout(sc); d > 0 {
		opts = append(opts, census.WithTimeout(d))
	}
	return opts
}

func redfinOptions(sc config.SourceConfig) []redfin.Option {
	opts := []redfin.Option{
		redfin.WithLimiter(resilience.LimiterFor(model.SourceRedfin, sc)),
		redfin.WithRetry(resilience.FromSourceConfig(model.SourceRedfin, sc)),
	}
	if sc.BaseURL != "" {
		opts = append(opts, redfin.WithBaseURL(sc.BaseURL))
	}
	if d := timeout(sc); d > 0 {
		opts = append(opts, redfin.WithTimeout(d))
	}
	return opts
}

func sheriffOptions(sc config.SourceConfig) []sheriff.Option {
	opts := []sheriff.Option{
		sheriff.WithLimiter(resilience.LimiterFor(model.SourceSheriff, sc)),
		sheriff.WithRetry(resilience.FromSourceConfig(model.SourceSheriff, sc)),
	}
	if sc.BaseURL != "" {
		opts = append(opts, sheriff.WithBaseURL(sc.BaseURL))
	}
	if d := timeout(sc); d > 0 {
		opts = append(opts, sheriff.WithTimeout(d))
	}
	return opts
}

func auctionComOptions(sc config.SourceConfig) []auctioncom.Option {
	opts := []auctioncom.Option{
		auctioncom.WithLimiter(resilience.LimiterFor(model.SourceAuctionCom, sc)),
		auctioncom.WithRetry(resilience.FromSourceConfig(model.SourceAuctionCom, sc)),
	}
	if sc.BaseURL != "" {
		opts = append(opts, auctioncom.WithBaseURL(sc.BaseURL))
	}
	if sc.DatasetID != "" {
		opts = append(opts, auctioncom.WithDataset(sc.DatasetID))
	}
	if d := timeout(sc); d > 0 {
		opts = append(opts, auctioncom.WithTimeout(d))
	}
	return opts
}
