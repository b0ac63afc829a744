package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/auction-cli/internal/config"
	"github.com/sells-group/auction-cli/internal/enrich"
	"github.com/sells-group/auction-cli/internal/metrics"
	"github.com/sells-group/auction-cli/internal/pipeline"
	"github.com/sells-group/auction-cli/internal/region"
	"github.com/sells-group/auction-cli/internal/sources"
	"github.com/sells-group/auction-cli/internal/store"
	"github.com/sells-group/auction-cli/internal/telemetry"
)

// pipelineEnv holds the catalog, sources, counters and pipeline needed by
// the run and serve commands.
type pipelineEnv struct {
	Catalog  *region.Catalog
	Sources  *sources.Set
	Metrics  *telemetry.Metrics
	Pipeline *pipeline.Pipeline
}

// initPipeline builds every enabled source and the pipeline around them.
func initPipeline(c *config.Config, m *telemetry.Metrics) (*pipelineEnv, error) {
	catalog, err := region.LoadCatalog(c.Pipeline.RegionsFile)
	if err != nil {
		return nil, eris.Wrap(err, "load region catalog")
	}

	if m == nil {
		if m, err = telemetry.New(); err != nil {
			return nil, err
		}
	}

	engine := metrics.NewEngine(c.Scoring)
	set := sources.Build(c.Sources)

	orchestrator := enrich.New(c.Enrich, engine,
		enrich.WithValuations(set.Valuations...),
		enrich.WithForeclosures(set.Foreclosures...),
		enrich.WithNeighborhood(set.Neighborhood),
		enrich.WithObserver(m.EnrichmentCall),
	)

	p := pipeline.New(c, catalog, engine,
		pipeline.WithSources(set.Sources...),
		pipeline.WithEnricher(orchestrator),
		pipeline.WithRecorder(m),
	)

	zap.L().Info("pipeline ready",
		zap.Int("catalog_units", catalog.UnitCount()),
		zap.Strings("sources", set.Names()),
	)
	return &pipelineEnv{Catalog: catalog, Sources: set, Metrics: m, Pipeline: p}, nil
}

// initStore opens and migrates the configured store.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	return st, nil
}
