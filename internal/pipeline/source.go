// Package pipeline runs one aggregation pass: sample market units, query
// every source, dedupe and build properties, score, filter, allocate and
// enrich.
package pipeline

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/auction-cli/internal/enrich"
	"github.com/sells-group/auction-cli/internal/model"
)

// Kind classifies a source.
type Kind string

const (
	// KindAPI is a keyed HTTP API.
	KindAPI Kind = "api"
	// KindScraper is a public page or export; calls run behind a breaker.
	KindScraper Kind = "scraper"
)

// ErrUnavailable marks a source that cannot be used for the rest of the run,
// such as one with a missing or rejected key.
var ErrUnavailable = eris.New("pipeline: source unavailable")

// Query is one search request: a sampled unit plus the price bounds.
type Query struct {
	City     string
	State    string // full state name
	Zip      string
	Region   string
	MinPrice float64
	MaxPrice float64
}

// Source searches one listing provider. Name doubles as the record source
// tag passed to the builder.
type Source interface {
	Name() string
	Kind() Kind
	Search(ctx context.Context, q Query) ([]model.RawRecord, error)
}

// Enricher runs post-selection enrichment.
type Enricher interface {
	Enrich(ctx context.Context, props []*model.Property) *enrich.Report
}

// Recorder receives pipeline counters.
type Recorder interface {
	RecordsFetched(source string, n int)
	SourceError(source string)
	RecordRejected(reason string)
	BreakerTripped(source string)
}

type nopRecorder struct{}

func (nopRecorder) RecordsFetched(string, int) {}
func (nopRecorder) SourceError(string)         {}
func (nopRecorder) RecordRejected(string)      {}
func (nopRecorder) BreakerTripped(string)      {}
