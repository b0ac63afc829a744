// Package telemetry exposes pipeline counters on a private Prometheus
// registry.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
)

// Metrics holds the pipeline collectors.
type Metrics struct {
	registry *prometheus.Registry

	recordsFetched     *prometheus.CounterVec
	sourceErrors       *prometheus.CounterVec
	recordsRejected    *prometheus.CounterVec
	propertiesEmitted  prometheus.Counter
	breakerTrips       *prometheus.CounterVec
	enrichmentCalls    *prometheus.CounterVec
	runs               *prometheus.CounterVec
	lastRunProperties  prometheus.Gauge
	lastRunRecommended prometheus.Gauge
}

// New creates the collectors and registers them on a fresh registry.
func New() (*Metrics, error) {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.recordsFetched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auction_records_fetched_total",
			Help: "Raw records returned by each source",
		},
		[]string{"source"},
	)
	m.sourceErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auction_source_errors_total",
			Help: "Failed source calls",
		},
		[]string{"source"},
	)
	m.recordsRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auction_records_rejected_total",
			Help: "Records dropped before output, by reason",
		},
		[]string{"reason"},
	)
	m.propertiesEmitted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "auction_properties_emitted_total",
			Help: "Properties returned by completed runs",
		},
	)
	m.breakerTrips = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auction_breaker_trips_total",
			Help: "Circuit breaker transitions to open",
		},
		[]string{"source"},
	)
	m.enrichmentCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auction_enrichment_calls_total",
			Help: "Enrichment calls by stage and outcome",
		},
		[]string{"stage", "outcome"},
	)
	m.runs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auction_runs_total",
			Help: "Pipeline runs by final status",
		},
		[]string{"status"},
	)
	m.lastRunProperties = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "auction_last_run_properties",
			Help: "Properties returned by the most recent run",
		},
	)
	m.lastRunRecommended = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "auction_last_run_recommended",
			Help: "Recommended properties in the most recent run",
		},
	)

	for _, c := range []prometheus.Collector{
		m.recordsFetched, m.sourceErrors, m.recordsRejected, m.propertiesEmitted,
		m.breakerTrips, m.enrichmentCalls, m.runs, m.lastRunProperties, m.lastRunRecommended,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := m.registry.Register(c); err != nil {
			return nil, eris.Wrap(err, "telemetry: register collector")
		}
	}
	return m, nil
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}

// RecordsFetched adds n raw records for source.
func (m *Metrics) RecordsFetched(source string, n int) {
	m.recordsFetched.WithLabelValues(source).Add(float64(n))
}

// SourceError counts one failed call to source.
func (m *Metrics) SourceError(source string) {
	m.sourceErrors.WithLabelValues(source).Inc()
}

// RecordRejected counts one dropped record.
func (m *Metrics) RecordRejected(reason string) {
	m.recordsRejected.WithLabelValues(reason).Inc()
}

// BreakerTripped counts one breaker opening.
func (m *Metrics) BreakerTripped(source string) {
	m.breakerTrips.WithLabelValues(source).Inc()
}

// EnrichmentCall counts one enrichment outcome.
func (m *Metrics) EnrichmentCall(stage, outcome string) {
	m.enrichmentCalls.WithLabelValues(stage, outcome).Inc()
}

// RunFinished records a run's final status and output size.
func (m *Metrics) RunFinished(status string, properties, recommended int) {
	m.runs.WithLabelValues(status).Inc()
	if status != "complete" {
		return
	}
	m.propertiesEmitted.Add(float64(properties))
	m.lastRunProperties.Set(float64(properties))
	m.lastRunRecommended.Set(float64(recommended))
}
