// Package metrics provides Prometheus metrics for codehint
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for one session. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	// Request building
	RequestsTotal *prometheus.CounterVec
	RequestFiles  prometheus.Histogram

	// Transport
	TransportCallsTotal   *prometheus.CounterVec
	TransportCallDuration *prometheus.HistogramVec
	StaleResponsesTotal   prometheus.Counter

	// Edits and debounced syncs
	EditsTotal prometheus.Counter
	SyncsTotal *prometheus.CounterVec

	// File cache
	CacheLookupsTotal *prometheus.CounterVec
	FetchesTotal      *prometheus.CounterVec
	CacheEntries      prometheus.Gauge

	DocumentsTracked prometheus.Gauge
}

// NewMetrics creates all metrics on a fresh registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{Registry: reg}

	m.RequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codehint_requests_total",
			Help: "Requests built, by active-document payload kind",
		},
		[]string{"payload"},
	)

	m.RequestFiles = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "codehint_request_files",
			Help:    "Number of file entries carried per request",
			Buckets: []float64{0, 1, 2, 4, 8, 16},
		},
	)

	m.TransportCallsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codehint_transport_calls_total",
			Help: "Engine calls by transport and outcome",
		},
		[]string{"transport", "outcome"},
	)

	m.TransportCallDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "codehint_transport_call_duration_seconds",
			Help:    "Duration of engine calls in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"transport"},
	)

	m.StaleResponsesTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "codehint_stale_responses_total",
			Help: "Responses that arrived after their document changed",
		},
	)

	m.EditsTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "codehint_edits_total",
			Help: "Edit events merged into dirty ranges",
		},
	)

	m.SyncsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codehint_debounced_syncs_total",
			Help: "Debounced large-document syncs by outcome",
		},
		[]string{"outcome"},
	)

	m.CacheLookupsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codehint_filecache_lookups_total",
			Help: "File cache lookups by result",
		},
		[]string{"result"},
	)

	m.FetchesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codehint_filecache_fetches_total",
			Help: "Network fetches issued by the file cache",
		},
		[]string{"status"},
	)

	m.CacheEntries = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "codehint_filecache_entries",
			Help: "Entries currently held by the file cache",
		},
	)

	m.DocumentsTracked = factory.NewGauge(
		prometheus.GaugeOpts{
			Name: "codehint_documents_tracked",
			Help: "Documents currently registered",
		},
	)

	return m
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// RecordRequest records a built request
func (m *Metrics) RecordRequest(payload string, files int) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(payload).Inc()
	m.RequestFiles.Observe(float64(files))
}

// RecordTransportCall records one engine call
func (m *Metrics) RecordTransportCall(transport, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.TransportCallsTotal.WithLabelValues(transport, outcome).Inc()
	m.TransportCallDuration.WithLabelValues(transport).Observe(duration.Seconds())
}

// RecordStale records a response dropped or flagged as stale
func (m *Metrics) RecordStale() {
	if m == nil {
		return
	}
	m.StaleResponsesTotal.Inc()
}

// RecordEdit records one merged edit
func (m *Metrics) RecordEdit() {
	if m == nil {
		return
	}
	m.EditsTotal.Inc()
}

// RecordSync records a debounced sync outcome: fired, skipped or failed
func (m *Metrics) RecordSync(outcome string) {
	if m == nil {
		return
	}
	m.SyncsTotal.WithLabelValues(outcome).Inc()
}

// RecordCacheLookup records a lookup result: hit, miss, shared or error
func (m *Metrics) RecordCacheLookup(result string) {
	if m == nil {
		return
	}
	m.CacheLookupsTotal.WithLabelValues(result).Inc()
}

// RecordFetch records a network fetch by status: ok or error
func (m *Metrics) RecordFetch(status string) {
	if m == nil {
		return
	}
	m.FetchesTotal.WithLabelValues(status).Inc()
}

// SetCacheEntries updates the file cache size gauge
func (m *Metrics) SetCacheEntries(n int) {
	if m == nil {
		return
	}
	m.CacheEntries.Set(float64(n))
}

// SetDocuments updates the tracked-document gauge
func (m *Metrics) SetDocuments(n int) {
	if m == nil {
		return
	}
	m.DocumentsTracked.Set(float64(n))
}
