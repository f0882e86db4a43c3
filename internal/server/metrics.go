package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus instruments for the API server. Each
// server owns its registry so tests can build servers independently.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight *prometheus.GaugeVec
	ResolveDuration  prometheus.Histogram
}

// NewMetrics creates the metric set on a fresh registry, optionally
// wiring cache occupancy and hit counters from statsFn.
func NewMetrics(statsFn func() (entries, hits, misses float64)) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		registry: reg,
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solar_http_requests_total",
				Help: "Total HTTP requests processed by endpoint, method, and status code",
			},
			[]string{"endpoint", "method", "status_code"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solar_http_request_duration_seconds",
				Help:    "HTTP request latency distribution in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"endpoint", "method"},
		),
		RequestsInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "solar_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
			[]string{"endpoint"},
		),
		ResolveDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "solar_resolve_duration_seconds",
				Help:    "End-to-end airport resolution latency in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
			},
		),
	}

	if statsFn != nil {
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "solar_result_cache_entries",
			Help: "Entries currently held by the in-memory result cache",
		}, func() float64 { e, _, _ := statsFn(); return e })
		factory.NewCounterFunc(prometheus.CounterOpts{
			Name: "solar_result_cache_hits_total",
			Help: "Result cache hits",
		}, func() float64 { _, h, _ := statsFn(); return h })
		factory.NewCounterFunc(prometheus.CounterOpts{
			Name: "solar_result_cache_misses_total",
			Help: "Result cache misses",
		}, func() float64 { _, _, miss := statsFn(); return miss })
	}

	return m
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
