// Package metrics holds the Prometheus collectors for the service. Each
// Metrics value owns its registry so tests and multiple servers never collide
// on the global default registerer.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "solidstate"

// Metrics is the set of service collectors.
type Metrics struct {
	registry *prometheus.Registry

	// computeRequests counts operations by op and status (ok | invalid_input | degenerate_lattice | error)
	computeRequests *prometheus.CounterVec

	// computeDuration tracks solver latency, cache hits excluded
	computeDuration *prometheus.HistogramVec

	// cacheEvents counts response-cache lookups by op and result (hit | miss | error | stored)
	cacheEvents *prometheus.CounterVec

	// httpRequests counts HTTP requests by chi route pattern and status code
	httpRequests *prometheus.CounterVec
}

// New registers every collector on a fresh registry, plus the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		computeRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compute_requests_total",
			Help:      "Total compute operations by op and status",
		}, []string{"op", "status"}),
		computeDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compute_duration_seconds",
			Help:      "Compute duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 16), // 0.1ms to ~3.3s
		}, []string{"op"}),
		cacheEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_events_total",
			Help:      "Response cache events by op and result",
		}, []string{"op", "result"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code",
		}, []string{"route", "code"}),
	}
}

// ObserveCompute records one finished computation.
func (m *Metrics) ObserveCompute(op, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.computeRequests.WithLabelValues(op, status).Inc()
	if status == "ok" {
		m.computeDuration.WithLabelValues(op).Observe(d.Seconds())
	}
}

// CacheEvent records a cache lookup or store result.
func (m *Metrics) CacheEvent(op, result string) {
	if m == nil {
		return
	}
	m.cacheEvents.WithLabelValues(op, result).Inc()
}

// HTTPRequest records a served request.
func (m *Metrics) HTTPRequest(route, code string) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, code).Inc()
}

// Registry exposes the underlying registry (tests gather from it).
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
