// Package metrics exposes Prometheus counters and histograms for the API.
//
// Metrics are registered on a dedicated registry (not the global default) so
// tests can build as many instances as they like. Every method is safe on a
// nil *Metrics, which is how metrics are disabled.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ontology_api"

type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	submissionsCreated   prometheus.Counter
	submissionsProcessed *prometheus.CounterVec
	mappingsCreated      prometheus.Counter
	mappingsDeleted      prometheus.Counter
	statsCacheLookups    *prometheus.CounterVec
}

// New registers every collector on a fresh registry, including the Go runtime
// and process collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code",
		}, []string{"method", "route", "status"}),

		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),

		submissionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_created_total",
			Help:      "Ontology submissions created",
		}),

		submissionsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_processed_total",
			Help:      "Ontology submissions processed, by resulting status",
		}, []string{"status"}),

		mappingsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mappings_created_total",
			Help:      "Mappings created through the API",
		}),

		mappingsDeleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mappings_deleted_total",
			Help:      "Mappings deleted through the API",
		}),

		statsCacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stats_cache_lookups_total",
			Help:      "Mapping statistics cache lookups, by result (hit, miss)",
		}, []string{"result"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) SubmissionCreated() {
	if m == nil {
		return
	}
	m.submissionsCreated.Inc()
}

func (m *Metrics) SubmissionProcessed(status string) {
	if m == nil {
		return
	}
	m.submissionsProcessed.WithLabelValues(status).Inc()
}

func (m *Metrics) MappingCreated() {
	if m == nil {
		return
	}
	m.mappingsCreated.Inc()
}

func (m *Metrics) MappingDeleted() {
	if m == nil {
		return
	}
	m.mappingsDeleted.Inc()
}

func (m *Metrics) StatsCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.statsCacheLookups.WithLabelValues(result).Inc()
}
