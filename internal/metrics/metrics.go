// Package metrics exposes Prometheus collectors for bridge queries and the
// HTTP surface.
package metrics

import (
	"net/http"
	"time"

	"github.com/leapstack-labs/wqlbridge/pkg/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors. It implements bridge.Observer.
type Metrics struct {
	registry *prometheus.Registry

	// QueriesTotal counts bridge calls by namespace and outcome.
	QueriesTotal *prometheus.CounterVec
	// QueryDuration is the latency of bridge calls.
	QueryDuration *prometheus.HistogramVec
	// RecordsTotal counts records returned by namespace.
	RecordsTotal *prometheus.CounterVec
	// RequestTotal counts HTTP requests by route and status.
	RequestTotal *prometheus.CounterVec
}

// New registers the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		QueriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wqlbridge_queries_total",
				Help: "Total number of bridge queries",
			},
			[]string{"namespace", "outcome"},
		),
		QueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wqlbridge_query_duration_seconds",
				Help:    "Bridge query latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"namespace"},
		),
		RecordsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wqlbridge_records_total",
				Help: "Total number of records returned",
			},
			[]string{"namespace"},
		),
		RequestTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wqlbridge_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
	}
}

// Outcome is the label value for a call that ended with kind.
func Outcome(kind core.ErrorKind) string {
	if kind == 0 {
		return "ok"
	}
	return kind.String()
}

// ObserveQuery records one bridge call. Calls rejected before a namespace
// was resolved are labelled with an empty namespace.
func (m *Metrics) ObserveQuery(ns core.Namespace, kind core.ErrorKind, records int, elapsed time.Duration) {
	m.QueriesTotal.WithLabelValues(ns.String(), Outcome(kind)).Inc()
	if ns == "" {
		return
	}
	m.QueryDuration.WithLabelValues(ns.String()).Observe(elapsed.Seconds())
	if records > 0 {
		m.RecordsTotal.WithLabelValues(ns.String()).Add(float64(records))
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Gatherer exposes the registry for tests and embedding.
func (m *Metrics) Gatherer() prometheus.Gatherer { return m.registry }
