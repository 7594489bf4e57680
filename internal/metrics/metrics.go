// Package metrics exposes Prometheus instrumentation for the feed engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the engine's Prometheus collectors. A fresh registry is
// used so tests can construct isolated instances.
type Metrics struct {
	registry *prometheus.Registry

	FetchDuration   *prometheus.HistogramVec
	FetchErrors     *prometheus.CounterVec
	AggregateSkips  *prometheus.CounterVec
	GateDecisions   *prometheus.CounterVec
	Publishes       *prometheus.CounterVec
	PublishFailures *prometheus.CounterVec
	Resyncs         prometheus.Counter
	LastRound       *prometheus.GaugeVec
	LastPrice       *prometheus.GaugeVec

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// New constructs and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "neofeeds",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of source fetches.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "neofeeds",
			Name:      "fetch_errors_total",
			Help:      "Source fetch failures.",
		}, []string{"source"}),
		AggregateSkips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "neofeeds",
			Name:      "aggregate_skips_total",
			Help:      "Ticks skipped because quorum was not met.",
		}, []string{"symbol"}),
		GateDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "neofeeds",
			Name:      "gate_decisions_total",
			Help:      "Publish gate decisions by outcome.",
		}, []string{"symbol", "outcome"}),
		Publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "neofeeds",
			Name:      "publishes_total",
			Help:      "Confirmed on-chain publishes.",
		}, []string{"symbol"}),
		PublishFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "neofeeds",
			Name:      "publish_failures_total",
			Help:      "Publish attempts that failed after resync and retry.",
		}, []string{"symbol"}),
		Resyncs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "neofeeds",
			Name:      "ledger_resyncs_total",
			Help:      "Round resynchronizations triggered by publish failures.",
		}),
		LastRound: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "neofeeds",
			Name:      "last_published_round",
			Help:      "Last successfully published round id per symbol.",
		}, []string{"symbol"}),
		LastPrice: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "neofeeds",
			Name:      "last_published_price",
			Help:      "Last successfully published fixed-point price per symbol.",
		}, []string{"symbol"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "neofeeds",
			Name:      "http_requests_total",
			Help:      "Control-plane HTTP requests.",
		}, []string{"method", "path", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "neofeeds",
			Name:      "http_request_duration_seconds",
			Help:      "Control-plane HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}

	m.registry.MustRegister(
		m.FetchDuration,
		m.FetchErrors,
		m.AggregateSkips,
		m.GateDecisions,
		m.Publishes,
		m.PublishFailures,
		m.Resyncs,
		m.LastRound,
		m.LastPrice,
		m.HTTPRequests,
		m.HTTPDuration,
	)
	return m
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
