package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric label values shared across registrations.
const (
	// labelHandler is the "handler" label value used to partition metrics by
	// the logical endpoint name rather than the raw URL path.
	labelHandler = "handler"
)

// Metrics holds all Prometheus metrics owned by the server. One instance is
// created per process; its Observe methods are handed to the recommender,
// rankers and trend synthesizer so degraded paths are counted where they
// happen.
type Metrics struct {
	// recommendationsTotal counts completed recommendations, partitioned by
	// outcome: "ok" or "degraded".
	recommendationsTotal *prometheus.CounterVec

	// fallbacksTotal counts lexical fallbacks taken by the rankers,
	// partitioned by corpus: "produce" or "knowledge".
	fallbacksTotal *prometheus.CounterVec

	// trendSeriesTotal counts trend series served, partitioned by path:
	// "ai" or "synthesized".
	trendSeriesTotal *prometheus.CounterVec

	// rateLimitedTotal counts /api requests rejected by the rate limiter.
	rateLimitedTotal prometheus.Counter

	// httpRequestsTotal counts all HTTP requests handled by the mux,
	// partitioned by method, handler, and status code.
	httpRequestsTotal *prometheus.CounterVec

	// httpDurationSeconds records the latency of all HTTP requests.
	httpDurationSeconds *prometheus.HistogramVec
}

// NewMetrics registers all server metrics against reg and returns the
// populated Metrics. promauto.With(reg) registers into the provided registry
// rather than the global default, so tests can pass a fresh
// prometheus.Registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		recommendationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "farmtable",
			Subsystem: "recommend",
			Name:      "requests_total",
			Help:      "Total number of recommendations completed, partitioned by outcome.",
		}, []string{"outcome"}),

		fallbacksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "farmtable",
			Subsystem: "rag",
			Name:      "lexical_fallbacks_total",
			Help:      "Total number of rankings served by the lexical fallback because the query could not be embedded.",
		}, []string{"corpus"}),

		trendSeriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "farmtable",
			Subsystem: "market",
			Name:      "trend_series_total",
			Help:      "Total number of trend series served, partitioned by whether a model or the local synthesizer produced the trend.",
		}, []string{"path"}),

		rateLimitedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "farmtable",
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Total number of API requests rejected by the per-client rate limiter.",
		}),

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "farmtable",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled by the server, partitioned by method, handler, and status code.",
		}, []string{"method", labelHandler, "code"}),

		httpDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "farmtable",
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "Latency of HTTP requests handled by the server.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"method", labelHandler}),
	}
}

// ObserveRecommendation records a recommendation outcome. It matches
// agent.Config.Observe.
func (m *Metrics) ObserveRecommendation(outcome string) {
	m.recommendationsTotal.WithLabelValues(outcome).Inc()
}

// ObserveFallback records a lexical fallback for corpus. It matches the rag
// fallback observer options.
func (m *Metrics) ObserveFallback(corpus string) {
	m.fallbacksTotal.WithLabelValues(corpus).Inc()
}

// ObserveTrendPath records which path produced a trend series. It matches
// market.WithPathObserver.
func (m *Metrics) ObserveTrendPath(path string) {
	m.trendSeriesTotal.WithLabelValues(path).Inc()
}

// ObserveRateLimited records one request rejected by the rate limiter.
func (m *Metrics) ObserveRateLimited() {
	m.rateLimitedTotal.Inc()
}
