package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	RateRequestsTotal       prometheus.Counter
	ConversionRequestsTotal prometheus.Counter
	HistoricalRequestsTotal prometheus.Counter

	UpstreamFetchesTotal  *prometheus.CounterVec
	UpstreamFetchDuration prometheus.Histogram
	CacheLookupsTotal     *prometheus.CounterVec
	PolicyDecisionsTotal  *prometheus.CounterVec
	PolicyDurationSeconds prometheus.Gauge
}

// NewMetrics registers every collector with reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"path", "method", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"path", "method"},
		),

		RateRequestsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "rate_requests_total",
				Help: "Total number of exchange rate requests",
			},
		),

		ConversionRequestsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "conversion_requests_total",
				Help: "Total number of currency conversion requests",
			},
		),

		HistoricalRequestsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "historical_requests_total",
				Help: "Total number of historical exchange rate requests",
			},
		),

		UpstreamFetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cnb_upstream_fetches_total",
				Help: "Upstream CNB fetches by outcome",
			},
			[]string{"outcome"},
		),

		UpstreamFetchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "cnb_upstream_fetch_duration_seconds",
				Help:    "Upstream CNB fetch duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),

		CacheLookupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rate_cache_lookups_total",
				Help: "Rate cache lookups by result (fresh, stale, miss)",
			},
			[]string{"result"},
		),

		PolicyDecisionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_policy_decisions_total",
				Help: "Cache policy decisions by publication band",
			},
			[]string{"band"},
		),

		PolicyDurationSeconds: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "cache_policy_duration_seconds",
				Help: "Cache duration chosen by the most recent policy decision",
			},
		),
	}
}
