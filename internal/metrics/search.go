package metrics

import "github.com/prometheus/client_golang/prometheus"

// Namespace prefixes every promptdex metric.
const Namespace = "promptdex"

// Search Prometheus metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "search_requests_total",
			Help:      "Search requests by mode and outcome",
		},
		[]string{"mode", "outcome"}, // outcome: ok / degraded / error
	)

	SearchBranchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "search_branch_duration_seconds",
			Help:      "Retrieval branch latency in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"source", "status"},
	)

	SearchDegradedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "search_degraded_total",
			Help:      "Hybrid searches answered without one of their sources",
		},
		[]string{"failed_source"},
	)

	HistoryWriteFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "history_write_failures_total",
			Help:      "Search history writes that failed or were dropped",
		},
	)

	SuggestFallbackTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "suggest_fallback_total",
			Help:      "Suggest calls served by the substring title fallback",
		},
	)
)

var searchMetricsRegistered bool

// RegisterSearchMetrics registers Prometheus search metrics. Must be called once from main.
func RegisterSearchMetrics() {
	if searchMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchRequestsTotal)
	prometheus.MustRegister(SearchBranchDuration)
	prometheus.MustRegister(SearchDegradedTotal)
	prometheus.MustRegister(HistoryWriteFailuresTotal)
	prometheus.MustRegister(SuggestFallbackTotal)
	searchMetricsRegistered = true
}
