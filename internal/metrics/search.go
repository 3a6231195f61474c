package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every collector exported by the service.
const Namespace = "cmssearch"

// Search and indexing Prometheus metrics.
var (
	SearchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "search_total",
			Help:      "Total number of search requests",
		},
		[]string{"mode", "outcome"}, // outcome: ok / empty / invalid / error / cached
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "search_duration_seconds",
			Help:      "Search execution time in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"mode"},
	)

	IndexOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "index_operations_total",
			Help:      "Index upserts and removals",
		},
		[]string{"operation", "status"}, // status: changed / unchanged / failed
	)

	ReindexDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "reindex_duration_seconds",
			Help:      "Full reindex duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300},
		},
	)

	AnalyticsDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "analytics_dropped_total",
			Help:      "Search log records dropped because the buffer was full",
		},
	)

	CacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "search_cache_total",
			Help:      "Search result cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)
)

var registerOnce sync.Once

// RegisterSearchMetrics registers the search collectors with the default registry. Safe to call more than once.
func RegisterSearchMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(SearchTotal)
		prometheus.MustRegister(SearchDuration)
		prometheus.MustRegister(IndexOperationsTotal)
		prometheus.MustRegister(ReindexDuration)
		prometheus.MustRegister(AnalyticsDroppedTotal)
		prometheus.MustRegister(CacheTotal)
	})
}
