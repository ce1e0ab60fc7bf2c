package lead

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	rowsTotal          *prometheus.CounterVec
	slicesTotal        *prometheus.CounterVec
	continuationFailed prometheus.Counter
	bulkFallbackTotal  prometheus.Counter

	batchLatency prometheus.Histogram
}

var metricsSingleton = sync.OnceValue(func() *metrics {
	return &metrics{
		rowsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lead_import",
			Name:      "rows_total",
			Help:      "Rows handled by the batch importer, by outcome.",
		}, []string{"result"}),
		slicesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lead_import",
			Name:      "slices_total",
			Help:      "Import slices processed, by result.",
		}, []string{"result"}),
		continuationFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "lead_import",
			Name:      "continuation_failed_total",
			Help:      "Continuation tasks that could not be enqueued.",
		}),
		bulkFallbackTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "lead_import",
			Name:      "bulk_fallback_total",
			Help:      "Inner batches whose bulk insert fell back to per-row inserts.",
		}),
		batchLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "lead_import",
			Name:      "batch_duration_seconds",
			Help:      "Latency distribution for one inner batch.",
			Buckets: []float64{
				0.01, 0.02, 0.05,
				0.1, 0.2, 0.5,
				1, 2, 5, 10, 30,
			},
		}),
	}
})

func getMetrics() *metrics {
	return metricsSingleton()
}
