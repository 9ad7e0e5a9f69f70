package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vexfs/vexfs/pkg/metrics"
)

type searchMetrics struct {
	duration    prometheus.Histogram
	resultCount prometheus.Histogram
	poolHits    prometheus.Counter
	poolMisses  prometheus.Counter
}

// NewSearchMetrics returns a Prometheus-backed SearchMetrics, or nil
// if the registry has not been initialized.
func NewSearchMetrics() metrics.SearchMetrics {
	if !metrics.IsEnabled() {
		return nil
	}
	reg := metrics.GetRegistry()
	return &searchMetrics{
		duration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "vexfs_search_duration_seconds",
			Help:    "Duration of vector search dispatch commands.",
			Buckets: prometheus.DefBuckets,
		}),
		resultCount: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "vexfs_search_result_count",
			Help:    "Number of results returned per search.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 500, 1000},
		}),
		poolHits: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "vexfs_search_buffer_pool_hits_total",
			Help: "Buffer pool reuse hits during batch distance computation.",
		}),
		poolMisses: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "vexfs_search_buffer_pool_misses_total",
			Help: "Buffer pool allocations during batch distance computation.",
		}),
	}
}

func (m *searchMetrics) RecordSearch(duration time.Duration, resultCount int) {
	if m == nil {
		return
	}
	m.duration.Observe(duration.Seconds())
	m.resultCount.Observe(float64(resultCount))
}

func (m *searchMetrics) RecordPoolStats(hits, misses int) {
	if m == nil {
		return
	}
	m.poolHits.Add(float64(hits))
	m.poolMisses.Add(float64(misses))
}
