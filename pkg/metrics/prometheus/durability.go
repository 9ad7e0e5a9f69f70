// Package prometheus implements pkg/metrics's interfaces on top of
// client_golang, grounded on dittofs's pkg/metrics/prometheus
// (badger.go/cache.go/s3.go): nil-receiver methods, promauto
// registration against the shared registry, and constructors that
// return nil outright when metrics.IsEnabled() is false.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vexfs/vexfs/pkg/metrics"
)

type durabilityMetrics struct {
	flushDuration   *prometheus.HistogramVec
	flushBatchSize  *prometheus.HistogramVec
	checkpointNs    prometheus.Histogram
	queueDepth      *prometheus.GaugeVec
}

// NewDurabilityMetrics returns a Prometheus-backed DurabilityMetrics,
// or nil if the registry has not been initialized.
func NewDurabilityMetrics() metrics.DurabilityMetrics {
	if !metrics.IsEnabled() {
		return nil
	}
	reg := metrics.GetRegistry()
	return &durabilityMetrics{
		flushDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vexfs_durability_flush_duration_seconds",
			Help:    "Duration of durability batch flushes by policy.",
			Buckets: prometheus.DefBuckets,
		}, []string{"policy"}),
		flushBatchSize: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vexfs_durability_flush_batch_size",
			Help:    "Number of requests drained per flush by policy.",
			Buckets: []float64{1, 4, 16, 64, 256, 1024},
		}, []string{"policy"}),
		checkpointNs: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "vexfs_durability_checkpoint_duration_seconds",
			Help:    "Duration of durability checkpoints.",
			Buckets: prometheus.DefBuckets,
		}),
		queueDepth: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "vexfs_durability_queue_depth",
			Help: "Pending durability requests by priority.",
		}, []string{"priority"}),
	}
}

func (m *durabilityMetrics) RecordFlush(policy string, batchSize int, duration time.Duration) {
	if m == nil {
		return
	}
	m.flushDuration.WithLabelValues(policy).Observe(duration.Seconds())
	m.flushBatchSize.WithLabelValues(policy).Observe(float64(batchSize))
}

func (m *durabilityMetrics) RecordCheckpoint(durationNs int64) {
	if m == nil {
		return
	}
	m.checkpointNs.Observe(time.Duration(durationNs).Seconds())
}

func (m *durabilityMetrics) SetQueueDepth(priority string, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(priority).Set(float64(depth))
}
