package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vexfs/vexfs/pkg/metrics"
)

type transactionMetrics struct {
	commitDuration prometheus.Histogram
	aborts         *prometheus.CounterVec
	conflicts      prometheus.Counter
	active         prometheus.Gauge
}

// NewTransactionMetrics returns a Prometheus-backed
// TransactionMetrics, or nil if the registry has not been
// initialized.
func NewTransactionMetrics() metrics.TransactionMetrics {
	if !metrics.IsEnabled() {
		return nil
	}
	reg := metrics.GetRegistry()
	return &transactionMetrics{
		commitDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "vexfs_txn_commit_duration_seconds",
			Help:    "Duration of transaction commits.",
			Buckets: prometheus.DefBuckets,
		}),
		aborts: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "vexfs_txn_aborts_total",
			Help: "Transaction aborts by reason.",
		}, []string{"reason"}),
		conflicts: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "vexfs_txn_conflicts_total",
			Help: "MVCC write-write conflicts detected.",
		}),
		active: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "vexfs_txn_active",
			Help: "Currently active transactions.",
		}),
	}
}

func (m *transactionMetrics) RecordCommit(duration time.Duration) {
	if m == nil {
		return
	}
	m.commitDuration.Observe(duration.Seconds())
}

func (m *transactionMetrics) RecordAbort(reason string) {
	if m == nil {
		return
	}
	m.aborts.WithLabelValues(reason).Inc()
}

func (m *transactionMetrics) RecordConflict() {
	if m == nil {
		return
	}
	m.conflicts.Inc()
}

func (m *transactionMetrics) SetActiveCount(n int) {
	if m == nil {
		return
	}
	m.active.Set(float64(n))
}
