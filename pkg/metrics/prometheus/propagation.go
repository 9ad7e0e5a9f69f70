package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vexfs/vexfs/pkg/metrics"
)

type propagationMetrics struct {
	deliveryDuration *prometheus.HistogramVec
	deliveryTotal    *prometheus.CounterVec
	circuitOpen      *prometheus.GaugeVec
	queueDepth       *prometheus.GaugeVec
}

// NewPropagationMetrics returns a Prometheus-backed
// PropagationMetrics, or nil if the registry has not been
// initialized.
func NewPropagationMetrics() metrics.PropagationMetrics {
	if !metrics.IsEnabled() {
		return nil
	}
	reg := metrics.GetRegistry()
	return &propagationMetrics{
		deliveryDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vexfs_propagation_delivery_duration_seconds",
			Help:    "Duration of event delivery by boundary.",
			Buckets: prometheus.DefBuckets,
		}, []string{"boundary"}),
		deliveryTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "vexfs_propagation_delivery_total",
			Help: "Delivery attempts by boundary and outcome.",
		}, []string{"boundary", "outcome"}),
		circuitOpen: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "vexfs_propagation_circuit_open",
			Help: "1 if the boundary's circuit breaker is open.",
		}, []string{"boundary"}),
		queueDepth: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "vexfs_propagation_queue_depth",
			Help: "Pending events per boundary queue.",
		}, []string{"boundary"}),
	}
}

func (m *propagationMetrics) RecordDelivery(boundary string, duration time.Duration, ok bool) {
	if m == nil {
		return
	}
	m.deliveryDuration.WithLabelValues(boundary).Observe(duration.Seconds())
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	m.deliveryTotal.WithLabelValues(boundary, outcome).Inc()
}

func (m *propagationMetrics) SetCircuitState(boundary string, open bool) {
	if m == nil {
		return
	}
	v := 0.0
	if open {
		v = 1.0
	}
	m.circuitOpen.WithLabelValues(boundary).Set(v)
}

func (m *propagationMetrics) SetQueueDepth(boundary string, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(boundary).Set(float64(depth))
}
