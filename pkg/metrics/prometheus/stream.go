package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vexfs/vexfs/pkg/metrics"
)

type streamMetrics struct {
	subscribes   *prometheus.CounterVec
	unsubscribes *prometheus.CounterVec
	delivered    *prometheus.CounterVec
	dropped      *prometheus.CounterVec
}

// NewStreamMetrics returns a Prometheus-backed StreamMetrics, or nil
// if the registry has not been initialized.
func NewStreamMetrics() metrics.StreamMetrics {
	if !metrics.IsEnabled() {
		return nil
	}
	reg := metrics.GetRegistry()
	return &streamMetrics{
		subscribes: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "vexfs_stream_subscribes_total",
			Help: "Subscriptions created by agent.",
		}, []string{"agent"}),
		unsubscribes: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "vexfs_stream_unsubscribes_total",
			Help: "Subscriptions ended by agent.",
		}, []string{"agent"}),
		delivered: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "vexfs_stream_events_delivered_total",
			Help: "Events delivered to a subscriber buffer by agent.",
		}, []string{"agent"}),
		dropped: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "vexfs_stream_events_dropped_total",
			Help: "Events dropped because a subscriber buffer was full, by agent.",
		}, []string{"agent"}),
	}
}

func (m *streamMetrics) RecordSubscribe(agentID string) {
	if m == nil {
		return
	}
	m.subscribes.WithLabelValues(agentID).Inc()
}

func (m *streamMetrics) RecordUnsubscribe(agentID string) {
	if m == nil {
		return
	}
	m.unsubscribes.WithLabelValues(agentID).Inc()
}

func (m *streamMetrics) RecordEventDelivered(agentID string) {
	if m == nil {
		return
	}
	m.delivered.WithLabelValues(agentID).Inc()
}

func (m *streamMetrics) RecordEventDropped(agentID string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(agentID).Inc()
}
