package metrics

import "time"

// DurabilityMetrics observes the durability manager's batching and
// sync behavior. Pass nil to disable.
type DurabilityMetrics interface {
	RecordFlush(policy string, batchSize int, duration time.Duration)
	RecordCheckpoint(durationNs int64)
	SetQueueDepth(priority string, depth int)
}

// TransactionMetrics observes transaction lifecycle outcomes.
type TransactionMetrics interface {
	RecordCommit(duration time.Duration)
	RecordAbort(reason string)
	RecordConflict()
	SetActiveCount(n int)
}

// SearchMetrics observes the vector search dispatcher.
type SearchMetrics interface {
	RecordSearch(duration time.Duration, resultCount int)
	RecordPoolStats(hits, misses int)
}

// PropagationMetrics observes cross-boundary delivery.
type PropagationMetrics interface {
	RecordDelivery(boundary string, duration time.Duration, ok bool)
	SetCircuitState(boundary string, open bool)
	SetQueueDepth(boundary string, depth int)
}

// StreamMetrics observes subscriber stream activity.
type StreamMetrics interface {
	RecordSubscribe(agentID string)
	RecordUnsubscribe(agentID string)
	RecordEventDelivered(agentID string)
	RecordEventDropped(agentID string)
}
