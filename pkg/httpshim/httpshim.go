// Package httpshim specifies the narrow interface a dialect adapter
// (ChromaDB, Qdrant, the native VexFS API) needs from the core under an
// operation context: list/create/delete collection, upsert, search,
// metrics, health. Per spec.md §6 the dialects themselves are
// collaborators, not core — this package defines only the Core interface
// plus one reference in-process adapter exercised by tests, matching
// original_source's router.rs confirming the same request shapes across
// all three dialects.
package httpshim

import (
	"context"
	"time"

	"github.com/vexfs/vexfs/pkg/vector"
)

// CollectionInfo describes one collection for a list response.
type CollectionInfo struct {
	Name       string
	Dimensions uint32
	Metric     vector.Metric
	Count      int
}

// Hit is one search result, metadata included so a dialect adapter can
// answer a query without a second round-trip to core.
type Hit struct {
	ID       uint64
	Distance float32
	Metadata map[string]string
}

// Health reports the core's liveness for the dialect's /health endpoint.
type Health struct {
	Healthy     bool
	Collections int
}

// Metrics reports the aggregate counters a dialect's /metrics endpoint
// surfaces.
type Metrics struct {
	Collections   int
	TotalVectors  int
	SearchesTotal uint64
	AvgLatency    time.Duration
}

// Core is what every dialect adapter needs from the VexFS engine. All
// operations run under an operation context, so long-running searches and
// upserts respect ctx cancellation and deadlines the same way the rest of
// the core does.
type Core interface {
	ListCollections(ctx context.Context) ([]CollectionInfo, error)
	CreateCollection(ctx context.Context, name string, dimensions uint32, metric vector.Metric) error
	DeleteCollection(ctx context.Context, name string) error

	Upsert(ctx context.Context, collection string, id uint64, vec []float32, metadata map[string]string) error

	Search(ctx context.Context, collection string, query []float32, k int) ([]Hit, error)

	Metrics(ctx context.Context) (Metrics, error)
	Health(ctx context.Context) (Health, error)
}
