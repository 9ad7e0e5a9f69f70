package httpshim

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vexfs/vexfs/pkg/vector"
	"github.com/vexfs/vexfs/pkg/verrors"
)

type collection struct {
	index      *vector.Index
	dimensions uint32
	metric     vector.Metric
	metadata   map[uint64]map[string]string
}

// InProcessCore is a reference Core implementation that drives one
// vector.Index per collection directly in-process, with no journal,
// durability, or transaction manager involved. It exists so dialect
// adapters (and this package's own tests) have a real, minimal caller of
// the Core interface.
type InProcessCore struct {
	mu          sync.RWMutex
	collections map[string]*collection

	searches     uint64
	searchTimeNs int64
}

// NewInProcessCore returns an empty InProcessCore.
func NewInProcessCore() *InProcessCore {
	return &InProcessCore{collections: make(map[string]*collection)}
}

var _ Core = (*InProcessCore)(nil)

func (c *InProcessCore) ListCollections(_ context.Context) ([]CollectionInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]CollectionInfo, 0, len(c.collections))
	for name, col := range c.collections {
		out = append(out, CollectionInfo{
			Name:       name,
			Dimensions: col.dimensions,
			Metric:     col.metric,
			Count:      len(col.metadata),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (c *InProcessCore) CreateCollection(_ context.Context, name string, dimensions uint32, metric vector.Metric) error {
	if name == "" {
		return verrors.New(verrors.Argument, "collection name required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.collections[name]; exists {
		return verrors.Newf(verrors.Conflict, "collection %q already exists", name)
	}

	idx, err := vector.New(dimensions, vector.Config{Metric: metric})
	if err != nil {
		return err
	}
	c.collections[name] = &collection{
		index:      idx,
		dimensions: dimensions,
		metric:     metric,
		metadata:   make(map[uint64]map[string]string),
	}
	return nil
}

func (c *InProcessCore) DeleteCollection(_ context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.collections[name]; !exists {
		return verrors.Newf(verrors.NotFound, "collection %q not found", name)
	}
	delete(c.collections, name)
	return nil
}

func (c *InProcessCore) Upsert(ctx context.Context, name string, id uint64, vec []float32, metadata map[string]string) error {
	col, err := c.lookup(name)
	if err != nil {
		return err
	}

	if err := col.index.RemoveVector(ctx, id); err != nil && !verrors.Is(err, verrors.NotFound) {
		return err
	}
	if err := col.index.AddVector(ctx, id, vec); err != nil {
		return err
	}

	c.mu.Lock()
	col.metadata[id] = metadata
	c.mu.Unlock()
	return nil
}

func (c *InProcessCore) Search(ctx context.Context, name string, query []float32, k int) ([]Hit, error) {
	col, err := c.lookup(name)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	results, err := col.index.Search(ctx, query, k, k*2)
	elapsed := time.Since(start)
	c.mu.Lock()
	c.searches++
	c.searchTimeNs += elapsed.Nanoseconds()
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		hits = append(hits, Hit{ID: r.ID, Distance: r.Distance, Metadata: col.metadata[r.ID]})
	}
	return hits, nil
}

func (c *InProcessCore) Metrics(_ context.Context) (Metrics, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := 0
	for _, col := range c.collections {
		total += len(col.metadata)
	}

	var avg time.Duration
	if c.searches > 0 {
		avg = time.Duration(c.searchTimeNs / int64(c.searches))
	}

	return Metrics{
		Collections:   len(c.collections),
		TotalVectors:  total,
		SearchesTotal: c.searches,
		AvgLatency:    avg,
	}, nil
}

func (c *InProcessCore) Health(_ context.Context) (Health, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Health{Healthy: true, Collections: len(c.collections)}, nil
}

func (c *InProcessCore) lookup(name string) (*collection, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	col, exists := c.collections[name]
	if !exists {
		return nil, verrors.Newf(verrors.NotFound, "collection %q not found", name)
	}
	return col, nil
}
