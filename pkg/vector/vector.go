// Package vector implements the ANNS vector search engine (§4.6): an
// HNSW-style multi-layer graph with deterministic top-k search and a
// bounded-allocation memory pool standing in for the kernel-safety
// envelope described in original_source's
// vector_search_integration_kernel.rs (stack-bound, pool-allocated
// buffers; here expressed as a free-list backed buffer pool since Go
// has no user-controlled stack frames to bound).
package vector

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/vexfs/vexfs/pkg/verrors"
)

// Metric is a distance function.
type Metric int

const (
	MetricL2 Metric = iota
	MetricCosine
	MetricInnerProduct
)

func (m Metric) distance(a, b []float32) float32 {
	switch m {
	case MetricCosine:
		var dot, na, nb float64
		for i := range a {
			dot += float64(a[i]) * float64(b[i])
			na += float64(a[i]) * float64(a[i])
			nb += float64(b[i]) * float64(b[i])
		}
		if na == 0 || nb == 0 {
			return 1
		}
		return float32(1 - dot/(math.Sqrt(na)*math.Sqrt(nb)))
	case MetricInnerProduct:
		var dot float64
		for i := range a {
			dot += float64(a[i]) * float64(b[i])
		}
		return float32(-dot)
	default: // MetricL2
		var sum float64
		for i := range a {
			d := float64(a[i]) - float64(b[i])
			sum += d * d
		}
		return float32(math.Sqrt(sum))
	}
}

const (
	maxDimension = 32768
	maxK         = 1000
)

// Config tunes index construction.
type Config struct {
	Metric         Metric
	M              int // max neighbors per node per layer
	EfConstruction int
	Seed           int64
}

func DefaultConfig() Config {
	return Config{Metric: MetricL2, M: 16, EfConstruction: 200, Seed: 1}
}

type node struct {
	id     uint64
	vector []float32
	layers [][]uint64 // neighbor ids per layer, layer 0 is the base graph
}

// Index is a hierarchical navigable small-world graph over per-inode
// vectors.
type Index struct {
	mu         sync.RWMutex
	cfg        Config
	dim        uint32
	nodes      map[uint64]*node
	entryPoint uint64
	maxLayer   int
	rng        *rand.Rand
	pool       *bufferPool
}

// New creates an empty index for vectors of dimension dim.
func New(dim uint32, cfg Config) (*Index, error) {
	if dim == 0 || dim > maxDimension {
		return nil, verrors.Newf(verrors.Argument, "dimension %d out of range [1, %d]", dim, maxDimension)
	}
	if cfg.M <= 0 {
		cfg.M = DefaultConfig().M
	}
	if cfg.EfConstruction <= 0 {
		cfg.EfConstruction = DefaultConfig().EfConstruction
	}
	return &Index{
		cfg:   cfg,
		dim:   dim,
		nodes: make(map[uint64]*node),
		rng:   rand.New(rand.NewSource(cfg.Seed)),
		pool:  newBufferPool(),
	}, nil
}

// AddVector inserts or overwrites the embedding for id.
func (x *Index) AddVector(_ context.Context, id uint64, vec []float32) error {
	if err := x.validate(vec); err != nil {
		return err
	}
	x.mu.Lock()
	defer x.mu.Unlock()

	layer := x.randomLayer()
	n := &node{id: id, vector: append([]float32(nil), vec...), layers: make([][]uint64, layer+1)}
	x.nodes[id] = n

	if len(x.nodes) == 1 {
		x.entryPoint = id
		x.maxLayer = layer
		return nil
	}

	entry := x.entryPoint
	for l := x.maxLayer; l > layer; l-- {
		entry = x.greedyDescend(entry, vec, l)
	}
	for l := min(layer, x.maxLayer); l >= 0; l-- {
		candidates := x.searchLayer(vec, entry, x.cfg.EfConstruction, l)
		neighbors := selectNeighbors(candidates, x.cfg.M)
		n.layers[l] = neighbors
		for _, nb := range neighbors {
			other := x.nodes[nb]
			other.layers[l] = append(other.layers[l], id)
			if len(other.layers[l]) > x.cfg.M {
				other.layers[l] = trimToM(x, other, l)
			}
		}
		if len(candidates) > 0 {
			entry = candidates[0].id
		}
	}
	if layer > x.maxLayer {
		x.maxLayer = layer
		x.entryPoint = id
	}
	return nil
}

func trimToM(x *Index, n *node, layer int) []uint64 {
	type scored struct {
		id   uint64
		dist float32
	}
	scoredList := make([]scored, 0, len(n.layers[layer]))
	for _, nb := range n.layers[layer] {
		other, ok := x.nodes[nb]
		if !ok {
			continue
		}
		scoredList = append(scoredList, scored{nb, x.cfg.Metric.distance(n.vector, other.vector)})
	}
	sort.Slice(scoredList, func(i, j int) bool {
		if scoredList[i].dist != scoredList[j].dist {
			return scoredList[i].dist < scoredList[j].dist
		}
		return scoredList[i].id < scoredList[j].id
	})
	if len(scoredList) > x.cfg.M {
		scoredList = scoredList[:x.cfg.M]
	}
	out := make([]uint64, len(scoredList))
	for i, s := range scoredList {
		out[i] = s.id
	}
	return out
}

// RemoveVector deletes id and unlinks it from every neighbor list.
func (x *Index) RemoveVector(_ context.Context, id uint64) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if _, ok := x.nodes[id]; !ok {
		return verrors.Newf(verrors.NotFound, "vector %d not found", id)
	}
	delete(x.nodes, id)
	for _, other := range x.nodes {
		for l := range other.layers {
			other.layers[l] = removeID(other.layers[l], id)
		}
	}
	if id == x.entryPoint {
		x.entryPoint = 0
		for other := range x.nodes {
			x.entryPoint = other
			break
		}
	}
	return nil
}

func removeID(ids []uint64, target uint64) []uint64 {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

// UpdateVector replaces the embedding stored for id by unlinking and
// reinserting it, since HNSW neighbor lists are graph-quality
// decisions made at insertion time and do not support an in-place
// edit (§4.6: add_vector, update_vector, remove_vector, search,
// optimize_index, get_stats).
func (x *Index) UpdateVector(ctx context.Context, id uint64, vec []float32) error {
	x.mu.RLock()
	_, ok := x.nodes[id]
	x.mu.RUnlock()
	if !ok {
		return verrors.Newf(verrors.NotFound, "vector %d not found", id)
	}
	if err := x.RemoveVector(ctx, id); err != nil {
		return err
	}
	return x.AddVector(ctx, id, vec)
}

// OptimizeIndex rebuilds the graph from its current vectors in
// ascending id order, repairing the neighbor-list degradation that
// RemoveVector's unlink-in-place leaves behind (§4.6's optimize_index).
// Rebuilding rather than patching in place keeps the result as
// deterministic as a fresh Index built from the same vector set
// (§4.6, §8).
func (x *Index) OptimizeIndex(ctx context.Context) error {
	x.mu.Lock()
	ids := make([]uint64, 0, len(x.nodes))
	vecs := make(map[uint64][]float32, len(x.nodes))
	for id, n := range x.nodes {
		ids = append(ids, id)
		vecs[id] = n.vector
	}
	x.nodes = make(map[uint64]*node)
	x.entryPoint = 0
	x.maxLayer = 0
	x.rng = rand.New(rand.NewSource(x.cfg.Seed))
	x.mu.Unlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if err := x.AddVector(ctx, id, vecs[id]); err != nil {
			return err
		}
	}
	return nil
}

// Result is one search hit.
type Result struct {
	ID       uint64
	Distance float32
}

// Search returns the top-k nearest neighbors to query, ordered by
// distance ascending with ties broken by id ascending (§4.6).
func (x *Index) Search(_ context.Context, query []float32, k, efSearch int) ([]Result, error) {
	if err := x.validate(query); err != nil {
		return nil, err
	}
	if k < 1 || k > maxK {
		return nil, verrors.Newf(verrors.Argument, "k=%d out of range [1, %d]", k, maxK)
	}
	if efSearch < k {
		return nil, verrors.New(verrors.Argument, "ef_search must be >= k")
	}

	x.mu.RLock()
	defer x.mu.RUnlock()
	if len(x.nodes) == 0 {
		return nil, nil
	}

	entry := x.entryPoint
	for l := x.maxLayer; l > 0; l-- {
		entry = x.greedyDescend(entry, query, l)
	}
	candidates := x.searchLayer(query, entry, efSearch, 0)

	out := make([]Result, 0, k)
	for i, c := range candidates {
		if i >= k {
			break
		}
		out = append(out, Result{ID: c.id, Distance: c.dist})
	}
	return out, nil
}

type scoredNode struct {
	id   uint64
	dist float32
}

// greedyDescend walks layer l from entry toward the vector closest to
// query, single-hop-at-a-time (standard HNSW layer traversal).
func (x *Index) greedyDescend(entry uint64, query []float32, layer int) uint64 {
	cur := entry
	curDist := x.cfg.Metric.distance(query, x.nodes[cur].vector)
	for {
		improved := false
		for _, nb := range x.neighborsAt(cur, layer) {
			d := x.cfg.Metric.distance(query, x.nodes[nb].vector)
			if d < curDist {
				cur, curDist, improved = nb, d, true
			}
		}
		if !improved {
			return cur
		}
	}
}

func (x *Index) neighborsAt(id uint64, layer int) []uint64 {
	n := x.nodes[id]
	if layer >= len(n.layers) {
		return nil
	}
	return n.layers[layer]
}

// searchLayer runs a candidate-heap beam search of width ef over layer,
// returning visited nodes sorted by distance ascending.
func (x *Index) searchLayer(query []float32, entry uint64, ef, layer int) []scoredNode {
	visited := map[uint64]bool{entry: true}
	entryDist := x.cfg.Metric.distance(query, x.nodes[entry].vector)
	candidates := []scoredNode{{entry, entryDist}}
	result := []scoredNode{{entry, entryDist}}

	for len(candidates) > 0 {
		sort.Slice(candidates, func(i, j int) bool { return candidates[i].dist < candidates[j].dist })
		cur := candidates[0]
		candidates = candidates[1:]

		sort.Slice(result, func(i, j int) bool { return result[i].dist < result[j].dist })
		if len(result) >= ef && cur.dist > result[len(result)-1].dist {
			break
		}
		for _, nb := range x.neighborsAt(cur.id, layer) {
			if visited[nb] {
				continue
			}
			visited[nb] = true
			d := x.cfg.Metric.distance(query, x.nodes[nb].vector)
			candidates = append(candidates, scoredNode{nb, d})
			result = append(result, scoredNode{nb, d})
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].dist != result[j].dist {
			return result[i].dist < result[j].dist
		}
		return result[i].id < result[j].id
	})
	if len(result) > ef {
		result = result[:ef]
	}
	return result
}

func selectNeighbors(candidates []scoredNode, m int) []uint64 {
	if len(candidates) > m {
		candidates = candidates[:m]
	}
	out := make([]uint64, len(candidates))
	for i, c := range candidates {
		out[i] = c.id
	}
	return out
}

// randomLayer draws an HNSW layer assignment from an exponentially
// decaying distribution, seeded deterministically from cfg.Seed so
// recall is reproducible for a fixed insertion order (§4.6, §8).
func (x *Index) randomLayer() int {
	ml := 1.0 / math.Log(2.0)
	layer := int(math.Floor(-math.Log(x.rng.Float64()) * ml))
	if layer > 16 {
		layer = 16
	}
	return layer
}

func (x *Index) validate(vec []float32) error {
	if len(vec) == 0 {
		return verrors.New(verrors.Argument, "vector dimension 0 is rejected")
	}
	if uint32(len(vec)) != x.dim {
		return verrors.Newf(verrors.Argument, "expected dimension %d, got %d", x.dim, len(vec))
	}
	if x.dim > maxDimension {
		return verrors.Newf(verrors.Argument, "dimension %d exceeds maximum %d", x.dim, maxDimension)
	}
	return nil
}

// Stats reports basic index occupancy for get_stats (§4.6).
type Stats struct {
	VectorCount int
	MaxLayer    int
	Dimension   uint32
}

func (x *Index) Stats() Stats {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return Stats{VectorCount: len(x.nodes), MaxLayer: x.maxLayer, Dimension: x.dim}
}

// PoolStats reports the buffer pool's hit/miss counters for the
// search subsystem's kernel-allocation accounting (§4.6).
func (x *Index) PoolStats() (hits, misses int) {
	return x.pool.Stats()
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
