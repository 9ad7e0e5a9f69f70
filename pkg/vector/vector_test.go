package vector_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vexfs/vexfs/pkg/vector"
)

func sequentialVectors(n, dim int) map[uint64][]float32 {
	out := make(map[uint64][]float32, n)
	for i := 0; i < n; i++ {
		v := make([]float32, dim)
		for d := range v {
			v[d] = float32(i) + float32(d)*0.001
		}
		out[uint64(i)] = v
	}
	return out
}

func TestZeroDimensionRejected(t *testing.T) {
	_, err := vector.New(0, vector.DefaultConfig())
	assert.Error(t, err)
}

func TestOversizedDimensionRejected(t *testing.T) {
	_, err := vector.New(32769, vector.DefaultConfig())
	assert.Error(t, err)
}

func TestSearchRejectsKZeroAndEfLessThanK(t *testing.T) {
	ctx := context.Background()
	idx, err := vector.New(4, vector.DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, idx.AddVector(ctx, 1, []float32{1, 2, 3, 4}))

	_, err = idx.Search(ctx, []float32{1, 2, 3, 4}, 0, 10)
	assert.Error(t, err)

	_, err = idx.Search(ctx, []float32{1, 2, 3, 4}, 5, 2)
	assert.Error(t, err)
}

func TestInsertThenDeleteThenSearchExcludesRemoved(t *testing.T) {
	ctx := context.Background()
	idx, err := vector.New(128, vector.DefaultConfig())
	require.NoError(t, err)

	vectors := sequentialVectors(1000, 128)
	for i := uint64(0); i < 1000; i++ {
		require.NoError(t, idx.AddVector(ctx, i, vectors[i]))
	}
	for i := uint64(100); i < 200; i++ {
		require.NoError(t, idx.RemoveVector(ctx, i))
	}

	results, err := idx.Search(ctx, vectors[150], 5, 50)
	require.NoError(t, err)
	require.Len(t, results, 5)
	for _, r := range results {
		assert.NotEqual(t, uint64(150), r.ID)
	}
}

func TestSearchIsDeterministicForFixedInsertionOrder(t *testing.T) {
	ctx := context.Background()
	cfg := vector.DefaultConfig()
	cfg.Seed = 42

	build := func() *vector.Index {
		idx, err := vector.New(16, cfg)
		require.NoError(t, err)
		vectors := sequentialVectors(200, 16)
		for i := uint64(0); i < 200; i++ {
			require.NoError(t, idx.AddVector(ctx, i, vectors[i]))
		}
		return idx
	}

	idx1 := build()
	idx2 := build()

	query := sequentialVectors(1, 16)[0]
	r1, err := idx1.Search(ctx, query, 10, 50)
	require.NoError(t, err)
	r2, err := idx2.Search(ctx, query, 10, 50)
	require.NoError(t, err)
	assert.Equal(t, r1, r2)
}

func TestUpdateVectorReplacesEmbedding(t *testing.T) {
	ctx := context.Background()
	idx, err := vector.New(2, vector.DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, idx.AddVector(ctx, 1, []float32{0, 0}))
	require.NoError(t, idx.AddVector(ctx, 2, []float32{10, 10}))

	require.NoError(t, idx.UpdateVector(ctx, 1, []float32{9, 9}))

	results, err := idx.Search(ctx, []float32{9, 9}, 1, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, uint64(1), results[0].ID)
	assert.Equal(t, float32(0), results[0].Distance)
}

func TestUpdateVectorRejectsUnknownID(t *testing.T) {
	ctx := context.Background()
	idx, err := vector.New(2, vector.DefaultConfig())
	require.NoError(t, err)
	err = idx.UpdateVector(ctx, 99, []float32{1, 1})
	assert.Error(t, err)
}

func TestOptimizeIndexPreservesSearchResults(t *testing.T) {
	ctx := context.Background()
	idx, err := vector.New(16, vector.DefaultConfig())
	require.NoError(t, err)
	vectors := sequentialVectors(200, 16)
	for i := uint64(0); i < 200; i++ {
		require.NoError(t, idx.AddVector(ctx, i, vectors[i]))
	}
	for i := uint64(0); i < 50; i++ {
		require.NoError(t, idx.RemoveVector(ctx, i))
	}

	before, err := idx.Search(ctx, vectors[100], 5, 50)
	require.NoError(t, err)

	require.NoError(t, idx.OptimizeIndex(ctx))

	after, err := idx.Search(ctx, vectors[100], 5, 50)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	stats := idx.Stats()
	assert.Equal(t, 150, stats.VectorCount)
}

func TestResultsOrderedByDistanceAscending(t *testing.T) {
	ctx := context.Background()
	idx, err := vector.New(2, vector.DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, idx.AddVector(ctx, 1, []float32{0, 0}))
	require.NoError(t, idx.AddVector(ctx, 2, []float32{1, 0}))
	require.NoError(t, idx.AddVector(ctx, 3, []float32{5, 0}))

	results, err := idx.Search(ctx, []float32{0, 0}, 3, 10)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i-1].Distance, results[i].Distance)
	}
}
