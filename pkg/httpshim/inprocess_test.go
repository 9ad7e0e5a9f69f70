package httpshim_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vexfs/vexfs/pkg/httpshim"
	"github.com/vexfs/vexfs/pkg/vector"
)

func TestCreateListDeleteCollection(t *testing.T) {
	ctx := context.Background()
	core := httpshim.NewInProcessCore()

	require.NoError(t, core.CreateCollection(ctx, "docs", 4, vector.MetricL2))

	cols, err := core.ListCollections(ctx)
	require.NoError(t, err)
	require.Len(t, cols, 1)
	assert.Equal(t, "docs", cols[0].Name)
	assert.Equal(t, uint32(4), cols[0].Dimensions)

	require.NoError(t, core.DeleteCollection(ctx, "docs"))
	cols, err = core.ListCollections(ctx)
	require.NoError(t, err)
	assert.Empty(t, cols)
}

func TestCreateCollectionRejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	core := httpshim.NewInProcessCore()
	require.NoError(t, core.CreateCollection(ctx, "docs", 4, vector.MetricL2))
	assert.Error(t, core.CreateCollection(ctx, "docs", 4, vector.MetricL2))
}

func TestUpsertThenSearchReturnsMetadata(t *testing.T) {
	ctx := context.Background()
	core := httpshim.NewInProcessCore()
	require.NoError(t, core.CreateCollection(ctx, "docs", 3, vector.MetricL2))

	require.NoError(t, core.Upsert(ctx, "docs", 1, []float32{1, 0, 0}, map[string]string{"title": "a"}))
	require.NoError(t, core.Upsert(ctx, "docs", 2, []float32{0, 1, 0}, map[string]string{"title": "b"}))

	hits, err := core.Search(ctx, "docs", []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, uint64(1), hits[0].ID)
	assert.Equal(t, "a", hits[0].Metadata["title"])
}

func TestUpsertOverwritesExistingVector(t *testing.T) {
	ctx := context.Background()
	core := httpshim.NewInProcessCore()
	require.NoError(t, core.CreateCollection(ctx, "docs", 2, vector.MetricL2))

	require.NoError(t, core.Upsert(ctx, "docs", 1, []float32{1, 0}, map[string]string{"v": "1"}))
	require.NoError(t, core.Upsert(ctx, "docs", 1, []float32{0, 1}, map[string]string{"v": "2"}))

	hits, err := core.Search(ctx, "docs", []float32{0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "2", hits[0].Metadata["v"])
}

func TestSearchUnknownCollectionIsNotFound(t *testing.T) {
	ctx := context.Background()
	core := httpshim.NewInProcessCore()
	_, err := core.Search(ctx, "missing", []float32{1}, 1)
	assert.Error(t, err)
}

func TestMetricsAndHealthReflectState(t *testing.T) {
	ctx := context.Background()
	core := httpshim.NewInProcessCore()
	require.NoError(t, core.CreateCollection(ctx, "docs", 2, vector.MetricL2))
	require.NoError(t, core.Upsert(ctx, "docs", 1, []float32{1, 0}, nil))

	_, err := core.Search(ctx, "docs", []float32{1, 0}, 1)
	require.NoError(t, err)

	metrics, err := core.Metrics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, metrics.Collections)
	assert.Equal(t, 1, metrics.TotalVectors)
	assert.Equal(t, uint64(1), metrics.SearchesTotal)

	health, err := core.Health(ctx)
	require.NoError(t, err)
	assert.True(t, health.Healthy)
	assert.Equal(t, 1, health.Collections)
}
