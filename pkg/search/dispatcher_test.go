package search_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vexfs/vexfs/pkg/lock"
	"github.com/vexfs/vexfs/pkg/search"
	"github.com/vexfs/vexfs/pkg/vector"
)

func newDispatcher(t *testing.T) (*search.Dispatcher, *vector.Index) {
	t.Helper()
	idx, err := vector.New(4, vector.DefaultConfig())
	require.NoError(t, err)
	return search.New(idx, lock.New()), idx
}

func TestDispatchSearchReturnsResults(t *testing.T) {
	ctx := context.Background()
	d, idx := newDispatcher(t)
	require.NoError(t, idx.AddVector(ctx, 1, []float32{1, 0, 0, 0}))
	require.NoError(t, idx.AddVector(ctx, 2, []float32{0, 1, 0, 0}))

	resp, err := d.Dispatch(ctx, 1, search.Request{
		Command: search.CmdSearch, QueryData: []float32{1, 0, 0, 0},
		Dimensions: 4, K: 2, EfSearch: 10, MaxResults: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.ActualResults)
}

func TestDispatchRejectsNullQuery(t *testing.T) {
	ctx := context.Background()
	d, _ := newDispatcher(t)
	_, err := d.Dispatch(ctx, 1, search.Request{Command: search.CmdSearch, Dimensions: 4, K: 1, EfSearch: 1, MaxResults: 1})
	assert.Error(t, err)
}

func TestDispatchRejectsUnknownCommand(t *testing.T) {
	ctx := context.Background()
	d, _ := newDispatcher(t)
	_, err := d.Dispatch(ctx, 1, search.Request{Command: 0x9999, Dimensions: 4})
	assert.Error(t, err)
}

func TestDispatchUpdateVectorChangesSearchResult(t *testing.T) {
	ctx := context.Background()
	d, idx := newDispatcher(t)
	require.NoError(t, idx.AddVector(ctx, 1, []float32{1, 0, 0, 0}))

	_, err := d.Dispatch(ctx, 1, search.Request{
		Command: search.CmdUpdateVector, VectorID: 1,
		QueryData: []float32{0, 1, 0, 0}, Dimensions: 4,
	})
	require.NoError(t, err)

	resp, err := d.Dispatch(ctx, 1, search.Request{
		Command: search.CmdSearch, QueryData: []float32{0, 1, 0, 0},
		Dimensions: 4, K: 1, EfSearch: 10, MaxResults: 1,
	})
	require.NoError(t, err)
	require.Equal(t, 1, resp.ActualResults)
	assert.Equal(t, float32(0), resp.Results[0].Distance)
}

func TestDispatchOptimizeIndexSucceeds(t *testing.T) {
	ctx := context.Background()
	d, idx := newDispatcher(t)
	require.NoError(t, idx.AddVector(ctx, 1, []float32{1, 0, 0, 0}))
	require.NoError(t, idx.AddVector(ctx, 2, []float32{0, 1, 0, 0}))

	resp, err := d.Dispatch(ctx, 1, search.Request{Command: search.CmdOptimizeIndex, Dimensions: 4})
	require.NoError(t, err)
	assert.NotNil(t, resp)
}

func TestDispatchSearchUsesConfiguredDefaultEfSearch(t *testing.T) {
	ctx := context.Background()
	d, idx := newDispatcher(t)
	require.NoError(t, idx.AddVector(ctx, 1, []float32{1, 0, 0, 0}))

	_, err := d.Dispatch(ctx, 1, search.Request{Command: search.CmdConfigure, Dimensions: 4, EfSearch: 5})
	require.NoError(t, err)

	resp, err := d.Dispatch(ctx, 1, search.Request{
		Command: search.CmdSearch, QueryData: []float32{1, 0, 0, 0},
		Dimensions: 4, K: 1, MaxResults: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.ActualResults)
}

func TestDispatchReportsPoolStats(t *testing.T) {
	ctx := context.Background()
	d, idx := newDispatcher(t)
	require.NoError(t, idx.AddVector(ctx, 1, []float32{1, 0, 0, 0}))

	resp, err := d.Dispatch(ctx, 1, search.Request{Command: search.CmdGetStats, Dimensions: 4})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, resp.Stats.PoolHits+resp.Stats.PoolMisses, 0)
}

func TestResetStatsClearsLatencyHistory(t *testing.T) {
	ctx := context.Background()
	d, idx := newDispatcher(t)
	require.NoError(t, idx.AddVector(ctx, 1, []float32{1, 0, 0, 0}))

	_, err := d.Dispatch(ctx, 1, search.Request{Command: search.CmdSearch, QueryData: []float32{1, 0, 0, 0}, Dimensions: 4, K: 1, EfSearch: 1, MaxResults: 1})
	require.NoError(t, err)

	resp, err := d.Dispatch(ctx, 1, search.Request{Command: search.CmdResetStats, Dimensions: 4})
	require.NoError(t, err)
	// The reset call itself is timed after clearing history, so exactly
	// one latency sample (the reset call) remains.
	assert.Equal(t, uint64(1), resp.Stats.Total)
}
