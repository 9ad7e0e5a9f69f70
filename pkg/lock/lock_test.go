package lock_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vexfs/vexfs/pkg/lock"
)

func res(id uint64) lock.ResourceID { return lock.ResourceID{Kind: lock.ResourceInode, ID: id} }

func TestSharedLocksDoNotConflict(t *testing.T) {
	m := lock.New()
	ctx := context.Background()
	require.NoError(t, m.Acquire(ctx, 1, res(1), lock.ModeShared))
	require.NoError(t, m.Acquire(ctx, 2, res(1), lock.ModeShared))
}

func TestExclusiveBlocksUntilReleased(t *testing.T) {
	m := lock.New()
	ctx := context.Background()
	require.NoError(t, m.Acquire(ctx, 1, res(1), lock.ModeExclusive))

	done := make(chan error, 1)
	go func() { done <- m.Acquire(ctx, 2, res(1), lock.ModeExclusive) }()

	select {
	case <-done:
		t.Fatal("second exclusive acquire should not have succeeded yet")
	case <-time.After(20 * time.Millisecond):
	}

	m.Release(1, res(1))
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("waiter was never granted after release")
	}
}

func TestAcquireTimeoutReturnsError(t *testing.T) {
	m := lock.New()
	ctx := context.Background()
	require.NoError(t, m.Acquire(ctx, 1, res(1), lock.ModeExclusive))

	err := m.AcquireTimeout(ctx, 2, res(1), lock.ModeExclusive, 10*time.Millisecond)
	assert.Error(t, err)
}

func TestReleaseAllDropsEveryHeldLock(t *testing.T) {
	m := lock.New()
	ctx := context.Background()
	require.NoError(t, m.Acquire(ctx, 1, res(1), lock.ModeExclusive))
	require.NoError(t, m.Acquire(ctx, 1, res(2), lock.ModeExclusive))

	m.ReleaseAll(1)

	require.NoError(t, m.Acquire(ctx, 2, res(1), lock.ModeExclusive))
	require.NoError(t, m.Acquire(ctx, 2, res(2), lock.ModeExclusive))
}

func TestWaitForGraphReportsEdge(t *testing.T) {
	m := lock.New()
	ctx := context.Background()
	require.NoError(t, m.Acquire(ctx, 1, res(1), lock.ModeExclusive))

	go func() { _ = m.Acquire(ctx, 2, res(1), lock.ModeExclusive) }()
	time.Sleep(20 * time.Millisecond)

	edges := m.WaitForGraph()
	require.Len(t, edges, 1)
	assert.Equal(t, lock.HolderID(2), edges[0].Waiter)
	assert.Equal(t, lock.HolderID(1), edges[0].Holder)
}

func TestReentrantAcquireUpgradesMode(t *testing.T) {
	m := lock.New()
	ctx := context.Background()
	require.NoError(t, m.Acquire(ctx, 1, res(1), lock.ModeShared))
	require.NoError(t, m.Acquire(ctx, 1, res(1), lock.ModeExclusive))
}
