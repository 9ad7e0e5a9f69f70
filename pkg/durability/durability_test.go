package durability_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vexfs/vexfs/pkg/block"
	"github.com/vexfs/vexfs/pkg/durability"
	"github.com/vexfs/vexfs/pkg/journal"
)

func setup(t *testing.T, cfg durability.Config) (*durability.Manager, block.Device, *journal.Journal) {
	t.Helper()
	dev := block.NewMemoryDevice(512, 64)
	j, _, err := journal.Open(context.Background(), dev)
	require.NoError(t, err)
	m := durability.New(dev, j, cfg)
	t.Cleanup(m.Close)
	return m, dev, j
}

func TestEnsureDurabilityDrainsAndSyncs(t *testing.T) {
	cfg := durability.Config{Policy: durability.PolicyDataPlusMetadata, MaxBatch: 4, BatchTimeout: 5 * time.Millisecond}
	m, dev, _ := setup(t, cfg)

	err := m.EnsureDurability(context.Background(), journal.TxnID(1), []block.Number{1}, []block.Number{2})
	require.NoError(t, err)

	md := dev.(*block.MemoryDevice)
	syncs, _ := md.Stats()
	assert.GreaterOrEqual(t, syncs, 1)
	assert.False(t, m.IsDurable(journal.TxnID(1)), "no completed checkpoint covers tid 1 yet")

	_, err = m.Checkpoint(context.Background())
	require.NoError(t, err)
	assert.True(t, m.IsDurable(journal.TxnID(1)))
}

func TestStrictPolicyIssuesBarriers(t *testing.T) {
	cfg := durability.Config{Policy: durability.PolicyStrict, MaxBatch: 1, BatchTimeout: 5 * time.Millisecond}
	m, dev, _ := setup(t, cfg)

	require.NoError(t, m.ForceSync(context.Background()))

	md := dev.(*block.MemoryDevice)
	_, barriers := md.Stats()
	assert.GreaterOrEqual(t, barriers, 2)
}

func TestNonePolicySkipsSync(t *testing.T) {
	cfg := durability.Config{Policy: durability.PolicyNone, MaxBatch: 1, BatchTimeout: 5 * time.Millisecond}
	m, dev, _ := setup(t, cfg)

	require.NoError(t, m.EnsureDurability(context.Background(), journal.TxnID(1), nil, nil))

	md := dev.(*block.MemoryDevice)
	syncs, _ := md.Stats()
	assert.Equal(t, 0, syncs)
}

func TestCheckpointAdvancesJournalTail(t *testing.T) {
	cfg := durability.DefaultConfig()
	cfg.BatchTimeout = 5 * time.Millisecond
	m, _, j := setup(t, cfg)

	tid, err := j.Begin(context.Background(), 0)
	require.NoError(t, err)
	require.NoError(t, j.Log(context.Background(), tid, journal.OpDataWrite, 1, block.TierData, 0, nil, []byte("x")))
	require.NoError(t, j.Commit(context.Background(), tid))

	cp, err := m.Checkpoint(context.Background())
	require.NoError(t, err)
	assert.True(t, cp.Complete)
	assert.Equal(t, j.Head(), cp.JournalPosition)

	// With the tail advanced to the head, the recovery scan has nothing left.
	got, err := j.Recover(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}
