package journal_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vexfs/vexfs/pkg/block"
	"github.com/vexfs/vexfs/pkg/journal"
)

func newDevice(t *testing.T) block.Device {
	t.Helper()
	return block.NewMemoryDevice(512, 64)
}

func TestBeginLogCommitThenRecoverReplaysTransaction(t *testing.T) {
	ctx := context.Background()
	dev := newDevice(t)
	j, recovered, err := journal.Open(ctx, dev)
	require.NoError(t, err)
	assert.Empty(t, recovered)

	tid, err := j.Begin(ctx, 0)
	require.NoError(t, err)
	require.NoError(t, j.Log(ctx, tid, journal.OpDataWrite, 10, block.TierData, 0, make([]byte, 512), bytes(512, 0x01)))
	require.NoError(t, j.Commit(ctx, tid))

	got, err := j.Recover(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, tid, got[0].TxnID)
	require.Len(t, got[0].Ops, 1)
	assert.Equal(t, bytes(512, 0x01), got[0].Ops[0].New)
}

func TestAbortedTransactionLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	dev := newDevice(t)
	j, _, err := journal.Open(ctx, dev)
	require.NoError(t, err)

	tid, err := j.Begin(ctx, 0)
	require.NoError(t, err)
	require.NoError(t, j.Log(ctx, tid, journal.OpDataWrite, 1, block.TierData, 0, nil, bytes(512, 0x02)))
	require.NoError(t, j.Abort(ctx, tid))

	got, err := j.Recover(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

// TestCrashBeforeCommitMarker covers scenario 1 from §8, a crash before
// the commit marker: a transaction that logged operations but never
// committed. Operations stay in memory until Commit, so recovery must
// surface nothing.
func TestCrashBeforeCommitMarker(t *testing.T) {
	ctx := context.Background()
	dev := newDevice(t)
	j, _, err := journal.Open(ctx, dev)
	require.NoError(t, err)

	tid, err := j.Begin(ctx, 0)
	require.NoError(t, err)
	require.NoError(t, j.Log(ctx, tid, journal.OpDataWrite, 2, block.TierData, 0, nil, bytes(512, 0x03)))
	// No Commit call: nothing reaches the device since Commit is the only
	// writer, so recovery sees an empty log.

	got, err := j.Recover(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

// TestCrashAfterCommitMarker simulates scenario 2: once Commit has
// returned, the transaction must be recoverable with full content.
func TestCrashAfterCommitMarker(t *testing.T) {
	ctx := context.Background()
	dev := newDevice(t)
	j, _, err := journal.Open(ctx, dev)
	require.NoError(t, err)

	tid, err := j.Begin(ctx, 0)
	require.NoError(t, err)
	data := bytes(512, 0x01)
	require.NoError(t, j.Log(ctx, tid, journal.OpDataWrite, 4, block.TierData, 0, make([]byte, 512), data))
	require.NoError(t, j.Commit(ctx, tid))

	// Reopen over the same device, as a fresh process would after a crash.
	j2, recovered, err := journal.Open(ctx, dev)
	require.NoError(t, err)
	_ = j2
	require.Len(t, recovered, 1)
	assert.Equal(t, data, recovered[0].Ops[0].New)
}

func TestReplayIsIdempotent(t *testing.T) {
	ctx := context.Background()
	dev := newDevice(t)
	j, _, err := journal.Open(ctx, dev)
	require.NoError(t, err)

	tid, err := j.Begin(ctx, 0)
	require.NoError(t, err)
	require.NoError(t, j.Log(ctx, tid, journal.OpDataWrite, 6, block.TierData, 0, nil, bytes(512, 0x09)))
	require.NoError(t, j.Commit(ctx, tid))

	first, err := j.Recover(ctx)
	require.NoError(t, err)
	second, err := j.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestCommitFailsWhenJournalFull(t *testing.T) {
	ctx := context.Background()
	dev := block.NewMemoryDevice(512, 3) // 1 superblock block + 2 body blocks = tiny
	j, _, err := journal.Open(ctx, dev)
	require.NoError(t, err)

	tid, err := j.Begin(ctx, 0)
	require.NoError(t, err)
	big := bytes(2048, 0xAA)
	require.NoError(t, j.Log(ctx, tid, journal.OpDataWrite, 0, block.TierData, 0, nil, big))
	err = j.Commit(ctx, tid)
	require.Error(t, err)
}

func bytes(n int, v byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = v
	}
	return b
}
