package txn_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vexfs/vexfs/pkg/block"
	"github.com/vexfs/vexfs/pkg/durability"
	"github.com/vexfs/vexfs/pkg/journal"
	"github.com/vexfs/vexfs/pkg/lock"
	"github.com/vexfs/vexfs/pkg/txn"
	"github.com/vexfs/vexfs/pkg/verrors"
)

func newManager(t *testing.T) *txn.Manager {
	t.Helper()
	dev := block.NewMemoryDevice(512, 64)
	j, _, err := journal.Open(context.Background(), dev)
	require.NoError(t, err)
	dur := durability.New(dev, j, durability.DefaultConfig())
	t.Cleanup(dur.Close)
	return txn.New(lock.New(), j, dur)
}

func TestCommittedWriteIsVisibleToNewTransaction(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	tx1, err := m.Begin(ctx, txn.IsolationRepeatableRead, 0)
	require.NoError(t, err)
	require.NoError(t, tx1.Put(ctx, "a", []byte("v1")))
	require.NoError(t, tx1.Commit(ctx))

	tx2, err := m.Begin(ctx, txn.IsolationRepeatableRead, 0)
	require.NoError(t, err)
	v, ok, err := tx2.Get("a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v1"), v)
}

func TestSnapshotIsolationHidesLaterCommits(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	tx1, err := m.Begin(ctx, txn.IsolationRepeatableRead, 0)
	require.NoError(t, err)
	require.NoError(t, tx1.Put(ctx, "a", []byte("v1")))
	require.NoError(t, tx1.Commit(ctx))

	reader, err := m.Begin(ctx, txn.IsolationRepeatableRead, 0)
	require.NoError(t, err)

	tx2, err := m.Begin(ctx, txn.IsolationRepeatableRead, 0)
	require.NoError(t, err)
	require.NoError(t, tx2.Put(ctx, "a", []byte("v2")))
	require.NoError(t, tx2.Commit(ctx))

	v, ok, err := reader.Get("a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v1"), v, "reader's snapshot predates tx2's commit")
}

func TestAbortDiscardsWriteSetAndReleasesLocks(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	tx1, err := m.Begin(ctx, txn.IsolationRepeatableRead, 0)
	require.NoError(t, err)
	require.NoError(t, tx1.Put(ctx, "a", []byte("v1")))
	require.NoError(t, tx1.Abort(ctx))

	tx2, err := m.Begin(ctx, txn.IsolationRepeatableRead, 0)
	require.NoError(t, err)
	_, ok, err := tx2.Get("a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, tx2.Put(ctx, "a", []byte("v2")))
	require.NoError(t, tx2.Commit(ctx))
}

func TestReadYourOwnWrites(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	tx, err := m.Begin(ctx, txn.IsolationRepeatableRead, 0)
	require.NoError(t, err)
	require.NoError(t, tx.Put(ctx, "a", []byte("v1")))
	v, ok, err := tx.Get("a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v1"), v)
}

func TestDeleteHidesKeyFromLaterReaders(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	tx1, err := m.Begin(ctx, txn.IsolationRepeatableRead, 0)
	require.NoError(t, err)
	require.NoError(t, tx1.Put(ctx, "a", []byte("v1")))
	require.NoError(t, tx1.Commit(ctx))

	tx2, err := m.Begin(ctx, txn.IsolationRepeatableRead, 0)
	require.NoError(t, err)
	require.NoError(t, tx2.Delete(ctx, "a"))
	require.NoError(t, tx2.Commit(ctx))

	tx3, err := m.Begin(ctx, txn.IsolationRepeatableRead, 0)
	require.NoError(t, err)
	_, ok, err := tx3.Get("a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReadUncommittedSeesOtherTransactionsDirtyWrites(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	writer, err := m.Begin(ctx, txn.IsolationRepeatableRead, 0)
	require.NoError(t, err)
	require.NoError(t, writer.Put(ctx, "a", []byte("uncommitted")))

	reader, err := m.Begin(ctx, txn.IsolationReadUncommitted, 0)
	require.NoError(t, err)
	v, ok, err := reader.Get("a")
	require.NoError(t, err)
	require.True(t, ok, "read-uncommitted should see another transaction's buffered write")
	assert.Equal(t, []byte("uncommitted"), v)

	require.NoError(t, writer.Abort(ctx))
}

func TestReadCommittedSeesCommitsMadeDuringItsOwnLifetime(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	reader, err := m.Begin(ctx, txn.IsolationReadCommitted, 0)
	require.NoError(t, err)

	_, ok, err := reader.Get("a")
	require.NoError(t, err)
	assert.False(t, ok, "nothing committed yet")

	writer, err := m.Begin(ctx, txn.IsolationRepeatableRead, 0)
	require.NoError(t, err)
	require.NoError(t, writer.Put(ctx, "a", []byte("v1")))
	require.NoError(t, writer.Commit(ctx))

	v, ok, err := reader.Get("a")
	require.NoError(t, err)
	require.True(t, ok, "read-committed re-snapshots on every read, unlike repeatable-read")
	assert.Equal(t, []byte("v1"), v)
}

func TestSerializableCommitRejectsReadWriteConflict(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	seed, err := m.Begin(ctx, txn.IsolationRepeatableRead, 0)
	require.NoError(t, err)
	require.NoError(t, seed.Put(ctx, "a", []byte("v0")))
	require.NoError(t, seed.Commit(ctx))

	tx1, err := m.Begin(ctx, txn.IsolationSerializable, 0)
	require.NoError(t, err)
	_, _, err = tx1.Get("a") // tx1's read-set now contains "a"
	require.NoError(t, err)

	// tx2 stays active (uncommitted) with "a" in its write-set while
	// tx1 commits, so the two are genuinely concurrent.
	tx2, err := m.Begin(ctx, txn.IsolationRepeatableRead, 0)
	require.NoError(t, err)
	require.NoError(t, tx2.Put(ctx, "a", []byte("v1")))

	require.NoError(t, tx1.Put(ctx, "b", []byte("unrelated")))
	err = tx1.Commit(ctx)
	require.Error(t, err, "tx2's write-set intersects tx1's read-set")
	assert.True(t, verrors.Is(err, verrors.Conflict))
	assert.Equal(t, uint64(1), m.ConflictCount())

	require.NoError(t, tx2.Abort(ctx))
}

func TestSerializableCommitSucceedsWithoutConflict(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	tx1, err := m.Begin(ctx, txn.IsolationSerializable, 0)
	require.NoError(t, err)
	require.NoError(t, tx1.Put(ctx, "a", []byte("v1")))
	require.NoError(t, tx1.Commit(ctx))
}

func TestCommitAbortsOnExpiredTimeout(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	tx, err := m.Begin(ctx, txn.IsolationRepeatableRead, time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, tx.Put(ctx, "a", []byte("v1")))
	time.Sleep(5 * time.Millisecond)

	err = tx.Commit(ctx)
	require.Error(t, err)
	assert.True(t, verrors.Is(err, verrors.Timeout))
}

type fakeParticipant struct {
	prepareErr error
	prepared   bool
	committed  bool
	aborted    bool
}

func (f *fakeParticipant) Prepare(context.Context) error {
	if f.prepareErr != nil {
		return f.prepareErr
	}
	f.prepared = true
	return nil
}

func (f *fakeParticipant) Commit(context.Context) error { f.committed = true; return nil }
func (f *fakeParticipant) Abort(context.Context) error  { f.aborted = true; return nil }

func TestTwoPhaseCommitCommitsAllParticipants(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	tx, err := m.Begin(ctx, txn.IsolationRepeatableRead, 0)
	require.NoError(t, err)
	require.NoError(t, tx.Put(ctx, "a", []byte("v1")))

	p1, p2 := &fakeParticipant{}, &fakeParticipant{}
	tx.Enlist(p1)
	tx.Enlist(p2)

	require.NoError(t, tx.Commit(ctx))
	assert.True(t, p1.prepared)
	assert.True(t, p1.committed)
	assert.True(t, p2.prepared)
	assert.True(t, p2.committed)
	assert.False(t, p1.aborted)

	reader, err := m.Begin(ctx, txn.IsolationRepeatableRead, 0)
	require.NoError(t, err)
	v, ok, err := reader.Get("a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v1"), v)
}

func TestTwoPhaseCommitAbortsAllOnPrepareFailure(t *testing.T) {
	ctx := context.Background()
	m := newManager(t)

	tx, err := m.Begin(ctx, txn.IsolationRepeatableRead, 0)
	require.NoError(t, err)
	require.NoError(t, tx.Put(ctx, "a", []byte("v1")))

	ok1 := &fakeParticipant{}
	failing := &fakeParticipant{prepareErr: errors.New("remote boundary unreachable")}
	tx.Enlist(ok1)
	tx.Enlist(failing)

	err = tx.Commit(ctx)
	require.Error(t, err)
	assert.True(t, verrors.Is(err, verrors.TransactionFailed))
	assert.True(t, ok1.prepared)
	assert.True(t, ok1.aborted, "already-prepared participants must be rolled back")
	assert.False(t, ok1.committed)

	reader, err := m.Begin(ctx, txn.IsolationRepeatableRead, 0)
	require.NoError(t, err)
	_, found, err := reader.Get("a")
	require.NoError(t, err)
	assert.False(t, found, "aborted transaction must not publish any version")
}
