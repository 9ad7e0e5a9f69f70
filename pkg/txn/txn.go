// Package txn implements the ACID transaction manager (§4.4): snapshot
// isolation over versioned keys, backed by the write-ahead journal for
// durability and the lock manager for write-write conflict avoidance.
// Grounded on dittofs's in-memory metadata store transaction type for
// the read-your-writes/commit-buffer shape, generalized to multi-version
// value chains the way the pack's MVCC reference map manages versions
// per key with a global monotonic clock.
package txn

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vexfs/vexfs/internal/logger"
	"github.com/vexfs/vexfs/pkg/block"
	"github.com/vexfs/vexfs/pkg/durability"
	"github.com/vexfs/vexfs/pkg/journal"
	"github.com/vexfs/vexfs/pkg/lock"
	"github.com/vexfs/vexfs/pkg/verrors"
)

// Key identifies one versioned record, scoped by the caller (e.g. a
// serialized inode id plus attribute name).
type Key string

// version is one committed value of a key, tagged with the commit
// timestamp that created it.
type version struct {
	createdAt uint64
	deletedAt uint64 // 0 means still live as of the newest reader
	value     []byte
}

// Status is a transaction's lifecycle state.
type Status int

const (
	StatusActive Status = iota
	StatusCommitted
	StatusAborted
)

// Isolation is a transaction's declared isolation level (§4.4).
type Isolation int

const (
	// IsolationReadUncommitted ignores MVCC visibility: reads see other
	// active transactions' uncommitted writes, falling back to the
	// newest committed version regardless of the reader's own snapshot.
	IsolationReadUncommitted Isolation = iota
	// IsolationReadCommitted re-establishes a fresh snapshot on every
	// read, so each statement sees whatever is committed as of that
	// moment.
	IsolationReadCommitted
	// IsolationRepeatableRead pins a snapshot at Begin; every read
	// within the transaction sees that one fixed point in time.
	IsolationRepeatableRead
	// IsolationSerializable behaves like repeatable-read for reads and
	// additionally validates the transaction's read/write sets against
	// every other active transaction's sets at commit time.
	IsolationSerializable
)

func (i Isolation) String() string {
	switch i {
	case IsolationReadUncommitted:
		return "read-uncommitted"
	case IsolationReadCommitted:
		return "read-committed"
	case IsolationRepeatableRead:
		return "repeatable-read"
	case IsolationSerializable:
		return "serializable"
	default:
		return "unknown"
	}
}

// Participant is an external resource enlisted in a transaction's
// two-phase commit (§4.4's "pending 2PC participants"). The journal and
// MVCC version store are always the coordinator's own implicit
// participant; Participant lets callers enlist additional resources
// (e.g. a remote boundary or a secondary index) that must all agree to
// prepare before any of the transaction's effects become visible.
type Participant interface {
	Prepare(ctx context.Context) error
	Commit(ctx context.Context) error
	Abort(ctx context.Context) error
}

// Manager is the ACID transaction manager: it owns the MVCC version
// store, coordinates with the lock manager for write locks, and drives
// the journal + durability manager for crash-safe commit.
type Manager struct {
	mu        sync.RWMutex
	versions  map[Key][]version
	clock     atomic.Uint64
	conflicts atomic.Uint64

	locks *lock.Manager
	jrnl  *journal.Journal
	dur   *durability.Manager

	txMu sync.Mutex
	txs  map[journal.TxnID]*Transaction
}

// New creates a transaction manager wired to the journal, lock manager
// and durability manager built during startup recovery.
func New(locks *lock.Manager, jrnl *journal.Journal, dur *durability.Manager) *Manager {
	return &Manager{
		versions: make(map[Key][]version),
		locks:    locks,
		jrnl:     jrnl,
		dur:      dur,
		txs:      make(map[journal.TxnID]*Transaction),
	}
}

// ConflictCount returns the number of serializable commits rejected for
// a read/write-set conflict since the manager was created.
func (m *Manager) ConflictCount() uint64 { return m.conflicts.Load() }

// Transaction is a single unit-of-work: it reads from a fixed snapshot
// established at Begin and buffers writes until Commit.
type Transaction struct {
	id        journal.TxnID
	mgr       *Manager
	snapshot  uint64
	isolation Isolation
	deadline  time.Time // zero means no timeout
	status    Status

	setMu    sync.RWMutex
	readSet  map[Key]struct{}
	writeSet map[Key][]byte
	deleted  map[Key]bool
	locked   map[Key]struct{}

	participants []Participant
}

// ID returns the transaction's id, also used as its lock-manager holder
// id and journal transaction id.
func (t *Transaction) ID() journal.TxnID { return t.id }

// Isolation returns the transaction's declared isolation level.
func (t *Transaction) Isolation() Isolation { return t.isolation }

// Enlist registers p as a two-phase-commit participant: Commit will not
// finalize the transaction's local effects until every enlisted
// participant has prepared successfully, and every participant's Commit
// is only invoked once the local commit has already succeeded.
func (t *Transaction) Enlist(p Participant) {
	t.participants = append(t.participants, p)
}

// Begin starts a new transaction at the given isolation level. A
// timeout of 0 means the transaction never times out on its own;
// otherwise Commit refuses and aborts once timeout has elapsed since
// Begin (§4.4 commit-path step 1).
func (m *Manager) Begin(ctx context.Context, isolation Isolation, timeout time.Duration) (*Transaction, error) {
	tid, err := m.jrnl.Begin(ctx, 0)
	if err != nil {
		return nil, err
	}
	t := &Transaction{
		id:        tid,
		mgr:       m,
		snapshot:  m.clock.Load(),
		isolation: isolation,
		status:    StatusActive,
		readSet:   make(map[Key]struct{}),
		writeSet:  make(map[Key][]byte),
		deleted:   make(map[Key]bool),
		locked:    make(map[Key]struct{}),
	}
	if timeout > 0 {
		t.deadline = time.Now().Add(timeout)
	}
	m.txMu.Lock()
	m.txs[tid] = t
	m.txMu.Unlock()
	return t, nil
}

// Get reads the version of key visible to t, preferring the
// transaction's own uncommitted write if present (read-your-writes).
// Visibility beyond that is governed by t's isolation level.
func (t *Transaction) Get(key Key) ([]byte, bool, error) {
	if t.status != StatusActive {
		return nil, false, verrors.New(verrors.Conflict, "transaction is no longer active")
	}

	t.setMu.Lock()
	t.readSet[key] = struct{}{}
	v, haveWrite := t.writeSet[key]
	isDeleted := t.deleted[key]
	t.setMu.Unlock()
	if haveWrite {
		return v, true, nil
	}
	if isDeleted {
		return nil, false, nil
	}

	if t.isolation == IsolationReadUncommitted {
		if dv, ok, del := t.mgr.dirtyRead(key, t.id); ok {
			return dv, true, nil
		} else if del {
			return nil, false, nil
		}
	}

	snapshot := t.snapshot
	if t.isolation == IsolationReadCommitted || t.isolation == IsolationReadUncommitted {
		snapshot = t.mgr.clock.Load()
	}

	t.mgr.mu.RLock()
	defer t.mgr.mu.RUnlock()
	chain := t.mgr.versions[key]
	for i := len(chain) - 1; i >= 0; i-- {
		v := chain[i]
		if v.createdAt <= snapshot && (v.deletedAt == 0 || v.deletedAt > snapshot) {
			return v.value, true, nil
		}
	}
	return nil, false, nil
}

// dirtyRead looks for key in every other active transaction's buffered
// write set, implementing read-uncommitted's dirty reads. skip excludes
// the calling transaction itself.
func (m *Manager) dirtyRead(key Key, skip journal.TxnID) (value []byte, found bool, deleted bool) {
	m.txMu.Lock()
	others := make([]*Transaction, 0, len(m.txs))
	for id, other := range m.txs {
		if id != skip && other.status == StatusActive {
			others = append(others, other)
		}
	}
	m.txMu.Unlock()

	for _, other := range others {
		other.setMu.RLock()
		v, ok := other.writeSet[key]
		del := other.deleted[key]
		other.setMu.RUnlock()
		if ok {
			return v, true, false
		}
		if del {
			deleted = true
		}
	}
	return nil, false, deleted
}

// Put buffers a write, acquiring an exclusive lock on key for the
// duration of the transaction to prevent concurrent writers from
// racing to commit (§4.4: write-write conflicts are avoided via locking
// rather than abort-and-retry).
func (t *Transaction) Put(ctx context.Context, key Key, value []byte) error {
	if t.status != StatusActive {
		return verrors.New(verrors.Conflict, "transaction is no longer active")
	}
	if _, ok := t.locked[key]; !ok {
		res := lock.ResourceID{Kind: lock.ResourceInode, ID: keyHash(key)}
		if err := t.mgr.locks.Acquire(ctx, lock.HolderID(t.id), res, lock.ModeExclusive); err != nil {
			return err
		}
		t.locked[key] = struct{}{}
	}
	t.setMu.Lock()
	delete(t.deleted, key)
	t.writeSet[key] = append([]byte(nil), value...)
	t.setMu.Unlock()
	return nil
}

// Delete buffers a tombstone for key.
func (t *Transaction) Delete(ctx context.Context, key Key) error {
	if t.status != StatusActive {
		return verrors.New(verrors.Conflict, "transaction is no longer active")
	}
	if _, ok := t.locked[key]; !ok {
		res := lock.ResourceID{Kind: lock.ResourceInode, ID: keyHash(key)}
		if err := t.mgr.locks.Acquire(ctx, lock.HolderID(t.id), res, lock.ModeExclusive); err != nil {
			return err
		}
		t.locked[key] = struct{}{}
	}
	t.setMu.Lock()
	delete(t.writeSet, key)
	t.deleted[key] = true
	t.setMu.Unlock()
	return nil
}

// Commit drives the §4.4 commit path: refuse a timed-out transaction,
// validate read/write-set conflicts at serializable isolation, journal
// the write set, then either a single-phase local commit or, if
// participants are enlisted, a full prepare→prepared→commit two-phase
// commit with locks released only once every participant has committed.
func (t *Transaction) Commit(ctx context.Context) error {
	if t.status != StatusActive {
		return verrors.New(verrors.Conflict, "transaction is no longer active")
	}
	if !t.deadline.IsZero() && time.Now().After(t.deadline) {
		t.rollback()
		return verrors.New(verrors.Timeout, "transaction exceeded its timeout")
	}

	if t.isolation == IsolationSerializable {
		if err := t.mgr.validateSerializable(t); err != nil {
			t.rollback()
			return err
		}
	}

	t.setMu.RLock()
	keys := make([]Key, 0, len(t.writeSet)+len(t.deleted))
	for k := range t.writeSet {
		keys = append(keys, k)
	}
	for k := range t.deleted {
		keys = append(keys, k)
	}
	t.setMu.RUnlock()
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	var touched []block.Number
	for _, k := range keys {
		t.setMu.RLock()
		newData, ok := t.writeSet[k]
		t.setMu.RUnlock()
		if !ok {
			newData = nil
		}
		blk := block.Number(keyHash(k))
		if err := t.mgr.jrnl.Log(ctx, t.id, journal.OpMetadataWrite, blk, block.TierMetadata, 0, nil, newData); err != nil {
			t.rollback()
			return err
		}
		touched = append(touched, blk)
	}

	if len(t.participants) > 0 {
		return t.commitTwoPhase(ctx, touched)
	}
	return t.commitSinglePhase(ctx, touched)
}

// commitSinglePhase is the §4.4 "otherwise" branch: committing →
// journal commit → release locks → committed, with no participants to
// coordinate.
func (t *Transaction) commitSinglePhase(ctx context.Context, touched []block.Number) error {
	if err := t.mgr.jrnl.Commit(ctx, t.id); err != nil {
		t.rollback()
		return err
	}
	t.finishDurabilityAndVersions(ctx, touched)
	t.status = StatusCommitted
	t.mgr.locks.ReleaseAll(lock.HolderID(t.id))
	t.mgr.forget(t.id)
	return nil
}

// commitTwoPhase runs §4.4's prepare → prepared → commit path. If any
// participant fails to prepare, every already-prepared participant is
// asked to abort and the local transaction aborts with no effects
// applied. Locks are only released once the local commit has landed and
// every participant's Commit has been invoked.
func (t *Transaction) commitTwoPhase(ctx context.Context, touched []block.Number) error {
	prepared := make([]Participant, 0, len(t.participants))
	for _, p := range t.participants {
		if err := p.Prepare(ctx); err != nil {
			for i := len(prepared) - 1; i >= 0; i-- {
				if abortErr := prepared[i].Abort(ctx); abortErr != nil {
					logger.WarnCtx(ctx, "participant abort failed during 2PC rollback", "txn", t.id, "error", abortErr)
				}
			}
			t.rollback()
			return verrors.Wrap(verrors.TransactionFailed, err, "participant failed to prepare")
		}
		prepared = append(prepared, p)
	}

	if err := t.mgr.jrnl.Commit(ctx, t.id); err != nil {
		for i := len(prepared) - 1; i >= 0; i-- {
			if abortErr := prepared[i].Abort(ctx); abortErr != nil {
				logger.WarnCtx(ctx, "participant abort failed after local commit failure", "txn", t.id, "error", abortErr)
			}
		}
		t.rollback()
		return err
	}
	t.finishDurabilityAndVersions(ctx, touched)

	for _, p := range t.participants {
		if err := p.Commit(ctx); err != nil {
			logger.WarnCtx(ctx, "participant commit failed after local commit", "txn", t.id, "participant_error", err)
		}
	}

	t.status = StatusCommitted
	t.mgr.locks.ReleaseAll(lock.HolderID(t.id))
	t.mgr.forget(t.id)
	return nil
}

// finishDurabilityAndVersions waits out the durability policy for
// touched blocks, then publishes the transaction's buffered writes and
// tombstones as new MVCC versions at a fresh commit timestamp.
func (t *Transaction) finishDurabilityAndVersions(ctx context.Context, touched []block.Number) {
	if t.mgr.dur != nil {
		if err := t.mgr.dur.EnsureDurability(ctx, t.id, touched, nil); err != nil {
			logger.WarnCtx(ctx, "durability wait failed after journal commit", "txn", t.id, "err", err)
		}
	}

	commitTS := t.mgr.clock.Add(1)

	t.setMu.RLock()
	defer t.setMu.RUnlock()
	t.mgr.mu.Lock()
	defer t.mgr.mu.Unlock()
	for k, v := range t.writeSet {
		t.mgr.versions[k] = append(t.mgr.versions[k], version{createdAt: commitTS, value: v})
	}
	for k := range t.deleted {
		chain := t.mgr.versions[k]
		if len(chain) > 0 {
			chain[len(chain)-1].deletedAt = commitTS
		}
	}
}

// validateSerializable implements §4.4 step 2: for each other active
// transaction, reject if our read-set intersects its write-set or vice
// versa.
func (m *Manager) validateSerializable(t *Transaction) error {
	t.setMu.RLock()
	readSet := make(map[Key]struct{}, len(t.readSet))
	for k := range t.readSet {
		readSet[k] = struct{}{}
	}
	writeSet := make(map[Key]struct{}, len(t.writeSet)+len(t.deleted))
	for k := range t.writeSet {
		writeSet[k] = struct{}{}
	}
	for k := range t.deleted {
		writeSet[k] = struct{}{}
	}
	t.setMu.RUnlock()

	m.txMu.Lock()
	others := make([]*Transaction, 0, len(m.txs))
	for id, other := range m.txs {
		if id != t.id && other.status == StatusActive {
			others = append(others, other)
		}
	}
	m.txMu.Unlock()

	for _, other := range others {
		other.setMu.RLock()
		conflict := false
		for k := range readSet {
			if _, ok := other.writeSet[k]; ok || other.deleted[k] {
				conflict = true
				break
			}
		}
		if !conflict {
			for k := range writeSet {
				if _, ok := other.readSet[k]; ok {
					conflict = true
					break
				}
			}
		}
		other.setMu.RUnlock()
		if conflict {
			m.conflicts.Add(1)
			return verrors.Newf(verrors.Conflict, "serializable conflict between transaction %d and %d", t.id, other.id)
		}
	}
	return nil
}

// Abort discards the transaction's write set and releases its locks
// without journaling anything, since Log only buffers in memory.
func (t *Transaction) Abort(ctx context.Context) error {
	if t.status != StatusActive {
		return nil
	}
	t.rollback()
	_ = t.mgr.jrnl.Abort(ctx, t.id)
	for i := len(t.participants) - 1; i >= 0; i-- {
		if err := t.participants[i].Abort(ctx); err != nil {
			logger.WarnCtx(ctx, "participant abort failed", "txn", t.id, "error", err)
		}
	}
	return nil
}

func (t *Transaction) rollback() {
	t.status = StatusAborted
	t.mgr.locks.ReleaseAll(lock.HolderID(t.id))
	t.mgr.forget(t.id)
}

func (m *Manager) forget(tid journal.TxnID) {
	m.txMu.Lock()
	delete(m.txs, tid)
	m.txMu.Unlock()
}

// keyHash folds a Key into a uint64 for lock-resource and block-number
// addressing; collisions only widen lock granularity, they never cause
// incorrect results since the MVCC store itself is keyed on the string.
func keyHash(k Key) uint64 {
	var h uint64 = 14695981039346656037
	for i := 0; i < len(k); i++ {
		h ^= uint64(k[i])
		h *= 1099511628211
	}
	return h
}
