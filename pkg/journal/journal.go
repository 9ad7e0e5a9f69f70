package journal

import (
	"context"
	"sync"
	"time"

	"github.com/vexfs/vexfs/internal/logger"
	"github.com/vexfs/vexfs/pkg/block"
	"github.com/vexfs/vexfs/pkg/verrors"
)

// BeginFlags modifies how a transaction's journal records are treated.
// Reserved for callers (e.g. the transaction manager marking a transaction
// as part of a 2PC participant set); the journal itself does not interpret
// these bits today.
type BeginFlags uint32

// CommittedTxn is one fully-committed transaction recovered from the
// journal, ready for the caller to redo onto the real block device.
type CommittedTxn struct {
	TxnID TxnID
	Ops   []*OperationRecord
}

type txnBuilder struct {
	id  TxnID
	ops []*OperationRecord
	seq uint32
}

// Journal is the append-only, crash-recoverable log of transaction
// records described in §4.1. Block 0 of dev holds the Superblock; blocks
// 1..N-1 hold the circular record body.
type Journal struct {
	mu sync.Mutex

	dev        block.Device
	blockSize  uint32
	bodyBlocks uint64
	bodyBytes  uint64

	sb Superblock

	nextTxnID uint64
	building  map[TxnID]*txnBuilder

	clock func() time.Time
}

// Open initializes a Journal over dev. If the device holds a superblock in
// a non-clean state, Open runs recovery and returns the committed
// transactions the caller must redo before accepting new writes. A
// pristine (all-zero) device is formatted fresh.
func Open(ctx context.Context, dev block.Device) (*Journal, []CommittedTxn, error) {
	if dev.TotalBlocks() < 2 {
		return nil, nil, verrors.New(verrors.Argument, "journal device needs at least 2 blocks")
	}
	j := &Journal{
		dev:        dev,
		blockSize:  dev.BlockSize(),
		bodyBlocks: dev.TotalBlocks() - 1,
		building:   make(map[TxnID]*txnBuilder),
		clock:      time.Now,
	}
	j.bodyBytes = j.bodyBlocks * uint64(j.blockSize)

	raw, err := dev.ReadBlock(ctx, 0)
	if err != nil {
		return nil, nil, err
	}

	var recovered []CommittedTxn
	if isZero(raw) {
		j.sb = Superblock{
			Magic:        SuperblockMagic,
			VersionMajor: VersionMajor,
			VersionMinor: VersionMinor,
			BlockSize:    j.blockSize,
			TotalBlocks:  dev.TotalBlocks(),
			State:        StateClean,
		}
		if err := j.writeSuperblock(ctx); err != nil {
			return nil, nil, err
		}
	} else {
		sb, err := decodeSuperblock(raw)
		if err != nil {
			return nil, nil, err
		}
		j.sb = *sb
		j.nextTxnID = uint64(sb.FirstCommitID)
		if sb.State != StateClean {
			logger.WarnCtx(ctx, "journal not clean, recovering", "state", sb.State)
			recovered, err = j.recoverLocked(ctx)
			if err != nil {
				return nil, nil, err
			}
			j.sb.State = StateClean
			if err := j.writeSuperblock(ctx); err != nil {
				return nil, nil, err
			}
		}
	}
	return j, recovered, nil
}

func (j *Journal) writeSuperblock(ctx context.Context) error {
	buf := j.sb.encode()
	return j.dev.WriteBlock(ctx, 0, block.TierJournal, buf)
}

// physicalBlock maps a logical body byte offset to a device block number.
func (j *Journal) physicalBlock(logicalOffset uint64) block.Number {
	return block.Number(1 + (logicalOffset%j.bodyBytes)/uint64(j.blockSize))
}

// Begin starts a new transaction and returns its id.
func (j *Journal) Begin(_ context.Context, _ BeginFlags) (TxnID, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.nextTxnID++
	id := TxnID(j.nextTxnID)
	j.building[id] = &txnBuilder{id: id}
	return id, nil
}

// Log appends an operation to tid's in-memory write buffer. Nothing is
// written to the device until Commit.
func (j *Journal) Log(_ context.Context, tid TxnID, op OpType, blk block.Number, tier block.Tier, offset uint32, old, newData []byte) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	b, ok := j.building[tid]
	if !ok {
		return verrors.Newf(verrors.NotFound, "unknown transaction %d", tid)
	}
	b.seq++
	rec := &OperationRecord{
		Header: RecordHeader{
			TxnID:     tid,
			Sequence:  b.seq,
			Timestamp: j.clock().UnixNano(),
		},
		Op:          op,
		Block:       blk,
		Tier:        tier,
		Offset:      offset,
		Old:         append([]byte(nil), old...),
		New:         append([]byte(nil), newData...),
		OldChecksum: crc32Of(old),
		NewChecksum: crc32Of(newData),
	}
	b.ops = append(b.ops, rec)
	return nil
}

// Abort discards tid's in-memory write buffer. Since nothing reaches the
// device before Commit, aborting a still-building transaction never
// touches durable state.
func (j *Journal) Abort(_ context.Context, tid TxnID) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, ok := j.building[tid]; !ok {
		return verrors.Newf(verrors.NotFound, "unknown transaction %d", tid)
	}
	delete(j.building, tid)
	return nil
}

// Commit serializes tid's operations followed by a commit record, writes
// them to the device body, and syncs before returning. Returns
// verrors.Resource (no-space) if the transaction does not fit in the free
// journal space; the caller must checkpoint and retry.
func (j *Journal) Commit(ctx context.Context, tid TxnID) error {
	j.mu.Lock()
	b, ok := j.building[tid]
	if !ok {
		j.mu.Unlock()
		return verrors.Newf(verrors.NotFound, "unknown transaction %d", tid)
	}

	var payload []byte
	var txnChecksum uint32
	for _, op := range b.ops {
		op.Header.TxnID = tid
		encoded := encodeOperation(op)
		payload = append(payload, encoded...)
		txnChecksum ^= op.Header.Checksum
	}
	commit := &CommitRecord{
		Header: RecordHeader{
			TxnID:     tid,
			Sequence:  b.seq + 1,
			Timestamp: j.clock().UnixNano(),
		},
		OpCount:     uint32(len(b.ops)),
		TxnChecksum: txnChecksum,
	}
	payload = append(payload, encodeCommit(commit)...)

	cost := roundUpToBlock(uint64(len(payload)), j.blockSize)
	free := j.bodyBytes - (j.sb.Head - j.sb.Tail)
	if cost > free {
		j.mu.Unlock()
		return verrors.Newf(verrors.Resource, "journal out of space: need %d, have %d free", cost, free)
	}

	startOffset := j.sb.Head
	if err := j.writeBody(ctx, startOffset, payload); err != nil {
		j.mu.Unlock()
		return err
	}
	j.sb.Head = startOffset + cost
	j.sb.State = StateDirty
	if err := j.writeSuperblock(ctx); err != nil {
		j.mu.Unlock()
		return err
	}
	j.mu.Unlock()

	if err := j.dev.Sync(ctx); err != nil {
		return verrors.Wrap(verrors.Resource, err, "sync journal commit")
	}
	j.mu.Lock()
	delete(j.building, tid)
	j.mu.Unlock()
	return nil
}

func roundUpToBlock(n uint64, blockSize uint32) uint64 {
	bs := uint64(blockSize)
	if n%bs == 0 {
		return n
	}
	return (n/bs + 1) * bs
}

// writeBody writes data starting at logical offset, performing
// read-modify-write on any block it only partially covers.
func (j *Journal) writeBody(ctx context.Context, offset uint64, data []byte) error {
	remaining := data
	pos := offset
	for len(remaining) > 0 {
		blk := j.physicalBlock(pos)
		within := pos % uint64(j.blockSize)
		n := uint64(j.blockSize) - within
		if n > uint64(len(remaining)) {
			n = uint64(len(remaining))
		}
		existing, err := j.dev.ReadBlock(ctx, blk)
		if err != nil {
			return err
		}
		copy(existing[within:], remaining[:n])
		if err := j.dev.WriteBlock(ctx, blk, block.TierJournal, existing); err != nil {
			return err
		}
		remaining = remaining[n:]
		pos += n
	}
	return nil
}

func (j *Journal) readBody(ctx context.Context, offset, length uint64) ([]byte, error) {
	out := make([]byte, 0, length)
	pos := offset
	for uint64(len(out)) < length {
		blk := j.physicalBlock(pos)
		within := pos % uint64(j.blockSize)
		n := uint64(j.blockSize) - within
		if n > length-uint64(len(out)) {
			n = length - uint64(len(out))
		}
		b, err := j.dev.ReadBlock(ctx, blk)
		if err != nil {
			return nil, err
		}
		out = append(out, b[within:within+n]...)
		pos += n
	}
	return out, nil
}

// AdvanceTail reclaims journal space up to newTail, called by the
// durability manager once it has certified everything before newTail is
// durable on the real data/metadata blocks.
func (j *Journal) AdvanceTail(_ context.Context, newTail uint64) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if newTail < j.sb.Tail || newTail > j.sb.Head {
		return verrors.New(verrors.Argument, "invalid journal tail advance")
	}
	j.sb.Tail = newTail
	return nil
}

// Head returns the current write offset, for durability-manager checkpoint
// bookkeeping.
func (j *Journal) Head() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.sb.Head
}

// Close marks the journal clean and syncs the superblock. A journal
// reopened after a clean Close needs no recovery scan.
func (j *Journal) Close(ctx context.Context) error {
	j.mu.Lock()
	j.sb.State = StateClean
	err := j.writeSuperblock(ctx)
	j.mu.Unlock()
	if err != nil {
		return err
	}
	return j.dev.Sync(ctx)
}
