// Package journal implements the Write-Ahead Journal (§4.1): an append-only
// log of transaction records with commit markers and checksums, backed by
// a block.Device. The ACID Transaction Manager (pkg/txn) is the only
// expected caller of Begin/Log/Commit/Abort/Recover; this package owns
// none of the MVCC or locking semantics layered on top of it.
package journal

import (
	"hash/crc32"

	"github.com/vexfs/vexfs/pkg/block"
)

// TxnID identifies one journal transaction.
type TxnID uint64

// OpType enumerates the kinds of journaled operations, refining spec.md's
// generic "operation" record with the concrete enumeration from the
// original Rust journal (rust/src/storage/journal.rs).
type OpType uint32

const (
	OpMetadataWrite OpType = iota + 1
	OpDataWrite
	OpBlockAlloc
	OpBlockFree
	OpInodeCreate
	OpInodeDelete
	OpDirEntryAdd
	OpDirEntryRemove
)

func (t OpType) String() string {
	switch t {
	case OpMetadataWrite:
		return "metadata-write"
	case OpDataWrite:
		return "data-write"
	case OpBlockAlloc:
		return "block-alloc"
	case OpBlockFree:
		return "block-free"
	case OpInodeCreate:
		return "inode-create"
	case OpInodeDelete:
		return "inode-delete"
	case OpDirEntryAdd:
		return "dir-entry-add"
	case OpDirEntryRemove:
		return "dir-entry-remove"
	default:
		return "unknown"
	}
}

// RecordKind distinguishes an operation record from the commit record that
// terminates a transaction.
type RecordKind uint32

const (
	RecordOperation RecordKind = iota + 1
	RecordCommit
)

// recordMagic tags every on-disk record header for sanity checking during
// recovery. This is an internal format, distinct from the bit-compatible
// kernel/userspace semantic event header specified in §6.
const recordMagic uint32 = 0x56454A52 // "VEJR"

// RecordHeader is the fixed-size header prefixing every journal record.
type RecordHeader struct {
	Magic     uint32
	Kind      RecordKind
	TxnID     TxnID
	Sequence  uint32 // intra-transaction sequence number
	Length    uint32 // total record length including header
	Checksum  uint32 // CRC32 over this header's encoded bytes, excluding this field
	Flags     uint32
	Timestamp int64 // unix nanoseconds
}

// OperationRecord captures one journaled block mutation: the block's
// contents both before (Old) and after (New) the write, each individually
// checksummed so recovery can redo (apply New) or undo (restore Old).
type OperationRecord struct {
	Header    RecordHeader
	Op        OpType
	Block     block.Number
	Tier      block.Tier
	Offset    uint32
	Old       []byte
	New       []byte
	OldChecksum uint32
	NewChecksum uint32
}

// CommitRecord terminates a transaction. TxnChecksum must equal the XOR of
// every operation record's header checksum in the transaction for the
// transaction to be considered valid during recovery.
type CommitRecord struct {
	Header      RecordHeader
	OpCount     uint32
	TxnChecksum uint32
}

func crc32Of(b []byte) uint32 {
	return crc32.ChecksumIEEE(b)
}
