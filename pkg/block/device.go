// Package block implements the Block Device Abstraction (§2 item 1):
// fixed-size block I/O with write barriers and sync primitives. Every
// higher layer — journal, durability manager, inode/file core, vector
// payload storage — addresses storage exclusively through this interface.
package block

import (
	"context"

	"github.com/vexfs/vexfs/pkg/verrors"
)

// Number is a 64-bit block address.
type Number uint64

// Tier distinguishes the durability class of a block, used by the
// durability manager to decide batching and barrier policy.
type Tier int

const (
	TierData Tier = iota
	TierMetadata
	TierJournal
)

func (t Tier) String() string {
	switch t {
	case TierData:
		return "data"
	case TierMetadata:
		return "metadata"
	case TierJournal:
		return "journal"
	default:
		return "unknown"
	}
}

// DefaultBlockSize is the fixed block size used unless a Device reports
// otherwise.
const DefaultBlockSize = 4096

// Device is the contract every block storage backend implements: fixed
// size block I/O, a write barrier, and a full sync. Implementations must
// be safe for concurrent use.
type Device interface {
	// BlockSize returns the fixed size, in bytes, of every block.
	BlockSize() uint32
	// TotalBlocks returns the device's capacity in blocks.
	TotalBlocks() uint64

	// ReadBlock returns a copy of the block's current contents. Reading an
	// unallocated block returns a zero-filled buffer, never an error.
	ReadBlock(ctx context.Context, num Number) ([]byte, error)
	// WriteBlock overwrites a block in place. len(data) must not exceed
	// BlockSize(); a short write is padded with zeros, never partially
	// applied.
	WriteBlock(ctx context.Context, num Number, tier Tier, data []byte) error

	// Barrier ensures all writes issued before the call are durable before
	// any write issued after the call can be observed as durable — i.e. it
	// orders persistence without itself guaranteeing every prior write has
	// landed. Used by the durability manager's strict policy.
	Barrier(ctx context.Context) error
	// Sync flushes all outstanding writes to stable storage and returns
	// only once they are durable.
	Sync(ctx context.Context) error

	// Close releases any underlying resources (file descriptors, mmaps).
	Close() error
}

func validateBlockArgs(num Number, total uint64, data []byte, blockSize uint32) error {
	if total != 0 && uint64(num) >= total {
		return verrors.Newf(verrors.Argument, "block %d out of range (total=%d)", num, total)
	}
	if len(data) > int(blockSize) {
		return verrors.Newf(verrors.Argument, "write of %d bytes exceeds block size %d", len(data), blockSize)
	}
	return nil
}

func padToBlockSize(data []byte, blockSize uint32) []byte {
	if len(data) == int(blockSize) {
		return data
	}
	out := make([]byte, blockSize)
	copy(out, data)
	return out
}
