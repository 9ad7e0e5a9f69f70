package block

import (
	"context"
	"sync"
)

// MemoryDevice is an in-memory Device, used by tests and by any component
// that does not need crash durability (e.g. the ANNS recall test suite).
// Sync and Barrier are no-ops beyond bookkeeping since there is nothing
// durable to flush.
type MemoryDevice struct {
	mu        sync.RWMutex
	blockSize uint32
	total     uint64
	blocks    map[Number][]byte
	syncs     int
	barriers  int
}

// NewMemoryDevice creates an in-memory device with the given block size and
// capacity in blocks. total == 0 means unbounded.
func NewMemoryDevice(blockSize uint32, total uint64) *MemoryDevice {
	if blockSize == 0 {
		blockSize = DefaultBlockSize
	}
	return &MemoryDevice{
		blockSize: blockSize,
		total:     total,
		blocks:    make(map[Number][]byte),
	}
}

func (d *MemoryDevice) BlockSize() uint32  { return d.blockSize }
func (d *MemoryDevice) TotalBlocks() uint64 { return d.total }

func (d *MemoryDevice) ReadBlock(ctx context.Context, num Number) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validateBlockArgs(num, d.total, nil, d.blockSize); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	b, ok := d.blocks[num]
	if !ok {
		return make([]byte, d.blockSize), nil
	}
	out := make([]byte, d.blockSize)
	copy(out, b)
	return out, nil
}

func (d *MemoryDevice) WriteBlock(ctx context.Context, num Number, _ Tier, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateBlockArgs(num, d.total, data, d.blockSize); err != nil {
		return err
	}
	padded := padToBlockSize(data, d.blockSize)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.blocks[num] = padded
	return nil
}

func (d *MemoryDevice) Barrier(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	d.barriers++
	d.mu.Unlock()
	return nil
}

func (d *MemoryDevice) Sync(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	d.syncs++
	d.mu.Unlock()
	return nil
}

func (d *MemoryDevice) Close() error { return nil }

// Stats returns the number of Sync/Barrier calls observed, for tests that
// assert on durability-manager batching behavior.
func (d *MemoryDevice) Stats() (syncs, barriers int) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.syncs, d.barriers
}

// SimulateCrash discards the blocks named in dirty, for callers that track
// their own write set to emulate the "commit marker not flushed" scenario
// from the testable properties. MemoryDevice has no separate
// durable/volatile region, so blocks not named in dirty survive regardless
// of whether Sync was called.
func (d *MemoryDevice) SimulateCrash(dirty []Number) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, n := range dirty {
		delete(d.blocks, n)
	}
}

var _ Device = (*MemoryDevice)(nil)
