package block_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vexfs/vexfs/pkg/block"
)

func testDevices(t *testing.T) map[string]block.Device {
	t.Helper()
	dir := t.TempDir()
	fd, err := block.OpenFileDevice(filepath.Join(dir, "dev.img"), 512, 64)
	require.NoError(t, err)
	t.Cleanup(func() { fd.Close() })

	return map[string]block.Device{
		"memory": block.NewMemoryDevice(512, 64),
		"file":   fd,
	}
}

func TestWriteThenReadReturnsWrittenBytes(t *testing.T) {
	ctx := context.Background()
	for name, dev := range testDevices(t) {
		t.Run(name, func(t *testing.T) {
			data := make([]byte, 512)
			for i := range data {
				data[i] = 0x01
			}
			require.NoError(t, dev.WriteBlock(ctx, 3, block.TierData, data))
			got, err := dev.ReadBlock(ctx, 3)
			require.NoError(t, err)
			assert.Equal(t, data, got)
		})
	}
}

func TestUnwrittenBlockReadsZero(t *testing.T) {
	ctx := context.Background()
	for name, dev := range testDevices(t) {
		t.Run(name, func(t *testing.T) {
			got, err := dev.ReadBlock(ctx, 5)
			require.NoError(t, err)
			for _, b := range got {
				assert.Zero(t, b)
			}
		})
	}
}

func TestOutOfRangeBlockRejected(t *testing.T) {
	ctx := context.Background()
	for name, dev := range testDevices(t) {
		t.Run(name, func(t *testing.T) {
			_, err := dev.ReadBlock(ctx, 1000)
			assert.Error(t, err)
		})
	}
}

func TestShortWriteIsZeroPadded(t *testing.T) {
	ctx := context.Background()
	dev := block.NewMemoryDevice(512, 8)
	require.NoError(t, dev.WriteBlock(ctx, 0, block.TierData, []byte("hi")))
	got, err := dev.ReadBlock(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, byte('h'), got[0])
	assert.Equal(t, byte('i'), got[1])
	assert.Zero(t, got[2])
}

func TestMemoryDeviceTracksSyncAndBarrier(t *testing.T) {
	ctx := context.Background()
	dev := block.NewMemoryDevice(512, 8)
	require.NoError(t, dev.Sync(ctx))
	require.NoError(t, dev.Barrier(ctx))
	syncs, barriers := dev.Stats()
	assert.Equal(t, 1, syncs)
	assert.Equal(t, 1, barriers)
}
