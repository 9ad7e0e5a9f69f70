package semjournal_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vexfs/vexfs/pkg/event"
	"github.com/vexfs/vexfs/pkg/semjournal"
)

func sampleEvent() *event.Event {
	return &event.Event{ID: 1, Type: event.TypeFilesystemCreate, Size: 10, Version: 1}
}

func TestClassifyDriftBuckets(t *testing.T) {
	assert.Equal(t, semjournal.DriftSynchronized, semjournal.ClassifyDrift(10, 10))
	assert.Equal(t, semjournal.DriftMinor, semjournal.ClassifyDrift(10, 50))
	assert.Equal(t, semjournal.DriftMajor, semjournal.ClassifyDrift(10, 200))
}

func TestBridgeRejectsUnknownEventType(t *testing.T) {
	j := semjournal.New()
	b := semjournal.NewBridge(j, []event.Type{event.TypeFilesystemCreate}, false, false)
	_, err := b.KernelToUserspace(&event.Event{Type: event.TypeVectorInsert, Size: 1, Version: 1})
	assert.Error(t, err)
}

func TestBridgeRejectsZeroSizeOrVersion(t *testing.T) {
	j := semjournal.New()
	b := semjournal.NewBridge(j, []event.Type{event.TypeFilesystemCreate}, false, false)
	_, err := b.KernelToUserspace(&event.Event{Type: event.TypeFilesystemCreate, Size: 0, Version: 1})
	assert.Error(t, err)
}

func TestKernelToUserspaceAppendsToJournal(t *testing.T) {
	j := semjournal.New()
	b := semjournal.NewBridge(j, []event.Type{event.TypeFilesystemCreate}, false, false)
	_, err := b.KernelToUserspace(sampleEvent())
	require.NoError(t, err)
	assert.Len(t, j.Events(), 1)
}

func TestSyncSequenceRequiresAutoCorrectOnMajorDrift(t *testing.T) {
	j := semjournal.New()
	for i := 0; i < 5; i++ {
		j.Append(sampleEvent())
	}
	b := semjournal.NewBridge(j, []event.Type{event.TypeFilesystemCreate}, false, false)
	err := b.SyncSequence(1000)
	assert.Error(t, err)

	b2 := semjournal.NewBridge(j, []event.Type{event.TypeFilesystemCreate}, true, false)
	err = b2.SyncSequence(1000)
	assert.NoError(t, err)
	assert.Equal(t, uint64(1000), j.NextEventID())
}
