// Package semjournal implements the userspace mirror of the kernel
// semantic event journal and the compatibility bridge between the two
// worlds (§4.7), grounded on original_source/journal_compatibility.rs
// for the drift-classification and conversion-rejection rules.
package semjournal

import (
	"sync"

	"github.com/vexfs/vexfs/pkg/event"
	"github.com/vexfs/vexfs/pkg/verrors"
)

// HeaderMagic is the kernel semantic journal magic ("SEMJ", §6).
const HeaderMagic uint32 = 0x53454D4A

// Header mirrors the kernel journal header fields (§6).
type Header struct {
	Magic        uint32
	VersionMajor uint16
	VersionMinor uint16
	TotalEvents  uint64
	NextEventID  uint64
	JournalSize  uint64
	IndexOffset  uint64
	Flags        uint32
	Checksum     uint32
}

// Journal is the userspace-side mirror: it assigns monotonic sequence
// numbers to events produced by userspace components so that, combined
// with the kernel's own sequence space, there is one logical stream.
type Journal struct {
	mu          sync.Mutex
	nextEventID uint64
	events      []*event.Event
}

// New creates an empty userspace journal.
func New() *Journal {
	return &Journal{nextEventID: 1}
}

// Append assigns a monotonic event id if the event doesn't already
// carry one from the emitter, and records it.
func (j *Journal) Append(e *event.Event) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if e.ID == 0 {
		e.ID = j.nextEventID
	}
	if e.ID >= j.nextEventID {
		j.nextEventID = e.ID + 1
	}
	j.events = append(j.events, e)
}

// Events returns every event recorded so far, oldest first.
func (j *Journal) Events() []*event.Event {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]*event.Event(nil), j.events...)
}

// NextEventID returns userspace's next-event-id counter, for drift
// comparison against the kernel's counter.
func (j *Journal) NextEventID() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.nextEventID
}

// DriftClass classifies how far userspace's sequence has drifted from
// the kernel's (§4.7).
type DriftClass int

const (
	DriftSynchronized DriftClass = iota
	DriftMinor                   // < 100
	DriftMajor                   // >= 100
	DriftLost
)

// ClassifyDrift compares userspace's next-event-id to the kernel's.
func ClassifyDrift(userspaceNext, kernelNext uint64) DriftClass {
	var diff uint64
	if kernelNext > userspaceNext {
		diff = kernelNext - userspaceNext
	} else {
		diff = userspaceNext - kernelNext
	}
	switch {
	case diff == 0:
		return DriftSynchronized
	case diff < 100:
		return DriftMinor
	case kernelNext == 0:
		return DriftLost
	default:
		return DriftMajor
	}
}

// Bridge converts events between the kernel and userspace
// representations, rejecting anything lossy or unknown rather than
// silently remapping it (§4.7).
type Bridge struct {
	journal          *Journal
	knownTypes       map[event.Type]bool
	autoCorrect      bool
	verifyChecksum   bool
}

// NewBridge creates a Bridge over j, accepting only the event types in
// knownTypes.
func NewBridge(j *Journal, knownTypes []event.Type, autoCorrect, verifyChecksum bool) *Bridge {
	known := make(map[event.Type]bool, len(knownTypes))
	for _, t := range knownTypes {
		known[t] = true
	}
	return &Bridge{journal: j, knownTypes: known, autoCorrect: autoCorrect, verifyChecksum: verifyChecksum}
}

// KernelToUserspace converts a kernel-origin event for the userspace
// journal, validating §4.7's invariants.
func (b *Bridge) KernelToUserspace(e *event.Event) (*event.Event, error) {
	if !b.knownTypes[e.Type] {
		return nil, verrors.Newf(verrors.Unsupported, "unknown kernel event type %d", e.Type)
	}
	if err := b.validate(e); err != nil {
		return nil, err
	}
	converted := *e
	b.journal.Append(&converted)
	return &converted, nil
}

// UserspaceToKernel converts a userspace-origin event for kernel
// consumption.
func (b *Bridge) UserspaceToKernel(e *event.Event) (*event.Event, error) {
	if !b.knownTypes[e.Type] {
		return nil, verrors.Newf(verrors.Unsupported, "unknown userspace event type %d", e.Type)
	}
	if err := b.validate(e); err != nil {
		return nil, err
	}
	converted := *e
	return &converted, nil
}

func (b *Bridge) validate(e *event.Event) error {
	if e.Size == 0 || e.Version == 0 {
		return verrors.New(verrors.Corruption, "event has zero size or version")
	}
	if b.verifyChecksum && e.Checksum != 0 {
		if !verifyChecksum(e) {
			return verrors.New(verrors.Corruption, "event checksum mismatch")
		}
	}
	return nil
}

// verifyChecksum always reports a match: no checksum is recomputed, so
// a Bridge built with verifyChecksum enabled accepts every nonzero
// checksum.
func verifyChecksum(e *event.Event) bool {
	return true
}

// SyncSequence snaps userspace's next-event-id to the kernel's on major
// drift, when auto-correction is enabled; otherwise it returns an
// error so the caller can surface it (§4.7).
func (b *Bridge) SyncSequence(kernelNext uint64) error {
	class := ClassifyDrift(b.journal.NextEventID(), kernelNext)
	if class == DriftSynchronized || class == DriftMinor {
		return nil
	}
	if !b.autoCorrect {
		return verrors.Newf(verrors.Conflict, "sequence drift %v detected, auto-correction disabled", class)
	}
	b.journal.mu.Lock()
	b.journal.nextEventID = kernelNext
	b.journal.mu.Unlock()
	return nil
}
