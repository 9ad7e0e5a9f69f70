// Package event defines the semantic event model (§3) and its
// bit-compatible on-wire header (§6), grounded on
// original_source/kernel_hooks.rs for the emission call shape
// (emit(event_type, context, flags, priority, payload, metadata)) and
// on the exact field order and widths §6 specifies for the kernel
// event header, since that layout must remain byte-identical across
// the kernel/userspace boundary.
package event

import (
	"sync/atomic"
	"time"
)

// Type is a semantic event type code. The concrete numbering is left
// to deployment-specific registries; this layer only requires it be a
// u32 the header can carry unchanged.
type Type uint32

const (
	TypeFilesystemCreate Type = iota + 1
	TypeFilesystemWrite
	TypeFilesystemDelete
	TypeFilesystemRename
	TypeVectorInsert
	TypeVectorDelete
	TypeGraphEdgeCreate
	TypeGraphEdgeDelete
)

// Priority encodes §6's fixed priority levels.
type Priority uint32

const (
	PriorityLow      Priority = 1
	PriorityNormal   Priority = 2
	PriorityHigh     Priority = 3
	PriorityCritical Priority = 4
)

// Flags are the per-event boolean attributes §3 lists.
type Flags uint32

const (
	FlagAtomic Flags = 1 << iota
	FlagTransactional
	FlagCausal
	FlagAgentVisible
	FlagDeterministic
	FlagCompressed
	FlagIndexed
	FlagReplicated
)

// Timestamp is the (seconds, nanoseconds, sequence, cpu, pid) tuple
// §3 attaches to every event.
type Timestamp struct {
	Sec      int64
	Nsec     int32
	Sequence uint64
	CPU      uint32
	PID      uint32
}

// Context is a typed context bundle carried alongside an event; kept
// opaque at this layer per §9's "quantisation ... treat as opaque
// bytes" spirit applied to anything this layer need not interpret.
type Context map[string]string

// Event is the in-memory semantic event (§3).
type Event struct {
	ID               uint64
	Type             Type
	Subtype          uint32
	Timestamp        Timestamp
	GlobalSequence   uint64
	LocalSequence    uint64
	Flags            Flags
	Priority         Priority
	Size             uint32
	Version          uint32
	Checksum         uint32
	CompressionType  uint32
	EncryptionType   uint32
	CausalityLinks   []uint64
	ParentID         uint64
	RootCauseID      uint64
	AgentVisibility  uint64
	AgentRelevance   uint32
	ReplayPriority   uint32
	Context          Context
	Payload          []byte
	Metadata         map[string]string
}

// idCounter backs Emitter's monotonic id and global-sequence
// assignment.
type idCounter struct {
	next    atomic.Uint64
	globalN atomic.Uint64
}

// Emitter assigns identifiers and timestamps and is the sole
// constructor for outbound events (§4.8: "assigns identifiers, stamps
// timestamps").
type Emitter struct {
	ids   idCounter
	nowFn func() time.Time
	pid   uint32
}

// NewEmitter creates an Emitter. pid identifies the emitting process
// for the timestamp tuple.
func NewEmitter(pid uint32) *Emitter {
	return &Emitter{nowFn: time.Now, pid: pid}
}

// Emit builds a new Event with freshly assigned id/sequence/timestamp.
func (e *Emitter) Emit(typ Type, ctx Context, flags Flags, priority Priority, payload []byte, metadata map[string]string) *Event {
	id := e.ids.next.Add(1)
	seq := e.ids.globalN.Add(1)
	now := e.nowFn()
	return &Event{
		ID:   id,
		Type: typ,
		Timestamp: Timestamp{
			Sec:      now.Unix(),
			Nsec:     int32(now.Nanosecond()),
			Sequence: seq,
			PID:      e.pid,
		},
		GlobalSequence: seq,
		LocalSequence:  seq,
		Flags:          flags,
		Priority:       priority,
		Size:           uint32(len(payload)),
		Version:        1,
		Context:        ctx,
		Payload:        payload,
		Metadata:       metadata,
	}
}
