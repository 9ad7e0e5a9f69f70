// Package lock implements the per-resource, multi-mode lock manager
// (§4.3): shared/exclusive/intent locks over resource identifiers with
// upgrade support, grounded on dittofs's pkg/metadata/lock resource
// table but generalized from its NFS-specific share-reservation modes
// to the spec's resource-kind/mode lattice.
package lock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vexfs/vexfs/pkg/verrors"
)

// Mode is a lock mode. Every mode has a row in the conflict matrix
// below.
type Mode int

const (
	ModeIntentShared Mode = iota
	ModeIntentExclusive
	ModeShared
	ModeSharedIntentExclusive
	ModeExclusive
)

// conflicts reports whether a and b cannot be held simultaneously by
// distinct holders.
func conflicts(a, b Mode) bool {
	// Standard multi-granularity lock compatibility matrix (IS, IX, S,
	// SIX, X), same ordering dittofs's resource table documents for its
	// share-mode reservations.
	compat := [5][5]bool{
		/*        IS     IX     S      SIX    X */
		/* IS  */ {true, true, true, true, false},
		/* IX  */ {true, true, false, false, false},
		/* S   */ {true, false, true, false, false},
		/* SIX */ {true, false, false, false, false},
		/* X   */ {false, false, false, false, false},
	}
	return !compat[a][b]
}

// ResourceKind distinguishes the domain objects that can be locked.
type ResourceKind int

const (
	ResourceInode ResourceKind = iota
	ResourceDirEntry
	ResourceBlockRange
	ResourceVectorIndex
)

// ResourceID identifies one lockable resource.
type ResourceID struct {
	Kind ResourceKind
	ID   uint64
}

// HolderID identifies a lock requester, typically a transaction id.
type HolderID uint64

type holderEntry struct {
	holder HolderID
	mode   Mode
}

type waiter struct {
	holder HolderID
	mode   Mode
	ready  chan error
}

type resourceState struct {
	holders []holderEntry
	waiters []*waiter
}

// Manager grants and releases locks, and exposes a wait-for snapshot for
// the deadlock detector.
type Manager struct {
	mu        sync.Mutex
	resources map[ResourceID]*resourceState
	// heldBy indexes which resources a holder currently has, so Release
	// and ReleaseAll can run without a full scan.
	heldBy map[HolderID]map[ResourceID]struct{}
}

// New creates an empty lock manager.
func New() *Manager {
	return &Manager{
		resources: make(map[ResourceID]*resourceState),
		heldBy:    make(map[HolderID]map[ResourceID]struct{}),
	}
}

// Acquire blocks until holder is granted mode on res, ctx is canceled, or
// the request times out. Re-entrant: a holder already holding a
// compatible-or-stronger mode on res returns immediately.
func (m *Manager) Acquire(ctx context.Context, holder HolderID, res ResourceID, mode Mode) error {
	m.mu.Lock()
	st, ok := m.resources[res]
	if !ok {
		st = &resourceState{}
		m.resources[res] = st
	}

	for i, h := range st.holders {
		if h.holder == holder {
			if mode > h.mode {
				st.holders[i].mode = mode
			}
			m.trackHeld(holder, res)
			m.mu.Unlock()
			return nil
		}
	}

	if !m.hasConflict(st, mode) {
		st.holders = append(st.holders, holderEntry{holder: holder, mode: mode})
		m.trackHeld(holder, res)
		m.mu.Unlock()
		return nil
	}

	w := &waiter{holder: holder, mode: mode, ready: make(chan error, 1)}
	st.waiters = append(st.waiters, w)
	m.mu.Unlock()

	select {
	case err := <-w.ready:
		return err
	case <-ctx.Done():
		m.mu.Lock()
		m.removeWaiter(st, w)
		m.mu.Unlock()
		return verrors.Wrap(verrors.Timeout, ctx.Err(), "lock acquire canceled")
	}
}

func (m *Manager) hasConflict(st *resourceState, mode Mode) bool {
	for _, h := range st.holders {
		if conflicts(h.mode, mode) {
			return true
		}
	}
	return false
}

func (m *Manager) removeWaiter(st *resourceState, target *waiter) {
	out := st.waiters[:0]
	for _, w := range st.waiters {
		if w != target {
			out = append(out, w)
		}
	}
	st.waiters = out
}

func (m *Manager) trackHeld(holder HolderID, res ResourceID) {
	set, ok := m.heldBy[holder]
	if !ok {
		set = make(map[ResourceID]struct{})
		m.heldBy[holder] = set
	}
	set[res] = struct{}{}
}

// Release drops holder's lock on res and promotes the next compatible
// batch of waiters.
func (m *Manager) Release(holder HolderID, res ResourceID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.resources[res]
	if !ok {
		return
	}
	out := st.holders[:0]
	for _, h := range st.holders {
		if h.holder != holder {
			out = append(out, h)
		}
	}
	st.holders = out
	delete(m.heldBy[holder], res)

	m.promote(st, res)
	if len(st.holders) == 0 && len(st.waiters) == 0 {
		delete(m.resources, res)
	}
}

// ReleaseAll drops every lock held by holder, for transaction abort/commit.
func (m *Manager) ReleaseAll(holder HolderID) {
	m.mu.Lock()
	held := m.heldBy[holder]
	resources := make([]ResourceID, 0, len(held))
	for r := range held {
		resources = append(resources, r)
	}
	m.mu.Unlock()

	for _, r := range resources {
		m.Release(holder, r)
	}
}

func (m *Manager) promote(st *resourceState, res ResourceID) {
	var remaining []*waiter
	for i, w := range st.waiters {
		if m.hasConflict(st, w.mode) {
			remaining = append(remaining, st.waiters[i:]...)
			break
		}
		st.holders = append(st.holders, holderEntry{holder: w.holder, mode: w.mode})
		m.trackHeld(w.holder, res)
		w.ready <- nil
	}
	st.waiters = remaining
}

// WaitEdge is one entry in the wait-for graph: waiter blocked behind
// holder over a shared resource.
type WaitEdge struct {
	Waiter   HolderID
	Holder   HolderID
	Resource ResourceID
}

// WaitForGraph returns a snapshot of every waiter->holder edge, the input
// the deadlock detector's cycle search consumes (§4.3).
func (m *Manager) WaitForGraph() []WaitEdge {
	m.mu.Lock()
	defer m.mu.Unlock()
	var edges []WaitEdge
	for res, st := range m.resources {
		for _, w := range st.waiters {
			for _, h := range st.holders {
				if h.holder != w.holder {
					edges = append(edges, WaitEdge{Waiter: w.holder, Holder: h.holder, Resource: res})
				}
			}
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Waiter != edges[j].Waiter {
			return edges[i].Waiter < edges[j].Waiter
		}
		return edges[i].Holder < edges[j].Holder
	})
	return edges
}

// AbortWaiter forcibly fails a pending Acquire for holder on res, used by
// the deadlock detector to break a cycle by picking a victim.
func (m *Manager) AbortWaiter(holder HolderID, res ResourceID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.resources[res]
	if !ok {
		return false
	}
	for _, w := range st.waiters {
		if w.holder == holder {
			m.removeWaiter(st, w)
			w.ready <- verrors.New(verrors.Conflict, "lock request aborted to break deadlock")
			return true
		}
	}
	return false
}

// AcquireTimeout is a convenience wrapper around Acquire with a deadline,
// matching the bounded-wait requirement in §4.3.
func (m *Manager) AcquireTimeout(ctx context.Context, holder HolderID, res ResourceID, mode Mode, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return m.Acquire(ctx, holder, res, mode)
}
