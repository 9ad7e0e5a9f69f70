// Package cluster specifies the narrow interface between the propagation
// manager and a distributed cluster coordinator. Only this interface is
// in scope: who the leader is, what the membership looks like, and how to
// replicate an opaque command. pkg/cluster/raft gives one concrete,
// testable implementation; other coordinators (or none, for a single-node
// deployment) can satisfy the same interface.
package cluster

import "context"

// Member describes one node of the coordinator's membership view.
type Member struct {
	ID       string
	Addr     string
	IsLeader bool
}

// Coordinator is what pkg/propagation needs from a cluster layer to
// designate a total-order boundary to the current leader and to fail over
// when leadership moves.
type Coordinator interface {
	// IsLeader reports whether this node currently holds leadership.
	IsLeader() bool

	// LeaderHint returns the current leader's node id and address, or ok
	// false if no leader is known.
	LeaderHint() (id string, addr string, ok bool)

	// Members returns a snapshot of the coordinator's membership view.
	Members() []Member

	// Apply replicates cmd through the coordinator's consensus log and
	// returns once it has been committed (and, where the coordinator
	// supports it, applied to the local state machine). It only succeeds
	// on the leader.
	Apply(ctx context.Context, cmd []byte) error

	// Shutdown releases the coordinator's resources.
	Shutdown() error
}
