// Package propagation implements the cross-boundary event delivery
// pipeline (§4.8): per-boundary queues, propagation policies, QoS
// ordering, and boundary health tracking with isolation on repeated
// failure. Grounded on original_source/event_propagation_manager.rs
// for the boundary/policy/causal-clock details and dittofs's worker-
// per-queue pattern (pkg/flusher) for the drain-loop shape.
package propagation

import "fmt"

// Boundary is the tagged enumeration of execution domains events can
// cross (§3).
type Boundary struct {
	Kind BoundaryKind
	ID   string // instance/system/pid identifier; empty for kernel/fuse
}

type BoundaryKind int

const (
	BoundaryKernel BoundaryKind = iota
	BoundaryFUSE
	BoundaryRemoteInstance
	BoundaryExternalSystem
	BoundaryLocalProcess
)

func (b Boundary) String() string {
	if b.ID == "" {
		return fmt.Sprintf("%v", b.Kind)
	}
	return fmt.Sprintf("%v(%s)", b.Kind, b.ID)
}

func (k BoundaryKind) String() string {
	switch k {
	case BoundaryKernel:
		return "kernel"
	case BoundaryFUSE:
		return "fuse"
	case BoundaryRemoteInstance:
		return "remote"
	case BoundaryExternalSystem:
		return "external"
	case BoundaryLocalProcess:
		return "local-process"
	default:
		return "unknown"
	}
}

// Health tracks a boundary's delivery health (§4.8).
type Health struct {
	IsHealthy      bool
	LastSuccess    int64 // unix nanos
	ErrorCount     int
	LastLatencyNs  int64
}
