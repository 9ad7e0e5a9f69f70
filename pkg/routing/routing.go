// Package routing implements the routing engine that turns a
// semantic event into a propagation decision (§4.8): an ordered set
// of rules, each with a condition and a target propagation policy,
// evaluated highest-priority-first, with a hop-count limit to stop
// routing loops. Grounded on
// original_source/event_propagation_manager.rs's RoutingMetadata and
// PropagationCondition shapes.
package routing

import (
	"sort"
	"sync"

	"github.com/vexfs/vexfs/pkg/event"
	"github.com/vexfs/vexfs/pkg/propagation"
	"github.com/vexfs/vexfs/pkg/verrors"
)

// Condition gates whether a Rule applies to an event. A nil field is
// a wildcard on that dimension.
type Condition struct {
	EventTypes       []event.Type
	MinPriority      event.Priority
	SourceBoundaries []propagation.BoundaryKind
	Predicate        func(*event.Event) bool
}

func (c Condition) matches(e *event.Event, source propagation.BoundaryKind) bool {
	if len(c.EventTypes) > 0 && !containsType(c.EventTypes, e.Type) {
		return false
	}
	if c.MinPriority != 0 && e.Priority < c.MinPriority {
		return false
	}
	if len(c.SourceBoundaries) > 0 && !containsKind(c.SourceBoundaries, source) {
		return false
	}
	if c.Predicate != nil && !c.Predicate(e) {
		return false
	}
	return true
}

func containsType(ts []event.Type, t event.Type) bool {
	for _, x := range ts {
		if x == t {
			return true
		}
	}
	return false
}

func containsKind(ks []propagation.BoundaryKind, k propagation.BoundaryKind) bool {
	for _, x := range ks {
		if x == k {
			return true
		}
	}
	return false
}

// Rule binds a Condition to the propagation.Policy applied when it
// matches. Rules are evaluated in descending Priority order; the
// first match wins unless Terminal is false, in which case evaluation
// continues and every matching rule's policy is returned.
type Rule struct {
	Name      string
	Priority  int
	Condition Condition
	Policy    propagation.Policy
	Terminal  bool
}

const defaultMaxHops = 8

// Decision is the routing engine's output for one event: the rules
// that matched, in evaluation order, each carrying the policy to
// hand to the propagation manager.
type Decision struct {
	Matched []Rule
	HopPath []propagation.BoundaryKind // not filled in by Route
}

// Engine holds the rule table and a maximum hop count. It keeps no
// per-event state: Route checks the hop count its caller passes in, so a
// misconfigured rule set cannot route an event in a cycle forever.
type Engine struct {
	mu      sync.RWMutex
	rules   []Rule
	maxHops int
}

// New creates an Engine with no rules.
func New() *Engine {
	return &Engine{maxHops: defaultMaxHops}
}

// AddRule appends r and keeps the table sorted by descending
// priority.
func (r *Engine) AddRule(rule Rule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = append(r.rules, rule)
	sort.SliceStable(r.rules, func(i, j int) bool { return r.rules[i].Priority > r.rules[j].Priority })
}

// RemoveRule drops the rule named name, if present.
func (r *Engine) RemoveRule(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.rules[:0]
	for _, rule := range r.rules {
		if rule.Name != name {
			out = append(out, rule)
		}
	}
	r.rules = out
}

// Route evaluates every rule against e in priority order and returns
// the matching rules' policies. hopCount guards against routing
// loops: once it reaches the configured maximum, Route refuses to
// produce further decisions.
func (r *Engine) Route(e *event.Event, source propagation.BoundaryKind, hopCount int) (Decision, error) {
	if hopCount >= r.maxHops {
		return Decision{}, verrors.Newf(verrors.Resource, "event %d exceeded max routing hops (%d)", e.ID, r.maxHops)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []Rule
	for _, rule := range r.rules {
		if rule.Condition.matches(e, source) {
			matched = append(matched, rule)
			if rule.Terminal {
				break
			}
		}
	}
	return Decision{Matched: matched}, nil
}

// SetMaxHops overrides the routing-loop guard. maxHops must be at
// least 1.
func (r *Engine) SetMaxHops(maxHops int) error {
	if maxHops < 1 {
		return verrors.New(verrors.Argument, "max hops must be at least 1")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.maxHops = maxHops
	return nil
}
