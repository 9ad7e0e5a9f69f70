package routing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vexfs/vexfs/pkg/event"
	"github.com/vexfs/vexfs/pkg/propagation"
	"github.com/vexfs/vexfs/pkg/routing"
)

func TestRouteMatchesHighestPriorityFirst(t *testing.T) {
	e := routing.New()
	e.AddRule(routing.Rule{
		Name:      "low",
		Priority:  1,
		Condition: routing.Condition{EventTypes: []event.Type{event.TypeVectorInsert}},
		Policy:    propagation.Policy{Kind: propagation.PolicyBroadcast},
	})
	e.AddRule(routing.Rule{
		Name:      "high",
		Priority:  10,
		Condition: routing.Condition{EventTypes: []event.Type{event.TypeVectorInsert}},
		Policy:    propagation.Policy{Kind: propagation.PolicyUnicast},
		Terminal:  true,
	})

	d, err := e.Route(&event.Event{Type: event.TypeVectorInsert}, propagation.BoundaryKernel, 0)
	require.NoError(t, err)
	require.Len(t, d.Matched, 1)
	assert.Equal(t, "high", d.Matched[0].Name)
}

func TestRouteSkipsNonMatchingCondition(t *testing.T) {
	e := routing.New()
	e.AddRule(routing.Rule{
		Name:      "vectors-only",
		Condition: routing.Condition{EventTypes: []event.Type{event.TypeVectorInsert}},
		Policy:    propagation.Policy{Kind: propagation.PolicyBroadcast},
	})
	d, err := e.Route(&event.Event{Type: event.TypeFilesystemCreate}, propagation.BoundaryKernel, 0)
	require.NoError(t, err)
	assert.Empty(t, d.Matched)
}

func TestRouteRejectsExceedingMaxHops(t *testing.T) {
	e := routing.New()
	require.NoError(t, e.SetMaxHops(2))
	_, err := e.Route(&event.Event{}, propagation.BoundaryKernel, 2)
	assert.Error(t, err)
}

func TestRouteHonorsMinPriorityThreshold(t *testing.T) {
	e := routing.New()
	e.AddRule(routing.Rule{
		Name:      "critical-only",
		Condition: routing.Condition{MinPriority: event.PriorityCritical},
		Policy:    propagation.Policy{Kind: propagation.PolicyBroadcast},
	})
	d, err := e.Route(&event.Event{Priority: event.PriorityNormal}, propagation.BoundaryKernel, 0)
	require.NoError(t, err)
	assert.Empty(t, d.Matched)

	d, err = e.Route(&event.Event{Priority: event.PriorityCritical}, propagation.BoundaryKernel, 0)
	require.NoError(t, err)
	assert.Len(t, d.Matched, 1)
}

func TestRemoveRuleDropsItFromEvaluation(t *testing.T) {
	e := routing.New()
	e.AddRule(routing.Rule{Name: "r1", Condition: routing.Condition{}, Policy: propagation.Policy{Kind: propagation.PolicyBroadcast}})
	e.RemoveRule("r1")
	d, err := e.Route(&event.Event{}, propagation.BoundaryKernel, 0)
	require.NoError(t, err)
	assert.Empty(t, d.Matched)
}
