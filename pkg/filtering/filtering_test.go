package filtering_test

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vexfs/vexfs/pkg/event"
	"github.com/vexfs/vexfs/pkg/filtering"
)

func TestPriorityFilterBlocksBelowThreshold(t *testing.T) {
	f := filtering.PriorityFilter{MinPriority: event.PriorityHigh}
	assert.Equal(t, filtering.VerdictBlock, f.Evaluate(&event.Event{Priority: event.PriorityNormal}).Verdict)
	assert.Equal(t, filtering.VerdictAllow, f.Evaluate(&event.Event{Priority: event.PriorityCritical}).Verdict)
}

func TestContentFilterMatchesContextValue(t *testing.T) {
	f := filtering.ContentFilter{Key: "path", Pattern: regexp.MustCompile(`^/secret/`), Allow: false}
	blocked := f.Evaluate(&event.Event{Context: event.Context{"path": "/secret/data"}})
	assert.Equal(t, filtering.VerdictBlock, blocked.Verdict)

	allowed := f.Evaluate(&event.Event{Context: event.Context{"path": "/public/data"}})
	assert.Equal(t, filtering.VerdictAllow, allowed.Verdict)
}

func TestTemporalFilterRespectsWindow(t *testing.T) {
	fixed := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	f := filtering.TemporalFilter{StartMinute: 9 * 60, EndMinute: 17 * 60, Now: func() time.Time { return fixed }}
	assert.Equal(t, filtering.VerdictAllow, f.Evaluate(&event.Event{}).Verdict)

	late := time.Date(2026, 1, 1, 23, 0, 0, 0, time.UTC)
	f.Now = func() time.Time { return late }
	assert.Equal(t, filtering.VerdictBlock, f.Evaluate(&event.Event{}).Verdict)
}

func TestSampleFilterIsDeterministicForFixedSeed(t *testing.T) {
	f1 := filtering.NewSampleFilter([]event.Type{event.TypeVectorInsert}, 0.5, 7)
	f2 := filtering.NewSampleFilter([]event.Type{event.TypeVectorInsert}, 0.5, 7)
	e := &event.Event{Type: event.TypeVectorInsert}
	for i := 0; i < 20; i++ {
		assert.Equal(t, f1.Evaluate(e).Verdict, f2.Evaluate(e).Verdict)
	}
}

func TestRateFilterBlocksBeyondBurst(t *testing.T) {
	f := filtering.NewRateFilter(1, 1)
	e := &event.Event{}
	assert.Equal(t, filtering.VerdictAllow, f.EvaluateFor("sub-1", e).Verdict)
	assert.Equal(t, filtering.VerdictBlock, f.EvaluateFor("sub-1", e).Verdict)
	assert.Equal(t, filtering.VerdictAllow, f.EvaluateFor("sub-2", e).Verdict, "distinct subscribers get independent buckets")
}

func TestChainShortCircuitsOnFirstBlock(t *testing.T) {
	c := filtering.NewChain(
		filtering.PriorityFilter{MinPriority: event.PriorityHigh},
		filtering.ContentFilter{Key: "x", Pattern: regexp.MustCompile(`.`), Allow: true},
	)
	r := c.Evaluate(&event.Event{Priority: event.PriorityLow})
	assert.Equal(t, filtering.VerdictBlock, r.Verdict)
}
