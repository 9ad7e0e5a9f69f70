// Package filtering implements the agent-facing filtering engine
// (§4.8): a chain of filters, each admitting, blocking, sampling or
// delaying an event, evaluated in order with most-specific-wins
// semantics borrowed from the ACL evaluator's precedence pattern
// (pkg/acl.Evaluate), and per-subscriber rate limiting grounded on the
// x/time/rate usage in r3e-network-service_layer's
// infrastructure/ratelimit package.
package filtering

import (
	"math/rand"
	"regexp"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/vexfs/vexfs/pkg/event"
)

// Verdict is a filter's decision for one event.
type Verdict int

const (
	VerdictAllow Verdict = iota
	VerdictBlock
	VerdictSample  // allow probabilistically
	VerdictDelay   // allow, but hold for Delay before release
)

// Result is the filter chain's decision.
type Result struct {
	Verdict Verdict
	Delay   time.Duration
	Reason  string
}

// Filter is one stage of the chain. Rank orders the chain, lowest
// first: priority 0, content 1, temporal 2, sample 3, rate 4.
type Filter interface {
	Name() string
	Rank() int
	Evaluate(e *event.Event) Result
}

// PriorityFilter blocks events below a minimum priority.
type PriorityFilter struct {
	MinPriority event.Priority
}

func (f PriorityFilter) Name() string { return "priority" }
func (f PriorityFilter) Rank() int    { return 0 }
func (f PriorityFilter) Evaluate(e *event.Event) Result {
	if e.Priority < f.MinPriority {
		return Result{Verdict: VerdictBlock, Reason: "below minimum priority"}
	}
	return Result{Verdict: VerdictAllow}
}

// ContentFilter blocks or allows events whose context values match a
// compiled pattern on a named key.
type ContentFilter struct {
	Key     string
	Pattern *regexp.Regexp
	Allow   bool // true: match means allow; false: match means block
}

func (f ContentFilter) Name() string { return "content:" + f.Key }
func (f ContentFilter) Rank() int    { return 1 }
func (f ContentFilter) Evaluate(e *event.Event) Result {
	v, ok := e.Context[f.Key]
	matched := ok && f.Pattern.MatchString(v)
	if matched == f.Allow {
		return Result{Verdict: VerdictAllow}
	}
	return Result{Verdict: VerdictBlock, Reason: "content filter " + f.Name()}
}

// TemporalFilter restricts delivery to a time-of-day window, in
// minutes-since-midnight UTC.
type TemporalFilter struct {
	StartMinute, EndMinute int
	Now                    func() time.Time
}

func (f TemporalFilter) Name() string { return "temporal" }
func (f TemporalFilter) Rank() int    { return 2 }
func (f TemporalFilter) Evaluate(e *event.Event) Result {
	now := time.Now
	if f.Now != nil {
		now = f.Now
	}
	t := now().UTC()
	minute := t.Hour()*60 + t.Minute()
	if minute < f.StartMinute || minute > f.EndMinute {
		return Result{Verdict: VerdictBlock, Reason: "outside delivery window"}
	}
	return Result{Verdict: VerdictAllow}
}

// SampleFilter admits roughly Fraction of matching events, drawing
// from a random source seeded at construction: two filters built with
// the same seed make the same sequence of decisions. The decision does
// not depend on the event's id.
type SampleFilter struct {
	EventTypes []event.Type
	Fraction   float64
	rng        *rand.Rand
	mu         sync.Mutex
}

// NewSampleFilter builds a SampleFilter seeded for determinism.
func NewSampleFilter(types []event.Type, fraction float64, seed int64) *SampleFilter {
	return &SampleFilter{EventTypes: types, Fraction: fraction, rng: rand.New(rand.NewSource(seed))}
}

func (f *SampleFilter) Name() string { return "sample" }
func (f *SampleFilter) Rank() int    { return 3 }
func (f *SampleFilter) Evaluate(e *event.Event) Result {
	applies := len(f.EventTypes) == 0
	for _, t := range f.EventTypes {
		if t == e.Type {
			applies = true
			break
		}
	}
	if !applies {
		return Result{Verdict: VerdictAllow}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rng.Float64() < f.Fraction {
		return Result{Verdict: VerdictSample}
	}
	return Result{Verdict: VerdictBlock, Reason: "sampled out"}
}

// RateFilter token-buckets events per subscriber, blocking whatever
// exceeds the configured rate.
type RateFilter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

// NewRateFilter creates a RateFilter allowing rps events per second
// per subscriber key, with the given burst allowance.
func NewRateFilter(rps float64, burst int) *RateFilter {
	return &RateFilter{limiters: make(map[string]*rate.Limiter), rps: rate.Limit(rps), burst: burst}
}

func (f *RateFilter) Name() string { return "rate" }
func (f *RateFilter) Rank() int    { return 4 }

// EvaluateFor checks subscriber's token bucket, not the chain-wide
// Evaluate (rate limiting is inherently per-subscriber).
func (f *RateFilter) EvaluateFor(subscriber string, e *event.Event) Result {
	f.mu.Lock()
	l, ok := f.limiters[subscriber]
	if !ok {
		l = rate.NewLimiter(f.rps, f.burst)
		f.limiters[subscriber] = l
	}
	f.mu.Unlock()
	if l.Allow() {
		return Result{Verdict: VerdictAllow}
	}
	return Result{Verdict: VerdictBlock, Reason: "rate limit exceeded"}
}

func (f *RateFilter) Evaluate(e *event.Event) Result { return f.EvaluateFor("", e) }

// Chain evaluates an ordered set of filters, lowest rank first, and
// short-circuits on the first verdict other than Allow.
type Chain struct {
	filters []Filter
}

// NewChain builds a Chain, sorting filters by ascending Rank.
func NewChain(filters ...Filter) *Chain {
	c := &Chain{filters: append([]Filter(nil), filters...)}
	for i := 1; i < len(c.filters); i++ {
		for j := i; j > 0 && c.filters[j].Rank() < c.filters[j-1].Rank(); j-- {
			c.filters[j], c.filters[j-1] = c.filters[j-1], c.filters[j]
		}
	}
	return c
}

// Evaluate runs e through every filter in rank order, returning the
// first non-allow verdict, or VerdictAllow if every filter passes.
func (c *Chain) Evaluate(e *event.Event) Result {
	for _, f := range c.filters {
		r := f.Evaluate(e)
		if r.Verdict != VerdictAllow {
			return r
		}
	}
	return Result{Verdict: VerdictAllow}
}
