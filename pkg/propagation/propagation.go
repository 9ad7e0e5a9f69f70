package propagation

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/vexfs/vexfs/pkg/event"
	"github.com/vexfs/vexfs/pkg/verrors"
)

// Policy is the propagation strategy attached to a publish (§4.8).
type Policy struct {
	Kind       PolicyKind
	Boundaries []Boundary             // Unicast uses Boundaries[0]; Multicast uses all
	Predicate  func(*event.Event) bool // Conditional only
	Strategy   BalanceStrategy         // LoadBalanced only
}

type PolicyKind int

const (
	PolicyBroadcast PolicyKind = iota
	PolicyUnicast
	PolicyMulticast
	PolicyConditional
	PolicyLoadBalanced
)

// BalanceStrategy names a way to pick a boundary among a candidate set
// for load-balanced delivery. resolveTargets does not read it: a
// load-balanced publish always goes to the candidate with the shortest
// queue.
type BalanceStrategy int

const (
	BalanceRoundRobin BalanceStrategy = iota
	BalanceLeastLoaded
)

// Guarantee is the ordering/delivery guarantee requested for a queue
// (§4.8).
type Guarantee int

const (
	GuaranteeBestEffort Guarantee = iota
	GuaranteeFIFO
	GuaranteeCausal
	GuaranteeTotal
)

// Sink delivers a single event to one boundary. Transports (kernel
// ioctl, FUSE notify channel, remote RPC, external webhook) implement
// this; the manager owns queuing, ordering and health, not transport.
type Sink interface {
	Deliver(ctx context.Context, b Boundary, e *event.Event) error
}

const (
	defaultQueueDepth   = 4096
	circuitOpenAfter    = 5
	circuitResetAfter   = 30 * time.Second
)

type boundaryQueue struct {
	boundary Boundary
	guarantee Guarantee
	mu       sync.Mutex
	pending  *list.List // FIFO of *event.Event
	cond     *sync.Cond
	closed   bool

	health       Health
	breakerTrips int
	breakerUntil time.Time

	lastDelivered uint64 // GlobalSequence of the last delivered event; recorded only, no ordering check reads it
}

// Manager is the Propagation Manager (§4.8): it fans events out to
// per-boundary queues under a policy, drains each queue in FIFO order on
// its own worker, and trips a circuit breaker on a boundary after
// repeated failures so one bad boundary cannot stall the others. The
// Guarantee passed to Register is stored but not consulted: causal and
// total ordering get no check beyond that FIFO drain, and a full queue
// drops its oldest event whatever the guarantee. Grounded on
// original_source/event_propagation_manager.rs for the
// policy/guarantee/health vocabulary and on dittofs's pkg/flusher for
// the one-worker-per-queue drain loop shape.
type Manager struct {
	sink Sink

	mu     sync.RWMutex
	queues map[string]*boundaryQueue

	wg      sync.WaitGroup
	stopCh  chan struct{}
	retry   verrors.RetryPolicy
}

// New creates a Manager delivering through sink.
func New(sink Sink) *Manager {
	return &Manager{
		sink:   sink,
		queues: make(map[string]*boundaryQueue),
		stopCh: make(chan struct{}),
		retry:  verrors.DefaultRetryPolicy(),
	}
}

// Register opens a queue for boundary b with the given delivery
// guarantee and starts its drain worker. Calling Register twice for
// the same boundary is a no-op.
func (m *Manager) Register(b Boundary, guarantee Guarantee) {
	key := b.String()
	m.mu.Lock()
	if _, ok := m.queues[key]; ok {
		m.mu.Unlock()
		return
	}
	q := &boundaryQueue{
		boundary:  b,
		guarantee: guarantee,
		pending:   list.New(),
		health:    Health{IsHealthy: true},
	}
	q.cond = sync.NewCond(&q.mu)
	m.queues[key] = q
	m.mu.Unlock()

	m.wg.Add(1)
	go m.drain(q)
}

// Unregister stops and drops the queue for b, discarding any
// undelivered events.
func (m *Manager) Unregister(b Boundary) {
	key := b.String()
	m.mu.Lock()
	q, ok := m.queues[key]
	delete(m.queues, key)
	m.mu.Unlock()
	if !ok {
		return
	}
	q.mu.Lock()
	q.closed = true
	q.pending.Init()
	q.cond.Broadcast()
	q.mu.Unlock()
}

// Publish fans e out to the boundaries policy selects. It enqueues
// without blocking on delivery; delivery happens asynchronously on
// each boundary's drain worker. A Conditional policy whose predicate
// rejects e publishes nothing.
func (m *Manager) Publish(e *event.Event, policy Policy) error {
	targets, err := m.resolveTargets(policy)
	if err != nil {
		return err
	}
	if policy.Kind == PolicyConditional && !policy.Predicate(e) {
		return nil
	}
	if len(targets) == 0 {
		return verrors.New(verrors.Argument, "propagation policy resolved to zero boundaries")
	}
	for _, b := range targets {
		m.enqueue(b, e)
	}
	return nil
}

func (m *Manager) resolveTargets(policy Policy) ([]Boundary, error) {
	switch policy.Kind {
	case PolicyBroadcast:
		m.mu.RLock()
		defer m.mu.RUnlock()
		out := make([]Boundary, 0, len(m.queues))
		for _, q := range m.queues {
			out = append(out, q.boundary)
		}
		return out, nil
	case PolicyUnicast:
		if len(policy.Boundaries) == 0 {
			return nil, verrors.New(verrors.Argument, "unicast propagation requires exactly one boundary")
		}
		return policy.Boundaries[:1], nil
	case PolicyMulticast:
		return policy.Boundaries, nil
	case PolicyConditional:
		if policy.Predicate == nil {
			return nil, verrors.New(verrors.Argument, "conditional propagation requires a predicate")
		}
		return policy.Boundaries, nil
	case PolicyLoadBalanced:
		if len(policy.Boundaries) == 0 {
			return nil, verrors.New(verrors.Argument, "load-balanced propagation requires candidate boundaries")
		}
		return []Boundary{m.pickLeastLoaded(policy.Boundaries)}, nil
	default:
		return nil, verrors.Newf(verrors.Argument, "unknown propagation policy kind %d", policy.Kind)
	}
}

func (m *Manager) pickLeastLoaded(candidates []Boundary) Boundary {
	best := candidates[0]
	bestDepth := -1
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, b := range candidates {
		q, ok := m.queues[b.String()]
		if !ok {
			continue
		}
		q.mu.Lock()
		depth := q.pending.Len()
		q.mu.Unlock()
		if bestDepth == -1 || depth < bestDepth {
			best, bestDepth = b, depth
		}
	}
	return best
}

func (m *Manager) enqueue(b Boundary, e *event.Event) {
	m.mu.RLock()
	q, ok := m.queues[b.String()]
	m.mu.RUnlock()
	if !ok {
		return
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	if q.pending.Len() >= defaultQueueDepth {
		q.pending.Remove(q.pending.Front()) // drop oldest under backpressure
	}
	q.pending.PushBack(e)
	q.cond.Signal()
	q.mu.Unlock()
}

func (m *Manager) drain(q *boundaryQueue) {
	defer m.wg.Done()
	for {
		q.mu.Lock()
		for q.pending.Len() == 0 && !q.closed {
			q.cond.Wait()
		}
		if q.closed && q.pending.Len() == 0 {
			q.mu.Unlock()
			return
		}
		front := q.pending.Front()
		q.pending.Remove(front)
		breakerUntil := q.breakerUntil
		q.mu.Unlock()

		e := front.Value.(*event.Event)

		if time.Now().Before(breakerUntil) {
			m.recordFailure(q)
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := verrors.Retry(ctx, m.retry, func() error {
			return m.sink.Deliver(ctx, q.boundary, e)
		})
		cancel()

		if err != nil {
			m.recordFailure(q)
			continue
		}
		m.recordSuccess(q, e)
	}
}

func (m *Manager) recordSuccess(q *boundaryQueue, e *event.Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.health.IsHealthy = true
	q.health.LastSuccess = time.Now().UnixNano()
	q.health.ErrorCount = 0
	q.breakerTrips = 0
	q.lastDelivered = e.GlobalSequence
}

func (m *Manager) recordFailure(q *boundaryQueue) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.health.ErrorCount++
	q.breakerTrips++
	if q.breakerTrips >= circuitOpenAfter {
		q.health.IsHealthy = false
		q.breakerUntil = time.Now().Add(circuitResetAfter)
		q.breakerTrips = 0
	}
}

// HealthOf reports the current health of boundary b.
func (m *Manager) HealthOf(b Boundary) (Health, bool) {
	m.mu.RLock()
	q, ok := m.queues[b.String()]
	m.mu.RUnlock()
	if !ok {
		return Health{}, false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.health, true
}

// QueueDepth reports how many events are pending delivery to b.
func (m *Manager) QueueDepth(b Boundary) int {
	m.mu.RLock()
	q, ok := m.queues[b.String()]
	m.mu.RUnlock()
	if !ok {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending.Len()
}

// Close stops every boundary's drain worker and waits for them to
// exit.
func (m *Manager) Close() {
	m.mu.Lock()
	queues := make([]*boundaryQueue, 0, len(m.queues))
	for _, q := range m.queues {
		queues = append(queues, q)
	}
	m.mu.Unlock()
	for _, q := range queues {
		q.mu.Lock()
		q.closed = true
		q.cond.Broadcast()
		q.mu.Unlock()
	}
	m.wg.Wait()
}
