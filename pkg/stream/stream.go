// Package stream implements the subscriber-facing event stream
// manager (§4.9): per-agent subscriptions with bounded buffers,
// historical replay on subscribe, periodic heartbeats, and a
// WebSocket transport for pushing messages to remote agents.
// Grounded on original_source/stream.rs for the subscription
// lifecycle (subscribe/unsubscribe/broadcast/heartbeat/cleanup) and
// on original_source/websocket_stream.rs plus dittofs's use of
// gorilla/websocket for the transport layer.
package stream

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/vexfs/vexfs/pkg/event"
	"github.com/vexfs/vexfs/pkg/filtering"
	"github.com/vexfs/vexfs/pkg/verrors"
)

// MessageKind tags the variant of a Message (§4.9).
type MessageKind int

const (
	MessageEvent MessageKind = iota
	MessageHeartbeat
	MessageError
	MessageSubscribed
	MessageUnsubscribed
)

// Message is the envelope pushed to a subscriber, mirroring the
// tagged StreamMessage union.
type Message struct {
	Kind            MessageKind
	SubscriptionID  uuid.UUID
	Event           *event.Event
	SequenceNumber  uint64
	Timestamp       time.Time
	EventsSent      uint64
	Error           string
	Reason          string
	HistoricalCount int
}

// Config bounds subscription resource usage (§4.9).
type Config struct {
	MaxSubscriptionsPerAgent int
	MaxBufferSize            int
	DefaultBufferSize        int
	SubscriptionTimeout      time.Duration
	HeartbeatInterval        time.Duration
	MaxHistoricalEvents      int
}

// DefaultConfig mirrors the reference manager's defaults.
func DefaultConfig() Config {
	return Config{
		MaxSubscriptionsPerAgent: 10,
		MaxBufferSize:            10000,
		DefaultBufferSize:        1000,
		SubscriptionTimeout:      5 * time.Minute,
		HeartbeatInterval:        30 * time.Second,
		MaxHistoricalEvents:      1000,
	}
}

type subscription struct {
	id          uuid.UUID
	agentID     string
	chain       *filtering.Chain
	out         chan Message
	createdAt   time.Time
	lastActive  time.Time
	eventsSent  uint64
	sequence    uint64
}

// Stats summarizes stream activity (§4.9).
type Stats struct {
	TotalSubscriptions    uint64
	ActiveSubscriptions   int
	TotalEventsStreamed   uint64
	SubscriptionsByAgent  map[string]int
}

// Manager is the Stream Manager: it owns subscriptions and fans
// filtered events out to each one's buffered channel.
type Manager struct {
	mu            sync.RWMutex
	subscriptions map[uuid.UUID]*subscription
	historical    []*event.Event
	cfg           Config
	cron          *cron.Cron
	entryID       cron.EntryID

	totalSubs   uint64
	totalEvents uint64
}

// New creates a Manager with cfg.
func New(cfg Config) *Manager {
	return &Manager{
		subscriptions: make(map[uuid.UUID]*subscription),
		cfg:           cfg,
	}
}

// Subscribe creates a new subscription for agentID, filtered by
// chain, optionally seeded with recent historical events. bufferSize
// of 0 uses the configured default.
func (m *Manager) Subscribe(agentID string, chain *filtering.Chain, bufferSize int, includeHistorical bool, historicalLimit int) (uuid.UUID, <-chan Message, error) {
	if bufferSize <= 0 {
		bufferSize = m.cfg.DefaultBufferSize
	}
	if bufferSize > m.cfg.MaxBufferSize {
		bufferSize = m.cfg.MaxBufferSize
	}

	m.mu.Lock()
	count := 0
	for _, s := range m.subscriptions {
		if s.agentID == agentID {
			count++
		}
	}
	if count >= m.cfg.MaxSubscriptionsPerAgent {
		m.mu.Unlock()
		return uuid.UUID{}, nil, verrors.Newf(verrors.Resource, "agent %s exceeded max subscriptions (%d)", agentID, m.cfg.MaxSubscriptionsPerAgent)
	}

	id := uuid.New()
	sub := &subscription{
		id:         id,
		agentID:    agentID,
		chain:      chain,
		out:        make(chan Message, bufferSize),
		createdAt:  time.Now(),
		lastActive: time.Now(),
	}
	m.subscriptions[id] = sub
	m.totalSubs++
	m.mu.Unlock()

	historicalCount := 0
	if includeHistorical {
		historicalCount = m.sendHistorical(sub, historicalLimit)
	}

	sub.out <- Message{Kind: MessageSubscribed, SubscriptionID: id, Timestamp: time.Now(), HistoricalCount: historicalCount}
	return id, sub.out, nil
}

func (m *Manager) sendHistorical(sub *subscription, limit int) int {
	if limit <= 0 || limit > m.cfg.MaxHistoricalEvents {
		limit = m.cfg.MaxHistoricalEvents
	}
	m.mu.RLock()
	events := m.historical
	m.mu.RUnlock()

	start := 0
	if len(events) > limit {
		start = len(events) - limit
	}
	sent := 0
	for _, e := range events[start:] {
		if sub.chain != nil && sub.chain.Evaluate(e).Verdict != filtering.VerdictAllow {
			continue
		}
		sub.sequence++
		select {
		case sub.out <- Message{Kind: MessageEvent, SubscriptionID: sub.id, Event: e, SequenceNumber: sub.sequence, Timestamp: time.Now()}:
			sent++
		default:
		}
	}
	return sent
}

// Unsubscribe closes the subscription and its channel.
func (m *Manager) Unsubscribe(id uuid.UUID, reason string) error {
	m.mu.Lock()
	sub, ok := m.subscriptions[id]
	if !ok {
		m.mu.Unlock()
		return verrors.Newf(verrors.NotFound, "subscription %s not found", id)
	}
	delete(m.subscriptions, id)
	m.mu.Unlock()

	sub.out <- Message{Kind: MessageUnsubscribed, SubscriptionID: id, Timestamp: time.Now(), Reason: reason}
	close(sub.out)
	return nil
}

// BroadcastEvent pushes e to every subscription whose filter chain
// admits it, recording it for later historical replay. It returns how
// many subscribers received it.
func (m *Manager) BroadcastEvent(e *event.Event) int {
	m.mu.Lock()
	m.historical = append(m.historical, e)
	if len(m.historical) > m.cfg.MaxHistoricalEvents {
		m.historical = m.historical[len(m.historical)-m.cfg.MaxHistoricalEvents:]
	}
	subs := make([]*subscription, 0, len(m.subscriptions))
	for _, s := range m.subscriptions {
		subs = append(subs, s)
	}
	m.totalEvents++
	m.mu.Unlock()

	delivered := 0
	for _, sub := range subs {
		if sub.chain != nil && sub.chain.Evaluate(e).Verdict != filtering.VerdictAllow {
			continue
		}
		sub.sequence++
		msg := Message{Kind: MessageEvent, SubscriptionID: sub.id, Event: e, SequenceNumber: sub.sequence, Timestamp: time.Now()}
		select {
		case sub.out <- msg:
			sub.eventsSent++
			sub.lastActive = time.Now()
			delivered++
		default: // buffer full, drop for this slow subscriber rather than block the broadcaster
		}
	}
	return delivered
}

// Stats reports current subscription counts.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byAgent := make(map[string]int)
	for _, s := range m.subscriptions {
		byAgent[s.agentID]++
	}
	return Stats{
		TotalSubscriptions:   m.totalSubs,
		ActiveSubscriptions:  len(m.subscriptions),
		TotalEventsStreamed:  m.totalEvents,
		SubscriptionsByAgent: byAgent,
	}
}

// CleanupInactive removes subscriptions that have been idle past the
// configured timeout, returning how many were dropped.
func (m *Manager) CleanupInactive() int {
	m.mu.Lock()
	var stale []uuid.UUID
	for id, s := range m.subscriptions {
		if time.Since(s.lastActive) > m.cfg.SubscriptionTimeout {
			stale = append(stale, id)
		}
	}
	m.mu.Unlock()
	for _, id := range stale {
		_ = m.Unsubscribe(id, "idle timeout")
	}
	return len(stale)
}

// StartHeartbeat schedules a periodic heartbeat message to every
// active subscription via robfig/cron, at the configured interval
// truncated to whole seconds; an interval under one second becomes 30
// seconds.
func (m *Manager) StartHeartbeat() error {
	seconds := int(m.cfg.HeartbeatInterval.Seconds())
	if seconds <= 0 {
		seconds = 30
	}
	m.cron = cron.New(cron.WithSeconds())
	spec := "@every " + (time.Duration(seconds) * time.Second).String()
	id, err := m.cron.AddFunc(spec, m.heartbeatTick)
	if err != nil {
		return verrors.Wrap(verrors.Argument, err, "schedule heartbeat")
	}
	m.entryID = id
	m.cron.Start()
	return nil
}

func (m *Manager) heartbeatTick() {
	m.mu.RLock()
	subs := make([]*subscription, 0, len(m.subscriptions))
	for _, s := range m.subscriptions {
		subs = append(subs, s)
	}
	m.mu.RUnlock()
	now := time.Now()
	for _, sub := range subs {
		select {
		case sub.out <- Message{Kind: MessageHeartbeat, SubscriptionID: sub.id, Timestamp: now, EventsSent: sub.eventsSent}:
		default:
		}
	}
}

// StopHeartbeat halts the scheduled heartbeat task.
func (m *Manager) StopHeartbeat() {
	if m.cron != nil {
		m.cron.Stop()
	}
}
