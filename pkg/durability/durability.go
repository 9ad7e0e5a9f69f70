// Package durability implements the Durability Manager (§4.2): a policy
// engine that batches and issues syncs/barriers against the block device
// and emits checkpoints once a batch of committing transactions has
// drained. It is modeled on dittofs's pkg/flusher background uploader —
// the same bounded-queue, worker-pool shape — repurposed from
// cache-to-block-store upload requests to journal-commit sync requests.
package durability

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/vexfs/vexfs/internal/logger"
	"github.com/vexfs/vexfs/pkg/block"
	"github.com/vexfs/vexfs/pkg/journal"
	"github.com/vexfs/vexfs/pkg/verrors"
)

// Policy selects how aggressively the manager flushes to stable storage.
type Policy int

const (
	PolicyNone Policy = iota
	PolicyMetadataOnly
	PolicyDataPlusMetadata
	PolicyStrict
	PolicyConfigurable
)

// SyncKind is the resource class a sync request targets.
type SyncKind int

const (
	SyncFile SyncKind = iota
	SyncMemory
	SyncDirectory
	SyncJournal
	SyncMetadata
	SyncFilesystemWide
)

// Priority orders the sync queue: critical drains before high, before
// normal, before low; FIFO within a priority (§4.2).
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

// Request is one pending sync request.
type Request struct {
	Kind     SyncKind
	Priority Priority
	TxnID    journal.TxnID
	Blocks   []block.Number
	Tier     block.Tier
	done     chan error
	seq      uint64
}

// Checkpoint captures the durability manager's high-water mark: every
// transaction up to LastDurableTxn is certified on stable storage.
type Checkpoint struct {
	LastDurableTxn  journal.TxnID
	JournalPosition uint64
	MetadataVersion uint64
	Complete        bool
}

// Config tunes batching.
type Config struct {
	Policy       Policy
	MaxBatch     int
	BatchTimeout time.Duration
}

// DefaultConfig matches the batch size/timeout dittofs uses for its
// background uploader defaults.
func DefaultConfig() Config {
	return Config{Policy: PolicyDataPlusMetadata, MaxBatch: 64, BatchTimeout: 20 * time.Millisecond}
}

// Manager implements ensure_durability/force_sync/checkpoint.
type Manager struct {
	dev    block.Device
	jrnl   *journal.Journal
	config Config

	mu          sync.Mutex
	pq          requestQueue
	seq         uint64
	lastDurable journal.TxnID
	checkpoints []Checkpoint
	metaVersion uint64

	flushCh   chan struct{}
	stopCh    chan struct{}
	stoppedCh chan struct{}
	wg        sync.WaitGroup

	stats Stats
}

// Stats are monotonic counters exposed for the admin/metrics surface.
type Stats struct {
	mu         sync.Mutex
	Batches    uint64
	Requests   uint64
	Syncs      uint64
	Barriers   uint64
	Checkpoint uint64
}

func (s *Stats) Snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{Batches: s.Batches, Requests: s.Requests, Syncs: s.Syncs, Barriers: s.Barriers, Checkpoint: s.Checkpoint}
}

// New creates a Manager and starts its background batching worker.
func New(dev block.Device, jrnl *journal.Journal, cfg Config) *Manager {
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = DefaultConfig().MaxBatch
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = DefaultConfig().BatchTimeout
	}
	m := &Manager{
		dev:       dev,
		jrnl:      jrnl,
		config:    cfg,
		flushCh:   make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
	heap.Init(&m.pq)
	m.wg.Add(1)
	go m.loop()
	return m
}

// EnsureDurability enqueues a sync request covering data and metadata
// blocks touched by a committing transaction, and blocks until the
// manager's policy has flushed them (§5: "Durability sync (blocks until
// batch drains)").
func (m *Manager) EnsureDurability(ctx context.Context, tid journal.TxnID, data, meta []block.Number) error {
	if m.config.Policy == PolicyNone {
		return nil
	}
	blocks := append(append([]block.Number{}, data...), meta...)
	req := &Request{Kind: SyncFilesystemWide, Priority: PriorityNormal, TxnID: tid, Blocks: blocks, done: make(chan error, 1)}
	return m.submit(ctx, req)
}

// ForceSync enqueues a critical-priority, filesystem-wide sync request and
// blocks until the batch that holds it has drained.
func (m *Manager) ForceSync(ctx context.Context) error {
	req := &Request{Kind: SyncFilesystemWide, Priority: PriorityCritical, done: make(chan error, 1)}
	return m.submit(ctx, req)
}

func (m *Manager) submit(ctx context.Context, req *Request) error {
	m.mu.Lock()
	m.seq++
	req.seq = m.seq
	heap.Push(&m.pq, req)
	full := len(m.pq) >= m.config.MaxBatch
	m.mu.Unlock()

	select {
	case m.flushCh <- struct{}{}:
	default:
	}
	if full {
		select {
		case m.flushCh <- struct{}{}:
		default:
		}
	}

	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) loop() {
	defer close(m.stoppedCh)
	defer m.wg.Done()
	ticker := time.NewTicker(m.config.BatchTimeout)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopCh:
			m.drain(context.Background())
			return
		case <-m.flushCh:
			m.maybeFlush()
		case <-ticker.C:
			m.maybeFlush()
		}
	}
}

func (m *Manager) maybeFlush() {
	m.mu.Lock()
	ready := len(m.pq) >= m.config.MaxBatch || len(m.pq) > 0
	m.mu.Unlock()
	if ready {
		m.drain(context.Background())
	}
}

// drain flushes every currently-queued request, applying the barrier
// policy once for the whole batch rather than per request.
func (m *Manager) drain(ctx context.Context) {
	m.mu.Lock()
	batch := make([]*Request, 0, len(m.pq))
	for m.pq.Len() > 0 {
		batch = append(batch, heap.Pop(&m.pq).(*Request))
	}
	m.mu.Unlock()
	if len(batch) == 0 {
		return
	}

	m.stats.mu.Lock()
	m.stats.Batches++
	m.stats.Requests += uint64(len(batch))
	m.stats.mu.Unlock()

	err := m.applyPolicy(ctx)

	var maxTid journal.TxnID
	for _, req := range batch {
		if req.TxnID > maxTid {
			maxTid = req.TxnID
		}
		req.done <- err
	}
	if err == nil && maxTid > 0 {
		m.mu.Lock()
		if maxTid > m.lastDurable {
			m.lastDurable = maxTid
		}
		m.mu.Unlock()
	}
}

// applyPolicy issues the barrier/sync sequence called for by the
// configured policy (§4.2).
func (m *Manager) applyPolicy(ctx context.Context) error {
	switch m.config.Policy {
	case PolicyNone:
		return nil
	case PolicyMetadataOnly, PolicyDataPlusMetadata:
		if err := m.dev.Sync(ctx); err != nil {
			return verrors.Wrap(verrors.Resource, err, "durability sync")
		}
		m.stats.mu.Lock()
		m.stats.Syncs++
		m.stats.mu.Unlock()
		return nil
	case PolicyStrict, PolicyConfigurable:
		if err := m.dev.Barrier(ctx); err != nil {
			return verrors.Wrap(verrors.Resource, err, "durability pre-barrier")
		}
		if err := m.dev.Sync(ctx); err != nil {
			return verrors.Wrap(verrors.Resource, err, "durability sync")
		}
		if err := m.dev.Barrier(ctx); err != nil {
			return verrors.Wrap(verrors.Resource, err, "durability post-barrier")
		}
		m.stats.mu.Lock()
		m.stats.Syncs++
		m.stats.Barriers += 2
		m.stats.mu.Unlock()
		return nil
	default:
		return verrors.Newf(verrors.Argument, "unknown durability policy %d", m.config.Policy)
	}
}

// Checkpoint captures (last-durable-tid, journal position, metadata
// version) and marks it complete once the covering sync batch has
// drained.
func (m *Manager) Checkpoint(ctx context.Context) (Checkpoint, error) {
	if err := m.ForceSync(ctx); err != nil {
		return Checkpoint{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metaVersion++
	cp := Checkpoint{
		LastDurableTxn:  m.lastDurable,
		JournalPosition: m.jrnl.Head(),
		MetadataVersion: m.metaVersion,
		Complete:        true,
	}
	m.checkpoints = append(m.checkpoints, cp)
	m.stats.mu.Lock()
	m.stats.Checkpoint++
	m.stats.mu.Unlock()
	if err := m.jrnl.AdvanceTail(ctx, cp.JournalPosition); err != nil {
		logger.WarnCtx(ctx, "checkpoint could not advance journal tail", "err", err)
	}
	return cp, nil
}

// IsDurable reports whether tid is certified durable by the latest
// complete checkpoint (§4.2).
func (m *Manager) IsDurable(tid journal.TxnID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.checkpoints) - 1; i >= 0; i-- {
		if m.checkpoints[i].Complete {
			return m.checkpoints[i].LastDurableTxn >= tid
		}
	}
	return false
}

func (m *Manager) Stats() Stats { return m.stats.Snapshot() }

// Close stops the background worker after draining pending requests.
func (m *Manager) Close() {
	close(m.stopCh)
	<-m.stoppedCh
}
