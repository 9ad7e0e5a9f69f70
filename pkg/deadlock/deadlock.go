// Package deadlock implements periodic wait-for graph cycle detection and
// victim selection, grounded on original_source's deadlock_detector.rs
// (per-transaction age/priority metadata driving victim choice) and
// dittofs's lock package test harness for the polling-ticker shape
// (robfig/cron drives the periodic scan here rather than a hand-rolled
// ticker loop, matching the pack's scheduling library).
package deadlock

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/vexfs/vexfs/internal/logger"
	"github.com/vexfs/vexfs/pkg/lock"
)

// TxnMeta is the per-transaction bookkeeping the victim-selection policy
// weighs: how long the transaction has been running and its priority
// (higher survives preferentially).
type TxnMeta struct {
	StartedAt time.Time
	Priority  int
}

// GraphSource is satisfied by lock.Manager; abstracted so the detector
// can be tested against a fake graph without a real lock manager.
type GraphSource interface {
	WaitForGraph() []lock.WaitEdge
	AbortWaiter(holder lock.HolderID, res lock.ResourceID) bool
}

// Detector runs a periodic scan over a lock manager's wait-for graph and
// aborts one victim per detected cycle.
type Detector struct {
	mu    sync.Mutex
	graph GraphSource
	meta  map[lock.HolderID]TxnMeta

	cron    *cron.Cron
	entryID cron.EntryID

	victims []lock.HolderID // accumulated across every Scan, for tests/metrics
}

// New creates a Detector. It does not start scanning until Start is
// called.
func New(graph GraphSource) *Detector {
	return &Detector{
		graph: graph,
		meta:  make(map[lock.HolderID]TxnMeta),
		cron:  cron.New(cron.WithSeconds()),
	}
}

// Track records metadata for a transaction so it can be weighed as a
// potential victim; call when the transaction begins.
func (d *Detector) Track(holder lock.HolderID, priority int, now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.meta[holder] = TxnMeta{StartedAt: now, Priority: priority}
}

// Forget drops a transaction's metadata on commit/abort.
func (d *Detector) Forget(holder lock.HolderID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.meta, holder)
}

// Start schedules periodic scans at the given interval expressed as a
// cron spec (e.g. "@every 100ms").
func (d *Detector) Start(spec string) error {
	id, err := d.cron.AddFunc(spec, func() {
		d.Scan(context.Background())
	})
	if err != nil {
		return err
	}
	d.entryID = id
	d.cron.Start()
	return nil
}

// Stop halts periodic scanning.
func (d *Detector) Stop() {
	d.cron.Remove(d.entryID)
	ctx := d.cron.Stop()
	<-ctx.Done()
}

// Scan runs one detection pass: build the wait-for graph, find cycles,
// and abort one victim per cycle found. Returns the holders chosen as
// victims.
func (d *Detector) Scan(ctx context.Context) []lock.HolderID {
	edges := d.graph.WaitForGraph()
	cycles := findCycles(edges)

	var victims []lock.HolderID
	for _, cycle := range cycles {
		victim := d.chooseVictim(cycle)
		if victim == 0 {
			continue
		}
		for _, e := range edges {
			if e.Waiter == victim {
				if d.graph.AbortWaiter(victim, e.Resource) {
					logger.InfoCtx(ctx, "deadlock detector aborted victim", "holder", victim)
					victims = append(victims, victim)
				}
			}
		}
	}

	d.mu.Lock()
	d.victims = append(d.victims, victims...)
	d.mu.Unlock()
	return victims
}

// chooseVictim picks the transaction in cycle with the lowest priority,
// breaking ties by picking the youngest (shortest-running) transaction,
// so older work survives where possible (per deadlock_detector.rs).
func (d *Detector) chooseVictim(cycle []lock.HolderID) lock.HolderID {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(cycle) == 0 {
		return 0
	}
	best := cycle[0]
	bestMeta, ok := d.meta[best]
	if !ok {
		bestMeta = TxnMeta{}
	}
	for _, h := range cycle[1:] {
		m, ok := d.meta[h]
		if !ok {
			m = TxnMeta{}
		}
		if m.Priority < bestMeta.Priority || (m.Priority == bestMeta.Priority && m.StartedAt.After(bestMeta.StartedAt)) {
			best = h
			bestMeta = m
		}
	}
	return best
}

// findCycles runs a DFS over the waiter->holder edges and returns the
// set of holders participating in each distinct cycle found.
func findCycles(edges []lock.WaitEdge) [][]lock.HolderID {
	adj := make(map[lock.HolderID][]lock.HolderID)
	for _, e := range edges {
		adj[e.Waiter] = append(adj[e.Waiter], e.Holder)
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[lock.HolderID]int)
	var stack []lock.HolderID
	var cycles [][]lock.HolderID
	seen := make(map[string]bool)

	var visit func(n lock.HolderID)
	visit = func(n lock.HolderID) {
		color[n] = gray
		stack = append(stack, n)
		for _, next := range adj[n] {
			switch color[next] {
			case white:
				visit(next)
			case gray:
				cycle := extractCycle(stack, next)
				key := cycleKey(cycle)
				if !seen[key] {
					seen[key] = true
					cycles = append(cycles, cycle)
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[n] = black
	}

	nodes := make([]lock.HolderID, 0, len(adj))
	for n := range adj {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })
	for _, n := range nodes {
		if color[n] == white {
			visit(n)
		}
	}
	return cycles
}

func extractCycle(stack []lock.HolderID, start lock.HolderID) []lock.HolderID {
	for i, n := range stack {
		if n == start {
			return append([]lock.HolderID{}, stack[i:]...)
		}
	}
	return nil
}

func cycleKey(cycle []lock.HolderID) string {
	sorted := append([]lock.HolderID{}, cycle...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	key := ""
	for _, n := range sorted {
		key += fmt.Sprintf("%d,", n)
	}
	return key
}
