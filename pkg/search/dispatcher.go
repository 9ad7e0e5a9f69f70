// Package search implements the IOCTL command dispatcher that bridges
// user requests to the ANNS engine under an operation context (§4.6),
// grounded on original_source's ioctl_integration_test.rs for the
// parse -> validate -> lock -> execute -> stats -> release pipeline and
// its fixed command codes (§6).
package search

import (
	"context"
	"sync"
	"time"

	"github.com/vexfs/vexfs/pkg/lock"
	"github.com/vexfs/vexfs/pkg/vector"
	"github.com/vexfs/vexfs/pkg/verrors"
)

// Command is an IOCTL command code (§6).
type Command uint32

const (
	CmdSearch        Command = 0x2000
	CmdGetStats      Command = 0x2001
	CmdResetStats    Command = 0x2002
	CmdConfigure     Command = 0x2003
	CmdUpdateVector  Command = 0x2004
	CmdOptimizeIndex Command = 0x2005
)

// defaultEfSearch is the ef_search used for a CmdSearch that omits one,
// until CmdConfigure sets a different default.
const defaultEfSearch = 64

// Request is the fixed-size request struct §6 describes.
type Request struct {
	Command    Command
	QueryData  []float32
	VectorID   uint64
	Dimensions uint32
	K          int
	Metric     vector.Metric
	EfSearch   int
	MaxResults int
}

// Response carries the dispatcher's reply.
type Response struct {
	Results       []vector.Result
	ActualResults int
	Stats         Stats
}

// Stats holds the dispatcher's per-operation counters: the number of
// timed operations, average and p95/p99 latency, and the index buffer
// pool's hits and misses. No user-buffer, VFS-call or sync-op counts
// are kept.
type Stats struct {
	Total        uint64
	AvgLatencyNs uint64
	P95LatencyNs uint64
	P99LatencyNs uint64
	PoolHits     int
	PoolMisses   int
}

// Dispatcher serializes access to one vector index behind an operation
// lock, the way the kernel-safety envelope requires every entry point
// to acquire before touching shared index state.
type Dispatcher struct {
	mu       sync.Mutex
	locks    *lock.Manager
	index    *vector.Index
	latency  []time.Duration
	efSearch int
}

// New creates a Dispatcher over idx, using locks for the per-operation
// lock the spec calls for.
func New(idx *vector.Index, locks *lock.Manager) *Dispatcher {
	return &Dispatcher{index: idx, locks: locks, efSearch: defaultEfSearch}
}

const searchOpResource = lock.ResourceVectorIndex

// Dispatch validates and executes req, timing it for the latency stats.
func (d *Dispatcher) Dispatch(ctx context.Context, holder lock.HolderID, req Request) (*Response, error) {
	if req.Command == CmdSearch && req.EfSearch == 0 {
		d.mu.Lock()
		req.EfSearch = d.efSearch
		d.mu.Unlock()
	}
	if err := d.validate(req); err != nil {
		return nil, err
	}

	res := lock.ResourceID{Kind: searchOpResource, ID: 0}
	if err := d.locks.Acquire(ctx, holder, res, lock.ModeExclusive); err != nil {
		return nil, verrors.Wrap(verrors.Busy, err, "search operation lock")
	}
	defer d.locks.Release(holder, res)

	start := time.Now()
	resp, err := d.execute(ctx, req)
	d.recordLatency(time.Since(start))
	if err != nil {
		return nil, err
	}
	resp.Stats = d.statsLocked()
	return resp, nil
}

func (d *Dispatcher) validate(req Request) error {
	if req.Dimensions == 0 || req.Dimensions > 32768 {
		return verrors.Newf(verrors.Argument, "dimension %d out of range", req.Dimensions)
	}
	switch req.Command {
	case CmdSearch:
		if len(req.QueryData) == 0 {
			return verrors.New(verrors.Argument, "null query pointer")
		}
		if req.K <= 0 || req.K > 1000 {
			return verrors.Newf(verrors.Argument, "k=%d out of range", req.K)
		}
		if req.EfSearch < req.K {
			return verrors.New(verrors.Argument, "ef_search must be >= k")
		}
		if req.MaxResults < req.K {
			return verrors.New(verrors.Argument, "results buffer too small for k")
		}
	case CmdUpdateVector:
		if len(req.QueryData) == 0 {
			return verrors.New(verrors.Argument, "null vector data")
		}
	case CmdGetStats, CmdResetStats, CmdConfigure, CmdOptimizeIndex:
		// no further validation beyond the dimension check above.
	default:
		return verrors.Newf(verrors.Unsupported, "unknown search ioctl command 0x%x", req.Command)
	}
	return nil
}

func (d *Dispatcher) execute(ctx context.Context, req Request) (*Response, error) {
	switch req.Command {
	case CmdSearch:
		results, err := d.index.Search(ctx, req.QueryData, req.K, req.EfSearch)
		if err != nil {
			return nil, err
		}
		return &Response{Results: results, ActualResults: len(results)}, nil
	case CmdGetStats:
		return &Response{}, nil
	case CmdResetStats:
		d.mu.Lock()
		d.latency = nil
		d.mu.Unlock()
		return &Response{}, nil
	case CmdConfigure:
		if req.EfSearch > 0 {
			d.mu.Lock()
			d.efSearch = req.EfSearch
			d.mu.Unlock()
		}
		return &Response{}, nil
	case CmdUpdateVector:
		if err := d.index.UpdateVector(ctx, req.VectorID, req.QueryData); err != nil {
			return nil, err
		}
		return &Response{}, nil
	case CmdOptimizeIndex:
		if err := d.index.OptimizeIndex(ctx); err != nil {
			return nil, err
		}
		return &Response{}, nil
	default:
		return nil, verrors.Newf(verrors.Unsupported, "unknown search ioctl command 0x%x", req.Command)
	}
}

func (d *Dispatcher) recordLatency(dur time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.latency = append(d.latency, dur)
}

func (d *Dispatcher) statsLocked() Stats {
	hits, misses := d.index.PoolStats()

	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.latency) == 0 {
		return Stats{PoolHits: hits, PoolMisses: misses}
	}
	sorted := append([]time.Duration(nil), d.latency...)
	sortDurations(sorted)
	var sum time.Duration
	for _, l := range sorted {
		sum += l
	}
	p95 := sorted[percentileIndex(len(sorted), 0.95)]
	p99 := sorted[percentileIndex(len(sorted), 0.99)]
	return Stats{
		Total:        uint64(len(sorted)),
		AvgLatencyNs: uint64(sum.Nanoseconds()) / uint64(len(sorted)),
		P95LatencyNs: uint64(p95.Nanoseconds()),
		P99LatencyNs: uint64(p99.Nanoseconds()),
		PoolHits:     hits,
		PoolMisses:   misses,
	}
}

func percentileIndex(n int, p float64) int {
	idx := int(float64(n-1) * p)
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return idx
}

func sortDurations(d []time.Duration) {
	for i := 1; i < len(d); i++ {
		for j := i; j > 0 && d[j-1] > d[j]; j-- {
			d[j-1], d[j] = d[j], d[j-1]
		}
	}
}
