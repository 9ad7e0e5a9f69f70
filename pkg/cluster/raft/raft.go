// Package raft implements cluster.Coordinator on top of hashicorp/raft,
// giving the coordinator interface one concrete, testable caller. The
// bootstrap sequence (TCP transport, file snapshot store, BoltDB log and
// stable stores) and the FSM's Command envelope follow the pattern used by
// cuemby-warren's pkg/manager: a single-node Bootstrap, a DefaultConfig
// tuned for LAN-speed failover, and an Apply/Snapshot/Restore triple on a
// small FSM wrapping the replicated state.
package raft

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"

	"github.com/vexfs/vexfs/pkg/cluster"
)

// Config configures a raft-backed Coordinator.
type Config struct {
	NodeID    string
	BindAddr  string
	DataDir   string
	Bootstrap bool
}

// Command is the envelope replicated through the raft log. Op names the
// operation the FSM dispatches on; Data carries its JSON-encoded argument.
type Command struct {
	Op   string          `json:"op"`
	Data json.RawMessage `json:"data"`
}

// sequencedEvent is the state this coordinator replicates: an opaque
// payload assigned a cluster-wide sequence number, giving the propagation
// manager a total order for boundaries that require one.
type sequencedEvent struct {
	Sequence uint64 `json:"sequence"`
	Payload  []byte `json:"payload"`
}

type fsm struct {
	mu       sync.RWMutex
	sequence uint64
	log      []sequencedEvent
	maxLog   int
}

func newFSM(maxLog int) *fsm {
	return &fsm{maxLog: maxLog}
}

// Apply implements raft.FSM. It decodes cmd, assigns the next sequence
// number, and appends to the bounded replicated log.
func (f *fsm) Apply(l *raft.Log) interface{} {
	var cmd Command
	if err := json.Unmarshal(l.Data, &cmd); err != nil {
		return fmt.Errorf("decode command: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch cmd.Op {
	case "publish":
		f.sequence++
		f.log = append(f.log, sequencedEvent{Sequence: f.sequence, Payload: cmd.Data})
		if len(f.log) > f.maxLog {
			f.log = f.log[len(f.log)-f.maxLog:]
		}
		return f.sequence
	default:
		return fmt.Errorf("unknown command: %s", cmd.Op)
	}
}

// Snapshot implements raft.FSM.
func (f *fsm) Snapshot() (raft.FSMSnapshot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	snap := &fsmSnapshot{Sequence: f.sequence, Log: append([]sequencedEvent(nil), f.log...)}
	return snap, nil
}

// Restore implements raft.FSM.
func (f *fsm) Restore(rc io.ReadCloser) error {
	defer rc.Close()

	var snap fsmSnapshot
	if err := json.NewDecoder(rc).Decode(&snap); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.sequence = snap.Sequence
	f.log = snap.Log
	return nil
}

type fsmSnapshot struct {
	Sequence uint64           `json:"sequence"`
	Log      []sequencedEvent `json:"log"`
}

func (s *fsmSnapshot) Persist(sink raft.SnapshotSink) error {
	err := func() error {
		if err := json.NewEncoder(sink).Encode(s); err != nil {
			return err
		}
		return sink.Close()
	}()
	if err != nil {
		sink.Cancel()
	}
	return err
}

func (s *fsmSnapshot) Release() {}

// Coordinator is a hashicorp/raft backed cluster.Coordinator.
type Coordinator struct {
	cfg   Config
	fsm   *fsm
	raft  *raft.Raft
	trans *raft.NetworkTransport
}

var _ cluster.Coordinator = (*Coordinator)(nil)

// Bootstrap starts a single-node raft cluster rooted at cfg.DataDir,
// returning a Coordinator ready to accept Apply calls once it becomes
// leader. Joining an existing cluster is outside this interface's scope
// (the membership-change RPCs belong to the admin surface, not the
// propagation boundary).
func Bootstrap(cfg Config) (*Coordinator, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	raftCfg := raft.DefaultConfig()
	raftCfg.LocalID = raft.ServerID(cfg.NodeID)
	raftCfg.HeartbeatTimeout = 500 * time.Millisecond
	raftCfg.ElectionTimeout = 500 * time.Millisecond
	raftCfg.LeaderLeaseTimeout = 250 * time.Millisecond

	addr, err := net.ResolveTCPAddr("tcp", cfg.BindAddr)
	if err != nil {
		return nil, fmt.Errorf("resolve bind address: %w", err)
	}
	transport, err := raft.NewTCPTransport(cfg.BindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("create transport: %w", err)
	}

	snapshotStore, err := raft.NewFileSnapshotStore(cfg.DataDir, 2, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("create snapshot store: %w", err)
	}

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-log.db"))
	if err != nil {
		return nil, fmt.Errorf("create log store: %w", err)
	}
	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-stable.db"))
	if err != nil {
		return nil, fmt.Errorf("create stable store: %w", err)
	}

	f := newFSM(4096)
	r, err := raft.NewRaft(raftCfg, f, logStore, stableStore, snapshotStore, transport)
	if err != nil {
		return nil, fmt.Errorf("create raft: %w", err)
	}

	if cfg.Bootstrap {
		future := r.BootstrapCluster(raft.Configuration{
			Servers: []raft.Server{{ID: raftCfg.LocalID, Address: transport.LocalAddr()}},
		})
		if err := future.Error(); err != nil {
			return nil, fmt.Errorf("bootstrap cluster: %w", err)
		}
	}

	return &Coordinator{cfg: cfg, fsm: f, raft: r, trans: transport}, nil
}

// IsLeader implements cluster.Coordinator.
func (c *Coordinator) IsLeader() bool {
	return c.raft.State() == raft.Leader
}

// LeaderHint implements cluster.Coordinator.
func (c *Coordinator) LeaderHint() (id string, addr string, ok bool) {
	a, i := c.raft.LeaderWithID()
	if i == "" {
		return "", "", false
	}
	return string(i), string(a), true
}

// Members implements cluster.Coordinator.
func (c *Coordinator) Members() []cluster.Member {
	future := c.raft.GetConfiguration()
	if err := future.Error(); err != nil {
		return nil
	}
	leaderAddr, leaderID := c.raft.LeaderWithID()
	members := make([]cluster.Member, 0, len(future.Configuration().Servers))
	for _, s := range future.Configuration().Servers {
		members = append(members, cluster.Member{
			ID:       string(s.ID),
			Addr:     string(s.Address),
			IsLeader: s.ID == leaderID && s.Address == leaderAddr,
		})
	}
	return members
}

// Apply implements cluster.Coordinator. It replicates payload as a
// "publish" command and waits for raft to commit it, honoring ctx's
// deadline.
func (c *Coordinator) Apply(ctx context.Context, payload []byte) error {
	cmd := Command{Op: "publish", Data: payload}
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("encode command: %w", err)
	}

	timeout := 10 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}

	future := c.raft.Apply(data, timeout)
	if err := future.Error(); err != nil {
		return fmt.Errorf("apply command: %w", err)
	}
	if fsmErr, ok := future.Response().(error); ok {
		return fmt.Errorf("fsm apply: %w", fsmErr)
	}
	return nil
}

// Shutdown implements cluster.Coordinator.
func (c *Coordinator) Shutdown() error {
	if err := c.raft.Shutdown().Error(); err != nil {
		return fmt.Errorf("shutdown raft: %w", err)
	}
	return nil
}
