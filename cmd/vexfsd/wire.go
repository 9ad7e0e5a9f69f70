package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vexfs/vexfs/internal/logger"
	"github.com/vexfs/vexfs/pkg/block"
	"github.com/vexfs/vexfs/pkg/block/badgerstore"
	vexraft "github.com/vexfs/vexfs/pkg/cluster/raft"
	"github.com/vexfs/vexfs/pkg/config"
	"github.com/vexfs/vexfs/pkg/deadlock"
	"github.com/vexfs/vexfs/pkg/durability"
	"github.com/vexfs/vexfs/pkg/event"
	"github.com/vexfs/vexfs/pkg/filtering"
	"github.com/vexfs/vexfs/pkg/fs"
	"github.com/vexfs/vexfs/pkg/httpshim"
	"github.com/vexfs/vexfs/pkg/journal"
	"github.com/vexfs/vexfs/pkg/lock"
	"github.com/vexfs/vexfs/pkg/metrics"
	promMetrics "github.com/vexfs/vexfs/pkg/metrics/prometheus"
	"github.com/vexfs/vexfs/pkg/propagation"
	"github.com/vexfs/vexfs/pkg/routing"
	"github.com/vexfs/vexfs/pkg/semjournal"
	"github.com/vexfs/vexfs/pkg/stream"
	"github.com/vexfs/vexfs/pkg/telemetry"
	"github.com/vexfs/vexfs/pkg/txn"
)

// components holds every long-lived subsystem the daemon wires
// together; buildComponents constructs them and shutdown tears them down.
type components struct {
	cfg *config.Config

	shutdownTelemetry func(context.Context) error
	shutdownProfiling func() error

	device     block.Device
	jrnl       *journal.Journal
	durability *durability.Manager
	locks      *lock.Manager
	deadlocks  *deadlock.Detector
	txns       *txn.Manager
	fs         *fs.Filesystem

	emitter     *event.Emitter
	semjrnl     *semjournal.Journal
	bridge      *semjournal.Bridge
	routing     *routing.Engine
	propagation *propagation.Manager
	streams     *stream.Manager

	vectors *httpshim.InProcessCore

	cluster *vexraft.Coordinator
}

// streamSink adapts the stream manager to propagation.Sink so every
// published event also fans out to local WebSocket subscribers.
type streamSink struct {
	streams *stream.Manager
}

func (s *streamSink) Deliver(_ context.Context, _ propagation.Boundary, e *event.Event) error {
	s.streams.BroadcastEvent(e)
	return nil
}

func buildComponents(ctx context.Context, cfg *config.Config) (*components, error) {
	c := &components{cfg: cfg}

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:     cfg.Telemetry.Enabled,
		ServiceName: cfg.Telemetry.ServiceName,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    true,
		SampleRate:  cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	c.shutdownTelemetry = shutdownTelemetry

	shutdownProfiling, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Profiling.Enabled,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: "dev",
		Endpoint:       cfg.Profiling.Endpoint,
		ProfileTypes:   cfg.Profiling.ProfileTypes,
	})
	if err != nil {
		return nil, fmt.Errorf("init profiling: %w", err)
	}
	c.shutdownProfiling = shutdownProfiling

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		promMetrics.NewDurabilityMetrics()
		promMetrics.NewTransactionMetrics()
		promMetrics.NewSearchMetrics()
		promMetrics.NewPropagationMetrics()
		promMetrics.NewStreamMetrics()
	}

	device, err := openDevice(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open block device: %w", err)
	}
	c.device = device

	jrnl, committed, err := journal.Open(ctx, device)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	c.jrnl = jrnl
	logger.Info("journal recovered", "committed_txns", len(committed))

	durPolicy, err := durabilityPolicy(cfg.Durability.Policy)
	if err != nil {
		return nil, err
	}
	c.durability = durability.New(device, jrnl, durability.Config{
		Policy:       durPolicy,
		MaxBatch:     cfg.Durability.MaxBatch,
		BatchTimeout: cfg.Durability.BatchTimeout,
	})

	c.locks = lock.New()
	c.deadlocks = deadlock.New(c.locks)
	if err := c.deadlocks.Start(cfg.Lock.DeadlockScanCron); err != nil {
		return nil, fmt.Errorf("start deadlock detector: %w", err)
	}

	c.txns = txn.New(c.locks, jrnl, c.durability)

	filesystem, err := fs.New(ctx, c.txns)
	if err != nil {
		return nil, fmt.Errorf("init filesystem: %w", err)
	}
	c.fs = filesystem

	c.vectors = httpshim.NewInProcessCore()

	c.emitter = event.NewEmitter(uint32(os.Getpid()))
	c.semjrnl = semjournal.New()
	c.bridge = semjournal.NewBridge(c.semjrnl, []event.Type{
		event.TypeFilesystemCreate,
		event.TypeFilesystemWrite,
		event.TypeFilesystemDelete,
		event.TypeFilesystemRename,
		event.TypeVectorInsert,
		event.TypeVectorDelete,
		event.TypeGraphEdgeCreate,
		event.TypeGraphEdgeDelete,
	}, true, false)

	c.streams = stream.New(stream.Config{
		MaxSubscriptionsPerAgent: cfg.Stream.MaxSubscriptionsPerAgent,
		MaxBufferSize:            10 * cfg.Stream.DefaultBufferSize,
		DefaultBufferSize:        cfg.Stream.DefaultBufferSize,
		SubscriptionTimeout:      5 * time.Minute,
		HeartbeatInterval:        cfg.Stream.HeartbeatInterval,
		MaxHistoricalEvents:      1000,
	})
	if err := c.streams.StartHeartbeat(); err != nil {
		return nil, fmt.Errorf("start stream heartbeat: %w", err)
	}

	c.propagation = propagation.New(&streamSink{streams: c.streams})
	c.propagation.Register(propagation.Boundary{Kind: propagation.BoundaryLocalProcess}, propagation.GuaranteeFIFO)

	c.routing = routing.New()
	c.routing.AddRule(routing.Rule{
		Name:     "vector-mutations-broadcast",
		Priority: 10,
		Condition: routing.Condition{
			EventTypes: []event.Type{event.TypeVectorInsert, event.TypeVectorDelete},
		},
		Policy:   propagation.Policy{Kind: propagation.PolicyBroadcast},
		Terminal: true,
	})

	if cfg.Cluster.Enabled {
		coord, err := vexraft.Bootstrap(vexraft.Config{
			NodeID:    cfg.Cluster.NodeID,
			BindAddr:  cfg.Cluster.BindAddr,
			DataDir:   cfg.Cluster.DataDir,
			Bootstrap: cfg.Cluster.Bootstrap,
		})
		if err != nil {
			return nil, fmt.Errorf("bootstrap cluster coordinator: %w", err)
		}
		c.cluster = coord
	}

	return c, nil
}

// publish emits e through the kernel/userspace semantic journal bridge,
// the routing engine, and the propagation manager, in that order.
func (c *components) publish(ctx context.Context, e *event.Event) {
	if _, err := c.bridge.UserspaceToKernel(e); err != nil {
		logger.WarnCtx(ctx, "semantic journal bridge rejected event", "event_id", e.ID, "error", err)
	}

	decision, err := c.routing.Route(e, propagation.BoundaryLocalProcess, 0)
	if err != nil {
		logger.WarnCtx(ctx, "routing refused event", "event_id", e.ID, "error", err)
		return
	}
	for _, rule := range decision.Matched {
		if err := c.propagation.Publish(e, rule.Policy); err != nil {
			logger.WarnCtx(ctx, "propagation failed", "rule", rule.Name, "error", err)
		}
	}
}

func (c *components) filterChain() *filtering.Chain {
	return filtering.NewChain(filtering.PriorityFilter{MinPriority: event.PriorityLow})
}

func (c *components) shutdown(ctx context.Context) {
	if c.cluster != nil {
		if err := c.cluster.Shutdown(); err != nil {
			logger.Warn("cluster shutdown failed", "error", err)
		}
	}
	c.streams.StopHeartbeat()
	c.deadlocks.Stop()
	c.durability.Close()
	if err := c.jrnl.Close(ctx); err != nil {
		logger.Warn("journal close failed", "error", err)
	}
	if err := c.device.Close(); err != nil {
		logger.Warn("device close failed", "error", err)
	}
	if c.shutdownTelemetry != nil {
		if err := c.shutdownTelemetry(ctx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}
	if c.shutdownProfiling != nil {
		if err := c.shutdownProfiling(); err != nil {
			logger.Warn("profiling shutdown failed", "error", err)
		}
	}
}

func openDevice(cfg config.StorageConfig) (block.Device, error) {
	const totalBlocks = 1 << 20
	switch cfg.Backend {
	case "memory":
		return block.NewMemoryDevice(uint32(cfg.BlockSize), totalBlocks), nil
	case "badger":
		dir := filepath.Join(cfg.DataDir, "blocks")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
		return badgerstore.Open(dir, uint32(cfg.BlockSize), totalBlocks)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func durabilityPolicy(name string) (durability.Policy, error) {
	switch name {
	case "none":
		return durability.PolicyNone, nil
	case "metadata-only":
		return durability.PolicyMetadataOnly, nil
	case "data-plus-metadata":
		return durability.PolicyDataPlusMetadata, nil
	case "strict":
		return durability.PolicyStrict, nil
	case "configurable":
		return durability.PolicyConfigurable, nil
	default:
		return 0, fmt.Errorf("unknown durability policy %q", name)
	}
}
