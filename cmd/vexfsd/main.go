// Command vexfsd runs the VexFS storage engine and its admin HTTP/WebSocket
// API: transactional ACID storage, vector search, semantic event
// propagation, and an optional Raft-coordinated cluster membrane.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/vexfs/vexfs/internal/logger"
	"github.com/vexfs/vexfs/pkg/config"
)

var (
	version = "dev"
	commit  = "none"
)

const usage = `vexfsd - VexFS storage daemon

Usage:
  vexfsd <command> [flags]

Commands:
  init     Write a sample configuration file
  start    Start the daemon
  version  Print version information

Flags:
  --config string   Path to config file (default: ./vexfs.yaml)
  --force           Overwrite an existing config file (init only)
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "init":
		runInit()
	case "start":
		runStart()
	case "version", "--version", "-v":
		fmt.Printf("vexfsd %s (commit %s)\n", version, commit)
	case "help", "--help", "-h":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n%s", os.Args[1], usage)
		os.Exit(1)
	}
}

func runInit() {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	configFile := fs.String("config", "vexfs.yaml", "path to write the config file")
	force := fs.Bool("force", false, "overwrite an existing config file")
	_ = fs.Parse(os.Args[2:])

	if !*force {
		if _, err := os.Stat(*configFile); err == nil {
			log.Fatalf("config file already exists at %s (use --force to overwrite)", *configFile)
		}
	}
	if err := config.Save(config.DefaultConfig(), *configFile); err != nil {
		log.Fatalf("write config: %v", err)
	}
	fmt.Printf("wrote default configuration to %s\n", *configFile)
}

func runStart() {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	configFile := fs.String("config", "", "path to config file")
	_ = fs.Parse(os.Args[2:])

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		log.Fatalf("init logger: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := buildComponents(ctx, cfg)
	if err != nil {
		log.Fatalf("build components: %v", err)
	}

	logger.Info("vexfsd starting", "version", version, "storage_backend", cfg.Storage.Backend, "cluster_enabled", cfg.Cluster.Enabled)

	srv := &http.Server{Addr: cfg.HTTP.Addr, Handler: newRouter(c)}
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("admin API listening", "addr", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			logger.Error("admin API server failed", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("admin API shutdown error", "error", err)
	}
	c.shutdown(shutdownCtx)
	logger.Info("vexfsd stopped")
}
