// Package metrics defines the observability interfaces the rest of
// the tree instruments against, grounded on dittofs's pkg/metrics
// (cache.go/nfs.go/s3.go): small interfaces per subsystem, nil-safe
// so a caller can pass nil to disable metrics with zero overhead, and
// a process-wide registry gate (InitRegistry/IsEnabled/GetRegistry)
// that the prometheus subpackage's constructors check before wiring
// up real collectors.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	registry *prometheus.Registry
	enabled  bool
)

// InitRegistry creates and installs the process-wide Prometheus
// registry. Call once at startup before constructing any
// prometheus-backed metrics implementation.
func InitRegistry() *prometheus.Registry {
	registry = prometheus.NewRegistry()
	enabled = true
	return registry
}

// IsEnabled reports whether InitRegistry has run.
func IsEnabled() bool { return enabled }

// GetRegistry returns the process-wide registry, or nil if
// InitRegistry has not run.
func GetRegistry() *prometheus.Registry { return registry }
