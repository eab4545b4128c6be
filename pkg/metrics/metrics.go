// Package metrics defines adbsmartd's observability surface. ServerMetrics
// is optional: a nil value disables collection with zero overhead, the
// same contract as the teacher's pkg/metrics.NFSMetrics.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// ServerMetrics records dispatcher, sync, and shell activity. Pass nil
// anywhere a ServerMetrics is accepted to disable metrics entirely.
type ServerMetrics interface {
	// RecordRequest records one completed dispatch, keyed by the matched
	// route pattern and whether it ended in FAIL.
	RecordRequest(route string, failed bool)

	// RecordRequestStart/RecordRequestEnd bracket a dispatch in flight.
	RecordRequestStart(route string)
	RecordRequestEnd(route string)

	// RecordSyncBytes records the bytes of one DATA chunk of a sync:/ RECV
	// or SEND.
	RecordSyncBytes(direction string, bytes uint64)

	// RecordShellExit records a shell,v2: command's exit code. The raw
	// shell: variant does not report one.
	RecordShellExit(exitCode int)

	// RecordConnectionOpened/RecordConnectionClosed track session lifecycle.
	RecordConnectionOpened()
	RecordConnectionClosed()
}

var (
	mu       sync.Mutex
	registry *prometheus.Registry
	enabled  bool
)

// InitRegistry creates the process-wide Prometheus registry backing
// prometheus.NewServerMetrics. Safe to call once at startup; a second call
// is a no-op.
func InitRegistry() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()
	if registry == nil {
		registry = prometheus.NewRegistry()
		enabled = true
	}
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled
}

// GetRegistry returns the process-wide registry, creating it if needed.
func GetRegistry() *prometheus.Registry {
	return InitRegistry()
}
