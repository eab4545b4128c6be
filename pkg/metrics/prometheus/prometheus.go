// Package prometheus is the promauto-based implementation of
// metrics.ServerMetrics, grounded on the teacher's pkg/metrics/prometheus
// collectors (badger.go, cache.go, s3.go).
package prometheus

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/adbsmartd/adbsmartd/pkg/metrics"
)

type serverMetrics struct {
	requestsTotal    *prometheus.CounterVec
	requestsFailed   *prometheus.CounterVec
	requestsInFlight *prometheus.GaugeVec
	syncBytes        *prometheus.CounterVec
	shellExits       *prometheus.CounterVec
	connectionsOpen  prometheus.Gauge
	connectionsTotal prometheus.Counter
}

// NewServerMetrics registers adbsmartd's collectors against reg and
// returns a metrics.ServerMetrics. Pass nil for reg to disable metrics
// with zero overhead (mirrors NewBadgerMetrics's metrics.IsEnabled guard).
func NewServerMetrics(reg *prometheus.Registry) metrics.ServerMetrics {
	if reg == nil {
		return nil
	}

	return &serverMetrics{
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "adbsmartd_requests_total",
				Help: "Total dispatched requests by matched route.",
			},
			[]string{"route"},
		),
		requestsFailed: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "adbsmartd_requests_failed_total",
				Help: "Total dispatched requests that ended in FAIL, by matched route.",
			},
			[]string{"route"},
		),
		requestsInFlight: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "adbsmartd_requests_in_flight",
				Help: "Requests currently being dispatched, by matched route.",
			},
			[]string{"route"},
		),
		syncBytes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "adbsmartd_sync_bytes_total",
				Help: "Bytes transferred over sync:/ by direction (send, recv).",
			},
			[]string{"direction"},
		),
		shellExits: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "adbsmartd_shell_exits_total",
				Help: "Shell command exit codes, by code.",
			},
			[]string{"exit_code"},
		),
		connectionsOpen: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "adbsmartd_connections_open",
				Help: "Currently open smart-socket connections.",
			},
		),
		connectionsTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "adbsmartd_connections_total",
				Help: "Total smart-socket connections accepted.",
			},
		),
	}
}

func (m *serverMetrics) RecordRequest(route string, failed bool) {
	m.requestsTotal.WithLabelValues(route).Inc()
	if failed {
		m.requestsFailed.WithLabelValues(route).Inc()
	}
}

func (m *serverMetrics) RecordRequestStart(route string) {
	m.requestsInFlight.WithLabelValues(route).Inc()
}

func (m *serverMetrics) RecordRequestEnd(route string) {
	m.requestsInFlight.WithLabelValues(route).Dec()
}

func (m *serverMetrics) RecordSyncBytes(direction string, bytes uint64) {
	m.syncBytes.WithLabelValues(direction).Add(float64(bytes))
}

func (m *serverMetrics) RecordShellExit(exitCode int) {
	m.shellExits.WithLabelValues(strconv.Itoa(exitCode)).Inc()
}

func (m *serverMetrics) RecordConnectionOpened() {
	m.connectionsOpen.Inc()
	m.connectionsTotal.Inc()
}

func (m *serverMetrics) RecordConnectionClosed() {
	m.connectionsOpen.Dec()
}
