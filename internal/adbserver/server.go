// Package adbserver is the process-level supervisor: it owns the
// smart-socket TCP listener, spawns a session per accepted connection, and
// drives graceful shutdown on host:kill or an OS signal. Grounded on the
// teacher's pkg/adapter/nfs.NFSAdapter (listener lifecycle, connection
// wait group, idempotent shutdown via sync.Once).
package adbserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/adbsmartd/adbsmartd/internal/device"
	"github.com/adbsmartd/adbsmartd/internal/dispatch"
	"github.com/adbsmartd/adbsmartd/internal/forward"
	"github.com/adbsmartd/adbsmartd/internal/hostsvc"
	"github.com/adbsmartd/adbsmartd/internal/logger"
	"github.com/adbsmartd/adbsmartd/internal/session"
	"github.com/adbsmartd/adbsmartd/internal/shellproto"
	"github.com/adbsmartd/adbsmartd/internal/syncproto"
	"github.com/adbsmartd/adbsmartd/internal/telemetry"
	"github.com/adbsmartd/adbsmartd/pkg/metrics"
)

// Config configures the supervisor. ListenHost/ListenPort address the
// smart-socket listener; MetricsPort, when non-zero, starts a separate
// /metrics HTTP listener.
type Config struct {
	ListenHost      string
	ListenPort      int
	ProtocolVersion int
	ServerFeatures  []string
	ShutdownTimeout time.Duration
	MetricsPort     int

	// Registry is the Prometheus registry m's collectors were registered
	// against. Required when MetricsPort is non-zero; ignored otherwise.
	Registry *prometheus.Registry
}

// Server is the smart-socket supervisor: one TCP listener, one App routing
// every connection's requests, and a device registry shared across
// sessions.
type Server struct {
	cfg     Config
	devices device.Registry
	app     *dispatch.App
	metrics metrics.ServerMetrics

	mu       sync.RWMutex
	listener net.Listener
	metricsL net.Listener

	activeConns sync.WaitGroup
	shutdownOnce sync.Once
	shutdown     chan struct{}
	readyOnce    sync.Once
	ready        chan struct{}
}

// New builds a Server wired with the host service, forward service, sync,
// and shell,v2 routes against devices. metrics may be nil.
func New(cfg Config, devices device.Registry, fs syncproto.FileSystem, executor shellproto.Executor, m metrics.ServerMetrics) *Server {
	app := dispatch.New(devices)
	app.Metrics = m

	hostSvc := &hostsvc.Service{
		Version:        cfg.ProtocolVersion,
		ServerFeatures: cfg.ServerFeatures,
		Devices:        devices,
	}
	fwdSvc := forward.New()
	syncSvc := &syncproto.Service{FS: fs, Metrics: m}
	shellSvc := &shellproto.Service{Executor: executor, Metrics: m}

	s := &Server{
		cfg:     cfg,
		devices: devices,
		app:     app,
		metrics: m,
		shutdown: make(chan struct{}),
		ready:    make(chan struct{}),
	}

	hostSvc.RequestShutdown = s.initiateShutdown
	hostSvc.Register(app)
	fwdSvc.Register(app)
	syncSvc.Register(app)
	shellSvc.Register(app)

	return s
}

// Serve binds the listener(s) and accepts connections until ctx is
// cancelled or Stop is called. It blocks until shutdown completes.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.ListenHost, s.cfg.ListenPort)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	s.readyOnce.Do(func() { close(s.ready) })

	logger.Info("adbsmartd listening", "addr", listener.Addr().String())

	if s.cfg.MetricsPort > 0 {
		if err := s.serveMetrics(); err != nil {
			logger.Warn("metrics listener failed to start", logger.KeyError, err.Error())
		}
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutdown signal received", logger.KeyError, ctx.Err())
		s.initiateShutdown()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return s.gracefulShutdown()
			default:
				logger.Debug("accept error", logger.KeyError, err.Error())
				continue
			}
		}

		s.activeConns.Add(1)
		if s.metrics != nil {
			s.metrics.RecordConnectionOpened()
		}

		go func(c net.Conn) {
			defer func() {
				s.activeConns.Done()
				if s.metrics != nil {
					s.metrics.RecordConnectionClosed()
				}
			}()
			s.serveConn(c)
		}(conn)
	}
}

// serveConn runs one accepted connection's session loop to completion,
// clearing its device selection from the shared registry afterward — the
// supervisor's responsibility since Session itself holds no selection
// state (see internal/device.Registry).
func (s *Server) serveConn(conn net.Conn) {
	sess := session.New(conn)
	lc := logger.NewLogContext(sess.ID, conn.RemoteAddr().String())
	ctx := logger.WithContext(context.Background(), lc)
	ctx, span := telemetry.StartSpan(ctx, "session")
	defer span.End()

	logger.InfoCtx(ctx, "session accepted")
	sess.Run(ctx, s.app)
	s.devices.Clear(sess.ID)
	logger.InfoCtx(ctx, "session closed")
}

// serveMetrics starts a small HTTP listener serving /metrics in Prometheus
// exposition format, independent of the smart-socket listener (ambient —
// never reachable via host:*).
func (s *Server) serveMetrics() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.ListenHost, s.cfg.MetricsPort)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	s.mu.Lock()
	s.metricsL = listener
	s.mu.Unlock()

	reg := s.cfg.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux}

	logger.Info("metrics listening", "addr", listener.Addr().String())
	go func() {
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Warn("metrics server stopped", logger.KeyError, err.Error())
		}
	}()
	return nil
}

// Ready blocks until the smart-socket listener is bound, for tests that
// need the assigned port.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Addr returns the smart-socket listener's address. Blocks until Ready.
func (s *Server) Addr() net.Addr {
	<-s.ready
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listener.Addr()
}

// Stop initiates graceful shutdown and waits for it to complete or for ctx
// to expire.
func (s *Server) Stop(ctx context.Context) error {
	s.initiateShutdown()

	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// initiateShutdown closes the listener(s), unblocking Accept, and is safe
// to call multiple times or concurrently (sync.Once).
func (s *Server) initiateShutdown() {
	s.shutdownOnce.Do(func() {
		close(s.shutdown)

		s.mu.RLock()
		listener := s.listener
		metricsL := s.metricsL
		s.mu.RUnlock()

		if listener != nil {
			if err := listener.Close(); err != nil {
				logger.Debug("error closing listener", logger.KeyError, err.Error())
			}
		}
		if metricsL != nil {
			_ = metricsL.Close()
		}
	})
}

// gracefulShutdown waits up to ShutdownTimeout for in-flight sessions to
// finish their current request before returning.
func (s *Server) gracefulShutdown() error {
	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("graceful shutdown complete")
		return nil
	case <-time.After(timeout):
		logger.Warn("shutdown timeout exceeded, sessions left in flight")
		return nil
	}
}
