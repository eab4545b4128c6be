// Package session implements one smart-socket connection's read/dispatch
// loop: it owns the paired reader/writer, a fresh session identity, and
// per-session mutable state, driving the dispatcher's post-action
// (CLOSE/KEEP_ALIVE) until the connection ends.
package session

import (
	"bufio"
	"context"
	"net"

	"github.com/google/uuid"

	"github.com/adbsmartd/adbsmartd/internal/logger"
	"github.com/adbsmartd/adbsmartd/internal/telemetry"
	"github.com/adbsmartd/adbsmartd/pkg/wire"
)

// Dispatcher is implemented by the router/device glue (see
// internal/dispatch) so this package doesn't depend on it directly,
// avoiding an import cycle between session and dispatch.
type Dispatcher interface {
	Dispatch(ctx context.Context, payload string, sess *Session) (wire.Action, error)
}

// Session is one accepted TCP connection. Created on accept, discarded on
// close; never shared across connections. Device selection is tracked by
// the device.Registry keyed on ID, not duplicated here.
type Session struct {
	ID        string
	conn      net.Conn
	reader    *bufio.Reader
	writer    *bufio.Writer
	enableLog bool
}

// New wraps conn in a fresh Session with a unique ID.
func New(conn net.Conn) *Session {
	return &Session{
		ID:        uuid.NewString(),
		conn:      conn,
		reader:    bufio.NewReader(conn),
		writer:    bufio.NewWriter(conn),
		enableLog: true,
	}
}

// Conn returns the underlying connection, for sub-protocols (sync/shell)
// that need to take over raw byte I/O after a KeepAlive handoff.
func (s *Session) Conn() net.Conn { return s.conn }

// Reader exposes the buffered reader for sub-protocol handoff.
func (s *Session) Reader() *bufio.Reader { return s.reader }

// Writer exposes the buffered writer for sub-protocol handoff.
func (s *Session) Writer() *bufio.Writer { return s.writer }

// SuppressLog disables Run's Debug-level per-request "recv" log line until
// the returned restore func is called.
func (s *Session) SuppressLog() (restore func()) {
	old := s.enableLog
	s.enableLog = false
	return func() { s.enableLog = old }
}

// Run drives the framed-request loop: read one request, dispatch it, then
// close or read another request per the dispatcher's returned Action.
// ctx carries the connection's base LogContext/trace root.
func (s *Session) Run(ctx context.Context, dispatcher Dispatcher) {
	defer s.conn.Close()

	for {
		payload, err := wire.ReadRequest(s.reader)
		if err != nil {
			s.logRecvError(ctx, err)
			var fe *wire.FramingError
			reason := "malformed request"
			if e, ok := err.(*wire.FramingError); ok {
				fe = e
				reason = fe.Reason
			}
			_ = wire.WriteResponse(s.writer, wire.Fail(reason))
			return
		}

		if s.enableLog {
			logger.DebugCtx(ctx, "recv", "bytes", len(payload))
		}

		action, err := dispatcher.Dispatch(ctx, payload, s)
		if err != nil {
			logger.ErrorCtx(ctx, "dispatch failed", logger.KeyError, err.Error())
			return
		}

		switch action {
		case wire.Close:
			return
		case wire.KeepAlive:
			continue
		}
	}
}

func (s *Session) logRecvError(ctx context.Context, err error) {
	logger.WarnCtx(ctx, "request framing error", logger.KeyError, err.Error())
	telemetry.RecordError(ctx, err)
}
