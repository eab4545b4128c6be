package logger

import "context"

type contextKey struct{}

var logContextKey = contextKey{}

// LogContext holds request-scoped fields attached to a session's requests:
// the session identity, the remote peer, and (once routed) the matched
// pattern and bound device serial.
type LogContext struct {
	TraceID      string
	SpanID       string
	SessionID    string
	RemoteAddr   string
	Route        string
	DeviceSerial string
}

// WithContext returns a context carrying lc.
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext previously attached with WithContext,
// or nil if none is present.
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a LogContext for a freshly accepted session.
func NewLogContext(sessionID, remoteAddr string) *LogContext {
	return &LogContext{SessionID: sessionID, RemoteAddr: remoteAddr}
}

// Clone returns a copy of lc.
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	clone := *lc
	return &clone
}

// WithRoute returns a copy of lc with Route set.
func (lc *LogContext) WithRoute(route string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Route = route
	}
	return clone
}

// WithDevice returns a copy of lc with DeviceSerial set.
func (lc *LogContext) WithDevice(serial string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.DeviceSerial = serial
	}
	return clone
}

// WithTrace returns a copy of lc with trace/span IDs set.
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}
