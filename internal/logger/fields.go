package logger

// Standard field keys for structured logging, kept consistent across the
// session loop, router, and sub-protocol handlers.
const (
	KeyTraceID      = "trace_id"
	KeySpanID       = "span_id"
	KeySessionID    = "session_id"
	KeyClientIP     = "client_ip"
	KeyRoute        = "route"
	KeyDeviceSerial = "device_serial"
	KeyPayload      = "payload"
	KeyBytes        = "bytes"
	KeyDurationMs   = "duration_ms"
	KeyError        = "error"
)
