package wire

// Action tells the session what to do with the connection once a response
// has been written: close it, or read another framed request on it.
type Action int

const (
	// Close ends the session after this response (the default; ADB's
	// host services are short-lived by convention).
	Close Action = iota
	// KeepAlive reads another framed request on the same connection, or
	// hands the connection off to a sub-protocol loop (sync/shell).
	KeepAlive
)

// Kind tags the three shapes a handler result can take.
type Kind int

const (
	KindOK Kind = iota
	KindFail
	KindNoop
)

// Response is the value every route handler returns. The dispatcher
// translates it into wire bytes and a lifecycle decision; it never inspects
// handler internals beyond this struct.
type Response struct {
	Kind   Kind
	Data   []byte
	Action Action
	// RawBody suppresses the length prefix a non-raw OK/FAIL body would
	// otherwise get (used by host:tport:* replies and forward's inner OKAY).
	RawBody bool
}

// OK builds a success response with no body and Close semantics; chain
// KeepAlive()/Raw()/WithData() to adjust it.
func OK() Response {
	return Response{Kind: KindOK, Action: Close}
}

// OKData builds a success response carrying a body.
func OKData(data []byte) Response {
	return Response{Kind: KindOK, Data: data, Action: Close}
}

// Fail builds a failure response carrying a UTF-8 reason.
func Fail(reason string) Response {
	return Response{Kind: KindFail, Data: []byte(reason), Action: Close}
}

// FailBytes builds a failure response carrying a raw reason.
func FailBytes(reason []byte) Response {
	return Response{Kind: KindFail, Data: reason, Action: Close}
}

// Noop builds a response for handlers that already wrote wire bytes
// themselves; the dispatcher emits nothing for it.
func Noop() Response {
	return Response{Kind: KindNoop, Action: Close}
}

// KeepAlive marks r to keep the connection open for another request.
func (r Response) KeepAlive() Response {
	r.Action = KeepAlive
	return r
}

// Raw marks r's body to be written with no length prefix.
func (r Response) Raw() Response {
	r.RawBody = true
	return r
}

// WithData attaches a body to r.
func (r Response) WithData(data []byte) Response {
	r.Data = data
	return r
}
