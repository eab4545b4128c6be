package router

import (
	"bufio"
	"context"
)

// ConnIO exposes a session's raw buffered reader/writer to handlers that
// take over the byte stream for a sub-protocol (sync v1, shell v2) after
// writing their own initial OKAY. This is the explicit-context-object
// re-architecture of the source's ambient "current session" variable.
type ConnIO interface {
	Reader() *bufio.Reader
	Writer() *bufio.Writer
}

type ioContextKey struct{}

// WithConnIO attaches io to ctx for the duration of one handler invocation.
func WithConnIO(ctx context.Context, io ConnIO) context.Context {
	return context.WithValue(ctx, ioContextKey{}, io)
}

// ConnIOFromContext retrieves the ConnIO attached by WithConnIO, or nil.
func ConnIOFromContext(ctx context.Context) ConnIO {
	io, _ := ctx.Value(ioContextKey{}).(ConnIO)
	return io
}
