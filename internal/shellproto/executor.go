// Package shellproto implements shell:/shell,v2: command execution and the
// shell protocol v2 packet multiplexing, grounded on shell.py's
// LocalShellService. exec: is routed but answered with FAIL.
package shellproto

import (
	"context"
	"io"
)

// Handle is a running command: its stdout/stderr streams and a Wait that
// blocks for the exit code.
type Handle interface {
	Stdout() io.Reader
	Stderr() io.Reader
	Wait() (exitCode int, err error)
}

// Executor spawns commands. Implementations may use the host shell or a
// simulator.
type Executor interface {
	Spawn(ctx context.Context, command string) (Handle, error)
}
