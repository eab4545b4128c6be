package shellproto_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/adbsmartd/adbsmartd/internal/shellproto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExecutor struct {
	stdout, stderr string
	exitCode       int
}

func (f *fakeExecutor) Spawn(ctx context.Context, command string) (shellproto.Handle, error) {
	return &fakeHandle{
		stdout:   strings.NewReader(f.stdout),
		stderr:   strings.NewReader(f.stderr),
		exitCode: f.exitCode,
	}, nil
}

type fakeHandle struct {
	stdout, stderr io.Reader
	exitCode       int
}

func (h *fakeHandle) Stdout() io.Reader   { return h.stdout }
func (h *fakeHandle) Stderr() io.Reader   { return h.stderr }
func (h *fakeHandle) Wait() (int, error) { return h.exitCode, nil }

func readPacket(t *testing.T, r *bufio.Reader) (shellproto.PacketID, []byte) {
	t.Helper()
	var header [5]byte
	_, err := io.ReadFull(r, header[:])
	require.NoError(t, err)
	id := shellproto.PacketID(header[0])
	n := binary.LittleEndian.Uint32(header[1:])
	payload := make([]byte, n)
	if n > 0 {
		_, err = io.ReadFull(r, payload)
		require.NoError(t, err)
	}
	return id, payload
}

func TestRunV2_EmitsStdoutStderrThenExit(t *testing.T) {
	exec := &fakeExecutor{stdout: "out", stderr: "err", exitCode: 7}

	var out bytes.Buffer
	w := bufio.NewWriter(&out)
	err := shellproto.RunV2(context.Background(), exec, "irrelevant", w, nil)
	require.NoError(t, err)

	r := bufio.NewReader(&out)
	var stdoutData, stderrData []byte
	var exitCode byte
	for {
		id, payload := readPacket(t, r)
		switch id {
		case shellproto.PacketStdout:
			stdoutData = append(stdoutData, payload...)
		case shellproto.PacketStderr:
			stderrData = append(stderrData, payload...)
		case shellproto.PacketExit:
			require.Len(t, payload, 1)
			exitCode = payload[0]
		}
		if id == shellproto.PacketExit {
			break
		}
	}

	assert.Equal(t, "out", string(stdoutData))
	assert.Equal(t, "err", string(stderrData))
	assert.Equal(t, byte(7), exitCode)
}

type failingExecutor struct{ err error }

func (f *failingExecutor) Spawn(ctx context.Context, command string) (shellproto.Handle, error) {
	return nil, f.err
}

func TestRunV2_SpawnFailureEmitsStderrThenExitOne(t *testing.T) {
	exec := &failingExecutor{err: errors.New("exec: not found")}

	var out bytes.Buffer
	w := bufio.NewWriter(&out)
	err := shellproto.RunV2(context.Background(), exec, "irrelevant", w, nil)
	require.NoError(t, err)

	r := bufio.NewReader(&out)
	id, payload := readPacket(t, r)
	require.Equal(t, shellproto.PacketStderr, id)
	assert.Equal(t, "exec: not found", string(payload))

	id, payload = readPacket(t, r)
	require.Equal(t, shellproto.PacketExit, id)
	require.Len(t, payload, 1)
	assert.Equal(t, byte(1), payload[0])
}

func TestRunRaw_MergesStdoutThenStderrNoExit(t *testing.T) {
	exec := &fakeExecutor{stdout: "out", stderr: "err", exitCode: 1}

	var out bytes.Buffer
	w := bufio.NewWriter(&out)
	err := shellproto.RunRaw(context.Background(), exec, "irrelevant", w)
	require.NoError(t, err)

	assert.Equal(t, "outerr", out.String())
}
