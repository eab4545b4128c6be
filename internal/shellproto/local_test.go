package shellproto

import (
	"context"
	"io"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShellExecutableHonorsOverride(t *testing.T) {
	shell, arg := shellExecutable("/opt/bin/fish")
	assert.Equal(t, "/opt/bin/fish", shell)
	if runtime.GOOS == "windows" {
		assert.Equal(t, "/c", arg)
	} else {
		assert.Equal(t, "-c", arg)
	}
}

func TestLocalExecutorSpawnRunsCommand(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("posix-only command in this test")
	}

	exec := LocalExecutor{}
	handle, err := exec.Spawn(context.Background(), "echo hi")
	require.NoError(t, err)

	out, err := io.ReadAll(handle.Stdout())
	require.NoError(t, err)
	assert.Equal(t, "hi\n", string(out))

	code, err := handle.Wait()
	require.NoError(t, err)
	assert.Equal(t, 0, code)
}

func TestLocalExecutorSpawnReportsNonZeroExit(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("posix-only command in this test")
	}

	exec := LocalExecutor{}
	handle, err := exec.Spawn(context.Background(), "exit 3")
	require.NoError(t, err)

	_, _ = io.ReadAll(handle.Stdout())
	code, err := handle.Wait()
	require.NoError(t, err)
	assert.Equal(t, 3, code)
}
