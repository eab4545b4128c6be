package syncproto_test

import (
	"io"
	"testing"

	"github.com/adbsmartd/adbsmartd/internal/syncproto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryFileSystemWriteReadStatRoundTrip(t *testing.T) {
	fs := syncproto.NewMemoryFileSystem()

	wc, err := fs.OpenForWrite("/dir/file.txt", 0o640)
	require.NoError(t, err)
	_, err = wc.Write([]byte("payload"))
	require.NoError(t, err)
	require.NoError(t, wc.Close())

	require.NoError(t, fs.SetMtime("/dir/file.txt", 1234))

	st, err := fs.Stat("/dir/file.txt")
	require.NoError(t, err)
	assert.Equal(t, uint32(len("payload")), st.Size)
	assert.Equal(t, uint32(1234), st.Mtime)

	rc, err := fs.OpenForRead("/dir/file.txt")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestMemoryFileSystemStatOnMissingPathReturnsZeroValue(t *testing.T) {
	fs := syncproto.NewMemoryFileSystem()

	st, err := fs.Stat("/nope")
	require.NoError(t, err)
	assert.Equal(t, syncproto.FileStat{}, st)
}

func TestMemoryFileSystemIterdirListsChildrenSorted(t *testing.T) {
	fs := syncproto.NewMemoryFileSystem()
	require.NoError(t, fs.Makedirs("/dir"))

	for _, name := range []string{"b.txt", "a.txt"} {
		wc, err := fs.OpenForWrite("/dir/"+name, 0o644)
		require.NoError(t, err)
		require.NoError(t, wc.Close())
	}

	entries, err := fs.Iterdir("/dir")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a.txt", entries[0].Name)
	assert.Equal(t, "b.txt", entries[1].Name)
}

func TestLocalFileSystemWriteReadRoundTrip(t *testing.T) {
	fs := syncproto.NewLocalFileSystem(t.TempDir())

	wc, err := fs.OpenForWrite("/sub/file.bin", 0o600)
	require.NoError(t, err)
	_, err = wc.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, wc.Close())

	rc, err := fs.OpenForRead("/sub/file.bin")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	st, err := fs.Stat("/sub/file.bin")
	require.NoError(t, err)
	assert.Equal(t, uint32(len("hello")), st.Size)
}

func TestLocalFileSystemStatOnMissingPathReturnsZeroValue(t *testing.T) {
	fs := syncproto.NewLocalFileSystem(t.TempDir())

	st, err := fs.Stat("/nope")
	require.NoError(t, err)
	assert.Equal(t, syncproto.FileStat{}, st)
}
