package syncproto_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"testing"

	"github.com/adbsmartd/adbsmartd/internal/syncproto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(tag string, payload []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString(tag)
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	buf.Write(lenBuf[:])
	buf.Write(payload)
	return buf.Bytes()
}

// doneRecord builds a client-sent SEND-stream terminator: DONE's length
// field carries the file's final mtime directly, with no payload bytes
// following it on the wire (unlike every other record tag).
func doneRecord(mtime uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("DONE")
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], mtime)
	buf.Write(lenBuf[:])
	return buf.Bytes()
}

func readRecordFrom(t *testing.T, r io.Reader) (string, []byte) {
	t.Helper()
	var header [8]byte
	_, err := io.ReadFull(r, header[:])
	require.NoError(t, err)
	tag := string(header[:4])
	n := binary.LittleEndian.Uint32(header[4:8])
	payload := make([]byte, n)
	_, err = io.ReadFull(r, payload)
	require.NoError(t, err)
	return tag, payload
}

func TestSendThenRecvRoundTrip(t *testing.T) {
	fs := syncproto.NewMemoryFileSystem()

	var client bytes.Buffer
	client.Write(record("SEND", []byte("/d/f,420")))
	client.Write(record("DATA", []byte("hello, world!")))
	client.Write(doneRecord(1700000000))
	client.Write(record("RECV", []byte("/d/f")))
	client.Write(record("QUIT", nil))

	var out bytes.Buffer
	r := bufio.NewReader(&client)
	w := bufio.NewWriter(&out)

	err := syncproto.Serve(context.Background(), r, w, fs, nil)
	require.NoError(t, err)

	resp := bufio.NewReader(&out)
	tag, payload := readRecordFrom(t, resp)
	assert.Equal(t, "OKAY", tag)
	assert.Empty(t, payload)

	var data []byte
	for {
		tag, payload := readRecordFrom(t, resp)
		if tag == "DONE" {
			break
		}
		require.Equal(t, "DATA", tag)
		data = append(data, payload...)
	}
	assert.Equal(t, "hello, world!", string(data))

	st, err := fs.Stat("/d/f")
	require.NoError(t, err)
	assert.Equal(t, uint32(1700000000), st.Mtime)
}

func TestListProducesDentThenDoneAndEndsSession(t *testing.T) {
	fs := syncproto.NewMemoryFileSystem()
	wc, err := fs.OpenForWrite("/dir/a.txt", 0o644)
	require.NoError(t, err)
	_, err = wc.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, wc.Close())

	var client bytes.Buffer
	client.Write(record("LIST", []byte("/dir")))

	var out bytes.Buffer
	err = syncproto.Serve(context.Background(), bufio.NewReader(&client), bufio.NewWriter(&out), fs, nil)
	require.NoError(t, err)

	resp := bufio.NewReader(&out)
	tag, payload := readRecordFrom(t, resp)
	require.Equal(t, "DENT", tag)
	require.Len(t, payload, 16+len("a.txt"))
	assert.Equal(t, "a.txt", string(payload[16:]))

	tag, _ = readRecordFrom(t, resp)
	assert.Equal(t, "DONE", tag)

	_, err = resp.ReadByte()
	assert.Equal(t, io.EOF, err, "LIST ends the sync session after DONE")
}

func TestStatOnMissingPathIsAllZero(t *testing.T) {
	fs := syncproto.NewMemoryFileSystem()

	var client bytes.Buffer
	client.Write(record("STAT", []byte("/nope")))
	client.Write(record("QUIT", nil))

	var out bytes.Buffer
	err := syncproto.Serve(context.Background(), bufio.NewReader(&client), bufio.NewWriter(&out), fs, nil)
	require.NoError(t, err)

	resp := bufio.NewReader(&out)
	tag, payload := readRecordFrom(t, resp)
	require.Equal(t, "STAT", tag)
	assert.Equal(t, make([]byte, 12), payload)
}
