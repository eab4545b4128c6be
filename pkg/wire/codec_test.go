package wire_test

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/adbsmartd/adbsmartd/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadRequest_WellFormed(t *testing.T) {
	buf := bytes.NewBufferString("000chost:version")
	payload, err := wire.ReadRequest(buf)
	require.NoError(t, err)
	assert.Equal(t, "host:version", payload)
}

func TestReadRequest_EmptyPayload(t *testing.T) {
	buf := bytes.NewBufferString("0000")
	_, err := wire.ReadRequest(buf)
	require.Error(t, err)
	assert.Equal(t, "empty payload", err.Error())
}

func TestReadRequest_BadLengthPrefix(t *testing.T) {
	buf := bytes.NewBufferString("zzzzhost:version")
	_, err := wire.ReadRequest(buf)
	require.Error(t, err)
	assert.Equal(t, "bad length prefix", err.Error())
}

func TestReadRequest_TruncatedLengthPrefix(t *testing.T) {
	buf := bytes.NewBufferString("00")
	_, err := wire.ReadRequest(buf)
	require.Error(t, err)
	assert.Equal(t, "truncated length prefix", err.Error())
	var fe *wire.FramingError
	require.ErrorAs(t, err, &fe)
	assert.True(t, fe.Fatal)
}

func TestReadRequest_TruncatedPayload(t *testing.T) {
	buf := bytes.NewBufferString("000chost:ver")
	_, err := wire.ReadRequest(buf)
	require.Error(t, err)
	assert.Equal(t, "truncated payload", err.Error())
}

func TestWriteResponse_OKWithBody(t *testing.T) {
	var out bytes.Buffer
	w := bufio.NewWriter(&out)
	require.NoError(t, wire.WriteResponse(w, wire.OKData([]byte("0029"))))
	assert.Equal(t, "OKAY00040029", out.String())
}

func TestWriteResponse_OKNoBody(t *testing.T) {
	var out bytes.Buffer
	w := bufio.NewWriter(&out)
	require.NoError(t, wire.WriteResponse(w, wire.OK()))
	assert.Equal(t, "OKAY", out.String())
}

func TestWriteResponse_FailWithBody(t *testing.T) {
	var out bytes.Buffer
	w := bufio.NewWriter(&out)
	require.NoError(t, wire.WriteResponse(w, wire.Fail("nope")))
	assert.Equal(t, "FAIL0004nope", out.String())
}

func TestWriteResponse_RawSuppressesLength(t *testing.T) {
	var out bytes.Buffer
	w := bufio.NewWriter(&out)
	require.NoError(t, wire.WriteResponse(w, wire.OKData([]byte("OKAY")).Raw()))
	assert.Equal(t, "OKAYOKAY", out.String())
}

func TestWriteResponse_Noop(t *testing.T) {
	var out bytes.Buffer
	w := bufio.NewWriter(&out)
	require.NoError(t, wire.WriteResponse(w, wire.Noop()))
	assert.Equal(t, "", out.String())
}
