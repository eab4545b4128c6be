package shellproto

import (
	"bufio"
	"context"
	"encoding/binary"
	"io"
	"sync"

	"github.com/adbsmartd/adbsmartd/pkg/metrics"
)

// PacketID is a shell protocol v2 packet type, per adb/shell_protocol.h.
type PacketID byte

const (
	PacketStdin             PacketID = 0
	PacketStdout            PacketID = 1
	PacketStderr            PacketID = 2
	PacketExit              PacketID = 3
	PacketCloseStdin        PacketID = 4
	PacketWindowSizeChange  PacketID = 5
	PacketInvalid           PacketID = 255
)

const packetHeaderSize = 5 // 1 byte ID + 4 bytes little-endian length

func encodePacket(w *bufio.Writer, mu *sync.Mutex, id PacketID, data []byte) error {
	mu.Lock()
	defer mu.Unlock()

	var header [packetHeaderSize]byte
	header[0] = byte(id)
	binary.LittleEndian.PutUint32(header[1:], uint32(len(data)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	if len(data) > 0 {
		if _, err := w.Write(data); err != nil {
			return err
		}
	}
	return w.Flush()
}

const readChunkSize = 8192

// RunV2 runs command via executor, multiplexing its stdout/stderr into
// shell protocol v2 packets on w, followed by one EXIT packet. A single
// writeMu serializes the two concurrent stream pumps onto the one
// connection, per the source's single-writer-task pattern.
//
// If the command cannot be spawned at all, the failure is still reported
// as a normal shell exit (a STDERR packet carrying the OS error text, then
// an EXIT packet with code 1) rather than an error, per the protocol's
// "handler bugs never crash the server" contract extended to spawn
// failures: the ADB client only understands packet framing here, not a
// FAIL at this point in the stream. m may be nil to disable exit-code
// accounting.
func RunV2(ctx context.Context, executor Executor, command string, w *bufio.Writer, m metrics.ServerMetrics) error {
	var writeMu sync.Mutex

	handle, err := executor.Spawn(ctx, command)
	if err != nil {
		if encErr := encodePacket(w, &writeMu, PacketStderr, []byte(err.Error())); encErr != nil {
			return encErr
		}
		if m != nil {
			m.RecordShellExit(1)
		}
		return encodePacket(w, &writeMu, PacketExit, []byte{1})
	}

	var wg sync.WaitGroup
	wg.Add(2)

	go pumpStream(&wg, handle.Stdout(), w, &writeMu, PacketStdout)
	go pumpStream(&wg, handle.Stderr(), w, &writeMu, PacketStderr)
	wg.Wait()

	exitCode, waitErr := handle.Wait()
	if waitErr != nil {
		return waitErr
	}
	if m != nil {
		m.RecordShellExit(exitCode & 0xFF)
	}
	return encodePacket(w, &writeMu, PacketExit, []byte{byte(exitCode & 0xFF)})
}

func pumpStream(wg *sync.WaitGroup, r io.Reader, w *bufio.Writer, mu *sync.Mutex, id PacketID) {
	defer wg.Done()
	if r == nil {
		return
	}
	buf := make([]byte, readChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if encErr := encodePacket(w, mu, id, buf[:n]); encErr != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// RunRaw runs command via executor, merging stdout then stderr directly
// onto w with no packet framing and no exit code, for the non-v2 shell:
// variant.
func RunRaw(ctx context.Context, executor Executor, command string, w *bufio.Writer) error {
	handle, err := executor.Spawn(ctx, command)
	if err != nil {
		return err
	}

	if err := copyRaw(handle.Stdout(), w); err != nil {
		return err
	}
	if err := copyRaw(handle.Stderr(), w); err != nil {
		return err
	}

	_, err = handle.Wait()
	return err
}

func copyRaw(r io.Reader, w *bufio.Writer) error {
	if r == nil {
		return nil
	}
	buf := make([]byte, readChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return werr
			}
			if ferr := w.Flush(); ferr != nil {
				return ferr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
