package syncproto

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/adbsmartd/adbsmartd/pkg/metrics"
)

const (
	tagLIST = "LIST"
	tagSTAT = "STAT"
	tagRECV = "RECV"
	tagSEND = "SEND"
	tagQUIT = "QUIT"
	tagDENT = "DENT"
	tagDONE = "DONE"
	tagDATA = "DATA"
	tagOKAY = "OKAY"
	tagFAIL = "FAIL"

	maxChunk = 64 * 1024
)

// Serve runs the sync v1 binary request loop over r/w until the client
// sends QUIT or the connection errors out. Per the chosen resolution of
// the source's LIST-end-of-session ambiguity (see DESIGN.md), a LIST
// round-trip ends the sync session once its DONE record is written. m
// may be nil to disable byte-transfer metrics entirely.
func Serve(ctx context.Context, r *bufio.Reader, w *bufio.Writer, fs FileSystem, m metrics.ServerMetrics) error {
	for {
		tag, payload, err := readRecord(r)
		if err != nil {
			return err
		}

		switch tag {
		case tagLIST:
			if err := handleList(fs, w, string(payload)); err != nil {
				return writeFail(w, err)
			}
			return w.Flush() // LIST ends the sync session after DONE.
		case tagSTAT:
			if err := handleStat(fs, w, string(payload)); err != nil {
				return writeFail(w, err)
			}
		case tagRECV:
			if err := handleRecv(fs, w, string(payload), m); err != nil {
				return writeFail(w, err)
			}
		case tagSEND:
			if err := handleSend(fs, r, w, string(payload), m); err != nil {
				return writeFail(w, err)
			}
		case tagQUIT:
			return nil
		default:
			return writeFail(w, fmt.Errorf("unknown sync command: %s", tag))
		}

		if err := w.Flush(); err != nil {
			return err
		}
	}
}

func readRecord(r *bufio.Reader) (string, []byte, error) {
	var header [8]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return "", nil, err
	}
	tag := string(header[:4])
	length := binary.LittleEndian.Uint32(header[4:8])

	// DONE carries the file's final mtime directly in the length field;
	// unlike every other record, no payload bytes follow it on the wire.
	if tag == tagDONE {
		payload := make([]byte, 4)
		binary.LittleEndian.PutUint32(payload, length)
		return tag, payload, nil
	}

	if length == 0 {
		return tag, nil, nil
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return "", nil, err
	}
	return tag, payload, nil
}

func writeRecordHeader(w *bufio.Writer, tag string, length int) error {
	if _, err := w.WriteString(tag); err != nil {
		return err
	}
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(length))
	_, err := w.Write(lenBuf[:])
	return err
}

func writeStatRecord(w *bufio.Writer, st FileStat) error {
	if err := writeRecordHeader(w, tagSTAT, 12); err != nil {
		return err
	}
	var body [12]byte
	binary.LittleEndian.PutUint32(body[0:4], st.Mode)
	binary.LittleEndian.PutUint32(body[4:8], st.Size)
	binary.LittleEndian.PutUint32(body[8:12], st.Mtime)
	_, err := w.Write(body[:])
	return err
}

func writeDoneRecord(w *bufio.Writer) error {
	return writeRecordHeader(w, tagDONE, 0)
}

func writeFail(w *bufio.Writer, cause error) error {
	msg := cause.Error()
	if err := writeRecordHeader(w, tagFAIL, len(msg)); err != nil {
		return err
	}
	if _, err := w.WriteString(msg); err != nil {
		return err
	}
	return w.Flush()
}

func handleStat(fs FileSystem, w *bufio.Writer, path string) error {
	st, err := fs.Stat(path)
	if err != nil {
		return err
	}
	return writeStatRecord(w, st)
}

func handleList(fs FileSystem, w *bufio.Writer, path string) error {
	entries, err := fs.Iterdir(path)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := writeRecordHeader(w, tagDENT, 16+len(e.Name)); err != nil {
			return err
		}
		var fixed [16]byte
		binary.LittleEndian.PutUint32(fixed[0:4], e.Mode)
		binary.LittleEndian.PutUint32(fixed[4:8], e.Size)
		binary.LittleEndian.PutUint32(fixed[8:12], e.Mtime)
		binary.LittleEndian.PutUint32(fixed[12:16], uint32(len(e.Name)))
		if _, err := w.Write(fixed[:]); err != nil {
			return err
		}
		if _, err := w.WriteString(e.Name); err != nil {
			return err
		}
	}
	return writeDoneRecord(w)
}

func handleRecv(fs FileSystem, w *bufio.Writer, path string, m metrics.ServerMetrics) error {
	rc, err := fs.OpenForRead(path)
	if err != nil {
		return err
	}
	defer rc.Close()

	buf := make([]byte, maxChunk)
	for {
		n, readErr := rc.Read(buf)
		if n > 0 {
			if err := writeRecordHeader(w, tagDATA, n); err != nil {
				return err
			}
			if _, err := w.Write(buf[:n]); err != nil {
				return err
			}
			if m != nil {
				m.RecordSyncBytes("recv", uint64(n))
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return readErr
		}
	}
	return writeDoneRecord(w)
}

func handleSend(fs FileSystem, r *bufio.Reader, w *bufio.Writer, header string, m metrics.ServerMetrics) error {
	path, mode, err := parseSendHeader(header)
	if err != nil {
		return err
	}

	wc, err := fs.OpenForWrite(path, mode)
	if err != nil {
		return err
	}

	for {
		tag, payload, err := readRecord(r)
		if err != nil {
			wc.Close()
			return err
		}
		switch tag {
		case tagDATA:
			if _, err := wc.Write(payload); err != nil {
				wc.Close()
				return err
			}
			if m != nil {
				m.RecordSyncBytes("send", uint64(len(payload)))
			}
		case tagDONE:
			if err := wc.Close(); err != nil {
				return err
			}
			mtime := binary.LittleEndian.Uint32(payload)
			if err := fs.SetMtime(path, mtime); err != nil {
				return err
			}
			return writeRecordHeader(w, tagOKAY, 0)
		default:
			wc.Close()
			return fmt.Errorf("unexpected record in SEND stream: %s", tag)
		}
	}
}

// parseSendHeader splits a SEND payload "path,mode" into its parts. mode
// is the decimal POSIX permission bits, per the wire format.
func parseSendHeader(header string) (path string, mode uint32, err error) {
	idx := strings.LastIndexByte(header, ',')
	if idx == -1 {
		return "", 0, fmt.Errorf("malformed SEND header: %q", header)
	}
	path = header[:idx]
	var m uint64
	if _, scanErr := fmt.Sscanf(header[idx+1:], "%d", &m); scanErr != nil {
		return "", 0, fmt.Errorf("malformed SEND mode: %q", header[idx+1:])
	}
	return path, uint32(m), nil
}

