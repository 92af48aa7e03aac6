package protocol

import (
	"context"
	"fmt"
	"io"

	"github.com/dnorman/domcorder/wire"
)

// Magic identifies a .dcrr recording file (spec.md §4.9).
var Magic = [4]byte{'D', 'C', 'R', 'R'}

// Version is the current file format version.
const Version uint32 = 1

// HeaderSize is the fixed on-disk size of a file header: magic(4) +
// version(4) + createdAt(8) + 16 reserved bytes, all zero today and
// reserved for future use without shifting every frame that follows.
const HeaderSize = 4 + 4 + 8 + 16

// Header is the 32-byte preamble written once at the start of a .dcrr
// file, before any frame.
type Header struct {
	CreatedAtMs uint64
}

// WriteHeader writes the fixed-size header directly to w, bypassing the
// staging/chunking Writer used for frames — the header has no yield
// points of its own.
func WriteHeader(ctx context.Context, w io.Writer, h Header) error {
	buf := make([]byte, 0, HeaderSize)
	buf = append(buf, Magic[:]...)
	buf = wire.PutUint32(buf, Version)
	buf = wire.PutUint64(buf, h.CreatedAtMs)
	buf = append(buf, make([]byte, 16)...)
	_, err := w.Write(buf)
	return err
}

// ReadHeader parses a Header from the first HeaderSize bytes of buf. It
// does not consume a partial buffer — callers must have at least
// HeaderSize bytes buffered before calling, matching Reader's contract of
// only attempting a parse once enough bytes have arrived.
func ReadHeader(buf []byte) (Header, int, error) {
	if len(buf) < HeaderSize {
		return Header{}, 0, &wire.ErrShortBuffer{What: "file header", Want: HeaderSize, Have: len(buf)}
	}
	if buf[0] != Magic[0] || buf[1] != Magic[1] || buf[2] != Magic[2] || buf[3] != Magic[3] {
		return Header{}, 0, &ProtocolError{Reason: "bad magic"}
	}
	d := wire.NewDecoder(buf[4:])
	version, err := d.Uint32()
	if err != nil {
		return Header{}, 0, &ProtocolError{Reason: "truncated header"}
	}
	if version != Version {
		return Header{}, 0, &ProtocolError{Reason: fmt.Sprintf("unsupported file version %d", version)}
	}
	createdAt, err := d.Uint64()
	if err != nil {
		return Header{}, 0, &ProtocolError{Reason: "truncated header"}
	}
	return Header{CreatedAtMs: createdAt}, HeaderSize, nil
}
