package protocol

import (
	"context"
	"errors"
	"io"

	"github.com/dnorman/domcorder/wire"
)

// ErrNeedMore is returned by Reader.Next when the buffered bytes end
// mid-frame (or mid-header): not an error in the stream, just a sign the
// caller should read more and Feed it in. It is never the error a caller
// sees at end of stream — ReadAll turns a lingering ErrNeedMore at EOF
// into a fatal "unexpected end of stream".
var ErrNeedMore = errors.New("protocol: need more data")

// Reader decodes a stream of frames delivered in arbitrary-sized pieces,
// independent of how the writer chunked them (spec.md §8's "decoding is
// independent of I/O chunk size"). Grounded on the backtrack contract
// wire.Decoder exposes: a short read rewinds to the start of the frame
// and waits, anything else is fatal and ends the stream.
type Reader struct {
	buf          []byte
	expectHeader bool
	header       Header
	haveHeader   bool
}

// NewReader returns a Reader. When expectHeader is true, the first call
// to Next consumes the 32-byte file header before any frame and makes it
// available via Header.
func NewReader(expectHeader bool) *Reader {
	return &Reader{expectHeader: expectHeader}
}

// Feed appends newly-received bytes to the internal buffer.
func (r *Reader) Feed(data []byte) {
	r.buf = append(r.buf, data...)
}

// Header returns the parsed file header, if Next has consumed one yet.
func (r *Reader) Header() (Header, bool) { return r.header, r.haveHeader }

// Next attempts to decode one frame from the buffered bytes. It returns
// ErrNeedMore if the buffer doesn't yet hold a complete frame — the
// buffer is left untouched in that case, so a later Feed followed by
// another Next retries from the same starting point. Any other error is
// fatal: the stream is malformed and decoding must stop.
func (r *Reader) Next() (Frame, error) {
	if r.expectHeader && !r.haveHeader {
		h, n, err := ReadHeader(r.buf)
		if err != nil {
			if wire.IsShortBuffer(err) {
				return nil, ErrNeedMore
			}
			return nil, err
		}
		r.header = h
		r.haveHeader = true
		r.buf = r.buf[n:]
	}

	d := wire.NewDecoder(r.buf)
	f, err := DecodeFrame(d)
	if err != nil {
		if wire.IsShortBuffer(err) {
			return nil, ErrNeedMore
		}
		return nil, err
	}
	r.buf = r.buf[d.Offset():]
	return f, nil
}

// ReadAll drives Reader off src, calling handle for each decoded frame in
// order, until src reports EOF. A clean EOF with no partially-buffered
// frame ends the loop successfully; an EOF that leaves ErrNeedMore
// pending is reported as a fatal "unexpected end of stream", matching
// spec.md §7's treatment of a truncated recording.
func ReadAll(ctx context.Context, src io.Reader, expectHeader bool, handle func(Frame) error) error {
	r := NewReader(expectHeader)
	chunk := make([]byte, 32*1024)
	pendingFrame := false

	drain := func() error {
		for {
			f, err := r.Next()
			if err == ErrNeedMore {
				pendingFrame = len(r.buf) > 0
				return nil
			}
			if err != nil {
				return err
			}
			pendingFrame = false
			if err := handle(f); err != nil {
				return err
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		n, err := src.Read(chunk)
		if n > 0 {
			r.Feed(chunk[:n])
			if derr := drain(); derr != nil {
				return derr
			}
		}
		if err == io.EOF {
			if pendingFrame {
				return &ProtocolError{Reason: "unexpected end of stream"}
			}
			return nil
		}
		if err != nil {
			return err
		}
	}
}
