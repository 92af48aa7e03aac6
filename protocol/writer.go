package protocol

import (
	"context"
	"io"

	"github.com/dnorman/domcorder/wire"
)

// Writer sequences Frame encoders onto a wire.Writer, calling EndFrame
// after each one so no frame's bytes stay staged once WriteFrame returns.
// Chunks are cut at chunkSize offsets and can end mid-field; Reader
// reassembles frames across chunk boundaries.
type Writer struct {
	w *wire.Writer
}

// NewWriter wraps out with a wire.Writer chunked at chunkSize bytes. If
// fileHeader is non-nil it is written immediately, ahead of any frame,
// per spec.md §4.9.
func NewWriter(ctx context.Context, out io.Writer, chunkSize int, fileHeader *Header) (*Writer, error) {
	if fileHeader != nil {
		if err := WriteHeader(ctx, out, *fileHeader); err != nil {
			return nil, err
		}
	}
	return &Writer{w: wire.NewWriter(out, chunkSize)}, nil
}

// WriteFrame encodes f and flushes the frame boundary. A blocked
// downstream consumer (the other end of an io.Pipe) suspends this call
// exactly at EndFrame's chunk writes — the "await" point spec.md §5
// describes.
func (w *Writer) WriteFrame(ctx context.Context, f Frame) error {
	if err := f.Encode(ctx, w.w); err != nil {
		return err
	}
	return w.w.EndFrame(ctx)
}
