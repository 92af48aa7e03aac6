package wire

import (
	"bytes"
	"context"
	"io"
	"testing"
)

func TestPutUint32RoundTrip(t *testing.T) {
	buf := PutUint32(nil, 0xDEADBEEF)
	if len(buf) != 4 {
		t.Fatalf("len = %d, want 4", len(buf))
	}
	d := NewDecoder(buf)
	v, err := d.Uint32()
	if err != nil {
		t.Fatal(err)
	}
	if v != 0xDEADBEEF {
		t.Errorf("got %x, want %x", v, 0xDEADBEEF)
	}
}

func TestStringRoundTripEmpty(t *testing.T) {
	buf := PutString(nil, "")
	d := NewDecoder(buf)
	s, err := d.String()
	if err != nil {
		t.Fatal(err)
	}
	if s != "" {
		t.Errorf("got %q, want empty", s)
	}
	if d.Remaining() != 0 {
		t.Errorf("remaining = %d, want 0", d.Remaining())
	}
}

func TestBytesRoundTrip(t *testing.T) {
	buf := PutBytes(nil, []byte{1, 2, 3})
	d := NewDecoder(buf)
	got, err := d.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte{1, 2, 3}) {
		t.Errorf("got %v", got)
	}
}

func TestDecoderShortBufferIsRecoverable(t *testing.T) {
	buf := PutUint64(nil, 5) // claims 5 bytes follow but none do
	d := NewDecoder(buf)
	_, err := d.Bytes()
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsShortBuffer(err) {
		t.Errorf("expected short-buffer error, got %v", err)
	}
}

func TestDecoderBacktrack(t *testing.T) {
	d := NewDecoder(PutUint32(nil, 1))
	start := d.Offset()
	if _, err := d.Uint64(); err == nil {
		t.Fatal("expected short buffer reading u64 out of a u32")
	}
	d.SeekTo(start)
	v, err := d.Uint32()
	if err != nil {
		t.Fatal(err)
	}
	if v != 1 {
		t.Errorf("got %d, want 1", v)
	}
}

// chunkCollector records each Write call's length, simulating a
// ReadableStream controller that sees one enqueue per chunk.
type chunkCollector struct {
	chunks [][]byte
}

func (c *chunkCollector) Write(p []byte) (int, error) {
	cp := make([]byte, len(p))
	copy(cp, p)
	c.chunks = append(c.chunks, cp)
	return len(p), nil
}

func TestWriterFlushesAtChunkSize(t *testing.T) {
	cc := &chunkCollector{}
	w := NewWriter(cc, 4)
	w.PutUint32(1)
	w.PutUint32(2)
	ctx := context.Background()
	if err := w.EndFrame(ctx); err != nil {
		t.Fatal(err)
	}
	if len(cc.chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(cc.chunks))
	}
	for _, c := range cc.chunks {
		if len(c) != 4 {
			t.Errorf("chunk length = %d, want 4", len(c))
		}
	}
}

func TestWriterReassemblesUnitSplitAcrossChunks(t *testing.T) {
	cc := &chunkCollector{}
	w := NewWriter(cc, 3) // deliberately not a multiple of 4
	w.PutUint32(0xAABBCCDD)
	ctx := context.Background()
	if err := w.EndFrame(ctx); err != nil {
		t.Fatal(err)
	}
	var all []byte
	for _, c := range cc.chunks {
		all = append(all, c...)
	}
	d := NewDecoder(all)
	v, err := d.Uint32()
	if err != nil {
		t.Fatal(err)
	}
	if v != 0xAABBCCDD {
		t.Errorf("got %x", v)
	}
}

func TestWriterStreamStringChunking(t *testing.T) {
	cc := &chunkCollector{}
	w := NewWriter(cc, 5)
	big := bytes.Repeat([]byte("x"), 37)
	if err := w.StreamString(context.Background(), string(big)); err != nil {
		t.Fatal(err)
	}
	if err := w.EndFrame(context.Background()); err != nil {
		t.Fatal(err)
	}
	var all []byte
	for _, c := range cc.chunks {
		all = append(all, c...)
	}
	d := NewDecoder(all)
	got, err := d.String()
	if err != nil {
		t.Fatal(err)
	}
	if got != string(big) {
		t.Errorf("round trip mismatch: got %d bytes, want %d", len(got), len(big))
	}
}

func TestWriterIntoPipeBackpressure(t *testing.T) {
	pr, pw := io.Pipe()
	w := NewWriter(pw, 8)

	done := make(chan error, 1)
	go func() {
		w.PutUint32(1)
		w.PutUint32(2)
		done <- w.EndFrame(context.Background())
		pw.Close()
	}()

	got, err := io.ReadAll(pr)
	if err != nil {
		t.Fatal(err)
	}
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if len(got) != 8 {
		t.Fatalf("got %d bytes, want 8", len(got))
	}
}
