package protocol

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/dnorman/domcorder/assets"
	"github.com/dnorman/domcorder/diff"
	"github.com/dnorman/domcorder/vdom"
	"github.com/dnorman/domcorder/wire"
)

func roundTrip(t *testing.T, f Frame) Frame {
	t.Helper()
	ctx := context.Background()
	var buf bytes.Buffer
	w := wire.NewWriter(&buf, 4096)
	if err := f.Encode(ctx, w); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if err := w.EndFrame(ctx); err != nil {
		t.Fatalf("EndFrame: %v", err)
	}

	d := wire.NewDecoder(buf.Bytes())
	got, err := DecodeFrame(d)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if d.Remaining() != 0 {
		t.Fatalf("decoder left %d unread bytes", d.Remaining())
	}
	return got
}

func TestFrameRoundTrips(t *testing.T) {
	// The wire format does not distinguish a nil slice from an empty one;
	// decoders return empty, non-nil slices, so cases spell empty slice
	// fields out as empty.
	cases := []Frame{
		Timestamp{Ts: 12345},
		Keyframe{
			Doc:        &vdom.VDocument{DocId: 1, Children: []*vdom.VNode{vdom.Text(2, "hi")}, Sheets: []vdom.VStyleSheet{}},
			AssetCount: 0, ViewportW: 1024, ViewportH: 768,
		},
		Asset{Id: 7, URL: "https://x/y.png", HasMime: true, Mime: "image/png", Buf: []byte{1, 2, 3}, FetchError: assets.FetchErrorNone},
		Asset{Id: 8, URL: "https://x/z.png", Buf: []byte{}, FetchError: assets.FetchErrorUnknown, ErrorMsg: "boom"},
		ViewportResized{W: 800, H: 600},
		ScrollOffsetChanged{X: 10, Y: 20},
		MouseMoved{X: 1, Y: 2},
		MouseClicked{X: 3, Y: 4},
		KeyPressed{Code: "test", Alt: false, Ctrl: false, Meta: false, Shift: false},
		ElementFocused{NodeId: 9},
		ElementBlurred{NodeId: 9},
		ElementScrolled{NodeId: 9, ScrollLeft: 5, ScrollTop: 6},
		TextSelectionChanged{StartNodeId: 1, StartOffset: 2, EndNodeId: 3, EndOffset: 4},
		WindowFocused{},
		WindowBlurred{},
		DomNodeAdded{ParentId: 1, Index: 0, Node: &vdom.VNode{Kind: vdom.KindElement, Id: 2, Tag: "div", Attrs: vdom.Attrs{}, Children: []*vdom.VNode{}, Shadow: []*vdom.VNode{}}, AssetCount: 0},
		DomNodeRemoved{NodeId: 2},
		DomAttributeChanged{NodeId: 2, Name: "class", Value: "foo"},
		DomAttributeRemoved{NodeId: 2, Name: "class"},
		DomTextChanged{NodeId: 2, Ops: []diff.TextEdit{
			{Kind: diff.TextEditRemove, Index: 0, Length: 2},
			{Kind: diff.TextEditInsert, Index: 0, Text: "hi"},
		}},
		AdoptedStyleSheetsChanged{SheetIds: []uint32{1, 2, 3}, AddedCount: 1},
		NewAdoptedStyleSheet{Sheet: vdom.VStyleSheet{SheetId: 1, CSSText: "a{}"}, AssetCount: 0},
		StyleSheetRuleInserted{SheetId: 1, Index: 0, CSSText: "a{}"},
		StyleSheetRuleDeleted{SheetId: 1, Index: 0},
		StyleSheetRuleReplaced{SheetId: 1, Index: 0, CSSText: "b{}"},
		RecordingMetadata{InitialURL: "https://example.com", HeartbeatIntervalSec: 30},
		Heartbeat{},
		AssetReference{Id: 1, URL: "https://x/y.png", Hash: "abc", HasMime: true, Mime: "image/png"},
		CacheManifest{Origin: "https://example.com", Entries: []CacheManifestEntry{{URL: "a", Hash: "b"}}},
		PlaybackConfig{AutoPlay: true, StartOffsetMs: 500, SpeedPermille: 1000},
	}

	for _, f := range cases {
		got := roundTrip(t, f)
		if !reflect.DeepEqual(got, f) {
			t.Errorf("round trip mismatch for %T:\n got: %+v\nwant: %+v", f, got, f)
		}
	}
}

func TestDecodeFrameRejectsUnknownTag(t *testing.T) {
	var buf []byte
	buf = wire.PutUint32(buf, 9999)
	d := wire.NewDecoder(buf)
	_, err := DecodeFrame(d)
	if err == nil {
		t.Fatal("expected error for unknown tag")
	}
	var pe *ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ProtocolError, got %T: %v", err, err)
	}
}

// TestStreamByteAtATimeYieldsFramesInOrder is the spec.md §8 scenario:
// encode [Timestamp(12345), KeyPressed("test", false, false, false,
// false)] and feed the resulting bytes into a Reader one byte at a time.
// Exactly those two frames must emit, in order, regardless of how finely
// the stream is chopped.
func TestStreamByteAtATimeYieldsFramesInOrder(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	w := wire.NewWriter(&buf, 4096)

	frames := []Frame{
		Timestamp{Ts: 12345},
		KeyPressed{Code: "test"},
	}
	for _, f := range frames {
		if err := f.Encode(ctx, w); err != nil {
			t.Fatalf("Encode: %v", err)
		}
		if err := w.EndFrame(ctx); err != nil {
			t.Fatalf("EndFrame: %v", err)
		}
	}

	r := NewReader(false)
	var decoded []Frame
	data := buf.Bytes()
	for i := 0; i < len(data); i++ {
		r.Feed(data[i : i+1])
		for {
			f, err := r.Next()
			if err == ErrNeedMore {
				break
			}
			if err != nil {
				t.Fatalf("Next: %v", err)
			}
			decoded = append(decoded, f)
		}
	}

	if len(decoded) != 2 {
		t.Fatalf("expected 2 frames, got %d: %+v", len(decoded), decoded)
	}
	if !reflect.DeepEqual(decoded[0], frames[0]) || !reflect.DeepEqual(decoded[1], frames[1]) {
		t.Fatalf("got %+v, want %+v", decoded, frames)
	}
}
