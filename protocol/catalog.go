// Package protocol implements the frame catalog, Writer, Reader, and file
// header (spec.md §4.8–§4.11): the closed, append-only set of frame
// variants the recorder emits and an external consumer decodes. Grounded
// on domwatch/mutation's one-struct-per-wire-concept convention, carried
// over from JSON payloads to this package's big-endian binary encoding.
package protocol

import (
	"context"
	"fmt"

	"github.com/dnorman/domcorder/assets"
	"github.com/dnorman/domcorder/diff"
	"github.com/dnorman/domcorder/vdom"
	"github.com/dnorman/domcorder/wire"
)

// Frame is any encodable/decodable protocol message. Tag numbering is a
// closed, append-only contract — numbers are never reused, and a decoder
// seeing an unrecognized tag treats it as a fatal ProtocolError.
type Frame interface {
	Tag() uint32
	Encode(ctx context.Context, w *wire.Writer) error
}

const (
	TagTimestamp uint32 = iota
	TagKeyframe
	TagAsset
	TagViewportResized
	TagScrollOffsetChanged
	TagMouseMoved
	TagMouseClicked
	TagKeyPressed
	TagElementFocused
	TagElementBlurred
	TagElementScrolled
	TagTextSelectionChanged
	TagWindowFocused
	TagWindowBlurred
	TagDomNodeAdded
	TagDomNodeRemoved
	TagDomAttributeChanged
	TagDomAttributeRemoved
	TagDomTextChanged
	TagAdoptedStyleSheetsChanged
	TagNewAdoptedStyleSheet
	TagStyleSheetRuleInserted
	TagStyleSheetRuleDeleted
	TagStyleSheetRuleReplaced
	TagRecordingMetadata
	TagHeartbeat
	TagAssetReference
	TagCacheManifest
	TagPlaybackConfig
)

var decoders = map[uint32]func(*wire.Decoder) (Frame, error){
	TagTimestamp:                 decodeTimestamp,
	TagKeyframe:                  decodeKeyframe,
	TagAsset:                     decodeAsset,
	TagViewportResized:           decodeViewportResized,
	TagScrollOffsetChanged:       decodeScrollOffsetChanged,
	TagMouseMoved:                decodeMouseMoved,
	TagMouseClicked:              decodeMouseClicked,
	TagKeyPressed:                decodeKeyPressed,
	TagElementFocused:            decodeElementFocused,
	TagElementBlurred:            decodeElementBlurred,
	TagElementScrolled:           decodeElementScrolled,
	TagTextSelectionChanged:      decodeTextSelectionChanged,
	TagWindowFocused:             decodeWindowFocused,
	TagWindowBlurred:             decodeWindowBlurred,
	TagDomNodeAdded:              decodeDomNodeAdded,
	TagDomNodeRemoved:            decodeDomNodeRemoved,
	TagDomAttributeChanged:       decodeDomAttributeChanged,
	TagDomAttributeRemoved:       decodeDomAttributeRemoved,
	TagDomTextChanged:            decodeDomTextChanged,
	TagAdoptedStyleSheetsChanged: decodeAdoptedStyleSheetsChanged,
	TagNewAdoptedStyleSheet:      decodeNewAdoptedStyleSheet,
	TagStyleSheetRuleInserted:    decodeStyleSheetRuleInserted,
	TagStyleSheetRuleDeleted:     decodeStyleSheetRuleDeleted,
	TagStyleSheetRuleReplaced:    decodeStyleSheetRuleReplaced,
	TagRecordingMetadata:         decodeRecordingMetadata,
	TagHeartbeat:                 decodeHeartbeat,
	TagAssetReference:            decodeAssetReference,
	TagCacheManifest:             decodeCacheManifest,
	TagPlaybackConfig:            decodePlaybackConfig,
}

// ProtocolError is fatal: an unknown tag, an impossible length, or any
// decode failure that isn't "wait for more bytes" (spec.md §7).
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string { return "protocol: " + e.Reason }

// DecodeFrame reads one tag and dispatches to its decoder. It returns
// *wire.ErrShortBuffer unmodified (so Reader can backtrack) and wraps any
// other decode failure or unknown tag in *ProtocolError.
func DecodeFrame(d *wire.Decoder) (Frame, error) {
	tag, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	fn, ok := decoders[tag]
	if !ok {
		return nil, &ProtocolError{Reason: fmt.Sprintf("unknown frame tag %d", tag)}
	}
	f, err := fn(d)
	if err != nil {
		if wire.IsShortBuffer(err) {
			return nil, err
		}
		return nil, &ProtocolError{Reason: err.Error()}
	}
	return f, nil
}

// --- Timestamp ---

type Timestamp struct{ Ts uint64 }

func (Timestamp) Tag() uint32 { return TagTimestamp }
func (f Timestamp) Encode(ctx context.Context, w *wire.Writer) error {
	w.PutUint32(f.Tag())
	w.PutUint64(f.Ts)
	return nil
}
func decodeTimestamp(d *wire.Decoder) (Frame, error) {
	ts, err := d.Uint64()
	if err != nil {
		return nil, err
	}
	return Timestamp{Ts: ts}, nil
}

// --- Keyframe ---

type Keyframe struct {
	Doc        *vdom.VDocument
	AssetCount uint32
	ViewportW  uint32
	ViewportH  uint32
}

func (Keyframe) Tag() uint32 { return TagKeyframe }
func (f Keyframe) Encode(ctx context.Context, w *wire.Writer) error {
	w.PutUint32(f.Tag())
	if err := vdom.EncodeVDocument(ctx, w, f.Doc); err != nil {
		return err
	}
	w.PutUint32(f.AssetCount)
	w.PutUint32(f.ViewportW)
	w.PutUint32(f.ViewportH)
	return nil
}
func decodeKeyframe(d *wire.Decoder) (Frame, error) {
	doc, err := vdom.DecodeVDocument(d)
	if err != nil {
		return nil, err
	}
	assetCount, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	w, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	h, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	return Keyframe{Doc: doc, AssetCount: assetCount, ViewportW: w, ViewportH: h}, nil
}

// --- Asset ---

type Asset struct {
	Id         uint32
	URL        string
	Mime       string
	HasMime    bool
	Buf        []byte
	FetchError assets.FetchError
	ErrorMsg   string
}

func (Asset) Tag() uint32 { return TagAsset }
func (f Asset) Encode(ctx context.Context, w *wire.Writer) error {
	w.PutUint32(f.Tag())
	w.PutUint32(f.Id)
	w.PutString(f.URL)
	w.PutBool(f.HasMime)
	if f.HasMime {
		w.PutString(f.Mime)
	}
	w.PutBytes(f.Buf)
	w.PutUint32(uint32(f.FetchError))
	if f.FetchError == assets.FetchErrorUnknown {
		w.PutString(f.ErrorMsg)
	}
	return nil
}
func decodeAsset(d *wire.Decoder) (Frame, error) {
	var f Asset
	var err error
	if f.Id, err = d.Uint32(); err != nil {
		return nil, err
	}
	if f.URL, err = d.String(); err != nil {
		return nil, err
	}
	if f.HasMime, err = d.Bool(); err != nil {
		return nil, err
	}
	if f.HasMime {
		if f.Mime, err = d.String(); err != nil {
			return nil, err
		}
	}
	if f.Buf, err = d.Bytes(); err != nil {
		return nil, err
	}
	fe, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	if fe > uint32(assets.FetchErrorUnknown) {
		return nil, fmt.Errorf("unknown fetchError discriminant %d", fe)
	}
	f.FetchError = assets.FetchError(fe)
	if f.FetchError == assets.FetchErrorUnknown {
		if f.ErrorMsg, err = d.String(); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// --- window / pointer / keyboard ---

type ViewportResized struct{ W, H uint32 }

func (ViewportResized) Tag() uint32 { return TagViewportResized }
func (f ViewportResized) Encode(ctx context.Context, w *wire.Writer) error {
	w.PutUint32(f.Tag())
	w.PutUint32(f.W)
	w.PutUint32(f.H)
	return nil
}
func decodeViewportResized(d *wire.Decoder) (Frame, error) {
	w, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	h, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	return ViewportResized{W: w, H: h}, nil
}

type ScrollOffsetChanged struct{ X, Y uint32 }

func (ScrollOffsetChanged) Tag() uint32 { return TagScrollOffsetChanged }
func (f ScrollOffsetChanged) Encode(ctx context.Context, w *wire.Writer) error {
	w.PutUint32(f.Tag())
	w.PutUint32(f.X)
	w.PutUint32(f.Y)
	return nil
}
func decodeScrollOffsetChanged(d *wire.Decoder) (Frame, error) {
	x, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	y, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	return ScrollOffsetChanged{X: x, Y: y}, nil
}

type MouseMoved struct{ X, Y uint32 }

func (MouseMoved) Tag() uint32 { return TagMouseMoved }
func (f MouseMoved) Encode(ctx context.Context, w *wire.Writer) error {
	w.PutUint32(f.Tag())
	w.PutUint32(f.X)
	w.PutUint32(f.Y)
	return nil
}
func decodeMouseMoved(d *wire.Decoder) (Frame, error) {
	x, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	y, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	return MouseMoved{X: x, Y: y}, nil
}

type MouseClicked struct{ X, Y uint32 }

func (MouseClicked) Tag() uint32 { return TagMouseClicked }
func (f MouseClicked) Encode(ctx context.Context, w *wire.Writer) error {
	w.PutUint32(f.Tag())
	w.PutUint32(f.X)
	w.PutUint32(f.Y)
	return nil
}
func decodeMouseClicked(d *wire.Decoder) (Frame, error) {
	x, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	y, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	return MouseClicked{X: x, Y: y}, nil
}

type KeyPressed struct {
	Code                   string
	Alt, Ctrl, Meta, Shift bool
}

func (KeyPressed) Tag() uint32 { return TagKeyPressed }
func (f KeyPressed) Encode(ctx context.Context, w *wire.Writer) error {
	w.PutUint32(f.Tag())
	w.PutString(f.Code)
	w.PutBool(f.Alt)
	w.PutBool(f.Ctrl)
	w.PutBool(f.Meta)
	w.PutBool(f.Shift)
	return nil
}
func decodeKeyPressed(d *wire.Decoder) (Frame, error) {
	var f KeyPressed
	var err error
	if f.Code, err = d.String(); err != nil {
		return nil, err
	}
	if f.Alt, err = d.Bool(); err != nil {
		return nil, err
	}
	if f.Ctrl, err = d.Bool(); err != nil {
		return nil, err
	}
	if f.Meta, err = d.Bool(); err != nil {
		return nil, err
	}
	if f.Shift, err = d.Bool(); err != nil {
		return nil, err
	}
	return f, nil
}

type ElementFocused struct{ NodeId uint32 }

func (ElementFocused) Tag() uint32 { return TagElementFocused }
func (f ElementFocused) Encode(ctx context.Context, w *wire.Writer) error {
	w.PutUint32(f.Tag())
	w.PutUint32(f.NodeId)
	return nil
}
func decodeElementFocused(d *wire.Decoder) (Frame, error) {
	id, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	return ElementFocused{NodeId: id}, nil
}

type ElementBlurred struct{ NodeId uint32 }

func (ElementBlurred) Tag() uint32 { return TagElementBlurred }
func (f ElementBlurred) Encode(ctx context.Context, w *wire.Writer) error {
	w.PutUint32(f.Tag())
	w.PutUint32(f.NodeId)
	return nil
}
func decodeElementBlurred(d *wire.Decoder) (Frame, error) {
	id, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	return ElementBlurred{NodeId: id}, nil
}

type ElementScrolled struct {
	NodeId                uint32
	ScrollLeft, ScrollTop uint32
}

func (ElementScrolled) Tag() uint32 { return TagElementScrolled }
func (f ElementScrolled) Encode(ctx context.Context, w *wire.Writer) error {
	w.PutUint32(f.Tag())
	w.PutUint32(f.NodeId)
	w.PutUint32(f.ScrollLeft)
	w.PutUint32(f.ScrollTop)
	return nil
}
func decodeElementScrolled(d *wire.Decoder) (Frame, error) {
	var f ElementScrolled
	var err error
	if f.NodeId, err = d.Uint32(); err != nil {
		return nil, err
	}
	if f.ScrollLeft, err = d.Uint32(); err != nil {
		return nil, err
	}
	if f.ScrollTop, err = d.Uint32(); err != nil {
		return nil, err
	}
	return f, nil
}

type TextSelectionChanged struct {
	StartNodeId, StartOffset uint32
	EndNodeId, EndOffset     uint32
}

func (TextSelectionChanged) Tag() uint32 { return TagTextSelectionChanged }
func (f TextSelectionChanged) Encode(ctx context.Context, w *wire.Writer) error {
	w.PutUint32(f.Tag())
	w.PutUint32(f.StartNodeId)
	w.PutUint32(f.StartOffset)
	w.PutUint32(f.EndNodeId)
	w.PutUint32(f.EndOffset)
	return nil
}
func decodeTextSelectionChanged(d *wire.Decoder) (Frame, error) {
	var f TextSelectionChanged
	var err error
	if f.StartNodeId, err = d.Uint32(); err != nil {
		return nil, err
	}
	if f.StartOffset, err = d.Uint32(); err != nil {
		return nil, err
	}
	if f.EndNodeId, err = d.Uint32(); err != nil {
		return nil, err
	}
	if f.EndOffset, err = d.Uint32(); err != nil {
		return nil, err
	}
	return f, nil
}

type WindowFocused struct{}

func (WindowFocused) Tag() uint32 { return TagWindowFocused }
func (f WindowFocused) Encode(ctx context.Context, w *wire.Writer) error {
	w.PutUint32(f.Tag())
	return nil
}
func decodeWindowFocused(d *wire.Decoder) (Frame, error) { return WindowFocused{}, nil }

type WindowBlurred struct{}

func (WindowBlurred) Tag() uint32 { return TagWindowBlurred }
func (f WindowBlurred) Encode(ctx context.Context, w *wire.Writer) error {
	w.PutUint32(f.Tag())
	return nil
}
func decodeWindowBlurred(d *wire.Decoder) (Frame, error) { return WindowBlurred{}, nil }

// --- DOM operations ---

type DomNodeAdded struct {
	ParentId   uint32
	Index      uint32
	Node       *vdom.VNode
	AssetCount uint32
}

func (DomNodeAdded) Tag() uint32 { return TagDomNodeAdded }
func (f DomNodeAdded) Encode(ctx context.Context, w *wire.Writer) error {
	w.PutUint32(f.Tag())
	w.PutUint32(f.ParentId)
	w.PutUint32(f.Index)
	if err := vdom.EncodeVNode(ctx, w, f.Node); err != nil {
		return err
	}
	w.PutUint32(f.AssetCount)
	return nil
}
func decodeDomNodeAdded(d *wire.Decoder) (Frame, error) {
	var f DomNodeAdded
	var err error
	if f.ParentId, err = d.Uint32(); err != nil {
		return nil, err
	}
	if f.Index, err = d.Uint32(); err != nil {
		return nil, err
	}
	if f.Node, err = vdom.DecodeVNode(d); err != nil {
		return nil, err
	}
	if f.AssetCount, err = d.Uint32(); err != nil {
		return nil, err
	}
	return f, nil
}

type DomNodeRemoved struct{ NodeId uint32 }

func (DomNodeRemoved) Tag() uint32 { return TagDomNodeRemoved }
func (f DomNodeRemoved) Encode(ctx context.Context, w *wire.Writer) error {
	w.PutUint32(f.Tag())
	w.PutUint32(f.NodeId)
	return nil
}
func decodeDomNodeRemoved(d *wire.Decoder) (Frame, error) {
	id, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	return DomNodeRemoved{NodeId: id}, nil
}

type DomAttributeChanged struct {
	NodeId      uint32
	Name, Value string
}

func (DomAttributeChanged) Tag() uint32 { return TagDomAttributeChanged }
func (f DomAttributeChanged) Encode(ctx context.Context, w *wire.Writer) error {
	w.PutUint32(f.Tag())
	w.PutUint32(f.NodeId)
	w.PutString(f.Name)
	w.PutString(f.Value)
	return nil
}
func decodeDomAttributeChanged(d *wire.Decoder) (Frame, error) {
	var f DomAttributeChanged
	var err error
	if f.NodeId, err = d.Uint32(); err != nil {
		return nil, err
	}
	if f.Name, err = d.String(); err != nil {
		return nil, err
	}
	if f.Value, err = d.String(); err != nil {
		return nil, err
	}
	return f, nil
}

type DomAttributeRemoved struct {
	NodeId uint32
	Name   string
}

func (DomAttributeRemoved) Tag() uint32 { return TagDomAttributeRemoved }
func (f DomAttributeRemoved) Encode(ctx context.Context, w *wire.Writer) error {
	w.PutUint32(f.Tag())
	w.PutUint32(f.NodeId)
	w.PutString(f.Name)
	return nil
}
func decodeDomAttributeRemoved(d *wire.Decoder) (Frame, error) {
	var f DomAttributeRemoved
	var err error
	if f.NodeId, err = d.Uint32(); err != nil {
		return nil, err
	}
	if f.Name, err = d.String(); err != nil {
		return nil, err
	}
	return f, nil
}

type DomTextChanged struct {
	NodeId uint32
	Ops    []diff.TextEdit
}

func (DomTextChanged) Tag() uint32 { return TagDomTextChanged }
func (f DomTextChanged) Encode(ctx context.Context, w *wire.Writer) error {
	w.PutUint32(f.Tag())
	w.PutUint32(f.NodeId)
	EncodeTextOps(w, f.Ops)
	return nil
}
func decodeDomTextChanged(d *wire.Decoder) (Frame, error) {
	var f DomTextChanged
	var err error
	if f.NodeId, err = d.Uint32(); err != nil {
		return nil, err
	}
	if f.Ops, err = DecodeTextOps(d); err != nil {
		return nil, err
	}
	return f, nil
}

// --- stylesheets ---

type AdoptedStyleSheetsChanged struct {
	SheetIds   []uint32
	AddedCount uint32
}

func (AdoptedStyleSheetsChanged) Tag() uint32 { return TagAdoptedStyleSheetsChanged }
func (f AdoptedStyleSheetsChanged) Encode(ctx context.Context, w *wire.Writer) error {
	w.PutUint32(f.Tag())
	w.PutUint64(uint64(len(f.SheetIds)))
	for _, id := range f.SheetIds {
		w.PutUint32(id)
	}
	w.PutUint32(f.AddedCount)
	return nil
}
func decodeAdoptedStyleSheetsChanged(d *wire.Decoder) (Frame, error) {
	n, err := d.ArrayLen()
	if err != nil {
		return nil, err
	}
	ids := make([]uint32, 0, n)
	for i := uint64(0); i < n; i++ {
		id, err := d.Uint32()
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	added, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	return AdoptedStyleSheetsChanged{SheetIds: ids, AddedCount: added}, nil
}

type NewAdoptedStyleSheet struct {
	Sheet      vdom.VStyleSheet
	AssetCount uint32
}

func (NewAdoptedStyleSheet) Tag() uint32 { return TagNewAdoptedStyleSheet }
func (f NewAdoptedStyleSheet) Encode(ctx context.Context, w *wire.Writer) error {
	w.PutUint32(f.Tag())
	w.PutUint32(f.Sheet.SheetId)
	w.PutBool(f.Sheet.HasMedia)
	if f.Sheet.HasMedia {
		w.PutString(f.Sheet.Media)
	}
	if err := w.StreamString(ctx, f.Sheet.CSSText); err != nil {
		return err
	}
	w.PutUint32(f.AssetCount)
	return nil
}
func decodeNewAdoptedStyleSheet(d *wire.Decoder) (Frame, error) {
	var f NewAdoptedStyleSheet
	var err error
	if f.Sheet.SheetId, err = d.Uint32(); err != nil {
		return nil, err
	}
	if f.Sheet.HasMedia, err = d.Bool(); err != nil {
		return nil, err
	}
	if f.Sheet.HasMedia {
		if f.Sheet.Media, err = d.String(); err != nil {
			return nil, err
		}
	}
	if f.Sheet.CSSText, err = d.String(); err != nil {
		return nil, err
	}
	if f.AssetCount, err = d.Uint32(); err != nil {
		return nil, err
	}
	return f, nil
}

type StyleSheetRuleInserted struct {
	SheetId uint32
	Index   uint32
	CSSText string
}

func (StyleSheetRuleInserted) Tag() uint32 { return TagStyleSheetRuleInserted }
func (f StyleSheetRuleInserted) Encode(ctx context.Context, w *wire.Writer) error {
	w.PutUint32(f.Tag())
	w.PutUint32(f.SheetId)
	w.PutUint32(f.Index)
	w.PutString(f.CSSText)
	return nil
}
func decodeStyleSheetRuleInserted(d *wire.Decoder) (Frame, error) {
	var f StyleSheetRuleInserted
	var err error
	if f.SheetId, err = d.Uint32(); err != nil {
		return nil, err
	}
	if f.Index, err = d.Uint32(); err != nil {
		return nil, err
	}
	if f.CSSText, err = d.String(); err != nil {
		return nil, err
	}
	return f, nil
}

type StyleSheetRuleDeleted struct {
	SheetId uint32
	Index   uint32
}

func (StyleSheetRuleDeleted) Tag() uint32 { return TagStyleSheetRuleDeleted }
func (f StyleSheetRuleDeleted) Encode(ctx context.Context, w *wire.Writer) error {
	w.PutUint32(f.Tag())
	w.PutUint32(f.SheetId)
	w.PutUint32(f.Index)
	return nil
}
func decodeStyleSheetRuleDeleted(d *wire.Decoder) (Frame, error) {
	var f StyleSheetRuleDeleted
	var err error
	if f.SheetId, err = d.Uint32(); err != nil {
		return nil, err
	}
	if f.Index, err = d.Uint32(); err != nil {
		return nil, err
	}
	return f, nil
}

type StyleSheetRuleReplaced struct {
	SheetId uint32
	Index   uint32
	CSSText string
}

func (StyleSheetRuleReplaced) Tag() uint32 { return TagStyleSheetRuleReplaced }
func (f StyleSheetRuleReplaced) Encode(ctx context.Context, w *wire.Writer) error {
	w.PutUint32(f.Tag())
	w.PutUint32(f.SheetId)
	w.PutUint32(f.Index)
	w.PutString(f.CSSText)
	return nil
}
func decodeStyleSheetRuleReplaced(d *wire.Decoder) (Frame, error) {
	var f StyleSheetRuleReplaced
	var err error
	if f.SheetId, err = d.Uint32(); err != nil {
		return nil, err
	}
	if f.Index, err = d.Uint32(); err != nil {
		return nil, err
	}
	if f.CSSText, err = d.String(); err != nil {
		return nil, err
	}
	return f, nil
}

// --- session / transport ambient frames ---

type RecordingMetadata struct {
	InitialURL            string
	HeartbeatIntervalSec  uint32
}

func (RecordingMetadata) Tag() uint32 { return TagRecordingMetadata }
func (f RecordingMetadata) Encode(ctx context.Context, w *wire.Writer) error {
	w.PutUint32(f.Tag())
	w.PutString(f.InitialURL)
	w.PutUint32(f.HeartbeatIntervalSec)
	return nil
}
func decodeRecordingMetadata(d *wire.Decoder) (Frame, error) {
	var f RecordingMetadata
	var err error
	if f.InitialURL, err = d.String(); err != nil {
		return nil, err
	}
	if f.HeartbeatIntervalSec, err = d.Uint32(); err != nil {
		return nil, err
	}
	return f, nil
}

type Heartbeat struct{}

func (Heartbeat) Tag() uint32 { return TagHeartbeat }
func (f Heartbeat) Encode(ctx context.Context, w *wire.Writer) error {
	w.PutUint32(f.Tag())
	return nil
}
func decodeHeartbeat(d *wire.Decoder) (Frame, error) { return Heartbeat{}, nil }

type AssetReference struct {
	Id      uint32
	URL     string
	Hash    string
	Mime    string
	HasMime bool
}

func (AssetReference) Tag() uint32 { return TagAssetReference }
func (f AssetReference) Encode(ctx context.Context, w *wire.Writer) error {
	w.PutUint32(f.Tag())
	w.PutUint32(f.Id)
	w.PutString(f.URL)
	w.PutString(f.Hash)
	w.PutBool(f.HasMime)
	if f.HasMime {
		w.PutString(f.Mime)
	}
	return nil
}
func decodeAssetReference(d *wire.Decoder) (Frame, error) {
	var f AssetReference
	var err error
	if f.Id, err = d.Uint32(); err != nil {
		return nil, err
	}
	if f.URL, err = d.String(); err != nil {
		return nil, err
	}
	if f.Hash, err = d.String(); err != nil {
		return nil, err
	}
	if f.HasMime, err = d.Bool(); err != nil {
		return nil, err
	}
	if f.HasMime {
		if f.Mime, err = d.String(); err != nil {
			return nil, err
		}
	}
	return f, nil
}

type CacheManifestEntry struct {
	URL  string
	Hash string
}

type CacheManifest struct {
	Origin  string
	Entries []CacheManifestEntry
}

func (CacheManifest) Tag() uint32 { return TagCacheManifest }
func (f CacheManifest) Encode(ctx context.Context, w *wire.Writer) error {
	w.PutUint32(f.Tag())
	w.PutString(f.Origin)
	w.PutUint64(uint64(len(f.Entries)))
	for _, e := range f.Entries {
		w.PutString(e.URL)
		w.PutString(e.Hash)
	}
	return nil
}
func decodeCacheManifest(d *wire.Decoder) (Frame, error) {
	var f CacheManifest
	var err error
	if f.Origin, err = d.String(); err != nil {
		return nil, err
	}
	n, err := d.ArrayLen()
	if err != nil {
		return nil, err
	}
	f.Entries = make([]CacheManifestEntry, 0, n)
	for i := uint64(0); i < n; i++ {
		var e CacheManifestEntry
		if e.URL, err = d.String(); err != nil {
			return nil, err
		}
		if e.Hash, err = d.String(); err != nil {
			return nil, err
		}
		f.Entries = append(f.Entries, e)
	}
	return f, nil
}

// PlaybackConfig's exact fields are left unspecified by spec.md ("...");
// these three cover what a consumer-side player needs to start a
// recording (mirroring domwatch's own playback-adjacent knobs): whether
// to begin playing immediately, where in the timeline to start, and a
// speed multiplier. The multiplier rides the wire as parts-per-thousand
// since the protocol has no float encoding (spec.md §6 lists only
// unsigned fixed-width integers).
type PlaybackConfig struct {
	AutoPlay      bool
	StartOffsetMs uint64
	SpeedPermille uint32
}

func (PlaybackConfig) Tag() uint32 { return TagPlaybackConfig }
func (f PlaybackConfig) Encode(ctx context.Context, w *wire.Writer) error {
	w.PutUint32(f.Tag())
	w.PutBool(f.AutoPlay)
	w.PutUint64(f.StartOffsetMs)
	w.PutUint32(f.SpeedPermille)
	return nil
}
func decodePlaybackConfig(d *wire.Decoder) (Frame, error) {
	var f PlaybackConfig
	var err error
	if f.AutoPlay, err = d.Bool(); err != nil {
		return nil, err
	}
	if f.StartOffsetMs, err = d.Uint64(); err != nil {
		return nil, err
	}
	if f.SpeedPermille, err = d.Uint32(); err != nil {
		return nil, err
	}
	return f, nil
}
