// Package interaction implements UserInteractionTracker (spec.md §4.6):
// pointer, keyboard, window, per-element, and selection events translated
// into frame-ready Events, with targets resolved through an IdMap. Events
// for nodes the IdMap doesn't know about are dropped.
//
// Live interaction has no CDP observation domain of its own — Input only
// dispatches synthetic events, it doesn't report real ones — so, like the
// mutation bridge, this package injects a listener script and receives
// its reports over a Runtime binding, the same bridge shape the teacher's
// MutationObserver uses. Element targets are resolved the way the
// teacher's nodeMap resolves XPaths: a child-index path computed in JS,
// walked back to a browserdom.Node in Go.
package interaction

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/dnorman/domcorder/browserdom"
	"github.com/dnorman/domcorder/idmap"
	"github.com/dnorman/domcorder/vdom"
)

const bindingName = "__domcorder_interaction__"

// Kind discriminates an Event.
type Kind int

const (
	MouseMoved Kind = iota
	MouseClicked
	KeyPressed
	ViewportResized
	ScrollOffsetChanged
	WindowFocused
	WindowBlurred
	ElementScrolled
	ElementFocused
	ElementBlurred
	TextSelectionChanged
)

// Event is the decoded, IdMap-resolved form of one interaction. Only the
// fields relevant to Kind are populated.
type Event struct {
	Kind Kind

	X, Y int // MouseMoved, MouseClicked, ScrollOffsetChanged
	W, H int // ViewportResized

	Code                        string // KeyPressed
	Alt, Ctrl, Meta, Shift      bool   // KeyPressed

	NodeId                 vdom.NodeId // ElementScrolled, ElementFocused, ElementBlurred
	ScrollLeft, ScrollTop  int         // ElementScrolled

	StartNodeId, EndNodeId vdom.NodeId // TextSelectionChanged
	StartOffset, EndOffset int
}

// Config controls logging; there is no debounce here — coalescing
// MouseMoved is explicitly optional per spec.md §4.6 and left to the
// frame consumer.
type Config struct {
	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Tracker owns the live binding subscription and the root used to
// resolve JS-reported index paths back to browserdom.Node values.
type Tracker struct {
	cfg  Config
	page browserdom.Page
	ids  *idmap.Map
	root browserdom.Node
	out  chan Event
}

// New returns a Tracker that resolves node targets through ids.
func New(page browserdom.Page, ids *idmap.Map, cfg Config) *Tracker {
	cfg.defaults()
	return &Tracker{cfg: cfg, page: page, ids: ids, out: make(chan Event, 256)}
}

// Events returns the channel the recorder's event loop selects on.
func (t *Tracker) Events() <-chan Event { return t.out }

// Start installs the listener script against root's document and begins
// decoding reports. root must already have ids assigned via
// idmap.Map.AssignNodeIdsToSubTree — matching PageRecorder's
// IDLE-to-KEYFRAME transition order (spec.md §4.7).
func (t *Tracker) Start(ctx context.Context, root browserdom.Node) error {
	t.root = root

	raw, err := t.page.AddBinding(ctx, bindingName)
	if err != nil {
		return err
	}
	if _, err := t.page.Eval(ctx, interactionScript, bindingName); err != nil {
		return err
	}

	go t.decodeLoop(ctx, raw)
	return nil
}

func (t *Tracker) decodeLoop(ctx context.Context, raw <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-raw:
			if !ok {
				return
			}
			t.handle(msg)
		}
	}
}

type wireEvent struct {
	Type        string `json:"type"`
	X           int    `json:"x"`
	Y           int    `json:"y"`
	W           int    `json:"w"`
	H           int    `json:"h"`
	Code        string `json:"code"`
	Alt         bool   `json:"alt"`
	Ctrl        bool   `json:"ctrl"`
	Meta        bool   `json:"meta"`
	Shift       bool   `json:"shift"`
	Path        []int  `json:"path"`
	ScrollLeft  int    `json:"scrollLeft"`
	ScrollTop   int    `json:"scrollTop"`
	StartPath   []int  `json:"startPath"`
	StartOffset int    `json:"startOffset"`
	EndPath     []int  `json:"endPath"`
	EndOffset   int    `json:"endOffset"`
}

func (t *Tracker) handle(msg string) {
	var w wireEvent
	if err := json.Unmarshal([]byte(msg), &w); err != nil {
		t.cfg.Logger.Warn("interaction: malformed event payload", "error", err)
		return
	}

	switch w.Type {
	case "mousemove":
		t.emit(Event{Kind: MouseMoved, X: w.X, Y: w.Y})
	case "click":
		t.emit(Event{Kind: MouseClicked, X: w.X, Y: w.Y})
	case "key":
		t.emit(Event{Kind: KeyPressed, Code: w.Code, Alt: w.Alt, Ctrl: w.Ctrl, Meta: w.Meta, Shift: w.Shift})
	case "resize":
		t.emit(Event{Kind: ViewportResized, W: w.W, H: w.H})
	case "scroll":
		t.emit(Event{Kind: ScrollOffsetChanged, X: w.X, Y: w.Y})
	case "winfocus":
		t.emit(Event{Kind: WindowFocused})
	case "winblur":
		t.emit(Event{Kind: WindowBlurred})
	case "elscroll":
		if id, ok := t.resolvePath(w.Path); ok {
			t.emit(Event{Kind: ElementScrolled, NodeId: id, ScrollLeft: w.ScrollLeft, ScrollTop: w.ScrollTop})
		}
	case "elfocus":
		if id, ok := t.resolvePath(w.Path); ok {
			t.emit(Event{Kind: ElementFocused, NodeId: id})
		}
	case "elblur":
		if id, ok := t.resolvePath(w.Path); ok {
			t.emit(Event{Kind: ElementBlurred, NodeId: id})
		}
	case "selection":
		startId, okStart := t.resolvePath(w.StartPath)
		endId, okEnd := t.resolvePath(w.EndPath)
		if okStart && okEnd {
			t.emit(Event{
				Kind: TextSelectionChanged,
				StartNodeId: startId, StartOffset: w.StartOffset,
				EndNodeId: endId, EndOffset: w.EndOffset,
			})
		}
	default:
		t.cfg.Logger.Warn("interaction: unknown event type", "type", w.Type)
	}
}

func (t *Tracker) emit(ev Event) {
	select {
	case t.out <- ev:
	default:
		t.cfg.Logger.Warn("interaction: event dropped, channel full", "kind", ev.Kind)
	}
}

// resolvePath walks path as a sequence of child indices from t.root,
// returning the IdMap-assigned id of the node it reaches. A path that
// indexes past a node's children, or that reaches a node IdMap has no
// entry for, reports ok=false — spec.md §4.6's "events for nodes not in
// IdMap are dropped".
func (t *Tracker) resolvePath(path []int) (vdom.NodeId, bool) {
	if t.root == nil {
		return 0, false
	}
	node := t.root
	for _, i := range path {
		children := node.Children()
		if i < 0 || i >= len(children) {
			return 0, false
		}
		node = children[i]
	}
	id := t.ids.GetNodeId(node)
	if id == 0 {
		return 0, false
	}
	return id, true
}
