package interaction

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/dnorman/domcorder/browserdom"
	"github.com/dnorman/domcorder/idmap"
)

type fakeNode struct {
	tag      string
	children []*fakeNode
}

func elementNode(tag string, children ...*fakeNode) *fakeNode {
	return &fakeNode{tag: tag, children: children}
}

func (n *fakeNode) NodeType() browserdom.NodeType      { return browserdom.NodeTypeElement }
func (n *fakeNode) TagName() string                    { return n.tag }
func (n *fakeNode) TextData() string                   { return "" }
func (n *fakeNode) Attributes() []browserdom.Attribute { return nil }
func (n *fakeNode) BaseURI() string                    { return "" }
func (n *fakeNode) OwnerDocument() browserdom.Page     { return nil }
func (n *fakeNode) ShadowRoot() browserdom.Node        { return nil }

func (n *fakeNode) Children() []browserdom.Node {
	out := make([]browserdom.Node, len(n.children))
	for i, c := range n.children {
		out[i] = c
	}
	return out
}

type fakePage struct {
	bindingCh chan string
	evalCalls int
}

func newFakePage() *fakePage {
	return &fakePage{bindingCh: make(chan string, 64)}
}

func (p *fakePage) Document(ctx context.Context) (browserdom.Node, error) { return nil, nil }
func (p *fakePage) Eval(ctx context.Context, js string, args ...any) (json.RawMessage, error) {
	p.evalCalls++
	return nil, nil
}
func (p *fakePage) AddBinding(ctx context.Context, name string) (<-chan string, error) {
	return p.bindingCh, nil
}
func (p *fakePage) Subscribe(ctx context.Context, domain browserdom.CDPDomain) (<-chan browserdom.DOMEvent, func()) {
	return nil, func() {}
}
func (p *fakePage) Navigate(ctx context.Context, url string) error { return nil }
func (p *fakePage) WaitLoad(ctx context.Context) error             { return nil }
func (p *fakePage) Viewport(ctx context.Context) (int, int, error) { return 0, 0, nil }
func (p *fakePage) SetViewport(ctx context.Context, width, height int) error { return nil }
func (p *fakePage) Close() error                                   { return nil }

func startTracker(t *testing.T, root *fakeNode) (*Tracker, *fakePage, func()) {
	t.Helper()
	page := newFakePage()
	ids := idmap.New()
	ids.AssignNodeIdsToSubTree(root)

	tr := New(page, ids, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	if err := tr.Start(ctx, root); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return tr, page, cancel
}

func recvEvent(t *testing.T, tr *Tracker) Event {
	t.Helper()
	select {
	case ev := <-tr.Events():
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestTrackerDecodesMouseMoved(t *testing.T) {
	root := elementNode("html")
	tr, page, cancel := startTracker(t, root)
	defer cancel()

	page.bindingCh <- `{"type":"mousemove","x":10,"y":20}`
	ev := recvEvent(t, tr)

	if ev.Kind != MouseMoved || ev.X != 10 || ev.Y != 20 {
		t.Fatalf("got %+v", ev)
	}
}

func TestTrackerDecodesKeyPressed(t *testing.T) {
	root := elementNode("html")
	tr, page, cancel := startTracker(t, root)
	defer cancel()

	page.bindingCh <- `{"type":"key","code":"KeyA","alt":true,"ctrl":false,"meta":false,"shift":true}`
	ev := recvEvent(t, tr)

	if ev.Kind != KeyPressed || ev.Code != "KeyA" || !ev.Alt || ev.Ctrl || !ev.Shift {
		t.Fatalf("got %+v", ev)
	}
}

func TestTrackerResolvesElementFocusedByPath(t *testing.T) {
	child := elementNode("input")
	root := elementNode("html", elementNode("body", child))
	tr, page, cancel := startTracker(t, root)
	defer cancel()

	page.bindingCh <- `{"type":"elfocus","path":[0,0]}`
	ev := recvEvent(t, tr)

	wantId := tr.ids.GetNodeId(child)
	if ev.Kind != ElementFocused || ev.NodeId != wantId {
		t.Fatalf("got %+v, want nodeId %d", ev, wantId)
	}
}

func TestTrackerDropsEventForOutOfRangePath(t *testing.T) {
	root := elementNode("html")
	tr, page, cancel := startTracker(t, root)
	defer cancel()

	page.bindingCh <- `{"type":"elfocus","path":[5]}`

	select {
	case ev := <-tr.Events():
		t.Fatalf("expected no event, got %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestTrackerDecodesSelectionChanged(t *testing.T) {
	a := elementNode("span")
	b := elementNode("span")
	root := elementNode("html", a, b)
	tr, page, cancel := startTracker(t, root)
	defer cancel()

	page.bindingCh <- `{"type":"selection","startPath":[0],"startOffset":1,"endPath":[1],"endOffset":3}`
	ev := recvEvent(t, tr)

	if ev.Kind != TextSelectionChanged || ev.StartOffset != 1 || ev.EndOffset != 3 {
		t.Fatalf("got %+v", ev)
	}
	if ev.StartNodeId != tr.ids.GetNodeId(a) || ev.EndNodeId != tr.ids.GetNodeId(b) {
		t.Fatalf("got %+v", ev)
	}
}

func TestTrackerCallsEvalOnStart(t *testing.T) {
	root := elementNode("html")
	_, page, cancel := startTracker(t, root)
	defer cancel()

	if page.evalCalls != 1 {
		t.Errorf("expected exactly one Eval call on Start, got %d", page.evalCalls)
	}
}
