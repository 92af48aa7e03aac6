package idmap

import (
	"encoding/json"
	"context"
	"testing"

	"github.com/dnorman/domcorder/browserdom"
)

// fakeNode is a minimal browserdom.Node for exercising Map without a real
// browser. Each instance is a distinct pointer, so equality behaves the
// way a real CDP-backed node's identity does.
type fakeNode struct {
	tag      string
	children []*fakeNode
	shadow   *fakeNode
}

func (n *fakeNode) NodeType() browserdom.NodeType       { return browserdom.NodeTypeElement }
func (n *fakeNode) TagName() string                     { return n.tag }
func (n *fakeNode) TextData() string                    { return "" }
func (n *fakeNode) Attributes() []browserdom.Attribute  { return nil }
func (n *fakeNode) BaseURI() string                     { return "" }
func (n *fakeNode) OwnerDocument() browserdom.Page       { return nil }

func (n *fakeNode) Children() []browserdom.Node {
	out := make([]browserdom.Node, len(n.children))
	for i, c := range n.children {
		out[i] = c
	}
	return out
}

func (n *fakeNode) ShadowRoot() browserdom.Node {
	if n.shadow == nil {
		return nil
	}
	return n.shadow
}

var _ browserdom.Page = (*fakePage)(nil)

type fakePage struct{}

func (fakePage) Document(ctx context.Context) (browserdom.Node, error) { return nil, nil }
func (fakePage) Eval(ctx context.Context, js string, args ...any) (json.RawMessage, error) {
	return nil, nil
}
func (fakePage) AddBinding(ctx context.Context, name string) (<-chan string, error) { return nil, nil }
func (fakePage) Subscribe(ctx context.Context, domain browserdom.CDPDomain) (<-chan browserdom.DOMEvent, func()) {
	return nil, func() {}
}
func (fakePage) Navigate(ctx context.Context, url string) error      { return nil }
func (fakePage) WaitLoad(ctx context.Context) error                  { return nil }
func (fakePage) Viewport(ctx context.Context) (int, int, error)      { return 0, 0, nil }
func (fakePage) SetViewport(ctx context.Context, width, height int) error { return nil }
func (fakePage) Close() error                                        { return nil }

func TestAssignNodeIdsDepthFirst(t *testing.T) {
	child1 := &fakeNode{tag: "span"}
	child2 := &fakeNode{tag: "b"}
	root := &fakeNode{tag: "div", children: []*fakeNode{child1, child2}}

	m := New()
	rootId, err := m.AssignNodeIdsToSubTree(root)
	if err != nil {
		t.Fatal(err)
	}
	if rootId != 1 {
		t.Errorf("root id = %d, want 1", rootId)
	}
	if m.GetNodeId(child1) != 2 || m.GetNodeId(child2) != 3 {
		t.Errorf("child ids = %d, %d, want 2, 3", m.GetNodeId(child1), m.GetNodeId(child2))
	}
	if m.Count() != 3 {
		t.Errorf("count = %d, want 3", m.Count())
	}
}

func TestReassignIsIdempotent(t *testing.T) {
	root := &fakeNode{tag: "div"}
	m := New()
	first, err := m.AssignNodeIdsToSubTree(root)
	if err != nil {
		t.Fatal(err)
	}
	second, err := m.AssignNodeIdsToSubTree(root)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("expected idempotent id, got %d then %d", first, second)
	}
}

func TestRemoveNodesInSubtreeReleasesIds(t *testing.T) {
	child := &fakeNode{tag: "span"}
	root := &fakeNode{tag: "div", children: []*fakeNode{child}}
	m := New()
	rootId, _ := m.AssignNodeIdsToSubTree(root)
	childId := m.GetNodeId(child)

	m.RemoveNodesInSubtree(rootId)

	if _, ok := m.GetNodeById(rootId); ok {
		t.Error("root id should be released")
	}
	if _, ok := m.GetNodeById(childId); ok {
		t.Error("child id should be released")
	}
	if m.Count() != 0 {
		t.Errorf("count = %d, want 0", m.Count())
	}
}

func TestShadowRootAssignedId(t *testing.T) {
	shadow := &fakeNode{tag: "div"}
	host := &fakeNode{tag: "my-widget", shadow: shadow}
	m := New()
	if _, err := m.AssignNodeIdsToSubTree(host); err != nil {
		t.Fatal(err)
	}
	if m.GetNodeId(shadow) == 0 {
		t.Error("expected shadow root to be assigned an id")
	}
}

func TestIdsNeverReused(t *testing.T) {
	root := &fakeNode{tag: "div"}
	m := New()
	rootId, _ := m.AssignNodeIdsToSubTree(root)
	m.RemoveNodesInSubtree(rootId)

	other := &fakeNode{tag: "p"}
	otherId, _ := m.AssignNodeIdsToSubTree(other)
	if otherId == rootId {
		t.Errorf("id %d was reused", rootId)
	}
}
