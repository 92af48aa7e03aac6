package recorder

import (
	"testing"

	"github.com/dnorman/domcorder/idmap"
)

func TestResolveDirtyAncestorWalksToDeepestKnownNode(t *testing.T) {
	grandchild := elementNode("span")
	child := elementNode("div", grandchild)
	root := documentNode(elementNode("html", child))

	ids := idmap.New()
	if _, err := ids.AssignNodeIdsToSubTree(root); err != nil {
		t.Fatalf("AssignNodeIdsToSubTree: %v", err)
	}

	b := newMutationBridge(nil, ids, root)

	// path [0,0,0] is html > div > span
	got, ok := b.resolveDirtyAncestor([]int{0, 0, 0})
	if !ok {
		t.Fatal("expected ok=true")
	}
	if want := ids.GetNodeId(grandchild); got != want {
		t.Errorf("got id %d, want %d", got, want)
	}
}

func TestResolveDirtyAncestorStopsAtLastKnownNodeWhenPathOverruns(t *testing.T) {
	child := elementNode("div")
	root := documentNode(elementNode("html", child))

	ids := idmap.New()
	if _, err := ids.AssignNodeIdsToSubTree(root); err != nil {
		t.Fatalf("AssignNodeIdsToSubTree: %v", err)
	}

	b := newMutationBridge(nil, ids, root)

	// path walks past div's (zero) children — should stop at div, not fail.
	got, ok := b.resolveDirtyAncestor([]int{0, 0, 5, 9})
	if !ok {
		t.Fatal("expected ok=true")
	}
	if want := ids.GetNodeId(child); got != want {
		t.Errorf("got id %d, want %d", got, want)
	}
}

func TestResolveDirtyAncestorReturnsFalseForNilRoot(t *testing.T) {
	b := &mutationBridge{}
	if _, ok := b.resolveDirtyAncestor([]int{0}); ok {
		t.Fatal("expected ok=false for a bridge with no root")
	}
}
