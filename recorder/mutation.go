package recorder

import (
	"context"
	"encoding/json"

	"github.com/dnorman/domcorder/browserdom"
	"github.com/dnorman/domcorder/idmap"
	"github.com/dnorman/domcorder/vdom"
)

// dirtyQueueSize bounds the channel mutationBridge reports ancestors on.
// Sized generously since the channel is only ever a handoff to the
// recorder's own loop goroutine, never a backpressure point with real
// capacity limits of its own.
const dirtyQueueSize = 256

const mutationBindingName = "__domcorder_mutation__"

// mutationScript installs a MutationObserver over the whole document and
// reports, for each observer callback, the child-index path to every
// mutated target — one binding call per callback, batching whatever
// records arrived together the same way the teacher's injected observer
// batches a MutationObserver callback's record array.
const mutationScript = `(bindingName) => {
  const pathOf = (node) => {
    const path = [];
    let n = node;
    while (n && n.parentNode) {
      const siblings = Array.from(n.parentNode.childNodes);
      path.unshift(siblings.indexOf(n));
      n = n.parentNode;
    }
    return path;
  };

  const observer = new MutationObserver((records) => {
    const paths = records.map((r) => pathOf(r.target));
    window[bindingName](JSON.stringify(paths));
  });

  observer.observe(document, {childList: true, attributes: true, characterData: true, subtree: true});
}`

// mutationBridge resolves JS-reported mutation-target paths back to
// NodeIds and reports the nearest id-bearing ancestor on dirty — the
// Go-side half of spec.md §4.5's "walked up until an ancestor that is
// still contained in the live root": a path that runs past the end of
// what's still in the live tree stops at the last node along it that the
// IdMap still knows about. dirty is drained by the recorder's own loop
// goroutine, which is the only caller allowed to touch the Detector — the
// bridge's decode loop never calls into it directly.
type mutationBridge struct {
	page  browserdom.Page
	ids   *idmap.Map
	root  browserdom.Node
	dirty chan vdom.NodeId
}

func newMutationBridge(page browserdom.Page, ids *idmap.Map, root browserdom.Node) *mutationBridge {
	return &mutationBridge{page: page, ids: ids, root: root, dirty: make(chan vdom.NodeId, dirtyQueueSize)}
}

func (b *mutationBridge) start(ctx context.Context) error {
	raw, err := b.page.AddBinding(ctx, mutationBindingName)
	if err != nil {
		return err
	}
	if _, err := b.page.Eval(ctx, mutationScript, mutationBindingName); err != nil {
		return err
	}
	go b.loop(ctx, raw)
	return nil
}

func (b *mutationBridge) loop(ctx context.Context, raw <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-raw:
			if !ok {
				return
			}
			b.handle(msg)
		}
	}
}

func (b *mutationBridge) handle(msg string) {
	var paths [][]int
	if err := json.Unmarshal([]byte(msg), &paths); err != nil {
		return
	}
	for _, p := range paths {
		if id, ok := b.resolveDirtyAncestor(p); ok {
			select {
			case b.dirty <- id:
			default:
			}
		}
	}
}

func (b *mutationBridge) resolveDirtyAncestor(path []int) (vdom.NodeId, bool) {
	if b.root == nil {
		return 0, false
	}
	node := b.root
	lastId := b.ids.GetNodeId(node)
	for _, i := range path {
		children := node.Children()
		if i < 0 || i >= len(children) {
			break
		}
		node = children[i]
		if id := b.ids.GetNodeId(node); id != 0 {
			lastId = id
		}
	}
	if lastId == 0 {
		return 0, false
	}
	return lastId, true
}
