// Package diff implements DomChangeDetector (spec.md §4.5): a mirror tree
// of the live root, dirty-region accumulation from mutation events,
// debounced reconciliation, and minimal DomOperation emission.
package diff

import (
	"log/slog"
	"time"

	"github.com/dnorman/domcorder/browserdom"
	"github.com/dnorman/domcorder/idmap"
	"github.com/dnorman/domcorder/vdom"
)

// OpKind discriminates a DomOperation.
type OpKind int

const (
	OpInsert OpKind = iota
	OpRemove
	OpUpdateAttribute
	OpRemoveAttribute
	OpUpdateText
)

// Operation is the internal diff unit described in spec.md §3. Insert ops
// carry the live node so the caller (package recorder) can run it through
// the Inliner; everything else is already self-contained.
type Operation struct {
	Kind     OpKind
	NodeId   vdom.NodeId
	ParentId vdom.NodeId
	Index    int
	Live     browserdom.Node // set for OpInsert
	Name     string          // OpUpdateAttribute / OpRemoveAttribute
	Value    string          // OpUpdateAttribute
	TextOps  []TextEdit      // OpUpdateText
}

// Config controls the detector's debounce window.
type Config struct {
	DebounceWindow time.Duration // default 500ms, per spec.md §4.5
	Logger         *slog.Logger
}

func (c *Config) defaults() {
	if c.DebounceWindow <= 0 {
		c.DebounceWindow = 500 * time.Millisecond
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Detector owns the mirror tree, keyed by NodeId in the same space as the
// idmap.Map bound to the live root (spec.md: "mirror gets its own IdMap
// bound bijectively to live ids by traversal order at start").
type Detector struct {
	cfg   Config
	ids   *idmap.Map
	mu    struct{} // no separate lock: Detector is single-goroutine-owned by recorder
	byId  map[vdom.NodeId]*vdom.VNode
	dirty map[vdom.NodeId]bool

	timer   *time.Timer
	fire    chan struct{}
	onBatch func([]Operation)
}

// New returns a Detector that allocates/looks up ids through ids and
// delivers reconciled batches to onBatch.
func New(ids *idmap.Map, cfg Config, onBatch func([]Operation)) *Detector {
	cfg.defaults()
	return &Detector{
		cfg:     cfg,
		ids:     ids,
		byId:    make(map[vdom.NodeId]*vdom.VNode),
		dirty:   make(map[vdom.NodeId]bool),
		fire:    make(chan struct{}, 1),
		onBatch: onBatch,
	}
}

// Seed builds the initial mirror from the live root and records it
// against the ids already assigned by a prior IdMap.AssignNodeIdsToSubTree
// call (the recorder assigns ids before seeding, so mirror and live start
// in lockstep).
func (d *Detector) Seed(root browserdom.Node) {
	d.byId = make(map[vdom.NodeId]*vdom.VNode)
	d.snapshotInto(root)
}

// snapshotInto clones node (and descendants) into the mirror, recording
// each by its already-assigned NodeId. Nodes with no id yet are assigned
// one — this is the path new subtrees (inserts) take to both get an id
// and gain a mirror entry in one pass.
func (d *Detector) snapshotInto(node browserdom.Node) *vdom.VNode {
	id := d.ids.GetNodeId(node)
	if id == 0 {
		var err error
		id, err = d.ids.AssignNodeIdsToSubTree(node)
		if err != nil {
			d.cfg.Logger.Error("diff: assign id failed", "error", err)
		}
	}

	var v *vdom.VNode
	switch node.NodeType() {
	case browserdom.NodeTypeText, browserdom.NodeTypeCData, browserdom.NodeTypeComment:
		v = &vdom.VNode{Kind: kindFor(node.NodeType()), Id: id, Data: node.TextData()}
	default:
		v = vdom.Element(id, node.TagName())
		for _, a := range node.Attributes() {
			v.Attrs = v.Attrs.Set(a.Name, a.Value)
		}
		for _, c := range node.Children() {
			v.Children = append(v.Children, d.snapshotInto(c))
		}
		if sr := node.ShadowRoot(); sr != nil {
			v.Shadow = append(v.Shadow, d.snapshotInto(sr))
		}
	}
	d.byId[id] = v
	return v
}

func kindFor(nt browserdom.NodeType) vdom.NodeKind {
	switch nt {
	case browserdom.NodeTypeText:
		return vdom.KindText
	case browserdom.NodeTypeCData:
		return vdom.KindCData
	case browserdom.NodeTypeComment:
		return vdom.KindComment
	default:
		return vdom.KindText
	}
}

// MarkDirty records that node (or a descendant of it) changed. The walk
// up to "an ancestor that is still contained in the live root" (spec.md
// §4.5) is done by the caller via idmap's parent table — MarkDirty itself
// only needs the id of whichever ancestor the caller settled on.
func (d *Detector) MarkDirty(id vdom.NodeId) {
	if _, ok := d.ids.GetNodeById(id); !ok {
		// Ancestor itself has been removed since the mutation was queued;
		// spec.md §4.5: "the mutation is discarded."
		return
	}
	d.dirty[id] = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.cfg.DebounceWindow, func() {
		select {
		case d.fire <- struct{}{}:
		default:
		}
	})
}

// Fire returns the channel that signals a debounce window has elapsed;
// the recorder's event loop selects on this and calls Flush.
func (d *Detector) Fire() <-chan struct{} { return d.fire }

// Flush reconciles every dirty root against the mirror and delivers the
// resulting batch to onBatch, applying each op to the mirror first so it
// stays consistent for the next batch even if onBatch panics downstream.
func (d *Detector) Flush() {
	if len(d.dirty) == 0 {
		return
	}
	var ops []Operation
	for id := range d.dirty {
		live, ok := d.ids.GetNodeById(id)
		if !ok {
			continue
		}
		mirror, ok := d.byId[id]
		if !ok {
			continue
		}
		ops = append(ops, d.reconcileNode(id, live, mirror)...)
	}
	d.dirty = make(map[vdom.NodeId]bool)

	func() {
		defer func() {
			if r := recover(); r != nil {
				d.cfg.Logger.Error("diff: batch callback panicked", "panic", r)
			}
		}()
		d.onBatch(ops)
	}()
}

// reconcileNode diffs one element's attributes and children (or a text
// node's content) against its mirror counterpart, applying the ops to the
// mirror as it goes.
func (d *Detector) reconcileNode(id vdom.NodeId, live browserdom.Node, mirror *vdom.VNode) []Operation {
	if live.NodeType() == browserdom.NodeTypeText || live.NodeType() == browserdom.NodeTypeCData || live.NodeType() == browserdom.NodeTypeComment {
		newText := live.TextData()
		if newText == mirror.Data {
			return nil
		}
		ops := DiffText(mirror.Data, newText)
		mirror.Data = newText
		if len(ops) == 0 {
			return nil
		}
		return []Operation{{Kind: OpUpdateText, NodeId: id, TextOps: ops}}
	}
	return d.reconcileElement(id, live, mirror)
}

func (d *Detector) reconcileElement(id vdom.NodeId, live browserdom.Node, mirror *vdom.VNode) []Operation {
	var ops []Operation

	liveAttrs := live.Attributes()
	liveSet := make(map[string]string, len(liveAttrs))
	for _, a := range liveAttrs {
		liveSet[a.Name] = a.Value
	}
	for _, a := range mirror.Attrs {
		if _, ok := liveSet[a.Name]; !ok {
			ops = append(ops, Operation{Kind: OpRemoveAttribute, NodeId: id, Name: a.Name})
			mirror.Attrs = mirror.Attrs.Delete(a.Name)
		}
	}
	for _, a := range liveAttrs {
		if old, ok := mirror.Attrs.Get(a.Name); !ok || old != a.Value {
			ops = append(ops, Operation{Kind: OpUpdateAttribute, NodeId: id, Name: a.Name, Value: a.Value})
			mirror.Attrs = mirror.Attrs.Set(a.Name, a.Value)
		}
	}

	ops = append(ops, d.reconcileChildren(id, live, mirror)...)
	return ops
}

// reconcileChildren matches live and mirror children by id in a single
// pass: mirror ids absent from the live list are removed, live nodes with
// no id yet are new inserts, and ids present in both are recursed into.
// There is deliberately no "move" op: a reordered node decomposes into a
// remove (from its old mirror position) and an insert (at its new live
// position), which is exactly the operation set spec.md §3 defines.
func (d *Detector) reconcileChildren(parentId vdom.NodeId, live browserdom.Node, mirror *vdom.VNode) []Operation {
	var ops []Operation

	liveChildren := live.Children()
	liveIdSet := make(map[vdom.NodeId]bool, len(liveChildren))
	for _, c := range liveChildren {
		if id := d.ids.GetNodeId(c); id != 0 {
			liveIdSet[id] = true
		}
	}

	for _, m := range mirror.Children {
		if !liveIdSet[m.Id] {
			ops = append(ops, Operation{Kind: OpRemove, NodeId: m.Id})
			d.ids.RemoveNodesInSubtree(m.Id)
			delete(d.byId, m.Id)
		}
	}

	mirrorById := make(map[vdom.NodeId]*vdom.VNode, len(mirror.Children))
	for _, m := range mirror.Children {
		mirrorById[m.Id] = m
	}

	newChildren := make([]*vdom.VNode, 0, len(liveChildren))
	next := 0 // first mirror child not yet matched, removed or moved
	for i, c := range liveChildren {
		id := d.ids.GetNodeId(c)
		if id != 0 && mirrorById[id] != nil {
			for !liveIdSet[mirror.Children[next].Id] {
				next++
			}
			if mirror.Children[next].Id == id {
				next++
			} else {
				liveIdSet[id] = false
				ops = append(ops, Operation{Kind: OpRemove, NodeId: id})
				d.ids.RemoveNodesInSubtree(id)
				delete(d.byId, id)
				id = 0
			}
		}
		if id == 0 || mirrorById[id] == nil {
			v := d.snapshotInto(c)
			ops = append(ops, Operation{Kind: OpInsert, ParentId: parentId, Index: i, Live: c, NodeId: v.Id})
			newChildren = append(newChildren, v)
			continue
		}
		mv := mirrorById[id]
		ops = append(ops, d.reconcileNode(id, c, mv)...)
		newChildren = append(newChildren, mv)
	}
	mirror.Children = newChildren
	return ops
}
