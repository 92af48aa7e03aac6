// Package idmap implements the bijection between live DOM nodes and the
// monotonic u32 ids carried on the wire. It is the Go counterpart of the
// nodeMap kept by the CDP-backed observer: that map tracks CDP node ids to
// XPaths for mutation reporting; this one tracks browserdom.Node values to
// the recorder's own NodeId space, which is what frames actually reference.
package idmap

import (
	"fmt"
	"sync"

	"github.com/dnorman/domcorder/browserdom"
	"github.com/dnorman/domcorder/vdom"
)

// InvariantViolation reports a broken IdMap contract: a node assigned an
// id twice with conflicting expectations, or a lookup for an id/node pair
// that was never established. Recording is torn down when this occurs,
// matching spec.md §7's InvariantViolation taxonomy entry.
type InvariantViolation struct {
	Reason string
}

func (e *InvariantViolation) Error() string { return "idmap: invariant violation: " + e.Reason }

// Map is the owned-by-one-recorder bijection between live nodes and
// NodeIds. It is not safe for the live DOM to be read concurrently by more
// than the recorder's own event loop goroutine, but the map itself
// serializes its own state so the fetch-phase goroutines of package inline
// can resolve ids without round-tripping through the event loop.
type Map struct {
	mu       sync.Mutex
	counter  uint32
	byNode   map[browserdom.Node]vdom.NodeId
	byId     map[vdom.NodeId]browserdom.Node
	children map[vdom.NodeId][]vdom.NodeId
	parent   map[vdom.NodeId]vdom.NodeId
}

// New returns an empty Map. The zero NodeId is reserved for "none" and is
// never handed out by AssignNodeIdsToSubTree.
func New() *Map {
	return &Map{
		byNode:   make(map[browserdom.Node]vdom.NodeId),
		byId:     make(map[vdom.NodeId]browserdom.Node),
		children: make(map[vdom.NodeId][]vdom.NodeId),
		parent:   make(map[vdom.NodeId]vdom.NodeId),
	}
}

// GetNodeId returns the id assigned to node, or 0 if none.
func (m *Map) GetNodeId(node browserdom.Node) vdom.NodeId {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byNode[node]
}

// GetNodeById returns the node behind id, or (nil, false) if the id is not
// currently live.
func (m *Map) GetNodeById(id vdom.NodeId) (browserdom.Node, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.byId[id]
	return n, ok
}

// AssignNodeIdsToSubTree walks root depth-first (document order, shadow
// roots following their host's main children per the VNode encoding
// convention) assigning a fresh id to every node that doesn't already
// have one. A node that is re-assigned returns its existing id rather than
// allocating a new one — double assignment is tolerated as an idempotent
// re-subscribe, not an error, unless the existing id maps to a different
// node, which is an InvariantViolation.
func (m *Map) AssignNodeIdsToSubTree(root browserdom.Node) (vdom.NodeId, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.assignLocked(root, 0)
}

func (m *Map) assignLocked(node browserdom.Node, parent vdom.NodeId) (vdom.NodeId, error) {
	if existing, ok := m.byNode[node]; ok {
		if other, ok := m.byId[existing]; ok && other != node {
			return 0, &InvariantViolation{Reason: fmt.Sprintf("node id %d reassigned to a different node", existing)}
		}
		return existing, nil
	}

	m.counter++
	id := vdom.NodeId(m.counter)
	m.byNode[node] = id
	m.byId[id] = node
	if parent != 0 {
		m.parent[id] = parent
		m.children[parent] = append(m.children[parent], id)
	}

	for _, child := range node.Children() {
		if _, err := m.assignLocked(child, id); err != nil {
			return 0, err
		}
	}
	if shadow := node.ShadowRoot(); shadow != nil {
		if _, err := m.assignLocked(shadow, id); err != nil {
			return 0, err
		}
	}
	return id, nil
}

// RemoveNodesInSubtree deletes the id of root and every descendant
// (document order), releasing them permanently — an id released here is
// never reused, matching spec.md §3's NodeId lifecycle.
func (m *Map) RemoveNodesInSubtree(root vdom.NodeId) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(root)
}

func (m *Map) removeLocked(id vdom.NodeId) {
	for _, child := range m.children[id] {
		m.removeLocked(child)
	}
	if node, ok := m.byId[id]; ok {
		delete(m.byNode, node)
	}
	delete(m.byId, id)
	delete(m.children, id)
	delete(m.parent, id)
}

// ParentOf returns the parent id of id, or (0, false) if id is a root or
// unknown. No package in this repository calls it; it exposes the
// parent table kept alongside the id bijection.
func (m *Map) ParentOf(id vdom.NodeId) (vdom.NodeId, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.parent[id]
	return p, ok
}

// Count returns the number of currently live ids. Exposed for tests and
// metrics, not used in any decoding path.
func (m *Map) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byId)
}
