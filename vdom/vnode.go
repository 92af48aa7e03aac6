// Package vdom defines the virtual-DOM value types a snapshot is made of —
// VNode (the tagged union of element/text/cdata/comment/processing
// instruction/doctype) and VDocument (a document's adopted stylesheets plus
// its top-level children) — and their wire codec. It knows nothing about
// live browser state; it is the immutable, owned-by-value payload that
// package inline produces and package protocol carries inside Keyframe,
// DomNodeAdded, and NewAdoptedStyleSheet frames.
package vdom

// NodeKind tags which variant a VNode holds. Values are part of the wire
// contract (protocol §6 "VNode encoding") and must never be renumbered.
type NodeKind uint32

const (
	KindElement NodeKind = 0
	KindText    NodeKind = 1
	KindCData   NodeKind = 2
	KindComment NodeKind = 3
	KindPI      NodeKind = 4
	KindDocType NodeKind = 5
)

// NodeId is the node identifier carried on the wire. Package idmap imports
// vdom and uses this type for the ids it assigns. Zero means
// synthetic (not tracked by any IdMap), matching spec.md §3.
type NodeId uint32

// Attr is one name/value pair in an element's attribute list. Attributes
// are carried as an ordered slice, not a map, so insertion order — which
// the wire format and golden-binary comparisons both depend on — survives
// encode/decode without a separate ordering side-channel.
type Attr struct {
	Name  string
	Value string
}

// Attrs is an insertion-ordered attribute list with map-like lookup
// helpers. Built as a slice of Attr rather than a Go map so that encoding
// never has to sort or otherwise fabricate an order.
type Attrs []Attr

// Get returns the value of the named attribute and whether it was present.
func (a Attrs) Get(name string) (string, bool) {
	for _, kv := range a {
		if kv.Name == name {
			return kv.Value, true
		}
	}
	return "", false
}

// Set updates name in place if present, or appends it, preserving the
// position of an existing attribute and the insertion order of a new one.
func (a Attrs) Set(name, value string) Attrs {
	for i := range a {
		if a[i].Name == name {
			a[i].Value = value
			return a
		}
	}
	return append(a, Attr{Name: name, Value: value})
}

// Delete removes name if present; no-op otherwise.
func (a Attrs) Delete(name string) Attrs {
	for i := range a {
		if a[i].Name == name {
			return append(a[:i:i], a[i+1:]...)
		}
	}
	return a
}

// VNode is the tagged union of the six snapshot node variants. Only one of
// the Kind-specific field groups is populated, selected by Kind.
type VNode struct {
	Kind NodeKind
	Id   NodeId

	// KindElement fields.
	Tag       string // lowercased
	Namespace string // empty means "absent" on the wire
	HasNS     bool
	Attrs     Attrs
	Children  []*VNode
	Shadow    []*VNode // open shadow root children, nil if none

	// KindText / KindCData / KindComment fields.
	Data string

	// KindPI fields.
	PITarget string
	PIData   string

	// KindDocType fields.
	DoctypeName     string
	DoctypePublicID string
	DoctypeSystemID string
}

// Element constructs a KindElement VNode with no namespace.
func Element(id NodeId, tag string) *VNode {
	return &VNode{Kind: KindElement, Id: id, Tag: tag}
}

// Text constructs a KindText VNode.
func Text(id NodeId, data string) *VNode {
	return &VNode{Kind: KindText, Id: id, Data: data}
}

// WithNamespace sets an explicit namespace on an element VNode and returns
// it for chaining during tree construction.
func (n *VNode) WithNamespace(ns string) *VNode {
	n.HasNS = true
	n.Namespace = ns
	return n
}

// VStyleSheet is an adopted stylesheet carried on VDocument: a stable
// SheetId, the serialized CSS text (already asset-rewritten), and an
// optional media query string.
type VStyleSheet struct {
	SheetId   uint32
	HasMedia  bool
	Media     string
	CSSText   string
}

// VDocument is the top-level snapshot unit: a document id, its adopted
// stylesheets in order, and its top-level children (normally a single
// <html> element, but the type does not assume that).
type VDocument struct {
	DocId    NodeId
	Sheets   []VStyleSheet
	Children []*VNode
}
