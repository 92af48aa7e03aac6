package rodpage

import (
	"strings"

	"github.com/go-rod/rod/lib/proto"

	"github.com/dnorman/domcorder/browserdom"
)

// node wraps a single *proto.DOMNode returned by DOM.getDocument (depth=-1,
// pierce=true so shadow roots are included). Wrapping the CDP node
// directly — rather than a rod.Element, which only models elements — lets
// this type stand in for text, comment, doctype, and processing
// instruction nodes the same way the teacher's nodeMap walks the raw
// DOM.getDocument tree.
//
// Two *node values are == iff they wrap the same *proto.DOMNode pointer,
// which CDP keeps stable for the node's lifetime; this is what makes node
// usable as the map key in package idmap's bijection.
type node struct {
	page *page
	raw  *proto.DOMNode
}

var _ browserdom.Node = (*node)(nil)

func wrapNode(p *page, raw *proto.DOMNode) *node {
	if raw == nil {
		return nil
	}
	return &node{page: p, raw: raw}
}

func (n *node) NodeType() browserdom.NodeType {
	return browserdom.NodeType(n.raw.NodeType)
}

func (n *node) TagName() string {
	if n.raw.NodeType != 1 {
		return ""
	}
	return strings.ToLower(n.raw.NodeName)
}

func (n *node) TextData() string {
	return n.raw.NodeValue
}

func (n *node) Attributes() []browserdom.Attribute {
	// proto.DOMNode.Attributes is a flat [name, value, name, value, ...] list.
	flat := n.raw.Attributes
	attrs := make([]browserdom.Attribute, 0, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		attrs = append(attrs, browserdom.Attribute{Name: flat[i], Value: flat[i+1]})
	}
	return attrs
}

func (n *node) Children() []browserdom.Node {
	out := make([]browserdom.Node, 0, len(n.raw.Children))
	for _, c := range n.raw.Children {
		out = append(out, wrapNode(n.page, c))
	}
	if n.raw.ContentDocument != nil {
		out = append(out, wrapNode(n.page, n.raw.ContentDocument))
	}
	return out
}

func (n *node) ShadowRoot() browserdom.Node {
	for _, sr := range n.raw.ShadowRoots {
		// pierce=true (see page.Document) also returns closed and
		// user-agent roots; only an open root is surfaced.
		if sr.ShadowRootType == proto.DOMShadowRootTypeOpen {
			return wrapNode(n.page, sr)
		}
	}
	return nil
}

func (n *node) OwnerDocument() browserdom.Page {
	return n.page
}

func (n *node) BaseURI() string {
	if n.raw.BaseURL != "" {
		return n.raw.BaseURL
	}
	return n.page.url
}
