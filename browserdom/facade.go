// Package browserdom is the DOM facade spec.md's Design Notes §9 calls for:
// "in non-browser targets, the inliner is pluggable behind a small
// DOM-facade trait". Nothing above this package imports go-rod directly —
// IdMap, the Inliner, the StyleSheetWatcher, and the DomChangeDetector all
// work against these two interfaces, and the only implementation shipped
// (package browserdom/rodpage) drives a real Chrome tab over CDP the way
// the teacher's browser.Tab does.
package browserdom

import (
	"context"
	"encoding/json"
)

// NodeType mirrors the DOM's nodeType integers closely enough for the
// switch statements in package inline and package idmap to read the same
// way the spec's pseudocode does.
type NodeType int

const (
	NodeTypeElement  NodeType = 1
	NodeTypeText     NodeType = 3
	NodeTypeCData    NodeType = 4
	NodeTypePI       NodeType = 7
	NodeTypeComment  NodeType = 8
	NodeTypeDocument NodeType = 9
	NodeTypeDocType  NodeType = 10
)

// CDPDomain names a Chrome DevTools Protocol domain a Page can subscribe
// to events from. Only the domains the recorder actually listens on are
// enumerated; this is not a general CDP binding.
type CDPDomain string

const (
	DomainDOM     CDPDomain = "DOM"
	DomainCSS     CDPDomain = "CSS"
	DomainPage    CDPDomain = "Page"
	DomainInput   CDPDomain = "Input"
	DomainRuntime CDPDomain = "Runtime"
)

// DOMEvent is one CDP event delivered to a Subscribe channel, decoded only
// as far as its method name and raw params — callers that need the typed
// payload unmarshal Params themselves, which keeps this package from
// having to mirror every CDP event struct.
type DOMEvent struct {
	Method string
	Params json.RawMessage
}

// Node is a live DOM node reached through a Page. Implementations must be
// comparable (usable as a map key) so package idmap can use Node values
// directly as bijection keys, the way the teacher's nodeMap uses
// proto.DOMNodeID.
type Node interface {
	NodeType() NodeType
	TagName() string // lowercased; empty for non-element nodes
	TextData() string
	Attributes() []Attribute
	Children() []Node
	ShadowRoot() Node // nil if none or closed
	OwnerDocument() Page
	BaseURI() string
}

// Attribute is one attribute name/value pair read off a live element, in
// DOM attribute order.
type Attribute struct {
	Name  string
	Value string
}

// Page is the capability surface the recorder needs from a live browser
// tab: reading the document, evaluating JS, receiving a JS→Go binding
// channel, and subscribing to CDP domain events.
type Page interface {
	// Document returns the root Node (nodeType Document) of the page.
	Document(ctx context.Context) (Node, error)

	// Eval runs js in the page's main world, JSON-decoding args in as
	// arguments and returning the raw JSON result.
	Eval(ctx context.Context, js string, args ...any) (json.RawMessage, error)

	// AddBinding exposes a function named name to page JS; every call the
	// page makes to it is delivered as a string on the returned channel.
	// This is the bridge the injected MutationObserver uses to report
	// mutations back to the recorder, mirroring Runtime.addBinding in the
	// teacher's observer.
	AddBinding(ctx context.Context, name string) (<-chan string, error)

	// Subscribe streams CDP events for domain until ctx is done or the
	// returned cancel func is called.
	Subscribe(ctx context.Context, domain CDPDomain) (<-chan DOMEvent, func())

	// Navigate loads url in this tab.
	Navigate(ctx context.Context, url string) error

	// WaitLoad blocks until the page's load event has fired.
	WaitLoad(ctx context.Context) error

	// Viewport reports the current viewport size in CSS pixels.
	Viewport(ctx context.Context) (width, height int, err error)

	// SetViewport overrides the device metrics to width x height CSS
	// pixels. A zero width or height leaves the browser's own default
	// viewport untouched — callers that don't care about viewport size
	// can pass 0, 0.
	SetViewport(ctx context.Context, width, height int) error

	// Close releases the tab.
	Close() error
}
