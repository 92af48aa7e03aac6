package rodpage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/dnorman/domcorder/browserdom"
)

// page adapts a *rod.Page to the browserdom.Page facade, the same role
// browser.Tab plays for domwatch's Observer.
type page struct {
	rp  *rod.Page
	url string
}

var _ browserdom.Page = (*page)(nil)

// Open navigates a fresh tab off b to url and waits for load. Both stealth
// levels create a plain tab; no go-rod/stealth evasion script is injected.
func Open(ctx context.Context, b *rod.Browser, url string, stealth StealthLevel) (browserdom.Page, error) {
	var rp *rod.Page
	var err error
	if stealth >= LevelHeadful {
		rp, err = b.Page(proto.TargetCreateTarget{URL: ""})
	} else {
		rp, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("rodpage: create tab: %w", err)
	}
	p := &page{rp: rp, url: url}
	if err := p.Navigate(ctx, url); err != nil {
		rp.Close()
		return nil, err
	}
	if err := p.WaitLoad(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *page) Navigate(ctx context.Context, url string) error {
	p.url = url
	return p.rp.Context(ctx).Navigate(url)
}

func (p *page) WaitLoad(ctx context.Context) error {
	return p.rp.Context(ctx).WaitLoad()
}

// Document fetches the full DOM tree with depth=-1 and pierce=true so
// open shadow roots are included, matching the teacher's
// EnableDOMTracking comment: "without [depth -1], mutations on deep nodes
// are silently ignored."
func (p *page) Document(ctx context.Context) (browserdom.Node, error) {
	depth := -1
	doc, err := (proto.DOMGetDocument{Depth: &depth, Pierce: true}).Call(p.rp.Context(ctx))
	if err != nil {
		return nil, fmt.Errorf("rodpage: get document: %w", err)
	}
	return wrapNode(p, doc.Root), nil
}

func (p *page) Eval(ctx context.Context, js string, args ...any) (json.RawMessage, error) {
	res, err := p.rp.Context(ctx).Eval(js, args...)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(res.Value.Raw), nil
}

// AddBinding exposes name to page JS; every invocation is delivered on the
// returned channel, bridging the injected MutationObserver's JS-side
// reports back into the recorder's event loop the way
// Runtime.addBinding/Runtime.bindingCalled does for domwatch.
func (p *page) AddBinding(ctx context.Context, name string) (<-chan string, error) {
	ch := make(chan string, 256)

	go func() {
		p.rp.Context(ctx).EachEvent(func(e *proto.RuntimeBindingCalled) {
			if e.Name != name {
				return
			}
			select {
			case ch <- e.Payload:
			case <-ctx.Done():
			}
		})()
	}()

	if err := (proto.RuntimeAddBinding{Name: name}).Call(p.rp.Context(ctx)); err != nil {
		return nil, fmt.Errorf("rodpage: add binding %s: %w", name, err)
	}
	return ch, nil
}

// Subscribe dispatches the small set of CDP events the recorder cares
// about for domain into a single channel, the same fan-in EachEvent shape
// the teacher's cdpListener.listenAll uses, generalized across domains
// instead of being wired to one fixed callback set.
func (p *page) Subscribe(ctx context.Context, domain browserdom.CDPDomain) (<-chan browserdom.DOMEvent, func()) {
	ch := make(chan browserdom.DOMEvent, 256)
	subCtx, cancel := context.WithCancel(ctx)

	switch domain {
	case browserdom.DomainDOM:
		proto.DOMEnable{}.Call(p.rp)
		go func() {
			p.rp.Context(subCtx).EachEvent(
				func(e *proto.DOMChildNodeInserted) { emit(ch, subCtx, "DOM.childNodeInserted", e) },
				func(e *proto.DOMChildNodeRemoved) { emit(ch, subCtx, "DOM.childNodeRemoved", e) },
				func(e *proto.DOMAttributeModified) { emit(ch, subCtx, "DOM.attributeModified", e) },
				func(e *proto.DOMAttributeRemoved) { emit(ch, subCtx, "DOM.attributeRemoved", e) },
				func(e *proto.DOMCharacterDataModified) { emit(ch, subCtx, "DOM.characterDataModified", e) },
				func(e *proto.DOMDocumentUpdated) { emit(ch, subCtx, "DOM.documentUpdated", e) },
			)()
		}()
	case browserdom.DomainCSS:
		proto.CSSEnable{}.Call(p.rp)
		go func() {
			p.rp.Context(subCtx).EachEvent(
				func(e *proto.CSSStyleSheetAdded) { emit(ch, subCtx, "CSS.styleSheetAdded", e) },
				func(e *proto.CSSStyleSheetRemoved) { emit(ch, subCtx, "CSS.styleSheetRemoved", e) },
				func(e *proto.CSSStyleSheetChanged) { emit(ch, subCtx, "CSS.styleSheetChanged", e) },
			)()
		}()
	case browserdom.DomainPage:
		proto.PageEnable{}.Call(p.rp)
		go func() {
			p.rp.Context(subCtx).EachEvent(
				func(e *proto.PageFrameResized) { emit(ch, subCtx, "Page.frameResized", e) },
			)()
		}()
	case browserdom.DomainInput:
		go func() {
			p.rp.Context(subCtx).EachEvent(
				func(e *proto.InputDispatchMouseEvent) { emit(ch, subCtx, "Input.dispatchMouseEvent", e) },
				func(e *proto.InputDispatchKeyEvent) { emit(ch, subCtx, "Input.dispatchKeyEvent", e) },
			)()
		}()
	}

	return ch, cancel
}

func emit(ch chan browserdom.DOMEvent, ctx context.Context, method string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	select {
	case ch <- browserdom.DOMEvent{Method: method, Params: raw}:
	case <-ctx.Done():
	}
}

func (p *page) Viewport(ctx context.Context) (int, int, error) {
	res, err := p.Eval(ctx, `() => [window.innerWidth, window.innerHeight]`)
	if err != nil {
		return 0, 0, err
	}
	var dims [2]int
	if err := json.Unmarshal(res, &dims); err != nil {
		return 0, 0, err
	}
	return dims[0], dims[1], nil
}

// SetViewport overrides device metrics via Emulation.setDeviceMetricsOverride,
// the same CDP call go-rod's own Page.SetViewport wraps.
func (p *page) SetViewport(ctx context.Context, width, height int) error {
	if width <= 0 || height <= 0 {
		return nil
	}
	return p.rp.Context(ctx).SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             width,
		Height:            height,
		DeviceScaleFactor: 1,
		Mobile:            false,
	})
}

func (p *page) Close() error {
	return p.rp.Close()
}
