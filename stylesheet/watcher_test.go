package stylesheet

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/dnorman/domcorder/browserdom"
)

type fakePage struct {
	mu       sync.Mutex
	bindings map[string]chan string
	css      chan browserdom.DOMEvent
	evalJSON string
	evalErr  error
}

func newFakePage() *fakePage {
	return &fakePage{bindings: make(map[string]chan string), css: make(chan browserdom.DOMEvent, 16)}
}

func (p *fakePage) Document(ctx context.Context) (browserdom.Node, error) { return nil, nil }

func (p *fakePage) Eval(ctx context.Context, js string, args ...any) (json.RawMessage, error) {
	if p.evalErr != nil {
		return nil, p.evalErr
	}
	if p.evalJSON == "" {
		return json.RawMessage("{}"), nil
	}
	return json.RawMessage(p.evalJSON), nil
}

func (p *fakePage) AddBinding(ctx context.Context, name string) (<-chan string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch := make(chan string, 16)
	p.bindings[name] = ch
	return ch, nil
}

func (p *fakePage) Subscribe(ctx context.Context, domain browserdom.CDPDomain) (<-chan browserdom.DOMEvent, func()) {
	return p.css, func() {}
}

func (p *fakePage) Navigate(ctx context.Context, url string) error                 { return nil }
func (p *fakePage) WaitLoad(ctx context.Context) error                             { return nil }
func (p *fakePage) Viewport(ctx context.Context) (int, int, error)                 { return 0, 0, nil }
func (p *fakePage) SetViewport(ctx context.Context, width, height int) error       { return nil }
func (p *fakePage) Close() error                                                   { return nil }

func (p *fakePage) binding(name string) chan string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bindings[name]
}

func TestStartReturnsInitialAdoptedSheets(t *testing.T) {
	page := newFakePage()
	page.evalJSON = `{"now":["as1"],"added":["as1"],"removed":[],"sheets":[{"id":"as1","css":"body{color:red}","media":"screen"}]}`

	w := NewWatcher(page, NewRegistry(), Config{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	infos, err := w.Start(ctx)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("got %d infos, want 1", len(infos))
	}
	if infos[0].CSSText != "body{color:red}" || infos[0].Media != "screen" || !infos[0].HasMedia {
		t.Errorf("got %+v", infos[0])
	}
	if id, ok := w.registry.Lookup(Handle("adopted:as1")); !ok || id != infos[0].Id {
		t.Errorf("expected registry to have resolved as1, got id=%d ok=%v", id, ok)
	}
}

func TestStartPropagatesEvalError(t *testing.T) {
	page := newFakePage()
	page.evalErr = errEval

	w := NewWatcher(page, NewRegistry(), Config{})
	if _, err := w.Start(context.Background()); err == nil {
		t.Fatal("expected Start to propagate the Eval error")
	}
}

var errEval = errFixed("eval failed")

type errFixed string

func (e errFixed) Error() string { return string(e) }

func TestHandleAdoptedReportsAddedWithCSSAndRemoved(t *testing.T) {
	page := newFakePage()
	w := NewWatcher(page, NewRegistry(), Config{DebounceWindow: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if _, err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// First report: one sheet adopted.
	ch := page.binding(adoptedBindingName)
	ch <- `{"now":["as1"],"added":["as1"],"removed":[],"sheets":[{"id":"as1","css":"a{}","media":""}]}`

	ev := waitForAdoptedEvent(t, w)
	if len(ev.Added) != 1 || ev.Added[0].CSSText != "a{}" || ev.Added[0].HasMedia {
		t.Fatalf("got %+v", ev)
	}
	if len(ev.Now) != 1 {
		t.Fatalf("got Now=%v, want one sheet", ev.Now)
	}

	// Second report: as1 removed.
	ch <- `{"now":[],"added":[],"removed":["as1"],"sheets":[]}`
	ev2 := waitForAdoptedEvent(t, w)
	if len(ev2.Removed) != 1 || ev2.Removed[0] != ev.Added[0].Id {
		t.Fatalf("got %+v, want removal of id %d", ev2, ev.Added[0].Id)
	}
}

func waitForAdoptedEvent(t *testing.T, w *Watcher) *AdoptedSheetsEvent {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case e := <-w.Events():
			if e.AdoptedSheets != nil {
				return e.AdoptedSheets
			}
		case <-deadline:
			t.Fatal("timed out waiting for an AdoptedSheets event")
		}
	}
}

func TestHandleStyleSheetAddedAssignsRegistryId(t *testing.T) {
	page := newFakePage()
	w := NewWatcher(page, NewRegistry(), Config{DebounceWindow: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if _, err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	page.css <- browserdom.DOMEvent{
		Method: "CSS.styleSheetAdded",
		Params: json.RawMessage(`{"header":{"styleSheetId":"sheet-1","frameId":"frame-1","sourceURL":"https://example.com/a.css"}}`),
	}

	deadline := time.After(time.Second)
	for {
		select {
		case e := <-w.Events():
			if e.DocumentSheets != nil {
				if len(e.DocumentSheets.Now) != 1 {
					t.Fatalf("got %+v", e.DocumentSheets)
				}
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for a DocumentSheets event")
		}
	}
}
