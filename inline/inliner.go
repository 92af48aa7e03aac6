// Package inline implements the Inliner (spec.md §4.3): a depth-first
// snapshotter that produces a VNode/VDocument tree with every external
// reference rewritten to asset:<id>, plus the bounded-concurrency fetch
// phase that resolves those ids to bytes. The walk is grounded on
// docpipe/html.go's and extract/css.go's tree-walking shape (both built
// on golang.org/x/net/html); the fetch phase follows
// domwatch/internal/fetcher.Fetcher's HTTP client setup (timeout,
// User-Agent, capped reads), generalized from "fetch a page" to "fetch an
// asset" and from a single request to a semaphore-bounded fan-out.
package inline

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/dnorman/domcorder/assets"
	"github.com/dnorman/domcorder/browserdom"
	"github.com/dnorman/domcorder/idmap"
	"github.com/dnorman/domcorder/stylesheet"
	"github.com/dnorman/domcorder/vdom"
)

// Options configures a snapshot pass.
type Options struct {
	QuietWindowMS    int  // default 200; handled by the caller before invoking Snapshot
	FreezeAnimations bool // caller injects/removes the freeze stylesheet around the call
	FetchConcurrency int  // default 6
}

func (o *Options) defaults() {
	if o.FetchConcurrency <= 0 {
		o.FetchConcurrency = 6
	}
}

// resourceHintRels are the <link rel> values spec.md §4.3 step 5 strips
// to prevent consumer-side activation.
var resourceHintRels = map[string]bool{
	"prefetch": true, "preload": true, "modulepreload": true,
	"dns-prefetch": true, "preconnect": true, "prerender": true,
}

var iconRels = map[string]bool{
	"icon": true, "apple-touch-icon": true,
}

// Inliner owns the asset/sheet registries used while walking one or more
// subtrees; a recorder holds exactly one for its lifetime, matching
// spec.md §9's "no global state" instance-owned-counter requirement.
type Inliner struct {
	opts   Options
	assets *assets.Tracker
	sheets *stylesheet.Registry
	ids    *idmap.Map
	client Fetcher
}

// Fetcher is the capability the fetch phase needs; package recorder
// supplies an *http.Client-backed implementation in production and tests
// supply a fake.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (data []byte, mime string, err error)
}

// New returns an Inliner sharing ids, an AssetTracker, and a
// StyleSheetRegistry with the rest of the recorder.
func New(ids *idmap.Map, tracker *assets.Tracker, sheets *stylesheet.Registry, fetcher Fetcher, opts Options) *Inliner {
	opts.defaults()
	return &Inliner{opts: opts, assets: tracker, sheets: sheets, ids: ids, client: fetcher}
}

// Snapshot walks root depth-first and returns its VNode, with every
// external reference rewritten to asset:<id> and registered on the
// Inliner's AssetTracker. It does not fetch anything — call RunFetchPhase
// afterward to resolve the assets this pass registered. ctx bounds the
// live CSSOM reads the walk makes for <link rel="stylesheet"> elements.
func (in *Inliner) Snapshot(ctx context.Context, root browserdom.Node) *vdom.VNode {
	return in.walk(ctx, root)
}

func (in *Inliner) walk(ctx context.Context, n browserdom.Node) *vdom.VNode {
	id := in.ids.GetNodeId(n)
	if id == 0 {
		id, _ = in.ids.AssignNodeIdsToSubTree(n)
	}

	switch n.NodeType() {
	case browserdom.NodeTypeText:
		return &vdom.VNode{Kind: vdom.KindText, Id: id, Data: n.TextData()}
	case browserdom.NodeTypeCData:
		return &vdom.VNode{Kind: vdom.KindCData, Id: id, Data: n.TextData()}
	case browserdom.NodeTypeComment:
		return &vdom.VNode{Kind: vdom.KindComment, Id: id, Data: n.TextData()}
	case browserdom.NodeTypePI:
		return &vdom.VNode{Kind: vdom.KindPI, Id: id}
	case browserdom.NodeTypeDocType:
		return &vdom.VNode{Kind: vdom.KindDocType, Id: id, DoctypeName: n.TagName()}
	}

	tag := n.TagName()
	v := vdom.Element(id, tag)
	baseURI := n.BaseURI()

	switch tag {
	case "script":
		in.snapshotScript(n, v, baseURI)
	case "style":
		in.snapshotInlineStyleElement(n, v, baseURI)
	case "link":
		in.snapshotLink(ctx, n, v, baseURI)
	case "img":
		in.snapshotImg(n, v, baseURI)
	case "video":
		in.snapshotGenericAttrs(n, v)
	default:
		in.snapshotGenericAttrs(n, v)
	}

	// Inline style="" attribute and srcset rewriting apply regardless of
	// element kind, on top of whatever snapshotXxx above already did.
	in.rewriteInlineStyleAttr(v, baseURI)
	in.rewriteSrcset(v, baseURI)

	if tag != "script" {
		for _, c := range n.Children() {
			v.Children = append(v.Children, in.walk(ctx, c))
		}
		if tag == "style" {
			for _, c := range v.Children {
				if c.Kind == vdom.KindText {
					c.Data = in.RewriteStyleText(c.Data, baseURI)
				}
			}
		}
	}
	if sr := n.ShadowRoot(); sr != nil {
		v.Shadow = append(v.Shadow, in.walk(ctx, sr))
	}
	return v
}

func (in *Inliner) snapshotGenericAttrs(n browserdom.Node, v *vdom.VNode) {
	for _, a := range n.Attributes() {
		v.Attrs = v.Attrs.Set(a.Name, a.Value)
	}
}

// snapshotScript preserves attributes but records the original src under
// data-orig-src, per spec.md §4.3 step 2. Text children are blanked by
// walk(), which skips the children-copy loop entirely for tag=="script".
func (in *Inliner) snapshotScript(n browserdom.Node, v *vdom.VNode, baseURI string) {
	for _, a := range n.Attributes() {
		if a.Name == "src" {
			v.Attrs = v.Attrs.Set("data-orig-src", a.Value)
			continue
		}
		v.Attrs = v.Attrs.Set(a.Name, a.Value)
	}
}

func (in *Inliner) snapshotInlineStyleElement(n browserdom.Node, v *vdom.VNode, baseURI string) {
	in.snapshotGenericAttrs(n, v)
	// The CSS text itself lives in the <style> element's text child; walk()
	// appends it normally and then rewrites its url(...) references once
	// this function returns.
}

// linkStylesheetScript reads the serialized CSS rules for the
// CSSStyleSheet owning the <link> whose resolved href is abs. There is no
// browserdom.Page method for this — CDP's CSS.getStyleSheetText needs a
// styleSheetId that isn't available until the CSS domain has already
// reported the sheet as added, and that event carries no href to match
// against — so this walks document.styleSheets directly, the same
// AddBinding/Eval bridge the mutation and interaction trackers use to
// reach page state CDP doesn't surface.
const linkStylesheetScript = `(href) => {
  for (const sheet of document.styleSheets) {
    if (sheet.href === href) {
      try {
        return Array.from(sheet.cssRules).map((r) => r.cssText).join('\n');
      } catch (e) {
        return null;
      }
    }
  }
  return null;
}`

// readLinkStylesheetCSS evaluates linkStylesheetScript against page, the
// node's owner document. A cross-origin sheet without CORS headers throws
// on cssRules access, reported the same as "not found" — the href is left
// unrewritten and unregistered rather than guessing at its contents.
func readLinkStylesheetCSS(ctx context.Context, page browserdom.Page, abs string) (string, bool) {
	if page == nil {
		return "", false
	}
	raw, err := page.Eval(ctx, linkStylesheetScript, abs)
	if err != nil {
		return "", false
	}
	var css *string
	if err := json.Unmarshal(raw, &css); err != nil || css == nil {
		return "", false
	}
	return *css, true
}

func (in *Inliner) snapshotLink(ctx context.Context, n browserdom.Node, v *vdom.VNode, baseURI string) {
	var rel, href string
	for _, a := range n.Attributes() {
		switch a.Name {
		case "rel":
			rel = strings.ToLower(a.Value)
		case "href":
			href = a.Value
		}
	}
	in.snapshotGenericAttrs(n, v)

	relTokens := strings.Fields(rel)
	isStylesheet := false
	isIcon := false
	isHint := false
	for _, t := range relTokens {
		if t == "stylesheet" {
			isStylesheet = true
		}
		if iconRels[t] {
			isIcon = true
		}
		if resourceHintRels[t] {
			isHint = true
		}
	}

	switch {
	case isStylesheet:
		if href != "" {
			abs, ok := ResolveURL(baseURI, href)
			if ok {
				p, existing := in.assets.Get(abs)
				if !existing {
					if css, found := readLinkStylesheetCSS(ctx, n.OwnerDocument(), abs); found {
						rewritten := in.RewriteStyleText(css, baseURI)
						p = in.assets.Assign(abs, []byte(rewritten), "text/css", true)
						existing = true
					}
				}
				if existing {
					v.Attrs = v.Attrs.Set("data-link-href", href)
					v.Attrs = v.Attrs.Delete("href")
					v.Attrs = v.Attrs.Set("href", assetRef(p.Id))
				}
			}
		}
	case isIcon:
		if href != "" {
			if id, ok := in.registerImageLike(href, baseURI); ok {
				v.Attrs = v.Attrs.Set("href", assetRef(id))
			}
		}
	case isHint:
		v.Attrs = v.Attrs.Set("data-orig-href", href)
		v.Attrs = v.Attrs.Set("data-orig-rel", rel)
		v.Attrs = v.Attrs.Delete("href")
		v.Attrs = v.Attrs.Delete("rel")
	}
}

func (in *Inliner) snapshotImg(n browserdom.Node, v *vdom.VNode, baseURI string) {
	var src, currentSrc string
	for _, a := range n.Attributes() {
		switch a.Name {
		case "src":
			src = a.Value
		case "currentsrc":
			currentSrc = a.Value
		}
	}
	in.snapshotGenericAttrs(n, v)

	target := currentSrc
	if target == "" {
		target = src
	}
	if target != "" {
		if id, ok := in.registerImageLike(target, baseURI); ok {
			v.Attrs = v.Attrs.Set("data-original-src", src)
			v.Attrs = v.Attrs.Delete("src")
			v.Attrs = v.Attrs.Set("src", assetRef(id))
		}
	}
}

func (in *Inliner) registerImageLike(ref, baseURI string) (assets.Id, bool) {
	abs, ok := ResolveURL(baseURI, ref)
	if !ok {
		return 0, false
	}
	p := in.assets.Assign(abs, nil, "", false)
	return p.Id, true
}

func assetRef(id assets.Id) string {
	return "asset:" + strconv.FormatUint(uint64(id), 10)
}

var srcsetSplit = regexp.MustCompile(`\s*,\s*`)

// rewriteSrcset rewrites each URL in a srcset attribute, preserving the
// density/width descriptor that follows it.
func (in *Inliner) rewriteSrcset(v *vdom.VNode, baseURI string) {
	raw, ok := v.Attrs.Get("srcset")
	if !ok {
		return
	}
	candidates := srcsetSplit.Split(raw, -1)
	for i, c := range candidates {
		parts := strings.Fields(c)
		if len(parts) == 0 {
			continue
		}
		if id, ok := in.registerImageLike(parts[0], baseURI); ok {
			parts[0] = assetRef(id)
		}
		candidates[i] = strings.Join(parts, " ")
	}
	v.Attrs = v.Attrs.Set("srcset", strings.Join(candidates, ", "))
}

func (in *Inliner) rewriteInlineStyleAttr(v *vdom.VNode, baseURI string) {
	raw, ok := v.Attrs.Get("style")
	if !ok || raw == "" {
		return
	}
	rewritten := RewriteCSSURLs(raw, baseURI, func(abs string) (uint32, bool) {
		p := in.assets.Assign(abs, nil, "", false)
		return uint32(p.Id), true
	})
	v.Attrs = v.Attrs.Set("style", rewritten)
}

// RewriteStyleText is the counterpart for a <style> element's text
// content or a link's serialized CSS, exposed so the recorder can run it
// after fetching CSSOM rules the facade doesn't surface directly.
func (in *Inliner) RewriteStyleText(css, baseURI string) string {
	return RewriteCSSURLs(css, baseURI, func(abs string) (uint32, bool) {
		p := in.assets.Assign(abs, nil, "", false)
		return uint32(p.Id), true
	})
}

// RunFetchPhase drains the AssetTracker's pending queue and fetches every
// asset lacking pre-supplied data, bounded by opts.FetchConcurrency
// concurrent requests, delivering each resolved Pending to onAsset as
// soon as it completes — fetch completion order, not id order, per
// spec.md §4.3 step 14.
func (in *Inliner) RunFetchPhase(ctx context.Context, onAsset func(*assets.Pending)) {
	pending := in.assets.Take()
	sem := make(chan struct{}, in.opts.FetchConcurrency)
	var wg sync.WaitGroup
	var deliverMu sync.Mutex // onAsset is promised single-threaded delivery

	deliver := func(p *assets.Pending) {
		deliverMu.Lock()
		defer deliverMu.Unlock()
		onAsset(p)
	}

	for _, p := range pending {
		if p.HasData {
			deliver(p)
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(p *assets.Pending) {
			defer wg.Done()
			defer func() { <-sem }()
			in.fetchOne(ctx, p)
			deliver(p)
		}(p)
	}
	wg.Wait()
}

func (in *Inliner) fetchOne(ctx context.Context, p *assets.Pending) {
	data, mime, err := in.client.Fetch(ctx, p.URL)
	if err != nil {
		fe, msg := classifyFetchError(err)
		in.assets.Resolve(p.Id, nil, fe, msg)
		p.Error, p.ErrorMsg, p.HasData, p.Data = fe, msg, true, nil
		return
	}
	in.assets.Resolve(p.Id, data, assets.FetchErrorNone, "")
	p.Data, p.HasData, p.Mime, p.HasMime = data, true, mime, mime != ""
}
