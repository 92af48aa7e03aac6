package stylesheet

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/dnorman/domcorder/browserdom"
)

// RuleOp names a CSSStyleSheet rule-level mutation.
type RuleOp string

const (
	RuleInserted RuleOp = "insert"
	RuleDeleted  RuleOp = "delete"
	RuleReplaced RuleOp = "replace"
)

// DocumentSheetsEvent reports a change to document.styleSheets.
type DocumentSheetsEvent struct {
	Now          []Id
	Added        []Id
	Removed      []Id
	OrderChanged bool
}

// AdoptedSheetsEvent reports a change to a Document's or ShadowRoot's
// adoptedStyleSheets list. Target identifies the owning document or
// shadow root via the same Handle space as Registry.
type AdoptedSheetsEvent struct {
	Target  Handle
	Now     []Id
	Added   []AdoptedSheetInfo
	Removed []Id
}

// AdoptedSheetInfo carries a newly-adopted sheet's registry id alongside
// the serialized CSS text and media query the poll bridge read out of the
// live CSSOM, so the recorder can build a NewAdoptedStyleSheet frame
// without a second round trip to the page.
type AdoptedSheetInfo struct {
	Id       Id
	CSSText  string
	HasMedia bool
	Media    string
}

// documentTarget is the Handle used for the document-level
// adoptedStyleSheets list; shadow roots are out of scope for the poll
// bridge, which only reads document.adoptedStyleSheets.
var documentTarget Handle = "document"

// RuleEvent reports a rule-level mutation inside an already-known sheet.
type RuleEvent struct {
	Sheet Id
	Op    RuleOp
	Index int
	CSS   string
}

// Events is the fan-in of everything the watcher emits. Exactly one field
// is non-nil per delivery.
type Events struct {
	DocumentSheets *DocumentSheetsEvent
	AdoptedSheets  *AdoptedSheetsEvent
	Rule           *RuleEvent
}

// Config controls a Watcher's debounce window.
type Config struct {
	DebounceWindow time.Duration // default 250ms, per-target coalescing
	Logger         *slog.Logger
}

func (c *Config) defaults() {
	if c.DebounceWindow <= 0 {
		c.DebounceWindow = 250 * time.Millisecond
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// cssStyleSheetAdded/Removed/Changed mirror the CDP CSS-domain payload
// shapes this watcher decodes off browserdom.DOMEvent.Params.
type cssStyleSheetAdded struct {
	Header struct {
		StyleSheetId string `json:"styleSheetId"`
		FrameId      string `json:"frameId"`
		SourceURL    string `json:"sourceURL"`
	} `json:"header"`
}

type cssStyleSheetRemoved struct {
	StyleSheetId string `json:"styleSheetId"`
}

type cssStyleSheetChanged struct {
	StyleSheetId string `json:"styleSheetId"`
}

const adoptedBindingName = "__domcorder_adopted__"

// adoptedSheetsScript is the bridge for document.adoptedStyleSheets, the
// same AddBinding/Eval shape the mutation and interaction trackers use for
// browser state CDP has no event for. CSS.styleSheetAdded/Removed never
// fire for a document's adopted constructable stylesheets, so rather than
// waiting on an event that doesn't exist, this installs a poll loop
// inside the page and reports a diff only when a sheet is added to or
// removed from the list; edits to the rules of an already-adopted sheet
// are not reported. The Eval call's own return value is the initial
// snapshot, read synchronously so the recorder can seed a Keyframe's
// VDocument.Sheets before the poll loop's first tick would otherwise
// report the same sheets as "added".
const adoptedSheetsScript = `(bindingName, intervalMs) => {
  const ids = new WeakMap();
  let counter = 0;
  const idFor = (sheet) => {
    let id = ids.get(sheet);
    if (!id) {
      id = 'as' + (++counter);
      ids.set(sheet, id);
    }
    return id;
  };

  let lastIds = [];
  const snapshot = () => {
    const sheets = Array.from(document.adoptedStyleSheets || []);
    const nowIds = sheets.map(idFor);
    const added = nowIds.filter((id) => !lastIds.includes(id));
    const removed = lastIds.filter((id) => !nowIds.includes(id));
    const sheetsOut = sheets.map((sheet, i) => {
      let css = '';
      try {
        css = Array.from(sheet.cssRules).map((r) => r.cssText).join('\n');
      } catch (e) {}
      return {id: nowIds[i], css: css, media: sheet.media ? sheet.media.mediaText : ''};
    });
    return {now: nowIds, added: added, removed: removed, sheets: sheetsOut};
  };

  setInterval(() => {
    const result = snapshot();
    if (result.added.length === 0 && result.removed.length === 0 && result.now.length === lastIds.length) {
      return;
    }
    lastIds = result.now;
    window[bindingName](JSON.stringify(result));
  }, intervalMs);

  const initial = snapshot();
  lastIds = initial.now;
  return initial;
}`

// adoptedSheetWire is one entry of adoptedSnapshotWire.sheets.
type adoptedSheetWire struct {
	ID    string `json:"id"`
	CSS   string `json:"css"`
	Media string `json:"media"`
}

// adoptedSnapshotWire is both the Eval return value and the AddBinding
// payload shape the injected script reports.
type adoptedSnapshotWire struct {
	Now     []string           `json:"now"`
	Added   []string           `json:"added"`
	Removed []string           `json:"removed"`
	Sheets  []adoptedSheetWire `json:"sheets"`
}

// Watcher observes a page's CSS domain and translates events into Events,
// generalizing domwatch's CDP-subscribe/debounce/emit shape from DOM
// mutations to stylesheet changes (spec.md §4.4).
type Watcher struct {
	cfg      Config
	page     browserdom.Page
	registry *Registry
	out      chan Events

	known        map[string]Id // styleSheetId -> registry Id, per page
	adoptedKnown map[string]Id // JS-assigned adopted-sheet id -> registry Id
}

// NewWatcher returns a Watcher over page, allocating ids from registry.
func NewWatcher(page browserdom.Page, registry *Registry, cfg Config) *Watcher {
	cfg.defaults()
	return &Watcher{
		cfg:          cfg,
		page:         page,
		registry:     registry,
		out:          make(chan Events, 256),
		known:        make(map[string]Id),
		adoptedKnown: make(map[string]Id),
	}
}

// Events returns the channel Start delivers onto.
func (w *Watcher) Events() <-chan Events { return w.out }

// Start subscribes to the CSS domain, installs the adoptedStyleSheets poll
// bridge, and begins the debounced emit loop. It runs until ctx is
// cancelled. The returned slice is the adopted sheets already present on
// the page at Start time, resolved to registry ids for the caller to seed
// a Keyframe's VDocument.Sheets with.
func (w *Watcher) Start(ctx context.Context) ([]AdoptedSheetInfo, error) {
	events, cancel := w.page.Subscribe(ctx, browserdom.DomainCSS)

	adopted, err := w.page.AddBinding(ctx, adoptedBindingName)
	if err != nil {
		cancel()
		return nil, err
	}

	intervalMs := int(w.cfg.DebounceWindow / time.Millisecond)
	if intervalMs <= 0 {
		intervalMs = 250
	}
	raw, err := w.page.Eval(ctx, adoptedSheetsScript, adoptedBindingName, intervalMs)
	if err != nil {
		cancel()
		return nil, err
	}
	var initial adoptedSnapshotWire
	if err := json.Unmarshal(raw, &initial); err != nil {
		cancel()
		return nil, err
	}
	infos := w.resolveAdopted(initial.Sheets)

	go w.loop(ctx, events, adopted, cancel)
	return infos, nil
}

func (w *Watcher) loop(ctx context.Context, events <-chan browserdom.DOMEvent, adopted <-chan string, cancel func()) {
	defer cancel()

	debounce := newPerTargetDebounce(w.cfg.DebounceWindow)
	defer debounce.stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			w.handle(ev, debounce)
		case msg, ok := <-adopted:
			if !ok {
				return
			}
			w.handleAdopted(msg)
		case target := <-debounce.fire:
			w.flushDocumentSheets(target)
		}
	}
}

// resolveAdopted assigns/looks up a registry Id for each wire sheet and
// returns the infos the recorder needs to build VStyleSheet/frame values,
// without emitting an event — used for the synchronous initial snapshot.
func (w *Watcher) resolveAdopted(sheets []adoptedSheetWire) []AdoptedSheetInfo {
	infos := make([]AdoptedSheetInfo, 0, len(sheets))
	for _, s := range sheets {
		id := w.registry.IdFor(Handle("adopted:" + s.ID))
		w.adoptedKnown[s.ID] = id
		infos = append(infos, AdoptedSheetInfo{
			Id: id, CSSText: s.CSS, HasMedia: s.Media != "", Media: s.Media,
		})
	}
	return infos
}

// handleAdopted decodes one poll report from the adoptedStyleSheets bridge
// and emits an AdoptedSheetsEvent carrying resolved ids and, for each
// newly-added sheet, the CSS text needed to build its frame.
func (w *Watcher) handleAdopted(msg string) {
	var snap adoptedSnapshotWire
	if err := json.Unmarshal([]byte(msg), &snap); err != nil {
		w.cfg.Logger.Warn("stylesheet: decode adopted-sheets report failed", "error", err)
		return
	}

	byJSID := make(map[string]adoptedSheetWire, len(snap.Sheets))
	for _, s := range snap.Sheets {
		byJSID[s.ID] = s
	}

	now := make([]Id, 0, len(snap.Now))
	for _, jsID := range snap.Now {
		id, ok := w.adoptedKnown[jsID]
		if !ok {
			id = w.registry.IdFor(Handle("adopted:" + jsID))
			w.adoptedKnown[jsID] = id
		}
		now = append(now, id)
	}

	added := make([]AdoptedSheetInfo, 0, len(snap.Added))
	for _, jsID := range snap.Added {
		id, ok := w.adoptedKnown[jsID]
		if !ok {
			id = w.registry.IdFor(Handle("adopted:" + jsID))
			w.adoptedKnown[jsID] = id
		}
		s := byJSID[jsID]
		added = append(added, AdoptedSheetInfo{
			Id: id, CSSText: s.CSS, HasMedia: s.Media != "", Media: s.Media,
		})
	}

	removed := make([]Id, 0, len(snap.Removed))
	for _, jsID := range snap.Removed {
		if id, ok := w.adoptedKnown[jsID]; ok {
			removed = append(removed, id)
			delete(w.adoptedKnown, jsID)
			w.registry.Forget(Handle("adopted:" + jsID))
		}
	}

	select {
	case w.out <- Events{AdoptedSheets: &AdoptedSheetsEvent{Target: documentTarget, Now: now, Added: added, Removed: removed}}:
	default:
		w.cfg.Logger.Warn("stylesheet: events channel full, dropping adopted-sheets event")
	}
}

func (w *Watcher) handle(ev browserdom.DOMEvent, debounce *perTargetDebounce) {
	switch ev.Method {
	case "CSS.styleSheetAdded":
		var e cssStyleSheetAdded
		if err := json.Unmarshal(ev.Params, &e); err != nil {
			w.cfg.Logger.Warn("stylesheet: decode styleSheetAdded failed", "error", err)
			return
		}
		id := w.registry.IdFor(Handle(e.Header.StyleSheetId))
		w.known[e.Header.StyleSheetId] = id
		debounce.touch(e.Header.FrameId)

	case "CSS.styleSheetRemoved":
		var e cssStyleSheetRemoved
		if err := json.Unmarshal(ev.Params, &e); err != nil {
			w.cfg.Logger.Warn("stylesheet: decode styleSheetRemoved failed", "error", err)
			return
		}
		w.registry.Forget(Handle(e.StyleSheetId))
		delete(w.known, e.StyleSheetId)
		debounce.touch("")

	case "CSS.styleSheetChanged":
		var e cssStyleSheetChanged
		if err := json.Unmarshal(ev.Params, &e); err != nil {
			w.cfg.Logger.Warn("stylesheet: decode styleSheetChanged failed", "error", err)
			return
		}
		if id, ok := w.known[e.StyleSheetId]; ok {
			select {
			case w.out <- Events{Rule: &RuleEvent{Sheet: id, Op: RuleReplaced}}:
			default:
				w.cfg.Logger.Warn("stylesheet: events channel full, dropping rule event")
			}
		}
	}
}

func (w *Watcher) flushDocumentSheets(target string) {
	now := make([]Id, 0, len(w.known))
	for _, id := range w.known {
		now = append(now, id)
	}
	select {
	case w.out <- Events{DocumentSheets: &DocumentSheetsEvent{Now: now}}:
	default:
		w.cfg.Logger.Warn("stylesheet: events channel full, dropping document-sheets event")
	}
}

// perTargetDebounce coalesces bursts of sheet-added/removed notifications
// for the same frame into one flush, mirroring domwatch's debouncer but
// keyed per target instead of globally.
type perTargetDebounce struct {
	window time.Duration
	timers map[string]*time.Timer
	fire   chan string
}

func newPerTargetDebounce(window time.Duration) *perTargetDebounce {
	return &perTargetDebounce{window: window, timers: make(map[string]*time.Timer), fire: make(chan string, 64)}
}

func (d *perTargetDebounce) touch(target string) {
	if t, ok := d.timers[target]; ok {
		t.Stop()
	}
	d.timers[target] = time.AfterFunc(d.window, func() {
		select {
		case d.fire <- target:
		default:
		}
	})
}

func (d *perTargetDebounce) stop() {
	for _, t := range d.timers {
		t.Stop()
	}
}
