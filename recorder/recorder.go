// Package recorder implements PageRecorder (spec.md §4.7): the
// single-goroutine orchestrator that owns a page's IdMap, AssetTracker,
// StyleSheetRegistry, DomChangeDetector, UserInteractionTracker, and
// StyleSheetWatcher, translates their output into protocol.Frame values,
// and runs the asset-barrier state machine that holds DOM operations
// back while a Keyframe's or an insert's assets are still being fetched.
//
// Grounded on domwatch/watcher.go's Watcher: the same shape of "owns the
// page, starts the observers, tears them down on Stop", generalized from
// domwatch's multi-page/multi-sink fan-out to one Recorder per page and
// an ordered frame-handler list in place of a sink.Router.
package recorder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dnorman/domcorder/assets"
	"github.com/dnorman/domcorder/browserdom"
	"github.com/dnorman/domcorder/diff"
	"github.com/dnorman/domcorder/idmap"
	"github.com/dnorman/domcorder/inline"
	"github.com/dnorman/domcorder/interaction"
	"github.com/dnorman/domcorder/protocol"
	"github.com/dnorman/domcorder/stylesheet"
	"github.com/dnorman/domcorder/vdom"
)

// FrameHandler receives every frame the recorder emits, in order. Per
// spec.md §4.7, "emission awaits each in turn" — handlers run
// sequentially on the recorder's own goroutine, never concurrently with
// each other or with the rest of the recorder's state mutation.
type FrameHandler func(ctx context.Context, f protocol.Frame) error

// HandlerToken identifies a registered FrameHandler for later removal.
type HandlerToken int

type handlerEntry struct {
	token HandlerToken
	fn    FrameHandler
}

// Config controls a Recorder's debounce windows and ambient behavior.
type Config struct {
	InitialURL          string
	HeartbeatInterval    time.Duration // default 30s
	DiffDebounce         time.Duration // default 500ms, forwarded to diff.Config
	StylesheetDebounce   time.Duration // default 250ms, forwarded to stylesheet.Config
	FetchConcurrency     int           // default 6, forwarded to inline.Options
	Logger               *slog.Logger
}

func (c *Config) defaults() {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Recorder is the per-page orchestrator. One Recorder owns exactly one
// IdMap, AssetTracker, and StyleSheetRegistry for the life of a
// recording, matching spec.md §9's "no global state" requirement.
type Recorder struct {
	cfg     Config
	page    browserdom.Page
	fetcher inline.Fetcher

	ids     *idmap.Map
	assetsT *assets.Tracker
	sheets  *stylesheet.Registry
	inliner *inline.Inliner

	detector   *diff.Detector
	mutations  *mutationBridge
	tracker    *interaction.Tracker
	sheetWatch *stylesheet.Watcher

	handlersMu sync.Mutex
	handlers   []handlerEntry
	handlerSeq int

	root          browserdom.Node
	pendingAssets int
	opQueue       []diff.Operation
	initialSheets []stylesheet.AdoptedSheetInfo

	assetDone chan *assets.Pending

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New returns a Recorder over page. fetcher supplies the Inliner's asset
// fetch phase — production callers pass an *inline.HTTPFetcher.
func New(page browserdom.Page, fetcher inline.Fetcher, cfg Config) *Recorder {
	cfg.defaults()
	return &Recorder{
		cfg:       cfg,
		page:      page,
		fetcher:   fetcher,
		ids:       idmap.New(),
		assetsT:   assets.New(),
		sheets:    stylesheet.NewRegistry(),
		assetDone: make(chan *assets.Pending, 64),
		done:      make(chan struct{}),
	}
}

// AddFrameHandler registers h to receive every subsequently emitted
// frame, returning a token RemoveFrameHandler accepts.
func (r *Recorder) AddFrameHandler(h FrameHandler) HandlerToken {
	r.handlersMu.Lock()
	defer r.handlersMu.Unlock()
	r.handlerSeq++
	tok := HandlerToken(r.handlerSeq)
	r.handlers = append(r.handlers, handlerEntry{token: tok, fn: h})
	return tok
}

// RemoveFrameHandler unregisters a handler added by AddFrameHandler.
func (r *Recorder) RemoveFrameHandler(tok HandlerToken) {
	r.handlersMu.Lock()
	defer r.handlersMu.Unlock()
	for i, e := range r.handlers {
		if e.token == tok {
			r.handlers = append(r.handlers[:i:i], r.handlers[i+1:]...)
			return
		}
	}
}

// Start assigns ids to the whole document, starts the watchers, emits
// RecordingMetadata, and begins the initial keyframe — the IDLE→KEYFRAME
// transition of spec.md §4.7's state machine — then runs the recorder's
// event loop on a new goroutine.
func (r *Recorder) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	root, err := r.page.Document(r.ctx)
	if err != nil {
		return err
	}
	r.root = root
	if _, err := r.ids.AssignNodeIdsToSubTree(root); err != nil {
		return err
	}

	r.inliner = inline.New(r.ids, r.assetsT, r.sheets, r.fetcher, inline.Options{FetchConcurrency: r.cfg.FetchConcurrency})

	r.detector = diff.New(r.ids, diff.Config{DebounceWindow: r.cfg.DiffDebounce, Logger: r.cfg.Logger}, r.handleDiffOps)
	r.detector.Seed(root)

	r.mutations = newMutationBridge(r.page, r.ids, root)
	if err := r.mutations.start(r.ctx); err != nil {
		return err
	}

	r.tracker = interaction.New(r.page, r.ids, interaction.Config{Logger: r.cfg.Logger})
	if err := r.tracker.Start(r.ctx, root); err != nil {
		return err
	}

	r.sheetWatch = stylesheet.NewWatcher(r.page, r.sheets, stylesheet.Config{DebounceWindow: r.cfg.StylesheetDebounce, Logger: r.cfg.Logger})
	initialSheets, err := r.sheetWatch.Start(r.ctx)
	if err != nil {
		return err
	}
	r.initialSheets = initialSheets

	r.emit(r.ctx, protocol.RecordingMetadata{
		InitialURL:           r.cfg.InitialURL,
		HeartbeatIntervalSec: uint32(r.cfg.HeartbeatInterval / time.Second),
	})

	r.beginKeyframe(r.ctx)

	go r.loop()
	return nil
}

// Stop cancels the recorder's context and waits for its event loop to
// exit.
func (r *Recorder) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	<-r.done
}

func (r *Recorder) loop() {
	defer close(r.done)

	heartbeat := time.NewTicker(r.cfg.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case id := <-r.mutations.dirty:
			r.detector.MarkDirty(id)
		case <-r.detector.Fire():
			r.detector.Flush()
		case ev := <-r.tracker.Events():
			r.handleInteraction(ev)
		case ev := <-r.sheetWatch.Events():
			r.handleStylesheetEvent(ev)
		case p := <-r.assetDone:
			r.handleAssetResult(p)
		case <-heartbeat.C:
			r.emit(r.ctx, protocol.Heartbeat{})
		}
	}
}

// beginKeyframe walks the document through the Inliner, emits the
// Keyframe frame, and raises the asset barrier if the walk discovered
// any assets — spec.md §4.7's "Inliner's start event yields a Keyframe
// frame with the asset count".
func (r *Recorder) beginKeyframe(ctx context.Context) {
	doc := &vdom.VDocument{DocId: r.ids.GetNodeId(r.root)}
	for _, info := range r.initialSheets {
		doc.Sheets = append(doc.Sheets, r.buildVStyleSheet(info))
	}
	for _, c := range r.root.Children() {
		doc.Children = append(doc.Children, r.inliner.Snapshot(ctx, c))
	}

	assetCount := r.assetsT.PendingCount()
	w, h, err := r.page.Viewport(ctx)
	if err != nil {
		r.cfg.Logger.Warn("recorder: viewport lookup failed", "error", err)
	}

	r.emit(ctx, protocol.Keyframe{Doc: doc, AssetCount: uint32(assetCount), ViewportW: uint32(w), ViewportH: uint32(h)})
	r.raiseBarrierAndFetch(assetCount)
}

func (r *Recorder) raiseBarrierAndFetch(assetCount int) {
	if assetCount <= 0 {
		return
	}
	r.pendingAssets += assetCount
	go r.inliner.RunFetchPhase(r.ctx, func(p *assets.Pending) {
		select {
		case r.assetDone <- p:
		case <-r.ctx.Done():
		}
	})
}

func (r *Recorder) handleAssetResult(p *assets.Pending) {
	r.emit(r.ctx, protocol.Asset{
		Id: uint32(p.Id), URL: p.URL, Mime: p.Mime, HasMime: p.HasMime,
		Buf: p.Data, FetchError: p.Error, ErrorMsg: p.ErrorMsg,
	})
	r.pendingAssets--
	if r.pendingAssets == 0 {
		r.drainQueue()
	}
}

// drainQueue replays queued DomOperations in order once the barrier
// clears. A queued insert can raise the barrier again; the loop
// condition re-checks pendingAssets after every op, matching spec.md
// §4.7's "on completion, the queue is drained in order" without
// assuming the drain itself completes without re-blocking.
func (r *Recorder) drainQueue() {
	for len(r.opQueue) > 0 && r.pendingAssets == 0 {
		op := r.opQueue[0]
		r.opQueue = r.opQueue[1:]
		r.processOp(op)
	}
}

func (r *Recorder) handleDiffOps(ops []diff.Operation) {
	for _, op := range ops {
		if r.pendingAssets > 0 {
			r.opQueue = append(r.opQueue, op)
			continue
		}
		r.processOp(op)
	}
}

func (r *Recorder) processOp(op diff.Operation) {
	switch op.Kind {
	case diff.OpInsert:
		r.processInsert(op)
	case diff.OpRemove:
		r.emit(r.ctx, protocol.DomNodeRemoved{NodeId: uint32(op.NodeId)})
	case diff.OpUpdateAttribute:
		r.emit(r.ctx, protocol.DomAttributeChanged{NodeId: uint32(op.NodeId), Name: op.Name, Value: op.Value})
	case diff.OpRemoveAttribute:
		r.emit(r.ctx, protocol.DomAttributeRemoved{NodeId: uint32(op.NodeId), Name: op.Name})
	case diff.OpUpdateText:
		r.emit(r.ctx, protocol.DomTextChanged{NodeId: uint32(op.NodeId), Ops: op.TextOps})
	}
}

func (r *Recorder) processInsert(op diff.Operation) {
	vnode := r.inliner.Snapshot(r.ctx, op.Live)
	assetCount := r.assetsT.PendingCount()
	r.emit(r.ctx, protocol.DomNodeAdded{
		ParentId: uint32(op.ParentId), Index: uint32(op.Index),
		Node: vnode, AssetCount: uint32(assetCount),
	})
	r.raiseBarrierAndFetch(assetCount)
}

func (r *Recorder) handleInteraction(ev interaction.Event) {
	switch ev.Kind {
	case interaction.MouseMoved:
		r.emit(r.ctx, protocol.MouseMoved{X: uint32(ev.X), Y: uint32(ev.Y)})
	case interaction.MouseClicked:
		r.emit(r.ctx, protocol.MouseClicked{X: uint32(ev.X), Y: uint32(ev.Y)})
	case interaction.KeyPressed:
		r.emit(r.ctx, protocol.KeyPressed{Code: ev.Code, Alt: ev.Alt, Ctrl: ev.Ctrl, Meta: ev.Meta, Shift: ev.Shift})
	case interaction.ViewportResized:
		r.emit(r.ctx, protocol.ViewportResized{W: uint32(ev.W), H: uint32(ev.H)})
	case interaction.ScrollOffsetChanged:
		r.emit(r.ctx, protocol.ScrollOffsetChanged{X: uint32(ev.X), Y: uint32(ev.Y)})
	case interaction.WindowFocused:
		r.emit(r.ctx, protocol.WindowFocused{})
	case interaction.WindowBlurred:
		r.emit(r.ctx, protocol.WindowBlurred{})
	case interaction.ElementScrolled:
		r.emit(r.ctx, protocol.ElementScrolled{NodeId: uint32(ev.NodeId), ScrollLeft: uint32(ev.ScrollLeft), ScrollTop: uint32(ev.ScrollTop)})
	case interaction.ElementFocused:
		r.emit(r.ctx, protocol.ElementFocused{NodeId: uint32(ev.NodeId)})
	case interaction.ElementBlurred:
		r.emit(r.ctx, protocol.ElementBlurred{NodeId: uint32(ev.NodeId)})
	case interaction.TextSelectionChanged:
		r.emit(r.ctx, protocol.TextSelectionChanged{
			StartNodeId: uint32(ev.StartNodeId), StartOffset: uint32(ev.StartOffset),
			EndNodeId: uint32(ev.EndNodeId), EndOffset: uint32(ev.EndOffset),
		})
	}
}

func (r *Recorder) handleStylesheetEvent(ev stylesheet.Events) {
	switch {
	case ev.AdoptedSheets != nil:
		r.handleAdoptedSheetsChanged(ev.AdoptedSheets)
	case ev.Rule != nil:
		r.handleRuleEvent(ev.Rule)
	}
}

func (r *Recorder) handleAdoptedSheetsChanged(ev *stylesheet.AdoptedSheetsEvent) {
	ids := make([]uint32, len(ev.Now))
	for i, id := range ev.Now {
		ids[i] = uint32(id)
	}
	r.emit(r.ctx, protocol.AdoptedStyleSheetsChanged{SheetIds: ids, AddedCount: uint32(len(ev.Added))})
	for _, info := range ev.Added {
		r.emitNewAdoptedStyleSheet(info)
	}
}

// buildVStyleSheet rewrites url(...) references in info's CSS text through
// the Inliner, registering any assets they discover, the same treatment a
// <style> element's text gets.
func (r *Recorder) buildVStyleSheet(info stylesheet.AdoptedSheetInfo) vdom.VStyleSheet {
	sheet := vdom.VStyleSheet{
		SheetId: uint32(info.Id),
		CSSText: r.inliner.RewriteStyleText(info.CSSText, r.root.BaseURI()),
	}
	if info.HasMedia {
		sheet.HasMedia = true
		sheet.Media = info.Media
	}
	return sheet
}

func (r *Recorder) emitNewAdoptedStyleSheet(info stylesheet.AdoptedSheetInfo) {
	sheet := r.buildVStyleSheet(info)
	assetCount := r.assetsT.PendingCount()
	r.emit(r.ctx, protocol.NewAdoptedStyleSheet{Sheet: sheet, AssetCount: uint32(assetCount)})
	r.raiseBarrierAndFetch(assetCount)
}

func (r *Recorder) handleRuleEvent(ev *stylesheet.RuleEvent) {
	switch ev.Op {
	case stylesheet.RuleInserted:
		r.emit(r.ctx, protocol.StyleSheetRuleInserted{SheetId: uint32(ev.Sheet), Index: uint32(ev.Index), CSSText: ev.CSS})
	case stylesheet.RuleDeleted:
		r.emit(r.ctx, protocol.StyleSheetRuleDeleted{SheetId: uint32(ev.Sheet), Index: uint32(ev.Index)})
	case stylesheet.RuleReplaced:
		r.emit(r.ctx, protocol.StyleSheetRuleReplaced{SheetId: uint32(ev.Sheet), Index: uint32(ev.Index), CSSText: ev.CSS})
	}
}

// emit delivers f to every registered handler in order, recovering a
// panicking handler and logging it rather than letting it take down the
// recorder's loop — spec.md §7's HandlerError contract.
func (r *Recorder) emit(ctx context.Context, f protocol.Frame) {
	r.handlersMu.Lock()
	handlers := make([]handlerEntry, len(r.handlers))
	copy(handlers, r.handlers)
	r.handlersMu.Unlock()

	for _, e := range handlers {
		r.callHandler(ctx, e.fn, f)
	}
}

func (r *Recorder) callHandler(ctx context.Context, h FrameHandler, f protocol.Frame) {
	defer func() {
		if rec := recover(); rec != nil {
			r.cfg.Logger.Error("recorder: frame handler panicked", "panic", rec, "frame", f.Tag())
		}
	}()
	if err := h(ctx, f); err != nil {
		r.cfg.Logger.Error("recorder: frame handler failed", "error", err, "frame", f.Tag())
	}
}
