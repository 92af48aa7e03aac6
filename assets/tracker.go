// Package assets implements AssetTracker: the url-keyed, dedup'd registry
// of pending binary assets a snapshot discovers. Its allocation shape — a
// monotonic counter owned by one instance, handing out stable ids that are
// never reused — follows the same idiom as package idgen's generators,
// generalized from opaque strings to the protocol's u32 AssetId space
// because frame payloads are fixed-width integers, not strings.
package assets

import "sync"

// FetchError is the enumerated outcome of fetching an asset's bytes. Its
// five values are a closed, append-only wire contract (protocol §6); a
// decoder seeing an unknown discriminant must fail rather than guess.
type FetchError uint32

const (
	FetchErrorNone FetchError = iota
	FetchErrorCORS
	FetchErrorNetwork
	FetchErrorHTTP
	FetchErrorUnknown // carries a message string on the wire
)

// Id is the u32 asset identifier handed out by a Tracker. Stable for the
// life of the Tracker once assigned; dedup key is the absolute URL, not
// the id.
type Id uint32

// Pending is one entry in the tracker: an assigned id, its source URL, and
// optionally pre-supplied bytes/mime (e.g. CSS text serialized during a
// snapshot, which never needs a network fetch).
type Pending struct {
	Id       Id
	URL      string
	Mime     string
	HasMime  bool
	Data     []byte
	HasData  bool
	Error    FetchError
	ErrorMsg string
}

// Tracker is the per-recorder AssetTracker: url-keyed dedup, ordered
// pending queue, drain-on-fetch-start semantics (spec.md §4.2).
type Tracker struct {
	mu      sync.Mutex
	counter uint32
	byURL   map[string]Id
	byId    map[Id]*Pending
	pending []Id // insertion order, drained by Take
}

// New returns an empty Tracker.
func New() *Tracker {
	return &Tracker{
		byURL: make(map[string]Id),
		byId:  make(map[Id]*Pending),
	}
}

// Assign returns the existing Pending for url if already registered, or
// allocates the next id and registers a new one. data/mime, when
// supplied, mark the asset as already resolved — Inliner skips such
// assets during the fetch phase.
func (t *Tracker) Assign(url string, data []byte, mime string, hasMime bool) *Pending {
	t.mu.Lock()
	defer t.mu.Unlock()

	if id, ok := t.byURL[url]; ok {
		return t.byId[id]
	}

	t.counter++
	id := Id(t.counter)
	p := &Pending{Id: id, URL: url}
	if data != nil {
		p.Data = data
		p.HasData = true
	}
	if hasMime {
		p.Mime = mime
		p.HasMime = true
	}
	t.byURL[url] = id
	t.byId[id] = p
	t.pending = append(t.pending, id)
	return p
}

// Get looks up the Pending registered for url, if any.
func (t *Tracker) Get(url string) (*Pending, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, ok := t.byURL[url]
	if !ok {
		return nil, false
	}
	return t.byId[id], true
}

// Count returns the number of assets registered so far, drained or not.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byId)
}

// PendingCount reports how many assets Take would drain right now,
// without draining them — the recorder needs this to size a Keyframe or
// DomNodeAdded frame's assetCount before it actually runs the fetch
// phase that drains the queue.
func (t *Tracker) PendingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Take drains and returns the ordered list of Pending assets registered
// since the last Take. A second call with no intervening Assign returns
// an empty slice, matching spec.md §4.2's drain semantics.
func (t *Tracker) Take() []*Pending {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Pending, 0, len(t.pending))
	for _, id := range t.pending {
		out = append(out, t.byId[id])
	}
	t.pending = t.pending[:0]
	return out
}

// Resolve records the fetch outcome for a pending asset, replacing any
// pre-supplied data. Called once per asset from the Inliner's fetch phase.
func (t *Tracker) Resolve(id Id, data []byte, fetchErr FetchError, msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.byId[id]
	if !ok {
		return
	}
	p.Data = data
	p.HasData = true
	p.Error = fetchErr
	p.ErrorMsg = msg
}
