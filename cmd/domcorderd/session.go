package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dnorman/domcorder/browserdom"
	"github.com/dnorman/domcorder/browserdom/rodpage"
	"github.com/dnorman/domcorder/idgen"
	"github.com/dnorman/domcorder/inline"
	"github.com/dnorman/domcorder/internal/config"
	"github.com/dnorman/domcorder/observability"
	"github.com/dnorman/domcorder/protocol"
	"github.com/dnorman/domcorder/recorder"
)

var newSessionID = idgen.Prefixed("sess_", idgen.Default)

// frameQueueSize bounds how many frames a session buffers while no
// consumer is attached. A recording that nobody is streaming blocks on a
// full queue rather than growing without bound — the same backpressure
// spec.md's "await at frame boundaries" describes, just deferred to
// whenever the queue actually fills up instead of every single frame.
const frameQueueSize = 4096

// session is one open recording: a browser tab, the recorder driving it,
// and the frame queue a GET /sessions/{id}/stream or /recording.dcrr
// request drains.
type session struct {
	id        string
	url       string
	createdAt time.Time

	page browserdom.Page
	rec  *recorder.Recorder

	frames chan protocol.Frame

	mu       sync.Mutex
	attached bool

	ctx    context.Context
	cancel context.CancelFunc
}

func newSession(id, url string, page browserdom.Page, rec *recorder.Recorder) *session {
	ctx, cancel := context.WithCancel(context.Background())
	return &session{
		id:        id,
		url:       url,
		createdAt: time.Now(),
		page:      page,
		rec:       rec,
		frames:    make(chan protocol.Frame, frameQueueSize),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// onFrame is registered as the session's sole recorder.FrameHandler. It
// never drops a frame — a slow or absent consumer backpressures the
// recorder's own loop goroutine, which is the correct behavior for a
// format whose decoder assumes it has seen every prior frame.
func (s *session) onFrame(ctx context.Context, f protocol.Frame) error {
	select {
	case s.frames <- f:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}

// attach claims the session's single consumer slot. release must be
// called when the HTTP handler returns.
func (s *session) attach() (release func(), err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attached {
		return nil, &ErrStreamAlreadyAttached{SessionID: s.id}
	}
	s.attached = true
	return func() {
		s.mu.Lock()
		s.attached = false
		s.mu.Unlock()
	}, nil
}

func (s *session) stop() {
	s.cancel()
	s.rec.Stop()
	s.page.Close()
}

// sessionManager tracks every open recording and enforces MaxSessions.
type sessionManager struct {
	mu       sync.Mutex
	sessions map[string]*session

	browser *rodpage.Manager
	fetcher inline.Fetcher
	cfg     *config.Config
	logger  *slog.Logger
	events  *observability.EventLogger
	metrics *observability.MetricsManager

	settingsMu sync.RWMutex
	settings   config.Settings
}

func newSessionManager(browser *rodpage.Manager, cfg *config.Config, settings config.Settings, logger *slog.Logger, events *observability.EventLogger) *sessionManager {
	return &sessionManager{
		sessions: make(map[string]*session),
		browser:  browser,
		fetcher:  inline.NewHTTPFetcher(inline.WithLogger(logger)),
		cfg:      cfg,
		settings: settings,
		logger:   logger,
		events:   events,
	}
}

// updateSettings swaps in a freshly reloaded Settings value, called from
// the internal/watch hot-reload callback.
func (m *sessionManager) updateSettings(s config.Settings) {
	m.settingsMu.Lock()
	m.settings = s
	m.settingsMu.Unlock()
}

func (m *sessionManager) currentSettings() config.Settings {
	m.settingsMu.RLock()
	defer m.settingsMu.RUnlock()
	return m.settings
}

type startSessionRequest struct {
	URL       string
	ViewportW int
	ViewportH int
}

func (m *sessionManager) start(ctx context.Context, req startSessionRequest) (*session, error) {
	settings := m.currentSettings()

	m.mu.Lock()
	if len(m.sessions) >= settings.MaxSessions {
		m.mu.Unlock()
		return nil, &ErrMaxSessionsReached{Max: settings.MaxSessions}
	}
	m.mu.Unlock()

	b, err := m.browser.Start(ctx)
	if err != nil {
		return nil, err
	}

	page, err := rodpage.Open(ctx, b, req.URL, m.cfg.Browser.StealthLevel())
	if err != nil {
		return nil, err
	}
	if err := page.SetViewport(ctx, req.ViewportW, req.ViewportH); err != nil {
		page.Close()
		return nil, err
	}

	id := newSessionID()
	rec := recorder.New(page, m.fetcher, recorder.Config{
		InitialURL:         req.URL,
		HeartbeatInterval:  m.cfg.Recorder.HeartbeatInterval,
		DiffDebounce:       settings.DiffDebounce,
		StylesheetDebounce: settings.StylesheetDebounce,
		FetchConcurrency:   settings.FetchConcurrency,
		Logger:             m.logger,
	})

	sess := newSession(id, req.URL, page, rec)
	rec.AddFrameHandler(sess.onFrame)

	if err := rec.Start(ctx); err != nil {
		page.Close()
		return nil, err
	}

	m.mu.Lock()
	m.sessions[id] = sess
	m.mu.Unlock()

	m.events.LogEvent(ctx, observability.SessionEvent{
		EventType: "session_started",
		SessionID: id,
		URL:       req.URL,
		Success:   true,
	})
	if m.metrics != nil {
		m.metrics.RecordSimple(observability.MetricSessionStartedCount, 1, "count")
		m.metrics.RecordSimple(observability.MetricSessionActiveCount, float64(m.count()), "count")
	}

	return sess, nil
}

func (m *sessionManager) get(id string) (*session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, &ErrSessionNotFound{SessionID: id}
	}
	return s, nil
}

func (m *sessionManager) stop(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return &ErrSessionNotFound{SessionID: id}
	}
	s.stop()
	m.events.LogEvent(context.Background(), observability.SessionEvent{
		EventType: "session_stopped",
		SessionID: id,
		URL:       s.url,
		Success:   true,
	})
	if m.metrics != nil {
		m.metrics.RecordSimple(observability.MetricSessionStoppedCount, 1, "count")
		m.metrics.RecordSimple(observability.MetricSessionActiveCount, float64(m.count()), "count")
	}
	return nil
}

func (m *sessionManager) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
