// Package rodpage is the only concrete implementation of the browserdom
// facade. It drives a real Chrome instance over the Chrome DevTools
// Protocol using go-rod, adapted from the teacher's browser.Manager:
// launch-or-attach, stealth level selection, Xvfb for headful capture, and
// memory/time based recycling so a long-running recorderd process doesn't
// leak Chrome's own memory across many sessions.
package rodpage

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

// StealthLevel controls how aggressively the launched Chrome hides its
// automation fingerprint.
type StealthLevel int

const (
	LevelHeadless StealthLevel = iota // rod headless (go-rod/stealth is not applied)
	LevelHeadful                      // rod headful + Xvfb
)

// Config configures a Manager.
type Config struct {
	RemoteURL       string        // non-empty: attach instead of launching
	MemoryLimit     int64         // bytes; recycle Chrome past this. Default 1GB.
	RecycleInterval time.Duration // max process lifetime. Default 4h.
	Stealth         StealthLevel
	XvfbDisplay     string // default ":99"
	Logger          *slog.Logger
}

func (c *Config) defaults() {
	if c.MemoryLimit <= 0 {
		c.MemoryLimit = 1 << 30
	}
	if c.RecycleInterval <= 0 {
		c.RecycleInterval = 4 * time.Hour
	}
	if c.XvfbDisplay == "" {
		c.XvfbDisplay = ":99"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// RecycleCallback lets a recorder flush buffers before Chrome is killed
// and reconnect its watchers after a fresh instance is up.
type RecycleCallback struct {
	BeforeRecycle func()
	AfterRecycle  func(*rod.Browser)
}

// Manager owns a Chrome process (or remote connection) and recycles it on
// a memory or time threshold. One Manager is shared across every
// recording session in a recorderd process.
type Manager struct {
	cfg     Config
	mu      sync.RWMutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	xvfb    *exec.Cmd
	startAt time.Time
	closed  bool
	cb      *RecycleCallback
}

// NewManager returns a Manager; call Start to launch or attach to Chrome.
func NewManager(cfg Config) *Manager {
	cfg.defaults()
	return &Manager{cfg: cfg}
}

// SetRecycleCallback installs cb for future recycle events.
func (m *Manager) SetRecycleCallback(cb *RecycleCallback) {
	m.mu.Lock()
	m.cb = cb
	m.mu.Unlock()
}

// Start launches (or attaches to) Chrome and begins the background
// memory/time monitor. ctx governs the monitor's lifetime, not Chrome's.
func (m *Manager) Start(ctx context.Context) (*rod.Browser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, fmt.Errorf("rodpage: manager is closed")
	}
	b, err := m.launch()
	if err != nil {
		return nil, err
	}
	m.browser = b
	m.startAt = time.Now()
	go m.monitorLoop(ctx)
	return b, nil
}

// Browser returns the current browser handle.
func (m *Manager) Browser() *rod.Browser {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.browser
}

// Close shuts down Chrome, the launcher, and Xvfb.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return m.cleanup()
}

func (m *Manager) launch() (*rod.Browser, error) {
	log := m.cfg.Logger

	if m.cfg.Stealth == LevelHeadful {
		if err := m.startXvfb(); err != nil {
			return nil, fmt.Errorf("rodpage: xvfb: %w", err)
		}
	}

	var wsURL string
	if m.cfg.RemoteURL != "" {
		wsURL = m.cfg.RemoteURL
		log.Info("rodpage: attaching to remote chrome", "url", wsURL)
	} else {
		l := launcher.New()
		if m.cfg.Stealth == LevelHeadful {
			l = l.Headless(false).Env("DISPLAY", m.cfg.XvfbDisplay)
		} else {
			l = l.Headless(true)
		}
		l = l.Set("disable-blink-features", "AutomationControlled")

		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("rodpage: launch: %w", err)
		}
		wsURL = u
		m.lnch = l
		log.Info("rodpage: launched chrome", "url", wsURL, "stealth", m.cfg.Stealth)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("rodpage: connect: %w", err)
	}
	if err := b.IgnoreCertErrors(true); err != nil {
		log.Warn("rodpage: ignore cert errors failed", "error", err)
	}
	return b, nil
}

func (m *Manager) recycleLocked(ctx context.Context) error {
	log := m.cfg.Logger
	log.Info("rodpage: recycling", "uptime", time.Since(m.startAt))

	if m.cb != nil && m.cb.BeforeRecycle != nil {
		m.cb.BeforeRecycle()
	}
	if err := m.cleanup(); err != nil {
		log.Warn("rodpage: cleanup during recycle", "error", err)
	}
	b, err := m.launch()
	if err != nil {
		return fmt.Errorf("rodpage: relaunch: %w", err)
	}
	m.browser = b
	m.startAt = time.Now()
	if m.cb != nil && m.cb.AfterRecycle != nil {
		m.cb.AfterRecycle(b)
	}
	log.Info("rodpage: recycled")
	return nil
}

func (m *Manager) cleanup() error {
	if m.browser != nil {
		m.browser.Close()
		m.browser = nil
	}
	if m.lnch != nil {
		m.lnch.Cleanup()
		m.lnch = nil
	}
	m.stopXvfb()
	return nil
}

func (m *Manager) monitorLoop(ctx context.Context) {
	log := m.cfg.Logger
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.mu.RLock()
			if m.closed || m.browser == nil {
				m.mu.RUnlock()
				return
			}
			startAt := m.startAt
			b := m.browser
			m.mu.RUnlock()

			if time.Since(startAt) > m.cfg.RecycleInterval {
				log.Info("rodpage: recycle interval reached")
				m.mu.Lock()
				if err := m.recycleLocked(ctx); err != nil {
					log.Error("rodpage: recycle failed", "error", err)
				}
				m.mu.Unlock()
				continue
			}

			used, err := jsHeapUsage(b)
			if err != nil {
				log.Debug("rodpage: heap check failed", "error", err)
				continue
			}
			if used > m.cfg.MemoryLimit {
				log.Info("rodpage: memory limit exceeded", "used", used, "limit", m.cfg.MemoryLimit)
				m.mu.Lock()
				if err := m.recycleLocked(ctx); err != nil {
					log.Error("rodpage: recycle failed", "error", err)
				}
				m.mu.Unlock()
			}
		}
	}
}

func jsHeapUsage(b *rod.Browser) (int64, error) {
	pages, err := b.Pages()
	if err != nil || len(pages) == 0 {
		return 0, fmt.Errorf("rodpage: no pages for heap check")
	}
	res, err := pages[0].Eval(`() => performance.memory ? performance.memory.usedJSHeapSize : 0`)
	if err != nil {
		return 0, err
	}
	return int64(res.Value.Int()), nil
}
