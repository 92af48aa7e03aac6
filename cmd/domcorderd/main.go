// Command domcorderd is the DOM recording daemon. It exposes an HTTP
// control plane that opens a tab, records it with recorder.Recorder, and
// streams (or downloads) the result as a .dcrr recording.
//
// Usage:
//
//	domcorderd -config domcorderd.yaml -addr :7070
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dnorman/domcorder/browserdom/rodpage"
	"github.com/dnorman/domcorder/internal/config"
	"github.com/dnorman/domcorder/observability"
)

func main() {
	configPath := flag.String("config", "", "path to domcorderd.yaml config file")
	addr := flag.String("addr", "", "control-plane HTTP listen address (overrides config)")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn, error (overrides config)")
	flag.Parse()

	var cfg *config.Config
	if *configPath != "" {
		loaded, err := config.LoadFile(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "domcorderd: load config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, cfg); err != nil {
		logger.Error("domcorderd: fatal", "error", err)
		os.Exit(1)
	}
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func run(ctx context.Context, logger *slog.Logger, cfg *config.Config) error {
	db, err := sql.Open("sqlite", cfg.SettingsDB)
	if err != nil {
		return fmt.Errorf("open settings db: %w", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, observability.HeartbeatSchema); err != nil {
		return fmt.Errorf("init heartbeat schema: %w", err)
	}
	if _, err := db.ExecContext(ctx, observability.MetricsSchema); err != nil {
		return fmt.Errorf("init metrics schema: %w", err)
	}
	if _, err := db.ExecContext(ctx, observability.EventLogSchema); err != nil {
		return fmt.Errorf("init event log schema: %w", err)
	}

	settings, err := config.LoadSettings(ctx, db)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	browser := rodpage.NewManager(rodpage.Config{
		RemoteURL:       cfg.Browser.Remote,
		MemoryLimit:     cfg.Browser.MemoryLimit,
		RecycleInterval: cfg.Browser.RecycleInterval,
		Stealth:         cfg.Browser.StealthLevel(),
		XvfbDisplay:     cfg.Browser.XvfbDisplay,
		Logger:          logger,
	})
	defer browser.Close()

	events := observability.NewEventLogger(db)
	sessions := newSessionManager(browser, cfg, settings, logger, events)

	watcher := config.WatchSettings(db, logger)
	go watcher.OnChange(ctx, func() error {
		fresh, err := config.LoadSettings(ctx, db)
		if err != nil {
			return err
		}
		sessions.updateSettings(fresh)
		logger.Info("domcorderd: settings reloaded", "max_sessions", fresh.MaxSessions)
		return nil
	})

	heartbeat := observability.NewHeartbeatWriter(db, heartbeatProcess, 15*time.Second)
	heartbeat.Start(ctx)
	defer heartbeat.Stop()

	metrics := observability.NewMetricsManager(db, 100, 5*time.Second)
	defer metrics.Close()
	sessions.metrics = metrics

	router := newRouter(sessions, db, heartbeat)

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("domcorderd: listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
