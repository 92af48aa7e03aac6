package config

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/dnorman/domcorder/internal/watch"
)

// Schema defines the settings table: a single-row store for the
// tunables an operator wants to change without a restart. A real
// multi-tenant deployment would key this per account; recorderd runs one
// process per host, so one row is enough.
const Schema = `
CREATE TABLE IF NOT EXISTS recorder_settings (
	id                     INTEGER PRIMARY KEY CHECK (id = 1),
	fetch_concurrency      INTEGER NOT NULL DEFAULT 6,
	diff_debounce_ms       INTEGER NOT NULL DEFAULT 500,
	stylesheet_debounce_ms INTEGER NOT NULL DEFAULT 250,
	max_sessions           INTEGER NOT NULL DEFAULT 8,
	updated_at             INTEGER NOT NULL
);
`

// Settings are the hot-reloadable subset of RecorderConfig, plus
// MaxSessions, the ceiling on concurrently open recording tabs that
// protects Chrome's own memory footprint on a long-running host.
type Settings struct {
	FetchConcurrency   int
	DiffDebounce       time.Duration
	StylesheetDebounce time.Duration
	MaxSessions        int
}

// LoadSettings reads the single settings row, seeding it with defaults
// if the table is empty.
func LoadSettings(ctx context.Context, db *sql.DB) (Settings, error) {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return Settings{}, err
	}
	if _, err := db.ExecContext(ctx, `
		INSERT INTO recorder_settings (id, updated_at)
		VALUES (1, unixepoch())
		ON CONFLICT(id) DO NOTHING
	`); err != nil {
		return Settings{}, err
	}

	var s Settings
	var diffMs, styleMs int64
	err := db.QueryRowContext(ctx, `
		SELECT fetch_concurrency, diff_debounce_ms, stylesheet_debounce_ms, max_sessions
		FROM recorder_settings WHERE id = 1
	`).Scan(&s.FetchConcurrency, &diffMs, &styleMs, &s.MaxSessions)
	if err != nil {
		return Settings{}, err
	}
	s.DiffDebounce = time.Duration(diffMs) * time.Millisecond
	s.StylesheetDebounce = time.Duration(styleMs) * time.Millisecond
	return s, nil
}

// WatchSettings returns a watch.Watcher that fires reload whenever
// another connection writes to recorder_settings — e.g. an operator
// running `sqlite3 recorderd.db "UPDATE recorder_settings SET ..."`.
func WatchSettings(db *sql.DB, logger *slog.Logger) *watch.Watcher {
	return watch.New(db, watch.Options{
		Interval: 500 * time.Millisecond,
		Debounce: 500 * time.Millisecond,
		Detector: watch.PragmaDataVersion,
		Logger:   logger,
	})
}
