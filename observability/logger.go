package observability

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/dnorman/domcorder/idgen"
)

// SessionEvent is a domain-level event in a recording session's lifecycle
// — started, stopped, fetch failed — kept separate from the protocol
// frames a session itself emits since these describe the control plane's
// view of a session, not the page being recorded.
type SessionEvent struct {
	EventType string // "session_started", "session_stopped", "fetch_failed", ...
	SessionID string
	URL       string
	Details   string // optional JSON
	Success   bool
}

// EventLogSchema creates the session_event_logs table.
const EventLogSchema = `
CREATE TABLE IF NOT EXISTS session_event_logs (
	event_id   TEXT PRIMARY KEY,
	event_type TEXT NOT NULL,
	session_id TEXT NOT NULL,
	url        TEXT,
	details    TEXT,
	success    INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_session_event_logs_session
	ON session_event_logs (session_id, created_at DESC);
`

// EventLogger writes session lifecycle events and manages retention cleanup.
type EventLogger struct {
	db    *sql.DB
	newID idgen.Generator
}

// EventLoggerOption configures an EventLogger.
type EventLoggerOption func(*EventLogger)

// WithEventIDGenerator sets a custom ID generator for event IDs.
func WithEventIDGenerator(gen idgen.Generator) EventLoggerOption {
	return func(l *EventLogger) { l.newID = gen }
}

// NewEventLogger creates a logger backed by the given observability database.
func NewEventLogger(db *sql.DB, opts ...EventLoggerOption) *EventLogger {
	l := &EventLogger{
		db:    db,
		newID: idgen.Prefixed("evt_", idgen.Default),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// LogEvent records a session lifecycle event. Non-blocking: errors are
// logged via slog but do not propagate, so a failing observability store
// never stops a recording.
func (l *EventLogger) LogEvent(ctx context.Context, event SessionEvent) {
	eventID := l.newID()
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO session_event_logs (
			event_id, event_type, session_id, url, details, success, created_at
		) VALUES (?,?,?,?,?,?,?)`,
		eventID, event.EventType, event.SessionID, event.URL, event.Details, event.Success, time.Now().Unix())
	if err != nil {
		slog.Error("observability event log failed", "error", err, "event_type", event.EventType)
	}
}

// RetentionConfig specifies per-table retention in days. Zero means no cleanup.
type RetentionConfig struct {
	EventLogsDays  int
	HeartbeatsDays int
	MetricsDays    int
	RunVacuumAfter bool
}

// Cleanup deletes records exceeding the retention thresholds.
func Cleanup(ctx context.Context, db *sql.DB, cfg RetentionConfig) error {
	now := time.Now().Unix()

	// allowedTables and allowedColumns are whitelists to prevent SQL injection
	// if this pattern is ever refactored to accept external input.
	allowedTables := map[string]bool{
		"session_event_logs": true,
		"process_heartbeats": true,
		"metrics_timeseries": true,
	}
	allowedColumns := map[string]bool{
		"created_at": true,
		"timestamp":  true,
	}

	type cleanupTarget struct {
		table  string
		column string
		days   int
	}
	targets := []cleanupTarget{
		{"session_event_logs", "created_at", cfg.EventLogsDays},
		{"process_heartbeats", "timestamp", cfg.HeartbeatsDays},
		{"metrics_timeseries", "timestamp", cfg.MetricsDays},
	}

	for _, t := range targets {
		if t.days <= 0 {
			continue
		}
		if !allowedTables[t.table] || !allowedColumns[t.column] {
			return fmt.Errorf("cleanup: invalid table/column %s/%s", t.table, t.column)
		}
		cutoff := now - int64(t.days*86400)
		q := fmt.Sprintf("DELETE FROM %s WHERE %s < ?", t.table, t.column)
		if _, err := db.ExecContext(ctx, q, cutoff); err != nil {
			return fmt.Errorf("cleanup %s: %w", t.table, err)
		}
	}

	if cfg.RunVacuumAfter {
		if _, err := db.ExecContext(ctx, "VACUUM"); err != nil {
			return fmt.Errorf("vacuum: %w", err)
		}
	}
	return nil
}
