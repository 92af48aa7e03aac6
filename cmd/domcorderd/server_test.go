package main

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dnorman/domcorder/observability"
)

func testHealthDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(observability.HeartbeatSchema); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestWriteSessionError_MapsToHTTPStatus(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not found", &ErrSessionNotFound{SessionID: "sess_1"}, http.StatusNotFound},
		{"at capacity", &ErrMaxSessionsReached{Max: 8}, http.StatusTooManyRequests},
		{"already attached", &ErrStreamAlreadyAttached{SessionID: "sess_1"}, http.StatusConflict},
		{"unknown", errUnknown{}, http.StatusInternalServerError},
	}
	for _, c := range cases {
		rec := httptest.NewRecorder()
		writeSessionError(rec, c.err)
		if rec.Code != c.want {
			t.Errorf("%s: got status %d, want %d", c.name, rec.Code, c.want)
		}
	}
}

type errUnknown struct{}

func (errUnknown) Error() string { return "unknown failure" }

func TestHandleCreateSession_RejectsMissingURL(t *testing.T) {
	m := newTestManager(t)
	handler := handleCreateSession(m)

	req := httptest.NewRequest(http.MethodPost, "/sessions", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleCreateSession_RejectsMalformedBody(t *testing.T) {
	m := newTestManager(t)
	handler := handleCreateSession(m)

	req := httptest.NewRequest(http.MethodPost, "/sessions", bytes.NewBufferString(`not json`))
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleStopSession_NotFound(t *testing.T) {
	m := newTestManager(t)
	db := testHealthDB(t)
	r := newRouter(m, db, observability.NewHeartbeatWriter(db, heartbeatProcess, time.Hour))

	req := httptest.NewRequest(http.MethodDelete, "/sessions/nonexistent", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("got status %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHandleHealthz_ReportsStatusAndActiveSessions(t *testing.T) {
	m := newTestManager(t)
	m.sessions["sess_1"] = &session{id: "sess_1"}
	db := testHealthDB(t)
	hb := observability.NewHeartbeatWriter(db, heartbeatProcess, time.Hour)

	r := newRouter(m, db, hb)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", rec.Code, http.StatusOK)
	}
	var resp healthzResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("Status = %q, want ok", resp.Status)
	}
	if resp.ActiveSessions != 1 {
		t.Errorf("ActiveSessions = %d, want 1", resp.ActiveSessions)
	}
}
