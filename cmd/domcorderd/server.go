package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dnorman/domcorder/observability"
	"github.com/dnorman/domcorder/protocol"
)

// wireChunkSize matches the chunk size the recorder's own frame
// boundaries already debounce at — large enough to amortize a write
// syscall per frame, small enough that a live viewer sees DOM changes
// within a fraction of a second of the diff debounce window.
const wireChunkSize = 16 << 10

const heartbeatProcess = "domcorderd"

// newRouter builds the chi.Mux control plane: POST/GET/DELETE on
// /sessions plus /healthz, with the same logging/panic-recovery
// middleware every chassis-style service in the pack carries.
func newRouter(sessions *sessionManager, db *sql.DB, heartbeat *observability.HeartbeatWriter) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Post("/sessions", handleCreateSession(sessions))
	r.Get("/sessions/{id}/stream", handleStream(sessions))
	r.Get("/sessions/{id}/recording.dcrr", handleDownload(sessions))
	r.Delete("/sessions/{id}", handleStopSession(sessions))
	r.Get("/healthz", handleHealthz(sessions, db, heartbeat))

	return r
}

type createSessionBody struct {
	URL       string `json:"url"`
	ViewportW int    `json:"viewport_w"`
	ViewportH int    `json:"viewport_h"`
	FileMode  bool   `json:"file_mode"`
}

type createSessionResponse struct {
	SessionID string `json:"session_id"`
}

func handleCreateSession(sessions *sessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body createSessionBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			httpError(w, http.StatusBadRequest, err)
			return
		}
		if body.URL == "" {
			httpError(w, http.StatusBadRequest, errors.New("url is required"))
			return
		}

		sess, err := sessions.start(r.Context(), startSessionRequest{
			URL:       body.URL,
			ViewportW: body.ViewportW,
			ViewportH: body.ViewportH,
		})
		if err != nil {
			writeSessionError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, createSessionResponse{SessionID: sess.id})
	}
}

func handleStream(sessions *sessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		streamSession(w, r, sessions, nil)
	}
}

func handleDownload(sessions *sessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		header := &protocol.Header{CreatedAtMs: time.Now().UnixMilli()}
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.dcrr"`, id))
		streamSession(w, r, sessions, header)
	}
}

// streamSession pipes one session's frame queue into w. fileHeader, when
// non-nil, is written ahead of the first frame — the only difference
// between /stream and /recording.dcrr.
func streamSession(w http.ResponseWriter, r *http.Request, sessions *sessionManager, fileHeader *protocol.Header) {
	id := chi.URLParam(r, "id")
	sess, err := sessions.get(id)
	if err != nil {
		writeSessionError(w, err)
		return
	}

	release, err := sess.attach()
	if err != nil {
		writeSessionError(w, err)
		return
	}
	defer release()

	flusher, ok := w.(http.Flusher)
	if !ok {
		httpError(w, http.StatusInternalServerError, errors.New("response writer does not support flushing"))
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)

	pw, err := protocol.NewWriter(r.Context(), w, wireChunkSize, fileHeader)
	if err != nil {
		return
	}

	for {
		select {
		case f := <-sess.frames:
			if err := pw.WriteFrame(r.Context(), f); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		case <-sess.ctx.Done():
			return
		}
	}
}

func handleStopSession(sessions *sessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := sessions.stop(id); err != nil {
			writeSessionError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type healthzResponse struct {
	Status         string                         `json:"status"`
	ActiveSessions int                            `json:"active_sessions"`
	Heartbeat      *observability.HeartbeatStatus `json:"heartbeat,omitempty"`
}

func handleHealthz(sessions *sessionManager, db *sql.DB, heartbeat *observability.HeartbeatWriter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthzResponse{Status: "ok", ActiveSessions: sessions.count()}
		hs, err := observability.LatestHeartbeat(r.Context(), db, heartbeatProcess, 45*time.Second)
		if err == nil {
			resp.Heartbeat = hs
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func writeSessionError(w http.ResponseWriter, err error) {
	var notFound *ErrSessionNotFound
	var atCapacity *ErrMaxSessionsReached
	var attached *ErrStreamAlreadyAttached
	switch {
	case errors.As(err, &notFound):
		httpError(w, http.StatusNotFound, err)
	case errors.As(err, &atCapacity):
		httpError(w, http.StatusTooManyRequests, err)
	case errors.As(err, &attached):
		httpError(w, http.StatusConflict, err)
	default:
		httpError(w, http.StatusInternalServerError, err)
	}
}

func httpError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
