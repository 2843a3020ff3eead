// Package control serves the local HTTP control API of the parley client.
//
// A presentation layer (a web page, a desktop shell, a script) drives the
// session through it:
//
//	POST /session/start?mode=test   start a session
//	POST /session/stop              stop the live session
//	GET  /session                   lifecycle snapshot
//	GET  /session/transcript        transcript of the live session
//	GET  /session/events            websocket stream of session events
//	GET  /history?user_id=&limit=   past sessions
//
// Errors are returned as {"error": "..."} carrying the learner-facing message
// from [app.UserMessage].
package control

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/MrWong99/parley/internal/app"
	"github.com/MrWong99/parley/internal/auth"
	"github.com/MrWong99/parley/internal/history"
	"github.com/MrWong99/parley/internal/session"
	"github.com/MrWong99/parley/pkg/audio"
	"github.com/MrWong99/parley/pkg/provider/s2s"
)

const (
	// defaultHistoryLimit caps /history when no limit is given.
	defaultHistoryLimit = 20

	// writeTimeout bounds one websocket write.
	writeTimeout = 5 * time.Second
)

// Sessions is the part of [app.SessionManager] the API drives.
type Sessions interface {
	Start(ctx context.Context, opts app.StartOptions) error
	Stop()
	Status() app.Status
	Transcript() []session.Line
}

var _ Sessions = (*app.SessionManager)(nil)

// Handler serves the control API. It is safe for concurrent use.
type Handler struct {
	sessions    Sessions
	history     history.Store
	hub         *Hub
	defaultMode session.Mode
	logger      *slog.Logger
}

// Option configures a [Handler].
type Option func(*Handler)

// WithHistory enables GET /history.
func WithHistory(s history.Store) Option {
	return func(h *Handler) { h.history = s }
}

// WithHub enables GET /session/events.
func WithHub(hub *Hub) Option {
	return func(h *Handler) { h.hub = hub }
}

// WithDefaultMode sets the mode used when a start request names none.
func WithDefaultMode(m session.Mode) Option {
	return func(h *Handler) { h.defaultMode = m }
}

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) { h.logger = l }
}

// New creates a Handler for sessions.
func New(sessions Sessions, opts ...Option) *Handler {
	h := &Handler{
		sessions:    sessions,
		defaultMode: session.ModePractice,
		logger:      slog.Default(),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Register adds the control routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /session/start", h.Start)
	mux.HandleFunc("POST /session/stop", h.Stop)
	mux.HandleFunc("GET /session", h.Status)
	mux.HandleFunc("GET /session/transcript", h.Transcript)
	if h.hub != nil {
		mux.HandleFunc("GET /session/events", h.Events)
	}
	if h.history != nil {
		mux.HandleFunc("GET /history", h.History)
	}
}

// ─── Session ─────────────────────────────────────────────────────────────────

// startRequest is the optional JSON body of POST /session/start. Query
// parameters of the same name take precedence.
type startRequest struct {
	Mode    string `json:"mode"`
	UserID  string `json:"user_id"`
	Context string `json:"context"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Start handles POST /session/start.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
			return
		}
	}
	q := r.URL.Query()
	if v := q.Get("mode"); v != "" {
		req.Mode = v
	}
	if v := q.Get("user_id"); v != "" {
		req.UserID = v
	}
	if v := q.Get("context"); v != "" {
		req.Context = v
	}

	mode := h.defaultMode
	if req.Mode != "" {
		m, err := session.ParseMode(req.Mode)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		mode = m
	}

	err := h.sessions.Start(r.Context(), app.StartOptions{
		Mode:    mode,
		UserID:  req.UserID,
		Context: req.Context,
	})
	if err != nil {
		h.logger.Warn("control: start failed", "mode", mode, "err", err)
		writeJSON(w, startErrorStatus(err), errorResponse{Error: app.UserMessage(err)})
		return
	}
	writeJSON(w, http.StatusOK, h.sessions.Status())
}

// startErrorStatus maps a Start error to an HTTP status.
func startErrorStatus(err error) int {
	switch {
	case errors.Is(err, app.ErrAuth), errors.Is(err, auth.ErrNoCredential):
		return http.StatusUnauthorized
	case errors.Is(err, audio.ErrDevice):
		return http.StatusServiceUnavailable
	case errors.Is(err, s2s.ErrConnection):
		return http.StatusBadGateway
	case errors.Is(err, app.ErrStartAborted):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Stop handles POST /session/stop. It is idempotent.
func (h *Handler) Stop(w http.ResponseWriter, _ *http.Request) {
	h.sessions.Stop()
	writeJSON(w, http.StatusOK, h.sessions.Status())
}

// Status handles GET /session.
func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.sessions.Status())
}

// Transcript handles GET /session/transcript.
func (h *Handler) Transcript(w http.ResponseWriter, _ *http.Request) {
	lines := h.sessions.Transcript()
	if lines == nil {
		lines = []session.Line{}
	}
	writeJSON(w, http.StatusOK, lines)
}

// ─── Events ──────────────────────────────────────────────────────────────────

// eventMessage is the wire form of an [app.Event].
type eventMessage struct {
	Type    string `json:"type"`
	State   string `json:"state,omitempty"`
	Speaker string `json:"speaker,omitempty"`
	Text    string `json:"text,omitempty"`
	Clock   string `json:"clock,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

func toMessage(e app.Event) eventMessage {
	switch e.Kind {
	case app.EventState:
		return eventMessage{Type: "state", State: e.State.String(), Reason: e.Reason}
	case app.EventTranscript:
		return eventMessage{Type: "transcript", Speaker: string(e.Speaker), Text: e.Text}
	case app.EventTick:
		return eventMessage{Type: "tick", Clock: e.Clock}
	case app.EventServiceError:
		return eventMessage{Type: "service_error", Text: e.Text}
	default:
		return eventMessage{Type: "unknown"}
	}
}

// Events handles GET /session/events. It upgrades to a websocket, sends the
// current state and then every published event until the client goes away.
// Messages from the client are ignored.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Warn("control: websocket accept", "err", err)
		return
	}
	defer c.CloseNow()

	events, cancel := h.hub.subscribe()
	defer cancel()

	ctx := c.CloseRead(r.Context())

	st := h.sessions.Status()
	if err := h.write(ctx, c, eventMessage{Type: "state", State: st.StateName, Clock: st.Clock}); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			c.Close(websocket.StatusNormalClosure, "")
			return
		case e := <-events:
			if err := h.write(ctx, c, toMessage(e)); err != nil {
				h.logger.Debug("control: event subscriber gone", "err", err)
				return
			}
		}
	}
}

func (h *Handler) write(ctx context.Context, c *websocket.Conn, msg eventMessage) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, c, msg)
}

// ─── History ─────────────────────────────────────────────────────────────────

// History handles GET /history?user_id=&limit=.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID := q.Get("user_id")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "user_id is required"})
		return
	}
	limit := defaultHistoryLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}

	recs, err := h.history.List(r.Context(), userID, limit)
	if err != nil {
		h.logger.Error("control: list history", "user_id", userID, "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "could not load history"})
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("control: encode response", "err", err)
	}
}
