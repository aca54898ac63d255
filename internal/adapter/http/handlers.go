package http

import (
	"log/slog"
	"net/http"

	"github.com/titanchat/titan/internal/adapter/ws"
	"github.com/titanchat/titan/internal/domain/session"
	"github.com/titanchat/titan/internal/port/chatstore"
	"github.com/titanchat/titan/internal/service"
)

// sessionHeader carries the session ID on every authenticated request.
const sessionHeader = "X-Session-ID"

// Handlers bundles the services behind the HTTP surface.
type Handlers struct {
	sessions  *service.Sessions
	exchange  *service.Exchange
	cancels   *service.Cancels
	contexts  *service.Contexts
	feedbacks *service.Feedbacks
	chats     chatstore.Store
	hub       *ws.Hub
	log       *slog.Logger
}

// NewHandlers wires the HTTP handlers.
func NewHandlers(
	sessions *service.Sessions,
	exchange *service.Exchange,
	cancels *service.Cancels,
	contexts *service.Contexts,
	feedbacks *service.Feedbacks,
	chats chatstore.Store,
	hub *ws.Hub,
	log *slog.Logger,
) *Handlers {
	return &Handlers{
		sessions:  sessions,
		exchange:  exchange,
		cancels:   cancels,
		contexts:  contexts,
		feedbacks: feedbacks,
		chats:     chats,
		hub:       hub,
		log:       log,
	}
}

// requireSession resolves the session from the request header, refreshes its
// idle timer, and writes an error response when absent or unknown.
func (h *Handlers) requireSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := r.Header.Get(sessionHeader)
	if id == "" {
		writeError(w, http.StatusUnauthorized, "missing "+sessionHeader+" header")
		return nil, false
	}
	sess, ok := h.sessions.Get(id)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unknown or expired session")
		return nil, false
	}
	h.sessions.Touch(id)
	return sess, true
}

// Health reports liveness.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Status reports the session registry, connected clients, and in-flight
// exchanges.
func (h *Handlers) Status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Sessions:    h.sessions.Status(),
		Connections: h.hub.ConnectionCount(),
		InFlight:    h.cancels.Active(),
	})
}

type statusResponse struct {
	Sessions    session.Status `json:"sessions"`
	Connections int            `json:"ws_connections"`
	InFlight    int            `json:"requests_in_flight"`
}
