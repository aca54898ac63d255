package http

import (
	"net"
	"net/http"
)

// CreateSession admits a new browser session.
func (h *Handlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}

	sess, err := h.sessions.Create(r.Context(), ip)
	if err != nil {
		writeDomainError(w, err, "could not create session")
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

// EndSession terminates the caller's session: in-flight exchanges are
// cancelled and the session leaves the registry. Chat history stays on disk.
func (h *Handlers) EndSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.requireSession(w, r)
	if !ok {
		return
	}

	cancelled := h.cancels.CancelSession(sess.ID)
	h.sessions.End(sess.ID)
	h.contexts.Invalidate(r.Context(), sess.ID)

	writeJSON(w, http.StatusOK, map[string]any{
		"ended":              true,
		"requests_cancelled": cancelled,
	})
}

// GetSession returns the caller's session record.
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

type thinkingRequest struct {
	Thinking bool `json:"thinking"`
}

// SetThinkingMode records the session's default thinking mode, used when a
// message carries neither a frontend flag nor an inline command.
func (h *Handlers) SetThinkingMode(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.requireSession(w, r)
	if !ok {
		return
	}

	req, ok := readJSON[thinkingRequest](w, r)
	if !ok {
		return
	}

	h.sessions.SetDefaultThinking(sess.ID, req.Thinking)
	writeJSON(w, http.StatusOK, map[string]bool{"thinking": req.Thinking})
}

// UserContext returns the context block built from the session's stored
// memories, as it would be injected into the system prompt.
func (h *Handlers) UserContext(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"context": h.contexts.UserContext(r.Context(), sess.ID),
	})
}
