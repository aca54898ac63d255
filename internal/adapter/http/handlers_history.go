package http

import (
	"net/http"
	"time"

	"github.com/titanchat/titan/internal/domain/chat"
	"github.com/titanchat/titan/internal/domain/feedback"
	"github.com/titanchat/titan/internal/service"
)

// ListChats returns the session's chats, newest first.
func (h *Handlers) ListChats(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.requireSession(w, r)
	if !ok {
		return
	}

	chats, err := h.chats.ListChats(r.Context(), sess.ID)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"chats": chatSummaries(chats),
		"total": len(chats),
	})
}

// chatSummary is a chat without its message bodies, for listing.
type chatSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  int       `json:"messages"`
	Thinking  bool      `json:"thinking"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func chatSummaries(chats []chat.Chat) []chatSummary {
	out := make([]chatSummary, 0, len(chats))
	for _, c := range chats {
		out = append(out, chatSummary{
			ID:        c.ID,
			Title:     c.Title,
			Messages:  len(c.Messages),
			Thinking:  c.Thinking,
			CreatedAt: c.CreatedAt,
			UpdatedAt: c.UpdatedAt,
		})
	}
	return out
}

// GetChat returns one full chat with its messages.
func (h *Handlers) GetChat(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.requireSession(w, r)
	if !ok {
		return
	}

	record, err := h.chats.GetChat(r.Context(), sess.ID, urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "chat not found")
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// chatContext is the payload for the chat context endpoint: the full
// record plus a derived summary and per-role message counts.
type chatContext struct {
	chat.Chat
	Summary string            `json:"context_summary"`
	Stats   conversationStats `json:"conversation_stats"`
}

type conversationStats struct {
	Total       int  `json:"total_messages"`
	User        int  `json:"user_messages"`
	Assistant   int  `json:"assistant_messages"`
	HasThinking bool `json:"has_thinking"`
}

func countMessages(msgs []chat.Message) conversationStats {
	stats := conversationStats{Total: len(msgs)}
	for _, m := range msgs {
		switch m.Role {
		case chat.RoleUser:
			stats.User++
		case chat.RoleAssistant:
			stats.Assistant++
			if m.Thinking != "" {
				stats.HasThinking = true
			}
		}
	}
	return stats
}

// ChatContext returns one chat enriched with a one-line conversation
// summary and message statistics.
func (h *Handlers) ChatContext(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.requireSession(w, r)
	if !ok {
		return
	}

	record, err := h.chats.GetChat(r.Context(), sess.ID, urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "chat not found")
		return
	}
	writeJSON(w, http.StatusOK, chatContext{
		Chat:    *record,
		Summary: service.SummarizeConversation(record.Messages),
		Stats:   countMessages(record.Messages),
	})
}

// DeleteChat removes one chat from the session.
func (h *Handlers) DeleteChat(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.requireSession(w, r)
	if !ok {
		return
	}

	if err := h.chats.DeleteChat(r.Context(), sess.ID, urlParam(r, "id")); err != nil {
		writeDomainError(w, err, "chat not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// ClearChats removes every chat of the session.
func (h *Handlers) ClearChats(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.requireSession(w, r)
	if !ok {
		return
	}

	if err := h.chats.ClearSession(r.Context(), sess.ID); err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}

type renameRequest struct {
	Title string `json:"title"`
}

// RenameChat updates a chat's title.
func (h *Handlers) RenameChat(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.requireSession(w, r)
	if !ok {
		return
	}

	req, ok := readJSON[renameRequest](w, r)
	if !ok {
		return
	}
	if !requireField(w, req.Title, "title") {
		return
	}

	record, err := h.chats.GetChat(r.Context(), sess.ID, urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "chat not found")
		return
	}

	record.Title = req.Title
	record.UpdatedAt = time.Now().UTC()
	if err := h.chats.SaveChat(r.Context(), record); err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// SubmitFeedback validates and stores a feedback record.
func (h *Handlers) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.requireSession(w, r)
	if !ok {
		return
	}

	req, ok := readJSON[feedback.CreateRequest](w, r)
	if !ok {
		return
	}

	record, err := h.feedbacks.Submit(r.Context(), sess.ID, req)
	if err != nil {
		writeDomainError(w, err, "could not store feedback")
		return
	}
	writeJSON(w, http.StatusCreated, record)
}
