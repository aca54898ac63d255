package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/titanchat/titan/internal/adapter/ws"
	"github.com/titanchat/titan/internal/domain/chat"
	"github.com/titanchat/titan/internal/logger"
	"github.com/titanchat/titan/internal/service"
)

// SendMessage runs one synchronous exchange: tools enabled, single JSON
// response. The conversation is loaded from (or created in) the chat store
// and saved back with the assistant's answer.
func (h *Handlers) SendMessage(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[chat.SendRequest](w, r)
	if !ok {
		return
	}
	if !requireField(w, req.Message, "message") {
		return
	}

	thinking := service.ResolveThinkingMode(req.Message, req.ThinkingMode, sess.DefaultThinking)

	record, err := h.loadOrCreateChat(r.Context(), sess.ID, req.ChatID, thinking)
	if err != nil {
		writeDomainError(w, err, "chat not found")
		return
	}
	record.Messages = append(record.Messages, chat.Message{
		Role: chat.RoleUser, Content: req.Message, Timestamp: time.Now().UTC(),
	})

	requestID := exchangeRequestID(r.Context())
	ctx, release := h.cancels.Register(r.Context(), sess.ID, requestID)
	defer release()

	opts := service.ExchangeOptions{
		SessionID:    sess.ID,
		RequestID:    requestID,
		ThinkingMode: thinking,
	}
	h.hub.BroadcastSessionEvent(ctx, sess.ID, ws.EventExchangeStarted, ws.ExchangeStartedEvent{
		SessionID: logger.SessionTag(sess.ID), ChatID: record.ID,
		RequestID: requestID, Thinking: thinking,
	})

	result := h.exchange.RunWithTools(ctx, &record.Messages, opts)

	h.hub.BroadcastSessionEvent(ctx, sess.ID, ws.EventExchangeFinished, ws.ExchangeFinishedEvent{
		SessionID: logger.SessionTag(sess.ID), ChatID: record.ID,
		RequestID: requestID, Status: string(result.Status),
	})

	if result.Status == chat.StatusOK {
		record.Messages = append(record.Messages, chat.Message{
			Role:      chat.RoleAssistant,
			Content:   result.Response.Answer,
			Thinking:  result.Response.Thinking,
			Timestamp: time.Now().UTC(),
		})
		h.saveChat(r.Context(), record)
	}

	writeJSON(w, http.StatusOK, sendResponse{
		ExchangeResult: result,
		ChatID:         record.ID,
		RequestID:      requestID,
	})
}

type sendResponse struct {
	chat.ExchangeResult
	ChatID    string `json:"chat_id"`
	RequestID string `json:"request_id"`
}

// StreamMessage runs one streaming exchange over SSE: one `data:` line per
// stream event, the connection closed after the terminal event. A finished
// stream is saved to the chat store like a synchronous answer.
func (h *Handlers) StreamMessage(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[chat.SendRequest](w, r)
	if !ok {
		return
	}
	if !requireField(w, req.Message, "message") {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	thinking := service.ResolveThinkingMode(req.Message, req.ThinkingMode, sess.DefaultThinking)

	record, err := h.loadOrCreateChat(r.Context(), sess.ID, req.ChatID, thinking)
	if err != nil {
		writeDomainError(w, err, "chat not found")
		return
	}
	record.Messages = append(record.Messages, chat.Message{
		Role: chat.RoleUser, Content: req.Message, Timestamp: time.Now().UTC(),
	})

	requestID := exchangeRequestID(r.Context())
	ctx, release := h.cancels.Register(r.Context(), sess.ID, requestID)
	defer release()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	h.hub.BroadcastSessionEvent(ctx, sess.ID, ws.EventExchangeStarted, ws.ExchangeStartedEvent{
		SessionID: logger.SessionTag(sess.ID), ChatID: record.ID,
		RequestID: requestID, Thinking: thinking,
	})

	opts := service.ExchangeOptions{
		SessionID:    sess.ID,
		RequestID:    requestID,
		ThinkingMode: thinking,
	}

	var final, finalThinking string
	status := chat.StatusError

	for event := range h.exchange.Stream(ctx, record.Messages, opts) {
		switch event.Type {
		case service.EventThinkingDone:
			finalThinking = event.Thinking
		case service.EventDone:
			final = event.Final
			status = chat.StatusOK
		case service.EventError:
			if strings.Contains(event.Error, "cancelled") {
				status = chat.StatusCancelled
			}
		}
		writeSSE(w, flusher, event)
	}

	h.hub.BroadcastSessionEvent(ctx, sess.ID, ws.EventExchangeFinished, ws.ExchangeFinishedEvent{
		SessionID: logger.SessionTag(sess.ID), ChatID: record.ID,
		RequestID: requestID, Status: string(status),
	})

	if status == chat.StatusOK {
		record.Messages = append(record.Messages, chat.Message{
			Role:      chat.RoleAssistant,
			Content:   final,
			Thinking:  finalThinking,
			Timestamp: time.Now().UTC(),
		})
		// The request context may already be gone when the client hung up.
		h.saveChat(context.WithoutCancel(r.Context()), record)
	}
}

// writeSSE frames one stream event as a `data:` line and flushes it out.
func writeSSE(w http.ResponseWriter, flusher http.Flusher, event service.StreamEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

type cancelRequest struct {
	RequestID string `json:"request_id,omitempty"`
}

// CancelRequests aborts in-flight exchanges: one by request ID when given,
// otherwise every exchange of the caller's session.
func (h *Handlers) CancelRequests(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.requireSession(w, r)
	if !ok {
		return
	}

	req, ok := readJSON[cancelRequest](w, r)
	if !ok {
		return
	}

	if req.RequestID != "" {
		if !h.cancels.Cancel(req.RequestID) {
			writeError(w, http.StatusNotFound, "no such request in flight")
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"cancelled": 1})
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{
		"cancelled": h.cancels.CancelSession(sess.ID),
	})
}

// loadOrCreateChat returns the existing chat when chatID is set, otherwise a
// fresh record seeded with the system prompt.
func (h *Handlers) loadOrCreateChat(ctx context.Context, sessionID, chatID string, thinking bool) (*chat.Chat, error) {
	if chatID != "" {
		record, err := h.chats.GetChat(ctx, sessionID, chatID)
		if err != nil {
			return nil, err
		}
		return record, nil
	}

	now := time.Now().UTC()
	return &chat.Chat{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Thinking:  thinking,
		CreatedAt: now,
		Messages: []chat.Message{{
			Role:      chat.RoleSystem,
			Content:   service.SystemPrompt(h.contexts.UserContext(ctx, sessionID), sessionID),
			Timestamp: now,
		}},
	}, nil
}

// saveChat persists the conversation, deriving a title when none is set.
// Storage failures do not fail the exchange that produced the answer.
func (h *Handlers) saveChat(ctx context.Context, record *chat.Chat) {
	if record.Title == "" {
		record.Title = service.GenerateTitle(record.Messages)
	}
	record.UpdatedAt = time.Now().UTC()

	if err := h.chats.SaveChat(ctx, record); err != nil {
		h.log.Error("save chat failed",
			"chat_id", record.ID,
			"session", logger.SessionTag(record.SessionID),
			"error", err)
	}
}

// exchangeRequestID reuses the middleware request ID when present so logs,
// traces, and the cancellation registry share one identifier.
func exchangeRequestID(ctx context.Context) string {
	if id := logger.RequestID(ctx); id != "" {
		return id
	}
	return uuid.NewString()
}
