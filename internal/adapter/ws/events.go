package ws

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Event type constants for WebSocket messages.
const (
	EventExchangeStarted  = "exchange.started"
	EventExchangeFinished = "exchange.finished"
	EventToolCall         = "exchange.tool_call"
	EventSessionCreated   = "session.created"
	EventSessionExpired   = "session.expired"
)

// ExchangeStartedEvent is broadcast when a message exchange begins.
type ExchangeStartedEvent struct {
	SessionID string `json:"session_id"`
	ChatID    string `json:"chat_id"`
	RequestID string `json:"request_id"`
	Thinking  bool   `json:"thinking"`
}

// ExchangeFinishedEvent is broadcast when an exchange completes, fails, or
// is cancelled.
type ExchangeFinishedEvent struct {
	SessionID string `json:"session_id"`
	ChatID    string `json:"chat_id"`
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
}

// ToolCallEvent is broadcast when the model invokes a tool.
type ToolCallEvent struct {
	SessionID string `json:"session_id"`
	RequestID string `json:"request_id"`
	Tool      string `json:"tool"`
	Status    string `json:"status"`
}

// SessionEvent is broadcast on session creation and expiry.
type SessionEvent struct {
	SessionID string `json:"session_id"`
	Active    int    `json:"active"`
}

// BroadcastEvent marshals a typed event and sends it to all clients.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	h.send(ctx, "", eventType, payload)
}

// BroadcastSessionEvent marshals a typed event and sends it to the clients
// registered for one session.
func (h *Hub) BroadcastSessionEvent(ctx context.Context, sessionID, eventType string, payload any) {
	h.send(ctx, sessionID, eventType, payload)
}

func (h *Hub) send(ctx context.Context, sessionID, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.broadcast(ctx, sessionID, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}
