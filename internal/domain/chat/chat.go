// Package chat provides the domain model for conversations exchanged with
// the model endpoint and persisted per session.
package chat

import (
	"encoding/json"
	"time"
)

// Message roles as sent to the model endpoint.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one turn of a conversation. Assistant messages may carry tool
// calls instead of content; tool messages answer a specific tool call via
// ToolCallID.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	Thinking   string     `json:"thinking,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Timestamp  time.Time  `json:"timestamp,omitempty"`
}

// ToolCall is a model-issued request to execute a named tool. Arguments is a
// JSON object serialized as a string; the invoker parses it before execution.
type ToolCall struct {
	ID       string       `json:"id"`
	Function ToolFunction `json:"function"`
}

// ToolFunction carries the callable name and its serialized arguments.
type ToolFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ParseArguments decodes the serialized arguments into dst. An empty or
// whitespace-only arguments string decodes as an empty object.
func (f ToolFunction) ParseArguments(dst any) error {
	raw := f.Arguments
	if raw == "" {
		raw = "{}"
	}
	return json.Unmarshal([]byte(raw), dst)
}

// Chat is a persisted conversation record, owned by one session.
type Chat struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	Thinking  bool      `json:"thinking"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SendRequest is the request body for sending a chat message.
type SendRequest struct {
	Message      string `json:"message"`
	ThinkingMode *bool  `json:"thinking_mode,omitempty"` // nil = resolve from inline commands / session default
	ChatID       string `json:"chat_id,omitempty"`
}

// SegmentedResponse is the normalized outcome of one exchange: the visible
// answer with any reasoning block split out.
type SegmentedResponse struct {
	Answer      string `json:"answer"`
	Thinking    string `json:"thinking,omitempty"`
	HasThinking bool   `json:"has_thinking"`
}

// ExchangeStatus classifies how an exchange ended.
type ExchangeStatus string

const (
	StatusOK        ExchangeStatus = "ok"
	StatusError     ExchangeStatus = "error"
	StatusCancelled ExchangeStatus = "cancelled"
)

// ExchangeResult is what the tool-call loop returns to the HTTP layer.
type ExchangeResult struct {
	Status   ExchangeStatus    `json:"status"`
	Response SegmentedResponse `json:"response,omitzero"`
	Error    string            `json:"error,omitempty"`
}
