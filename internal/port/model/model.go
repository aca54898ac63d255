// Package model defines the port interface for the language-model endpoint.
package model

import (
	"context"

	"github.com/titanchat/titan/internal/domain/chat"
)

// ChatRequest is one conversation payload sent to the model endpoint.
type ChatRequest struct {
	Messages     []chat.Message
	ThinkingMode bool
	MaxTokens    int
	Tools        []ToolDefinition // nil = tool use disabled
}

// ToolDefinition describes one callable tool in the catalog sent to the model.
type ToolDefinition struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

// ToolFunction is the function part of a tool definition.
type ToolFunction struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  any    `json:"parameters"`
}

// ChatResponse is the parsed result of one non-streaming call.
type ChatResponse struct {
	Content   string
	Thinking  string // separate thinking field, when the endpoint provides one
	ToolCalls []chat.ToolCall
}

// StreamChunk is one parsed line of a streaming response. Err is set when the
// stream failed mid-flight; no further chunks follow an Err or Done chunk.
type StreamChunk struct {
	Content string
	Done    bool
	Err     error
}

// Client is the transport to the model endpoint.
type Client interface {
	// Chat issues one blocking call and returns the parsed response.
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	// ChatStream opens a streaming call. The returned channel delivers
	// content increments in arrival order and is closed after a Done or Err
	// chunk. A connection-level failure is reported via the error return.
	ChatStream(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error)
}
