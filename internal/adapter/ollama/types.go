package ollama

import (
	"github.com/titanchat/titan/internal/domain/chat"
	"github.com/titanchat/titan/internal/port/model"
)

// chatPayload is the request body for the model endpoint's chat API.
type chatPayload struct {
	Model       string                 `json:"model"`
	Messages    []chat.Message         `json:"messages"`
	Stream      bool                   `json:"stream"`
	Think       bool                   `json:"think,omitempty"`
	Temperature float64                `json:"temperature,omitempty"`
	MaxTokens   int                    `json:"max_tokens,omitempty"`
	Tools       []model.ToolDefinition `json:"tools,omitempty"`
	Options     samplingOptions        `json:"options"`
}

// samplingOptions tunes token sampling. Thinking responses get a slightly
// wider top-p.
type samplingOptions struct {
	RepeatPenalty float64 `json:"repeat_penalty"`
	TopK          int     `json:"top_k"`
	TopP          float64 `json:"top_p"`
}

// chatResponse is the non-streaming response body (OpenAI-compatible shape).
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content   string          `json:"content"`
			Thinking  string          `json:"thinking,omitempty"`
			ToolCalls []chat.ToolCall `json:"tool_calls,omitempty"`
		} `json:"message"`
	} `json:"choices"`
}

// streamLine is one NDJSON line of a streaming response.
type streamLine struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`
}
