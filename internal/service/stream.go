package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/titanchat/titan/internal/adapter/otel"
	"github.com/titanchat/titan/internal/domain/chat"
	"github.com/titanchat/titan/internal/port/model"
)

// StreamEvent types, in emission order: any number of content events, at
// most one thinking_done, then exactly one terminal done or error.
const (
	EventContent      = "content"
	EventThinkingDone = "thinking_done"
	EventDone         = "done"
	EventError        = "error"
)

// StreamEvent is the unit the streaming orchestrator emits to its caller.
// The caller frames events for transport (SSE, WebSocket); the orchestrator
// does not care.
type StreamEvent struct {
	Type     string       `json:"type"`
	Content  string       `json:"content,omitempty"`
	Thinking string       `json:"thinking,omitempty"`
	Final    string       `json:"final_content,omitempty"`
	Stats    *StreamStats `json:"stats,omitempty"`
	Error    string       `json:"error,omitempty"`
}

// StreamStats summarize one finished stream. Length counts characters of
// the raw accumulated text, not bytes.
type StreamStats struct {
	Chunks int `json:"chunks"`
	Length int `json:"length"`
}

// Stream drives one streaming exchange. Content fragments are relayed
// verbatim in arrival order; segmentation runs once over the accumulated
// text after the stream ends. The returned channel is closed after the
// terminal event. No error ever escapes as a panic.
func (e *Exchange) Stream(ctx context.Context, conv []chat.Message, opts ExchangeOptions) <-chan StreamEvent {
	out := make(chan StreamEvent)

	go func() {
		defer close(out)
		defer func() {
			if r := recover(); r != nil {
				e.log.Error("stream panicked", "request_id", opts.RequestID, "panic", fmt.Sprint(r))
				out <- StreamEvent{Type: EventError, Error: "unexpected streaming failure"}
			}
		}()
		e.runStream(ctx, conv, opts, out)
	}()

	return out
}

func (e *Exchange) runStream(ctx context.Context, conv []chat.Message, opts ExchangeOptions, out chan<- StreamEvent) {
	ctx, span := otel.StartStreamSpan(ctx, opts.RequestID)
	defer span.End()

	e.countStarted(ctx)
	start := time.Now()

	sanitizeLastUserMessage(conv)
	userMsg := lastUserMessage(conv)

	chunks, err := e.model.ChatStream(ctx, model.ChatRequest{
		Messages:     conv,
		ThinkingMode: opts.ThinkingMode,
	})
	if err != nil {
		e.countFailed(ctx)
		out <- StreamEvent{Type: EventError, Error: shortError(err)}
		return
	}

	var raw strings.Builder
	count := 0

	for chunk := range chunks {
		if ctx.Err() != nil {
			e.countCancelled(ctx)
			out <- StreamEvent{Type: EventError, Error: "request cancelled by the user"}
			return
		}
		if chunk.Err != nil {
			e.countFailed(ctx)
			out <- StreamEvent{Type: EventError, Error: shortError(chunk.Err)}
			return
		}
		if chunk.Done {
			break
		}
		if chunk.Content == "" {
			continue
		}

		raw.WriteString(chunk.Content)
		count++
		out <- StreamEvent{Type: EventContent, Content: chunk.Content}
	}

	rawText := raw.String()
	seg := segmentResponse(rawText, "", opts.ThinkingMode, userMsg)

	if seg.HasThinking {
		out <- StreamEvent{Type: EventThinkingDone, Thinking: seg.Thinking}
	}
	out <- StreamEvent{
		Type:  EventDone,
		Final: seg.Answer,
		Stats: &StreamStats{Chunks: count, Length: utf8.RuneCountInString(rawText)},
	}

	e.countCompleted(ctx)
	if e.metrics != nil {
		e.metrics.StreamDuration.Record(ctx, time.Since(start).Seconds())
	}
}
