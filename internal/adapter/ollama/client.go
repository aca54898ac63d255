// Package ollama provides the HTTP transport to a local Ollama-compatible
// model endpoint, covering one-shot and streaming chat calls.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/titanchat/titan/internal/config"
	"github.com/titanchat/titan/internal/port/model"
	"github.com/titanchat/titan/internal/resilience"
)

// ErrInvalidResponse indicates the endpoint returned a body that could not be
// parsed as the expected structure.
var ErrInvalidResponse = errors.New("invalid response from model endpoint")

// StatusError is returned for non-200 responses. The body excerpt is capped
// so endpoint output never floods logs or error surfaces.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("model endpoint returned HTTP %d", e.StatusCode)
}

const (
	// errBodyCap limits how much of an error body is retained.
	errBodyCap = 500
	// streamBufferSize is the per-line read buffer for NDJSON streams.
	streamBufferSize = 64 * 1024
)

// Client talks to the model endpoint. It implements model.Client.
type Client struct {
	url             string
	model           string
	temperature     float64
	maxTokens       int
	timeout         time.Duration
	thinkingTimeout time.Duration
	httpClient      *http.Client
	breaker         *resilience.Breaker
}

// NewClient creates a model endpoint client from config. The http.Client
// carries no global timeout; per-call deadlines depend on thinking mode.
func NewClient(cfg config.Model) *Client {
	return &Client{
		url:             cfg.URL,
		model:           cfg.Name,
		temperature:     cfg.Temperature,
		maxTokens:       cfg.MaxTokens,
		timeout:         cfg.Timeout,
		thinkingTimeout: cfg.ThinkingTimeout,
		httpClient:      &http.Client{},
	}
}

// SetBreaker attaches a circuit breaker to outgoing calls.
func (c *Client) SetBreaker(b *resilience.Breaker) {
	c.breaker = b
}

// Chat issues one blocking chat call and parses the response.
func (c *Client) Chat(ctx context.Context, req model.ChatRequest) (*model.ChatResponse, error) {
	timeout := c.timeout
	if req.ThinkingMode {
		timeout = c.thinkingTimeout
	}

	payload := c.buildPayload(req, false)

	var parsed chatResponse
	call := func() error {
		body, err := c.post(ctx, payload, timeout)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(body, &parsed); err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidResponse, err)
		}
		if len(parsed.Choices) == 0 {
			return fmt.Errorf("%w: no choices", ErrInvalidResponse)
		}
		return nil
	}

	if err := c.execute(call); err != nil {
		return nil, err
	}

	msg := parsed.Choices[0].Message
	return &model.ChatResponse{
		Content:   msg.Content,
		Thinking:  msg.Thinking,
		ToolCalls: msg.ToolCalls,
	}, nil
}

// ChatStream opens one streaming chat call. Each NDJSON line becomes a chunk
// on the returned channel; lines that fail to parse are skipped, and reading
// stops as soon as a line carries done=true. The channel is closed after the
// terminal chunk.
func (c *Client) ChatStream(ctx context.Context, req model.ChatRequest) (<-chan model.StreamChunk, error) {
	payload := c.buildPayload(req, true)

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal stream payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.thinkingTimeout)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create stream request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	var resp *http.Response
	connect := func() error {
		r, err := c.httpClient.Do(httpReq)
		if err != nil {
			return fmt.Errorf("stream request: %w", err)
		}
		if r.StatusCode != http.StatusOK {
			excerpt, _ := io.ReadAll(io.LimitReader(r.Body, errBodyCap))
			_ = r.Body.Close()
			return &StatusError{StatusCode: r.StatusCode, Body: string(excerpt)}
		}
		resp = r
		return nil
	}
	if err := c.execute(connect); err != nil {
		cancel()
		return nil, err
	}

	ch := make(chan model.StreamChunk)
	go func() {
		defer close(ch)
		defer cancel()
		defer func() { _ = resp.Body.Close() }()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, streamBufferSize), streamBufferSize)

		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}

			var parsed streamLine
			if err := json.Unmarshal(line, &parsed); err != nil {
				// One bad line must not kill an otherwise good stream.
				slog.Debug("skipping malformed stream line", "error", err)
				continue
			}

			if parsed.Message.Content != "" {
				select {
				case ch <- model.StreamChunk{Content: parsed.Message.Content}:
				case <-ctx.Done():
					// Caller went away; don't block on the terminal chunk.
					select {
					case ch <- model.StreamChunk{Err: ctx.Err()}:
					default:
					}
					return
				}
			}

			if parsed.Done {
				ch <- model.StreamChunk{Done: true}
				return
			}
		}

		if err := scanner.Err(); err != nil {
			ch <- model.StreamChunk{Err: fmt.Errorf("read stream: %w", err)}
			return
		}
		// Endpoint closed the connection without a done marker; treat as done
		// so the caller can finalize what it has.
		ch <- model.StreamChunk{Done: true}
	}()

	return ch, nil
}

// buildPayload assembles the wire payload for one call.
func (c *Client) buildPayload(req model.ChatRequest, stream bool) chatPayload {
	maxTokens := c.maxTokens
	if req.MaxTokens > 0 && req.MaxTokens < maxTokens {
		maxTokens = req.MaxTokens
	}

	topP := 0.9
	if req.ThinkingMode {
		topP = 0.95
	}

	return chatPayload{
		Model:       c.model,
		Messages:    req.Messages,
		Stream:      stream,
		Think:       req.ThinkingMode,
		Temperature: clampTemperature(c.temperature, req.ThinkingMode),
		MaxTokens:   maxTokens,
		Tools:       req.Tools,
		Options: samplingOptions{
			RepeatPenalty: 1.05,
			TopK:          40,
			TopP:          topP,
		},
	}
}

// clampTemperature bounds temperature to [0.1, 1.0], biased higher when
// thinking mode is on so reasoning output stays exploratory.
func clampTemperature(base float64, thinking bool) float64 {
	t := base
	if thinking && t < 0.8 {
		t = 0.8
	}
	if t < 0.1 {
		t = 0.1
	}
	if t > 1.0 {
		t = 1.0
	}
	return t
}

// post sends one JSON request and returns the full response body.
func (c *Client) post(ctx context.Context, payload chatPayload, timeout time.Duration) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("model request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		excerpt := data
		if len(excerpt) > errBodyCap {
			excerpt = excerpt[:errBodyCap]
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(excerpt)}
	}

	return data, nil
}

func (c *Client) execute(call func() error) error {
	if c.breaker != nil {
		return c.breaker.Execute(call)
	}
	return call()
}
