package ollama_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/titanchat/titan/internal/adapter/ollama"
	"github.com/titanchat/titan/internal/config"
	"github.com/titanchat/titan/internal/domain/chat"
	"github.com/titanchat/titan/internal/port/model"
)

func newTestClient(url string) *ollama.Client {
	return ollama.NewClient(config.Model{
		URL:             url,
		Name:            "test-model",
		Temperature:     0.5,
		MaxTokens:       1024,
		Timeout:         5 * time.Second,
		ThinkingTimeout: 5 * time.Second,
	})
}

func TestChat_ParsesContentAndToolCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if payload["model"] != "test-model" {
			t.Errorf("unexpected model: %v", payload["model"])
		}
		if payload["stream"] != false {
			t.Errorf("expected stream=false, got %v", payload["stream"])
		}

		_, _ = w.Write([]byte(`{"choices":[{"message":{
			"content":"checking the time",
			"tool_calls":[{"id":"call-1","function":{"name":"get_datetime","arguments":"{}"}}]
		}}]}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	resp, err := client.Chat(context.Background(), model.ChatRequest{
		Messages: []chat.Message{{Role: chat.RoleUser, Content: "what time is it"}},
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Content != "checking the time" {
		t.Errorf("unexpected content: %q", resp.Content)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].Function.Name != "get_datetime" {
		t.Errorf("unexpected tool calls: %+v", resp.ToolCalls)
	}
}

func TestChat_ThinkingModeRaisesTemperature(t *testing.T) {
	var got float64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Temperature float64 `json:"temperature"`
			Think       bool    `json:"think"`
		}
		_ = json.NewDecoder(r.Body).Decode(&payload)
		got = payload.Temperature
		if !payload.Think {
			t.Error("expected think=true")
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	if _, err := client.Chat(context.Background(), model.ChatRequest{ThinkingMode: true}); err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if got < 0.8 || got > 1.0 {
		t.Errorf("expected thinking temperature in [0.8, 1.0], got %v", got)
	}
}

func TestChat_Non200ReturnsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(strings.Repeat("x", 2000)))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.Chat(context.Background(), model.ChatRequest{})

	var statusErr *ollama.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", statusErr.StatusCode)
	}
	if len(statusErr.Body) > 500 {
		t.Errorf("expected body capped at 500 chars, got %d", len(statusErr.Body))
	}
}

func TestChat_MalformedBodyReturnsInvalidResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not json at all"))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.Chat(context.Background(), model.ChatRequest{})
	if !errors.Is(err, ollama.ErrInvalidResponse) {
		t.Fatalf("expected ErrInvalidResponse, got %v", err)
	}
}

func TestChatStream_DeliversChunksInOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		lines := []string{
			`{"message":{"content":"Hel"},"done":false}`,
			`not-json-should-be-skipped`,
			`{"message":{"content":"lo"},"done":false}`,
			`{"message":{"content":"!"},"done":false}`,
			`{"done":true}`,
			`{"message":{"content":"IGNORED AFTER DONE"},"done":false}`,
		}
		for _, l := range lines {
			_, _ = w.Write([]byte(l + "\n"))
		}
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	ch, err := client.ChatStream(context.Background(), model.ChatRequest{})
	if err != nil {
		t.Fatalf("ChatStream failed: %v", err)
	}

	var contents []string
	var doneSeen bool
	for chunk := range ch {
		if chunk.Err != nil {
			t.Fatalf("unexpected stream error: %v", chunk.Err)
		}
		if chunk.Done {
			doneSeen = true
			continue
		}
		if doneSeen {
			t.Fatal("received chunk after done")
		}
		contents = append(contents, chunk.Content)
	}

	if got := strings.Join(contents, ""); got != "Hello!" {
		t.Errorf("expected concatenated content Hello!, got %q", got)
	}
	if !doneSeen {
		t.Error("expected a done chunk")
	}
}

func TestChatStream_Non200FailsBeforeChannel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.ChatStream(context.Background(), model.ChatRequest{})

	var statusErr *ollama.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", statusErr.StatusCode)
	}
}

func TestChatStream_EOFWithoutDoneStillTerminates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"message":{"content":"partial"},"done":false}` + "\n"))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	ch, err := client.ChatStream(context.Background(), model.ChatRequest{})
	if err != nil {
		t.Fatalf("ChatStream failed: %v", err)
	}

	var last model.StreamChunk
	var contents []string
	for chunk := range ch {
		last = chunk
		if chunk.Content != "" {
			contents = append(contents, chunk.Content)
		}
	}
	if !last.Done {
		t.Errorf("expected terminal done chunk, got %+v", last)
	}
	if len(contents) != 1 || contents[0] != "partial" {
		t.Errorf("unexpected contents: %v", contents)
	}
}
