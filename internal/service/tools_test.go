package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/titanchat/titan/internal/adapter/websearch"
	"github.com/titanchat/titan/internal/domain"
	"github.com/titanchat/titan/internal/domain/chat"
	"github.com/titanchat/titan/internal/domain/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore is an in-process memorystore.Store recording every call.
type memStore struct {
	entries map[string]map[string]memory.Entry // session -> key -> entry
	calls   int
	failing bool
}

func newMemStore() *memStore {
	return &memStore{entries: map[string]map[string]memory.Entry{}}
}

func (m *memStore) Save(_ context.Context, e *memory.Entry) error {
	m.calls++
	if m.failing {
		return fmt.Errorf("store down")
	}
	if err := e.Validate(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if e.Category == "" {
		e.Category = memory.DefaultCategory
	}
	if m.entries[e.SessionID] == nil {
		m.entries[e.SessionID] = map[string]memory.Entry{}
	}
	m.entries[e.SessionID][e.Key] = *e
	return nil
}

func (m *memStore) Search(_ context.Context, q memory.Query) ([]memory.Entry, error) {
	m.calls++
	if m.failing {
		return nil, fmt.Errorf("store down")
	}
	var out []memory.Entry
	for _, e := range m.entries[q.SessionID] {
		if q.Key != "" && !strings.Contains(e.Key, q.Key) {
			continue
		}
		if q.Category != "" && e.Category != q.Category {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *memStore) Delete(_ context.Context, sessionID, key string) error {
	m.calls++
	if _, ok := m.entries[sessionID][key]; !ok {
		return domain.ErrNotFound
	}
	delete(m.entries[sessionID], key)
	return nil
}

func (m *memStore) Categories(_ context.Context, sessionID string) ([]string, error) {
	m.calls++
	seen := map[string]struct{}{}
	var out []string
	for _, e := range m.entries[sessionID] {
		if _, ok := seen[e.Category]; !ok {
			seen[e.Category] = struct{}{}
			out = append(out, e.Category)
		}
	}
	return out, nil
}

// fakeSearcher records queries and returns canned results.
type fakeSearcher struct {
	calls   int
	results []websearch.Result
	err     error
	panics  bool
}

func (f *fakeSearcher) Search(_ context.Context, query string) ([]websearch.Result, error) {
	f.calls++
	if f.panics {
		panic("searcher exploded")
	}
	return f.results, f.err
}

func toolCall(name, args string) chat.ToolCall {
	return chat.ToolCall{
		ID:       "call-1",
		Function: chat.ToolFunction{Name: name, Arguments: args},
	}
}

func decodeResult(t *testing.T, raw string) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		t.Fatalf("result is not JSON: %v\n%s", err, raw)
	}
	return payload
}

func TestInvokeUnknownToolNeverExecutes(t *testing.T) {
	store := newMemStore()
	search := &fakeSearcher{}
	tools := NewTools(store, search, testLogger())

	got := tools.Invoke(context.Background(), "session-1", toolCall("delete_system", "{}"))

	payload := decodeResult(t, got)
	if payload["status"] != "error" {
		t.Errorf("status = %v, want error", payload["status"])
	}
	if payload["message"] != "tool not found" {
		t.Errorf("message = %v", payload["message"])
	}
	if store.calls != 0 || search.calls != 0 {
		t.Errorf("backends were called: store=%d search=%d", store.calls, search.calls)
	}
}

func TestInvokeSaveAndSearchMemory(t *testing.T) {
	store := newMemStore()
	tools := NewTools(store, &fakeSearcher{}, testLogger())
	ctx := context.Background()

	got := tools.Invoke(ctx, "session-1", toolCall(toolSaveMemory,
		`{"key":"favorite_color","value":"blue"}`))
	if payload := decodeResult(t, got); payload["status"] != "success" {
		t.Fatalf("save failed: %s", got)
	}

	got = tools.Invoke(ctx, "session-1", toolCall(toolSearchMemory, `{"key":"color"}`))
	payload := decodeResult(t, got)
	if payload["status"] != "success" {
		t.Fatalf("search failed: %s", got)
	}
	if payload["total"].(float64) != 1 {
		t.Errorf("total = %v, want 1", payload["total"])
	}
}

func TestInvokeScopesMemoryBySession(t *testing.T) {
	store := newMemStore()
	tools := NewTools(store, &fakeSearcher{}, testLogger())
	ctx := context.Background()

	tools.Invoke(ctx, "session-a", toolCall(toolSaveMemory, `{"key":"k","value":"v"}`))

	got := tools.Invoke(ctx, "session-b", toolCall(toolSearchMemory, `{}`))
	payload := decodeResult(t, got)
	if payload["total"].(float64) != 0 {
		t.Errorf("session-b saw session-a data: %s", got)
	}
}

func TestInvokeMemoryWriteHook(t *testing.T) {
	store := newMemStore()
	tools := NewTools(store, &fakeSearcher{}, testLogger())

	var invalidated []string
	tools.SetMemoryWriteHook(func(_ context.Context, sessionID string) {
		invalidated = append(invalidated, sessionID)
	})
	ctx := context.Background()

	tools.Invoke(ctx, "session-1", toolCall(toolSaveMemory, `{"key":"k","value":"v"}`))
	tools.Invoke(ctx, "session-1", toolCall(toolDeleteMemory, `{"key":"k"}`))
	// A read must not trigger invalidation.
	tools.Invoke(ctx, "session-1", toolCall(toolSearchMemory, `{}`))

	if len(invalidated) != 2 {
		t.Errorf("hook ran %d times, want 2", len(invalidated))
	}
}

func TestInvokeStoreErrorBecomesErrorResult(t *testing.T) {
	store := newMemStore()
	store.failing = true
	tools := NewTools(store, &fakeSearcher{}, testLogger())

	got := tools.Invoke(context.Background(), "session-1",
		toolCall(toolSaveMemory, `{"key":"k","value":"v"}`))

	if payload := decodeResult(t, got); payload["status"] != "error" {
		t.Errorf("status = %v, want error", payload["status"])
	}
}

func TestInvokeBadArguments(t *testing.T) {
	tools := NewTools(newMemStore(), &fakeSearcher{}, testLogger())

	got := tools.Invoke(context.Background(), "session-1",
		toolCall(toolSaveMemory, `not json`))

	payload := decodeResult(t, got)
	if payload["status"] != "error" || payload["message"] != "invalid arguments" {
		t.Errorf("payload = %v", payload)
	}
}

func TestInvokeGetDatetime(t *testing.T) {
	tools := NewTools(newMemStore(), &fakeSearcher{}, testLogger())
	tools.now = func() time.Time {
		return time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	}

	got := tools.Invoke(context.Background(), "session-1", toolCall(toolGetDatetime, ""))

	payload := decodeResult(t, got)
	if payload["datetime"] != "2025-03-14 09:30:00" {
		t.Errorf("datetime = %v", payload["datetime"])
	}
	if payload["weekday"] != "Friday" {
		t.Errorf("weekday = %v", payload["weekday"])
	}
}

func TestInvokeWebSearch(t *testing.T) {
	search := &fakeSearcher{results: []websearch.Result{
		{Title: "Go", Snippet: "Go is a language", URL: "https://go.dev"},
	}}
	tools := NewTools(newMemStore(), search, testLogger())

	got := tools.Invoke(context.Background(), "session-1",
		toolCall(toolWebSearch, `{"query":"golang"}`))

	payload := decodeResult(t, got)
	if payload["status"] != "success" {
		t.Fatalf("search failed: %s", got)
	}
	if !strings.Contains(payload["results"].(string), "Go is a language") {
		t.Errorf("results = %v", payload["results"])
	}
}

func TestInvokeWebSearchRequiresQuery(t *testing.T) {
	search := &fakeSearcher{}
	tools := NewTools(newMemStore(), search, testLogger())

	got := tools.Invoke(context.Background(), "session-1", toolCall(toolWebSearch, `{}`))

	if payload := decodeResult(t, got); payload["status"] != "error" {
		t.Errorf("payload = %v", payload)
	}
	if search.calls != 0 {
		t.Error("searcher called with empty query")
	}
}

func TestInvokeRecoversFromPanic(t *testing.T) {
	search := &fakeSearcher{panics: true}
	tools := NewTools(newMemStore(), search, testLogger())

	got := tools.Invoke(context.Background(), "session-1",
		toolCall(toolWebSearch, `{"query":"boom"}`))

	payload := decodeResult(t, got)
	if payload["status"] != "error" {
		t.Errorf("panic did not become an error result: %s", got)
	}
}

func TestInvokeTruncatesLongResults(t *testing.T) {
	store := newMemStore()
	tools := NewTools(store, &fakeSearcher{}, testLogger())
	ctx := context.Background()

	long := strings.Repeat("v", 5000)
	tools.Invoke(ctx, "session-1", toolCall(toolSaveMemory,
		fmt.Sprintf(`{"key":"big","value":%q}`, long)))

	got := tools.Invoke(ctx, "session-1", toolCall(toolSearchMemory, `{"key":"big"}`))
	if len(got) > toolResultMaxLen {
		t.Errorf("result length %d exceeds cap %d", len(got), toolResultMaxLen)
	}
}

func TestDefinitionsCoverAllowedTools(t *testing.T) {
	tools := NewTools(newMemStore(), &fakeSearcher{}, testLogger())

	defs := tools.Definitions()
	if len(defs) != len(allowedTools) {
		t.Fatalf("got %d definitions, want %d", len(defs), len(allowedTools))
	}
	for _, def := range defs {
		if !tools.Allowed(def.Function.Name) {
			t.Errorf("definition %q not in allow-list", def.Function.Name)
		}
	}
}
