package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/titanchat/titan/internal/adapter/websearch"
	"github.com/titanchat/titan/internal/domain/chat"
	"github.com/titanchat/titan/internal/domain/memory"
	"github.com/titanchat/titan/internal/logger"
	"github.com/titanchat/titan/internal/port/memorystore"
	"github.com/titanchat/titan/internal/port/model"
)

// toolResultMaxLen bounds a serialized tool result before it re-enters the
// conversation.
const toolResultMaxLen = 2000

// Tool names form a fixed, closed allow-list. Anything else is rejected
// without execution.
const (
	toolGetDatetime    = "get_datetime"
	toolSaveMemory     = "save_memory"
	toolSearchMemory   = "search_memory"
	toolDeleteMemory   = "delete_memory"
	toolListCategories = "list_memory_categories"
	toolWebSearch      = "web_search"
)

// memoryTools get the session ID injected; the rest are session-independent.
var memoryTools = map[string]struct{}{
	toolSaveMemory: {}, toolSearchMemory: {}, toolDeleteMemory: {}, toolListCategories: {},
}

var allowedTools = map[string]struct{}{
	toolGetDatetime: {}, toolSaveMemory: {}, toolSearchMemory: {},
	toolDeleteMemory: {}, toolListCategories: {}, toolWebSearch: {},
}

// Searcher is the web search dependency of the tool invoker.
type Searcher interface {
	Search(ctx context.Context, query string) ([]websearch.Result, error)
}

// Tools validates, dispatches, and bounds the model's tool calls.
type Tools struct {
	memory memorystore.Store
	search Searcher
	now    func() time.Time
	log    *slog.Logger

	// onMemoryWrite runs after a successful memory mutation so cached
	// user context can be invalidated.
	onMemoryWrite func(ctx context.Context, sessionID string)

	defs []model.ToolDefinition
}

// NewTools creates the tool invoker over the given backends.
func NewTools(mem memorystore.Store, search Searcher, log *slog.Logger) *Tools {
	t := &Tools{
		memory: mem,
		search: search,
		now:    time.Now,
		log:    log,
	}
	t.defs = buildDefinitions()
	return t
}

// SetMemoryWriteHook installs a callback invoked after save/delete memory
// operations succeed.
func (t *Tools) SetMemoryWriteHook(fn func(ctx context.Context, sessionID string)) {
	t.onMemoryWrite = fn
}

// Allowed reports whether name is in the tool allow-list.
func (t *Tools) Allowed(name string) bool {
	_, ok := allowedTools[name]
	return ok
}

// Definitions returns the tool catalog sent to the model.
func (t *Tools) Definitions() []model.ToolDefinition {
	return t.defs
}

// Typed argument structs, one per tool.

type saveMemoryArgs struct {
	Key      string `json:"key"`
	Value    string `json:"value"`
	Category string `json:"category"`
}

type searchMemoryArgs struct {
	Key      string `json:"key"`
	Category string `json:"category"`
}

type deleteMemoryArgs struct {
	Key string `json:"key"`
}

type webSearchArgs struct {
	Query string `json:"query"`
}

// Invoke executes one tool call and returns the serialized result, capped
// at 2000 characters. Failures inside a tool never propagate: they come
// back as an error-shaped result the model can react to.
func (t *Tools) Invoke(ctx context.Context, sessionID string, call chat.ToolCall) (result string) {
	name := call.Function.Name

	defer func() {
		if r := recover(); r != nil {
			t.log.Error("tool panicked", "tool", name, "panic", fmt.Sprint(r))
			result = errorResult(fmt.Sprintf("tool %s failed", name))
		}
	}()

	if !t.Allowed(name) {
		return errorResult("tool not found")
	}

	t.log.Info("executing tool", "tool", name, "session", logger.SessionTag(sessionID))

	var payload map[string]any
	switch name {
	case toolGetDatetime:
		payload = t.getDatetime()
	case toolSaveMemory:
		payload = t.saveMemory(ctx, sessionID, call)
	case toolSearchMemory:
		payload = t.searchMemory(ctx, sessionID, call)
	case toolDeleteMemory:
		payload = t.deleteMemory(ctx, sessionID, call)
	case toolListCategories:
		payload = t.listCategories(ctx, sessionID)
	case toolWebSearch:
		payload = t.webSearch(ctx, call)
	}

	return truncateResult(payload)
}

func (t *Tools) getDatetime() map[string]any {
	now := t.now()
	return map[string]any{
		"status":   "success",
		"datetime": now.Format("2006-01-02 15:04:05"),
		"weekday":  now.Weekday().String(),
		"timezone": now.Format("MST"),
	}
}

func (t *Tools) saveMemory(ctx context.Context, sessionID string, call chat.ToolCall) map[string]any {
	var args saveMemoryArgs
	if err := call.Function.ParseArguments(&args); err != nil {
		return errorPayload("invalid arguments")
	}

	e := &memory.Entry{SessionID: sessionID, Key: args.Key, Value: args.Value, Category: args.Category}
	if err := t.memory.Save(ctx, e); err != nil {
		t.log.Warn("save_memory failed", "error", err)
		return errorPayload("could not save the data")
	}

	if t.onMemoryWrite != nil {
		t.onMemoryWrite(ctx, sessionID)
	}
	return map[string]any{"status": "success", "message": fmt.Sprintf("saved %q", args.Key)}
}

func (t *Tools) searchMemory(ctx context.Context, sessionID string, call chat.ToolCall) map[string]any {
	var args searchMemoryArgs
	if err := call.Function.ParseArguments(&args); err != nil {
		return errorPayload("invalid arguments")
	}

	entries, err := t.memory.Search(ctx, memory.Query{
		SessionID: sessionID, Key: args.Key, Category: args.Category,
	})
	if err != nil {
		t.log.Warn("search_memory failed", "error", err)
		return errorPayload("could not search the data")
	}

	data := make([]map[string]string, 0, len(entries))
	for _, e := range entries {
		data = append(data, map[string]string{
			"key": e.Key, "value": e.Value, "category": e.Category,
		})
	}
	return map[string]any{"status": "success", "data": data, "total": len(data)}
}

func (t *Tools) deleteMemory(ctx context.Context, sessionID string, call chat.ToolCall) map[string]any {
	var args deleteMemoryArgs
	if err := call.Function.ParseArguments(&args); err != nil {
		return errorPayload("invalid arguments")
	}

	if err := t.memory.Delete(ctx, sessionID, args.Key); err != nil {
		t.log.Warn("delete_memory failed", "key", args.Key, "error", err)
		return errorPayload(fmt.Sprintf("could not delete %q", args.Key))
	}

	if t.onMemoryWrite != nil {
		t.onMemoryWrite(ctx, sessionID)
	}
	return map[string]any{"status": "success", "message": fmt.Sprintf("deleted %q", args.Key)}
}

func (t *Tools) listCategories(ctx context.Context, sessionID string) map[string]any {
	categories, err := t.memory.Categories(ctx, sessionID)
	if err != nil {
		t.log.Warn("list_memory_categories failed", "error", err)
		return errorPayload("could not list categories")
	}
	if categories == nil {
		categories = []string{}
	}
	return map[string]any{"status": "success", "categories": categories}
}

func (t *Tools) webSearch(ctx context.Context, call chat.ToolCall) map[string]any {
	var args webSearchArgs
	if err := call.Function.ParseArguments(&args); err != nil {
		return errorPayload("invalid arguments")
	}
	if args.Query == "" {
		return errorPayload("query is required")
	}

	results, err := t.search.Search(ctx, args.Query)
	if err != nil {
		t.log.Warn("web_search failed", "query", args.Query, "error", err)
		return errorPayload("search failed")
	}

	return map[string]any{
		"status":  "success",
		"total":   len(results),
		"results": websearch.FormatResults(args.Query, results),
		"notice":  "These are CURRENT results from the internet. Prefer them over pre-trained knowledge.",
	}
}

func errorPayload(msg string) map[string]any {
	return map[string]any{"status": "error", "message": msg}
}

func errorResult(msg string) string {
	return truncateResult(errorPayload(msg))
}

// truncateResult serializes a payload and caps it at toolResultMaxLen.
func truncateResult(payload map[string]any) string {
	data, err := json.Marshal(payload)
	if err != nil {
		return `{"status":"error","message":"unserializable tool result"}`
	}
	if len(data) > toolResultMaxLen {
		return string(data[:toolResultMaxLen])
	}
	return string(data)
}

func buildDefinitions() []model.ToolDefinition {
	obj := func(props map[string]any, required ...string) map[string]any {
		schema := map[string]any{"type": "object", "properties": props}
		if len(required) > 0 {
			schema["required"] = required
		}
		return schema
	}
	str := func(desc string) map[string]any {
		return map[string]any{"type": "string", "description": desc}
	}

	return []model.ToolDefinition{
		{
			Type: "function",
			Function: model.ToolFunction{
				Name:        toolGetDatetime,
				Description: "Get the current date, time and weekday.",
				Parameters:  obj(map[string]any{}),
			},
		},
		{
			Type: "function",
			Function: model.ToolFunction{
				Name:        toolSaveMemory,
				Description: "Save a fact about the user as a key-value pair, optionally categorized.",
				Parameters: obj(map[string]any{
					"key":      str("Short identifier for the fact, e.g. 'favorite_color'."),
					"value":    str("The fact to remember."),
					"category": str("Optional grouping, defaults to 'general'."),
				}, "key", "value"),
			},
		},
		{
			Type: "function",
			Function: model.ToolFunction{
				Name:        toolSearchMemory,
				Description: "Search previously saved facts by key substring and/or category.",
				Parameters: obj(map[string]any{
					"key":      str("Substring of the key to look for. Empty matches everything."),
					"category": str("Restrict the search to one category."),
				}),
			},
		},
		{
			Type: "function",
			Function: model.ToolFunction{
				Name:        toolDeleteMemory,
				Description: "Delete one saved fact by its exact key.",
				Parameters: obj(map[string]any{
					"key": str("Exact key of the fact to delete."),
				}, "key"),
			},
		},
		{
			Type: "function",
			Function: model.ToolFunction{
				Name:        toolListCategories,
				Description: "List the categories of facts saved so far.",
				Parameters:  obj(map[string]any{}),
			},
		},
		{
			Type: "function",
			Function: model.ToolFunction{
				Name:        toolWebSearch,
				Description: "Search the web for current information.",
				Parameters: obj(map[string]any{
					"query": str("The search query."),
				}, "query"),
			},
		},
	}
}
