package service

import (
	"context"
	"strings"
	"testing"
	"time"
)

// fakeCache is an in-process cache.Cache counting hits and misses.
type fakeCache struct {
	data map[string][]byte
	gets int
	sets int
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: map[string][]byte{}}
}

func (c *fakeCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.gets++
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *fakeCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.sets++
	c.data[key] = value
	return nil
}

func (c *fakeCache) Delete(_ context.Context, key string) error {
	delete(c.data, key)
	return nil
}

func saveFact(t *testing.T, store *memStore, sessionID, key, value string) {
	t.Helper()
	tools := NewTools(store, &fakeSearcher{}, testLogger())
	got := tools.Invoke(context.Background(), sessionID,
		toolCall(toolSaveMemory, `{"key":"`+key+`","value":"`+value+`"}`))
	if !strings.Contains(got, "success") {
		t.Fatalf("saveFact failed: %s", got)
	}
}

func TestUserContextFirstConversation(t *testing.T) {
	c := NewContexts(newMemStore(), newFakeCache(), time.Minute, testLogger())

	got := c.UserContext(context.Background(), "s1")
	if got != firstConversationContext {
		t.Errorf("UserContext = %q", got)
	}
}

func TestUserContextListsFacts(t *testing.T) {
	store := newMemStore()
	saveFact(t, store, "s1", "name", "Ana")
	c := NewContexts(store, newFakeCache(), time.Minute, testLogger())

	got := c.UserContext(context.Background(), "s1")

	if !strings.HasPrefix(got, "Known facts about the user:") {
		t.Errorf("UserContext = %q", got)
	}
	if !strings.Contains(got, "- name: Ana") {
		t.Errorf("fact missing: %q", got)
	}
}

func TestUserContextCachesLookups(t *testing.T) {
	store := newMemStore()
	saveFact(t, store, "s1", "name", "Ana")
	cache := newFakeCache()
	c := NewContexts(store, cache, time.Minute, testLogger())
	ctx := context.Background()

	before := store.calls
	first := c.UserContext(ctx, "s1")
	second := c.UserContext(ctx, "s1")

	if first != second {
		t.Errorf("cached value differs: %q vs %q", first, second)
	}
	if store.calls != before+1 {
		t.Errorf("store hit %d times, want 1", store.calls-before)
	}
	if cache.sets != 1 {
		t.Errorf("cache sets = %d, want 1", cache.sets)
	}
}

func TestUserContextInvalidate(t *testing.T) {
	store := newMemStore()
	saveFact(t, store, "s1", "name", "Ana")
	cache := newFakeCache()
	c := NewContexts(store, cache, time.Minute, testLogger())
	ctx := context.Background()

	c.UserContext(ctx, "s1")
	saveFact(t, store, "s1", "city", "Lisbon")
	c.Invalidate(ctx, "s1")

	got := c.UserContext(ctx, "s1")
	if !strings.Contains(got, "- city: Lisbon") {
		t.Errorf("stale context after invalidation: %q", got)
	}
}

func TestUserContextErrorFallback(t *testing.T) {
	store := newMemStore()
	store.failing = true
	c := NewContexts(store, newFakeCache(), time.Minute, testLogger())

	got := c.UserContext(context.Background(), "s1")
	if got != contextErrorFallback {
		t.Errorf("UserContext = %q, want fallback", got)
	}
}

func TestUserContextScopedPerSession(t *testing.T) {
	store := newMemStore()
	saveFact(t, store, "s1", "name", "Ana")
	c := NewContexts(store, newFakeCache(), time.Minute, testLogger())
	ctx := context.Background()

	if got := c.UserContext(ctx, "s2"); got != firstConversationContext {
		t.Errorf("s2 saw s1 facts: %q", got)
	}
}
