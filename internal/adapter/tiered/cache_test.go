package tiered

import (
	"context"
	"sync"
	"testing"
	"time"
)

// mapCache is an in-memory cache.Cache for testing.
type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMapCache() *mapCache {
	return &mapCache{data: make(map[string][]byte)}
}

func (m *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *mapCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func TestGetPrefersL1(t *testing.T) {
	l1, l2 := newMapCache(), newMapCache()
	_ = l1.Set(context.Background(), "k", []byte("from-l1"), 0)
	_ = l2.Set(context.Background(), "k", []byte("from-l2"), 0)

	c := New(l1, l2, time.Minute)
	got, ok, err := c.Get(context.Background(), "k")
	if err != nil || !ok {
		t.Fatalf("Get failed: ok=%v err=%v", ok, err)
	}
	if string(got) != "from-l1" {
		t.Errorf("expected from-l1, got %q", got)
	}
}

func TestGetBackfillsL1FromL2(t *testing.T) {
	l1, l2 := newMapCache(), newMapCache()
	_ = l2.Set(context.Background(), "k", []byte("remote"), 0)

	c := New(l1, l2, time.Minute)
	got, ok, err := c.Get(context.Background(), "k")
	if err != nil || !ok {
		t.Fatalf("Get failed: ok=%v err=%v", ok, err)
	}
	if string(got) != "remote" {
		t.Errorf("expected remote, got %q", got)
	}

	if v, ok, _ := l1.Get(context.Background(), "k"); !ok || string(v) != "remote" {
		t.Error("expected L1 backfill after L2 hit")
	}
}

func TestDeleteClearsBothLevels(t *testing.T) {
	l1, l2 := newMapCache(), newMapCache()
	c := New(l1, l2, time.Minute)
	_ = c.Set(context.Background(), "k", []byte("v"), 0)

	if err := c.Delete(context.Background(), "k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok, _ := l1.Get(context.Background(), "k"); ok {
		t.Error("expected L1 cleared")
	}
	if _, ok, _ := l2.Get(context.Background(), "k"); ok {
		t.Error("expected L2 cleared")
	}
}
