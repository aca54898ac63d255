// Package ristretto adapts dgraph-io/ristretto to the cache port as the
// in-process level of the context cache.
package ristretto

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// Context blocks are a few hundred bytes each, so size the admission
// counters for entries of roughly that magnitude.
const assumedEntrySize = 256

// Cache holds byte values with their length as cost.
type Cache struct {
	inner *ristretto.Cache[string, []byte]
}

// New creates the cache with maxBytes as the total value budget.
func New(maxBytes int64) (*Cache, error) {
	counters := maxBytes / assumedEntrySize * 10
	if counters < 1024 {
		counters = 1024
	}

	inner, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: counters,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{inner: inner}, nil
}

// Get returns the cached value for key.
func (c *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	value, ok := c.inner.Get(key)
	if !ok {
		return nil, false, nil
	}
	return value, true, nil
}

// Set stores value with its byte length as cost. Admission may reject the
// entry; that is a cache miss later, not an error now.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.inner.SetWithTTL(key, value, int64(len(value)), ttl)
	return nil
}

// Delete removes key.
func (c *Cache) Delete(_ context.Context, key string) error {
	c.inner.Del(key)
	return nil
}

// Close releases the cache's internal goroutines.
func (c *Cache) Close() {
	c.inner.Close()
}
