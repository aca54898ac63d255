// Package tiered layers an in-process cache over a shared one for the
// user-context blocks: reads prefer the local level and promote shared hits
// into it, writes and invalidations go to both.
package tiered

import (
	"context"
	"time"

	"github.com/titanchat/titan/internal/port/cache"
)

// Cache is the two-level composite.
type Cache struct {
	local    cache.Cache
	shared   cache.Cache
	localTTL time.Duration
}

// New combines a local and a shared cache level. localTTL bounds how long a
// promoted entry may outlive its shared original.
func New(local, shared cache.Cache, localTTL time.Duration) *Cache {
	return &Cache{local: local, shared: shared, localTTL: localTTL}
}

// Get reads the local level first and falls back to the shared one,
// promoting a shared hit into the local level.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if data, ok, err := c.local.Get(ctx, key); err != nil || ok {
		return data, ok, err
	}

	data, ok, err := c.shared.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	// Promotion failure only costs future lookups a shared-level round trip.
	_ = c.local.Set(ctx, key, data, c.localTTL)
	return data, true, nil
}

// Set writes through to both levels.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.local.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	return c.shared.Set(ctx, key, value, ttl)
}

// Delete invalidates both levels.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.local.Delete(ctx, key); err != nil {
		return err
	}
	return c.shared.Delete(ctx, key)
}
