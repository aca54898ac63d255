// Package cache defines the port interface for the result cache.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-value cache keyed by opaque fingerprint strings.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
