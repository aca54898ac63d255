// Package natskv adapts a NATS JetStream KeyValue bucket to the cache port.
// It serves as the shared level of the context cache so multiple server
// instances see the same entries.
package natskv

import (
	"context"
	"errors"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// Cache reads and writes one KV bucket. Expiry is a property of the bucket,
// configured at creation; per-entry TTLs are ignored.
type Cache struct {
	bucket jetstream.KeyValue
}

// New wraps an existing KV bucket.
func New(bucket jetstream.KeyValue) *Cache {
	return &Cache{bucket: bucket}
}

// Get returns the stored value, reporting a missing key as a miss rather
// than an error.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	entry, err := c.bucket.Get(ctx, key)
	switch {
	case errors.Is(err, jetstream.ErrKeyNotFound):
		return nil, false, nil
	case err != nil:
		return nil, false, err
	}
	return entry.Value(), true, nil
}

// Set stores the value under key. The bucket-level TTL governs expiry.
func (c *Cache) Set(ctx context.Context, key string, value []byte, _ time.Duration) error {
	_, err := c.bucket.Put(ctx, key, value)
	return err
}

// Delete removes the key; deleting an absent key is not an error.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.bucket.Delete(ctx, key); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return err
	}
	return nil
}
