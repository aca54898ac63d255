package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/titanchat/titan/internal/domain/memory"
	"github.com/titanchat/titan/internal/logger"
	"github.com/titanchat/titan/internal/port/cache"
	"github.com/titanchat/titan/internal/port/memorystore"
)

// maxContextFacts bounds how many stored facts feed the context block.
const maxContextFacts = 5

const (
	firstConversationContext = "First conversation - nothing known about the user yet."
	contextErrorFallback     = "Error accessing stored data."
)

// Contexts builds the "known facts about the user" block injected into the
// system prompt. Lookups are cached behind the tiered cache and deduplicated
// with singleflight; memory writes invalidate the cached entry.
type Contexts struct {
	memory memorystore.Store
	cache  cache.Cache
	ttl    time.Duration
	group  singleflight.Group
	log    *slog.Logger
}

// NewContexts creates the context builder.
func NewContexts(mem memorystore.Store, c cache.Cache, ttl time.Duration, log *slog.Logger) *Contexts {
	return &Contexts{memory: mem, cache: c, ttl: ttl, log: log}
}

// UserContext returns the context block for a session. Failures degrade to
// a fixed fallback string; the exchange must not fail because context
// lookup did.
func (c *Contexts) UserContext(ctx context.Context, sessionID string) string {
	key := cacheKey(sessionID)

	if data, ok, err := c.cache.Get(ctx, key); err == nil && ok {
		return string(data)
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		text, err := c.build(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if err := c.cache.Set(ctx, key, []byte(text), c.ttl); err != nil {
			c.log.Warn("context cache set failed", "error", err)
		}
		return text, nil
	})
	if err != nil {
		c.log.Warn("user context lookup failed",
			"session", logger.SessionTag(sessionID), "error", err)
		return contextErrorFallback
	}
	return v.(string)
}

// Invalidate drops the cached context of a session after a memory write.
func (c *Contexts) Invalidate(ctx context.Context, sessionID string) {
	if err := c.cache.Delete(ctx, cacheKey(sessionID)); err != nil {
		c.log.Warn("context cache invalidation failed",
			"session", logger.SessionTag(sessionID), "error", err)
	}
}

func (c *Contexts) build(ctx context.Context, sessionID string) (string, error) {
	entries, err := c.memory.Search(ctx, memory.Query{SessionID: sessionID})
	if err != nil {
		return "", fmt.Errorf("search memories: %w", err)
	}
	if len(entries) == 0 {
		return firstConversationContext, nil
	}
	if len(entries) > maxContextFacts {
		entries = entries[:maxContextFacts]
	}

	var sb strings.Builder
	sb.WriteString("Known facts about the user:\n")
	for _, e := range entries {
		fmt.Fprintf(&sb, "- %s: %s\n", e.Key, e.Value)
	}
	return sb.String(), nil
}

// cacheKey builds the cache key for a session's context block. Dotted form,
// because the L2 bucket restricts the key alphabet.
func cacheKey(sessionID string) string {
	return "context." + sessionID
}
