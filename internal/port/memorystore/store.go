// Package memorystore defines the port interface for per-session tool memory.
package memorystore

import (
	"context"

	"github.com/titanchat/titan/internal/domain/memory"
)

// Store persists memory entries written by the model's memory tools.
type Store interface {
	// Save upserts an entry keyed by (session, key).
	Save(ctx context.Context, e *memory.Entry) error
	// Search returns entries matching the query, newest first.
	Search(ctx context.Context, q memory.Query) ([]memory.Entry, error)
	// Delete removes one entry. Returns domain.ErrNotFound when absent.
	Delete(ctx context.Context, sessionID, key string) error
	// Categories lists the distinct categories used by a session.
	Categories(ctx context.Context, sessionID string) ([]string, error)
}
