package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/titanchat/titan/internal/domain"
	"github.com/titanchat/titan/internal/domain/memory"
)

// Store implements memorystore.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Save upserts a memory entry keyed by (session, key). On conflict the
// value and category are replaced and updated_at is bumped.
func (s *Store) Save(ctx context.Context, e *memory.Entry) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("save memory: %w: %w", domain.ErrValidation, err)
	}
	category := e.Category
	if category == "" {
		category = memory.DefaultCategory
	}

	const q = `
		INSERT INTO memories (session_id, key, value, category)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id, key)
		DO UPDATE SET value = EXCLUDED.value, category = EXCLUDED.category, updated_at = now()
		RETURNING category, created_at, updated_at`

	err := s.pool.QueryRow(ctx, q, e.SessionID, e.Key, e.Value, category).
		Scan(&e.Category, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save memory %s: %w", e.Key, err)
	}
	return nil
}

// Search returns entries matching the query, newest first. Key matching is
// a case-insensitive substring match so the model can retrieve facts
// without knowing the exact key it stored.
func (s *Store) Search(ctx context.Context, q memory.Query) ([]memory.Entry, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT session_id, key, value, category, created_at, updated_at
		FROM memories WHERE session_id = $1`)
	args := []any{q.SessionID}

	if q.Key != "" {
		args = append(args, "%"+q.Key+"%")
		fmt.Fprintf(&sb, " AND key ILIKE $%d", len(args))
	}
	if q.Category != "" {
		args = append(args, q.Category)
		fmt.Fprintf(&sb, " AND category = $%d", len(args))
	}
	sb.WriteString(" ORDER BY updated_at DESC")

	rows, err := s.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search memories: %w", err)
	}
	defer rows.Close()

	var result []memory.Entry
	for rows.Next() {
		var e memory.Entry
		if err := rows.Scan(&e.SessionID, &e.Key, &e.Value, &e.Category, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// Delete removes one entry by exact key.
func (s *Store) Delete(ctx context.Context, sessionID, key string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM memories WHERE session_id = $1 AND key = $2`, sessionID, key)
	if err != nil {
		return fmt.Errorf("delete memory %s: %w", key, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete memory %s: %w", key, domain.ErrNotFound)
	}
	return nil
}

// Categories lists the distinct categories used by a session, alphabetically.
func (s *Store) Categories(ctx context.Context, sessionID string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT category FROM memories WHERE session_id = $1 ORDER BY category`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list memory categories: %w", err)
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}
