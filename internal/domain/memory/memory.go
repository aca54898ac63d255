// Package memory provides the domain model for per-session key-value memory
// written and read by the model's memory tools.
package memory

import (
	"errors"
	"time"
)

// Entry is one remembered fact, unique per (session, key).
type Entry struct {
	SessionID string    `json:"-"`
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultCategory is used when the model omits a category.
const DefaultCategory = "general"

// Validate checks that an entry can be stored.
func (e *Entry) Validate() error {
	if e.SessionID == "" {
		return errors.New("session id is required")
	}
	if e.Key == "" {
		return errors.New("key is required")
	}
	if e.Value == "" {
		return errors.New("value is required")
	}
	return nil
}

// Query filters stored entries. Empty fields match everything within the
// session.
type Query struct {
	SessionID string
	Key       string
	Category  string
}
