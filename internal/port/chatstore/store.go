// Package chatstore defines the port interface for persisted chat history.
package chatstore

import (
	"context"

	"github.com/titanchat/titan/internal/domain/chat"
)

// Store persists chats keyed by session and chat ID.
type Store interface {
	// SaveChat creates or replaces a chat record within its session.
	SaveChat(ctx context.Context, c *chat.Chat) error
	// GetChat returns one chat by ID, scoped to the session.
	GetChat(ctx context.Context, sessionID, chatID string) (*chat.Chat, error)
	// ListChats returns all chats of a session, newest first.
	ListChats(ctx context.Context, sessionID string) ([]chat.Chat, error)
	// DeleteChat removes one chat from a session.
	DeleteChat(ctx context.Context, sessionID, chatID string) error
	// ClearSession removes all chats of a session.
	ClearSession(ctx context.Context, sessionID string) error
}
