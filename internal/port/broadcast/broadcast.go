// Package broadcast defines the port interface for pushing events to
// connected UI clients.
package broadcast

import "context"

// Broadcaster fans events out to connected clients. Implementations must
// not block the caller on slow clients.
type Broadcaster interface {
	// BroadcastEvent sends a global event to every connected client.
	BroadcastEvent(ctx context.Context, eventType string, payload any)
	// BroadcastSessionEvent sends an event to the clients of one session.
	BroadcastSessionEvent(ctx context.Context, sessionID, eventType string, payload any)
}

// NopBroadcaster discards all events. Used in tests and when no UI transport
// is mounted.
type NopBroadcaster struct{}

// BroadcastEvent implements Broadcaster.
func (NopBroadcaster) BroadcastEvent(context.Context, string, any) {}

// BroadcastSessionEvent implements Broadcaster.
func (NopBroadcaster) BroadcastSessionEvent(context.Context, string, string, any) {}
