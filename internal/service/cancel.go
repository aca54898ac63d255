package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/titanchat/titan/internal/logger"
)

// Cancels tracks the cancel functions of in-flight exchanges so a client
// can abort them by request ID or all at once for its session.
// Cancellation itself travels as context through the exchange pipeline.
type Cancels struct {
	mu        sync.Mutex
	byRequest map[string]context.CancelFunc
	bySession map[string]map[string]struct{}

	log *slog.Logger
}

// NewCancels creates the cancellation registry.
func NewCancels(log *slog.Logger) *Cancels {
	return &Cancels{
		byRequest: make(map[string]context.CancelFunc),
		bySession: make(map[string]map[string]struct{}),
		log:       log,
	}
}

// Register derives a cancellable context for one exchange and tracks it.
// The returned release function must be called when the exchange ends.
func (c *Cancels) Register(ctx context.Context, sessionID, requestID string) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	c.byRequest[requestID] = cancel
	if c.bySession[sessionID] == nil {
		c.bySession[sessionID] = make(map[string]struct{})
	}
	c.bySession[sessionID][requestID] = struct{}{}
	c.mu.Unlock()

	release := func() {
		c.remove(sessionID, requestID)
		cancel()
	}
	return ctx, release
}

// Cancel aborts one exchange by request ID. Returns false when no such
// exchange is in flight.
func (c *Cancels) Cancel(requestID string) bool {
	c.mu.Lock()
	cancel, ok := c.byRequest[requestID]
	c.mu.Unlock()

	if !ok {
		return false
	}
	c.log.Info("request cancelled", "request_id", requestID)
	cancel()
	return true
}

// CancelSession aborts every in-flight exchange of a session and returns
// how many were cancelled.
func (c *Cancels) CancelSession(sessionID string) int {
	c.mu.Lock()
	var cancels []context.CancelFunc
	for requestID := range c.bySession[sessionID] {
		if cancel, ok := c.byRequest[requestID]; ok {
			cancels = append(cancels, cancel)
		}
	}
	c.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	if len(cancels) > 0 {
		c.log.Info("session requests cancelled",
			"session", logger.SessionTag(sessionID), "count", len(cancels))
	}
	return len(cancels)
}

// Active returns the number of tracked in-flight exchanges.
func (c *Cancels) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byRequest)
}

func (c *Cancels) remove(sessionID, requestID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byRequest, requestID)
	if reqs := c.bySession[sessionID]; reqs != nil {
		delete(reqs, requestID)
		if len(reqs) == 0 {
			delete(c.bySession, sessionID)
		}
	}
}
