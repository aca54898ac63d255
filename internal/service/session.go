package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/titanchat/titan/internal/adapter/ws"
	"github.com/titanchat/titan/internal/config"
	"github.com/titanchat/titan/internal/domain"
	"github.com/titanchat/titan/internal/domain/session"
	"github.com/titanchat/titan/internal/logger"
	"github.com/titanchat/titan/internal/port/broadcast"
)

// Sessions is the in-memory session registry: admission control with a
// capacity limit, idle timeout, and periodic cleanup.
type Sessions struct {
	mu       sync.Mutex
	active   map[string]*session.Session
	max      int
	timeout  time.Duration
	created  int
	expired  int
	rejected int

	broadcaster broadcast.Broadcaster
	log         *slog.Logger
	now         func() time.Time
}

// NewSessions creates the session registry.
func NewSessions(cfg config.Session, b broadcast.Broadcaster, log *slog.Logger) *Sessions {
	if b == nil {
		b = broadcast.NopBroadcaster{}
	}
	return &Sessions{
		active:      make(map[string]*session.Session),
		max:         cfg.MaxActive,
		timeout:     cfg.Timeout,
		broadcaster: b,
		log:         log,
		now:         time.Now,
	}
}

// CanAdmit reports whether a new session would currently be accepted.
func (s *Sessions) CanAdmit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active) < s.max
}

// Create admits a new session. Returns domain.ErrCapacity when the registry
// is full.
func (s *Sessions) Create(ctx context.Context, remoteIP string) (*session.Session, error) {
	s.mu.Lock()
	if len(s.active) >= s.max {
		s.rejected++
		s.mu.Unlock()
		return nil, fmt.Errorf("session registry full (%d active): %w", s.max, domain.ErrCapacity)
	}

	now := s.now()
	sess := &session.Session{
		ID:        uuid.NewString(),
		RemoteIP:  remoteIP,
		CreatedAt: now,
		LastSeen:  now,
	}
	s.active[sess.ID] = sess
	s.created++
	active := len(s.active)
	s.mu.Unlock()

	s.log.Info("session created", "session", logger.SessionTag(sess.ID), "active", active)
	s.broadcaster.BroadcastEvent(ctx, ws.EventSessionCreated, ws.SessionEvent{
		SessionID: logger.SessionTag(sess.ID), Active: active,
	})
	return sess, nil
}

// Get returns an active session by ID.
func (s *Sessions) Get(id string) (*session.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.active[id]
	return sess, ok
}

// Touch refreshes a session's idle timer. Unknown IDs are ignored.
func (s *Sessions) Touch(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.active[id]; ok {
		sess.LastSeen = s.now()
	}
}

// SetDefaultThinking records the session's preferred thinking mode.
func (s *Sessions) SetDefaultThinking(id string, thinking bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.active[id]; ok {
		sess.DefaultThinking = thinking
	}
}

// End removes a session. Returns false when it was not active.
func (s *Sessions) End(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.active[id]; !ok {
		return false
	}
	delete(s.active, id)
	s.log.Info("session ended", "session", logger.SessionTag(id))
	return true
}

// Status summarizes the registry for the status endpoint.
func (s *Sessions) Status() session.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return session.Status{
		Active:    len(s.active),
		Max:       s.max,
		Available: len(s.active) < s.max,
		Created:   s.created,
		Expired:   s.expired,
		Rejected:  s.rejected,
	}
}

// StartCleanup spawns the periodic expiry sweep. Returns a stop function.
func (s *Sessions) StartCleanup(interval time.Duration) func() {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep(ctx)
			}
		}
	}()
	return cancel
}

// sweep expires sessions idle longer than the timeout.
func (s *Sessions) sweep(ctx context.Context) {
	cutoff := s.now().Add(-s.timeout)

	s.mu.Lock()
	var expired []string
	for id, sess := range s.active {
		if sess.LastSeen.Before(cutoff) {
			delete(s.active, id)
			s.expired++
			expired = append(expired, id)
		}
	}
	active := len(s.active)
	s.mu.Unlock()

	for _, id := range expired {
		s.log.Info("session expired", "session", logger.SessionTag(id))
		s.broadcaster.BroadcastSessionEvent(ctx, id, ws.EventSessionExpired, ws.SessionEvent{
			SessionID: logger.SessionTag(id), Active: active,
		})
	}
}
