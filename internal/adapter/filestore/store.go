// Package filestore implements the chat history port on the local
// filesystem, one directory per session.
package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/titanchat/titan/internal/domain"
	"github.com/titanchat/titan/internal/domain/chat"
)

const (
	chatsFilename = "chats.json"
	backupPrefix  = "backup_"
)

var sessionIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Store persists chats as JSON files under <dir>/sessions/<prefix>/ with
// rotating backups under <dir>/backups/<prefix>/. The prefix is the first
// 8 characters of the validated session ID.
type Store struct {
	sessionsDir string
	backupsDir  string
	maxBackups  int

	mu sync.Mutex
}

// New creates a file-backed chat store rooted at dir. maxBackups bounds how
// many backup files are kept per session; 0 disables backups.
func New(dir string, maxBackups int) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve history dir: %w", err)
	}
	s := &Store{
		sessionsDir: filepath.Join(abs, "sessions"),
		backupsDir:  filepath.Join(abs, "backups"),
		maxBackups:  maxBackups,
	}
	if err := os.MkdirAll(s.sessionsDir, 0o700); err != nil {
		return nil, fmt.Errorf("create sessions dir: %w", err)
	}
	return s, nil
}

// validateSessionID enforces the session ID shape before it touches any
// path. IDs are UUID-like: 10 to 50 chars of [a-zA-Z0-9_-].
func validateSessionID(sessionID string) error {
	if len(sessionID) < 10 || len(sessionID) > 50 {
		return fmt.Errorf("%w: session id length out of range", domain.ErrValidation)
	}
	if !sessionIDPattern.MatchString(sessionID) {
		return fmt.Errorf("%w: session id contains invalid characters", domain.ErrValidation)
	}
	return nil
}

// sessionDir returns the per-session directory under base, creating it when
// create is set. The resolved path must stay inside base.
func (s *Store) sessionDir(base, sessionID string, create bool) (string, error) {
	if err := validateSessionID(sessionID); err != nil {
		return "", err
	}

	dir := filepath.Join(base, sessionID[:8])
	resolved, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve session dir: %w", err)
	}
	if !strings.HasPrefix(resolved, base+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: session path escapes base directory", domain.ErrValidation)
	}

	if create {
		if err := os.MkdirAll(resolved, 0o700); err != nil {
			return "", fmt.Errorf("create session dir: %w", err)
		}
	}
	return resolved, nil
}

// load reads all chats of a session, newest first. A missing file means an
// empty history.
func (s *Store) load(sessionID string) ([]chat.Chat, error) {
	dir, err := s.sessionDir(s.sessionsDir, sessionID, false)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(dir, chatsFilename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read chat history: %w", err)
	}

	var chats []chat.Chat
	if err := json.Unmarshal(data, &chats); err != nil {
		return nil, fmt.Errorf("decode chat history: %w", err)
	}
	return chats, nil
}

// write persists the chat list atomically via a temp file rename, taking a
// backup of the previous file first.
func (s *Store) write(sessionID string, chats []chat.Chat) error {
	dir, err := s.sessionDir(s.sessionsDir, sessionID, true)
	if err != nil {
		return err
	}
	target := filepath.Join(dir, chatsFilename)

	if err := s.backup(sessionID, target); err != nil {
		return err
	}

	data, err := json.MarshalIndent(chats, "", "  ")
	if err != nil {
		return fmt.Errorf("encode chat history: %w", err)
	}

	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write chat history: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("replace chat history: %w", err)
	}
	return nil
}

// backup copies the current history file into the backups directory and
// prunes old backups beyond maxBackups.
func (s *Store) backup(sessionID, target string) error {
	if s.maxBackups <= 0 {
		return nil
	}
	data, err := os.ReadFile(target)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read for backup: %w", err)
	}

	dir, err := s.sessionDir(s.backupsDir, sessionID, true)
	if err != nil {
		return err
	}

	name := backupPrefix + time.Now().UTC().Format("20060102_150405.000000000") + ".json"
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o600); err != nil {
		return fmt.Errorf("write backup: %w", err)
	}

	return s.pruneBackups(dir)
}

func (s *Store) pruneBackups(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("list backups: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), backupPrefix) && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	if len(names) <= s.maxBackups {
		return nil
	}

	// Timestamped names sort chronologically.
	sort.Strings(names)
	for _, name := range names[:len(names)-s.maxBackups] {
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("prune backup %s: %w", name, err)
		}
	}
	return nil
}

// SaveChat creates or replaces a chat record within its session.
func (s *Store) SaveChat(_ context.Context, c *chat.Chat) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chats, err := s.load(c.SessionID)
	if err != nil {
		return err
	}

	replaced := false
	for i := range chats {
		if chats[i].ID == c.ID {
			chats[i] = *c
			replaced = true
			break
		}
	}
	if !replaced {
		chats = append(chats, *c)
	}

	return s.write(c.SessionID, chats)
}

// GetChat returns one chat by ID, scoped to the session.
func (s *Store) GetChat(_ context.Context, sessionID, chatID string) (*chat.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chats, err := s.load(sessionID)
	if err != nil {
		return nil, err
	}
	for i := range chats {
		if chats[i].ID == chatID {
			return &chats[i], nil
		}
	}
	return nil, fmt.Errorf("chat %s: %w", chatID, domain.ErrNotFound)
}

// ListChats returns all chats of a session, newest first.
func (s *Store) ListChats(_ context.Context, sessionID string) ([]chat.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chats, err := s.load(sessionID)
	if err != nil {
		return nil, err
	}
	sort.Slice(chats, func(i, j int) bool {
		return chats[i].UpdatedAt.After(chats[j].UpdatedAt)
	})
	return chats, nil
}

// DeleteChat removes one chat from a session.
func (s *Store) DeleteChat(_ context.Context, sessionID, chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chats, err := s.load(sessionID)
	if err != nil {
		return err
	}

	kept := chats[:0]
	for _, c := range chats {
		if c.ID != chatID {
			kept = append(kept, c)
		}
	}
	if len(kept) == len(chats) {
		return fmt.Errorf("chat %s: %w", chatID, domain.ErrNotFound)
	}
	return s.write(sessionID, kept)
}

// ClearSession removes all chats of a session.
func (s *Store) ClearSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir, err := s.sessionDir(s.sessionsDir, sessionID, false)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
