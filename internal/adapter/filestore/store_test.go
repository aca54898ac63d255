package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/titanchat/titan/internal/domain"
	"github.com/titanchat/titan/internal/domain/chat"
	"github.com/titanchat/titan/internal/domain/feedback"
)

const testSession = "0a1b2c3d-4e5f-6789-abcd-ef0123456789"

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir(), 3)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func testChat(id string, updated time.Time) *chat.Chat {
	return &chat.Chat{
		ID:        id,
		SessionID: testSession,
		Title:     "Chat " + id,
		Messages: []chat.Message{
			{Role: chat.RoleUser, Content: "hello"},
			{Role: chat.RoleAssistant, Content: "hi there"},
		},
		CreatedAt: updated.Add(-time.Minute),
		UpdatedAt: updated,
	}
}

func TestSaveAndGetChat(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := testChat("c1", time.Now())
	if err := s.SaveChat(ctx, c); err != nil {
		t.Fatalf("SaveChat: %v", err)
	}

	got, err := s.GetChat(ctx, testSession, "c1")
	if err != nil {
		t.Fatalf("GetChat: %v", err)
	}
	if got.Title != c.Title || len(got.Messages) != 2 {
		t.Errorf("got %+v, want saved chat back", got)
	}
}

func TestSaveChatReplacesExisting(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := testChat("c1", time.Now())
	if err := s.SaveChat(ctx, c); err != nil {
		t.Fatalf("SaveChat: %v", err)
	}

	c.Title = "renamed"
	c.Messages = append(c.Messages, chat.Message{Role: chat.RoleUser, Content: "more"})
	if err := s.SaveChat(ctx, c); err != nil {
		t.Fatalf("SaveChat update: %v", err)
	}

	chats, err := s.ListChats(ctx, testSession)
	if err != nil {
		t.Fatalf("ListChats: %v", err)
	}
	if len(chats) != 1 {
		t.Fatalf("expected 1 chat after update, got %d", len(chats))
	}
	if chats[0].Title != "renamed" || len(chats[0].Messages) != 3 {
		t.Errorf("update not persisted: %+v", chats[0])
	}
}

func TestListChatsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	for i, id := range []string{"old", "new", "mid"} {
		offsets := []time.Duration{-2 * time.Hour, 0, -time.Hour}
		if err := s.SaveChat(ctx, testChat(id, now.Add(offsets[i]))); err != nil {
			t.Fatalf("SaveChat %s: %v", id, err)
		}
	}

	chats, err := s.ListChats(ctx, testSession)
	if err != nil {
		t.Fatalf("ListChats: %v", err)
	}
	want := []string{"new", "mid", "old"}
	for i, id := range want {
		if chats[i].ID != id {
			t.Errorf("chats[%d].ID = %q, want %q", i, chats[i].ID, id)
		}
	}
}

func TestDeleteChat(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveChat(ctx, testChat("c1", time.Now())); err != nil {
		t.Fatalf("SaveChat: %v", err)
	}
	if err := s.DeleteChat(ctx, testSession, "c1"); err != nil {
		t.Fatalf("DeleteChat: %v", err)
	}

	if _, err := s.GetChat(ctx, testSession, "c1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.DeleteChat(ctx, testSession, "c1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestClearSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		if err := s.SaveChat(ctx, testChat(id, time.Now())); err != nil {
			t.Fatalf("SaveChat: %v", err)
		}
	}
	if err := s.ClearSession(ctx, testSession); err != nil {
		t.Fatalf("ClearSession: %v", err)
	}

	chats, err := s.ListChats(ctx, testSession)
	if err != nil {
		t.Fatalf("ListChats: %v", err)
	}
	if len(chats) != 0 {
		t.Errorf("expected empty history, got %d chats", len(chats))
	}
}

func TestRejectsBadSessionIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	bad := []string{
		"",
		"short",
		"../../../../etc/passwd",
		"abc/def-ghi-jkl",
		"has space in it",
		".hidden-session-id",
		"id;rm -rf --",
	}
	for _, id := range bad {
		c := testChat("c1", time.Now())
		c.SessionID = id
		if err := s.SaveChat(ctx, c); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("SaveChat(%q): expected ErrValidation, got %v", id, err)
		}
		if _, err := s.ListChats(ctx, id); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("ListChats(%q): expected ErrValidation, got %v", id, err)
		}
	}
}

func TestSessionIsolation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveChat(ctx, testChat("c1", time.Now())); err != nil {
		t.Fatalf("SaveChat: %v", err)
	}

	other := "ffffffff-0000-1111-2222-333344445555"
	if _, err := s.GetChat(ctx, other, "c1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound from other session, got %v", err)
	}
}

func TestBackupRotation(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, 2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	// Each save after the first takes a backup of the previous file.
	for i := 0; i < 5; i++ {
		c := testChat("c1", time.Now())
		c.Title = "rev"
		if err := s.SaveChat(ctx, c); err != nil {
			t.Fatalf("SaveChat #%d: %v", i, err)
		}
	}

	backupDir := filepath.Join(dir, "backups", testSession[:8])
	entries, err := os.ReadDir(backupDir)
	if err != nil {
		t.Fatalf("read backup dir: %v", err)
	}
	if len(entries) > 2 {
		t.Errorf("expected at most 2 backups, got %d", len(entries))
	}
}

func TestFeedbackStoreAppends(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFeedbackStore(dir)
	if err != nil {
		t.Fatalf("NewFeedbackStore: %v", err)
	}
	ctx := context.Background()

	for i, msg := range []string{"first", "second"} {
		f := &feedback.Feedback{
			ID:        "fb" + string(rune('0'+i)),
			Type:      "suggestion",
			Message:   msg,
			CreatedAt: time.Now(),
		}
		if err := fs.Save(ctx, f); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	target := filepath.Join(dir, "feedbacks", "feedbacks_"+time.Now().UTC().Format("200601")+".json")
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read feedback file: %v", err)
	}
	var records []feedback.Feedback
	if err := json.Unmarshal(data, &records); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(records) != 2 || records[1].Message != "second" {
		t.Errorf("records = %+v, want both feedbacks in order", records)
	}
}
