package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/titanchat/titan/internal/domain/feedback"
)

// FeedbackStore appends feedback records to monthly JSON files under
// <dir>/feedbacks/.
type FeedbackStore struct {
	dir string

	mu sync.Mutex
}

// NewFeedbackStore creates a feedback store rooted at dir.
func NewFeedbackStore(dir string) (*FeedbackStore, error) {
	abs, err := filepath.Abs(filepath.Join(dir, "feedbacks"))
	if err != nil {
		return nil, fmt.Errorf("resolve feedback dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o700); err != nil {
		return nil, fmt.Errorf("create feedback dir: %w", err)
	}
	return &FeedbackStore{dir: abs}, nil
}

// Save appends one feedback record to the current month's file.
func (s *FeedbackStore) Save(_ context.Context, f *feedback.Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	target := filepath.Join(s.dir, "feedbacks_"+time.Now().UTC().Format("200601")+".json")

	var records []feedback.Feedback
	data, err := os.ReadFile(target)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &records); err != nil {
			return fmt.Errorf("decode feedback file: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return fmt.Errorf("read feedback file: %w", err)
	}

	records = append(records, *f)

	out, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode feedback: %w", err)
	}

	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, out, 0o600); err != nil {
		return fmt.Errorf("write feedback: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("replace feedback file: %w", err)
	}
	return nil
}
