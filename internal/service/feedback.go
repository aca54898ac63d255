package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/titanchat/titan/internal/domain"
	"github.com/titanchat/titan/internal/domain/feedback"
	"github.com/titanchat/titan/internal/logger"
)

// FeedbackStore persists feedback records.
type FeedbackStore interface {
	Save(ctx context.Context, f *feedback.Feedback) error
}

// Feedbacks validates and stores user feedback submissions.
type Feedbacks struct {
	store FeedbackStore
	log   *slog.Logger
}

// NewFeedbacks creates the feedback service.
func NewFeedbacks(store FeedbackStore, log *slog.Logger) *Feedbacks {
	return &Feedbacks{store: store, log: log}
}

// Submit validates and persists one feedback record.
func (f *Feedbacks) Submit(ctx context.Context, sessionID string, req feedback.CreateRequest) (*feedback.Feedback, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}

	record := &feedback.Feedback{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Type:      req.Type,
		Message:   req.Message,
		Rating:    req.Rating,
		CreatedAt: time.Now().UTC(),
	}
	if err := f.store.Save(ctx, record); err != nil {
		return nil, fmt.Errorf("save feedback: %w", err)
	}

	f.log.Info("feedback received",
		"type", record.Type,
		"rating", record.Rating,
		"session", logger.SessionTag(sessionID))
	return record, nil
}
