// Package feedback provides the domain model for user feedback submissions.
package feedback

import (
	"errors"
	"strings"
	"time"
)

// Valid feedback types.
var ValidTypes = []string{"bug", "suggestion", "praise", "other"}

// Feedback is one submitted feedback record.
type Feedback struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id,omitempty"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Rating    int       `json:"rating,omitempty"` // 1-5, 0 = not given
	CreatedAt time.Time `json:"created_at"`
}

// CreateRequest is the request body for submitting feedback.
type CreateRequest struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Rating  int    `json:"rating,omitempty"`
}

// Validate checks a CreateRequest.
func (r *CreateRequest) Validate() error {
	if strings.TrimSpace(r.Message) == "" {
		return errors.New("message is required")
	}
	if len(r.Message) > 5000 {
		return errors.New("message too long (max 5000 chars)")
	}
	ok := false
	for _, t := range ValidTypes {
		if r.Type == t {
			ok = true
			break
		}
	}
	if !ok {
		return errors.New("type must be one of: bug, suggestion, praise, other")
	}
	if r.Rating < 0 || r.Rating > 5 {
		return errors.New("rating must be between 1 and 5")
	}
	return nil
}
