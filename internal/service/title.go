package service

import (
	"regexp"
	"strings"

	"github.com/titanchat/titan/internal/domain/chat"
)

const defaultChatTitle = "New Conversation"

// titleDisallowed strips everything but word characters, whitespace and
// light punctuation from a candidate title.
var titleDisallowed = regexp.MustCompile(`[^\w\s\-.,!?]`)

// GenerateTitle derives a chat title from the first user message: cleaned,
// capped at 30 characters with an ellipsis. Falls back to a fixed default
// when no usable message exists.
func GenerateTitle(messages []chat.Message) string {
	for _, m := range messages {
		if m.Role != chat.RoleUser || strings.TrimSpace(m.Content) == "" {
			continue
		}

		title := titleDisallowed.ReplaceAllString(m.Content, "")
		title = strings.Join(strings.Fields(title), " ")
		if len(title) <= 5 {
			continue
		}

		if r := []rune(title); len(r) > 30 {
			title = string(r[:30]) + "..."
		}
		return title
	}
	return defaultChatTitle
}
