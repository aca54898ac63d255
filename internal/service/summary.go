package service

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/titanchat/titan/internal/domain/chat"
)

const (
	emptyConversationSummary   = "Empty conversation"
	unclearConversationSummary = "Conversation without clear context"
	summaryTopicLimit          = 5
	summaryUserMessageLimit    = 3
	summaryPreviewLen          = 50
)

// SummarizeConversation condenses a conversation into one line: up to five
// topic words drawn from the opening user messages, or a preview of the
// first message when no usable topics exist.
func SummarizeConversation(messages []chat.Message) string {
	if len(messages) == 0 {
		return emptyConversationSummary
	}

	if topics := topicWords(messages); len(topics) > 0 {
		return "Topics: " + strings.Join(topics, ", ")
	}

	if preview := messages[0].Content; preview != "" {
		if r := []rune(preview); len(r) > summaryPreviewLen {
			preview = string(r[:summaryPreviewLen])
		}
		return "Start: " + preview + "..."
	}
	return unclearConversationSummary
}

// topicWords scans the first few user messages for topic candidates: the
// opening words of each, lowercased, keeping only purely alphabetic tokens
// long enough to carry meaning.
func topicWords(messages []chat.Message) []string {
	var topics []string
	seen := 0
	for _, m := range messages {
		if m.Role != chat.RoleUser {
			continue
		}

		words := strings.Fields(strings.ToLower(m.Content))
		if len(words) > 5 {
			words = words[:5]
		}
		for _, w := range words {
			if utf8.RuneCountInString(w) > 3 && isAlphabetic(w) {
				topics = append(topics, w)
				if len(topics) == summaryTopicLimit {
					return topics
				}
			}
		}

		seen++
		if seen == summaryUserMessageLimit {
			break
		}
	}
	return topics
}

func isAlphabetic(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
