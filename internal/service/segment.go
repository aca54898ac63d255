package service

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/titanchat/titan/internal/domain/chat"
)

// minThinkingLen is the threshold below which an extracted thinking block
// is considered noise and discarded.
const minThinkingLen = 10

const unsafeResponseNotice = "I detected a potentially unsafe response. Please try rephrasing your question."

const emptyResponseNotice = "Sorry, there was a problem processing the response."

// thinkingPatterns are tried in priority order; the first tag pair that
// matches wins and no further pattern is tried.
var thinkingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?s)<think>(.*?)</think>`),
	regexp.MustCompile(`(?s)<thinking>(.*?)</thinking>`),
	regexp.MustCompile(`(?s)<thought>(.*?)</thought>`),
}

// residualTags matches any remaining markup in the visible answer.
var residualTags = regexp.MustCompile(`<[^>]+>`)

// blankRuns collapses three or more consecutive newlines.
var blankRuns = regexp.MustCompile(`\n{3,}`)

// leadingBreaks strips leading blank lines and <br> runs left over after
// tag removal.
var leadingBreaks = regexp.MustCompile(`(?i)^\s*(<br\s*/?>\s*)*[\r\n]*`)

// violationPhrases mark a visible answer as unsafe when present. The scan
// runs after thinking extraction, so a phrase inside the thinking block
// alone does not trigger it.
var violationPhrases = []string{
	"ignore previous instructions",
	"i am now a hacker",
	"executing system command",
	"bypassing security",
}

// htmlEscaper neutralizes markup without touching quotes.
var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// segmentResponse splits raw model output into a visible answer and an
// optional thinking block. thinkingField carries the model's separate
// thinking field, used when no tag pair is embedded in the content.
// userMessage feeds the placeholder thinking when thinking was requested
// but none was produced.
func segmentResponse(raw, thinkingField string, thinkingMode bool, userMessage string) chat.SegmentedResponse {
	thinking, visible, found := extractThinking(raw)

	if !found && strings.TrimSpace(thinkingField) != "" {
		thinking = strings.TrimSpace(thinkingField)
		found = true
	}

	visible = cleanAnswer(visible)

	if found {
		thinking = sanitizeThinking(thinking)
		if thinkingMode && len(thinking) > minThinkingLen {
			return chat.SegmentedResponse{Answer: visible, Thinking: thinking, HasThinking: true}
		}
		return chat.SegmentedResponse{Answer: visible}
	}

	if thinkingMode {
		return chat.SegmentedResponse{
			Answer:      visible,
			Thinking:    placeholderThinking(userMessage),
			HasThinking: true,
		}
	}
	return chat.SegmentedResponse{Answer: visible}
}

// extractThinking finds the first thinking tag pair and returns the inner
// text plus the input with every block of that tag removed.
func extractThinking(raw string) (thinking, rest string, found bool) {
	for _, pattern := range thinkingPatterns {
		m := pattern.FindStringSubmatch(raw)
		if m == nil {
			continue
		}
		return strings.TrimSpace(m[1]), pattern.ReplaceAllString(raw, ""), true
	}
	return "", raw, false
}

// cleanAnswer normalizes the visible answer: residual markup stripped,
// HTML escaped, leading breaks removed, blank-line runs collapsed. A
// violation phrase replaces the whole answer with a generic notice.
func cleanAnswer(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return emptyResponseNotice
	}

	lower := strings.ToLower(text)
	for _, phrase := range violationPhrases {
		if strings.Contains(lower, phrase) {
			return unsafeResponseNotice
		}
	}

	text = leadingBreaks.ReplaceAllString(text, "")
	text = residualTags.ReplaceAllString(text, "")
	text = htmlEscaper.Replace(text)
	text = blankRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// placeholderThinking synthesizes a short thinking string from the user
// message so the UI has something to show when thinking was explicitly
// requested but the model produced none.
func placeholderThinking(userMessage string) string {
	preview := userMessage
	if r := []rune(preview); len(r) > 50 {
		preview = string(r[:50]) + "..."
	}
	return fmt.Sprintf("Analyzing the question: %q. I will answer in a clear and useful way.", preview)
}
