package service

import (
	"regexp"
	"strings"
)

// Free-text entering or leaving the model is never trusted: retrieved
// context, user input, and thinking output all pass through here before
// they touch a prompt or a client.

const (
	contextMaxLen   = 300
	thinkingMaxLen  = 1000
	userInputMaxLen = 10000

	noContextSentinel = "No context available."
	invalidMessage    = "Invalid message."

	// Markers use only characters the allow-list keeps, so a wrapped
	// context survives re-sanitization intact.
	contextStartMarker = "---- VALIDATED USER CONTEXT ----"
	contextEndMarker   = "---- END USER CONTEXT ----"
)

// contextDisallowed matches every character outside the safe set: letters,
// digits, whitespace and basic punctuation.
var contextDisallowed = regexp.MustCompile(`[^a-zA-Z0-9\s.,!?\-]`)

// denylistWords are dropped from context and thinking text entirely.
var denylistWords = map[string]struct{}{
	"ignore": {}, "system": {}, "admin": {}, "root": {}, "execute": {},
	"jailbreak": {}, "bypass": {}, "override": {}, "prompt": {}, "instruction": {},
	"hacker": {}, "sudo": {}, "evil": {}, "malicious": {}, "exploit": {},
	"backdoor": {}, "shell": {}, "administrator": {}, "superuser": {},
	"unrestricted": {}, "unlimited": {},
}

// blockedCommandPrefixes are system-command lookalikes a user message must
// not start with.
var blockedCommandPrefixes = []string{
	"/system", "/admin", "/root", "/sudo",
	"/execute", "/eval", "/run", "/cmd",
}

// sanitizeContext reduces retrieved context to the safe character set,
// caps it at 300 characters, drops denylisted words, and wraps the result
// in explicit markers. Already-wrapped input is returned unchanged, so the
// transform is stable under repeated application.
func sanitizeContext(text string) string {
	if strings.TrimSpace(text) == "" {
		return noContextSentinel
	}
	if isWrappedContext(text) {
		return text
	}

	clean := filterWords(contextDisallowed.ReplaceAllString(text, ""), contextMaxLen)
	return contextStartMarker + "\n" + clean + "\n" + contextEndMarker
}

// sanitizeThinking applies the context filtering with a 1000-character cap
// and no markers. Empty input stays empty.
func sanitizeThinking(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	return filterWords(contextDisallowed.ReplaceAllString(text, ""), thinkingMaxLen)
}

// sanitizeUserInput bounds the message size and defuses system-command
// prefixes while preserving the rest of the message. Never errors.
func sanitizeUserInput(text string) string {
	if strings.TrimSpace(text) == "" {
		return invalidMessage
	}

	if r := []rune(text); len(r) > userInputMaxLen {
		text = string(r[:userInputMaxLen]) + "... [TRUNCATED]"
	}

	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)
	for _, cmd := range blockedCommandPrefixes {
		if strings.HasPrefix(lower, cmd) {
			return "[BLOCKED COMMAND] " + trimmed[len(cmd):]
		}
	}
	return text
}

func isWrappedContext(text string) bool {
	trimmed := strings.TrimSpace(text)
	return strings.HasPrefix(trimmed, contextStartMarker) &&
		strings.HasSuffix(trimmed, contextEndMarker)
}

// filterWords truncates to max bytes, lowercases, and drops denylisted
// tokens, rejoining with single spaces. The input is ASCII by the time it
// gets here, so byte truncation cannot split a rune.
func filterWords(text string, maxLen int) string {
	if len(text) > maxLen {
		text = text[:maxLen]
	}

	words := strings.Fields(strings.ToLower(text))
	kept := words[:0]
	for _, w := range words {
		if _, banned := denylistWords[w]; !banned {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}
