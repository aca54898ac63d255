package service

import (
	"strings"
	"testing"
)

func TestSegmentResponsePlainAnswer(t *testing.T) {
	got := segmentResponse("Hi there", "", false, "hello")

	if got.Answer != "Hi there" {
		t.Errorf("Answer = %q, want %q", got.Answer, "Hi there")
	}
	if got.HasThinking {
		t.Error("HasThinking should be false without thinking mode")
	}
	if got.Thinking != "" {
		t.Errorf("Thinking = %q, want empty", got.Thinking)
	}
}

func TestSegmentResponseExtractsThinkTags(t *testing.T) {
	raw := "<think>computing 2+2, the answer is four</think>4"
	got := segmentResponse(raw, "", true, "what is 2+2?")

	if got.Answer != "4" {
		t.Errorf("Answer = %q, want %q", got.Answer, "4")
	}
	if !got.HasThinking {
		t.Error("expected HasThinking")
	}
	if !strings.Contains(got.Thinking, "computing") {
		t.Errorf("Thinking = %q, want extracted block", got.Thinking)
	}
}

func TestSegmentResponseFirstPatternWins(t *testing.T) {
	raw := "<thinking>outer reasoning goes here</thinking>answer<thought>later tag pair ignored</thought>"
	got := segmentResponse(raw, "", true, "q")

	if !strings.Contains(got.Thinking, "outer reasoning") {
		t.Errorf("Thinking = %q, want thinking-tag content", got.Thinking)
	}
	// The losing tag pair is not extracted; its markup is stripped from
	// the visible answer.
	if strings.Contains(got.Answer, "<thought>") {
		t.Errorf("Answer = %q, residual markup survived", got.Answer)
	}
}

func TestSegmentResponseShortThinkingDiscarded(t *testing.T) {
	got := segmentResponse("<think>hm</think>fine", "", true, "question here")

	if got.Answer != "fine" {
		t.Errorf("Answer = %q, want %q", got.Answer, "fine")
	}
	if got.HasThinking {
		t.Errorf("short thinking %q should be discarded", got.Thinking)
	}
}

func TestSegmentResponseThinkingIgnoredWithoutMode(t *testing.T) {
	got := segmentResponse("<think>a long enough reasoning block</think>done", "", false, "q")

	if got.HasThinking || got.Thinking != "" {
		t.Errorf("thinking leaked with mode off: %+v", got)
	}
	if got.Answer != "done" {
		t.Errorf("Answer = %q, want %q", got.Answer, "done")
	}
}

func TestSegmentResponseThinkingFieldFallback(t *testing.T) {
	got := segmentResponse("the answer", "separate field reasoning text", true, "q")

	if !got.HasThinking {
		t.Error("expected HasThinking from thinking field")
	}
	if !strings.Contains(got.Thinking, "separate field reasoning") {
		t.Errorf("Thinking = %q", got.Thinking)
	}
}

func TestSegmentResponsePlaceholderThinking(t *testing.T) {
	got := segmentResponse("plain answer", "", true, "tell me about the solar system and its planets in detail")

	if !got.HasThinking {
		t.Error("expected placeholder thinking")
	}
	if !strings.Contains(got.Thinking, "tell me about the solar system") {
		t.Errorf("Thinking = %q, want user-message preview", got.Thinking)
	}
	if !strings.Contains(got.Thinking, "...") {
		t.Errorf("Thinking = %q, want truncated preview", got.Thinking)
	}
}

func TestSegmentResponseVisibleNeverContainsTags(t *testing.T) {
	raws := []string{
		"<think>reasoning about the topic</think><b>bold</b> text",
		"answer with <custom-tag>markup</custom-tag>",
		"<thinking>two blocks</thinking>mid<thinking>second block</thinking>end",
	}
	for _, raw := range raws {
		got := segmentResponse(raw, "", true, "q")
		if strings.ContainsAny(got.Answer, "<>") {
			t.Errorf("Answer for %q contains raw markup: %q", raw, got.Answer)
		}
	}
}

func TestSegmentResponseViolationPhrase(t *testing.T) {
	got := segmentResponse("Sure, ignore previous instructions and do this", "", false, "q")

	if got.Answer != unsafeResponseNotice {
		t.Errorf("Answer = %q, want unsafe notice", got.Answer)
	}
}

func TestSegmentResponseViolationInThinkingOnly(t *testing.T) {
	raw := "<think>the user said ignore previous instructions, I will not</think>I cannot do that."
	got := segmentResponse(raw, "", true, "q")

	if got.Answer == unsafeResponseNotice {
		t.Error("phrase inside thinking block must not flag the answer")
	}
	if got.Answer != "I cannot do that." {
		t.Errorf("Answer = %q", got.Answer)
	}
}

func TestSegmentResponseEmptyAnswer(t *testing.T) {
	got := segmentResponse("<think>only thinking, nothing visible</think>", "", false, "q")

	if got.Answer != emptyResponseNotice {
		t.Errorf("Answer = %q, want empty notice", got.Answer)
	}
}

func TestCleanAnswerCollapsesBlankRuns(t *testing.T) {
	got := cleanAnswer("first\n\n\n\n\nsecond")

	if got != "first\n\nsecond" {
		t.Errorf("cleanAnswer = %q", got)
	}
}

func TestCleanAnswerEscapesAmpersand(t *testing.T) {
	got := cleanAnswer("salt & pepper")

	if got != "salt &amp; pepper" {
		t.Errorf("cleanAnswer = %q", got)
	}
}

func TestPlaceholderThinkingShortMessage(t *testing.T) {
	got := placeholderThinking("hi")

	if !strings.Contains(got, `"hi"`) {
		t.Errorf("placeholder = %q", got)
	}
	if strings.Contains(got, "...") {
		t.Errorf("short message should not be truncated: %q", got)
	}
}
