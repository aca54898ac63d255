package service

import (
	"testing"

	"github.com/titanchat/titan/internal/domain/chat"
)

func TestGenerateTitle(t *testing.T) {
	cases := []struct {
		name     string
		messages []chat.Message
		want     string
	}{
		{
			"short question",
			[]chat.Message{
				{Role: chat.RoleSystem, Content: "system"},
				{Role: chat.RoleUser, Content: "What is the capital of France?"},
			},
			"What is the capital of France?",
		},
		{
			"long message truncated",
			[]chat.Message{
				{Role: chat.RoleUser, Content: "Explain the difference between goroutines and operating system threads"},
			},
			"Explain the difference between...",
		},
		{
			"markup stripped",
			[]chat.Message{
				{Role: chat.RoleUser, Content: "<b>hello</b> world {x}"},
			},
			"bhellob world x",
		},
		{
			"whitespace collapsed",
			[]chat.Message{
				{Role: chat.RoleUser, Content: "hello\n\n   world of Go"},
			},
			"hello world of Go",
		},
		{
			"too short skipped",
			[]chat.Message{
				{Role: chat.RoleUser, Content: "hi"},
				{Role: chat.RoleUser, Content: "tell me about Go interfaces"},
			},
			"tell me about Go interfaces",
		},
		{
			"no user message",
			[]chat.Message{
				{Role: chat.RoleSystem, Content: "system"},
				{Role: chat.RoleAssistant, Content: "Hello!"},
			},
			defaultChatTitle,
		},
		{
			"empty conversation",
			nil,
			defaultChatTitle,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := GenerateTitle(tc.messages); got != tc.want {
				t.Errorf("GenerateTitle = %q, want %q", got, tc.want)
			}
		})
	}
}
