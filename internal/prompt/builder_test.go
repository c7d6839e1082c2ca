package prompt

import (
	"strings"
	"testing"

	"github.com/deskmate/deskmate-be/internal/memory"
	"github.com/deskmate/deskmate-be/internal/retrieval"
)

func TestBuildPrompt_NoHistory(t *testing.T) {
	b := NewBuilder()

	got := b.BuildPrompt(Request{UserMessage: "How do I reset my password?"})
	if got != "How do I reset my password?" {
		t.Errorf("BuildPrompt() = %q", got)
	}
}

func TestBuildPrompt_WithHistory(t *testing.T) {
	b := NewBuilder()

	got := b.BuildPrompt(Request{
		UserMessage: "And on mobile?",
		History: []memory.Message{
			{Role: "user", Content: "How do I reset my password?"},
			{Role: "assistant", Content: "Use the account settings page."},
		},
	})

	want := "User: How do I reset my password?\nAssistant: Use the account settings page.\n\nAnd on mobile?"
	if got != want {
		t.Errorf("BuildPrompt() = %q, want %q", got, want)
	}
}

func TestBuildDocuments(t *testing.T) {
	b := NewBuilder()

	got := b.BuildDocuments([]retrieval.Match{
		{DocumentTitle: "Password FAQ", Content: "Passwords reset via settings."},
		{DocumentTitle: "Mobile Guide", Content: "The mobile app mirrors the web flow."},
	})

	if !strings.HasPrefix(got, "[1] Password FAQ\n") {
		t.Errorf("first chunk not numbered with title: %q", got)
	}
	if !strings.Contains(got, "[2] Mobile Guide\n") {
		t.Errorf("second chunk missing: %q", got)
	}
	if !strings.Contains(got, "Passwords reset via settings.") {
		t.Errorf("chunk content missing: %q", got)
	}
}

func TestBuildDocuments_Empty(t *testing.T) {
	b := NewBuilder()

	got := b.BuildDocuments(nil)
	if got != "(no matching documents found)" {
		t.Errorf("BuildDocuments(nil) = %q", got)
	}
}

func TestBuildSummaryInput(t *testing.T) {
	b := NewBuilder()

	got := b.BuildSummaryInput([]memory.Message{
		{Role: "user", Content: "my bike is broken"},
		{Role: "assistant", Content: "see the repair guide"},
	})

	want := "user: my bike is broken\nassistant: see the repair guide\n"
	if got != want {
		t.Errorf("BuildSummaryInput() = %q, want %q", got, want)
	}
}
