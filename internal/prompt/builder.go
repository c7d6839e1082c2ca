package prompt

import (
	"fmt"
	"strings"

	"github.com/deskmate/deskmate-be/internal/memory"
	"github.com/deskmate/deskmate-be/internal/retrieval"
)

// Request contains everything needed to build the gateway inputs for one turn
type Request struct {
	UserMessage string
	History     []memory.Message
	Matches     []retrieval.Match
}

// Builder renders conversation history and retrieved document chunks into the
// prompt and document blocks the gateway expects.
type Builder struct{}

// NewBuilder creates a new prompt builder
func NewBuilder() *Builder {
	return &Builder{}
}

// BuildPrompt renders prior turns plus the current question into a single
// prompt block. History entries are labeled so the model can follow the
// dialogue; the current question always comes last.
func (b *Builder) BuildPrompt(req Request) string {
	var sb strings.Builder
	sb.Grow(1024)

	for _, msg := range req.History {
		label := "User"
		if msg.Role == "assistant" {
			label = "Assistant"
		}
		sb.WriteString(label)
		sb.WriteString(": ")
		sb.WriteString(msg.Content)
		sb.WriteString("\n")
	}

	if sb.Len() > 0 {
		sb.WriteString("\n")
	}
	sb.WriteString(req.UserMessage)

	return sb.String()
}

// BuildDocuments renders retrieved chunks into the document block appended to
// the gateway's instructional template. Chunks are numbered in rank order
// with their source title so answers can cite where they came from.
func (b *Builder) BuildDocuments(matches []retrieval.Match) string {
	if len(matches) == 0 {
		return "(no matching documents found)"
	}

	var sb strings.Builder
	sb.Grow(2048)

	for i, match := range matches {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(fmt.Sprintf("[%d] %s\n", i+1, match.DocumentTitle))
		sb.WriteString(match.Content)
	}

	return sb.String()
}

// BuildSummaryInput flattens the conversation for the gateway's summarize
// operation, which names a conversation in one or two words.
func (b *Builder) BuildSummaryInput(history []memory.Message) string {
	var sb strings.Builder

	for _, msg := range history {
		sb.WriteString(msg.Role)
		sb.WriteString(": ")
		sb.WriteString(msg.Content)
		sb.WriteString("\n")
	}

	return sb.String()
}
