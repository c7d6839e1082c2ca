package chat

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/deskmate/deskmate-be/internal/circuitbreaker"
	"github.com/deskmate/deskmate-be/internal/db"
	"github.com/deskmate/deskmate-be/internal/fallback"
	"github.com/deskmate/deskmate-be/internal/gateway"
	"github.com/deskmate/deskmate-be/internal/memory"
	"github.com/deskmate/deskmate-be/internal/prompt"
	"github.com/deskmate/deskmate-be/internal/retrieval"
)

// ErrConversationNotFound is returned when the referenced conversation does
// not exist or belongs to another user
var ErrConversationNotFound = errors.New("conversation not found")

// LLMGateway is the slice of the gateway the engine drives
type LLMGateway interface {
	GenerateEmbedding(ctx context.Context, sessionID, input string) (*gateway.EmbeddingResult, error)
	GenerateChatCompletion(ctx context.Context, sessionID, prompt, documents string) (*gateway.CompletionResult, error)
	Summarize(ctx context.Context, sessionID, prompt string) (string, error)
}

// Store is the slice of the database the engine needs
type Store interface {
	GetConversation(ctx context.Context, id string) (*db.Conversation, error)
	CreateConversation(ctx context.Context, userID string, title *string) (*db.Conversation, error)
	SetConversationTitle(ctx context.Context, id, title string) error
	SaveMessage(ctx context.Context, conversationID, role, content string, promptTokens, responseTokens int) (*db.Message, error)
	GetUserChunks(ctx context.Context, userID string) ([]db.Chunk, map[string]string, error)
}

// Reply is the engine's answer to one user message
type Reply struct {
	ConversationID string            `json:"conversation_id"`
	Content        string            `json:"content"`
	Fallback       bool              `json:"fallback,omitempty"`
	Action         string            `json:"action,omitempty"`
	PromptTokens   int               `json:"prompt_tokens,omitempty"`
	ResponseTokens int               `json:"response_tokens,omitempty"`
	Sources        []retrieval.Match `json:"sources,omitempty"`
}

// Config tunes the engine. Zero-value fields are replaced with defaults.
type Config struct {
	RequestTimeout   time.Duration // Default: 30s
	BreakerThreshold int           // Consecutive failures before opening. Default: 5
	BreakerCooldown  time.Duration // Default: 30s
	Logger           *log.Logger   // Default: log.Default()
}

// Engine orchestrates one chat turn: retrieve grounding chunks for the
// question, build the prompt, call the provider, persist both sides of the
// exchange, and title new conversations.
type Engine struct {
	gateway LLMGateway
	store   Store
	memory  *memory.Manager
	prompts *prompt.Builder
	ranker  *retrieval.Ranker
	breaker *circuitbreaker.Breaker
	timeout time.Duration
	logger  *log.Logger
}

// NewEngine creates an engine wired to the given gateway and store
func NewEngine(gw LLMGateway, store Store, mem *memory.Manager, ranker *retrieval.Ranker, cfg Config) *Engine {
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.BreakerThreshold == 0 {
		cfg.BreakerThreshold = 5
	}
	if cfg.BreakerCooldown == 0 {
		cfg.BreakerCooldown = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	return &Engine{
		gateway: gw,
		store:   store,
		memory:  mem,
		prompts: prompt.NewBuilder(),
		ranker:  ranker,
		breaker: circuitbreaker.New(cfg.BreakerThreshold, cfg.BreakerCooldown),
		timeout: cfg.RequestTimeout,
		logger:  cfg.Logger,
	}
}

// HandleMessage processes one user message and returns the assistant's reply.
// A provider outage never surfaces as an error to the caller: the reply
// carries a canned fallback instead, with Fallback set.
func (e *Engine) HandleMessage(ctx context.Context, userID, conversationID, text string) (*Reply, error) {
	conv, err := e.resolveConversation(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}

	if _, err := e.store.SaveMessage(ctx, conv.ID, "user", text, 0, 0); err != nil {
		return nil, err
	}

	history := e.memory.History(userID)
	matches := e.retrieve(ctx, userID, conv.ID, text)

	promptText := e.prompts.BuildPrompt(prompt.Request{
		UserMessage: text,
		History:     history,
		Matches:     matches,
	})
	documents := e.prompts.BuildDocuments(matches)

	var result *gateway.CompletionResult
	callErr := e.breaker.Do(func() error {
		tctx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()

		var err error
		result, err = e.gateway.GenerateChatCompletion(tctx, conv.ID, promptText, documents)
		return err
	})
	if callErr != nil {
		return e.fallbackReply(ctx, conv.ID, callErr)
	}

	e.memory.AddMessage(userID, memory.Message{Role: "user", Content: text, Timestamp: time.Now()})
	e.memory.AddMessage(userID, memory.Message{Role: "assistant", Content: result.Text, Timestamp: time.Now()})

	if _, err := e.store.SaveMessage(ctx, conv.ID, "assistant", result.Text, result.PromptTokens, result.CompletionTokens); err != nil {
		return nil, err
	}

	if conv.Title == nil {
		e.titleConversation(ctx, userID, conv.ID)
	}

	return &Reply{
		ConversationID: conv.ID,
		Content:        result.Text,
		PromptTokens:   result.PromptTokens,
		ResponseTokens: result.CompletionTokens,
		Sources:        matches,
	}, nil
}

// ClearMemory drops the user's short-term history, e.g. on logout
func (e *Engine) ClearMemory(userID string) {
	e.memory.Clear(userID)
}

// BreakerState reports the provider circuit breaker state for health checks
func (e *Engine) BreakerState() circuitbreaker.State {
	return e.breaker.State()
}

func (e *Engine) resolveConversation(ctx context.Context, userID, conversationID string) (*db.Conversation, error) {
	if conversationID == "" {
		return e.store.CreateConversation(ctx, userID, nil)
	}

	conv, err := e.store.GetConversation(ctx, conversationID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, err
	}
	if conv.UserID != userID {
		return nil, ErrConversationNotFound
	}

	return conv, nil
}

// retrieve embeds the question and ranks the user's stored chunks against it.
// Retrieval is best effort: on any failure the turn proceeds ungrounded.
func (e *Engine) retrieve(ctx context.Context, userID, sessionID, text string) []retrieval.Match {
	var embedding *gateway.EmbeddingResult
	err := e.breaker.Do(func() error {
		tctx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()

		var err error
		embedding, err = e.gateway.GenerateEmbedding(tctx, sessionID, text)
		return err
	})
	if err != nil {
		e.logger.Printf("Engine: query embedding failed, answering without documents: %v", err)
		return nil
	}

	chunks, titles, err := e.store.GetUserChunks(ctx, userID)
	if err != nil {
		e.logger.Printf("Engine: loading chunks failed, answering without documents: %v", err)
		return nil
	}

	candidates := make([]retrieval.Candidate, 0, len(chunks))
	for _, chunk := range chunks {
		candidates = append(candidates, retrieval.Candidate{
			ChunkID:       chunk.ID,
			DocumentID:    chunk.DocumentID,
			DocumentTitle: titles[chunk.DocumentID],
			Content:       chunk.Content,
			Embedding:     chunk.Embedding,
		})
	}

	return e.ranker.Rank(embedding.Vector, candidates)
}

// fallbackReply converts a provider failure into a canned assistant reply.
// The fallback is persisted like a normal assistant message so the
// conversation record stays complete.
func (e *Engine) fallbackReply(ctx context.Context, conversationID string, callErr error) (*Reply, error) {
	var resp fallback.Response
	switch {
	case errors.Is(callErr, circuitbreaker.ErrOpen):
		resp = fallback.GetCircuitOpenResponse()
	case errors.Is(callErr, context.DeadlineExceeded):
		resp = fallback.GetTimeoutResponse()
	default:
		resp = fallback.GetProviderErrorResponse()
	}

	e.logger.Printf("Engine: provider call failed, sending fallback: %v", callErr)

	if _, err := e.store.SaveMessage(ctx, conversationID, "assistant", resp.Content, 0, 0); err != nil {
		e.logger.Printf("Engine: saving fallback message failed: %v", err)
	}

	return &Reply{
		ConversationID: conversationID,
		Content:        resp.Content,
		Fallback:       true,
		Action:         resp.Action,
	}, nil
}

// titleConversation names an untitled conversation from its history. Title
// generation is cosmetic, so every failure is logged and swallowed.
func (e *Engine) titleConversation(ctx context.Context, userID, conversationID string) {
	input := e.prompts.BuildSummaryInput(e.memory.History(userID))

	title, err := e.gateway.Summarize(ctx, conversationID, input)
	if err != nil {
		e.logger.Printf("Engine: conversation titling failed: %v", err)
		return
	}
	if title == "" {
		return
	}

	if err := e.store.SetConversationTitle(ctx, conversationID, title); err != nil {
		e.logger.Printf("Engine: storing conversation title failed: %v", err)
	}
}
