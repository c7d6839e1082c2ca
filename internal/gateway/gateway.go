package gateway

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"unicode"

	"github.com/deskmate/deskmate-be/pkg/llm"
	"github.com/deskmate/deskmate-be/pkg/openai"
)

var (
	// ErrInvalidConfiguration is returned when a required configuration
	// string is empty at construction time
	ErrInvalidConfiguration = errors.New("invalid gateway configuration")

	// ErrProviderCall wraps any failure from the remote provider during
	// embedding or chat completion operations
	ErrProviderCall = errors.New("provider call failed")
)

// Default token limits applied when a configured value does not parse
const (
	DefaultMaxConversationTokens = 100
	DefaultMaxCompletionTokens   = 500
	DefaultMaxEmbeddingTokens    = 8000
)

// Chat completion sampling parameters, fixed per operation
const (
	answerTemperature = 0.3
	answerTopP        = 0.95

	summaryTemperature = 0.0
	summaryTopP        = 1.0
	summaryMaxTokens   = 200
)

// answerTemplate is prepended to the supplied document text to form the
// system message of a grounded chat completion.
const answerTemplate = "You are a helpful support assistant. Answer the user's question using only the reference documents below. If the documents do not contain the answer, say that you don't know. Keep answers short and factual.\n\nDocuments:\n"

// summaryTemplate asks the model for a one-or-two-word conversation label.
const summaryTemplate = "Summarize the following conversation in one or two words. Respond with only those words, nothing else."

// Config holds the constructor inputs for the gateway. Every string field is
// required except the three token limits, which fall back to defaults when
// they do not parse as integers.
type Config struct {
	Endpoint        string
	APIKey          string
	EmbeddingModel  string
	CompletionModel string

	MaxConversationTokens string
	MaxCompletionTokens   string
	MaxEmbeddingTokens    string

	Logger *log.Logger // Default: log.Default()
}

// EmbeddingResult is the outcome of a single embedding request
type EmbeddingResult struct {
	Vector      []float64
	TotalTokens int
}

// CompletionResult is the outcome of a grounded chat completion request
type CompletionResult struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// Gateway is a thin client for a hosted LLM provider. Its configuration is
// immutable after construction and a single instance is safe for concurrent
// use.
type Gateway struct {
	client          llm.Client
	embeddingModel  string
	completionModel string

	maxConversationTokens int
	maxCompletionTokens   int
	maxEmbeddingTokens    int

	logger *log.Logger
}

// New validates the configuration and returns a gateway holding a configured
// provider connection. Transport retry (exponential backoff, 2s base, up to
// 10 attempts) is a property of the underlying HTTP client.
func New(cfg Config) (*Gateway, error) {
	required := []struct {
		name  string
		value string
	}{
		{"endpoint", cfg.Endpoint},
		{"api key", cfg.APIKey},
		{"embedding model", cfg.EmbeddingModel},
		{"completion model", cfg.CompletionModel},
	}
	for _, field := range required {
		if field.value == "" {
			return nil, fmt.Errorf("%w: %s must not be empty", ErrInvalidConfiguration, field.name)
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	client := openai.NewHTTPClient(openai.Config{
		APIKey:   cfg.APIKey,
		Endpoint: cfg.Endpoint,
	})

	return &Gateway{
		client:                client,
		embeddingModel:        cfg.EmbeddingModel,
		completionModel:       cfg.CompletionModel,
		maxConversationTokens: parseLimit(cfg.MaxConversationTokens, DefaultMaxConversationTokens),
		maxCompletionTokens:   parseLimit(cfg.MaxCompletionTokens, DefaultMaxCompletionTokens),
		maxEmbeddingTokens:    parseLimit(cfg.MaxEmbeddingTokens, DefaultMaxEmbeddingTokens),
		logger:                logger,
	}, nil
}

// parseLimit converts a numeric-limit string, falling back to the default on
// any parse failure. Lenient on purpose: a bad limit should not prevent the
// service from starting.
func parseLimit(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

// MaxConversationTokens returns the configured conversation token budget
func (g *Gateway) MaxConversationTokens() int { return g.maxConversationTokens }

// MaxCompletionTokens returns the configured completion token budget
func (g *Gateway) MaxCompletionTokens() int { return g.maxCompletionTokens }

// MaxEmbeddingTokens returns the configured embedding token budget
func (g *Gateway) MaxEmbeddingTokens() int { return g.maxEmbeddingTokens }

// GenerateEmbedding embeds the input text and returns the resulting vector
// along with the provider-reported token count. The session ID is an opaque
// attribution tag forwarded to the provider.
func (g *Gateway) GenerateEmbedding(ctx context.Context, sessionID, input string) (*EmbeddingResult, error) {
	resp, err := g.client.CreateEmbeddings(ctx, llm.EmbeddingRequest{
		Model: g.embeddingModel,
		Input: []string{input},
		User:  sessionID,
	})
	if err != nil {
		g.logger.Printf("Gateway: embedding generation failed: %v", err)
		return nil, fmt.Errorf("%w: embedding generation: %w", ErrProviderCall, err)
	}

	if len(resp.Data) == 0 {
		err := errors.New("provider returned no embedding data")
		g.logger.Printf("Gateway: embedding generation failed: %v", err)
		return nil, fmt.Errorf("%w: embedding generation: %w", ErrProviderCall, err)
	}

	return &EmbeddingResult{
		Vector:      resp.Data[0].Embedding,
		TotalTokens: resp.Usage.TotalTokens,
	}, nil
}

// GenerateChatCompletion answers a user prompt grounded in the supplied
// document text. It returns the generated text and the provider-reported
// prompt and completion token counts.
func (g *Gateway) GenerateChatCompletion(ctx context.Context, sessionID, prompt, documents string) (*CompletionResult, error) {
	resp, err := g.client.ChatCompletion(ctx, llm.ChatRequest{
		Model: g.completionModel,
		Messages: []llm.ChatMessage{
			{Role: "system", Content: answerTemplate + documents},
			{Role: "user", Content: prompt},
		},
		Temperature:      answerTemperature,
		TopP:             answerTopP,
		FrequencyPenalty: 0,
		PresencePenalty:  0,
		MaxTokens:        g.maxCompletionTokens,
		User:             sessionID,
	})
	if err != nil {
		g.logger.Printf("Gateway: chat completion failed: %v", err)
		return nil, fmt.Errorf("%w: chat completion: %w", ErrProviderCall, err)
	}

	if len(resp.Choices) == 0 {
		err := errors.New("provider returned no choices")
		g.logger.Printf("Gateway: chat completion failed: %v", err)
		return nil, fmt.Errorf("%w: chat completion: %w", ErrProviderCall, err)
	}

	return &CompletionResult{
		Text:             resp.Choices[0].Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

// Summarize compresses prior conversation text into a one-or-two-word label,
// stripped of everything that is not a letter, digit, or whitespace.
// Provider errors propagate to the caller unmodified.
func (g *Gateway) Summarize(ctx context.Context, sessionID, prompt string) (string, error) {
	resp, err := g.client.ChatCompletion(ctx, llm.ChatRequest{
		Model: g.completionModel,
		Messages: []llm.ChatMessage{
			{Role: "system", Content: summaryTemplate},
			{Role: "user", Content: prompt},
		},
		Temperature: summaryTemperature,
		TopP:        summaryTopP,
		MaxTokens:   summaryMaxTokens,
		User:        sessionID,
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", nil
	}

	return stripSpecialCharacters(resp.Choices[0].Message.Content), nil
}

// stripSpecialCharacters removes every rune that is not a letter, digit, or
// whitespace, preserving internal whitespace.
func stripSpecialCharacters(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, s)
}
