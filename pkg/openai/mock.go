package openai

import (
	"context"
	"sync"

	"github.com/deskmate/deskmate-be/pkg/llm"
)

// MockClient implements the llm.Client interface for testing
type MockClient struct {
	mu sync.Mutex

	// ChatFunc allows customizing the chat completion behavior
	ChatFunc func(context.Context, llm.ChatRequest) (*llm.ChatResponse, error)

	// EmbeddingsFunc allows customizing the embeddings behavior
	EmbeddingsFunc func(context.Context, llm.EmbeddingRequest) (*llm.EmbeddingResponse, error)

	// Tracking for assertions
	ChatCalls      []llm.ChatRequest
	EmbeddingCalls []llm.EmbeddingRequest
}

// Ensure MockClient implements llm.Client
var _ llm.Client = (*MockClient)(nil)

// NewMockClient creates a new mock client with default behavior
func NewMockClient() *MockClient {
	return &MockClient{
		ChatCalls:      make([]llm.ChatRequest, 0),
		EmbeddingCalls: make([]llm.EmbeddingRequest, 0),
	}
}

// ChatCompletion implements llm.Client.ChatCompletion
func (m *MockClient) ChatCompletion(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	m.mu.Lock()
	m.ChatCalls = append(m.ChatCalls, req)
	m.mu.Unlock()

	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, req)
	}

	// Default mock behavior
	return &llm.ChatResponse{
		ID:      "mock-response-1",
		Object:  "chat.completion",
		Created: 1234567890,
		Model:   req.Model,
		Choices: []llm.ChatChoice{
			{
				Index: 0,
				Message: llm.ChatMessage{
					Role:    "assistant",
					Content: "This is a mock response.",
				},
				FinishReason: "stop",
			},
		},
		Usage: llm.Usage{
			PromptTokens:     10,
			CompletionTokens: 5,
			TotalTokens:      15,
		},
	}, nil
}

// CreateEmbeddings implements llm.Client.CreateEmbeddings
func (m *MockClient) CreateEmbeddings(ctx context.Context, req llm.EmbeddingRequest) (*llm.EmbeddingResponse, error) {
	m.mu.Lock()
	m.EmbeddingCalls = append(m.EmbeddingCalls, req)
	m.mu.Unlock()

	if m.EmbeddingsFunc != nil {
		return m.EmbeddingsFunc(ctx, req)
	}

	// Default mock behavior: one small vector per input
	data := make([]llm.Embedding, len(req.Input))
	for i := range req.Input {
		data[i] = llm.Embedding{
			Index:     i,
			Embedding: []float64{0.1, 0.2, 0.3},
		}
	}

	return &llm.EmbeddingResponse{
		Object: "list",
		Model:  req.Model,
		Data:   data,
		Usage: llm.Usage{
			PromptTokens: 3,
			TotalTokens:  3,
		},
	}, nil
}

// Reset clears the call history
func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ChatCalls = make([]llm.ChatRequest, 0)
	m.EmbeddingCalls = make([]llm.EmbeddingRequest, 0)
}

// GetChatCallCount returns the number of chat calls made
func (m *MockClient) GetChatCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ChatCalls)
}

// GetEmbeddingCallCount returns the number of embedding calls made
func (m *MockClient) GetEmbeddingCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.EmbeddingCalls)
}
