package llm

import (
	"context"
)

// Client interface for LLM API interactions
type Client interface {
	// ChatCompletion sends a non-streaming chat completion request
	ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// CreateEmbeddings sends a batch embedding request
	CreateEmbeddings(ctx context.Context, req EmbeddingRequest) (*EmbeddingResponse, error)
}
