package openai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/deskmate/deskmate-be/pkg/llm"
)

func TestNewHTTPClient(t *testing.T) {
	tests := []struct {
		name           string
		config         Config
		wantEndpoint   string
		wantAPIVersion string
		wantPublic     bool
		wantTimeout    time.Duration
	}{
		{
			name: "default configuration",
			config: Config{
				APIKey: "test-key",
			},
			wantEndpoint:   "https://api.openai.com",
			wantAPIVersion: "2024-02-01",
			wantPublic:     true,
			wantTimeout:    120 * time.Second,
		},
		{
			name: "azure endpoint",
			config: Config{
				APIKey:   "test-key",
				Endpoint: "https://myorg.openai.azure.com/",
				Timeout:  60 * time.Second,
			},
			wantEndpoint:   "https://myorg.openai.azure.com",
			wantAPIVersion: "2024-02-01",
			wantPublic:     false,
			wantTimeout:    60 * time.Second,
		},
		{
			name: "custom api version",
			config: Config{
				APIKey:     "test-key",
				Endpoint:   "https://myorg.openai.azure.com",
				APIVersion: "2023-05-15",
			},
			wantEndpoint:   "https://myorg.openai.azure.com",
			wantAPIVersion: "2023-05-15",
			wantPublic:     false,
			wantTimeout:    120 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewHTTPClient(tt.config)

			if client == nil {
				t.Fatal("NewHTTPClient() returned nil")
			}
			if client.apiKey != tt.config.APIKey {
				t.Errorf("apiKey = %v, want %v", client.apiKey, tt.config.APIKey)
			}
			if client.endpoint != tt.wantEndpoint {
				t.Errorf("endpoint = %v, want %v", client.endpoint, tt.wantEndpoint)
			}
			if client.apiVersion != tt.wantAPIVersion {
				t.Errorf("apiVersion = %v, want %v", client.apiVersion, tt.wantAPIVersion)
			}
			if client.public != tt.wantPublic {
				t.Errorf("public = %v, want %v", client.public, tt.wantPublic)
			}
			if client.timeout != tt.wantTimeout {
				t.Errorf("timeout = %v, want %v", client.timeout, tt.wantTimeout)
			}
			if client.httpClient == nil {
				t.Fatal("httpClient is nil")
			}

			// The retry schedule's cumulative backoff exceeds any sane
			// single-request budget, so the budget must be applied per
			// attempt and the client must carry no overall timeout.
			if client.httpClient.Timeout != 0 {
				t.Errorf("httpClient.Timeout = %v, want 0 (would cut the retry schedule short)", client.httpClient.Timeout)
			}
			rt, ok := client.httpClient.Transport.(*retryTransport)
			if !ok {
				t.Fatalf("Transport = %T, want *retryTransport", client.httpClient.Transport)
			}
			if rt.attemptTimeout != tt.wantTimeout {
				t.Errorf("attemptTimeout = %v, want %v", rt.attemptTimeout, tt.wantTimeout)
			}
		})
	}
}

func TestRequestURL(t *testing.T) {
	tests := []struct {
		name      string
		config    Config
		operation string
		model     string
		want      string
	}{
		{
			name:      "public chat",
			config:    Config{APIKey: "k", Endpoint: "https://api.openai.com"},
			operation: "chat/completions",
			model:     "gpt-4o",
			want:      "https://api.openai.com/v1/chat/completions",
		},
		{
			name:      "azure chat deployment path",
			config:    Config{APIKey: "k", Endpoint: "https://myorg.openai.azure.com"},
			operation: "chat/completions",
			model:     "gpt-4o-deploy",
			want:      "https://myorg.openai.azure.com/openai/deployments/gpt-4o-deploy/chat/completions?api-version=2024-02-01",
		},
		{
			name:      "azure embeddings deployment path",
			config:    Config{APIKey: "k", Endpoint: "https://myorg.openai.azure.com", APIVersion: "2023-05-15"},
			operation: "embeddings",
			model:     "ada-002",
			want:      "https://myorg.openai.azure.com/openai/deployments/ada-002/embeddings?api-version=2023-05-15",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewHTTPClient(tt.config)
			if got := client.requestURL(tt.operation, tt.model); got != tt.want {
				t.Errorf("requestURL() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHTTPClient_ChatCompletion(t *testing.T) {
	tests := []struct {
		name           string
		serverResponse string
		statusCode     int
		req            llm.ChatRequest
		wantError      bool
		validateResp   func(*testing.T, *llm.ChatResponse)
	}{
		{
			name:       "successful completion",
			statusCode: http.StatusOK,
			serverResponse: `{
				"id": "chatcmpl-123",
				"object": "chat.completion",
				"created": 1234567890,
				"model": "gpt-4o",
				"choices": [{
					"index": 0,
					"message": {
						"role": "assistant",
						"content": "Hello! How can I help you today?"
					},
					"finish_reason": "stop"
				}],
				"usage": {
					"prompt_tokens": 10,
					"completion_tokens": 8,
					"total_tokens": 18
				}
			}`,
			req: llm.ChatRequest{
				Model:    "gpt-4o",
				Messages: []llm.ChatMessage{{Role: "user", Content: "Hello"}},
			},
			wantError: false,
			validateResp: func(t *testing.T, resp *llm.ChatResponse) {
				if resp.ID != "chatcmpl-123" {
					t.Errorf("ID = %v, want chatcmpl-123", resp.ID)
				}
				if len(resp.Choices) != 1 {
					t.Fatalf("Expected 1 choice, got %d", len(resp.Choices))
				}
				if resp.Choices[0].Message.Content != "Hello! How can I help you today?" {
					t.Errorf("Unexpected message content: %v", resp.Choices[0].Message.Content)
				}
				if resp.Usage.PromptTokens != 10 || resp.Usage.CompletionTokens != 8 {
					t.Errorf("Usage = %+v, want 10/8", resp.Usage)
				}
			},
		},
		{
			name:           "API error response",
			statusCode:     http.StatusBadRequest,
			serverResponse: `{"error": "Invalid request"}`,
			req: llm.ChatRequest{
				Model:    "gpt-4o",
				Messages: []llm.ChatMessage{{Role: "user", Content: "Hello"}},
			},
			wantError: true,
		},
		{
			name:           "malformed JSON response",
			statusCode:     http.StatusOK,
			serverResponse: `{invalid json}`,
			req: llm.ChatRequest{
				Model:    "gpt-4o",
				Messages: []llm.ChatMessage{{Role: "user", Content: "Hello"}},
			},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("Expected POST request, got %s", r.Method)
				}
				if r.Header.Get("Content-Type") != "application/json" {
					t.Errorf("Expected Content-Type application/json, got %s", r.Header.Get("Content-Type"))
				}

				w.WriteHeader(tt.statusCode)
				w.Write([]byte(tt.serverResponse))
			}))
			defer server.Close()

			client := NewHTTPClient(Config{
				APIKey:   "test-api-key",
				Endpoint: server.URL,
				Timeout:  5 * time.Second,
			})
			// Avoid the full backoff schedule when the test server fails on purpose
			client.httpClient.Transport = http.DefaultTransport

			ctx := context.Background()
			resp, err := client.ChatCompletion(ctx, tt.req)

			if tt.wantError {
				if err == nil {
					t.Error("Expected error, got nil")
				}
				return
			}

			if err != nil {
				t.Fatalf("ChatCompletion() error = %v", err)
			}
			if resp == nil {
				t.Fatal("Expected response, got nil")
			}
			if tt.validateResp != nil {
				tt.validateResp(t, resp)
			}
		})
	}
}

func TestHTTPClient_AuthModes(t *testing.T) {
	tests := []struct {
		name         string
		publicMode   bool
		wantHeader   string
		wantValue    string
		unwantHeader string
	}{
		{
			name:         "azure endpoint uses api-key header",
			publicMode:   false,
			wantHeader:   "api-key",
			wantValue:    "secret",
			unwantHeader: "Authorization",
		},
		{
			name:         "public endpoint uses bearer token",
			publicMode:   true,
			wantHeader:   "Authorization",
			wantValue:    "Bearer secret",
			unwantHeader: "api-key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotWant, gotUnwant string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotWant = r.Header.Get(tt.wantHeader)
				gotUnwant = r.Header.Get(tt.unwantHeader)
				w.WriteHeader(http.StatusOK)
				w.Write([]byte(`{"id":"x","object":"chat.completion","created":1,"model":"m","choices":[],"usage":{}}`))
			}))
			defer server.Close()

			client := NewHTTPClient(Config{APIKey: "secret", Endpoint: server.URL})
			// httptest URLs never contain the public host marker; force the mode
			client.public = tt.publicMode

			_, err := client.ChatCompletion(context.Background(), llm.ChatRequest{Model: "m"})
			if err != nil {
				t.Fatalf("ChatCompletion() error = %v", err)
			}

			if gotWant != tt.wantValue {
				t.Errorf("%s header = %q, want %q", tt.wantHeader, gotWant, tt.wantValue)
			}
			if gotUnwant != "" {
				t.Errorf("%s header should be empty, got %q", tt.unwantHeader, gotUnwant)
			}
		})
	}
}

func TestHTTPClient_CreateEmbeddings(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "embeddings") {
			t.Errorf("Expected embeddings path, got %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{
			"object": "list",
			"model": "text-embedding-ada-002",
			"data": [{"index": 0, "embedding": [0.25, -0.5, 0.125]}],
			"usage": {"prompt_tokens": 7, "total_tokens": 7}
		}`))
	}))
	defer server.Close()

	client := NewHTTPClient(Config{
		APIKey:   "test-key",
		Endpoint: server.URL,
		Timeout:  5 * time.Second,
	})

	resp, err := client.CreateEmbeddings(context.Background(), llm.EmbeddingRequest{
		Model: "text-embedding-ada-002",
		Input: []string{"hello world"},
	})
	if err != nil {
		t.Fatalf("CreateEmbeddings() error = %v", err)
	}

	if len(resp.Data) != 1 {
		t.Fatalf("Expected 1 embedding, got %d", len(resp.Data))
	}
	want := []float64{0.25, -0.5, 0.125}
	for i, v := range resp.Data[0].Embedding {
		if v != want[i] {
			t.Errorf("Embedding[%d] = %v, want %v", i, v, want[i])
		}
	}
	if resp.Usage.TotalTokens != 7 {
		t.Errorf("TotalTokens = %v, want 7", resp.Usage.TotalTokens)
	}
}

func TestHTTPClient_ContextTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"id":"test"}`))
	}))
	defer server.Close()

	client := NewHTTPClient(Config{
		APIKey:   "test-key",
		Endpoint: server.URL,
		Timeout:  10 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := client.ChatCompletion(ctx, llm.ChatRequest{
		Model:    "gpt-4o",
		Messages: []llm.ChatMessage{{Role: "user", Content: "test"}},
	})
	if err == nil {
		t.Error("Expected context timeout error, got nil")
	}
}
