package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/deskmate/deskmate-be/pkg/llm"
)

// publicHost identifies the public OpenAI platform. Endpoints containing it
// authenticate with a Bearer token; any other endpoint is treated as an
// Azure-style enterprise deployment using the api-key header scheme.
const publicHost = "openai.com"

// HTTPClient implements the llm.Client interface for OpenAI-compatible APIs,
// covering both the public platform and Azure OpenAI deployments.
type HTTPClient struct {
	apiKey     string
	endpoint   string
	apiVersion string
	public     bool
	httpClient *http.Client
	timeout    time.Duration
}

// Ensure HTTPClient implements llm.Client
var _ llm.Client = (*HTTPClient)(nil)

// Config holds configuration for the OpenAI client
type Config struct {
	APIKey     string
	Endpoint   string        // Default: https://api.openai.com
	APIVersion string        // Azure api-version query value. Default: 2024-02-01
	Timeout    time.Duration // Per-attempt request timeout. Default: 120s
}

// NewHTTPClient creates a new OpenAI HTTP client
func NewHTTPClient(config Config) *HTTPClient {
	if config.Endpoint == "" {
		config.Endpoint = "https://api.openai.com"
	}
	if config.APIVersion == "" {
		config.APIVersion = "2024-02-01"
	}
	if config.Timeout == 0 {
		config.Timeout = 120 * time.Second
	}

	// Optimized transport for high throughput and connection reuse
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &HTTPClient{
		apiKey:     config.APIKey,
		endpoint:   strings.TrimRight(config.Endpoint, "/"),
		apiVersion: config.APIVersion,
		public:     strings.Contains(config.Endpoint, publicHost),
		httpClient: &http.Client{
			// No client-level timeout: it would span the whole retry
			// schedule and cut it short. The retry transport gives each
			// attempt its own budget instead.
			Transport: newRetryTransport(transport, config.Timeout),
		},
		timeout: config.Timeout,
	}
}

// requestURL builds the operation URL for the configured endpoint mode.
// The public platform uses a shared path with the model in the body; Azure
// routes each deployment through its own path and an api-version parameter.
func (c *HTTPClient) requestURL(operation, model string) string {
	if c.public {
		return c.endpoint + "/v1/" + operation
	}
	return fmt.Sprintf("%s/openai/deployments/%s/%s?api-version=%s",
		c.endpoint, url.PathEscape(model), operation, url.QueryEscape(c.apiVersion))
}

// setAuth applies the auth scheme matching the endpoint mode
func (c *HTTPClient) setAuth(req *http.Request) {
	if c.public {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	} else {
		req.Header.Set("api-key", c.apiKey)
	}
}

func (c *HTTPClient) post(ctx context.Context, requestURL string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", requestURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	c.setAuth(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// ChatCompletion implements llm.Client.ChatCompletion
func (c *HTTPClient) ChatCompletion(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	var chatResp llm.ChatResponse
	if err := c.post(ctx, c.requestURL("chat/completions", req.Model), req, &chatResp); err != nil {
		return nil, err
	}
	return &chatResp, nil
}

// CreateEmbeddings implements llm.Client.CreateEmbeddings
func (c *HTTPClient) CreateEmbeddings(ctx context.Context, req llm.EmbeddingRequest) (*llm.EmbeddingResponse, error) {
	var embResp llm.EmbeddingResponse
	if err := c.post(ctx, c.requestURL("embeddings", req.Model), req, &embResp); err != nil {
		return nil, err
	}
	return &embResp, nil
}
