package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// EmbeddingClient generates text embeddings
type EmbeddingClient interface {
	// Embed generates a vector for a single text
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates vectors for multiple texts
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// GetDimension returns the vector dimension
	GetDimension() int
}

// EmbeddingConfig settings for the embedding API
type EmbeddingConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	Dimension  int
	TimeoutSec int
	MaxRetries int
}

// OpenAIEmbeddingClient OpenAI-compatible embedding client
type OpenAIEmbeddingClient struct {
	baseURL    string
	apiKey     string
	model      string
	dimension  int
	httpClient *http.Client
	maxRetries int
}

// NewOpenAIEmbeddingClient creates an embedding client
func NewOpenAIEmbeddingClient(config *EmbeddingConfig) *OpenAIEmbeddingClient {
	return &OpenAIEmbeddingClient{
		baseURL:   strings.TrimSuffix(config.BaseURL, "/"),
		apiKey:    config.APIKey,
		model:     config.Model,
		dimension: config.Dimension,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSec) * time.Second,
		},
		maxRetries: config.MaxRetries,
	}
}

// EmbeddingRequest embedding API request body
type EmbeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// EmbeddingResponse embedding API response body
type EmbeddingResponse struct {
	Object string `json:"object"`
	Data   []struct {
		Object    string    `json:"object"`
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Model string `json:"model"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

// Embed generates a vector for a single text
func (c *OpenAIEmbeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 || vectors[0] == nil {
		return nil, fmt.Errorf("embedding response was empty")
	}
	return vectors[0], nil
}

// EmbedBatch generates vectors for multiple texts, retrying with
// exponential backoff on failure
func (c *OpenAIEmbeddingClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var lastErr error
	for retry := 0; retry <= c.maxRetries; retry++ {
		vectors, err := c.doEmbed(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if retry < c.maxRetries {
			select {
			case <-time.After(time.Duration(1<<retry) * time.Second):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	return nil, fmt.Errorf("embedding request failed after %d retries: %w", c.maxRetries, lastErr)
}

// doEmbed performs a single embedding request
func (c *OpenAIEmbeddingClient) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody := EmbeddingRequest{
		Model: c.model,
		Input: texts,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize request: %w", err)
	}

	url := c.baseURL + "/v1/embeddings"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	var embResp EmbeddingResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	// Results come back with an index field; order them to match input
	vectors := make([][]float32, len(texts))
	for _, data := range embResp.Data {
		if data.Index < len(vectors) {
			vectors[data.Index] = data.Embedding
		}
	}

	return vectors, nil
}

// GetDimension returns the vector dimension
func (c *OpenAIEmbeddingClient) GetDimension() int {
	return c.dimension
}

// MockEmbeddingClient deterministic embedding client for tests
type MockEmbeddingClient struct {
	dimension int
}

// NewMockEmbeddingClient creates a mock client
func NewMockEmbeddingClient(dimension int) *MockEmbeddingClient {
	return &MockEmbeddingClient{dimension: dimension}
}

// Embed generates a deterministic vector from a text hash
func (c *MockEmbeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, c.dimension)
	hash := 0
	for _, ch := range text {
		hash = hash*31 + int(ch)
	}
	for i := 0; i < c.dimension; i++ {
		vec[i] = float32(hash%1000) / 1000.0
		hash = hash*31 + i
	}
	return NormalizeVector(vec), nil
}

// EmbedBatch generates deterministic vectors for multiple texts
func (c *MockEmbeddingClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := c.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = vec
	}
	return vectors, nil
}

// GetDimension returns the vector dimension
func (c *MockEmbeddingClient) GetDimension() int {
	return c.dimension
}
