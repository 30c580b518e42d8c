// Package openai implements llm.Backend against the OpenAI chat completions
// and embeddings APIs.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/meshmindco/meshmind/pkg/llm"
)

const (
	// DefaultBaseURL is the default OpenAI API base.
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultEmbeddingModel is used for embedding requests.
	DefaultEmbeddingModel = "text-embedding-3-small"
)

// Config holds configuration for the OpenAI client.
type Config struct {
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float64
	TopP        float64
	MaxTokens   int
}

// Client wraps the OpenAI HTTP API.
type Client struct {
	config     Config
	httpClient *http.Client
}

// New creates an OpenAI backend client.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []llm.Message `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	TopP        float64       `json:"top_p,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message llm.Message `json:"message"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
}

// Complete sends the conversation and returns the assistant's reply text.
func (c *Client) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	reqBody := chatRequest{
		Model:       c.config.Model,
		Messages:    messages,
		Temperature: c.config.Temperature,
		TopP:        c.config.TopP,
		MaxTokens:   c.config.MaxTokens,
	}

	var resp chatResponse
	if err := c.post(ctx, "/chat/completions", reqBody, &resp); err != nil {
		return "", llm.InvocationError{Provider: c.Name(), Err: err}
	}

	if resp.Error != nil {
		return "", llm.InvocationError{Provider: c.Name(), Err: fmt.Errorf("api error: %s", resp.Error.Message)}
	}
	if len(resp.Choices) == 0 {
		return "", llm.InvocationError{Provider: c.Name(), Err: fmt.Errorf("no choices in response")}
	}

	return resp.Choices[0].Message.Content, nil
}

// CompleteStreaming delivers the reply through onChunk. The current
// implementation performs a full completion and emits a single chunk.
func (c *Client) CompleteStreaming(ctx context.Context, messages []llm.Message, onChunk func(string)) error {
	reply, err := c.Complete(ctx, messages)
	if err != nil {
		return err
	}
	onChunk(reply)
	return nil
}

// Embed converts text into a vector embedding.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	reqBody := embedRequest{
		Model: DefaultEmbeddingModel,
		Input: text,
	}

	var resp embedResponse
	if err := c.post(ctx, "/embeddings", reqBody, &resp); err != nil {
		return nil, llm.InvocationError{Provider: c.Name(), Err: err}
	}

	if resp.Error != nil {
		return nil, llm.InvocationError{Provider: c.Name(), Err: fmt.Errorf("api error: %s", resp.Error.Message)}
	}
	if len(resp.Data) == 0 {
		return nil, llm.InvocationError{Provider: c.Name(), Err: fmt.Errorf("no embedding in response")}
	}

	return resp.Data[0].Embedding, nil
}

// Name returns the canonical provider name.
func (c *Client) Name() string {
	return "openai"
}

// Close releases resources held by the client.
func (c *Client) Close() error {
	return nil
}

func (c *Client) post(ctx context.Context, path string, reqBody, out any) error {
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("openai returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

var _ llm.Backend = (*Client)(nil)
