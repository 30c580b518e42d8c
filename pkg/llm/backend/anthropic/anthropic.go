// Package anthropic implements llm.Backend against the Anthropic messages API.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/meshmindco/meshmind/pkg/llm"
)

const (
	// DefaultBaseURL is the default Anthropic API base.
	DefaultBaseURL = "https://api.anthropic.com"

	// apiVersion is the anthropic-version header value.
	apiVersion = "2023-06-01"

	// defaultMaxTokens applies when the config leaves MaxTokens unset;
	// the messages API requires an explicit cap.
	defaultMaxTokens = 4096
)

// ErrEmbeddingsUnsupported is returned by Embed: Anthropic exposes no
// embeddings endpoint.
var ErrEmbeddingsUnsupported = errors.New("anthropic does not support embeddings")

// Config holds configuration for the Anthropic client.
type Config struct {
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float64
	MaxTokens   int
}

// Client wraps the Anthropic HTTP API.
type Client struct {
	config     Config
	httpClient *http.Client
}

// New creates an Anthropic backend client.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = defaultMaxTokens
	}

	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

type messagesRequest struct {
	Model       string        `json:"model"`
	System      string        `json:"system,omitempty"`
	Messages    []llm.Message `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature,omitempty"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends the conversation and returns the assistant's reply text.
// System messages are lifted into the API's dedicated system field.
func (c *Client) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	reqBody := messagesRequest{
		Model:       c.config.Model,
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
	}

	for _, m := range messages {
		if m.Role == llm.RoleSystem {
			if reqBody.System != "" {
				reqBody.System += "\n"
			}
			reqBody.System += m.Content
			continue
		}
		reqBody.Messages = append(reqBody.Messages, m)
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", llm.InvocationError{Provider: c.Name(), Err: fmt.Errorf("marshaling request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/v1/messages", bytes.NewReader(jsonBody))
	if err != nil {
		return "", llm.InvocationError{Provider: c.Name(), Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.config.APIKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", llm.InvocationError{Provider: c.Name(), Err: fmt.Errorf("sending request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", llm.InvocationError{
			Provider: c.Name(),
			Err:      fmt.Errorf("anthropic returned status %d: %s", resp.StatusCode, string(body)),
		}
	}

	var msgResp messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&msgResp); err != nil {
		return "", llm.InvocationError{Provider: c.Name(), Err: fmt.Errorf("decoding response: %w", err)}
	}

	if msgResp.Error != nil {
		return "", llm.InvocationError{Provider: c.Name(), Err: fmt.Errorf("api error: %s", msgResp.Error.Message)}
	}

	text := ""
	for _, block := range msgResp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text, nil
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

// Embed always fails: the provider has no embeddings endpoint. Routing keeps
// embedding tasks away from this backend via its capability profile.
func (c *Client) Embed(_ context.Context, _ string) ([]float32, error) {
	return nil, llm.InvocationError{Provider: c.Name(), Err: ErrEmbeddingsUnsupported}
}

// Name returns the canonical provider name.
func (c *Client) Name() string {
	return "anthropic"
}

// Close releases resources held by the client.
func (c *Client) Close() error {
	return nil
}

var _ llm.Backend = (*Client)(nil)
