// Package ollama implements llm.Backend against a local Ollama server.
// Ollama is the free/local backend: its capability profile carries a zero
// cost-per-token and therefore receives the router's free-backend bonus.
package ollama

import (
	"bufio"
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
	// DefaultBaseURL is the default Ollama API URL.
	DefaultBaseURL = "http://localhost:11434"

	// DefaultModel is used when the config leaves Model unset.
	DefaultModel = "llama3"

	// DefaultEmbeddingModel is used for embedding requests.
	DefaultEmbeddingModel = "nomic-embed-text"
)

// Config holds configuration for the Ollama client.
type Config struct {
	Model   string
	BaseURL string
}

// Client wraps the Ollama HTTP API.
type Client struct {
	config     Config
	httpClient *http.Client
}

// New creates an Ollama backend client.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: 300 * time.Second,
		},
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []llm.Message `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatResponse struct {
	Message llm.Message `json:"message"`
	Done    bool        `json:"done"`
	Error   string      `json:"error,omitempty"`
}

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

// Complete sends the conversation and returns the assistant's reply text.
func (c *Client) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	resp, err := c.send(ctx, chatRequest{Model: c.config.Model, Messages: messages, Stream: false})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", llm.InvocationError{Provider: c.Name(), Err: fmt.Errorf("decoding response: %w", err)}
	}
	if chatResp.Error != "" {
		return "", llm.InvocationError{Provider: c.Name(), Err: fmt.Errorf("api error: %s", chatResp.Error)}
	}

	return chatResp.Message.Content, nil
}

// CompleteStreaming sends the conversation with streaming enabled and
// delivers each NDJSON chunk's content through onChunk.
func (c *Client) CompleteStreaming(ctx context.Context, messages []llm.Message, onChunk func(string)) error {
	resp, err := c.send(ctx, chatRequest{Model: c.config.Model, Messages: messages, Stream: true})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var chunk chatResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			return llm.InvocationError{Provider: c.Name(), Err: fmt.Errorf("decoding stream chunk: %w", err)}
		}
		if chunk.Error != "" {
			return llm.InvocationError{Provider: c.Name(), Err: fmt.Errorf("api error: %s", chunk.Error)}
		}

		if chunk.Message.Content != "" {
			onChunk(chunk.Message.Content)
		}
		if chunk.Done {
			break
		}
	}

	if err := scanner.Err(); err != nil {
		return llm.InvocationError{Provider: c.Name(), Err: fmt.Errorf("reading stream: %w", err)}
	}
	return nil
}

// Embed converts text into a vector embedding.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	reqBody := embedRequest{Model: DefaultEmbeddingModel, Input: text}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, llm.InvocationError{Provider: c.Name(), Err: fmt.Errorf("marshaling request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/api/embed", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, llm.InvocationError{Provider: c.Name(), Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, llm.InvocationError{Provider: c.Name(), Err: fmt.Errorf("sending request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, llm.InvocationError{
			Provider: c.Name(),
			Err:      fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(body)),
		}
	}

	var embedResp embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
		return nil, llm.InvocationError{Provider: c.Name(), Err: fmt.Errorf("decoding response: %w", err)}
	}
	if embedResp.Error != "" {
		return nil, llm.InvocationError{Provider: c.Name(), Err: fmt.Errorf("api error: %s", embedResp.Error)}
	}
	if len(embedResp.Embeddings) == 0 {
		return nil, llm.InvocationError{Provider: c.Name(), Err: fmt.Errorf("no embeddings returned")}
	}

	return embedResp.Embeddings[0], nil
}

// Name returns the canonical provider name.
func (c *Client) Name() string {
	return "ollama"
}

// Close releases resources held by the client.
func (c *Client) Close() error {
	return nil
}

func (c *Client) send(ctx context.Context, reqBody chatRequest) (*http.Response, error) {
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, llm.InvocationError{Provider: c.Name(), Err: fmt.Errorf("marshaling request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/api/chat", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, llm.InvocationError{Provider: c.Name(), Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, llm.InvocationError{Provider: c.Name(), Err: fmt.Errorf("sending request: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, llm.InvocationError{
			Provider: c.Name(),
			Err:      fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(body)),
		}
	}

	return resp, nil
}

var _ llm.Backend = (*Client)(nil)
