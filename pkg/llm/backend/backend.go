// Package backend constructs llm.Backend clients for supported providers.
package backend

import (
	"fmt"

	"github.com/meshmindco/meshmind/pkg/llm"
	"github.com/meshmindco/meshmind/pkg/llm/backend/anthropic"
	"github.com/meshmindco/meshmind/pkg/llm/backend/ollama"
	"github.com/meshmindco/meshmind/pkg/llm/backend/openai"
)

// Supported provider name constants.
const (
	OpenAI    = "openai"
	Anthropic = "anthropic"
	Ollama    = "ollama"
)

// SupportedProviders returns the list of all supported provider names.
func SupportedProviders() []string {
	return []string{OpenAI, Anthropic, Ollama}
}

// ClientConfig holds construction parameters common to every backend client.
type ClientConfig struct {
	// Provider selects the client implementation.
	Provider string

	// Model is the model name sent with every request.
	Model string

	// APIKey authenticates hosted providers. Ignored by local backends.
	APIKey string

	// BaseURL overrides the provider's default API base.
	BaseURL string

	// Temperature and TopP tune generation. Zero values use provider defaults.
	Temperature float64
	TopP        float64

	// MaxTokens caps the response length when > 0.
	MaxTokens int
}

// ConstructionError indicates a backend client could not be instantiated,
// typically because the provider name is unknown or the config is invalid.
type ConstructionError struct {
	Provider string
	Reason   string
}

func (e ConstructionError) Error() string {
	return fmt.Sprintf("cannot construct backend %q: %s", e.Provider, e.Reason)
}

// New creates a backend client for the configured provider.
// Returns ConstructionError if the provider is not recognized.
func New(cfg ClientConfig) (llm.Backend, error) {
	switch cfg.Provider {
	case OpenAI:
		return openai.New(openai.Config{
			Model:       cfg.Model,
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Temperature: cfg.Temperature,
			TopP:        cfg.TopP,
			MaxTokens:   cfg.MaxTokens,
		}), nil
	case Anthropic:
		return anthropic.New(anthropic.Config{
			Model:       cfg.Model,
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		}), nil
	case Ollama:
		return ollama.New(ollama.Config{
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		}), nil
	default:
		return nil, ConstructionError{
			Provider: cfg.Provider,
			Reason:   fmt.Sprintf("unknown provider (supported: %v)", SupportedProviders()),
		}
	}
}
