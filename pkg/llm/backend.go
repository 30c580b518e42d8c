package llm

import "context"

// Backend is the uniform interface every text-generation provider implements.
// The router and the session manager depend only on this interface plus the
// provider's capability profile, never on provider-specific request or
// response shapes.
type Backend interface {
	// Complete sends the conversation to the provider and returns the
	// assistant's reply text.
	Complete(ctx context.Context, messages []Message) (string, error)

	// CompleteStreaming sends the conversation and delivers the reply
	// incrementally through onChunk. The full reply is the concatenation
	// of all chunks in delivery order.
	CompleteStreaming(ctx context.Context, messages []Message, onChunk func(string)) error

	// Embed converts text into a vector embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Name returns the canonical provider name (e.g. "openai", "ollama").
	Name() string

	// Close releases any resources held by the backend client.
	Close() error
}
