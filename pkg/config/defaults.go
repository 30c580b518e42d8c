package config

const (
	defaultGraphBackend = "memory"
	defaultSQLitePath   = "meshmind.db"

	defaultActiveWindowSeconds  = 3600
	defaultCleanupMaxAgeSeconds = 86400

	defaultEventProvider = "none"
	defaultEventTopic    = "meshmind.sessions"

	defaultProvider = "ollama"
	defaultModel    = "llama3"
	defaultBaseURL  = "http://localhost:11434"

	defaultMaxContextLength = 8192
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Graph: GraphConfig{
			Backend:    defaultGraphBackend,
			SQLitePath: defaultSQLitePath,
		},
		Session: SessionConfig{
			ActiveWindowSeconds:  defaultActiveWindowSeconds,
			CleanupMaxAgeSeconds: defaultCleanupMaxAgeSeconds,
		},
		EventStream: EventStreamConfig{
			Provider: defaultEventProvider,
			Topic:    defaultEventTopic,
		},
		Providers: map[string]ProviderConfig{
			defaultProvider: {
				Model:            defaultModel,
				BaseURL:          defaultBaseURL,
				MaxContextLength: defaultMaxContextLength,
				Streaming:        true,
				Embeddings:       true,
			},
		},
	}
}
