package config

// Config represents the persistent meshmind configuration stored as
// config.toml in the .meshmind/ directory. The TOML layout uses sections for
// logical grouping; providers get one subsection each.
type Config struct {
	Version     int                       `toml:"version"`
	Logging     LoggingConfig             `toml:"logging"`
	Graph       GraphConfig               `toml:"graph"`
	Session     SessionConfig             `toml:"session"`
	EventStream EventStreamConfig         `toml:"eventstream"`
	Providers   map[string]ProviderConfig `toml:"providers"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Debug bool `toml:"debug,omitempty"`
	JSON  bool `toml:"json,omitempty"`
}

// GraphConfig selects and parameterizes the graph memory store.
type GraphConfig struct {
	// Backend is one of "memory", "sqlite", or "postgres".
	Backend     string `toml:"backend,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresURL string `toml:"postgres_url,omitempty"`
}

// SessionConfig holds session lifecycle settings, in seconds.
type SessionConfig struct {
	ActiveWindowSeconds  int `toml:"active_window_seconds,omitempty"`
	CleanupMaxAgeSeconds int `toml:"cleanup_max_age_seconds,omitempty"`
}

// EventStreamConfig selects and parameterizes the event publisher.
type EventStreamConfig struct {
	// Provider is "none" or "kafka".
	Provider string   `toml:"provider,omitempty"`
	Brokers  []string `toml:"brokers,omitempty"`
	Topic    string   `toml:"topic,omitempty"`
}

// ProviderConfig holds one backend provider's client and capability settings.
type ProviderConfig struct {
	Model            string  `toml:"model,omitempty"`
	APIKey           string  `toml:"api_key,omitempty"`
	BaseURL          string  `toml:"base_url,omitempty"`
	CostPerToken     float64 `toml:"cost_per_token,omitempty"`
	MaxContextLength int     `toml:"max_context_length,omitempty"`
	Streaming        bool    `toml:"streaming,omitempty"`
	Embeddings       bool    `toml:"embeddings,omitempty"`
	Functions        bool    `toml:"functions,omitempty"`
}
