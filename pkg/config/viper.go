package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// InitViper creates and returns a configured *viper.Viper. It sets defaults
// from NewDefaultConfig(), reads the config file when one exists at
// configPath (or the default location), and binds environment variables with
// the MESHMIND_ prefix. Load builds its Config through this instance, so
// every command gets the full precedence chain.
//
// Config precedence (highest to lowest):
//  1. Environment variables (MESHMIND_GRAPH_BACKEND, MESHMIND_LOGGING_DEBUG, etc.)
//  2. config.toml file values
//  3. Defaults from NewDefaultConfig()
func InitViper(configPath string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	if configPath == "" {
		configPath = DefaultPath()
	}
	// A missing file is fine, defaults and the environment still apply.
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			v.SetConfigType("toml")
			if err := v.ReadInConfig(); err != nil {
				return nil, err
			}
		}
	}

	v.SetEnvPrefix("MESHMIND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// fromViper materializes a Config from a viper instance. Provider sections
// come from the file; when none are configured the default providers apply.
func fromViper(v *viper.Viper) *Config {
	cfg := &Config{
		Version: v.GetInt("version"),
		Logging: LoggingConfig{
			Debug: v.GetBool("logging.debug"),
			JSON:  v.GetBool("logging.json"),
		},
		Graph: GraphConfig{
			Backend:     v.GetString("graph.backend"),
			SQLitePath:  v.GetString("graph.sqlite_path"),
			PostgresURL: v.GetString("graph.postgres_url"),
		},
		Session: SessionConfig{
			ActiveWindowSeconds:  v.GetInt("session.active_window_seconds"),
			CleanupMaxAgeSeconds: v.GetInt("session.cleanup_max_age_seconds"),
		},
		EventStream: EventStreamConfig{
			Provider: v.GetString("eventstream.provider"),
			Brokers:  v.GetStringSlice("eventstream.brokers"),
			Topic:    v.GetString("eventstream.topic"),
		},
		Providers: make(map[string]ProviderConfig),
	}

	for name := range v.GetStringMap("providers") {
		key := "providers." + name
		cfg.Providers[name] = ProviderConfig{
			Model:            v.GetString(key + ".model"),
			APIKey:           v.GetString(key + ".api_key"),
			BaseURL:          v.GetString(key + ".base_url"),
			CostPerToken:     v.GetFloat64(key + ".cost_per_token"),
			MaxContextLength: v.GetInt(key + ".max_context_length"),
			Streaming:        v.GetBool(key + ".streaming"),
			Embeddings:       v.GetBool(key + ".embeddings"),
			Functions:        v.GetBool(key + ".functions"),
		}
	}
	if len(cfg.Providers) == 0 {
		cfg.Providers = NewDefaultConfig().Providers
	}

	return cfg
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of
// truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	v.SetDefault("logging.debug", d.Logging.Debug)
	v.SetDefault("logging.json", d.Logging.JSON)

	v.SetDefault("graph.backend", d.Graph.Backend)
	v.SetDefault("graph.sqlite_path", d.Graph.SQLitePath)
	v.SetDefault("graph.postgres_url", d.Graph.PostgresURL)

	v.SetDefault("session.active_window_seconds", d.Session.ActiveWindowSeconds)
	v.SetDefault("session.cleanup_max_age_seconds", d.Session.CleanupMaxAgeSeconds)

	v.SetDefault("eventstream.provider", d.EventStream.Provider)
	v.SetDefault("eventstream.brokers", d.EventStream.Brokers)
	v.SetDefault("eventstream.topic", d.EventStream.Topic)
}
