// Package config loads and persists the meshmind configuration. The file
// format is TOML; environment variables with the MESHMIND_ prefix override
// file values through viper.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

const (
	configFile = "config.toml"

	// DotDir is the per-user configuration directory name.
	DotDir = ".meshmind"

	// v0 is the alpha version of the config
	v0 = 0

	// CurrentV is the currently supported version, points to v0
	CurrentV = v0
)

// DefaultPath resolves the default config file path under the user's home
// directory. Returns an empty string when the home directory cannot be
// resolved.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, DotDir, configFile)
}

// Load resolves the configuration at path through viper, so MESHMIND_
// environment variables override file values and defaults fill the rest.
// A missing file is not an error; callers always receive a fully populated
// Config.
func Load(path string) (*Config, error) {
	v, err := InitViper(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return fromViper(v), nil
}

// ParseTOML parses TOML config data and applies defaults for unset fields.
func ParseTOML(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	applyDefaults(cfg)
	return cfg, nil
}

// applyDefaults fills zero-value fields in cfg with values from
// NewDefaultConfig().
func applyDefaults(cfg *Config) {
	defaults := NewDefaultConfig()

	if cfg.Version == 0 {
		cfg.Version = defaults.Version
	}

	if cfg.Graph.Backend == "" {
		cfg.Graph.Backend = defaults.Graph.Backend
	}
	if cfg.Graph.SQLitePath == "" {
		cfg.Graph.SQLitePath = defaults.Graph.SQLitePath
	}

	if cfg.Session.ActiveWindowSeconds == 0 {
		cfg.Session.ActiveWindowSeconds = defaults.Session.ActiveWindowSeconds
	}
	if cfg.Session.CleanupMaxAgeSeconds == 0 {
		cfg.Session.CleanupMaxAgeSeconds = defaults.Session.CleanupMaxAgeSeconds
	}

	if cfg.EventStream.Provider == "" {
		cfg.EventStream.Provider = defaults.EventStream.Provider
	}
	if cfg.EventStream.Topic == "" {
		cfg.EventStream.Topic = defaults.EventStream.Topic
	}

	if len(cfg.Providers) == 0 {
		cfg.Providers = defaults.Providers
	}
}

// Save persists the configuration as TOML at path, creating the parent
// directory when needed.
func Save(cfg *Config, path string) error {
	if cfg == nil {
		return errors.New("cannot save nil config")
	}
	if path == "" {
		path = DefaultPath()
	}
	if path == "" {
		return errors.New("cannot resolve config path")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}
