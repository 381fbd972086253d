package config

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// LoadConfig reads a YAML configuration file and unmarshals it into the specified type.
// T must be a struct type that can be unmarshaled from YAML.
func LoadConfig[T any](path string) (*T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg T
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

// LoadServerConfig reads a server config, applies defaults and validates it.
func LoadServerConfig(path string) (*Server, error) {
	cfg, err := LoadConfig[Server](path)
	if err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("server configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadClientConfig reads a client config, applies defaults, validates it and
// removes duplicate servers. With requireServers unset an empty server list
// is accepted, for commands that run locally.
func LoadClientConfig(path string, requireServers bool) (*Client, error) {
	logger := log.With().Str("com", "config-loader").Logger()

	cfg, err := LoadConfig[Client](path)
	if err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("client configuration validation failed: %w", err)
	}

	if cfg.DeduplicateServers() {
		logger.Warn().Msg("duplicate server addresses detected and removed from configuration")
	}
	if requireServers || len(cfg.Servers) > 0 {
		if err := cfg.ValidateServers(); err != nil {
			return nil, fmt.Errorf("server configuration validation failed: %w", err)
		}
	}

	logger.Info().Int("server_count", len(cfg.Servers)).Msg("loaded server configuration")
	return cfg, nil
}
