// Package config loads engine configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all runtime configuration.
type Config struct {
	Engine  EngineConfig
	Logging LogConfig
	Server  ServerConfig
}

// EngineConfig holds execution settings.
type EngineConfig struct {
	BasePath string        `envconfig:"CODECELL_BASE_PATH" default:""`
	Deadline time.Duration `envconfig:"CODECELL_DEADLINE" default:"5s"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// ServerConfig holds the serve command's listener settings.
type ServerConfig struct {
	Host string `envconfig:"HOST" default:"0.0.0.0"`
	Port string `envconfig:"PORT" default:"8080"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault reads the environment, falling back to defaults on error.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			Deadline: 5 * time.Second,
		},
		Logging: LogConfig{
			Level: "info",
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: "8080",
		},
	}
}
