// Package config loads daemon configuration from a YAML file overlaid with
// AGENTDECK_-prefixed environment variables.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Defaults applied when a field is absent from both file and environment.
const (
	DefaultServerPort   = 7430
	DefaultAgentBaseURL = "http://127.0.0.1:4096"
	DefaultStorageType  = "sqlite"
	DefaultSQLitePath   = "./data/agentdeck.db"
)

type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Agent   AgentConfig   `koanf:"agent"`
	Storage StorageConfig `koanf:"storage"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
}

type AgentConfig struct {
	// BaseURL is the agent server endpoint. Empty means no transport is
	// configured and submissions synthesize a configuration error.
	BaseURL string `koanf:"base_url"`
	// Directory scopes requests and events to one working directory when
	// several share the server.
	Directory string `koanf:"directory"`
	// Model optionally pins "provider/model" for submitted prompts.
	Model string `koanf:"model"`
}

type StorageConfig struct {
	Type   string       `koanf:"type"` // sqlite, memory
	SQLite SQLiteConfig `koanf:"sqlite"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

// Load reads the config file at path (skipped when absent) and overlays
// environment variables. Env vars use "__" as the hierarchy separator, e.g.
// AGENTDECK_AGENT__BASE_URL.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load config file %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider("AGENTDECK_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "AGENTDECK_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	applyDefaults(k)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(k *koanf.Koanf) {
	if !k.Exists("server.port") {
		k.Set("server.port", DefaultServerPort)
	}
	if !k.Exists("agent.base_url") {
		k.Set("agent.base_url", DefaultAgentBaseURL)
	}
	if !k.Exists("storage.type") {
		k.Set("storage.type", DefaultStorageType)
	}
	if !k.Exists("storage.sqlite.path") {
		k.Set("storage.sqlite.path", DefaultSQLitePath)
	}
}

// ModelRef splits the "provider/model" pin into its parts. ok is false when
// no model is pinned.
func (c AgentConfig) ModelRef() (providerID, modelID string, ok bool) {
	if c.Model == "" {
		return "", "", false
	}
	providerID, modelID, found := strings.Cut(c.Model, "/")
	if !found {
		return "", c.Model, true
	}
	return providerID, modelID, true
}
