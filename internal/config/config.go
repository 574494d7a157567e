// Package config loads the application configuration from YAML with a
// .env overlay for secrets.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// EmbeddingConfig configures the embedding backend. An empty base URL
// selects the offline hash provider.
type EmbeddingConfig struct {
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
	CacheSize int    `yaml:"cache_size"`
}

// PlannerConfig configures the chat backend used for query planning.
type PlannerConfig struct {
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
	Model     string `yaml:"model"`
}

// IndexerConfig configures eligibility rules and scan concurrency.
// Nil slices select the built-in defaults.
type IndexerConfig struct {
	WatchRoots   []string `yaml:"watch_roots"`
	ExcludedDirs []string `yaml:"excluded_dirs"`
	Extensions   []string `yaml:"extensions"`
	Workers      int      `yaml:"workers"`
}

// Config is the root configuration.
type Config struct {
	DataDir   string          `yaml:"data_dir"`
	LogLevel  string          `yaml:"log_level"`
	Server    ServerConfig    `yaml:"server"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Planner   PlannerConfig   `yaml:"planner"`
	Indexer   IndexerConfig   `yaml:"indexer"`
}

// DBPath returns the SQLite file location under the data directory.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "metaseek.db")
}

// VectorDir returns the vector store directory under the data directory.
func (c *Config) VectorDir() string {
	return filepath.Join(c.DataDir, "vectors")
}

// EmbeddingAPIKey resolves the embedding backend key from the
// environment.
func (c *Config) EmbeddingAPIKey() string {
	return os.Getenv(c.Embedding.APIKeyEnv)
}

// PlannerAPIKey resolves the planner key from the environment.
func (c *Config) PlannerAPIKey() string {
	return os.Getenv(c.Planner.APIKeyEnv)
}

// Load reads the config at path. A missing file yields defaults. A .env
// file next to the working directory is loaded first so api_key_env
// lookups see it.
func Load(path string) (*Config, error) {
	// Missing .env is fine
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg, err := defaultConfig()
			if err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := applyDefaults(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDefault tries ./metaseek.yaml first, then
// ~/.config/metaseek/config.yaml, falling back to defaults.
func LoadDefault() (*Config, error) {
	if _, err := os.Stat("metaseek.yaml"); err == nil {
		return Load("metaseek.yaml")
	}
	home, err := os.UserHomeDir()
	if err == nil {
		userPath := filepath.Join(home, ".config", "metaseek", "config.yaml")
		if _, err := os.Stat(userPath); err == nil {
			return Load(userPath)
		}
	}
	return Load("metaseek.yaml") // does not exist, yields defaults
}

func defaultConfig() (*Config, error) {
	cfg := &Config{}
	if err := applyDefaults(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) error {
	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolve home directory: %w", err)
		}
		cfg.DataDir = filepath.Join(home, ".metaseek")
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = "127.0.0.1:5000"
	}
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = "EMBEDDING_API_KEY"
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Planner.BaseURL == "" {
		cfg.Planner.BaseURL = "https://api.openai.com"
	}
	if cfg.Planner.APIKeyEnv == "" {
		cfg.Planner.APIKeyEnv = "OPENAI_API_KEY"
	}
	if len(cfg.Indexer.WatchRoots) == 0 {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolve home directory: %w", err)
		}
		cfg.Indexer.WatchRoots = []string{filepath.Join(home, "Documents")}
	}
	return nil
}
