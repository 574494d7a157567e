package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "127.0.0.1:5000", cfg.Server.Addr)
	assert.Equal(t, "OPENAI_API_KEY", cfg.Planner.APIKeyEnv)
	assert.Equal(t, "https://api.openai.com", cfg.Planner.BaseURL)
	assert.NotEmpty(t, cfg.DataDir)
	assert.NotEmpty(t, cfg.Indexer.WatchRoots)
	assert.Contains(t, cfg.DBPath(), "metaseek.db")
	assert.Contains(t, cfg.VectorDir(), "vectors")
}

func TestLoadFromFile(t *testing.T) {
	raw := `
data_dir: /var/lib/metaseek
log_level: debug
server:
  addr: 0.0.0.0:8080
embedding:
  base_url: http://localhost:8081
  model: custom-model
planner:
  base_url: https://api.openai.com
  model: gpt-4o
indexer:
  watch_roots:
    - /home/u/docs
  excluded_dirs:
    - tmp
  workers: 2
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/metaseek", cfg.DataDir)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr)
	assert.Equal(t, "http://localhost:8081", cfg.Embedding.BaseURL)
	assert.Equal(t, "custom-model", cfg.Embedding.Model)
	assert.Equal(t, []string{"/home/u/docs"}, cfg.Indexer.WatchRoots)
	assert.Equal(t, []string{"tmp"}, cfg.Indexer.ExcludedDirs)
	assert.Equal(t, 2, cfg.Indexer.Workers)

	// Unset fields still get defaults
	assert.Equal(t, "EMBEDDING_API_KEY", cfg.Embedding.APIKeyEnv)
	assert.Equal(t, 10000, cfg.Embedding.CacheSize)
}

func TestLoadMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data_dir: [unclosed"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestAPIKeyResolution(t *testing.T) {
	t.Setenv("METASEEK_TEST_KEY", "sekrit")

	cfg := &Config{
		Embedding: EmbeddingConfig{APIKeyEnv: "METASEEK_TEST_KEY"},
		Planner:   PlannerConfig{APIKeyEnv: "METASEEK_TEST_KEY"},
	}
	assert.Equal(t, "sekrit", cfg.EmbeddingAPIKey())
	assert.Equal(t, "sekrit", cfg.PlannerAPIKey())
}
