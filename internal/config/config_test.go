package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.Server.Address)
	assert.Equal(t, 2000, cfg.Chunking.Size)
	assert.Equal(t, 400, cfg.Chunking.Overlap)
	assert.Equal(t, 50, cfg.Chunking.MaxDepth)
	assert.Equal(t, 5, cfg.Embedding.BatchSize)
	assert.Equal(t, 3, cfg.Embedding.Workers)
	assert.Equal(t, ".cache", cfg.Cache.Dir)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, "mistral", cfg.Provider.Type)
	assert.Equal(t, 3, cfg.Query.TopK)
	assert.Equal(t, 60000, cfg.Query.ContextTokenBudget)
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  address: ":9090"
chunking:
  size: 500
  overlap: 100
cache:
  ttl: 1h
provider:
  type: openai
  api_key: file-key
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, 500, cfg.Chunking.Size)
	assert.Equal(t, 100, cfg.Chunking.Overlap)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.Equal(t, "openai", cfg.Provider.Type)
	assert.Equal(t, "file-key", cfg.Provider.APIKey)

	// Unset fields keep their defaults.
	assert.Equal(t, 5, cfg.Embedding.BatchSize)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("DOCRAG_SERVER_ADDRESS", ":7777")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":7777", cfg.Server.Address)
}

func TestLoad_APIKeyFromConventionalEnv(t *testing.T) {
	t.Setenv("MISTRAL_API_KEY", "env-key")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.Provider.APIKey)
}

func TestLoad_MissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	cfg := base()
	cfg.Chunking.Size = 0
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Chunking.Overlap = cfg.Chunking.Size
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Embedding.Workers = 0
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.Cache.TTL = 0
	assert.Error(t, cfg.Validate())
}
