package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the document RAG service
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Chunking  ChunkingConfig  `mapstructure:"chunking"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Provider  ProviderConfig  `mapstructure:"provider"`
	Query     QueryConfig     `mapstructure:"query"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// ChunkingConfig bounds passage sizes
type ChunkingConfig struct {
	Size     int `mapstructure:"size"`     // target words per passage
	Overlap  int `mapstructure:"overlap"`  // word overlap for hard splits
	MaxDepth int `mapstructure:"max_depth"` // recursion depth budget
}

// EmbeddingConfig controls the batch orchestrator
type EmbeddingConfig struct {
	BatchSize int `mapstructure:"batch_size"` // passages per provider call
	Workers   int `mapstructure:"workers"`    // concurrent in-flight batches
}

// CacheConfig controls the durable content caches
type CacheConfig struct {
	Dir string        `mapstructure:"dir"`
	TTL time.Duration `mapstructure:"ttl"`
}

// ProviderConfig selects and configures the embedding/completion provider
type ProviderConfig struct {
	Type       string `mapstructure:"type"` // mistral or openai
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	EmbedModel string `mapstructure:"embed_model"`
	ChatModel  string `mapstructure:"chat_model"`
}

// QueryConfig controls retrieval and context assembly
type QueryConfig struct {
	TopK               int `mapstructure:"top_k"`
	ContextTokenBudget int `mapstructure:"context_token_budget"`
}

// Load reads configuration from an optional YAML file, applying
// defaults and DOCRAG_* environment overrides. A missing file is fine;
// a malformed one is an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("DOCRAG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Fall back to the conventional provider key variables.
	if cfg.Provider.APIKey == "" {
		switch strings.ToLower(cfg.Provider.Type) {
		case "openai":
			cfg.Provider.APIKey = os.Getenv("OPENAI_API_KEY")
		default:
			cfg.Provider.APIKey = os.Getenv("MISTRAL_API_KEY")
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints the defaults cannot enforce.
func (c *Config) Validate() error {
	if c.Chunking.Size <= 0 {
		return fmt.Errorf("chunking.size must be > 0, got %d", c.Chunking.Size)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("chunking.overlap must be in [0, size), got %d", c.Chunking.Overlap)
	}
	if c.Embedding.BatchSize <= 0 {
		return fmt.Errorf("embedding.batch_size must be > 0, got %d", c.Embedding.BatchSize)
	}
	if c.Embedding.Workers <= 0 {
		return fmt.Errorf("embedding.workers must be > 0, got %d", c.Embedding.Workers)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be > 0, got %s", c.Cache.TTL)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8000")
	v.SetDefault("chunking.size", 2000)
	v.SetDefault("chunking.overlap", 400)
	v.SetDefault("chunking.max_depth", 50)
	v.SetDefault("embedding.batch_size", 5)
	v.SetDefault("embedding.workers", 3)
	v.SetDefault("cache.dir", ".cache")
	v.SetDefault("cache.ttl", 24*time.Hour)
	v.SetDefault("provider.type", "mistral")
	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.base_url", "")
	v.SetDefault("provider.embed_model", "")
	v.SetDefault("provider.chat_model", "")
	v.SetDefault("query.top_k", 3)
	v.SetDefault("query.context_token_budget", 60000)
}
