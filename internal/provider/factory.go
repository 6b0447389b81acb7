package provider

import (
	"fmt"
	"strings"
)

// Config holds provider configuration
type Config struct {
	Provider   string // mistral or openai
	APIKey     string
	BaseURL    string // optional override
	EmbedModel string // optional override
	ChatModel  string // optional override
}

// New creates a provider client from explicit configuration. An empty
// provider name defaults to Mistral.
func New(cfg Config) (*Client, error) {
	name := strings.ToLower(cfg.Provider)
	if name == "" {
		name = ProviderMistral
	}

	var (
		client *Client
		err    error
	)
	switch name {
	case ProviderMistral:
		client, err = NewMistral(cfg.APIKey)
	case ProviderOpenAI:
		client, err = NewOpenAI(cfg.APIKey)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	if cfg.BaseURL != "" {
		client.SetBaseURL(cfg.BaseURL)
	}
	client.SetModels(cfg.EmbedModel, cfg.ChatModel)
	return client, nil
}
