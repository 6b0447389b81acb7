package provider

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Provider configuration
const (
	ProviderMistral = "mistral"
	ProviderOpenAI  = "openai"

	DefaultMistralBaseURL = "https://api.mistral.ai"
	DefaultOpenAIBaseURL  = "https://api.openai.com"

	// Default models
	DefaultMistralEmbedModel = "mistral-embed"
	DefaultMistralChatModel  = "mistral-large-latest"
	DefaultOpenAIEmbedModel  = "text-embedding-3-small"
	DefaultOpenAIChatModel   = "gpt-4o-mini"

	// Dimensions
	MistralDimension = 1024
	OpenAIDimension  = 1536

	requestTimeout = 30 * time.Second

	// embedCacheSize bounds the provider-level hot cache of embedding
	// responses, keyed by content digest.
	embedCacheSize = 10000
)

// Client talks to an OpenAI-compatible embeddings/chat API. Mistral and
// OpenAI share the same wire format, so both are served by one client
// configured with different base URLs and models.
type Client struct {
	name       string
	baseURL    string
	apiKey     string
	embedModel string
	chatModel  string
	httpClient *http.Client
	retry      RetryConfig
	hot        *lru.Cache[string, []float32]
}

// NewMistral creates a client for the Mistral API.
func NewMistral(apiKey string) (*Client, error) {
	return newClient(ProviderMistral, DefaultMistralBaseURL, apiKey,
		DefaultMistralEmbedModel, DefaultMistralChatModel)
}

// NewOpenAI creates a client for the OpenAI API.
func NewOpenAI(apiKey string) (*Client, error) {
	return newClient(ProviderOpenAI, DefaultOpenAIBaseURL, apiKey,
		DefaultOpenAIEmbedModel, DefaultOpenAIChatModel)
}

func newClient(name, baseURL, apiKey, embedModel, chatModel string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s API key is not set", ErrInvalidCredentials, name)
	}
	hot, err := lru.New[string, []float32](embedCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &Client{
		name:       name,
		baseURL:    baseURL,
		apiKey:     apiKey,
		embedModel: embedModel,
		chatModel:  chatModel,
		httpClient: &http.Client{Timeout: requestTimeout},
		retry:      DefaultRetryConfig(),
		hot:        hot,
	}, nil
}

// Name returns the provider name.
func (c *Client) Name() string { return c.name }

// SetBaseURL overrides the API base URL. Used for self-hosted gateways
// and in tests.
func (c *Client) SetBaseURL(url string) { c.baseURL = strings.TrimSuffix(url, "/") }

// SetModels overrides the embedding and chat models. Empty values keep
// the current model.
func (c *Client) SetModels(embedModel, chatModel string) {
	if embedModel != "" {
		c.embedModel = embedModel
	}
	if chatModel != "" {
		c.chatModel = chatModel
	}
}

// Embed generates embeddings for texts, aligned 1:1 by index with the
// input. Transient failures are retried with exponential backoff; batch
// limit and credential errors are returned as-is.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	// Fast path: every text already embedded recently.
	if vectors, ok := c.hotLookup(texts); ok {
		return vectors, nil
	}

	vectors, err := retryWithBackoff(ctx, c.retry, func() ([][]float32, error) {
		return c.embedOnce(ctx, texts)
	})
	if err != nil {
		return nil, err
	}

	for i, text := range texts {
		c.hot.Add(hotKey(text), vectors[i])
	}
	return vectors, nil
}

// hotLookup returns cached vectors for all texts, or ok=false if any
// text is missing.
func (c *Client) hotLookup(texts []string) ([][]float32, bool) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		v, ok := c.hot.Get(hotKey(text))
		if !ok {
			return nil, false
		}
		vectors[i] = v
	}
	return vectors, true
}

func (c *Client) embedOnce(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody := map[string]any{
		"model": c.embedModel,
		"input": texts,
	}

	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
	}
	if err := c.postJSON(ctx, "/v1/embeddings", reqBody, &apiResp); err != nil {
		return nil, err
	}

	if len(apiResp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d inputs",
			ErrProviderFailed, len(apiResp.Data), len(texts))
	}

	// Place vectors by the provider-reported index so the result aligns
	// with the input order.
	vectors := make([][]float32, len(texts))
	for _, d := range apiResp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("%w: embedding index %d out of range", ErrProviderFailed, d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

// Complete generates a chat completion from a system prompt and user
// message.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	reqBody := map[string]any{
		"model": c.chatModel,
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": user},
		},
	}

	return retryWithBackoff(ctx, c.retry, func() (string, error) {
		var apiResp struct {
			Choices []struct {
				Message struct {
					Content string `json:"content"`
				} `json:"message"`
			} `json:"choices"`
		}
		if err := c.postJSON(ctx, "/v1/chat/completions", reqBody, &apiResp); err != nil {
			return "", err
		}
		if len(apiResp.Choices) == 0 {
			return "", fmt.Errorf("%w: no choices returned", ErrProviderFailed)
		}
		return apiResp.Choices[0].Message.Content, nil
	})
}

// postJSON issues a POST with the provider auth header and decodes the
// JSON response into out, classifying error statuses.
func (c *Client) postJSON(ctx context.Context, path string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return classifyAPIError(resp.StatusCode, respBody)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// classifyAPIError maps an error status and body to the provider error
// taxonomy: credential failures and batch-limit rejections are
// distinguishable from generic failures.
func classifyAPIError(status int, body []byte) error {
	lower := strings.ToLower(string(body))

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden,
		strings.Contains(lower, "invalid_api_key"):
		return fmt.Errorf("%w: api error %d: %s", ErrInvalidCredentials, status, truncate(lower))
	case status == http.StatusRequestEntityTooLarge,
		strings.Contains(lower, "too many tokens"),
		strings.Contains(lower, "too large"),
		strings.Contains(lower, "maximum context length"):
		return fmt.Errorf("%w: api error %d: %s", ErrBatchTooLarge, status, truncate(lower))
	default:
		return fmt.Errorf("%w: api error %d: %s", ErrProviderFailed, status, truncate(lower))
	}
}

func truncate(s string) string {
	const max = 200
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// hotKey derives the LRU key from the content digest so long passages
// do not pin large keys in memory.
func hotKey(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}
