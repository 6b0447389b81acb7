package provider

import (
	"context"
	"errors"
)

// Common errors
var (
	// ErrBatchTooLarge reports that an embedding batch exceeded the
	// provider's size or token limit. Callers recover by retrying items
	// individually.
	ErrBatchTooLarge = errors.New("embedding batch exceeds provider limit")

	// ErrInvalidCredentials reports an authentication failure, surfaced
	// distinctly so users get an actionable message instead of a generic
	// provider error.
	ErrInvalidCredentials = errors.New("invalid provider credentials")

	// ErrProviderFailed wraps all other provider-side failures.
	ErrProviderFailed = errors.New("provider request failed")

	// ErrUnsupportedProvider is returned by the factory for unknown
	// provider names.
	ErrUnsupportedProvider = errors.New("unsupported provider")
)

// Embedder generates vector embeddings for a sequence of texts. The
// returned vectors align 1:1 by index with the input.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Completer generates a chat completion from a system prompt and a user
// message.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Provider bundles the two external calls the engine depends on.
type Provider interface {
	Embedder
	Completer
}
