package integration

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"sync"
)

// MockProvider serves deterministic embeddings derived from the text
// hash, so similarity between a query and a passage sharing words stays
// stable across runs. Completions echo the supplied context.
type MockProvider struct {
	dimension int

	mu            sync.Mutex
	embedCalls    int
	completeCalls int
	lastUser      string
}

// NewMockProvider creates a mock provider with the given vector dimension.
func NewMockProvider(dimension int) *MockProvider {
	return &MockProvider{dimension: dimension}
}

// Embed generates one deterministic vector per text.
func (m *MockProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.embedCalls++
	m.mu.Unlock()

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = m.vectorFor(text)
	}
	return vectors, nil
}

// Complete returns a canned answer that records the user prompt.
func (m *MockProvider) Complete(_ context.Context, _, user string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completeCalls++
	m.lastUser = user
	return fmt.Sprintf("answer derived from %d context chars", len(user)), nil
}

// EmbedCalls reports how many embedding requests were issued.
func (m *MockProvider) EmbedCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.embedCalls
}

// CompleteCalls reports how many completion requests were issued.
func (m *MockProvider) CompleteCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.completeCalls
}

// LastUserPrompt returns the most recent user prompt seen by Complete.
func (m *MockProvider) LastUserPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastUser
}

// vectorFor builds a bag-of-words style vector: each word hashes to a
// dimension bucket, so texts sharing words produce similar vectors.
func (m *MockProvider) vectorFor(text string) []float32 {
	vector := make([]float32, m.dimension)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		hash := sha256.Sum256([]byte(word))
		bucket := binary.BigEndian.Uint32(hash[:4]) % uint32(m.dimension)
		vector[bucket]++
	}

	var norm float64
	for _, v := range vector {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vector {
			vector[i] *= scale
		}
	}
	return vector
}
