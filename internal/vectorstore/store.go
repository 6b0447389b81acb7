package vectorstore

import (
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"sort"
	"sync"
)

// ErrShapeMismatch reports that the passage and vector counts disagree
// on insert. Nothing is inserted when it is returned.
var ErrShapeMismatch = errors.New("passage and vector counts do not match")

// SearchResult is one retrieved passage with its similarity score.
type SearchResult struct {
	Text   string  `json:"text"`
	Score  float64 `json:"score"`
	Source string  `json:"source"`
}

// Store is an in-memory vector store over (passage, vector, source)
// rows. Rows are append-only and identified by insertion order; Clear is
// the only operation that removes them. Search is a brute-force linear
// scan. Concurrent Search calls are safe; Add is single-writer.
type Store struct {
	mu        sync.RWMutex
	dimension int
	passages  []string
	vectors   [][]float32
	sources   []string
	logger    *log.Logger
}

// New creates an empty Store. The dimension is established by the first
// Add and is invariant afterwards.
func New() *Store {
	return &Store{
		logger: log.New(os.Stderr, "[STORE] ", log.LstdFlags),
	}
}

// Add appends passages with their vectors under a source identifier.
// A count mismatch fails with ErrShapeMismatch and inserts nothing.
// Vectors whose dimension differs from the store's established dimension
// are zero-padded or truncated to match; this is lossy and logged, never
// an error.
func (s *Store) Add(passages []string, vectors [][]float32, source string) error {
	if len(passages) != len(vectors) {
		return fmt.Errorf("%w: %d passages, %d vectors", ErrShapeMismatch, len(passages), len(vectors))
	}
	if len(passages) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dimension == 0 {
		s.dimension = len(vectors[0])
		s.logger.Printf("vector store dimension set to %d", s.dimension)
	}

	for i, v := range vectors {
		s.passages = append(s.passages, passages[i])
		s.vectors = append(s.vectors, s.reconcile(v))
		s.sources = append(s.sources, source)
	}
	return nil
}

// Search returns the k stored passages most similar to query by cosine
// similarity, in strictly descending score order. Ties are broken by
// insertion order (earlier row wins). k larger than the row count
// returns all rows; an empty store returns no results.
func (s *Store) Search(query []float32, k int) []SearchResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.vectors) == 0 || k <= 0 {
		return nil
	}

	query = s.reconcile(query)

	idx := make([]int, len(s.vectors))
	scores := make([]float64, len(s.vectors))
	for i, v := range s.vectors {
		idx[i] = i
		scores[i] = cosineSimilarity(query, v)
	}

	// Stable sort keeps insertion order for equal scores.
	sort.SliceStable(idx, func(a, b int) bool {
		return scores[idx[a]] > scores[idx[b]]
	})

	if k > len(idx) {
		k = len(idx)
	}
	results := make([]SearchResult, 0, k)
	for _, i := range idx[:k] {
		results = append(results, SearchResult{
			Text:   s.passages[i],
			Score:  scores[i],
			Source: s.sources[i],
		})
	}
	return results
}

// Clear removes all rows. The established dimension is reset alongside
// the rows, matching a fresh store.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.passages = nil
	s.vectors = nil
	s.sources = nil
	s.dimension = 0
}

// Len reports the number of stored rows.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.passages)
}

// Dimension reports the established vector dimension, or 0 before the
// first Add.
func (s *Store) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimension
}

// reconcile pads or truncates v to the store's established dimension.
// Callers must hold at least a read lock.
func (s *Store) reconcile(v []float32) []float32 {
	switch {
	case len(v) == s.dimension:
		return v
	case len(v) < s.dimension:
		s.logger.Printf("dimension mismatch: got %d, want %d; zero-padding", len(v), s.dimension)
		padded := make([]float32, s.dimension)
		copy(padded, v)
		return padded
	default:
		s.logger.Printf("dimension mismatch: got %d, want %d; truncating", len(v), s.dimension)
		return v[:s.dimension]
	}
}

// cosineSimilarity computes the cosine similarity between two vectors
// of equal length. A zero-norm vector yields 0.
func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
