package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/dshills/docrag/internal/cache"
	"github.com/dshills/docrag/internal/chunker"
	"github.com/dshills/docrag/internal/embedding"
	"github.com/dshills/docrag/internal/provider"
	"github.com/dshills/docrag/internal/vectorstore"
)

const (
	// DefaultTopK is the number of passages retrieved per query
	DefaultTopK = 3

	// DefaultContextTokenBudget caps the assembled context, well under
	// the completion model's limit
	DefaultContextTokenBudget = 60000

	// charsPerToken is the rough character-to-token ratio used to
	// estimate context size without a tokenizer
	charsPerToken = 4
)

// ErrEmptyQuery reports a blank query string.
var ErrEmptyQuery = errors.New("query is empty")

// ProcessStats summarizes one document ingestion.
type ProcessStats struct {
	TotalChunks     int     `json:"total_chunks"`
	ProcessedChunks int     `json:"processed_chunks"`
	TotalWords      int     `json:"total_words"`
	AvgChunkSize    float64 `json:"avg_chunk_size"`
	ProcessingTime  float64 `json:"processing_time"`
}

// ProcessResult is the outcome of ingesting one document. Chunks holds
// every passage produced; Embeddings holds vectors for the passages
// that embedded successfully, in passage order.
type ProcessResult struct {
	Chunks     []string
	Embeddings [][]float32
	Stats      ProcessStats
}

// QueryResult is an answer with the retrieved passages that grounded it.
type QueryResult struct {
	Response string                     `json:"response"`
	Context  []vectorstore.SearchResult `json:"context"`
}

// Options tunes retrieval and context assembly. Zero values fall back
// to the defaults.
type Options struct {
	TopK               int
	ContextTokenBudget int
}

// Engine runs the document QA pipeline over a chunker, an embedding
// service, a vector store, and a completion provider.
type Engine struct {
	chunker     *chunker.Chunker
	embedder    *embedding.Service
	store       *vectorstore.Store
	completer   provider.Completer
	embedCache  *cache.Cache[[]float32]
	queryCache  *cache.Cache[QueryResult]
	topK        int
	tokenBudget int
	logger      *log.Logger
}

// New creates an Engine.
func New(
	ch *chunker.Chunker,
	embedder *embedding.Service,
	store *vectorstore.Store,
	completer provider.Completer,
	embedCache *cache.Cache[[]float32],
	queryCache *cache.Cache[QueryResult],
	opts Options,
) *Engine {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.ContextTokenBudget <= 0 {
		opts.ContextTokenBudget = DefaultContextTokenBudget
	}
	return &Engine{
		chunker:     ch,
		embedder:    embedder,
		store:       store,
		completer:   completer,
		embedCache:  embedCache,
		queryCache:  queryCache,
		topK:        opts.TopK,
		tokenBudget: opts.ContextTokenBudget,
		logger:      log.New(os.Stderr, "[ENGINE] ", log.LstdFlags),
	}
}

// ProcessDocument chunks text, embeds the passages, and adds the
// successfully embedded ones to the vector store under source.
// Passages whose embedding failed are counted in the stats but kept out
// of the store; an empty document succeeds with zero chunks.
func (e *Engine) ProcessDocument(ctx context.Context, text, source string) (*ProcessResult, error) {
	start := time.Now()

	chunks, err := e.chunker.Chunk(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("chunk document %q: %w", source, err)
	}
	if len(chunks) == 0 {
		return &ProcessResult{
			Stats: ProcessStats{ProcessingTime: time.Since(start).Seconds()},
		}, nil
	}

	results, err := e.embedder.EmbedMany(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("embed document %q: %w", source, err)
	}

	var passages []string
	var vectors [][]float32
	for i, r := range results {
		if !r.OK() {
			e.logger.Printf("passage %d of %q not embedded: %v", i, source, r.Err)
			continue
		}
		passages = append(passages, chunks[i])
		vectors = append(vectors, r.Vector)
	}

	if err := e.store.Add(passages, vectors, source); err != nil {
		return nil, fmt.Errorf("store document %q: %w", source, err)
	}

	totalWords := 0
	for _, chunk := range chunks {
		totalWords += len(strings.Fields(chunk))
	}

	e.logger.Printf("processed %q: %d/%d passages in %.2fs",
		source, len(passages), len(chunks), time.Since(start).Seconds())

	return &ProcessResult{
		Chunks:     chunks,
		Embeddings: vectors,
		Stats: ProcessStats{
			TotalChunks:     len(chunks),
			ProcessedChunks: len(passages),
			TotalWords:      totalWords,
			AvgChunkSize:    float64(totalWords) / float64(len(chunks)),
			ProcessingTime:  time.Since(start).Seconds(),
		},
	}, nil
}

// Query answers a question over the stored passages. The full result is
// cached by query text, so a repeated question returns without touching
// the provider. k <= 0 uses the configured top-k.
func (e *Engine) Query(ctx context.Context, query string, k int) (*QueryResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if k <= 0 {
		k = e.topK
	}

	key := cache.Key(query)
	if cached, ok := e.queryCache.Get(key); ok {
		e.logger.Printf("query served from cache")
		return &cached, nil
	}

	vector, err := e.embedder.EmbedOne(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	matches := e.store.Search(vector, k)
	contextText := e.assembleContext(matches)

	userPrompt := fmt.Sprintf("Context:\n%s\n\nQuestion: %s", contextText, query)
	answer, err := e.completer.Complete(ctx, systemPrompt, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("generate response: %w", err)
	}

	result := QueryResult{Response: answer, Context: matches}
	e.queryCache.Put(key, result)
	return &result, nil
}

// ClearCaches empties both durable caches.
func (e *Engine) ClearCaches() error {
	if err := e.embedCache.Clear(); err != nil {
		return fmt.Errorf("clear embedding cache: %w", err)
	}
	if err := e.queryCache.Clear(); err != nil {
		return fmt.Errorf("clear query cache: %w", err)
	}
	return nil
}

// ExpireCaches drops entries older than the TTL from both caches.
func (e *Engine) ExpireCaches() error {
	if err := e.embedCache.ExpireStale(); err != nil {
		return fmt.Errorf("expire embedding cache: %w", err)
	}
	if err := e.queryCache.ExpireStale(); err != nil {
		return fmt.Errorf("expire query cache: %w", err)
	}
	return nil
}

// assembleContext formats matches as source-attributed blocks, stopping
// once the estimated token count would exceed the budget.
func (e *Engine) assembleContext(matches []vectorstore.SearchResult) string {
	var parts []string
	totalTokens := 0
	for _, m := range matches {
		block := fmt.Sprintf("From document '%s':\n%s", m.Source, m.Text)
		estimated := len(block) / charsPerToken
		if totalTokens+estimated > e.tokenBudget {
			break
		}
		parts = append(parts, block)
		totalTokens += estimated
	}
	return strings.Join(parts, "\n\n")
}
