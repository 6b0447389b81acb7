package embedding

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/docrag/internal/cache"
	"github.com/dshills/docrag/internal/provider"
)

const (
	// DefaultBatchSize is the maximum number of passages per provider call
	DefaultBatchSize = 5

	// DefaultWorkers is the number of concurrently in-flight batches
	DefaultWorkers = 3
)

// Result is the outcome of embedding one input passage. A failed item
// carries its error here instead of being silently dropped, so the
// returned sequence always aligns 1:1 by index with the input.
type Result struct {
	Vector []float32
	Err    error
}

// OK reports whether the item produced a vector.
func (r Result) OK() bool { return r.Err == nil }

// Service batches passages, consults the durable embedding cache, and
// dispatches uncached batches to the provider on a bounded worker pool.
// A batch rejected for size is degraded to per-item calls.
type Service struct {
	provider  provider.Embedder
	cache     *cache.Cache[[]float32]
	batchSize int
	workers   int
	logger    *log.Logger
}

// New creates a Service. Non-positive batchSize or workers fall back to
// the defaults.
func New(p provider.Embedder, c *cache.Cache[[]float32], batchSize, workers int) *Service {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Service{
		provider:  p,
		cache:     c,
		batchSize: batchSize,
		workers:   workers,
		logger:    log.New(os.Stderr, "[EMBED] ", log.LstdFlags),
	}
}

// EmbedMany embeds texts and returns one Result per input, in input
// order, regardless of batch completion order or partial failures.
// Cancellation is polled before each batch submission and each per-item
// fallback call; once signaled the call fails with the context error.
// Individual item failures are recorded in their Result and never abort
// sibling batches.
func (s *Service) EmbedMany(ctx context.Context, texts []string) ([]Result, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([]Result, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for start := 0; start < len(texts); start += s.batchSize {
		if err := gctx.Err(); err != nil {
			break
		}
		end := start + s.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]
		// Each worker writes only its own disjoint segment.
		segment := results[start:end]
		g.Go(func() error {
			return s.processBatch(gctx, batch, segment)
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("embedding cancelled: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("embedding cancelled: %w", err)
	}
	return results, nil
}

// EmbedOne embeds a single text, consulting the cache first. Used for
// query embeddings.
func (s *Service) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	key := cache.Key(text)
	if vector, ok := s.cache.Get(key); ok {
		return vector, nil
	}

	vectors, err := s.provider.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: got %d vectors for one input", provider.ErrProviderFailed, len(vectors))
	}

	s.cache.Put(key, vectors[0])
	return vectors[0], nil
}

// processBatch fills segment with results for batch. Only cancellation
// is returned as an error; provider failures become per-item markers so
// sibling batches keep running.
func (s *Service) processBatch(ctx context.Context, batch []string, segment []Result) error {
	// Cache lookups never wait on other batches' provider calls.
	var residual []string
	var residualIdx []int
	for i, text := range batch {
		if vector, ok := s.cache.Get(cache.Key(text)); ok {
			segment[i] = Result{Vector: vector}
			continue
		}
		residual = append(residual, text)
		residualIdx = append(residualIdx, i)
	}
	if len(residual) == 0 {
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	vectors, err := s.provider.Embed(ctx, residual)
	switch {
	case err == nil:
		if len(vectors) != len(residual) {
			err := fmt.Errorf("%w: got %d vectors for %d inputs",
				provider.ErrProviderFailed, len(vectors), len(residual))
			s.markAll(segment, residualIdx, err)
			return nil
		}
		for i, vector := range vectors {
			s.cache.Put(cache.Key(residual[i]), vector)
			segment[residualIdx[i]] = Result{Vector: vector}
		}
		return nil

	case errors.Is(err, provider.ErrBatchTooLarge):
		s.logger.Printf("batch of %d rejected for size, embedding items individually", len(residual))
		return s.embedIndividually(ctx, residual, residualIdx, segment)

	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err

	default:
		// Abort this batch, not its siblings.
		s.logger.Printf("batch of %d failed: %v", len(residual), err)
		s.markAll(segment, residualIdx, err)
		return nil
	}
}

// embedIndividually is the graceful-degradation path for an oversized
// batch: one provider call per item, skipping (and logging) items whose
// individual call also fails.
func (s *Service) embedIndividually(ctx context.Context, residual []string, residualIdx []int, segment []Result) error {
	for i, text := range residual {
		if err := ctx.Err(); err != nil {
			return err
		}

		key := cache.Key(text)
		if vector, ok := s.cache.Get(key); ok {
			segment[residualIdx[i]] = Result{Vector: vector}
			continue
		}

		vectors, err := s.provider.Embed(ctx, []string{text})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			s.logger.Printf("skipping item after individual embed failed: %v", err)
			segment[residualIdx[i]] = Result{Err: err}
			continue
		}
		if len(vectors) != 1 {
			segment[residualIdx[i]] = Result{Err: fmt.Errorf("%w: got %d vectors for one input",
				provider.ErrProviderFailed, len(vectors))}
			continue
		}

		s.cache.Put(key, vectors[0])
		segment[residualIdx[i]] = Result{Vector: vectors[0]}
	}
	return nil
}

func (s *Service) markAll(segment []Result, residualIdx []int, err error) {
	for _, idx := range residualIdx {
		segment[idx] = Result{Err: err}
	}
}
