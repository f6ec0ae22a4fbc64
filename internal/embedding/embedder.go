// Package embedding turns chunk texts and queries into vectors through an
// external provider, batching and retrying at this boundary only.
package embedding

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_embedder.go -package=mocks filechat-ai/internal/embedding Embedder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"filechat-ai/internal/apperr"
	"filechat-ai/internal/contextutil"
	"filechat-ai/internal/llm"
)

// Embedder converts texts into vectors from a single model.
type Embedder interface {
	// EmbedBatch returns one vector per text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedQuery embeds a search query with the same model as EmbedBatch.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Provider performs one embedding request against an external service.
// Implementations classify failures as *llm.ServiceError.
type Provider interface {
	Embed(ctx context.Context, texts []string, task llm.EmbeddingTask) ([][]float32, error)
	ModelName() string
}

// Config controls batching and pacing.
type Config struct {
	// BatchSize is the maximum number of texts per provider call.
	BatchSize int
	// Concurrency is the maximum number of sub-batches in flight.
	Concurrency int
	// RequestsPerSecond paces provider calls. Zero disables pacing.
	RequestsPerSecond float64
	// Retry bounds attempts and per-attempt timeouts.
	Retry llm.RetryPolicy
}

// DefaultConfig returns batches of 100 texts, 4 in flight, default retry policy.
func DefaultConfig() Config {
	return Config{
		BatchSize:   100,
		Concurrency: 4,
		Retry:       llm.DefaultRetryPolicy(),
	}
}

// BatchEmbedder implements Embedder on top of a Provider. Sub-batches are
// dispatched concurrently; a failing sub-batch cancels the rest and the
// whole call fails without partial output.
type BatchEmbedder struct {
	provider Provider
	cfg      Config
	limiter  *rate.Limiter
	logger   *slog.Logger
}

// NewBatchEmbedder creates a BatchEmbedder.
func NewBatchEmbedder(provider Provider, cfg Config) (*BatchEmbedder, error) {
	if provider == nil {
		return nil, fmt.Errorf("%w: embedding provider is required", apperr.ErrInvalidConfiguration)
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("%w: embedding batch size must be > 0, got %d", apperr.ErrInvalidConfiguration, cfg.BatchSize)
	}
	if cfg.Concurrency <= 0 {
		return nil, fmt.Errorf("%w: embedding concurrency must be > 0, got %d", apperr.ErrInvalidConfiguration, cfg.Concurrency)
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
		// Pacing waits sit outside the per-attempt timeout.
		cfg.Retry.Wait = limiter.Wait
	}

	return &BatchEmbedder{
		provider: provider,
		cfg:      cfg,
		limiter:  limiter,
		logger:   slog.Default(),
	}, nil
}

// getLogger returns a logger from context if available, otherwise returns the embedder's logger.
func (e *BatchEmbedder) getLogger(ctx context.Context) *slog.Logger {
	if ctxLogger := contextutil.LoggerFromContext(ctx); ctxLogger != slog.Default() {
		return ctxLogger
	}
	return e.logger
}

// ModelName returns the provider's model.
func (e *BatchEmbedder) ModelName() string {
	return e.provider.ModelName()
}

// EmbedBatch embeds texts as documents.
func (e *BatchEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	logger := e.getLogger(ctx)
	start := time.Now()

	batches := splitBatches(len(texts), e.cfg.BatchSize)
	out := make([][]float32, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)
	for _, b := range batches {
		g.Go(func() error {
			vecs, err := e.call(gctx, texts[b.start:b.end], llm.TaskDocument)
			if err != nil {
				return err
			}
			// Each goroutine owns a disjoint range of out.
			copy(out[b.start:b.end], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.ErrorContext(ctx, "embedding batch failed", "texts", len(texts), "sub_batches", len(batches), "error", err)
		return nil, err
	}

	logger.InfoContext(ctx, "embedded texts",
		"texts", len(texts),
		"sub_batches", len(batches),
		"model", e.provider.ModelName(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

// EmbedQuery embeds a single query string.
func (e *BatchEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.call(ctx, []string{text}, llm.TaskQuery)
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// call performs one retried provider request and checks the count. Pacing
// happens in the retry policy's Wait hook.
func (e *BatchEmbedder) call(ctx context.Context, texts []string, task llm.EmbeddingTask) ([][]float32, error) {
	var vecs [][]float32
	err := llm.Retry(ctx, e.cfg.Retry, "embed", func(ctx context.Context) error {
		got, err := e.provider.Embed(ctx, texts, task)
		if err != nil {
			return err
		}
		if len(got) != len(texts) {
			return llm.NewServiceError(llm.ServiceEmbedding, "embedding count mismatch: expected %d, got %d", len(texts), len(got))
		}
		vecs = got
		return nil
	})
	return vecs, err
}

type batchRange struct {
	start, end int
}

// splitBatches splits n items into consecutive ranges of at most size.
func splitBatches(n, size int) []batchRange {
	batches := make([]batchRange, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		batches = append(batches, batchRange{start: start, end: min(start+size, n)})
	}
	return batches
}
