// Package app assembles the document session from configuration. Both the
// HTTP server and the CLI start from here.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"filechat-ai/internal/config"
	"filechat-ai/internal/embedding"
	"filechat-ai/internal/extract"
	"filechat-ai/internal/handlers"
	"filechat-ai/internal/indexer"
	"filechat-ai/internal/llm"
	"filechat-ai/internal/rag"
	"filechat-ai/internal/service"
	"filechat-ai/internal/vectorstore"
)

// App is a fully wired session plus the health checks of its remote
// dependencies.
type App struct {
	Session      *service.Session
	HealthChecks map[string]handlers.HealthCheck
}

// NewLogger builds the process logger from cfg.
func NewLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// New wires providers, the vector backend and the RAG engine into a session.
// When cfg.EmbeddingProbe is set, one probe embedding checks that the
// provider is reachable and returns the configured dimension.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	provider, err := newEmbeddingProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}

	embedder, err := embedding.NewBatchEmbedder(provider, embedding.Config{
		BatchSize:         cfg.EmbeddingBatchSize,
		Concurrency:       cfg.EmbeddingConcurrency,
		RequestsPerSecond: cfg.EmbeddingRPS,
		Retry:             cfg.RetryPolicy(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	if cfg.EmbeddingProbe {
		if err := probeEmbedder(ctx, embedder, cfg.EmbeddingDimension); err != nil {
			return nil, err
		}
		slog.InfoContext(ctx, "Embedding client validated", "model", provider.ModelName(), "dimension", cfg.EmbeddingDimension)
	}

	factory, checks, err := newIndexFactory(cfg)
	if err != nil {
		return nil, err
	}

	chatClient := llm.NewClient(cfg.ChatBaseURL, cfg.ChatAPIKey, cfg.ChatModelName, cfg.RetryPolicy())
	engine, err := rag.NewEngine(rag.NewLLMAnswerGenerator(chatClient), rag.EngineConfig{
		TopK:               cfg.TopK,
		RelevanceThreshold: cfg.RelevanceThreshold,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create rag engine: %w", err)
	}

	chunker, err := indexer.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap, indexer.WithLookback(cfg.ChunkLookback))
	if err != nil {
		return nil, fmt.Errorf("failed to create chunker: %w", err)
	}

	session, err := service.NewSession(service.SessionConfig{
		Extractors:     extract.DefaultRegistry(),
		Chunker:        chunker,
		Embedder:       embedder,
		Factory:        factory,
		Engine:         engine,
		TopK:           cfg.TopK,
		EmbeddingModel: provider.ModelName(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.InfoContext(ctx, "Session initialized",
		"embedding_provider", cfg.EmbeddingProvider,
		"vector_backend", cfg.VectorBackend,
		"chunk_size", cfg.ChunkSize,
		"chunk_overlap", cfg.ChunkOverlap,
	)

	return &App{Session: session, HealthChecks: checks}, nil
}

func newEmbeddingProvider(ctx context.Context, cfg *config.Config) (embedding.Provider, error) {
	switch cfg.EmbeddingProvider {
	case config.ProviderGemini:
		client, err := llm.NewGeminiEmbeddingsClient(ctx, cfg.EmbeddingAPIKey, cfg.EmbeddingBaseURL, cfg.EmbeddingModelName, cfg.EmbeddingDimension)
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini embeddings client: %w", err)
		}
		return client, nil
	case config.ProviderOpenAI:
		return llm.NewEmbeddingsClient(cfg.EmbeddingBaseURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModelName, cfg.EmbeddingDimension), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.EmbeddingProvider)
	}
}

func probeEmbedder(ctx context.Context, embedder embedding.Embedder, dimension int) error {
	vec, err := embedder.EmbedQuery(ctx, "test")
	if err != nil {
		return fmt.Errorf("failed to validate embedding client: %w", err)
	}
	if dimension > 0 && len(vec) != dimension {
		return fmt.Errorf("embedding vector size mismatch: expected %d, got %d", dimension, len(vec))
	}
	return nil
}

func newIndexFactory(cfg *config.Config) (vectorstore.Factory, map[string]handlers.HealthCheck, error) {
	switch cfg.VectorBackend {
	case config.BackendMemory:
		return vectorstore.NewMemoryFactory(), nil, nil
	case config.BackendQdrant:
		client, err := vectorstore.NewQdrantClient(cfg.QdrantURL, cfg.QdrantAPIKey)
		if err != nil {
			return nil, nil, err
		}
		checks := map[string]handlers.HealthCheck{
			"vector_store": func(ctx context.Context) error {
				_, err := client.HealthCheck(ctx)
				return err
			},
		}
		return vectorstore.NewQdrantFactory(client, cfg.QdrantPrefix), checks, nil
	default:
		return nil, nil, fmt.Errorf("unknown vector backend %q", cfg.VectorBackend)
	}
}
