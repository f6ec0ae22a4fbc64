package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"filechat-ai/internal/apperr"
	"filechat-ai/internal/contextutil"
	"filechat-ai/internal/vectorstore"
)

const (
	// DefaultTopK is the number of chunks retrieved when a request sets none.
	DefaultTopK = 3
	// DefaultRelevanceThreshold is the score a chunk must exceed to be used
	// as answer context.
	DefaultRelevanceThreshold = 0.1

	// NoResultsAnswer is returned when retrieval finds nothing.
	NoResultsAnswer = "I couldn't find any relevant information in the document to answer your question."
	// NoRelevantAnswer is returned when no chunk clears the relevance threshold.
	NoRelevantAnswer = "I couldn't find sufficiently relevant information in the document to answer your question confidently."
)

// Engine answers questions from retrieved chunks.
type Engine interface {
	// Ask retrieves chunks for the question and generates an answer from them.
	Ask(ctx context.Context, retriever Retriever, req AskRequest) (AskResponse, error)
}

// EngineConfig configures a RAG engine.
type EngineConfig struct {
	// TopK is used when AskRequest.K is zero.
	TopK int
	// RelevanceThreshold filters retrieved chunks by score.
	RelevanceThreshold float64
}

// ragEngine implements the Engine interface.
type ragEngine struct {
	generator AnswerGenerator
	cfg       EngineConfig
	logger    *slog.Logger
}

// NewEngine creates a new RAG engine.
func NewEngine(generator AnswerGenerator, cfg EngineConfig) (Engine, error) {
	if generator == nil {
		return nil, fmt.Errorf("%w: answer generator is required", apperr.ErrInvalidConfiguration)
	}
	if cfg.TopK <= 0 {
		return nil, fmt.Errorf("%w: top k must be > 0, got %d", apperr.ErrInvalidConfiguration, cfg.TopK)
	}
	if cfg.RelevanceThreshold < -1 || cfg.RelevanceThreshold > 1 {
		return nil, fmt.Errorf("%w: relevance threshold must be in [-1, 1], got %g", apperr.ErrInvalidConfiguration, cfg.RelevanceThreshold)
	}
	return &ragEngine{
		generator: generator,
		cfg:       cfg,
		logger:    slog.Default(),
	}, nil
}

// getLogger returns a logger from context if available, otherwise returns the engine's logger.
func (e *ragEngine) getLogger(ctx context.Context) *slog.Logger {
	if ctxLogger := contextutil.LoggerFromContext(ctx); ctxLogger != slog.Default() {
		return ctxLogger
	}
	return e.logger
}

// Ask answers a question using RAG.
func (e *ragEngine) Ask(ctx context.Context, retriever Retriever, req AskRequest) (AskResponse, error) {
	logger := e.getLogger(ctx)

	k := req.K
	if k == 0 {
		k = e.cfg.TopK
	}

	logger.InfoContext(ctx, "RAG query started", "question_length", len(req.Question), "k", k)

	results, err := retriever.Retrieve(ctx, req.Question, k)
	if err != nil {
		logger.ErrorContext(ctx, "retrieval failed", "error", err)
		return AskResponse{}, err
	}

	if len(results) == 0 {
		logger.InfoContext(ctx, "no search results found")
		return AskResponse{Answer: NoResultsAnswer, Sources: []Source{}}, nil
	}

	relevant := make([]vectorstore.RetrievalResult, 0, len(results))
	for _, r := range results {
		if r.Score > e.cfg.RelevanceThreshold {
			relevant = append(relevant, r)
		}
	}

	logger.DebugContext(ctx, "relevance filter applied",
		"retrieved", len(results),
		"relevant", len(relevant),
		"threshold", e.cfg.RelevanceThreshold,
		"top_score", results[0].Score,
	)

	if len(relevant) == 0 {
		return AskResponse{Answer: NoRelevantAnswer, Sources: []Source{}}, nil
	}

	chunks := make([]ContextChunk, len(relevant))
	sources := make([]Source, len(relevant))
	for i, r := range relevant {
		chunks[i] = ContextChunk{
			Text:          r.Chunk.Text,
			DocumentID:    r.Chunk.DocumentID,
			SequenceIndex: r.Chunk.SequenceIndex,
		}
		sources[i] = Source{
			DocumentID:    r.Chunk.DocumentID,
			SequenceIndex: r.Chunk.SequenceIndex,
			StartOffset:   r.Chunk.StartOffset,
			EndOffset:     r.Chunk.EndOffset,
			Score:         r.Score,
			Rank:          r.Rank,
			Text:          r.Chunk.Text,
		}
	}

	resp, err := e.generator.Generate(ctx, AnswerRequest{Query: req.Question, ContextChunks: chunks})
	if err != nil {
		logger.ErrorContext(ctx, "failed to generate answer", "error", err)
		return AskResponse{}, err
	}

	answer := strings.TrimSpace(resp.AnswerText)
	logger.InfoContext(ctx, "RAG query completed", "chunks_used", len(chunks), "answer_length", len(answer))

	return AskResponse{Answer: answer, Sources: sources}, nil
}
