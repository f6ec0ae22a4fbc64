package service

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_session_service.go -package=mocks filechat-ai/internal/service SessionService

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"filechat-ai/internal/apperr"
	"filechat-ai/internal/contextutil"
	"filechat-ai/internal/embedding"
	"filechat-ai/internal/extract"
	"filechat-ai/internal/indexer"
	"filechat-ai/internal/rag"
	"filechat-ai/internal/vectorstore"
)

// State is the lifecycle state of a Session.
type State string

const (
	StateEmpty      State = "empty"
	StateProcessing State = "processing"
	StateReady      State = "ready"
	StateFailed     State = "failed"
)

// Upload is a document submitted for processing. An empty Format is
// derived from Name.
type Upload struct {
	Name   string
	Format extract.Format
	Data   []byte
}

// DocumentInfo describes the processed document.
type DocumentInfo struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Format      extract.Format `json:"format"`
	Chunks      int            `json:"chunks"`
	Characters  int            `json:"characters"`
	ProcessedAt time.Time      `json:"processed_at"`
}

// Status is a snapshot of the session.
type Status struct {
	State     State               `json:"state"`
	Document  *DocumentInfo       `json:"document,omitempty"`
	Stats     *indexer.ChunkStats `json:"stats,omitempty"`
	LastError string              `json:"last_error,omitempty"`
}

// SessionService is the document question-answering session used by the
// HTTP and CLI surfaces.
type SessionService interface {
	// ProcessDocument extracts, chunks, embeds and indexes a document,
	// replacing the current one on success.
	ProcessDocument(ctx context.Context, upload Upload) (DocumentInfo, error)
	// Retrieve returns the chunks most similar to query.
	Retrieve(ctx context.Context, query string, k int) ([]vectorstore.RetrievalResult, error)
	// Ask answers a question from the current document.
	Ask(ctx context.Context, req rag.AskRequest) (rag.AskResponse, error)
	// Reset discards the current document.
	Reset(ctx context.Context) error
	// Status reports the session state.
	Status() Status
}

// SessionConfig holds the collaborators of a Session.
type SessionConfig struct {
	Extractors *extract.Registry
	Chunker    *indexer.Chunker
	Embedder   embedding.Embedder
	Factory    vectorstore.Factory
	Engine     rag.Engine
	// TopK is used when Retrieve is called with k == 0.
	TopK int
	// EmbeddingModel is recorded in chunk statistics.
	EmbeddingModel string
}

// Session owns the active document and its index. Processing builds a new
// index outside the lock and swaps it in only on success, so a failed
// upload never disturbs the previous index.
type Session struct {
	cfg    SessionConfig
	logger *slog.Logger

	mu        sync.RWMutex
	state     State
	doc       *DocumentInfo
	stats     *indexer.ChunkStats
	index     vectorstore.VectorIndex
	retriever rag.Retriever
	lastErr   error
}

// NewSession creates an empty session.
func NewSession(cfg SessionConfig) (*Session, error) {
	switch {
	case cfg.Extractors == nil:
		return nil, fmt.Errorf("%w: extractor registry is required", apperr.ErrInvalidConfiguration)
	case cfg.Chunker == nil:
		return nil, fmt.Errorf("%w: chunker is required", apperr.ErrInvalidConfiguration)
	case cfg.Embedder == nil:
		return nil, fmt.Errorf("%w: embedder is required", apperr.ErrInvalidConfiguration)
	case cfg.Factory == nil:
		return nil, fmt.Errorf("%w: vector index factory is required", apperr.ErrInvalidConfiguration)
	case cfg.Engine == nil:
		return nil, fmt.Errorf("%w: rag engine is required", apperr.ErrInvalidConfiguration)
	case cfg.TopK <= 0:
		return nil, fmt.Errorf("%w: top k must be > 0, got %d", apperr.ErrInvalidConfiguration, cfg.TopK)
	}

	return &Session{
		cfg:    cfg,
		logger: slog.Default(),
		state:  StateEmpty,
	}, nil
}

// getLogger returns a logger from context if available, otherwise returns the session's logger.
func (s *Session) getLogger(ctx context.Context) *slog.Logger {
	if ctxLogger := contextutil.LoggerFromContext(ctx); ctxLogger != slog.Default() {
		return ctxLogger
	}
	return s.logger
}

// ProcessDocument runs the full pipeline for upload. Unsupported formats are
// rejected before the session changes state; any later failure leaves the
// session FAILED with the previous index intact.
func (s *Session) ProcessDocument(ctx context.Context, upload Upload) (DocumentInfo, error) {
	logger := s.getLogger(ctx)

	format := upload.Format
	if format == "" {
		format = extract.FormatFromName(upload.Name)
	}
	if !s.cfg.Extractors.Supports(format) {
		return DocumentInfo{}, fmt.Errorf("%w: %q", apperr.ErrUnsupportedFormat, format)
	}

	s.mu.Lock()
	if s.state == StateProcessing {
		s.mu.Unlock()
		return DocumentInfo{}, ErrSessionBusy
	}
	s.state = StateProcessing
	s.mu.Unlock()

	start := time.Now()
	logger.InfoContext(ctx, "processing document", "name", upload.Name, "format", format, "bytes", len(upload.Data))

	doc, stats, index, err := s.build(ctx, upload.Name, format, upload.Data)
	if err != nil {
		s.mu.Lock()
		s.state = StateFailed
		s.lastErr = err
		s.mu.Unlock()

		logger.ErrorContext(ctx, "document processing failed", "name", upload.Name, "format", format, "error", err)
		return DocumentInfo{}, err
	}

	s.mu.Lock()
	old := s.index
	s.index = index
	s.retriever = rag.NewIndexRetriever(s.cfg.Embedder, index)
	s.doc = &doc
	s.stats = &stats
	s.state = StateReady
	s.lastErr = nil
	s.mu.Unlock()

	s.release(ctx, old)

	logger.InfoContext(ctx, "document processed",
		"document_id", doc.ID,
		"chunks", doc.Chunks,
		"characters", doc.Characters,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return doc, nil
}

// build produces a populated private index for one document.
func (s *Session) build(ctx context.Context, name string, format extract.Format, data []byte) (DocumentInfo, indexer.ChunkStats, vectorstore.VectorIndex, error) {
	text, err := s.cfg.Extractors.Extract(ctx, format, data)
	if err != nil {
		return DocumentInfo{}, indexer.ChunkStats{}, nil, err
	}
	if strings.TrimSpace(text) == "" {
		return DocumentInfo{}, indexer.ChunkStats{}, nil, &extract.ExtractionError{Format: format, Err: extract.ErrNoText}
	}

	docID := uuid.NewString()
	chunks, err := s.cfg.Chunker.Split(docID, text)
	if err != nil {
		return DocumentInfo{}, indexer.ChunkStats{}, nil, WrapError(err, "failed to chunk document")
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.cfg.Embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return DocumentInfo{}, indexer.ChunkStats{}, nil, err
	}

	index, err := s.cfg.Factory(ctx)
	if err != nil {
		return DocumentInfo{}, indexer.ChunkStats{}, nil, WrapError(err, "failed to create vector index")
	}
	if err := index.Add(ctx, chunks, vectors); err != nil {
		s.release(ctx, index)
		return DocumentInfo{}, indexer.ChunkStats{}, nil, err
	}

	characters := utf8.RuneCountInString(text)
	doc := DocumentInfo{
		ID:          docID,
		Name:        name,
		Format:      format,
		Chunks:      len(chunks),
		Characters:  characters,
		ProcessedAt: time.Now().UTC(),
	}
	stats := indexer.ComputeChunkStats(chunks, characters, s.cfg.EmbeddingModel, s.cfg.Chunker.Size(), s.cfg.Chunker.Overlap())
	return doc, stats, index, nil
}

// release clears an index that is no longer reachable.
func (s *Session) release(ctx context.Context, index vectorstore.VectorIndex) {
	if index == nil {
		return
	}
	if err := index.Clear(context.WithoutCancel(ctx)); err != nil {
		s.getLogger(ctx).WarnContext(ctx, "failed to clear vector index", "error", err)
	}
}

// readyRetriever returns the active retriever or the error for the current
// state. Callers hold s.mu.
func (s *Session) readyRetriever() (rag.Retriever, error) {
	switch s.state {
	case StateReady:
		return s.retriever, nil
	case StateEmpty:
		return nil, apperr.ErrEmptyIndex
	default:
		return nil, fmt.Errorf("%w: %s", ErrSessionNotReady, s.state)
	}
}

// Retrieve returns up to k chunks ranked by similarity. k == 0 uses the
// configured default.
func (s *Session) Retrieve(ctx context.Context, query string, k int) ([]vectorstore.RetrievalResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, &ValidationError{Field: "query", Message: "cannot be empty"}
	}
	if k < 0 {
		return nil, &ValidationError{Field: "k", Message: "cannot be negative"}
	}
	if k == 0 {
		k = s.cfg.TopK
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	retriever, err := s.readyRetriever()
	if err != nil {
		return nil, err
	}

	results, err := retriever.Retrieve(ctx, query, k)
	if err != nil {
		s.getLogger(ctx).ErrorContext(ctx, "retrieval failed", "error", err)
		return nil, err
	}
	return results, nil
}

// Ask answers a question from the current document.
func (s *Session) Ask(ctx context.Context, req rag.AskRequest) (rag.AskResponse, error) {
	if strings.TrimSpace(req.Question) == "" {
		return rag.AskResponse{}, &ValidationError{Field: "question", Message: "cannot be empty"}
	}
	if req.K < 0 {
		return rag.AskResponse{}, &ValidationError{Field: "k", Message: "cannot be negative"}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	retriever, err := s.readyRetriever()
	if err != nil {
		return rag.AskResponse{}, err
	}
	return s.cfg.Engine.Ask(ctx, retriever, req)
}

// Reset discards the current document and returns the session to EMPTY.
func (s *Session) Reset(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateProcessing {
		s.mu.Unlock()
		return ErrSessionBusy
	}
	old := s.index
	s.index = nil
	s.retriever = nil
	s.doc = nil
	s.stats = nil
	s.lastErr = nil
	s.state = StateEmpty
	s.mu.Unlock()

	s.release(ctx, old)
	s.getLogger(ctx).InfoContext(ctx, "session reset")
	return nil
}

// Status returns a snapshot of the session.
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{State: s.state}
	if s.doc != nil {
		doc := *s.doc
		st.Document = &doc
	}
	if s.stats != nil {
		stats := *s.stats
		st.Stats = &stats
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}
