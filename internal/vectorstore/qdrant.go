package vectorstore

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"slices"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"filechat-ai/internal/contextutil"
	"filechat-ai/internal/indexer"
)

const (
	payloadText      = "text"
	payloadDocument  = "document_id"
	payloadStart     = "start_offset"
	payloadEnd       = "end_offset"
	payloadSequence  = "sequence_index"
	payloadInsertSeq = "insert_seq"

	upsertBatchSize = 256
)

// NewQdrantClient creates a Qdrant gRPC client.
// urlStr should be in the format "http://host:port" (e.g., "http://localhost:6333").
// The gRPC port (typically 6334) will be derived from the HTTP port.
func NewQdrantClient(urlStr, apiKey string) (*qdrant.Client, error) {
	host, port, err := parseQdrantURL(urlStr)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: apiKey,
		UseTLS: apiKey != "",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}
	return client, nil
}

// parseQdrantURL returns the host and gRPC port for an HTTP URL.
func parseQdrantURL(urlStr string) (string, int, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid Qdrant URL: %w", err)
	}

	host := parsedURL.Hostname()
	if host == "" {
		host = "localhost"
	}

	port := 6334 // Default gRPC port
	if parsedURL.Port() != "" {
		httpPort, err := strconv.Atoi(parsedURL.Port())
		if err == nil {
			// gRPC port is typically HTTP port + 1
			port = httpPort + 1
		}
	}
	return host, port, nil
}

// NewQdrantFactory returns a Factory that gives every index its own
// collection named "<prefix>-<uuid>".
func NewQdrantFactory(client *qdrant.Client, prefix string) Factory {
	return func(context.Context) (VectorIndex, error) {
		return NewQdrantIndex(client, fmt.Sprintf("%s-%s", prefix, uuid.NewString())), nil
	}
}

// QdrantIndex is a VectorIndex backed by a Qdrant collection. The collection
// is created on first Add with cosine distance and dropped on Clear.
type QdrantIndex struct {
	client     *qdrant.Client
	points     pointQuerier
	collection string
	logger     *slog.Logger

	mu      sync.RWMutex
	dim     int
	count   int
	created bool
}

// NewQdrantIndex creates an index bound to collection.
func NewQdrantIndex(client *qdrant.Client, collection string) *QdrantIndex {
	return &QdrantIndex{
		client:     client,
		points:     client,
		collection: collection,
		logger:     slog.Default(),
	}
}

// getLogger returns a logger from context if available, otherwise returns the index's logger.
func (q *QdrantIndex) getLogger(ctx context.Context) *slog.Logger {
	if ctxLogger := contextutil.LoggerFromContext(ctx); ctxLogger != slog.Default() {
		return ctxLogger
	}
	return q.logger
}

// Collection returns the backing collection name.
func (q *QdrantIndex) Collection() string {
	return q.collection
}

// Add upserts chunks as points. insert_seq records insertion order for tie-breaks.
func (q *QdrantIndex) Add(ctx context.Context, chunks []indexer.Chunk, vectors [][]float32) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	dim, err := validateBatch(q.dim, len(chunks), len(vectors), vectors)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	logger := q.getLogger(ctx)
	if !q.created {
		if err := q.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: q.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(dim),
				Distance: qdrant.Distance_Cosine,
			}),
		}); err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}
		q.created = true
		logger.InfoContext(ctx, "collection created", "collection", q.collection, "vector_size", dim)
	}

	points := make([]*qdrant.PointStruct, len(chunks))
	for i, chunk := range chunks {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(uuid.NewString()),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: chunkPayload(chunk, q.count+i),
		}
	}

	for start := 0; start < len(points); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(points))
		if _, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: q.collection,
			Wait:           qdrant.PtrOf(true),
			Points:         points[start:end],
		}); err != nil {
			logger.ErrorContext(ctx, "failed to upsert points", "collection", q.collection, "count", end-start, "error", err)
			return fmt.Errorf("failed to upsert points: %w", err)
		}
	}

	q.count += len(chunks)
	q.dim = dim
	logger.InfoContext(ctx, "upserted points", "collection", q.collection, "count", len(chunks))
	return nil
}

// Search queries Qdrant and re-sorts by (score desc, insert_seq asc).
func (q *QdrantIndex) Search(ctx context.Context, query []float32, k int) ([]RetrievalResult, error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}

	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.count == 0 {
		return []RetrievalResult{}, nil
	}
	if len(query) != q.dim {
		return nil, &DimensionMismatchError{Expected: q.dim, Actual: len(query), Reason: "query vector"}
	}

	logger := q.getLogger(ctx)

	var hits []scoredChunk
	var err error
	if norm(query) == 0 {
		hits, err = q.scrollAll(ctx)
	} else {
		hits, err = q.query(ctx, query, k)
	}
	if err != nil {
		logger.ErrorContext(ctx, "failed to search points", "collection", q.collection, "k", k, "error", err)
		return nil, err
	}

	results := rankScored(hits, k)
	logger.DebugContext(ctx, "search completed", "collection", q.collection, "k", k, "results", len(results))
	return results, nil
}

type scoredChunk struct {
	chunk indexer.Chunk
	score float64
	seq   int64
}

// pointQuerier is the slice of *qdrant.Client used by Search.
type pointQuerier interface {
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
}

func (q *QdrantIndex) query(ctx context.Context, query []float32, k int) ([]scoredChunk, error) {
	// Overfetch so ties straddling the k-th result can be broken by insertion order.
	hits, err := q.queryPoints(ctx, query, min(2*k, q.count), nil)
	if err != nil {
		return nil, err
	}
	sortScored(hits)

	// Qdrant orders equal scores arbitrarily. If the page ends inside the tie
	// at the k-th score, fetch every point scoring at least that much so the
	// earliest inserted ties are present.
	if len(hits) >= k && len(hits) < q.count && hits[len(hits)-1].score == hits[k-1].score {
		threshold := math.Nextafter32(float32(hits[k-1].score), float32(math.Inf(-1)))
		hits, err = q.queryPoints(ctx, query, q.count, &threshold)
		if err != nil {
			return nil, err
		}
	}
	return hits, nil
}

func (q *QdrantIndex) queryPoints(ctx context.Context, query []float32, limit int, threshold *float32) ([]scoredChunk, error) {
	points, err := q.points.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		ScoreThreshold: threshold,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search points: %w", err)
	}

	hits := make([]scoredChunk, 0, len(points))
	for _, p := range points {
		chunk, seq := payloadChunk(p.GetPayload())
		hits = append(hits, scoredChunk{chunk: chunk, score: clampScore(p.GetScore()), seq: seq})
	}
	return hits, nil
}

// clampScore widens a float32 cosine score into [-1, 1], matching MemoryIndex.
func clampScore(score float32) float64 {
	return math.Max(-1, math.Min(1, float64(score)))
}

// scrollAll returns every point with score 0. A zero query is similar to nothing.
func (q *QdrantIndex) scrollAll(ctx context.Context) ([]scoredChunk, error) {
	points, err := q.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: q.collection,
		Limit:          qdrant.PtrOf(uint32(q.count)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scroll points: %w", err)
	}

	hits := make([]scoredChunk, 0, len(points))
	for _, p := range points {
		chunk, seq := payloadChunk(p.GetPayload())
		hits = append(hits, scoredChunk{chunk: chunk, seq: seq})
	}
	return hits, nil
}

// sortScored orders hits by score then insertion sequence.
func sortScored(hits []scoredChunk) {
	slices.SortFunc(hits, func(a, b scoredChunk) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})
}

// rankScored orders hits and keeps the top k.
func rankScored(hits []scoredChunk, k int) []RetrievalResult {
	sortScored(hits)
	if k < len(hits) {
		hits = hits[:k]
	}

	results := make([]RetrievalResult, len(hits))
	for i, h := range hits {
		results[i] = RetrievalResult{Chunk: h.chunk, Score: h.score, Rank: i + 1}
	}
	return results
}

// Clear drops the collection.
func (q *QdrantIndex) Clear(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.created {
		if err := q.client.DeleteCollection(ctx, q.collection); err != nil {
			return fmt.Errorf("failed to delete collection: %w", err)
		}
		q.getLogger(ctx).InfoContext(ctx, "collection deleted", "collection", q.collection)
	}
	q.created = false
	q.count = 0
	q.dim = 0
	return nil
}

// IsEmpty reports whether no points have been added.
func (q *QdrantIndex) IsEmpty() bool {
	return q.Len() == 0
}

// Len returns the number of points added through this index.
func (q *QdrantIndex) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.count
}

// Dimension returns the collection vector size.
func (q *QdrantIndex) Dimension() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.dim
}

func chunkPayload(chunk indexer.Chunk, insertSeq int) map[string]*qdrant.Value {
	return qdrant.NewValueMap(map[string]any{
		payloadText:      chunk.Text,
		payloadDocument:  chunk.DocumentID,
		payloadStart:     int64(chunk.StartOffset),
		payloadEnd:       int64(chunk.EndOffset),
		payloadSequence:  int64(chunk.SequenceIndex),
		payloadInsertSeq: int64(insertSeq),
	})
}

func payloadChunk(payload map[string]*qdrant.Value) (indexer.Chunk, int64) {
	return indexer.Chunk{
		Text:          payload[payloadText].GetStringValue(),
		DocumentID:    payload[payloadDocument].GetStringValue(),
		StartOffset:   int(payload[payloadStart].GetIntegerValue()),
		EndOffset:     int(payload[payloadEnd].GetIntegerValue()),
		SequenceIndex: int(payload[payloadSequence].GetIntegerValue()),
	}, payload[payloadInsertSeq].GetIntegerValue()
}
