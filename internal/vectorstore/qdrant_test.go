package vectorstore

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"testing"

	"github.com/qdrant/go-client/qdrant"

	"filechat-ai/internal/apperr"
	"filechat-ai/internal/indexer"
)

// TestParseQdrantURL tests URL parsing logic without creating a real client.
// This avoids connection warnings in unit tests.
func TestParseQdrantURL(t *testing.T) {
	tests := []struct {
		name     string
		urlStr   string
		wantErr  bool
		wantHost string
		wantPort int
	}{
		{
			name:     "valid URL",
			urlStr:   "http://localhost:6333",
			wantHost: "localhost",
			wantPort: 6334, // gRPC port is HTTP port + 1
		},
		{
			name:     "URL with custom port",
			urlStr:   "http://qdrant.internal:9000",
			wantHost: "qdrant.internal",
			wantPort: 9001,
		},
		{
			name:    "invalid URL",
			urlStr:  "://invalid",
			wantErr: true,
		},
		{
			name:     "URL without port",
			urlStr:   "http://localhost",
			wantHost: "localhost",
			wantPort: 6334, // Default
		},
		{
			name:     "URL without hostname",
			urlStr:   "http://:6333",
			wantHost: "localhost", // Defaults to localhost
			wantPort: 6334,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, port, err := parseQdrantURL(tt.urlStr)
			if tt.wantErr {
				if err == nil {
					t.Error("parseQdrantURL() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseQdrantURL() unexpected error: %v", err)
			}
			if host != tt.wantHost {
				t.Errorf("host = %q, want %q", host, tt.wantHost)
			}
			if port != tt.wantPort {
				t.Errorf("port = %d, want %d", port, tt.wantPort)
			}
		})
	}
}

func TestQdrantIndex_getLogger(t *testing.T) {
	idx := &QdrantIndex{logger: slog.Default()}

	logger := idx.getLogger(context.Background())
	if logger != idx.logger {
		t.Error("getLogger() should return index logger when context has no logger")
	}
}

// The tests below exercise paths that return before the client is used.

func TestQdrantIndex_Add_Validation(t *testing.T) {
	idx := NewQdrantIndex(nil, "test-collection")
	ctx := context.Background()

	if err := idx.Add(ctx, nil, nil); err != nil {
		t.Errorf("Add() with no chunks should return early without error, got: %v", err)
	}

	err := idx.Add(ctx, make([]indexer.Chunk, 2), [][]float32{{1, 2}})
	if !errors.Is(err, apperr.ErrDimensionMismatch) {
		t.Errorf("Add() with count mismatch error = %v, want ErrDimensionMismatch", err)
	}
	if !idx.IsEmpty() {
		t.Error("failed Add() must leave the index empty")
	}
}

func TestQdrantIndex_Search_Validation(t *testing.T) {
	idx := NewQdrantIndex(nil, "test-collection")
	ctx := context.Background()

	if _, err := idx.Search(ctx, []float32{1, 2}, 0); !errors.Is(err, ErrInvalidK) {
		t.Errorf("Search() with k=0 error = %v, want ErrInvalidK", err)
	}

	results, err := idx.Search(ctx, []float32{1, 2}, 3)
	if err != nil {
		t.Fatalf("Search() on empty index error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Search() on empty index returned %d results", len(results))
	}

	idx.count, idx.dim = 1, 3
	if _, err := idx.Search(ctx, []float32{1, 2}, 1); !errors.Is(err, apperr.ErrDimensionMismatch) {
		t.Errorf("Search() with wrong query dimension error = %v, want ErrDimensionMismatch", err)
	}
}

func TestQdrantIndex_Clear_NotCreated(t *testing.T) {
	idx := NewQdrantIndex(nil, "test-collection")
	idx.count, idx.dim = 4, 8

	if err := idx.Clear(context.Background()); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if !idx.IsEmpty() || idx.Dimension() != 0 {
		t.Error("Clear() should reset count and dimension")
	}
}

func TestChunkPayloadRoundTrip(t *testing.T) {
	chunk := indexer.Chunk{
		Text:          "some chunk text",
		StartOffset:   800,
		EndOffset:     1800,
		DocumentID:    "doc-42",
		SequenceIndex: 1,
	}

	got, seq := payloadChunk(chunkPayload(chunk, 17))
	if got != chunk {
		t.Errorf("payloadChunk() = %+v, want %+v", got, chunk)
	}
	if seq != 17 {
		t.Errorf("insert seq = %d, want 17", seq)
	}
}

func TestRankScored(t *testing.T) {
	hits := []scoredChunk{
		{chunk: indexer.Chunk{SequenceIndex: 3}, score: 0.5, seq: 3},
		{chunk: indexer.Chunk{SequenceIndex: 1}, score: 0.9, seq: 1},
		{chunk: indexer.Chunk{SequenceIndex: 2}, score: 0.9, seq: 0},
		{chunk: indexer.Chunk{SequenceIndex: 0}, score: 0.1, seq: 2},
	}

	results := rankScored(hits, 3)
	if len(results) != 3 {
		t.Fatalf("rankScored() returned %d results, want 3", len(results))
	}

	wantSeq := []int{2, 1, 3}
	for i, want := range wantSeq {
		if results[i].Chunk.SequenceIndex != want {
			t.Errorf("result %d = chunk %d, want %d", i, results[i].Chunk.SequenceIndex, want)
		}
		if results[i].Rank != i+1 {
			t.Errorf("result %d rank = %d, want %d", i, results[i].Rank, i+1)
		}
	}
}

func TestNewQdrantFactory_UniqueCollections(t *testing.T) {
	factory := NewQdrantFactory(nil, "filechat")
	a, err := factory(context.Background())
	if err != nil {
		t.Fatalf("factory() error = %v", err)
	}
	b, err := factory(context.Background())
	if err != nil {
		t.Fatalf("factory() error = %v", err)
	}

	ca := a.(*QdrantIndex).Collection()
	cb := b.(*QdrantIndex).Collection()
	if ca == cb {
		t.Errorf("factory returned the same collection twice: %s", ca)
	}
	if !strings.HasPrefix(ca, "filechat-") {
		t.Errorf("collection %q should carry the prefix", ca)
	}
}

// reversedTies answers queries from fixed scores, returning equal scores in
// reverse insertion order the way an index is free to.
type reversedTies struct {
	scores   []float32
	requests []*qdrant.QueryPoints
}

func (r *reversedTies) Query(_ context.Context, req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error) {
	r.requests = append(r.requests, req)

	points := make([]*qdrant.ScoredPoint, 0, len(r.scores))
	for seq, score := range r.scores {
		if req.ScoreThreshold != nil && score < *req.ScoreThreshold {
			continue
		}
		points = append(points, &qdrant.ScoredPoint{
			Score:   score,
			Payload: chunkPayload(indexer.Chunk{SequenceIndex: seq}, seq),
		})
	}
	slices.SortStableFunc(points, func(a, b *qdrant.ScoredPoint) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return -cmp.Compare(a.Payload[payloadInsertSeq].GetIntegerValue(), b.Payload[payloadInsertSeq].GetIntegerValue())
	})
	if limit := int(req.GetLimit()); limit < len(points) {
		points = points[:limit]
	}
	return points, nil
}

func TestQdrantIndex_Search_TiesBeyondOverfetch(t *testing.T) {
	tests := []struct {
		name         string
		scores       []float32
		k            int
		wantSeq      []int
		wantRequests int
	}{
		{
			name:         "five identical vectors, k=1",
			scores:       []float32{0.8, 0.8, 0.8, 0.8, 0.8},
			k:            1,
			wantSeq:      []int{0},
			wantRequests: 2,
		},
		{
			name:         "tie at the k-th score past the page",
			scores:       []float32{0.9, 0.5, 0.5, 0.5, 0.5, 0.5, 0.1},
			k:            2,
			wantSeq:      []int{0, 1},
			wantRequests: 2,
		},
		{
			name:         "page ends below the k-th score",
			scores:       []float32{0.9, 0.7, 0.5, 0.3, 0.1},
			k:            2,
			wantSeq:      []int{0, 1},
			wantRequests: 1,
		},
		{
			name:         "page covers every point",
			scores:       []float32{0.4, 0.4, 0.4},
			k:            2,
			wantSeq:      []int{0, 1},
			wantRequests: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &reversedTies{scores: tt.scores}
			idx := NewQdrantIndex(nil, "test-collection")
			idx.points = fake
			idx.count, idx.dim = len(tt.scores), 2

			results, err := idx.Search(context.Background(), []float32{1, 0}, tt.k)
			if err != nil {
				t.Fatalf("Search() error = %v", err)
			}
			if len(results) != len(tt.wantSeq) {
				t.Fatalf("Search() returned %d results, want %d", len(results), len(tt.wantSeq))
			}
			for i, want := range tt.wantSeq {
				if results[i].Chunk.SequenceIndex != want {
					t.Errorf("result %d = chunk %d, want %d", i, results[i].Chunk.SequenceIndex, want)
				}
			}
			if len(fake.requests) != tt.wantRequests {
				t.Errorf("Query() called %d times, want %d", len(fake.requests), tt.wantRequests)
			}
		})
	}
}

func TestClampScore(t *testing.T) {
	tests := []struct {
		in   float32
		want float64
	}{
		{1.0000001, 1},
		{-1.0000001, -1},
		{0.5, 0.5},
		{0, 0},
	}
	for _, tt := range tests {
		if got := clampScore(tt.in); got != tt.want {
			t.Errorf("clampScore(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
