package rag

import (
	"context"

	"filechat-ai/internal/apperr"
	"filechat-ai/internal/embedding"
	"filechat-ai/internal/vectorstore"
)

// Retriever turns a query into ranked chunks.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]vectorstore.RetrievalResult, error)
}

// IndexRetriever embeds queries and searches one VectorIndex.
type IndexRetriever struct {
	embedder embedding.Embedder
	index    vectorstore.VectorIndex
}

// NewIndexRetriever creates a retriever over index.
func NewIndexRetriever(embedder embedding.Embedder, index vectorstore.VectorIndex) *IndexRetriever {
	return &IndexRetriever{embedder: embedder, index: index}
}

// Retrieve returns up to k chunks ranked by similarity to query. Embedding
// and index errors are returned unchanged.
func (r *IndexRetriever) Retrieve(ctx context.Context, query string, k int) ([]vectorstore.RetrievalResult, error) {
	if r.index == nil || r.index.IsEmpty() {
		return nil, apperr.ErrEmptyIndex
	}

	vec, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	return r.index.Search(ctx, vec, k)
}
