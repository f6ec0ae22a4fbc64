package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// embedContenter is the slice of *genai.Models used here.
type embedContenter interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// GeminiEmbeddingsClient embeds text with the Gemini API.
type GeminiEmbeddingsClient struct {
	Model        string
	ExpectedSize int // 0 accepts any dimension
	models       embedContenter
}

// NewGeminiEmbeddingsClient creates a Gemini embeddings client. baseURL may be
// empty to use the public endpoint.
func NewGeminiEmbeddingsClient(ctx context.Context, apiKey, baseURL, model string, expectedSize int) (*GeminiEmbeddingsClient, error) {
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GeminiEmbeddingsClient{
		Model:        model,
		ExpectedSize: expectedSize,
		models:       client.Models,
	}, nil
}

// ModelName returns the embedding model.
func (c *GeminiEmbeddingsClient) ModelName() string {
	return c.Model
}

// Embed embeds texts in one batchEmbedContents call with the given task type.
func (c *GeminiEmbeddingsClient) Embed(ctx context.Context, texts []string, task EmbeddingTask) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	resp, err := c.models.EmbedContent(ctx, c.Model, contents, &genai.EmbedContentConfig{
		TaskType: string(task),
	})
	if err != nil {
		return nil, classify(ServiceEmbedding, err)
	}
	if resp == nil || len(resp.Embeddings) != len(texts) {
		got := 0
		if resp != nil {
			got = len(resp.Embeddings)
		}
		return nil, NewServiceError(ServiceEmbedding, "embedding count mismatch: expected %d, got %d", len(texts), got)
	}

	out := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		if emb == nil {
			return nil, NewServiceError(ServiceEmbedding, "missing embedding at index %d", i)
		}
		if err := checkSize(emb.Values, c.ExpectedSize); err != nil {
			return nil, err
		}
		out[i] = emb.Values
	}
	return out, nil
}
