package llm

import (
	"context"

	"github.com/sashabaranov/go-openai"
)

// EmbeddingsClient calls an OpenAI-compatible /embeddings endpoint
// (OpenAI, llama.cpp, vLLM, Ollama).
type EmbeddingsClient struct {
	BaseURL      string
	Model        string
	ExpectedSize int // 0 accepts any dimension
	client       *openai.Client
}

// NewEmbeddingsClient creates a new embeddings client. baseURL must include
// the API version prefix, e.g. "https://api.openai.com/v1".
func NewEmbeddingsClient(baseURL, apiKey, model string, expectedSize int) *EmbeddingsClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &EmbeddingsClient{
		BaseURL:      cfg.BaseURL,
		Model:        model,
		ExpectedSize: expectedSize,
		client:       openai.NewClientWithConfig(cfg),
	}
}

// ModelName returns the embedding model.
func (c *EmbeddingsClient) ModelName() string {
	return c.Model
}

// Embed embeds texts in one request. OpenAI-compatible servers have no task
// types, so task is ignored. Vectors come back in input order.
func (c *EmbeddingsClient) Embed(ctx context.Context, texts []string, _ EmbeddingTask) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: texts,
		Model: openai.EmbeddingModel(c.Model),
	})
	if err != nil {
		return nil, classify(ServiceEmbedding, err)
	}

	if len(resp.Data) != len(texts) {
		return nil, NewServiceError(ServiceEmbedding, "embedding count mismatch: expected %d, got %d", len(texts), len(resp.Data))
	}

	// Servers may return data out of order; Index is authoritative.
	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) || out[d.Index] != nil {
			return nil, NewServiceError(ServiceEmbedding, "invalid embedding index %d", d.Index)
		}
		if err := checkSize(d.Embedding, c.ExpectedSize); err != nil {
			return nil, err
		}
		out[d.Index] = d.Embedding
	}

	return out, nil
}

func checkSize(vec []float32, expected int) error {
	if len(vec) == 0 {
		return NewServiceError(ServiceEmbedding, "empty embedding returned")
	}
	if expected > 0 && len(vec) != expected {
		return NewServiceError(ServiceEmbedding, "embedding size mismatch: expected %d, got %d", expected, len(vec))
	}
	return nil
}
