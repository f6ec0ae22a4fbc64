package llm

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"google.golang.org/genai"

	"filechat-ai/internal/apperr"
)

type fakeModels struct {
	gotModel string
	gotTask  string
	gotTexts []string
	resp     *genai.EmbedContentResponse
	err      error
}

func (f *fakeModels) EmbedContent(_ context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
	f.gotModel = model
	if config != nil {
		f.gotTask = config.TaskType
	}
	for _, c := range contents {
		for _, p := range c.Parts {
			f.gotTexts = append(f.gotTexts, p.Text)
		}
	}
	return f.resp, f.err
}

func TestGeminiEmbeddingsClient_Embed(t *testing.T) {
	fake := &fakeModels{
		resp: &genai.EmbedContentResponse{
			Embeddings: []*genai.ContentEmbedding{
				{Values: []float32{1, 2}},
				{Values: []float32{3, 4}},
			},
		},
	}
	client := &GeminiEmbeddingsClient{Model: "text-embedding-004", ExpectedSize: 2, models: fake}

	got, err := client.Embed(context.Background(), []string{"first", "second"}, TaskQuery)
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(got) != 2 || got[1][0] != 3 {
		t.Errorf("Embed() = %v", got)
	}
	if fake.gotModel != "text-embedding-004" {
		t.Errorf("model = %q", fake.gotModel)
	}
	if fake.gotTask != "RETRIEVAL_QUERY" {
		t.Errorf("task type = %q, want RETRIEVAL_QUERY", fake.gotTask)
	}
	if len(fake.gotTexts) != 2 || fake.gotTexts[0] != "first" {
		t.Errorf("texts = %v", fake.gotTexts)
	}
}

func TestGeminiEmbeddingsClient_Embed_Errors(t *testing.T) {
	tests := []struct {
		name          string
		fake          *fakeModels
		expectedSize  int
		wantRetryable bool
	}{
		{
			name: "count mismatch",
			fake: &fakeModels{resp: &genai.EmbedContentResponse{
				Embeddings: []*genai.ContentEmbedding{{Values: []float32{1}}},
			}},
		},
		{
			name: "nil response",
			fake: &fakeModels{},
		},
		{
			name:         "size mismatch",
			expectedSize: 3,
			fake: &fakeModels{resp: &genai.EmbedContentResponse{
				Embeddings: []*genai.ContentEmbedding{{Values: []float32{1}}, {Values: []float32{2}}},
			}},
		},
		{
			name:          "rate limit",
			fake:          &fakeModels{err: genai.APIError{Code: http.StatusTooManyRequests, Message: "quota"}},
			wantRetryable: true,
		},
		{
			name: "bad request",
			fake: &fakeModels{err: genai.APIError{Code: http.StatusBadRequest, Message: "bad"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &GeminiEmbeddingsClient{Model: "m", ExpectedSize: tt.expectedSize, models: tt.fake}
			_, err := client.Embed(context.Background(), []string{"a", "b"}, TaskDocument)
			if err == nil {
				t.Fatal("Embed() expected error")
			}
			if !errors.Is(err, apperr.ErrEmbeddingService) {
				t.Errorf("error = %v, want ErrEmbeddingService", err)
			}
			if IsRetryable(err) != tt.wantRetryable {
				t.Errorf("IsRetryable() = %v, want %v", IsRetryable(err), tt.wantRetryable)
			}
		})
	}
}

func TestNewGeminiEmbeddingsClient(t *testing.T) {
	client, err := NewGeminiEmbeddingsClient(context.Background(), "test-key", "", "text-embedding-004", 768)
	if err != nil {
		t.Fatalf("NewGeminiEmbeddingsClient() error = %v", err)
	}
	if client.ModelName() != "text-embedding-004" || client.ExpectedSize != 768 {
		t.Errorf("unexpected client: %+v", client)
	}
}
