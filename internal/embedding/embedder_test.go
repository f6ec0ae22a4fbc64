package embedding

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filechat-ai/internal/apperr"
	"filechat-ai/internal/llm"
)

// fakeProvider encodes each text's trailing number as a 1-d vector so order
// can be checked. Batches are delayed in reverse so later batches finish first.
type fakeProvider struct {
	mu      sync.Mutex
	batches [][]string
	tasks   []llm.EmbeddingTask
	calls   atomic.Int32
	embed   func(call int32, texts []string) ([][]float32, error)
}

func (f *fakeProvider) Embed(ctx context.Context, texts []string, task llm.EmbeddingTask) ([][]float32, error) {
	call := f.calls.Add(1)
	f.mu.Lock()
	f.batches = append(f.batches, texts)
	f.tasks = append(f.tasks, task)
	f.mu.Unlock()

	if f.embed != nil {
		return f.embed(call, texts)
	}
	return encode(texts), nil
}

func (f *fakeProvider) ModelName() string { return "fake-model" }

func encode(texts []string) [][]float32 {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		var n float32
		for _, r := range t[strings.LastIndex(t, "-")+1:] {
			n = n*10 + float32(r-'0')
		}
		out[i] = []float32{n}
	}
	return out
}

func texts(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = "text-" + string(rune('0'+i))
	}
	return out
}

func testConfig(batchSize int) Config {
	return Config{
		BatchSize:   batchSize,
		Concurrency: 4,
		Retry: llm.RetryPolicy{
			MaxAttempts: 3,
			BaseDelay:   time.Millisecond,
			MaxDelay:    2 * time.Millisecond,
			Timeout:     time.Second,
		},
	}
}

func TestNewBatchEmbedder_InvalidConfig(t *testing.T) {
	p := &fakeProvider{}

	_, err := NewBatchEmbedder(nil, testConfig(3))
	assert.ErrorIs(t, err, apperr.ErrInvalidConfiguration)

	_, err = NewBatchEmbedder(p, testConfig(0))
	assert.ErrorIs(t, err, apperr.ErrInvalidConfiguration)

	cfg := testConfig(3)
	cfg.Concurrency = 0
	_, err = NewBatchEmbedder(p, cfg)
	assert.ErrorIs(t, err, apperr.ErrInvalidConfiguration)
}

func TestBatchEmbedder_EmbedBatch_PreservesOrder(t *testing.T) {
	p := &fakeProvider{
		embed: func(call int32, texts []string) ([][]float32, error) {
			// Make the first-dispatched batch the slowest.
			if strings.HasSuffix(texts[0], "-0") {
				time.Sleep(20 * time.Millisecond)
			}
			return encode(texts), nil
		},
	}
	e, err := NewBatchEmbedder(p, testConfig(3))
	require.NoError(t, err)

	in := texts(5)
	got, err := e.EmbedBatch(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, got, 5)

	for i, v := range got {
		assert.Equal(t, []float32{float32(i)}, v, "vector %d out of order", i)
	}

	sizes := make([]int, 0, len(p.batches))
	for _, b := range p.batches {
		sizes = append(sizes, len(b))
	}
	assert.ElementsMatch(t, []int{3, 2}, sizes)
	for _, task := range p.tasks {
		assert.Equal(t, llm.TaskDocument, task)
	}
}

func TestBatchEmbedder_EmbedBatch_PartialFailureDiscardsAll(t *testing.T) {
	fatal := &llm.ServiceError{Service: llm.ServiceEmbedding, StatusCode: 400, Err: errors.New("bad input")}
	p := &fakeProvider{
		embed: func(call int32, texts []string) ([][]float32, error) {
			if strings.HasSuffix(texts[0], "-3") {
				return nil, fatal
			}
			return encode(texts), nil
		},
	}
	e, err := NewBatchEmbedder(p, testConfig(3))
	require.NoError(t, err)

	got, err := e.EmbedBatch(context.Background(), texts(5))
	assert.Nil(t, got)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrEmbeddingService)
	assert.False(t, llm.IsRetryable(err))
}

func TestBatchEmbedder_RetriesRetryableErrors(t *testing.T) {
	p := &fakeProvider{
		embed: func(call int32, texts []string) ([][]float32, error) {
			if call <= 2 {
				return nil, &llm.ServiceError{Service: llm.ServiceEmbedding, StatusCode: 429, Retryable: true, Err: errors.New("rate limited")}
			}
			return encode(texts), nil
		},
	}
	e, err := NewBatchEmbedder(p, testConfig(10))
	require.NoError(t, err)

	got, err := e.EmbedBatch(context.Background(), texts(2))
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, int32(3), p.calls.Load())
}

func TestBatchEmbedder_DoesNotRetryNonRetryable(t *testing.T) {
	p := &fakeProvider{
		embed: func(call int32, texts []string) ([][]float32, error) {
			return nil, &llm.ServiceError{Service: llm.ServiceEmbedding, StatusCode: 401, Err: errors.New("invalid key")}
		},
	}
	e, err := NewBatchEmbedder(p, testConfig(10))
	require.NoError(t, err)

	_, err = e.EmbedBatch(context.Background(), texts(2))
	require.Error(t, err)

	var se *llm.ServiceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 401, se.StatusCode)
	assert.Equal(t, int32(1), p.calls.Load())
}

func TestBatchEmbedder_CountMismatchIsServiceError(t *testing.T) {
	p := &fakeProvider{
		embed: func(call int32, texts []string) ([][]float32, error) {
			return encode(texts[:1]), nil
		},
	}
	e, err := NewBatchEmbedder(p, testConfig(10))
	require.NoError(t, err)

	_, err = e.EmbedBatch(context.Background(), texts(3))
	assert.ErrorIs(t, err, apperr.ErrEmbeddingService)
	assert.Equal(t, int32(1), p.calls.Load())
}

func TestBatchEmbedder_EmbedQuery(t *testing.T) {
	p := &fakeProvider{}
	e, err := NewBatchEmbedder(p, testConfig(10))
	require.NoError(t, err)

	got, err := e.EmbedQuery(context.Background(), "query-7")
	require.NoError(t, err)
	assert.Equal(t, []float32{7}, got)
	require.Len(t, p.tasks, 1)
	assert.Equal(t, llm.TaskQuery, p.tasks[0])
	assert.Equal(t, "fake-model", e.ModelName())
}

func TestBatchEmbedder_EmbedBatch_Empty(t *testing.T) {
	p := &fakeProvider{}
	e, err := NewBatchEmbedder(p, testConfig(10))
	require.NoError(t, err)

	got, err := e.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, int32(0), p.calls.Load())
}

func TestBatchEmbedder_RateLimited(t *testing.T) {
	p := &fakeProvider{}
	cfg := testConfig(1)
	cfg.RequestsPerSecond = 1000
	e, err := NewBatchEmbedder(p, cfg)
	require.NoError(t, err)
	require.NotNil(t, e.limiter)

	got, err := e.EmbedBatch(context.Background(), texts(4))
	require.NoError(t, err)
	assert.Len(t, got, 4)
	assert.Equal(t, int32(4), p.calls.Load())
}

func TestBatchEmbedder_PacingOutlastsAttemptTimeout(t *testing.T) {
	p := &fakeProvider{}
	cfg := testConfig(1)
	cfg.Concurrency = 4
	cfg.RequestsPerSecond = 20
	cfg.Retry.Timeout = 20 * time.Millisecond
	e, err := NewBatchEmbedder(p, cfg)
	require.NoError(t, err)

	// Four calls at 20/s queue for about 150ms, well past the attempt timeout.
	got, err := e.EmbedBatch(context.Background(), texts(4))
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0}, {1}, {2}, {3}}, got)
	assert.Equal(t, int32(4), p.calls.Load())
}

func TestBatchEmbedder_PacingPastCallerDeadline(t *testing.T) {
	p := &fakeProvider{}
	cfg := testConfig(1)
	cfg.Concurrency = 4
	cfg.RequestsPerSecond = 1
	e, err := NewBatchEmbedder(p, cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	_, err = e.EmbedBatch(ctx, texts(4))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSplitBatches(t *testing.T) {
	tests := []struct {
		n, size int
		want    []batchRange
	}{
		{5, 3, []batchRange{{0, 3}, {3, 5}}},
		{6, 3, []batchRange{{0, 3}, {3, 6}}},
		{2, 10, []batchRange{{0, 2}}},
		{0, 3, []batchRange{}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, splitBatches(tt.n, tt.size), "splitBatches(%d, %d)", tt.n, tt.size)
	}
}
