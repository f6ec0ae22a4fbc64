package llm

import (
	"context"

	"github.com/sashabaranov/go-openai"

	"filechat-ai/internal/contextutil"
)

// DefaultChatBaseURL is the DeepSeek OpenAI-compatible endpoint.
const DefaultChatBaseURL = "https://api.deepseek.com"

// Client is a client for OpenAI-compatible chat completions APIs.
type Client struct {
	BaseURL string
	Model   string
	retry   RetryPolicy
	client  *openai.Client
}

// NewClient creates a new LLM client.
func NewClient(baseURL, apiKey, model string, retry RetryPolicy) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Client{
		BaseURL: cfg.BaseURL,
		Model:   model,
		retry:   retry,
		client:  openai.NewClientWithConfig(cfg),
	}
}

// ChatWithMessages sends a chat completion request and returns the first
// choice. Retryable failures are retried per the client's policy.
func (c *Client) ChatWithMessages(ctx context.Context, messages []Message, params ChatParams) (string, error) {
	model := params.Model
	if model == "" {
		model = c.Model
	}

	req := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    make([]openai.ChatCompletionMessage, len(messages)),
		MaxTokens:   params.MaxTokens,
		Temperature: params.Temperature,
	}
	for i, m := range messages {
		req.Messages[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	var reply string
	err := Retry(ctx, c.retry, "chat", func(ctx context.Context) error {
		resp, err := c.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return classify(ServiceChat, err)
		}
		if len(resp.Choices) == 0 {
			return NewServiceError(ServiceChat, "no choices returned")
		}
		reply = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", err
	}

	contextutil.LoggerFromContext(ctx).DebugContext(ctx, "chat completion received",
		"model", model, "messages", len(messages), "reply_len", len(reply))
	return reply, nil
}
