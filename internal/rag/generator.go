package rag

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_answer_generator.go -package=mocks filechat-ai/internal/rag AnswerGenerator

import (
	"context"
	"fmt"
	"strings"

	"filechat-ai/internal/contextutil"
	"filechat-ai/internal/llm"
)

const systemPrompt = `You are a helpful AI assistant that answers questions based on provided document context.

Instructions:
1. Answer the user's question using ONLY the information provided in the context
2. If the context doesn't contain enough information to answer the question, say so clearly
3. Be accurate and cite relevant parts of the context in your response
4. If the user's question is not related to the document content, politely redirect them to ask about the document
5. Provide clear, concise, and helpful answers
6. Do not make up information that is not in the provided context`

const (
	answerTemperature = 0.3
	answerMaxTokens   = 1000
)

// AnswerGenerator produces an answer from a query and its context chunks.
type AnswerGenerator interface {
	Generate(ctx context.Context, req AnswerRequest) (AnswerResponse, error)
}

// ChatClient sends chat messages to a language model.
type ChatClient interface {
	ChatWithMessages(ctx context.Context, messages []llm.Message, params llm.ChatParams) (string, error)
}

// LLMAnswerGenerator answers through a chat model.
type LLMAnswerGenerator struct {
	client ChatClient
}

// NewLLMAnswerGenerator creates an AnswerGenerator backed by client.
func NewLLMAnswerGenerator(client ChatClient) *LLMAnswerGenerator {
	return &LLMAnswerGenerator{client: client}
}

// Generate builds the prompt and calls the chat model.
func (g *LLMAnswerGenerator) Generate(ctx context.Context, req AnswerRequest) (AnswerResponse, error) {
	logger := contextutil.LoggerFromContext(ctx)

	userMessage := buildUserPrompt(req)
	messages := []llm.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userMessage},
	}

	logger.DebugContext(ctx, "sending request to LLM",
		"context_chunks", len(req.ContextChunks),
		"user_message_length", len(userMessage),
	)

	answer, err := g.client.ChatWithMessages(ctx, messages, llm.ChatParams{
		MaxTokens:   answerMaxTokens,
		Temperature: answerTemperature,
	})
	if err != nil {
		return AnswerResponse{}, fmt.Errorf("failed to get LLM response: %w", err)
	}

	return AnswerResponse{AnswerText: answer}, nil
}

func buildUserPrompt(req AnswerRequest) string {
	blocks := make([]string, len(req.ContextChunks))
	for i, c := range req.ContextChunks {
		blocks[i] = fmt.Sprintf("Context %d: %s", i+1, c.Text)
	}

	var b strings.Builder
	b.WriteString("Context from the document:\n")
	b.WriteString(strings.Join(blocks, "\n\n"))
	b.WriteString("\n\nUser Question: ")
	b.WriteString(req.Query)
	b.WriteString("\n\nPlease answer the user's question based on the provided context. ")
	b.WriteString("If the context doesn't contain relevant information, please say so clearly.")
	return b.String()
}
