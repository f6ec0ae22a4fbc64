package llm

// Message represents a single message in a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatParams holds parameters for chat completion requests.
type ChatParams struct {
	// Model specifies the model to use. If empty, the client's default model is used.
	Model string

	// MaxTokens specifies the maximum number of tokens to generate.
	// If 0, no limit is applied.
	MaxTokens int

	// Temperature controls the randomness of the output.
	Temperature float32
}

// EmbeddingTask tells providers that distinguish them whether a text is a
// document passage or a search query. Both tasks use the same model.
type EmbeddingTask string

const (
	TaskDocument EmbeddingTask = "RETRIEVAL_DOCUMENT"
	TaskQuery    EmbeddingTask = "RETRIEVAL_QUERY"
)
