package rag

// AskRequest represents a question about the loaded document.
type AskRequest struct {
	// Question is the user's question to answer.
	Question string `json:"question"`
	// K optionally overrides the number of chunks to retrieve.
	K int `json:"k,omitempty"`
}

// Source identifies a chunk that was given to the answer model.
type Source struct {
	// DocumentID is the document the chunk belongs to.
	DocumentID string `json:"document_id"`
	// SequenceIndex is the chunk's 0-based position in the document.
	SequenceIndex int `json:"sequence_index"`
	// StartOffset and EndOffset locate the chunk in the extracted text, in characters.
	StartOffset int `json:"start_offset"`
	EndOffset   int `json:"end_offset"`
	// Score is the cosine similarity to the question.
	Score float64 `json:"score"`
	// Rank is the 1-based retrieval rank.
	Rank int `json:"rank"`
	// Text is the chunk text.
	Text string `json:"text"`
}

// AskResponse represents the response to a question.
type AskResponse struct {
	// Answer is the generated answer.
	Answer string `json:"answer"`
	// Sources are the chunks used to generate the answer, in retrieval order.
	Sources []Source `json:"sources"`
}

// ContextChunk is one retrieved chunk handed to the answer model.
type ContextChunk struct {
	Text          string
	DocumentID    string
	SequenceIndex int
}

// AnswerRequest is the input to an AnswerGenerator. ContextChunks are in
// retrieval rank order.
type AnswerRequest struct {
	Query         string
	ContextChunks []ContextChunk
}

// AnswerResponse is the output of an AnswerGenerator.
type AnswerResponse struct {
	AnswerText string
}
