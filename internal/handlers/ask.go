package handlers

import (
	"encoding/json"
	"net/http"

	"filechat-ai/internal/contextutil"
	"filechat-ai/internal/rag"
	"filechat-ai/internal/service"
)

// AskHandler handles HTTP requests for questions about the loaded document.
type AskHandler struct {
	session service.SessionService
}

// NewAskHandler creates a new AskHandler.
func NewAskHandler(session service.SessionService) *AskHandler {
	return &AskHandler{session: session}
}

// AskRequest represents the HTTP request payload for questions.
//
// swagger:model AskRequest
type AskRequest struct {
	Question string `json:"question"`
	K        int    `json:"k,omitempty"`
}

// AskResponse represents the HTTP response payload for questions.
//
// swagger:model AskResponse
type AskResponse struct {
	// The generated answer
	Answer string `json:"answer"`

	// Chunks given to the model, in retrieval order
	Sources []SourceResponse `json:"sources"`
}

// SourceResponse represents a source chunk in the HTTP response.
//
// swagger:model SourceResponse
type SourceResponse struct {
	DocumentID    string  `json:"document_id"`
	SequenceIndex int     `json:"sequence_index"`
	StartOffset   int     `json:"start_offset"`
	EndOffset     int     `json:"end_offset"`
	Score         float64 `json:"score"`
	Rank          int     `json:"rank"`
	Text          string  `json:"text"`
}

// ServeHTTP handles HTTP requests for questions.
//
// swagger:route POST /api/v1/ask askQuestion
//
// # Ask a question about the loaded document
//
// Retrieves the most relevant chunks and generates an answer from them.
//
// ---
// consumes:
// - application/json
// produces:
// - application/json
// responses:
//
//	'200':
//	  description: Answer with sources
//	  schema:
//	    "$ref": "#/definitions/AskResponse"
//	'400':
//	  description: Invalid request
//	'409':
//	  description: No document has been processed
//	'502':
//	  description: Embedding or answer service error
//	'503':
//	  description: Embedding or answer service temporarily unavailable
func (h *AskHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.session.Ask(ctx, rag.AskRequest{Question: req.Question, K: req.K})
	if err != nil {
		handleServiceError(ctx, w, err)
		return
	}

	sources := make([]SourceResponse, len(resp.Sources))
	for i, s := range resp.Sources {
		sources[i] = SourceResponse(s)
	}

	writeJSON(w, http.StatusOK, AskResponse{Answer: resp.Answer, Sources: sources})
}
