package handlers

import (
	"encoding/json"
	"net/http"

	"filechat-ai/internal/contextutil"
	"filechat-ai/internal/service"
)

// RetrieveHandler handles HTTP requests for raw chunk retrieval.
type RetrieveHandler struct {
	session service.SessionService
}

// NewRetrieveHandler creates a new RetrieveHandler.
func NewRetrieveHandler(session service.SessionService) *RetrieveHandler {
	return &RetrieveHandler{session: session}
}

// RetrieveRequest represents the HTTP request payload for retrieval.
//
// swagger:model RetrieveRequest
type RetrieveRequest struct {
	Query string `json:"query"`
	K     int    `json:"k,omitempty"`
}

// RetrieveResponse represents the HTTP response payload for retrieval.
//
// swagger:model RetrieveResponse
type RetrieveResponse struct {
	Results []SourceResponse `json:"results"`
}

// ServeHTTP handles HTTP requests for retrieval.
//
// swagger:route POST /api/v1/retrieve retrieveChunks
//
// # Retrieve relevant chunks
//
// Returns the chunks most similar to the query without generating an answer.
//
// ---
// consumes:
// - application/json
// produces:
// - application/json
// responses:
//
//	'200':
//	  description: Ranked chunks
//	  schema:
//	    "$ref": "#/definitions/RetrieveResponse"
//	'400':
//	  description: Invalid request
//	'409':
//	  description: No document has been processed
func (h *RetrieveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req RetrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	results, err := h.session.Retrieve(ctx, req.Query, req.K)
	if err != nil {
		handleServiceError(ctx, w, err)
		return
	}

	out := make([]SourceResponse, len(results))
	for i, res := range results {
		out[i] = SourceResponse{
			DocumentID:    res.Chunk.DocumentID,
			SequenceIndex: res.Chunk.SequenceIndex,
			StartOffset:   res.Chunk.StartOffset,
			EndOffset:     res.Chunk.EndOffset,
			Score:         res.Score,
			Rank:          res.Rank,
			Text:          res.Chunk.Text,
		}
	}

	writeJSON(w, http.StatusOK, RetrieveResponse{Results: out})
}
