package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"filechat-ai/internal/apperr"
	"filechat-ai/internal/contextutil"
	"filechat-ai/internal/llm"
	"filechat-ai/internal/service"
)

// ErrorResponse represents an error response.
//
// swagger:model ErrorResponse
type ErrorResponse struct {
	Error string `json:"error"`
}

// statusForError maps pipeline errors to an HTTP status and client message.
func statusForError(err error) (int, string) {
	var validationErr *service.ValidationError
	var maxBytesErr *http.MaxBytesError

	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, validationErr.Error()
	case errors.As(err, &maxBytesErr):
		return http.StatusRequestEntityTooLarge, "Document is too large"
	case errors.Is(err, apperr.ErrEmptyIndex):
		return http.StatusConflict, "No document has been processed yet. Process a document first."
	case errors.Is(err, service.ErrSessionBusy):
		return http.StatusConflict, "A document is already being processed"
	case errors.Is(err, service.ErrSessionNotReady):
		return http.StatusConflict, "The last document failed to process. Upload it again."
	case errors.Is(err, apperr.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType, err.Error()
	case errors.Is(err, apperr.ErrExtraction):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, apperr.ErrEmbeddingService), errors.Is(err, apperr.ErrAnswerService):
		if llm.IsRetryable(err) {
			return http.StatusServiceUnavailable, "External service temporarily unavailable"
		}
		return http.StatusBadGateway, "External service error"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Request timed out"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// handleServiceError logs err and writes the mapped error response.
func handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	logger := contextutil.LoggerFromContext(ctx)
	status, msg := statusForError(err)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(ctx, "request failed", "status", status, "error", err)
	} else {
		logger.WarnContext(ctx, "request rejected", "status", status, "error", err)
	}
	writeError(w, status, msg)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, ErrorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}
