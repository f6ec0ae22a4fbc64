package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/sashabaranov/go-openai"
	"google.golang.org/genai"

	"filechat-ai/internal/apperr"
)

// Service names the external provider an error came from.
type Service string

const (
	ServiceEmbedding Service = "embedding"
	ServiceChat      Service = "chat"
)

// ServiceError is a failed call to an external model provider. Retryable
// errors (rate limits, 5xx, timeouts, transient network failures) may be
// retried with backoff; the rest must surface immediately.
type ServiceError struct {
	Service    Service
	StatusCode int // 0 when no HTTP response was received
	Retryable  bool
	Err        error
}

func (e *ServiceError) Error() string {
	kind := "non-retryable"
	if e.Retryable {
		kind = "retryable"
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s service error (status %d, %s): %v", e.Service, e.StatusCode, kind, e.Err)
	}
	return fmt.Sprintf("%s service error (%s): %v", e.Service, kind, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Is matches apperr.ErrEmbeddingService or apperr.ErrAnswerService depending
// on the originating service.
func (e *ServiceError) Is(target error) bool {
	switch target {
	case apperr.ErrEmbeddingService:
		return e.Service == ServiceEmbedding
	case apperr.ErrAnswerService:
		return e.Service == ServiceChat
	}
	return false
}

// IsRetryable reports whether err is a retryable ServiceError.
func IsRetryable(err error) bool {
	var se *ServiceError
	return errors.As(err, &se) && se.Retryable
}

// NewServiceError builds a non-retryable error for responses that arrived but
// cannot be used (wrong count, wrong dimension, empty choices).
func NewServiceError(service Service, format string, args ...any) *ServiceError {
	return &ServiceError{Service: service, Err: fmt.Errorf(format, args...)}
}

// classify wraps a provider error in a ServiceError. Errors that already are
// ServiceErrors pass through.
func classify(service Service, err error) error {
	if err == nil {
		return nil
	}
	var se *ServiceError
	if errors.As(err, &se) {
		return err
	}

	status := statusCode(err)
	retryable := false
	switch {
	case status != 0:
		retryable = retryableStatus(status)
	case errors.Is(err, context.DeadlineExceeded):
		retryable = true
	case errors.Is(err, context.Canceled):
		retryable = false
	default:
		var netErr net.Error
		retryable = errors.As(err, &netErr)
	}

	return &ServiceError{
		Service:    service,
		StatusCode: status,
		Retryable:  retryable,
		Err:        err,
	}
}

func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests ||
		status == http.StatusRequestTimeout ||
		status >= http.StatusInternalServerError
}

// statusCode digs the HTTP status out of provider SDK errors.
func statusCode(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	var gErr genai.APIError
	if errors.As(err, &gErr) {
		return gErr.Code
	}
	var gErrPtr *genai.APIError
	if errors.As(err, &gErrPtr) && gErrPtr != nil {
		return gErrPtr.Code
	}
	return 0
}
