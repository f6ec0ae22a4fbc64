package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"filechat-ai/internal/contextutil"
	"filechat-ai/internal/service"
)

// HealthCheck probes one dependency. A nil error means healthy.
type HealthCheck func(ctx context.Context) error

// HealthHandler handles HTTP requests for health checks.
type HealthHandler struct {
	session            service.SessionService
	checks             map[string]HealthCheck
	healthCheckTimeout time.Duration
}

// NewHealthHandler creates a new HealthHandler. checks may be nil when the
// process has no remote dependencies to probe.
func NewHealthHandler(session service.SessionService, checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{
		session:            session,
		checks:             checks,
		healthCheckTimeout: 5 * time.Second,
	}
}

// HealthResponse represents the health check response.
//
// swagger:model HealthResponse
type HealthResponse struct {
	// Overall health status: "healthy" or "unhealthy"
	Status string `json:"status"`

	// Timestamp of the health check
	Timestamp string `json:"timestamp"`

	// Session state: "empty", "processing", "ready" or "failed"
	Session service.State `json:"session"`

	// Individual check results
	Checks map[string]string `json:"checks"`

	// List of issues (only present if status is unhealthy)
	Issues []string `json:"issues,omitempty"`
}

// ServeHTTP handles HTTP requests for health checks.
//
// swagger:route GET /api/health healthCheck
//
// # Health check endpoint
//
// Returns the session state and the status of remote dependencies such as
// the vector database.
//
// ---
// produces:
// - application/json
// responses:
//
//	'200':
//	  description: System is healthy
//	  schema:
//	    "$ref": "#/definitions/HealthResponse"
//	'503':
//	  description: A dependency is unavailable
//	  schema:
//	    "$ref": "#/definitions/HealthResponse"
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodGet {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	checkCtx, cancel := context.WithTimeout(ctx, h.healthCheckTimeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	checks := make(map[string]string, len(names))
	var issues []string
	for _, name := range names {
		if err := h.checks[name](checkCtx); err != nil {
			logger.WarnContext(ctx, "health check failed", "check", name, "error", err)
			checks[name] = "error"
			issues = append(issues, name+"_unavailable")
			continue
		}
		checks[name] = "ok"
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if len(issues) > 0 {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Session:   h.session.Status().State,
		Checks:    checks,
		Issues:    issues,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.ErrorContext(ctx, "failed to encode health response", "error", err)
	}
}
