package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"filechat-ai/internal/handlers"
	"filechat-ai/internal/service"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	Session service.SessionService
	// HealthChecks are probed by GET /api/health, keyed by dependency name.
	HealthChecks map[string]handlers.HealthCheck
	// MaxUploadBytes caps document uploads; 0 disables the limit.
	MaxUploadBytes int64
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggerMiddleware)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(CORS)

	healthHandler := handlers.NewHealthHandler(deps.Session, deps.HealthChecks)
	documentHandler := handlers.NewDocumentHandler(deps.Session, deps.MaxUploadBytes)
	retrieveHandler := handlers.NewRetrieveHandler(deps.Session)
	askHandler := handlers.NewAskHandler(deps.Session)

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodGet, "/health", healthHandler)

		r.Route("/v1", func(r chi.Router) {
			r.Get("/session", documentHandler.Status)
			r.Post("/documents", documentHandler.Upload)
			r.Delete("/documents", documentHandler.Reset)
			r.Method(http.MethodPost, "/retrieve", retrieveHandler)
			r.Method(http.MethodPost, "/ask", askHandler)
		})
	})

	return r
}
