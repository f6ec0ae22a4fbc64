package main

import (
	"context"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"

	"filechat-ai/internal/app"
	"filechat-ai/internal/config"
	"filechat-ai/internal/http"
)

//go:generate swagger generate spec -o swagger.json

// General API information
//
// This API answers questions about a single uploaded document using retrieval-augmented generation.
//
// swagger:meta
//
// ---
// swagger: '2.0'
// info:
//   title: FileChat AI API
//   description: |
//     RAG (Retrieval-Augmented Generation) API for chatting with a document.
//     Upload a PDF, TXT, DOCX or Markdown file, then ask questions and get answers grounded in its text.
//   version: 1.0.0
// schemes:
//   - http
//   - https
// consumes:
//   - application/json
// produces:
//   - application/json

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := app.NewLogger(cfg, os.Stdout)
	slog.SetDefault(logger)
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	ctx := context.Background()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}

	router := http.NewRouter(&http.Deps{
		Session:        a.Session,
		HealthChecks:   a.HealthChecks,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	addr := ":" + cfg.APIPort
	slog.Info("Starting API server", "addr", addr)
	slog.Debug("Chat configuration", "base_url", cfg.ChatBaseURL, "model", cfg.ChatModelName)
	if err := nethttp.ListenAndServe(addr, router); err != nil {
		log.Fatalf("API server failed to start: %v", err)
	}
}
