package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"filechat-ai/internal/contextutil"
	"filechat-ai/internal/extract"
	"filechat-ai/internal/service"
)

// multipartMemory is the part of a multipart body kept in memory before
// spilling to temporary files.
const multipartMemory = 8 << 20

// DocumentHandler handles document upload and removal.
type DocumentHandler struct {
	session  service.SessionService
	maxBytes int64
}

// NewDocumentHandler creates a new DocumentHandler. Uploads larger than
// maxBytes are rejected with 413.
func NewDocumentHandler(session service.SessionService, maxBytes int64) *DocumentHandler {
	return &DocumentHandler{session: session, maxBytes: maxBytes}
}

// Upload handles document uploads.
//
// swagger:route POST /api/v1/documents uploadDocument
//
// # Process a document
//
// Extracts, chunks, embeds and indexes the uploaded file, replacing the
// current document. The multipart field "file" carries the document and the
// optional field "format" overrides the format derived from the file name.
//
// ---
// consumes:
// - multipart/form-data
// produces:
// - application/json
// responses:
//
//	'201':
//	  description: Document processed
//	'400':
//	  description: Missing file
//	'409':
//	  description: A document is already being processed
//	'413':
//	  description: Document is too large
//	'415':
//	  description: Unsupported document format
//	'422':
//	  description: Text could not be extracted
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if h.maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			handleServiceError(ctx, w, err)
			return
		}
		logger.WarnContext(ctx, "invalid multipart body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid multipart body")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		logger.WarnContext(ctx, "missing file field", "error", err)
		writeError(w, http.StatusBadRequest, "Field 'file' is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		handleServiceError(ctx, w, fmt.Errorf("failed to read upload: %w", err))
		return
	}

	upload := service.Upload{Name: header.Filename, Data: data}
	if f := strings.TrimSpace(r.FormValue("format")); f != "" {
		upload.Format = extract.FormatFromName(f)
	}

	info, err := h.session.ProcessDocument(ctx, upload)
	if err != nil {
		handleServiceError(ctx, w, err)
		return
	}

	logger.InfoContext(ctx, "document processed", "document_id", info.ID, "chunks", info.Chunks)
	writeJSON(w, http.StatusCreated, info)
}

// Reset handles document removal.
//
// swagger:route DELETE /api/v1/documents resetSession
//
// # Discard the current document
//
// ---
// responses:
//
//	'204':
//	  description: Session reset
//	'409':
//	  description: A document is being processed
func (h *DocumentHandler) Reset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.session.Reset(ctx); err != nil {
		handleServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Status handles session status requests.
//
// swagger:route GET /api/v1/session sessionStatus
//
// # Session status
//
// Returns the session state, the current document and its chunk statistics.
//
// ---
// produces:
// - application/json
// responses:
//
//	'200':
//	  description: Session status
func (h *DocumentHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.session.Status())
}
