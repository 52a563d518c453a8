package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mjelva/tavle/internal/apperr"
	"github.com/mjelva/tavle/internal/authority"
	"github.com/mjelva/tavle/internal/docservice"
	"github.com/mjelva/tavle/internal/models"
	"github.com/mjelva/tavle/internal/ops"
)

// Handler holds API route handlers.
type Handler struct {
	svc *docservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *docservice.Service) *Handler {
	return &Handler{svc: svc}
}

func docID(r *http.Request) string {
	return chi.URLParam(r, "id")
}

// writeErr maps service errors onto HTTP status codes.
func writeErr(w http.ResponseWriter, err error, context string) {
	switch {
	case errors.Is(err, apperr.ErrNotFound), errors.Is(err, apperr.ErrItemNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, errorBody("already exists"))
	case errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody("checksum mismatch"))
	case errors.Is(err, apperr.ErrCycleDetected):
		writeJSON(w, http.StatusConflict, errorBody("move would create a cycle"))
	case errors.Is(err, apperr.ErrNotAuthoritative):
		writeJSON(w, http.StatusForbidden, errorBody("view is not markdown-authoritative"))
	case errors.Is(err, apperr.ErrInvalidOperation), errors.Is(err, apperr.ErrInvalidParent):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	default:
		slog.Error(context, slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// ListDocuments handles GET /api/documents.
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	sort := q.Get("sort")

	items, total, err := h.svc.ListDocuments(r.Context(), limit, offset, sort)
	if err != nil {
		writeErr(w, err, "list documents failed")
		return
	}
	if items == nil {
		items = []models.DocumentMetadata{}
	}
	writeJSON(w, http.StatusOK, DocumentListResponse{Documents: items, Total: total})
}

// GetDocument handles GET /api/documents/{id}.
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	detail, err := h.svc.GetDocument(r.Context(), docID(r))
	if err != nil {
		writeErr(w, err, "get document failed")
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// CreateDocument handles POST /api/documents.
func (h *Handler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var doc models.Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if doc.Title == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("title is required"))
		return
	}
	detail, err := h.svc.CreateDocument(r.Context(), &doc)
	if err != nil {
		writeErr(w, err, "create document failed")
		return
	}
	writeJSON(w, http.StatusCreated, detail)
}

// UpdateDocument handles PUT /api/documents/{id}.
func (h *Handler) UpdateDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var doc models.Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	ifMatch := r.Header.Get("If-Match")
	// Strip surrounding quotes if present (standard ETag format).
	ifMatch = strings.Trim(ifMatch, `"`)

	detail, err := h.svc.UpdateDocument(r.Context(), docID(r), &doc, ifMatch)
	if err != nil {
		writeErr(w, err, "update document failed")
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// DeleteDocument handles DELETE /api/documents/{id}.
func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteDocument(r.Context(), docID(r)); err != nil {
		writeErr(w, err, "delete document failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ApplyOperation handles POST /api/documents/{id}/operations.
func (h *Handler) ApplyOperation(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req OperationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	op, err := ops.New(ops.Kind(req.Op), req.ItemID, req.Params)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid operation"))
		return
	}
	op.PageID = docID(r)

	res, err := h.svc.ApplyOperation(r.Context(), op)
	if err != nil {
		writeErr(w, err, "apply operation failed")
		return
	}
	detail, err := h.svc.GetDocument(r.Context(), op.PageID)
	if err != nil {
		writeErr(w, err, "get document failed")
		return
	}
	writeJSON(w, http.StatusOK, OperationResponse{Op: res.Op, Document: detail})
}

// Undo handles POST /api/documents/{id}/undo.
func (h *Handler) Undo(w http.ResponseWriter, r *http.Request) {
	id := docID(r)
	op, err := h.svc.Undo(r.Context(), id)
	if err != nil {
		writeErr(w, err, "undo failed")
		return
	}
	detail, err := h.svc.GetDocument(r.Context(), id)
	if err != nil {
		writeErr(w, err, "get document failed")
		return
	}
	writeJSON(w, http.StatusOK, OperationResponse{Op: op, Document: detail})
}

// Redo handles POST /api/documents/{id}/redo.
func (h *Handler) Redo(w http.ResponseWriter, r *http.Request) {
	id := docID(r)
	op, err := h.svc.Redo(r.Context(), id)
	if err != nil {
		writeErr(w, err, "redo failed")
		return
	}
	detail, err := h.svc.GetDocument(r.Context(), id)
	if err != nil {
		writeErr(w, err, "get document failed")
		return
	}
	writeJSON(w, http.StatusOK, OperationResponse{Op: op, Document: detail})
}

// GetMarkdown handles GET /api/documents/{id}/markdown.
func (h *Handler) GetMarkdown(w http.ResponseWriter, r *http.Request) {
	md, err := h.svc.Markdown(r.Context(), docID(r))
	if err != nil {
		writeErr(w, err, "render markdown failed")
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(md))
}

// GetView handles GET /api/documents/{id}/views/{view}: the projected
// shape of one built-in view, kept live against the canonical tree.
func (h *Handler) GetView(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "view")
	data, err := h.svc.View(r.Context(), docID(r), name)
	if err != nil {
		writeErr(w, err, "project view failed")
		return
	}
	writeJSON(w, http.StatusOK, ViewResponse{View: name, Data: data})
}

// PutMarkdown handles PUT /api/documents/{id}/markdown: the write-back
// path for a markdown-authoritative view.
func (h *Handler) PutMarkdown(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var req MarkdownPutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.ViewID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("viewId is required"))
		return
	}

	applied, fallback, err := h.svc.ApplyMarkdown(r.Context(), docID(r), req.ViewID, req.Markdown)
	if err != nil {
		writeErr(w, err, "apply markdown failed")
		return
	}
	writeJSON(w, http.StatusOK, MarkdownPutResponse{
		Applied:  len(applied),
		Ops:      applied,
		Fallback: fallback,
	})
}

// PutAuthority handles PUT /api/documents/{id}/authority.
func (h *Handler) PutAuthority(w http.ResponseWriter, r *http.Request) {
	var req AuthorityPutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.ViewID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("viewId is required"))
		return
	}
	mode := authority.Mode(req.Mode)
	if err := h.svc.SetAuthority(r.Context(), docID(r), req.ViewID, mode); err != nil {
		if errors.Is(err, apperr.ErrInvalidOperation) {
			writeJSON(w, http.StatusBadRequest, errorBody("mode must be CANONICAL or MARKDOWN_SOURCE"))
			return
		}
		writeErr(w, err, "set authority failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"pageId": docID(r),
		"viewId": req.ViewID,
		"mode":   req.Mode,
	})
}

// Search handles GET /api/search.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeErr(w, err, "search failed")
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}
