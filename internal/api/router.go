package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mjelva/tavle/internal/docservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
// dataRoot is used to resolve the attachments directory.
func NewRouter(svc *docservice.Service, authEnabled bool, token string, sseHandler http.Handler, dataRoot string) chi.Router {
	h := NewHandler(svc)
	ah := NewAttachmentHandler(dataRoot)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Documents CRUD.
	r.Get("/documents", h.ListDocuments)
	r.Post("/documents", h.CreateDocument)
	r.Get("/documents/{id}", h.GetDocument)
	r.Put("/documents/{id}", h.UpdateDocument)
	r.Delete("/documents/{id}", h.DeleteDocument)

	// Semantic operations and history.
	r.Post("/documents/{id}/operations", h.ApplyOperation)
	r.Post("/documents/{id}/undo", h.Undo)
	r.Post("/documents/{id}/redo", h.Redo)

	// View projections.
	r.Get("/documents/{id}/views/{view}", h.GetView)

	// Markdown projection and write-back.
	r.Get("/documents/{id}/markdown", h.GetMarkdown)
	r.Put("/documents/{id}/markdown", h.PutMarkdown)
	r.Put("/documents/{id}/authority", h.PutAuthority)

	// Search.
	r.Get("/search", h.Search)

	// Attachments upload (auth-protected).
	r.Post("/attachments", ah.Upload)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
