package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/cogninote/internal/noteservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *noteservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Route("/notes", func(r chi.Router) {
		r.Get("/", h.ListNotes)
		r.Post("/", h.CaptureNote)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetNote)
			r.Patch("/", h.PatchNote)
			r.Delete("/", h.DeleteNote)
			r.Post("/review", h.ReviewNote)
			r.Post("/ask", h.AskNote)
			r.Get("/conversation", h.Conversation)
			r.Get("/share", h.ShareNote)
			r.Get("/export", h.ExportNote)
		})
	})

	r.Post("/captures/upload", h.UploadCapture)
	r.Get("/captures/{key}", h.CaptureStatus)

	r.Post("/links/resolve", h.ResolveLink)
	r.Get("/graph", h.Graph)
	r.Get("/stats", h.Stats)

	r.Get("/keywords", h.Keywords)
	r.Post("/keywords/expand", h.ExpandKeywords)
	r.Get("/keywords/expand/{session}", h.LatestExpansion)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
