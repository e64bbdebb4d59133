package api

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/cogninote/internal/mastery"
	"github.com/starford/cogninote/internal/models"
	"github.com/starford/cogninote/internal/noteservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *noteservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *noteservice.Service) *Handler {
	return &Handler{svc: svc}
}

// ListNotes handles GET /api/notes.
//
//	@Summary		List notes filtered by query and category, newest first
//	@Tags			notes
//	@Produce		json
//	@Param			q			query		string	false	"Substring of title, tags or summary"
//	@Param			category	query		string	false	"Category"	Enums(Study, Work, Personal, Ideas, Reference)
//	@Success		200			{object}	NoteListResponse
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var category *models.Category
	if raw := q.Get("category"); raw != "" {
		c, err := models.ParseCategory(raw)
		if err != nil {
			writeError(w, "list notes", err)
			return
		}
		category = &c
	}

	notes := h.svc.List(q.Get("q"), category)
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: notes, Total: len(notes)})
}

// CaptureNote handles POST /api/notes.
//
//	@Summary		Structure raw input into a new note
//	@Tags			notes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CaptureRequest	true	"Raw capture"
//	@Success		201		{object}	models.Note
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes [post]
func (h *Handler) CaptureNote(w http.ResponseWriter, r *http.Request) {
	var req CaptureRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	note, err := h.svc.Capture(r.Context(), noteservice.CaptureRequest{Input: req.Input, Seed: req.Seed})
	if err != nil {
		writeError(w, "capture", err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

// CaptureStatus handles GET /api/captures/{key}.
func (h *Handler) CaptureStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.CaptureStatus(chi.URLParam(r, "key")))
}

// GetNote handles GET /api/notes/{id}.
//
//	@Summary		Get a single note
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		string	true	"Note id"
//	@Success		200	{object}	models.Note
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [get]
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	note, err := h.svc.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get note", err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// PatchNote handles PATCH /api/notes/{id}.
func (h *Handler) PatchNote(w http.ResponseWriter, r *http.Request) {
	var req PatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := req.patch()
	if err != nil {
		writeError(w, "patch note", err)
		return
	}
	note, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		writeError(w, "patch note", err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// DeleteNote handles DELETE /api/notes/{id}.
//
//	@Summary		Delete a note permanently
//	@Tags			notes
//	@Param			id	path	string	true	"Note id"
//	@Success		204	"Note deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id} [delete]
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, "delete note", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReviewNote handles POST /api/notes/{id}/review.
func (h *Handler) ReviewNote(w http.ResponseWriter, r *http.Request) {
	var req ReviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "id")

	var (
		note models.Note
		err  error
	)
	if req.Outcome != "" {
		note, err = h.svc.ReviewOutcome(r.Context(), id, mastery.Outcome(req.Outcome))
	} else {
		note, err = h.svc.Review(r.Context(), id, *req.Delta)
	}
	if err != nil {
		writeError(w, "review note", err)
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// AskNote handles POST /api/notes/{id}/ask.
//
//	@Summary		Ask a follow-up question about a note
//	@Tags			conversation
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string		true	"Note id"
//	@Param			body	body		AskRequest	true	"Question"
//	@Success		200		{object}	noteservice.Message
//	@Failure		404		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/notes/{id}/ask [post]
func (h *Handler) AskNote(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	msg, err := h.svc.Ask(r.Context(), chi.URLParam(r, "id"), req.Prompt)
	if err != nil {
		writeError(w, "ask", err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

// Conversation handles GET /api/notes/{id}/conversation.
func (h *Handler) Conversation(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.svc.History(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "conversation", err)
		return
	}
	writeJSON(w, http.StatusOK, ConversationResponse{Messages: msgs})
}

// ShareNote handles GET /api/notes/{id}/share.
func (h *Handler) ShareNote(w http.ResponseWriter, r *http.Request) {
	text, err := h.svc.Share(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "share", err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(text))
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ExportNote handles GET /api/notes/{id}/export.
func (h *Handler) ExportNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	note, err := h.svc.Get(id)
	if err != nil {
		writeError(w, "export", err)
		return
	}
	md, err := h.svc.Export(id)
	if err != nil {
		writeError(w, "export", err)
		return
	}
	name := strings.Trim(unsafeFileChars.ReplaceAllString(note.Title, "-"), "-")
	if name == "" {
		name = note.ID
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+".md"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(md)
}

// ResolveLink handles POST /api/links/resolve.
//
//	@Summary		Follow a connection title, optionally seeding a new note
//	@Tags			links
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ResolveLinkRequest	true	"Link title"
//	@Success		200		{object}	noteservice.LinkResult
//	@Success		201		{object}	noteservice.LinkResult
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/links/resolve [post]
func (h *Handler) ResolveLink(w http.ResponseWriter, r *http.Request) {
	var req ResolveLinkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.ResolveLink(r.Context(), req.Title, req.CreateSeed)
	if err != nil {
		writeError(w, "resolve link", err)
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, res)
}

// Graph handles GET /api/graph.
//
//	@Summary		Get the knowledge map
//	@Tags			graph
//	@Produce		json
//	@Success		200	{object}	GraphResponse
//	@Security		BearerAuth
//	@Router			/graph [get]
func (h *Handler) Graph(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Graph())
}

// Stats handles GET /api/stats.
func (h *Handler) Stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Stats())
}

// Keywords handles GET /api/keywords. Suggestion failures yield an empty list.
func (h *Handler) Keywords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	writeJSON(w, http.StatusOK, KeywordsResponse{Query: q, Keywords: h.svc.Suggest(r.Context(), q)})
}

// ExpandKeywords handles POST /api/keywords/expand. The result arrives later
// as a keywords.suggested event.
func (h *Handler) ExpandKeywords(w http.ResponseWriter, r *http.Request) {
	var req ExpandRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	seq := h.svc.Expand(req.Session, req.Query)
	writeJSON(w, http.StatusAccepted, ExpandResponse{Session: req.Session, Seq: seq})
}

// LatestExpansion handles GET /api/keywords/expand/{session}: the last
// suggestion applied for the session, for clients that missed the event.
func (h *Handler) LatestExpansion(w http.ResponseWriter, r *http.Request) {
	session := chi.URLParam(r, "session")
	sg, ok := h.svc.LatestKeywords(session)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("no expansion for session"))
		return
	}
	writeJSON(w, http.StatusOK, noteservice.KeywordEvent{Session: session, Suggestion: sg})
}
