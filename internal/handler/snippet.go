package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/codecraft/internal/service"
)

// SnippetHandler serves /api/snippets: CRUD, version history, comments,
// stars and favorites.
type SnippetHandler struct {
	svc    *service.SnippetService
	logger *slog.Logger
}

// NewSnippetHandler creates a SnippetHandler.
func NewSnippetHandler(svc *service.SnippetService, logger *slog.Logger) *SnippetHandler {
	return &SnippetHandler{svc: svc, logger: logger}
}

type createSnippetRequest struct {
	Title       string   `json:"title" validate:"required,max=100"`
	Language    string   `json:"language" validate:"required"`
	Code        string   `json:"code" validate:"required"`
	Description string   `json:"description"`
	Tags        []string `json:"tags" validate:"max=10"`
}

type updateSnippetRequest struct {
	Title       *string  `json:"title" validate:"omitnil,max=100"`
	Language    *string  `json:"language"`
	Code        *string  `json:"code"`
	Description *string  `json:"description"`
	Tags        []string `json:"tags" validate:"omitempty,max=10"`
	Changelog   string   `json:"changelog" validate:"max=500"`
}

type snippetCommentRequest struct {
	Content string `json:"content" validate:"required"`
	Rating  *int   `json:"rating" validate:"omitnil,min=1,max=5"`
}

// HandleList returns the newest snippets first. GET /api/snippets?limit=&offset=
func (h *SnippetHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", service.DefaultListLimit)
	if err != nil {
		writeError(w, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, err)
		return
	}

	snippets, err := h.svc.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snippets)
}

// HandleCreate stores a new snippet owned by the caller. POST /api/snippets
func (h *SnippetHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createSnippetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	snippet, err := h.svc.Create(r.Context(), callerID(r), service.SnippetInput{
		Title:       req.Title,
		Language:    req.Language,
		Code:        req.Code,
		Description: req.Description,
		Tags:        req.Tags,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snippet)
}

// HandleGet returns one snippet. GET /api/snippets/{id}
func (h *SnippetHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	snippet, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snippet)
}

// HandleUpdate applies a partial update. PUT /api/snippets/{id}
func (h *SnippetHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateSnippetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	snippet, err := h.svc.Update(r.Context(), callerID(r), chi.URLParam(r, "id"), service.SnippetUpdate{
		Title:       req.Title,
		Language:    req.Language,
		Code:        req.Code,
		Description: req.Description,
		Tags:        req.Tags,
		Changelog:   req.Changelog,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snippet)
}

// HandleDelete removes a snippet with its versions, comments and marks.
// DELETE /api/snippets/{id}
func (h *SnippetHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), callerID(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleVersions lists the version history, newest first.
// GET /api/snippets/{id}/versions
func (h *SnippetHandler) HandleVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := h.svc.Versions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, versions)
}

// GET /api/snippets/{id}/comments
func (h *SnippetHandler) HandleComments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.svc.Comments(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, comments)
}

// POST /api/snippets/{id}/comments
func (h *SnippetHandler) HandleAddComment(w http.ResponseWriter, r *http.Request) {
	var req snippetCommentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	comment, err := h.svc.AddComment(r.Context(), callerID(r), chi.URLParam(r, "id"), req.Content, req.Rating)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

// PUT /api/snippets/comments/{commentId}
func (h *SnippetHandler) HandleEditComment(w http.ResponseWriter, r *http.Request) {
	var req snippetCommentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	comment, err := h.svc.EditComment(r.Context(), callerID(r), chi.URLParam(r, "commentId"), req.Content, req.Rating)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, comment)
}

// DELETE /api/snippets/comments/{commentId}
func (h *SnippetHandler) HandleDeleteComment(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteComment(r.Context(), callerID(r), chi.URLParam(r, "commentId")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleStars reports the star count and whether the caller starred it.
// GET /api/snippets/{id}/star
func (h *SnippetHandler) HandleStars(w http.ResponseWriter, r *http.Request) {
	state, err := h.svc.Stars(r.Context(), callerID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// POST /api/snippets/{id}/star
func (h *SnippetHandler) HandleStar(w http.ResponseWriter, r *http.Request) {
	h.mark(w, r, h.svc.Star)
}

// DELETE /api/snippets/{id}/star
func (h *SnippetHandler) HandleUnstar(w http.ResponseWriter, r *http.Request) {
	h.mark(w, r, h.svc.Unstar)
}

// POST /api/snippets/{id}/favorite
func (h *SnippetHandler) HandleFavorite(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.AddFavorite(r.Context(), callerID(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DELETE /api/snippets/{id}/favorite
func (h *SnippetHandler) HandleUnfavorite(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RemoveFavorite(r.Context(), callerID(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// mark stars or unstars and answers with the fresh star state.
func (h *SnippetHandler) mark(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, callerID, snippetID string) error) {
	caller, id := callerID(r), chi.URLParam(r, "id")
	if err := op(r.Context(), caller, id); err != nil {
		writeError(w, err)
		return
	}
	state, err := h.svc.Stars(r.Context(), caller, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}
