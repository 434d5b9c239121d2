package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/codecraft/internal/service"
)

type UserHandler struct {
	users      *service.AuthService
	executions *service.ExecutionService
	snippets   *service.SnippetService
	logger     *slog.Logger
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(users *service.AuthService, executions *service.ExecutionService, snippets *service.SnippetService, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, executions: executions, snippets: snippets, logger: logger}
}

// HandleMe returns the signed-in user. GET /api/me
func (h *UserHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.Me(r.Context(), callerID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// HandleGet returns a public profile. GET /api/users/{id}
func (h *UserHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// HandleExecutions pages through a user's run history.
// GET /api/users/{id}/executions?limit=&offset=
func (h *UserHandler) HandleExecutions(w http.ResponseWriter, r *http.Request) {
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

	execs, err := h.executions.Executions(r.Context(), chi.URLParam(r, "id"), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, execs)
}

// HandleStats returns the profile header numbers. GET /api/users/{id}/stats
func (h *UserHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.executions.Stats(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// HandleStarred lists the caller's starred snippets. GET /api/me/starred
func (h *UserHandler) HandleStarred(w http.ResponseWriter, r *http.Request) {
	snippets, err := h.snippets.StarredSnippets(r.Context(), callerID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snippets)
}

// HandleFavorites lists the caller's favorite snippets. GET /api/me/favorites
func (h *UserHandler) HandleFavorites(w http.ResponseWriter, r *http.Request) {
	snippets, err := h.snippets.FavoriteSnippets(r.Context(), callerID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snippets)
}
