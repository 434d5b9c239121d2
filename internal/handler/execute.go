package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/codecraft/internal/runtime"
	"github.com/sakif/codecraft/internal/service"
)

// LanguageLister is the read side of the runtime registry.
type LanguageLister interface {
	List() []runtime.Language
}

// ExecuteHandler serves the editor: running code, the language picker and
// completions.
type ExecuteHandler struct {
	svc       *service.ExecutionService
	languages LanguageLister
	logger    *slog.Logger
}

// NewExecuteHandler creates an ExecuteHandler that lists languages from languages.
func NewExecuteHandler(svc *service.ExecutionService, languages LanguageLister, logger *slog.Logger) *ExecuteHandler {
	return &ExecuteHandler{
		svc:       svc,
		languages: languages,
		logger:    logger,
	}
}

type executeRequest struct {
	Language string `json:"language"`
	Code     string `json:"code"`
}

// HandleExecute runs a code snippet. An empty language means javascript.
// POST /api/execute
func (h *ExecuteHandler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.logger.Warn("invalid execution request body", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	if req.Language == "" {
		req.Language = service.FreeLanguage
	}

	result, err := h.svc.Run(r.Context(), callerID(r), req.Language, req.Code)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleLanguages lists the languages the editor can offer.
// GET /api/languages
func (h *ExecuteHandler) HandleLanguages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.languages.List())
}

// HandleCompletions returns editor snippets for the text at the cursor.
// POST /api/completions
func (h *ExecuteHandler) HandleCompletions(w http.ResponseWriter, r *http.Request) {
	var req service.CompletionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, service.Suggest(req))
}
