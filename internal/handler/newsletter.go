package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/codecraft/internal/service"
)

type NewsletterHandler struct {
	svc    *service.NewsletterService
	logger *slog.Logger
}

// NewNewsletterHandler creates a NewsletterHandler.
func NewNewsletterHandler(svc *service.NewsletterService, logger *slog.Logger) *NewsletterHandler {
	return &NewsletterHandler{svc: svc, logger: logger}
}

type newsletterRequest struct {
	Email string `json:"email" validate:"required,max=254"`
}

type unsubscribeResponse struct {
	Unsubscribed bool `json:"unsubscribed"`
}

// HandleSubscribe answers 201 for a new address and 200 for a reactivated
// one. POST /api/newsletter/subscribe
func (h *NewsletterHandler) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	var req newsletterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.svc.Subscribe(r.Context(), req.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusCreated
	if result.Reactivated {
		status = http.StatusOK
	}
	writeJSON(w, status, result)
}

// POST /api/newsletter/unsubscribe
func (h *NewsletterHandler) HandleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	var req newsletterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.svc.Unsubscribe(r.Context(), req.Email); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, unsubscribeResponse{Unsubscribed: true})
}
