package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/codecraft/internal/model"
	"github.com/sakif/codecraft/internal/service"
)

// MarketplaceHandler serves /api/marketplace. It fronts four services since
// ratings, comments and favorites all hang off a template id.
type MarketplaceHandler struct {
	templates *service.MarketplaceService
	ratings   *service.RatingService
	comments  *service.CommentService
	favorites *service.FavoriteService
	logger    *slog.Logger
}

// NewMarketplaceHandler creates a MarketplaceHandler over the template services.
func NewMarketplaceHandler(
	templates *service.MarketplaceService,
	ratings *service.RatingService,
	comments *service.CommentService,
	favorites *service.FavoriteService,
	logger *slog.Logger,
) *MarketplaceHandler {
	return &MarketplaceHandler{
		templates: templates,
		ratings:   ratings,
		comments:  comments,
		favorites: favorites,
		logger:    logger,
	}
}

type createTemplateRequest struct {
	Title       string `json:"title" validate:"required,max=100"`
	Description string `json:"description"`
	Language    string `json:"language" validate:"required"`
	Framework   string `json:"framework"`
	Difficulty  string `json:"difficulty" validate:"required"`
	Code        string `json:"code" validate:"required"`
	IsPro       bool   `json:"isPro"`
}

type rateTemplateRequest struct {
	Rating int     `json:"rating"`
	Review *string `json:"review"`
}

type templateCommentRequest struct {
	Content  string  `json:"content" validate:"required"`
	ParentID *string `json:"parentId"`
}

type editCommentRequest struct {
	Content string `json:"content" validate:"required"`
}

type favoriteResponse struct {
	Favorited bool `json:"favorited"`
}

// HandleList returns the filtered catalog.
// GET /api/marketplace?language=&framework=&difficulty=&search=&sortBy=
func (h *MarketplaceHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	templates, err := h.templates.List(r.Context(), service.ListFilter{
		Language:   q.Get("language"),
		Framework:  q.Get("framework"),
		Difficulty: model.Difficulty(strings.ToUpper(q.Get("difficulty"))),
		Search:     q.Get("search"),
		SortBy:     q.Get("sortBy"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, templates)
}

// POST /api/marketplace
func (h *MarketplaceHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createTemplateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	tmpl, err := h.templates.Create(r.Context(), callerID(r), service.TemplateInput{
		Title:       req.Title,
		Description: req.Description,
		Language:    req.Language,
		Framework:   req.Framework,
		Difficulty:  model.Difficulty(strings.ToUpper(req.Difficulty)),
		Code:        req.Code,
		IsPro:       req.IsPro,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tmpl)
}

// GET /api/marketplace/{id}
func (h *MarketplaceHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	tmpl, err := h.templates.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tmpl)
}

// HandlePurchase counts a download. Payment happens elsewhere.
// POST /api/marketplace/{id}/purchase
func (h *MarketplaceHandler) HandlePurchase(w http.ResponseWriter, r *http.Request) {
	tmpl, err := h.templates.Purchase(r.Context(), callerID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tmpl)
}

// GET /api/marketplace/{id}/ratings?limit=
func (h *MarketplaceHandler) HandleRatings(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, err)
		return
	}

	ratings, err := h.ratings.GetTemplateRatings(r.Context(), callerID(r), chi.URLParam(r, "id"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ratings)
}

// HandleRate creates or replaces the caller's rating.
// POST /api/marketplace/{id}/ratings
func (h *MarketplaceHandler) HandleRate(w http.ResponseWriter, r *http.Request) {
	var req rateTemplateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	rating, err := h.ratings.RateTemplate(r.Context(), callerID(r), chi.URLParam(r, "id"), req.Rating, req.Review)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rating)
}

// HandleComments lists top-level comments, or the replies to ?parentId=.
// GET /api/marketplace/{id}/comments
func (h *MarketplaceHandler) HandleComments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.comments.GetComments(r.Context(), chi.URLParam(r, "id"), optionalQuery(r, "parentId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, comments)
}

// POST /api/marketplace/{id}/comments
func (h *MarketplaceHandler) HandleAddComment(w http.ResponseWriter, r *http.Request) {
	var req templateCommentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	comment, err := h.comments.AddComment(r.Context(), callerID(r), chi.URLParam(r, "id"), req.Content, req.ParentID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

// PUT /api/marketplace/comments/{commentId}
func (h *MarketplaceHandler) HandleEditComment(w http.ResponseWriter, r *http.Request) {
	var req editCommentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	comment, err := h.comments.EditComment(r.Context(), callerID(r), chi.URLParam(r, "commentId"), req.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, comment)
}

// DELETE /api/marketplace/comments/{commentId}
func (h *MarketplaceHandler) HandleDeleteComment(w http.ResponseWriter, r *http.Request) {
	if err := h.comments.DeleteComment(r.Context(), callerID(r), chi.URLParam(r, "commentId")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/marketplace/{id}/favorite
func (h *MarketplaceHandler) HandleIsFavorited(w http.ResponseWriter, r *http.Request) {
	ok, err := h.favorites.IsTemplateFavorited(r.Context(), callerID(r), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, favoriteResponse{Favorited: ok})
}

// POST /api/marketplace/{id}/favorite
func (h *MarketplaceHandler) HandleFavorite(w http.ResponseWriter, r *http.Request) {
	if err := h.favorites.AddToFavorites(r.Context(), callerID(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, favoriteResponse{Favorited: true})
}

// DELETE /api/marketplace/{id}/favorite
func (h *MarketplaceHandler) HandleUnfavorite(w http.ResponseWriter, r *http.Request) {
	if err := h.favorites.RemoveFromFavorites(r.Context(), callerID(r), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, favoriteResponse{Favorited: false})
}

// GET /api/marketplace/favorites
func (h *MarketplaceHandler) HandleFavorites(w http.ResponseWriter, r *http.Request) {
	templates, err := h.favorites.GetFavoriteTemplates(r.Context(), callerID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, templates)
}
