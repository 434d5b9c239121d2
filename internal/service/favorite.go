package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/codecraft/internal/apperror"
	"github.com/sakif/codecraft/internal/model"
	"github.com/sakif/codecraft/internal/repository"
)

// FavoriteService manages template favorites.
type FavoriteService struct {
	favorites repository.TemplateFavoriteRepository
	templates repository.TemplateRepository
	logger    *slog.Logger
}

// NewFavoriteService creates a FavoriteService.
func NewFavoriteService(favorites repository.TemplateFavoriteRepository, templates repository.TemplateRepository, logger *slog.Logger) *FavoriteService {
	return &FavoriteService{favorites: favorites, templates: templates, logger: logger}
}

func (s *FavoriteService) AddToFavorites(ctx context.Context, callerID, templateID string) error {
	if err := requireCaller(callerID); err != nil {
		return err
	}
	if _, err := s.templates.GetTemplate(ctx, templateID); err != nil {
		return err
	}

	_, err := s.favorites.GetTemplateFavorite(ctx, callerID, templateID)
	if err == nil {
		return apperror.Duplicate("Template already in favorites")
	}
	if !isNotFound(err) {
		return fmt.Errorf("checking favorite: %w", err)
	}

	// The unique index turns a concurrent duplicate into the same Conflict.
	return s.favorites.AddTemplateFavorite(ctx, &model.TemplateFavorite{
		UserID:     callerID,
		TemplateID: templateID,
	})
}

func (s *FavoriteService) RemoveFromFavorites(ctx context.Context, callerID, templateID string) error {
	if err := requireCaller(callerID); err != nil {
		return err
	}
	fav, err := s.favorites.GetTemplateFavorite(ctx, callerID, templateID)
	if err != nil {
		if isNotFound(err) {
			return apperror.Missing("Template not in favorites")
		}
		return err
	}
	return s.favorites.DeleteTemplateFavorite(ctx, fav.ID)
}

// GetFavoriteTemplates returns the caller's favorite templates in the order
// they were added. Anonymous callers get an empty list, and favorites whose
// template is gone are skipped.
func (s *FavoriteService) GetFavoriteTemplates(ctx context.Context, callerID string) ([]model.Template, error) {
	if callerID == "" {
		return []model.Template{}, nil
	}
	favs, err := s.favorites.ListTemplateFavorites(ctx, callerID)
	if err != nil {
		return nil, fmt.Errorf("listing favorites: %w", err)
	}
	ids := make([]string, len(favs))
	for i, f := range favs {
		ids[i] = f.TemplateID
	}
	return resolveAll(ctx, ids, s.templates.GetTemplate)
}

// IsTemplateFavorited is false for anonymous callers.
func (s *FavoriteService) IsTemplateFavorited(ctx context.Context, callerID, templateID string) (bool, error) {
	if callerID == "" {
		return false, nil
	}
	_, err := s.favorites.GetTemplateFavorite(ctx, callerID, templateID)
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("checking favorite: %w", err)
}
