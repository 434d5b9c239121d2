package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/sakif/codecraft/internal/apperror"
	"github.com/sakif/codecraft/internal/model"
	"github.com/sakif/codecraft/internal/repository"
)

// TemplateRatings is the ratings panel of a template page.
type TemplateRatings struct {
	Ratings    []model.TemplateRating `json:"ratings"`
	UserRating *model.TemplateRating  `json:"userRating"`
}

// RatingService keeps one rating per (user, template) and the template's
// average in step with them.
type RatingService struct {
	ratings   repository.RatingRepository
	templates repository.TemplateRepository
	users     repository.UserRepository
	logger    *slog.Logger
}

// NewRatingService creates a RatingService.
func NewRatingService(
	ratings repository.RatingRepository,
	templates repository.TemplateRepository,
	users repository.UserRepository,
	logger *slog.Logger,
) *RatingService {
	return &RatingService{ratings: ratings, templates: templates, users: users, logger: logger}
}

// RateTemplate inserts the caller's rating or replaces their previous one,
// then recomputes the template's average over every rating it has.
func (s *RatingService) RateTemplate(ctx context.Context, callerID, templateID string, rating int, review *string) (*model.TemplateRating, error) {
	user, err := callerUser(ctx, s.users, callerID)
	if err != nil {
		return nil, err
	}
	if err := validateRating(rating); err != nil {
		return nil, err
	}
	if _, err := s.templates.GetTemplate(ctx, templateID); err != nil {
		return nil, err
	}
	if review != nil {
		trimmed := strings.TrimSpace(*review)
		review = &trimmed
		if trimmed == "" {
			review = nil
		}
	}

	r := &model.TemplateRating{
		TemplateID: templateID,
		UserID:     user.ID,
		UserName:   user.DisplayName(),
		Rating:     rating,
		Review:     review,
	}
	if err := s.ratings.UpsertRating(ctx, r); err != nil {
		return nil, fmt.Errorf("saving rating: %w", err)
	}

	all, err := s.ratings.ListRatings(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("loading ratings: %w", err)
	}
	avg := averageRating(all)
	if err := s.templates.SetAverageRating(ctx, templateID, avg); err != nil {
		return nil, fmt.Errorf("updating average rating: %w", err)
	}

	s.logger.Info("template rated",
		slog.String("templateID", templateID),
		slog.Int("rating", rating),
		slog.Float64("average", avg),
	)
	return r, nil
}

// GetTemplateRatings returns a template's ratings newest first, cut to limit
// when limit is positive, plus the caller's own rating when there is a caller.
func (s *RatingService) GetTemplateRatings(ctx context.Context, callerID, templateID string, limit int) (*TemplateRatings, error) {
	all, err := s.ratings.ListRatings(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("loading ratings: %w", err)
	}
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}

	out := &TemplateRatings{Ratings: all}
	if callerID == "" {
		return out, nil
	}
	mine, err := s.ratings.GetRating(ctx, callerID, templateID)
	switch {
	case err == nil:
		out.UserRating = mine
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, fmt.Errorf("loading caller rating: %w", err)
	}
	return out, nil
}

// averageRating is the mean rating rounded to one decimal place.
func averageRating(ratings []model.TemplateRating) float64 {
	if len(ratings) == 0 {
		return 0
	}
	sum := 0
	for _, r := range ratings {
		sum += r.Rating
	}
	mean := float64(sum) / float64(len(ratings))
	return math.Round(mean*10) / 10
}
