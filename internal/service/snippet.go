// Package service contains the business rules of CodeCraft.
//
// Handlers parse HTTP and call exactly one service method; services validate
// input, run the authorization gate and talk to the repositories:
//
//	Handler (HTTP) → Service (rules) → Repository (SQLite)
//
// Every method that acts on behalf of a user takes the caller's id as an
// explicit argument. An empty caller id means the request is anonymous.
// Mutations check it before any store access and fail with
// apperror.Unauthenticated; ownership checks compare it with the stored owner
// and fail with apperror.Unauthorized.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/sakif/codecraft/internal/apperror"
	"github.com/sakif/codecraft/internal/model"
	"github.com/sakif/codecraft/internal/repository"
)

const (
	MaxTitleLength   = 100
	MaxCodeLength    = 100000
	MaxCommentLength = 5000
	MaxTags          = 10
	DefaultListLimit = 50
	MaxListLimit     = 100
)

// SnippetInput carries the fields of a new snippet.
type SnippetInput struct {
	Title       string
	Language    string
	Code        string
	Description string
	Tags        []string
}

// SnippetUpdate carries the fields an owner may change. Nil pointers and a
// nil Tags slice leave the stored value alone.
type SnippetUpdate struct {
	Title       *string
	Language    *string
	Code        *string
	Description *string
	Tags        []string
	Changelog   string
}

// StarState is what the snippet page shows next to the star button.
type StarState struct {
	Count   int  `json:"count"`
	Starred bool `json:"starred"`
}

// SnippetService handles snippets and everything attached to them: versions,
// comments, stars and favorites.
type SnippetService struct {
	snippets repository.SnippetRepository
	comments repository.SnippetCommentRepository
	marks    repository.SnippetMarkRepository
	users    repository.UserRepository
	logger   *slog.Logger
}

// NewSnippetService creates a SnippetService.
func NewSnippetService(
	snippets repository.SnippetRepository,
	comments repository.SnippetCommentRepository,
	marks repository.SnippetMarkRepository,
	users repository.UserRepository,
	logger *slog.Logger,
) *SnippetService {
	return &SnippetService{
		snippets: snippets,
		comments: comments,
		marks:    marks,
		users:    users,
		logger:   logger,
	}
}

// Create validates and saves a new snippet owned by the caller, and records
// its code as version 1.0.0.
func (s *SnippetService) Create(ctx context.Context, callerID string, in SnippetInput) (*model.Snippet, error) {
	user, err := callerUser(ctx, s.users, callerID)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(in.Title)
	if err := validateTitle(title); err != nil {
		return nil, err
	}
	language := strings.ToLower(strings.TrimSpace(in.Language))
	if language == "" {
		return nil, apperror.ValidationFailed("language", "language is required")
	}
	if err := validateCode(in.Code); err != nil {
		return nil, err
	}
	tags, err := normalizeTags(in.Tags)
	if err != nil {
		return nil, err
	}

	snippet := &model.Snippet{
		UserID:      user.ID,
		UserName:    user.DisplayName(),
		Title:       title,
		Language:    language,
		Code:        in.Code,
		Description: strings.TrimSpace(in.Description),
		Tags:        tags,
	}
	if err := s.snippets.Create(ctx, snippet); err != nil {
		s.logger.Error("failed to create snippet", slog.String("error", err.Error()))
		return nil, fmt.Errorf("creating snippet: %w", err)
	}

	initial := &model.SnippetVersion{
		SnippetID: snippet.ID,
		Version:   snippet.Version,
		Code:      snippet.Code,
		Changelog: "Initial version",
	}
	if err := s.snippets.AddVersion(ctx, initial); err != nil {
		return nil, fmt.Errorf("recording initial version: %w", err)
	}

	s.logger.Info("snippet created",
		slog.String("id", snippet.ID),
		slog.String("userID", snippet.UserID),
		slog.String("language", snippet.Language),
	)
	return snippet, nil
}

// Get returns one snippet.
func (s *SnippetService) Get(ctx context.Context, id string) (*model.Snippet, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "snippet ID is required")
	}
	return s.snippets.GetByID(ctx, id)
}

// List returns one page of snippets, newest first.
func (s *SnippetService) List(ctx context.Context, limit, offset int) ([]model.Snippet, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	snippets, err := s.snippets.List(ctx, repository.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		s.logger.Error("failed to list snippets", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing snippets: %w", err)
	}
	return snippets, nil
}

// Update applies an owner's changes. A code change publishes a new version:
// the patch number is bumped and the new code is recorded with the changelog.
func (s *SnippetService) Update(ctx context.Context, callerID, id string, in SnippetUpdate) (*model.Snippet, error) {
	if err := requireCaller(callerID); err != nil {
		return nil, err
	}
	snippet, err := s.snippets.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ensureOwner(callerID, snippet.UserID); err != nil {
		return nil, err
	}

	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if err := validateTitle(title); err != nil {
			return nil, err
		}
		snippet.Title = title
	}
	if in.Language != nil {
		language := strings.ToLower(strings.TrimSpace(*in.Language))
		if language == "" {
			return nil, apperror.ValidationFailed("language", "language is required")
		}
		snippet.Language = language
	}
	if in.Description != nil {
		snippet.Description = strings.TrimSpace(*in.Description)
	}
	if in.Tags != nil {
		tags, err := normalizeTags(in.Tags)
		if err != nil {
			return nil, err
		}
		snippet.Tags = tags
	}

	codeChanged := false
	if in.Code != nil && *in.Code != snippet.Code {
		if err := validateCode(*in.Code); err != nil {
			return nil, err
		}
		snippet.Code = *in.Code
		snippet.Version = bumpPatch(snippet.Version)
		codeChanged = true
	}

	if err := s.snippets.Update(ctx, snippet); err != nil {
		s.logger.Error("failed to update snippet",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("updating snippet: %w", err)
	}

	if codeChanged {
		v := &model.SnippetVersion{
			SnippetID: snippet.ID,
			Version:   snippet.Version,
			Code:      snippet.Code,
			Changelog: strings.TrimSpace(in.Changelog),
		}
		if err := s.snippets.AddVersion(ctx, v); err != nil {
			return nil, fmt.Errorf("recording version %s: %w", v.Version, err)
		}
	}

	s.logger.Info("snippet updated",
		slog.String("id", snippet.ID),
		slog.String("version", snippet.Version),
	)
	return snippet, nil
}

// Delete removes an owner's snippet with its comments, stars, favorites and
// versions.
func (s *SnippetService) Delete(ctx context.Context, callerID, id string) error {
	if err := requireCaller(callerID); err != nil {
		return err
	}
	snippet, err := s.snippets.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := ensureOwner(callerID, snippet.UserID); err != nil {
		return err
	}
	if err := s.snippets.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("snippet deleted", slog.String("id", id))
	return nil
}

// Versions lists the published revisions of a snippet, newest first.
func (s *SnippetService) Versions(ctx context.Context, id string) ([]model.SnippetVersion, error) {
	if _, err := s.snippets.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.snippets.ListVersions(ctx, id)
}

// AddComment posts a comment on a snippet. rating is optional.
func (s *SnippetService) AddComment(ctx context.Context, callerID, snippetID, content string, rating *int) (*model.SnippetComment, error) {
	user, err := callerUser(ctx, s.users, callerID)
	if err != nil {
		return nil, err
	}
	if _, err := s.snippets.GetByID(ctx, snippetID); err != nil {
		return nil, err
	}
	content, err = validateCommentContent(content)
	if err != nil {
		return nil, err
	}
	if err := validateOptionalRating(rating); err != nil {
		return nil, err
	}

	c := &model.SnippetComment{
		SnippetID: snippetID,
		UserID:    user.ID,
		UserName:  user.DisplayName(),
		Content:   content,
		Rating:    rating,
	}
	if err := s.comments.CreateSnippetComment(ctx, c); err != nil {
		return nil, fmt.Errorf("adding snippet comment: %w", err)
	}
	return c, nil
}

// EditComment lets the author rewrite a comment and its rating.
func (s *SnippetService) EditComment(ctx context.Context, callerID, commentID, content string, rating *int) (*model.SnippetComment, error) {
	if err := requireCaller(callerID); err != nil {
		return nil, err
	}
	c, err := s.comments.GetSnippetComment(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if err := ensureOwner(callerID, c.UserID); err != nil {
		return nil, err
	}
	content, err = validateCommentContent(content)
	if err != nil {
		return nil, err
	}
	if err := validateOptionalRating(rating); err != nil {
		return nil, err
	}

	c.Content = content
	c.Rating = rating
	if err := s.comments.UpdateSnippetComment(ctx, c); err != nil {
		return nil, fmt.Errorf("editing snippet comment: %w", err)
	}
	return c, nil
}

// DeleteComment lets the author remove a comment.
func (s *SnippetService) DeleteComment(ctx context.Context, callerID, commentID string) error {
	if err := requireCaller(callerID); err != nil {
		return err
	}
	c, err := s.comments.GetSnippetComment(ctx, commentID)
	if err != nil {
		return err
	}
	if err := ensureOwner(callerID, c.UserID); err != nil {
		return err
	}
	return s.comments.DeleteSnippetComment(ctx, commentID)
}

// Comments lists a snippet's comments, newest first.
func (s *SnippetService) Comments(ctx context.Context, snippetID string) ([]model.SnippetComment, error) {
	return s.comments.ListSnippetComments(ctx, snippetID)
}

// Star records that the caller starred a snippet.
func (s *SnippetService) Star(ctx context.Context, callerID, snippetID string) error {
	return s.addMark(ctx, repository.MarkStar, callerID, snippetID, "Snippet already starred")
}

// Unstar removes the caller's star.
func (s *SnippetService) Unstar(ctx context.Context, callerID, snippetID string) error {
	return s.removeMark(ctx, repository.MarkStar, callerID, snippetID, "Snippet not starred")
}

func (s *SnippetService) AddFavorite(ctx context.Context, callerID, snippetID string) error {
	return s.addMark(ctx, repository.MarkFavorite, callerID, snippetID, "Snippet already in favorites")
}

func (s *SnippetService) RemoveFavorite(ctx context.Context, callerID, snippetID string) error {
	return s.removeMark(ctx, repository.MarkFavorite, callerID, snippetID, "Snippet not in favorites")
}

// Stars reports the star count of a snippet and whether the caller starred
// it. Anonymous callers never have.
func (s *SnippetService) Stars(ctx context.Context, callerID, snippetID string) (*StarState, error) {
	count, err := s.marks.CountMarks(ctx, repository.MarkStar, snippetID)
	if err != nil {
		return nil, fmt.Errorf("counting stars: %w", err)
	}
	state := &StarState{Count: count}
	if callerID == "" {
		return state, nil
	}

	_, err = s.marks.GetMark(ctx, repository.MarkStar, callerID, snippetID)
	switch {
	case err == nil:
		state.Starred = true
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, fmt.Errorf("checking star: %w", err)
	}
	return state, nil
}

// StarredSnippets returns the snippets the caller starred, in starring order.
func (s *SnippetService) StarredSnippets(ctx context.Context, callerID string) ([]model.Snippet, error) {
	return s.markedSnippets(ctx, repository.MarkStar, callerID)
}

// FavoriteSnippets returns the caller's favorite snippets.
func (s *SnippetService) FavoriteSnippets(ctx context.Context, callerID string) ([]model.Snippet, error) {
	return s.markedSnippets(ctx, repository.MarkFavorite, callerID)
}

// Backfill writes metadata defaults into snippets created before those
// columns existed. It returns the number of rows changed.
func (s *SnippetService) Backfill(ctx context.Context) (int, error) {
	n, err := s.snippets.BackfillSnippets(ctx)
	if err != nil {
		return 0, fmt.Errorf("backfilling snippets: %w", err)
	}
	s.logger.Info("snippet metadata backfilled", slog.Int("count", n))
	return n, nil
}

func (s *SnippetService) addMark(ctx context.Context, kind repository.MarkKind, callerID, snippetID, dupMessage string) error {
	if err := requireCaller(callerID); err != nil {
		return err
	}
	if _, err := s.snippets.GetByID(ctx, snippetID); err != nil {
		return err
	}

	_, err := s.marks.GetMark(ctx, kind, callerID, snippetID)
	if err == nil {
		return apperror.Duplicate(dupMessage)
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return fmt.Errorf("checking %s: %w", kind, err)
	}

	err = s.marks.AddMark(ctx, kind, &model.SnippetMark{UserID: callerID, SnippetID: snippetID})
	if errors.Is(err, apperror.ErrConflict) {
		// Lost the race against a concurrent identical request.
		return apperror.Duplicate(dupMessage)
	}
	return err
}

func (s *SnippetService) removeMark(ctx context.Context, kind repository.MarkKind, callerID, snippetID, missingMessage string) error {
	if err := requireCaller(callerID); err != nil {
		return err
	}
	m, err := s.marks.GetMark(ctx, kind, callerID, snippetID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.Missing(missingMessage)
		}
		return err
	}
	return s.marks.RemoveMark(ctx, kind, m.ID)
}

func (s *SnippetService) markedSnippets(ctx context.Context, kind repository.MarkKind, callerID string) ([]model.Snippet, error) {
	if callerID == "" {
		return []model.Snippet{}, nil
	}
	marks, err := s.marks.ListMarksByUser(ctx, kind, callerID)
	if err != nil {
		return nil, fmt.Errorf("listing %ss: %w", kind, err)
	}
	ids := make([]string, len(marks))
	for i, m := range marks {
		ids[i] = m.SnippetID
	}
	return resolveAll(ctx, ids, s.snippets.GetByID)
}

// Length limits count characters, not bytes.
func validateTitle(title string) error {
	if title == "" {
		return apperror.ValidationFailed("title", "title is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return apperror.ValidationFailed("title",
			fmt.Sprintf("title must be %d characters or less", MaxTitleLength))
	}
	return nil
}

func validateCode(code string) error {
	if strings.TrimSpace(code) == "" {
		return apperror.ValidationFailed("code", "code is required")
	}
	if utf8.RuneCountInString(code) > MaxCodeLength {
		return apperror.ValidationFailed("code",
			fmt.Sprintf("code must be %d characters or less", MaxCodeLength))
	}
	return nil
}

func validateCommentContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", apperror.ValidationFailed("content", "Comment cannot be empty")
	}
	if utf8.RuneCountInString(content) > MaxCommentLength {
		return "", apperror.ValidationFailed("content",
			fmt.Sprintf("Comment must be %d characters or less", MaxCommentLength))
	}
	return content, nil
}

func validateOptionalRating(rating *int) error {
	if rating == nil {
		return nil
	}
	return validateRating(*rating)
}

func validateRating(rating int) error {
	if rating < 1 || rating > 5 {
		return apperror.ValidationFailed("rating", "Rating must be between 1 and 5")
	}
	return nil
}

// normalizeTags trims, lower-cases and de-duplicates tags, keeping order.
func normalizeTags(tags []string) ([]string, error) {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	if len(out) > MaxTags {
		return nil, apperror.ValidationFailed("tags",
			fmt.Sprintf("at most %d tags are allowed", MaxTags))
	}
	return out, nil
}

// bumpPatch increments the last dotted component of a version string:
// "1.0.0" becomes "1.0.1". A version that does not end in a number gets ".1"
// appended.
func bumpPatch(version string) string {
	if version == "" {
		return "1.0.1"
	}
	i := strings.LastIndex(version, ".")
	n, err := strconv.Atoi(version[i+1:])
	if err != nil {
		return version + ".1"
	}
	return version[:i+1] + strconv.Itoa(n+1)
}
