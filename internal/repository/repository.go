// Package repository declares the storage interfaces the service layer depends on.
//
// The only implementation lives in repository/sqlite, where a single *DB
// satisfies every interface below. Services take the narrowest interface they
// need so their tests can supply small in-memory fakes.
//
// Conventions shared by all implementations:
//   - lookups of a missing row return an error wrapping apperror.ErrNotFound
//   - inserts that would break a uniqueness invariant return an error wrapping
//     apperror.ErrConflict
//   - "newest first" means descending creation time, ties broken by insert order
package repository

import (
	"context"
	"time"

	"github.com/sakif/codecraft/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

type UserRepository interface {
	// Upsert inserts or refreshes a user keyed on GitHubID and fills in ID
	// and timestamps.
	Upsert(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	SetPro(ctx context.Context, id string, since time.Time, customerID, orderID string) error
}

type SnippetRepository interface {
	Create(ctx context.Context, snippet *model.Snippet) error
	GetByID(ctx context.Context, id string) (*model.Snippet, error)
	List(ctx context.Context, opts ListOptions) ([]model.Snippet, error)
	Update(ctx context.Context, snippet *model.Snippet) error
	// Delete removes the snippet together with its comments, stars,
	// favorites and versions.
	Delete(ctx context.Context, id string) error

	AddVersion(ctx context.Context, v *model.SnippetVersion) error
	ListVersions(ctx context.Context, snippetID string) ([]model.SnippetVersion, error)

	// BackfillSnippets fills metadata columns that predate the current schema
	// and reports how many rows were touched.
	BackfillSnippets(ctx context.Context) (int, error)
}

type SnippetCommentRepository interface {
	CreateSnippetComment(ctx context.Context, c *model.SnippetComment) error
	GetSnippetComment(ctx context.Context, id string) (*model.SnippetComment, error)
	UpdateSnippetComment(ctx context.Context, c *model.SnippetComment) error
	DeleteSnippetComment(ctx context.Context, id string) error
	// ListSnippetComments returns the comments of one snippet, newest first.
	ListSnippetComments(ctx context.Context, snippetID string) ([]model.SnippetComment, error)
}

// MarkKind selects which (user, snippet) relation a SnippetMarkRepository call
// addresses.
type MarkKind string

const (
	MarkStar     MarkKind = "star"
	MarkFavorite MarkKind = "favorite"
)

type SnippetMarkRepository interface {
	AddMark(ctx context.Context, kind MarkKind, mark *model.SnippetMark) error
	GetMark(ctx context.Context, kind MarkKind, userID, snippetID string) (*model.SnippetMark, error)
	RemoveMark(ctx context.Context, kind MarkKind, id string) error
	CountMarks(ctx context.Context, kind MarkKind, snippetID string) (int, error)
	// ListMarksByUser returns a user's marks in the order they were made.
	ListMarksByUser(ctx context.Context, kind MarkKind, userID string) ([]model.SnippetMark, error)
}

type TemplateRepository interface {
	CreateTemplate(ctx context.Context, t *model.Template) error
	GetTemplate(ctx context.Context, id string) (*model.Template, error)
	// ListTemplates returns the whole catalog in creation order.
	ListTemplates(ctx context.Context) ([]model.Template, error)
	IncrementDownloads(ctx context.Context, id string) error
	SetAverageRating(ctx context.Context, id string, avg float64) error
	// ClearLegacyPrices nulls the deprecated price column and reports how
	// many templates still carried one.
	ClearLegacyPrices(ctx context.Context) (int, error)
}

type RatingRepository interface {
	// UpsertRating inserts the first rating of (UserID, TemplateID) or updates
	// rating, review and UpdatedAt of the existing one.
	UpsertRating(ctx context.Context, r *model.TemplateRating) error
	GetRating(ctx context.Context, userID, templateID string) (*model.TemplateRating, error)
	// ListRatings returns every rating of a template, newest first.
	ListRatings(ctx context.Context, templateID string) ([]model.TemplateRating, error)
}

type TemplateCommentRepository interface {
	CreateTemplateComment(ctx context.Context, c *model.TemplateComment) error
	GetTemplateComment(ctx context.Context, id string) (*model.TemplateComment, error)
	UpdateTemplateComment(ctx context.Context, c *model.TemplateComment) error
	DeleteTemplateComment(ctx context.Context, id string) error
	// ListTemplateComments returns the comments of a template whose parent is
	// parentID (nil selects top-level comments), newest or oldest first.
	ListTemplateComments(ctx context.Context, templateID string, parentID *string, newestFirst bool) ([]model.TemplateComment, error)
}

type TemplateFavoriteRepository interface {
	AddTemplateFavorite(ctx context.Context, f *model.TemplateFavorite) error
	GetTemplateFavorite(ctx context.Context, userID, templateID string) (*model.TemplateFavorite, error)
	DeleteTemplateFavorite(ctx context.Context, id string) error
	ListTemplateFavorites(ctx context.Context, userID string) ([]model.TemplateFavorite, error)
}

type SubscriberRepository interface {
	CreateSubscriber(ctx context.Context, s *model.Subscriber) error
	GetSubscriberByEmail(ctx context.Context, email string) (*model.Subscriber, error)
	UpdateSubscriber(ctx context.Context, s *model.Subscriber) error
}

type ExecutionRepository interface {
	CreateExecution(ctx context.Context, e *model.CodeExecution) error
	// ListExecutions pages through a user's history, newest first.
	ListExecutions(ctx context.Context, userID string, opts ListOptions) ([]model.CodeExecution, error)
	AllExecutions(ctx context.Context, userID string) ([]model.CodeExecution, error)
}
