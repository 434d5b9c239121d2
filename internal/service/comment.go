package service

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/sakif/codecraft/internal/apperror"
	"github.com/sakif/codecraft/internal/model"
	"github.com/sakif/codecraft/internal/repository"
)

// CommentService runs template discussions.
//
// Comments are stored flat with an optional parent id. Writes allow a reply
// to any comment of the same template, so chains can be deeper than one
// level, but GetComments only ever attaches direct replies to top-level
// comments.
type CommentService struct {
	comments  repository.TemplateCommentRepository
	templates repository.TemplateRepository
	users     repository.UserRepository
	logger    *slog.Logger
}

// NewCommentService creates a CommentService.
func NewCommentService(
	comments repository.TemplateCommentRepository,
	templates repository.TemplateRepository,
	users repository.UserRepository,
	logger *slog.Logger,
) *CommentService {
	return &CommentService{comments: comments, templates: templates, users: users, logger: logger}
}

// AddComment posts a comment, or a reply when parentID is set.
func (s *CommentService) AddComment(ctx context.Context, callerID, templateID, content string, parentID *string) (*model.TemplateComment, error) {
	user, err := callerUser(ctx, s.users, callerID)
	if err != nil {
		return nil, err
	}
	if _, err := s.templates.GetTemplate(ctx, templateID); err != nil {
		return nil, err
	}
	if parentID != nil {
		parent, err := s.comments.GetTemplateComment(ctx, *parentID)
		if err != nil || parent.TemplateID != templateID {
			if err != nil && !isNotFound(err) {
				return nil, err
			}
			return nil, apperror.Missing("Parent comment not found")
		}
	}
	content, err = validateCommentContent(content)
	if err != nil {
		return nil, err
	}

	c := &model.TemplateComment{
		TemplateID: templateID,
		UserID:     user.ID,
		UserName:   user.DisplayName(),
		Content:    content,
		ParentID:   parentID,
		IsEdited:   false,
	}
	if err := s.comments.CreateTemplateComment(ctx, c); err != nil {
		return nil, fmt.Errorf("adding comment: %w", err)
	}
	return c, nil
}

// EditComment lets the author change a comment and marks it edited.
func (s *CommentService) EditComment(ctx context.Context, callerID, commentID, content string) (*model.TemplateComment, error) {
	if err := requireCaller(callerID); err != nil {
		return nil, err
	}
	c, err := s.comments.GetTemplateComment(ctx, commentID)
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

	c.Content = content
	c.IsEdited = true
	if err := s.comments.UpdateTemplateComment(ctx, c); err != nil {
		return nil, fmt.Errorf("editing comment: %w", err)
	}
	return c, nil
}

// DeleteComment removes exactly one comment. Replies keep pointing at it.
func (s *CommentService) DeleteComment(ctx context.Context, callerID, commentID string) error {
	if err := requireCaller(callerID); err != nil {
		return err
	}
	c, err := s.comments.GetTemplateComment(ctx, commentID)
	if err != nil {
		return err
	}
	if err := ensureOwner(callerID, c.UserID); err != nil {
		return err
	}
	if err := s.comments.DeleteTemplateComment(ctx, commentID); err != nil {
		return err
	}

	s.logger.Info("template comment deleted", slog.String("id", commentID))
	return nil
}

// GetComments without a parent returns top-level comments newest first, each
// carrying its direct replies oldest first. With a parent it returns that
// comment's direct replies newest first, without nested replies.
func (s *CommentService) GetComments(ctx context.Context, templateID string, parentID *string) ([]model.TemplateComment, error) {
	if parentID != nil {
		return s.comments.ListTemplateComments(ctx, templateID, parentID, true)
	}

	top, err := s.comments.ListTemplateComments(ctx, templateID, nil, true)
	if err != nil {
		return nil, fmt.Errorf("loading comments: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(resolveLimit)
	for i := range top {
		g.Go(func() error {
			replies, err := s.comments.ListTemplateComments(gctx, templateID, &top[i].ID, false)
			if err != nil {
				return fmt.Errorf("loading replies of %s: %w", top[i].ID, err)
			}
			top[i].Replies = replies
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return top, nil
}
