package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/xid"
	"github.com/sakif/codecraft/internal/apperror"
	"github.com/sakif/codecraft/internal/model"
	"github.com/sakif/codecraft/internal/repository"
)

var _ repository.TemplateCommentRepository = (*DB)(nil)

const templateCommentColumns = `id, template_id, user_id, user_name, content, parent_id, is_edited,
	created_at, updated_at`

func (db *DB) CreateTemplateComment(ctx context.Context, c *model.TemplateComment) error {
	c.ID = xid.New().String()
	ts := now()
	c.CreatedAt = ts
	c.UpdatedAt = ts

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO template_comments (`+templateCommentColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.TemplateID, c.UserID, c.UserName, c.Content, c.ParentID, c.IsEdited,
		c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating comment on template %s: %w", c.TemplateID, err)
	}
	return nil
}

func (db *DB) GetTemplateComment(ctx context.Context, id string) (*model.TemplateComment, error) {
	c, err := scanTemplateComment(db.conn.QueryRowContext(ctx,
		`SELECT `+templateCommentColumns+` FROM template_comments WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.Missing("Comment not found")
		}
		return nil, fmt.Errorf("sqlite: getting template comment %s: %w", id, err)
	}
	return c, nil
}

// UpdateTemplateComment rewrites content and the edited flag and stamps
// UpdatedAt.
func (db *DB) UpdateTemplateComment(ctx context.Context, c *model.TemplateComment) error {
	c.UpdatedAt = now()
	result, err := db.conn.ExecContext(ctx,
		`UPDATE template_comments SET content = ?, is_edited = ?, updated_at = ? WHERE id = ?`,
		c.Content, c.IsEdited, c.UpdatedAt, c.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating template comment %s: %w", c.ID, err)
	}
	return checkAffected(result, apperror.Missing("Comment not found"))
}

// DeleteTemplateComment removes exactly one comment. Its replies stay.
func (db *DB) DeleteTemplateComment(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM template_comments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting template comment %s: %w", id, err)
	}
	return checkAffected(result, apperror.Missing("Comment not found"))
}

func (db *DB) ListTemplateComments(ctx context.Context, templateID string, parentID *string, newestFirst bool) ([]model.TemplateComment, error) {
	order := "ASC"
	if newestFirst {
		order = "DESC"
	}

	var (
		rows *sql.Rows
		err  error
	)
	if parentID == nil {
		rows, err = db.conn.QueryContext(ctx,
			`SELECT `+templateCommentColumns+` FROM template_comments
			 WHERE template_id = ? AND parent_id IS NULL
			 ORDER BY created_at `+order+`, rowid `+order,
			templateID,
		)
	} else {
		rows, err = db.conn.QueryContext(ctx,
			`SELECT `+templateCommentColumns+` FROM template_comments
			 WHERE template_id = ? AND parent_id = ?
			 ORDER BY created_at `+order+`, rowid `+order,
			templateID, *parentID,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing comments of template %s: %w", templateID, err)
	}
	defer rows.Close()

	comments := []model.TemplateComment{}
	for rows.Next() {
		c, err := scanTemplateComment(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning template comment row: %w", err)
		}
		comments = append(comments, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating template comments: %w", err)
	}
	return comments, nil
}

func scanTemplateComment(row rowScanner) (*model.TemplateComment, error) {
	var (
		c        model.TemplateComment
		parentID sql.NullString
	)
	if err := row.Scan(
		&c.ID, &c.TemplateID, &c.UserID, &c.UserName, &c.Content, &parentID, &c.IsEdited,
		&c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if parentID.Valid {
		p := parentID.String
		c.ParentID = &p
	}
	return &c, nil
}
