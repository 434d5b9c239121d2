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

var _ repository.SnippetCommentRepository = (*DB)(nil)

func (db *DB) CreateSnippetComment(ctx context.Context, c *model.SnippetComment) error {
	c.ID = xid.New().String()
	c.CreatedAt = now()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO snippet_comments (id, snippet_id, user_id, user_name, content, rating, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.SnippetID, c.UserID, c.UserName, c.Content, c.Rating, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating comment on snippet %s: %w", c.SnippetID, err)
	}
	return nil
}

func (db *DB) GetSnippetComment(ctx context.Context, id string) (*model.SnippetComment, error) {
	c, err := scanSnippetComment(db.conn.QueryRowContext(ctx,
		`SELECT id, snippet_id, user_id, user_name, content, rating, created_at
		 FROM snippet_comments WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.Missing("Comment not found")
		}
		return nil, fmt.Errorf("sqlite: getting snippet comment %s: %w", id, err)
	}
	return c, nil
}

// UpdateSnippetComment rewrites content and rating.
func (db *DB) UpdateSnippetComment(ctx context.Context, c *model.SnippetComment) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE snippet_comments SET content = ?, rating = ? WHERE id = ?`,
		c.Content, c.Rating, c.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating snippet comment %s: %w", c.ID, err)
	}
	return checkAffected(result, apperror.Missing("Comment not found"))
}

func (db *DB) DeleteSnippetComment(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM snippet_comments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting snippet comment %s: %w", id, err)
	}
	return checkAffected(result, apperror.Missing("Comment not found"))
}

func (db *DB) ListSnippetComments(ctx context.Context, snippetID string) ([]model.SnippetComment, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, snippet_id, user_id, user_name, content, rating, created_at
		 FROM snippet_comments WHERE snippet_id = ?
		 ORDER BY created_at DESC, rowid DESC`,
		snippetID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing comments of snippet %s: %w", snippetID, err)
	}
	defer rows.Close()

	comments := []model.SnippetComment{}
	for rows.Next() {
		c, err := scanSnippetComment(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning snippet comment row: %w", err)
		}
		comments = append(comments, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating snippet comments: %w", err)
	}
	return comments, nil
}

func scanSnippetComment(row rowScanner) (*model.SnippetComment, error) {
	var (
		c      model.SnippetComment
		rating sql.NullInt64
	)
	if err := row.Scan(&c.ID, &c.SnippetID, &c.UserID, &c.UserName, &c.Content, &rating, &c.CreatedAt); err != nil {
		return nil, err
	}
	if rating.Valid {
		r := int(rating.Int64)
		c.Rating = &r
	}
	return &c, nil
}
