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

var _ repository.TemplateFavoriteRepository = (*DB)(nil)

func (db *DB) AddTemplateFavorite(ctx context.Context, f *model.TemplateFavorite) error {
	f.ID = xid.New().String()
	f.CreatedAt = now()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO template_favorites (id, user_id, template_id, created_at) VALUES (?, ?, ?, ?)`,
		f.ID, f.UserID, f.TemplateID, f.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Duplicate("Template already in favorites")
		}
		return fmt.Errorf("sqlite: adding favorite on template %s: %w", f.TemplateID, err)
	}
	return nil
}

func (db *DB) GetTemplateFavorite(ctx context.Context, userID, templateID string) (*model.TemplateFavorite, error) {
	var f model.TemplateFavorite
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, template_id, created_at FROM template_favorites
		 WHERE user_id = ? AND template_id = ?`,
		userID, templateID,
	).Scan(&f.ID, &f.UserID, &f.TemplateID, &f.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.Missing("Template not in favorites")
		}
		return nil, fmt.Errorf("sqlite: getting favorite on template %s: %w", templateID, err)
	}
	return &f, nil
}

func (db *DB) DeleteTemplateFavorite(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM template_favorites WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting template favorite %s: %w", id, err)
	}
	return checkAffected(result, apperror.Missing("Template not in favorites"))
}

// ListTemplateFavorites returns a user's favorites in the order they were made.
func (db *DB) ListTemplateFavorites(ctx context.Context, userID string) ([]model.TemplateFavorite, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, template_id, created_at FROM template_favorites
		 WHERE user_id = ? ORDER BY created_at, rowid`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing favorites of user %s: %w", userID, err)
	}
	defer rows.Close()

	favs := []model.TemplateFavorite{}
	for rows.Next() {
		var f model.TemplateFavorite
		if err := rows.Scan(&f.ID, &f.UserID, &f.TemplateID, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning favorite row: %w", err)
		}
		favs = append(favs, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating favorites: %w", err)
	}
	return favs, nil
}
