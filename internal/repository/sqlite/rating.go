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

var _ repository.RatingRepository = (*DB)(nil)

// UpsertRating relies on the (user_id, template_id) unique index: two racing
// first ratings by the same user collapse into one row.
// On return r holds the stored row, including the original ID and CreatedAt
// when an existing rating was updated.
func (db *DB) UpsertRating(ctx context.Context, r *model.TemplateRating) error {
	ts := now()
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO template_ratings (id, template_id, user_id, user_name, rating, review, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, template_id) DO UPDATE SET
		     rating     = excluded.rating,
		     review     = excluded.review,
		     updated_at = excluded.updated_at`,
		xid.New().String(), r.TemplateID, r.UserID, r.UserName, r.Rating, r.Review, ts, ts,
	)
	if err != nil {
		return fmt.Errorf("sqlite: upserting rating on template %s: %w", r.TemplateID, err)
	}

	stored, err := db.GetRating(ctx, r.UserID, r.TemplateID)
	if err != nil {
		return err
	}
	*r = *stored
	return nil
}

func (db *DB) GetRating(ctx context.Context, userID, templateID string) (*model.TemplateRating, error) {
	r, err := scanRating(db.conn.QueryRowContext(ctx,
		`SELECT id, template_id, user_id, user_name, rating, review, created_at, updated_at
		 FROM template_ratings WHERE user_id = ? AND template_id = ?`,
		userID, templateID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("rating", templateID)
		}
		return nil, fmt.Errorf("sqlite: getting rating on template %s: %w", templateID, err)
	}
	return r, nil
}

func (db *DB) ListRatings(ctx context.Context, templateID string) ([]model.TemplateRating, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, template_id, user_id, user_name, rating, review, created_at, updated_at
		 FROM template_ratings WHERE template_id = ?
		 ORDER BY created_at DESC, rowid DESC`,
		templateID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing ratings of template %s: %w", templateID, err)
	}
	defer rows.Close()

	ratings := []model.TemplateRating{}
	for rows.Next() {
		r, err := scanRating(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning rating row: %w", err)
		}
		ratings = append(ratings, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating ratings: %w", err)
	}
	return ratings, nil
}

func scanRating(row rowScanner) (*model.TemplateRating, error) {
	var (
		r      model.TemplateRating
		review sql.NullString
	)
	if err := row.Scan(
		&r.ID, &r.TemplateID, &r.UserID, &r.UserName, &r.Rating, &review, &r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if review.Valid {
		s := review.String
		r.Review = &s
	}
	return &r, nil
}
