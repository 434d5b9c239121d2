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

var _ repository.TemplateRepository = (*DB)(nil)

const templateColumns = `id, user_id, user_name, title, description, code, language, framework,
	preview_image, downloads, difficulty, complexity, tags, version, is_pro, price, average_rating,
	created_at, updated_at`

// CreateTemplate inserts a template. The caller is expected to have applied
// the marketplace defaults already.
func (db *DB) CreateTemplate(ctx context.Context, t *model.Template) error {
	t.ID = xid.New().String()
	ts := now()
	t.CreatedAt = ts
	t.UpdatedAt = ts

	tags, err := encodeTags(t.Tags)
	if err != nil {
		return err
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO templates (`+templateColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.UserName, t.Title, t.Description, t.Code, t.Language, t.Framework,
		t.PreviewImage, t.Downloads, t.Difficulty, t.Complexity, tags, t.Version, t.IsPro,
		t.Price, t.AverageRating, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating template: %w", err)
	}
	return nil
}

func (db *DB) GetTemplate(ctx context.Context, id string) (*model.Template, error) {
	t, err := scanTemplate(db.conn.QueryRowContext(ctx,
		`SELECT `+templateColumns+` FROM templates WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.Missing("Template not found")
		}
		return nil, fmt.Errorf("sqlite: getting template %s: %w", id, err)
	}
	return t, nil
}

// ListTemplates returns every template in creation order. Filtering and
// sorting happen in the marketplace service.
func (db *DB) ListTemplates(ctx context.Context) ([]model.Template, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+templateColumns+` FROM templates ORDER BY created_at, rowid`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing templates: %w", err)
	}
	defer rows.Close()

	templates := []model.Template{}
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning template row: %w", err)
		}
		templates = append(templates, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating templates: %w", err)
	}
	return templates, nil
}

// IncrementDownloads bumps the download counter in a single statement so
// concurrent purchases never lose an increment.
func (db *DB) IncrementDownloads(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE templates SET downloads = downloads + 1, updated_at = ? WHERE id = ?`,
		now(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: incrementing downloads of template %s: %w", id, err)
	}
	return checkAffected(result, apperror.Missing("Template not found"))
}

func (db *DB) SetAverageRating(ctx context.Context, id string, avg float64) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE templates SET average_rating = ?, updated_at = ? WHERE id = ?`,
		avg, now(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: setting average rating of template %s: %w", id, err)
	}
	return checkAffected(result, apperror.Missing("Template not found"))
}

func (db *DB) ClearLegacyPrices(ctx context.Context) (int, error) {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE templates SET price = NULL WHERE price IS NOT NULL`,
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: clearing template prices: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return int(n), nil
}

func scanTemplate(row rowScanner) (*model.Template, error) {
	var (
		t     model.Template
		tags  string
		price sql.NullFloat64
		avg   sql.NullFloat64
	)
	if err := row.Scan(
		&t.ID, &t.UserID, &t.UserName, &t.Title, &t.Description, &t.Code, &t.Language,
		&t.Framework, &t.PreviewImage, &t.Downloads, &t.Difficulty, &t.Complexity, &tags,
		&t.Version, &t.IsPro, &price, &avg, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	decoded, err := decodeTags(tags)
	if err != nil {
		return nil, err
	}
	t.Tags = decoded
	if price.Valid {
		p := price.Float64
		t.Price = &p
	}
	if avg.Valid {
		a := avg.Float64
		t.AverageRating = &a
	}
	return &t, nil
}
