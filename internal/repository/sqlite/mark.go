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

var _ repository.SnippetMarkRepository = (*DB)(nil)

// markTable maps a mark kind to its table. Only these two names ever reach a
// query string.
func markTable(kind repository.MarkKind) (string, error) {
	switch kind {
	case repository.MarkStar:
		return "stars", nil
	case repository.MarkFavorite:
		return "snippet_favorites", nil
	}
	return "", fmt.Errorf("sqlite: unknown mark kind %q", kind)
}

// AddMark records a star or favorite. A second mark of the same kind by the
// same user on the same snippet is a conflict.
func (db *DB) AddMark(ctx context.Context, kind repository.MarkKind, mark *model.SnippetMark) error {
	table, err := markTable(kind)
	if err != nil {
		return err
	}
	mark.ID = xid.New().String()
	mark.CreatedAt = now()

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO `+table+` (id, user_id, snippet_id, created_at) VALUES (?, ?, ?, ?)`,
		mark.ID, mark.UserID, mark.SnippetID, mark.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict(string(kind), mark.SnippetID)
		}
		return fmt.Errorf("sqlite: adding %s on snippet %s: %w", kind, mark.SnippetID, err)
	}
	return nil
}

func (db *DB) GetMark(ctx context.Context, kind repository.MarkKind, userID, snippetID string) (*model.SnippetMark, error) {
	table, err := markTable(kind)
	if err != nil {
		return nil, err
	}
	var m model.SnippetMark
	err = db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, snippet_id, created_at FROM `+table+`
		 WHERE user_id = ? AND snippet_id = ?`,
		userID, snippetID,
	).Scan(&m.ID, &m.UserID, &m.SnippetID, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound(string(kind), snippetID)
		}
		return nil, fmt.Errorf("sqlite: getting %s on snippet %s: %w", kind, snippetID, err)
	}
	return &m, nil
}

func (db *DB) RemoveMark(ctx context.Context, kind repository.MarkKind, id string) error {
	table, err := markTable(kind)
	if err != nil {
		return err
	}
	result, err := db.conn.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: removing %s %s: %w", kind, id, err)
	}
	return checkAffected(result, apperror.NotFound(string(kind), id))
}

func (db *DB) CountMarks(ctx context.Context, kind repository.MarkKind, snippetID string) (int, error) {
	table, err := markTable(kind)
	if err != nil {
		return 0, err
	}
	var n int
	err = db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM `+table+` WHERE snippet_id = ?`, snippetID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting %ss on snippet %s: %w", kind, snippetID, err)
	}
	return n, nil
}

func (db *DB) ListMarksByUser(ctx context.Context, kind repository.MarkKind, userID string) ([]model.SnippetMark, error) {
	table, err := markTable(kind)
	if err != nil {
		return nil, err
	}
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, snippet_id, created_at FROM `+table+`
		 WHERE user_id = ? ORDER BY created_at, rowid`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing %ss of user %s: %w", kind, userID, err)
	}
	defer rows.Close()

	marks := []model.SnippetMark{}
	for rows.Next() {
		var m model.SnippetMark
		if err := rows.Scan(&m.ID, &m.UserID, &m.SnippetID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning %s row: %w", kind, err)
		}
		marks = append(marks, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating %ss: %w", kind, err)
	}
	return marks, nil
}
