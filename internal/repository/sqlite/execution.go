package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/xid"
	"github.com/sakif/codecraft/internal/model"
	"github.com/sakif/codecraft/internal/repository"
)

var _ repository.ExecutionRepository = (*DB)(nil)

func (db *DB) CreateExecution(ctx context.Context, e *model.CodeExecution) error {
	e.ID = xid.New().String()
	e.CreatedAt = now()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO code_executions (id, user_id, language, code, output, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.Language, e.Code, e.Output, e.Error, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: recording execution for user %s: %w", e.UserID, err)
	}
	return nil
}

func (db *DB) ListExecutions(ctx context.Context, userID string, opts repository.ListOptions) ([]model.CodeExecution, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, language, code, output, error, created_at
		 FROM code_executions WHERE user_id = ?
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT ? OFFSET ?`,
		userID, limit, max(opts.Offset, 0),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing executions of user %s: %w", userID, err)
	}
	return collectExecutions(rows)
}

// AllExecutions returns a user's whole history, newest first. Used for stats.
func (db *DB) AllExecutions(ctx context.Context, userID string) ([]model.CodeExecution, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, language, code, output, error, created_at
		 FROM code_executions WHERE user_id = ?
		 ORDER BY created_at DESC, rowid DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: loading executions of user %s: %w", userID, err)
	}
	return collectExecutions(rows)
}

func collectExecutions(rows *sql.Rows) ([]model.CodeExecution, error) {
	defer rows.Close()

	execs := []model.CodeExecution{}
	for rows.Next() {
		var e model.CodeExecution
		if err := rows.Scan(&e.ID, &e.UserID, &e.Language, &e.Code, &e.Output, &e.Error, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning execution row: %w", err)
		}
		execs = append(execs, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating executions: %w", err)
	}
	return execs, nil
}
