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

var _ repository.SnippetRepository = (*DB)(nil)

// Metadata columns may still be NULL on rows written before they existed.
// Reads see the same defaults BackfillSnippets would write.
const snippetColumns = `id, user_id, user_name, title, language, code,
	COALESCE(description, ''), COALESCE(tags, '[]'), COALESCE(difficulty, 'BEGINNER'),
	COALESCE(complexity, 1.0), COALESCE(version, '1.0.0'), COALESCE(downloads, 0),
	created_at, updated_at`

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// Create inserts a new snippet and fills in ID, timestamps and any unset
// metadata defaults.
func (db *DB) Create(ctx context.Context, snippet *model.Snippet) error {
	snippet.ID = xid.New().String()
	ts := now()
	snippet.CreatedAt = ts
	snippet.UpdatedAt = ts
	if snippet.Tags == nil {
		snippet.Tags = []string{}
	}
	if snippet.Difficulty == "" {
		snippet.Difficulty = model.DifficultyBeginner
	}
	if snippet.Complexity == 0 {
		snippet.Complexity = 1.0
	}
	if snippet.Version == "" {
		snippet.Version = "1.0.0"
	}

	tags, err := encodeTags(snippet.Tags)
	if err != nil {
		return err
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO snippets (id, user_id, user_name, title, language, code, description,
		                       tags, difficulty, complexity, version, downloads, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snippet.ID, snippet.UserID, snippet.UserName, snippet.Title, snippet.Language,
		snippet.Code, snippet.Description, tags, snippet.Difficulty, snippet.Complexity,
		snippet.Version, snippet.Downloads, snippet.CreatedAt, snippet.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating snippet: %w", err)
	}
	return nil
}

// GetByID retrieves a single snippet by its ID.
func (db *DB) GetByID(ctx context.Context, id string) (*model.Snippet, error) {
	s, err := scanSnippet(db.conn.QueryRowContext(ctx,
		`SELECT `+snippetColumns+` FROM snippets WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.Missing("Snippet not found")
		}
		return nil, fmt.Errorf("sqlite: getting snippet %s: %w", id, err)
	}
	return s, nil
}

// List returns one page of snippets, newest first.
func (db *DB) List(ctx context.Context, opts repository.ListOptions) ([]model.Snippet, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset := max(opts.Offset, 0)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+snippetColumns+` FROM snippets
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing snippets: %w", err)
	}
	defer rows.Close()

	snippets := make([]model.Snippet, 0, limit)
	for rows.Next() {
		s, err := scanSnippet(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning snippet row: %w", err)
		}
		snippets = append(snippets, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating snippets: %w", err)
	}
	return snippets, nil
}

// Update writes the mutable fields of a snippet and stamps UpdatedAt.
// Owner, CreatedAt and Downloads are never changed here.
func (db *DB) Update(ctx context.Context, snippet *model.Snippet) error {
	snippet.UpdatedAt = now()
	tags, err := encodeTags(snippet.Tags)
	if err != nil {
		return err
	}

	result, err := db.conn.ExecContext(ctx,
		`UPDATE snippets
		 SET title = ?, language = ?, code = ?, description = ?, tags = ?,
		     difficulty = ?, complexity = ?, version = ?, updated_at = ?
		 WHERE id = ?`,
		snippet.Title, snippet.Language, snippet.Code, snippet.Description, tags,
		snippet.Difficulty, snippet.Complexity, snippet.Version, snippet.UpdatedAt,
		snippet.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating snippet %s: %w", snippet.ID, err)
	}
	return checkAffected(result, apperror.Missing("Snippet not found"))
}

// Delete removes a snippet. Comments, stars, favorites and versions go with it
// through ON DELETE CASCADE.
func (db *DB) Delete(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM snippets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting snippet %s: %w", id, err)
	}
	return checkAffected(result, apperror.Missing("Snippet not found"))
}

// AddVersion records a previous revision of a snippet.
func (db *DB) AddVersion(ctx context.Context, v *model.SnippetVersion) error {
	v.ID = xid.New().String()
	v.CreatedAt = now()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO snippet_versions (id, snippet_id, version, code, changelog, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		v.ID, v.SnippetID, v.Version, v.Code, v.Changelog, v.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: adding version to snippet %s: %w", v.SnippetID, err)
	}
	return nil
}

// ListVersions returns the recorded revisions of a snippet, newest first.
func (db *DB) ListVersions(ctx context.Context, snippetID string) ([]model.SnippetVersion, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, snippet_id, version, code, changelog, created_at
		 FROM snippet_versions WHERE snippet_id = ?
		 ORDER BY created_at DESC, rowid DESC`,
		snippetID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing versions of snippet %s: %w", snippetID, err)
	}
	defer rows.Close()

	versions := []model.SnippetVersion{}
	for rows.Next() {
		var v model.SnippetVersion
		if err := rows.Scan(&v.ID, &v.SnippetID, &v.Version, &v.Code, &v.Changelog, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning version row: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating versions: %w", err)
	}
	return versions, nil
}

// BackfillSnippets writes the metadata defaults into rows that predate the
// metadata columns.
func (db *DB) BackfillSnippets(ctx context.Context) (int, error) {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE snippets SET
		    description = COALESCE(description, ''),
		    tags        = COALESCE(tags, '[]'),
		    difficulty  = COALESCE(difficulty, 'BEGINNER'),
		    complexity  = COALESCE(complexity, 1.0),
		    version     = COALESCE(version, '1.0.0'),
		    downloads   = COALESCE(downloads, 0)
		 WHERE description IS NULL OR tags IS NULL OR difficulty IS NULL
		    OR complexity IS NULL OR version IS NULL OR downloads IS NULL`,
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: backfilling snippets: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return int(n), nil
}

func scanSnippet(row rowScanner) (*model.Snippet, error) {
	var (
		s    model.Snippet
		tags string
	)
	if err := row.Scan(
		&s.ID, &s.UserID, &s.UserName, &s.Title, &s.Language, &s.Code,
		&s.Description, &tags, &s.Difficulty, &s.Complexity, &s.Version, &s.Downloads,
		&s.CreatedAt, &s.UpdatedAt,
	); err != nil {
		return nil, err
	}
	decoded, err := decodeTags(tags)
	if err != nil {
		return nil, err
	}
	s.Tags = decoded
	return &s, nil
}
