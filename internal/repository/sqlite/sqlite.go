// Package sqlite implements the repository interfaces on top of SQLite.
//
// modernc.org/sqlite is a pure Go port, so the binary needs no C toolchain.
// One *DB value implements every repository interface; each entity lives in
// its own file (user.go, snippet.go, template.go, ...).
//
// Uniqueness invariants ((user, snippet) stars and favorites, (user, template)
// ratings and favorites, subscriber email) are UNIQUE indexes, so a racing
// duplicate insert fails here instead of producing a second row.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// DB wraps a sql.DB connection pool and provides repository methods.
type DB struct {
	conn *sql.DB
}

// New opens the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/codecraft.db"  → file-based database
//   - ":memory:"           → in-memory database, used by tests
//
// Connection-scoped pragmas (foreign keys, busy timeout) go in the DSN so that
// every pooled connection gets them, not just the first one.
func New(dbPath string) (*DB, error) {
	dsn := dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every new connection to ":memory:" is a separate, empty database.
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a write is in progress. The journal mode
	// is stored in the database file, so setting it once is enough.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks that the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// migrate creates the schema. Every statement is idempotent.
func (db *DB) migrate() error {
	// Phase 1: users and snippets
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id          TEXT PRIMARY KEY,
			github_id   INTEGER NOT NULL UNIQUE,
			login       TEXT NOT NULL,
			name        TEXT NOT NULL DEFAULT '',
			email       TEXT NOT NULL DEFAULT '',
			avatar_url  TEXT NOT NULL DEFAULT '',
			is_pro      INTEGER NOT NULL DEFAULT 0,
			pro_since   DATETIME,
			customer_id TEXT NOT NULL DEFAULT '',
			order_id    TEXT NOT NULL DEFAULT '',
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);

		CREATE TABLE IF NOT EXISTS snippets (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL DEFAULT '',
			user_name  TEXT NOT NULL DEFAULT '',
			title      TEXT NOT NULL,
			language   TEXT NOT NULL,
			code       TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_snippets_created_at ON snippets(created_at);
		CREATE INDEX IF NOT EXISTS idx_snippets_user_id ON snippets(user_id);
		CREATE INDEX IF NOT EXISTS idx_snippets_language ON snippets(language);
	`)
	if err != nil {
		return fmt.Errorf("creating users and snippets tables: %w", err)
	}

	// Phase 2: snippet metadata. These columns arrived after the first
	// snippets were written, so they are nullable and read through COALESCE;
	// ccadmin -backfill-snippets fills them in.
	for _, col := range []struct{ name, def string }{
		{"description", "TEXT"},
		{"tags", "TEXT"},
		{"difficulty", "TEXT"},
		{"complexity", "REAL"},
		{"version", "TEXT"},
		{"downloads", "INTEGER"},
	} {
		if err := db.addColumnIfNotExists("snippets", col.name, col.def); err != nil {
			return fmt.Errorf("adding %s to snippets: %w", col.name, err)
		}
	}

	// Phase 3: everything hanging off a snippet
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS snippet_versions (
			id         TEXT PRIMARY KEY,
			snippet_id TEXT NOT NULL REFERENCES snippets(id) ON DELETE CASCADE,
			version    TEXT NOT NULL,
			code       TEXT NOT NULL,
			changelog  TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_snippet_versions_snippet_id ON snippet_versions(snippet_id);

		CREATE TABLE IF NOT EXISTS snippet_comments (
			id         TEXT PRIMARY KEY,
			snippet_id TEXT NOT NULL REFERENCES snippets(id) ON DELETE CASCADE,
			user_id    TEXT NOT NULL,
			user_name  TEXT NOT NULL,
			content    TEXT NOT NULL,
			rating     INTEGER CHECK (rating IS NULL OR rating BETWEEN 1 AND 5),
			created_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_snippet_comments_snippet_id ON snippet_comments(snippet_id);
		CREATE INDEX IF NOT EXISTS idx_snippet_comments_user_id ON snippet_comments(user_id);

		CREATE TABLE IF NOT EXISTS stars (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			snippet_id TEXT NOT NULL REFERENCES snippets(id) ON DELETE CASCADE,
			created_at DATETIME NOT NULL,
			UNIQUE (user_id, snippet_id)
		);
		CREATE INDEX IF NOT EXISTS idx_stars_snippet_id ON stars(snippet_id);

		CREATE TABLE IF NOT EXISTS snippet_favorites (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			snippet_id TEXT NOT NULL REFERENCES snippets(id) ON DELETE CASCADE,
			created_at DATETIME NOT NULL,
			UNIQUE (user_id, snippet_id)
		);
		CREATE INDEX IF NOT EXISTS idx_snippet_favorites_snippet_id ON snippet_favorites(snippet_id);
	`)
	if err != nil {
		return fmt.Errorf("creating snippet relation tables: %w", err)
	}

	// Phase 4: marketplace
	// template_comments.parent_id deliberately has no REFERENCES clause:
	// deleting a parent leaves its replies in place.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS templates (
			id             TEXT PRIMARY KEY,
			user_id        TEXT NOT NULL,
			user_name      TEXT NOT NULL,
			title          TEXT NOT NULL,
			description    TEXT NOT NULL DEFAULT '',
			code           TEXT NOT NULL DEFAULT '',
			language       TEXT NOT NULL,
			framework      TEXT NOT NULL DEFAULT '',
			preview_image  TEXT NOT NULL DEFAULT '',
			downloads      INTEGER NOT NULL DEFAULT 0,
			difficulty     TEXT NOT NULL,
			complexity     REAL NOT NULL DEFAULT 1,
			tags           TEXT NOT NULL DEFAULT '[]',
			version        TEXT NOT NULL DEFAULT '1.0.0',
			is_pro         INTEGER NOT NULL DEFAULT 0,
			price          REAL,
			average_rating REAL,
			created_at     DATETIME NOT NULL,
			updated_at     DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_templates_user_id ON templates(user_id);
		CREATE INDEX IF NOT EXISTS idx_templates_language ON templates(language);
		CREATE INDEX IF NOT EXISTS idx_templates_framework ON templates(framework);
		CREATE INDEX IF NOT EXISTS idx_templates_difficulty ON templates(difficulty);
		CREATE INDEX IF NOT EXISTS idx_templates_downloads ON templates(downloads);

		CREATE TABLE IF NOT EXISTS template_ratings (
			id          TEXT PRIMARY KEY,
			template_id TEXT NOT NULL REFERENCES templates(id) ON DELETE CASCADE,
			user_id     TEXT NOT NULL,
			user_name   TEXT NOT NULL,
			rating      INTEGER NOT NULL,
			review      TEXT,
			created_at  DATETIME NOT NULL,
			updated_at  DATETIME NOT NULL,
			UNIQUE (user_id, template_id)
		);
		CREATE INDEX IF NOT EXISTS idx_template_ratings_template_id ON template_ratings(template_id);

		CREATE TABLE IF NOT EXISTS template_comments (
			id          TEXT PRIMARY KEY,
			template_id TEXT NOT NULL REFERENCES templates(id) ON DELETE CASCADE,
			user_id     TEXT NOT NULL,
			user_name   TEXT NOT NULL,
			content     TEXT NOT NULL,
			parent_id   TEXT,
			is_edited   INTEGER NOT NULL DEFAULT 0,
			created_at  DATETIME NOT NULL,
			updated_at  DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_template_comments_template_id ON template_comments(template_id);
		CREATE INDEX IF NOT EXISTS idx_template_comments_parent_id ON template_comments(parent_id);
		CREATE INDEX IF NOT EXISTS idx_template_comments_user_id ON template_comments(user_id);

		CREATE TABLE IF NOT EXISTS template_favorites (
			id          TEXT PRIMARY KEY,
			user_id     TEXT NOT NULL,
			template_id TEXT NOT NULL,
			created_at  DATETIME NOT NULL,
			UNIQUE (user_id, template_id)
		);
		CREATE INDEX IF NOT EXISTS idx_template_favorites_template_id ON template_favorites(template_id);
	`)
	if err != nil {
		return fmt.Errorf("creating marketplace tables: %w", err)
	}

	// Phase 5: newsletter and execution history
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS newsletter_subscribers (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE,
			status        TEXT NOT NULL,
			subscribed_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS code_executions (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			language   TEXT NOT NULL,
			code       TEXT NOT NULL,
			output     TEXT NOT NULL DEFAULT '',
			error      TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_code_executions_user_id ON code_executions(user_id, created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating newsletter and execution tables: %w", err)
	}

	return nil
}

// addColumnIfNotExists adds a column to a table only if it doesn't already exist.
func (db *DB) addColumnIfNotExists(table, column, definition string) error {
	var count int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`,
		table, column,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking column %s.%s: %w", table, column, err)
	}
	if count > 0 {
		return nil
	}
	_, err = db.conn.Exec(fmt.Sprintf(
		`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition,
	))
	return err
}

// now is the timestamp written by every insert and update. UTC keeps the
// stored text lexically ordered.
func now() time.Time {
	return time.Now().UTC()
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT &&
		strings.Contains(sqliteErr.Error(), "UNIQUE")
}

// checkAffected turns "no rows affected" into a NotFound error.
func checkAffected(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func encodeTags(tags []string) (string, error) {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("sqlite: encoding tags: %w", err)
	}
	return string(b), nil
}

func decodeTags(raw string) ([]string, error) {
	tags := []string{}
	if raw == "" {
		return tags, nil
	}
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil, fmt.Errorf("sqlite: decoding tags %q: %w", raw, err)
	}
	return tags, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}
