package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/codecraft/internal/apperror"
	"github.com/sakif/codecraft/internal/model"
	"github.com/sakif/codecraft/internal/repository"
)

var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, github_id, login, name, email, avatar_url, is_pro, pro_since,
	customer_id, order_id, created_at, updated_at`

// Upsert inserts or updates a user based on their GitHub ID.
//
// An existing user keeps their internal ID and pro status; only the profile
// fields coming from GitHub are refreshed.
func (db *DB) Upsert(ctx context.Context, user *model.User) error {
	var existingID string
	err := db.conn.QueryRowContext(ctx,
		`SELECT id FROM users WHERE github_id = ?`, user.GitHubID,
	).Scan(&existingID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("sqlite: looking up user by github_id %d: %w", user.GitHubID, err)
	}

	if existingID != "" {
		user.ID = existingID
		user.UpdatedAt = now()
		_, err = db.conn.ExecContext(ctx,
			`UPDATE users SET login = ?, name = ?, email = ?, avatar_url = ?, updated_at = ?
			 WHERE id = ?`,
			user.Login, user.Name, user.Email, user.AvatarURL, user.UpdatedAt, user.ID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
		}
		// Hand back the stored pro fields so the caller sees the full record.
		stored, err := db.GetUserByID(ctx, user.ID)
		if err != nil {
			return err
		}
		*user = *stored
		return nil
	}

	ts := now()
	user.ID = xid.New().String()
	user.CreatedAt = ts
	user.UpdatedAt = ts

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO users (id, github_id, login, name, email, avatar_url, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.GitHubID, user.Login, user.Name, user.Email, user.AvatarURL,
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", fmt.Sprint(user.GitHubID))
		}
		return fmt.Errorf("sqlite: inserting user (githubID=%d): %w", user.GitHubID, err)
	}
	return nil
}

// GetUserByID retrieves a user by their internal ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return u, nil
}

// GetUserByEmail retrieves the oldest account registered with email.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ? COLLATE NOCASE
		 ORDER BY created_at, rowid LIMIT 1`, email,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.Missing("User not found")
		}
		return nil, fmt.Errorf("sqlite: getting user by email: %w", err)
	}
	return u, nil
}

// SetPro marks a user as a pro subscriber.
func (db *DB) SetPro(ctx context.Context, id string, since time.Time, customerID, orderID string) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE users SET is_pro = 1, pro_since = ?, customer_id = ?, order_id = ?, updated_at = ?
		 WHERE id = ?`,
		since.UTC(), customerID, orderID, now(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: upgrading user %s: %w", id, err)
	}
	return checkAffected(result, apperror.NotFound("user", id))
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u        model.User
		proSince sql.NullTime
	)
	if err := row.Scan(
		&u.ID, &u.GitHubID, &u.Login, &u.Name, &u.Email, &u.AvatarURL,
		&u.IsPro, &proSince, &u.CustomerID, &u.OrderID, &u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if proSince.Valid {
		t := proSince.Time
		u.ProSince = &t
	}
	return &u, nil
}
