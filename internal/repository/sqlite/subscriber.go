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

var _ repository.SubscriberRepository = (*DB)(nil)

func (db *DB) CreateSubscriber(ctx context.Context, s *model.Subscriber) error {
	s.ID = xid.New().String()
	s.SubscribedAt = now()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO newsletter_subscribers (id, email, status, subscribed_at) VALUES (?, ?, ?, ?)`,
		s.ID, s.Email, s.Status, s.SubscribedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Duplicate("Email already subscribed")
		}
		return fmt.Errorf("sqlite: creating subscriber: %w", err)
	}
	return nil
}

func (db *DB) GetSubscriberByEmail(ctx context.Context, email string) (*model.Subscriber, error) {
	var s model.Subscriber
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, email, status, subscribed_at FROM newsletter_subscribers WHERE email = ?`,
		email,
	).Scan(&s.ID, &s.Email, &s.Status, &s.SubscribedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.Missing("Subscriber not found")
		}
		return nil, fmt.Errorf("sqlite: getting subscriber: %w", err)
	}
	return &s, nil
}

// UpdateSubscriber writes status and SubscribedAt back.
func (db *DB) UpdateSubscriber(ctx context.Context, s *model.Subscriber) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE newsletter_subscribers SET status = ?, subscribed_at = ? WHERE id = ?`,
		s.Status, s.SubscribedAt.UTC(), s.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating subscriber %s: %w", s.ID, err)
	}
	return checkAffected(result, apperror.Missing("Subscriber not found"))
}
