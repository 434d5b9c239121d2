package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/codecraft/internal/apperror"
	"github.com/sakif/codecraft/internal/mail"
	"github.com/sakif/codecraft/internal/model"
	"github.com/sakif/codecraft/internal/repository"
)

// SubscribeResult reports whether Subscribe created a row or revived an
// unsubscribed one.
type SubscribeResult struct {
	Subscriber  *model.Subscriber `json:"subscriber"`
	Reactivated bool              `json:"reactivated"`
}

// NewsletterService manages newsletter subscriptions.
type NewsletterService struct {
	subscribers repository.SubscriberRepository
	mailer      mail.Mailer
	validate    *validator.Validate
	logger      *slog.Logger
}

// NewNewsletterService creates a NewsletterService that sends welcome mail through mailer.
func NewNewsletterService(subscribers repository.SubscriberRepository, mailer mail.Mailer, logger *slog.Logger) *NewsletterService {
	return &NewsletterService{
		subscribers: subscribers,
		mailer:      mailer,
		validate:    validator.New(),
		logger:      logger,
	}
}

// Subscribe adds an address. An active address is a conflict; an
// unsubscribed one is reactivated in place with a fresh SubscribedAt.
func (s *NewsletterService) Subscribe(ctx context.Context, email string) (*SubscribeResult, error) {
	email, err := s.normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	existing, err := s.subscribers.GetSubscriberByEmail(ctx, email)
	if err != nil && !isNotFound(err) {
		return nil, fmt.Errorf("looking up subscriber: %w", err)
	}

	var result *SubscribeResult
	switch {
	case existing == nil:
		sub := &model.Subscriber{Email: email, Status: model.SubscriberActive}
		if err := s.subscribers.CreateSubscriber(ctx, sub); err != nil {
			return nil, err
		}
		result = &SubscribeResult{Subscriber: sub}
	case existing.Status == model.SubscriberActive:
		return nil, apperror.Duplicate("Email already subscribed")
	default:
		existing.Status = model.SubscriberActive
		existing.SubscribedAt = time.Now().UTC()
		if err := s.subscribers.UpdateSubscriber(ctx, existing); err != nil {
			return nil, fmt.Errorf("reactivating subscriber: %w", err)
		}
		result = &SubscribeResult{Subscriber: existing, Reactivated: true}
	}

	s.logger.Info("newsletter subscription",
		slog.String("subscriberID", result.Subscriber.ID),
		slog.Bool("reactivated", result.Reactivated),
	)
	if err := s.mailer.SendWelcome(ctx, email); err != nil {
		s.logger.Warn("welcome mail failed", slog.String("error", err.Error()))
	}
	return result, nil
}

// Unsubscribe marks an address unsubscribed. Unknown addresses are NotFound.
func (s *NewsletterService) Unsubscribe(ctx context.Context, email string) error {
	email, err := s.normalizeEmail(email)
	if err != nil {
		return err
	}
	sub, err := s.subscribers.GetSubscriberByEmail(ctx, email)
	if err != nil {
		return err
	}
	if sub.Status == model.SubscriberUnsubscribed {
		return nil
	}
	sub.Status = model.SubscriberUnsubscribed
	if err := s.subscribers.UpdateSubscriber(ctx, sub); err != nil {
		return fmt.Errorf("unsubscribing: %w", err)
	}
	s.logger.Info("newsletter unsubscribe", slog.String("subscriberID", sub.ID))
	return nil
}

func (s *NewsletterService) normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := s.validate.Var(email, "required,email"); err != nil {
		return "", apperror.ValidationFailed("email", "Invalid email format")
	}
	return email, nil
}
