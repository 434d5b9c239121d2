package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/codecraft/internal/apperror"
	"github.com/sakif/codecraft/internal/auth"
	"github.com/sakif/codecraft/internal/model"
	"github.com/sakif/codecraft/internal/repository"
)

// AuthService turns a GitHub identity into a CodeCraft session and serves
// user profiles.
type AuthService struct {
	users  repository.UserRepository
	tokens *auth.TokenService
	logger *slog.Logger
}

// NewAuthService creates an AuthService. tokens may be nil when no sessions are issued.
func NewAuthService(users repository.UserRepository, tokens *auth.TokenService, logger *slog.Logger) *AuthService {
	return &AuthService{users: users, tokens: tokens, logger: logger}
}

// AuthResult bundles the user record and the issued session token so the
// handler can set the cookie and respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// LoginOrRegisterGitHub upserts the user keyed on the GitHub id and issues a
// session token. First sign-in creates the account.
func (s *AuthService) LoginOrRegisterGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*AuthResult, error) {
	if ghUser == nil {
		return nil, fmt.Errorf("service/auth: GitHub user must not be nil")
	}

	user := &model.User{
		GitHubID:  ghUser.ID,
		Login:     ghUser.Login,
		Name:      ghUser.Name,
		Email:     strings.ToLower(ghUser.Email),
		AvatarURL: ghUser.AvatarURL,
	}
	if err := s.users.Upsert(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: upserting user (githubID=%d): %w", ghUser.ID, err)
	}

	s.logger.Info("user authenticated via GitHub",
		slog.String("userID", user.ID),
		slog.String("login", user.Login),
	)

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

// Me returns the caller's own record.
func (s *AuthService) Me(ctx context.Context, callerID string) (*model.User, error) {
	return callerUser(ctx, s.users, callerID)
}

// GetUser returns a public profile without email or billing references.
func (s *AuthService) GetUser(ctx context.Context, id string) (*model.User, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperror.ValidationFailed("id", "user ID is required")
	}
	u, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	// Contact and billing details stay private.
	u.Email = ""
	u.CustomerID = ""
	u.OrderID = ""
	return u, nil
}

// UpgradeToPro marks the account registered with email as a pro subscriber.
// The billing provider's references are stored for support lookups.
func (s *AuthService) UpgradeToPro(ctx context.Context, email, customerID, orderID string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, apperror.ValidationFailed("email", "email is required")
	}
	u, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if err := s.users.SetPro(ctx, u.ID, time.Now(), customerID, orderID); err != nil {
		return nil, fmt.Errorf("service/auth: upgrading user %s: %w", u.ID, err)
	}
	s.logger.Info("user upgraded to pro", slog.String("userID", u.ID))

	return s.users.GetUserByID(ctx, u.ID)
}
