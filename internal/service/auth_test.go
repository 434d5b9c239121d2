package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sakif/codecraft/internal/apperror"
	"github.com/sakif/codecraft/internal/auth"
	"github.com/sakif/codecraft/internal/model"
)

// fakeUserRepo is an in-memory repository.UserRepository.
type fakeUserRepo struct {
	users  map[string]*model.User
	byGHID map[int64]*model.User
	nextID int
	// set to simulate a database failure
	upsertErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users:  make(map[string]*model.User),
		byGHID: make(map[int64]*model.User),
		nextID: 1,
	}
}

func (f *fakeUserRepo) Upsert(_ context.Context, user *model.User) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	if existing, ok := f.byGHID[user.GitHubID]; ok {
		existing.Login = user.Login
		existing.Name = user.Name
		existing.Email = user.Email
		existing.AvatarURL = user.AvatarURL
		*user = *existing
		return nil
	}
	user.ID = fmt.Sprintf("user-%d", f.nextID)
	f.nextID++
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	stored := *user
	f.users[user.ID] = &stored
	f.byGHID[user.GitHubID] = &stored
	return nil
}

func (f *fakeUserRepo) GetUserByID(_ context.Context, id string) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUserRepo) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.Missing("User not found")
}

func (f *fakeUserRepo) SetPro(_ context.Context, id string, since time.Time, customerID, orderID string) error {
	u, ok := f.users[id]
	if !ok {
		return apperror.NotFound("user", id)
	}
	u.IsPro = true
	u.ProSince = &since
	u.CustomerID = customerID
	u.OrderID = orderID
	return nil
}

func newTestAuthService(t *testing.T, repo *fakeUserRepo) (*AuthService, *auth.TokenService) {
	t.Helper()
	ts, err := auth.NewTokenService("test-secret-at-least-16-chars!!", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return NewAuthService(repo, ts, testLogger()), ts
}

func TestLoginOrRegisterGitHub_NewUser(t *testing.T) {
	svc, tokens := newTestAuthService(t, newFakeUserRepo())

	result, err := svc.LoginOrRegisterGitHub(context.Background(), &auth.GitHubUser{
		ID:        42,
		Login:     "octocat",
		Name:      "The Octocat",
		Email:     "Octocat@GitHub.com",
		AvatarURL: "https://avatars.githubusercontent.com/u/42",
	})
	if err != nil {
		t.Fatalf("LoginOrRegisterGitHub() error = %v", err)
	}
	if result.User.ID == "" || result.Token == "" {
		t.Fatalf("LoginOrRegisterGitHub() = %+v", result)
	}
	if result.User.Email != "octocat@github.com" {
		t.Errorf("Email = %q, want lower-cased", result.User.Email)
	}

	subject, err := tokens.Validate(result.Token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if subject != result.User.ID {
		t.Errorf("token subject = %q, want %q", subject, result.User.ID)
	}
}

func TestLoginOrRegisterGitHub_ExistingUserGetsUpdatedProfile(t *testing.T) {
	svc, _ := newTestAuthService(t, newFakeUserRepo())
	ctx := context.Background()

	first, err := svc.LoginOrRegisterGitHub(ctx, &auth.GitHubUser{ID: 99, Login: "old-login"})
	if err != nil {
		t.Fatalf("first login error: %v", err)
	}
	second, err := svc.LoginOrRegisterGitHub(ctx, &auth.GitHubUser{ID: 99, Login: "new-login"})
	if err != nil {
		t.Fatalf("second login error: %v", err)
	}

	if second.User.ID != first.User.ID {
		t.Errorf("second login created a new account")
	}
	if second.User.Login != "new-login" {
		t.Errorf("Login = %q, want new-login", second.User.Login)
	}
}

func TestLoginOrRegisterGitHub_Errors(t *testing.T) {
	repo := newFakeUserRepo()
	svc, _ := newTestAuthService(t, repo)

	if _, err := svc.LoginOrRegisterGitHub(context.Background(), nil); err == nil {
		t.Error("LoginOrRegisterGitHub(nil) should fail")
	}

	repo.upsertErr = errors.New("database is on fire")
	if _, err := svc.LoginOrRegisterGitHub(context.Background(), &auth.GitHubUser{ID: 1, Login: "u"}); err == nil {
		t.Error("LoginOrRegisterGitHub() should propagate repository errors")
	}
}

func TestMe(t *testing.T) {
	svc, _ := newTestAuthService(t, newFakeUserRepo())
	ctx := context.Background()

	if _, err := svc.Me(ctx, ""); !errors.Is(err, apperror.ErrUnauthenticated) {
		t.Errorf("Me(anonymous) error = %v, want ErrUnauthenticated", err)
	}
	if _, err := svc.Me(ctx, "ghost"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Me(ghost) error = %v, want ErrNotFound", err)
	}

	res, _ := svc.LoginOrRegisterGitHub(ctx, &auth.GitHubUser{ID: 7, Login: "findme"})
	me, err := svc.Me(ctx, res.User.ID)
	if err != nil || me.Login != "findme" {
		t.Errorf("Me() = %+v, %v", me, err)
	}
}

func TestGetUser_HidesPrivateFields(t *testing.T) {
	repo := newFakeUserRepo()
	svc, _ := newTestAuthService(t, repo)
	ctx := context.Background()

	res, _ := svc.LoginOrRegisterGitHub(ctx, &auth.GitHubUser{ID: 3, Login: "pro", Email: "pro@example.com"})
	if _, err := svc.UpgradeToPro(ctx, "pro@example.com", "cus_1", "ord_1"); err != nil {
		t.Fatalf("UpgradeToPro() error = %v", err)
	}

	u, err := svc.GetUser(ctx, res.User.ID)
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if !u.IsPro {
		t.Error("GetUser() IsPro = false after upgrade")
	}
	if u.CustomerID != "" || u.OrderID != "" {
		t.Errorf("GetUser() leaked billing references: %+v", u)
	}
	if u.Email != "" {
		t.Errorf("GetUser() Email = %q, want empty", u.Email)
	}

	me, err := svc.Me(ctx, res.User.ID)
	if err != nil {
		t.Fatalf("Me() error = %v", err)
	}
	if me.Email != "pro@example.com" {
		t.Errorf("Me() Email = %q, want pro@example.com", me.Email)
	}

	if _, err := svc.GetUser(ctx, ""); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("GetUser(\"\") error = %v, want ErrValidation", err)
	}
}

func TestUpgradeToPro(t *testing.T) {
	repo := newFakeUserRepo()
	svc, _ := newTestAuthService(t, repo)
	ctx := context.Background()

	if _, err := svc.UpgradeToPro(ctx, "nobody@example.com", "", ""); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("UpgradeToPro(unknown) error = %v, want ErrNotFound", err)
	}

	res, _ := svc.LoginOrRegisterGitHub(ctx, &auth.GitHubUser{ID: 5, Login: "ada", Email: "ada@example.com"})
	u, err := svc.UpgradeToPro(ctx, "  ADA@example.com ", "cus_5", "ord_5")
	if err != nil {
		t.Fatalf("UpgradeToPro() error = %v", err)
	}
	if u.ID != res.User.ID || !u.IsPro || u.ProSince == nil || u.CustomerID != "cus_5" {
		t.Errorf("UpgradeToPro() = %+v", u)
	}
}
