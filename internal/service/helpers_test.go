package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/sakif/codecraft/internal/apperror"
	"github.com/sakif/codecraft/internal/model"
	"github.com/sakif/codecraft/internal/repository/sqlite"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newStore returns a fresh in-memory database; one *sqlite.DB satisfies every
// repository interface.
func newStore(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("sqlite.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

var nextGitHubID int64

func createUser(t *testing.T, db *sqlite.DB, name string, pro bool) *model.User {
	t.Helper()
	ctx := context.Background()
	nextGitHubID++
	u := &model.User{GitHubID: nextGitHubID, Login: name, Name: name, Email: name + "@example.com"}
	if err := db.Upsert(ctx, u); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if pro {
		if err := db.SetPro(ctx, u.ID, u.CreatedAt, "cus_1", "ord_1"); err != nil {
			t.Fatalf("SetPro: %v", err)
		}
		u.IsPro = true
	}
	return u
}

func createTemplate(t *testing.T, db *sqlite.DB, owner *model.User, tpl model.Template) *model.Template {
	t.Helper()
	tpl.UserID = owner.ID
	tpl.UserName = owner.DisplayName()
	if tpl.Difficulty == "" {
		tpl.Difficulty = model.DifficultyBeginner
	}
	if tpl.Tags == nil {
		tpl.Tags = []string{}
	}
	if tpl.Version == "" {
		tpl.Version = "1.0.0"
	}
	if err := db.CreateTemplate(context.Background(), &tpl); err != nil {
		t.Fatalf("CreateTemplate: %v", err)
	}
	return &tpl
}

// assertKind fails unless err wraps the given sentinel.
func assertKind(t *testing.T, err, kind error) {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("error = %v, want %v", err, kind)
	}
}

// assertMessage fails unless err is an *AppError with the given message.
func assertMessage(t *testing.T, err error, want string) {
	t.Helper()
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("error = %v, want *AppError", err)
	}
	if appErr.Message != want {
		t.Errorf("message = %q, want %q", appErr.Message, want)
	}
}

func ptr[T any](v T) *T { return &v }
