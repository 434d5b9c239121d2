package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/codecraft/internal/apperror"
	"github.com/sakif/codecraft/internal/model"
	"github.com/sakif/codecraft/internal/repository"
)

// newTestDB returns a fresh in-memory database that is closed when the test ends.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestSnippet(t *testing.T, db *DB, title, code string) *model.Snippet {
	t.Helper()
	snippet := &model.Snippet{
		UserID:   "user-1",
		UserName: "Ada",
		Title:    title,
		Language: "javascript",
		Code:     code,
	}
	if err := db.Create(context.Background(), snippet); err != nil {
		t.Fatalf("failed to create test snippet: %v", err)
	}
	return snippet
}

func TestCreate(t *testing.T) {
	db := newTestDB(t)

	snippet := &model.Snippet{Title: "Hello World", Language: "python", Code: "print('hello')"}
	if err := db.Create(context.Background(), snippet); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if snippet.ID == "" {
		t.Error("Create() did not set snippet.ID")
	}
	if snippet.CreatedAt.IsZero() || snippet.UpdatedAt.IsZero() {
		t.Error("Create() did not set timestamps")
	}
	if snippet.Version != "1.0.0" {
		t.Errorf("Version = %q, want 1.0.0", snippet.Version)
	}
	if snippet.Difficulty != model.DifficultyBeginner {
		t.Errorf("Difficulty = %q, want BEGINNER", snippet.Difficulty)
	}
}

func TestCreate_VerifyPersistence(t *testing.T) {
	db := newTestDB(t)
	original := &model.Snippet{
		UserID:      "user-1",
		UserName:    "Ada",
		Title:       "fib",
		Language:    "go",
		Code:        "package main",
		Description: "fibonacci",
		Tags:        []string{"math", "recursion"},
		Difficulty:  model.DifficultyAdvanced,
		Complexity:  2.5,
	}
	if err := db.Create(context.Background(), original); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := db.GetByID(context.Background(), original.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Title != "fib" || got.Language != "go" || got.Description != "fibonacci" {
		t.Errorf("GetByID() = %+v", got)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "math" || got.Tags[1] != "recursion" {
		t.Errorf("Tags = %v, want [math recursion]", got.Tags)
	}
	if got.Difficulty != model.DifficultyAdvanced || got.Complexity != 2.5 {
		t.Errorf("Difficulty/Complexity = %s/%v", got.Difficulty, got.Complexity)
	}
	if got.UserName != "Ada" {
		t.Errorf("UserName = %q, want Ada", got.UserName)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetByID(context.Background(), "nonexistent")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestList_NewestFirst(t *testing.T) {
	db := newTestDB(t)
	first := createTestSnippet(t, db, "first", "1")
	second := createTestSnippet(t, db, "second", "2")
	third := createTestSnippet(t, db, "third", "3")

	got, err := db.List(context.Background(), repository.ListOptions{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("List() returned %d snippets, want 3", len(got))
	}
	want := []string{third.ID, second.ID, first.ID}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("List()[%d] = %s, want %s", i, got[i].ID, id)
		}
	}
}

func TestList_Pagination(t *testing.T) {
	db := newTestDB(t)
	for i := 0; i < 5; i++ {
		createTestSnippet(t, db, "s", "x")
	}

	page, err := db.List(context.Background(), repository.ListOptions{Limit: 2, Offset: 4})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(page) != 1 {
		t.Errorf("List(limit=2, offset=4) returned %d, want 1", len(page))
	}
}

func TestUpdate(t *testing.T) {
	db := newTestDB(t)
	s := createTestSnippet(t, db, "old", "a")

	s.Title = "new"
	s.Code = "b"
	s.Version = "1.0.1"
	if err := db.Update(context.Background(), s); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := db.GetByID(context.Background(), s.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Title != "new" || got.Code != "b" || got.Version != "1.0.1" {
		t.Errorf("after Update() got %+v", got)
	}
}

func TestUpdate_NotFound(t *testing.T) {
	db := newTestDB(t)

	err := db.Update(context.Background(), &model.Snippet{ID: "missing", Title: "x"})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Update() error = %v, want ErrNotFound", err)
	}
}

func TestDelete_CascadesToRelations(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := createTestSnippet(t, db, "doomed", "x")

	if err := db.CreateSnippetComment(ctx, &model.SnippetComment{SnippetID: s.ID, UserID: "u2", UserName: "Bob", Content: "<p>hi</p>"}); err != nil {
		t.Fatalf("CreateSnippetComment() error = %v", err)
	}
	if err := db.AddMark(ctx, repository.MarkStar, &model.SnippetMark{UserID: "u2", SnippetID: s.ID}); err != nil {
		t.Fatalf("AddMark(star) error = %v", err)
	}
	if err := db.AddMark(ctx, repository.MarkFavorite, &model.SnippetMark{UserID: "u2", SnippetID: s.ID}); err != nil {
		t.Fatalf("AddMark(favorite) error = %v", err)
	}
	if err := db.AddVersion(ctx, &model.SnippetVersion{SnippetID: s.ID, Version: "1.0.0", Code: "x"}); err != nil {
		t.Fatalf("AddVersion() error = %v", err)
	}

	if err := db.Delete(ctx, s.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	comments, _ := db.ListSnippetComments(ctx, s.ID)
	stars, _ := db.CountMarks(ctx, repository.MarkStar, s.ID)
	favs, _ := db.CountMarks(ctx, repository.MarkFavorite, s.ID)
	versions, _ := db.ListVersions(ctx, s.ID)
	if len(comments) != 0 || stars != 0 || favs != 0 || len(versions) != 0 {
		t.Errorf("relations survived delete: comments=%d stars=%d favs=%d versions=%d",
			len(comments), stars, favs, len(versions))
	}
}

func TestDelete_NotFound(t *testing.T) {
	db := newTestDB(t)

	err := db.Delete(context.Background(), "missing")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Delete() error = %v, want ErrNotFound", err)
	}
}

func TestListVersions_NewestFirst(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := createTestSnippet(t, db, "v", "a")

	for _, v := range []string{"1.0.0", "1.0.1"} {
		if err := db.AddVersion(ctx, &model.SnippetVersion{SnippetID: s.ID, Version: v, Code: v}); err != nil {
			t.Fatalf("AddVersion(%s) error = %v", v, err)
		}
	}

	got, err := db.ListVersions(ctx, s.ID)
	if err != nil {
		t.Fatalf("ListVersions() error = %v", err)
	}
	if len(got) != 2 || got[0].Version != "1.0.1" || got[1].Version != "1.0.0" {
		t.Errorf("ListVersions() = %+v", got)
	}
}

func TestBackfillSnippets(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	// A row written before the metadata columns existed.
	_, err := db.conn.Exec(
		`INSERT INTO snippets (id, user_id, user_name, title, language, code, created_at, updated_at)
		 VALUES ('legacy', 'u1', 'Ada', 'old', 'javascript', 'x', ?, ?)`, now(), now())
	if err != nil {
		t.Fatalf("inserting legacy row: %v", err)
	}
	createTestSnippet(t, db, "modern", "y")

	n, err := db.BackfillSnippets(ctx)
	if err != nil {
		t.Fatalf("BackfillSnippets() error = %v", err)
	}
	if n != 1 {
		t.Errorf("BackfillSnippets() touched %d rows, want 1", n)
	}

	var version string
	if err := db.conn.QueryRow(`SELECT version FROM snippets WHERE id = 'legacy'`).Scan(&version); err != nil {
		t.Fatalf("reading backfilled row: %v", err)
	}
	if version != "1.0.0" {
		t.Errorf("backfilled version = %q, want 1.0.0", version)
	}

	again, err := db.BackfillSnippets(ctx)
	if err != nil || again != 0 {
		t.Errorf("second BackfillSnippets() = %d, %v; want 0, nil", again, err)
	}
}

func TestMarks_UniquePerUserAndSnippet(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := createTestSnippet(t, db, "s", "x")

	if err := db.AddMark(ctx, repository.MarkStar, &model.SnippetMark{UserID: "u1", SnippetID: s.ID}); err != nil {
		t.Fatalf("AddMark() error = %v", err)
	}
	err := db.AddMark(ctx, repository.MarkStar, &model.SnippetMark{UserID: "u1", SnippetID: s.ID})
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("second AddMark() error = %v, want ErrConflict", err)
	}

	// A favorite is a separate relation.
	if err := db.AddMark(ctx, repository.MarkFavorite, &model.SnippetMark{UserID: "u1", SnippetID: s.ID}); err != nil {
		t.Errorf("AddMark(favorite) error = %v", err)
	}

	n, err := db.CountMarks(ctx, repository.MarkStar, s.ID)
	if err != nil || n != 1 {
		t.Errorf("CountMarks() = %d, %v; want 1, nil", n, err)
	}

	m, err := db.GetMark(ctx, repository.MarkStar, "u1", s.ID)
	if err != nil {
		t.Fatalf("GetMark() error = %v", err)
	}
	if err := db.RemoveMark(ctx, repository.MarkStar, m.ID); err != nil {
		t.Fatalf("RemoveMark() error = %v", err)
	}
	if _, err := db.GetMark(ctx, repository.MarkStar, "u1", s.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetMark() after remove error = %v, want ErrNotFound", err)
	}
}

func TestListMarksByUser_CreationOrder(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	a := createTestSnippet(t, db, "a", "x")
	b := createTestSnippet(t, db, "b", "x")

	for _, id := range []string{b.ID, a.ID} {
		if err := db.AddMark(ctx, repository.MarkFavorite, &model.SnippetMark{UserID: "u1", SnippetID: id}); err != nil {
			t.Fatalf("AddMark() error = %v", err)
		}
	}

	got, err := db.ListMarksByUser(ctx, repository.MarkFavorite, "u1")
	if err != nil {
		t.Fatalf("ListMarksByUser() error = %v", err)
	}
	if len(got) != 2 || got[0].SnippetID != b.ID || got[1].SnippetID != a.ID {
		t.Errorf("ListMarksByUser() = %+v", got)
	}
}

func TestSnippetComments(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	s := createTestSnippet(t, db, "s", "x")

	rating := 4
	first := &model.SnippetComment{SnippetID: s.ID, UserID: "u1", UserName: "Ada", Content: "<p>one</p>", Rating: &rating}
	second := &model.SnippetComment{SnippetID: s.ID, UserID: "u2", UserName: "Bob", Content: "<p>two</p>"}
	for _, c := range []*model.SnippetComment{first, second} {
		if err := db.CreateSnippetComment(ctx, c); err != nil {
			t.Fatalf("CreateSnippetComment() error = %v", err)
		}
	}

	got, err := db.ListSnippetComments(ctx, s.ID)
	if err != nil {
		t.Fatalf("ListSnippetComments() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != second.ID {
		t.Fatalf("ListSnippetComments() = %+v, want newest first", got)
	}
	if got[1].Rating == nil || *got[1].Rating != 4 {
		t.Errorf("rating not persisted: %+v", got[1].Rating)
	}
	if got[0].Rating != nil {
		t.Errorf("unrated comment has rating %v", *got[0].Rating)
	}

	first.Content = "<p>edited</p>"
	if err := db.UpdateSnippetComment(ctx, first); err != nil {
		t.Fatalf("UpdateSnippetComment() error = %v", err)
	}
	c, err := db.GetSnippetComment(ctx, first.ID)
	if err != nil || c.Content != "<p>edited</p>" {
		t.Errorf("GetSnippetComment() = %+v, %v", c, err)
	}

	if err := db.DeleteSnippetComment(ctx, first.ID); err != nil {
		t.Fatalf("DeleteSnippetComment() error = %v", err)
	}
	if err := db.DeleteSnippetComment(ctx, first.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("second DeleteSnippetComment() error = %v, want ErrNotFound", err)
	}
}
