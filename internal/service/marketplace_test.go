package service

import (
	"context"
	"sync"
	"testing"

	"github.com/sakif/codecraft/internal/apperror"
	"github.com/sakif/codecraft/internal/model"
	"github.com/sakif/codecraft/internal/repository/sqlite"
)

func newTestMarketplace(t *testing.T) (*MarketplaceService, *sqlite.DB) {
	t.Helper()
	db := newStore(t)
	return NewMarketplaceService(db, db, testLogger()), db
}

func titles(templates []model.Template) []string {
	out := make([]string, len(templates))
	for i, t := range templates {
		out[i] = t.Title
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestMarketplaceList_FiltersAndSorts(t *testing.T) {
	svc, db := newTestMarketplace(t)
	ada := createUser(t, db, "ada", false)

	createTemplate(t, db, ada, model.Template{Title: "TS Hooks", Language: "TypeScript", Framework: "React", Downloads: 10, Description: "custom hooks"})
	createTemplate(t, db, ada, model.Template{Title: "JS Forms", Language: "JavaScript", Framework: "React", Downloads: 50})
	createTemplate(t, db, ada, model.Template{Title: "TS Auth", Language: "TypeScript", Framework: "Next.js", Downloads: 30,
		Difficulty: model.DifficultyAdvanced, Description: "Clerk sign-in"})
	createTemplate(t, db, ada, model.Template{Title: "TS Cache", Language: "TypeScript", Framework: "React", Downloads: 30})

	tests := []struct {
		name   string
		filter ListFilter
		want   []string
	}{
		{"no filter keeps creation order", ListFilter{}, []string{"TS Hooks", "JS Forms", "TS Auth", "TS Cache"}},
		{"language popular, ties keep creation order", ListFilter{Language: "TypeScript", SortBy: SortPopular},
			[]string{"TS Auth", "TS Cache", "TS Hooks"}},
		{"language is case-insensitive", ListFilter{Language: "typescript", Framework: "react"}, []string{"TS Hooks", "TS Cache"}},
		{"difficulty", ListFilter{Difficulty: model.DifficultyAdvanced}, []string{"TS Auth"}},
		{"search matches description", ListFilter{Search: "CLERK"}, []string{"TS Auth"}},
		{"search matches title", ListFilter{Search: "forms"}, []string{"JS Forms"}},
		{"no match", ListFilter{Language: "Rust"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.List(context.Background(), tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if !equalStrings(titles(got), tt.want) {
				t.Errorf("List() = %v, want %v", titles(got), tt.want)
			}
		})
	}
}

func TestMarketplaceList_InvalidFilter(t *testing.T) {
	svc, _ := newTestMarketplace(t)

	_, err := svc.List(context.Background(), ListFilter{Difficulty: "GURU"})
	assertKind(t, err, apperror.ErrValidation)

	_, err = svc.List(context.Background(), ListFilter{SortBy: "oldest"})
	assertKind(t, err, apperror.ErrValidation)
}

func TestMarketplaceCreate_Defaults(t *testing.T) {
	svc, db := newTestMarketplace(t)
	ada := createUser(t, db, "ada", false)

	tpl, err := svc.Create(context.Background(), ada.ID, TemplateInput{
		Title:      "Counter",
		Language:   "TypeScript",
		Framework:  "React",
		Difficulty: model.DifficultyBeginner,
		Code:       "export function Counter() {}",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := svc.Get(context.Background(), tpl.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.UserID != ada.ID || got.UserName != "ada" {
		t.Errorf("owner = %s/%s, want the caller", got.UserID, got.UserName)
	}
	if got.Downloads != 0 || got.Complexity != 1.0 || got.Version != "1.0.0" || len(got.Tags) != 0 || got.PreviewImage != "" {
		t.Errorf("defaults not applied: %+v", got)
	}
	if got.AverageRating != nil {
		t.Errorf("AverageRating = %v, want nil", *got.AverageRating)
	}
}

func TestMarketplaceCreate_Errors(t *testing.T) {
	svc, db := newTestMarketplace(t)
	ada := createUser(t, db, "ada", false)
	ctx := context.Background()
	valid := TemplateInput{Title: "t", Language: "go", Difficulty: model.DifficultyExpert, Code: "x"}

	_, err := svc.Create(ctx, "", valid)
	assertKind(t, err, apperror.ErrUnauthenticated)

	bad := valid
	bad.Difficulty = "EASY"
	_, err = svc.Create(ctx, ada.ID, bad)
	assertKind(t, err, apperror.ErrValidation)

	bad = valid
	bad.Title = ""
	_, err = svc.Create(ctx, ada.ID, bad)
	assertKind(t, err, apperror.ErrValidation)
}

func TestMarketplacePurchase(t *testing.T) {
	svc, db := newTestMarketplace(t)
	ada := createUser(t, db, "ada", false)
	bob := createUser(t, db, "bob", false)
	tpl := createTemplate(t, db, ada, model.Template{Title: "t", Language: "go"})
	ctx := context.Background()

	_, err := svc.Purchase(ctx, "", tpl.ID)
	assertKind(t, err, apperror.ErrUnauthenticated)
	_, err = svc.Purchase(ctx, bob.ID, "missing")
	assertKind(t, err, apperror.ErrNotFound)
	assertMessage(t, err, "Template not found")

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Purchase(ctx, bob.ID, tpl.ID); err != nil {
				t.Errorf("Purchase() error = %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := svc.Purchase(ctx, bob.ID, tpl.ID)
	if err != nil {
		t.Fatalf("Purchase() error = %v", err)
	}
	if got.Downloads != 6 {
		t.Errorf("Downloads = %d, want 6", got.Downloads)
	}
}

func TestMarketplaceSeed(t *testing.T) {
	svc, db := newTestMarketplace(t)
	ada := createUser(t, db, "ada", false)

	seeded, err := svc.Seed(context.Background(), ada.ID)
	if err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	if len(seeded) != len(starterTemplates) {
		t.Fatalf("Seed() created %d, want %d", len(seeded), len(starterTemplates))
	}

	all, err := svc.List(context.Background(), ListFilter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if !equalStrings(titles(all), titles(seeded)) {
		t.Errorf("List() = %v, want %v", titles(all), titles(seeded))
	}
}
