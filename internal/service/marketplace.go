package service

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/sakif/codecraft/internal/apperror"
	"github.com/sakif/codecraft/internal/model"
	"github.com/sakif/codecraft/internal/repository"
)

const (
	SortNewest  = "newest"
	SortPopular = "popular"
)

// ListFilter narrows the marketplace catalog. Empty fields do not filter.
type ListFilter struct {
	Language   string
	Framework  string
	Difficulty model.Difficulty
	Search     string
	SortBy     string
}

// TemplateInput carries the fields a caller supplies for a new template.
// Owner id and name always come from the caller.
type TemplateInput struct {
	Title       string
	Description string
	Language    string
	Framework   string
	Difficulty  model.Difficulty
	Code        string
	IsPro       bool
}

// MarketplaceService serves the template catalog.
type MarketplaceService struct {
	templates repository.TemplateRepository
	users     repository.UserRepository
	logger    *slog.Logger
}

// NewMarketplaceService creates a MarketplaceService.
func NewMarketplaceService(templates repository.TemplateRepository, users repository.UserRepository, logger *slog.Logger) *MarketplaceService {
	return &MarketplaceService{templates: templates, users: users, logger: logger}
}

// List loads the whole catalog and filters it in process, in this order:
// language, framework, difficulty, then search over title and description.
// Sorting is stable, so equal keys keep creation order.
func (s *MarketplaceService) List(ctx context.Context, f ListFilter) ([]model.Template, error) {
	if f.Difficulty != "" && !f.Difficulty.Valid() {
		return nil, apperror.ValidationFailed("difficulty", "Invalid difficulty")
	}
	switch f.SortBy {
	case "", SortNewest, SortPopular:
	default:
		return nil, apperror.ValidationFailed("sortBy", "sortBy must be newest or popular")
	}

	all, err := s.templates.ListTemplates(ctx)
	if err != nil {
		s.logger.Error("failed to list templates", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing templates: %w", err)
	}
	return filterTemplates(all, f), nil
}

func filterTemplates(templates []model.Template, f ListFilter) []model.Template {
	out := templates
	if f.Language != "" {
		out = slices.DeleteFunc(out, func(t model.Template) bool {
			return !strings.EqualFold(t.Language, f.Language)
		})
	}
	if f.Framework != "" {
		out = slices.DeleteFunc(out, func(t model.Template) bool {
			return !strings.EqualFold(t.Framework, f.Framework)
		})
	}
	if f.Difficulty != "" {
		out = slices.DeleteFunc(out, func(t model.Template) bool {
			return t.Difficulty != f.Difficulty
		})
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		out = slices.DeleteFunc(out, func(t model.Template) bool {
			return !strings.Contains(strings.ToLower(t.Title), needle) &&
				!strings.Contains(strings.ToLower(t.Description), needle)
		})
	}

	switch f.SortBy {
	case SortNewest:
		slices.SortStableFunc(out, func(a, b model.Template) int {
			return b.CreatedAt.Compare(a.CreatedAt)
		})
	case SortPopular:
		slices.SortStableFunc(out, func(a, b model.Template) int {
			return cmp.Compare(b.Downloads, a.Downloads)
		})
	}
	return out
}

// Get returns one template.
func (s *MarketplaceService) Get(ctx context.Context, id string) (*model.Template, error) {
	return s.templates.GetTemplate(ctx, id)
}

// Purchase records a download and returns the updated template. Payment is
// handled by the checkout provider before this is called.
func (s *MarketplaceService) Purchase(ctx context.Context, callerID, id string) (*model.Template, error) {
	if err := requireCaller(callerID); err != nil {
		return nil, err
	}
	if _, err := s.templates.GetTemplate(ctx, id); err != nil {
		return nil, err
	}
	if err := s.templates.IncrementDownloads(ctx, id); err != nil {
		return nil, fmt.Errorf("recording purchase: %w", err)
	}

	s.logger.Info("template purchased",
		slog.String("templateID", id),
		slog.String("userID", callerID),
	)
	return s.templates.GetTemplate(ctx, id)
}

// Create publishes a template owned by the caller.
func (s *MarketplaceService) Create(ctx context.Context, callerID string, in TemplateInput) (*model.Template, error) {
	user, err := callerUser(ctx, s.users, callerID)
	if err != nil {
		return nil, err
	}
	tpl, err := newTemplate(user, in)
	if err != nil {
		return nil, err
	}
	if err := s.templates.CreateTemplate(ctx, tpl); err != nil {
		return nil, fmt.Errorf("creating template: %w", err)
	}

	s.logger.Info("template created",
		slog.String("id", tpl.ID),
		slog.String("userID", tpl.UserID),
	)
	return tpl, nil
}

// newTemplate validates input and applies the catalog defaults.
func newTemplate(owner *model.User, in TemplateInput) (*model.Template, error) {
	title := strings.TrimSpace(in.Title)
	if err := validateTitle(title); err != nil {
		return nil, err
	}
	language := strings.TrimSpace(in.Language)
	if language == "" {
		return nil, apperror.ValidationFailed("language", "language is required")
	}
	if !in.Difficulty.Valid() {
		return nil, apperror.ValidationFailed("difficulty", "Invalid difficulty")
	}
	if err := validateCode(in.Code); err != nil {
		return nil, err
	}

	return &model.Template{
		UserID:       owner.ID,
		UserName:     owner.DisplayName(),
		Title:        title,
		Description:  strings.TrimSpace(in.Description),
		Code:         in.Code,
		Language:     language,
		Framework:    strings.TrimSpace(in.Framework),
		PreviewImage: "",
		Downloads:    0,
		Difficulty:   in.Difficulty,
		Complexity:   1.0,
		Tags:         []string{},
		Version:      "1.0.0",
		IsPro:        in.IsPro,
	}, nil
}

// Seed publishes the starter catalog as owner and returns the new templates.
func (s *MarketplaceService) Seed(ctx context.Context, ownerID string) ([]model.Template, error) {
	created := make([]model.Template, 0, len(starterTemplates))
	for _, in := range starterTemplates {
		tpl, err := s.Create(ctx, ownerID, in)
		if err != nil {
			return nil, fmt.Errorf("seeding %q: %w", in.Title, err)
		}
		created = append(created, *tpl)
	}
	return created, nil
}

// StripLegacyPrices removes the deprecated price field from every template.
func (s *MarketplaceService) StripLegacyPrices(ctx context.Context) (int, error) {
	n, err := s.templates.ClearLegacyPrices(ctx)
	if err != nil {
		return 0, fmt.Errorf("stripping prices: %w", err)
	}
	s.logger.Info("legacy template prices cleared", slog.Int("count", n))
	return n, nil
}

var starterTemplates = []TemplateInput{
	{
		Title:       "Next.js 15 Authentication with Clerk",
		Description: "A complete authentication setup using Clerk in Next.js 15 App Router. Includes protected routes, user profile, and middleware configuration.",
		Language:    "typescript",
		Framework:   "next.js",
		Difficulty:  model.DifficultyBeginner,
		Code: `// middleware.ts
import { authMiddleware } from "@clerk/nextjs";

export default authMiddleware({
  publicRoutes: ["/"],
});

export const config = {
  matcher: ["/((?!_next).*)", "/(api|trpc)(.*)"],
};`,
	},
	{
		Title:       "Next.js 15 Server Actions Form",
		Description: "A complete form implementation using Next.js 15 Server Actions. Includes client and server-side validation, error handling, and TypeScript types.",
		Language:    "typescript",
		Framework:   "next.js",
		Difficulty:  model.DifficultyAdvanced,
		IsPro:       true,
		Code: `"use server";

export async function submitContact(formData: FormData) {
  const email = String(formData.get("email") ?? "");
  if (!email.includes("@")) {
    return { error: "Invalid email" };
  }
  return { ok: true };
}`,
	},
	{
		Title:       "React Query Data Fetching Pattern",
		Description: "A robust data fetching pattern using React Query with TypeScript. Includes error handling, loading states, and optimistic updates.",
		Language:    "typescript",
		Framework:   "react",
		Difficulty:  model.DifficultyAdvanced,
		IsPro:       true,
		Code: `import { useQuery } from "@tanstack/react-query";

type Todo = { id: number; title: string };

export function useTodos() {
  return useQuery<Todo[]>({
    queryKey: ["todos"],
    queryFn: () => fetch("/api/todos").then((r) => r.json()),
  });
}`,
	},
	{
		Title:       "Next.js Server Actions Form Pattern",
		Description: "A type-safe form handling pattern using Next.js 15 Server Actions with client-side validation and error handling.",
		Language:    "typescript",
		Framework:   "next.js",
		Difficulty:  model.DifficultyAdvanced,
		IsPro:       true,
		Code: `"use client";

import { useActionState } from "react";
import { submitContact } from "./actions";

export function ContactForm() {
  const [state, action] = useActionState(submitContact, null);
  return (
    <form action={action}>
      <input name="email" type="email" />
      {state?.error && <p>{state.error}</p>}
      <button type="submit">Send</button>
    </form>
  );
}`,
	},
}
