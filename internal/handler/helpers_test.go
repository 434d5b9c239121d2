package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/sakif/codecraft/internal/auth"
	"github.com/sakif/codecraft/internal/executor"
	"github.com/sakif/codecraft/internal/handler"
	"github.com/sakif/codecraft/internal/mail"
	"github.com/sakif/codecraft/internal/model"
	"github.com/sakif/codecraft/internal/repository/sqlite"
	"github.com/sakif/codecraft/internal/runtime"
	"github.com/sakif/codecraft/internal/service"
)

// stubExecutor records the last request and answers with a canned result.
type stubExecutor struct {
	lastReq executor.ExecutionRequest
	result  *executor.ExecutionResult
	err     error
}

func (s *stubExecutor) Execute(_ context.Context, req executor.ExecutionRequest) (*executor.ExecutionResult, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type testAPI struct {
	t      *testing.T
	db     *sqlite.DB
	tokens *auth.TokenService
	exec   *stubExecutor
	router chi.Router
	nextGH int64
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenService("handler-test-secret-0123", time.Hour)
	require.NoError(t, err)

	registry, err := runtime.NewRegistry(logger)
	require.NoError(t, err)

	exec := &stubExecutor{result: &executor.ExecutionResult{Stdout: "hello\n", Duration: 5 * time.Millisecond}}

	snippets := service.NewSnippetService(db, db, db, db, logger)
	users := service.NewAuthService(db, tokens, logger)
	executions := service.NewExecutionService(exec, registry, db, db, db, db, logger)

	userH := handler.NewUserHandler(users, executions, snippets, logger)
	snippetH := handler.NewSnippetHandler(snippets, logger)
	marketH := handler.NewMarketplaceHandler(
		service.NewMarketplaceService(db, db, logger),
		service.NewRatingService(db, db, db, logger),
		service.NewCommentService(db, db, db, logger),
		service.NewFavoriteService(db, db, logger),
		logger,
	)
	execH := handler.NewExecuteHandler(executions, registry, logger)
	newsH := handler.NewNewsletterHandler(service.NewNewsletterService(db, mail.Noop{}, logger), logger)

	r := chi.NewRouter()
	r.Use(auth.OptionalAuth(tokens))

	r.Get("/api/me", userH.HandleMe)
	r.Get("/api/me/starred", userH.HandleStarred)
	r.Get("/api/users/{id}", userH.HandleGet)
	r.Get("/api/users/{id}/executions", userH.HandleExecutions)
	r.Get("/api/users/{id}/stats", userH.HandleStats)

	r.Get("/api/languages", execH.HandleLanguages)
	r.Post("/api/completions", execH.HandleCompletions)
	r.Post("/api/execute", execH.HandleExecute)

	r.Get("/api/snippets", snippetH.HandleList)
	r.Post("/api/snippets", snippetH.HandleCreate)
	r.Get("/api/snippets/{id}", snippetH.HandleGet)
	r.Put("/api/snippets/{id}", snippetH.HandleUpdate)
	r.Delete("/api/snippets/{id}", snippetH.HandleDelete)
	r.Get("/api/snippets/{id}/versions", snippetH.HandleVersions)
	r.Get("/api/snippets/{id}/comments", snippetH.HandleComments)
	r.Post("/api/snippets/{id}/comments", snippetH.HandleAddComment)
	r.Put("/api/snippets/comments/{commentId}", snippetH.HandleEditComment)
	r.Get("/api/snippets/{id}/star", snippetH.HandleStars)
	r.Post("/api/snippets/{id}/star", snippetH.HandleStar)
	r.Delete("/api/snippets/{id}/star", snippetH.HandleUnstar)

	r.Get("/api/marketplace", marketH.HandleList)
	r.Post("/api/marketplace", marketH.HandleCreate)
	r.Get("/api/marketplace/favorites", marketH.HandleFavorites)
	r.Get("/api/marketplace/{id}", marketH.HandleGet)
	r.Post("/api/marketplace/{id}/purchase", marketH.HandlePurchase)
	r.Get("/api/marketplace/{id}/ratings", marketH.HandleRatings)
	r.Post("/api/marketplace/{id}/ratings", marketH.HandleRate)
	r.Get("/api/marketplace/{id}/comments", marketH.HandleComments)
	r.Post("/api/marketplace/{id}/comments", marketH.HandleAddComment)
	r.Delete("/api/marketplace/comments/{commentId}", marketH.HandleDeleteComment)
	r.Get("/api/marketplace/{id}/favorite", marketH.HandleIsFavorited)
	r.Post("/api/marketplace/{id}/favorite", marketH.HandleFavorite)
	r.Delete("/api/marketplace/{id}/favorite", marketH.HandleUnfavorite)

	r.Post("/api/newsletter/subscribe", newsH.HandleSubscribe)
	r.Post("/api/newsletter/unsubscribe", newsH.HandleUnsubscribe)

	return &testAPI{t: t, db: db, tokens: tokens, exec: exec, router: r}
}

// user registers an account, optionally pro.
func (a *testAPI) user(name string, pro bool) *model.User {
	a.t.Helper()
	ctx := context.Background()
	a.nextGH++
	u := &model.User{GitHubID: a.nextGH, Login: name, Name: name, Email: name + "@example.com"}
	require.NoError(a.t, a.db.Upsert(ctx, u))
	if pro {
		require.NoError(a.t, a.db.SetPro(ctx, u.ID, time.Now(), "cus_1", "ord_1"))
	}
	return u
}

// do sends a request as u (anonymous when nil). A string body is sent
// verbatim, anything else is JSON-encoded.
func (a *testAPI) do(method, path string, body any, u *model.User) *httptest.ResponseRecorder {
	a.t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(a.t, err)
		rd = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if u != nil {
		token, err := a.tokens.Generate(u.ID)
		require.NoError(a.t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	raw := rr.Body.Bytes()
	require.NoError(t, json.Unmarshal(raw, &v), "body: %s", raw)
	return v
}

func errorKind(t *testing.T, rr *httptest.ResponseRecorder) handler.ErrorResponse {
	t.Helper()
	return decode[handler.ErrorResponse](t, rr)
}

// hasStatus is a require helper that prints the body on mismatch.
func hasStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	require.Equal(t, want, rr.Code, "body: %s", rr.Body.String())
}
