package handler_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/codecraft/internal/auth"
	"github.com/sakif/codecraft/internal/handler"
)

func newAuthHandler(t *testing.T, clientID string) *handler.AuthHandler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return handler.NewAuthHandler(handler.AuthHandlerConfig{
		GitHub:      auth.NewGitHubProvider(clientID, "client-secret", "http://localhost:8080/auth/github/callback"),
		States:      auth.NewStateStore([]byte("state-hash-key-0123456789abcdef"), false),
		SessionTTL:  int((24 * time.Hour).Seconds()),
		FrontendURL: "http://localhost:3000/editor",
	}, logger)
}

func TestAuthHandler_LoginNotConfigured(t *testing.T) {
	h := newAuthHandler(t, "")

	rr := httptest.NewRecorder()
	h.HandleGitHubLogin(rr, httptest.NewRequest(http.MethodGet, "/auth/github/login", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

// login runs the first leg and returns the state GitHub would echo back plus
// the signed state cookie.
func login(t *testing.T, h *handler.AuthHandler) (string, *http.Cookie) {
	t.Helper()
	rr := httptest.NewRecorder()
	h.HandleGitHubLogin(rr, httptest.NewRequest(http.MethodGet, "/auth/github/login", nil))
	require.Equal(t, http.StatusTemporaryRedirect, rr.Code)

	loc, err := url.Parse(rr.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "github.com", loc.Host)
	assert.Equal(t, "client-id", loc.Query().Get("client_id"))
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	return state, cookies[0]
}

func TestAuthHandler_CallbackDenied(t *testing.T) {
	h := newAuthHandler(t, "client-id")
	state, cookie := login(t, h)

	req := httptest.NewRequest(http.MethodGet, "/auth/github/callback?error=access_denied&state="+url.QueryEscape(state), nil)
	req.AddCookie(cookie)
	rr := httptest.NewRecorder()
	h.HandleGitHubCallback(rr, req)

	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "http://localhost:3000/editor?auth=denied", rr.Header().Get("Location"))
}

func TestAuthHandler_CallbackRejectsBadState(t *testing.T) {
	h := newAuthHandler(t, "client-id")
	_, cookie := login(t, h)

	tests := []struct {
		name   string
		query  string
		cookie *http.Cookie
	}{
		{"no cookie", "?code=abc&state=whatever", nil},
		{"wrong state", "?code=abc&state=forged", cookie},
		{"tampered cookie", "?code=abc&state=whatever", &http.Cookie{Name: cookie.Name, Value: cookie.Value + "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/auth/github/callback"+tt.query, nil)
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}
			rr := httptest.NewRecorder()
			h.HandleGitHubCallback(rr, req)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
}

func TestAuthHandler_CallbackMissingCode(t *testing.T) {
	h := newAuthHandler(t, "client-id")
	state, cookie := login(t, h)

	req := httptest.NewRequest(http.MethodGet, "/auth/github/callback?state="+url.QueryEscape(state), nil)
	req.AddCookie(cookie)
	rr := httptest.NewRecorder()
	h.HandleGitHubCallback(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestAuthHandler_Logout(t *testing.T) {
	h := newAuthHandler(t, "client-id")

	rr := httptest.NewRecorder()
	h.HandleLogout(rr, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))

	assert.Equal(t, http.StatusNoContent, rr.Code)
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, auth.CookieName, cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
	assert.Less(t, cookies[0].MaxAge, 0)
}
