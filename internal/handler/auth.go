package handler

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/sakif/codecraft/internal/auth"
	"github.com/sakif/codecraft/internal/service"
)

// AuthHandler runs the GitHub OAuth round trip and manages the session
// cookie.
//
//	GET  /auth/github/login     → redirect to GitHub
//	GET  /auth/github/callback  → exchange code, upsert user, set cookie
//	POST /auth/logout           → clear cookie
type AuthHandler struct {
	github      *auth.GitHubProvider
	states      *auth.StateStore
	users       *service.AuthService
	sessionTTL  int
	secure      bool
	frontendURL string
	logger      *slog.Logger
}

type AuthHandlerConfig struct {
	GitHub      *auth.GitHubProvider
	States      *auth.StateStore
	Users       *service.AuthService
	SessionTTL  int // seconds
	Secure      bool
	FrontendURL string
}

// NewAuthHandler creates an AuthHandler from cfg.
func NewAuthHandler(cfg AuthHandlerConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		github:      cfg.GitHub,
		states:      cfg.States,
		users:       cfg.Users,
		sessionTTL:  cfg.SessionTTL,
		secure:      cfg.Secure,
		frontendURL: cfg.FrontendURL,
		logger:      logger,
	}
}

// HandleGitHubLogin redirects the browser to GitHub's consent page.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	if !h.github.Configured() {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{
			Error:   "unavailable",
			Message: "GitHub sign-in is not configured",
		})
		return
	}
	state, err := h.states.Issue(w)
	if err != nil {
		h.logger.Error("auth login: issuing state", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback finishes sign-in. GitHub calls it with ?code&state, or
// with ?error when the user declined. Failures after the state check send the
// browser back to the frontend with ?auth=denied or ?auth=error.
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if err := h.states.Verify(w, r, q.Get("state")); err != nil {
		h.logger.Warn("auth callback: state check failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "Invalid OAuth state"})
		return
	}

	if denied := q.Get("error"); denied != "" {
		h.logger.Info("auth callback: user denied authorization", slog.String("error", denied))
		http.Redirect(w, r, h.redirectTarget("denied"), http.StatusSeeOther)
		return
	}

	code := q.Get("code")
	if code == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "Missing OAuth code"})
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: GitHub exchange failed", slog.String("error", err.Error()))
		http.Redirect(w, r, h.redirectTarget("error"), http.StatusSeeOther)
		return
	}

	result, err := h.users.LoginOrRegisterGitHub(r.Context(), ghUser)
	if err != nil {
		h.logger.Error("auth callback: login failed",
			slog.Int64("githubID", ghUser.ID),
			slog.String("error", err.Error()),
		)
		http.Redirect(w, r, h.redirectTarget("error"), http.StatusSeeOther)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    result.Token,
		Path:     "/",
		MaxAge:   h.sessionTTL,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.redirectTarget(""), http.StatusSeeOther)
}

// HandleLogout clears the session cookie. Tokens are stateless, so an
// already-copied token stays valid until it expires.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) redirectTarget(authStatus string) string {
	target := h.frontendURL
	if target == "" {
		target = "/"
	}
	if authStatus == "" {
		return target
	}
	u, err := url.Parse(target)
	if err != nil {
		return "/?auth=" + authStatus
	}
	q := u.Query()
	q.Set("auth", authStatus)
	u.RawQuery = q.Encode()
	return u.String()
}
