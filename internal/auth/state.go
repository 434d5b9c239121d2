package auth

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
)

const stateCookieName = "oauth_state"

var ErrStateMismatch = errors.New("auth: OAuth state mismatch")

// StateStore guards the OAuth round trip against CSRF. Issue stores a random
// nonce in a signed short-lived cookie; Verify checks that GitHub echoed the
// same nonce back.
type StateStore struct {
	codec  *securecookie.SecureCookie
	secure bool
	maxAge time.Duration
}

// NewStateStore signs cookies with hashKey. Secure cookies are only sent over
// HTTPS, so local development turns secure off.
func NewStateStore(hashKey []byte, secure bool) *StateStore {
	maxAge := 10 * time.Minute
	codec := securecookie.New(hashKey, nil)
	codec.MaxAge(int(maxAge.Seconds()))
	return &StateStore{codec: codec, secure: secure, maxAge: maxAge}
}

// Issue sets the state cookie and returns the nonce to put in the auth URL.
func (s *StateStore) Issue(w http.ResponseWriter) (string, error) {
	state := base64.RawURLEncoding.EncodeToString(securecookie.GenerateRandomKey(24))
	encoded, err := s.codec.Encode(stateCookieName, state)
	if err != nil {
		return "", fmt.Errorf("auth: encoding state cookie: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    encoded,
		Path:     "/auth",
		MaxAge:   int(s.maxAge.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return state, nil
}

// Verify checks the returned state against the cookie and clears the cookie.
func (s *StateStore) Verify(w http.ResponseWriter, r *http.Request, state string) error {
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/auth",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
	})

	cookie, err := r.Cookie(stateCookieName)
	if err != nil {
		return ErrStateMismatch
	}
	var want string
	if err := s.codec.Decode(stateCookieName, cookie.Value, &want); err != nil {
		return fmt.Errorf("%w: %v", ErrStateMismatch, err)
	}
	if state == "" || state != want {
		return ErrStateMismatch
	}
	return nil
}
