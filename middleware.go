package authflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

type userContextKey struct{}

// UserFromContext returns the user placed on the context by Middleware, or nil
func UserFromContext(ctx context.Context) *User {
	user, _ := ctx.Value(userContextKey{}).(*User)
	return user
}

// ContextWithUser returns a copy of ctx carrying user
func ContextWithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// Middleware resolves the current user from the session, or from a bearer
// token when Tokens is set.
type Middleware struct {
	Sessions *Sessions
	Tokens   *TokenIssuer

	AuthTokenHeaderName string
	CallbackURLParam    string

	// Browsers without a user are redirected here; empty means plain 401
	LoginURL string

	Logger *slog.Logger
}

/**
 * Ensures that config values have reasonable defaults.
 */
func (m *Middleware) EnsureReasonableDefaults() {
	if m.AuthTokenHeaderName == "" {
		m.AuthTokenHeaderName = "Authorization"
	}
	if m.CallbackURLParam == "" {
		m.CallbackURLParam = "callbackURL"
	}
	if m.Logger == nil {
		m.Logger = slog.Default()
	}
}

// currentUser tries the session first, then the bearer token
func (m *Middleware) currentUser(r *http.Request) (*User, error) {
	user, err := m.Sessions.CurrentUser(r.Context())
	if err != nil || user != nil {
		return user, err
	}
	if m.Tokens == nil {
		return nil, nil
	}
	header := r.Header.Get(m.AuthTokenHeaderName)
	bearer, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || bearer == "" {
		return nil, nil
	}
	sessionToken, err := m.Tokens.Verify(bearer)
	if err != nil {
		m.Logger.Warn("error verifying token", "err", err)
		return nil, nil
	}
	user, err = m.Tokens.Coordinator.DeserializeSession(r.Context(), sessionToken)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return user, err
}

/**
 * Loads the user (if any) onto the request context without enforcing one.
 * Use EnsureUser to also require a logged in user.
 */
func (m *Middleware) ExtractUser(next http.Handler) http.Handler {
	m.EnsureReasonableDefaults()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := m.currentUser(r)
		if err != nil {
			m.Logger.Error("error loading session user", "err", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		if user != nil {
			r = r.WithContext(ContextWithUser(r.Context(), user))
		}
		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) EnsureUser(next http.Handler) http.Handler {
	m.EnsureReasonableDefaults()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := m.currentUser(r)
		if err != nil {
			m.Logger.Error("error loading session user", "err", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		if user == nil {
			if m.LoginURL != "" && !isJSONRequest(r) && r.Header.Get(m.AuthTokenHeaderName) == "" {
				encoded := strings.ReplaceAll(url.QueryEscape(r.URL.Path), "+", "%20")
				http.Redirect(w, r, fmt.Sprintf("%s?%s=%s", m.LoginURL, m.CallbackURLParam, encoded), http.StatusFound)
			} else {
				http.Error(w, "Login required", http.StatusUnauthorized)
			}
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
	})
}
