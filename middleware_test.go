package authflow_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/authflow/authflow"
	"github.com/authflow/authflow/stores/memory"
)

func setupMiddleware(t *testing.T) (*authflow.Middleware, *authflow.TokenIssuer, *authflow.User, *memory.Store) {
	t.Helper()
	store := memory.New()
	coord := authflow.NewCoordinator(store, authflow.WithHashCost(bcrypt.MinCost))
	out := coord.Signup(t.Context(), "mallory", "pw")
	if !out.Succeeded() {
		t.Fatalf("signup: %v", out)
	}
	sessions := authflow.NewSessions(authflow.NewSessionManager(authflow.SessionConfig{Lifetime: time.Hour}, nil), coord)
	tokens := authflow.NewTokenIssuer(coord, authflow.JWTConfig{Secret: "mw-secret", Issuer: "authflow"})
	mw := &authflow.Middleware{Sessions: sessions, Tokens: tokens, LoginURL: "/login"}
	return mw, tokens, out.User, store
}

// serve runs h inside the session manager like NewRouter does
func serve(mw *authflow.Middleware, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	mw.Sessions.Manager.LoadAndSave(h).ServeHTTP(rr, req)
	return rr
}

func TestExtractUser(t *testing.T) {
	mw, tokens, user, _ := setupMiddleware(t)

	var seen *authflow.User
	handler := mw.ExtractUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = authflow.UserFromContext(r.Context())
	}))

	t.Run("anonymous request passes through", func(t *testing.T) {
		seen = nil
		rr := serve(mw, handler, httptest.NewRequest(http.MethodGet, "/", nil))
		if rr.Code != http.StatusOK {
			t.Errorf("Expected 200, got %d", rr.Code)
		}
		if seen != nil {
			t.Errorf("Expected no user, got %v", seen.ID)
		}
	})

	t.Run("bearer token resolves the user", func(t *testing.T) {
		seen = nil
		token, err := tokens.Issue(user)
		if err != nil {
			t.Fatalf("Issue: %v", err)
		}
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		serve(mw, handler, req)
		if seen == nil || seen.ID != user.ID {
			t.Errorf("Expected user %s on context, got %v", user.ID, seen)
		}
	})

	t.Run("invalid bearer token is ignored", func(t *testing.T) {
		seen = nil
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer nope")
		rr := serve(mw, handler, req)
		if rr.Code != http.StatusOK || seen != nil {
			t.Errorf("Expected anonymous pass-through, got %d %v", rr.Code, seen)
		}
	})

	t.Run("token for a deleted user is ignored", func(t *testing.T) {
		seen = nil
		token, _ := tokens.Issue(&authflow.User{ID: "gone"})
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := serve(mw, handler, req)
		if rr.Code != http.StatusOK || seen != nil {
			t.Errorf("Expected anonymous pass-through, got %d %v", rr.Code, seen)
		}
	})
}

func TestEnsureUser(t *testing.T) {
	mw, tokens, user, store := setupMiddleware(t)

	called := false
	handler := mw.EnsureUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	t.Run("browser is sent to login", func(t *testing.T) {
		called = false
		rr := serve(mw, handler, httptest.NewRequest(http.MethodGet, "/settings/my%20page", nil))
		if rr.Code != http.StatusFound {
			t.Fatalf("Expected 302, got %d", rr.Code)
		}
		if loc := rr.Header().Get("Location"); loc != "/login?callbackURL=%2Fsettings%2Fmy%20page" {
			t.Errorf("Unexpected redirect %q", loc)
		}
		if called {
			t.Error("Handler should not run")
		}
	})

	t.Run("api client gets 401", func(t *testing.T) {
		called = false
		req := httptest.NewRequest(http.MethodGet, "/settings", nil)
		req.Header.Set("Authorization", "Bearer invalid")
		rr := serve(mw, handler, req)
		if rr.Code != http.StatusUnauthorized || called {
			t.Errorf("Expected 401 without handler, got %d called=%v", rr.Code, called)
		}
	})

	t.Run("valid token reaches handler", func(t *testing.T) {
		called = false
		token, _ := tokens.Issue(user)
		req := httptest.NewRequest(http.MethodGet, "/settings", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := serve(mw, handler, req)
		if rr.Code != http.StatusOK || !called {
			t.Errorf("Expected handler to run, got %d", rr.Code)
		}
	})

	t.Run("store failure is a 500", func(t *testing.T) {
		called = false
		store.FailWith = func(string) error { return errStoreDown }
		defer func() { store.FailWith = nil }()

		token, _ := tokens.Issue(user)
		req := httptest.NewRequest(http.MethodGet, "/settings", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := serve(mw, handler, req)
		if rr.Code != http.StatusInternalServerError || called {
			t.Errorf("Expected 500 without handler, got %d called=%v", rr.Code, called)
		}
	})
}
