package authflow_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/authflow/authflow"
	"github.com/authflow/authflow/stores/memory"
)

// testApp is a running router plus a cookie-keeping client that does not
// follow redirects.
type testApp struct {
	server *httptest.Server
	client *http.Client
	store  *memory.Store
	coord  *authflow.Coordinator
	auth   *authflow.LocalAuth
	tokens *authflow.TokenIssuer
}

func newTestApp(t *testing.T, providers map[string]http.Handler) *testApp {
	t.Helper()
	store := memory.New()
	coord := authflow.NewCoordinator(store, authflow.WithHashCost(bcrypt.MinCost))
	sessions := authflow.NewSessions(authflow.NewSessionManager(authflow.SessionConfig{Lifetime: time.Hour}, nil), coord)
	tokens := authflow.NewTokenIssuer(coord, authflow.JWTConfig{Secret: "test-secret", Issuer: "authflow-test"})

	auth := &authflow.LocalAuth{Coordinator: coord, Sessions: sessions, Tokens: tokens, Providers: []string{"github"}}
	mw := &authflow.Middleware{Sessions: sessions, Tokens: tokens, LoginURL: "/login"}

	server := httptest.NewServer(authflow.NewRouter(authflow.RouterConfig{Auth: auth, Middleware: mw, Providers: providers}))
	t.Cleanup(server.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &testApp{server: server, client: client, store: store, coord: coord, auth: auth, tokens: tokens}
}

func (a *testApp) postForm(t *testing.T, path string, values url.Values) *http.Response {
	t.Helper()
	resp, err := a.client.PostForm(a.server.URL+path, values)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (a *testApp) postJSON(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := a.client.Post(a.server.URL+path, "application/json", strings.NewReader(string(data)))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (a *testApp) get(t *testing.T, path string, header http.Header) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, a.server.URL+path, nil)
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := a.client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

func decodeJSON(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func creds(username, password string) url.Values {
	return url.Values{"username": {username}, "password": {password}}
}

func TestFormSignupAndLogin(t *testing.T) {
	app := newTestApp(t, nil)

	resp := app.postForm(t, "/signup", creds("alice", "secret1"))
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/profile", resp.Header.Get("Location"))
	assert.Equal(t, 1, app.store.Len())

	resp = app.get(t, "/profile", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeJSON(t, resp)
	user := body["user"].(map[string]any)
	assert.Equal(t, "alice", user["local"].(map[string]any)["username"])
	assert.NotContains(t, user["local"], "PasswordHash")

	resp = app.get(t, "/logout", nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	resp = app.get(t, "/profile", nil)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login?callbackURL=%2Fprofile", resp.Header.Get("Location"))

	resp = app.postForm(t, "/login", creds("alice", "secret1"))
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/profile", resp.Header.Get("Location"))
	assert.Equal(t, http.StatusOK, app.get(t, "/profile", nil).StatusCode)
}

func TestFormRejectionFlashes(t *testing.T) {
	app := newTestApp(t, nil)
	require.Equal(t, http.StatusFound, app.postForm(t, "/signup", creds("alice", "secret1")).StatusCode)
	app.get(t, "/logout", nil)

	tests := []struct {
		name     string
		path     string
		values   url.Values
		redirect string
		message  string
	}{
		{"taken username", "/signup", creds("alice", "secret2"), "/signup", authflow.MsgUsernameTaken},
		{"wrong password", "/login", creds("alice", "wrongpw"), "/login", authflow.MsgPasswordIncorrect},
		{"unknown user", "/login", creds("bob", "pw"), "/login", authflow.MsgUsernameNotFound},
		{"missing password", "/login", url.Values{"username": {"alice"}}, "/login", authflow.MsgMissingCredentials},
		{"missing username", "/signup", url.Values{"password": {"pw"}}, "/signup", authflow.MsgMissingCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := app.postForm(t, tt.path, tt.values)
			require.Equal(t, http.StatusFound, resp.StatusCode)
			assert.Equal(t, tt.redirect, resp.Header.Get("Location"))

			page := app.get(t, tt.redirect, nil)
			require.Equal(t, http.StatusOK, page.StatusCode)
			assert.Contains(t, readBody(t, page), tt.message)

			// flash is one-shot
			again := app.get(t, tt.redirect, nil)
			assert.NotContains(t, readBody(t, again), tt.message)
		})
	}
	assert.Equal(t, 1, app.store.Len())
}

func TestJSONResponses(t *testing.T) {
	app := newTestApp(t, nil)

	resp := app.postJSON(t, "/signup", map[string]string{"username": "alice", "password": "secret1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeJSON(t, resp)
	assert.NotEmpty(t, body["token"])
	assert.Equal(t, "alice", body["user"].(map[string]any)["local"].(map[string]any)["username"])

	tests := []struct {
		name   string
		path   string
		body   any
		status int
		code   string
	}{
		{"taken username", "/signup", map[string]string{"username": "alice", "password": "x"}, http.StatusConflict, authflow.ErrCodeUsernameTaken},
		{"wrong password", "/login", map[string]string{"username": "alice", "password": "x"}, http.StatusUnauthorized, authflow.ErrCodeInvalidCreds},
		{"unknown user", "/login", map[string]string{"username": "zed", "password": "x"}, http.StatusUnauthorized, authflow.ErrCodeInvalidCreds},
		{"missing credentials", "/login", map[string]string{"username": "alice"}, http.StatusBadRequest, authflow.ErrCodeMissingField},
		{"password too long", "/signup", map[string]string{"username": "bob", "password": strings.Repeat("p", 80)}, http.StatusBadRequest, authflow.ErrCodeInvalidCreds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := app.postJSON(t, tt.path, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			body := decodeJSON(t, resp)
			assert.Equal(t, tt.code, body["code"])
			assert.NotEmpty(t, body["error"])
		})
	}

	t.Run("login returns a usable bearer token", func(t *testing.T) {
		resp := app.postJSON(t, "/login", map[string]string{"username": "alice", "password": "secret1"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		token, _ := decodeJSON(t, resp)["token"].(string)
		require.NotEmpty(t, token)

		// a fresh client without the session cookie
		req, err := http.NewRequest(http.MethodGet, app.server.URL+"/profile", nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
		bare, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer bare.Body.Close()
		assert.Equal(t, http.StatusOK, bare.StatusCode)
	})
}

func TestStoreFailureRendersServerError(t *testing.T) {
	app := newTestApp(t, nil)
	app.store.FailWith = func(string) error { return errStoreDown }

	resp := app.postForm(t, "/login", creds("alice", "pw"))
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.NotContains(t, readBody(t, resp), errStoreDown.Error())

	resp = app.postJSON(t, "/signup", map[string]string{"username": "alice", "password": "pw"})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, authflow.ErrCodeServerError, decodeJSON(t, resp)["code"])
}

func TestCallbackURLRedirects(t *testing.T) {
	app := newTestApp(t, nil)
	require.Equal(t, http.StatusFound, app.postForm(t, "/signup", creds("alice", "pw")).StatusCode)

	tests := []struct {
		name     string
		callback string
		want     string
	}{
		{"local path", "/dashboard", "/dashboard"},
		{"absolute url", "https://evil.example.com/", "/profile"},
		{"protocol relative", "//evil.example.com", "/profile"},
		{"backslash trick", "/\\evil.example.com", "/profile"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := creds("alice", "pw")
			values.Set("callbackURL", tt.callback)
			resp := app.postForm(t, "/login", values)
			assert.Equal(t, tt.want, resp.Header.Get("Location"))
		})
	}

	t.Run("logout target", func(t *testing.T) {
		assert.Equal(t, "/bye", app.get(t, "/logout?to=/bye", nil).Header.Get("Location"))
		assert.Equal(t, "/", app.get(t, "/logout?to=https://evil.example.com", nil).Header.Get("Location"))
	})
}

func TestProviderUserRendering(t *testing.T) {
	var app *testApp
	provider := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		profile := authflow.ProviderProfile{Provider: "github", ID: r.URL.Query().Get("id"), Username: "octocat"}
		app.auth.HandleProviderUser(w, r, profile, "gh-token")
	})
	app = newTestApp(t, map[string]http.Handler{"github": provider})

	resp := app.get(t, "/auth/github/callback?id=42", nil)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/profile", resp.Header.Get("Location"))
	assert.Equal(t, 1, app.store.Len())

	profile := decodeJSON(t, app.get(t, "/profile", nil))
	assert.Equal(t, "42", profile["user"].(map[string]any)["provider"].(map[string]any)["id"])

	// second visit reuses the account
	app.get(t, "/auth/github/callback?id=42", nil)
	assert.Equal(t, 1, app.store.Len())

	t.Run("bare prefix redirects into the provider", func(t *testing.T) {
		resp := app.get(t, "/auth/github", nil)
		assert.Equal(t, http.StatusPermanentRedirect, resp.StatusCode)
		assert.Equal(t, "/auth/github/", resp.Header.Get("Location"))
	})

	t.Run("callback cookie picks the landing page", func(t *testing.T) {
		u, _ := url.Parse(app.server.URL)
		app.client.Jar.SetCookies(u, []*http.Cookie{{Name: authflow.CallbackURLCookie, Value: "/settings", Path: "/"}})
		resp := app.get(t, "/auth/github/callback?id=43", nil)
		assert.Equal(t, "/settings", resp.Header.Get("Location"))
	})
}

func TestLoginPageListsProviders(t *testing.T) {
	app := newTestApp(t, nil)
	resp := app.get(t, "/login?callbackURL=/after", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))

	page := readBody(t, resp)
	assert.Contains(t, page, `action="/login"`)
	assert.Contains(t, page, `href="/auth/github/"`)
	assert.Contains(t, page, `value="/after"`)
}

func TestMissingSessionUserIsDropped(t *testing.T) {
	app := newTestApp(t, nil)
	require.Equal(t, http.StatusFound, app.postForm(t, "/signup", creds("alice", "pw")).StatusCode)

	// the session now points at a user the store no longer has
	app.store.FailWith = func(op string) error {
		if op == "find_by_id" {
			return authflow.ErrNotFound
		}
		return nil
	}

	resp := app.get(t, "/profile", http.Header{"Accept": {"application/json"}, "Content-Type": {"application/json"}})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
