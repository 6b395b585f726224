package oauth2

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/authflow/authflow"
)

// HandleProfileFunc receives the provider profile and access token after a
// successful callback. authflow.LocalAuth.HandleProviderUser has this shape.
type HandleProfileFunc func(w http.ResponseWriter, r *http.Request, profile authflow.ProviderProfile, token string)

// ParseProfileFunc maps a provider's user-info JSON onto a profile
type ParseProfileFunc func(userInfo map[string]any) (authflow.ProviderProfile, error)

// BaseOAuth2 runs the authorization code flow for one provider. Mount its
// Handler under a prefix; it serves "/" (redirect) and "/callback".
type BaseOAuth2 struct {
	Name         string
	ClientId     string
	ClientSecret string
	CallbackURL  string

	// UserInfoURL is fetched with the access token after the exchange
	UserInfoURL string

	// Where to send the browser when anything goes wrong
	AuthFailureUrl string

	HandleProfile HandleProfileFunc
	ParseProfile  ParseProfileFunc

	Logger *slog.Logger

	httpClient  *http.Client
	oauthConfig oauth2.Config
	mux         *http.ServeMux
}

func NewBaseOAuth2(name string, cfg authflow.ProviderConfig, endpoint oauth2.Endpoint, scopes []string, handleProfile HandleProfileFunc) *BaseOAuth2 {
	out := &BaseOAuth2{
		Name:           name,
		ClientId:       cfg.ClientID,
		ClientSecret:   cfg.ClientSecret,
		CallbackURL:    cfg.CallbackURL,
		AuthFailureUrl: "/login",
		HandleProfile:  handleProfile,
		Logger:         slog.Default(),
		mux:            http.NewServeMux(),
		oauthConfig: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.CallbackURL,
			Scopes:       scopes,
			Endpoint:     endpoint,
		},
	}
	out.mux.HandleFunc("/{$}", OauthRedirector(&out.oauthConfig))
	out.mux.HandleFunc("/callback", out.handleCallback)
	out.mux.HandleFunc("/callback/", out.handleCallback)
	return out
}

func (b *BaseOAuth2) Handler() http.Handler {
	return b.mux
}

func (b *BaseOAuth2) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mux.ServeHTTP(w, r)
}

// SetHTTPClient sets the client used for the token exchange and user info
func (b *BaseOAuth2) SetHTTPClient(client *http.Client) {
	b.httpClient = client
}

// SetOAuthEndpoint overrides the provider endpoint
func (b *BaseOAuth2) SetOAuthEndpoint(endpoint oauth2.Endpoint) {
	b.oauthConfig.Endpoint = endpoint
}

// OAuthConfig returns a copy of the underlying oauth2 config
func (b *BaseOAuth2) OAuthConfig() oauth2.Config {
	return b.oauthConfig
}

func (b *BaseOAuth2) getHTTPClient() *http.Client {
	if b.httpClient != nil {
		return b.httpClient
	}
	return http.DefaultClient
}

// ExchangeContext carries the HTTP client into golang.org/x/oauth2
func (b *BaseOAuth2) ExchangeContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, b.getHTTPClient())
}

func (b *BaseOAuth2) handleCallback(w http.ResponseWriter, r *http.Request) {
	oauthState, _ := r.Cookie(StateCookie)
	if oauthState == nil {
		http.Error(w, "OauthState is nil", http.StatusBadRequest)
		return
	}
	if r.FormValue("state") != oauthState.Value {
		clearCookie(w, StateCookie)
		http.Error(w, fmt.Sprintf("invalid oauth %s state", b.Name), http.StatusBadRequest)
		return
	}
	clearCookie(w, StateCookie)

	var opts []oauth2.AuthCodeOption
	if verifier, _ := r.Cookie(VerifierCookie); verifier != nil {
		opts = append(opts, oauth2.VerifierOption(verifier.Value))
		clearCookie(w, VerifierCookie)
	}

	token, err := b.oauthConfig.Exchange(b.ExchangeContext(r.Context()), r.FormValue("code"), opts...)
	if err != nil {
		b.fail(w, r, "invalid code exchange", err)
		return
	}
	userInfo, err := b.getUserData(r.Context(), token)
	if err != nil {
		b.fail(w, r, "error fetching user info", err)
		return
	}
	profile, err := b.ParseProfile(userInfo)
	if err != nil {
		b.fail(w, r, "error reading profile", err)
		return
	}
	profile.Provider = b.Name
	b.HandleProfile(w, r, profile, token.AccessToken)
}

func (b *BaseOAuth2) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	b.Logger.Info(msg, "provider", b.Name, "err", err)
	http.Redirect(w, r, b.AuthFailureUrl, http.StatusTemporaryRedirect)
}

func (b *BaseOAuth2) getUserData(ctx context.Context, token *oauth2.Token) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.UserInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Accept", "application/json")

	response, err := b.getHTTPClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed getting user info from %s: %w", b.Name, err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(response.Body, 512))
		return nil, fmt.Errorf("user info returned %d: %s", response.StatusCode, body)
	}

	var userInfo map[string]any
	decoder := json.NewDecoder(response.Body)
	decoder.UseNumber()
	if err := decoder.Decode(&userInfo); err != nil {
		return nil, fmt.Errorf("failed to parse user info: %w", err)
	}
	return userInfo, nil
}

// stringField reads a string or number field as a string
func stringField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	}
	return ""
}
