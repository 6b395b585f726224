package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/authflow/authflow"
)

// ErrNotLoggedIn is returned when a call needs a token and none is held
var ErrNotLoggedIn = errors.New("not logged in")

// AuthClient is an HTTP client with bearer token management
type AuthClient struct {
	mu            sync.Mutex
	serverURL     string
	store         CredentialStore
	httpClient    *http.Client
	baseTransport http.RoundTripper

	signupPath  string
	loginPath   string
	profilePath string
}

// authResponse is the JSON body of a successful signup or login
type authResponse struct {
	User  *authflow.User `json:"user"`
	Token string         `json:"token"`
}

// ClientOption configures an AuthClient
type ClientOption func(*AuthClient)

// WithPaths overrides the signup, login and profile paths
func WithPaths(signup, login, profile string) ClientOption {
	return func(c *AuthClient) {
		c.signupPath, c.loginPath, c.profilePath = signup, login, profile
	}
}

// WithHTTPClient sets a custom base HTTP client (for timeouts, TLS config, etc.)
// The transport from this client will be wrapped with auth handling.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *AuthClient) {
		if client == nil {
			return
		}
		if client.Transport != nil {
			c.baseTransport = client.Transport
		}
		c.httpClient.Timeout = client.Timeout
	}
}

// WithTransport sets a custom base transport (for connection pooling, proxies, etc.)
func WithTransport(transport http.RoundTripper) ClientOption {
	return func(c *AuthClient) {
		c.baseTransport = transport
	}
}

// NewAuthClient creates a new authenticated HTTP client for a server
func NewAuthClient(serverURL string, store CredentialStore, opts ...ClientOption) *AuthClient {
	// Normalize server URL
	u, err := url.Parse(serverURL)
	if err == nil && u.Scheme != "" && u.Host != "" {
		serverURL = fmt.Sprintf("%s://%s", u.Scheme, u.Host)
	}
	if store == nil {
		store = NewMemoryCredentialStore()
	}

	c := &AuthClient{
		serverURL:     serverURL,
		store:         store,
		httpClient:    &http.Client{},
		baseTransport: http.DefaultTransport,
		signupPath:    "/signup",
		loginPath:     "/login",
		profilePath:   "/profile",
	}
	for _, opt := range opts {
		opt(c)
	}

	c.httpClient.Transport = &tokenTransport{client: c, base: c.baseTransport}
	// API clients want the 401, not the browser redirect to the login page
	c.httpClient.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return c
}

// HTTPClient returns the underlying HTTP client with auth handling
func (c *AuthClient) HTTPClient() *http.Client {
	return c.httpClient
}

// ServerURL returns the server URL this client is configured for
func (c *AuthClient) ServerURL() string {
	return c.serverURL
}

// expirySkew is how long before its expiry a token stops being sent
const expirySkew = 30 * time.Second

// GetToken returns the current access token, or "" when none is usable. A
// token within expirySkew of its expiry counts as unusable.
func (c *AuthClient) GetToken() (string, error) {
	cred, err := c.store.GetCredential(c.serverURL)
	if err != nil {
		return "", err
	}
	if cred == nil || cred.IsExpiringSoon(expirySkew) {
		return "", nil
	}
	return cred.AccessToken, nil
}

// IsLoggedIn returns true if there is a valid (non-expired) credential
func (c *AuthClient) IsLoggedIn() bool {
	token, err := c.GetToken()
	return err == nil && token != ""
}

// Signup creates an account and keeps the issued token.
// Rejections come back as *authflow.AuthError.
func (c *AuthClient) Signup(ctx context.Context, username, password string) (*ServerCredential, error) {
	return c.authenticate(ctx, c.signupPath, username, password)
}

// Login authenticates with username/password and stores the credential.
// Rejections come back as *authflow.AuthError.
func (c *AuthClient) Login(ctx context.Context, username, password string) (*ServerCredential, error) {
	return c.authenticate(ctx, c.loginPath, username, password)
}

// Logout forgets the credential for this server
func (c *AuthClient) Logout() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.RemoveCredential(c.serverURL)
}

// Profile fetches the logged in user
func (c *AuthClient) Profile(ctx context.Context) (*authflow.User, error) {
	if !c.IsLoggedIn() {
		return nil, ErrNotLoggedIn
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.serverURL+c.profilePath, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrNotLoggedIn
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("profile request failed: HTTP %d", resp.StatusCode)
	}
	var body authResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("invalid response from server: %w", err)
	}
	return body.User, nil
}

func (c *AuthClient) authenticate(ctx context.Context, path, username, password string) (*ServerCredential, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	jsonBody, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	// Use base transport directly so a stale token is not sent
	httpClient := &http.Client{Transport: c.baseTransport, Timeout: c.httpClient.Timeout}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		authErr := &authflow.AuthError{}
		if err := json.Unmarshal(body, authErr); err != nil || authErr.Message == "" {
			return nil, fmt.Errorf("authentication failed: HTTP %d", resp.StatusCode)
		}
		return nil, authErr
	}

	var authResp authResponse
	if err := json.Unmarshal(body, &authResp); err != nil {
		return nil, fmt.Errorf("invalid response from server: %w", err)
	}
	if authResp.Token == "" {
		return nil, errors.New("server did not issue a token")
	}

	cred := &ServerCredential{AccessToken: authResp.Token, Username: username, CreatedAt: time.Now()}
	if authResp.User != nil {
		cred.UserID = authResp.User.ID
	}
	// The server verifies the signature; we only need the expiry
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(authResp.Token, claims); err != nil {
		return nil, fmt.Errorf("invalid token from server: %w", err)
	}
	if claims.ExpiresAt != nil {
		cred.ExpiresAt = claims.ExpiresAt.Time
	}

	if err := c.store.SetCredential(c.serverURL, cred); err != nil {
		return nil, fmt.Errorf("failed to store credential: %w", err)
	}
	return cred, nil
}
