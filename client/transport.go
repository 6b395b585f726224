package client

import (
	"net/http"
)

// AuthTransport sends every request with a fixed bearer token. An empty Token
// sends requests unchanged.
type AuthTransport struct {
	Base  http.RoundTripper
	Token string
}

func NewAuthTransport(token string) *AuthTransport {
	return &AuthTransport{Base: http.DefaultTransport, Token: token}
}

func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if t.Token == "" {
		return base.RoundTrip(req)
	}
	// RoundTrip must not modify the caller's request
	authed := req.Clone(req.Context())
	authed.Header.Set("Authorization", "Bearer "+t.Token)
	return base.RoundTrip(authed)
}

// tokenTransport attaches whatever token the client currently holds and
// forgets it once the server answers 401
type tokenTransport struct {
	client *AuthClient
	base   http.RoundTripper
}

func (t *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token, err := t.client.GetToken()
	if err != nil {
		return nil, err
	}
	resp, err := (&AuthTransport{Base: t.base, Token: token}).RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized && token != "" {
		t.client.Logout()
	}
	return resp, nil
}
