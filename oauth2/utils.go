package oauth2

import (
	"crypto/rand"
	"encoding/base64"
	"log/slog"
	"net/http"
	"time"

	"github.com/authflow/authflow"
	"golang.org/x/oauth2"
)

// Cookie names used across the redirect and the callback
const (
	StateCookie       = "oauthstate"
	VerifierCookie    = "oauthverifier"
	CallbackURLCookie = authflow.CallbackURLCookie
)

func generateStateOauthCookie(w http.ResponseWriter) string {
	var expiration = time.Now().Add(10 * time.Minute)
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		slog.Error("error generating oauth state", "err", err)
	}
	state := base64.URLEncoding.EncodeToString(b)
	http.SetCookie(w, &http.Cookie{Name: StateCookie, Value: state, Path: "/", Expires: expiration, HttpOnly: true, SameSite: http.SameSiteLaxMode})
	return state
}

// OauthRedirector sends the browser to the provider's consent page. It drops
// a state cookie, a PKCE verifier cookie and, if ?callbackURL= is given, a
// short-lived cookie remembering where to return after login.
func OauthRedirector(oauthConfig *oauth2.Config) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		callbackURL := r.URL.Query().Get("callbackURL")
		if callbackURL != "" {
			http.SetCookie(w, &http.Cookie{
				Name:    CallbackURLCookie,
				Value:   callbackURL,
				Path:    "/",
				Expires: time.Now().Add(24 * time.Hour),
				MaxAge:  120, // keep this short
			})
		}
		oauthState := generateStateOauthCookie(w)
		verifier := oauth2.GenerateVerifier()
		http.SetCookie(w, &http.Cookie{Name: VerifierCookie, Value: verifier, Path: "/", MaxAge: 600, HttpOnly: true, SameSite: http.SameSiteLaxMode})
		u := oauthConfig.AuthCodeURL(oauthState, oauth2.S256ChallengeOption(verifier))
		http.Redirect(w, r, u, http.StatusFound)
	}
}

func clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{Name: name, Value: "", Path: "/", MaxAge: -1, Expires: time.Now()})
}
