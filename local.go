package authflow

import (
	"html/template"
	"log/slog"
	"net/http"
	"strings"
)

// CallbackURLCookie remembers where a browser should land after a provider login
const CallbackURLCookie = "oauthCallbackURL"

// LocalAuth serves the signup, login and logout endpoints and renders
// outcomes for browsers (flash + redirect) and API clients (JSON).
type LocalAuth struct {
	Coordinator *Coordinator
	Sessions    *Sessions

	// Optional issuer; when set JSON logins also return a bearer token
	Tokens *TokenIssuer

	// Form field names
	UsernameField string
	PasswordField string

	// Where browsers go after success, and back to on rejection
	SuccessURL string
	SignupURL  string
	LoginURL   string

	// Names of enabled third-party providers, linked from the login page
	Providers []string

	Logger *slog.Logger
}

func (a *LocalAuth) getUsernameField() string {
	if a.UsernameField != "" {
		return a.UsernameField
	}
	return "username"
}

func (a *LocalAuth) getPasswordField() string {
	if a.PasswordField != "" {
		return a.PasswordField
	}
	return "password"
}

func (a *LocalAuth) getSuccessURL() string {
	if a.SuccessURL != "" {
		return a.SuccessURL
	}
	return "/profile"
}

func (a *LocalAuth) getSignupURL() string {
	if a.SignupURL != "" {
		return a.SignupURL
	}
	return "/signup"
}

func (a *LocalAuth) getLoginURL() string {
	if a.LoginURL != "" {
		return a.LoginURL
	}
	return "/login"
}

func (a *LocalAuth) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}

// HandleSignup processes POST /signup
func (a *LocalAuth) HandleSignup(w http.ResponseWriter, r *http.Request) {
	creds, err := parseCredentials(r, a.getUsernameField(), a.getPasswordField())
	if err != nil {
		a.render(w, r, Rejection(err.Error()), FlashSignupKey, a.getSignupURL())
		return
	}
	if creds.Missing() {
		a.render(w, r, Rejection(MsgMissingCredentials), FlashSignupKey, a.getSignupURL())
		return
	}
	outcome := a.Coordinator.Signup(r.Context(), creds.Username, creds.Password)
	a.render(w, r, outcome, FlashSignupKey, a.getSignupURL())
}

// HandleLogin processes POST /login
func (a *LocalAuth) HandleLogin(w http.ResponseWriter, r *http.Request) {
	creds, err := parseCredentials(r, a.getUsernameField(), a.getPasswordField())
	if err != nil {
		a.render(w, r, Rejection(err.Error()), FlashLoginKey, a.getLoginURL())
		return
	}
	if creds.Missing() {
		a.render(w, r, Rejection(MsgMissingCredentials), FlashLoginKey, a.getLoginURL())
		return
	}
	outcome := a.Coordinator.Login(r.Context(), creds.Username, creds.Password)
	a.render(w, r, outcome, FlashLoginKey, a.getLoginURL())
}

// HandleProviderUser finishes a third-party login. It has the signature the
// oauth2 package expects for its HandleProfile callback.
func (a *LocalAuth) HandleProviderUser(w http.ResponseWriter, r *http.Request, profile ProviderProfile, token string) {
	outcome := a.Coordinator.ThirdPartyLogin(r.Context(), profile, token)
	a.render(w, r, outcome, FlashLoginKey, a.getLoginURL())
}

// HandleLogout destroys the session and redirects to ?to= (local paths only) or /
func (a *LocalAuth) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := a.Sessions.LogOut(r.Context()); err != nil {
		a.logger().Error("error destroying session", "err", err)
	}
	http.Redirect(w, r, localRedirect(r.URL.Query().Get("to"), "/"), http.StatusFound)
}

// HandleProfile returns the logged in user. Mount behind Middleware.EnsureUser.
func (a *LocalAuth) HandleProfile(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, NewAuthError(ErrCodeInvalidCreds, "Not authenticated", ""))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

// HandleSignupPage renders the signup form with any pending flash message
func (a *LocalAuth) HandleSignupPage(w http.ResponseWriter, r *http.Request) {
	a.renderPage(w, r, "Sign up", a.getSignupURL(), FlashSignupKey)
}

// HandleLoginPage renders the login form with any pending flash message
func (a *LocalAuth) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	a.renderPage(w, r, "Log in", a.getLoginURL(), FlashLoginKey)
}

// render turns an Outcome into a response. Rejections never surface as 500s
// and failures never reach the user as flash messages.
func (a *LocalAuth) render(w http.ResponseWriter, r *http.Request, outcome Outcome, flashKey, failureURL string) {
	jsonReply := isJSONRequest(r)
	switch outcome.Kind {
	case Rejected:
		if jsonReply {
			authErr, status := rejectionError(outcome.Message)
			writeJSON(w, status, authErr)
			return
		}
		a.Sessions.Flash(r.Context(), flashKey, outcome.Message)
		http.Redirect(w, r, failureURL, http.StatusFound)

	case Succeeded:
		if err := a.Sessions.LogIn(r.Context(), outcome.User); err != nil {
			a.serverError(w, jsonReply, err)
			return
		}
		if !jsonReply {
			target := a.successTarget(r)
			if cookie, _ := r.Cookie(CallbackURLCookie); cookie != nil {
				http.SetCookie(w, &http.Cookie{Name: CallbackURLCookie, Path: "/", MaxAge: -1})
			}
			http.Redirect(w, r, target, http.StatusFound)
			return
		}
		body := map[string]any{"user": outcome.User}
		if a.Tokens != nil {
			token, err := a.Tokens.Issue(outcome.User)
			if err != nil {
				a.serverError(w, jsonReply, err)
				return
			}
			body["token"] = token
		}
		writeJSON(w, http.StatusOK, body)

	default:
		a.serverError(w, jsonReply, outcome.Err)
	}
}

func (a *LocalAuth) serverError(w http.ResponseWriter, jsonReply bool, err error) {
	a.logger().Error("authentication failed", "err", err)
	if jsonReply {
		writeJSON(w, http.StatusInternalServerError, NewAuthError(ErrCodeServerError, "Internal server error", ""))
		return
	}
	http.Error(w, "Internal server error", http.StatusInternalServerError)
}

// successTarget prefers a local callbackURL form value, then the
// oauthCallbackURL cookie left by the provider redirector.
func (a *LocalAuth) successTarget(r *http.Request) string {
	target := r.FormValue("callbackURL")
	if target == "" {
		if cookie, _ := r.Cookie(CallbackURLCookie); cookie != nil {
			target = cookie.Value
		}
	}
	return localRedirect(target, a.getSuccessURL())
}

// localRedirect returns target when it is a path on this host, else fallback
func localRedirect(target, fallback string) string {
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return fallback
	}
	return target
}

type pageData struct {
	Title         string
	Action        string
	Message       string
	UsernameField string
	PasswordField string
	CallbackURL   string
	Providers     []string
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
{{if .Message}}<div class="alert">{{.Message}}</div>{{end}}
<form method="POST" action="{{.Action}}">
	<label>Username: <input type="text" name="{{.UsernameField}}" required></label>
	<label>Password: <input type="password" name="{{.PasswordField}}" required></label>
	<input type="hidden" name="callbackURL" value="{{.CallbackURL}}">
	<button type="submit">{{.Title}}</button>
</form>
{{range .Providers}}<p><a href="/auth/{{.}}/">Continue with {{.}}</a></p>
{{end}}</body>
</html>`))

func (a *LocalAuth) renderPage(w http.ResponseWriter, r *http.Request, title, action, flashKey string) {
	data := pageData{
		Title:         title,
		Action:        action,
		Message:       a.Sessions.PopFlash(r.Context(), flashKey),
		UsernameField: a.getUsernameField(),
		PasswordField: a.getPasswordField(),
		CallbackURL:   localRedirect(r.URL.Query().Get("callbackURL"), ""),
		Providers:     a.Providers,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(w, data); err != nil {
		a.logger().Error("error rendering page", "err", err)
	}
}
