package authflow

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
)

// RouterConfig lists the pieces NewRouter mounts
type RouterConfig struct {
	Auth       *LocalAuth
	Middleware *Middleware

	// Provider handlers keyed by name, mounted under /auth/{name}/
	Providers map[string]http.Handler
}

// NewRouter wires the auth endpoints onto a gorilla/mux router and wraps it in
// the session manager.
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()
	a := cfg.Auth

	r.HandleFunc(a.getSignupURL(), a.HandleSignupPage).Methods(http.MethodGet)
	r.HandleFunc(a.getSignupURL(), a.HandleSignup).Methods(http.MethodPost)
	r.HandleFunc(a.getLoginURL(), a.HandleLogin).Methods(http.MethodPost)
	r.HandleFunc(a.getLoginURL(), a.HandleLoginPage).Methods(http.MethodGet)
	r.HandleFunc("/logout", a.HandleLogout).Methods(http.MethodGet, http.MethodPost)
	r.Handle("/profile", cfg.Middleware.EnsureUser(http.HandlerFunc(a.HandleProfile))).Methods(http.MethodGet)

	for name, handler := range cfg.Providers {
		prefix := "/auth/" + strings.Trim(name, "/")
		r.Handle(prefix, http.RedirectHandler(prefix+"/", http.StatusPermanentRedirect))
		r.PathPrefix(prefix + "/").Handler(http.StripPrefix(prefix, handler))
	}

	return a.Sessions.Manager.LoadAndSave(r)
}
