// Package authflow implements local username/password signup and login, a
// third-party (OAuth) login, and session serialization on top of a pluggable
// user store.
//
// # Outcomes
//
// Every attempt resolves to exactly one Outcome:
//
//   - Failed: the store broke. Outcome.Err is set and callers answer with a 500.
//   - Rejected: the user got something wrong. Outcome.Message is safe to show.
//   - Succeeded: Outcome.User is the authenticated account.
//
// The two error channels never mix. A bad password is never a Go error and a
// database error is never shown to the user.
//
// # Basic Usage
//
//	db, _ := gormstore.Open("sqlite", "file:authflow.db")
//	store := gormstore.NewUserStore(db)
//	coordinator := authflow.NewCoordinator(store)
//
//	sessions := authflow.NewSessions(authflow.NewSessionManager(cfg.Session, nil), coordinator)
//	localAuth := &authflow.LocalAuth{Coordinator: coordinator, Sessions: sessions}
//	middleware := &authflow.Middleware{Sessions: sessions, LoginURL: "/login"}
//
//	handler := authflow.NewRouter(authflow.RouterConfig{Auth: localAuth, Middleware: middleware})
//	http.ListenAndServe(":8080", handler)
//
// Third-party providers live in the oauth2 package and call
// LocalAuth.HandleProviderUser once the provider profile is known.
//
// # Concurrency
//
// Signup performs a lookup followed by a save with nothing in between to stop
// a second signup for the same username. Stores that need the guarantee must
// enforce it themselves; the gorm store does so with a unique index.
//
// # Security
//
// Passwords are hashed with bcrypt. The session holds only the user id.
package authflow
