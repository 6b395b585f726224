package authflow

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alexedwards/scs/v2"
)

// Session keys
const (
	SessionUserKey = "userID"
	FlashSignupKey = "signupMsg"
	FlashLoginKey  = "loginMsg"
)

// Sessions keeps the logged in user and one-shot flash messages in an scs
// session. The session only ever holds the serialized session token.
type Sessions struct {
	Manager     *scs.SessionManager
	Coordinator *Coordinator
	Logger      *slog.Logger
}

// NewSessionManager builds an scs manager from config. A nil store keeps the
// scs in-memory default.
func NewSessionManager(cfg SessionConfig, store scs.Store) *scs.SessionManager {
	sm := scs.New()
	if cfg.Lifetime > 0 {
		sm.Lifetime = cfg.Lifetime
	}
	if cfg.CookieName != "" {
		sm.Cookie.Name = cfg.CookieName
	}
	sm.Cookie.HttpOnly = true
	sm.Cookie.SameSite = http.SameSiteLaxMode
	if store != nil {
		sm.Store = store
	}
	return sm
}

func NewSessions(manager *scs.SessionManager, coordinator *Coordinator) *Sessions {
	return &Sessions{Manager: manager, Coordinator: coordinator, Logger: slog.Default()}
}

// LogIn renews the session token and records the user in the session
func (s *Sessions) LogIn(ctx context.Context, user *User) error {
	if err := s.Manager.RenewToken(ctx); err != nil {
		return err
	}
	s.Manager.Put(ctx, SessionUserKey, s.Coordinator.SerializeSession(user))
	return nil
}

// CurrentUser returns the user recorded in the session, or nil when nobody is
// logged in. A token pointing at a user that no longer exists is dropped.
func (s *Sessions) CurrentUser(ctx context.Context) (*User, error) {
	token := s.Manager.GetString(ctx, SessionUserKey)
	if token == "" {
		return nil, nil
	}
	user, err := s.Coordinator.DeserializeSession(ctx, token)
	if errors.Is(err, ErrNotFound) {
		s.Logger.Warn("dropping session for missing user", "user_id", token)
		s.Manager.Remove(ctx, SessionUserKey)
		return nil, nil
	}
	return user, err
}

// LogOut destroys the session
func (s *Sessions) LogOut(ctx context.Context) error {
	return s.Manager.Destroy(ctx)
}

// Flash queues a message for the next rendered page
func (s *Sessions) Flash(ctx context.Context, key, message string) {
	s.Manager.Put(ctx, key, message)
}

// PopFlash returns and clears a queued message
func (s *Sessions) PopFlash(ctx context.Context, key string) string {
	return s.Manager.PopString(ctx, key)
}
