package authflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ProviderProfile is the subset of a third-party profile we keep
type ProviderProfile struct {
	Provider    string
	ID          string
	Username    string
	DisplayName string
}

// Coordinator runs signup, login and third-party login attempts against a
// Store and resolves each one to an Outcome.
type Coordinator struct {
	store    Store
	hashCost int
	newID    func() string
	now      func() time.Time
	logger   *slog.Logger
}

type Option func(*Coordinator)

// WithHashCost sets the bcrypt cost used for new passwords
func WithHashCost(cost int) Option {
	return func(c *Coordinator) { c.hashCost = cost }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// WithIDGenerator replaces the uuid generator used for new users
func WithIDGenerator(newID func() string) Option {
	return func(c *Coordinator) { c.newID = newID }
}

func NewCoordinator(store Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:    store,
		hashCost: bcrypt.DefaultCost,
		newID:    uuid.NewString,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Signup creates a local user unless the username is already taken.
//
// The lookup and the save are not atomic. Two concurrent signups for the same
// username can both pass the lookup; only a uniqueness constraint in the store
// stops the second save. An empty username is rejected without a lookup.
func (c *Coordinator) Signup(ctx context.Context, username, password string) Outcome {
	if username == "" {
		return Rejection(MsgMissingCredentials)
	}
	existing, err := c.store.FindOne(ctx, Query{Username: username})
	if err != nil && !errors.Is(err, ErrNotFound) {
		return c.fail("signup", err, "username", username)
	}
	if existing != nil {
		c.logger.Info("signup rejected", "username", username, "reason", MsgUsernameTaken)
		return Rejection(MsgUsernameTaken)
	}

	user := c.newUser()
	user.Local = &LocalCredentials{Username: username}
	if err := user.SetPassword(password, c.hashCost); err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return Rejection(MsgPasswordTooLong)
		}
		return c.fail("signup", fmt.Errorf("hash password: %w", err), "username", username)
	}
	if err := c.store.Save(ctx, user); err != nil {
		return c.fail("signup", err, "username", username)
	}
	c.logger.Info("created local user", "user_id", user.ID, "username", username)
	return Success(user)
}

// Login checks a username/password pair. It never writes to the store.
func (c *Coordinator) Login(ctx context.Context, username, password string) Outcome {
	if username == "" {
		return Rejection(MsgMissingCredentials)
	}
	user, err := c.store.FindOne(ctx, Query{Username: username})
	if errors.Is(err, ErrNotFound) || (err == nil && user == nil) {
		c.logger.Info("login rejected", "username", username, "reason", MsgUsernameNotFound)
		return Rejection(MsgUsernameNotFound)
	}
	if err != nil {
		return c.fail("login", err, "username", username)
	}
	if !user.ValidPassword(password) {
		c.logger.Info("login rejected", "username", username, "reason", MsgPasswordIncorrect)
		return Rejection(MsgPasswordIncorrect)
	}
	return Success(user)
}

// ThirdPartyLogin returns the user linked to the provider account, creating it
// on first sight. An existing user is returned as stored; token is only
// recorded when the user is created.
func (c *Coordinator) ThirdPartyLogin(ctx context.Context, profile ProviderProfile, token string) Outcome {
	q := Query{Provider: profile.Provider, ProviderID: profile.ID}
	existing, err := c.store.FindOne(ctx, q)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return c.fail("provider login", err, "provider", profile.Provider)
	}
	if existing != nil {
		return Success(existing)
	}

	user := c.newUser()
	user.Provider = &ProviderCredentials{
		Name:        profile.Provider,
		ID:          profile.ID,
		Token:       token,
		Username:    profile.Username,
		DisplayName: profile.DisplayName,
	}
	if err := c.store.Save(ctx, user); err != nil {
		return c.fail("provider login", err, "provider", profile.Provider)
	}
	c.logger.Info("created provider user", "user_id", user.ID, "provider", profile.Provider)
	return Success(user)
}

// SerializeSession returns the opaque token kept in the session for user
func (c *Coordinator) SerializeSession(user *User) string {
	return user.ID
}

// DeserializeSession loads the user behind a session token. Store errors,
// including ErrNotFound, are returned unchanged.
func (c *Coordinator) DeserializeSession(ctx context.Context, token string) (*User, error) {
	return c.store.FindByID(ctx, token)
}

func (c *Coordinator) newUser() *User {
	now := c.now()
	return &User{ID: c.newID(), CreatedAt: now, UpdatedAt: now}
}

func (c *Coordinator) fail(op string, err error, args ...any) Outcome {
	c.logger.Error(op+" failed", append(args, "err", err)...)
	return Failure(err)
}
