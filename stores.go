package authflow

import (
	"context"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// ErrNotFound is returned by a Store when no user matches a lookup.
var ErrNotFound = errors.New("user not found")

// LocalCredentials holds the username/password pair for local login
type LocalCredentials struct {
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
}

// ProviderCredentials holds what a third-party provider told us about the user
type ProviderCredentials struct {
	Name        string `json:"name"` // "twitter", "github"
	ID          string `json:"id"`   // the provider's user id
	Token       string `json:"-"`    // access token at the time of first login
	Username    string `json:"username,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}

// User is a single account. Either or both credential records may be set.
type User struct {
	ID        string               `json:"id"`
	Local     *LocalCredentials    `json:"local,omitempty"`
	Provider  *ProviderCredentials `json:"provider,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// SetPassword stores a salted bcrypt hash of password on the local credentials,
// creating them if needed.
func (u *User) SetPassword(password string, cost int) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return err
	}
	if u.Local == nil {
		u.Local = &LocalCredentials{}
	}
	u.Local.PasswordHash = string(hash)
	return nil
}

// ValidPassword reports whether password matches the stored hash.
func (u *User) ValidPassword(password string) bool {
	if u.Local == nil || u.Local.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.Local.PasswordHash), []byte(password)) == nil
}

// Clone returns a deep copy of the user
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	out := *u
	if u.Local != nil {
		local := *u.Local
		out.Local = &local
	}
	if u.Provider != nil {
		provider := *u.Provider
		out.Provider = &provider
	}
	return &out
}

// Query is the predicate for Store.FindOne. A query with a Provider looks up
// a provider account; any other query looks up a local username, even an
// empty one.
type Query struct {
	Username   string
	Provider   string
	ProviderID string
}

// ByProvider reports whether the query targets the provider-account namespace
func (q Query) ByProvider() bool {
	return q.Provider != ""
}

// ByUsername reports whether the query targets the local-credential namespace
func (q Query) ByUsername() bool {
	return !q.ByProvider()
}

// Matches reports whether u satisfies the query
func (q Query) Matches(u *User) bool {
	if q.ByProvider() {
		return u.Provider != nil && u.Provider.Name == q.Provider && u.Provider.ID == q.ProviderID
	}
	return u.Local != nil && u.Local.Username == q.Username
}

// Store persists users
type Store interface {
	// FindOne returns the first user matching q, or ErrNotFound
	FindOne(ctx context.Context, q Query) (*User, error)

	// FindByID returns the user with the given id, or ErrNotFound
	FindByID(ctx context.Context, id string) (*User, error)

	// Save creates or updates a user (upsert)
	Save(ctx context.Context, user *User) error
}
