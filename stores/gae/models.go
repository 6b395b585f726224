//go:build !wasm
// +build !wasm

package gae

import (
	"time"

	"cloud.google.com/go/datastore"

	"github.com/authflow/authflow"
)

// KindUser is the Datastore kind for users
const KindUser = "User"

// UserEntity is the Datastore entity for users. Empty strings stand for an
// absent credential record.
type UserEntity struct {
	Key *datastore.Key `datastore:"__key__"`

	LocalUsername string `datastore:"local_username"`
	PasswordHash  string `datastore:"password_hash,noindex"`

	Provider            string `datastore:"provider"`
	ProviderID          string `datastore:"provider_id"`
	ProviderToken       string `datastore:"provider_token,noindex"`
	ProviderUsername    string `datastore:"provider_username,noindex"`
	ProviderDisplayName string `datastore:"provider_display_name,noindex"`

	CreatedAt time.Time `datastore:"created_at"`
	UpdatedAt time.Time `datastore:"updated_at"`
}

func (e *UserEntity) ToUser() *authflow.User {
	out := &authflow.User{CreatedAt: e.CreatedAt, UpdatedAt: e.UpdatedAt}
	if e.Key != nil {
		out.ID = e.Key.Name
	}
	if e.LocalUsername != "" {
		out.Local = &authflow.LocalCredentials{Username: e.LocalUsername, PasswordHash: e.PasswordHash}
	}
	if e.Provider != "" {
		out.Provider = &authflow.ProviderCredentials{
			Name:        e.Provider,
			ID:          e.ProviderID,
			Token:       e.ProviderToken,
			Username:    e.ProviderUsername,
			DisplayName: e.ProviderDisplayName,
		}
	}
	return out
}

func UserToEntity(u *authflow.User, key *datastore.Key) *UserEntity {
	entity := &UserEntity{Key: key, CreatedAt: u.CreatedAt, UpdatedAt: u.UpdatedAt}
	if u.Local != nil {
		entity.LocalUsername = u.Local.Username
		entity.PasswordHash = u.Local.PasswordHash
	}
	if u.Provider != nil {
		entity.Provider = u.Provider.Name
		entity.ProviderID = u.Provider.ID
		entity.ProviderToken = u.Provider.Token
		entity.ProviderUsername = u.Provider.Username
		entity.ProviderDisplayName = u.Provider.DisplayName
	}
	return entity
}
