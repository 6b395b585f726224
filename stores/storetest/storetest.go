// Package storetest holds the behavior every authflow.Store backend must share.
// Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authflow/authflow"
)

// Run exercises newStore against the Store contract. newStore must return an
// empty store each time it is called.
func Run(t *testing.T, newStore func(t *testing.T) authflow.Store) {
	t.Run("missing user", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		_, err := store.FindByID(ctx, "nobody")
		assert.ErrorIs(t, err, authflow.ErrNotFound)

		_, err = store.FindOne(ctx, authflow.Query{Username: "nobody"})
		assert.ErrorIs(t, err, authflow.ErrNotFound)

		_, err = store.FindOne(ctx, authflow.Query{Provider: "github", ProviderID: "1"})
		assert.ErrorIs(t, err, authflow.ErrNotFound)
	})

	t.Run("local user round trip", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		user := LocalUser("u-local", "alice")
		require.NoError(t, store.Save(ctx, user))

		byName, err := store.FindOne(ctx, authflow.Query{Username: "alice"})
		require.NoError(t, err)
		assert.Equal(t, "u-local", byName.ID)
		require.NotNil(t, byName.Local)
		assert.Equal(t, "alice", byName.Local.Username)
		assert.Equal(t, user.Local.PasswordHash, byName.Local.PasswordHash)
		assert.Nil(t, byName.Provider)

		byID, err := store.FindByID(ctx, "u-local")
		require.NoError(t, err)
		assert.Equal(t, "alice", byID.Local.Username)
		assert.False(t, byID.CreatedAt.IsZero())

		_, err = store.FindOne(ctx, authflow.Query{Username: "Alice"})
		assert.ErrorIs(t, err, authflow.ErrNotFound)
	})

	t.Run("provider user round trip", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		user := ProviderUser("u-gh", "github", "583231")
		require.NoError(t, store.Save(ctx, user))

		found, err := store.FindOne(ctx, authflow.Query{Provider: "github", ProviderID: "583231"})
		require.NoError(t, err)
		assert.Equal(t, "u-gh", found.ID)
		assert.Nil(t, found.Local)
		assert.Equal(t, *user.Provider, *found.Provider)

		_, err = store.FindOne(ctx, authflow.Query{Provider: "twitter", ProviderID: "583231"})
		assert.ErrorIs(t, err, authflow.ErrNotFound)

		// provider usernames live apart from local usernames
		_, err = store.FindOne(ctx, authflow.Query{Username: "octocat"})
		assert.ErrorIs(t, err, authflow.ErrNotFound)
	})

	t.Run("save is an upsert", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		user := LocalUser("u-1", "bob")
		require.NoError(t, store.Save(ctx, user))

		user.Local.PasswordHash = "rotated"
		require.NoError(t, store.Save(ctx, user))

		found, err := store.FindByID(ctx, "u-1")
		require.NoError(t, err)
		assert.Equal(t, "rotated", found.Local.PasswordHash)

		byName, err := store.FindOne(ctx, authflow.Query{Username: "bob"})
		require.NoError(t, err)
		assert.Equal(t, "u-1", byName.ID)
	})

	t.Run("returned users are copies", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		require.NoError(t, store.Save(ctx, LocalUser("u-2", "carol")))

		first, err := store.FindByID(ctx, "u-2")
		require.NoError(t, err)
		first.Local.Username = "mutated"

		second, err := store.FindByID(ctx, "u-2")
		require.NoError(t, err)
		assert.Equal(t, "carol", second.Local.Username)
	})
}

// LocalUser builds a user with local credentials and a fixed fake hash
func LocalUser(id, username string) *authflow.User {
	now := time.Now().UTC().Truncate(time.Second)
	return &authflow.User{
		ID:        id,
		Local:     &authflow.LocalCredentials{Username: username, PasswordHash: "$2a$04$fakehashfakehashfakehu"},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ProviderUser builds a user linked to a provider account
func ProviderUser(id, provider, providerID string) *authflow.User {
	now := time.Now().UTC().Truncate(time.Second)
	return &authflow.User{
		ID: id,
		Provider: &authflow.ProviderCredentials{
			Name:        provider,
			ID:          providerID,
			Token:       "access-token",
			Username:    "octocat",
			DisplayName: "The Octocat",
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}
