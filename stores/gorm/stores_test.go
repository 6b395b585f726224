//go:build !wasm
// +build !wasm

package gorm

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/authflow/authflow"
	"github.com/authflow/authflow/stores/storetest"
)

// newSQLiteDB opens a private in-memory database with the schema applied
func newSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every connection to :memory: is its own database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, AutoMigrate(db))
	return db
}

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:                 logger.Discard,
		DisableAutomaticPing:   true,
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	return db, mock
}

func TestUserStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) authflow.Store { return NewUserStore(newSQLiteDB(t)) })
}

func TestUsernameIsUnique(t *testing.T) {
	store := NewUserStore(newSQLiteDB(t))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, storetest.LocalUser("u-1", "alice")))
	err := store.Save(ctx, storetest.LocalUser("u-2", "alice"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, authflow.ErrNotFound)

	_, err = store.FindByID(ctx, "u-2")
	assert.ErrorIs(t, err, authflow.ErrNotFound)
}

func TestProviderUsersDoNotClaimUsernames(t *testing.T) {
	store := NewUserStore(newSQLiteDB(t))
	ctx := context.Background()

	// two provider-only users both have a NULL local_username
	require.NoError(t, store.Save(ctx, storetest.ProviderUser("u-1", "github", "1")))
	require.NoError(t, store.Save(ctx, storetest.ProviderUser("u-2", "twitter", "1")))

	found, err := store.FindOne(ctx, authflow.Query{Provider: "twitter", ProviderID: "1"})
	require.NoError(t, err)
	assert.Equal(t, "u-2", found.ID)
}

func TestOpen(t *testing.T) {
	db, err := Open("sqlite", ":memory:")
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	defer sqlDB.Close()
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, AutoMigrate(db))
	assert.True(t, db.Migrator().HasTable(&UserModel{}))

	_, err = Open("mysql", "whatever")
	assert.Error(t, err)
}

func TestModelConversion(t *testing.T) {
	local := storetest.LocalUser("u-1", "alice")
	model := UserToModel(local)
	require.NotNil(t, model.LocalUsername)
	assert.Nil(t, model.Provider)
	assert.Equal(t, local, model.ToUser())

	provider := storetest.ProviderUser("u-2", "github", "42")
	model = UserToModel(provider)
	assert.Nil(t, model.LocalUsername)
	assert.Equal(t, provider, model.ToUser())
}

func TestDatabaseErrorsAreNotNotFound(t *testing.T) {
	connReset := errors.New("connection reset by peer")
	ctx := context.Background()

	t.Run("find one", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(`SELECT .* FROM "users"`).WillReturnError(connReset)

		_, err := NewUserStore(db).FindOne(ctx, authflow.Query{Username: "alice"})
		assert.ErrorIs(t, err, connReset)
		assert.NotErrorIs(t, err, authflow.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("find by id", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(`SELECT .* FROM "users"`).WillReturnError(connReset)

		_, err := NewUserStore(db).FindByID(ctx, "u-1")
		assert.ErrorIs(t, err, connReset)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty result is not found", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(`SELECT .* FROM "users"`).WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, err := NewUserStore(db).FindOne(ctx, authflow.Query{Provider: "github", ProviderID: "7"})
		assert.ErrorIs(t, err, authflow.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("save", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectExec(`UPDATE "users"`).WillReturnError(connReset)

		err := NewUserStore(db).Save(ctx, storetest.LocalUser("u-1", "alice"))
		assert.ErrorIs(t, err, connReset)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
