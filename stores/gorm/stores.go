//go:build !wasm
// +build !wasm

package gorm

import (
	"context"
	"errors"
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/authflow/authflow"
)

// Open connects to a database with the named driver ("sqlite" or "postgres")
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	return db, nil
}

// AutoMigrate runs database migrations for the users table
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&UserModel{})
}

// UserStore implements authflow.Store using GORM
type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) FindOne(ctx context.Context, q authflow.Query) (*authflow.User, error) {
	tx := s.db.WithContext(ctx)
	if q.ByUsername() {
		tx = tx.Where("local_username = ?", q.Username)
	} else {
		tx = tx.Where("provider = ? AND provider_id = ?", q.Provider, q.ProviderID)
	}
	var model UserModel
	if err := tx.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, authflow.ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return model.ToUser(), nil
}

func (s *UserStore) FindByID(ctx context.Context, id string) (*authflow.User, error) {
	var model UserModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, authflow.ErrNotFound
		}
		return nil, fmt.Errorf("find user %s: %w", id, err)
	}
	return model.ToUser(), nil
}

func (s *UserStore) Save(ctx context.Context, user *authflow.User) error {
	model := UserToModel(user)
	if err := s.db.WithContext(ctx).Save(model).Error; err != nil {
		return fmt.Errorf("save user %s: %w", user.ID, err)
	}
	user.CreatedAt = model.CreatedAt
	user.UpdatedAt = model.UpdatedAt
	return nil
}
