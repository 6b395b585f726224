//go:build !wasm
// +build !wasm

package gorm

import (
	"time"

	"github.com/authflow/authflow"
)

// UserModel is the GORM model for users
type UserModel struct {
	ID string `gorm:"primaryKey;size:64"`

	LocalUsername *string `gorm:"size:255;uniqueIndex"`
	PasswordHash  string  `gorm:"size:255"`

	Provider            *string `gorm:"size:32;index:idx_provider_account"`
	ProviderID          *string `gorm:"size:255;index:idx_provider_account"`
	ProviderToken       string  `gorm:"size:2048"`
	ProviderUsername    string  `gorm:"size:255"`
	ProviderDisplayName string  `gorm:"size:255"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (UserModel) TableName() string {
	return "users"
}

func (m *UserModel) ToUser() *authflow.User {
	out := &authflow.User{
		ID:        m.ID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if m.LocalUsername != nil {
		out.Local = &authflow.LocalCredentials{
			Username:     *m.LocalUsername,
			PasswordHash: m.PasswordHash,
		}
	}
	if m.Provider != nil && m.ProviderID != nil {
		out.Provider = &authflow.ProviderCredentials{
			Name:        *m.Provider,
			ID:          *m.ProviderID,
			Token:       m.ProviderToken,
			Username:    m.ProviderUsername,
			DisplayName: m.ProviderDisplayName,
		}
	}
	return out
}

func UserToModel(u *authflow.User) *UserModel {
	model := &UserModel{
		ID:        u.ID,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
	if u.Local != nil {
		username := u.Local.Username
		model.LocalUsername = &username
		model.PasswordHash = u.Local.PasswordHash
	}
	if u.Provider != nil {
		provider, providerID := u.Provider.Name, u.Provider.ID
		model.Provider = &provider
		model.ProviderID = &providerID
		model.ProviderToken = u.Provider.Token
		model.ProviderUsername = u.Provider.Username
		model.ProviderDisplayName = u.Provider.DisplayName
	}
	return model
}
