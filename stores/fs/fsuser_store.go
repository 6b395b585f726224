package fs

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/authflow/authflow"
)

// fsUser is the on-disk form of a user. authflow.User hides secrets from
// JSON, so they are spelled out here.
type fsUser struct {
	UserID    string      `json:"user_id"`
	Local     *fsLocal    `json:"local,omitempty"`
	Provider  *fsProvider `json:"provider,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

type fsLocal struct {
	Username     string `json:"username"`
	PasswordHash string `json:"password_hash"`
}

type fsProvider struct {
	Name        string `json:"name"`
	ID          string `json:"id"`
	Token       string `json:"token"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
}

// fsIndex points a username or provider account at a user file
type fsIndex struct {
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// FSUserStore implements authflow.Store with JSON files.
//
// # File Structure
//
//	{StoragePath}/
//	├── users/{userID}.json
//	├── usernames/{hex(username)}.json          # {"user_id": ...}
//	└── providers/{provider}/{hex(id)}.json     # {"user_id": ...}
//
// Writes go through a temp file and rename, so readers never see a partial
// record. Index files are written after the user file; a crash in between
// leaves an unindexed user, never an index pointing at nothing.
type FSUserStore struct {
	StoragePath string
}

func NewFSUserStore(storagePath string) *FSUserStore {
	return &FSUserStore{StoragePath: storagePath}
}

func (s *FSUserStore) getUserPath(userID string) string {
	return filepath.Join(s.StoragePath, "users", filepath.Base(userID)+".json")
}

func (s *FSUserStore) getUsernamePath(username string) string {
	return filepath.Join(s.StoragePath, "usernames", hex.EncodeToString([]byte(username))+".json")
}

func (s *FSUserStore) getProviderPath(provider, id string) string {
	return filepath.Join(s.StoragePath, "providers", filepath.Base(provider), hex.EncodeToString([]byte(id))+".json")
}

func (s *FSUserStore) FindOne(ctx context.Context, q authflow.Query) (*authflow.User, error) {
	path := s.getUsernamePath(q.Username)
	if !q.ByUsername() {
		path = s.getProviderPath(q.Provider, q.ProviderID)
	}
	var index fsIndex
	if err := readJSON(path, &index); err != nil {
		return nil, err
	}
	user, err := s.FindByID(ctx, index.UserID)
	if err != nil {
		return nil, err
	}
	// an index left behind by an older record must not match
	if !q.Matches(user) {
		return nil, authflow.ErrNotFound
	}
	return user, nil
}

func (s *FSUserStore) FindByID(ctx context.Context, id string) (*authflow.User, error) {
	var record fsUser
	if err := readJSON(s.getUserPath(id), &record); err != nil {
		return nil, err
	}
	return record.toUser(), nil
}

func (s *FSUserStore) Save(ctx context.Context, user *authflow.User) error {
	if user.ID == "" {
		return fmt.Errorf("user id required")
	}
	record := fromUser(user)
	record.UpdatedAt = time.Now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = record.UpdatedAt
	}
	if err := writeJSON(s.getUserPath(user.ID), record); err != nil {
		return err
	}

	index := fsIndex{UserID: user.ID, CreatedAt: record.UpdatedAt}
	if user.Local != nil && user.Local.Username != "" {
		if err := writeJSON(s.getUsernamePath(user.Local.Username), index); err != nil {
			return err
		}
	}
	if user.Provider != nil && user.Provider.ID != "" {
		if err := writeJSON(s.getProviderPath(user.Provider.Name, user.Provider.ID), index); err != nil {
			return err
		}
	}
	return nil
}

func readJSON(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return authflow.ErrNotFound
		}
		return err
	}
	return json.Unmarshal(data, out)
}

func writeJSON(path string, value any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(path, data)
}

func fromUser(u *authflow.User) *fsUser {
	out := &fsUser{UserID: u.ID, CreatedAt: u.CreatedAt, UpdatedAt: u.UpdatedAt}
	if u.Local != nil {
		out.Local = &fsLocal{Username: u.Local.Username, PasswordHash: u.Local.PasswordHash}
	}
	if u.Provider != nil {
		out.Provider = &fsProvider{
			Name:        u.Provider.Name,
			ID:          u.Provider.ID,
			Token:       u.Provider.Token,
			Username:    u.Provider.Username,
			DisplayName: u.Provider.DisplayName,
		}
	}
	return out
}

func (r *fsUser) toUser() *authflow.User {
	out := &authflow.User{ID: r.UserID, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt}
	if r.Local != nil {
		out.Local = &authflow.LocalCredentials{Username: r.Local.Username, PasswordHash: r.Local.PasswordHash}
	}
	if r.Provider != nil {
		out.Provider = &authflow.ProviderCredentials{
			Name:        r.Provider.Name,
			ID:          r.Provider.ID,
			Token:       r.Provider.Token,
			Username:    r.Provider.Username,
			DisplayName: r.Provider.DisplayName,
		}
	}
	return out
}
