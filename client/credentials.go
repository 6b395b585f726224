// Package client talks to an authflow server from programs that cannot keep a
// session cookie. It signs up or logs in over the JSON endpoints, keeps the
// returned bearer token and attaches it to later requests.
package client

import (
	"sync"
	"time"
)

// ServerCredential is the bearer token held for one server
type ServerCredential struct {
	AccessToken string    `json:"access_token"`
	UserID      string    `json:"user_id,omitempty"`
	Username    string    `json:"username,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// IsExpired returns true if the access token has expired. A zero ExpiresAt
// never expires.
func (c *ServerCredential) IsExpired() bool {
	return !c.ExpiresAt.IsZero() && time.Now().After(c.ExpiresAt)
}

// IsExpiringSoon returns true if the token expires within the given duration.
// Like IsExpired, a zero ExpiresAt never expires.
func (c *ServerCredential) IsExpiringSoon(within time.Duration) bool {
	return !c.ExpiresAt.IsZero() && time.Now().Add(within).After(c.ExpiresAt)
}

// CredentialStore defines the interface for storing and retrieving credentials
type CredentialStore interface {
	// GetCredential returns nil, nil if no credential exists for the server
	GetCredential(serverURL string) (*ServerCredential, error)

	SetCredential(serverURL string, cred *ServerCredential) error

	RemoveCredential(serverURL string) error
}

// MemoryCredentialStore keeps credentials for the life of the process
type MemoryCredentialStore struct {
	mu    sync.RWMutex
	creds map[string]*ServerCredential
}

func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{creds: make(map[string]*ServerCredential)}
}

func (s *MemoryCredentialStore) GetCredential(serverURL string) (*ServerCredential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cred, ok := s.creds[serverURL]
	if !ok {
		return nil, nil
	}
	out := *cred
	return &out, nil
}

func (s *MemoryCredentialStore) SetCredential(serverURL string, cred *ServerCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *cred
	s.creds[serverURL] = &stored
	return nil
}

func (s *MemoryCredentialStore) RemoveCredential(serverURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.creds, serverURL)
	return nil
}
