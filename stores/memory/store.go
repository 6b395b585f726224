// Package memory provides a map-backed authflow.Store for tests and local
// development. It does not enforce username uniqueness.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/authflow/authflow"
)

// Store keeps users in memory. Records are copied in and out so callers
// cannot mutate stored state behind the store's back.
type Store struct {
	mu    sync.RWMutex
	users map[string]*authflow.User
	order []string

	// FailWith, when set, is consulted before every operation ("find_one",
	// "find_by_id", "save"); a non-nil result is returned as the store error.
	FailWith func(op string) error
}

func New() *Store {
	return &Store{users: make(map[string]*authflow.User)}
}

func (s *Store) fail(op string) error {
	if s.FailWith == nil {
		return nil
	}
	return s.FailWith(op)
}

func (s *Store) FindOne(ctx context.Context, q authflow.Query) (*authflow.User, error) {
	if err := s.fail("find_one"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.order {
		if u := s.users[id]; q.Matches(u) {
			return u.Clone(), nil
		}
	}
	return nil, authflow.ErrNotFound
}

func (s *Store) FindByID(ctx context.Context, id string) (*authflow.User, error) {
	if err := s.fail("find_by_id"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, authflow.ErrNotFound
	}
	return u.Clone(), nil
}

func (s *Store) Save(ctx context.Context, user *authflow.User) error {
	if err := s.fail("save"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		s.order = append(s.order, user.ID)
	}
	stored := user.Clone()
	stored.UpdatedAt = time.Now()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = stored.UpdatedAt
	}
	s.users[user.ID] = stored
	return nil
}

// Len returns the number of stored users
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

// Users returns copies of all users in insertion order
func (s *Store) Users() []*authflow.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*authflow.User, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.users[id].Clone())
	}
	return out
}
