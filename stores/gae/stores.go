//go:build !wasm
// +build !wasm

package gae

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/datastore"
	"google.golang.org/api/iterator"

	"github.com/authflow/authflow"
)

// UserStore implements authflow.Store using Google Cloud Datastore
type UserStore struct {
	client    *datastore.Client
	namespace string
}

// NewUserStore creates a new Datastore-backed UserStore
func NewUserStore(client *datastore.Client, namespace string) *UserStore {
	return &UserStore{client: client, namespace: namespace}
}

func (s *UserStore) namespacedKey(kind, name string) *datastore.Key {
	key := datastore.NameKey(kind, name, nil)
	key.Namespace = s.namespace
	return key
}

func (s *UserStore) FindOne(ctx context.Context, q authflow.Query) (*authflow.User, error) {
	query := datastore.NewQuery(KindUser).Limit(1)
	if q.ByUsername() {
		query = query.FilterField("local_username", "=", q.Username)
	} else {
		query = query.FilterField("provider", "=", q.Provider).
			FilterField("provider_id", "=", q.ProviderID)
	}
	if s.namespace != "" {
		query = query.Namespace(s.namespace)
	}

	it := s.client.Run(ctx, query)
	var entity UserEntity
	_, err := it.Next(&entity)
	if err == iterator.Done {
		return nil, authflow.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	return entity.ToUser(), nil
}

func (s *UserStore) FindByID(ctx context.Context, id string) (*authflow.User, error) {
	key := s.namespacedKey(KindUser, id)
	var entity UserEntity
	if err := s.client.Get(ctx, key, &entity); err != nil {
		if errors.Is(err, datastore.ErrNoSuchEntity) {
			return nil, authflow.ErrNotFound
		}
		return nil, err
	}
	entity.Key = key
	return entity.ToUser(), nil
}

func (s *UserStore) Save(ctx context.Context, user *authflow.User) error {
	key := s.namespacedKey(KindUser, user.ID)
	entity := UserToEntity(user, key)
	entity.UpdatedAt = time.Now()
	if entity.CreatedAt.IsZero() {
		entity.CreatedAt = entity.UpdatedAt
	}
	if _, err := s.client.Put(ctx, key, entity); err != nil {
		return fmt.Errorf("put user %s: %w", user.ID, err)
	}
	user.CreatedAt, user.UpdatedAt = entity.CreatedAt, entity.UpdatedAt
	return nil
}
