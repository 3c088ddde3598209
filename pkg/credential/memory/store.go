// Package credentialmemory keeps credentials in process memory. It backs
// short-lived CLI sessions and tests.
package credentialmemory

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/passengerlk/owner-session/internal/serviceerr"
	"github.com/passengerlk/owner-session/pkg/credential"
)

const cleanupInterval = 10 * time.Minute

type Store struct {
	// mu serialises pair operations against single-entry writes so that
	// ReadPair never observes half of a WritePair.
	mu    sync.RWMutex
	cache *cache.Cache
}

var _ = credential.Store(&Store{})

func NewStore() *Store {
	return &Store{
		cache: cache.New(cache.NoExpiration, cleanupInterval),
	}
}

func (s *Store) Read(_ context.Context, name string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.get(name)
}

func (s *Store) Write(ctx context.Context, name, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return s.Clear(ctx, name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache.Set(name, value, ttl)

	return nil
}

func (s *Store) Clear(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache.Delete(name)

	return nil
}

func (s *Store) ReadPair(_ context.Context) (credential.Pair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	access, _ := s.get(credential.AccessTokenName)
	refresh, _ := s.get(credential.RefreshTokenName)

	return credential.Pair{Access: access, Refresh: refresh}, nil
}

func (s *Store) WritePair(_ context.Context, pair credential.Pair, policy credential.Policy) error {
	if err := policy.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache.Set(credential.AccessTokenName, pair.Access, policy.AccessTTL)
	s.cache.Set(credential.RefreshTokenName, pair.Refresh, policy.RefreshTTL)

	return nil
}

func (s *Store) ClearPair(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cache.Delete(credential.AccessTokenName)
	s.cache.Delete(credential.RefreshTokenName)

	return nil
}

func (s *Store) get(name string) (string, error) {
	v, ok := s.cache.Get(name)
	if !ok {
		return "", serviceerr.ErrNotFound
	}

	//nolint:forcetypeassert
	return v.(string), nil
}
