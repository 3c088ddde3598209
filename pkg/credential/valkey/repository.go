// Package credentialvalkey stores credentials in Valkey under
// <prefix>:credential:<name> keys with native expiry.
package credentialvalkey

import (
	"context"
	"errors"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/passengerlk/owner-session/internal/serviceerr"
	"github.com/passengerlk/owner-session/pkg/credential"
)

const objectTypeCredential = "credential"

var (
	ErrGetCredential   = errors.New("getting credential from store")
	ErrStoreCredential = errors.New("setting credential into storage")
	ErrClearCredential = errors.New("deleting credential from store")
	ErrGetPair         = errors.New("getting credential pair from store")
	ErrStorePair       = errors.New("setting credential pair into storage")
)

type Repository struct {
	store *store
}

var _ = credential.Store(&Repository{})

func NewRepository(valkeyClient valkey.Client, prefix string) *Repository {
	return &Repository{
		store: newStore(valkeyClient, prefix),
	}
}

func (r *Repository) Read(ctx context.Context, name string) (string, error) {
	value, err := r.store.Get(ctx, objectTypeCredential, name)
	if err != nil {
		if errors.Is(err, serviceerr.ErrNotFound) {
			return "", err
		}

		return "", errors.Join(ErrGetCredential, err)
	}

	return value, nil
}

func (r *Repository) Write(ctx context.Context, name, value string, ttl time.Duration) error {
	if ttl < time.Millisecond {
		return r.Clear(ctx, name)
	}

	if err := r.store.Set(ctx, objectTypeCredential, name, value, ttl); err != nil {
		return errors.Join(ErrStoreCredential, err)
	}

	return nil
}

func (r *Repository) Clear(ctx context.Context, name string) error {
	if err := r.store.Destroy(ctx, objectTypeCredential, name); err != nil {
		return errors.Join(ErrClearCredential, err)
	}

	return nil
}

func (r *Repository) ReadPair(ctx context.Context) (credential.Pair, error) {
	values, err := r.store.GetMany(ctx, objectTypeCredential, credential.AccessTokenName, credential.RefreshTokenName)
	if err != nil {
		return credential.Pair{}, errors.Join(ErrGetPair, err)
	}

	return credential.Pair{Access: values[0], Refresh: values[1]}, nil
}

func (r *Repository) WritePair(ctx context.Context, pair credential.Pair, policy credential.Policy) error {
	if err := policy.Validate(); err != nil {
		return err
	}

	if err := r.store.SetMany(ctx, objectTypeCredential,
		Entry{ID: credential.AccessTokenName, Value: pair.Access, TTL: policy.AccessTTL},
		Entry{ID: credential.RefreshTokenName, Value: pair.Refresh, TTL: policy.RefreshTTL},
	); err != nil {
		return errors.Join(ErrStorePair, err)
	}

	return nil
}

func (r *Repository) ClearPair(ctx context.Context) error {
	if err := r.store.Destroy(ctx, objectTypeCredential, credential.AccessTokenName, credential.RefreshTokenName); err != nil {
		return errors.Join(ErrClearCredential, err)
	}

	return nil
}
