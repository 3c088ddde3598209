// Package credentialtest holds the behaviour every credential.Store
// backend must satisfy.
package credentialtest

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/passengerlk/owner-session/internal/serviceerr"
	"github.com/passengerlk/owner-session/pkg/credential"
)

// Run exercises the store with the fixed entry names. newStore must return
// an empty store per call.
func Run(t *testing.T, newStore func(t *testing.T) credential.Store) {
	t.Helper()

	t.Run("Read absent entry", func(t *testing.T) {
		s := newStore(t)

		_, err := s.Read(t.Context(), credential.AccessTokenName)
		assert.ErrorIs(t, err, serviceerr.ErrNotFound)
	})

	t.Run("Write then Read", func(t *testing.T) {
		s := newStore(t)

		require.NoError(t, s.Write(t.Context(), credential.PhoneNumberName, "0771234567", time.Minute))

		got, err := s.Read(t.Context(), credential.PhoneNumberName)
		require.NoError(t, err)
		assert.Equal(t, "0771234567", got)
	})

	t.Run("Write overwrites silently", func(t *testing.T) {
		s := newStore(t)

		require.NoError(t, s.Write(t.Context(), credential.AccessTokenName, "one", time.Minute))
		require.NoError(t, s.Write(t.Context(), credential.AccessTokenName, "two", time.Minute))

		got, err := s.Read(t.Context(), credential.AccessTokenName)
		require.NoError(t, err)
		assert.Equal(t, "two", got)
	})

	t.Run("Write with non-positive ttl clears", func(t *testing.T) {
		s := newStore(t)

		require.NoError(t, s.Write(t.Context(), credential.AccessTokenName, "one", time.Minute))
		require.NoError(t, s.Write(t.Context(), credential.AccessTokenName, "", -time.Second))

		_, err := s.Read(t.Context(), credential.AccessTokenName)
		assert.ErrorIs(t, err, serviceerr.ErrNotFound)
	})

	t.Run("Entry expires", func(t *testing.T) {
		s := newStore(t)

		require.NoError(t, s.Write(t.Context(), credential.PhoneNumberName, "0771234567", time.Second))

		assert.Eventually(t, func() bool {
			_, err := s.Read(t.Context(), credential.PhoneNumberName)
			return err != nil
		}, 5*time.Second, 100*time.Millisecond)
	})

	t.Run("Clear absent entry", func(t *testing.T) {
		s := newStore(t)

		assert.NoError(t, s.Clear(t.Context(), credential.RefreshTokenName))
	})

	t.Run("Pair round trip", func(t *testing.T) {
		s := newStore(t)
		pair := credential.Pair{Access: "access-one", Refresh: "refresh-one"}

		require.NoError(t, s.WritePair(t.Context(), pair, credential.DefaultPolicy()))

		got, err := s.ReadPair(t.Context())
		require.NoError(t, err)
		assert.Equal(t, pair, got)

		access, err := s.Read(t.Context(), credential.AccessTokenName)
		require.NoError(t, err)
		assert.Equal(t, pair.Access, access)
	})

	t.Run("ReadPair on empty store", func(t *testing.T) {
		s := newStore(t)

		got, err := s.ReadPair(t.Context())
		require.NoError(t, err)
		assert.True(t, got.Empty())
	})

	t.Run("WritePair rejects invalid policy", func(t *testing.T) {
		s := newStore(t)
		err := s.WritePair(t.Context(), credential.Pair{Access: "a", Refresh: "r"}, credential.Policy{AccessTTL: time.Hour, RefreshTTL: time.Minute})
		require.ErrorIs(t, err, serviceerr.ErrInvalidTTL)

		got, err := s.ReadPair(t.Context())
		require.NoError(t, err)
		assert.True(t, got.Empty())
	})

	t.Run("ClearPair", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.WritePair(t.Context(), credential.Pair{Access: "a", Refresh: "r"}, credential.DefaultPolicy()))
		require.NoError(t, s.Write(t.Context(), credential.PhoneNumberName, "0771234567", time.Minute))

		require.NoError(t, s.ClearPair(t.Context()))

		got, err := s.ReadPair(t.Context())
		require.NoError(t, err)
		assert.True(t, got.Empty())

		phone, err := s.Read(t.Context(), credential.PhoneNumberName)
		require.NoError(t, err, "ClearPair must not touch other entries")
		assert.Equal(t, "0771234567", phone)
	})

	t.Run("Concurrent pair writes are never mixed", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.WritePair(t.Context(), credential.Pair{Access: "access-0", Refresh: "refresh-0"}, credential.DefaultPolicy()))

		const writers = 8
		const rounds = 20

		var wg sync.WaitGroup
		for w := range writers {
			wg.Go(func() {
				for r := range rounds {
					n := w*rounds + r
					pair := credential.Pair{Access: fmt.Sprintf("access-%d", n), Refresh: fmt.Sprintf("refresh-%d", n)}
					assert.NoError(t, s.WritePair(t.Context(), pair, credential.DefaultPolicy()))
				}
			})
		}

		for range writers * rounds {
			got, err := s.ReadPair(t.Context())
			require.NoError(t, err)

			var a, r int
			_, errA := fmt.Sscanf(got.Access, "access-%d", &a)
			_, errR := fmt.Sscanf(got.Refresh, "refresh-%d", &r)
			require.NoError(t, errA)
			require.NoError(t, errR)
			require.Equal(t, a, r, "observed mixed pair %+v", got)
		}

		wg.Wait()
	})
}
