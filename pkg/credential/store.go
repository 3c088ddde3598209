package credential

import (
	"context"
	"time"
)

// Store persists named credential entries with an expiration policy.
//
// Read returns serviceerr.ErrNotFound for absent or expired entries.
// Clear on an absent entry is not an error.
type Store interface {
	Read(ctx context.Context, name string) (string, error)
	Write(ctx context.Context, name, value string, ttl time.Duration) error
	Clear(ctx context.Context, name string) error

	// ReadPair returns a consistent snapshot of both credentials.
	// Absent members are returned as empty strings.
	ReadPair(ctx context.Context) (Pair, error)
	// WritePair replaces both credentials or neither.
	WritePair(ctx context.Context, pair Pair, policy Policy) error
	// ClearPair removes both credentials.
	ClearPair(ctx context.Context) error
}
