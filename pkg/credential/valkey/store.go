package credentialvalkey

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/passengerlk/owner-session/internal/serviceerr"
)

type store struct {
	valkey valkey.Client
	prefix string
}

func newStore(valkeyClient valkey.Client, prefix string) *store {
	prefix = strings.TrimSuffix(prefix, ":")
	return &store{
		valkey: valkeyClient,
		prefix: prefix,
	}
}

func (s *store) Get(ctx context.Context, objectType, objectID string) (string, error) {
	key := s.key(objectType, objectID)
	value, err := s.valkey.Do(ctx, s.valkey.B().Get().Key(key).Build()).ToString()
	if err != nil {
		valkeyErr, ok := valkey.IsValkeyErr(err)
		if ok && valkeyErr.IsNil() {
			return "", serviceerr.ErrNotFound
		}

		return "", fmt.Errorf("executing get command: %w", err)
	}

	return value, nil
}

// GetMany returns the values of the given objects in order. Absent objects
// yield empty strings. MGET reads all keys at a single point in time.
func (s *store) GetMany(ctx context.Context, objectType string, objectIDs ...string) ([]string, error) {
	keys := make([]string, 0, len(objectIDs))
	for _, id := range objectIDs {
		keys = append(keys, s.key(objectType, id))
	}

	msgs, err := s.valkey.Do(ctx, s.valkey.B().Mget().Key(keys...).Build()).ToArray()
	if err != nil {
		return nil, fmt.Errorf("executing mget command: %w", err)
	}

	values := make([]string, len(msgs))
	for i, msg := range msgs {
		if msg.IsNil() {
			continue
		}

		v, err := msg.ToString()
		if err != nil {
			return nil, fmt.Errorf("decoding mget element: %w", err)
		}
		values[i] = v
	}

	return values, nil
}

func (s *store) Set(ctx context.Context, objectType, id, val string, ttl time.Duration) error {
	if err := s.valkey.Do(ctx, s.setCmd(s.valkey, objectType, id, val, ttl)).Error(); err != nil {
		return fmt.Errorf("executing set command: %w", err)
	}

	return nil
}

// Entry is one value of an atomic SetMany.
type Entry struct {
	ID    string
	Value string
	TTL   time.Duration
}

// SetMany writes all entries inside one MULTI/EXEC transaction on a
// dedicated connection.
func (s *store) SetMany(ctx context.Context, objectType string, entries ...Entry) error {
	return s.valkey.Dedicated(func(c valkey.DedicatedClient) error {
		cmds := make(valkey.Commands, 0, len(entries)+2)
		cmds = append(cmds, c.B().Multi().Build())
		for _, e := range entries {
			cmds = append(cmds, s.setCmd(c, objectType, e.ID, e.Value, e.TTL))
		}
		cmds = append(cmds, c.B().Exec().Build())

		var errs []error
		for _, resp := range c.DoMulti(ctx, cmds...) {
			if err := resp.Error(); err != nil {
				errs = append(errs, err)
			}
		}
		if len(errs) > 0 {
			return fmt.Errorf("executing transaction: %w", errors.Join(errs...))
		}

		return nil
	})
}

func (s *store) Destroy(ctx context.Context, objectType string, ids ...string) error {
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, s.key(objectType, id))
	}

	if err := s.valkey.Do(ctx, s.valkey.B().Del().Key(keys...).Build()).Error(); err != nil {
		return fmt.Errorf("executing del command: %w", err)
	}

	return nil
}

type builder interface {
	B() valkey.Builder
}

func (s *store) setCmd(b builder, objectType, id, val string, ttl time.Duration) valkey.Completed {
	return b.B().Set().Key(s.key(objectType, id)).Value(val).PxMilliseconds(ttl.Milliseconds()).Build()
}

func (s *store) key(objectType string, objectID string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, objectType, objectID)
}
