// Package credentialsql stores credentials in PostgreSQL. Rows are scoped
// by namespace so several owners can share one database.
package credentialsql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/passengerlk/owner-session/internal/serviceerr"
	"github.com/passengerlk/owner-session/pkg/credential"
)

type Repository struct {
	db        *pgxpool.Pool
	namespace string
}

var _ = credential.Store(&Repository{})

func NewRepository(db *pgxpool.Pool, namespace string) *Repository {
	return &Repository{
		db:        db,
		namespace: namespace,
	}
}

func (r *Repository) Read(ctx context.Context, name string) (value string, _ error) {
	if err := r.db.QueryRow(ctx, `SELECT value
FROM credentials
WHERE namespace = $1
	AND name = $2
	AND expires_at > now();`,
		r.namespace, name,
	).Scan(&value); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", serviceerr.ErrNotFound
		}

		return "", fmt.Errorf("selecting from credentials: %w", err)
	}

	return value, nil
}

func (r *Repository) Write(ctx context.Context, name, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return r.Clear(ctx, name)
	}

	if err := upsert(ctx, r.db, r.namespace, name, value, ttl); err != nil {
		return err
	}

	return nil
}

func (r *Repository) Clear(ctx context.Context, name string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM credentials WHERE namespace = $1 AND name = $2;`, r.namespace, name); err != nil {
		return fmt.Errorf("deleting from credentials: %w", err)
	}

	return nil
}

// ReadPair selects both rows in one statement, which reads a single snapshot.
func (r *Repository) ReadPair(ctx context.Context) (credential.Pair, error) {
	rows, err := r.db.Query(ctx, `SELECT name, value
FROM credentials
WHERE namespace = $1
	AND name IN ($2, $3)
	AND expires_at > now();`,
		r.namespace, credential.AccessTokenName, credential.RefreshTokenName,
	)
	if err != nil {
		return credential.Pair{}, fmt.Errorf("selecting credential pair: %w", err)
	}
	defer rows.Close()

	var pair credential.Pair
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return credential.Pair{}, fmt.Errorf("scanning credential row: %w", err)
		}

		switch name {
		case credential.AccessTokenName:
			pair.Access = value
		case credential.RefreshTokenName:
			pair.Refresh = value
		}
	}
	if err := rows.Err(); err != nil {
		return credential.Pair{}, fmt.Errorf("iterating credential rows: %w", err)
	}

	return pair, nil
}

func (r *Repository) WritePair(ctx context.Context, pair credential.Pair, policy credential.Policy) error {
	if err := policy.Validate(); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := upsert(ctx, tx, r.namespace, credential.AccessTokenName, pair.Access, policy.AccessTTL); err != nil {
		return err
	}
	if err := upsert(ctx, tx, r.namespace, credential.RefreshTokenName, pair.Refresh, policy.RefreshTTL); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing tx: %w", err)
	}

	return nil
}

func (r *Repository) ClearPair(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM credentials WHERE namespace = $1 AND name IN ($2, $3);`,
		r.namespace, credential.AccessTokenName, credential.RefreshTokenName,
	); err != nil {
		return fmt.Errorf("deleting credential pair: %w", err)
	}

	return nil
}

// DeleteExpired removes rows past their expiry and returns how many were removed.
func (r *Repository) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM credentials WHERE namespace = $1 AND expires_at <= now();`, r.namespace)
	if err != nil {
		return 0, fmt.Errorf("deleting expired credentials: %w", err)
	}

	return tag.RowsAffected(), nil
}

type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

func upsert(ctx context.Context, db execer, namespace, name, value string, ttl time.Duration) error {
	if _, err := db.Exec(ctx, `INSERT INTO credentials (namespace, name, value, expires_at)
VALUES ($1, $2, $3, now() + $4::double precision * interval '1 millisecond')
	ON CONFLICT (namespace, name)
	DO UPDATE SET (value, expires_at) = (EXCLUDED.value, EXCLUDED.expires_at);`,
		namespace, name, value, float64(ttl.Milliseconds()),
	); err != nil {
		return fmt.Errorf("inserting into credentials: %w", err)
	}

	return nil
}
