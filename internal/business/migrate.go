package business

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/XSAM/otelsql"
	"github.com/pressly/goose/v3"
	"github.com/samber/oops"

	// Register pgx driver
	_ "github.com/jackc/pgx/v5/stdlib"

	slogctx "github.com/veqryn/slog-context"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"

	"github.com/passengerlk/owner-session/internal/config"
	migrations "github.com/passengerlk/owner-session/sql"
)

var ErrUnknownMigrationSource = errors.New("unknown migration source")

// MigrateMain applies the credential store migrations, either the embedded
// ones or those found under a file:// source.
func MigrateMain(ctx context.Context, cfg *config.Config) error {
	const dialect = "pgx"
	dbSystemName := semconv.DBSystemNamePostgreSQL

	migrationFS, migrationDir, err := migrationSource(cfg.Migrate.Source)
	if err != nil {
		return err
	}

	connStr, err := config.MakeConnStr(cfg.Database)
	if err != nil {
		return fmt.Errorf("making connection string from config: %w", err)
	}

	db, err := otelsql.Open(dialect, connStr, otelsql.WithAttributes(dbSystemName))
	if err != nil {
		return oops.In("main").Wrapf(err, "opening DB connection")
	}
	defer db.Close()

	reg, err := otelsql.RegisterDBStatsMetrics(db, otelsql.WithAttributes(dbSystemName))
	if err != nil {
		return fmt.Errorf("registering db stats metrics: %w", err)
	}

	defer func() {
		err = reg.Unregister()
		if err != nil {
			slogctx.Error(ctx, "failed to unregister db stats metrics", "error", err)
		}
	}()

	goose.SetBaseFS(migrationFS)

	err = goose.SetDialect(dialect)
	if err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}

	err = goose.UpContext(ctx, db, migrationDir)
	if err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}

	return nil
}

// migrationSource maps the configured source to a goose base FS and
// directory. A nil FS makes goose read from disk.
func migrationSource(source string) (fs.FS, string, error) {
	if source == "" || source == "embedded" {
		return migrations.FS, ".", nil
	}

	dir, ok := strings.CutPrefix(source, "file://")
	if !ok || dir == "" {
		return nil, "", fmt.Errorf("%w: %q", ErrUnknownMigrationSource, source)
	}

	return nil, dir, nil
}
