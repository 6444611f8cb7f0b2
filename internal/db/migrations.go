package db

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/aliuyar1234/cartshare/migrations"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// migrationLockKey serialises concurrent migration runs across processes.
const migrationLockKey = 7_346_110_213

// RunMigrations applies all pending migrations from the embedded schema and
// returns the versions it applied.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) ([]string, error) {
	return runMigrations(ctx, pool, migrations.FS)
}

func runMigrations(ctx context.Context, pool *pgxpool.Pool, files fs.FS) ([]string, error) {
	log.Info().Msg("Running database migrations...")

	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	versions, err := migrationFiles(files)
	if err != nil {
		return nil, fmt.Errorf("failed to read migration files: %w", err)
	}

	var applied []string
	for _, version := range versions {
		ok, err := applyMigration(ctx, pool, files, version)
		if err != nil {
			return applied, fmt.Errorf("failed to apply migration %s: %w", version, err)
		}
		if ok {
			applied = append(applied, version)
		}
	}

	log.Info().Int("applied", len(applied)).Msg("Migrations complete")
	return applied, nil
}

func migrationFiles(files fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(files, ".")
	if err != nil {
		return nil, err
	}

	var versions []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			versions = append(versions, entry.Name())
		}
	}
	sort.Strings(versions)
	return versions, nil
}

// applyMigration runs one file and records it in the same transaction.
// It reports false when the version was already applied.
func applyMigration(ctx context.Context, pool *pgxpool.Pool, files fs.FS, version string) (bool, error) {
	content, err := fs.ReadFile(files, version)
	if err != nil {
		return false, err
	}

	var applied bool
	err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", migrationLockKey); err != nil {
			return err
		}

		var exists bool
		if err := tx.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)", version).Scan(&exists); err != nil {
			return err
		}
		if exists {
			log.Debug().Str("migration", version).Msg("Migration already applied, skipping")
			return nil
		}

		log.Info().Str("migration", version).Msg("Applying migration")
		// No arguments: pgx uses the simple protocol, which accepts multiple statements.
		if _, err := tx.Exec(ctx, string(content)); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", version); err != nil {
			return err
		}
		applied = true
		return nil
	})
	return applied, err
}
