// Package repotest opens stores for tests.
package repotest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"timelock-backend/internal/repository"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresDSNEnv names the variable holding the DSN of a PostgreSQL server
// tests may use. Tests that need it are skipped when it is unset.
const PostgresDSNEnv = "TIMELOCK_TEST_PG_DSN"

// SQLite opens a migrated SQLite store in a temporary directory
func SQLite(t testing.TB) *repository.SQLiteStore {
	t.Helper()
	store, err := repository.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "timelock.db"))
	if err != nil {
		t.Fatalf("open sqlite store: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

// Postgres opens a migrated PostgreSQL store whose tables live in schema and
// start empty. Each test package should use its own schema since packages
// run in parallel.
func Postgres(t testing.TB, schema string) *repository.PostgresStore {
	t.Helper()
	dsn := os.Getenv(PostgresDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", PostgresDSNEnv)
	}
	ctx := context.Background()

	admin, err := pgx.Connect(ctx, dsn)
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}
	_, err = admin.Exec(ctx, `CREATE SCHEMA IF NOT EXISTS `+pgx.Identifier{schema}.Sanitize())
	_ = admin.Close(ctx)
	if err != nil {
		t.Fatalf("create schema %s: %v", schema, err)
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		t.Fatalf("parse dsn: %v", err)
	}
	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}

	store := repository.NewPostgresStore(pool)
	t.Cleanup(store.Close)
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := pool.Exec(ctx, `TRUNCATE messages, partnership_members, partnerships, users CASCADE`); err != nil {
		t.Fatalf("reset tables: %v", err)
	}
	return store
}
