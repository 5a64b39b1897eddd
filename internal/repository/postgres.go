package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"timelock-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgSchemaVersion is the current version of the PostgreSQL schema
const pgSchemaVersion = 1

var pgSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS partnerships (
		id TEXT PRIMARY KEY,
		user_a TEXT NOT NULL REFERENCES users(id),
		user_b TEXT NOT NULL REFERENCES users(id),
		status TEXT NOT NULL CHECK (status IN ('pending', 'accepted')),
		relationship_date DATE NULL,
		current_streak INTEGER NOT NULL DEFAULT 0 CHECK (current_streak >= 0),
		last_streak_date DATE NULL,
		created_at TIMESTAMPTZ NOT NULL,
		CHECK (user_a <> user_b)
	)`,
	`CREATE TABLE IF NOT EXISTS partnership_members (
		user_id TEXT PRIMARY KEY REFERENCES users(id),
		partnership_id TEXT NOT NULL REFERENCES partnerships(id) ON DELETE CASCADE
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		sender TEXT NOT NULL REFERENCES users(id),
		receiver TEXT NOT NULL REFERENCES users(id),
		content TEXT NOT NULL,
		unlock_date DATE NOT NULL,
		opened BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_partnerships_user_b_status ON partnerships(user_b, status)`,
	`CREATE INDEX IF NOT EXISTS idx_partnerships_user_a_status ON partnerships(user_a, status)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_receiver_unlock ON messages(receiver, unlock_date)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_pair_created ON messages(sender, receiver, created_at)`,
}

// pgQuerier is satisfied by both *pgxpool.Pool and pgx.Tx
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore is a Store backed by PostgreSQL
type PostgresStore struct {
	pool *pgxpool.Pool
	q    pgQuerier
	inTx bool
}

// NewPostgresStore creates a store on top of an existing pool
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, q: pool}
}

// OpenPostgres connects to PostgreSQL, checks the connection and applies migrations
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := NewPostgresStore(pool)
	if err := store.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// Migrate ensures the schema exists and is at the current version
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY)`); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	var current int
	if err := s.pool.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if current >= pgSchemaVersion {
		return nil
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, stmt := range pgSchema {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("failed to apply schema: %w", err)
			}
		}
		if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, pgSchemaVersion); err != nil {
			return fmt.Errorf("failed to record schema version: %w", err)
		}
		return nil
	})
}

// Users returns the user repository
func (s *PostgresStore) Users() UserRepository {
	return &pgUserRepository{q: s.q}
}

// Partnerships returns the partnership repository
func (s *PostgresStore) Partnerships() PartnershipRepository {
	return &pgPartnershipRepository{store: s}
}

// Messages returns the message repository
func (s *PostgresStore) Messages() MessageRepository {
	return &pgMessageRepository{q: s.q}
}

// InTx runs fn inside a single PostgreSQL transaction
func (s *PostgresStore) InTx(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return models.Unavailable(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&PostgresStore{pool: s.pool, q: tx, inTx: true}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return models.Unavailable(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

// Ping checks the database connection
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return models.Unavailable(err)
	}
	return nil
}

// Close closes the pool
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// pgError translates a pgx error into a domain error
func pgError(op string, err error, notFound error) error {
	if errors.Is(err, pgx.ErrNoRows) && notFound != nil {
		return notFound
	}
	return models.Unavailable(fmt.Errorf("failed to %s: %w", op, err))
}

// isUniqueViolation reports whether err is a PostgreSQL unique constraint violation
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// isForeignKeyViolation reports whether err is a PostgreSQL foreign key violation
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

func dateArg(d *models.Date) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func dateFromTime(t *time.Time) *models.Date {
	if t == nil {
		return nil
	}
	d := models.DateOf(t.UTC())
	return &d
}
