package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"timelock-backend/internal/models"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// sqliteSchemaVersion is the current version of the SQLite schema
const sqliteSchemaVersion = 1

// sqliteTimeLayout is fixed width so that stored timestamps sort lexically
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS partnerships (
		id TEXT PRIMARY KEY,
		user_a TEXT NOT NULL REFERENCES users(id),
		user_b TEXT NOT NULL REFERENCES users(id),
		status TEXT NOT NULL CHECK (status IN ('pending', 'accepted')),
		relationship_date TEXT NULL,
		current_streak INTEGER NOT NULL DEFAULT 0 CHECK (current_streak >= 0),
		last_streak_date TEXT NULL,
		created_at TEXT NOT NULL,
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
		unlock_date TEXT NOT NULL,
		opened INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_partnerships_user_b_status ON partnerships(user_b, status)`,
	`CREATE INDEX IF NOT EXISTS idx_partnerships_user_a_status ON partnerships(user_a, status)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_receiver_unlock ON messages(receiver, unlock_date)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_pair_created ON messages(sender, receiver, created_at)`,
}

// sqlQuerier is satisfied by both *sql.DB and *sql.Tx
type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStore is a Store backed by a local SQLite file. It keeps a single
// connection open, so transactions are serialized.
type SQLiteStore struct {
	db   *sql.DB
	q    sqlQuerier
	inTx bool
}

// OpenSQLite opens (or creates) a SQLite database at path and applies migrations
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("open sqlite: empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("open sqlite: create db dir: %w", err)
	}

	dsn := "file:" + path + "?mode=rwc&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open sqlite: ping: %w", err)
	}

	store := &SQLiteStore{db: db, q: db}
	if err := store.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Migrate ensures the schema exists and is at the current version
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version INTEGER PRIMARY KEY)`); err != nil {
		return fmt.Errorf("migrate: create schema_migrations: %w", err)
	}

	var current int
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("migrate: read current version: %w", err)
	}
	if current >= sqliteSchemaVersion {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migrate: begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range sqliteSchema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: apply schema: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, sqliteSchemaVersion); err != nil {
		return fmt.Errorf("migrate: record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migrate: commit transaction: %w", err)
	}
	return nil
}

// Users returns the user repository
func (s *SQLiteStore) Users() UserRepository {
	return &sqliteUserRepository{q: s.q}
}

// Partnerships returns the partnership repository
func (s *SQLiteStore) Partnerships() PartnershipRepository {
	return &sqlitePartnershipRepository{store: s}
}

// Messages returns the message repository
func (s *SQLiteStore) Messages() MessageRepository {
	return &sqliteMessageRepository{q: s.q}
}

// InTx runs fn inside a single SQLite transaction
func (s *SQLiteStore) InTx(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Unavailable(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&SQLiteStore{db: s.db, q: tx, inTx: true}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return models.Unavailable(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

// Ping checks the database connection
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return models.Unavailable(err)
	}
	return nil
}

// Close closes the database
func (s *SQLiteStore) Close() {
	_ = s.db.Close()
}

// errCorruptValue marks a stored value that cannot be decoded. sqliteError
// reports it as an internal error, not as Unavailable.
var errCorruptValue = errors.New("corrupt stored value")

// sqliteError translates a database/sql error into a domain error
func sqliteError(op string, err error, notFound error) error {
	if errors.Is(err, sql.ErrNoRows) && notFound != nil {
		return notFound
	}
	if errors.Is(err, errCorruptValue) {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	return models.Unavailable(fmt.Errorf("failed to %s: %w", op, err))
}

func sqliteCode(err error) int {
	var e *sqlite.Error
	if errors.As(err, &e) {
		return e.Code()
	}
	return 0
}

func isSQLiteUniqueViolation(err error) bool {
	code := sqliteCode(err)
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

func isSQLiteForeignKeyViolation(err error) bool {
	return sqliteCode(err) == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY
}

func formatSQLiteTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseSQLiteTime(s string) (time.Time, error) {
	t, err := time.Parse(sqliteTimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: timestamp %q: %w", errCorruptValue, s, err)
	}
	return t, nil
}

func nullDateArg(d *models.Date) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func parseNullDate(s sql.NullString) (*models.Date, error) {
	if !s.Valid {
		return nil, nil
	}
	d, err := parseSQLiteDate(s.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func parseSQLiteDate(s string) (models.Date, error) {
	d, err := models.ParseDate(s)
	if err != nil {
		return models.Date{}, fmt.Errorf("%w: date %q: %w", errCorruptValue, s, err)
	}
	return d, nil
}
