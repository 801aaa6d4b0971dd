package cache

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore is an alternative Store backed by a single SQLite database,
// useful when test runs share one cache across many working directories
// and a flat file tree becomes unwieldy. Entries are still keyed by
// working directory, operation, and fingerprint; a hit counter is kept for
// cleanup tooling.
type SQLiteStore struct {
	db  *sql.DB
	cfg SQLiteConfig
}

// SQLiteConfig holds SQLite store configuration. Zero pool settings take
// the defaults applied by NewSQLiteStore.
type SQLiteConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance. Call Init before use.
func NewSQLiteStore(cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// Set defaults
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}

	return &SQLiteStore{cfg: cfg}, nil
}

// Init opens the database, enables WAL mode, and runs migrations.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", s.cfg.Path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	return s.migrate()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// migrate runs the embedded schema migrations.
func (s *SQLiteStore) migrate() error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Get implements Store.
func (s *SQLiteStore) Get(key Key) ([]byte, bool, error) {
	query := `
		SELECT payload FROM cache_entries
		WHERE workdir = ? AND op = ? AND fingerprint = ?
	`

	var payload []byte
	err := s.db.QueryRow(query, key.WorkDir, key.Op, key.Fingerprint).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache entry: %w", err)
	}

	update := `
		UPDATE cache_entries SET hits = hits + 1
		WHERE workdir = ? AND op = ? AND fingerprint = ?
	`
	// Hit accounting is best effort; the payload is already in hand.
	_, _ = s.db.Exec(update, key.WorkDir, key.Op, key.Fingerprint)

	return payload, true, nil
}

// Put implements Store.
func (s *SQLiteStore) Put(key Key, payload []byte) error {
	query := `
		INSERT INTO cache_entries (workdir, op, fingerprint, payload, created_at, hits)
		VALUES (?, ?, ?, ?, ?, 0)
		ON CONFLICT (workdir, op, fingerprint) DO UPDATE SET payload = excluded.payload
	`

	_, err := s.db.Exec(query, key.WorkDir, key.Op, key.Fingerprint, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

// Entries returns the stored (workdir, op, fingerprint) triples, for
// inspection and cleanup tooling.
func (s *SQLiteStore) Entries(ctx context.Context) ([]Key, error) {
	query := `
		SELECT workdir, op, fingerprint FROM cache_entries
		ORDER BY workdir, op, fingerprint
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list cache entries: %w", err)
	}
	defer rows.Close()

	var keys []Key
	for rows.Next() {
		var k Key
		if err := rows.Scan(&k.WorkDir, &k.Op, &k.Fingerprint); err != nil {
			return nil, fmt.Errorf("failed to scan cache entry: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Purge deletes every entry for the given working directory.
func (s *SQLiteStore) Purge(ctx context.Context, workdir string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE workdir = ?`, workdir)
	if err != nil {
		return 0, fmt.Errorf("failed to purge cache entries: %w", err)
	}
	return res.RowsAffected()
}
