// Package sqlx stores the progress blob in a SQL table. PostgreSQL, MySQL
// and SQLite are supported; SQLite suits a single device with no server.
package sqlx

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"wastewise/core"
)

// Driver names a supported database/sql driver.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
	DriverSQLite   Driver = "sqlite"
)

// Config holds SQL connection configuration.
type Config struct {
	Driver          Driver
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// Key names the progress row.
	Key string
	// Migrate creates the table on connect.
	Migrate bool
}

// DefaultConfig returns sensible pool settings for driver.
func DefaultConfig(driver Driver) Config {
	cfg := Config{
		Driver:          driver,
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: 30 * time.Minute,
		Key:             core.DefaultProgressKey,
		Migrate:         true,
	}
	switch driver {
	case DriverPostgres:
		cfg.DSN = "postgres://localhost:5432/wastewise?sslmode=disable"
	case DriverMySQL:
		cfg.DSN = "root@tcp(localhost:3306)/wastewise?parseTime=true"
	case DriverSQLite:
		// one writer at a time keeps SQLite from returning SQLITE_BUSY
		cfg.DSN = "file:wastewise.db?_pragma=busy_timeout(5000)"
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
	}
	return cfg
}

// Store implements engine.Storage over the progress_blobs table:
//
//	blob_key   primary key
//	blob_value JSON-encoded UserProgress
//	updated_at time of the last write
type Store struct {
	db     *sqlx.DB
	driver Driver
	key    string
}

// Option configures a Store built with NewWithDB.
type Option func(*Store)

// WithKey stores progress under key instead of core.DefaultProgressKey.
func WithKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// New connects, applies pool settings and optionally migrates.
func New(ctx context.Context, cfg Config) (*Store, error) {
	switch cfg.Driver {
	case DriverPostgres, DriverMySQL, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", cfg.Driver)
	}
	db, err := sqlx.ConnectContext(ctx, string(cfg.Driver), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Driver, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	s := NewWithDB(db, cfg.Driver, WithKey(cfg.Key))
	if cfg.Migrate {
		if err := s.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

// NewWithDB wraps an existing handle (useful for testing).
func NewWithDB(db *sqlx.DB, driver Driver, opts ...Option) *Store {
	s := &Store{db: db, driver: driver, key: core.DefaultProgressKey}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Close closes the database handle.
func (s *Store) Close() error { return s.db.Close() }

// Migrate creates the progress table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	var ddl string
	switch s.driver {
	case DriverPostgres:
		ddl = `CREATE TABLE IF NOT EXISTS progress_blobs (
	blob_key   TEXT PRIMARY KEY,
	blob_value TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`
	case DriverMySQL:
		ddl = `CREATE TABLE IF NOT EXISTS progress_blobs (
	blob_key   VARCHAR(191) PRIMARY KEY,
	blob_value LONGTEXT NOT NULL,
	updated_at DATETIME(6) NOT NULL
)`
	default:
		ddl = `CREATE TABLE IF NOT EXISTS progress_blobs (
	blob_key   TEXT PRIMARY KEY,
	blob_value TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`
	}
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to migrate progress_blobs: %w", err)
	}
	return nil
}

func (s *Store) LoadProgress(ctx context.Context) (core.UserProgress, error) {
	var blob string
	q := s.db.Rebind(`SELECT blob_value FROM progress_blobs WHERE blob_key = ?`)
	if err := s.db.GetContext(ctx, &blob, q, s.key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.UserProgress{}, core.ErrNotFound
		}
		return core.UserProgress{}, fmt.Errorf("failed to load progress: %w", err)
	}
	var p core.UserProgress
	if err := json.Unmarshal([]byte(blob), &p); err != nil {
		return core.UserProgress{}, fmt.Errorf("failed to decode progress: %w", err)
	}
	return p, nil
}

func (s *Store) SaveProgress(ctx context.Context, p core.UserProgress) error {
	blob, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode progress: %w", err)
	}
	var q string
	if s.driver == DriverMySQL {
		q = `INSERT INTO progress_blobs (blob_key, blob_value, updated_at) VALUES (?, ?, ?)
ON DUPLICATE KEY UPDATE blob_value = VALUES(blob_value), updated_at = VALUES(updated_at)`
	} else {
		q = `INSERT INTO progress_blobs (blob_key, blob_value, updated_at) VALUES (?, ?, ?)
ON CONFLICT (blob_key) DO UPDATE SET blob_value = excluded.blob_value, updated_at = excluded.updated_at`
	}
	updated := p.Updated
	if updated.IsZero() {
		updated = time.Now()
	}
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(q), s.key, string(blob), updated.UTC()); err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}
	return nil
}
