// Package db opens the local SQLite database that backs the key-value store.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v5"
	_ "modernc.org/sqlite"
)

// FileName is the database file created inside the data directory.
const FileName = "resumepilot.db"

// OpenOptions tunes the connection pool.
type OpenOptions struct {
	BusyTimeout  time.Duration
	MaxOpenConns int
	MaxIdleConns int
	PingTries    uint
}

// DefaultOpenOptions returns the options used by the CLI.
func DefaultOpenOptions() OpenOptions {
	return OpenOptions{
		BusyTimeout:  5 * time.Second,
		MaxOpenConns: 4,
		MaxIdleConns: 2,
		PingTries:    5,
	}
}

// DB wraps the SQLite connection pool.
type DB struct {
	conn *sql.DB
}

// Open opens (creating if needed) the database in dataDir and applies any
// pending migrations.
func Open(dataDir string, opts OpenOptions) (*DB, error) {
	path := filepath.Join(dataDir, FileName)
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)", path, opts.BusyTimeout.Milliseconds())

	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	conn.SetMaxOpenConns(opts.MaxOpenConns)
	conn.SetMaxIdleConns(opts.MaxIdleConns)

	ctx := context.Background()
	db := &DB{conn: conn}

	if err := db.ping(ctx, opts.PingTries); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := migrateUp(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return db, nil
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn exposes the underlying pool.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

func (db *DB) ping(ctx context.Context, tries uint) error {
	if tries == 0 {
		tries = 1
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, db.conn.PingContext(ctx)
	}, backoff.WithBackOff(b), backoff.WithMaxTries(tries))
	return err
}

// Integrity runs SQLite's quick_check and returns an error describing the
// first problem it reports.
func (db *DB) Integrity(ctx context.Context) error {
	var result string
	if err := db.conn.QueryRowContext(ctx, "PRAGMA quick_check").Scan(&result); err != nil {
		return fmt.Errorf("quick check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("quick check: %s", result)
	}
	return nil
}
