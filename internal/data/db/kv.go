package db

import (
	"context"
	"database/sql"
)

// KVRow is one row of kv_store. Timestamps are Unix nanoseconds.
type KVRow struct {
	Key       string
	Value     []byte
	ExpiresAt sql.NullInt64
	CreatedAt int64
	UpdatedAt int64
}

// KVGet returns the row for key or sql.ErrNoRows.
func (db *DB) KVGet(ctx context.Context, key string) (KVRow, error) {
	var row KVRow
	err := db.conn.QueryRowContext(ctx,
		"SELECT key, value, expires_at, created_at, updated_at FROM kv_store WHERE key = ?", key,
	).Scan(&row.Key, &row.Value, &row.ExpiresAt, &row.CreatedAt, &row.UpdatedAt)
	return row, err
}

// KVSet inserts or replaces a row, keeping the original created_at.
func (db *DB) KVSet(ctx context.Context, row KVRow) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO kv_store (key, value, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			value      = excluded.value,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at`,
		row.Key, row.Value, row.ExpiresAt, row.CreatedAt, row.UpdatedAt,
	)
	return err
}

// KVDelete removes key. Deleting a missing key is not an error.
func (db *DB) KVDelete(ctx context.Context, key string) error {
	_, err := db.conn.ExecContext(ctx, "DELETE FROM kv_store WHERE key = ?", key)
	return err
}

// KVListKeys returns the keys that have not expired at now, sorted.
func (db *DB) KVListKeys(ctx context.Context, now int64) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		"SELECT key FROM kv_store WHERE expires_at IS NULL OR expires_at > ? ORDER BY key", now,
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// KVSweepExpired deletes rows that expired before now and returns how many.
func (db *DB) KVSweepExpired(ctx context.Context, now int64) (int64, error) {
	res, err := db.conn.ExecContext(ctx,
		"DELETE FROM kv_store WHERE expires_at IS NOT NULL AND expires_at <= ?", now,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// KVCountExpired counts rows that expired before now without removing them.
func (db *DB) KVCountExpired(ctx context.Context, now int64) (int64, error) {
	var n int64
	err := db.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM kv_store WHERE expires_at IS NOT NULL AND expires_at <= ?", now,
	).Scan(&n)
	return n, err
}
