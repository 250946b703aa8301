package stores

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/colonyops/resumepilot/internal/core/kv"
	"github.com/colonyops/resumepilot/internal/data/db"
)

// KVStore implements kv.KV on SQLite.
type KVStore struct {
	db  *db.DB
	now func() time.Time
}

var _ kv.KV = (*KVStore)(nil)

// NewKVStore creates a SQLite-backed KV store.
func NewKVStore(database *db.DB) *KVStore {
	return &KVStore{db: database, now: time.Now}
}

// Get decodes the value for key into dest. Expired entries are deleted on
// read and reported as missing.
func (s *KVStore) Get(ctx context.Context, key string, dest any) error {
	row, err := s.live(ctx, key)
	if err != nil {
		return fmt.Errorf("kv get %q: %w", key, err)
	}
	if err := json.Unmarshal(row.Value, dest); err != nil {
		return fmt.Errorf("kv get %q: decode: %w", key, err)
	}
	return nil
}

// Set stores value with no expiry.
func (s *KVStore) Set(ctx context.Context, key string, value any) error {
	return s.set(ctx, key, value, sql.NullInt64{})
}

// SetTTL stores value until ttl elapses.
func (s *KVStore) SetTTL(ctx context.Context, key string, value any, ttl time.Duration) error {
	return s.set(ctx, key, value, sql.NullInt64{Int64: s.now().Add(ttl).UnixNano(), Valid: true})
}

// Delete removes key.
func (s *KVStore) Delete(ctx context.Context, key string) error {
	if err := s.db.KVDelete(ctx, key); err != nil {
		return fmt.Errorf("kv delete %q: %w", key, err)
	}
	return nil
}

// Has reports whether key holds an unexpired value.
func (s *KVStore) Has(ctx context.Context, key string) (bool, error) {
	_, err := s.live(ctx, key)
	switch {
	case err == nil:
		return true, nil
	case kv.IsNotFound(err):
		return false, nil
	default:
		return false, fmt.Errorf("kv has %q: %w", key, err)
	}
}

// ListKeys returns every unexpired key in sorted order.
func (s *KVStore) ListKeys(ctx context.Context) ([]string, error) {
	keys, err := s.db.KVListKeys(ctx, s.now().UnixNano())
	if err != nil {
		return nil, fmt.Errorf("kv list keys: %w", err)
	}
	return keys, nil
}

// SweepExpired deletes every expired entry and returns the count.
func (s *KVStore) SweepExpired(ctx context.Context) (int64, error) {
	n, err := s.db.KVSweepExpired(ctx, s.now().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("kv sweep expired: %w", err)
	}
	return n, nil
}

// CountExpired reports how many expired entries are waiting to be swept.
func (s *KVStore) CountExpired(ctx context.Context) (int64, error) {
	n, err := s.db.KVCountExpired(ctx, s.now().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("kv count expired: %w", err)
	}
	return n, nil
}

func (s *KVStore) live(ctx context.Context, key string) (db.KVRow, error) {
	row, err := s.db.KVGet(ctx, key)
	if err != nil {
		return db.KVRow{}, err
	}
	if row.ExpiresAt.Valid && row.ExpiresAt.Int64 <= s.now().UnixNano() {
		_ = s.db.KVDelete(ctx, key)
		return db.KVRow{}, sql.ErrNoRows
	}
	return row, nil
}

func (s *KVStore) set(ctx context.Context, key string, value any, expiresAt sql.NullInt64) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("kv set %q: encode: %w", key, err)
	}

	now := s.now().UnixNano()
	if err := s.db.KVSet(ctx, db.KVRow{
		Key:       key,
		Value:     data,
		ExpiresAt: expiresAt,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		return fmt.Errorf("kv set %q: %w", key, err)
	}
	return nil
}
