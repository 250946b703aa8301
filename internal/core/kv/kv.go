// Package kv defines the persistent key-value store used for local client
// state.
package kv

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// KV is a persistent key-value store with JSON values. Get on a missing or
// expired key returns an error wrapping sql.ErrNoRows.
type KV interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any) error
	SetTTL(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Has(ctx context.Context, key string) (bool, error)
	ListKeys(ctx context.Context) ([]string, error)
}

// IsNotFound reports whether err means the key is absent.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
