package kv

import (
	"context"
	"time"
)

// TypedKV is a KV view restricted to one value type and one key namespace.
type TypedKV[T any] struct {
	store  KV
	prefix string
}

// Scoped returns a TypedKV[T] whose keys are stored as "namespace:key".
func Scoped[T any](store KV, namespace string) *TypedKV[T] {
	return &TypedKV[T]{store: store, prefix: namespace + ":"}
}

// Key returns the full store key for key.
func (t *TypedKV[T]) Key(key string) string { return t.prefix + key }

// Get returns the value for key or an error wrapping sql.ErrNoRows.
func (t *TypedKV[T]) Get(ctx context.Context, key string) (T, error) {
	var v T
	err := t.store.Get(ctx, t.Key(key), &v)
	return v, err
}

// Lookup is Get with absence reported as false instead of an error.
func (t *TypedKV[T]) Lookup(ctx context.Context, key string) (T, bool, error) {
	v, err := t.Get(ctx, key)
	switch {
	case err == nil:
		return v, true, nil
	case IsNotFound(err):
		var zero T
		return zero, false, nil
	default:
		return v, false, err
	}
}

// Set stores value with no expiry.
func (t *TypedKV[T]) Set(ctx context.Context, key string, value T) error {
	return t.store.Set(ctx, t.Key(key), value)
}

// SetTTL stores value until ttl elapses.
func (t *TypedKV[T]) SetTTL(ctx context.Context, key string, value T, ttl time.Duration) error {
	return t.store.SetTTL(ctx, t.Key(key), value, ttl)
}

// Delete removes key.
func (t *TypedKV[T]) Delete(ctx context.Context, key string) error {
	return t.store.Delete(ctx, t.Key(key))
}
