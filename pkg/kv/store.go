// Package kv provides the key-value store adapter backing all durable state.
//
// The service keeps asylum records, message logs, and rate-limit counters in a
// single shared store. The store exposes plain get/set round trips plus an
// optimistic read-modify-write primitive (Update) so concurrent writers to the
// same key cannot silently overwrite each other's contribution.
package kv

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound is returned by Get when the key does not exist.
var ErrKeyNotFound = errors.New("key not found")

// ErrUpdateConflict is returned by Update when the optimistic retries are
// exhausted without a successful conditional write.
var ErrUpdateConflict = errors.New("update conflict: retries exhausted")

// UpdateFunc transforms the current value of a key into its next value.
// found is false when the key does not exist yet (current is then empty).
// Returning an error aborts the update and surfaces the error unchanged.
type UpdateFunc func(current string, found bool) (next string, err error)

// Store is the adapter over the shared key-value store.
type Store interface {
	// Get returns the value for key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set writes value under key unconditionally.
	Set(ctx context.Context, key, value string) error

	// Incr atomically increments the integer counter at key and returns the
	// new value. A missing key counts from zero.
	Incr(ctx context.Context, key string) (int64, error)

	// Expire sets a time-to-live on key.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Keys returns all keys matching a glob pattern (e.g. "asylum:*").
	Keys(ctx context.Context, pattern string) ([]string, error)

	// Update applies fn to the current value of key under optimistic
	// concurrency control: if another writer touches the key between the read
	// and the conditional write, the whole read-apply-write cycle is retried.
	Update(ctx context.Context, key string, fn UpdateFunc) error
}
