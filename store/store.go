// Package store defines the key-value seam that every stateful authkit component
// persists through.
//
// # Backends
//
//   - [Memory]: process-local map guarded by a mutex, lazy TTL expiry. Default.
//   - [Redis]: go-redis backend for multi-instance deployments. Compound operations
//     (Take, CompareAndSwap, Increment) are atomic server-side.
//
// # Atomicity contract
//
// Every method is atomic with respect to a single key. Take is the primitive behind
// refresh-token rotation, CompareAndSwap behind session touches and Increment behind
// rate limiting. None of them may be emulated with separate read and write
// round-trips.
//
// # What this package must NOT do
//
//   - Interpret stored values (encoding belongs to the owning component).
//   - Import any other authkit package.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key is absent or expired.
var ErrNotFound = errors.New("store: key not found")

// ErrUnavailable wraps backend failures.
var ErrUnavailable = errors.New("store: backend unavailable")

// Counter is the state of a fixed-window counter after an increment.
type Counter struct {
	Count   int64
	ResetAt time.Time
}

// Store is the key-value contract consumed by the session registry, refresh-token
// store and rate limiter.
type Store interface {
	// Get returns the value for key or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key. ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
	// Take atomically reads and deletes key. A second Take of the same key
	// returns ErrNotFound.
	Take(ctx context.Context, key string) ([]byte, error)
	// CompareAndSwap replaces the value at key with value only if the current
	// value equals expected. An absent key never matches. ttl <= 0 means no expiry.
	CompareAndSwap(ctx context.Context, key string, expected, value []byte, ttl time.Duration) (bool, error)
	// Increment adds one to the counter at key. When the key is absent or its
	// window has elapsed, the counter restarts at one with a fresh window.
	Increment(ctx context.Context, key string, window time.Duration) (Counter, error)
	// AddMember adds member to the set at key and extends the set TTL to at
	// least ttl.
	AddMember(ctx context.Context, key, member string, ttl time.Duration) error
	// RemoveMember removes member from the set at key.
	RemoveMember(ctx context.Context, key, member string) error
	// Members lists the set at key. Absent sets are empty.
	Members(ctx context.Context, key string) ([]string, error)
}
