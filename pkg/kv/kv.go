// Package kv defines the key-value capability shared by the nonce store,
// the remote key-set cache, and the token denylist. All three need the same
// small contract: string values, per-key TTLs, and a conditional write.
//
// Production deployments back the interface with Redis (see [NewRedis]) so
// that horizontally scaled instances agree on nonces, keys, and revocation.
// Tests and single-node development use [Memory].
package kv

import (
	"context"
	"time"
)

// Store is an injectable key-value capability with per-key TTLs.
//
// Implementations must be safe for concurrent use by multiple goroutines;
// the denylist and key-set cache are hit by every authenticated request.
type Store interface {
	// Get returns the value stored at key. The boolean reports whether the
	// key exists; a missing key is not an error.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value at key. A positive ttl expires the key after the
	// given duration; a zero ttl stores the key without expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// SetNX stores value at key only if the key does not already exist.
	// Returns true if the value was stored, false if the key was taken.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Del removes the key. Deleting a missing key is not an error.
	Del(ctx context.Context, key string) error

	// Exists reports whether the key is present and unexpired.
	Exists(ctx context.Context, key string) (bool, error)
}
