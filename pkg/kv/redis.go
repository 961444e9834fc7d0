package kv

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	redisclient "github.com/cookbase/cookbase-auth/pkg/clients/redis"
)

// RedisClient is the subset of the platform Redis client that the adapter
// needs. It is satisfied by [*redisclient.Client] and by mocks in tests.
type RedisClient interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) (int64, error)
	Exists(ctx context.Context, keys ...string) (int64, error)
}

// Compile-time assertion that the platform Redis client satisfies
// RedisClient.
var _ RedisClient = (*redisclient.Client)(nil)

// Redis is a [Store] backed by the platform Redis client. It is the
// production implementation: key expiry is enforced server-side, and the
// conditional write maps to SET NX which is atomic across all instances
// sharing the Redis database.
type Redis struct {
	client RedisClient
}

// Compile-time assertion that Redis implements Store.
var _ Store = (*Redis)(nil)

// NewRedis creates a Redis-backed store on top of an established client.
// The adapter does not own the client; the caller remains responsible for
// closing it.
func NewRedis(client RedisClient) *Redis {
	return &Redis{client: client}
}

// Get returns the value stored at key. A missing key yields ok=false with
// a nil error; all other failures are returned as-is from the client.
func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.client.Get(ctx, key)
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	return val, true, nil
}

// Set stores value at key with the given TTL. go-redis treats a zero
// expiration as "no expiry", matching the Store contract.
func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl)
}

// SetNX stores value at key only if the key does not exist.
func (r *Redis) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, key, value, ttl)
}

// Del removes the key. Redis DEL on a missing key is a no-op, so absence
// is not an error.
func (r *Redis) Del(ctx context.Context, key string) error {
	_, err := r.client.Del(ctx, key)
	return err
}

// Exists reports whether the key is present.
func (r *Redis) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, key)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
