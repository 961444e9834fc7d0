//go:build integration

// Integration tests for the Redis client, gated behind the integration
// build tag. One container serves the whole suite; test methods isolate
// themselves with unique key prefixes.
//
// Run locally with:
//
//	go test -v -race -tags=integration ./pkg/clients/redis/...
//
// Beyond raw command coverage, the suite exercises the authentication
// session state that rides on this client in production: the nonce
// store, the key-set cache slot, and the token denylist, all through
// the kv.Redis adapter.
package redis_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/cookbase/cookbase-auth/internal/testutil/containers"
	"github.com/cookbase/cookbase-auth/pkg/auth"
	"github.com/cookbase/cookbase-auth/pkg/clients/redis"
	cberr "github.com/cookbase/cookbase-auth/pkg/errors"
	"github.com/cookbase/cookbase-auth/pkg/kv"
)

type RedisIntegrationSuite struct {
	suite.Suite

	ctx         context.Context
	redisResult *containers.RedisResult
	client      *redis.Client

	// store is the kv adapter over client, the surface the auth
	// package sees in production.
	store *kv.Redis

	connString string
}

func (s *RedisIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	result, err := containers.StartRedis(s.ctx)
	require.NoError(s.T(), err, "start Redis container")
	s.redisResult = result
	s.connString = result.ConnString

	cfg := redis.Config{URI: result.ConnString, PoolSize: 10}
	require.NoError(s.T(), cfg.Validate())

	client, err := redis.NewClient(s.ctx, cfg)
	require.NoError(s.T(), err, "connect to container")
	s.client = client
	s.store = kv.NewRedis(client)
}

func (s *RedisIntegrationSuite) TearDownSuite() {
	if s.client != nil {
		_ = s.client.Close()
	}
	if s.redisResult != nil {
		if err := s.redisResult.Container.Terminate(s.ctx); err != nil {
			s.T().Logf("terminate redis container: %v", err)
		}
	}
}

// Skipped in short mode so unit runs stay Docker-free.
func TestRedisIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisIntegrationSuite))
}

func (s *RedisIntegrationSuite) TestHealth() {
	require.NoError(s.T(), s.client.Health(s.ctx))
}

func (s *RedisIntegrationSuite) TestSetAndGet() {
	key := "test:set_get:key1"
	require.NoError(s.T(), s.client.Set(s.ctx, key, "hello", 10*time.Minute))

	val, err := s.client.Get(s.ctx, key)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "hello", val)
}

// Concurrent SetNX calls for one key must observe exactly one winner.
// The nonce store depends on this property.
func (s *RedisIntegrationSuite) TestSetNXSingleWinner() {
	const numWorkers = 10
	key := "test:setnx:winner"

	var wg sync.WaitGroup
	wins := make(chan int, numWorkers)
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			ok, err := s.client.SetNX(s.ctx, key, fmt.Sprintf("worker-%d", n), time.Minute)
			if err == nil && ok {
				wins <- n
			}
		}(i)
	}
	wg.Wait()
	close(wins)

	var winners int
	for range wins {
		winners++
	}
	assert.Equal(s.T(), 1, winners, "exactly one SetNX must win")
}

func (s *RedisIntegrationSuite) TestDelRemovesKey() {
	key := "test:del:key1"
	require.NoError(s.T(), s.client.Set(s.ctx, key, "temp", 10*time.Minute))

	deleted, err := s.client.Del(s.ctx, key)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(1), deleted)

	_, err = s.client.Get(s.ctx, key)
	require.Error(s.T(), err, "Get after Del must fail")
}

func (s *RedisIntegrationSuite) TestExpireAndTTL() {
	key := "test:expire:key1"
	require.NoError(s.T(), s.client.Set(s.ctx, key, "value", 0))

	ok, err := s.client.Expire(s.ctx, key, 30*time.Second)
	require.NoError(s.T(), err)
	assert.True(s.T(), ok)

	ttl, err := s.client.TTL(s.ctx, key)
	require.NoError(s.T(), err)
	assert.True(s.T(), ttl > 0, "TTL should be positive, got %v", ttl)
	assert.True(s.T(), ttl <= 30*time.Second, "TTL should be <= 30s, got %v", ttl)
}

// The adapter translates redis.Nil into the (value, ok, err) shape the
// auth package relies on.
func (s *RedisIntegrationSuite) TestStoreMissingKeyIsNotAnError() {
	_, ok, err := s.store.Get(s.ctx, "test:store:missing")
	require.NoError(s.T(), err)
	assert.False(s.T(), ok)
}

// Server-side expiry flows through the adapter: the key exists inside
// the TTL window and is gone after it.
func (s *RedisIntegrationSuite) TestStoreTTLExpiry() {
	key := "test:store:ttl"
	require.NoError(s.T(), s.store.Set(s.ctx, key, "v", 500*time.Millisecond))

	exists, err := s.store.Exists(s.ctx, key)
	require.NoError(s.T(), err)
	assert.True(s.T(), exists)

	time.Sleep(700 * time.Millisecond)

	exists, err = s.store.Exists(s.ctx, key)
	require.NoError(s.T(), err)
	assert.False(s.T(), exists, "key should expire server-side")
}

// Issue, peek, and clear over a real instance, the exact flow of a
// federated login attempt.
func (s *RedisIntegrationSuite) TestNonceStoreAgainstRealRedis() {
	nonces := auth.NewNonceStore(s.store, time.Minute)

	nonce, err := nonces.Issue(s.ctx, "itest-handle-1")
	require.NoError(s.T(), err)
	require.NotEmpty(s.T(), nonce)

	// A retried issue within the TTL returns the same value.
	again, err := nonces.Issue(s.ctx, "itest-handle-1")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), nonce, again)

	got, ok, err := nonces.Peek(s.ctx, "itest-handle-1")
	require.NoError(s.T(), err)
	require.True(s.T(), ok)
	assert.Equal(s.T(), nonce, got)

	require.NoError(s.T(), nonces.Clear(s.ctx, "itest-handle-1"))
	_, ok, err = nonces.Peek(s.ctx, "itest-handle-1")
	require.NoError(s.T(), err)
	assert.False(s.T(), ok, "cleared nonce must be gone")
}

// A revocation written by one denylist must be visible to another
// backed by the same Redis; horizontally scaled instances depend on it.
func (s *RedisIntegrationSuite) TestDenylistSharedAcrossInstances() {
	writer := auth.NewDenylist(s.store, time.Minute)
	reader := auth.NewDenylist(kv.NewRedis(s.client), time.Minute)

	jti := "itest-jti-1"
	require.NoError(s.T(), writer.Revoke(s.ctx, jti, time.Now().Add(time.Hour)))

	revoked, err := reader.IsRevoked(s.ctx, jti)
	require.NoError(s.T(), err)
	assert.True(s.T(), revoked, "revocation must be visible to all instances")
}

// A real command racing an expired deadline must classify as a timeout.
func (s *RedisIntegrationSuite) TestTimeoutClassification() {
	ctx, cancel := context.WithTimeout(s.ctx, 1*time.Nanosecond)
	defer cancel()
	time.Sleep(1 * time.Millisecond)

	err := s.client.Set(ctx, "test:timeout_class:key1", "value", 0)
	require.Error(s.T(), err)
	assert.True(s.T(), cberr.IsTimeout(err))
}

// This test builds its own client so closing it cannot disturb the
// shared one.
func (s *RedisIntegrationSuite) TestCloseReleasesResources() {
	cfg := redis.Config{URI: s.connString, PoolSize: 5}
	require.NoError(s.T(), cfg.Validate())

	client, err := redis.NewClient(s.ctx, cfg)
	require.NoError(s.T(), err)

	require.NoError(s.T(), client.Health(s.ctx))
	require.NoError(s.T(), client.Close())
	assert.Error(s.T(), client.Health(s.ctx), "Health must fail after Close")
}
