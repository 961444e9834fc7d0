package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	cberr "github.com/cookbase/cookbase-auth/pkg/errors"
)

// mockCmdable satisfies Cmdable with testify/mock so the wrapper can be
// exercised without a Redis server.
type mockCmdable struct {
	mock.Mock
}

func (m *mockCmdable) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	args := m.Called(ctx, key, value, expiration)
	return args.Get(0).(*redis.StatusCmd)
}

func (m *mockCmdable) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	args := m.Called(ctx, key, value, expiration)
	return args.Get(0).(*redis.BoolCmd)
}

func (m *mockCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	args := m.Called(ctx, key)
	return args.Get(0).(*redis.StringCmd)
}

func (m *mockCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	args := m.Called(ctx, keys)
	return args.Get(0).(*redis.IntCmd)
}

func (m *mockCmdable) Exists(ctx context.Context, keys ...string) *redis.IntCmd {
	args := m.Called(ctx, keys)
	return args.Get(0).(*redis.IntCmd)
}

func (m *mockCmdable) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	args := m.Called(ctx, key, expiration)
	return args.Get(0).(*redis.BoolCmd)
}

func (m *mockCmdable) TTL(ctx context.Context, key string) *redis.DurationCmd {
	args := m.Called(ctx, key)
	return args.Get(0).(*redis.DurationCmd)
}

func (m *mockCmdable) Ping(ctx context.Context) *redis.StatusCmd {
	args := m.Called(ctx)
	return args.Get(0).(*redis.StatusCmd)
}

func (m *mockCmdable) Close() error {
	args := m.Called()
	return args.Error(0)
}

// Command constructors for mock return values. go-redis commands carry
// either a value or an error, never both.

func newStatusCmd(val string, err error) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(context.Background())
	if err != nil {
		cmd.SetErr(err)
	} else {
		cmd.SetVal(val)
	}
	return cmd
}

func newStringCmd(val string, err error) *redis.StringCmd {
	cmd := redis.NewStringCmd(context.Background())
	if err != nil {
		cmd.SetErr(err)
	} else {
		cmd.SetVal(val)
	}
	return cmd
}

func newIntCmd(val int64, err error) *redis.IntCmd {
	cmd := redis.NewIntCmd(context.Background())
	if err != nil {
		cmd.SetErr(err)
	} else {
		cmd.SetVal(val)
	}
	return cmd
}

func newBoolCmd(val bool, err error) *redis.BoolCmd {
	cmd := redis.NewBoolCmd(context.Background())
	if err != nil {
		cmd.SetErr(err)
	} else {
		cmd.SetVal(val)
	}
	return cmd
}

func newDurationCmd(val time.Duration, err error) *redis.DurationCmd {
	cmd := redis.NewDurationCmd(context.Background(), time.Second)
	if err != nil {
		cmd.SetErr(err)
	} else {
		cmd.SetVal(val)
	}
	return cmd
}

func TestNewFromClient(t *testing.T) {
	t.Parallel()

	t.Run("with config", func(t *testing.T) {
		cfg := &Config{DB: 3}
		client := NewFromClient(new(mockCmdable), cfg)

		assert.NotNil(t, client.cmdable)
		assert.Equal(t, cfg, client.config)
		assert.Equal(t, 3, client.dbIndex)
		assert.NotNil(t, client.tracer)
	})

	t.Run("nil config substitutes zero value", func(t *testing.T) {
		client := NewFromClient(new(mockCmdable), nil)

		require.NotNil(t, client.config)
		assert.Equal(t, 0, client.dbIndex)
	})
}

func TestClientSet(t *testing.T) {
	t.Parallel()
	m := new(mockCmdable)
	m.On("Set", mock.Anything, "keyset:line", mock.Anything, 15*time.Minute).
		Return(newStatusCmd("OK", nil))

	client := NewFromClient(m, &Config{})
	err := client.Set(context.Background(), "keyset:line", `{"keys":[]}`, 15*time.Minute)
	require.NoError(t, err)

	m.AssertExpectations(t)
}

// SetNX is what makes nonce issuance race-free, so both outcomes of the
// race need covering: the winner sees true, the loser false, neither an
// error.
func TestClientSetNX(t *testing.T) {
	t.Parallel()

	t.Run("key absent, write wins", func(t *testing.T) {
		m := new(mockCmdable)
		m.On("SetNX", mock.Anything, "nonce:abc", "pending", 10*time.Minute).
			Return(newBoolCmd(true, nil))

		client := NewFromClient(m, &Config{})
		stored, err := client.SetNX(context.Background(), "nonce:abc", "pending", 10*time.Minute)
		require.NoError(t, err)
		assert.True(t, stored)
		m.AssertExpectations(t)
	})

	t.Run("key taken, write loses without error", func(t *testing.T) {
		m := new(mockCmdable)
		m.On("SetNX", mock.Anything, "nonce:abc", "pending", 10*time.Minute).
			Return(newBoolCmd(false, nil))

		client := NewFromClient(m, &Config{})
		stored, err := client.SetNX(context.Background(), "nonce:abc", "pending", 10*time.Minute)
		require.NoError(t, err)
		assert.False(t, stored)
		m.AssertExpectations(t)
	})
}

func TestClientGet(t *testing.T) {
	t.Parallel()
	m := new(mockCmdable)
	m.On("Get", mock.Anything, "denylist:jti-1").
		Return(newStringCmd("revoked", nil))

	client := NewFromClient(m, &Config{})
	val, err := client.Get(context.Background(), "denylist:jti-1")
	require.NoError(t, err)
	assert.Equal(t, "revoked", val)

	m.AssertExpectations(t)
}

// A missing key must keep redis.Nil in the chain; the kv adapter
// depends on errors.Is(err, redis.Nil) to report absence instead of
// failure.
func TestClientGetMissingKeyPreservesNil(t *testing.T) {
	t.Parallel()
	m := new(mockCmdable)
	m.On("Get", mock.Anything, "nonce:expired").
		Return(newStringCmd("", redis.Nil))

	client := NewFromClient(m, &Config{})
	_, err := client.Get(context.Background(), "nonce:expired")
	require.Error(t, err)
	assert.True(t, errors.Is(err, redis.Nil))

	m.AssertExpectations(t)
}

func TestClientDel(t *testing.T) {
	t.Parallel()
	m := new(mockCmdable)
	m.On("Del", mock.Anything, []string{"nonce:used", "nonce:stale"}).
		Return(newIntCmd(2, nil))

	client := NewFromClient(m, &Config{})
	deleted, err := client.Del(context.Background(), "nonce:used", "nonce:stale")
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	m.AssertExpectations(t)
}

func TestClientExists(t *testing.T) {
	t.Parallel()
	m := new(mockCmdable)
	m.On("Exists", mock.Anything, []string{"denylist:jti-1"}).
		Return(newIntCmd(1, nil))

	client := NewFromClient(m, &Config{})
	count, err := client.Exists(context.Background(), "denylist:jti-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	m.AssertExpectations(t)
}

func TestClientExpire(t *testing.T) {
	t.Parallel()
	m := new(mockCmdable)
	m.On("Expire", mock.Anything, "keyset:line", 30*time.Minute).
		Return(newBoolCmd(true, nil))

	client := NewFromClient(m, &Config{})
	ok, err := client.Expire(context.Background(), "keyset:line", 30*time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	m.AssertExpectations(t)
}

func TestClientTTL(t *testing.T) {
	t.Parallel()
	m := new(mockCmdable)
	m.On("TTL", mock.Anything, "denylist:jti-1").
		Return(newDurationCmd(15*time.Minute, nil))

	client := NewFromClient(m, &Config{})
	ttl, err := client.TTL(context.Background(), "denylist:jti-1")
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, ttl)

	m.AssertExpectations(t)
}

// Deadline expiry comes back as TIMEOUT_001, every other failure as
// INT_001, across all command methods.
func TestClientErrorClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		setup    func(m *mockCmdable)
		call     func(c *Client) error
		wantCode cberr.Code
	}{
		{
			name: "set on read-only replica",
			setup: func(m *mockCmdable) {
				m.On("Set", mock.Anything, "k", "v", time.Duration(0)).
					Return(newStatusCmd("", errors.New("READONLY You can't write against a read only replica")))
			},
			call: func(c *Client) error {
				return c.Set(context.Background(), "k", "v", 0)
			},
			wantCode: cberr.CodeInternalDatabase,
		},
		{
			name: "set deadline exceeded",
			setup: func(m *mockCmdable) {
				m.On("Set", mock.Anything, "k", "v", time.Duration(0)).
					Return(newStatusCmd("", context.DeadlineExceeded))
			},
			call: func(c *Client) error {
				return c.Set(context.Background(), "k", "v", 0)
			},
			wantCode: cberr.CodeTimeoutDatabase,
		},
		{
			name: "setnx while loading dataset",
			setup: func(m *mockCmdable) {
				m.On("SetNX", mock.Anything, "nonce:abc", "pending", time.Duration(0)).
					Return(newBoolCmd(false, errors.New("LOADING Redis is loading the dataset in memory")))
			},
			call: func(c *Client) error {
				_, err := c.SetNX(context.Background(), "nonce:abc", "pending", 0)
				return err
			},
			wantCode: cberr.CodeInternalDatabase,
		},
		{
			name: "get connection reset",
			setup: func(m *mockCmdable) {
				m.On("Get", mock.Anything, "k").
					Return(newStringCmd("", errors.New("connection reset")))
			},
			call: func(c *Client) error {
				_, err := c.Get(context.Background(), "k")
				return err
			},
			wantCode: cberr.CodeInternalDatabase,
		},
		{
			name: "ttl deadline exceeded",
			setup: func(m *mockCmdable) {
				m.On("TTL", mock.Anything, "k").
					Return(newDurationCmd(0, context.DeadlineExceeded))
			},
			call: func(c *Client) error {
				_, err := c.TTL(context.Background(), "k")
				return err
			},
			wantCode: cberr.CodeTimeoutDatabase,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := new(mockCmdable)
			tt.setup(m)

			err := tt.call(NewFromClient(m, &Config{}))
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, cberr.GetCode(err))
			m.AssertExpectations(t)
		})
	}
}

func TestClientHealth(t *testing.T) {
	t.Parallel()

	t.Run("ping succeeds", func(t *testing.T) {
		m := new(mockCmdable)
		m.On("Ping", mock.Anything).Return(newStatusCmd("PONG", nil))

		client := NewFromClient(m, &Config{})
		require.NoError(t, client.Health(context.Background()))
		m.AssertExpectations(t)
	})

	t.Run("ping failure is unavailable", func(t *testing.T) {
		m := new(mockCmdable)
		m.On("Ping", mock.Anything).
			Return(newStatusCmd("", errors.New("connection refused")))

		client := NewFromClient(m, &Config{})
		err := client.Health(context.Background())
		require.Error(t, err)
		assert.True(t, cberr.HasCode(err, cberr.CodeUnavailableDependency))
		m.AssertExpectations(t)
	})
}

func TestClientClose(t *testing.T) {
	t.Parallel()
	m := new(mockCmdable)
	m.On("Close").Return(nil)

	client := NewFromClient(m, nil)
	require.NoError(t, client.Close())

	m.AssertExpectations(t)
}
