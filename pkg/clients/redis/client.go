package redis

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	cberr "github.com/cookbase/cookbase-auth/pkg/errors"
)

// tracerName identifies this package's instrumentation scope.
const tracerName = "github.com/cookbase/cookbase-auth/pkg/clients/redis"

// Cmdable is the slice of the go-redis API the client needs: the
// commands behind the nonce store, key-set cache, and denylist, plus
// ping and close. *redis.Client satisfies it as-is, and the unit tests
// satisfy it with a fake.
type Cmdable interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	TTL(ctx context.Context, key string) *redis.DurationCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

var _ Cmdable = (*redis.Client)(nil)

// Client wraps a [Cmdable] with tracing and coded errors. Safe for
// concurrent use; one Client per Redis instance, shared across the
// process.
type Client struct {
	cmdable Cmdable
	config  *Config
	tracer  trace.Tracer
	dbIndex int
}

// NewClient validates cfg, dials go-redis, and pings once so a dead
// Redis surfaces at startup rather than on the first login. Failures
// carry [cberr.CodeValidation] for bad config and
// [cberr.CodeUnavailableDependency] when the server cannot be reached.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, cberr.Wrap(err, cberr.CodeValidation,
			"redis: invalid configuration")
	}

	opts, err := buildOptions(&cfg)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, cberr.Wrap(err, cberr.CodeUnavailableDependency,
			"redis: failed to connect to server")
	}

	return &Client{
		cmdable: rdb,
		config:  &cfg,
		tracer:  otel.Tracer(tracerName),
		// For URI connections the database index lives in the parsed
		// options, not in cfg.DB.
		dbIndex: opts.DB,
	}, nil
}

// buildOptions turns a validated Config into go-redis options. URI
// form wins when present; pool sizing and timeouts from the config
// still apply on top of it.
func buildOptions(cfg *Config) (*redis.Options, error) {
	if cfg.URI == "" {
		opts := &redis.Options{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Password:     cfg.Password.Value(),
			DB:           cfg.DB,
			PoolSize:     cfg.PoolSize,
			MinIdleConns: cfg.MinIdleConns,
			MaxRetries:   cfg.MaxRetries,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		}
		if cfg.TLSEnabled {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		return opts, nil
	}

	opts, err := redis.ParseURL(cfg.URI)
	if err != nil {
		return nil, cberr.Wrap(err, cberr.CodeValidation,
			"redis: failed to parse connection URI")
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.MaxRetries = cfg.MaxRetries
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
	return opts, nil
}

// NewFromClient wraps an existing [Cmdable], typically a fake in tests.
// cfg may be nil; it is stored unvalidated.
func NewFromClient(cmdable Cmdable, cfg *Config) *Client {
	if cfg == nil {
		cfg = &Config{}
	}
	return &Client{
		cmdable: cmdable,
		config:  cfg,
		tracer:  otel.Tracer(tracerName),
		dbIndex: cfg.DB,
	}
}

// Set stores a value under key with an optional expiration.
func (c *Client) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	err := c.traced(ctx, "Set", "SET "+key, func(ctx context.Context) error {
		return c.cmdable.Set(ctx, key, value, expiration).Err()
	})
	if err != nil {
		return wrapError(err, "redis: set failed")
	}
	return nil
}

// SetNX stores a value only when the key is absent and reports whether
// this call won. SET NX is atomic on the server, so concurrent callers
// racing for the same key observe exactly one winner. Nonce issuance
// depends on that.
func (c *Client) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	var won bool
	err := c.traced(ctx, "SetNX", "SET "+key+" NX", func(ctx context.Context) error {
		var err error
		won, err = c.cmdable.SetNX(ctx, key, value, expiration).Result()
		return err
	})
	if err != nil {
		return false, wrapError(err, "redis: setnx failed")
	}
	return won, nil
}

// Get returns the value of key. A missing key yields an error wrapping
// [redis.Nil]; the kv adapter translates that into its ok flag.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	var val string
	err := c.traced(ctx, "Get", "GET "+key, func(ctx context.Context) error {
		var err error
		val, err = c.cmdable.Get(ctx, key).Result()
		return err
	})
	if err != nil {
		return "", wrapError(err, "redis: get failed")
	}
	return val, nil
}

// Del removes keys and reports how many existed.
func (c *Client) Del(ctx context.Context, keys ...string) (int64, error) {
	var n int64
	err := c.traced(ctx, "Del", "DEL "+strings.Join(keys, " "), func(ctx context.Context) error {
		var err error
		n, err = c.cmdable.Del(ctx, keys...).Result()
		return err
	})
	if err != nil {
		return 0, wrapError(err, "redis: del failed")
	}
	return n, nil
}

// Exists reports how many of the given keys exist.
func (c *Client) Exists(ctx context.Context, keys ...string) (int64, error) {
	var n int64
	err := c.traced(ctx, "Exists", "EXISTS "+strings.Join(keys, " "), func(ctx context.Context) error {
		var err error
		n, err = c.cmdable.Exists(ctx, keys...).Result()
		return err
	})
	if err != nil {
		return 0, wrapError(err, "redis: exists failed")
	}
	return n, nil
}

// Expire sets an expiration on key and reports whether the key existed.
func (c *Client) Expire(ctx context.Context, key string, expiration time.Duration) (bool, error) {
	var set bool
	err := c.traced(ctx, "Expire", fmt.Sprintf("EXPIRE %s %v", key, expiration), func(ctx context.Context) error {
		var err error
		set, err = c.cmdable.Expire(ctx, key, expiration).Result()
		return err
	})
	if err != nil {
		return false, wrapError(err, "redis: expire failed")
	}
	return set, nil
}

// TTL returns the remaining lifetime of key: -1 when the key has no
// expiration, -2 when the key does not exist.
func (c *Client) TTL(ctx context.Context, key string) (time.Duration, error) {
	var ttl time.Duration
	err := c.traced(ctx, "TTL", "TTL "+key, func(ctx context.Context) error {
		var err error
		ttl, err = c.cmdable.TTL(ctx, key).Result()
		return err
	})
	if err != nil {
		return 0, wrapError(err, "redis: ttl failed")
	}
	return ttl, nil
}

// Health pings Redis for readiness probes, bounding the ping with
// [DefaultHealthTimeout] when the caller's context has no deadline.
// Failures carry [cberr.CodeUnavailableDependency].
func (c *Client) Health(ctx context.Context) error {
	err := c.traced(ctx, "Health", "PING", func(ctx context.Context) error {
		if _, hasDeadline := ctx.Deadline(); !hasDeadline {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, DefaultHealthTimeout)
			defer cancel()
		}
		return c.cmdable.Ping(ctx).Err()
	})
	if err != nil {
		return cberr.Wrap(err, cberr.CodeUnavailableDependency,
			"redis: health check failed")
	}
	return nil
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	return c.cmdable.Close()
}

// traced runs fn inside a client span carrying the Redis semantic
// attributes, recording fn's error on the span before returning it.
func (c *Client) traced(ctx context.Context, op, statement string, fn func(ctx context.Context) error) error {
	ctx, span := c.tracer.Start(ctx, "redis."+op,
		trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	span.SetAttributes(
		attribute.String("db.system", "redis"),
		attribute.Int("db.redis.database_index", c.dbIndex),
		attribute.String("db.statement", truncateStatement(statement)),
	)

	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

// wrapError classifies a Redis failure. Deadline expiry becomes
// [cberr.CodeTimeoutDatabase]; cancellation stays
// [cberr.CodeInternalDatabase], since a caller that abandoned the
// request gains nothing from a retry signal.
func wrapError(err error, message string) *cberr.Error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return cberr.Wrap(err, cberr.CodeTimeoutDatabase, message)
	}
	return cberr.Wrap(err, cberr.CodeInternalDatabase, message)
}
