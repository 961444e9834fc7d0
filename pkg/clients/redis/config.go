// Package redis wraps go-redis with the cross-cutting concerns every
// Cookbase service wants from its Redis access: OpenTelemetry spans on
// each command, coded errors that distinguish timeouts from outages, and
// config that loads from the environment.
//
// Redis holds the short-lived authentication state that horizontally
// scaled auth instances must agree on: login nonces, the cached provider
// key set, and the revoked-token denylist. Those components reach Redis
// through the kv.Store adapter in pkg/kv rather than this package
// directly.
//
// Construction:
//
//	cfg := redis.DefaultConfig()
//	cfg.Password = redis.Secret("my-password")
//	client, err := redis.NewClient(ctx, *cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
// Tests inject a fake through [NewFromClient] instead of dialing.
package redis

import (
	"fmt"
	"net/url"
	"time"
)

// Defaults assume the in-cluster deployment with Redis behind a Service
// DNS name. Three retries absorb transient connection drops without
// masking a real outage.
const (
	DefaultHost = "redis.databases.svc.cluster.local"
	DefaultPort = 6379
	DefaultDB   = 0

	DefaultPoolSize     = 25
	DefaultMinIdleConns = 5
	DefaultMaxRetries   = 3

	DefaultDialTimeout  = 10 * time.Second
	DefaultReadTimeout  = 5 * time.Second
	DefaultWriteTimeout = 5 * time.Second

	// DefaultHealthTimeout bounds Health pings when the caller's context
	// has no deadline of its own.
	DefaultHealthTimeout = 5 * time.Second
)

// maxStatementTruncateLen caps command text recorded on trace spans.
// Nonce values and token ids ride in Redis arguments and must not reach
// the telemetry backend in full.
const maxStatementTruncateLen = 100

// Secret wraps the Redis password so stray logging or serialization
// shows a placeholder instead of the credential. [Secret.Value] is the
// only way to read the real string.
type Secret string

const redacted = "[REDACTED]"

func (s Secret) String() string   { return redacted }
func (s Secret) GoString() string { return redacted }

// Value returns the underlying secret. Do not log or persist it.
func (s Secret) Value() string { return string(s) }

// MarshalText keeps the secret out of JSON and YAML output.
func (s Secret) MarshalText() ([]byte, error) {
	return []byte(redacted), nil
}

// Config describes the Redis connection. Either set URI as a full
// redis:// or rediss:// connection string, or fill in the structured
// fields; a non-empty URI wins. Every field maps to a REDIS_*
// environment variable via its env tag.
type Config struct {
	// URI accepts redis:// and rediss:// (TLS) connection strings.
	URI string `json:"uri,omitempty" env:"REDIS_URI"`

	Host     string `json:"host,omitempty" env:"REDIS_HOST"`
	Port     int    `json:"port,omitempty" env:"REDIS_PORT"`
	DB       int    `json:"db" env:"REDIS_DB"`
	Password Secret `json:"-" env:"REDIS_PASSWORD"`

	PoolSize     int `json:"pool_size,omitempty" env:"REDIS_POOL_SIZE"`
	MinIdleConns int `json:"min_idle_conns,omitempty" env:"REDIS_MIN_IDLE_CONNS"`

	// MaxRetries of -1 disables command retries entirely.
	MaxRetries int `json:"max_retries,omitempty" env:"REDIS_MAX_RETRIES"`

	DialTimeout  time.Duration `json:"dial_timeout,omitempty" env:"REDIS_DIAL_TIMEOUT"`
	ReadTimeout  time.Duration `json:"read_timeout,omitempty" env:"REDIS_READ_TIMEOUT"`
	WriteTimeout time.Duration `json:"write_timeout,omitempty" env:"REDIS_WRITE_TIMEOUT"`

	// TLSEnabled forces TLS for structured configs. A rediss:// URI
	// enables TLS on its own.
	TLSEnabled bool `json:"tls_enabled,omitempty" env:"REDIS_TLS_ENABLED"`
}

// DefaultConfig returns the in-cluster defaults. Override what differs
// and pass the result to [NewClient].
func DefaultConfig() *Config {
	return &Config{
		Host:         DefaultHost,
		Port:         DefaultPort,
		DB:           DefaultDB,
		PoolSize:     DefaultPoolSize,
		MinIdleConns: DefaultMinIdleConns,
		MaxRetries:   DefaultMaxRetries,
		DialTimeout:  DefaultDialTimeout,
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	}
}

// Validate fills zero-valued pool and timeout settings with defaults and
// rejects configurations the client cannot be built from. With a URI set
// only the URI itself is checked.
func (c *Config) Validate() error {
	if c.PoolSize == 0 {
		c.PoolSize = DefaultPoolSize
	}
	if c.MinIdleConns == 0 {
		c.MinIdleConns = DefaultMinIdleConns
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}

	if c.URI != "" {
		u, err := url.Parse(c.URI)
		if err != nil {
			return fmt.Errorf("redis: config URI is invalid: %w", err)
		}
		if u.Scheme != "redis" && u.Scheme != "rediss" {
			return fmt.Errorf("redis: config URI scheme must be redis:// or rediss://, got %q", u.Scheme)
		}
		return nil
	}

	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("redis: config port must be between 1 and 65535, got %d", c.Port)
	}
	if c.PoolSize < 1 {
		return fmt.Errorf("redis: config pool_size must be >= 1, got %d", c.PoolSize)
	}
	if c.MinIdleConns < 0 {
		return fmt.Errorf("redis: config min_idle_conns must be >= 0, got %d", c.MinIdleConns)
	}
	if c.PoolSize < c.MinIdleConns {
		return fmt.Errorf("redis: config pool_size (%d) must be >= min_idle_conns (%d)", c.PoolSize, c.MinIdleConns)
	}
	if c.DialTimeout < 0 {
		return fmt.Errorf("redis: config dial_timeout must not be negative, got %v", c.DialTimeout)
	}
	if c.ReadTimeout < 0 {
		return fmt.Errorf("redis: config read_timeout must not be negative, got %v", c.ReadTimeout)
	}
	if c.WriteTimeout < 0 {
		return fmt.Errorf("redis: config write_timeout must not be negative, got %v", c.WriteTimeout)
	}
	return nil
}

// truncateStatement shortens command text for span attributes. Rune-aware
// so a multi-byte character is never split.
func truncateStatement(s string) string {
	runes := []rune(s)
	if len(runes) <= maxStatementTruncateLen {
		return s
	}
	return string(runes[:maxStatementTruncateLen]) + "..."
}
