// Package postgres wraps pgxpool with the cross-cutting concerns every
// Cookbase service wants from its database access: OpenTelemetry spans
// on each operation, coded errors that distinguish timeouts from real
// failures, and config that loads from the environment.
//
// PostgreSQL holds the durable identity state: local user accounts and
// the external identity links maintained by the account package. The
// pool replaces broken connections on its own, so callers never retry
// at the connection level.
//
// Construction:
//
//	cfg := postgres.DefaultConfig()
//	cfg.Password = postgres.Secret(os.Getenv("POSTGRES_PASSWORD"))
//	client, err := postgres.NewClient(ctx, *cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
// Tests inject a pgxmock pool through [NewFromPool] instead of dialing.
package postgres

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	cberr "github.com/cookbase/cookbase-auth/pkg/errors"
)

// tracerName identifies this package's instrumentation scope.
const tracerName = "github.com/cookbase/cookbase-auth/pkg/clients/postgres"

// Pool is the slice of the pgxpool API the client needs. *pgxpool.Pool
// satisfies it as-is, and so does pgxmock, which is what makes the
// account store unit tests possible without a database.
type Pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

var _ Pool = (*pgxpool.Pool)(nil)

// Client is the pooled PostgreSQL client. Safe for concurrent use; one
// Client per database, shared across the process.
type Client struct {
	pool         Pool
	config       *Config
	tracer       trace.Tracer
	databaseName string
}

// NewClient validates cfg, builds the connection pool (with custom TLS
// when a CA bundle is configured), and pings once so a dead database
// surfaces at startup rather than on the first request.
//
// Failures carry [cberr.CodeValidation] for bad config,
// [cberr.CodeInternalConfiguration] for TLS setup, and
// [cberr.CodeUnavailableDependency] when the database cannot be reached.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, cberr.Wrap(err, cberr.CodeValidation,
			"postgres: invalid configuration")
	}

	poolCfg, err := poolConfig(&cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, cberr.Wrap(err, cberr.CodeUnavailableDependency,
			"postgres: failed to create connection pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, cberr.Wrap(err, cberr.CodeUnavailableDependency,
			"postgres: failed to connect to database")
	}

	return &Client{
		pool:         pool,
		config:       &cfg,
		tracer:       otel.Tracer(tracerName),
		databaseName: databaseName(&cfg),
	}, nil
}

// poolConfig turns a validated Config into pgxpool configuration,
// layering pool sizing and TLS over the parsed connection string.
func poolConfig(cfg *Config) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, cberr.Wrap(err, cberr.CodeValidation,
			"postgres: failed to parse connection string")
	}

	pc.MaxConns = cfg.MaxConns
	pc.MinConns = cfg.MinConns
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.HealthCheckPeriod = cfg.HealthCheckPeriod

	tlsCfg, err := cfg.tlsConfig()
	if err != nil {
		return nil, cberr.Wrap(err, cberr.CodeInternalConfiguration,
			"postgres: failed to configure TLS")
	}
	if tlsCfg != nil {
		pc.ConnConfig.TLSConfig = tlsCfg
	}
	return pc, nil
}

// databaseName resolves the name used for the db.name span attribute,
// which hides in the URI path for URI-form configs.
func databaseName(cfg *Config) string {
	if cfg.URI == "" {
		return cfg.Database
	}
	u, err := url.Parse(cfg.URI)
	if err != nil {
		return cfg.Database
	}
	return strings.TrimPrefix(u.Path, "/")
}

// NewFromPool wraps an existing [Pool], typically a pgxmock pool in
// tests. cfg may be nil; it is stored unvalidated.
func NewFromPool(pool Pool, cfg *Config) *Client {
	if cfg == nil {
		cfg = &Config{}
	}
	return &Client{
		pool:         pool,
		config:       cfg,
		tracer:       otel.Tracer(tracerName),
		databaseName: cfg.Database,
	}
}

// Query runs a row-returning statement. The caller owns the returned
// rows and must close them. Row-level errors surface during iteration,
// after the span has ended.
func (c *Client) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	ctx, done := c.span(ctx, "Query", sql)

	rows, err := c.pool.Query(ctx, sql, args...)
	done(err)
	if err != nil {
		return nil, wrapError(err, "postgres: query failed")
	}
	return rows, nil
}

// QueryRow runs a statement expected to return at most one row. pgx
// defers errors to Scan, so the span covers only the dispatch; check
// for pgx.ErrNoRows at the scan site.
func (c *Client) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	ctx, done := c.span(ctx, "QueryRow", sql)
	defer done(nil)

	return c.pool.QueryRow(ctx, sql, args...)
}

// Exec runs a statement that returns no rows and reports the command
// tag.
func (c *Client) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	ctx, done := c.span(ctx, "Exec", sql)

	tag, err := c.pool.Exec(ctx, sql, args...)
	done(err)
	if err != nil {
		return tag, wrapError(err, "postgres: exec failed")
	}
	return tag, nil
}

// Begin opens a transaction. Defer tx.Rollback(ctx) right away; pgx
// treats rollback of a committed transaction as a no-op.
func (c *Client) Begin(ctx context.Context) (pgx.Tx, error) {
	ctx, done := c.span(ctx, "Begin", "BEGIN")

	tx, err := c.pool.Begin(ctx)
	done(err)
	if err != nil {
		return nil, wrapError(err, "postgres: begin transaction failed")
	}
	return tx, nil
}

// Health pings the database for readiness probes, bounding the ping
// with [DefaultHealthTimeout] when the caller's context has no deadline.
// Failures carry [cberr.CodeUnavailableDependency].
func (c *Client) Health(ctx context.Context) error {
	ctx, done := c.span(ctx, "Health", "SELECT 1")

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultHealthTimeout)
		defer cancel()
	}

	err := c.pool.Ping(ctx)
	done(err)
	if err != nil {
		return cberr.Wrap(err, cberr.CodeUnavailableDependency,
			"postgres: health check failed")
	}
	return nil
}

// Close releases the pool after in-flight queries finish. Safe to call
// more than once.
func (c *Client) Close() {
	c.pool.Close()
}

// Pool exposes the underlying pool for operations the Client does not
// wrap, such as CopyFrom or SendBatch. Close the Client, not the pool.
func (c *Client) Pool() Pool {
	return c.pool
}

// span starts a client span carrying the PostgreSQL semantic
// attributes. The returned done func records the operation's error,
// sets the span status, and ends the span.
func (c *Client) span(ctx context.Context, op, sql string) (context.Context, func(error)) {
	ctx, s := c.tracer.Start(ctx, "postgres."+op,
		trace.WithSpanKind(trace.SpanKindClient))
	s.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.name", c.databaseName),
		attribute.String("db.statement", truncateSQL(sql)),
	)
	return ctx, func(err error) {
		if err != nil {
			s.RecordError(err)
			s.SetStatus(codes.Error, err.Error())
		} else {
			s.SetStatus(codes.Ok, "")
		}
		s.End()
	}
}

// wrapError classifies a database failure: context expiry becomes
// [cberr.CodeTimeoutDatabase] so callers can separate slow from broken,
// everything else is [cberr.CodeInternalDatabase].
func wrapError(err error, message string) *cberr.Error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return cberr.Wrap(err, cberr.CodeTimeoutDatabase, message)
	}
	return cberr.Wrap(err, cberr.CodeInternalDatabase, message)
}
