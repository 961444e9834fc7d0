// Package minio wraps the MinIO SDK with the cross-cutting concerns
// every Cookbase service wants from its object storage access:
// OpenTelemetry spans on each operation, coded errors that distinguish
// timeouts from real failures, and config that loads from the
// environment.
//
// MinIO holds the avatar images mirrored from identity providers during
// account linking, so profile pictures keep working after a provider
// session ends or a remote URL goes stale.
//
// Construction:
//
//	cfg := minio.DefaultConfig()
//	cfg.AccessKey = os.Getenv("MINIO_ACCESS_KEY")
//	cfg.SecretKey = minio.Secret(os.Getenv("MINIO_SECRET_KEY"))
//	client, err := minio.NewClient(ctx, *cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
// Tests inject a fake through [NewFromStore] instead of dialing.
package minio

import (
	"context"
	"errors"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	cberr "github.com/cookbase/cookbase-auth/pkg/errors"
)

// tracerName identifies this package's instrumentation scope.
const tracerName = "github.com/cookbase/cookbase-auth/pkg/clients/minio"

// healthProbeBucket is the bucket name probed when the config names
// none. It never has to exist; the probe only proves the API answers.
const healthProbeBucket = "health-check-probe"

// ObjectStore is the slice of the minio-go API the avatar mirror needs.
// *minio.Client satisfies it as-is, and the unit tests satisfy it with
// a testify mock.
type ObjectStore interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expires time.Duration, reqParams url.Values) (*url.URL, error)
}

var _ ObjectStore = (*minio.Client)(nil)

// Client wraps an [ObjectStore] with tracing and coded errors. The SDK
// speaks stateless HTTP, so there is no pool to manage and the Client
// is safe for concurrent use.
type Client struct {
	store  ObjectStore
	config *Config
	tracer trace.Tracer
}

// NewClient validates cfg, builds the SDK client, and probes the server
// with BucketExists so unreachable storage or bad credentials surface
// at startup. The probed bucket does not have to exist.
//
// Failures carry [cberr.CodeValidation] for bad config and
// [cberr.CodeUnavailableDependency] when the server cannot be reached.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, cberr.Wrap(err, cberr.CodeValidation,
			"minio: invalid configuration")
	}

	sdk, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey.Value(), ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, cberr.Wrap(err, cberr.CodeInternalDatabase,
			"minio: failed to create client")
	}

	client := &Client{
		store:  sdk,
		config: &cfg,
		tracer: otel.Tracer(tracerName),
	}
	if _, err := sdk.BucketExists(ctx, client.probeBucket()); err != nil {
		return nil, cberr.Wrap(err, cberr.CodeUnavailableDependency,
			"minio: failed to connect to server")
	}
	return client, nil
}

// NewFromStore wraps an existing [ObjectStore], typically a mock in
// tests. cfg may be nil; it is stored unvalidated.
func NewFromStore(store ObjectStore, cfg *Config) *Client {
	if cfg == nil {
		cfg = &Config{}
	}
	return &Client{
		store:  store,
		config: cfg,
		tracer: otel.Tracer(tracerName),
	}
}

// PutObject uploads an object.
func (c *Client) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	ctx, done := c.span(ctx, "PutObject", bucketName, "PUT "+bucketName+"/"+objectName)

	info, err := c.store.PutObject(ctx, bucketName, objectName, reader, objectSize, opts)
	done(err)
	if err != nil {
		return info, wrapError(err, "minio: put object failed")
	}
	return info, nil
}

// GetObject opens an object for reading. The caller owns the returned
// object and must close it.
func (c *Client) GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error) {
	ctx, done := c.span(ctx, "GetObject", bucketName, "GET "+bucketName+"/"+objectName)

	obj, err := c.store.GetObject(ctx, bucketName, objectName, opts)
	done(err)
	if err != nil {
		return nil, wrapError(err, "minio: get object failed")
	}
	return obj, nil
}

// RemoveObject deletes an object.
func (c *Client) RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error {
	ctx, done := c.span(ctx, "RemoveObject", bucketName, "DELETE "+bucketName+"/"+objectName)

	err := c.store.RemoveObject(ctx, bucketName, objectName, opts)
	done(err)
	if err != nil {
		return wrapError(err, "minio: remove object failed")
	}
	return nil
}

// StatObject fetches object metadata without the body.
func (c *Client) StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
	ctx, done := c.span(ctx, "StatObject", bucketName, "STAT "+bucketName+"/"+objectName)

	info, err := c.store.StatObject(ctx, bucketName, objectName, opts)
	done(err)
	if err != nil {
		return info, wrapError(err, "minio: stat object failed")
	}
	return info, nil
}

// BucketExists reports whether a bucket exists.
func (c *Client) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	ctx, done := c.span(ctx, "BucketExists", bucketName, "HEAD "+bucketName)

	exists, err := c.store.BucketExists(ctx, bucketName)
	done(err)
	if err != nil {
		return false, wrapError(err, "minio: bucket exists check failed")
	}
	return exists, nil
}

// MakeBucket creates a bucket.
func (c *Client) MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error {
	ctx, done := c.span(ctx, "MakeBucket", bucketName, "MAKE "+bucketName)

	err := c.store.MakeBucket(ctx, bucketName, opts)
	done(err)
	if err != nil {
		return wrapError(err, "minio: make bucket failed")
	}
	return nil
}

// PresignedGetObject mints a time-limited download URL. The avatar
// mirror hands these to clients so storage credentials never leave the
// service.
func (c *Client) PresignedGetObject(ctx context.Context, bucketName, objectName string, expires time.Duration, reqParams url.Values) (*url.URL, error) {
	ctx, done := c.span(ctx, "PresignedGetObject", bucketName, "PRESIGN GET "+bucketName+"/"+objectName)

	u, err := c.store.PresignedGetObject(ctx, bucketName, objectName, expires, reqParams)
	done(err)
	if err != nil {
		return nil, wrapError(err, "minio: presigned get object failed")
	}
	return u, nil
}

// Health probes the server with BucketExists for readiness probes,
// bounding the call with [DefaultHealthTimeout] when the caller's
// context has no deadline. Failures carry
// [cberr.CodeUnavailableDependency].
func (c *Client) Health(ctx context.Context) error {
	probe := c.probeBucket()
	ctx, done := c.span(ctx, "Health", "", "BucketExists "+probe)

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultHealthTimeout)
		defer cancel()
	}

	_, err := c.store.BucketExists(ctx, probe)
	done(err)
	if err != nil {
		return cberr.Wrap(err, cberr.CodeUnavailableDependency,
			"minio: health check failed")
	}
	return nil
}

// Close exists for symmetry with the database clients; the SDK holds no
// pooled state, so there is nothing to release.
func (c *Client) Close() {}

// Store exposes the underlying store for operations the Client does
// not wrap.
func (c *Client) Store() ObjectStore {
	return c.store
}

func (c *Client) probeBucket() string {
	if c.config.HealthBucket != "" {
		return c.config.HealthBucket
	}
	return healthProbeBucket
}

// span starts a client span carrying the storage attributes. The
// returned done func records the operation's error, sets the span
// status, and ends the span.
func (c *Client) span(ctx context.Context, op, bucketName, statement string) (context.Context, func(error)) {
	ctx, s := c.tracer.Start(ctx, "minio."+op,
		trace.WithSpanKind(trace.SpanKindClient))
	s.SetAttributes(
		attribute.String("db.system", "minio"),
		attribute.String("db.name", bucketName),
		attribute.String("db.statement", truncateStatement(statement)),
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

// wrapError classifies a storage failure. Deadline expiry becomes
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
