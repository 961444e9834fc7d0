package minio

import (
	"errors"
	"time"
)

// Defaults assume the in-cluster deployment with MinIO behind a Service
// DNS name. Application-level TLS stays off because the service mesh
// encrypts pod-to-pod traffic; internet-facing deployments set UseSSL.
const (
	DefaultEndpoint = "minio.databases.svc.cluster.local:9000"
	DefaultRegion   = "us-east-1"
	DefaultUseSSL   = false

	// DefaultHealthTimeout bounds Health probes when the caller's context
	// has no deadline of its own.
	DefaultHealthTimeout = 5 * time.Second
)

// maxStatementTruncateLen caps operation text recorded on trace spans.
// Avatar object keys embed provider subjects and must not reach the
// telemetry backend in full.
const maxStatementTruncateLen = 100

// Secret wraps the MinIO secret key so stray logging or serialization
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

// Config describes the MinIO connection for mirrored avatar storage.
// Every field maps to a MINIO_* environment variable via its env tag.
type Config struct {
	// Endpoint is host:port, without a scheme.
	Endpoint  string `json:"endpoint,omitempty" env:"MINIO_ENDPOINT"`
	AccessKey string `json:"access_key,omitempty" env:"MINIO_ACCESS_KEY"`
	SecretKey Secret `json:"-" env:"MINIO_SECRET_KEY"`
	Region    string `json:"region,omitempty" env:"MINIO_REGION"`
	UseSSL    bool   `json:"use_ssl,omitempty" env:"MINIO_USE_SSL"`

	// HealthBucket names the bucket Health probes with BucketExists.
	// When empty a fixed probe name is used; the bucket does not have to
	// exist, the probe only proves the API answers.
	HealthBucket string `json:"health_bucket,omitempty" env:"MINIO_HEALTH_BUCKET"`
}

// DefaultConfig returns the in-cluster defaults. Credentials always come
// from the caller.
func DefaultConfig() *Config {
	return &Config{
		Endpoint: DefaultEndpoint,
		Region:   DefaultRegion,
		UseSSL:   DefaultUseSSL,
	}
}

// Validate rejects configs the SDK cannot connect with and fills the
// region default.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("minio: config endpoint must not be empty")
	}
	if c.AccessKey == "" {
		return errors.New("minio: config access_key must not be empty")
	}
	if c.Region == "" {
		c.Region = DefaultRegion
	}
	return nil
}

// truncateStatement shortens operation text for span attributes.
// Rune-aware so a multi-byte character is never split.
func truncateStatement(s string) string {
	runes := []rune(s)
	if len(runes) <= maxStatementTruncateLen {
		return s
	}
	return string(runes[:maxStatementTruncateLen]) + "..."
}
