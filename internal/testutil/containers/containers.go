//go:build integration

// Package containers starts the throwaway backing services the
// integration suites run against: PostgreSQL for account rows, Redis for
// session state, and MinIO for mirrored avatars.
//
// Everything here hides behind the "integration" build tag so the Docker
// machinery stays out of plain unit-test builds. Callers live in test
// files carrying the same tag and own the container lifecycle:
//
//	res, err := containers.StartPostgres(ctx)
//	require.NoError(t, err)
//	defer res.Container.Terminate(ctx)
package containers

import (
	"context"
	"fmt"

	tcminio "github.com/testcontainers/testcontainers-go/modules/minio"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// Images and credentials for the test containers. The credentials are
// throwaway values scoped to a container that dies with the test run.
const (
	postgresImage    = "docker.io/postgres:16-alpine"
	postgresDatabase = "cookbase_test"
	postgresUser     = "testuser"
	postgresPassword = "testpassword"

	redisImage = "docker.io/redis:7-alpine"

	minioImage     = "docker.io/minio/minio:latest"
	minioAccessKey = "minioadmin"
	minioSecretKey = "minioadmin"
)

// PostgresResult is a running PostgreSQL container plus the URI to reach
// it. ConnString carries sslmode=disable since the mapped port speaks
// plaintext on localhost.
type PostgresResult struct {
	Container  *tcpostgres.PostgresContainer
	ConnString string
}

// StartPostgres runs a PostgreSQL 16 container with an empty
// cookbase_test database and waits until it accepts connections. The
// suite feeds ConnString straight into postgres.Config.URI and runs the
// schema migration itself.
func StartPostgres(ctx context.Context) (*PostgresResult, error) {
	ctr, err := tcpostgres.Run(ctx,
		postgresImage,
		tcpostgres.WithDatabase(postgresDatabase),
		tcpostgres.WithUsername(postgresUser),
		tcpostgres.WithPassword(postgresPassword),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		return nil, fmt.Errorf("containers: start postgres: %w", err)
	}

	uri, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = ctr.Terminate(ctx)
		return nil, fmt.Errorf("containers: postgres connection string: %w", err)
	}

	return &PostgresResult{Container: ctr, ConnString: uri}, nil
}

// RedisResult is a running Redis container plus its redis:// URI.
type RedisResult struct {
	Container  *tcredis.RedisContainer
	ConnString string
}

// StartRedis runs an unauthenticated Redis 7 container. The nonce store,
// key-set cache, and denylist suites all share one instance and isolate
// themselves through key prefixes.
func StartRedis(ctx context.Context) (*RedisResult, error) {
	ctr, err := tcredis.Run(ctx, redisImage)
	if err != nil {
		return nil, fmt.Errorf("containers: start redis: %w", err)
	}

	uri, err := ctr.ConnectionString(ctx)
	if err != nil {
		_ = ctr.Terminate(ctx)
		return nil, fmt.Errorf("containers: redis connection string: %w", err)
	}

	return &RedisResult{Container: ctr, ConnString: uri}, nil
}

// MinIOResult is a running MinIO container with the endpoint and root
// credentials the avatar-storage suite connects with.
type MinIOResult struct {
	Container *tcminio.MinioContainer
	Endpoint  string
	AccessKey string
	SecretKey string
}

// StartMinIO runs a MinIO container for S3-compatible object storage.
// Buckets are created per test, so the container starts empty.
func StartMinIO(ctx context.Context) (*MinIOResult, error) {
	ctr, err := tcminio.Run(ctx,
		minioImage,
		tcminio.WithUsername(minioAccessKey),
		tcminio.WithPassword(minioSecretKey),
	)
	if err != nil {
		return nil, fmt.Errorf("containers: start minio: %w", err)
	}

	endpoint, err := ctr.ConnectionString(ctx)
	if err != nil {
		_ = ctr.Terminate(ctx)
		return nil, fmt.Errorf("containers: minio endpoint: %w", err)
	}

	return &MinIOResult{
		Container: ctr,
		Endpoint:  endpoint,
		AccessKey: minioAccessKey,
		SecretKey: minioSecretKey,
	}, nil
}
