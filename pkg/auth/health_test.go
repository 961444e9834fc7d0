package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type healthFunc func(ctx context.Context) error

func (f healthFunc) Health(ctx context.Context) error { return f(ctx) }

func healthy() HealthChecker {
	return healthFunc(func(context.Context) error { return nil })
}

func unhealthy(msg string) HealthChecker {
	return healthFunc(func(context.Context) error { return errors.New(msg) })
}

// ---------------------------------------------------------------------------
// HealthHandler
// ---------------------------------------------------------------------------

func TestHealthHandler_AllHealthy(t *testing.T) {
	t.Parallel()
	handler := HealthHandler(map[string]HealthChecker{
		"postgres": healthy(),
		"redis":    healthy(),
	}, testLogger())

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHealthHandler_Failing(t *testing.T) {
	t.Parallel()
	handler := HealthHandler(map[string]HealthChecker{
		"postgres": healthy(),
		"redis":    unhealthy("connection refused"),
		"minio":    unhealthy("bucket probe timed out"),
	}, testLogger())

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body struct {
		Status  string   `json:"status"`
		Failing []string `json:"failing"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, []string{"minio", "redis"}, body.Failing)
}

// Failure causes stay in the logs; the body names components only.
func TestHealthHandler_CausesNotExposed(t *testing.T) {
	t.Parallel()
	handler := HealthHandler(map[string]HealthChecker{
		"postgres": unhealthy("password authentication failed for user"),
	}, testLogger())

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestHealthHandler_NoChecks(t *testing.T) {
	t.Parallel()
	handler := HealthHandler(nil, testLogger())

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

// The sweep deadline reaches the checkers through the context.
func TestHealthHandler_ContextHasDeadline(t *testing.T) {
	t.Parallel()
	var sawDeadline bool
	handler := HealthHandler(map[string]HealthChecker{
		"postgres": healthFunc(func(ctx context.Context) error {
			_, sawDeadline = ctx.Deadline()
			return nil
		}),
	}, testLogger())

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, sawDeadline)
}
