package auth

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"time"
)

// healthCheckTimeout bounds the whole health sweep.
const healthCheckTimeout = 5 * time.Second

// HealthChecker is implemented by the platform database clients.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthHandler returns a handler probing every named dependency. All
// healthy yields 200; any failure yields 503 listing the failing
// components by name only. Failure causes go to the log, not the client.
func HealthHandler(checks map[string]HealthChecker, logger *slog.Logger) http.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		failing := make([]string, 0)
		for name, check := range checks {
			if err := check.Health(ctx); err != nil {
				logger.ErrorContext(ctx, "health check failed",
					"component", name, "error", err)
				failing = append(failing, name)
			}
		}

		if len(failing) > 0 {
			slices.Sort(failing)
			WriteJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status":  "unhealthy",
				"failing": failing,
			})
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
