package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/deppfellow/ontology-api/internal/middleware"
	"github.com/deppfellow/ontology-api/internal/server"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

const defaultHealthCheckTimeout = 5 * time.Second

// HealthHandler serves GET /status for load balancers and uptime monitors.
// It probes the database and, when configured, Redis.
type HealthHandler struct {
	Handler
}

func NewHealthHandler(s *server.Server) *HealthHandler {
	return &HealthHandler{
		Handler: NewHandler(s),
	}
}

// checkDependency runs probe with the configured timeout and records its
// outcome in checks. It reports whether the dependency is healthy.
func (h *HealthHandler) checkDependency(
	logger zerolog.Logger,
	checks map[string]interface{},
	name string,
	probe func(ctx context.Context) error,
) bool {
	timeout := h.server.Config.Observability.HealthChecks.Timeout
	if timeout <= 0 {
		timeout = defaultHealthCheckTimeout
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	err := probe(ctx)
	elapsed := time.Since(start)

	if err != nil {
		checks[name] = map[string]interface{}{
			"status":        "unhealthy",
			"response_time": elapsed.String(),
			"error":         err.Error(),
		}

		logger.Error().
			Err(err).
			Dur("response_time", elapsed).
			Msgf("%s health check failed", name)

		if app := h.server.LoggerService.GetApplication(); app != nil {
			app.RecordCustomEvent("HealthCheckError", map[string]interface{}{
				"check_type":       name,
				"operation":        "health_check",
				"error_type":       name + "_unhealthy",
				"response_time_ms": elapsed.Milliseconds(),
				"error_message":    err.Error(),
			})
		}
		return false
	}

	checks[name] = map[string]interface{}{
		"status":        "healthy",
		"response_time": elapsed.String(),
	}

	logger.Debug().
		Dur("response_time", elapsed).
		Msgf("%s health check passed", name)
	return true
}

// CheckHealth returns the overall status, the environment and the result of
// every dependency check: 200 when all pass, 503 otherwise.
func (h *HealthHandler) CheckHealth(c echo.Context) error {
	start := time.Now()

	logger := middleware.GetLogger(c).With().
		Str("operation", "health_check").
		Logger()

	checks := make(map[string]interface{})
	response := map[string]interface{}{
		"status":      "healthy",
		"timestamp":   time.Now().UTC(),
		"environment": h.server.Config.Primary.Env,
		"checks":      checks,
	}

	isHealthy := true
	obs := h.server.Config.Observability

	if obs.HealthCheckEnabled("database") {
		// DB connection metrics and traces are captured by the nrpgx5 tracer.
		isHealthy = h.checkDependency(logger, checks, "database", h.server.DB.Ping) && isHealthy
	}

	if h.server.Redis != nil && obs.HealthCheckEnabled("redis") {
		isHealthy = h.checkDependency(logger, checks, "redis", func(ctx context.Context) error {
			return h.server.Redis.Ping(ctx).Err()
		}) && isHealthy
	}

	if !isHealthy {
		response["status"] = "unhealthy"

		logger.Warn().
			Dur("total_duration", time.Since(start)).
			Msg("health check failed")

		return c.JSON(http.StatusServiceUnavailable, response)
	}

	if err := c.JSON(http.StatusOK, response); err != nil {
		logger.Error().Err(err).Msg("failed to write JSON response")
		return fmt.Errorf("failed to write JSON response: %w", err)
	}

	return nil
}
