package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Health serves liveness and readiness probes
type Health struct {
	environment string
	ping        func(ctx context.Context) error
	logger      *zap.Logger
}

// NewHealthHandler creates a health handler. ping checks the database.
func NewHealthHandler(environment string, ping func(ctx context.Context) error, logger *zap.Logger) *Health {
	return &Health{
		environment: environment,
		ping:        ping,
		logger:      logger,
	}
}

// Live handles GET /health
// @Summary      Liveness probe
// @Tags         Health
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /health [get]
func (h *Health) Live(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"environment": h.environment,
		"time":        time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready handles GET /health/ready
// @Summary      Readiness probe
// @Description  Reports whether the database is reachable
// @Tags         Health
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      503  {object}  map[string]interface{}
// @Router       /health/ready [get]
func (h *Health) Ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	if h.ping != nil {
		if err := h.ping(ctx); err != nil {
			if h.logger != nil {
				h.logger.Warn("⚠️ Readiness check failed", zap.Error(err))
			}
			return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
				"status": "unavailable",
				"db":     err.Error(),
			})
		}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"status": "ready",
		"db":     "ok",
	})
}
