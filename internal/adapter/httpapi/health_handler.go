package httpapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Pinger is the slice of the connection pool readiness needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	db Pinger
}

func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

// HandleLiveness reports that the process is up.
func (h *HealthHandler) HandleLiveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// HandleReadiness reports whether the service can reach its store.
func (h *HealthHandler) HandleReadiness(c echo.Context) error {
	if err := h.db.Ping(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
}
