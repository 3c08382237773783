package httpapi

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
)

// RouterConfig carries the handlers and cross-cutting settings the
// router wires together.
type RouterConfig struct {
	Runs        *RunHandler
	Config      *ConfigHandler
	Health      *HealthHandler
	Logger      *slog.Logger
	ServiceName string
	OTelEnabled bool
}

// NewRouter builds the echo instance with middleware and all routes
// registered.
func NewRouter(rc RouterConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	if rc.OTelEnabled {
		e.Use(otelecho.Middleware(rc.ServiceName))
	}

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogError:    true,
		LogMethod:   true,
		LogLatency:  true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			rctx := c.Request().Context()
			if v.Error == nil {
				rc.Logger.InfoContext(rctx, "request_completed",
					slog.String("method", v.Method),
					slog.String("uri", v.URI),
					slog.Int("status", v.Status),
					slog.Int64("latency_ms", v.Latency.Milliseconds()))
			} else {
				rc.Logger.ErrorContext(rctx, "request_failed",
					slog.String("method", v.Method),
					slog.String("uri", v.URI),
					slog.Int("status", v.Status),
					slog.Int64("latency_ms", v.Latency.Milliseconds()),
					slog.String("error", v.Error.Error()))
			}
			return nil
		},
	}))
	e.Use(middleware.Recover())

	e.GET("/healthz", rc.Health.HandleLiveness)
	e.GET("/readyz", rc.Health.HandleReadiness)

	v1 := e.Group("/v1")
	v1.POST("/runs", rc.Runs.HandleStart)
	v1.GET("/runs/:id", rc.Runs.HandleGet)
	v1.GET("/runs/:id/report", rc.Runs.HandleReport)
	v1.GET("/config", rc.Config.Handle)

	return e
}
