package handler

import (
	"github.com/labstack/echo/v4"

	"alpaca-proxy-go/internal/config"
)

// RegisterRoutes wires all route handlers onto the Echo instance.
func RegisterRoutes(e *echo.Echo, cfg *config.Config, proxy *ProxyHandler, health *HealthHandler) {
	e.GET("/healthz", health.Healthz)
	e.GET("/status", health.Status)

	prefix := cfg.Server.MountPrefix
	e.Any(prefix, proxy.Handle)
	e.Any(prefix+"/*", proxy.Handle)
}
