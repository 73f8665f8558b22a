package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"alpaca-proxy-go/internal/config"
)

// CORS returns an Echo middleware that sets the CORS headers on every
// response and answers OPTIONS preflights with an empty 200 before any
// other handler runs.
func CORS(cfg config.CORSConfig) echo.MiddlewareFunc {
	methods := strings.Join(cfg.AllowMethods, ", ")
	headers := strings.Join(cfg.AllowHeaders, ", ")

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set(echo.HeaderAccessControlAllowOrigin, "*")
			h.Set(echo.HeaderAccessControlAllowMethods, methods)
			h.Set(echo.HeaderAccessControlAllowHeaders, headers)

			if c.Request().Method == http.MethodOptions {
				return c.NoContent(http.StatusOK)
			}
			return next(c)
		}
	}
}
