package middleware

import (
	"github.com/labstack/echo/v4"
)

// securityHeaders are set on every response. Proxied bodies carry account
// and order data, so nothing may be cached by intermediaries.
var securityHeaders = map[string]string{
	"X-Content-Type-Options": "nosniff",
	"X-Frame-Options":        "DENY",
	"Cache-Control":          "no-store",
	"Referrer-Policy":        "no-referrer",
}

// SecurityHeaders returns an Echo middleware that adds security headers to responses.
// Headers are set before the handler runs so they survive handlers that
// commit the response themselves.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			for k, v := range securityHeaders {
				h.Set(k, v)
			}
			return next(c)
		}
	}
}
