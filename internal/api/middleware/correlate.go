package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/docflow/ingest-console/internal/infrastructure/remote"
)

// Correlate forwards the console's request id to every backend call the
// handler makes, so both sides log the same X-Request-ID. It must run after
// echo's RequestID middleware.
func Correlate() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := c.Response().Header().Get(echo.HeaderXRequestID)
			if id == "" {
				id = c.Request().Header.Get(echo.HeaderXRequestID)
			}
			if id != "" {
				req := c.Request()
				c.SetRequest(req.WithContext(remote.WithRequestID(req.Context(), id)))
			}
			return next(c)
		}
	}
}
