package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/docflow/ingest-console/internal/core/domain"
	"github.com/docflow/ingest-console/internal/core/ports"
)

const (
	// ContextRole holds the role that passed the guard.
	ContextRole = "role"
	// HeaderDenyReason tells API clients why they were redirected.
	HeaderDenyReason = "X-Deny-Reason"
)

// RequireRoles lets a request through only when the session's role is one of
// roles. Any denial, including an unresolved role, is a 303 to the login path.
func RequireRoles(authz ports.Authorizer, log zerolog.Logger, roles ...domain.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			d, err := authz.CanEnter(c.Request().Context(), roles...)
			if err != nil {
				log.Warn().Err(err).Str("path", c.Path()).Msg("role could not be resolved")
			}
			if !d.Allowed {
				c.Response().Header().Set(HeaderDenyReason, string(d.Reason))
				return c.Redirect(http.StatusSeeOther, d.Redirect)
			}
			c.Set(ContextRole, d.Role)
			return next(c)
		}
	}
}

// RoleFrom returns the role stored by RequireRoles.
func RoleFrom(c echo.Context) domain.Role {
	r, _ := c.Get(ContextRole).(domain.Role)
	return r
}
