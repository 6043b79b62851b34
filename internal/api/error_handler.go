package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/docflow/ingest-console/internal/core/domain"
	"github.com/docflow/ingest-console/internal/core/ports"
	"github.com/docflow/ingest-console/internal/infrastructure/remote"
)

// errorResponse is the canonical error envelope for all API errors.
type errorResponse struct {
	Error string `json:"error"`
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps domain and backend errors to HTTP status codes.
//   - Signs the session out when the backend rejects its credential.
//   - Logs unexpected errors without leaking details to the client.
//   - Renders a consistent JSON envelope: {"error": "<message>"}.
func NewHTTPErrorHandler(session ports.SessionService, log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		if errors.Is(err, domain.ErrUnauthorized) && session.IsAuthenticated() {
			log.Info().Str("path", c.Path()).Msg("backend rejected credential, signing out")
			session.SignOut(c.Request().Context())
		}

		code, msg := resolveError(err, log, c)
		_ = c.JSON(code, errorResponse{Error: msg})
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, string) {
	// Echo's own errors (bind failures, 404 from router, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, fmt.Sprintf("%v", he.Message)
	}

	var authErr *domain.AuthenticationError
	var sessionErr *domain.SessionInvalidError
	switch {
	case errors.As(err, &authErr):
		if errors.Is(err, domain.ErrInvalidCredentials) {
			return http.StatusUnauthorized, "invalid credentials"
		}
		if errors.Is(err, domain.ErrNoAccessToken) {
			return http.StatusBadGateway, "access token not received"
		}
		return http.StatusUnauthorized, "authentication failed"
	case errors.As(err, &sessionErr):
		return http.StatusUnauthorized, "session expired, please log in again"
	case errors.Is(err, domain.ErrNotAuthenticated), errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "not authenticated"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "access forbidden"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, domain.ErrUserExists):
		return http.StatusConflict, "user already exists"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "backend timed out"
	}

	var backendErr *remote.HTTPError
	if errors.As(err, &backendErr) {
		if backendErr.StatusCode >= 400 && backendErr.StatusCode < 500 {
			if backendErr.Detail == "" {
				return backendErr.StatusCode, http.StatusText(backendErr.StatusCode)
			}
			return backendErr.StatusCode, backendErr.Detail
		}
		log.Error().
			Err(err).
			Str("method", c.Request().Method).
			Str("path", c.Path()).
			Msg("backend error")
		return http.StatusBadGateway, "backend unavailable"
	}

	// Unexpected error: log the real cause, return a generic message.
	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, "internal server error"
}
