package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/docflow/ingest-console/internal/core/domain"
	"github.com/docflow/ingest-console/internal/infrastructure/remote"
)

func TestResolveError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{"echo error", echo.NewHTTPError(http.StatusMethodNotAllowed, "nope"), http.StatusMethodNotAllowed, "nope"},
		{"invalid credentials", &domain.AuthenticationError{Err: domain.ErrInvalidCredentials}, http.StatusUnauthorized, "invalid credentials"},
		{"no access token", &domain.AuthenticationError{Err: domain.ErrNoAccessToken}, http.StatusBadGateway, "access token not received"},
		{"session invalid", &domain.SessionInvalidError{Err: errors.New("boom")}, http.StatusUnauthorized, "session expired, please log in again"},
		{"not authenticated", domain.ErrNotAuthenticated, http.StatusUnauthorized, "not authenticated"},
		{"forbidden backend", &remote.HTTPError{StatusCode: http.StatusForbidden}, http.StatusForbidden, "access forbidden"},
		{"not found", fmt.Errorf("delete: %w", domain.ErrNotFound), http.StatusNotFound, "not found"},
		{"user exists", &remote.HTTPError{StatusCode: http.StatusConflict, Detail: "Username taken"}, http.StatusConflict, "user already exists"},
		{"backend validation", &remote.HTTPError{StatusCode: http.StatusUnprocessableEntity, Detail: "file: field required"}, http.StatusUnprocessableEntity, "file: field required"},
		{"backend 4xx without detail", &remote.HTTPError{StatusCode: http.StatusTeapot}, http.StatusTeapot, http.StatusText(http.StatusTeapot)},
		{"backend 5xx", &remote.HTTPError{StatusCode: http.StatusInternalServerError, Detail: "trace"}, http.StatusBadGateway, "backend unavailable"},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout, "backend timed out"},
		{"unexpected", errors.New("kaboom"), http.StatusInternalServerError, "internal server error"},
	}

	e := echo.New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
			code, msg := resolveError(tt.err, zerolog.Nop(), c)
			if code != tt.wantCode || msg != tt.wantMsg {
				t.Fatalf("expected %d %q, got %d %q", tt.wantCode, tt.wantMsg, code, msg)
			}
		})
	}
}

func TestHTTPErrorHandler_KeepsSessionOnOtherErrors(t *testing.T) {
	session := &fakeSession{authed: true}
	handle := NewHTTPErrorHandler(session, zerolog.Nop())

	e := echo.New()
	rec := httptest.NewRecorder()
	handle(domain.ErrForbidden, e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if !session.IsAuthenticated() {
		t.Fatal("a forbidden response must not sign out")
	}
}
