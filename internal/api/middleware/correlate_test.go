package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/docflow/ingest-console/internal/infrastructure/remote"
)

func TestCorrelate_ForwardsRequestID(t *testing.T) {
	var backendID string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		backendID = r.Header.Get("X-Request-ID")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer backend.Close()
	client := remote.NewClient(remote.Config{BaseURL: backend.URL}, staticToken("t"), zerolog.Nop())

	e := echo.New()
	e.Use(echomiddleware.RequestID())
	e.Use(Correlate())
	e.GET("/", func(c echo.Context) error {
		if _, err := client.FetchStatusMap(c.Request().Context()); err != nil {
			return err
		}
		return c.NoContent(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderXRequestID, "corr-1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if backendID != "corr-1" {
		t.Fatalf("expected backend to see corr-1, got %q", backendID)
	}
}

type staticToken string

func (s staticToken) Token() (*oauth2.Token, error) {
	return &oauth2.Token{AccessToken: string(s), TokenType: "Bearer"}, nil
}
