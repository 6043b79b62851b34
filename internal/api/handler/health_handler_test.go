package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestLiveness(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	if err := NewHealthHandler().Liveness(e.NewContext(httptest.NewRequest(http.MethodGet, "/health", nil), rec)); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestReadiness(t *testing.T) {
	tests := []struct {
		name     string
		checks   map[string]CheckFunc
		wantCode int
		wantDeps map[string]string
	}{
		{
			name:     "no checks",
			checks:   nil,
			wantCode: http.StatusOK,
			wantDeps: map[string]string{},
		},
		{
			name: "all healthy",
			checks: map[string]CheckFunc{
				"backend": func(context.Context) error { return nil },
			},
			wantCode: http.StatusOK,
			wantDeps: map[string]string{"backend": "ok"},
		},
		{
			name: "one failing",
			checks: map[string]CheckFunc{
				"backend": func(context.Context) error { return nil },
				"redis":   func(context.Context) error { return errors.New("connection refused") },
			},
			wantCode: http.StatusServiceUnavailable,
			wantDeps: map[string]string{"backend": "ok", "redis": "unhealthy"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			h := NewReadinessHandler(tt.checks)
			if err := h.Readiness(e.NewContext(httptest.NewRequest(http.MethodGet, "/health/ready", nil), rec)); err != nil {
				t.Fatalf("handler error: %v", err)
			}
			if rec.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, rec.Code)
			}

			var resp readinessResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("invalid json: %v", err)
			}
			if len(resp.Dependencies) != len(tt.wantDeps) {
				t.Fatalf("expected %d deps, got %+v", len(tt.wantDeps), resp.Dependencies)
			}
			for name, status := range tt.wantDeps {
				if resp.Dependencies[name].Status != status {
					t.Fatalf("%s: expected %s, got %+v", name, status, resp.Dependencies[name])
				}
			}
		})
	}
}
