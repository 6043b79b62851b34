package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/docflow/ingest-console/internal/core/domain"
)

func TestUserHandler_List_EmptyIsArray(t *testing.T) {
	h := NewUserHandler(&stubRemote{
		listUsers: func(context.Context) ([]domain.User, error) { return nil, nil },
	})

	e := newEcho()
	rec := httptest.NewRecorder()
	if err := h.List(e.NewContext(httptest.NewRequest(http.MethodGet, "/users", nil), rec)); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("expected empty array, got %s", rec.Body.String())
	}
}

func TestUserHandler_UpdateRole(t *testing.T) {
	h := NewUserHandler(&stubRemote{
		updateRole: func(_ context.Context, id domain.EntityID, role domain.Role) (*domain.User, error) {
			if id != "4" || role != domain.RoleEditor {
				t.Fatalf("unexpected args %q %q", id, role)
			}
			return &domain.User{ID: id, Role: role}, nil
		},
	})

	e := newEcho()
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"role":"editor"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("4")

	if err := h.UpdateRole(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestUserHandler_UpdateRole_RejectsUnknownRole(t *testing.T) {
	h := NewUserHandler(&stubRemote{})

	e := newEcho()
	req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"role":"owner"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	_ = h.UpdateRole(e.NewContext(req, rec))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "role must be one of") {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestQAHandler_Ask(t *testing.T) {
	h := NewQAHandler(&stubRemote{
		ask: func(_ context.Context, q string) (*domain.QAAnswer, error) {
			if q != "what is in the report?" {
				t.Fatalf("question not trimmed: %q", q)
			}
			return &domain.QAAnswer{Answer: "numbers"}, nil
		},
	})

	e := newEcho()
	req := httptest.NewRequest(http.MethodPost, "/qa", strings.NewReader(`{"question":"  what is in the report?  "}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	if err := h.Ask(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !strings.Contains(rec.Body.String(), `"answer":"numbers"`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}

func TestQAHandler_Ask_BlankQuestion(t *testing.T) {
	h := NewQAHandler(&stubRemote{})

	e := newEcho()
	req := httptest.NewRequest(http.MethodPost, "/qa", strings.NewReader(`{"question":"   "}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	_ = h.Ask(e.NewContext(req, rec))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
