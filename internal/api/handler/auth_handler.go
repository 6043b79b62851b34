package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/docflow/ingest-console/internal/core/domain"
	"github.com/docflow/ingest-console/internal/core/ports"
)

// Signer creates accounts. The remote facade implements it.
type Signer interface {
	Signup(ctx context.Context, in ports.SignupInput) (*domain.User, error)
}

type AuthHandler struct {
	session ports.SessionService
	signer  Signer
}

func NewAuthHandler(session ports.SessionService, signer Signer) *AuthHandler {
	return &AuthHandler{session: session, signer: signer}
}

type loginRequest struct {
	Username string `json:"username" form:"username" validate:"required"`
	Password string `json:"password" form:"password" validate:"required"`
}

type signupRequest struct {
	Username string `json:"username" validate:"required,min=3"`
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type sessionResponse struct {
	Authenticated bool             `json:"authenticated"`
	TokenType     string           `json:"token_type,omitempty"`
	Identity      *domain.Identity `json:"identity,omitempty"`
}

// Login exchanges credentials for a session.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  sessionResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	tok, err := h.session.Authenticate(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		return err
	}

	// the identity fetch may have failed after a valid exchange
	return c.JSON(http.StatusOK, sessionResponse{
		Authenticated: h.session.IsAuthenticated(),
		TokenType:     tok.TokenType,
		Identity:      h.session.Identity(),
	})
}

// Logout ends the session. It always succeeds.
//
// @Summary      Logout
// @Tags         auth
// @Success      204
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	h.session.SignOut(c.Request().Context())
	return c.NoContent(http.StatusNoContent)
}

// Me reports the current session without waiting for a pending identity.
//
// @Summary      Current session
// @Tags         auth
// @Produce      json
// @Success      200  {object}  sessionResponse
// @Router       /auth/me [get]
func (h *AuthHandler) Me(c echo.Context) error {
	return c.JSON(http.StatusOK, sessionResponse{
		Authenticated: h.session.IsAuthenticated(),
		Identity:      h.session.Identity(),
	})
}

// Signup creates an account on the backend. It does not sign in.
//
// @Summary      Sign up
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      signupRequest  true  "Account details"
// @Success      201   {object}  domain.User
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Router       /auth/signup [post]
func (h *AuthHandler) Signup(c echo.Context) error {
	var req signupRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	user, err := h.signer.Signup(c.Request().Context(), ports.SignupInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, user)
}

// LoginRequired is the redirect target of every denied screen.
//
// @Summary      Login required
// @Tags         auth
// @Produce      json
// @Success      401  {object}  map[string]string
// @Router       /login [get]
func (h *AuthHandler) LoginRequired(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, map[string]string{
		"error": "login required",
		"login": "/auth/login",
	})
}
