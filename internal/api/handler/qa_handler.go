package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/docflow/ingest-console/internal/core/ports"
)

type QAHandler struct {
	remote ports.RemoteService
}

func NewQAHandler(remote ports.RemoteService) *QAHandler {
	return &QAHandler{remote: remote}
}

type askRequest struct {
	Question string `json:"question" validate:"required,max=2000"`
}

// Ask forwards a question about the ingested documents.
//
// @Summary      Ask a question
// @Tags         qa
// @Accept       json
// @Produce      json
// @Param        body  body      askRequest  true  "Question"
// @Success      200   {object}  domain.QAAnswer
// @Failure      400   {object}  map[string]string
// @Router       /qa [post]
func (h *QAHandler) Ask(c echo.Context) error {
	var req askRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	req.Question = strings.TrimSpace(req.Question)
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	answer, err := h.remote.Ask(c.Request().Context(), req.Question)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, answer)
}
