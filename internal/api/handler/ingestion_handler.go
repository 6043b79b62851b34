package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/docflow/ingest-console/internal/core/ports"
	"github.com/docflow/ingest-console/internal/core/reconcile"
	"github.com/docflow/ingest-console/internal/core/service"
)

type IngestionHandler struct {
	remote ports.RemoteService
	engine *reconcile.Engine
	opts   service.BoardOptions
	log    zerolog.Logger
}

func NewIngestionHandler(remote ports.RemoteService, engine *reconcile.Engine, opts service.BoardOptions, log zerolog.Logger) *IngestionHandler {
	return &IngestionHandler{remote: remote, engine: engine, opts: opts, log: log}
}

// Status returns the backend's task map as is.
//
// @Summary      Ingestion status
// @Tags         ingestion
// @Produce      json
// @Success      200  {object}  domain.StatusMap
// @Router       /ingestion/status [get]
func (h *IngestionHandler) Status(c echo.Context) error {
	m, err := h.remote.FetchStatusMap(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, m)
}

// Watch opens the live ingestion dashboard. The socket receives a
// DashboardView on every change.
//
// @Summary      Watch ingestion tasks
// @Tags         ingestion
// @Router       /ingestion/watch [get]
func (h *IngestionHandler) Watch(c echo.Context) error {
	dash := service.NewIngestionDashboard(h.remote, h.engine, h.opts, h.log)
	dash.Activate(c.Request().Context())
	defer dash.Deactivate()

	return serveWatch(c, h.log, dash.View(), nil)
}
