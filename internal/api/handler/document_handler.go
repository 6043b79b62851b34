package handler

import (
	"context"
	"fmt"
	"net/http"
	"path"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/docflow/ingest-console/internal/core/domain"
	"github.com/docflow/ingest-console/internal/core/ports"
	"github.com/docflow/ingest-console/internal/core/reconcile"
	"github.com/docflow/ingest-console/internal/core/service"
)

// EditorRoles may change documents and start ingestion.
var EditorRoles = []domain.Role{domain.RoleAdmin, domain.RoleEditor}

type DocumentHandler struct {
	remote ports.RemoteService
	authz  ports.Authorizer
	engine *reconcile.Engine
	opts   service.BoardOptions
	log    zerolog.Logger
}

func NewDocumentHandler(remote ports.RemoteService, authz ports.Authorizer, engine *reconcile.Engine, opts service.BoardOptions, log zerolog.Logger) *DocumentHandler {
	return &DocumentHandler{remote: remote, authz: authz, engine: engine, opts: opts, log: log}
}

// List returns the documents with their current ingestion status.
//
// @Summary      List documents
// @Tags         documents
// @Produce      json
// @Success      200  {array}   domain.Document
// @Failure      303  {string}  string  "login required"
// @Failure      502  {object}  map[string]string
// @Router       /documents [get]
func (h *DocumentHandler) List(c echo.Context) error {
	ctx := c.Request().Context()
	docs, err := h.remote.FetchDocuments(ctx)
	if err != nil {
		return err
	}
	for i := range docs {
		docs[i].Status = domain.StatusAbsent
	}
	if len(docs) == 0 {
		return c.JSON(http.StatusOK, []domain.Document{})
	}

	statuses, err := h.remote.FetchStatusMap(ctx)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, domain.MergeStatuses(docs, statuses))
}

// Upload stores a new document.
//
// @Summary      Upload a document
// @Tags         documents
// @Accept       multipart/form-data
// @Produce      json
// @Param        file  formData  file  true  "Document"
// @Success      201   {object}  domain.Document
// @Failure      400   {object}  map[string]string
// @Router       /documents [post]
func (h *DocumentHandler) Upload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "file is required"})
	}
	f, err := fh.Open()
	if err != nil {
		return fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	doc, err := h.remote.UploadDocument(c.Request().Context(), path.Base(fh.Filename), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, doc)
}

// Delete removes a document.
//
// @Summary      Delete a document
// @Tags         documents
// @Param        id   path  string  true  "Document ID"
// @Success      204
// @Failure      404  {object}  map[string]string
// @Router       /documents/{id} [delete]
func (h *DocumentHandler) Delete(c echo.Context) error {
	if err := h.remote.DeleteDocument(c.Request().Context(), domain.EntityID(c.Param("id"))); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Ingest starts ingestion of a document.
//
// @Summary      Trigger ingestion
// @Tags         documents
// @Produce      json
// @Param        id   path      string  true  "Document ID"
// @Success      202  {object}  map[string]string
// @Router       /documents/{id}/ingest [post]
func (h *DocumentHandler) Ingest(c echo.Context) error {
	id := domain.EntityID(c.Param("id"))
	if err := h.remote.TriggerIngestion(c.Request().Context(), id); err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, map[string]string{
		"id":     id.String(),
		"status": string(domain.StatusPending),
	})
}

// Download streams a document body.
//
// @Summary      Download a document
// @Tags         documents
// @Produce      application/octet-stream
// @Param        id        path   string  true   "Document ID"
// @Param        filename  query  string  false  "Suggested file name"
// @Success      200
// @Router       /documents/{id}/download [get]
func (h *DocumentHandler) Download(c echo.Context) error {
	id := domain.EntityID(c.Param("id"))
	body, err := h.remote.DownloadDocument(c.Request().Context(), id)
	if err != nil {
		return err
	}
	defer body.Close()

	name := path.Base(c.QueryParam("filename"))
	if name == "." || name == "/" {
		name = id.String()
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.Stream(http.StatusOK, echo.MIMEOctetStream, body)
}

// Watch opens the live document list. The socket receives a DocumentView on
// every change and accepts {"action": "ingest"|"delete"|"refresh", "id": ...}.
//
// @Summary      Watch documents
// @Tags         documents
// @Router       /documents/watch [get]
func (h *DocumentHandler) Watch(c echo.Context) error {
	ctx := c.Request().Context()
	board := service.NewDocumentBoard(h.remote, h.engine, h.opts, h.log)
	if err := board.Activate(ctx); err != nil {
		return err
	}
	defer board.Deactivate()

	return serveWatch(c, h.log, board.View(), func(ctx context.Context, cmd watchCommand) error {
		switch cmd.Action {
		case "refresh":
			return board.Load(ctx)
		case "ingest", "delete":
			if err := h.requireEditor(ctx); err != nil {
				return err
			}
			if cmd.Action == "ingest" {
				return board.TriggerIngestion(ctx, domain.EntityID(cmd.ID))
			}
			return board.Delete(ctx, domain.EntityID(cmd.ID))
		default:
			return fmt.Errorf("unknown action %q", cmd.Action)
		}
	})
}

func (h *DocumentHandler) requireEditor(ctx context.Context) error {
	d, err := h.authz.CanEnter(ctx, EditorRoles...)
	if err != nil {
		return err
	}
	if !d.Allowed {
		return domain.ErrForbidden
	}
	return nil
}
