package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/docflow/ingest-console/docs"
	"github.com/docflow/ingest-console/internal/api/handler"
	"github.com/docflow/ingest-console/internal/api/middleware"
	"github.com/docflow/ingest-console/internal/core/domain"
	"github.com/docflow/ingest-console/internal/core/ports"
	"github.com/docflow/ingest-console/internal/core/reconcile"
	"github.com/docflow/ingest-console/internal/core/service"
)

var (
	anyRole    = []domain.Role{domain.RoleAdmin, domain.RoleEditor, domain.RoleViewer}
	editorRole = handler.EditorRoles
	adminRole  = []domain.Role{domain.RoleAdmin}
)

// Deps carries everything the console routes need.
type Deps struct {
	Session ports.SessionService
	Guard   ports.Authorizer
	Remote  ports.RemoteService
	Engine  *reconcile.Engine
	Boards  service.BoardOptions
	// Checks feed the readiness probe.
	Checks map[string]handler.CheckFunc
	// Registry receives the HTTP metrics. Nil means the default registry.
	Registry *prometheus.Registry
	Log      zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Session, d.Log)

	var registerer prometheus.Registerer = prometheus.DefaultRegisterer
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if d.Registry != nil {
		registerer, gatherer = d.Registry, d.Registry
	}

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(middleware.Correlate())
	e.Use(middleware.RequestLogger(d.Log))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  "ingest",
		Subsystem:  "console",
		Registerer: registerer,
	}))

	// --- Dependencies ---
	authHandler := handler.NewAuthHandler(d.Session, d.Remote)
	documentHandler := handler.NewDocumentHandler(d.Remote, d.Guard, d.Engine, d.Boards, d.Log)
	ingestionHandler := handler.NewIngestionHandler(d.Remote, d.Engine, d.Boards, d.Log)
	userHandler := handler.NewUserHandler(d.Remote)
	qaHandler := handler.NewQAHandler(d.Remote)

	forAnyone := middleware.RequireRoles(d.Guard, d.Log, anyRole...)
	forEditors := middleware.RequireRoles(d.Guard, d.Log, editorRole...)
	forAdmins := middleware.RequireRoles(d.Guard, d.Log, adminRole...)

	// --- Auth routes ---
	e.GET(domain.LoginPath, authHandler.LoginRequired)
	e.POST("/auth/login", authHandler.Login)
	e.POST("/auth/logout", authHandler.Logout)
	e.POST("/auth/signup", authHandler.Signup)
	e.GET("/auth/me", authHandler.Me)

	// --- Documents ---
	e.GET("/documents", documentHandler.List, forAnyone)
	e.GET("/documents/watch", documentHandler.Watch, forAnyone)
	e.GET("/documents/:id/download", documentHandler.Download, forAnyone)
	e.POST("/documents", documentHandler.Upload, forEditors)
	e.DELETE("/documents/:id", documentHandler.Delete, forEditors)
	e.POST("/documents/:id/ingest", documentHandler.Ingest, forEditors)

	// --- Ingestion dashboard ---
	e.GET("/ingestion/status", ingestionHandler.Status, forEditors)
	e.GET("/ingestion/watch", ingestionHandler.Watch, forEditors)

	// --- Users ---
	e.GET("/users", userHandler.List, forAdmins)
	e.PUT("/users/:id/role", userHandler.UpdateRole, forAdmins)
	e.DELETE("/users/:id", userHandler.Delete, forAdmins)

	// --- Q&A ---
	e.POST("/qa", qaHandler.Ask, forAnyone)

	// --- Health probes, metrics and docs (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	readinessHandler := handler.NewReadinessHandler(d.Checks)

	e.GET("/health", healthHandler.Liveness)          // liveness  – is the process alive?
	e.GET("/health/ready", readinessHandler.Readiness) // readiness – are dependencies up?
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: gatherer}))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	return e
}
