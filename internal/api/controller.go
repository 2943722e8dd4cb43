// Package api exposes the monitoring core over HTTP: event ingestion, alert
// inspection and acknowledgement, live camera frames, node health and the
// metrics endpoint.
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/condosec/condowatch/internal/alerting"
	"github.com/condosec/condowatch/internal/capture"
	"github.com/condosec/condowatch/internal/conf"
	"github.com/condosec/condowatch/internal/datastore/repository"
	"github.com/condosec/condowatch/internal/errors"
	"github.com/condosec/condowatch/internal/fusion"
	"github.com/condosec/condowatch/internal/ingest"
	"github.com/condosec/condowatch/internal/logger"
	"github.com/condosec/condowatch/internal/notification"
	"github.com/condosec/condowatch/internal/observability"
	"github.com/condosec/condowatch/internal/vision"
)

// Repositories groups the read/write stores the API serves from.
type Repositories struct {
	Events        repository.EventRepository
	Alerts        repository.AlertRepository
	Snapshots     repository.SnapshotRepository
	Nodes         repository.NodeRepository
	Notifications repository.NotificationRepository
	Settings      repository.SettingsRepository
	Summary       repository.SummaryRepository
}

// Controller owns the route handlers. One instance serves the whole API.
type Controller struct {
	Echo     *echo.Echo
	Group    *echo.Group
	Settings *conf.Settings

	repos     Repositories
	ingestSvc *ingest.Service
	manager   *alerting.Manager
	engine    *fusion.Engine
	pool      *capture.Pool
	store     *vision.SnapshotStore
	scheduler *notification.Scheduler
	metrics   *observability.Metrics
	log       logger.Logger
}

// New wires the controller and registers every route under /api/v1.
func New(
	e *echo.Echo,
	settings *conf.Settings,
	repos Repositories,
	ingestSvc *ingest.Service,
	manager *alerting.Manager,
	engine *fusion.Engine,
	pool *capture.Pool,
	store *vision.SnapshotStore,
	scheduler *notification.Scheduler,
	metrics *observability.Metrics,
	log logger.Logger,
) *Controller {
	c := &Controller{
		Echo:      e,
		Settings:  settings,
		repos:     repos,
		ingestSvc: ingestSvc,
		manager:   manager,
		engine:    engine,
		pool:      pool,
		store:     store,
		scheduler: scheduler,
		metrics:   metrics,
		log:       log.With(logger.String("component", "api")),
	}

	e.Use(middleware.Recover())
	c.Group = e.Group("/api/v1")

	c.initEventRoutes()
	c.initAlertRoutes()
	c.initCameraRoutes()
	c.initHealthRoutes()
	c.initNotificationRoutes()

	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	return c
}

// HandleError logs the cause and returns a uniform JSON error body. The
// status is derived from the error category unless the caller pins one.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, status int) error {
	if status == 0 {
		status = http.StatusInternalServerError
		switch {
		case errors.IsCategory(err, errors.CategoryValidation):
			status = http.StatusBadRequest
		case errors.Is(err, repository.ErrAlertNotFound),
			errors.Is(err, repository.ErrSnapshotNotFound):
			status = http.StatusNotFound
		}
	}
	if status >= http.StatusInternalServerError {
		c.log.Error(message, logger.Error(err))
	}
	return ctx.JSON(status, map[string]string{"error": message})
}
