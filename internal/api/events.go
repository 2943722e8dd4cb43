package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/condosec/condowatch/internal/datastore/repository"
	"github.com/condosec/condowatch/internal/errors"
	"github.com/condosec/condowatch/internal/ingest"
)

const (
	defaultEventLimit = 100
	maxEventLimit     = 500
)

func (c *Controller) initEventRoutes() {
	events := c.Group.Group("/events")
	events.POST("", c.IngestEvent)
	events.GET("", c.ListEvents)
}

// IngestEvent accepts one node report.
func (c *Controller) IngestEvent(ctx echo.Context) error {
	var req ingest.Request
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Malformed event payload", http.StatusBadRequest)
	}

	resp, err := c.ingestSvc.Ingest(ctx.Request().Context(), req)
	if err != nil {
		if errors.IsCategory(err, errors.CategoryValidation) {
			return c.HandleError(ctx, err, err.Error(), http.StatusBadRequest)
		}
		return c.HandleError(ctx, err, "Failed to ingest event", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, resp)
}

// ListEvents returns recent events, newest first.
func (c *Controller) ListEvents(ctx echo.Context) error {
	filter := repository.EventFilter{
		Type:   ctx.QueryParam("type"),
		Source: ctx.QueryParam("source"),
		Query:  ctx.QueryParam("q"),
	}
	limit := queryLimit(ctx, defaultEventLimit, maxEventLimit)

	events, err := c.repos.Events.List(ctx.Request().Context(), filter, limit)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list events", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

func queryLimit(ctx echo.Context, fallback, ceiling int) int {
	raw := ctx.QueryParam("limit")
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return fallback
	}
	return min(limit, ceiling)
}
