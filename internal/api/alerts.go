package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/condosec/condowatch/internal/datastore/entities"
	"github.com/condosec/condowatch/internal/datastore/repository"
	"github.com/condosec/condowatch/internal/errors"
	"github.com/condosec/condowatch/internal/logger"
)

const (
	defaultAlertLimit = 100
	maxAlertLimit     = 300

	// nearEventsWindow bounds the context events shown with one alert.
	nearEventsWindow = 600 * time.Second
)

func (c *Controller) initAlertRoutes() {
	alerts := c.Group.Group("/alerts")
	alerts.GET("", c.ListAlerts)
	alerts.GET("/:id", c.GetAlert)
	alerts.POST("/:id/ack", c.AckAlert)

	c.Group.GET("/guestmode", c.GetGuestMode)
	c.Group.POST("/guestmode", c.SetGuestMode)
	c.Group.GET("/summary/daily", c.DailySummary)
	c.Group.GET("/snapshots", c.ListSnapshots)
	c.Group.GET("/snapshots/:id/image", c.SnapshotImage)
}

// ListAlerts returns active alerts by default; scope=history flips to the
// terminal ones. Type, room, q and sort=newest|severity filter both scopes.
func (c *Controller) ListAlerts(ctx echo.Context) error {
	filter := repository.AlertFilter{
		Type:  ctx.QueryParam("type"),
		Room:  ctx.QueryParam("room"),
		Query: ctx.QueryParam("q"),
		Sort:  ctx.QueryParam("sort"),
		Limit: queryLimit(ctx, defaultAlertLimit, maxAlertLimit),
	}

	reqCtx := ctx.Request().Context()
	var (
		alerts []entities.Alert
		err    error
	)
	scope := strings.ToLower(ctx.QueryParam("scope"))
	if scope == "history" {
		alerts, err = c.repos.Alerts.ListHistory(reqCtx, filter)
	} else {
		alerts, err = c.repos.Alerts.ListActive(reqCtx, filter)
	}
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list alerts", http.StatusInternalServerError)
	}

	types, err := c.repos.Alerts.DistinctTypes(reqCtx)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list alerts", http.StatusInternalServerError)
	}
	rooms, err := c.repos.Alerts.DistinctRooms(reqCtx)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list alerts", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"alerts": alerts,
		"count":  len(alerts),
		"types":  types,
		"rooms":  rooms,
	})
}

// GetAlert returns one alert with its evidence snapshots and the events
// recorded around its creation time.
func (c *Controller) GetAlert(ctx echo.Context) error {
	id, err := alertID(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid alert id", http.StatusBadRequest)
	}

	reqCtx := ctx.Request().Context()
	alert, err := c.repos.Alerts.Get(reqCtx, id)
	if err != nil {
		if errors.Is(err, repository.ErrAlertNotFound) {
			return c.HandleError(ctx, err, "Alert not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to get alert", http.StatusInternalServerError)
	}

	snapshots, err := c.repos.Snapshots.ListForAlert(reqCtx, id)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to get alert", http.StatusInternalServerError)
	}

	start := alert.CreatedAt.Add(-nearEventsWindow)
	end := alert.CreatedAt.Add(nearEventsWindow)
	nearEvents, err := c.repos.Events.ListBetween(reqCtx, repository.EventFilter{}, start, end, defaultEventLimit)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to get alert", http.StatusInternalServerError)
	}

	attempts, err := c.repos.Notifications.ListForAlert(reqCtx, id)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to get alert", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"alert":       alert,
		"snapshots":   snapshots,
		"near_events": nearEvents,
		"attempts":    attempts,
		"window": map[string]time.Time{
			"start": start,
			"end":   end,
		},
	})
}

type ackRequest struct {
	Status string `json:"status"`
}

// AckAlert moves an ACTIVE alert to ACK (default) or RESOLVED. The response
// says whether this request performed the transition.
func (c *Controller) AckAlert(ctx echo.Context) error {
	id, err := alertID(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid alert id", http.StatusBadRequest)
	}

	req := ackRequest{Status: entities.StatusAck}
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Malformed ack payload", http.StatusBadRequest)
	}
	target := strings.ToUpper(strings.TrimSpace(req.Status))
	if target == "" {
		target = entities.StatusAck
	}

	changed, err := c.manager.Transition(ctx.Request().Context(), id, target)
	if err != nil {
		if errors.Is(err, repository.ErrAlertNotFound) {
			return c.HandleError(ctx, err, "Alert not found", http.StatusNotFound)
		}
		if errors.IsCategory(err, errors.CategoryValidation) {
			return c.HandleError(ctx, err, err.Error(), http.StatusBadRequest)
		}
		return c.HandleError(ctx, err, "Failed to update alert", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"id":      id,
		"status":  target,
		"changed": changed,
	})
}

// GetGuestMode reports the effective guest switch.
func (c *Controller) GetGuestMode(ctx echo.Context) error {
	guest, err := c.engine.GuestMode(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err, "Failed to read guest mode", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, map[string]bool{"guest_mode": guest})
}

type guestModeRequest struct {
	GuestMode bool `json:"guest_mode"`
}

// SetGuestMode persists the guest switch.
func (c *Controller) SetGuestMode(ctx echo.Context) error {
	var req guestModeRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "Malformed guest mode payload", http.StatusBadRequest)
	}

	value := "0"
	if req.GuestMode {
		value = "1"
	}
	if err := c.repos.Settings.Set(ctx.Request().Context(), entities.SettingGuestMode, value); err != nil {
		return c.HandleError(ctx, err, "Failed to store guest mode", http.StatusInternalServerError)
	}

	c.log.Info("guest mode changed", logger.Bool("guest_mode", req.GuestMode))
	return ctx.JSON(http.StatusOK, map[string]bool{"guest_mode": req.GuestMode})
}

// DailySummary aggregates one UTC day; day defaults to today.
func (c *Controller) DailySummary(ctx echo.Context) error {
	day := time.Now().UTC()
	if raw := ctx.QueryParam("day"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return c.HandleError(ctx, err, "Invalid day, expected YYYY-MM-DD", http.StatusBadRequest)
		}
		day = parsed
	}

	summary, err := c.repos.Summary.ForDay(ctx.Request().Context(), day)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to build summary", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, summary)
}

// ListSnapshots returns snapshot metadata, newest first.
func (c *Controller) ListSnapshots(ctx echo.Context) error {
	filter := repository.SnapshotFilter{
		Type:  ctx.QueryParam("type"),
		Label: ctx.QueryParam("label"),
		Query: ctx.QueryParam("q"),
	}
	snapshots, err := c.repos.Snapshots.List(ctx.Request().Context(), filter,
		queryLimit(ctx, defaultEventLimit, maxEventLimit))
	if err != nil {
		return c.HandleError(ctx, err, "Failed to list snapshots", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"snapshots": snapshots,
		"count":     len(snapshots),
	})
}

// SnapshotImage serves the stored JPEG behind a snapshot row.
func (c *Controller) SnapshotImage(ctx echo.Context) error {
	id, err := alertID(ctx)
	if err != nil {
		return c.HandleError(ctx, err, "Invalid snapshot id", http.StatusBadRequest)
	}

	snapshot, err := c.repos.Snapshots.Get(ctx.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrSnapshotNotFound) {
			return c.HandleError(ctx, err, "Snapshot not found", http.StatusNotFound)
		}
		return c.HandleError(ctx, err, "Failed to get snapshot", http.StatusInternalServerError)
	}

	return ctx.File(c.store.AbsPath(snapshot.FilePath))
}

func alertID(ctx echo.Context) (uint, error) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 32)
	if err != nil {
		return 0, errors.ValidationError("alert id %q is not a number", ctx.Param("id"))
	}
	return uint(id), nil
}
