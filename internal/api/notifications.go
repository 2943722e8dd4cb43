package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func (c *Controller) initNotificationRoutes() {
	notifications := c.Group.Group("/notifications")
	notifications.POST("/test", c.SendTestNotification)
	notifications.GET("/channels", c.ListChannels)
}

// SendTestNotification pushes a test message through every configured
// channel so operators can verify delivery end to end.
func (c *Controller) SendTestNotification(ctx echo.Context) error {
	if err := c.scheduler.SendTest(ctx.Request().Context()); err != nil {
		return c.HandleError(ctx, err, "failed to send test notification", 0)
	}
	return ctx.JSON(http.StatusOK, map[string]any{
		"ok":       true,
		"channels": c.scheduler.Channels(),
	})
}

// ListChannels returns the names of the configured notification channels.
func (c *Controller) ListChannels(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]any{
		"channels": c.scheduler.Channels(),
	})
}
