package api

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// streamBoundary separates frames in the multipart stream.
const streamBoundary = "frame"

func (c *Controller) initCameraRoutes() {
	cameras := c.Group.Group("/cameras")
	cameras.GET("/:role/frame", c.CameraFrame)
	cameras.GET("/:role/stream", c.CameraStream)
}

// CameraFrame returns the freshest JPEG for a role, or 503 while the worker
// has not yet captured one.
func (c *Controller) CameraFrame(ctx echo.Context) error {
	role := ctx.Param("role")
	data, ts, ok := c.pool.LatestFrame(role)
	if !ok {
		return ctx.JSON(http.StatusServiceUnavailable, map[string]string{
			"error": "camera unavailable",
			"role":  role,
		})
	}
	ctx.Response().Header().Set("X-Frame-Time", ts.Format(http.TimeFormat))
	return ctx.Blob(http.StatusOK, "image/jpeg", data)
}

// CameraStream serves a multipart MJPEG stream at the configured target
// frame rate until the client disconnects.
func (c *Controller) CameraStream(ctx echo.Context) error {
	role := ctx.Param("role")
	if _, ok := c.pool.HandleFor(role); !ok {
		return ctx.JSON(http.StatusServiceUnavailable, map[string]string{
			"error": "camera unavailable",
			"role":  role,
		})
	}

	fps := c.Settings.Capture.StreamFPS
	if fps <= 0 {
		fps = 10
	}
	limiter := rate.NewLimiter(rate.Limit(fps), 1)

	resp := ctx.Response()
	resp.Header().Set(echo.HeaderContentType,
		fmt.Sprintf("multipart/x-mixed-replace; boundary=%s", streamBoundary))
	resp.WriteHeader(http.StatusOK)

	reqCtx := ctx.Request().Context()
	for {
		if err := limiter.Wait(reqCtx); err != nil {
			// Client went away.
			return nil
		}
		data, _, ok := c.pool.LatestFrame(role)
		if !ok {
			continue
		}
		if _, err := fmt.Fprintf(resp,
			"--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n",
			streamBoundary, len(data)); err != nil {
			return nil
		}
		if _, err := resp.Write(data); err != nil {
			return nil
		}
		if _, err := fmt.Fprint(resp, "\r\n"); err != nil {
			return nil
		}
		resp.Flush()
	}
}
