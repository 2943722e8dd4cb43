package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/condosec/condowatch/internal/conf"
	"github.com/condosec/condowatch/internal/logger"
)

func (c *Controller) initHealthRoutes() {
	c.Group.GET("/health", c.Health)
	c.Group.GET("/nodes", c.ListNodes)
}

// nodeStatus is the per-node health row returned by /nodes.
type nodeStatus struct {
	NodeID   string    `json:"node_id"`
	Room     string    `json:"room"`
	LastSeen time.Time `json:"last_seen"`
	Note     string    `json:"note"`
	Online   bool      `json:"online"`
}

// Health reports process liveness together with host resource figures.
func (c *Controller) Health(ctx echo.Context) error {
	out := map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		out["cpu_percent"] = percents[0]
	} else if err != nil {
		c.log.Debug("failed to read cpu usage", logger.Error(err))
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		out["memory_percent"] = vm.UsedPercent
		out["memory_total_mb"] = vm.Total / (1024 * 1024)
		out["memory_used_mb"] = vm.Used / (1024 * 1024)
	} else {
		c.log.Debug("failed to read memory usage", logger.Error(err))
	}

	return ctx.JSON(http.StatusOK, out)
}

// ListNodes returns every heartbeat row with an online flag computed
// against the configured offline threshold.
func (c *Controller) ListNodes(ctx echo.Context) error {
	beats, err := c.repos.Nodes.List(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err, "failed to list nodes", 0)
	}

	offlineAfter := c.Settings.Nodes.OfflineAfter.Std()
	now := time.Now().UTC()

	nodes := make([]nodeStatus, 0, len(beats))
	for _, b := range beats {
		meta := conf.GetNodeMeta(b.NodeID)
		nodes = append(nodes, nodeStatus{
			NodeID:   b.NodeID,
			Room:     meta.Room,
			LastSeen: b.LastSeen,
			Note:     b.Note,
			Online:   now.Sub(b.LastSeen) <= offlineAfter,
		})
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"nodes":         nodes,
		"count":         len(nodes),
		"offline_after": offlineAfter.String(),
	})
}
