// admin.go: administrative endpoints for rebuilds and cache control
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/landcover/parcelmap/internal/buildinfo"
	"github.com/landcover/parcelmap/internal/errors"
)

// RebuildCounty handles POST /api/v1/rebuild/:county. It recomputes the
// aggregated holdings of one county and flushes the tile cache so the next
// tile request reflects the new data.
func (c *Controller) RebuildCounty(ctx echo.Context) error {
	county := strings.TrimSpace(ctx.Param("county"))
	if county == "" {
		return c.HandleError(ctx, nil, "county is required", http.StatusBadRequest)
	}

	result, err := c.Rebuilder.RebuildCounty(ctx.Request().Context(), county)
	if err != nil {
		if errors.HasCategory(err, errors.CategoryValidation) {
			return c.HandleError(ctx, err, "county is excluded from aggregation", http.StatusUnprocessableEntity)
		}
		return c.HandleError(ctx, err, "rebuild failed", http.StatusInternalServerError)
	}

	c.TileServer.ClearCache()
	return ctx.JSON(http.StatusOK, result)
}

// ClearCache handles POST /api/v1/cache/clear. Idempotent.
func (c *Controller) ClearCache(ctx echo.Context) error {
	c.TileServer.ClearCache()
	return ctx.NoContent(http.StatusNoContent)
}

// CacheStats handles GET /api/v1/cache/stats.
func (c *Controller) CacheStats(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, c.TileServer.CacheStats())
}

// healthResponse is the payload of the health endpoint.
type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Uptime   string `json:"uptime"`
	Version  string `json:"version"`
}

// Health handles GET /api/v1/health, reporting database reachability.
func (c *Controller) Health(ctx echo.Context) error {
	resp := healthResponse{
		Status:   "ok",
		Database: "ok",
		Uptime:   c.uptime(),
		Version:  buildinfo.Version,
	}

	if _, err := c.DS.CountiesWithParcels(); err != nil {
		resp.Status = "degraded"
		resp.Database = err.Error()
		return ctx.JSON(http.StatusServiceUnavailable, resp)
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (c *Controller) uptime() string {
	return time.Since(c.startTime).Round(time.Second).String()
}
