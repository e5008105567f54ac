// Package api exposes the tile and administrative HTTP surface.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/landcover/parcelmap/internal/aggregation"
	"github.com/landcover/parcelmap/internal/conf"
	"github.com/landcover/parcelmap/internal/datastore"
	"github.com/landcover/parcelmap/internal/logging"
	"github.com/landcover/parcelmap/internal/observability"
	"github.com/landcover/parcelmap/internal/tiles"
)

// Controller manages the API routes and handlers.
type Controller struct {
	Echo       *echo.Echo
	Group      *echo.Group
	DS         datastore.Interface
	Settings   *conf.Settings
	TileServer *tiles.Server
	Rebuilder  *aggregation.Rebuilder

	metrics   *observability.Metrics
	apiLogger *slog.Logger
	startTime time.Time
}

// New creates a controller with routes registered on a fresh echo instance.
// The metrics argument may be nil.
func New(ds datastore.Interface, settings *conf.Settings, tileServer *tiles.Server,
	rebuilder *aggregation.Rebuilder, m *observability.Metrics) *Controller {

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	c := &Controller{
		Echo:       e,
		DS:         ds,
		Settings:   settings,
		TileServer: tileServer,
		Rebuilder:  rebuilder,
		metrics:    m,
		apiLogger:  logging.ForService("api"),
		startTime:  time.Now(),
	}

	c.initRoutes()
	return c
}

// initRoutes registers the tile endpoint and the administrative API group.
func (c *Controller) initRoutes() {
	c.Echo.GET("/tiles/:z/:x/:y", c.GetTile)

	c.Group = c.Echo.Group("/api/v1")
	c.Group.POST("/rebuild/:county", c.RebuildCounty)
	c.Group.POST("/cache/clear", c.ClearCache)
	c.Group.GET("/cache/stats", c.CacheStats)
	c.Group.GET("/health", c.Health)

	if c.metrics != nil && c.Settings.Server.Metrics {
		c.Echo.GET("/metrics", echo.WrapHandler(c.metrics.Handler()))
	}
}

// Start runs the HTTP server until the context is canceled, then shuts it
// down gracefully.
func (c *Controller) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%s", c.Settings.Server.Host, c.Settings.Server.Port)

	errChan := make(chan error, 1)
	go func() {
		if err := c.Echo.Start(address); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	c.apiLogger.Info("server started", "address", address)

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return c.Echo.Shutdown(shutdownCtx)
	}
}

// ErrorResponse is the JSON error envelope returned by administrative
// endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// HandleError logs an error and returns a JSON error response.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}

	c.apiLogger.Error("API error",
		"message", message,
		"error", errorStr,
		"code", code,
		"path", ctx.Request().URL.Path,
		"method", ctx.Request().Method,
		"ip", ctx.RealIP())

	return ctx.JSON(code, &ErrorResponse{
		Error:   errorStr,
		Message: message,
		Code:    code,
	})
}
