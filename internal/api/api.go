// Package api exposes the engine over HTTP: the published banner list
// as REST and SSE, the scheduled alert queues, and the health and
// metrics probes. The controller is a read-only observer of the
// notification manager and the alert store; nothing here mutates
// engine state.
package api

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/tkoskin/headsup/internal/conf"
	"github.com/tkoskin/headsup/internal/errors"
	"github.com/tkoskin/headsup/internal/logging"
	"github.com/tkoskin/headsup/internal/notification"
	"github.com/tkoskin/headsup/internal/observability"
)

// healthProbeTimeout bounds the store query issued by the health check.
const healthProbeTimeout = 2 * time.Second

// Controller serves the engine's HTTP surface under /api/v1.
type Controller struct {
	Echo     *echo.Echo
	Group    *echo.Group
	Settings *conf.Settings

	manager *notification.Manager
	center  notification.AlertCenter

	logger         *log.Logger
	apiLogger      *slog.Logger
	apiLevelVar    *slog.LevelVar
	apiLoggerClose func() error

	metrics   *observability.Metrics
	startTime *time.Time

	// ctx ends active SSE streams on Shutdown; wg tracks them so
	// Shutdown can wait for the log file to go quiet before closing it.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates the API controller and registers all routes on e.
func New(e *echo.Echo, settings *conf.Settings, manager *notification.Manager,
	center notification.AlertCenter, logger *log.Logger,
	metrics *observability.Metrics) (*Controller, error) {
	return NewWithOptions(e, settings, manager, center, logger, metrics, true)
}

// NewWithOptions creates the API controller with optional route
// registration. Tests pass initializeRoutes false to exercise handlers
// directly without touching the echo instance.
func NewWithOptions(e *echo.Echo, settings *conf.Settings, manager *notification.Manager,
	center notification.AlertCenter, logger *log.Logger,
	metrics *observability.Metrics, initializeRoutes bool) (*Controller, error) {
	if manager == nil {
		return nil, errors.Newf("api: notification manager is required").
			Component("api").
			Category(errors.CategoryValidation).
			Build()
	}
	if center == nil {
		return nil, errors.Newf("api: alert center is required").
			Component("api").
			Category(errors.CategoryValidation).
			Build()
	}
	if logger == nil {
		logger = log.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	c := &Controller{
		Echo:     e,
		Settings: settings,
		manager:  manager,
		center:   center,
		logger:   logger,
		metrics:  metrics,
		ctx:      ctx,
		cancel:   cancel,
	}

	initialLevel := slog.LevelInfo
	if settings.WebServer.Debug {
		initialLevel = slog.LevelDebug
	}
	c.apiLevelVar = new(slog.LevelVar)
	c.apiLevelVar.Set(initialLevel)

	apiLogger, closeFunc, err := logging.NewFileLogger("logs/web.log", "api", c.apiLevelVar)
	if err != nil {
		logger.Printf("Warning: failed to initialize API structured logger: %v", err)
		// Fall back to a disabled logger that still honors the level var.
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: c.apiLevelVar})
		c.apiLogger = slog.New(fbHandler).With("service", "api")
		c.apiLoggerClose = func() error { return nil }
	} else {
		c.apiLogger = apiLogger
		c.apiLoggerClose = closeFunc
	}

	c.Group = e.Group("/api/v1")

	c.Group.Use(middleware.Recover())
	c.Group.Use(middleware.CORS())
	c.Group.Use(middleware.BodyLimit("1M"))
	c.Group.Use(c.LoggingMiddleware())

	now := time.Now()
	c.startTime = &now

	if initializeRoutes {
		c.initRoutes()
	}

	return c, nil
}

// LoggingMiddleware logs every request on the group to the API log.
func (c *Controller) LoggingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()

			err := next(ctx)

			if c.apiLogger == nil {
				return err
			}

			req := ctx.Request()
			res := ctx.Response()

			// LogAttrs avoids allocations when the level is disabled.
			attrs := []slog.Attr{
				slog.String("method", req.Method),
				slog.String("path", req.URL.Path),
				slog.String("query", req.URL.RawQuery),
				slog.Int("status", res.Status),
				slog.String("ip", ctx.RealIP()),
				slog.String("user_agent", req.UserAgent()),
				slog.Int64("latency_ms", time.Since(start).Milliseconds()),
			}
			if err != nil {
				attrs = append(attrs, slog.Any("error", err))
			}

			c.apiLogger.LogAttrs(req.Context(), slog.LevelInfo, "API Request", attrs...)

			return err
		}
	}
}

// initRoutes registers all API endpoints.
func (c *Controller) initRoutes() {
	// Probes sit outside the group so scrapes skip the request log.
	c.Echo.GET("/healthz", c.HealthCheck)
	if c.metrics != nil {
		c.Echo.GET("/metrics", echo.WrapHandler(c.metrics.Handler()))
	}

	routeInitializers := []struct {
		name string
		fn   func()
	}{
		{"banner routes", c.initBannerRoutes},
		{"alert routes", c.initAlertRoutes},
	}

	for _, initializer := range routeInitializers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.logger.Printf("PANIC during %s initialization: %v", initializer.name, r)
				}
			}()

			initializer.fn()
			c.Debug("initialized %s", initializer.name)
		}()
	}
}

// HealthCheck reports engine health. The pending query doubles as the
// alert store connectivity probe.
func (c *Controller) HealthCheck(ctx echo.Context) error {
	response := map[string]any{
		"status":     "healthy",
		"version":    c.Settings.Version,
		"build_date": c.Settings.BuildDate,
		"timestamp":  time.Now().Format(time.RFC3339),
	}

	if c.Settings.WebServer.Debug {
		response["environment"] = "development"
	} else {
		response["environment"] = "production"
	}

	storeStatus := "connected"
	var storeError string

	probeCtx, cancel := context.WithTimeout(ctx.Request().Context(), healthProbeTimeout)
	defer cancel()
	if _, err := c.center.PendingAlerts(probeCtx); err != nil {
		storeStatus = "disconnected"
		storeError = err.Error()
	}

	response["store_status"] = storeStatus
	if storeError != "" {
		response["store_error"] = storeError
	}

	if c.startTime != nil {
		uptime := time.Since(*c.startTime)
		response["uptime"] = uptime.String()
		response["uptime_seconds"] = uptime.Seconds()
	}

	return ctx.JSON(http.StatusOK, response)
}

// Shutdown ends active SSE streams and closes the API log file. Call
// after the HTTP server has stopped accepting new requests.
func (c *Controller) Shutdown() {
	if c.cancel != nil {
		c.cancel()
	}

	c.wg.Wait()

	if c.apiLoggerClose != nil {
		if err := c.apiLoggerClose(); err != nil {
			c.logger.Printf("Error closing API log file: %v", err)
		}
	}
}

// Debug logs debug messages when web server debug mode is enabled.
func (c *Controller) Debug(format string, v ...any) {
	if c.Settings.WebServer.Debug {
		msg := fmt.Sprintf(format, v...)
		c.logger.Printf("[DEBUG] %s", msg)

		if c.apiLogger != nil {
			c.apiLogger.Debug(msg)
		}
	}
}
