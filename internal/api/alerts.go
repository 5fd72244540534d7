package api

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tkoskin/headsup/internal/alertcenter"
)

// deliveredLister is the optional store capability behind the delivered
// history endpoint. Detected once per request by interface assertion,
// the same way the manager detects provider capabilities.
type deliveredLister interface {
	DeliveredAlerts(ctx context.Context) ([]alertcenter.DeliveredAlert, error)
}

// initAlertRoutes registers the alert store endpoints.
func (c *Controller) initAlertRoutes() {
	c.Group.GET("/pending", c.GetPendingAlerts)
	c.Group.GET("/delivered", c.GetDeliveredAlerts)
}

// GetPendingAlerts returns the alerts currently scheduled in the store,
// in the store's listing order.
func (c *Controller) GetPendingAlerts(ctx echo.Context) error {
	alerts, err := c.center.PendingAlerts(ctx.Request().Context())
	if err != nil {
		if c.apiLogger != nil {
			c.apiLogger.Error("failed to list pending alerts", "error", err)
		}
		return ctx.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to retrieve pending alerts",
		})
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// GetDeliveredAlerts returns the fired alert history when the store
// keeps one.
func (c *Controller) GetDeliveredAlerts(ctx echo.Context) error {
	lister, ok := c.center.(deliveredLister)
	if !ok {
		return ctx.JSON(http.StatusNotImplemented, map[string]string{
			"error": "Delivered history is not supported by this store",
		})
	}

	delivered, err := lister.DeliveredAlerts(ctx.Request().Context())
	if err != nil {
		if c.apiLogger != nil {
			c.apiLogger.Error("failed to list delivered alerts", "error", err)
		}
		return ctx.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to retrieve delivered alerts",
		})
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"alerts": delivered,
		"count":  len(delivered),
	})
}
