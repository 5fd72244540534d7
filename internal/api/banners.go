package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/tkoskin/headsup/internal/notification"
)

// SSE connection configuration
const (
	maxStreamDuration      = 30 * time.Minute       // cap per connection so stale clients cannot pin resources
	rateLimitWindow        = 1 * time.Minute        // rate limiter time window
	heartbeatInterval      = 30 * time.Second       // keep-alive interval
	disconnectNotifyWindow = 100 * time.Millisecond // how long the disconnect handler waits on Done

	rateLimitRequestsPerWindow = 10 // stream connection attempts per window
	rateLimitBurst             = 15 // burst allowance for quick reconnects
)

// BannerClient is one connected banner stream subscriber.
type BannerClient struct {
	ID           string
	Done         chan struct{} // buffered signal channel, written by the disconnect handler
	SubscriberCh <-chan []notification.Banner
	Context      context.Context
}

// initBannerRoutes registers the banner list and stream endpoints.
func (c *Controller) initBannerRoutes() {
	rateLimiterConfig := middleware.RateLimiterConfig{
		Skipper: middleware.DefaultSkipper,
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rateLimitRequestsPerWindow,
				Burst:     rateLimitBurst,
				ExpiresIn: rateLimitWindow,
			},
		),
		IdentifierExtractor: func(ctx echo.Context) (string, error) {
			return ctx.RealIP(), nil
		},
		DenyHandler: func(ctx echo.Context, identifier string, err error) error {
			return ctx.JSON(http.StatusTooManyRequests, map[string]string{
				"error": "Too many banner stream connection attempts, please wait before trying again",
			})
		},
	}

	c.Group.GET("/banners", c.GetBanners)
	c.Group.GET("/banners/stream", c.StreamBanners, middleware.RateLimiterWithConfig(rateLimiterConfig))
}

// GetBanners returns the currently published banner list.
func (c *Controller) GetBanners(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, bannerPayload(c.manager.Banners()))
}

// StreamBanners streams banner list updates over SSE. Every event
// carries the full current list, so a client missing one update is
// corrected by the next.
func (c *Controller) StreamBanners(ctx echo.Context) error {
	// Bound the connection lifetime. Handler exit cancels the derived
	// context, which also releases the disconnect goroutine.
	timeoutCtx, cancel := context.WithTimeout(ctx.Request().Context(), maxStreamDuration)
	defer cancel()
	ctx.SetRequest(ctx.Request().WithContext(timeoutCtx))

	client, err := c.setupBannerStream(ctx)
	if err != nil {
		return err
	}

	defer c.manager.Unsubscribe(client.SubscriberCh)

	c.wg.Add(1)
	defer c.wg.Done()

	c.setupDisconnectHandler(ctx, client)

	return c.runBannerEventLoop(ctx, client)
}

// setupBannerStream subscribes to the manager and sends the handshake
// events. On failure the subscription is released before returning.
func (c *Controller) setupBannerStream(ctx echo.Context) (*BannerClient, error) {
	c.setStreamHeaders(ctx)

	clientID := uuid.New().String()
	bannerCh, subCtx := c.manager.Subscribe()

	client := &BannerClient{
		ID:           clientID,
		Done:         make(chan struct{}, 1),
		SubscriberCh: bannerCh,
		Context:      subCtx,
	}

	if err := c.sendSSEMessage(ctx, "connected", map[string]string{
		"clientId": clientID,
		"message":  "Connected to banner stream",
	}); err != nil {
		c.manager.Unsubscribe(bannerCh)
		return nil, err
	}

	// New clients start from the current list rather than waiting for
	// the next reconcile pass to publish one.
	if err := c.sendSSEMessage(ctx, "banners", bannerPayload(c.manager.Banners())); err != nil {
		c.manager.Unsubscribe(bannerCh)
		return nil, err
	}

	c.logStreamConnection(client.ID, ctx.RealIP(), ctx.Request().UserAgent(), true)

	return client, nil
}

// setStreamHeaders sets the required SSE response headers.
func (c *Controller) setStreamHeaders(ctx echo.Context) {
	ctx.Response().Header().Set("Content-Type", "text/event-stream")
	ctx.Response().Header().Set("Cache-Control", "no-cache")
	ctx.Response().Header().Set("Connection", "keep-alive")
	ctx.Response().Header().Set("Access-Control-Allow-Origin", "*")
	ctx.Response().Header().Set("Access-Control-Allow-Headers", "Cache-Control")
}

// setupDisconnectHandler signals the event loop when the client goes
// away. Request state is captured up front; echo recycles its contexts
// once the handler returns.
func (c *Controller) setupDisconnectHandler(ctx echo.Context, client *BannerClient) {
	reqCtx := ctx.Request().Context()
	ip := ctx.RealIP()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		<-reqCtx.Done()

		select {
		case client.Done <- struct{}{}:
		case <-time.After(disconnectNotifyWindow):
		}
		c.logStreamConnection(client.ID, ip, "", false)
	}()
}

// runBannerEventLoop forwards published banner lists until the client
// disconnects, the subscription ends, or the controller shuts down.
func (c *Controller) runBannerEventLoop(ctx echo.Context, client *BannerClient) error {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	connectionStart := time.Now()

	for {
		select {
		case banners, ok := <-client.SubscriberCh:
			if !ok {
				return nil
			}
			if err := c.sendSSEMessage(ctx, "banners", bannerPayload(banners)); err != nil {
				c.logStreamError("failed to send banner update", err, client.ID)
				return err
			}

		case <-ticker.C:
			if time.Since(connectionStart) > maxStreamDuration {
				c.logStreamConnection(client.ID, ctx.RealIP(), "", false)
				return nil
			}
			if err := c.sendHeartbeat(ctx); err != nil {
				return err
			}

		case <-client.Done:
			return nil

		case <-client.Context.Done():
			return nil

		case <-c.ctx.Done():
			return nil
		}
	}
}

// sendHeartbeat sends a keep-alive message.
func (c *Controller) sendHeartbeat(ctx echo.Context) error {
	return c.sendSSEMessage(ctx, "heartbeat", map[string]string{
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// bannerPayload is the wire shape shared by the REST list and every
// stream event.
func bannerPayload(banners []notification.Banner) map[string]any {
	if banners == nil {
		banners = []notification.Banner{}
	}
	return map[string]any{
		"banners": banners,
		"count":   len(banners),
	}
}

// logStreamConnection logs SSE client connection and disconnection.
func (c *Controller) logStreamConnection(clientID, ip, userAgent string, connected bool) {
	if c.apiLogger == nil {
		return
	}

	action := "connected"
	if !connected {
		action = "disconnected"
	}

	if c.Settings.WebServer.Debug && connected {
		c.apiLogger.Debug("banner stream client "+action,
			"clientId", clientID,
			"ip", ip,
			"user_agent", userAgent)
	} else {
		c.apiLogger.Info("banner stream client "+action,
			"clientId", clientID,
			"ip", ip)
	}
}

// logStreamError logs SSE send failures.
func (c *Controller) logStreamError(message string, err error, clientID string) {
	if c.apiLogger != nil {
		c.apiLogger.Error(message, "error", err, "clientId", clientID)
	}
}
