package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// sseWriteTimeout bounds one event write so a stalled client cannot
// hang the stream handler.
const sseWriteTimeout = 10 * time.Second

// sendSSEMessage writes one server-sent event to the response and
// flushes it.
func (c *Controller) sendSSEMessage(ctx echo.Context, event string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal SSE data: %w", err)
	}

	message := fmt.Sprintf("event: %s\ndata: %s\n\n", event, string(jsonData))

	// Not every response writer supports deadlines; skip quietly when
	// this one does not.
	if conn, ok := ctx.Response().Writer.(interface{ SetWriteDeadline(time.Time) error }); ok {
		if err := conn.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
			if c.apiLogger != nil {
				c.apiLogger.Debug("failed to set SSE write deadline", "error", err.Error())
			}
		}
	}

	if _, err := ctx.Response().Write([]byte(message)); err != nil {
		return fmt.Errorf("failed to write SSE message: %w", err)
	}

	if flusher, ok := ctx.Response().Writer.(http.Flusher); ok {
		flusher.Flush()
	}

	return nil
}
