package alertcenter

import (
	"context"
	"time"

	"github.com/tkoskin/headsup/internal/notification"
	"github.com/tkoskin/headsup/internal/observability/metrics"
)

// Authorization modes selectable through the store configuration. The
// grant and deny modes fix the permission state up front; the prompt
// modes start undetermined and resolve on the first authorization
// request, standing in for the platform permission dialog.
const (
	AuthorizationGranted     = "granted"
	AuthorizationDenied      = "denied"
	AuthorizationPromptGrant = "prompt-grant"
	AuthorizationPromptDeny  = "prompt-deny"
)

// AuthorizationStatus reports the current user permission state.
func (c *Center) AuthorizationStatus(ctx context.Context) notification.AuthorizationStatus {
	_ = ctx
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// RequestAuthorization resolves an undetermined permission state
// according to the configured prompt policy and reports whether
// permission was granted. Concurrent requests collapse into a single
// prompt; all callers observe the same outcome. Once the state is
// determined, further requests return it without prompting again.
func (c *Center) RequestAuthorization(ctx context.Context, opts notification.AuthorizationOptions) (bool, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		c.recordOp(metrics.OpAuthorization, metrics.StatusError, start)
		return false, err
	}

	granted, err, _ := c.prompts.Do("authorization", func() (any, error) {
		return c.resolvePrompt(opts), nil
	})
	if err != nil {
		c.recordOp(metrics.OpAuthorization, metrics.StatusError, start)
		return false, err
	}
	c.recordOp(metrics.OpAuthorization, metrics.StatusSuccess, start)
	return granted.(bool), nil
}

// resolvePrompt applies the prompt policy exactly once per undetermined
// state and returns whether the resulting state allows scheduling.
func (c *Center) resolvePrompt(opts notification.AuthorizationOptions) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status != notification.AuthorizationNotDetermined {
		return c.status == notification.AuthorizationAuthorized ||
			c.status == notification.AuthorizationProvisional
	}

	if !c.grantOnPrompt {
		c.status = notification.AuthorizationDenied
		c.logger.Info("authorization prompt denied")
		return false
	}

	if opts.Provisional {
		c.status = notification.AuthorizationProvisional
	} else {
		c.status = notification.AuthorizationAuthorized
	}
	c.logger.Info("authorization prompt granted",
		"status", c.status.String(),
		"alert", opts.Alert,
		"sound", opts.Sound)
	return true
}
