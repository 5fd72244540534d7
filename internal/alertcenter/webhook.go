package alertcenter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/tkoskin/headsup/internal/errors"
	"github.com/tkoskin/headsup/internal/httpclient"
	"github.com/tkoskin/headsup/internal/notification"
)

// maxErrorBodySize limits error response body reading.
const maxErrorBodySize = 1024

// webhookUserAgent identifies webhook posts to receiving endpoints.
const webhookUserAgent = "HeadsUp-Webhook/1.0"

// webhookPayload is the JSON body posted to webhook endpoints.
type webhookPayload struct {
	Source string `json:"source,omitzero"`
	Key    string `json:"key"`
	Body   string `json:"body"`
	Sound  bool   `json:"sound,omitzero"`
	FireAt string `json:"fire_at"`
	SentAt string `json:"sent_at"`
}

// WebhookTarget posts fired alerts as JSON to HTTP endpoints. Multiple
// URLs act as failover: endpoints are tried in order until one accepts.
type WebhookTarget struct {
	name   string
	source string
	urls   []string
	token  string
	client *httpclient.Client
}

// NewWebhookTarget validates the endpoint URLs and builds the target.
// An empty token disables the Authorization header.
func NewWebhookTarget(name, source string, urls []string, token string, timeout time.Duration) (*WebhookTarget, error) {
	if len(urls) == 0 {
		return nil, errors.Newf("at least one endpoint URL is required").
			Component("alertcenter").
			Category(errors.CategoryValidation).
			Context("target", name).
			Build()
	}
	for i, raw := range urls {
		if err := validateEndpointURL(raw); err != nil {
			return nil, errors.New(err).
				Component("alertcenter").
				Category(errors.CategoryValidation).
				Context("target", name).
				Context("endpoint_index", i).
				Build()
		}
	}
	if timeout <= 0 {
		timeout = defaultDeliveryTimeout
	}

	return &WebhookTarget{
		name:   name,
		source: source,
		urls:   slices.Clone(urls),
		token:  token,
		client: httpclient.New(&httpclient.Config{
			DefaultTimeout: timeout,
			UserAgent:      webhookUserAgent,
		}),
	}, nil
}

// validateEndpointURL checks URL format, scheme and host.
func validateEndpointURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %s", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL host is required")
	}
	return nil
}

// Name returns the target name used in logs and metrics.
func (t *WebhookTarget) Name() string { return t.name }

// Close drains the target's connection pool.
func (t *WebhookTarget) Close() error {
	t.client.Close()
	return nil
}

// Send posts the alert to the endpoints in order until one succeeds.
func (t *WebhookTarget) Send(ctx context.Context, alert notification.Alert) error {
	payload, err := json.Marshal(webhookPayload{
		Source: t.source,
		Key:    alert.Key,
		Body:   alert.Body,
		Sound:  alert.Sound,
		FireAt: alert.FireAt.Format(time.RFC3339),
		SentAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return errors.New(err).
			Component("alertcenter").
			Category(errors.CategoryDelivery).
			Context("target", t.name).
			Build()
	}

	attempts := make([]error, 0, len(t.urls))
	for i, endpoint := range t.urls {
		err := t.post(ctx, endpoint, payload)
		if err == nil {
			return nil
		}
		attempts = append(attempts, fmt.Errorf("endpoint %d: %w", i, err))
		if ctx.Err() != nil {
			break
		}
	}

	return errors.New(errors.Join(attempts...)).
		Component("alertcenter").
		Category(errors.CategoryDelivery).
		Context("target", t.name).
		Context("key", alert.Key).
		Context("endpoints", len(t.urls)).
		Build()
}

// post sends the payload to a single endpoint.
func (t *WebhookTarget) post(ctx context.Context, endpoint string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}

	resp, err := t.client.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		// Drain before closing so the connection can be reused
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
