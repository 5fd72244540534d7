package api

import (
	"bufio"
	"context"
	"io"
	"log"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/tkoskin/headsup/internal/conf"
	"github.com/tkoskin/headsup/internal/notification"
	"github.com/tkoskin/headsup/internal/observability"
)

// stubCenter is a minimal notification.AlertCenter for handler tests.
// It keeps no delivered history, which also exercises the capability
// probe on the delivered endpoint.
type stubCenter struct {
	mu         sync.Mutex
	pending    []notification.Alert
	pendingErr error
}

func (s *stubCenter) AuthorizationStatus(context.Context) notification.AuthorizationStatus {
	return notification.AuthorizationAuthorized
}

func (s *stubCenter) RequestAuthorization(context.Context, notification.AuthorizationOptions) (bool, error) {
	return true, nil
}

func (s *stubCenter) Add(_ context.Context, alert notification.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, alert)
	return nil
}

func (s *stubCenter) RemovePending(context.Context, ...string) error   { return nil }
func (s *stubCenter) RemoveDelivered(context.Context, ...string) error { return nil }

func (s *stubCenter) PendingAlerts(context.Context) ([]notification.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pendingErr != nil {
		return nil, s.pendingErr
	}
	return slices.Clone(s.pending), nil
}

func (s *stubCenter) failPending(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingErr = err
}

// fakeBannerProvider drives banner publication from tests.
type fakeBannerProvider struct {
	mu     sync.Mutex
	key    string
	banner *notification.Banner
}

func (f *fakeBannerProvider) Key() string { return f.key }

func (f *fakeBannerProvider) Banner() *notification.Banner {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.banner == nil {
		return nil
	}
	banner := *f.banner
	return &banner
}

func (f *fakeBannerProvider) setBanner(banner *notification.Banner) {
	f.mu.Lock()
	f.banner = banner
	f.mu.Unlock()
}

// setupTestEnvironment builds an echo instance, a manager over the
// given center and a controller with routes registered. The working
// directory moves to a temp dir so log files land there.
func setupTestEnvironment(t *testing.T, center notification.AlertCenter) (*echo.Echo, *notification.Manager, *Controller) {
	t.Helper()
	t.Chdir(t.TempDir())

	e := echo.New()
	e.HideBanner = true

	m, err := observability.NewMetrics()
	require.NoError(t, err)

	manager, err := notification.NewManager(&notification.ManagerConfig{
		Center:  center,
		Metrics: m.Notification,
	})
	require.NoError(t, err)
	t.Cleanup(manager.Stop)

	settings := &conf.Settings{}
	settings.Main.Name = "HeadsUp"
	settings.Main.Log = conf.LogConfig{Rotation: conf.RotationSize}
	settings.Version = "test"
	settings.WebServer.Debug = true

	logger := log.New(io.Discard, "API TEST: ", log.LstdFlags)

	controller, err := New(e, settings, manager, center, logger, m)
	require.NoError(t, err)
	t.Cleanup(controller.Shutdown)

	return e, manager, controller
}

// readSSEEvent reads one server-sent event off the stream, skipping
// blank keep-alive lines between events.
func readSSEEvent(t *testing.T, r *bufio.Reader) (event, data string) {
	t.Helper()

	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err, "reading SSE stream")

		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			if event != "" || data != "" {
				return event, data
			}
		case strings.HasPrefix(line, "event: "):
			event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}
}
