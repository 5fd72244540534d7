// Package daemon assembles the notification engine and runs it as a
// long-lived process: event bus, alert store, manager, providers,
// delivery, periodic reconciliation and the web surface.
package daemon

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/robfig/cron/v3"

	"github.com/tkoskin/headsup/internal/account"
	"github.com/tkoskin/headsup/internal/alertcenter"
	"github.com/tkoskin/headsup/internal/api"
	"github.com/tkoskin/headsup/internal/conf"
	"github.com/tkoskin/headsup/internal/errors"
	"github.com/tkoskin/headsup/internal/events"
	"github.com/tkoskin/headsup/internal/logging"
	"github.com/tkoskin/headsup/internal/notification"
	"github.com/tkoskin/headsup/internal/observability"
	"github.com/tkoskin/headsup/internal/telemetry"
)

const (
	// defaultReconcileSchedule drives passes when no schedule is configured.
	defaultReconcileSchedule = "@every 15m"

	// busShutdownTimeout bounds the drain of queued account events.
	busShutdownTimeout = 5 * time.Second

	// httpShutdownTimeout bounds the web listener drain.
	httpShutdownTimeout = 10 * time.Second

	// telemetryFlushTimeout bounds the final error report flush.
	telemetryFlushTimeout = 3 * time.Second
)

// Engine holds every running component in start order so Shutdown can
// walk them in reverse.
type Engine struct {
	settings *conf.Settings
	logger   *slog.Logger

	bus        *events.EventBus
	metrics    *observability.Metrics
	dispatcher *alertcenter.Dispatcher
	center     *alertcenter.Center
	manager    *notification.Manager
	provider   *notification.AccountExpiryProvider
	tracker    *account.Tracker

	cron       *cron.Cron
	echo       *echo.Echo
	controller *api.Controller
}

// Run assembles the engine, starts it and keeps it running until
// SIGINT or SIGTERM arrives.
func Run(settings *conf.Settings) error {
	engine, err := NewEngine(settings)
	if err != nil {
		return err
	}
	if err := engine.Start(); err != nil {
		engine.Shutdown()
		return err
	}

	quitChan := make(chan struct{})
	monitorShutdownSignals(quitChan)

	<-quitChan
	engine.Shutdown()
	return nil
}

// NewEngine wires the engine core: event bus, telemetry, metrics, alert
// store with its journal and delivery fan-out, the manager, the account
// expiry provider and the session tracker. Nothing is scheduled yet;
// call Start for the reconcile runner and the web server.
func NewEngine(settings *conf.Settings) (*Engine, error) {
	if settings == nil {
		return nil, errors.Newf("daemon: settings are required").
			Component("daemon").
			Category(errors.CategoryValidation).
			Build()
	}

	e := &Engine{
		settings: settings,
		logger:   getLogger(),
	}

	bus, err := events.Initialize(events.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("error initializing event bus: %w", err)
	}
	e.bus = bus

	// Telemetry is opt-in; a failed init degrades to local logging only.
	if err := telemetry.Init(settings); err != nil {
		e.logger.Warn("telemetry initialization failed", "error", err)
	} else if err := telemetry.InitializeEventBusIntegration(); err != nil {
		e.logger.Warn("telemetry event bus integration failed", "error", err)
	}

	m, err := observability.NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("error initializing metrics: %w", err)
	}
	e.metrics = m

	journal, err := alertcenter.OpenJournal(&settings.Store, m.AlertStore)
	if err != nil {
		return nil, fmt.Errorf("error opening alert journal: %w", err)
	}

	if settings.Delivery.Enabled {
		dispatcher, err := alertcenter.NewDispatcher(&settings.Delivery, settings.Main.Name, m.Delivery)
		if err != nil {
			e.logger.Warn("delivery dispatcher unavailable, alerts stay local", "error", err)
		} else {
			e.dispatcher = dispatcher
		}
	}
	var onFired func(notification.Alert)
	if e.dispatcher != nil {
		onFired = e.dispatcher.Dispatch
	}

	center, err := alertcenter.New(&alertcenter.Config{
		AuthorizationMode:  settings.Store.Authorization.Mode,
		DeliveredRetention: settings.Store.DeliveredRetention,
		Journal:            journal,
		OnFired:            onFired,
		Metrics:            m.AlertStore,
		Debug:              settings.Notification.Debug,
	})
	if err != nil {
		closeJournal(journal)
		return nil, fmt.Errorf("error initializing alert center: %w", err)
	}
	e.center = center

	manager, err := notification.NewManager(&notification.ManagerConfig{
		Center:      center,
		DedupWindow: settings.Notification.DedupWindow,
		MaxBanners:  settings.Notification.MaxBanners,
		Debug:       settings.Notification.Debug,
		Metrics:     m.Notification,
	})
	if err != nil {
		center.Close()
		return nil, fmt.Errorf("error initializing notification manager: %w", err)
	}
	e.manager = manager

	if err := e.registerProviders(); err != nil {
		manager.Stop()
		center.Close()
		return nil, err
	}

	tracker, err := account.NewTracker(&account.TrackerConfig{
		Bus:   bus,
		Debug: settings.Debug,
	})
	if err != nil {
		manager.Stop()
		center.Close()
		return nil, err
	}
	e.tracker = tracker

	return e, nil
}

// registerProviders wires the account expiry provider into the manager
// and its event consumer onto the bus.
func (e *Engine) registerProviders() error {
	loc, err := e.settings.Notification.TimeLocation()
	if err != nil {
		return err
	}

	provider := notification.NewAccountExpiryProvider(&notification.AccountExpiryConfig{
		Lead:     e.settings.Notification.LeadTime,
		FireHour: e.settings.Notification.FireHour,
		Location: loc,
	})
	if err := e.manager.Register(provider); err != nil {
		return err
	}
	if err := e.bus.RegisterConsumer(notification.NewAccountConsumer(provider)); err != nil {
		return fmt.Errorf("error registering account consumer: %w", err)
	}
	e.provider = provider
	return nil
}

// Start runs the initial reconcile pass and brings up the periodic
// runner and the web server.
func (e *Engine) Start() error {
	if err := e.startReconciler(); err != nil {
		return err
	}
	if err := e.startWebServer(); err != nil {
		e.stopReconciler()
		return err
	}
	e.logger.Info("daemon started", "node", e.settings.Main.Name)
	return nil
}

// startReconciler arms the cron runner for periodic reconciliation. The
// first pass runs inline so journal-restored state and current provider
// state converge without waiting out the schedule.
func (e *Engine) startReconciler() error {
	loc, err := e.settings.Notification.TimeLocation()
	if err != nil {
		return err
	}

	spec := e.settings.Notification.ReconcileSchedule
	if spec == "" {
		spec = defaultReconcileSchedule
	}

	runner := cron.New(cron.WithLocation(loc))
	if _, err := runner.AddFunc(spec, e.manager.Reconcile); err != nil {
		return errors.New(err).
			Component("daemon").
			Category(errors.CategoryConfiguration).
			Context("schedule", spec).
			Build()
	}

	e.manager.Reconcile()
	runner.Start()
	e.cron = runner

	e.logger.Info("reconcile schedule armed",
		"schedule", spec,
		"timezone", loc.String())
	return nil
}

// startWebServer brings up the echo server with the API controller
// attached. Disabled web means a headless engine, not an error.
func (e *Engine) startWebServer() error {
	if !e.settings.WebServer.Enabled {
		e.logger.Info("web server disabled")
		return nil
	}

	srv := echo.New()
	srv.HideBanner = true
	srv.HidePort = true

	controller, err := api.New(srv, e.settings, e.manager, e.center, log.Default(), e.metrics)
	if err != nil {
		return err
	}
	e.echo = srv
	e.controller = controller

	addr := net.JoinHostPort("", e.settings.WebServer.Port)
	go func() {
		if err := srv.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.logger.Error("web server stopped", "error", err)
		}
	}()

	e.logger.Info("web server listening", "port", e.settings.WebServer.Port)
	return nil
}

// Shutdown stops every component in reverse start order: no new passes,
// drain the web surface, stop the engine core, then flush whatever is
// still queued on the bus and in telemetry.
func (e *Engine) Shutdown() {
	e.stopReconciler()
	e.stopWebServer()

	if e.manager != nil {
		e.manager.Stop()
	}
	if e.center != nil {
		e.center.Close()
	}
	// The dispatcher outlives the center: closing the center waits for
	// in-flight fires, each of which may still hand off a delivery.
	if e.dispatcher != nil {
		e.dispatcher.Stop()
	}

	if e.bus != nil {
		if err := e.bus.Shutdown(busShutdownTimeout); err != nil {
			e.logger.Warn("event bus shutdown incomplete", "error", err)
		}
	}
	telemetry.Flush(telemetryFlushTimeout)

	e.logger.Info("daemon stopped")
}

// stopReconciler stops the cron runner and waits for a pass already in
// flight to finish.
func (e *Engine) stopReconciler() {
	if e.cron == nil {
		return
	}
	<-e.cron.Stop().Done()
	e.cron = nil
}

// stopWebServer ends active streams first so the listener can drain
// without waiting out long-lived SSE connections.
func (e *Engine) stopWebServer() {
	if e.controller != nil {
		e.controller.Shutdown()
		e.controller = nil
	}
	if e.echo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
		if err := e.echo.Shutdown(ctx); err != nil {
			e.logger.Warn("web server shutdown incomplete", "error", err)
		}
		cancel()
		e.echo = nil
	}
}

// Tracker returns the session tracker feeding account events into the
// engine.
func (e *Engine) Tracker() *account.Tracker { return e.tracker }

// Manager returns the running notification manager.
func (e *Engine) Manager() *notification.Manager { return e.manager }

// Center returns the running alert store.
func (e *Engine) Center() *alertcenter.Center { return e.center }

// monitorShutdownSignals closes quitChan when a termination signal
// arrives.
func monitorShutdownSignals(quitChan chan struct{}) {
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

		sig := <-sigChan
		getLogger().Info("received shutdown signal", "signal", sig.String())
		close(quitChan)
	}()
}

// closeJournal closes a journal that never made it into a center.
func closeJournal(journal alertcenter.Journal) {
	if journal == nil {
		return
	}
	if err := journal.Close(); err != nil {
		getLogger().Error("journal close failed", "error", err)
	}
}

func getLogger() *slog.Logger {
	if logger := logging.ForService("daemon"); logger != nil {
		return logger
	}
	return slog.Default().With("service", "daemon")
}
