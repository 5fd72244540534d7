// Package alertcenter provides the production implementation of the
// alert store the notification manager schedules against. Pending
// alerts are held in a mutex-guarded map with one fire timer each; at
// fire time an alert moves to the delivered history and is handed to
// the delivery dispatcher. An optional journal persists both queues
// across restarts and a configurable authorization policy stands in
// for the platform permission dialog.
package alertcenter

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/tkoskin/headsup/internal/errors"
	"github.com/tkoskin/headsup/internal/notification"
	"github.com/tkoskin/headsup/internal/observability/metrics"
	"golang.org/x/sync/singleflight"
)

const (
	// journalTimeout bounds journal writes issued from timer callbacks,
	// which have no caller context to inherit.
	journalTimeout = 10 * time.Second
)

// Config controls center behavior. Center is the only mandatory part;
// Journal, OnFired and Metrics may all be nil.
type Config struct {
	// AuthorizationMode is one of granted, denied, prompt-grant or
	// prompt-deny. Empty defaults to granted.
	AuthorizationMode string

	// DeliveredRetention is how long fired alerts stay in the delivered
	// history. Zero or negative keeps them until explicitly removed.
	DeliveredRetention time.Duration

	// Journal persists queue transitions. Nil runs memory-only.
	Journal Journal

	// OnFired is invoked outside all center locks each time an alert
	// reaches its fire time. Nil disables delivery fan-out.
	OnFired func(alert notification.Alert)

	// Metrics receives store operation and queue size metrics.
	Metrics *metrics.AlertStoreMetrics

	// Debug enables debug logging for this center.
	Debug bool
}

// pendingEntry pairs a scheduled alert with its armed fire timer.
type pendingEntry struct {
	alert notification.Alert
	timer *time.Timer
}

// Center implements notification.AlertCenter in process.
type Center struct {
	mu        sync.Mutex
	pending   map[string]*pendingEntry
	delivered []DeliveredAlert
	closed    bool

	status        notification.AuthorizationStatus
	grantOnPrompt bool
	prompts       singleflight.Group

	retention time.Duration
	journal   Journal
	onFired   func(notification.Alert)
	metrics   *metrics.AlertStoreMetrics
	fires     sync.WaitGroup
	logger    *slog.Logger
	debug     bool
}

// Ensure Center satisfies the manager's store contract.
var _ notification.AlertCenter = (*Center)(nil)

// New creates a Center from the given config. When a journal is
// configured, both queues are restored and surviving pending alerts
// are re-armed; past-due ones fire immediately.
func New(config *Config) (*Center, error) {
	if config == nil {
		config = &Config{}
	}

	c := &Center{
		pending:   make(map[string]*pendingEntry),
		retention: config.DeliveredRetention,
		journal:   config.Journal,
		onFired:   config.OnFired,
		metrics:   config.Metrics,
		logger:    getFileLogger(config.Debug),
		debug:     config.Debug,
	}

	switch config.AuthorizationMode {
	case "", AuthorizationGranted:
		c.status = notification.AuthorizationAuthorized
	case AuthorizationDenied:
		c.status = notification.AuthorizationDenied
	case AuthorizationPromptGrant:
		c.status = notification.AuthorizationNotDetermined
		c.grantOnPrompt = true
	case AuthorizationPromptDeny:
		c.status = notification.AuthorizationNotDetermined
	default:
		return nil, errors.Newf("unknown authorization mode: %s", config.AuthorizationMode).
			Component("alertcenter").
			Category(errors.CategoryValidation).
			Context("mode", config.AuthorizationMode).
			Build()
	}

	if c.journal != nil {
		if err := c.restore(); err != nil {
			return nil, err
		}
	}

	c.logger.Info("alert center ready",
		"authorization_mode", c.status.String(),
		"journal", c.journal != nil,
		"delivery", c.onFired != nil,
		"restored_pending", len(c.pending),
		"restored_delivered", len(c.delivered))
	return c, nil
}

// restore loads both queues from the journal and re-arms pending
// timers without journaling the adds again.
func (c *Center) restore() error {
	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()

	pending, delivered, err := c.journal.Restore(ctx)
	if err != nil {
		return errors.New(err).
			Component("alertcenter").
			Category(errors.CategoryDatabase).
			Context("operation", "restore").
			Build()
	}

	sort.Slice(delivered, func(i, j int) bool {
		return delivered[i].FiredAt.Before(delivered[j].FiredAt)
	})

	c.mu.Lock()
	c.delivered = delivered
	c.pruneDeliveredLocked(time.Now())
	for _, alert := range pending {
		c.armLocked(alert)
	}
	c.updateCountsLocked()
	c.mu.Unlock()
	return nil
}

// armLocked schedules the fire timer for an alert and stores the
// pending entry. Caller holds c.mu. An existing entry under the same
// key must be cancelled first.
func (c *Center) armLocked(alert notification.Alert) {
	entry := &pendingEntry{alert: alert}
	c.fires.Add(1)
	// A fire time in the past fires the callback right away.
	entry.timer = time.AfterFunc(time.Until(alert.FireAt), func() {
		defer c.fires.Done()
		c.fire(alert.Key, entry)
	})
	c.pending[alert.Key] = entry
}

// cancelLocked stops a pending entry's timer and balances the fire
// wait group when the timer had not gone off yet. Caller holds c.mu.
func (c *Center) cancelLocked(entry *pendingEntry) {
	if entry.timer.Stop() {
		c.fires.Done()
	}
}

// Add schedules an alert, replacing any pending entry with the same key.
func (c *Center) Add(ctx context.Context, alert notification.Alert) error {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		c.recordOp(metrics.OpAdd, metrics.StatusError, start)
		return err
	}
	if alert.Key == "" {
		c.recordOp(metrics.OpAdd, metrics.StatusError, start)
		return errors.Newf("alert key must not be empty").
			Component("alertcenter").
			Category(errors.CategoryValidation).
			Build()
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.recordOp(metrics.OpAdd, metrics.StatusError, start)
		return errors.Newf("alert center is closed").
			Component("alertcenter").
			Category(errors.CategoryState).
			Context("key", alert.Key).
			Build()
	}
	replaced := false
	if existing, ok := c.pending[alert.Key]; ok {
		c.cancelLocked(existing)
		replaced = true
	}
	c.armLocked(alert)
	c.updateCountsLocked()
	c.mu.Unlock()

	if c.journal != nil {
		if err := c.journal.RecordAdd(ctx, alert); err != nil {
			c.logger.Error("journal add failed", "key", alert.Key, "error", err)
		}
	}

	c.recordOp(metrics.OpAdd, metrics.StatusSuccess, start)
	if c.debug {
		c.logger.Debug("alert scheduled",
			"key", alert.Key,
			"fire_at", alert.FireAt,
			"replaced", replaced)
	}
	return nil
}

// fire transitions a pending alert to the delivered history and hands
// it to the delivery hook. Stale callbacks from replaced or removed
// entries abandon without effect.
func (c *Center) fire(key string, entry *pendingEntry) {
	c.mu.Lock()
	if c.closed || c.pending[key] != entry {
		c.mu.Unlock()
		return
	}
	delete(c.pending, key)
	firedAt := time.Now()
	c.delivered = append(c.delivered, DeliveredAlert{Alert: entry.alert, FiredAt: firedAt})
	c.pruneDeliveredLocked(firedAt)
	c.updateCountsLocked()
	hook := c.onFired
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.RecordFire()
	}
	c.logger.Info("alert fired", "key", key, "scheduled_for", entry.alert.FireAt)

	if c.journal != nil {
		ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
		if err := c.journal.RecordFired(ctx, key, firedAt); err != nil {
			c.logger.Error("journal fire failed", "key", key, "error", err)
		}
		if c.retention > 0 {
			pruned, err := c.journal.Prune(ctx, firedAt.Add(-c.retention))
			if err != nil {
				c.logger.Error("journal prune failed", "error", err)
			} else if c.metrics != nil {
				c.metrics.AddJournalPruned(pruned)
			}
		}
		cancel()
	}

	if hook != nil {
		hook(entry.alert)
	}
}

// RemovePending removes scheduled alerts that have not fired yet.
// Unknown keys are ignored.
func (c *Center) RemovePending(ctx context.Context, keys ...string) error {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		c.recordOp(metrics.OpRemovePending, metrics.StatusError, start)
		return err
	}

	c.mu.Lock()
	removed := make([]string, 0, len(keys))
	for _, key := range keys {
		entry, ok := c.pending[key]
		if !ok {
			continue
		}
		c.cancelLocked(entry)
		delete(c.pending, key)
		removed = append(removed, key)
	}
	c.updateCountsLocked()
	c.mu.Unlock()

	if c.journal != nil && len(removed) > 0 {
		if err := c.journal.RecordRemoved(ctx, ScopePending, removed...); err != nil {
			c.logger.Error("journal remove failed", "scope", ScopePending, "keys", removed, "error", err)
		}
	}

	c.recordOp(metrics.OpRemovePending, metrics.StatusSuccess, start)
	if c.debug && len(removed) > 0 {
		c.logger.Debug("pending alerts removed", "keys", removed)
	}
	return nil
}

// RemoveDelivered removes alerts that already fired from the delivered
// history. Unknown keys are ignored.
func (c *Center) RemoveDelivered(ctx context.Context, keys ...string) error {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		c.recordOp(metrics.OpRemoveDelivered, metrics.StatusError, start)
		return err
	}

	drop := make(map[string]bool, len(keys))
	for _, key := range keys {
		drop[key] = true
	}

	c.mu.Lock()
	kept := c.delivered[:0]
	removed := make([]string, 0, len(keys))
	for _, rec := range c.delivered {
		if drop[rec.Alert.Key] {
			removed = append(removed, rec.Alert.Key)
			continue
		}
		kept = append(kept, rec)
	}
	c.delivered = kept
	c.updateCountsLocked()
	c.mu.Unlock()

	if c.journal != nil && len(removed) > 0 {
		if err := c.journal.RecordRemoved(ctx, ScopeDelivered, removed...); err != nil {
			c.logger.Error("journal remove failed", "scope", ScopeDelivered, "keys", removed, "error", err)
		}
	}

	c.recordOp(metrics.OpRemoveDelivered, metrics.StatusSuccess, start)
	return nil
}

// PendingAlerts returns the alerts currently scheduled, ordered by fire
// time and then key for a stable listing.
func (c *Center) PendingAlerts(ctx context.Context) ([]notification.Alert, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		c.recordOp(metrics.OpPendingList, metrics.StatusError, start)
		return nil, err
	}

	c.mu.Lock()
	alerts := make([]notification.Alert, 0, len(c.pending))
	for _, entry := range c.pending {
		alerts = append(alerts, entry.alert)
	}
	c.mu.Unlock()

	sort.Slice(alerts, func(i, j int) bool {
		if alerts[i].FireAt.Equal(alerts[j].FireAt) {
			return alerts[i].Key < alerts[j].Key
		}
		return alerts[i].FireAt.Before(alerts[j].FireAt)
	})

	c.recordOp(metrics.OpPendingList, metrics.StatusSuccess, start)
	return alerts, nil
}

// DeliveredAlerts returns the fired alerts still retained, oldest first.
func (c *Center) DeliveredAlerts(ctx context.Context) ([]DeliveredAlert, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.pruneDeliveredLocked(time.Now())
	c.updateCountsLocked()
	out := make([]DeliveredAlert, len(c.delivered))
	copy(out, c.delivered)
	c.mu.Unlock()
	return out, nil
}

// pruneDeliveredLocked drops delivered entries older than the
// configured retention. Caller holds c.mu.
func (c *Center) pruneDeliveredLocked(now time.Time) {
	if c.retention <= 0 {
		return
	}
	cutoff := now.Add(-c.retention)
	kept := c.delivered[:0]
	for _, rec := range c.delivered {
		if rec.FiredAt.Before(cutoff) {
			continue
		}
		kept = append(kept, rec)
	}
	c.delivered = kept
}

// Close cancels all pending timers and waits for in-flight fire
// callbacks, then closes the journal. The center rejects writes
// afterwards.
func (c *Center) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	for _, entry := range c.pending {
		c.cancelLocked(entry)
	}
	c.mu.Unlock()

	c.fires.Wait()

	if c.journal != nil {
		if err := c.journal.Close(); err != nil {
			c.logger.Error("journal close failed", "error", err)
		}
	}
	c.logger.Info("alert center stopped")
}

// updateCountsLocked pushes queue sizes to the metrics gauges. Caller
// holds c.mu.
func (c *Center) updateCountsLocked() {
	if c.metrics == nil {
		return
	}
	c.metrics.SetPendingCount(len(c.pending))
	c.metrics.SetDeliveredCount(len(c.delivered))
}

// recordOp records one store operation when metrics are configured.
func (c *Center) recordOp(op, status string, start time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.RecordOperation(op, status, time.Since(start))
}
