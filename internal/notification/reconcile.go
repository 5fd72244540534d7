package notification

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/tkoskin/headsup/internal/observability/metrics"
)

// storePlan is one batch of alert store writes collected from a pass.
// Clears always run before adds.
type storePlan struct {
	pendingClears   []string
	deliveredClears []string
	adds            []Alert
}

func (p *storePlan) empty() bool {
	return len(p.pendingClears) == 0 && len(p.deliveredClears) == 0 && len(p.adds) == 0
}

// Reconcile runs a full pass over every registered provider in
// registration order. The banner list is replaced and published before
// the store plan is handed to the worker; store writes complete
// asynchronously and are not cancelled by the caller returning.
func (m *Manager) Reconcile() {
	start := time.Now()

	m.mu.Lock()
	var plan storePlan
	banners := make([]Banner, 0, len(m.registry))
	lastBanner := make(map[string]Banner, len(m.registry))
	for _, entry := range m.registry {
		key := entry.provider.Key()
		if entry.alerts != nil {
			if entry.alerts.ClearPending() {
				plan.pendingClears = append(plan.pendingClears, key)
			}
			if entry.alerts.ClearDelivered() {
				plan.deliveredClears = append(plan.deliveredClears, key)
			}
			if req := entry.alerts.AlertRequest(); req != nil {
				plan.adds = append(plan.adds, *req)
			}
		}
		if entry.banners != nil {
			if b := entry.banners.Banner(); b != nil {
				lastBanner[key] = *b
				if m.maxBanners <= 0 || len(banners) < m.maxBanners {
					banners = append(banners, *b)
				}
			}
		}
	}
	m.banners = banners
	m.lastBanner = lastBanner
	m.mu.Unlock()

	m.publish(banners)
	m.enqueuePlan(plan)

	if m.metrics != nil {
		m.metrics.RecordReconcile(time.Since(start))
	}
	if m.debug {
		m.logger.Debug("reconcile pass completed",
			"banners", len(banners),
			"pending_clears", len(plan.pendingClears),
			"delivered_clears", len(plan.deliveredClears),
			"adds", len(plan.adds),
			"duration_ms", time.Since(start).Milliseconds())
	}
}

// Invalidate re-queries a single provider and patches only its entries.
// Every other provider's published banner carries over untouched, so
// subscribers can diff the list by value. Unknown keys are logged and
// ignored.
func (m *Manager) Invalidate(key string) {
	m.mu.Lock()
	entry, ok := m.byKey[key]
	if !ok {
		m.mu.Unlock()
		m.logger.Warn("invalidation for unregistered provider", "key", key)
		return
	}

	var plan storePlan
	if entry.alerts != nil {
		if entry.alerts.ClearPending() {
			plan.pendingClears = append(plan.pendingClears, key)
		}
		if entry.alerts.ClearDelivered() {
			plan.deliveredClears = append(plan.deliveredClears, key)
		}
		if req := entry.alerts.AlertRequest(); req != nil {
			plan.adds = append(plan.adds, *req)
		}
	}

	var published []Banner
	hasBanners := entry.banners != nil
	if hasBanners {
		if fresh := entry.banners.Banner(); fresh != nil {
			m.lastBanner[key] = *fresh
		} else {
			delete(m.lastBanner, key)
		}
		m.banners = m.rebuildBannersLocked()
		published = m.banners
	}
	m.mu.Unlock()

	if hasBanners {
		m.publish(published)
	}
	m.enqueuePlan(plan)

	if m.metrics != nil {
		m.metrics.RecordInvalidation(key)
	}
	if m.debug {
		m.logger.Debug("provider invalidated",
			"key", key,
			"pending_clears", len(plan.pendingClears),
			"delivered_clears", len(plan.deliveredClears),
			"adds", len(plan.adds))
	}
}

// rebuildBannersLocked assembles the published list in registration
// order from the per-provider cache. Callers hold m.mu.
func (m *Manager) rebuildBannersLocked() []Banner {
	out := make([]Banner, 0, len(m.lastBanner))
	for _, entry := range m.registry {
		b, ok := m.lastBanner[entry.provider.Key()]
		if !ok {
			continue
		}
		if m.maxBanners > 0 && len(out) >= m.maxBanners {
			break
		}
		out = append(out, b)
	}
	return out
}

// enqueuePlan hands a batch to the store worker. Plans submitted after
// shutdown are dropped.
func (m *Manager) enqueuePlan(plan storePlan) {
	if plan.empty() {
		return
	}
	select {
	case m.ops <- plan:
	case <-m.ctx.Done():
		m.logger.Debug("store plan dropped during shutdown")
	}
}

// storeWorker applies queued plans one at a time. Running every store
// write on this goroutine keeps clears ahead of adds within a batch and
// keeps batches from successive passes from interleaving.
func (m *Manager) storeWorker() {
	defer m.workerWG.Done()
	for {
		select {
		case <-m.ctx.Done():
			return
		case plan := <-m.ops:
			m.applyPlan(&plan)
		}
	}
}

// applyPlan issues one batch of store writes: clears first, then adds
// behind the permission gate. Failures are logged per key and never
// abort the rest of the batch.
func (m *Manager) applyPlan(plan *storePlan) {
	ctx, cancel := context.WithTimeout(m.ctx, m.storeTimeout)
	defer cancel()

	if len(plan.pendingClears) > 0 {
		if err := m.center.RemovePending(ctx, plan.pendingClears...); err != nil {
			m.logger.Error("failed to clear pending alerts",
				"keys", plan.pendingClears,
				"error", err)
		} else if m.metrics != nil {
			m.metrics.AddAlertClears("pending", len(plan.pendingClears))
		}
	}
	if len(plan.deliveredClears) > 0 {
		if err := m.center.RemoveDelivered(ctx, plan.deliveredClears...); err != nil {
			m.logger.Error("failed to clear delivered alerts",
				"keys", plan.deliveredClears,
				"error", err)
		} else if m.metrics != nil {
			m.metrics.AddAlertClears("delivered", len(plan.deliveredClears))
		}
	}

	if len(plan.adds) == 0 {
		return
	}
	if !m.ensureAuthorized(ctx) {
		for i := range plan.adds {
			m.recordAlertRequest(plan.adds[i].Key, metrics.StatusUnauthorized)
		}
		return
	}
	for i := range plan.adds {
		m.addAlert(ctx, &plan.adds[i])
	}
}

// ensureAuthorized checks the alert store permission state, prompting
// the user once when it has never been determined. Denied and ephemeral
// are steady states; scheduling is skipped without raising errors.
func (m *Manager) ensureAuthorized(ctx context.Context) bool {
	status := m.center.AuthorizationStatus(ctx)
	if m.metrics != nil {
		m.metrics.SetAuthorizationState(int(status))
	}

	switch status {
	case AuthorizationAuthorized, AuthorizationProvisional:
		return true
	case AuthorizationNotDetermined:
		granted, err := m.center.RequestAuthorization(ctx, DefaultAuthorizationOptions)
		if err != nil {
			m.logger.Error("authorization request failed", "error", err)
			if m.metrics != nil {
				m.metrics.RecordAuthorizationRequest("error")
			}
			return false
		}
		outcome := "denied"
		if granted {
			outcome = "granted"
		}
		if m.metrics != nil {
			m.metrics.RecordAuthorizationRequest(outcome)
		}
		return granted
	default:
		if m.debug {
			m.logger.Debug("alert scheduling skipped",
				"authorization", status.String())
		}
		return false
	}
}

// addAlert schedules one alert, suppressing requests that duplicate a
// recent successful one.
func (m *Manager) addAlert(ctx context.Context, alert *Alert) {
	if m.isDuplicate(ctx, alert) {
		m.recordAlertRequest(alert.Key, metrics.StatusDuplicate)
		if m.debug {
			m.logger.Debug("duplicate alert suppressed",
				"key", alert.Key,
				"fire_at", alert.FireAt)
		}
		return
	}

	if err := m.center.Add(ctx, *alert); err != nil {
		m.recordAlertRequest(alert.Key, metrics.StatusError)
		m.logger.Error("failed to schedule alert",
			"key", alert.Key,
			"fire_at", alert.FireAt,
			"error", err)
		return
	}

	if m.dedup != nil {
		m.dedup.Set(alert.Key, alertFingerprint(alert), gocache.DefaultExpiration)
	}
	m.recordAlertRequest(alert.Key, metrics.StatusScheduled)
	if m.debug {
		m.logger.Debug("alert scheduled",
			"key", alert.Key,
			"fire_at", alert.FireAt)
	}
}

// isDuplicate reports whether an identical alert was scheduled within
// the dedup window and is still pending in the store. A failed pending
// query counts as not duplicated; scheduling again is harmless because
// the store replaces by key.
func (m *Manager) isDuplicate(ctx context.Context, alert *Alert) bool {
	if m.dedup == nil {
		return false
	}

	cached, found := m.dedup.Get(alert.Key)
	if !found {
		return false
	}
	if fingerprint, ok := cached.(string); !ok || fingerprint != alertFingerprint(alert) {
		return false
	}

	pending, err := m.center.PendingAlerts(ctx)
	if err != nil {
		return false
	}
	for i := range pending {
		if pending[i].Key == alert.Key &&
			pending[i].FireAt.Equal(alert.FireAt) &&
			pending[i].Body == alert.Body &&
			pending[i].Sound == alert.Sound {
			return true
		}
	}
	return false
}

func (m *Manager) recordAlertRequest(key, status string) {
	if m.metrics != nil {
		m.metrics.RecordAlertRequest(key, status)
	}
}

func alertFingerprint(alert *Alert) string {
	return fmt.Sprintf("%s|%d|%t|%s", alert.Key, alert.FireAt.UnixNano(), alert.Sound, alert.Body)
}
