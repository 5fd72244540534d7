package alertcenter

import (
	"context"
	"time"

	"github.com/tkoskin/headsup/internal/notification"
)

// Journal scopes naming the two alert queues.
const (
	ScopePending   = "pending"
	ScopeDelivered = "delivered"
)

// DeliveredAlert is an alert that reached its fire time, retained in
// delivery history until retention pruning or an explicit remove.
type DeliveredAlert struct {
	Alert   notification.Alert `json:"alert"`
	FiredAt time.Time          `json:"fired_at"`
}

// Journal persists alert store transitions so scheduled alerts survive
// process restarts. All methods must be safe for concurrent use. The
// center treats journal failures as non-fatal; they are logged and the
// in-memory state remains authoritative.
type Journal interface {
	// RecordAdd upserts a pending alert row, replacing any previous
	// state stored under the same key.
	RecordAdd(ctx context.Context, alert notification.Alert) error

	// RecordFired moves a pending row to the delivered state.
	RecordFired(ctx context.Context, key string, firedAt time.Time) error

	// RecordRemoved deletes rows for the given keys in the given scope.
	RecordRemoved(ctx context.Context, scope string, keys ...string) error

	// Restore loads both queues. Called once while the center starts.
	Restore(ctx context.Context) (pending []notification.Alert, delivered []DeliveredAlert, err error)

	// Prune deletes delivered rows that fired before the cutoff and
	// reports how many rows were removed.
	Prune(ctx context.Context, cutoff time.Time) (int64, error)

	// Close releases the underlying storage.
	Close() error
}
