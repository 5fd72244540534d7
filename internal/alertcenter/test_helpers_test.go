package alertcenter

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tkoskin/headsup/internal/notification"
)

const (
	waitTimeout = 2 * time.Second
	waitTick    = 5 * time.Millisecond
)

// fakeJournal records journal calls and serves canned restore data.
type fakeJournal struct {
	mu        sync.Mutex
	ops       []string
	pending   []notification.Alert
	delivered []DeliveredAlert
	closed    bool
}

func (j *fakeJournal) RecordAdd(_ context.Context, alert notification.Alert) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ops = append(j.ops, "add:"+alert.Key)
	return nil
}

func (j *fakeJournal) RecordFired(_ context.Context, key string, _ time.Time) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ops = append(j.ops, "fired:"+key)
	return nil
}

func (j *fakeJournal) RecordRemoved(_ context.Context, scope string, keys ...string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, key := range keys {
		j.ops = append(j.ops, "removed:"+scope+":"+key)
	}
	return nil
}

func (j *fakeJournal) Restore(_ context.Context) ([]notification.Alert, []DeliveredAlert, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]notification.Alert(nil), j.pending...),
		append([]DeliveredAlert(nil), j.delivered...), nil
}

func (j *fakeJournal) Prune(_ context.Context, _ time.Time) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ops = append(j.ops, "prune")
	return 0, nil
}

func (j *fakeJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.closed = true
	return nil
}

func (j *fakeJournal) opLog() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.ops...)
}

func (j *fakeJournal) wasClosed() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.closed
}

// fireRecorder collects alerts handed to the delivery hook.
type fireRecorder struct {
	mu    sync.Mutex
	fired []notification.Alert
}

func (r *fireRecorder) hook(alert notification.Alert) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fired = append(r.fired, alert)
}

func (r *fireRecorder) alerts() []notification.Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notification.Alert(nil), r.fired...)
}

// fakeTarget records deliveries and optionally fails them.
type fakeTarget struct {
	name string
	err  error

	mu   sync.Mutex
	sent []notification.Alert
}

func (t *fakeTarget) Name() string { return t.name }

func (t *fakeTarget) Send(_ context.Context, alert notification.Alert) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return t.err
	}
	t.sent = append(t.sent, alert)
	return nil
}

func (t *fakeTarget) delivered() []notification.Alert {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]notification.Alert(nil), t.sent...)
}

// newTestCenter builds a center with the given config and registers
// cleanup with the test.
func newTestCenter(t *testing.T, config *Config) *Center {
	t.Helper()
	center, err := New(config)
	require.NoError(t, err)
	t.Cleanup(center.Close)
	return center
}
