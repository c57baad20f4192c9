package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"TradePulse/internal/domain/models"
)

type captureDispatcher struct {
	mu        sync.Mutex
	snapshots []models.MetricsSnapshot
	alerts    []models.AlertEvent
	hold      chan struct{} // when set, DispatchSnapshot waits on it
	entered   chan struct{}
	panicOnce bool
}

func (d *captureDispatcher) DispatchSnapshot(s models.MetricsSnapshot) {
	d.mu.Lock()
	hold, entered := d.hold, d.entered
	if d.panicOnce {
		d.panicOnce = false
		d.mu.Unlock()
		panic("sink exploded")
	}
	d.mu.Unlock()

	if hold != nil {
		if entered != nil {
			entered <- struct{}{}
		}
		<-hold
	}

	d.mu.Lock()
	d.snapshots = append(d.snapshots, s)
	d.mu.Unlock()
}

func (d *captureDispatcher) DispatchAlert(a models.AlertEvent) {
	d.mu.Lock()
	d.alerts = append(d.alerts, a)
	d.mu.Unlock()
}

func (d *captureDispatcher) snapshotCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.snapshots)
}

func (d *captureDispatcher) lastSnapshot() models.MetricsSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshots[len(d.snapshots)-1]
}

func (d *captureDispatcher) alertList() []models.AlertEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]models.AlertEvent(nil), d.alerts...)
}

// simClock is a settable clock shared by router and test.
type simClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *simClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *simClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitIngested(t *testing.T, r *IngressRouter, symbol string, n uint64) {
	t.Helper()
	waitFor(t, "ingestion", func() bool {
		d, err := r.Inspect(context.Background(), symbol)
		return err == nil && d.Ingested == n
	})
}

func stopRouter(t *testing.T, r *IngressRouter) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := r.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}
