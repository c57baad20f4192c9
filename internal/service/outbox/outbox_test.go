package outbox

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"TradePulse/pkg/logger"
	"TradePulse/pkg/metrics"
)

type countingMetrics struct {
	metrics.Noop
	mu       sync.Mutex
	writes   map[string]int
	drops    map[string]int
	degraded map[string]int
	retries  map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{
		writes:   map[string]int{},
		drops:    map[string]int{},
		degraded: map[string]int{},
		retries:  map[string]int{},
	}
}

func (m *countingMetrics) inc(c map[string]int, k string) {
	m.mu.Lock()
	c[k]++
	m.mu.Unlock()
}

func (m *countingMetrics) get(c map[string]int, k string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return c[k]
}

func (m *countingMetrics) RecordSinkWrite(s string)    { m.inc(m.writes, s) }
func (m *countingMetrics) RecordSinkDrop(s string)     { m.inc(m.drops, s) }
func (m *countingMetrics) RecordSinkDegraded(s string) { m.inc(m.degraded, s) }
func (m *countingMetrics) RecordSinkRetry(s string)    { m.inc(m.retries, s) }

func testConfig() Config {
	return Config{
		BufferSize:   4,
		MaxAttempts:  3,
		BackoffMin:   time.Millisecond,
		BackoffMax:   2 * time.Millisecond,
		WriteTimeout: 50 * time.Millisecond,
		DropPolicy:   DropOldest,
	}
}

func closeOutbox(t *testing.T, o *Outbox) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestOutboxRetriesUntilSuccess(t *testing.T) {
	m := newCountingMetrics()
	o := New(testConfig(), m, logger.Nop())

	var calls int32
	o.Submit("redis", "AAPL", func(context.Context) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("connection refused")
		}
		return nil
	})
	closeOutbox(t, o)

	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("calls = %d, want 3", got)
	}
	if m.get(m.writes, "redis") != 1 || m.get(m.retries, "redis") != 2 || m.get(m.degraded, "redis") != 0 {
		t.Fatalf("writes=%d retries=%d degraded=%d", m.get(m.writes, "redis"), m.get(m.retries, "redis"), m.get(m.degraded, "redis"))
	}
}

func TestOutboxGivesUpAfterMaxAttempts(t *testing.T) {
	m := newCountingMetrics()
	o := New(testConfig(), m, logger.Nop())

	var calls int32
	o.Submit("postgres", "AAPL", func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("down")
	})
	closeOutbox(t, o)

	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("calls = %d, want 3", got)
	}
	if m.get(m.degraded, "postgres") != 1 {
		t.Fatalf("degraded = %d, want 1", m.get(m.degraded, "postgres"))
	}
}

func TestOutboxWriteTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.MaxAttempts = 1
	m := newCountingMetrics()
	o := New(cfg, m, logger.Nop())

	o.Submit("redis", "AAPL", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	closeOutbox(t, o)

	if m.get(m.degraded, "redis") != 1 {
		t.Fatalf("hung write must time out and degrade")
	}
}

// blockLane parks the lane's goroutine inside a write until release is
// closed, so the test controls what is queued behind it.
func blockLane(o *Outbox, sink, key string) (started, release chan struct{}) {
	started, release = make(chan struct{}), make(chan struct{})
	o.Submit(sink, key, func(context.Context) error {
		close(started)
		<-release
		return nil
	})
	return started, release
}

func TestOutboxDropPolicies(t *testing.T) {
	cases := []struct {
		policy DropPolicy
		want   []int
	}{
		{policy: DropOldest, want: []int{2, 3, 4, 5}},
		{policy: DropNewest, want: []int{0, 1, 2, 3}},
	}
	for _, c := range cases {
		t.Run(string(c.policy), func(t *testing.T) {
			cfg := testConfig()
			cfg.DropPolicy = c.policy
			cfg.WriteTimeout = 5 * time.Second
			m := newCountingMetrics()
			o := New(cfg, m, logger.Nop())

			started, release := blockLane(o, "redis", "AAPL")
			<-started

			var mu sync.Mutex
			var got []int
			for i := 0; i < 6; i++ {
				i := i
				o.Submit("redis", "AAPL", func(context.Context) error {
					mu.Lock()
					got = append(got, i)
					mu.Unlock()
					return nil
				})
			}
			close(release)
			closeOutbox(t, o)

			if m.get(m.drops, "redis") != 2 {
				t.Fatalf("drops = %d, want 2", m.get(m.drops, "redis"))
			}
			if len(got) != len(c.want) {
				t.Fatalf("delivered %v, want %v", got, c.want)
			}
			for i := range got {
				if got[i] != c.want[i] {
					t.Fatalf("delivered %v, want %v", got, c.want)
				}
			}
		})
	}
}

func TestOutboxLanesAreIndependent(t *testing.T) {
	cfg := testConfig()
	cfg.WriteTimeout = 5 * time.Second
	o := New(cfg, newCountingMetrics(), logger.Nop())

	started, release := blockLane(o, "redis", "AAPL")
	<-started

	done := make(chan struct{})
	o.Submit("redis", "MSFT", func(context.Context) error {
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("MSFT write waited on the AAPL lane")
	}
	close(release)
	closeOutbox(t, o)
}

func TestOutboxRejectsAfterClose(t *testing.T) {
	m := newCountingMetrics()
	o := New(testConfig(), m, logger.Nop())
	closeOutbox(t, o)

	if o.Submit("redis", "AAPL", func(context.Context) error { return nil }) {
		t.Fatalf("submit after close must be rejected")
	}
}
