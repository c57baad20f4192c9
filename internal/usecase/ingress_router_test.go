package usecase

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"TradePulse/internal/domain"
	"TradePulse/internal/domain/models"
	"TradePulse/pkg/logger"
	"TradePulse/pkg/metrics"
)

func newTestRouter(cfg RouterConfig, d *captureDispatcher, clock *simClock) *IngressRouter {
	if cfg.State == (StateConfig{}) {
		cfg.State = DefaultStateConfig()
	}
	return NewIngressRouter(cfg, d, metrics.Noop{}, logger.Nop(), WithRouterClock(clock.Now))
}

func TestRouterPreservesPerSymbolOrder(t *testing.T) {
	clock := &simClock{now: time.UnixMilli(1_000_000)}
	d := &captureDispatcher{}
	r := newTestRouter(RouterConfig{MailboxSize: 8}, d, clock)
	defer stopRouter(t, r)

	prices := []float64{100, 110, 90, 120, 105, 130, 95}
	want9 := 0.0
	for i, p := range prices {
		if i == 0 {
			want9 = p
		} else {
			want9 = p*0.2 + want9*0.8
		}
		if err := r.Ingest(context.Background(), models.TradeEvent{Symbol: "aapl", Price: p, Volume: 1, EventTimeMs: 1_000_000 + int64(i)}); err != nil {
			t.Fatalf("ingest: %v", err)
		}
	}
	waitIngested(t, r, "AAPL", uint64(len(prices)))

	dbg, err := r.Inspect(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if math.Abs(dbg.EMA9-want9) > 1e-9 {
		t.Fatalf("ema9 = %v, want %v: trades applied out of order", dbg.EMA9, want9)
	}
	if got := r.Symbols(); len(got) != 1 || got[0] != "AAPL" {
		t.Fatalf("symbols = %v", got)
	}
}

// release lets a worker parked in DispatchSnapshot continue and stops
// further parking.
func release(d *captureDispatcher) {
	d.mu.Lock()
	hold := d.hold
	d.hold = nil
	d.mu.Unlock()
	close(hold)
}

func TestRouterDropPolicy(t *testing.T) {
	clock := &simClock{now: time.UnixMilli(1_000_000)}
	d := &captureDispatcher{hold: make(chan struct{}), entered: make(chan struct{}, 1)}
	r := newTestRouter(RouterConfig{MailboxSize: 1, Backpressure: BackpressureDrop}, d, clock)

	ev := models.TradeEvent{Symbol: "AAPL", Price: 1, Volume: 1, EventTimeMs: 1_000_000}
	if err := r.Ingest(context.Background(), ev); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	waitIngested(t, r, "AAPL", 1)

	// park the worker inside emission
	r.Tick(clock.Now())
	<-d.entered

	if err := r.Ingest(context.Background(), ev); err != nil {
		t.Fatalf("mailbox has room for one: %v", err)
	}
	if err := r.Ingest(context.Background(), ev); !errors.Is(err, domain.ErrMailboxFull) {
		t.Fatalf("err = %v, want ErrMailboxFull", err)
	}

	release(d)
	stopRouter(t, r)
}

func TestRouterBlockPolicyHonoursContext(t *testing.T) {
	clock := &simClock{now: time.UnixMilli(1_000_000)}
	d := &captureDispatcher{hold: make(chan struct{}), entered: make(chan struct{}, 1)}
	r := newTestRouter(RouterConfig{MailboxSize: 1, Backpressure: BackpressureBlock}, d, clock)

	ev := models.TradeEvent{Symbol: "AAPL", Price: 1, Volume: 1, EventTimeMs: 1_000_000}
	_ = r.Ingest(context.Background(), ev)
	waitIngested(t, r, "AAPL", 1)
	r.Tick(clock.Now())
	<-d.entered
	_ = r.Ingest(context.Background(), ev)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := r.Ingest(ctx, ev); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}

	release(d)
	stopRouter(t, r)
}

func TestRouterSymbolLimitAndAllowList(t *testing.T) {
	clock := &simClock{now: time.UnixMilli(1_000_000)}
	r := newTestRouter(RouterConfig{MaxSymbols: 1, AllowedSymbols: []string{"aapl", "msft"}}, &captureDispatcher{}, clock)
	defer stopRouter(t, r)

	ev := func(sym string) models.TradeEvent {
		return models.TradeEvent{Symbol: sym, Price: 1, Volume: 1, EventTimeMs: 1}
	}
	if err := r.Ingest(context.Background(), ev("AAPL")); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if err := r.Ingest(context.Background(), ev("TSLA")); !errors.Is(err, domain.ErrUnknownSymbol) {
		t.Fatalf("err = %v, want ErrUnknownSymbol", err)
	}
	if err := r.Ingest(context.Background(), ev("MSFT")); !errors.Is(err, domain.ErrSymbolLimit) {
		t.Fatalf("err = %v, want ErrSymbolLimit", err)
	}
	if err := r.Ingest(context.Background(), ev(" ")); !errors.Is(err, domain.ErrMalformedTrade) {
		t.Fatalf("err = %v, want ErrMalformedTrade", err)
	}
	if _, err := r.Inspect(context.Background(), "MSFT"); !errors.Is(err, domain.ErrSymbolNotTracked) {
		t.Fatalf("err = %v, want ErrSymbolNotTracked", err)
	}
}

func TestRouterStopDrainsAndEmits(t *testing.T) {
	clock := &simClock{now: time.UnixMilli(1_000_000)}
	d := &captureDispatcher{}
	r := newTestRouter(RouterConfig{MailboxSize: 64}, d, clock)

	for i := 0; i < 10; i++ {
		_ = r.Ingest(context.Background(), models.TradeEvent{Symbol: "AAPL", Price: float64(100 + i), Volume: 1, EventTimeMs: 1_000_000 + int64(i)})
	}
	stopRouter(t, r)

	if d.snapshotCount() != 1 {
		t.Fatalf("snapshots = %d, want one final emission", d.snapshotCount())
	}
	if last := d.lastSnapshot(); last.Price != 109 {
		t.Fatalf("final price = %v, want 109", last.Price)
	}
	if err := r.Ingest(context.Background(), models.TradeEvent{Symbol: "AAPL", Price: 1, EventTimeMs: 1}); !errors.Is(err, domain.ErrRouterClosed) {
		t.Fatalf("err = %v, want ErrRouterClosed", err)
	}
}

func TestWorkerReseedsOnCorruption(t *testing.T) {
	clock := &simClock{now: time.UnixMilli(1_000_000)}
	d := &captureDispatcher{}
	r := newTestRouter(RouterConfig{}, d, clock)
	defer stopRouter(t, r)

	_ = r.Ingest(context.Background(), models.TradeEvent{Symbol: "AAPL", Price: math.Inf(1), Volume: 1, EventTimeMs: 1_000_000})
	_ = r.Ingest(context.Background(), models.TradeEvent{Symbol: "MSFT", Price: 10, Volume: 1, EventTimeMs: 1_000_000})
	waitIngested(t, r, "AAPL", 1)
	waitIngested(t, r, "MSFT", 1)

	r.Tick(clock.Now())
	waitFor(t, "restart", func() bool {
		dbg, _ := r.Inspect(context.Background(), "AAPL")
		return dbg.Restarts == 1
	})
	waitFor(t, "healthy symbol emission", func() bool { return d.snapshotCount() == 1 })

	dbg, _ := r.Inspect(context.Background(), "AAPL")
	if dbg.Samples != 0 {
		t.Fatalf("corrupted state not reseeded: %+v", dbg)
	}
	if d.lastSnapshot().Symbol != "MSFT" {
		t.Fatalf("corrupted snapshot escaped: %+v", d.lastSnapshot())
	}
	if other, _ := r.Inspect(context.Background(), "MSFT"); other.Restarts != 0 || other.Samples != 1 {
		t.Fatalf("other worker disturbed: %+v", other)
	}
}

func TestWorkerRecoversFromPanic(t *testing.T) {
	clock := &simClock{now: time.UnixMilli(1_000_000)}
	d := &captureDispatcher{panicOnce: true}
	r := newTestRouter(RouterConfig{}, d, clock)
	defer stopRouter(t, r)

	_ = r.Ingest(context.Background(), models.TradeEvent{Symbol: "AAPL", Price: 10, Volume: 1, EventTimeMs: 1_000_000})
	waitIngested(t, r, "AAPL", 1)
	r.Tick(clock.Now())
	waitFor(t, "restart", func() bool {
		dbg, _ := r.Inspect(context.Background(), "AAPL")
		return dbg.Restarts == 1
	})

	_ = r.Ingest(context.Background(), models.TradeEvent{Symbol: "AAPL", Price: 11, Volume: 1, EventTimeMs: 1_000_001})
	waitIngested(t, r, "AAPL", 2)
	r.Tick(clock.Now())
	waitFor(t, "emission after recovery", func() bool { return d.snapshotCount() == 1 })
}

type ingestCounter struct {
	metrics.Noop
	n atomic.Int64
}

func (c *ingestCounter) RecordIngested(string) { c.n.Add(1) }

func TestRouterStopLosesNoAcceptedTrade(t *testing.T) {
	for _, policy := range []Backpressure{BackpressureBlock, BackpressureDrop} {
		t.Run(string(policy), func(t *testing.T) {
			clock := &simClock{now: time.UnixMilli(1_000_000)}
			m := &ingestCounter{}
			r := NewIngressRouter(RouterConfig{
				State:        DefaultStateConfig(),
				MailboxSize:  4,
				Backpressure: policy,
			}, &captureDispatcher{}, m, logger.Nop(), WithRouterClock(clock.Now))

			var accepted atomic.Int64
			var wg sync.WaitGroup
			started := make(chan struct{}, 4)
			for p := 0; p < 4; p++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					started <- struct{}{}
					for i := int64(0); ; i++ {
						err := r.Ingest(context.Background(), models.TradeEvent{Symbol: "AAPL", Price: 1, Volume: 1, EventTimeMs: 1_000_000 + i})
						switch {
						case err == nil:
							accepted.Add(1)
						case errors.Is(err, domain.ErrRouterClosed):
							return
						case !errors.Is(err, domain.ErrMailboxFull):
							t.Errorf("ingest: %v", err)
							return
						}
					}
				}()
			}
			for p := 0; p < 4; p++ {
				<-started
			}
			waitFor(t, "some ingestion", func() bool { return m.n.Load() > 100 })

			stopRouter(t, r)
			wg.Wait()

			if got, want := m.n.Load(), accepted.Load(); got != want {
				t.Fatalf("applied %d trades, accepted %d", got, want)
			}
		})
	}
}
