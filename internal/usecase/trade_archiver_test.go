package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"TradePulse/internal/domain/models"
	"TradePulse/pkg/logger"
	"TradePulse/pkg/metrics"
)

type fakeArchive struct {
	mu      sync.Mutex
	batches [][]models.TradeEvent
}

func (f *fakeArchive) Init(context.Context) error   { return nil }
func (f *fakeArchive) Health(context.Context) error { return nil }
func (f *fakeArchive) StoreBatch(_ context.Context, trades []models.TradeEvent) error {
	f.mu.Lock()
	f.batches = append(f.batches, trades)
	f.mu.Unlock()
	return nil
}

func (f *fakeArchive) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.batches {
		n += len(b)
	}
	return n
}

func TestTradeArchiverBatchesBySize(t *testing.T) {
	store := &fakeArchive{}
	a := NewTradeArchiver(ArchiverConfig{BufferSize: 100, BatchSize: 3, BatchTimeout: time.Hour}, store, metrics.Noop{}, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { _ = a.Run(ctx); close(done) }()

	for i := 0; i < 7; i++ {
		a.Enqueue(models.TradeEvent{Symbol: "AAPL", Price: 1, EventTimeMs: int64(i + 1)})
	}
	waitFor(t, "two full batches", func() bool { return store.total() >= 6 })
	cancel()
	<-done

	if store.total() != 7 {
		t.Fatalf("archived %d, want 7 including the final flush", store.total())
	}
	for i, b := range store.batches {
		if len(b) > 3 {
			t.Fatalf("batch %d has %d trades", i, len(b))
		}
	}
}

func TestTradeArchiverFlushesOnTimeout(t *testing.T) {
	store := &fakeArchive{}
	a := NewTradeArchiver(ArchiverConfig{BatchSize: 100, BatchTimeout: 5 * time.Millisecond}, store, metrics.Noop{}, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = a.Run(ctx) }()

	a.Enqueue(models.TradeEvent{Symbol: "AAPL", Price: 1, EventTimeMs: 1})
	waitFor(t, "timed flush", func() bool { return store.total() == 1 })
}

func TestTradeArchiverDropsWhenFull(t *testing.T) {
	store := &fakeArchive{}
	a := NewTradeArchiver(ArchiverConfig{BufferSize: 1}, store, metrics.Noop{}, logger.Nop())
	a.Enqueue(models.TradeEvent{Symbol: "AAPL"})
	a.Enqueue(models.TradeEvent{Symbol: "AAPL"}) // must not block
	if len(a.in) != 1 {
		t.Fatalf("buffer len = %d", len(a.in))
	}
}
