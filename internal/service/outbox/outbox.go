package outbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	domrepo "TradePulse/internal/domain/repository"
	"TradePulse/pkg/logger"
	"TradePulse/pkg/util"
)

// WriteFunc performs one attempt of a sink write. It must honour ctx.
type WriteFunc = func(ctx context.Context) error

type DropPolicy string

const (
	DropOldest DropPolicy = "drop_oldest"
	DropNewest DropPolicy = "drop_newest"
)

type Config struct {
	BufferSize   int
	MaxAttempts  int
	BackoffMin   time.Duration
	BackoffMax   time.Duration
	WriteTimeout time.Duration
	DropPolicy   DropPolicy
}

func DefaultConfig() Config {
	return Config{
		BufferSize:   64,
		MaxAttempts:  5,
		BackoffMin:   100 * time.Millisecond,
		BackoffMax:   5 * time.Second,
		WriteTimeout: 3 * time.Second,
		DropPolicy:   DropOldest,
	}
}

type laneKey struct {
	sink string
	key  string
}

type item struct {
	write    WriteFunc
	enqueued time.Time
}

// lane serialises writes of one (sink, key) pair so a slow or failing
// sink for one symbol never delays another.
type lane struct {
	laneKey
	mu     sync.Mutex
	items  []item
	signal chan struct{}
}

// Outbox runs sink writes off the caller's goroutine with a bounded
// buffer, per-write timeout and bounded retries per lane.
type Outbox struct {
	cfg     Config
	metrics domrepo.Metrics
	log     *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	quit   chan struct{}

	mu     sync.Mutex
	lanes  map[laneKey]*lane
	closed bool
	wg     sync.WaitGroup
}

func New(cfg Config, metrics domrepo.Metrics, log *logger.Logger) *Outbox {
	def := DefaultConfig()
	if cfg.BufferSize < 1 {
		cfg.BufferSize = def.BufferSize
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.BackoffMin <= 0 {
		cfg.BackoffMin = def.BackoffMin
	}
	if cfg.BackoffMax < cfg.BackoffMin {
		cfg.BackoffMax = cfg.BackoffMin
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.DropPolicy == "" {
		cfg.DropPolicy = def.DropPolicy
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Outbox{
		cfg:     cfg,
		metrics: metrics,
		log:     log.With(logger.String("component", "outbox")),
		ctx:     ctx,
		cancel:  cancel,
		quit:    make(chan struct{}),
		lanes:   make(map[laneKey]*lane),
	}
}

// Submit queues fn on the (sink, key) lane. It reports false when the
// item, or with DropOldest the oldest queued item, was dropped instead.
func (o *Outbox) Submit(sink, key string, fn WriteFunc) bool {
	l, ok := o.lane(sink, key)
	if !ok {
		o.metrics.RecordSinkDrop(sink)
		return false
	}

	accepted := true
	l.mu.Lock()
	if len(l.items) >= o.cfg.BufferSize {
		accepted = false
		o.metrics.RecordSinkDrop(sink)
		if o.cfg.DropPolicy == DropOldest {
			l.items[0] = item{}
			l.items = append(l.items[1:], item{write: fn, enqueued: time.Now()})
		}
	} else {
		l.items = append(l.items, item{write: fn, enqueued: time.Now()})
	}
	l.mu.Unlock()

	select {
	case l.signal <- struct{}{}:
	default:
	}
	return accepted
}

func (o *Outbox) lane(sink, key string) (*lane, bool) {
	k := laneKey{sink: sink, key: key}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil, false
	}
	if l, ok := o.lanes[k]; ok {
		return l, true
	}
	l := &lane{laneKey: k, signal: make(chan struct{}, 1)}
	o.lanes[k] = l
	o.wg.Add(1)
	go o.runLane(l)
	return l, true
}

func (l *lane) pop() (item, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.items) == 0 {
		return item{}, false
	}
	it := l.items[0]
	l.items[0] = item{}
	l.items = l.items[1:]
	return it, true
}

func (o *Outbox) runLane(l *lane) {
	defer o.wg.Done()
	for {
		it, ok := l.pop()
		if ok {
			o.deliver(l, it)
			continue
		}
		select {
		case <-l.signal:
		case <-o.quit:
			// flush what was queued before Close
			for it, ok := l.pop(); ok; it, ok = l.pop() {
				o.deliver(l, it)
			}
			return
		}
	}
}

func (o *Outbox) deliver(l *lane, it item) {
	var err error
	for attempt := 1; attempt <= o.cfg.MaxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(o.ctx, o.cfg.WriteTimeout)
		err = it.write(ctx)
		cancel()
		if err == nil {
			o.metrics.RecordSinkWrite(l.sink)
			o.metrics.RecordLatency("sink_"+l.sink, time.Since(it.enqueued).Seconds())
			return
		}

		o.metrics.RecordSinkFailure(l.sink)
		if attempt == o.cfg.MaxAttempts || o.ctx.Err() != nil {
			break
		}
		o.metrics.RecordSinkRetry(l.sink)
		o.log.Debug("sink write failed, retrying",
			logger.String("sink", l.sink),
			logger.Symbol(l.key),
			logger.Int("attempt", attempt),
			logger.Error(err),
		)

		select {
		case <-time.After(util.BackoffWithJitter(o.cfg.BackoffMin, o.cfg.BackoffMax, attempt)):
		case <-o.ctx.Done():
		}
	}

	o.metrics.RecordSinkDegraded(l.sink)
	o.log.Error("sink unavailable, dropping write",
		logger.String("sink", l.sink),
		logger.Symbol(l.key),
		logger.Error(err),
	)
}

// Close stops accepting work and flushes queued writes. When ctx expires
// first, in-flight writes and backoffs are cancelled.
func (o *Outbox) Close(ctx context.Context) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	close(o.quit)
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		o.cancel()
		return nil
	case <-ctx.Done():
		o.cancel()
		<-done
		return fmt.Errorf("outbox flush: %w", ctx.Err())
	}
}
