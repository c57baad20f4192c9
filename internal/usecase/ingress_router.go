package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"TradePulse/internal/domain"
	"TradePulse/internal/domain/models"
	domrepo "TradePulse/internal/domain/repository"
	"TradePulse/internal/domain/service"
	"TradePulse/internal/service/ratelimit"
	"TradePulse/pkg/logger"
	"TradePulse/pkg/util"
)

type Backpressure string

const (
	BackpressureBlock Backpressure = "block"
	BackpressureDrop  Backpressure = "drop"
)

type RouterConfig struct {
	State          StateConfig
	MailboxSize    int
	Backpressure   Backpressure
	MaxSymbols     int      // 0 means unbounded
	AllowedSymbols []string // empty means any symbol
}

// RouterOption configures IngressRouter.
type RouterOption func(*IngressRouter)

// WithRouterClock replaces time.Now, mostly for tests.
func WithRouterClock(clock func() time.Time) RouterOption {
	return func(r *IngressRouter) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithDropWarnLimit sets how many mailbox-drop warnings per symbol and
// second are logged.
func WithDropWarnLimit(burst, perSec float64) RouterOption {
	return func(r *IngressRouter) {
		r.warnBurst, r.warnRate = burst, perSec
	}
}

// IngressRouter owns the per-symbol workers: it creates them lazily, hands
// every trade to the worker of its symbol and fans emission ticks out.
type IngressRouter struct {
	cfg        RouterConfig
	allowed    map[string]struct{}
	dispatcher service.Dispatcher
	metrics    domrepo.Metrics
	log        *logger.Logger
	clock      func() time.Time
	limiter    *ratelimit.Limiter
	warnBurst  float64
	warnRate   float64

	mu      sync.RWMutex
	workers map[string]*SymbolWorker
	closed  bool
	wg      sync.WaitGroup
}

func NewIngressRouter(cfg RouterConfig, d service.Dispatcher, m domrepo.Metrics, log *logger.Logger, opts ...RouterOption) *IngressRouter {
	if cfg.MailboxSize < 1 {
		cfg.MailboxSize = 1024
	}
	if cfg.Backpressure == "" {
		cfg.Backpressure = BackpressureBlock
	}
	r := &IngressRouter{
		cfg:        cfg,
		allowed:    util.SymbolSet(cfg.AllowedSymbols),
		dispatcher: d,
		metrics:    m,
		log:        log.With(logger.String("component", "router")),
		clock:      time.Now,
		limiter:    ratelimit.New(),
		warnBurst:  1,
		warnRate:   0.2,
		workers:    make(map[string]*SymbolWorker),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Ingest routes t to its symbol's worker, creating it on first sight.
// Trades of one symbol reach the worker in the order Ingest is called.
func (r *IngressRouter) Ingest(ctx context.Context, t models.TradeEvent) error {
	t.Symbol = util.NormalizeSymbol(t.Symbol)
	if t.Symbol == "" {
		r.metrics.RecordMalformed("symbol")
		return fmt.Errorf("%w: empty symbol", domain.ErrMalformedTrade)
	}
	if r.allowed != nil {
		if _, ok := r.allowed[t.Symbol]; !ok {
			r.metrics.RecordRejected("unknown_symbol")
			r.log.Debug("dropping trade for unknown symbol", logger.Symbol(t.Symbol))
			return fmt.Errorf("%w: %s", domain.ErrUnknownSymbol, t.Symbol)
		}
	}

	w, err := r.worker(t.Symbol)
	if err != nil {
		return err
	}

	err = w.offer(ctx, t, r.cfg.Backpressure == BackpressureBlock)
	if errors.Is(err, domain.ErrMailboxFull) {
		r.metrics.RecordMailboxDrop(t.Symbol)
		if r.limiter.Allow(t.Symbol, r.warnBurst, r.warnRate) {
			r.log.Warn("mailbox full, dropping trade",
				logger.Symbol(t.Symbol),
				logger.Int("mailbox_size", r.cfg.MailboxSize),
			)
		}
	}
	return err
}

func (r *IngressRouter) worker(symbol string) (*SymbolWorker, error) {
	r.mu.RLock()
	w, ok := r.workers[symbol]
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return nil, domain.ErrRouterClosed
	}
	if ok {
		return w, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, domain.ErrRouterClosed
	}
	if w, ok := r.workers[symbol]; ok {
		return w, nil
	}
	if r.cfg.MaxSymbols > 0 && len(r.workers) >= r.cfg.MaxSymbols {
		r.metrics.RecordRejected("symbol_limit")
		r.log.Error("symbol limit reached", logger.Symbol(symbol), logger.Int("max_symbols", r.cfg.MaxSymbols))
		return nil, fmt.Errorf("%w: %d", domain.ErrSymbolLimit, r.cfg.MaxSymbols)
	}

	w = newSymbolWorker(symbol, r.cfg.State, r.cfg.MailboxSize, r.dispatcher, r.metrics, r.log, r.clock)
	r.workers[symbol] = w
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		w.run()
	}()

	r.metrics.RecordActiveSymbols(len(r.workers))
	r.log.Info("symbol worker started", logger.Symbol(symbol))
	return w, nil
}

// Tick asks every worker to emit. Workers compute their snapshots on
// their own goroutines; Tick never blocks on them.
func (r *IngressRouter) Tick(now time.Time) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, w := range r.workers {
		w.tick(now)
	}
}

// Symbols lists tracked symbols in lexical order.
func (r *IngressRouter) Symbols() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.workers))
	for s := range r.workers {
		out = append(out, s)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Inspect asks the worker of symbol for a debug view of its state.
func (r *IngressRouter) Inspect(ctx context.Context, symbol string) (models.SymbolDebug, error) {
	symbol = util.NormalizeSymbol(symbol)
	r.mu.RLock()
	w, ok := r.workers[symbol]
	r.mu.RUnlock()
	if !ok {
		return models.SymbolDebug{}, fmt.Errorf("%w: %s", domain.ErrSymbolNotTracked, symbol)
	}
	return w.inspect(ctx)
}

// Stop refuses new trades, lets every worker drain its mailbox and emit a
// final snapshot, and waits for them until ctx expires.
func (r *IngressRouter) Stop(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	workers := make([]*SymbolWorker, 0, len(r.workers))
	for _, w := range r.workers {
		workers = append(workers, w)
	}
	r.mu.Unlock()

	for _, w := range workers {
		w.shutdown()
	}
	n := len(workers)

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.log.Info("router stopped", logger.Int("workers", n))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timeout waiting for symbol workers: %w", ctx.Err())
	}
}

var (
	_ service.Ingestor  = (*IngressRouter)(nil)
	_ service.Inspector = (*IngressRouter)(nil)
)
