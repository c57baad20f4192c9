package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"TradePulse/internal/domain"
	"TradePulse/internal/domain/models"
	domrepo "TradePulse/internal/domain/repository"
	"TradePulse/internal/domain/service"
	"TradePulse/pkg/logger"
)

// SymbolWorker is the single writer of one SymbolState. Trades arrive on a
// bounded mailbox in arrival order; emission ticks arrive on a separate
// channel holding at most one pending tick.
type SymbolWorker struct {
	symbol     string
	cfg        StateConfig
	state      *SymbolState
	mailbox    chan models.TradeEvent
	ticks      chan time.Time
	queries    chan chan models.SymbolDebug
	stop       chan struct{}
	done       chan struct{}
	dispatcher service.Dispatcher
	metrics    domrepo.Metrics
	log        *logger.Logger
	clock      func() time.Time

	// sendMu orders offers against close: every accepted offer has
	// landed in the mailbox before stop is closed, so drain sees it.
	sendMu  sync.RWMutex
	stopped bool

	// owned by the run goroutine
	ingested uint64
	late     uint64
	restarts uint64
}

func newSymbolWorker(symbol string, cfg StateConfig, mailboxSize int, d service.Dispatcher, m domrepo.Metrics, log *logger.Logger, clock func() time.Time) *SymbolWorker {
	if mailboxSize < 1 {
		mailboxSize = 1
	}
	return &SymbolWorker{
		symbol:     symbol,
		cfg:        cfg,
		state:      NewSymbolState(symbol, cfg),
		mailbox:    make(chan models.TradeEvent, mailboxSize),
		ticks:      make(chan time.Time, 1),
		queries:    make(chan chan models.SymbolDebug),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		dispatcher: d,
		metrics:    m,
		log:        log.With(logger.Symbol(symbol)),
		clock:      clock,
	}
}

// offer enqueues t. With block set it waits for mailbox space.
func (w *SymbolWorker) offer(ctx context.Context, t models.TradeEvent, block bool) error {
	w.sendMu.RLock()
	defer w.sendMu.RUnlock()
	if w.stopped {
		return domain.ErrRouterClosed
	}
	if !block {
		select {
		case w.mailbox <- t:
			return nil
		default:
			return domain.ErrMailboxFull
		}
	}
	select {
	case w.mailbox <- t:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// shutdown refuses further offers and tells run to drain. It waits for
// offers already in flight, which the still running worker unblocks.
func (w *SymbolWorker) shutdown() {
	w.sendMu.Lock()
	defer w.sendMu.Unlock()
	if w.stopped {
		return
	}
	w.stopped = true
	close(w.stop)
}

// tick requests an emission. A tick already pending absorbs this one.
func (w *SymbolWorker) tick(now time.Time) {
	select {
	case w.ticks <- now:
	default:
	}
}

func (w *SymbolWorker) inspect(ctx context.Context) (models.SymbolDebug, error) {
	reply := make(chan models.SymbolDebug, 1)
	select {
	case w.queries <- reply:
	case <-w.done:
		return models.SymbolDebug{}, domain.ErrSymbolNotTracked
	case <-ctx.Done():
		return models.SymbolDebug{}, ctx.Err()
	}
	select {
	case d := <-reply:
		return d, nil
	case <-ctx.Done():
		return models.SymbolDebug{}, ctx.Err()
	}
}

func (w *SymbolWorker) run() {
	defer close(w.done)

	for {
		select {
		case t := <-w.mailbox:
			w.guard("apply", func() { w.apply(t) })
		case now := <-w.ticks:
			w.guard("emit", func() { w.emit(now) })
		case reply := <-w.queries:
			d := w.state.Debug()
			d.Ingested, d.Late, d.Restarts = w.ingested, w.late, w.restarts
			d.MailboxDepth = len(w.mailbox)
			reply <- d
		case <-w.stop:
			w.drain()
			return
		}
	}
}

// drain applies whatever is still queued and emits one last time.
func (w *SymbolWorker) drain() {
	for {
		select {
		case t := <-w.mailbox:
			w.guard("apply", func() { w.apply(t) })
		default:
			w.guard("emit", func() { w.emit(w.clock()) })
			return
		}
	}
}

func (w *SymbolWorker) apply(t models.TradeEvent) {
	res := w.state.Apply(t, w.clock())
	w.ingested++
	w.metrics.RecordIngested(w.symbol)
	if res.Late {
		w.late++
		w.metrics.RecordLate(w.symbol)
		w.log.Debug("late trade",
			logger.Int64("event_time_ms", t.EventTimeMs),
			logger.Bool("expired", res.Expired),
		)
	}
}

func (w *SymbolWorker) emit(now time.Time) {
	snap, ok := w.state.Snapshot(now)
	if !ok {
		return
	}
	if err := checkSnapshot(snap); err != nil {
		w.reseed(err)
		return
	}

	w.dispatcher.DispatchSnapshot(snap)
	w.metrics.RecordSnapshot(w.symbol)
	w.metrics.RecordLastPrice(w.symbol, snap.Price)

	if alert, fired := w.state.CheckAnomaly(); fired {
		w.log.Info("volume spike",
			logger.Float64("ratio", alert.Value),
			logger.Int64("bucket_ms", alert.Ts),
		)
		w.dispatcher.DispatchAlert(alert)
		w.metrics.RecordAlert(w.symbol, alert.Type)
	}
}

// guard turns a panic inside fn into a state reseed so one bad symbol
// cannot take the engine down.
func (w *SymbolWorker) guard(op string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			w.reseed(fmt.Errorf("%w: panic during %s: %v", domain.ErrStateCorruption, op, r))
		}
	}()
	fn()
}

func (w *SymbolWorker) reseed(cause error) {
	w.restarts++
	w.metrics.RecordWorkerRestart(w.symbol)
	w.log.Error("reseeding symbol state",
		logger.Error(cause),
		logger.Bool("corruption", errors.Is(cause, domain.ErrStateCorruption)),
	)
	w.state = NewSymbolState(w.symbol, w.cfg)
}
