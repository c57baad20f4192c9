package middleware

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"TradePulse/internal/domain"
	"TradePulse/internal/domain/models"
	domrepo "TradePulse/internal/domain/repository"
	"TradePulse/internal/domain/service"
	"TradePulse/pkg/logger"
	"TradePulse/pkg/util"
)

// TradeGuard sits between the input stream and the router. It rejects
// malformed trades, normalises symbols, optionally throttles per symbol
// and copies accepted trades to taps (the raw archive).
type TradeGuard struct {
	next     service.Ingestor
	metrics  domrepo.Metrics
	log      *logger.Logger
	maxRPS   int
	taps     []func(models.TradeEvent)
	mu       sync.Mutex
	lastSeen map[string]time.Time
	clock    func() time.Time
}

type GuardOption func(*TradeGuard)

// WithMaxRPS caps accepted trades per second per symbol. Zero disables it.
func WithMaxRPS(n int) GuardOption {
	return func(g *TradeGuard) {
		if n >= 0 {
			g.maxRPS = n
		}
	}
}

// WithTap registers fn to receive every accepted trade. fn must not block.
func WithTap(fn func(models.TradeEvent)) GuardOption {
	return func(g *TradeGuard) {
		if fn != nil {
			g.taps = append(g.taps, fn)
		}
	}
}

func WithGuardClock(clock func() time.Time) GuardOption {
	return func(g *TradeGuard) { g.clock = clock }
}

func NewTradeGuard(next service.Ingestor, metrics domrepo.Metrics, log *logger.Logger, opts ...GuardOption) *TradeGuard {
	g := &TradeGuard{
		next:     next,
		metrics:  metrics,
		log:      log.With(logger.String("component", "guard")),
		lastSeen: make(map[string]time.Time),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Ingest validates t and forwards it. Malformed trades return an error
// wrapping domain.ErrMalformedTrade and are never forwarded.
func (g *TradeGuard) Ingest(ctx context.Context, t models.TradeEvent) error {
	start := g.clock()
	t.Symbol = util.NormalizeSymbol(t.Symbol)
	if reason, err := validateTrade(t); err != nil {
		g.metrics.RecordMalformed(reason)
		g.log.Debug("malformed trade", logger.Symbol(t.Symbol), logger.Error(err))
		return err
	}
	if !g.allow(t.Symbol, start) {
		g.metrics.RecordRejected("throttle")
		return nil
	}

	if err := g.next.Ingest(ctx, t); err != nil {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			g.log.Debug("trade not routed", logger.Symbol(t.Symbol), logger.Error(err))
		}
		return err
	}

	for _, tap := range g.taps {
		tap(t)
	}
	g.metrics.RecordLatency("guard_ingest", g.clock().Sub(start).Seconds())
	return nil
}

func validateTrade(t models.TradeEvent) (string, error) {
	switch {
	case t.Symbol == "":
		return "symbol", fmt.Errorf("%w: symbol empty", domain.ErrMalformedTrade)
	case math.IsNaN(t.Price) || math.IsInf(t.Price, 0) || t.Price <= 0:
		return "price", fmt.Errorf("%w: price %v", domain.ErrMalformedTrade, t.Price)
	case t.Volume < 0:
		return "volume", fmt.Errorf("%w: negative volume %d", domain.ErrMalformedTrade, t.Volume)
	case t.EventTimeMs <= 0:
		return "timestamp", fmt.Errorf("%w: timestamp %d", domain.ErrMalformedTrade, t.EventTimeMs)
	}
	return "", nil
}

func (g *TradeGuard) allow(symbol string, now time.Time) bool {
	if g.maxRPS <= 0 {
		return true
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	last, ok := g.lastSeen[symbol]
	if ok && now.Sub(last) < time.Second/time.Duration(g.maxRPS) {
		return false
	}
	g.lastSeen[symbol] = now
	return true
}

var _ service.Ingestor = (*TradeGuard)(nil)
