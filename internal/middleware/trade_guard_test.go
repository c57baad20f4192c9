package middleware

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"TradePulse/internal/domain"
	"TradePulse/internal/domain/models"
	"TradePulse/pkg/logger"
	"TradePulse/pkg/metrics"
)

type recordingIngestor struct {
	got []models.TradeEvent
	err error
}

func (r *recordingIngestor) Ingest(_ context.Context, t models.TradeEvent) error {
	if r.err != nil {
		return r.err
	}
	r.got = append(r.got, t)
	return nil
}

func TestTradeGuardRejectsMalformed(t *testing.T) {
	base := models.TradeEvent{Symbol: "AAPL", Price: 10, Volume: 1, EventTimeMs: 1_700_000_000_000}
	cases := []struct {
		name string
		mut  func(*models.TradeEvent)
	}{
		{"empty symbol", func(t *models.TradeEvent) { t.Symbol = "  " }},
		{"zero price", func(t *models.TradeEvent) { t.Price = 0 }},
		{"negative price", func(t *models.TradeEvent) { t.Price = -1 }},
		{"nan price", func(t *models.TradeEvent) { t.Price = math.NaN() }},
		{"negative volume", func(t *models.TradeEvent) { t.Volume = -5 }},
		{"missing timestamp", func(t *models.TradeEvent) { t.EventTimeMs = 0 }},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			next := &recordingIngestor{}
			g := NewTradeGuard(next, metrics.Noop{}, logger.Nop())
			ev := base
			c.mut(&ev)
			if err := g.Ingest(context.Background(), ev); !errors.Is(err, domain.ErrMalformedTrade) {
				t.Fatalf("err = %v, want ErrMalformedTrade", err)
			}
			if len(next.got) != 0 {
				t.Fatalf("malformed trade forwarded")
			}
		})
	}
}

func TestTradeGuardNormalisesAndTaps(t *testing.T) {
	next := &recordingIngestor{}
	var tapped []models.TradeEvent
	g := NewTradeGuard(next, metrics.Noop{}, logger.Nop(), WithTap(func(t models.TradeEvent) { tapped = append(tapped, t) }))

	ev := models.TradeEvent{Symbol: " aapl", Price: 10, Volume: 0, EventTimeMs: 1}
	if err := g.Ingest(context.Background(), ev); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(next.got) != 1 || next.got[0].Symbol != "AAPL" {
		t.Fatalf("forwarded %+v", next.got)
	}
	if len(tapped) != 1 || tapped[0].Symbol != "AAPL" {
		t.Fatalf("tapped %+v", tapped)
	}
}

func TestTradeGuardDoesNotTapRoutingFailures(t *testing.T) {
	next := &recordingIngestor{err: domain.ErrMailboxFull}
	tapped := 0
	g := NewTradeGuard(next, metrics.Noop{}, logger.Nop(), WithTap(func(models.TradeEvent) { tapped++ }))

	err := g.Ingest(context.Background(), models.TradeEvent{Symbol: "AAPL", Price: 1, EventTimeMs: 1})
	if !errors.Is(err, domain.ErrMailboxFull) {
		t.Fatalf("err = %v", err)
	}
	if tapped != 0 {
		t.Fatalf("dropped trade reached the archive")
	}
}

func TestTradeGuardThrottle(t *testing.T) {
	now := time.Unix(100, 0)
	next := &recordingIngestor{}
	g := NewTradeGuard(next, metrics.Noop{}, logger.Nop(),
		WithMaxRPS(2),
		WithGuardClock(func() time.Time { return now }),
	)
	ev := models.TradeEvent{Symbol: "AAPL", Price: 1, EventTimeMs: 1}

	_ = g.Ingest(context.Background(), ev)
	_ = g.Ingest(context.Background(), ev)
	now = now.Add(500 * time.Millisecond)
	_ = g.Ingest(context.Background(), ev)

	if len(next.got) != 2 {
		t.Fatalf("forwarded %d, want 2", len(next.got))
	}
}
