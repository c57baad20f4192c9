package service

import (
	"context"

	"TradePulse/internal/domain/models"
)

// Ingestor accepts trades in arrival order.
type Ingestor interface {
	Ingest(ctx context.Context, t models.TradeEvent) error
}

// Inspector exposes read-only engine state.
type Inspector interface {
	Symbols() []string
	Inspect(ctx context.Context, symbol string) (models.SymbolDebug, error)
}

// Dispatcher receives what workers produce on each emission tick.
type Dispatcher interface {
	DispatchSnapshot(s models.MetricsSnapshot)
	DispatchAlert(a models.AlertEvent)
}
