package repository

import (
	"context"

	"TradePulse/internal/domain/models"
)

// MetricsSink stores the latest snapshot of a symbol and announces it to
// live subscribers.
type MetricsSink interface {
	WriteSnapshot(ctx context.Context, s models.MetricsSnapshot) error
}

// AlertStore is the durable alert record. Writes must be idempotent on
// (symbol, type, ts).
type AlertStore interface {
	Init(ctx context.Context) error
	SaveAlert(ctx context.Context, a models.AlertEvent) error
	Health(ctx context.Context) error
}

// AlertPublisher fans alerts out to the alerts topic. Best effort.
type AlertPublisher interface {
	PublishAlert(ctx context.Context, a models.AlertEvent) error
}

// TradeArchive keeps accepted raw trades.
type TradeArchive interface {
	Init(ctx context.Context) error
	StoreBatch(ctx context.Context, trades []models.TradeEvent) error
	Health(ctx context.Context) error
}

type Metrics interface {
	RecordIngested(symbol string)
	RecordMalformed(reason string)
	RecordLate(symbol string)
	RecordMailboxDrop(symbol string)
	RecordRejected(reason string)
	RecordSnapshot(symbol string)
	RecordAlert(symbol string, kind models.AlertType)
	RecordSinkWrite(sink string)
	RecordSinkRetry(sink string)
	RecordSinkFailure(sink string)
	RecordSinkDrop(sink string)
	RecordSinkDegraded(sink string)
	RecordWorkerRestart(symbol string)
	RecordActiveSymbols(n int)
	RecordLastPrice(symbol string, price float64)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
