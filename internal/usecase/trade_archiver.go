package usecase

import (
	"context"
	"time"

	"TradePulse/internal/domain/models"
	domrepo "TradePulse/internal/domain/repository"
	"TradePulse/pkg/logger"
)

const sinkArchive = "archive"

type ArchiverConfig struct {
	BufferSize   int
	BatchSize    int
	BatchTimeout time.Duration
	WriteTimeout time.Duration
}

// TradeArchiver batches accepted trades into the raw trade archive. It
// never blocks ingestion: a full buffer drops the trade.
type TradeArchiver struct {
	cfg     ArchiverConfig
	store   domrepo.TradeArchive
	metrics domrepo.Metrics
	log     *logger.Logger
	in      chan models.TradeEvent
}

func NewTradeArchiver(cfg ArchiverConfig, store domrepo.TradeArchive, metrics domrepo.Metrics, log *logger.Logger) *TradeArchiver {
	if cfg.BufferSize < 1 {
		cfg.BufferSize = 10_000
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 500
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	return &TradeArchiver{
		cfg:     cfg,
		store:   store,
		metrics: metrics,
		log:     log.With(logger.String("component", "archiver")),
		in:      make(chan models.TradeEvent, cfg.BufferSize),
	}
}

// Enqueue offers t to the archive without blocking.
func (a *TradeArchiver) Enqueue(t models.TradeEvent) {
	select {
	case a.in <- t:
	default:
		a.metrics.RecordSinkDrop(sinkArchive)
	}
}

// Run flushes batches until ctx is done, then flushes what is buffered.
func (a *TradeArchiver) Run(ctx context.Context) error {
	batch := make([]models.TradeEvent, 0, a.cfg.BatchSize)
	timer := time.NewTimer(a.cfg.BatchTimeout)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		a.write(batch)
		batch = make([]models.TradeEvent, 0, a.cfg.BatchSize)
	}

	for {
		select {
		case t := <-a.in:
			batch = append(batch, t)
			if len(batch) >= a.cfg.BatchSize {
				flush()
			}
		case <-timer.C:
			flush()
			timer.Reset(a.cfg.BatchTimeout)
		case <-ctx.Done():
			for {
				select {
				case t := <-a.in:
					batch = append(batch, t)
					if len(batch) >= a.cfg.BatchSize {
						flush()
					}
				default:
					flush()
					return nil
				}
			}
		}
	}
}

func (a *TradeArchiver) write(batch []models.TradeEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.WriteTimeout)
	defer cancel()

	start := time.Now()
	if err := a.store.StoreBatch(ctx, batch); err != nil {
		a.metrics.RecordSinkFailure(sinkArchive)
		a.log.Error("archive batch failed", logger.Int("size", len(batch)), logger.Error(err))
		return
	}
	a.metrics.RecordSinkWrite(sinkArchive)
	a.metrics.RecordLatency("archive_batch", time.Since(start).Seconds())
}
