package usecase

import (
	"context"
	"time"

	"TradePulse/internal/domain/models"
	domrepo "TradePulse/internal/domain/repository"
	"TradePulse/internal/domain/service"
	"TradePulse/pkg/logger"
)

const (
	SinkMetrics = "metrics"
	SinkAlerts  = "alerts"
)

// Submitter is the part of outbox.Outbox the dispatcher needs.
type Submitter interface {
	Submit(sink, key string, fn func(ctx context.Context) error) bool
}

// OutputDispatcher hands snapshots and alerts to their sinks through
// per-(sink, symbol) lanes. The durable alert write is retried; the alert
// publish happens once, after it, and its failure is only logged.
type OutputDispatcher struct {
	out            Submitter
	metricsSink    domrepo.MetricsSink
	alertStore     domrepo.AlertStore
	alertPublisher domrepo.AlertPublisher
	publishTimeout time.Duration
	metrics        domrepo.Metrics
	log            *logger.Logger
}

func NewOutputDispatcher(
	out Submitter,
	metricsSink domrepo.MetricsSink,
	alertStore domrepo.AlertStore,
	alertPublisher domrepo.AlertPublisher,
	publishTimeout time.Duration,
	metrics domrepo.Metrics,
	log *logger.Logger,
) *OutputDispatcher {
	if publishTimeout <= 0 {
		publishTimeout = 3 * time.Second
	}
	return &OutputDispatcher{
		out:            out,
		metricsSink:    metricsSink,
		alertStore:     alertStore,
		alertPublisher: alertPublisher,
		publishTimeout: publishTimeout,
		metrics:        metrics,
		log:            log.With(logger.String("component", "dispatcher")),
	}
}

func (d *OutputDispatcher) DispatchSnapshot(s models.MetricsSnapshot) {
	d.out.Submit(SinkMetrics, s.Symbol, func(ctx context.Context) error {
		return d.metricsSink.WriteSnapshot(ctx, s)
	})
}

func (d *OutputDispatcher) DispatchAlert(a models.AlertEvent) {
	d.out.Submit(SinkAlerts, a.Symbol, func(ctx context.Context) error {
		if err := d.alertStore.SaveAlert(ctx, a); err != nil {
			return err
		}
		d.publish(a)
		return nil
	})
}

func (d *OutputDispatcher) publish(a models.AlertEvent) {
	if d.alertPublisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), d.publishTimeout)
	defer cancel()
	if err := d.alertPublisher.PublishAlert(ctx, a); err != nil {
		d.metrics.RecordError("alert_publish")
		d.log.Warn("alert publish failed",
			logger.Symbol(a.Symbol),
			logger.Int64("bucket_ms", a.Ts),
			logger.Error(err),
		)
	}
}

var _ service.Dispatcher = (*OutputDispatcher)(nil)
