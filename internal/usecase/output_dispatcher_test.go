package usecase

import (
	"context"
	"errors"
	"testing"

	"TradePulse/internal/domain/models"
	"TradePulse/pkg/logger"
	"TradePulse/pkg/metrics"
)

// inlineSubmitter retries up to attempts times on the caller's goroutine.
type inlineSubmitter struct {
	attempts int
	sinks    []string
}

func (s *inlineSubmitter) Submit(sink, _ string, fn func(context.Context) error) bool {
	s.sinks = append(s.sinks, sink)
	for i := 0; i < s.attempts; i++ {
		if fn(context.Background()) == nil {
			return true
		}
	}
	return true
}

type fakeMetricsSink struct{ got []models.MetricsSnapshot }

func (f *fakeMetricsSink) WriteSnapshot(_ context.Context, s models.MetricsSnapshot) error {
	f.got = append(f.got, s)
	return nil
}

type fakeAlertStore struct {
	failures int
	saved    []models.AlertEvent
}

func (f *fakeAlertStore) Init(context.Context) error   { return nil }
func (f *fakeAlertStore) Health(context.Context) error { return nil }
func (f *fakeAlertStore) SaveAlert(_ context.Context, a models.AlertEvent) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("connection reset")
	}
	f.saved = append(f.saved, a)
	return nil
}

type fakeAlertPublisher struct {
	err       error
	published []models.AlertEvent
}

func (f *fakeAlertPublisher) PublishAlert(_ context.Context, a models.AlertEvent) error {
	f.published = append(f.published, a)
	return f.err
}

func TestDispatcherAlertPersistsThenPublishesOnce(t *testing.T) {
	sub := &inlineSubmitter{attempts: 3}
	store := &fakeAlertStore{failures: 2}
	pub := &fakeAlertPublisher{}
	d := NewOutputDispatcher(sub, &fakeMetricsSink{}, store, pub, 0, metrics.Noop{}, logger.Nop())

	a := models.AlertEvent{Symbol: "AAPL", Type: models.AlertVolumeSpike, Severity: models.SeverityHigh, Value: 5, Ts: 60_000}
	d.DispatchAlert(a)

	if len(store.saved) != 1 {
		t.Fatalf("saved %d, want 1", len(store.saved))
	}
	if len(pub.published) != 1 {
		t.Fatalf("published %d, want 1 after the durable write", len(pub.published))
	}
	if sub.sinks[0] != SinkAlerts {
		t.Fatalf("sink = %q", sub.sinks[0])
	}
}

func TestDispatcherPublishFailureKeepsAlert(t *testing.T) {
	sub := &inlineSubmitter{attempts: 3}
	store := &fakeAlertStore{}
	pub := &fakeAlertPublisher{err: errors.New("broker down")}
	d := NewOutputDispatcher(sub, &fakeMetricsSink{}, store, pub, 0, metrics.Noop{}, logger.Nop())

	d.DispatchAlert(models.AlertEvent{Symbol: "AAPL", Ts: 1})

	if len(store.saved) != 1 || len(pub.published) != 1 {
		t.Fatalf("saved=%d published=%d, want 1/1 without retrying the write", len(store.saved), len(pub.published))
	}
}

func TestDispatcherSnapshot(t *testing.T) {
	sub := &inlineSubmitter{attempts: 1}
	sink := &fakeMetricsSink{}
	d := NewOutputDispatcher(sub, sink, &fakeAlertStore{}, nil, 0, metrics.Noop{}, logger.Nop())

	d.DispatchSnapshot(models.MetricsSnapshot{Symbol: "AAPL", Price: 1})
	if len(sink.got) != 1 || sub.sinks[0] != SinkMetrics {
		t.Fatalf("snapshot not routed: %+v %v", sink.got, sub.sinks)
	}
}
