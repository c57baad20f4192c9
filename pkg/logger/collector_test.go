package logger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type capturePublisher struct {
	mu      sync.Mutex
	batches [][]AggregatedLogEntry
}

func (p *capturePublisher) PublishMessage(_ context.Context, _ string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches = append(p.batches, payload.([]AggregatedLogEntry))
	return nil
}

func TestCollectorFoldsDuplicates(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 10, Topic: "logs", Publisher: pub})

	for i := 0; i < 3; i++ {
		c.AddLog("error", "sink write failed", map[string]interface{}{"sink": "redis"}, "x.go:1")
	}
	c.AddLog("error", "sink write failed", map[string]interface{}{"sink": "postgres"}, "x.go:1")
	c.Close()

	if len(pub.batches) != 1 {
		t.Fatalf("expected one batch on close, got %d", len(pub.batches))
	}
	counts := map[string]int{}
	for _, e := range pub.batches[0] {
		counts[e.Fields["sink"].(string)] = e.Count
	}
	if counts["redis"] != 3 || counts["postgres"] != 1 {
		t.Fatalf("unexpected counts %v", counts)
	}
}

func TestCollectorFlushesOnThreshold(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 2, Topic: "logs", Publisher: pub})
	defer c.Close()

	c.AddLog("error", "a", nil, "x.go:1")
	c.AddLog("error", "b", nil, "x.go:2")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		pub.mu.Lock()
		n := len(pub.batches)
		pub.mu.Unlock()
		if n == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("threshold flush did not happen")
}

func TestLoggerErrorFeedsCollector(t *testing.T) {
	pub := &capturePublisher{}
	l := Nop()
	l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 100, Topic: "logs", Publisher: pub})

	l.Error("boom", Error(errors.New("x")), Symbol("AAPL"))
	l.Warn("not collected")
	l.RemoveCollector()

	if len(pub.batches) != 1 || len(pub.batches[0]) != 1 {
		t.Fatalf("expected exactly one collected entry, got %v", pub.batches)
	}
	if got := pub.batches[0][0].Fields["symbol"]; got != "AAPL" {
		t.Fatalf("expected symbol field, got %v", got)
	}
}
