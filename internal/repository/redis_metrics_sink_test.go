package repository

import (
	"context"
	"encoding/json"
	"math"
	"testing"
	"time"

	"TradePulse/internal/domain/models"
	"TradePulse/pkg/cache"
)

func TestSnapshotFields(t *testing.T) {
	f := SnapshotFields(models.MetricsSnapshot{
		Symbol:        "AAPL",
		Price:         189.25,
		Ts:            1_700_000_000_000,
		VWAP1m:        189.1,
		VWAP5m:        0.0000001,
		VWAP15m:       189,
		EMA9:          math.NaN(),
		EMA21:         188.5,
		Volatility10m: 0,
	})
	want := map[string]string{
		"price":    "189.25",
		"ts":       "1700000000000",
		"vwap_1m":  "189.1",
		"vwap_5m":  "0.0000001",
		"vwap_15m": "189",
		"ema9":     "0",
		"ema21":    "188.5",
		"vol":      "0",
	}
	if len(f) != len(want) {
		t.Fatalf("fields = %v", f)
	}
	for k, v := range want {
		if f[k] != v {
			t.Fatalf("%s = %q, want %q", k, f[k], v)
		}
	}
}

func TestRedisMetricsSinkWritesAndAnnounces(t *testing.T) {
	mc := cache.NewMemoryCache()
	defer mc.Close()
	sub := mc.Subscribe(LiveChannel("AAPL"), 1)
	sink := NewRedisMetricsSink(mc, 0)

	err := sink.WriteSnapshot(context.Background(), models.MetricsSnapshot{Symbol: "AAPL", Price: 10, Ts: 5})
	if err != nil {
		t.Fatalf("write: %v", err)
	}

	h, err := mc.GetHash(context.Background(), "trades:metrics:AAPL")
	if err != nil || h["price"] != "10" || h["ts"] != "5" {
		t.Fatalf("hash = %v, %v", h, err)
	}

	select {
	case msg := <-sub:
		var got map[string]string
		if err := json.Unmarshal(msg, &got); err != nil || got["price"] != "10" {
			t.Fatalf("live message = %s", msg)
		}
	case <-time.After(time.Second):
		t.Fatalf("no live message")
	}
}
