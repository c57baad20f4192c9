package repository

import (
	"context"
	"fmt"
	"math"
	"time"

	"TradePulse/internal/domain/models"
	domrepo "TradePulse/internal/domain/repository"
	"TradePulse/pkg/cache"

	"github.com/shopspring/decimal"
)

const (
	metricsKeyPrefix  = "trades:metrics"
	liveChannelPrefix = "live"
	defaultMetricsTTL = 120 * time.Second
)

// RedisMetricsSink keeps the latest snapshot per symbol in a hash and
// announces it on the symbol's live channel.
type RedisMetricsSink struct {
	store cache.Service
	ttl   time.Duration
}

func NewRedisMetricsSink(store cache.Service, ttl time.Duration) *RedisMetricsSink {
	if ttl <= 0 {
		ttl = defaultMetricsTTL
	}
	return &RedisMetricsSink{store: store, ttl: ttl}
}

// MetricsKey is the hash holding the latest snapshot of symbol.
func MetricsKey(symbol string) string { return cache.GenerateKey(metricsKeyPrefix, symbol) }

// LiveChannel is the pub/sub channel snapshots of symbol are announced on.
func LiveChannel(symbol string) string { return cache.GenerateKey(liveChannelPrefix, symbol) }

func (s *RedisMetricsSink) WriteSnapshot(ctx context.Context, m models.MetricsSnapshot) error {
	fields := SnapshotFields(m)
	err := s.store.SetHash(ctx, MetricsKey(m.Symbol), fields, s.ttl,
		cache.Announcement{Channel: LiveChannel(m.Symbol), Payload: fields})
	if err != nil {
		return fmt.Errorf("write snapshot %s: %w", m.Symbol, err)
	}
	return nil
}

// SnapshotFields renders a snapshot as the hash fields readers expect.
// Numbers are plain decimal strings, never exponent notation.
func SnapshotFields(m models.MetricsSnapshot) map[string]string {
	return map[string]string{
		"price":    decimalString(m.Price),
		"ts":       decimal.NewFromInt(m.Ts).String(),
		"vwap_1m":  decimalString(m.VWAP1m),
		"vwap_5m":  decimalString(m.VWAP5m),
		"vwap_15m": decimalString(m.VWAP15m),
		"ema9":     decimalString(m.EMA9),
		"ema21":    decimalString(m.EMA21),
		"vol":      decimalString(m.Volatility10m),
	}
}

func decimalString(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "0"
	}
	return decimal.NewFromFloat(v).String()
}

var _ domrepo.MetricsSink = (*RedisMetricsSink)(nil)
