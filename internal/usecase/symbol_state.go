package usecase

import (
	"fmt"
	"math"
	"time"

	"TradePulse/internal/domain"
	"TradePulse/internal/domain/models"
	"TradePulse/internal/services/indicators"
)

const (
	vwapShort  = time.Minute
	vwapMedium = 5 * time.Minute
	vwapLong   = 15 * time.Minute
)

// StateConfig parameterises every SymbolState of an engine.
type StateConfig struct {
	AllowedLateness time.Duration
	Retention       time.Duration
	VolatilitySpan  time.Duration
	Spike           indicators.VolumeSpikeConfig
}

func DefaultStateConfig() StateConfig {
	return StateConfig{
		AllowedLateness: 30 * time.Second,
		Retention:       15 * time.Minute,
		VolatilitySpan:  10 * time.Minute,
		Spike:           indicators.DefaultVolumeSpikeConfig(),
	}
}

// ApplyResult tells the caller what happened to one trade.
type ApplyResult struct {
	Late    bool
	Expired bool // older than retention, discarded
}

// SymbolState is everything derived for one symbol. It is not safe for
// concurrent use; a SymbolWorker owns it.
type SymbolState struct {
	symbol    string
	cfg       StateConfig
	ema9      indicators.EMA
	ema21     indicators.EMA
	window    *indicators.Window
	watermark indicators.Watermark
	detector  indicators.VolumeSpikeDetector

	hasAlerted      bool
	lastAlertBucket int64

	// wall-clock arrival of the sample that is currently latest
	latestArrival time.Time
}

func NewSymbolState(symbol string, cfg StateConfig) *SymbolState {
	return &SymbolState{
		symbol:    symbol,
		cfg:       cfg,
		ema9:      indicators.NewEMA(9),
		ema21:     indicators.NewEMA(21),
		window:    indicators.NewWindow(cfg.Retention),
		watermark: indicators.NewWatermark(cfg.AllowedLateness),
		detector:  indicators.NewVolumeSpikeDetector(cfg.Spike),
	}
}

func (s *SymbolState) Symbol() string { return s.symbol }

// Apply folds one validated trade into the state. now is the wall-clock
// arrival time.
func (s *SymbolState) Apply(t models.TradeEvent, now time.Time) ApplyResult {
	res := ApplyResult{Late: s.watermark.Observe(t.EventTimeMs)}

	latest, had := s.window.Latest()
	if !s.window.Add(indicators.Sample{Price: t.Price, Volume: t.Volume, Ts: t.EventTimeMs}) {
		res.Expired = true
		return res
	}
	if !had || t.EventTimeMs >= latest.Ts {
		s.latestArrival = now
	}

	s.ema9.Update(t.Price)
	s.ema21.Update(t.Price)
	return res
}

// Snapshot builds the metrics for this tick. Price, ts and the VWAPs are
// anchored at the latest sample; the volatility window additionally slides
// with wall-clock time elapsed since that sample arrived.
func (s *SymbolState) Snapshot(now time.Time) (models.MetricsSnapshot, bool) {
	latest, ok := s.window.Latest()
	if !ok {
		return models.MetricsSnapshot{}, false
	}

	anchor := latest.Ts
	if idle := now.Sub(s.latestArrival); idle > 0 {
		anchor += idle.Milliseconds()
	}

	return models.MetricsSnapshot{
		Symbol:        s.symbol,
		Price:         latest.Price,
		Ts:            latest.Ts,
		VWAP1m:        s.window.VWAP(vwapShort),
		VWAP5m:        s.window.VWAP(vwapMedium),
		VWAP15m:       s.window.VWAP(vwapLong),
		EMA9:          s.ema9.Value(),
		EMA21:         s.ema21.Value(),
		Volatility10m: s.window.Volatility(s.cfg.VolatilitySpan, anchor),
	}, true
}

// CheckAnomaly runs the volume spike detector and fires at most once per
// bucket. A bucket at or before the last alerted one never fires again.
func (s *SymbolState) CheckAnomaly() (models.AlertEvent, bool) {
	spike, ok := s.detector.Evaluate(s.window)
	if !ok || !spike.Fired {
		return models.AlertEvent{}, false
	}
	if s.hasAlerted && spike.BucketStart <= s.lastAlertBucket {
		return models.AlertEvent{}, false
	}

	s.hasAlerted = true
	s.lastAlertBucket = spike.BucketStart
	return models.AlertEvent{
		Symbol:   s.symbol,
		Type:     models.AlertVolumeSpike,
		Severity: models.SeverityHigh,
		Value:    spike.Ratio,
		Ts:       spike.BucketStart,
	}, true
}

// Debug reports the parts of the state an operator cares about.
func (s *SymbolState) Debug() models.SymbolDebug {
	d := models.SymbolDebug{
		Symbol:  s.symbol,
		Samples: s.window.Len(),
		EMA9:    s.ema9.Value(),
		EMA21:   s.ema21.Value(),
	}
	d.WatermarkMs, _ = s.watermark.Value()
	if latest, ok := s.window.Latest(); ok {
		d.LatestEventMs = latest.Ts
	}
	if s.hasAlerted {
		d.LastAlertBucket = s.lastAlertBucket
	}
	return d
}

// checkSnapshot rejects snapshots that no healthy state can produce.
func checkSnapshot(m models.MetricsSnapshot) error {
	fields := []struct {
		name string
		v    float64
	}{
		{"price", m.Price},
		{"vwap_1m", m.VWAP1m},
		{"vwap_5m", m.VWAP5m},
		{"vwap_15m", m.VWAP15m},
		{"ema9", m.EMA9},
		{"ema21", m.EMA21},
		{"vol", m.Volatility10m},
	}
	for _, f := range fields {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%w: %s is %v", domain.ErrStateCorruption, f.name, f.v)
		}
	}
	if m.Volatility10m < 0 {
		return fmt.Errorf("%w: negative volatility %v", domain.ErrStateCorruption, m.Volatility10m)
	}
	return nil
}
