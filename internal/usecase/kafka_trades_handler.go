package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"TradePulse/internal/domain"
	"TradePulse/internal/domain/models"
	domrepo "TradePulse/internal/domain/repository"
	"TradePulse/internal/domain/service"
	pkgkafka "TradePulse/pkg/kafka"
	"TradePulse/pkg/util"
)

// tradeMessage is the wire shape of the input topic.
type tradeMessage struct {
	Symbol      string          `json:"symbol"`
	Price       json.Number     `json:"price"`
	Volume      json.Number     `json:"volume"`
	Timestamp   json.RawMessage `json:"timestamp"`
	EventTimeMs json.Number     `json:"eventTimeMs"`
	Conditions  []string        `json:"conditions"`
}

// KafkaTradesHandler decodes trade messages and hands them to the ingest
// chain. Undecodable or malformed payloads are permanent failures; routing
// drops are acknowledged.
type KafkaTradesHandler struct {
	topic   string
	next    service.Ingestor
	metrics domrepo.Metrics
}

func NewKafkaTradesHandler(topic string, next service.Ingestor, metrics domrepo.Metrics) *KafkaTradesHandler {
	return &KafkaTradesHandler{topic: topic, next: next, metrics: metrics}
}

func (h *KafkaTradesHandler) Topic() string { return h.topic }

func (h *KafkaTradesHandler) Handle(ctx context.Context, b []byte) error {
	t, err := decodeTrade(b)
	if err != nil {
		h.metrics.RecordMalformed("decode")
		return pkgkafka.Permanent(err)
	}
	h.metrics.RecordLatency("ingest_e2e", time.Since(util.MsToTime(t.EventTimeMs)).Seconds())

	err = h.next.Ingest(ctx, t)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrMalformedTrade):
		return pkgkafka.Permanent(err)
	case errors.Is(err, domain.ErrUnknownSymbol),
		errors.Is(err, domain.ErrSymbolLimit),
		errors.Is(err, domain.ErrMailboxFull):
		return nil
	default:
		return err
	}
}

func decodeTrade(b []byte) (models.TradeEvent, error) {
	var m tradeMessage
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&m); err != nil {
		return models.TradeEvent{}, fmt.Errorf("%w: %v", domain.ErrMalformedTrade, err)
	}

	price, err := numberOrZero(m.Price)
	if err != nil {
		return models.TradeEvent{}, fmt.Errorf("%w: price: %v", domain.ErrMalformedTrade, err)
	}
	volume, err := numberOrZero(m.Volume)
	if err != nil {
		return models.TradeEvent{}, fmt.Errorf("%w: volume: %v", domain.ErrMalformedTrade, err)
	}
	ts, err := eventTimeMs(m.Timestamp, m.EventTimeMs)
	if err != nil {
		return models.TradeEvent{}, fmt.Errorf("%w: timestamp: %v", domain.ErrMalformedTrade, err)
	}

	return models.TradeEvent{
		Symbol:      m.Symbol,
		Price:       price,
		Volume:      int64(math.Round(volume)),
		EventTimeMs: ts,
		Conditions:  m.Conditions,
	}, nil
}

// eventTimeMs reads "timestamp" (epoch s/ms number or an RFC3339 string),
// falling back to "eventTimeMs".
func eventTimeMs(raw json.RawMessage, fallback json.Number) (int64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		v, err := numberOrZero(fallback)
		return util.NormalizeEpochMs(int64(v)), err
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, err
		}
		t, ok := util.ParseTime(s)
		if !ok {
			return 0, fmt.Errorf("unparseable time %q", s)
		}
		return t.UnixMilli(), nil
	}
	v, err := json.Number(raw).Float64()
	if err != nil {
		return 0, err
	}
	return util.NormalizeEpochMs(int64(v)), nil
}

func numberOrZero(n json.Number) (float64, error) {
	if n == "" {
		return 0, nil
	}
	return n.Float64()
}

var _ pkgkafka.MessageHandler = (*KafkaTradesHandler)(nil)
