package repository

import (
	"context"
	"time"

	"TradePulse/internal/domain/models"
	domrepo "TradePulse/internal/domain/repository"
)

// TopicPublisher is the part of kafka.Producer the publisher uses.
type TopicPublisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
}

// AlertMessage is the wire form of an alert on the alerts topic.
type AlertMessage struct {
	Ticker   string  `json:"ticker"`
	Type     string  `json:"type"`
	Severity string  `json:"severity"`
	Value    float64 `json:"value"`
	Ts       string  `json:"ts"`
}

// KafkaAlertPublisher fans alerts out to the alerts topic keyed by symbol.
type KafkaAlertPublisher struct {
	producer TopicPublisher
	topic    string
}

func NewKafkaAlertPublisher(producer TopicPublisher, topic string) *KafkaAlertPublisher {
	return &KafkaAlertPublisher{producer: producer, topic: topic}
}

func (p *KafkaAlertPublisher) PublishAlert(ctx context.Context, a models.AlertEvent) error {
	return p.producer.Publish(ctx, p.topic, []byte(a.Symbol), NewAlertMessage(a))
}

func NewAlertMessage(a models.AlertEvent) AlertMessage {
	return AlertMessage{
		Ticker:   a.Symbol,
		Type:     string(a.Type),
		Severity: string(a.Severity),
		Value:    a.Value,
		Ts:       time.UnixMilli(a.Ts).UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
}

var _ domrepo.AlertPublisher = (*KafkaAlertPublisher)(nil)
