// Package events публикует события расчетов в Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/avc/toyshop/internal/domain"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

var (
	_ domain.EventPublisher = (*KafkaPublisher)(nil)
	_ domain.EventPublisher = NoopPublisher{}
)

// Envelope конверт события в топике
type Envelope struct {
	ID            string                 `json:"id"`
	Type          domain.EventType       `json:"type"`
	Data          domain.SettlementEvent `json:"data"`
	Timestamp     time.Time              `json:"timestamp"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
}

// messageWriter часть *kafka.Writer, нужная издателю
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher публикует события расчетов. Ключ сообщения = ID пользователя,
// поэтому события одного пользователя попадают в одну партицию по порядку.
type KafkaPublisher struct {
	writer messageWriter
	logger *zap.Logger
	now    func() time.Time
}

// NewKafkaPublisher создает издателя для брокеров и топика
func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
	}

	return newKafkaPublisher(writer, logger)
}

func newKafkaPublisher(writer messageWriter, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, logger: logger, now: time.Now}
}

// Publish отправляет событие в топик
func (p *KafkaPublisher) Publish(ctx context.Context, event domain.SettlementEvent) error {
	envelope := Envelope{
		ID:            uuid.NewString(),
		Type:          event.Type,
		Data:          event,
		Timestamp:     p.now().UTC(),
		CorrelationID: domain.RequestIDFromContext(ctx),
	}

	value, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("events: failed to encode %s: %w", event.Type, err)
	}

	msg := kafka.Message{
		Key:   []byte(event.UserID.String()),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "event_id", Value: []byte(envelope.ID)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("events: failed to publish %s: %w", event.Type, err)
	}

	p.logger.Debug("event published",
		zap.String("event_id", envelope.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("user_id", event.UserID.String()),
	)

	return nil
}

// Close закрывает writer
func (p *KafkaPublisher) Close() error {
	p.logger.Info("closing kafka publisher")
	return p.writer.Close()
}

// NoopPublisher используется, когда брокеры не настроены
type NoopPublisher struct{}

// Publish ничего не делает
func (NoopPublisher) Publish(context.Context, domain.SettlementEvent) error { return nil }

// Close ничего не делает
func (NoopPublisher) Close() error { return nil }
