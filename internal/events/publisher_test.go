package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/avc/toyshop/internal/domain"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaPublisher_Publish(t *testing.T) {
	userID := uuid.New()
	orderID := uuid.New()
	amount := decimal.NewFromInt(-12)
	event := domain.SettlementEvent{Type: domain.EventOrderPaid, UserID: userID, OrderID: &orderID, Amount: &amount}

	t.Run("Success", func(t *testing.T) {
		writer := &fakeWriter{}
		publisher := newKafkaPublisher(writer, zap.NewNop())
		fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		publisher.now = func() time.Time { return fixed }

		ctx := domain.WithRequestID(context.Background(), "req-1")
		require.NoError(t, publisher.Publish(ctx, event))
		require.Len(t, writer.messages, 1)

		msg := writer.messages[0]
		assert.Equal(t, userID.String(), string(msg.Key))

		var envelope Envelope
		require.NoError(t, json.Unmarshal(msg.Value, &envelope))
		assert.Equal(t, domain.EventOrderPaid, envelope.Type)
		assert.Equal(t, "req-1", envelope.CorrelationID)
		assert.Equal(t, fixed, envelope.Timestamp)
		assert.Equal(t, orderID, *envelope.Data.OrderID)
		assert.True(t, amount.Equal(*envelope.Data.Amount))

		require.Len(t, msg.Headers, 2)
		assert.Equal(t, "event_type", msg.Headers[0].Key)
		assert.Equal(t, string(domain.EventOrderPaid), string(msg.Headers[0].Value))
	})

	t.Run("Writer error", func(t *testing.T) {
		writer := &fakeWriter{err: errors.New("broker down")}
		publisher := newKafkaPublisher(writer, zap.NewNop())

		err := publisher.Publish(context.Background(), event)
		assert.Error(t, err)
	})

	t.Run("Close", func(t *testing.T) {
		writer := &fakeWriter{}
		require.NoError(t, newKafkaPublisher(writer, zap.NewNop()).Close())
		assert.True(t, writer.closed)
	})
}

func TestNoopPublisher(t *testing.T) {
	var p NoopPublisher
	assert.NoError(t, p.Publish(context.Background(), domain.SettlementEvent{}))
	assert.NoError(t, p.Close())
}
