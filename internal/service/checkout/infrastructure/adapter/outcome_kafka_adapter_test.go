package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paysheet/internal/service/checkout/domain"
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

func TestOutcomeKafkaAdapter_PublishOutcome(t *testing.T) {
	w := &fakeWriter{}
	a := NewOutcomeKafkaAdapter(w)

	event := &domain.CheckoutCompleted{
		AttemptID: "a-1",
		SessionID: "s-1",
		ItemName:  "Jordan Retro 10",
		Total:     decimal.RequireFromString("199.50"),
		Currency:  "INR",
		Success:   true,
		Token:     &domain.PaymentToken{TransactionIdentifier: "tx-1", PaymentData: []byte("opaque")},
	}
	require.NoError(t, a.PublishOutcome(context.Background(), event))
	require.Len(t, w.messages, 1)

	msg := w.messages[0]
	assert.Equal(t, []byte("s-1"), msg.Key)

	var decoded domain.CheckoutCompleted
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "a-1", decoded.AttemptID)
	assert.True(t, decoded.Total.Equal(event.Total))
	require.NotNil(t, decoded.Token)
	assert.Equal(t, []byte("opaque"), decoded.Token.PaymentData)

	require.NoError(t, a.Close())
	assert.True(t, w.closed)
}

func TestOutcomeKafkaAdapter_WriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	err := NewOutcomeKafkaAdapter(w).PublishOutcome(context.Background(), &domain.CheckoutCompleted{SessionID: "s-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}
