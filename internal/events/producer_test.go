package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"stock_ledger/internal/sales"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := NewKafkaPublisher(w, zaptest.NewLogger(t))

	event := Event{
		EventID:      "evt-1",
		Type:         TypeSaleRecorded,
		MultiSaleID:  "group-1",
		Transactions: []sales.Transaction{{ID: "tx-1", Barcode: "A1", Quantity: 2, Amount: decimal.NewFromInt(20)}},
		Amount:       decimal.NewFromInt(20),
		TotalCash:    decimal.NewFromInt(120),
	}
	require.NoError(t, p.Publish(context.Background(), event))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "group-1", string(msg.Key))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "type", msg.Headers[0].Key)
	assert.Equal(t, TypeSaleRecorded, string(msg.Headers[0].Value))

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "evt-1", decoded.EventID)
	assert.True(t, decoded.TotalCash.Equal(decimal.NewFromInt(120)))
	require.Len(t, decoded.Transactions, 1)
	assert.Equal(t, "tx-1", decoded.Transactions[0].ID)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker unavailable")}
	p := NewKafkaPublisher(w, zaptest.NewLogger(t))

	err := p.Publish(context.Background(), Event{EventID: "evt-2", Type: TypePeriodClosed})
	assert.ErrorContains(t, err, "broker unavailable")
	assert.ErrorContains(t, err, TypePeriodClosed)
}

func TestEventKey(t *testing.T) {
	assert.Equal(t, "g", Event{EventID: "e", Barcode: "b", MultiSaleID: "g"}.Key())
	assert.Equal(t, "b", Event{EventID: "e", Barcode: "b"}.Key())
	assert.Equal(t, "e", Event{EventID: "e"}.Key())
}

func TestNewKafkaWriter(t *testing.T) {
	w := NewKafkaWriter([]string{"localhost:9092", "localhost:9093"}, "ledger")
	assert.Equal(t, "ledger", w.Topic)
	assert.Equal(t, "localhost:9092,localhost:9093", w.Addr.String())
}
