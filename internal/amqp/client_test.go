package amqp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensetracker/internal/core"
)

type ackCall struct {
	ack     bool
	requeue bool
}

type fakeAcknowledger struct {
	calls []ackCall
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.calls = append(f.calls, ackCall{ack: true})
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	f.calls = append(f.calls, ackCall{requeue: requeue})
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	f.calls = append(f.calls, ackCall{requeue: requeue})
	return nil
}

func sampleTransaction() core.Transaction {
	return core.Transaction{
		ID:          7,
		Description: "Groceries",
		Amount:      decimal.RequireFromString("23.40"),
		Date:        time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Category:    "Food",
		Type:        core.Expense,
	}
}

func TestTransactionEvent_RoundTrip(t *testing.T) {
	evt := NewCreatedEvent(sampleTransaction())

	body, err := evt.ToJSON()
	require.NoError(t, err)
	assert.Contains(t, string(body), `"kind":"created"`)
	assert.Contains(t, string(body), `"amount":23.4`)

	decoded, err := TransactionEventFromJSON(body)
	require.NoError(t, err)
	assert.Equal(t, EventCreated, decoded.Kind)
	assert.Equal(t, int64(7), decoded.ID)
	require.NotNil(t, decoded.Transaction)
	assert.Equal(t, "Groceries", decoded.Transaction.Description)
	assert.True(t, decoded.Transaction.Amount.Equal(decimal.RequireFromString("23.4")))
}

func TestTransactionEvent_DeletedOmitsTransaction(t *testing.T) {
	body, err := NewDeletedEvent(3).ToJSON()
	require.NoError(t, err)
	assert.NotContains(t, string(body), "transaction")

	decoded, err := TransactionEventFromJSON(body)
	require.NoError(t, err)
	assert.Equal(t, EventDeleted, decoded.Kind)
	assert.Nil(t, decoded.Transaction)
}

func TestTransactionEventFromJSON_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"unknown kind", `{"kind":"archived","id":1}`},
		{"created without transaction", `{"kind":"created","id":1}`},
		{"zero id", `{"kind":"deleted","id":0}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := TransactionEventFromJSON([]byte(tt.body))
			assert.Error(t, err)
		})
	}

	_, err := TransactionEventFromJSON([]byte(`{"kind":"archived","id":1}`))
	assert.ErrorIs(t, err, ErrInvalidEvent)
}

func TestHandleDelivery(t *testing.T) {
	valid, err := NewUpdatedEvent(sampleTransaction()).ToJSON()
	require.NoError(t, err)

	tests := []struct {
		name        string
		body        []byte
		handlerErr  error
		wantCalled  bool
		wantAck     bool
		wantRequeue bool
	}{
		{name: "success acks", body: valid, wantCalled: true, wantAck: true},
		{name: "handler error requeues", body: valid, handlerErr: errors.New("sheets down"), wantCalled: true, wantRequeue: true},
		{name: "malformed body is dropped", body: []byte("garbage")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack := &fakeAcknowledger{}
			called := false
			handler := func(ctx context.Context, evt *TransactionEvent) error {
				called = true
				assert.Equal(t, EventUpdated, evt.Kind)
				return tt.handlerErr
			}

			handleDelivery(context.Background(), amqp091.Delivery{Acknowledger: ack, Body: tt.body}, handler)

			assert.Equal(t, tt.wantCalled, called)
			require.Len(t, ack.calls, 1)
			assert.Equal(t, tt.wantAck, ack.calls[0].ack)
			assert.Equal(t, tt.wantRequeue, ack.calls[0].requeue)
		})
	}
}

func TestClient_CloseWithoutConnection(t *testing.T) {
	c := &Client{exchangeName: "x", queueName: "q"}
	assert.NoError(t, c.Close())
}
