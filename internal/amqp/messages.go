package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"expensetracker/internal/core"
)

// EventKind names the mutation that produced an event.
type EventKind string

const (
	EventCreated EventKind = "created"
	EventUpdated EventKind = "updated"
	EventDeleted EventKind = "deleted"
)

var ErrInvalidEvent = errors.New("invalid transaction event")

// TransactionEvent is published after every successful mutation. Transaction
// carries the state after the change and is nil for deletions.
type TransactionEvent struct {
	Kind        EventKind         `json:"kind"`
	ID          int64             `json:"id"`
	Transaction *core.Transaction `json:"transaction,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}

func NewCreatedEvent(tx core.Transaction) *TransactionEvent {
	return &TransactionEvent{Kind: EventCreated, ID: tx.ID, Transaction: &tx, Timestamp: time.Now()}
}

func NewUpdatedEvent(tx core.Transaction) *TransactionEvent {
	return &TransactionEvent{Kind: EventUpdated, ID: tx.ID, Transaction: &tx, Timestamp: time.Now()}
}

func NewDeletedEvent(id int64) *TransactionEvent {
	return &TransactionEvent{Kind: EventDeleted, ID: id, Timestamp: time.Now()}
}

func (e *TransactionEvent) Validate() error {
	switch e.Kind {
	case EventCreated, EventUpdated:
		if e.Transaction == nil {
			return fmt.Errorf("%w: %s event without transaction", ErrInvalidEvent, e.Kind)
		}
	case EventDeleted:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEvent, e.Kind)
	}
	if e.ID <= 0 {
		return fmt.Errorf("%w: id must be positive", ErrInvalidEvent)
	}
	return nil
}

func (e *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// TransactionEventFromJSON decodes and validates an event body.
func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var evt TransactionEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, err
	}
	if err := evt.Validate(); err != nil {
		return nil, err
	}
	return &evt, nil
}
