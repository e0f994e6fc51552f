package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"expensetracker/internal/amqp"
	"expensetracker/internal/core"
	"expensetracker/internal/storage"
)

// Publisher delivers transaction events. *amqp.Client satisfies it.
type Publisher interface {
	Publish(ctx context.Context, evt *amqp.TransactionEvent) error
}

// ValidationError marks a request the domain rejected, as opposed to a
// persistence failure.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsValidationError reports whether err (or anything it wraps) is a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// TransactionService validates requests, persists them and announces each
// successful mutation.
type TransactionService struct {
	store     storage.TransactionStore
	publisher Publisher
}

// NewTransactionService wires the store and an optional publisher; a nil
// publisher disables events.
func NewTransactionService(store storage.TransactionStore, publisher Publisher) *TransactionService {
	return &TransactionService{
		store:     store,
		publisher: publisher,
	}
}

// Create validates tx, stores it and returns it with its new id.
func (s *TransactionService) Create(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, &ValidationError{Err: err}
	}

	created, err := s.store.Insert(ctx, tx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction created",
		"id", created.ID,
		"type", created.Type,
		"amount", core.FormatAmount(created.Amount),
		"category", created.Category)

	s.publish(ctx, amqp.NewCreatedEvent(created))
	return created, nil
}

// Get returns the transaction and false when no record has id.
func (s *TransactionService) Get(ctx context.Context, id int64) (core.Transaction, bool, error) {
	tx, err := s.store.Get(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return core.Transaction{}, false, nil
	}
	if err != nil {
		return core.Transaction{}, false, fmt.Errorf("get transaction: %w", err)
	}
	return tx, true, nil
}

func (s *TransactionService) List(ctx context.Context) ([]core.Transaction, error) {
	txs, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

func (s *TransactionService) ListByType(ctx context.Context, t core.TransactionType) ([]core.Transaction, error) {
	if !t.IsValid() {
		return nil, &ValidationError{Err: core.ErrInvalidType}
	}
	txs, err := s.store.ListByType(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("list transactions by type: %w", err)
	}
	return txs, nil
}

// Update replaces every caller-controlled field of record id with tx's.
// It reports false when id does not exist.
func (s *TransactionService) Update(ctx context.Context, id int64, tx core.Transaction) (bool, error) {
	if err := tx.Validate(); err != nil {
		return false, &ValidationError{Err: err}
	}

	var updated core.Transaction
	found, err := s.store.Update(ctx, id, func(current *core.Transaction) {
		current.Overwrite(tx)
		updated = *current
	})
	if err != nil {
		return false, fmt.Errorf("update transaction: %w", err)
	}
	if !found {
		return false, nil
	}

	slog.InfoContext(ctx, "Transaction updated",
		"id", id,
		"type", updated.Type,
		"amount", core.FormatAmount(updated.Amount))

	s.publish(ctx, amqp.NewUpdatedEvent(updated))
	return true, nil
}

// Delete removes record id permanently. It reports false when id does not exist.
func (s *TransactionService) Delete(ctx context.Context, id int64) (bool, error) {
	deleted, err := s.store.Delete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("delete transaction: %w", err)
	}
	if !deleted {
		return false, nil
	}

	slog.InfoContext(ctx, "Transaction deleted", "id", id)
	s.publish(ctx, amqp.NewDeletedEvent(id))
	return true, nil
}

// Summary aggregates every stored transaction for the window around now,
// bucketing in loc (now's own location when loc is nil).
func (s *TransactionService) Summary(ctx context.Context, w core.Window, now time.Time, loc *time.Location) (core.Summary, error) {
	txs, err := s.store.List(ctx)
	if err != nil {
		return core.Summary{}, fmt.Errorf("load transactions for summary: %w", err)
	}
	if loc != nil {
		now = now.In(loc)
	}
	return core.Summarize(txs, w, now), nil
}

// Ready reports whether the backing store is reachable.
func (s *TransactionService) Ready(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// IsEmpty reports whether the store holds no transactions.
func (s *TransactionService) IsEmpty(ctx context.Context) (bool, error) {
	n, err := s.store.Count(ctx)
	if err != nil {
		return false, fmt.Errorf("count transactions: %w", err)
	}
	return n == 0, nil
}

// publish is best effort: the mutation already succeeded locally.
func (s *TransactionService) publish(ctx context.Context, evt *amqp.TransactionEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, evt); err != nil {
		slog.ErrorContext(ctx, "Failed to publish transaction event",
			"kind", evt.Kind,
			"id", evt.ID,
			"error", err)
	}
}

// Close releases the store.
func (s *TransactionService) Close() error {
	if s.store == nil {
		return nil
	}
	if err := s.store.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}
