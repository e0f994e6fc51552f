// Package storage persists transactions.
//
// TransactionStore is the only contract the rest of the application sees.
// MemoryStore backs tests and the memory backend; SQLStore backs the SQLite
// and PostgreSQL backends over database/sql.
package storage

import (
	"context"
	"errors"

	"expensetracker/internal/core"
)

// ErrNotFound is returned by Get when no record has the requested id.
var ErrNotFound = errors.New("transaction not found")

// TransactionStore is a durable collection of transactions keyed by id.
// List and ListByType return records in ascending id order, which is
// insertion order.
type TransactionStore interface {
	// Insert stores tx, ignoring its ID, and returns it with the assigned id.
	Insert(ctx context.Context, tx core.Transaction) (core.Transaction, error)

	// Get returns the record with the given id or ErrNotFound.
	Get(ctx context.Context, id int64) (core.Transaction, error)

	List(ctx context.Context) ([]core.Transaction, error)
	ListByType(ctx context.Context, t core.TransactionType) ([]core.Transaction, error)

	// Update reads the record, lets apply change it and writes it back as one
	// atomic operation. It reports false without writing when id is absent.
	// apply must not change the id.
	Update(ctx context.Context, id int64, apply func(*core.Transaction)) (bool, error)

	// Delete removes the record permanently. It reports false when id is absent.
	Delete(ctx context.Context, id int64) (bool, error)

	Count(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}
