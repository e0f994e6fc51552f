// Package journal mirrors transaction changes into an append-only log that
// humans can read, such as a spreadsheet.
package journal

import (
	"context"
	"time"

	"expensetracker/internal/core"
)

// Header names the columns of a journal row, in Row order.
var Header = []string{"timestamp", "event", "id", "date", "type", "category", "description", "amount"}

// Entry is one journal line. Transaction fields are empty for deletions.
type Entry struct {
	Timestamp   time.Time
	Event       string
	ID          int64
	Date        time.Time
	Type        core.TransactionType
	Category    string
	Description string
	Amount      string
}

// Journal records entries in order of arrival.
type Journal interface {
	Record(ctx context.Context, e Entry) error
}

// NewEntry describes a change to a transaction. tx is nil for deletions.
func NewEntry(event string, id int64, tx *core.Transaction, at time.Time) Entry {
	e := Entry{Timestamp: at, Event: event, ID: id}
	if tx != nil {
		e.Date = tx.Date
		e.Type = tx.Type
		e.Category = tx.Category
		e.Description = tx.Description
		e.Amount = core.FormatAmount(tx.Amount)
	}
	return e
}

// Row renders the entry as spreadsheet cells matching Header.
func (e Entry) Row() []any {
	date := ""
	if !e.Date.IsZero() {
		date = e.Date.Format("2006-01-02")
	}
	return []any{
		e.Timestamp.UTC().Format(time.RFC3339),
		e.Event,
		e.ID,
		date,
		string(e.Type),
		e.Category,
		e.Description,
		e.Amount,
	}
}
