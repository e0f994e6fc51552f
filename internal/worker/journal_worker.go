package worker

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"expensetracker/internal/amqp"
	"expensetracker/internal/cache"
	"expensetracker/internal/journal"
)

// dedupeWindow bounds how long a delivered event is remembered. Redeliveries
// after a failed ack arrive within seconds.
const dedupeWindow = 10 * time.Minute

// JournalWorker mirrors transaction events into a journal.
type JournalWorker struct {
	journal journal.Journal
	seen    *cache.LRUCache[struct{}]
}

func NewJournalWorker(j journal.Journal) *JournalWorker {
	return &JournalWorker{
		journal: j,
		seen:    cache.NewLRUCache[struct{}](4096, dedupeWindow),
	}
}

// HandleEvent records evt once. Errors are returned so the consumer requeues
// the message.
func (w *JournalWorker) HandleEvent(ctx context.Context, evt *amqp.TransactionEvent) error {
	key := eventKey(evt)
	if _, dup := w.seen.Get(key); dup {
		slog.InfoContext(ctx, "Skipping already journaled event",
			"kind", evt.Kind,
			"id", evt.ID)
		return nil
	}

	entry := journal.NewEntry(string(evt.Kind), evt.ID, evt.Transaction, evt.Timestamp)
	if err := w.journal.Record(ctx, entry); err != nil {
		return fmt.Errorf("record %s event for transaction %d: %w", evt.Kind, evt.ID, err)
	}
	w.seen.Set(key, struct{}{})

	slog.InfoContext(ctx, "Journaled transaction event",
		"kind", evt.Kind,
		"id", evt.ID)
	return nil
}

// Sweeper exposes the dedupe cache so the caller can expire it periodically.
func (w *JournalWorker) Sweeper() cache.Cleaner {
	return w.seen
}

func eventKey(evt *amqp.TransactionEvent) string {
	return string(evt.Kind) + ":" + strconv.FormatInt(evt.ID, 10) + ":" + strconv.FormatInt(evt.Timestamp.UnixNano(), 10)
}
