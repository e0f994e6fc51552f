// Package memory keeps journal entries in process, for tests and for running
// the worker without spreadsheet credentials.
package memory

import (
	"context"
	"sync"

	"expensetracker/internal/journal"
)

type Journal struct {
	mu      sync.Mutex
	entries []journal.Entry
}

var _ journal.Journal = (*Journal)(nil)

func New() *Journal {
	return &Journal{}
}

func (j *Journal) Record(ctx context.Context, e journal.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, e)
	return nil
}

// Entries returns a copy of everything recorded so far.
func (j *Journal) Entries() []journal.Entry {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]journal.Entry(nil), j.entries...)
}
