package storage

import (
	"context"
	"sort"
	"sync"

	"expensetracker/internal/core"
)

// MemoryStore keeps transactions in process memory. Records live in a slice
// in insertion order, so ids are ascending.
type MemoryStore struct {
	mu     sync.RWMutex
	items  []core.Transaction
	nextID int64
}

var _ TransactionStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

func (s *MemoryStore) Insert(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx.ID = s.nextID
	s.nextID++
	s.items = append(s.items, tx)
	return tx, nil
}

func (s *MemoryStore) Get(ctx context.Context, id int64) (core.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.indexOf(id); i >= 0 {
		return s.items[i], nil
	}
	return core.Transaction{}, ErrNotFound
}

func (s *MemoryStore) List(ctx context.Context) ([]core.Transaction, error) {
	return s.filter(ctx, func(core.Transaction) bool { return true })
}

func (s *MemoryStore) ListByType(ctx context.Context, t core.TransactionType) ([]core.Transaction, error) {
	return s.filter(ctx, func(tx core.Transaction) bool { return tx.Type == t })
}

func (s *MemoryStore) Update(ctx context.Context, id int64, apply func(*core.Transaction)) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return false, nil
	}
	current := s.items[i]
	apply(&current)
	current.ID = id
	s.items[i] = current
	return true, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return false, nil
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	return true, nil
}

func (s *MemoryStore) Count(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.items)), nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) filter(ctx context.Context, keep func(core.Transaction) bool) ([]core.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.Transaction, 0, len(s.items))
	for _, tx := range s.items {
		if keep(tx) {
			out = append(out, tx)
		}
	}
	return out, nil
}

// indexOf binary-searches the id-ordered slice. Callers hold the lock.
func (s *MemoryStore) indexOf(id int64) int {
	i := sort.Search(len(s.items), func(i int) bool { return s.items[i].ID >= id })
	if i < len(s.items) && s.items[i].ID == id {
		return i
	}
	return -1
}
