// Package seed fills an empty store with plausible demo transactions.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"expensetracker/internal/core"
)

const (
	MinRecords = 20
	MaxRecords = 100
)

var (
	incomeCategories  = []string{"Salary", "Freelance", "Bonus", "Investment"}
	expenseCategories = []string{
		"Books", "Clothing", "Electronics", "Games", "Garden", "Grocery",
		"Health", "Home", "Jewelery", "Kids", "Movies", "Music", "Outdoors",
		"Shoes", "Sports", "Tools", "Toys",
	}
	words = strings.Fields(`lorem ipsum dolor sit amet consectetur adipiscing elit sed do
		eiusmod tempor incididunt ut labore et dolore magna aliqua enim ad minim veniam
		quis nostrud exercitation ullamco laboris nisi aliquip ex ea commodo consequat`)
)

// Store is the subset of storage.TransactionStore the seeder needs.
type Store interface {
	Insert(ctx context.Context, tx core.Transaction) (core.Transaction, error)
	Count(ctx context.Context) (int64, error)
}

type Seeder struct {
	store Store
	rng   *rand.Rand
	now   func() time.Time
}

// New returns a seeder drawing from a randomly seeded generator.
func New(store Store) *Seeder {
	return NewWithSource(store, rand.NewPCG(rand.Uint64(), rand.Uint64()), time.Now)
}

// NewWithSource makes the generated data reproducible.
func NewWithSource(store Store, src rand.Source, now func() time.Time) *Seeder {
	return &Seeder{store: store, rng: rand.New(src), now: now}
}

// SeedIfEmpty inserts a random batch only when the store holds nothing. It
// returns how many records were inserted.
func (s *Seeder) SeedIfEmpty(ctx context.Context) (int, error) {
	n, err := s.store.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	if n > 0 {
		slog.InfoContext(ctx, "Store already has data, skipping seed", "count", n)
		return 0, nil
	}
	return s.Seed(ctx, s.RandomCount())
}

// RandomCount picks a batch size between MinRecords and MaxRecords.
func (s *Seeder) RandomCount() int {
	return MinRecords + s.rng.IntN(MaxRecords-MinRecords+1)
}

// Seed inserts count random transactions unconditionally.
func (s *Seeder) Seed(ctx context.Context, count int) (int, error) {
	for i := 0; i < count; i++ {
		if _, err := s.store.Insert(ctx, s.Generate()); err != nil {
			return i, fmt.Errorf("insert demo transaction %d: %w", i+1, err)
		}
	}
	slog.InfoContext(ctx, "Seeded demo transactions", "count", count)
	return count, nil
}

// Generate builds one transaction dated within the past year.
func (s *Seeder) Generate() core.Transaction {
	typ := core.Expense
	category := pick(s.rng, expenseCategories)
	if s.rng.IntN(2) == 0 {
		typ = core.Income
		category = pick(s.rng, incomeCategories)
	}

	now := s.now()
	past := time.Duration(s.rng.Int64N(int64(365 * 24 * time.Hour)))

	return core.Transaction{
		Description: s.sentence(),
		Amount:      decimal.New(100+s.rng.Int64N(99_901), -2), // 1.00 to 1000.00
		Date:        now.Add(-past).Truncate(time.Second),
		Category:    category,
		Type:        typ,
	}
}

func (s *Seeder) sentence() string {
	n := 3 + s.rng.IntN(6)
	parts := make([]string, n)
	for i := range parts {
		parts[i] = pick(s.rng, words)
	}
	parts[0] = strings.ToUpper(parts[0][:1]) + parts[0][1:]
	return strings.Join(parts, " ") + "."
}

func pick(rng *rand.Rand, from []string) string {
	return from[rng.IntN(len(from))]
}
