// Command tracker-seed fills the configured store with random demo
// transactions.
package main

import (
	"context"
	"fmt"

	"github.com/alecthomas/kong"

	"expensetracker/internal/backend"
	"expensetracker/internal/cli"
	"expensetracker/internal/config"
	"expensetracker/internal/log"
	"expensetracker/internal/seed"
)

// runContext is shared by every command.
type runContext struct {
	ctx    context.Context
	cfg    *config.Config
	logger *log.Logger
}

var commands struct {
	Seed  seedCmd  `cmd:"" default:"withargs" help:"Insert random demo transactions."`
	Count countCmd `cmd:"" help:"Print how many transactions are stored."`
}

type seedCmd struct {
	Count int  `short:"n" default:"0" help:"Number of transactions to insert (0 picks a random count between 20 and 100)."`
	Force bool `help:"Insert even when the store already holds transactions."`
}

func (c *seedCmd) Run(rc *runContext) error {
	if c.Count < 0 {
		return fmt.Errorf("count must not be negative, got %d", c.Count)
	}

	store, err := backend.NewFactory(rc.logger.Logger).NewStore(rc.ctx, rc.cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	seeder := seed.New(store)

	var n int
	switch {
	case c.Force && c.Count > 0:
		n, err = seeder.Seed(rc.ctx, c.Count)
	case c.Force:
		n, err = seeder.Seed(rc.ctx, seeder.RandomCount())
	default:
		if c.Count > 0 {
			n, err = seedIfEmpty(rc.ctx, store, seeder, c.Count)
		} else {
			n, err = seeder.SeedIfEmpty(rc.ctx)
		}
	}
	if err != nil {
		return err
	}

	rc.logger.Info("Seeding finished", "inserted", n, "data_backend", rc.cfg.DataBackend)
	return nil
}

func seedIfEmpty(ctx context.Context, store seed.Store, seeder *seed.Seeder, count int) (int, error) {
	existing, err := store.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	if existing > 0 {
		return 0, nil
	}
	return seeder.Seed(ctx, count)
}

type countCmd struct{}

func (c *countCmd) Run(rc *runContext) error {
	store, err := backend.NewFactory(rc.logger.Logger).NewStore(rc.ctx, rc.cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	n, err := store.Count(rc.ctx)
	if err != nil {
		return fmt.Errorf("count transactions: %w", err)
	}
	fmt.Println(n)
	return nil
}

func main() {
	kctx := kong.Parse(&commands,
		kong.Name("tracker-seed"),
		kong.Description("Seed the expense tracker store with demo data."),
		kong.UsageOnError())

	cfg, logger := cli.LoadAndValidateConfig(log.ComponentSeed)

	ctx, stop := cli.ShutdownContext()
	defer stop()

	err := kctx.Run(&runContext{ctx: ctx, cfg: cfg, logger: logger})
	kctx.FatalIfErrorf(err)
}
