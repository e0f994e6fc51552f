// Command tracker-worker consumes transaction events and appends each one to
// the journal.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"expensetracker/internal/backend"
	"expensetracker/internal/cache"
	"expensetracker/internal/cli"
	"expensetracker/internal/config"
	"expensetracker/internal/log"
	"expensetracker/internal/worker"
)

const dedupeSweepInterval = time.Minute

func main() {
	cfg, logger := cli.LoadAndValidateConfig(log.ComponentWorker)

	ctx, stop := cli.ShutdownContext()
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Worker exited with error", log.FieldError, err.Error())
		stop()
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	if !cfg.EventsEnabled() {
		return errors.New("AMQP_URL is required to run the worker")
	}

	factory := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Logger)

	j, err := factory.NewJournal(ctx, cfg)
	if err != nil {
		return err
	}

	events, err := factory.NewEventClient(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to broker: %w", err)
	}
	defer events.Close()

	w := worker.NewJournalWorker(j)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return events.ConsumeEvents(gctx, w.HandleEvent)
	})
	g.Go(func() error {
		return cache.NewJanitor(dedupeSweepInterval, w.Sweeper()).Run(gctx)
	})

	logger.Info("Starting tracker-worker",
		"exchange", cfg.AMQPExchange,
		"queue", cfg.AMQPQueue,
		"spreadsheet", cfg.GoogleSpreadsheetID != "")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
