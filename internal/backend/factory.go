// Package backend assembles the storage, event and journal adapters named in
// the configuration.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"expensetracker/internal/amqp"
	"expensetracker/internal/config"
	"expensetracker/internal/journal"
	"expensetracker/internal/journal/google"
	"expensetracker/internal/journal/memory"
	"expensetracker/internal/services"
	"expensetracker/internal/storage"
)

// amqpDialTimeout caps how long startup waits for the broker.
const amqpDialTimeout = 30 * time.Second

// Result is a ready service plus everything that must be closed with it.
type Result struct {
	Service *services.TransactionService
	Store   storage.TransactionStore
	Events  *amqp.Client
}

// Close releases the AMQP connection, then the store through the service
// that owns it.
func (r *Result) Close() error {
	var errs []error
	if r.Events != nil {
		if err := r.Events.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	switch {
	case r.Service != nil:
		if err := r.Service.Close(); err != nil {
			errs = append(errs, err)
		}
	case r.Store != nil:
		if err := r.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	return errors.Join(errs...)
}

type Factory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{logger: logger}
}

// NewStore opens the store selected by cfg.DataBackend.
func (f *Factory) NewStore(ctx context.Context, cfg *config.Config) (storage.TransactionStore, error) {
	switch cfg.DataBackend {
	case config.BackendMemory:
		f.logger.Warn("Using in-memory store, data is lost on restart")
		return storage.NewMemoryStore(), nil
	case config.BackendSQLite:
		store, err := storage.NewSQLiteStore(cfg.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("initialize SQLite store: %w", err)
		}
		return store, nil
	case config.BackendPostgres:
		store, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL, storage.DefaultPostgresOptions())
		if err != nil {
			return nil, fmt.Errorf("initialize PostgreSQL store: %w", err)
		}
		return store, nil
	}
	return nil, fmt.Errorf("unsupported backend type: %s", cfg.DataBackend)
}

// NewEventClient connects to the broker, or returns nil when events are off.
func (f *Factory) NewEventClient(ctx context.Context, cfg *config.Config) (*amqp.Client, error) {
	if !cfg.EventsEnabled() {
		return nil, nil
	}
	return amqp.NewClient(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, amqpDialTimeout)
}

// Build wires the transaction service. A broker that cannot be reached only
// disables events; the API keeps working on local storage.
func (f *Factory) Build(ctx context.Context, cfg *config.Config) (*Result, error) {
	store, err := f.NewStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	result := &Result{Store: store}

	events, err := f.NewEventClient(ctx, cfg)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
	}

	// keep the interface nil when there is no client
	var publisher services.Publisher
	if events != nil {
		result.Events = events
		publisher = events
	}

	result.Service = services.NewTransactionService(store, publisher)

	f.logger.Info("Backend initialized",
		"data_backend", cfg.DataBackend,
		"events_enabled", events != nil)
	return result, nil
}

// NewJournal returns the Google Sheets journal when a spreadsheet is
// configured and an in-memory one otherwise.
func (f *Factory) NewJournal(ctx context.Context, cfg *config.Config) (journal.Journal, error) {
	if cfg.GoogleSpreadsheetID == "" {
		f.logger.Warn("No spreadsheet configured, journaling to memory only")
		return memory.New(), nil
	}

	client, err := google.New(ctx, google.Options{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize Google Sheets journal: %w", err)
	}
	return client, nil
}
