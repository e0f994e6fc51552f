// Command expensetracker serves the transaction REST API.
package main

import (
	"context"
	"fmt"
	"os"

	"expensetracker/internal/backend"
	"expensetracker/internal/cli"
	"expensetracker/internal/config"
	apphttp "expensetracker/internal/http"
	"expensetracker/internal/log"
	"expensetracker/internal/seed"
)

func main() {
	cfg, logger := cli.LoadAndValidateConfig(log.ComponentApp)

	ctx, stop := cli.ShutdownContext()
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Server exited with error", log.FieldError, err.Error())
		stop()
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	loc, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("load timezone: %w", err)
	}

	res, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Logger).Build(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build backend: %w", err)
	}
	defer func() {
		if err := res.Close(); err != nil {
			logger.Error("Failed to close backend", log.FieldError, err.Error())
		}
	}()

	if cfg.SeedDemoData {
		n, err := seed.New(res.Store).SeedIfEmpty(ctx)
		if err != nil {
			return fmt.Errorf("seed demo data: %w", err)
		}
		if n > 0 {
			logger.Info("Demo data seeded", "count", n)
		}
	}

	srv, err := apphttp.NewServer(res.Service, apphttp.Options{
		Addr:               ":" + cfg.Port,
		Location:           loc,
		StaticDir:          cfg.StaticDir,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		SummaryCacheTTL:    cfg.SummaryCacheTTL,
		Logger:             logger,
	})
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	logger.Info("Starting expensetracker server",
		"port", cfg.Port,
		"data_backend", cfg.DataBackend,
		"timezone", loc.String(),
		"events_enabled", res.Events != nil)
	return srv.Run(ctx)
}
