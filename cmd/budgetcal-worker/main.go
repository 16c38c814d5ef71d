package main

import (
	"context"
	"errors"
	"os"
	"time"

	"budgetcal/internal/backend"
	"budgetcal/internal/cli"
	"budgetcal/internal/config"
	applog "budgetcal/internal/log"
	"budgetcal/internal/services"
	"budgetcal/internal/transactions"
	"budgetcal/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		applog.New(applog.DefaultConfig()).Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	logger := cli.SetupLogger(cfg, applog.ComponentWorker)
	logger.Info("Starting budgetcal-worker",
		applog.NewFields().WithOperation(applog.OpStartup).ToSlice()...)

	ctx, done := cli.GracefulShutdown(logger.Slog(), 30*time.Second, nil)
	err = run(ctx, cfg, logger)
	if ctx.Err() != nil {
		<-done
	}
	if err != nil {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config, logger *applog.Logger) error {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	res, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Slog()).CreateBackend(ctx, bcfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Failed to close backend", "error", err)
		}
	}()

	sink, err := backend.NewSink(ctx, backend.SheetsConfig(cfg), logger.WithComponent(applog.ComponentSheets).Slog())
	if err != nil {
		return err
	}

	// The worker only reads; changes made here must not be published again.
	source := transactions.NewManager(res.Store, transactions.Options{Logger: logger.Slog()})

	pcfg := services.DefaultSyncProcessorConfig()
	pcfg.BatchSize = cfg.SyncBatchSize
	pcfg.PollInterval = cfg.SyncInterval
	proc := services.NewSyncProcessor(res.Outbox, sink, source, pcfg, logger.Slog())

	switch {
	case res.Publisher != nil:
		opts := worker.Options{
			Prefetch: cfg.SyncBatchSize,
			Interval: cfg.SyncInterval,
			Logger:   logger.Slog(),
		}
		if res.Outbox != nil {
			opts.Outbox = proc
		}
		return worker.NewSyncWorker(res.Publisher, proc, opts).Run(ctx)

	case res.Outbox != nil:
		logger.Info("AMQP disabled, draining the outbox only", "interval", cfg.SyncInterval)
		if err := proc.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return proc.Stop(stopCtx)

	default:
		return errors.New("nothing to sync: set AMQP_URL or use a SQL backend")
	}
}
