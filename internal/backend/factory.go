package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"budgetcal/internal/amqp"
	"budgetcal/internal/sheets"
	gsheet "budgetcal/internal/sheets/google"
	sheetsmem "budgetcal/internal/sheets/memory"
	"budgetcal/internal/storage"
	"budgetcal/internal/storage/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		result *BackendResult
		err    error
	)
	switch config.Type {
	case MemoryBackend:
		result, err = f.createMemoryBackend(config)
	case SQLiteBackend:
		result, err = f.createSQLBackend(storage.NewSQLiteRepository(config.SQLiteDBPath))
	case PostgresBackend:
		result, err = f.createSQLBackend(storage.NewPostgresRepository(ctx, config.DatabaseURL))
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
		} else {
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
			result.Publisher = client
		}
	}

	storeCleanup := result.Cleanup
	result.Cleanup = func() error {
		var errs []error
		if result.Publisher != nil {
			if err := result.Publisher.Close(); err != nil {
				errs = append(errs, fmt.Errorf("amqp: %w", err))
			}
		}
		if err := storeCleanup(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
		return errors.Join(errs...)
	}

	f.logger.Info("Initialized backend",
		"type", config.Type,
		"amqp_enabled", result.Publisher != nil)
	return result, nil
}

func (f *DefaultFactory) createSQLBackend(repo *storage.Repository, err error) (*BackendResult, error) {
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQL repository: %w", err)
	}
	return &BackendResult{
		Store:   repo,
		Outbox:  repo,
		Cleanup: repo.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	if config.DataDirectory == "" {
		store := memory.New()
		return &BackendResult{Store: store, Cleanup: store.Close}, nil
	}
	store, err := memory.NewFromDir(config.DataDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize memory backend: %w", err)
	}
	f.logger.Info("Initialized memory backend", "data_directory", config.DataDirectory)
	return &BackendResult{Store: store, Cleanup: store.Close}, nil
}

// Sink is a spreadsheet mirror that can also be read back.
type Sink interface {
	sheets.TransactionSink
	sheets.TransactionLister
}

// NewSink opens the Google Sheets exporter when a spreadsheet is configured
// and an in-memory sink otherwise.
func NewSink(ctx context.Context, cfg gsheet.Config, logger *slog.Logger) (Sink, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SpreadsheetID == "" {
		logger.Info("No spreadsheet configured, mirroring to memory")
		return sheetsmem.New(), nil
	}
	exp, err := gsheet.New(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	logger.Info("Initialized Google Sheets exporter", "sheet", cfg.SheetName)
	return exp, nil
}
