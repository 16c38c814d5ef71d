package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"budgetcal/internal/amqp"
	"budgetcal/internal/core"
	"budgetcal/internal/sheets"
	"budgetcal/internal/storage"
)

// SyncProcessorConfig holds configuration for the sync processor
type SyncProcessorConfig struct {
	// PollInterval is how often to check for pending items (default: 10s)
	PollInterval time.Duration

	// BatchSize is the max number of items to process per poll cycle (default: 10)
	BatchSize int

	// MaxRetries is the maximum attempts before an item is marked as failed (default: 3)
	MaxRetries int

	// RetryAfter is the base delay before a failed item is retried. It doubles
	// with every attempt (default: 30s)
	RetryAfter time.Duration

	// CleanupInterval is how often to clean up completed items (default: 1h)
	CleanupInterval time.Duration

	// CleanupAge is how old completed items must be before cleanup (default: 24h)
	CleanupAge time.Duration
}

// DefaultSyncProcessorConfig returns sensible defaults
func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		PollInterval:    10 * time.Second,
		BatchSize:       10,
		MaxRetries:      3,
		RetryAfter:      30 * time.Second,
		CleanupInterval: 1 * time.Hour,
		CleanupAge:      24 * time.Hour,
	}
}

// TransactionSource supplies the full transaction set for replace operations.
type TransactionSource interface {
	All(ctx context.Context) ([]core.Transaction, error)
}

// SyncProcessor mirrors transaction changes to the spreadsheet sink. It
// drains the durable outbox in the background and applies broker events on
// demand.
type SyncProcessor struct {
	queue  storage.SyncQueue
	sink   sheets.TransactionSink
	source TransactionSource
	config SyncProcessorConfig
	logger *slog.Logger
	now    func() time.Time

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewSyncProcessor creates a new sync processor. queue may be nil when only
// Apply is used.
func NewSyncProcessor(
	queue storage.SyncQueue,
	sink sheets.TransactionSink,
	source TransactionSource,
	config SyncProcessorConfig,
	logger *slog.Logger,
) *SyncProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncProcessor{
		queue:  queue,
		sink:   sink,
		source: source,
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// Start begins the processing loop. Returns an error if already running.
func (p *SyncProcessor) Start(ctx context.Context) error {
	if p.queue == nil {
		return fmt.Errorf("sync processor has no queue")
	}
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("sync processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	// Items left in processing by a crash are retried.
	if err := p.queue.ResetStaleProcessing(ctx); err != nil {
		p.logger.WarnContext(ctx, "Failed to reset stale processing items", "error", err)
	}

	go p.runLoop(ctx)

	p.logger.InfoContext(ctx, "Sync processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize)

	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		p.logger.InfoContext(ctx, "Sync processor stopped gracefully")
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Sync processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

// IsRunning returns whether the processor is currently running
func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *SyncProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	pollTicker := time.NewTicker(p.config.PollInterval)
	defer pollTicker.Stop()

	cleanupTicker := time.NewTicker(p.config.CleanupInterval)
	defer cleanupTicker.Stop()

	p.ProcessBatch(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-pollTicker.C:
			p.ProcessBatch(ctx)
		case <-cleanupTicker.C:
			p.cleanupCompleted(ctx)
		}
	}
}

// ProcessBatch processes one batch of due outbox items and returns how many
// were handled.
func (p *SyncProcessor) ProcessBatch(ctx context.Context) int {
	items, err := p.queue.DequeueSyncBatch(ctx, p.config.BatchSize, p.now())
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to dequeue sync batch", "error", err)
		return 0
	}
	if len(items) == 0 {
		return 0
	}

	p.logger.DebugContext(ctx, "Processing sync batch", "count", len(items))

	handled := 0
	for _, item := range items {
		if p.stopping(ctx) {
			return handled
		}

		if err := p.queue.MarkSyncProcessing(ctx, item.ID); err != nil {
			p.logger.ErrorContext(ctx, "Failed to mark item as processing",
				"id", item.ID, "error", err)
			continue
		}

		if err := p.process(ctx, item); err != nil {
			p.handleFailure(ctx, item, err)
		} else {
			p.handleSuccess(ctx, item)
		}
		handled++
	}
	return handled
}

func (p *SyncProcessor) stopping(ctx context.Context) bool {
	p.mu.Lock()
	stopCh := p.stopCh
	p.mu.Unlock()
	if stopCh != nil {
		select {
		case <-stopCh:
			return true
		default:
		}
	}
	return ctx.Err() != nil
}

func (p *SyncProcessor) process(ctx context.Context, item storage.SyncItem) error {
	switch item.Operation {
	case storage.SyncUpsert:
		var t core.Transaction
		if err := json.Unmarshal(item.Payload, &t); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		return p.upsert(ctx, t)
	case storage.SyncDelete:
		return p.delete(ctx, item.TransactionID)
	case storage.SyncReplace:
		return p.replace(ctx)
	default:
		return fmt.Errorf("unknown operation: %s", item.Operation)
	}
}

// Apply mirrors one broker event to the sink.
func (p *SyncProcessor) Apply(ctx context.Context, ev *amqp.TransactionEvent) error {
	switch ev.Kind {
	case amqp.EventCreated, amqp.EventUpdated:
		if ev.Transaction == nil {
			return fmt.Errorf("%s event %s has no transaction", ev.Kind, ev.EventID)
		}
		return p.upsert(ctx, *ev.Transaction)
	case amqp.EventDeleted:
		return p.delete(ctx, ev.TransactionID)
	case amqp.EventImported, amqp.EventCleared:
		return p.replace(ctx)
	case amqp.EventFixedUpdated:
		// Fixed expenses are not mirrored.
		return nil
	default:
		return fmt.Errorf("unknown event kind: %s", ev.Kind)
	}
}

// upsert removes any previous row of the transaction before appending it.
func (p *SyncProcessor) upsert(ctx context.Context, t core.Transaction) error {
	if err := p.sink.DeleteTransaction(ctx, t.ID); err != nil {
		return fmt.Errorf("delete previous row: %w", err)
	}
	ref, err := p.sink.AppendTransaction(ctx, t)
	if err != nil {
		return fmt.Errorf("append row: %w", err)
	}
	p.logger.InfoContext(ctx, "Synced transaction",
		"transaction_id", t.ID,
		"sheets_ref", ref)
	return nil
}

func (p *SyncProcessor) delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("delete without transaction id")
	}
	if err := p.sink.DeleteTransaction(ctx, id); err != nil {
		return fmt.Errorf("delete row: %w", err)
	}
	p.logger.InfoContext(ctx, "Deleted synced transaction", "transaction_id", id)
	return nil
}

func (p *SyncProcessor) replace(ctx context.Context) error {
	if p.source == nil {
		return fmt.Errorf("replace requires a transaction source")
	}
	txs, err := p.source.All(ctx)
	if err != nil {
		return fmt.Errorf("load transactions: %w", err)
	}
	if err := p.sink.ReplaceAll(ctx, txs); err != nil {
		return fmt.Errorf("replace rows: %w", err)
	}
	p.logger.InfoContext(ctx, "Replaced synced transactions", "count", len(txs))
	return nil
}

func (p *SyncProcessor) handleSuccess(ctx context.Context, item storage.SyncItem) {
	if err := p.queue.MarkSyncComplete(ctx, item.ID); err != nil {
		p.logger.ErrorContext(ctx, "Failed to mark sync complete",
			"id", item.ID, "error", err)
	}
}

// handleFailure schedules a retry with exponential backoff or marks the item
// as failed once MaxRetries is reached.
func (p *SyncProcessor) handleFailure(ctx context.Context, item storage.SyncItem, processErr error) {
	attempt := item.Attempts + 1
	p.logger.WarnContext(ctx, "Sync processing failed",
		"id", item.ID,
		"operation", item.Operation,
		"attempt", attempt,
		"error", processErr)

	if attempt >= p.config.MaxRetries {
		if err := p.queue.MarkSyncFailed(ctx, item.ID, processErr.Error()); err != nil {
			p.logger.ErrorContext(ctx, "Failed to mark sync as failed",
				"id", item.ID, "error", err)
		}
		p.logger.ErrorContext(ctx, "Sync item failed permanently after max retries",
			"id", item.ID,
			"transaction_id", item.TransactionID,
			"attempts", attempt)
		return
	}

	next := p.now().Add(p.retryDelay(item.Attempts))
	if err := p.queue.RetrySyncLater(ctx, item.ID, processErr.Error(), next); err != nil {
		p.logger.ErrorContext(ctx, "Failed to schedule sync retry",
			"id", item.ID, "error", err)
	}
}

func (p *SyncProcessor) retryDelay(attempts int) time.Duration {
	d := p.config.RetryAfter
	for i := 0; i < attempts && d < time.Hour; i++ {
		d *= 2
	}
	return d
}

func (p *SyncProcessor) cleanupCompleted(ctx context.Context) {
	cutoff := p.now().Add(-p.config.CleanupAge)
	if err := p.queue.CleanupCompletedSyncs(ctx, cutoff); err != nil {
		p.logger.ErrorContext(ctx, "Failed to cleanup completed syncs", "error", err)
	}
}

// Stats returns current queue statistics
func (p *SyncProcessor) Stats(ctx context.Context) (storage.SyncQueueStats, error) {
	return p.queue.SyncQueueStats(ctx)
}

// RetryFailed resets all failed items for retry
func (p *SyncProcessor) RetryFailed(ctx context.Context) error {
	return p.queue.RetryFailedSyncs(ctx)
}
