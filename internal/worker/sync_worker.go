// Package worker consumes transaction events and mirrors them to the
// spreadsheet.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"budgetcal/internal/amqp"
	"budgetcal/internal/cache"
)

// EventSource delivers transaction events, typically *amqp.Client.
type EventSource interface {
	ConsumeTransactionEvents(ctx context.Context, prefetch int, handler amqp.EventHandler) error
}

// Applier mirrors one event, typically *services.SyncProcessor.
type Applier interface {
	Apply(ctx context.Context, ev *amqp.TransactionEvent) error
}

// OutboxDrainer processes pending outbox items. It backs up the broker when
// messages were lost or the worker was down.
type OutboxDrainer interface {
	ProcessBatch(ctx context.Context) int
}

// Options configures a SyncWorker.
type Options struct {
	Prefetch int
	// Interval between outbox passes and health logs.
	Interval time.Duration
	Outbox   OutboxDrainer
	Logger   *slog.Logger
}

// SyncWorker handles synchronization of transaction events to the sheet.
type SyncWorker struct {
	events   EventSource
	applier  Applier
	outbox   OutboxDrainer
	prefetch int
	interval time.Duration
	logger   *slog.Logger
	seen     *cache.LRUCache[struct{}]
}

func NewSyncWorker(events EventSource, applier Applier, opts Options) *SyncWorker {
	w := &SyncWorker{
		events:   events,
		applier:  applier,
		outbox:   opts.Outbox,
		prefetch: opts.Prefetch,
		interval: opts.Interval,
		logger:   opts.Logger,
		seen:     cache.NewLRUCache[struct{}](1024, time.Hour),
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	if w.prefetch <= 0 {
		w.prefetch = 10
	}
	if w.interval <= 0 {
		w.interval = 30 * time.Second
	}
	return w
}

// HandleEvent applies one event. Redelivered events that were already
// applied are acknowledged without being applied again.
func (w *SyncWorker) HandleEvent(ctx context.Context, ev *amqp.TransactionEvent) error {
	if ev.EventID != "" {
		if _, ok := w.seen.Get(ev.EventID); ok {
			w.logger.DebugContext(ctx, "Skipping duplicate event", "event_id", ev.EventID)
			return nil
		}
	}

	w.logger.InfoContext(ctx, "Processing transaction event",
		"event_id", ev.EventID,
		"kind", ev.Kind,
		"transaction_id", ev.TransactionID)

	if err := w.applier.Apply(ctx, ev); err != nil {
		return fmt.Errorf("apply %s: %w", ev.Kind.RoutingKey(), err)
	}
	if ev.EventID != "" {
		w.seen.Set(ev.EventID, struct{}{})
	}
	return nil
}

// StartupSyncCheck drains the outbox once so changes made while the worker
// was down are mirrored.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) {
	if w.outbox == nil {
		return
	}
	total := 0
	for ctx.Err() == nil {
		n := w.outbox.ProcessBatch(ctx)
		if n == 0 {
			break
		}
		total += n
	}
	w.logger.InfoContext(ctx, "Startup sync completed", "processed", total)
}

// Run consumes events until ctx is cancelled. It returns nil on a clean
// shutdown.
func (w *SyncWorker) Run(ctx context.Context) error {
	w.StartupSyncCheck(ctx)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.events.ConsumeTransactionEvents(ctx, w.prefetch, w.HandleEvent)
	})
	g.Go(func() error {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				processed := 0
				if w.outbox != nil {
					processed = w.outbox.ProcessBatch(ctx)
				}
				w.logger.DebugContext(ctx, "Sync worker health check",
					"outbox_processed", processed,
					"seen_events", w.seen.Size())
			}
		}
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
