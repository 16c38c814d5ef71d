package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"budgetcal/internal/amqp"
	"budgetcal/internal/core"
)

type recordingApplier struct {
	mu    sync.Mutex
	kinds []amqp.EventKind
	err   error
}

func (r *recordingApplier) Apply(_ context.Context, ev *amqp.TransactionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.kinds = append(r.kinds, ev.Kind)
	return nil
}

func (r *recordingApplier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.kinds)
}

// chanSource feeds events to the handler until ctx is done.
type chanSource struct {
	events chan *amqp.TransactionEvent
	errs   chan error
}

func (s chanSource) ConsumeTransactionEvents(ctx context.Context, _ int, handler amqp.EventHandler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-s.events:
			s.errs <- handler(ctx, ev)
		}
	}
}

type countingOutbox struct {
	mu      sync.Mutex
	pending int
	calls   int
}

func (o *countingOutbox) ProcessBatch(context.Context) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	n := o.pending
	if n > 2 {
		n = 2
	}
	o.pending -= n
	return n
}

func TestHandleEventDeduplicates(t *testing.T) {
	applier := &recordingApplier{}
	w := NewSyncWorker(nil, applier, Options{})
	tx := &core.Transaction{ID: "tx-1"}
	ev := amqp.NewTransactionEvent(amqp.EventCreated, tx)

	for i := 0; i < 2; i++ {
		if err := w.HandleEvent(context.Background(), ev); err != nil {
			t.Fatalf("HandleEvent: %v", err)
		}
	}
	if applier.count() != 1 {
		t.Fatalf("applied %d times, want 1", applier.count())
	}
}

func TestHandleEventFailureIsRetried(t *testing.T) {
	applier := &recordingApplier{err: errors.New("sheets down")}
	w := NewSyncWorker(nil, applier, Options{})
	ev := amqp.NewTransactionEvent(amqp.EventCleared, nil)

	if err := w.HandleEvent(context.Background(), ev); err == nil {
		t.Fatal("expected error")
	}
	applier.err = nil
	if err := w.HandleEvent(context.Background(), ev); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if applier.count() != 1 {
		t.Fatalf("failed event was marked as seen")
	}
}

func TestStartupSyncCheckDrainsOutbox(t *testing.T) {
	outbox := &countingOutbox{pending: 5}
	w := NewSyncWorker(nil, &recordingApplier{}, Options{Outbox: outbox})
	w.StartupSyncCheck(context.Background())
	if outbox.pending != 0 {
		t.Fatalf("pending = %d, want 0", outbox.pending)
	}
	if outbox.calls != 4 {
		t.Fatalf("calls = %d, want 4", outbox.calls)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	applier := &recordingApplier{}
	src := chanSource{events: make(chan *amqp.TransactionEvent), errs: make(chan error, 1)}
	w := NewSyncWorker(src, applier, Options{Interval: 5 * time.Millisecond, Outbox: &countingOutbox{}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	src.events <- amqp.NewTransactionEvent(amqp.EventDeleted, &core.Transaction{ID: "tx-1"})
	if err := <-src.errs; err != nil {
		t.Fatalf("handler: %v", err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
	if applier.count() != 1 {
		t.Fatalf("applied %d events, want 1", applier.count())
	}
}
