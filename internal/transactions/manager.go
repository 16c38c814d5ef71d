// Package transactions owns the transaction set: CRUD, queries, stats,
// fixed expenses and bulk import/export.
package transactions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"budgetcal/internal/amqp"
	"budgetcal/internal/cache"
	"budgetcal/internal/core"
	"budgetcal/internal/storage"
)

var (
	ErrNotFound    = errors.New("Transaction non trouvée")
	ErrInvalidFile = errors.New("Fichier invalide: données de transactions manquantes")
)

// EventPublisher receives an event after every write. Failures are logged
// and never fail the write.
type EventPublisher interface {
	PublishTransactionEvent(ctx context.Context, ev *amqp.TransactionEvent) error
}

// Change is passed to listeners registered with OnChange.
type Change struct {
	Kind        amqp.EventKind
	Transaction *core.Transaction
}

// Options configures a Manager. Every field is optional.
type Options struct {
	Publisher EventPublisher
	// Outbox receives one item per write when set.
	Outbox     storage.SyncQueue
	StatsCache cache.Cache[core.MonthlyStats]
	Logger     *slog.Logger
	Now        func() time.Time
}

type Manager struct {
	store     storage.Store
	publisher EventPublisher
	outbox    storage.SyncQueue
	stats     cache.Cache[core.MonthlyStats]
	logger    *slog.Logger
	now       func() time.Time

	mu        sync.RWMutex
	listeners []func(Change)
}

func NewManager(store storage.Store, opts Options) *Manager {
	m := &Manager{
		store:     store,
		publisher: opts.Publisher,
		outbox:    opts.Outbox,
		stats:     opts.StatsCache,
		logger:    opts.Logger,
		now:       opts.Now,
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.stats == nil {
		m.stats = cache.NewLRUCache[core.MonthlyStats](64, 5*time.Minute)
	}
	return m
}

// OnChange registers fn to be called after each successful write.
func (m *Manager) OnChange(fn func(Change)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

func (m *Manager) changed(ctx context.Context, kind amqp.EventKind, t *core.Transaction, count int) {
	m.stats.Purge()

	m.mu.RLock()
	listeners := append([]func(Change){}, m.listeners...)
	m.mu.RUnlock()
	for _, fn := range listeners {
		fn(Change{Kind: kind, Transaction: t})
	}

	m.enqueue(ctx, kind, t)

	if m.publisher == nil {
		return
	}
	ev := amqp.NewTransactionEvent(kind, t)
	ev.Count = count
	if err := m.publisher.PublishTransactionEvent(ctx, ev); err != nil {
		m.logger.WarnContext(ctx, "Failed to publish transaction event",
			"kind", kind, "error", err)
	}
}

func (m *Manager) enqueue(ctx context.Context, kind amqp.EventKind, t *core.Transaction) {
	if m.outbox == nil {
		return
	}
	var (
		op      storage.SyncOperation
		id      string
		payload []byte
	)
	switch kind {
	case amqp.EventCreated, amqp.EventUpdated:
		op, id = storage.SyncUpsert, t.ID
		payload, _ = json.Marshal(t)
	case amqp.EventDeleted:
		op, id = storage.SyncDelete, t.ID
	case amqp.EventImported, amqp.EventCleared:
		op = storage.SyncReplace
	default:
		return
	}
	if err := m.outbox.EnqueueSync(ctx, op, id, payload); err != nil {
		m.logger.WarnContext(ctx, "Failed to enqueue sync item", "operation", op, "error", err)
	}
}

// Add validates in, assigns an ID and timestamps, and stores it.
func (m *Manager) Add(ctx context.Context, in core.TransactionInput) (core.Transaction, error) {
	in.Label = core.SanitizeLabel(in.Label)
	in.Category = strings.TrimSpace(in.Category)
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}
	now := m.now().UTC()
	t := core.Transaction{
		ID:        uuid.NewString(),
		Label:     in.Label,
		Amount:    in.Amount,
		Category:  in.Category,
		Date:      in.Date,
		Type:      in.Type,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.store.CreateTransaction(ctx, t); err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	m.logger.InfoContext(ctx, "Transaction created",
		"transaction_id", t.ID, "category", t.Category, "amount_cents", t.Amount.Cents)
	m.changed(ctx, amqp.EventCreated, &t, 1)
	return t, nil
}

// Update merges patch into the transaction with the given id.
func (m *Manager) Update(ctx context.Context, id string, patch core.TransactionPatch) (core.Transaction, error) {
	current, err := m.Get(ctx, id)
	if err != nil {
		return core.Transaction{}, err
	}
	updated := patch.Apply(current)
	if err := updated.Validate(); err != nil {
		return core.Transaction{}, err
	}
	updated.UpdatedAt = m.now().UTC()
	if err := m.store.UpdateTransaction(ctx, updated); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return core.Transaction{}, ErrNotFound
		}
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	m.changed(ctx, amqp.EventUpdated, &updated, 1)
	return updated, nil
}

func (m *Manager) Delete(ctx context.Context, id string) error {
	current, err := m.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := m.store.DeleteTransaction(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete transaction: %w", err)
	}
	m.changed(ctx, amqp.EventDeleted, &current, 1)
	return nil
}

func (m *Manager) Get(ctx context.Context, id string) (core.Transaction, error) {
	t, err := m.store.GetTransaction(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return core.Transaction{}, ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

// All returns every transaction ordered by date.
func (m *Manager) All(ctx context.Context) ([]core.Transaction, error) {
	txs, err := m.store.ListTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

func (m *Manager) filter(ctx context.Context, keep func(core.Transaction) bool) ([]core.Transaction, error) {
	txs, err := m.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.Transaction, 0, len(txs))
	for _, t := range txs {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *Manager) ByDate(ctx context.Context, d core.Date) ([]core.Transaction, error) {
	key := d.String()
	return m.filter(ctx, func(t core.Transaction) bool { return t.Date.String() == key })
}

// ByMonth returns the transactions of month (1-12) in year.
func (m *Manager) ByMonth(ctx context.Context, year, month int) ([]core.Transaction, error) {
	return m.filter(ctx, func(t core.Transaction) bool {
		return t.Date.Year() == year && t.Date.Month() == month
	})
}

// ByDateRange compares YYYY-MM-DD strings inclusively. Empty bounds are open.
func (m *Manager) ByDateRange(ctx context.Context, start, end string) ([]core.Transaction, error) {
	return m.filter(ctx, func(t core.Transaction) bool { return inRange(t.Date.String(), start, end) })
}

func inRange(d, start, end string) bool {
	return (start == "" || d >= start) && (end == "" || d <= end)
}

func (m *Manager) ByCategory(ctx context.Context, category string) ([]core.Transaction, error) {
	return m.filter(ctx, func(t core.Transaction) bool { return t.Category == category })
}

func (m *Manager) ByType(ctx context.Context, typ core.TransactionType) ([]core.Transaction, error) {
	return m.filter(ctx, func(t core.Transaction) bool { return t.Type == typ })
}

// Search matches term case-insensitively against label and category.
func (m *Manager) Search(ctx context.Context, term string) ([]core.Transaction, error) {
	term = strings.ToLower(strings.TrimSpace(term))
	return m.filter(ctx, func(t core.Transaction) bool {
		return strings.Contains(strings.ToLower(t.Label), term) ||
			strings.Contains(strings.ToLower(t.Category), term)
	})
}

// UniqueCategories returns the used categories sorted by name.
func (m *Manager) UniqueCategories(ctx context.Context) ([]string, error) {
	txs, err := m.All(ctx)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var out []string
	for _, t := range txs {
		if !seen[t.Category] {
			seen[t.Category] = true
			out = append(out, t.Category)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Years returns the years with transactions, most recent first.
func (m *Manager) Years(ctx context.Context) ([]int, error) {
	txs, err := m.All(ctx)
	if err != nil {
		return nil, err
	}
	seen := map[int]bool{}
	var out []int
	for _, t := range txs {
		if y := t.Date.Year(); !seen[y] {
			seen[y] = true
			out = append(out, y)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out, nil
}
