package transactions

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"budgetcal/internal/amqp"
	"budgetcal/internal/core"
	"budgetcal/internal/storage"
	"budgetcal/internal/storage/memory"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.TransactionEvent
	err    error
}

func (p *recordingPublisher) PublishTransactionEvent(_ context.Context, ev *amqp.TransactionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) kinds() []amqp.EventKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []amqp.EventKind
	for _, ev := range p.events {
		out = append(out, ev.Kind)
	}
	return out
}

var fixedNow = time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)

func newTestManager(t *testing.T) (*Manager, *memory.Store, *recordingPublisher) {
	t.Helper()
	store := memory.New()
	pub := &recordingPublisher{}
	m := NewManager(store, Options{
		Publisher: pub,
		Outbox:    store,
		Now:       func() time.Time { return fixedNow },
	})
	return m, store, pub
}

func input(label string, cents int64, category string, date core.Date, typ core.TransactionType) core.TransactionInput {
	return core.TransactionInput{Label: label, Amount: core.Money{Cents: cents}, Category: category, Date: date, Type: typ}
}

func TestAddValidatesAndSanitizes(t *testing.T) {
	m, _, pub := newTestManager(t)
	ctx := context.Background()

	_, err := m.Add(ctx, input("  ", 100, "Autres", core.NewDate(2025, 3, 1), core.Expense))
	if !errors.Is(err, core.ErrLabelRequired) {
		t.Fatalf("expected label error, got %v", err)
	}

	tx, err := m.Add(ctx, input(" <b>Courses</b> ", 4250, "Alimentation", core.NewDate(2025, 3, 2), core.Expense))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if tx.ID == "" || tx.Label != "bCourses/b" {
		t.Fatalf("unexpected transaction %+v", tx)
	}
	if !tx.CreatedAt.Equal(fixedNow) || !tx.UpdatedAt.Equal(fixedNow) {
		t.Fatalf("timestamps not set: %+v", tx)
	}
	if got := pub.kinds(); len(got) != 1 || got[0] != amqp.EventCreated {
		t.Fatalf("expected one created event, got %v", got)
	}
}

func TestUpdateAndDeleteNotFound(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()

	label := "x"
	if _, err := m.Update(ctx, "missing", core.TransactionPatch{Label: &label}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := m.Delete(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if ErrNotFound.Error() != "Transaction non trouvée" {
		t.Fatalf("unexpected message %q", ErrNotFound.Error())
	}
}

func TestUpdateMergesPatch(t *testing.T) {
	m, _, pub := newTestManager(t)
	ctx := context.Background()
	tx, _ := m.Add(ctx, input("Salaire", 250000, "Salaire", core.NewDate(2025, 3, 1), core.Income))

	amount := core.Money{Cents: 260000}
	updated, err := m.Update(ctx, tx.ID, core.TransactionPatch{Amount: &amount})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Label != "Salaire" || updated.Amount.Cents != 260000 {
		t.Fatalf("unexpected update %+v", updated)
	}

	zero := core.Money{}
	if _, err := m.Update(ctx, tx.ID, core.TransactionPatch{Amount: &zero}); !errors.Is(err, core.ErrAmountNotPositive) {
		t.Fatalf("expected amount error, got %v", err)
	}

	if err := m.Delete(ctx, tx.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	want := []amqp.EventKind{amqp.EventCreated, amqp.EventUpdated, amqp.EventDeleted}
	if diff := cmp.Diff(want, pub.kinds()); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}
}

func seed(t *testing.T, m *Manager) {
	t.Helper()
	ctx := context.Background()
	rows := []core.TransactionInput{
		input("Salaire", 300000, "Salaire", core.NewDate(2025, 3, 1), core.Income),
		input("Loyer mars", 90000, "Loyer", core.NewDate(2025, 3, 3), core.Expense),
		input("Carrefour", 12000, "Alimentation", core.NewDate(2025, 3, 10), core.Expense),
		input("Lidl", 3000, "Alimentation", core.NewDate(2025, 3, 12), core.Expense),
		input("Loyer février", 90000, "Loyer", core.NewDate(2025, 2, 3), core.Expense),
		input("Cadeau", 5000, "Loisirs", core.NewDate(2024, 12, 24), core.Expense),
	}
	for _, in := range rows {
		if _, err := m.Add(ctx, in); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func TestQueries(t *testing.T) {
	m, _, _ := newTestManager(t)
	seed(t, m)
	ctx := context.Background()

	march, _ := m.ByMonth(ctx, 2025, 3)
	if len(march) != 4 {
		t.Fatalf("expected 4 transactions in March, got %d", len(march))
	}
	ranged, _ := m.ByDateRange(ctx, "2025-02-03", "2025-03-03")
	if len(ranged) != 3 {
		t.Fatalf("expected inclusive range of 3, got %d", len(ranged))
	}
	found, _ := m.Search(ctx, "LOYER")
	if len(found) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(found))
	}
	cats, _ := m.UniqueCategories(ctx)
	if diff := cmp.Diff([]string{"Alimentation", "Loisirs", "Loyer", "Salaire"}, cats); diff != "" {
		t.Fatalf("categories mismatch:\n%s", diff)
	}
	years, _ := m.Years(ctx)
	if diff := cmp.Diff([]int{2025, 2024}, years); diff != "" {
		t.Fatalf("years mismatch:\n%s", diff)
	}
	incomes, _ := m.ByType(ctx, core.Income)
	if len(incomes) != 1 {
		t.Fatalf("expected 1 income, got %d", len(incomes))
	}
	day, _ := m.ByDate(ctx, core.NewDate(2025, 3, 10))
	if len(day) != 1 || day[0].Label != "Carrefour" {
		t.Fatalf("unexpected ByDate result %+v", day)
	}
}

func TestStats(t *testing.T) {
	m, _, _ := newTestManager(t)
	seed(t, m)
	ctx := context.Background()

	s, err := m.MonthlyStats(ctx, 2025, 3)
	if err != nil {
		t.Fatalf("MonthlyStats: %v", err)
	}
	want := core.MonthlyStats{
		Income:           core.Money{Cents: 300000},
		Expenses:         core.Money{Cents: 105000},
		Balance:          core.Money{Cents: 195000},
		TransactionCount: 4,
	}
	if s != want {
		t.Fatalf("expected %+v, got %+v", want, s)
	}

	// a write must invalidate the cached month
	if _, err := m.Add(ctx, input("Cinéma", 1000, "Loisirs", core.NewDate(2025, 3, 20), core.Expense)); err != nil {
		t.Fatal(err)
	}
	s, _ = m.MonthlyStats(ctx, 2025, 3)
	if s.TransactionCount != 5 || s.Expenses.Cents != 106000 {
		t.Fatalf("stale stats after write: %+v", s)
	}

	total, _ := m.TotalStats(ctx)
	if total.TotalTransactions != 7 || total.TotalBalance.Cents != 300000-106000-95000 {
		t.Fatalf("unexpected totals %+v", total)
	}

	cats, _ := m.CategoryStats(ctx, "2025-03-01", "")
	if len(cats) != 3 || cats[0].Category != "Loyer" || cats[1].Category != "Alimentation" || cats[1].Count != 2 {
		t.Fatalf("unexpected category stats %+v", cats)
	}
}

func TestFixedExpenses(t *testing.T) {
	m, _, pub := newTestManager(t)
	ctx := context.Background()

	fe, err := m.UpdateFixedExpenses(ctx, map[string]string{"loyer": "850,50", "edf": "abc", "internet": "29.99"})
	if err != nil {
		t.Fatalf("UpdateFixedExpenses: %v", err)
	}
	if fe["edf"].Cents != 0 || fe["loyer"].Cents != 85050 {
		t.Fatalf("unexpected fixed expenses %+v", fe)
	}
	total, _ := m.FixedExpensesTotal(ctx)
	if total.Cents != 85050+2999 {
		t.Fatalf("unexpected total %d", total.Cents)
	}
	amount, _ := m.FixedExpenseAmount(ctx, "Internet")
	if amount.Cents != 2999 {
		t.Fatalf("unexpected internet prefill %d", amount.Cents)
	}
	amount, _ = m.FixedExpenseAmount(ctx, "Alimentation")
	if amount.Cents != 0 {
		t.Fatalf("expected no prefill, got %d", amount.Cents)
	}
	if got := pub.kinds(); len(got) != 1 || got[0] != amqp.EventFixedUpdated {
		t.Fatalf("expected fixed_updated event, got %v", got)
	}
}

func TestExportRestore(t *testing.T) {
	m, store, _ := newTestManager(t)
	seed(t, m)
	ctx := context.Background()
	if err := store.SetSetting(ctx, storage.SettingTheme, "cyber"); err != nil {
		t.Fatal(err)
	}

	snap, err := m.Export(ctx)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if len(snap.Transactions) != 6 || snap.Theme != "cyber" || !snap.ExportDate.Equal(fixedNow) {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	if err := m.Restore(ctx, core.Snapshot{}); !errors.Is(err, ErrInvalidFile) {
		t.Fatalf("expected ErrInvalidFile, got %v", err)
	}

	other, _, pub := newTestManager(t)
	if err := other.Restore(ctx, snap); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	all, _ := other.All(ctx)
	if len(all) != 6 {
		t.Fatalf("expected 6 restored transactions, got %d", len(all))
	}
	if got := pub.kinds(); len(got) != 1 || got[0] != amqp.EventImported {
		t.Fatalf("expected imported event, got %v", got)
	}
}

func TestImportRejectsInvalid(t *testing.T) {
	m, _, _ := newTestManager(t)
	err := m.Import(context.Background(), []core.Transaction{{Label: "x", Category: "Autres", Date: core.NewDate(2025, 1, 1), Type: core.Expense}})
	if !errors.Is(err, core.ErrAmountNotPositive) {
		t.Fatalf("expected amount error, got %v", err)
	}
}

func TestClearAll(t *testing.T) {
	m, store, pub := newTestManager(t)
	seed(t, m)
	ctx := context.Background()
	_, _ = m.UpdateFixedExpenses(ctx, map[string]string{"loyer": "900"})
	_ = store.SetSetting(ctx, storage.SettingTheme, "aurora")

	var changes []Change
	m.OnChange(func(c Change) { changes = append(changes, c) })

	if err := m.ClearAll(ctx); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}
	all, _ := m.All(ctx)
	total, _ := m.FixedExpensesTotal(ctx)
	if len(all) != 0 || total.Cents != 0 {
		t.Fatalf("data not cleared: %d transactions, fixed %d", len(all), total.Cents)
	}
	if _, err := store.GetSetting(ctx, storage.SettingTheme); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("theme should be removed, got %v", err)
	}
	if len(changes) != 1 || changes[0].Kind != amqp.EventCleared {
		t.Fatalf("unexpected changes %+v", changes)
	}
	if got := pub.kinds(); got[len(got)-1] != amqp.EventCleared {
		t.Fatalf("expected final cleared event, got %v", got)
	}
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	m, _, pub := newTestManager(t)
	pub.err = errors.New("broker down")
	if _, err := m.Add(context.Background(), input("Pain", 150, "Alimentation", core.NewDate(2025, 3, 1), core.Expense)); err != nil {
		t.Fatalf("write must succeed when publishing fails: %v", err)
	}
}

func TestWritesEnqueueOutbox(t *testing.T) {
	m, store, _ := newTestManager(t)
	ctx := context.Background()
	tx, _ := m.Add(ctx, input("Pain", 150, "Alimentation", core.NewDate(2025, 3, 1), core.Expense))
	_ = m.Delete(ctx, tx.ID)
	_ = m.Clear(ctx)

	items, err := store.DequeueSyncBatch(ctx, 10, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	var ops []storage.SyncOperation
	for _, it := range items {
		ops = append(ops, it.Operation)
	}
	want := []storage.SyncOperation{storage.SyncUpsert, storage.SyncDelete, storage.SyncReplace}
	if diff := cmp.Diff(want, ops); diff != "" {
		t.Fatalf("outbox mismatch (-want +got):\n%s", diff)
	}
}
