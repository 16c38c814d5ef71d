package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"budgetcal/internal/core"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func sampleTransaction(id string, day int, cents int64, typ core.TransactionType) core.Transaction {
	now := time.Date(2025, 1, day, 10, 0, 0, 0, time.UTC)
	return core.Transaction{
		ID:        id,
		Label:     "Label " + id,
		Amount:    core.Money{Cents: cents},
		Category:  "Alimentation",
		Date:      core.NewDate(2025, 1, day),
		Type:      typ,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestRepositoryTransactionsCRUD(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	tx := sampleTransaction("a", 5, 1250, core.Expense)
	if err := repo.CreateTransaction(ctx, tx); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := repo.GetTransaction(ctx, "a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Label != tx.Label || got.Amount != tx.Amount || got.Date.String() != "2025-01-05" || !got.CreatedAt.Equal(tx.CreatedAt) {
		t.Fatalf("unexpected transaction %+v", got)
	}

	got.Label = "Updated"
	got.UpdatedAt = got.UpdatedAt.Add(time.Hour)
	if err := repo.UpdateTransaction(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ = repo.GetTransaction(ctx, "a")
	if got.Label != "Updated" {
		t.Fatalf("update not persisted: %+v", got)
	}

	if err := repo.DeleteTransaction(ctx, "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.GetTransaction(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := repo.DeleteTransaction(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
	if err := repo.UpdateTransaction(ctx, got); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on update, got %v", err)
	}
}

func TestRepositoryReplaceAndList(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.CreateTransaction(ctx, sampleTransaction("old", 1, 100, core.Expense)); err != nil {
		t.Fatal(err)
	}
	next := []core.Transaction{
		sampleTransaction("b", 20, 300, core.Expense),
		sampleTransaction("a", 2, 200000, core.Income),
	}
	if err := repo.ReplaceTransactions(ctx, next); err != nil {
		t.Fatalf("replace: %v", err)
	}
	list, err := repo.ListTransactions(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != "a" || list[1].ID != "b" {
		t.Fatalf("expected [a b] ordered by date, got %+v", list)
	}
	if err := repo.ClearTransactions(ctx); err != nil {
		t.Fatal(err)
	}
	list, _ = repo.ListTransactions(ctx)
	if len(list) != 0 {
		t.Fatalf("expected empty list, got %d", len(list))
	}
}

func TestRepositoryFixedExpensesAndSettings(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	fe, err := repo.GetFixedExpenses(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(fe) != len(core.FixedExpenseKeys) || fe.Total().Cents != 0 {
		t.Fatalf("expected zero defaults, got %v", fe)
	}
	fe[core.FixedRent] = core.Money{Cents: 75000}
	if err := repo.SaveFixedExpenses(ctx, fe); err != nil {
		t.Fatal(err)
	}
	fe, _ = repo.GetFixedExpenses(ctx)
	if fe[core.FixedRent].Cents != 75000 {
		t.Fatalf("fixed expense not saved: %v", fe)
	}

	if _, err := repo.GetSetting(ctx, SettingTheme); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := repo.SetSetting(ctx, SettingTheme, "aurora"); err != nil {
		t.Fatal(err)
	}
	if err := repo.SetSetting(ctx, SettingTheme, "cyber"); err != nil {
		t.Fatal(err)
	}
	if v, _ := repo.GetSetting(ctx, SettingTheme); v != "cyber" {
		t.Fatalf("expected upserted theme, got %q", v)
	}
	if err := repo.DeleteSetting(ctx, SettingTheme); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.GetSetting(ctx, SettingTheme); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected deleted setting, got %v", err)
	}
}

func TestRepositoryLearningAndFilters(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	data := core.NewLearningData()
	data.LabelToCategory["carrefour"] = "Alimentation"
	data.UserCorrections["carrefour"] = core.Correction{Label: "carrefour", Suggested: "Autres", Chosen: "Alimentation", At: time.Now()}
	data.CategoryStats["Alimentation"] = core.CategoryLearning{Count: 2, LastUsed: time.Now()}
	if err := repo.SaveLearning(ctx, data); err != nil {
		t.Fatal(err)
	}
	loaded, err := repo.LoadLearning(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.LabelToCategory["carrefour"] != "Alimentation" || loaded.CategoryStats["Alimentation"].Count != 2 || loaded.UserCorrections["carrefour"].Suggested != "Autres" {
		t.Fatalf("unexpected learning data %+v", loaded)
	}

	f := core.SavedFilter{Name: "courses", Filters: core.SearchFilters{Search: "carrefour", Categories: []string{"Alimentation"}}, CreatedAt: time.Now()}
	if err := repo.SaveFilter(ctx, f); err != nil {
		t.Fatal(err)
	}
	filters, err := repo.ListSavedFilters(ctx)
	if err != nil || len(filters) != 1 || filters[0].Filters.Search != "carrefour" {
		t.Fatalf("unexpected filters %+v (%v)", filters, err)
	}
	if err := repo.DeleteFilter(ctx, "courses"); err != nil {
		t.Fatal(err)
	}
	if err := repo.DeleteFilter(ctx, "courses"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := repo.SaveSearchHistory(ctx, []string{"loyer", "edf"}); err != nil {
		t.Fatal(err)
	}
	history, _ := repo.SearchHistory(ctx)
	if len(history) != 2 || history[0] != "loyer" {
		t.Fatalf("unexpected history %v", history)
	}
}

func TestRepositorySyncQueue(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if err := repo.EnqueueSync(ctx, SyncUpsert, "a", []byte(`{"id":"a"}`)); err != nil {
		t.Fatal(err)
	}
	if err := repo.EnqueueSync(ctx, SyncDelete, "b", []byte(`{}`)); err != nil {
		t.Fatal(err)
	}
	items, err := repo.DequeueSyncBatch(ctx, 10, time.Now().Add(time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 || items[0].TransactionID != "a" || items[0].Operation != SyncUpsert || string(items[0].Payload) != `{"id":"a"}` {
		t.Fatalf("unexpected items %+v", items)
	}

	if err := repo.MarkSyncProcessing(ctx, items[0].ID); err != nil {
		t.Fatal(err)
	}
	if err := repo.MarkSyncComplete(ctx, items[0].ID); err != nil {
		t.Fatal(err)
	}
	if err := repo.RetrySyncLater(ctx, items[1].ID, "boom", time.Now().Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	items, _ = repo.DequeueSyncBatch(ctx, 10, time.Now().Add(time.Second))
	if len(items) != 0 {
		t.Fatalf("retry should be delayed, got %+v", items)
	}

	stats, err := repo.SyncQueueStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Completed != 1 || stats.Pending != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if err := repo.CleanupCompletedSyncs(ctx, time.Now().Add(time.Minute)); err != nil {
		t.Fatal(err)
	}
	stats, _ = repo.SyncQueueStats(ctx)
	if stats.Completed != 0 {
		t.Fatalf("completed items should be cleaned, got %+v", stats)
	}
}

func TestMigrationVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "v.db")
	repo, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatal(err)
	}
	repo.Close()
	version, dirty, err := MigrationVersion(SQLite, path)
	if err != nil {
		t.Fatal(err)
	}
	if version != 3 || dirty {
		t.Fatalf("expected version 3 clean, got %d dirty=%v", version, dirty)
	}
	// Re-running is a no-op.
	if err := RunMigrations(SQLite, path); err != nil {
		t.Fatalf("second run: %v", err)
	}
}
