package transactions

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"budgetcal/internal/amqp"
	"budgetcal/internal/core"
	"budgetcal/internal/storage"
)

// MonthlyStats summarises a month. Results are cached until the next write.
func (m *Manager) MonthlyStats(ctx context.Context, year, month int) (core.MonthlyStats, error) {
	key := core.MonthKey(year, month)
	if s, ok := m.stats.Get(key); ok {
		return s, nil
	}
	txs, err := m.ByMonth(ctx, year, month)
	if err != nil {
		return core.MonthlyStats{}, err
	}
	s := core.Summarize(txs)
	m.stats.Set(key, s)
	return s, nil
}

func (m *Manager) TotalStats(ctx context.Context) (core.TotalStats, error) {
	txs, err := m.All(ctx)
	if err != nil {
		return core.TotalStats{}, err
	}
	s := core.Summarize(txs)
	return core.TotalStats{
		TotalIncome:       s.Income,
		TotalExpenses:     s.Expenses,
		TotalBalance:      s.Balance,
		TotalTransactions: s.TransactionCount,
	}, nil
}

// CategoryStats aggregates expenses between start and end (YYYY-MM-DD,
// inclusive, empty for unbounded).
func (m *Manager) CategoryStats(ctx context.Context, start, end string) ([]core.CategoryAmount, error) {
	txs, err := m.ByDateRange(ctx, start, end)
	if err != nil {
		return nil, err
	}
	return core.ExpensesByCategory(txs), nil
}

func (m *Manager) FixedExpenses(ctx context.Context) (core.FixedExpenses, error) {
	fe, err := m.store.GetFixedExpenses(ctx)
	if err != nil {
		return nil, fmt.Errorf("get fixed expenses: %w", err)
	}
	return fe.Normalize(), nil
}

// UpdateFixedExpenses parses raw form values; unparsable ones become zero.
func (m *Manager) UpdateFixedExpenses(ctx context.Context, raw map[string]string) (core.FixedExpenses, error) {
	fe := core.ParseFixedExpenses(raw)
	if err := m.store.SaveFixedExpenses(ctx, fe); err != nil {
		return nil, fmt.Errorf("save fixed expenses: %w", err)
	}
	m.changed(ctx, amqp.EventFixedUpdated, nil, 0)
	return fe, nil
}

func (m *Manager) FixedExpensesTotal(ctx context.Context) (core.Money, error) {
	fe, err := m.FixedExpenses(ctx)
	if err != nil {
		return core.Money{}, err
	}
	return fe.Total(), nil
}

// FixedExpenseAmount returns the prefill amount for category.
func (m *Manager) FixedExpenseAmount(ctx context.Context, category string) (core.Money, error) {
	fe, err := m.FixedExpenses(ctx)
	if err != nil {
		return core.Money{}, err
	}
	return fe.AmountForCategory(category), nil
}

// Import replaces every transaction with txs. Each one is validated and
// keeps its ID; missing IDs and timestamps are filled in.
func (m *Manager) Import(ctx context.Context, txs []core.Transaction) error {
	if txs == nil {
		return ErrInvalidFile
	}
	now := m.now().UTC()
	clean := make([]core.Transaction, 0, len(txs))
	for i, t := range txs {
		t.Label = core.SanitizeLabel(t.Label)
		if err := t.Validate(); err != nil {
			return fmt.Errorf("transaction %d: %w", i+1, err)
		}
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		if t.UpdatedAt.IsZero() {
			t.UpdatedAt = t.CreatedAt
		}
		clean = append(clean, t)
	}
	if err := m.store.ReplaceTransactions(ctx, clean); err != nil {
		return fmt.Errorf("import transactions: %w", err)
	}
	m.logger.InfoContext(ctx, "Transactions imported", "count", len(clean))
	m.changed(ctx, amqp.EventImported, nil, len(clean))
	return nil
}

// Clear removes every transaction.
func (m *Manager) Clear(ctx context.Context) error {
	if err := m.store.ClearTransactions(ctx); err != nil {
		return fmt.Errorf("clear transactions: %w", err)
	}
	m.changed(ctx, amqp.EventCleared, nil, 0)
	return nil
}

// ClearAll removes transactions, fixed expenses and the stored theme.
func (m *Manager) ClearAll(ctx context.Context) error {
	if err := m.store.ClearTransactions(ctx); err != nil {
		return fmt.Errorf("clear transactions: %w", err)
	}
	if err := m.store.SaveFixedExpenses(ctx, core.DefaultFixedExpenses()); err != nil {
		return fmt.Errorf("reset fixed expenses: %w", err)
	}
	if err := m.store.DeleteSetting(ctx, storage.SettingTheme); err != nil {
		return fmt.Errorf("reset theme: %w", err)
	}
	m.changed(ctx, amqp.EventCleared, nil, 0)
	return nil
}

// Export returns the full user data snapshot.
func (m *Manager) Export(ctx context.Context) (core.Snapshot, error) {
	txs, err := m.All(ctx)
	if err != nil {
		return core.Snapshot{}, err
	}
	fe, err := m.FixedExpenses(ctx)
	if err != nil {
		return core.Snapshot{}, err
	}
	theme, err := m.store.GetSetting(ctx, storage.SettingTheme)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return core.Snapshot{}, fmt.Errorf("get theme: %w", err)
	}
	if theme == "" {
		theme = core.DefaultTheme
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	return core.Snapshot{
		Transactions:  txs,
		FixedExpenses: fe,
		Theme:         theme,
		ExportDate:    m.now().UTC(),
	}, nil
}

// Restore imports snap. Transactions are required; fixed expenses and the
// theme are applied when present.
func (m *Manager) Restore(ctx context.Context, snap core.Snapshot) error {
	if snap.Transactions == nil {
		return ErrInvalidFile
	}
	if err := m.Import(ctx, snap.Transactions); err != nil {
		return err
	}
	if snap.FixedExpenses != nil {
		if err := m.store.SaveFixedExpenses(ctx, snap.FixedExpenses.Normalize()); err != nil {
			return fmt.Errorf("restore fixed expenses: %w", err)
		}
	}
	if snap.Theme != "" {
		if err := m.store.SetSetting(ctx, storage.SettingTheme, snap.Theme); err != nil {
			return fmt.Errorf("restore theme: %w", err)
		}
	}
	return nil
}
