package storage

import (
	"context"
	"errors"

	"budgetcal/internal/core"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// Setting keys stored through SettingsStore.
const (
	SettingTheme                = "theme"
	SettingDashboardPreferences = "dashboard-preferences"
	SettingFixedLastApplied     = "fixed-last-applied"
)

// Ports implemented by the SQL repository and the memory store.
type (
	TransactionStore interface {
		CreateTransaction(ctx context.Context, t core.Transaction) error
		GetTransaction(ctx context.Context, id string) (core.Transaction, error)
		UpdateTransaction(ctx context.Context, t core.Transaction) error
		DeleteTransaction(ctx context.Context, id string) error
		// ListTransactions returns every transaction ordered by date then creation time.
		ListTransactions(ctx context.Context) ([]core.Transaction, error)
		// ReplaceTransactions atomically swaps the full transaction set.
		ReplaceTransactions(ctx context.Context, txs []core.Transaction) error
		ClearTransactions(ctx context.Context) error
	}

	FixedExpenseStore interface {
		GetFixedExpenses(ctx context.Context) (core.FixedExpenses, error)
		SaveFixedExpenses(ctx context.Context, fe core.FixedExpenses) error
	}

	// SettingsStore keeps small string values such as the current theme.
	SettingsStore interface {
		GetSetting(ctx context.Context, key string) (string, error)
		SetSetting(ctx context.Context, key, value string) error
		DeleteSetting(ctx context.Context, key string) error
	}

	LearningStore interface {
		LoadLearning(ctx context.Context) (core.LearningData, error)
		SaveLearning(ctx context.Context, data core.LearningData) error
	}

	FilterStore interface {
		ListSavedFilters(ctx context.Context) ([]core.SavedFilter, error)
		SaveFilter(ctx context.Context, f core.SavedFilter) error
		DeleteFilter(ctx context.Context, name string) error
		SearchHistory(ctx context.Context) ([]string, error)
		SaveSearchHistory(ctx context.Context, history []string) error
	}

	// Store bundles every port of one backend.
	Store interface {
		TransactionStore
		FixedExpenseStore
		SettingsStore
		LearningStore
		FilterStore
		Close() error
	}
)
