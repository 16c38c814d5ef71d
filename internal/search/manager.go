// Package search filters the transaction set with free text queries and
// structured filters, and keeps saved filters and the search history.
package search

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"budgetcal/internal/core"
	"budgetcal/internal/storage"
)

const maxHistory = 10

// Quick filter names.
const (
	QuickThisWeek     = "this-week"
	QuickThisMonth    = "this-month"
	QuickLargeAmounts = "large-amounts"
	QuickExpensesOnly = "expenses-only"
	QuickIncomeOnly   = "income-only"
)

var (
	ErrUnknownQuickFilter = errors.New("unknown quick filter")
	ErrFilterNameRequired = errors.New("Nom du filtre requis")
)

type TransactionSource interface {
	All(ctx context.Context) ([]core.Transaction, error)
}

// CategoryCount is how many saved filters select a category.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

type Analytics struct {
	SavedFilters  int             `json:"savedFilters"`
	HistorySize   int             `json:"historySize"`
	History       []string        `json:"history"`
	TopCategories []CategoryCount `json:"topCategories"`
}

// Manager holds the current filters of one user.
type Manager struct {
	source TransactionSource
	store  storage.FilterStore
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	current core.SearchFilters
	last    []core.Transaction
}

func NewManager(source TransactionSource, store storage.FilterStore, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		source:  source,
		store:   store,
		logger:  logger,
		now:     time.Now,
		current: core.DefaultFilters(),
	}
}

// Filters returns the current filters.
func (m *Manager) Filters() core.SearchFilters {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// LastResults returns the result of the last search.
func (m *Manager) LastResults() []core.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]core.Transaction(nil), m.last...)
}

// Search makes f the current filters and returns the matching
// transactions. A non-empty text query is added to the history.
func (m *Manager) Search(ctx context.Context, f core.SearchFilters) ([]core.Transaction, error) {
	f = withDefaults(f)
	if f.Search != "" {
		if err := m.addHistory(ctx, f.Search); err != nil {
			return nil, err
		}
	}
	return m.run(ctx, f)
}

func withDefaults(f core.SearchFilters) core.SearchFilters {
	f.Search = strings.TrimSpace(f.Search)
	if f.SortBy == "" {
		f.SortBy = core.SortByDate
	}
	if f.SortOrder == "" {
		f.SortOrder = "desc"
	}
	return f
}

func (m *Manager) run(ctx context.Context, f core.SearchFilters) ([]core.Transaction, error) {
	txs, err := m.source.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	results := Apply(txs, f)

	m.mu.Lock()
	m.current = f
	m.last = results
	m.mu.Unlock()

	m.logger.Debug("Search applied",
		"filters", ActiveFilterCount(f),
		"results", len(results),
		"total", len(txs))
	return results, nil
}

// ClearFilters resets the current filters and returns every transaction.
func (m *Manager) ClearFilters(ctx context.Context) ([]core.Transaction, error) {
	return m.run(ctx, core.DefaultFilters())
}

// QuickFilter applies a predefined filter on top of the current filters.
func (m *Manager) QuickFilter(ctx context.Context, name string) ([]core.Transaction, error) {
	f := m.Filters()
	now := m.now()
	switch name {
	case QuickThisWeek:
		start := core.DateOf(now).AddDays(-int(now.Weekday()))
		f.DateRange = core.DateRange{Start: start.String(), End: start.AddDays(6).String()}
	case QuickThisMonth:
		y, mo := now.Year(), int(now.Month())
		f.DateRange = core.DateRange{
			Start: core.NewDate(y, mo, 1).String(),
			End:   core.NewDate(y, mo, core.DaysIn(y, mo)).String(),
		}
	case QuickLargeAmounts:
		txs, err := m.source.All(ctx)
		if err != nil {
			return nil, fmt.Errorf("load transactions: %w", err)
		}
		if threshold, ok := LargeAmountThreshold(txs); ok {
			f.AmountRange.Min = &threshold
		}
	case QuickExpensesOnly:
		f.Types = []core.TransactionType{core.Expense}
	case QuickIncomeOnly:
		f.Types = []core.TransactionType{core.Income}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownQuickFilter, name)
	}
	return m.run(ctx, f)
}

// LargeAmountThreshold returns the amount entering the top 10%.
func LargeAmountThreshold(txs []core.Transaction) (float64, bool) {
	if len(txs) == 0 {
		return 0, false
	}
	amounts := make([]float64, len(txs))
	for i, t := range txs {
		amounts[i] = t.Amount.Euros()
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(amounts)))
	return amounts[int(math.Floor(float64(len(amounts))*0.1))], true
}

func (m *Manager) addHistory(ctx context.Context, query string) error {
	history, err := m.store.SearchHistory(ctx)
	if err != nil {
		return fmt.Errorf("load search history: %w", err)
	}
	for _, h := range history {
		if h == query {
			return nil
		}
	}
	history = append([]string{query}, history...)
	if len(history) > maxHistory {
		history = history[:maxHistory]
	}
	if err := m.store.SaveSearchHistory(ctx, history); err != nil {
		return fmt.Errorf("save search history: %w", err)
	}
	return nil
}

// History returns past queries, most recent first.
func (m *Manager) History(ctx context.Context) ([]string, error) {
	return m.store.SearchHistory(ctx)
}

// SaveFilter stores the current filters under name, replacing any filter
// with the same name.
func (m *Manager) SaveFilter(ctx context.Context, name string) (core.SavedFilter, error) {
	return m.SaveFilters(ctx, name, m.Filters())
}

// SaveFilters stores f under name, leaving the current filters alone.
func (m *Manager) SaveFilters(ctx context.Context, name string, f core.SearchFilters) (core.SavedFilter, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.SavedFilter{}, ErrFilterNameRequired
	}
	sf := core.SavedFilter{Name: name, Filters: withDefaults(f), CreatedAt: m.now()}
	if err := m.store.SaveFilter(ctx, sf); err != nil {
		return core.SavedFilter{}, fmt.Errorf("save filter: %w", err)
	}
	m.logger.Info("Search filter saved", "filter", name)
	return sf, nil
}

// LoadFilter makes a saved filter current and runs it.
func (m *Manager) LoadFilter(ctx context.Context, name string) ([]core.Transaction, error) {
	saved, err := m.store.ListSavedFilters(ctx)
	if err != nil {
		return nil, fmt.Errorf("list filters: %w", err)
	}
	for _, sf := range saved {
		if sf.Name == name {
			return m.run(ctx, sf.Filters)
		}
	}
	return nil, fmt.Errorf("filter %q: %w", name, storage.ErrNotFound)
}

func (m *Manager) DeleteFilter(ctx context.Context, name string) error {
	if err := m.store.DeleteFilter(ctx, name); err != nil {
		return fmt.Errorf("delete filter %q: %w", name, err)
	}
	return nil
}

func (m *Manager) SavedFilters(ctx context.Context) ([]core.SavedFilter, error) {
	return m.store.ListSavedFilters(ctx)
}

// Analytics summarises saved filters and the history.
func (m *Manager) Analytics(ctx context.Context) (Analytics, error) {
	saved, err := m.store.ListSavedFilters(ctx)
	if err != nil {
		return Analytics{}, fmt.Errorf("list filters: %w", err)
	}
	history, err := m.store.SearchHistory(ctx)
	if err != nil {
		return Analytics{}, fmt.Errorf("load search history: %w", err)
	}

	usage := map[string]int{}
	for _, sf := range saved {
		for _, c := range sf.Filters.Categories {
			usage[c]++
		}
	}
	top := make([]CategoryCount, 0, len(usage))
	for c, n := range usage {
		top = append(top, CategoryCount{Category: c, Count: n})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Count != top[j].Count {
			return top[i].Count > top[j].Count
		}
		return top[i].Category < top[j].Category
	})
	if len(top) > 5 {
		top = top[:5]
	}
	if history == nil {
		history = []string{}
	}
	return Analytics{
		SavedFilters:  len(saved),
		HistorySize:   len(history),
		History:       history,
		TopCategories: top,
	}, nil
}

// ExportFileName is the download name of a filtered export.
func ExportFileName(at time.Time) string {
	return "transactions_filtered_" + at.Format(core.DateLayout) + ".csv"
}

// ExportCSV writes txs with every data cell quoted.
func ExportCSV(w io.Writer, txs []core.Transaction) error {
	bw := bufio.NewWriter(w)
	bw.WriteString("Date,Libellé,Catégorie,Montant,Type")
	for _, t := range txs {
		cells := []string{t.Date.Display(), t.Label, t.Category, amountText(t.Amount), t.Type.Label()}
		for i, c := range cells {
			if i == 0 {
				bw.WriteByte('\n')
			} else {
				bw.WriteByte(',')
			}
			bw.WriteString(`"` + strings.ReplaceAll(c, `"`, `""`) + `"`)
		}
	}
	return bw.Flush()
}
