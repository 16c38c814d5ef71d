package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"budgetcal/internal/core"
	"budgetcal/internal/storage"
)

// FixedSource is the slice of transactions.Manager used to materialise fixed
// expenses.
type FixedSource interface {
	FixedExpenses(ctx context.Context) (core.FixedExpenses, error)
	ByMonth(ctx context.Context, year, month int) ([]core.Transaction, error)
	Add(ctx context.Context, in core.TransactionInput) (core.Transaction, error)
}

// FixedProcessor turns the configured fixed expenses into expense
// transactions once per month.
type FixedProcessor struct {
	source   FixedSource
	settings storage.SettingsStore
	checker  MonthlyChecker
	logger   *slog.Logger
}

// NewFixedProcessor creates a processor that dates transactions on day.
// settings may be nil, in which case ProcessDue always considers the month due.
func NewFixedProcessor(source FixedSource, settings storage.SettingsStore, day int, logger *slog.Logger) *FixedProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &FixedProcessor{
		source:   source,
		settings: settings,
		checker:  MonthlyChecker{Day: day},
		logger:   logger,
	}
}

// ApplyMonth creates one expense per non-zero fixed expense key. Keys whose
// label and category already exist in the month are skipped, so repeated
// calls create nothing new. It returns the number of transactions created.
func (p *FixedProcessor) ApplyMonth(ctx context.Context, year, month int) (int, error) {
	if month < 1 || month > 12 {
		return 0, fmt.Errorf("invalid month: %d", month)
	}
	fixed, err := p.source.FixedExpenses(ctx)
	if err != nil {
		return 0, fmt.Errorf("load fixed expenses: %w", err)
	}
	existing, err := p.source.ByMonth(ctx, year, month)
	if err != nil {
		return 0, fmt.Errorf("load month: %w", err)
	}
	seen := make(map[string]bool, len(existing))
	for _, t := range existing {
		seen[t.Label+"\x00"+t.Category] = true
	}

	date := core.NewDate(year, month, p.checker.TargetDay(year, month))
	created := 0
	var errs []error
	for _, key := range fixed.Keys() {
		amount := fixed[key]
		if amount.Cents <= 0 {
			continue
		}
		category := core.FixedCategory(key)
		if seen[category+"\x00"+category] {
			continue
		}
		_, err := p.source.Add(ctx, core.TransactionInput{
			Label:    category,
			Amount:   amount,
			Category: category,
			Date:     date,
			Type:     core.Expense,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			continue
		}
		seen[category+"\x00"+category] = true
		created++
	}

	p.logger.InfoContext(ctx, "Fixed expenses applied",
		"month", core.MonthKey(year, month),
		"created", created)
	return created, errors.Join(errs...)
}

// ProcessDue applies the current month when it is due and records the run.
func (p *FixedProcessor) ProcessDue(ctx context.Context, now time.Time) (int, error) {
	last, err := p.lastApplied(ctx)
	if err != nil {
		return 0, err
	}
	if !p.checker.IsDue(last, now) {
		return 0, nil
	}
	n, err := p.ApplyMonth(ctx, now.Year(), int(now.Month()))
	if err != nil {
		return n, err
	}
	if p.settings != nil {
		if err := p.settings.SetSetting(ctx, storage.SettingFixedLastApplied, now.UTC().Format(time.RFC3339)); err != nil {
			return n, fmt.Errorf("record fixed run: %w", err)
		}
	}
	return n, nil
}

func (p *FixedProcessor) lastApplied(ctx context.Context) (time.Time, error) {
	if p.settings == nil {
		return time.Time{}, nil
	}
	raw, err := p.settings.GetSetting(ctx, storage.SettingFixedLastApplied)
	if errors.Is(err, storage.ErrNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("load fixed run: %w", err)
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		p.logger.WarnContext(ctx, "Ignoring invalid fixed run timestamp", "value", raw)
		return time.Time{}, nil
	}
	return t, nil
}
