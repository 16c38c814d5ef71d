// Package calendar builds the month grid of the transactions calendar and
// tracks the displayed month and selected day.
package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"budgetcal/internal/core"
	"budgetcal/internal/search"
)

// Cells is the fixed size of a month grid, six weeks of seven days.
const Cells = 42

const maxIndicators = 2

// DayHeaders start on Monday.
var DayHeaders = [7]string{"Lun", "Mar", "Mer", "Jeu", "Ven", "Sam", "Dim"}

type TransactionSource interface {
	All(ctx context.Context) ([]core.Transaction, error)
}

type (
	Indicator struct {
		Label string               `json:"label"`
		Type  core.TransactionType `json:"type"`
		Title string               `json:"title"`
	}

	// Day is one grid cell. Total is income minus expenses of the day.
	Day struct {
		Date         core.Date          `json:"date"`
		Number       int                `json:"number"`
		OtherMonth   bool               `json:"otherMonth"`
		Today        bool               `json:"today"`
		Selected     bool               `json:"selected"`
		Transactions []core.Transaction `json:"transactions"`
		Total        core.Money         `json:"total"`
		TotalLabel   string             `json:"totalLabel,omitempty"`
		Indicators   []Indicator        `json:"indicators"`
		More         string             `json:"more,omitempty"`
		AriaLabel    string             `json:"ariaLabel"`
	}

	View struct {
		Month        core.MonthRef     `json:"month"`
		Title        string            `json:"title"`
		Headers      [7]string         `json:"headers"`
		Days         []Day             `json:"days"`
		Summary      core.MonthlyStats `json:"summary"`
		TotalBalance core.Money        `json:"totalBalance"`
	}

	Period struct {
		Start core.Date `json:"start"`
		End   core.Date `json:"end"`
	}

	// Export is the JSON calendar export.
	Export struct {
		Month        string             `json:"month"`
		Period       Period             `json:"period"`
		Transactions []core.Transaction `json:"transactions"`
		Summary      core.MonthlyStats  `json:"summary"`
	}
)

type Calendar struct {
	source TransactionSource
	now    func() time.Time

	mu       sync.Mutex
	current  core.MonthRef
	selected *core.Date
}

func New(source TransactionSource) *Calendar {
	c := &Calendar{source: source, now: time.Now}
	c.current = core.CurrentMonth(c.now())
	return c
}

// Current returns the displayed month.
func (c *Calendar) Current() core.MonthRef {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Selected returns the selected day, if any.
func (c *Calendar) Selected() (core.Date, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selected == nil {
		return core.Date{}, false
	}
	return *c.selected, true
}

// MonthTitle returns "Mars 2025" style titles.
func (c *Calendar) MonthTitle() string {
	return c.Current().Label()
}

func (c *Calendar) move(m core.MonthRef) core.MonthRef {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = m
	c.selected = nil
	return m
}

func (c *Calendar) Previous() core.MonthRef { return c.move(c.Current().Offset(-1)) }
func (c *Calendar) Next() core.MonthRef     { return c.move(c.Current().Offset(1)) }

// GoTo shows month (1-12) of year. Out of range months roll over.
func (c *Calendar) GoTo(year, month int) core.MonthRef {
	return c.move(core.NewMonthRef(year, month))
}

// Today shows the current month and selects today.
func (c *Calendar) Today() core.Date {
	now := c.now()
	today := core.DateOf(now)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = core.CurrentMonth(now)
	c.selected = &today
	return today
}

// Select selects d, switching month when d is outside the displayed one.
func (c *Calendar) Select(d core.Date) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d.MonthKey() != c.current.Key {
		c.current = core.NewMonthRef(d.Year(), d.Month())
	}
	c.selected = &d
}

// MoveSelection shifts the selected day by days. It reports false when no
// day is selected.
func (c *Calendar) MoveSelection(days int) (core.Date, bool) {
	d, ok := c.Selected()
	if !ok {
		return core.Date{}, false
	}
	d = d.AddDays(days)
	c.Select(d)
	return d, true
}

func (c *Calendar) ClearSelection() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = nil
}

// Bounds returns the first and last day of the grid of m.
func Bounds(m core.MonthRef) (start, end core.Date) {
	first := core.NewDate(m.Year, m.Month, 1)
	lead := (int(first.Weekday()) + 6) % 7
	start = first.AddDays(-lead)
	return start, start.AddDays(Cells - 1)
}

func byDay(txs []core.Transaction) map[string][]core.Transaction {
	out := map[string][]core.Transaction{}
	for _, t := range txs {
		out[t.Date.String()] = append(out[t.Date.String()], t)
	}
	return out
}

// View builds the grid of the displayed month.
func (c *Calendar) View(ctx context.Context) (View, error) {
	txs, err := c.source.All(ctx)
	if err != nil {
		return View{}, fmt.Errorf("load transactions: %w", err)
	}
	c.mu.Lock()
	month, selected := c.current, c.selected
	c.mu.Unlock()
	now := c.now()

	days := byDay(txs)
	start, _ := Bounds(month)
	v := View{
		Month:        month,
		Title:        month.Label(),
		Headers:      DayHeaders,
		Days:         make([]Day, 0, Cells),
		Summary:      core.Summarize(core.InMonth(txs, month.Year, month.Month)),
		TotalBalance: core.Summarize(txs).Balance,
	}
	for i := 0; i < Cells; i++ {
		d := start.AddDays(i)
		v.Days = append(v.Days, buildDay(d, days[d.String()], month, selected, now))
	}
	return v, nil
}

func buildDay(d core.Date, txs []core.Transaction, month core.MonthRef, selected *core.Date, now time.Time) Day {
	day := Day{
		Date:         d,
		Number:       d.Day(),
		OtherMonth:   d.MonthKey() != month.Key,
		Today:        d.IsToday(now),
		Selected:     selected != nil && selected.String() == d.String(),
		Transactions: txs,
		Indicators:   []Indicator{},
		AriaLabel:    d.Display(),
	}
	if len(txs) == 0 {
		day.Transactions = []core.Transaction{}
		return day
	}

	var total core.Money
	for _, t := range txs {
		if t.IsIncome() {
			total = total.Add(t.Amount)
		} else {
			total = total.Sub(t.Amount)
		}
	}
	day.Total = total
	day.TotalLabel = fmt.Sprintf("%+.0f€", total.Euros())

	for i, t := range txs {
		if i == maxIndicators {
			day.More = fmt.Sprintf("+%d autres", len(txs)-maxIndicators)
			break
		}
		day.Indicators = append(day.Indicators, Indicator{
			Label: t.Label,
			Type:  t.Type,
			Title: t.Label + ": " + core.FormatCurrency(t.Amount.Euros()),
		})
	}
	plural := ""
	if len(txs) > 1 {
		plural = "s"
	}
	day.AriaLabel += fmt.Sprintf(", %d transaction%s", len(txs), plural)
	return day
}

// HighlightDates returns the visible days having a transaction whose label
// or category contains term.
func (c *Calendar) HighlightDates(ctx context.Context, term string) ([]core.Date, error) {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return []core.Date{}, nil
	}
	txs, err := c.visible(ctx)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	out := []core.Date{}
	for _, t := range txs {
		if seen[t.Date.String()] {
			continue
		}
		if strings.Contains(strings.ToLower(t.Label), term) || strings.Contains(strings.ToLower(t.Category), term) {
			seen[t.Date.String()] = true
			out = append(out, t.Date)
		}
	}
	return out, nil
}

// visible returns the transactions within the grid, by date.
func (c *Calendar) visible(ctx context.Context) ([]core.Transaction, error) {
	txs, err := c.source.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	start, end := Bounds(c.Current())
	out := []core.Transaction{}
	for _, t := range txs {
		if !t.Date.Before(start) && !t.Date.After(end) {
			out = append(out, t)
		}
	}
	return out, nil
}

// ExportData covers every day of the grid. The summary is the displayed
// month only.
func (c *Calendar) ExportData(ctx context.Context) (Export, error) {
	txs, err := c.visible(ctx)
	if err != nil {
		return Export{}, err
	}
	month := c.Current()
	start, end := Bounds(month)
	return Export{
		Month:        month.Label(),
		Period:       Period{Start: start, End: end},
		Transactions: txs,
		Summary:      core.Summarize(core.InMonth(txs, month.Year, month.Month)),
	}, nil
}

// WriteExport writes the export as "json" or "csv". Any other format is
// written as JSON.
func (c *Calendar) WriteExport(ctx context.Context, w io.Writer, format string) error {
	data, err := c.ExportData(ctx)
	if err != nil {
		return err
	}
	if format == "csv" {
		return search.ExportCSV(w, data.Transactions)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
