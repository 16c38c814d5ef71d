// Package charts computes the data series behind the budget charts.
// Rendering is left to the client.
package charts

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/lucasb-eyer/go-colorful"

	"budgetcal/internal/core"
)

// Balance point colours.
const (
	PositiveColor = "#3742FA"
	NegativeColor = "#FF4757"
)

const maxDots = 20

type TransactionSource interface {
	All(ctx context.Context) ([]core.Transaction, error)
}

type (
	BudgetPoint struct {
		Month      string     `json:"month"`
		Key        string     `json:"key"`
		Income     core.Money `json:"income"`
		Expenses   core.Money `json:"expenses"`
		Balance    core.Money `json:"balance"`
		Cumulative core.Money `json:"cumulativeBalance"`
		PointColor string     `json:"pointColor"`
	}

	CategorySlice struct {
		Rank       string     `json:"rank"`
		Category   string     `json:"category"`
		Amount     core.Money `json:"amount"`
		Percentage float64    `json:"percentage"`
		Color      string     `json:"color"`
		Hex        string     `json:"hex"`
		Dots       int        `json:"dots"`
	}

	Bar struct {
		Category string     `json:"category"`
		Amount   core.Money `json:"amount"`
		// Height is in pixels, between 20 and 250.
		Height float64 `json:"height"`
	}

	MatrixCell struct {
		Month    string     `json:"month"`
		Category string     `json:"category"`
		Amount   core.Money `json:"amount"`
	}

	Validation struct {
		Valid           bool     `json:"valid"`
		Issues          []string `json:"issues"`
		Recommendations []string `json:"recommendations"`
	}
)

type Charts struct {
	source TransactionSource
	now    func() time.Time
}

func New(source TransactionSource) *Charts {
	return &Charts{source: source, now: time.Now}
}

func (c *Charts) transactions(ctx context.Context) ([]core.Transaction, error) {
	txs, err := c.source.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load transactions: %w", err)
	}
	return txs, nil
}

// BudgetSeries covers the last 12 months, oldest first.
func (c *Charts) BudgetSeries(ctx context.Context) ([]BudgetPoint, error) {
	txs, err := c.transactions(ctx)
	if err != nil {
		return nil, err
	}
	months := core.LastNMonths(12, c.now())
	out := make([]BudgetPoint, 0, len(months))
	var cumulative core.Money
	for _, m := range months {
		s := core.Summarize(core.InMonth(txs, m.Year, m.Month))
		cumulative = cumulative.Add(s.Balance)
		color := PositiveColor
		if cumulative.Cents < 0 {
			color = NegativeColor
		}
		out = append(out, BudgetPoint{
			Month:      m.Label(),
			Key:        m.Key,
			Income:     s.Income,
			Expenses:   s.Expenses,
			Balance:    s.Balance,
			Cumulative: cumulative,
			PointColor: color,
		})
	}
	return out, nil
}

// CategoryBreakdown splits the current month expenses by category, largest
// first.
func (c *Charts) CategoryBreakdown(ctx context.Context) ([]CategorySlice, error) {
	txs, err := c.transactions(ctx)
	if err != nil {
		return nil, err
	}
	now := c.now()
	amounts := core.ExpensesByCategory(core.InMonth(txs, now.Year(), int(now.Month())))
	var total core.Money
	for _, a := range amounts {
		total = total.Add(a.Amount)
	}

	colors := core.RainbowColors(len(amounts))
	out := make([]CategorySlice, 0, len(amounts))
	for i, a := range amounts {
		share := float64(a.Amount.Cents) / float64(total.Cents)
		out = append(out, CategorySlice{
			Rank:       fmt.Sprintf("%02d", i+1),
			Category:   a.Category,
			Amount:     a.Amount,
			Percentage: math.Round(share*1000) / 10,
			Color:      colors[i].String(),
			Hex:        hex(colors[i]),
			Dots:       max(1, int(math.Round(share*maxDots))),
		})
	}
	return out, nil
}

func hex(c core.HSL) string {
	return colorful.Hsl(c.H, c.S/100, c.L/100).Hex()
}

func (c *Charts) yearExpenses(txs []core.Transaction, n int) []core.Transaction {
	months := core.LastNMonths(n, c.now())
	keys := make(map[string]bool, len(months))
	for _, m := range months {
		keys[m.Key] = true
	}
	var out []core.Transaction
	for _, t := range txs {
		if t.IsExpense() && keys[t.Date.MonthKey()] {
			out = append(out, t)
		}
	}
	return out
}

// ModernBars totals the last 12 months of expenses per category, largest
// first.
func (c *Charts) ModernBars(ctx context.Context) ([]Bar, error) {
	txs, err := c.transactions(ctx)
	if err != nil {
		return nil, err
	}
	amounts := core.ExpensesByCategory(c.yearExpenses(txs, 12))
	out := make([]Bar, 0, len(amounts))
	if len(amounts) == 0 {
		return out, nil
	}
	highest := float64(amounts[0].Amount.Cents)
	for _, a := range amounts {
		pct := float64(a.Amount.Cents) / highest * 100
		out = append(out, Bar{
			Category: a.Category,
			Amount:   a.Amount,
			Height:   math.Max(20, pct*2.5),
		})
	}
	return out, nil
}

// Matrix3D gives the expenses of every category over the last 6 months.
func (c *Charts) Matrix3D(ctx context.Context) ([]MatrixCell, error) {
	txs, err := c.transactions(ctx)
	if err != nil {
		return nil, err
	}
	categories := uniqueCategories(txs)
	months := core.LastNMonths(6, c.now())
	out := make([]MatrixCell, 0, len(months)*len(categories))
	for _, m := range months {
		totals := map[string]core.Money{}
		for _, t := range core.InMonth(txs, m.Year, m.Month) {
			if t.IsExpense() {
				totals[t.Category] = totals[t.Category].Add(t.Amount)
			}
		}
		for _, cat := range categories {
			out = append(out, MatrixCell{Month: m.Name, Category: cat, Amount: totals[cat]})
		}
	}
	return out, nil
}

func uniqueCategories(txs []core.Transaction) []string {
	seen := map[string]bool{}
	var out []string
	for _, t := range txs {
		if !seen[t.Category] {
			seen[t.Category] = true
			out = append(out, t.Category)
		}
	}
	return out
}

// Validate lists what makes the charts unreliable. Valid is false only when
// the transactions cannot be loaded.
func (c *Charts) Validate(ctx context.Context) Validation {
	v := Validation{Valid: true, Issues: []string{}, Recommendations: []string{}}
	add := func(issue, rec string) {
		v.Issues = append(v.Issues, issue)
		v.Recommendations = append(v.Recommendations, rec)
	}

	txs, err := c.transactions(ctx)
	if err != nil {
		v.Valid = false
		v.Issues = append(v.Issues, "Erreur lors de la validation: "+err.Error())
		return v
	}
	if len(txs) == 0 {
		add("Aucune transaction disponible", "Ajoutez des transactions pour voir les graphiques")
	}
	if len(txs) < 3 {
		add("Peu de transactions disponibles", "Ajoutez plus de transactions pour des graphiques plus significatifs")
	}
	if len(uniqueCategories(txs)) < 2 {
		add("Peu de catégories utilisées", "Utilisez plus de catégories pour une meilleure analyse")
	}
	withData := 0
	for _, m := range core.LastNMonths(6, c.now()) {
		if len(core.InMonth(txs, m.Year, m.Month)) > 0 {
			withData++
		}
	}
	if withData < 3 {
		add("Données sur peu de mois", "Continuez à enregistrer des transactions pour voir les tendances")
	}
	return v
}
