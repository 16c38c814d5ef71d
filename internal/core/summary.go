package core

import "sort"

// MonthlyStats summarises one calendar month.
type MonthlyStats struct {
	Income           Money `json:"income"`
	Expenses         Money `json:"expenses"`
	Balance          Money `json:"balance"`
	TransactionCount int   `json:"transactionCount"`
}

// TotalStats summarises every stored transaction.
type TotalStats struct {
	TotalIncome       Money `json:"totalIncome"`
	TotalExpenses     Money `json:"totalExpenses"`
	TotalBalance      Money `json:"totalBalance"`
	TotalTransactions int   `json:"totalTransactions"`
}

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Category string `json:"category"`
	Amount   Money  `json:"amount"`
	Count    int    `json:"count"`
}

// Summarize computes income, expenses and balance of txs.
func Summarize(txs []Transaction) MonthlyStats {
	var s MonthlyStats
	for _, t := range txs {
		switch t.Type {
		case Income:
			s.Income = s.Income.Add(t.Amount)
		case Expense:
			s.Expenses = s.Expenses.Add(t.Amount)
		}
	}
	s.Balance = s.Income.Sub(s.Expenses)
	s.TransactionCount = len(txs)
	return s
}

// ExpensesByCategory aggregates expense amounts per category, sorted by
// amount descending then by name.
func ExpensesByCategory(txs []Transaction) []CategoryAmount {
	idx := map[string]int{}
	var out []CategoryAmount
	for _, t := range txs {
		if t.Type != Expense {
			continue
		}
		i, ok := idx[t.Category]
		if !ok {
			i = len(out)
			idx[t.Category] = i
			out = append(out, CategoryAmount{Category: t.Category})
		}
		out[i].Amount = out[i].Amount.Add(t.Amount)
		out[i].Count++
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Amount.Cents != out[b].Amount.Cents {
			return out[a].Amount.Cents > out[b].Amount.Cents
		}
		return out[a].Category < out[b].Category
	})
	return out
}

// InMonth filters txs to a calendar month.
func InMonth(txs []Transaction, year, month int) []Transaction {
	var out []Transaction
	for _, t := range txs {
		if t.Date.Year() == year && t.Date.Month() == month {
			out = append(out, t)
		}
	}
	return out
}
