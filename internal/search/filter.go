package search

import (
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"budgetcal/internal/core"
)

// Apply filters and sorts txs. txs is not modified.
func Apply(txs []core.Transaction, f core.SearchFilters) []core.Transaction {
	out := make([]core.Transaction, 0, len(txs))
	for _, t := range txs {
		if matches(t, f) {
			out = append(out, t)
		}
	}
	sortTransactions(out, f.SortBy, f.SortOrder)
	return out
}

func matches(t core.Transaction, f core.SearchFilters) bool {
	if f.Search != "" && !MatchText(t, f.Search) {
		return false
	}
	if len(f.Categories) > 0 && !contains(f.Categories, t.Category) {
		return false
	}
	if len(f.Types) > 0 && !containsType(f.Types, t.Type) {
		return false
	}
	date := t.Date.String()
	if f.DateRange.Start != "" && date < f.DateRange.Start {
		return false
	}
	if f.DateRange.End != "" && date > f.DateRange.End {
		return false
	}
	amount := t.Amount.Euros()
	if f.AmountRange.Min != nil && amount < *f.AmountRange.Min {
		return false
	}
	if f.AmountRange.Max != nil && amount > *f.AmountRange.Max {
		return false
	}
	return true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsType(list []core.TransactionType, typ core.TransactionType) bool {
	for _, v := range list {
		if v == typ {
			return true
		}
	}
	return false
}

func amountText(m core.Money) string {
	return strconv.FormatFloat(m.Euros(), 'f', -1, 64)
}

// MatchText reports whether t matches every whitespace separated term of
// query. Terms support "quoted", -excluded, >n, <n and =n. A quoted term
// keeps its text verbatim, operators included.
func MatchText(t core.Transaction, query string) bool {
	text := strings.ToLower(strings.Join([]string{t.Label, t.Category, amountText(t.Amount), t.Date.Display()}, " "))

	for _, term := range strings.Fields(strings.ToLower(query)) {
		switch {
		case len(term) >= 2 && strings.HasPrefix(term, `"`) && strings.HasSuffix(term, `"`):
			if !strings.Contains(text, term[1:len(term)-1]) {
				return false
			}
		case strings.HasPrefix(term, "-"):
			if excluded := term[1:]; excluded != "" && strings.Contains(text, excluded) {
				return false
			}
		case strings.HasPrefix(term, ">"), strings.HasPrefix(term, "<"), strings.HasPrefix(term, "="):
			if !compareAmount(t.Amount.Euros(), term) {
				return false
			}
		default:
			if !strings.Contains(text, term) {
				return false
			}
		}
	}
	return true
}

// compareAmount evaluates >n, <n or =n. An unparsable number matches.
func compareAmount(amount float64, term string) bool {
	raw := strings.TrimSuffix(strings.ReplaceAll(term[1:], ",", "."), "€")
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return true
	}
	switch term[0] {
	case '>':
		return amount > value
	case '<':
		return amount < value
	default:
		diff := amount - value
		return diff < 0.01 && diff > -0.01
	}
}

func sortTransactions(txs []core.Transaction, by core.SortField, order string) {
	var cmp func(a, b core.Transaction) int
	switch by {
	case core.SortByDate:
		cmp = func(a, b core.Transaction) int { return strings.Compare(a.Date.String(), b.Date.String()) }
	case core.SortByAmount:
		cmp = func(a, b core.Transaction) int {
			switch {
			case a.Amount.Cents < b.Amount.Cents:
				return -1
			case a.Amount.Cents > b.Amount.Cents:
				return 1
			}
			return 0
		}
	case core.SortByLabel:
		c := collate.New(language.French)
		cmp = func(a, b core.Transaction) int { return c.CompareString(a.Label, b.Label) }
	case core.SortByCategory:
		c := collate.New(language.French)
		cmp = func(a, b core.Transaction) int { return c.CompareString(a.Category, b.Category) }
	case core.SortByType:
		cmp = func(a, b core.Transaction) int { return strings.Compare(string(a.Type), string(b.Type)) }
	default:
		return
	}
	desc := order == "desc"
	sort.SliceStable(txs, func(i, j int) bool {
		if desc {
			return cmp(txs[i], txs[j]) > 0
		}
		return cmp(txs[i], txs[j]) < 0
	})
}

// ActiveFilterCount counts the filter groups in use, sorting excluded.
func ActiveFilterCount(f core.SearchFilters) int {
	n := 0
	if f.Search != "" {
		n++
	}
	if len(f.Categories) > 0 {
		n++
	}
	if len(f.Types) > 0 {
		n++
	}
	if f.DateRange.Start != "" || f.DateRange.End != "" {
		n++
	}
	if f.AmountRange.Min != nil || f.AmountRange.Max != nil {
		n++
	}
	return n
}
