package core

import "sort"

// Fixed expense keys.
const (
	FixedRent     = "loyer"
	FixedEnergy   = "edf"
	FixedInternet = "internet"
	FixedCredit   = "credit"
	FixedTax      = "impot"
	FixedOther    = "autres"
)

// FixedExpenseKeys lists every known key in display order.
var FixedExpenseKeys = []string{FixedRent, FixedEnergy, FixedInternet, FixedCredit, FixedTax, FixedOther}

// fixedCategories maps fixed expense keys to transaction categories.
var fixedCategories = map[string]string{
	FixedRent:     "Loyer",
	FixedEnergy:   "EDF-GDF",
	FixedInternet: "Internet",
	FixedCredit:   "Remboursement crédit",
	FixedTax:      "Impôt",
	FixedOther:    "Autres",
}

// FixedExpenses holds the monthly recurring amounts keyed by FixedExpenseKeys.
type FixedExpenses map[string]Money

// DefaultFixedExpenses returns every key set to zero.
func DefaultFixedExpenses() FixedExpenses {
	fe := make(FixedExpenses, len(FixedExpenseKeys))
	for _, k := range FixedExpenseKeys {
		fe[k] = Money{}
	}
	return fe
}

// ParseFixedExpenses converts raw form values. Unparsable values become zero
// and missing keys are filled with zero.
func ParseFixedExpenses(raw map[string]string) FixedExpenses {
	fe := DefaultFixedExpenses()
	for k, v := range raw {
		fe[k] = ParseAmountOrZero(v)
	}
	return fe
}

// Normalize returns a copy that contains at least every default key.
func (fe FixedExpenses) Normalize() FixedExpenses {
	out := DefaultFixedExpenses()
	for k, v := range fe {
		out[k] = v
	}
	return out
}

// Total sums every value, including unknown keys.
func (fe FixedExpenses) Total() Money {
	var total Money
	for _, v := range fe {
		total = total.Add(v)
	}
	return total
}

// AmountForCategory returns the fixed amount prefilled for a transaction
// category. Only categories with a dedicated key have one.
func (fe FixedExpenses) AmountForCategory(category string) Money {
	switch category {
	case "Loyer":
		return fe[FixedRent]
	case "EDF-GDF":
		return fe[FixedEnergy]
	case "Internet":
		return fe[FixedInternet]
	case "Remboursement crédit":
		return fe[FixedCredit]
	default:
		return Money{}
	}
}

// Keys returns the keys sorted with known keys first.
func (fe FixedExpenses) Keys() []string {
	known := make(map[string]bool, len(FixedExpenseKeys))
	keys := make([]string, 0, len(fe))
	for _, k := range FixedExpenseKeys {
		known[k] = true
		if _, ok := fe[k]; ok {
			keys = append(keys, k)
		}
	}
	var extra []string
	for k := range fe {
		if !known[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	return append(keys, extra...)
}

// FixedCategory returns the transaction category for a fixed expense key.
func FixedCategory(key string) string {
	if c, ok := fixedCategories[key]; ok {
		return c
	}
	return "Autres"
}
