package google

import (
	"fmt"
	"strings"

	"budgetcal/internal/core"
)

// Column layout of the transactions tab.
const (
	colDate = iota
	colLabel
	colCategory
	colAmount
	colType
	colID
	columnCount
)

// Header is written on the first row by ReplaceAll.
var Header = []any{"Date", "Libellé", "Catégorie", "Montant", "Type", "ID"}

func rowValues(t core.Transaction) []any {
	return []any{t.Date.String(), t.Label, t.Category, t.Amount.Euros(), t.Type.Label(), t.ID}
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func parseType(s string) (core.TransactionType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "income", "revenu":
		return core.Income, true
	case "expense", "dépense", "depense":
		return core.Expense, true
	}
	return "", false
}

// parseRow converts one sheet row. Header, blank and malformed rows are
// rejected.
func parseRow(row []any) (core.Transaction, bool) {
	cols := toStrings(row)
	if len(cols) < columnCount-1 {
		return core.Transaction{}, false
	}
	d, err := core.ParseDate(cols[colDate])
	if err != nil {
		return core.Transaction{}, false
	}
	cents, err := core.ParseDecimalToCents(cols[colAmount])
	if err != nil {
		return core.Transaction{}, false
	}
	typ, ok := parseType(cols[colType])
	if !ok {
		return core.Transaction{}, false
	}
	t := core.Transaction{
		Label:    cols[colLabel],
		Category: cols[colCategory],
		Amount:   core.Money{Cents: cents},
		Date:     d,
		Type:     typ,
	}
	if len(cols) > colID {
		t.ID = cols[colID]
	}
	return t, true
}

func rowID(row []any) string {
	if len(row) <= colID {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(row[colID]))
}
