package core

import (
	"errors"
	"testing"
	"time"
)

func TestTransactionInputValidate(t *testing.T) {
	good := TransactionInput{
		Label:    "Courses",
		Amount:   Money{Cents: 1250},
		Category: "Alimentation",
		Date:     NewDate(2025, 1, 1),
		Type:     Expense,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*TransactionInput)
		want   error
	}{
		{"empty label", func(in *TransactionInput) { in.Label = "  " }, ErrLabelRequired},
		{"zero amount", func(in *TransactionInput) { in.Amount = Money{} }, ErrAmountNotPositive},
		{"negative amount", func(in *TransactionInput) { in.Amount = Money{Cents: -5} }, ErrAmountNotPositive},
		{"empty category", func(in *TransactionInput) { in.Category = "" }, ErrCategoryRequired},
		{"zero date", func(in *TransactionInput) { in.Date = Date{} }, ErrDateRequired},
		{"bad type", func(in *TransactionInput) { in.Type = "transfer" }, ErrInvalidType},
		// label is checked before amount
		{"label first", func(in *TransactionInput) { in.Label = ""; in.Amount = Money{} }, ErrLabelRequired},
	}
	for _, tc := range cases {
		in := good
		tc.mutate(&in)
		if err := in.Validate(); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestSanitizeLabel(t *testing.T) {
	if got := SanitizeLabel("  <b>Loyer</b> "); got != "bLoyer/b" {
		t.Fatalf("unexpected sanitized label %q", got)
	}
}

func TestTransactionPatchApply(t *testing.T) {
	base := Transaction{ID: "1", Label: "a", Amount: Money{Cents: 100}, Category: "c", Date: NewDate(2025, 1, 1), Type: Expense}
	label := " <new> "
	amount := Money{Cents: 300}
	got := TransactionPatch{Label: &label, Amount: &amount}.Apply(base)
	if got.Label != "new" || got.Amount.Cents != 300 || got.Category != "c" || got.ID != "1" {
		t.Fatalf("unexpected patch result %+v", got)
	}
}

func TestDateHelpers(t *testing.T) {
	d, err := ParseDate("2025-03-09")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if d.String() != "2025-03-09" || d.Display() != "09/03/2025" || d.MonthKey() != "2025-03" {
		t.Fatalf("unexpected formats %s %s %s", d.String(), d.Display(), d.MonthKey())
	}
	if _, err := ParseDate("2025-13-01"); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
	now := time.Date(2025, 3, 9, 15, 0, 0, 0, time.UTC)
	if !d.IsToday(now) || !d.IsThisMonth(now) {
		t.Fatalf("expected today and this month")
	}
	if NewDate(2025, 1, 1).ISOWeek() != 1 || NewDate(2024, 12, 30).ISOWeek() != 1 {
		t.Fatalf("unexpected ISO week")
	}
	if DaysIn(2024, 2) != 29 || DaysIn(2025, 2) != 28 {
		t.Fatalf("unexpected days in february")
	}
}

func TestLastNMonths(t *testing.T) {
	now := time.Date(2025, 2, 15, 0, 0, 0, 0, time.UTC)
	months := LastNMonths(3, now)
	want := []string{"2024-12", "2025-01", "2025-02"}
	if len(months) != len(want) {
		t.Fatalf("expected %d months, got %d", len(want), len(months))
	}
	for i, m := range months {
		if m.Key != want[i] {
			t.Fatalf("month %d: expected %s, got %s", i, want[i], m.Key)
		}
	}
	if months[0].Label() != "Décembre 2024" {
		t.Fatalf("unexpected label %q", months[0].Label())
	}
}

func TestSummarize(t *testing.T) {
	txs := []Transaction{
		{Amount: Money{Cents: 200000}, Type: Income, Category: "Salaire"},
		{Amount: Money{Cents: 70000}, Type: Expense, Category: "Loyer"},
		{Amount: Money{Cents: 5000}, Type: Expense, Category: "Alimentation"},
		{Amount: Money{Cents: 2500}, Type: Expense, Category: "Alimentation"},
	}
	s := Summarize(txs)
	if s.Income.Cents != 200000 || s.Expenses.Cents != 77500 || s.Balance.Cents != 122500 || s.TransactionCount != 4 {
		t.Fatalf("unexpected stats %+v", s)
	}
	cats := ExpensesByCategory(txs)
	if len(cats) != 2 || cats[0].Category != "Loyer" || cats[1].Amount.Cents != 7500 || cats[1].Count != 2 {
		t.Fatalf("unexpected categories %+v", cats)
	}
}
