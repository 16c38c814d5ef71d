package memory

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"budgetcal/internal/core"
)

func tx(id string, cents int64) core.Transaction {
	return core.Transaction{
		ID:       id,
		Label:    "Courses " + id,
		Category: "Alimentation",
		Amount:   core.Money{Cents: cents},
		Date:     core.NewDate(2025, 3, 1),
		Type:     core.Expense,
	}
}

func TestSink(t *testing.T) {
	ctx := context.Background()
	s := New()

	ref, err := s.AppendTransaction(ctx, tx("a", 100))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if ref != "mem:1" {
		t.Fatalf("ref = %q", ref)
	}
	if _, err := s.AppendTransaction(ctx, tx("b", 200)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.DeleteTransaction(ctx, "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteTransaction(ctx, "unknown"); err != nil {
		t.Fatalf("delete unknown: %v", err)
	}
	got, _ := s.ListTransactions(ctx)
	if diff := cmp.Diff([]core.Transaction{tx("b", 200)}, got); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}

	if err := s.ReplaceAll(ctx, []core.Transaction{tx("c", 1), tx("d", 2)}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	got, _ = s.ListTransactions(ctx)
	if len(got) != 2 || got[0].ID != "c" {
		t.Fatalf("after replace: %+v", got)
	}
	if s.Calls() != 5 {
		t.Fatalf("calls = %d, want 5", s.Calls())
	}
}

func TestSinkRejectsInvalid(t *testing.T) {
	bad := tx("x", 0)
	if _, err := New().AppendTransaction(context.Background(), bad); err == nil {
		t.Fatalf("expected validation error")
	}
}
