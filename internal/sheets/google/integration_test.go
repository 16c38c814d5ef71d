//go:build integration

package google

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"budgetcal/internal/core"
)

// Integration tests require real Google Sheets credentials
// Run with: go test -tags=integration ./internal/sheets/google

func TestIntegration_TransactionRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	cfg := ConfigFromEnv()
	if cfg.SpreadsheetID == "" {
		t.Skip("GOOGLE_SPREADSHEET_ID not set, skipping integration test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	exp, err := New(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("Failed to create exporter: %v", err)
	}
	tx := core.Transaction{
		ID:       uuid.NewString(),
		Label:    "Integration Test",
		Category: "Autres",
		Amount:   core.Money{Cents: 1234},
		Date:     core.DateOf(time.Now()),
		Type:     core.Expense,
	}
	ref, err := exp.AppendTransaction(ctx, tx)
	if err != nil {
		t.Fatalf("Failed to append: %v", err)
	}
	t.Logf("Appended row %s", ref)

	if err := exp.DeleteTransaction(ctx, tx.ID); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}
	rows, err := exp.ListTransactions(ctx)
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	for _, r := range rows {
		if r.ID == tx.ID {
			t.Fatalf("row %s still present after delete", tx.ID)
		}
	}
}
