package backup

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"budgetcal/internal/core"
)

func sampleSnapshot() core.Snapshot {
	created := time.Date(2025, 1, 5, 8, 30, 0, 0, time.UTC)
	return core.Snapshot{
		Transactions: []core.Transaction{{
			ID:        "tx_1",
			Label:     "Courses",
			Amount:    core.Money{Cents: 4250},
			Category:  "Alimentation",
			Date:      core.NewDate(2025, 1, 5),
			Type:      core.Expense,
			CreatedAt: created,
			UpdatedAt: created,
		}},
		FixedExpenses: core.FixedExpenses{"loyer": {Cents: 90000}},
		Theme:         "aurora",
		ExportDate:    time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC),
	}
}

func TestEncodeDecode(t *testing.T) {
	for _, f := range []Format{JSON, YAML} {
		t.Run(string(f), func(t *testing.T) {
			var buf bytes.Buffer
			if err := Encode(&buf, sampleSnapshot(), f); err != nil {
				t.Fatalf("Encode: %v", err)
			}
			got, err := Decode(&buf, FileName(time.Now(), f))
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if diff := cmp.Diff(sampleSnapshot(), got); diff != "" {
				t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestJSONIsIndented(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, sampleSnapshot(), JSON); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "\n  \"transactions\": [") {
		t.Fatalf("expected two space indentation:\n%s", buf.String())
	}
}

func TestDecodeMissingTransactions(t *testing.T) {
	cases := map[string]string{
		"data.json": `{"theme": "light"}`,
		"data.yaml": "theme: light\n",
		"noext":     `{"fixedExpenses": {}}`,
		"bad.json":  `{not json`,
	}
	for name, body := range cases {
		_, err := Decode(strings.NewReader(body), name)
		if !errors.Is(err, ErrInvalidFile) {
			t.Fatalf("%s: expected ErrInvalidFile, got %v", name, err)
		}
	}
}

func TestDecodeEmptyTransactionsIsValid(t *testing.T) {
	snap, err := Decode(strings.NewReader(`{"transactions": []}`), "")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if snap.Transactions == nil || len(snap.Transactions) != 0 {
		t.Fatalf("expected empty, non-nil transactions, got %#v", snap.Transactions)
	}
}

func TestFileName(t *testing.T) {
	at := time.Date(2025, 7, 14, 23, 0, 0, 0, time.UTC)
	if got := FileName(at, JSON); got != "budget_export_2025-07-14.json" {
		t.Fatalf("unexpected file name %q", got)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Fatal("expected error for xml")
	}
}
