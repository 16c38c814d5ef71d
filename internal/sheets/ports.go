// Package sheets defines the ports of the spreadsheet mirror.
package sheets

import (
	"context"

	"budgetcal/internal/core"
)

// Ports for outbound adapters.
type (
	// TransactionSink mirrors the transaction set. Deleting an unknown ID is
	// not an error.
	TransactionSink interface {
		AppendTransaction(ctx context.Context, t core.Transaction) (rowRef string, err error)
		DeleteTransaction(ctx context.Context, id string) error
		ReplaceAll(ctx context.Context, txs []core.Transaction) error
	}

	TransactionLister interface {
		ListTransactions(ctx context.Context) ([]core.Transaction, error)
	}
)
