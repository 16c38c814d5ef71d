// Package memory is an in-process spreadsheet mirror used by tests and when no
// Google credentials are configured.
package memory

import (
	"context"
	"fmt"
	"sync"

	"budgetcal/internal/core"
	"budgetcal/internal/sheets"
)

var (
	_ sheets.TransactionSink   = (*Sink)(nil)
	_ sheets.TransactionLister = (*Sink)(nil)
)

type Sink struct {
	mu    sync.Mutex
	rows  []core.Transaction
	calls int
}

func New() *Sink { return &Sink{} }

// AppendTransaction stores the transaction and returns a synthetic row reference.
func (s *Sink) AppendTransaction(_ context.Context, t core.Transaction) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.rows = append(s.rows, t)
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

func (s *Sink) DeleteTransaction(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	kept := s.rows[:0]
	for _, t := range s.rows {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	s.rows = kept
	return nil
}

func (s *Sink) ReplaceAll(_ context.Context, txs []core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.rows = append([]core.Transaction(nil), txs...)
	return nil
}

func (s *Sink) ListTransactions(_ context.Context) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Transaction(nil), s.rows...), nil
}

// Calls reports how many write operations reached the sink.
func (s *Sink) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
