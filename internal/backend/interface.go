// Package backend assembles the storage, messaging and spreadsheet adapters
// selected by configuration.
package backend

import (
	"context"

	"budgetcal/internal/amqp"
	"budgetcal/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the opened adapters and their cleanup function.
type BackendResult struct {
	Store storage.Store
	// Outbox is nil for the memory backend.
	Outbox storage.SyncQueue
	// Publisher is nil when AMQP is disabled or unreachable.
	Publisher *amqp.Client
	Cleanup   CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// Memory backend snapshot directory. Empty keeps data in memory only.
	DataDirectory string

	SQLiteDBPath string
	DatabaseURL  string

	// Optional event publishing
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, PostgresBackend:
		return true
	default:
		return false
	}
}
