package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"budgetcal/internal/core"
)

// EventKind names what happened to the transaction set.
type EventKind string

const (
	EventCreated      EventKind = "created"
	EventUpdated      EventKind = "updated"
	EventDeleted      EventKind = "deleted"
	EventImported     EventKind = "imported"
	EventCleared      EventKind = "cleared"
	EventFixedUpdated EventKind = "fixed_updated"
)

// RoutingKey returns the "transaction.<kind>" style key used in logs.
func (k EventKind) RoutingKey() string {
	return "transaction." + string(k)
}

// TransactionEvent is published after every write to the transaction set.
// Bulk kinds carry no transaction; consumers reload the full set instead.
type TransactionEvent struct {
	EventID       string            `json:"eventId"`
	Kind          EventKind         `json:"kind"`
	TransactionID string            `json:"transactionId,omitempty"`
	Transaction   *core.Transaction `json:"transaction,omitempty"`
	Count         int               `json:"count,omitempty"`
	Version       int64             `json:"version"`
	Timestamp     time.Time         `json:"timestamp"`
}

// NewTransactionEvent creates an event with a fresh ID. t may be nil.
func NewTransactionEvent(kind EventKind, t *core.Transaction) *TransactionEvent {
	ev := &TransactionEvent{
		EventID:   uuid.NewString(),
		Kind:      kind,
		Version:   1,
		Timestamp: time.Now(),
	}
	if t != nil {
		cp := *t
		ev.Transaction = &cp
		ev.TransactionID = t.ID
	}
	return ev
}

// ToJSON converts the event to JSON bytes
func (e *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// TransactionEventFromJSON decodes an event.
func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var ev TransactionEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
