package amqp

import (
	"encoding/json"
	"time"
)

const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

// TransactionEvent is a lightweight change notification. It carries only
// identifiers and the affected dates; consumers fetch current state from
// the database.
type TransactionEvent struct {
	Owner         string    `json:"owner"`
	TransactionID string    `json:"transactionId"`
	Kind          string    `json:"kind"`
	OccurredOn    time.Time `json:"occurredOn"`
	// PreviousOn is set on updates that moved the transaction date,
	// so consumers can refresh both affected periods.
	PreviousOn *time.Time `json:"previousOn,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}

func NewTransactionEvent(owner, id, kind string, occurredOn time.Time) *TransactionEvent {
	return &TransactionEvent{
		Owner:         owner,
		TransactionID: id,
		Kind:          kind,
		OccurredOn:    occurredOn,
		Timestamp:     time.Now(),
	}
}

// ToJSON converts the event to JSON bytes.
func (e *TransactionEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// TransactionEventFromJSON creates an event from JSON bytes.
func TransactionEventFromJSON(data []byte) (*TransactionEvent, error) {
	var e TransactionEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
