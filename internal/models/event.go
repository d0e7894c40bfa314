package models

import "time"

// ImmutableEvent is the audit record appended alongside every
// status-transition transaction. It captures who moved which reference
// from which state to which state, independent of the account snapshot.
type ImmutableEvent struct {
	ID            string    `json:"id" db:"id"`
	TransactionID string    `json:"transaction_id" db:"transaction_id"`
	EventType     string    `json:"event_type" db:"event_type"`
	EventData     EventData `json:"event_data" db:"event_data"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// EventData carries the required correlation keys explicitly rather than
// as a loose JSON blob. Extra is the open extension field.
type EventData struct {
	OldStatus   string   `json:"old_status"`
	NewStatus   string   `json:"new_status"`
	ActorID     string   `json:"actor_id,omitempty"`
	ActorAction string   `json:"actor_action,omitempty"`
	Timestamp   int64    `json:"timestamp"`
	Extra       Metadata `json:"extra,omitempty"`
}
