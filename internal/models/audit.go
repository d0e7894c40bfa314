package models

import "time"

// AuditLog is the general-purpose before/after trail for privileged
// operations. It is written by the HTTP layer around ledger calls, not by
// the ledger itself, but shares the append-only durability guarantee.
type AuditLog struct {
	ID           string    `json:"id" db:"id"`
	ActorUserID  string    `json:"actor_user_id" db:"actor_user_id"`
	Action       string    `json:"action" db:"action"`
	ResourceType string    `json:"resource_type" db:"resource_type"`
	ResourceID   string    `json:"resource_id" db:"resource_id"`
	Before       Metadata  `json:"before" db:"before"`
	After        Metadata  `json:"after" db:"after"`
	IPAddress    string    `json:"ip_address" db:"ip_address"`
	UserAgent    string    `json:"user_agent" db:"user_agent"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
