package domain

import "time"

// Change event types emitted on the per-tenant notification channels.
const (
	EventMemoryCreated  = "memory_created"
	EventMemoryUpdated  = "memory_updated"
	EventMemoryDeleted  = "memory_deleted"
	EventServerShutdown = "server_shutdown"
)

// ChangeEvent is the wire payload fanned out to live subscribers. Delivery is
// best-effort: only subscribers connected at publish time receive it.
type ChangeEvent struct {
	UserID    string         `json:"userId"`
	Type      string         `json:"type"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
