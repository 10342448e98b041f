package audit

import "time"

// Event is an immutable, append-only audit record of an operator action or a rejected webhook.
//
// Invariants:
// - Events are never updated or deleted.
// - Metadata only: message bodies are never stored.
// - Actor and IP capture are best-effort; do not block sends on audit failures.
//
// Storage (Postgres): table gateway_audit_events, INSERT-only.
type Event struct {
	ID   string    `json:"id" db:"id"`
	Type EventType `json:"type" db:"type"`

	// Provider is the adapter that handled (or rejected) the traffic.
	Provider string `json:"provider" db:"provider"`

	// ActorID is the operator causing the event, empty for provider-originated events.
	ActorID   string `json:"actor_id,omitempty" db:"actor_id"`
	ActorRole string `json:"actor_role,omitempty" db:"actor_role"`

	IPAddress string `json:"ip_address,omitempty" db:"ip_address"`
	RequestID string `json:"request_id,omitempty" db:"request_id"`

	MessageID   string `json:"message_id,omitempty" db:"message_id"`
	CallID      string `json:"call_id,omitempty" db:"call_id"`
	Destination string `json:"destination,omitempty" db:"destination"`
	Segments    int    `json:"segments,omitempty" db:"segments"`

	// Reason carries the failure or rejection cause.
	Reason string `json:"reason,omitempty" db:"reason"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeMessageSent     EventType = "message_sent"
	EventTypeMessageFailed   EventType = "message_failed"
	EventTypeCallInitiated   EventType = "call_initiated"
	EventTypeCallFailed      EventType = "call_failed"
	EventTypeWebhookRejected EventType = "webhook_rejected"
)

// Actor identifies who triggered an operator action.
type Actor struct {
	ID        string
	Role      string
	IP        string
	RequestID string
}
