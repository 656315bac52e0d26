package audit

import "time"

// Event is an immutable, append-only audit log record.
//
// Invariants:
// - Events are never updated or deleted.
// - Every event names its subject: a call, an expert, or at least the acting user.
// - Capture is best-effort; critical flows never block on audit failures.
type Event struct {
	ID   string    `json:"id" db:"id"`
	Type EventType `json:"type" db:"type"`

	// ActorUserID is the authenticated user causing the event. Empty for system actions.
	ActorUserID string `json:"actorUserId,omitempty" db:"actor_user_id"`
	IPAddress   string `json:"ipAddress,omitempty" db:"ip_address"`

	CallID   string `json:"callId,omitempty" db:"call_id"`
	ExpertID string `json:"expertId,omitempty" db:"expert_id"`

	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

type EventType string

const (
	EventTypeCallInitiated  EventType = "call_initiated"
	EventTypeCallCompleted  EventType = "call_completed"
	EventTypeCallFailed     EventType = "call_failed"
	EventTypeCallCanceled   EventType = "call_canceled"
	EventTypeCallRetried    EventType = "call_retried"
	EventTypeCallReconciled EventType = "call_reconciled"
	EventTypeExpertDeleted  EventType = "expert_deleted"
)
