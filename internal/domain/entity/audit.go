package entity

import "time"

// AuditEvent is one append-only record of an approval transition. Seq is a
// per-document sequence number; consumers (dashboards) rely on Seq order.
type AuditEvent struct {
	ID         int64     `json:"id"`
	DocumentID int64     `json:"document_id"`
	Seq        int64     `json:"seq"`
	EventType  string    `json:"event_type"`
	Level      *int      `json:"level,omitempty"`
	ActorRef   string    `json:"actor_ref,omitempty"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	Comments   string    `json:"comments,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// TransitionNotification is the delivery record for one transition
// notification. Delivery is best-effort: PENDING and FAILED rows are retried
// out-of-band and never affect the committed decision.
type TransitionNotification struct {
	ID           int64      `json:"id"`
	DocumentID   int64      `json:"document_id"`
	EventType    string     `json:"event_type"`
	RecipientRef string     `json:"recipient_ref"`
	Status       string     `json:"status"`
	Attempts     int        `json:"attempts"`
	LastError    string     `json:"last_error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
}
