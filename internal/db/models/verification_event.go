// Package models - verification_event.go defines the append-only trail of
// verification activity per member.
package models

import "time"

// Verification event types.
const (
	EventEmailMatched   = "email_matched"
	EventMethodSelected = "method_selected"
	EventEvidenceStored = "evidence_stored"
	EventStatusOverride = "status_override"
	EventReminderSent   = "reminder_sent"
)

// VerificationEvent is one append-only record of verification activity.
// For mailbox matches, MessageID carries the provider message identifier and
// is unique per event type, which makes re-processing the same message a no-op.
type VerificationEvent struct {
	ID        string     `db:"id"`
	MemberID  string     `db:"member_id"`
	EventType string     `db:"event_type"`
	MessageID *string    `db:"message_id"`
	Sender    *string    `db:"sender"`
	Subject   *string    `db:"subject"`
	Detail    *string    `db:"detail"`
	CreatedAt time.Time  `db:"created_at"`
	MatchedAt *time.Time `db:"matched_at"`
}
