// Package models - member.go defines the Member aggregate for the union
// membership pipeline, along with the status and verification enumerations
// that drive every state transition in the service.
package models

import (
	"strings"
	"time"
)

// Membership lifecycle states. Status governs whether a member is counted as
// a union member; it is independent of the verification lifecycle.
const (
	StatusPending  = "pending"
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Verification lifecycle states.
const (
	VerificationPending      = "pending"
	VerificationCodeVerified = "code_verified"
	VerificationContacted    = "contacted"
	VerificationVerified     = "verified"
	VerificationFlagged      = "flagged"
)

// Verification methods. A member has at most one non-null method at a time.
const (
	MethodEmail    = "email"
	MethodBadge    = "badge"
	MethodTeams    = "teams"
	MethodInPerson = "inperson"
)

// Member represents a membership application and, once approved, a union member.
type Member struct {
	ID        string `db:"id"`
	MemberSeq int64  `db:"member_seq"` // database-assigned sequence backing member number derivation

	QuicklookID  string `db:"quicklook_id"`
	FullName     string `db:"full_name"`
	Email        string `db:"email"`
	City         string `db:"city"`
	Organization string `db:"organization"`

	Status             string  `db:"status"`
	VerificationStatus string  `db:"verification_status"`
	VerificationMethod *string `db:"verification_method"`

	ReminderEmailSent bool `db:"reminder_email_sent"`
	CardSent          bool `db:"card_sent"`
	IsAnonymous       bool `db:"is_anonymous"`

	// MemberID is the human-facing membership number (e.g. SIN-AT0042),
	// assigned once at approval and immutable thereafter.
	MemberID     *string `db:"member_id"`
	EvidencePath *string `db:"evidence_path"`
	ApprovedBy   *string `db:"approved_by"`

	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
	MethodSelectedAt *time.Time `db:"method_selected_at"`
	VerifiedAt       *time.Time `db:"verified_at"`
	ReminderSentAt   *time.Time `db:"reminder_sent_at"`
	ApprovedAt       *time.Time `db:"approved_at"`
	JoinedAt         *time.Time `db:"joined_at"`
}

// FirstName returns the first whitespace-separated token of the full name.
func (m *Member) FirstName() string {
	parts := strings.Fields(m.FullName)
	if len(parts) == 0 {
		return ""
	}
	return parts[0]
}

// LastName returns everything after the first token of the full name.
func (m *Member) LastName() string {
	parts := strings.Fields(m.FullName)
	if len(parts) < 2 {
		return ""
	}
	return strings.Join(parts[1:], " ")
}

// IsVerifying reports whether the member occupies the quicklook-id namespace:
// only members who progressed into (or past) verification block re-application
// with the same quicklook id.
func (m *Member) IsVerifying() bool {
	switch m.VerificationStatus {
	case VerificationCodeVerified, VerificationContacted, VerificationVerified:
		return true
	}
	return false
}

// VerificationComplete reports whether the member's employment has been
// confirmed through any channel.
func (m *Member) VerificationComplete() bool {
	return m.VerificationStatus == VerificationCodeVerified ||
		m.VerificationStatus == VerificationVerified
}

// ValidMethod reports whether s names one of the four verification channels.
func ValidMethod(s string) bool {
	switch s {
	case MethodEmail, MethodBadge, MethodTeams, MethodInPerson:
		return true
	}
	return false
}
