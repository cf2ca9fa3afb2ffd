// Package models - audit_log.go defines the AuditLog model for recording admin
// actions, capturing actor, action, affected member, client IP, and arbitrary metadata.
package models

import "time"

// Audit action names recorded by the service.
const (
	ActionMemberApproved   = "member.approved"
	ActionMemberUpdated    = "member.updated"
	ActionMemberDeleted    = "member.deleted"
	ActionCardResent       = "member.card_resent"
	ActionReminderSent     = "member.reminder_sent"
	ActionMethodOverridden = "member.verification_overridden"
	ActionBulkEmailSent    = "notifications.bulk_sent"
	ActionAdminLogin       = "admin.login"
)

// AuditLog represents an audit log entry for tracking admin actions
type AuditLog struct {
	ID           string
	AdminID      *string                // Nullable for system actions (cron jobs)
	Action       string                 // e.g. "member.approved", "member.deleted"
	ResourceType *string                // "member", "admin_user", "notification"
	ResourceID   *string                // UUID of affected resource
	Metadata     map[string]interface{} // JSONB: additional context (override reason etc.)
	IPAddress    *string                // Client IP
	CreatedAt    time.Time
}
