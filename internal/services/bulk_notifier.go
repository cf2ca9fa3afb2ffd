// bulk_notifier.go sends a templated message to a chosen set of members,
// strictly sequentially with a fixed pause between sends to stay under the
// provider's rate ceiling. A failed recipient is recorded and skipped; one bad
// address never aborts the batch.
package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/sindikatncr/membership-backend/internal/config"
	"github.com/sindikatncr/membership-backend/internal/db/models"
	"github.com/sindikatncr/membership-backend/internal/db/repositories"
	"github.com/sindikatncr/membership-backend/internal/mailer"
	"github.com/sindikatncr/membership-backend/internal/telemetry"
)

// BulkResult summarizes a bulk send.
type BulkResult struct {
	Sent             int      `json:"sent"`
	Failed           int      `json:"failed"`
	FailedRecipients []string `json:"failedRecipients,omitempty"`
}

// BulkNotifier sends one message to many members.
type BulkNotifier struct {
	memberRepo *repositories.MemberRepository
	auditRepo  *repositories.AuditRepository
	mail       mailer.Mailer
	delay      time.Duration
}

// NewBulkNotifier creates a BulkNotifier. The delay is the fixed pause applied
// after every send attempt, successful or not.
func NewBulkNotifier(
	memberRepo *repositories.MemberRepository,
	auditRepo *repositories.AuditRepository,
	mail mailer.Mailer,
	cfg *config.NotificationsConfig,
) *BulkNotifier {
	delay := cfg.BulkSendDelay
	if delay <= 0 {
		delay = 625 * time.Millisecond
	}
	return &BulkNotifier{
		memberRepo: memberRepo,
		auditRepo:  auditRepo,
		mail:       mail,
		delay:      delay,
	}
}

// SendBulk delivers the message to each member id in turn. Unknown ids are
// counted as failures. The context cancels the remainder of the batch.
func (b *BulkNotifier) SendBulk(ctx context.Context, memberIDs []string, subject, message, adminID string) (*BulkResult, error) {
	members, err := b.memberRepo.ListMembersByIDs(ctx, memberIDs)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*models.Member, len(members))
	for _, m := range members {
		byID[m.ID] = m
	}

	result := &BulkResult{}
	for i, id := range memberIDs {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		m, ok := byID[id]
		if !ok || m.Email == "" {
			result.Failed++
			result.FailedRecipients = append(result.FailedRecipients, id)
			telemetry.BulkEmailsTotal.WithLabelValues("failed").Inc()
			slog.Warn("bulk send skipping unknown or mailless member", "member_id", id)
		} else if err := b.mail.Send(ctx, &mailer.Message{
			To:      []string{m.Email},
			Subject: subject,
			Body:    message,
		}); err != nil {
			result.Failed++
			result.FailedRecipients = append(result.FailedRecipients, id)
			telemetry.BulkEmailsTotal.WithLabelValues("failed").Inc()
			slog.Error("bulk send failed", "member_id", id, "email", m.Email, "error", err)
		} else {
			result.Sent++
			telemetry.BulkEmailsTotal.WithLabelValues("sent").Inc()
		}

		// Fixed pacing after every attempt, including failures.
		if i < len(memberIDs)-1 {
			select {
			case <-time.After(b.delay):
			case <-ctx.Done():
				return result, ctx.Err()
			}
		}
	}

	resourceType := "notification"
	entry := &models.AuditLog{
		AdminID:      &adminID,
		Action:       models.ActionBulkEmailSent,
		ResourceType: &resourceType,
		Metadata: map[string]interface{}{
			"recipients": len(memberIDs),
			"sent":       result.Sent,
			"failed":     result.Failed,
			"subject":    subject,
		},
		CreatedAt: time.Now(),
	}
	if err := b.auditRepo.CreateAuditLog(ctx, entry); err != nil {
		slog.Error("audit log write failed", "action", entry.Action, "error", err)
	}

	return result, nil
}
