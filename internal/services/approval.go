// approval.go implements the approval orchestrator: the terminal transition
// from a verified applicant to an active member. Document generation failures
// are tolerated (the email goes out with fewer attachments); email dispatch
// failure aborts the approval so the member is never activated without being
// told. The status update is a conditional write, so concurrent approvals of
// the same member resolve to exactly one activation.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sindikatncr/membership-backend/internal/config"
	"github.com/sindikatncr/membership-backend/internal/db/models"
	"github.com/sindikatncr/membership-backend/internal/db/repositories"
	"github.com/sindikatncr/membership-backend/internal/mailer"
	"github.com/sindikatncr/membership-backend/internal/pdf"
	"github.com/sindikatncr/membership-backend/internal/telemetry"
)

// ErrMemberNotFound is returned when an operation references a member that
// does not exist.
var ErrMemberNotFound = errors.New("member not found")

// ApprovalResult reports the outcome of an approval.
type ApprovalResult struct {
	MemberNumber    string `json:"memberNumber"`
	AttachmentsSent int    `json:"attachmentsSent"`
	AlreadyActive   bool   `json:"alreadyActive"`
}

// ApprovalService activates members and dispatches their documents.
type ApprovalService struct {
	memberRepo *repositories.MemberRepository
	auditRepo  *repositories.AuditRepository
	mail       mailer.Mailer
	membership *config.MembershipConfig
	notify     *config.NotificationsConfig
}

// NewApprovalService creates an ApprovalService.
func NewApprovalService(
	memberRepo *repositories.MemberRepository,
	auditRepo *repositories.AuditRepository,
	mail mailer.Mailer,
	membership *config.MembershipConfig,
	notify *config.NotificationsConfig,
) *ApprovalService {
	return &ApprovalService{
		memberRepo: memberRepo,
		auditRepo:  auditRepo,
		mail:       mail,
		membership: membership,
		notify:     notify,
	}
}

// Approve runs the full approval sequence for one member. Override approves a
// member whose verification never completed; the reason is recorded in the
// audit trail, as "absent" when the administrator gave none.
func (s *ApprovalService) Approve(ctx context.Context, memberID, adminID string, override bool, overrideReason string) (*ApprovalResult, error) {
	m, err := s.memberRepo.GetMemberByID(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("load member: %w", err)
	}
	if m == nil {
		return nil, ErrMemberNotFound
	}

	if m.Status == models.StatusActive {
		result := &ApprovalResult{AlreadyActive: true}
		if m.MemberID != nil {
			result.MemberNumber = *m.MemberID
		}
		return result, nil
	}

	if !override && !m.VerificationComplete() {
		return nil, fmt.Errorf("member %s has verification status %q; approval requires override", memberID, m.VerificationStatus)
	}

	now := time.Now()
	memberNumber := MemberNumber(m, s.membership)
	if m.MemberID != nil && *m.MemberID != "" {
		memberNumber = *m.MemberID
	}

	joinedAt := now
	if m.JoinedAt != nil {
		joinedAt = *m.JoinedAt
	}

	attachments := s.buildAttachments(m, memberNumber, joinedAt)

	if err := s.sendApprovalEmail(ctx, m, memberNumber, attachments); err != nil {
		return nil, fmt.Errorf("send approval email to %s: %w", m.Email, err)
	}

	activated, err := s.memberRepo.ApproveMember(ctx, m.ID, memberNumber, adminID, now)
	if err != nil {
		return nil, fmt.Errorf("persist approval: %w", err)
	}
	if !activated {
		// Lost the race to a concurrent approval; the other call did the write.
		slog.Warn("approval raced a concurrent activation", "member_id", m.ID)
		current, err := s.memberRepo.GetMemberByID(ctx, m.ID)
		if err == nil && current != nil && current.MemberID != nil {
			memberNumber = *current.MemberID
		}
		return &ApprovalResult{MemberNumber: memberNumber, AlreadyActive: true}, nil
	}

	telemetry.MembersApprovedTotal.Inc()

	s.writeAuditLog(ctx, m, adminID, memberNumber, len(attachments), override, overrideReason)

	return &ApprovalResult{
		MemberNumber:    memberNumber,
		AttachmentsSent: len(attachments),
	}, nil
}

// ResendCard regenerates the approval documents for an already-active member
// and emails them again.
func (s *ApprovalService) ResendCard(ctx context.Context, memberID, adminID string) (*ApprovalResult, error) {
	m, err := s.memberRepo.GetMemberByID(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("load member: %w", err)
	}
	if m == nil {
		return nil, ErrMemberNotFound
	}
	if m.Status != models.StatusActive || m.MemberID == nil {
		return nil, fmt.Errorf("member %s is not active; approve first", memberID)
	}

	joinedAt := time.Now()
	if m.JoinedAt != nil {
		joinedAt = *m.JoinedAt
	}

	attachments := s.buildAttachments(m, *m.MemberID, joinedAt)
	if err := s.sendApprovalEmail(ctx, m, *m.MemberID, attachments); err != nil {
		return nil, fmt.Errorf("resend documents to %s: %w", m.Email, err)
	}

	s.audit(ctx, adminID, models.ActionCardResent, m.ID, map[string]interface{}{
		"member_number":    *m.MemberID,
		"attachments_sent": len(attachments),
	})

	return &ApprovalResult{MemberNumber: *m.MemberID, AttachmentsSent: len(attachments), AlreadyActive: true}, nil
}

// buildAttachments generates the confirmation letter and membership card.
// Either may fail independently; failures are logged and the email proceeds
// with whatever rendered.
func (s *ApprovalService) buildAttachments(m *models.Member, memberNumber string, joinedAt time.Time) []mailer.Attachment {
	var attachments []mailer.Attachment

	letter, err := pdf.ConfirmationLetter(&pdf.ConfirmationData{
		FullName:     m.FullName,
		Email:        m.Email,
		QuicklookID:  m.QuicklookID,
		City:         m.City,
		Organization: m.Organization,
		MemberNumber: memberNumber,
		JoinedAt:     joinedAt,
	})
	if err != nil {
		slog.Error("confirmation letter generation failed", "member_id", m.ID, "error", err)
	} else {
		attachments = append(attachments, mailer.Attachment{
			Filename:    "potvrda-o-clanstvu.pdf",
			ContentType: "application/pdf",
			Data:        letter,
		})
	}

	card, err := pdf.MembershipCard(&pdf.CardData{
		FirstName:    m.FirstName(),
		LastName:     m.LastName(),
		MemberNumber: memberNumber,
		JoinedAt:     joinedAt,
	})
	if err != nil {
		slog.Error("membership card generation failed", "member_id", m.ID, "error", err)
	} else {
		attachments = append(attachments, mailer.Attachment{
			Filename:    "clanska-karta.pdf",
			ContentType: "application/pdf",
			Data:        card,
		})
	}

	return attachments
}

func (s *ApprovalService) sendApprovalEmail(ctx context.Context, m *models.Member, memberNumber string, attachments []mailer.Attachment) error {
	if len(attachments) < 2 {
		slog.Warn("approval email going out with fewer attachments",
			"member_id", m.ID, "attachments", len(attachments))
	}

	msg := &mailer.Message{
		To:      []string{m.Email},
		Subject: "Dobrodosli u sindikat - vasa clanska dokumenta",
		Body: fmt.Sprintf(
			"Postovani/a %s,\r\n\r\n"+
				"Vasa pristupnica je odobrena. Vas clanski broj je %s.\r\n"+
				"U prilogu se nalaze potvrda o clanstvu i clanska karta.\r\n\r\n"+
				"S postovanjem,\r\nSindikat Radnika NCR Atleos Beograd",
			m.FullName, memberNumber),
		Attachments: attachments,
	}
	if s.notify.OfficeEmail != "" {
		msg.Bcc = []string{s.notify.OfficeEmail}
	}
	return s.mail.Send(ctx, msg)
}

func (s *ApprovalService) writeAuditLog(ctx context.Context, m *models.Member, adminID, memberNumber string, attachmentsSent int, override bool, overrideReason string) {
	metadata := map[string]interface{}{
		"member_number":       memberNumber,
		"attachments_sent":    attachmentsSent,
		"verification_status": m.VerificationStatus,
	}
	if override {
		if overrideReason == "" {
			overrideReason = "absent"
		}
		metadata["override"] = true
		metadata["override_reason"] = overrideReason
	}
	s.audit(ctx, adminID, models.ActionMemberApproved, m.ID, metadata)
}

// audit writes an audit entry; failures are logged, never propagated, so a
// broken audit table cannot block member-facing operations.
func (s *ApprovalService) audit(ctx context.Context, adminID, action, memberID string, metadata map[string]interface{}) {
	resourceType := "member"
	entry := &models.AuditLog{
		AdminID:      &adminID,
		Action:       action,
		ResourceType: &resourceType,
		ResourceID:   &memberID,
		Metadata:     metadata,
		CreatedAt:    time.Now(),
	}
	if err := s.auditRepo.CreateAuditLog(ctx, entry); err != nil {
		slog.Error("audit log write failed", "action", action, "member_id", memberID, "error", err)
	}
}
