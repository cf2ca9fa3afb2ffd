package services

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestApprove_Success(t *testing.T) {
	mail := &fakeMailer{}
	memberRepo, auditRepo, mock, _ := newTestRepos(t)
	svc := NewApprovalService(memberRepo, auditRepo, mail, testMembershipConfig(), testNotificationsConfig())

	mock.ExpectQuery(`SELECT (.+) FROM members WHERE id = \$1`).
		WithArgs("member-1").
		WillReturnRows(memberRow("member-1", 42, "pending", "verified", nil))
	mock.ExpectExec(`UPDATE members`).
		WillReturnResult(sqlmockResult(1))
	mock.ExpectExec(`INSERT INTO audit_logs`).
		WillReturnResult(sqlmockResult(1))

	result, err := svc.Approve(context.Background(), "member-1", "admin-1", false, "")
	if err != nil {
		t.Fatalf("Approve() error: %v", err)
	}
	if result.MemberNumber != "SIN-AT0042" {
		t.Errorf("MemberNumber = %q, want SIN-AT0042", result.MemberNumber)
	}
	if result.AttachmentsSent != 2 {
		t.Errorf("AttachmentsSent = %d, want 2", result.AttachmentsSent)
	}
	if result.AlreadyActive {
		t.Error("AlreadyActive = true for fresh approval")
	}

	msgs := mail.messages()
	if len(msgs) != 1 {
		t.Fatalf("sent %d messages, want 1", len(msgs))
	}
	msg := msgs[0]
	if msg.To[0] != "marko@example.com" {
		t.Errorf("To = %v", msg.To)
	}
	if len(msg.Bcc) != 1 || msg.Bcc[0] != "office@example.com" {
		t.Errorf("Bcc = %v, want office copy", msg.Bcc)
	}
	if len(msg.Attachments) != 2 {
		t.Errorf("attachments = %d, want letter and card", len(msg.Attachments))
	}
	if !strings.Contains(msg.Body, "SIN-AT0042") {
		t.Error("email body missing membership number")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet sqlmock expectations: %v", err)
	}
}

func TestApprove_NotFound(t *testing.T) {
	mail := &fakeMailer{}
	memberRepo, auditRepo, mock, _ := newTestRepos(t)
	svc := NewApprovalService(memberRepo, auditRepo, mail, testMembershipConfig(), testNotificationsConfig())

	mock.ExpectQuery(`SELECT (.+) FROM members WHERE id = \$1`).
		WillReturnRows(memberRowEmpty())

	_, err := svc.Approve(context.Background(), "ghost", "admin-1", false, "")
	if !errors.Is(err, ErrMemberNotFound) {
		t.Errorf("error = %v, want ErrMemberNotFound", err)
	}
	if len(mail.messages()) != 0 {
		t.Error("no email should be sent for a missing member")
	}
}

func TestApprove_AlreadyActive(t *testing.T) {
	mail := &fakeMailer{}
	memberRepo, auditRepo, mock, _ := newTestRepos(t)
	svc := NewApprovalService(memberRepo, auditRepo, mail, testMembershipConfig(), testNotificationsConfig())

	num := "SIN-AT0042"
	mock.ExpectQuery(`SELECT (.+) FROM members WHERE id = \$1`).
		WillReturnRows(memberRow("member-1", 42, "active", "verified", &num))

	result, err := svc.Approve(context.Background(), "member-1", "admin-1", false, "")
	if err != nil {
		t.Fatalf("Approve() error: %v", err)
	}
	if !result.AlreadyActive {
		t.Error("AlreadyActive = false, want true")
	}
	if result.MemberNumber != num {
		t.Errorf("MemberNumber = %q, want existing %q", result.MemberNumber, num)
	}
	if len(mail.messages()) != 0 {
		t.Error("already-active member must not receive a duplicate email")
	}
}

func TestApprove_IncompleteVerificationRequiresOverride(t *testing.T) {
	mail := &fakeMailer{}
	memberRepo, auditRepo, mock, _ := newTestRepos(t)
	svc := NewApprovalService(memberRepo, auditRepo, mail, testMembershipConfig(), testNotificationsConfig())

	mock.ExpectQuery(`SELECT (.+) FROM members WHERE id = \$1`).
		WillReturnRows(memberRow("member-1", 42, "pending", "pending", nil))

	_, err := svc.Approve(context.Background(), "member-1", "admin-1", false, "")
	if err == nil {
		t.Fatal("expected error approving unverified member without override")
	}
	if len(mail.messages()) != 0 {
		t.Error("no email should be sent when approval is rejected")
	}
}

func TestApprove_OverrideBypassesVerification(t *testing.T) {
	mail := &fakeMailer{}
	memberRepo, auditRepo, mock, _ := newTestRepos(t)
	svc := NewApprovalService(memberRepo, auditRepo, mail, testMembershipConfig(), testNotificationsConfig())

	mock.ExpectQuery(`SELECT (.+) FROM members WHERE id = \$1`).
		WillReturnRows(memberRow("member-1", 42, "pending", "pending", nil))
	mock.ExpectExec(`UPDATE members`).
		WillReturnResult(sqlmockResult(1))
	mock.ExpectExec(`INSERT INTO audit_logs`).
		WillReturnResult(sqlmockResult(1))

	result, err := svc.Approve(context.Background(), "member-1", "admin-1", true, "")
	if err != nil {
		t.Fatalf("Approve() with override error: %v", err)
	}
	if result.MemberNumber != "SIN-AT0042" {
		t.Errorf("MemberNumber = %q", result.MemberNumber)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("audit entry missing for override approval: %v", err)
	}
}

func TestApprove_EmailFailureAborts(t *testing.T) {
	mail := &fakeMailer{failFor: map[string]error{"marko@example.com": errors.New("smtp down")}}
	memberRepo, auditRepo, mock, _ := newTestRepos(t)
	svc := NewApprovalService(memberRepo, auditRepo, mail, testMembershipConfig(), testNotificationsConfig())

	mock.ExpectQuery(`SELECT (.+) FROM members WHERE id = \$1`).
		WillReturnRows(memberRow("member-1", 42, "pending", "verified", nil))

	_, err := svc.Approve(context.Background(), "member-1", "admin-1", false, "")
	if err == nil {
		t.Fatal("expected error when approval email fails")
	}
	// No UPDATE was expected; the member must stay pending.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected database writes after email failure: %v", err)
	}
}

func TestApprove_ConcurrentActivationLost(t *testing.T) {
	mail := &fakeMailer{}
	memberRepo, auditRepo, mock, _ := newTestRepos(t)
	svc := NewApprovalService(memberRepo, auditRepo, mail, testMembershipConfig(), testNotificationsConfig())

	num := "SIN-AT0042"
	mock.ExpectQuery(`SELECT (.+) FROM members WHERE id = \$1`).
		WillReturnRows(memberRow("member-1", 42, "pending", "verified", nil))
	mock.ExpectExec(`UPDATE members`).
		WillReturnResult(sqlmockResult(0))
	mock.ExpectQuery(`SELECT (.+) FROM members WHERE id = \$1`).
		WillReturnRows(memberRow("member-1", 42, "active", "verified", &num))

	result, err := svc.Approve(context.Background(), "member-1", "admin-1", false, "")
	if err != nil {
		t.Fatalf("Approve() error: %v", err)
	}
	if !result.AlreadyActive {
		t.Error("losing the activation race should report AlreadyActive")
	}
	if result.MemberNumber != num {
		t.Errorf("MemberNumber = %q, want winner's %q", result.MemberNumber, num)
	}
}

func TestResendCard(t *testing.T) {
	mail := &fakeMailer{}
	memberRepo, auditRepo, mock, _ := newTestRepos(t)
	svc := NewApprovalService(memberRepo, auditRepo, mail, testMembershipConfig(), testNotificationsConfig())

	num := "SIN-AT0042"
	mock.ExpectQuery(`SELECT (.+) FROM members WHERE id = \$1`).
		WillReturnRows(memberRow("member-1", 42, "active", "verified", &num))
	mock.ExpectExec(`INSERT INTO audit_logs`).
		WillReturnResult(sqlmockResult(1))

	result, err := svc.ResendCard(context.Background(), "member-1", "admin-1")
	if err != nil {
		t.Fatalf("ResendCard() error: %v", err)
	}
	if result.AttachmentsSent != 2 {
		t.Errorf("AttachmentsSent = %d, want 2", result.AttachmentsSent)
	}
	if len(mail.messages()) != 1 {
		t.Errorf("sent %d messages, want 1", len(mail.messages()))
	}
}

func TestResendCard_NotActive(t *testing.T) {
	mail := &fakeMailer{}
	memberRepo, auditRepo, mock, _ := newTestRepos(t)
	svc := NewApprovalService(memberRepo, auditRepo, mail, testMembershipConfig(), testNotificationsConfig())

	mock.ExpectQuery(`SELECT (.+) FROM members WHERE id = \$1`).
		WillReturnRows(memberRow("member-1", 42, "pending", "verified", nil))

	if _, err := svc.ResendCard(context.Background(), "member-1", "admin-1"); err == nil {
		t.Error("expected error resending card for non-active member")
	}
}
