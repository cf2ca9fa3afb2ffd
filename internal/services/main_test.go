package services

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/sindikatncr/membership-backend/internal/config"
	"github.com/sindikatncr/membership-backend/internal/db/repositories"
	"github.com/sindikatncr/membership-backend/internal/mailer"
)

// fakeMailer records sent messages and can fail for chosen recipients.
type fakeMailer struct {
	mu      sync.Mutex
	sent    []*mailer.Message
	failFor map[string]error
}

func (f *fakeMailer) Send(_ context.Context, msg *mailer.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor != nil && len(msg.To) > 0 {
		if err, ok := f.failFor[msg.To[0]]; ok {
			return err
		}
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeMailer) messages() []*mailer.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*mailer.Message{}, f.sent...)
}

var memberCols = []string{
	"id", "member_seq", "quicklook_id", "full_name", "email", "city", "organization",
	"status", "verification_status", "verification_method",
	"reminder_email_sent", "card_sent", "is_anonymous",
	"member_id", "evidence_path", "approved_by",
	"created_at", "updated_at", "method_selected_at", "verified_at",
	"reminder_sent_at", "approved_at", "joined_at",
}

// memberRow builds a members row with the given lifecycle fields.
func memberRow(id string, seq int64, status, verificationStatus string, memberNumber *string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(memberCols).
		AddRow(id, seq, "AB123456", "Marko Markovic", "marko@example.com",
			"Belgrade", "Engineering", status, verificationStatus, nil,
			false, false, false,
			memberNumber, nil, nil,
			now, now, nil, nil,
			nil, nil, nil)
}

func memberRowEmpty() *sqlmock.Rows {
	return sqlmock.NewRows(memberCols)
}

func sqlmockResult(rows int64) sql.Result {
	return sqlmock.NewResult(0, rows)
}

// newTestRepos builds member and audit repositories over one sqlmock connection.
func newTestRepos(t *testing.T) (*repositories.MemberRepository, *repositories.AuditRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return repositories.NewMemberRepository(sqlx.NewDb(db, "sqlmock")), repositories.NewAuditRepository(db), mock, db
}

func testMembershipConfig() *config.MembershipConfig {
	return &config.MembershipConfig{
		NumberPrefix: "SIN-AT",
		NumberWidth:  4,
		NumberExceptions: map[string]string{
			"MS250616": "SIN-AT0001",
		},
	}
}

func testNotificationsConfig() *config.NotificationsConfig {
	return &config.NotificationsConfig{
		Enabled:       true,
		OfficeEmail:   "office@example.com",
		BulkSendDelay: time.Millisecond,
	}
}
