package jobs

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/sindikatncr/membership-backend/internal/db/repositories"
	"github.com/sindikatncr/membership-backend/internal/mailbox"
	"github.com/sindikatncr/membership-backend/internal/mailer"
)

var memberCols = []string{
	"id", "member_seq", "quicklook_id", "full_name", "email", "city", "organization",
	"status", "verification_status", "verification_method",
	"reminder_email_sent", "card_sent", "is_anonymous",
	"member_id", "evidence_path", "approved_by",
	"created_at", "updated_at", "method_selected_at", "verified_at",
	"reminder_sent_at", "approved_at", "joined_at",
}

// pendingMemberRows builds pending-member rows keyed by (id, full name, email).
func pendingMemberRows(members ...[3]string) *sqlmock.Rows {
	rows := sqlmock.NewRows(memberCols)
	now := time.Now()
	for i, m := range members {
		rows.AddRow(m[0], int64(i+1), "AB123456", m[1], m[2],
			"Belgrade", "Engineering", "pending", "pending", nil,
			false, false, false,
			nil, nil, nil,
			now.Add(-48*time.Hour), now, nil, nil,
			nil, nil, nil)
	}
	return rows
}

func newTestRepos(t *testing.T) (*repositories.MemberRepository, *repositories.VerificationEventRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	sdb := sqlx.NewDb(db, "sqlmock")
	return repositories.NewMemberRepository(sdb), repositories.NewVerificationEventRepository(sdb), mock
}

func sqlmockResult(rows int64) sql.Result {
	return sqlmock.NewResult(0, rows)
}

// fakeInbox is an in-memory Inbox for scanner tests.
type fakeInbox struct {
	mu        sync.Mutex
	messages  []*mailbox.Message
	fetchErr  error
	markErr   error
	seen      map[uint32]bool
	closed    bool
	markCalls int
}

func (f *fakeInbox) FetchUnseen(_ context.Context) ([]*mailbox.Message, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.messages, nil
}

func (f *fakeInbox) MarkSeen(_ context.Context, uids ...uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markCalls++
	if f.markErr != nil {
		return f.markErr
	}
	if f.seen == nil {
		f.seen = make(map[uint32]bool)
	}
	for _, uid := range uids {
		f.seen[uid] = true
	}
	return nil
}

func (f *fakeInbox) Close() error {
	f.closed = true
	return nil
}

func (f *fakeInbox) isSeen(uid uint32) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seen[uid]
}

func dialerFor(inbox *fakeInbox, err error) mailbox.Dialer {
	return func(_ context.Context) (mailbox.Inbox, error) {
		if err != nil {
			return nil, err
		}
		return inbox, nil
	}
}

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
