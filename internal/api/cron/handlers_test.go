package cron

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/sindikatncr/membership-backend/internal/auth"
	"github.com/sindikatncr/membership-backend/internal/config"
	"github.com/sindikatncr/membership-backend/internal/db/repositories"
	"github.com/sindikatncr/membership-backend/internal/jobs"
	"github.com/sindikatncr/membership-backend/internal/mailbox"
	"github.com/sindikatncr/membership-backend/internal/mailer"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type emptyInbox struct{}

func (emptyInbox) FetchUnseen(context.Context) ([]*mailbox.Message, error) { return nil, nil }
func (emptyInbox) MarkSeen(context.Context, ...uint32) error              { return nil }
func (emptyInbox) Close() error                                           { return nil }

type nopMailer struct{}

func (nopMailer) Send(context.Context, *mailer.Message) error { return nil }

func newTestHandler(t *testing.T, mailboxEnabled bool) (*Handler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	sdb := sqlx.NewDb(db, "sqlmock")

	memberRepo := repositories.NewMemberRepository(sdb)
	eventRepo := repositories.NewVerificationEventRepository(sdb)

	cfg := &config.VerificationConfig{}
	cfg.Mailbox.Enabled = mailboxEnabled

	dial := func(ctx context.Context) (mailbox.Inbox, error) { return emptyInbox{}, nil }
	scanner := jobs.NewMailboxScanner(memberRepo, eventRepo, dial, &cfg.Mailbox, time.Minute)
	reminders := jobs.NewReminderScheduler(memberRepo, eventRepo,
		auth.NewTokenService("cron-test-secret", time.Hour), nopMailer{},
		"https://members.example.com", 24*time.Hour, time.Hour)

	return NewHandler(cfg, scanner, reminders), mock
}

func doGet(h *Handler, path string) *httptest.ResponseRecorder {
	router := gin.New()
	router.GET("/cron/mailbox-scan", h.MailboxScan)
	router.GET("/cron/reminders", h.Reminders)

	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestMailboxScan_Disabled(t *testing.T) {
	h, _ := newTestHandler(t, false)

	w := doGet(h, "/cron/mailbox-scan")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp struct {
		Disabled bool `json:"disabled"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !resp.Disabled {
		t.Error("expected disabled report when the mailbox is off")
	}
}

func TestMailboxScan_EmptyInbox(t *testing.T) {
	h, _ := newTestHandler(t, true)

	w := doGet(h, "/cron/mailbox-scan")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var result jobs.ScanResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if result.Fetched != 0 || result.Matched != 0 {
		t.Errorf("result = %+v, want empty scan", result)
	}
}

func TestReminders_NoStalledMembers(t *testing.T) {
	h, mock := newTestHandler(t, false)

	mock.ExpectQuery(`SELECT (.+) FROM members WHERE status = 'pending' AND verification_status = 'pending'`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	w := doGet(h, "/cron/reminders")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var result jobs.ReminderResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if result.Candidates != 0 || result.Sent != 0 {
		t.Errorf("result = %+v, want no work", result)
	}
}
