// reminder.go implements the ReminderScheduler background job, which nudges
// applicants who never finished verification. Each member gets at most one
// reminder ever: reminder_sent_at is stamped as a claim before the send so
// overlapping runs cannot double-send, and reminder_email_sent is confirmed
// after delivery and never reset. A failed send releases the claim so a later
// run retries.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sindikatncr/membership-backend/internal/auth"
	"github.com/sindikatncr/membership-backend/internal/db/models"
	"github.com/sindikatncr/membership-backend/internal/db/repositories"
	"github.com/sindikatncr/membership-backend/internal/mailer"
	"github.com/sindikatncr/membership-backend/internal/telemetry"
)

// ErrAlreadyReminded reports that a member already received (or is claimed
// for) their one reminder.
var ErrAlreadyReminded = errors.New("reminder already sent")

// ReminderResult aggregates one scheduler run.
type ReminderResult struct {
	Candidates int `json:"candidates"`
	Sent       int `json:"sent"`
	Failed     int `json:"failed"`
}

// ReminderScheduler periodically reminds stalled applicants to verify.
type ReminderScheduler struct {
	memberRepo *repositories.MemberRepository
	eventRepo  *repositories.VerificationEventRepository
	tokens     *auth.TokenService
	mail       mailer.Mailer
	baseURL    string
	threshold  time.Duration
	interval   time.Duration
	stopChan   chan struct{}
}

// NewReminderScheduler creates a ReminderScheduler. The threshold is how long
// a member may sit pending after selecting a verification method before a
// reminder (default 24h); the interval is how often the job fires (default 1h).
func NewReminderScheduler(
	memberRepo *repositories.MemberRepository,
	eventRepo *repositories.VerificationEventRepository,
	tokens *auth.TokenService,
	mail mailer.Mailer,
	baseURL string,
	threshold, interval time.Duration,
) *ReminderScheduler {
	if threshold <= 0 {
		threshold = 24 * time.Hour
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &ReminderScheduler{
		memberRepo: memberRepo,
		eventRepo:  eventRepo,
		tokens:     tokens,
		mail:       mail,
		baseURL:    baseURL,
		threshold:  threshold,
		interval:   interval,
		stopChan:   make(chan struct{}),
	}
}

// Start begins the background reminder loop. The loop exits when ctx is
// cancelled or Stop is called.
func (r *ReminderScheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	slog.Info("reminder scheduler started", "interval", r.interval, "threshold", r.threshold)

	for {
		select {
		case <-ticker.C:
			if result, err := r.Run(ctx); err != nil {
				slog.Error("reminder run failed", "error", err)
			} else if result.Candidates > 0 {
				slog.Info("reminder run finished",
					"candidates", result.Candidates, "sent", result.Sent, "failed", result.Failed)
			}
		case <-r.stopChan:
			slog.Info("reminder scheduler stopped")
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop signals the background loop to exit.
func (r *ReminderScheduler) Stop() {
	close(r.stopChan)
}

// Run performs one reminder pass.
func (r *ReminderScheduler) Run(ctx context.Context) (*ReminderResult, error) {
	now := time.Now()
	cutoff := now.Add(-r.threshold)

	stalled, err := r.memberRepo.FindStalledPending(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("find stalled members: %w", err)
	}

	result := &ReminderResult{Candidates: len(stalled)}
	for _, m := range stalled {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		claimed, err := r.memberRepo.ClaimReminder(ctx, m.ID, now)
		if err != nil {
			slog.Error("reminder claim failed", "member_id", m.ID, "error", err)
			result.Failed++
			continue
		}
		if !claimed {
			// Another run already owns this member.
			continue
		}

		if err := r.sendReminder(ctx, m); err != nil {
			slog.Error("reminder send failed", "member_id", m.ID, "email", m.Email, "error", err)
			result.Failed++
			if err := r.memberRepo.ClearReminderClaim(ctx, m.ID); err != nil {
				slog.Error("failed to release reminder claim", "member_id", m.ID, "error", err)
			}
			continue
		}

		result.Sent++
		telemetry.ReminderEmailsSentTotal.Inc()

		// Flag confirmation and the event record are best-effort follow-ups;
		// the claim already prevents a duplicate send.
		if err := r.memberRepo.MarkReminderSent(ctx, m.ID); err != nil {
			slog.Error("failed to confirm reminder flag", "member_id", m.ID, "error", err)
		}
		if err := r.eventRepo.CreateEvent(ctx, &models.VerificationEvent{
			MemberID:  m.ID,
			EventType: models.EventReminderSent,
		}); err != nil {
			slog.Error("failed to record reminder event", "member_id", m.ID, "error", err)
		}
	}

	return result, nil
}

// RemindMember sends one reminder to a specific member on operator request.
// The scheduled run's claim semantics apply, so a member who already received
// their reminder gets ErrAlreadyReminded instead of a second email.
func (r *ReminderScheduler) RemindMember(ctx context.Context, m *models.Member) error {
	claimed, err := r.memberRepo.ClaimReminder(ctx, m.ID, time.Now())
	if err != nil {
		return fmt.Errorf("claim reminder: %w", err)
	}
	if !claimed {
		return ErrAlreadyReminded
	}

	if err := r.sendReminder(ctx, m); err != nil {
		if clearErr := r.memberRepo.ClearReminderClaim(ctx, m.ID); clearErr != nil {
			slog.Error("failed to release reminder claim", "member_id", m.ID, "error", clearErr)
		}
		return err
	}

	telemetry.ReminderEmailsSentTotal.Inc()
	if err := r.memberRepo.MarkReminderSent(ctx, m.ID); err != nil {
		slog.Error("failed to confirm reminder flag", "member_id", m.ID, "error", err)
	}
	if err := r.eventRepo.CreateEvent(ctx, &models.VerificationEvent{
		MemberID:  m.ID,
		EventType: models.EventReminderSent,
	}); err != nil {
		slog.Error("failed to record reminder event", "member_id", m.ID, "error", err)
	}
	return nil
}

func (r *ReminderScheduler) sendReminder(ctx context.Context, m *models.Member) error {
	token, err := r.tokens.Issue(m.ID, m.QuicklookID)
	if err != nil {
		return fmt.Errorf("issue verification token: %w", err)
	}

	link := fmt.Sprintf("%s/api/v1/verify?token=%s", r.baseURL, token)
	msg := &mailer.Message{
		To:      []string{m.Email},
		Subject: "Podsetnik: zavrsite verifikaciju clanstva",
		Body: fmt.Sprintf(
			"Postovani/a %s,\r\n\r\n"+
				"Vasa pristupnica ceka verifikaciju zaposlenja. Zavrsite je preko linka:\r\n\r\n"+
				"%s\r\n\r\n"+
				"Link vazi sedam dana.\r\n\r\n"+
				"S postovanjem,\r\nSindikat Radnika NCR Atleos Beograd",
			m.FullName, link),
	}
	return r.mail.Send(ctx, msg)
}
