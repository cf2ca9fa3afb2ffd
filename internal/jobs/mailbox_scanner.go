// mailbox_scanner.go implements the MailboxScanner background job, which polls
// the verification inbox and advances members who verified by work email. Each
// inbound message is matched to at most one pending member by sender name; the
// match is a best-effort heuristic, so ambiguity always skips rather than
// guesses. Idempotence across overlapping runs comes from the message-id
// uniqueness in the verification event log: whichever run claims the message
// id first performs the transition, every other run sees a duplicate.
package jobs

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/sindikatncr/membership-backend/internal/config"
	"github.com/sindikatncr/membership-backend/internal/db/models"
	"github.com/sindikatncr/membership-backend/internal/db/repositories"
	"github.com/sindikatncr/membership-backend/internal/mailbox"
	"github.com/sindikatncr/membership-backend/internal/telemetry"
)

// ScanResult aggregates one scan run for the cron response and logs.
type ScanResult struct {
	Fetched   int `json:"fetched"`
	Matched   int `json:"matched"`
	Ambiguous int `json:"ambiguous"`
	Unmatched int `json:"unmatched"`
	Duplicate int `json:"duplicate"`
	Errors    int `json:"errors"`
}

// MailboxScanner polls the verification inbox on an interval. Scan can also be
// invoked directly by the cron endpoint; both paths are idempotent.
type MailboxScanner struct {
	memberRepo *repositories.MemberRepository
	eventRepo  *repositories.VerificationEventRepository
	dial       mailbox.Dialer
	cfg        *config.MailboxConfig
	interval   time.Duration
	stopChan   chan struct{}
}

// NewMailboxScanner creates a MailboxScanner.
func NewMailboxScanner(
	memberRepo *repositories.MemberRepository,
	eventRepo *repositories.VerificationEventRepository,
	dial mailbox.Dialer,
	cfg *config.MailboxConfig,
	interval time.Duration,
) *MailboxScanner {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &MailboxScanner{
		memberRepo: memberRepo,
		eventRepo:  eventRepo,
		dial:       dial,
		cfg:        cfg,
		interval:   interval,
		stopChan:   make(chan struct{}),
	}
}

// Start begins the background scan loop. It runs an initial scan immediately,
// then repeats on the configured interval. The loop exits when ctx is
// cancelled or Stop is called.
func (s *MailboxScanner) Start(ctx context.Context) {
	if !s.cfg.Enabled {
		slog.Info("mailbox scanner disabled")
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("mailbox scanner started", "interval", s.interval, "folder", s.cfg.Folder)

	s.runScan(ctx)

	for {
		select {
		case <-ticker.C:
			s.runScan(ctx)
		case <-s.stopChan:
			slog.Info("mailbox scanner stopped")
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop signals the background loop to exit.
func (s *MailboxScanner) Stop() {
	close(s.stopChan)
}

func (s *MailboxScanner) runScan(ctx context.Context) {
	result, err := s.Scan(ctx)
	if err != nil {
		slog.Error("mailbox scan failed", "error", err)
		return
	}
	if result.Fetched > 0 {
		slog.Info("mailbox scan finished",
			"fetched", result.Fetched, "matched", result.Matched,
			"ambiguous", result.Ambiguous, "unmatched", result.Unmatched,
			"duplicate", result.Duplicate, "errors", result.Errors)
	}
}

// Scan performs one pass over the unseen messages in the inbox.
func (s *MailboxScanner) Scan(ctx context.Context) (*ScanResult, error) {
	start := time.Now()
	defer func() {
		telemetry.MailboxScanDuration.Observe(time.Since(start).Seconds())
	}()

	inbox, err := s.dial(ctx)
	if err != nil {
		telemetry.MailboxScanErrorsTotal.Inc()
		return nil, err
	}
	defer inbox.Close()

	messages, err := inbox.FetchUnseen(ctx)
	if err != nil {
		telemetry.MailboxScanErrorsTotal.Inc()
		return nil, err
	}

	result := &ScanResult{Fetched: len(messages)}
	if len(messages) == 0 {
		return result, nil
	}

	candidates, err := s.memberRepo.FindVerificationCandidates(ctx)
	if err != nil {
		telemetry.MailboxScanErrorsTotal.Inc()
		return nil, err
	}

	for _, msg := range messages {
		processed, outcome := s.processMessage(ctx, msg, candidates)
		switch outcome {
		case "matched":
			result.Matched++
		case "ambiguous":
			result.Ambiguous++
		case "duplicate":
			result.Duplicate++
		case "error":
			result.Errors++
		default:
			result.Unmatched++
		}
		telemetry.MailboxMatchesTotal.WithLabelValues(outcome).Inc()

		// Errors leave the message unseen so the next run retries it.
		if processed {
			if err := inbox.MarkSeen(ctx, msg.UID); err != nil {
				slog.Error("failed to mark message seen", "message_id", msg.MessageID, "error", err)
			}
		}
	}

	return result, nil
}

// processMessage handles one inbound message. The returned bool says whether
// the message reached a terminal outcome and should be marked seen.
func (s *MailboxScanner) processMessage(ctx context.Context, msg *mailbox.Message, candidates []*models.Member) (bool, string) {
	if msg.MessageID == "" {
		slog.Warn("skipping message without message id", "sender", msg.Sender)
		return true, "none"
	}

	first, last, ok := parseSenderName(msg.SenderName)
	if !ok {
		slog.Info("skipping message with unparseable sender name",
			"sender", msg.Sender, "sender_name", msg.SenderName)
		return true, "none"
	}

	member, outcome := matchCandidate(candidates, first, last)
	if outcome != "matched" {
		if outcome == "ambiguous" {
			slog.Warn("ambiguous sender match left for manual reconciliation",
				"sender_name", msg.SenderName, "message_id", msg.MessageID)
		}
		return true, outcome
	}

	now := time.Now()
	event := &models.VerificationEvent{
		MemberID:  member.ID,
		EventType: models.EventEmailMatched,
		MessageID: &msg.MessageID,
		Sender:    &msg.Sender,
		Subject:   &msg.Subject,
		MatchedAt: &now,
	}
	claimed, err := s.eventRepo.ClaimMessageEvent(ctx, event)
	if err != nil {
		telemetry.MailboxScanErrorsTotal.Inc()
		slog.Error("failed to claim message event", "message_id", msg.MessageID, "error", err)
		return false, "error"
	}
	if !claimed {
		// Another run already consumed this message.
		return true, "duplicate"
	}

	verified, err := s.memberRepo.MarkEmailVerified(ctx, member.ID, now)
	if err != nil {
		telemetry.MailboxScanErrorsTotal.Inc()
		slog.Error("failed to mark member verified", "member_id", member.ID, "error", err)
		return false, "error"
	}
	if !verified {
		// Member moved off the email path between candidate load and update.
		slog.Info("member no longer eligible for email verification",
			"member_id", member.ID, "message_id", msg.MessageID)
		telemetry.VerificationsTotal.WithLabelValues(models.MethodEmail, "skipped").Inc()
		return true, "matched"
	}

	telemetry.VerificationsTotal.WithLabelValues(models.MethodEmail, "verified").Inc()
	slog.Info("member verified by work email",
		"member_id", member.ID, "message_id", msg.MessageID)
	return true, "matched"
}

// parseSenderName splits a display name into a first-name/last-name pair.
// The first token is the first name, the final token the last name.
func parseSenderName(name string) (first, last string, ok bool) {
	fields := strings.Fields(name)
	if len(fields) < 2 {
		return "", "", false
	}
	return fields[0], fields[len(fields)-1], true
}

// matchCandidate applies the name heuristic: among candidates whose full name
// contains the sender's last name, exactly one must have a first token equal
// to the sender's first name and a last token (trailing digits stripped, a
// directory convention for duplicate names) equal to the sender's last name.
// Known limitation: multi-part surnames only match on their final token.
func matchCandidate(candidates []*models.Member, first, last string) (*models.Member, string) {
	firstLower := strings.ToLower(first)
	lastLower := strings.ToLower(stripTrailingDigits(last))

	var matched []*models.Member
	for _, m := range candidates {
		fullLower := strings.ToLower(m.FullName)
		if !strings.Contains(fullLower, lastLower) {
			continue
		}
		tokens := strings.Fields(fullLower)
		if len(tokens) < 2 {
			continue
		}
		if tokens[0] != firstLower {
			continue
		}
		if stripTrailingDigits(tokens[len(tokens)-1]) != lastLower {
			continue
		}
		matched = append(matched, m)
	}

	switch len(matched) {
	case 1:
		return matched[0], "matched"
	case 0:
		return nil, "none"
	default:
		return nil, "ambiguous"
	}
}

func stripTrailingDigits(s string) string {
	return strings.TrimRightFunc(s, unicode.IsDigit)
}
