// event_repository.go implements VerificationEventRepository, the append-only trail
// of verification activity. Mailbox events insert with ON CONFLICT DO NOTHING against
// the (event_type, message_id) unique index, which is what makes re-scanning a
// processed message idempotent.
package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sindikatncr/membership-backend/internal/db/models"
)

const eventColumns = `
	id, member_id, event_type, message_id, sender, subject, detail, created_at, matched_at`

// VerificationEventRepository handles verification event database operations
type VerificationEventRepository struct {
	db *sqlx.DB
}

// NewVerificationEventRepository creates a new VerificationEventRepository
func NewVerificationEventRepository(db *sqlx.DB) *VerificationEventRepository {
	return &VerificationEventRepository{db: db}
}

// CreateEvent appends a verification event unconditionally (no message-id dedup).
func (r *VerificationEventRepository) CreateEvent(ctx context.Context, e *models.VerificationEvent) error {
	e.ID = uuid.New().String()
	e.CreatedAt = time.Now()

	query := `
		INSERT INTO verification_events (id, member_id, event_type, message_id, sender, subject, detail, created_at, matched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		e.ID, e.MemberID, e.EventType, e.MessageID, e.Sender, e.Subject, e.Detail, e.CreatedAt, e.MatchedAt)
	return err
}

// ClaimMessageEvent appends a mailbox match event, claiming the message id.
// Returns false when an event for the same (event_type, message_id) already
// exists, meaning another scan already processed this message.
func (r *VerificationEventRepository) ClaimMessageEvent(ctx context.Context, e *models.VerificationEvent) (bool, error) {
	e.ID = uuid.New().String()
	e.CreatedAt = time.Now()

	query := `
		INSERT INTO verification_events (id, member_id, event_type, message_id, sender, subject, detail, created_at, matched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (event_type, message_id) WHERE message_id IS NOT NULL DO NOTHING
	`

	res, err := r.db.ExecContext(ctx, query,
		e.ID, e.MemberID, e.EventType, e.MessageID, e.Sender, e.Subject, e.Detail, e.CreatedAt, e.MatchedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListEventsByMember retrieves a member's verification history, newest first.
func (r *VerificationEventRepository) ListEventsByMember(ctx context.Context, memberID string) ([]*models.VerificationEvent, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM verification_events
		WHERE member_id = $1
		ORDER BY created_at DESC
	`

	events := make([]*models.VerificationEvent, 0)
	if err := r.db.SelectContext(ctx, &events, query, memberID); err != nil {
		return nil, err
	}
	return events, nil
}

// GetEventByMessageID retrieves the event recorded for a mailbox message.
// Returns (nil, nil) when the message has not been processed.
func (r *VerificationEventRepository) GetEventByMessageID(ctx context.Context, eventType, messageID string) (*models.VerificationEvent, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM verification_events
		WHERE event_type = $1 AND message_id = $2
	`

	var e models.VerificationEvent
	err := r.db.GetContext(ctx, &e, query, eventType, messageID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}
