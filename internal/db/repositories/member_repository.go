// member_repository.go implements MemberRepository, the data layer for membership
// applications and members. All cross-invocation guards (reminder claims, approval,
// email verification) are conditional UPDATEs so that concurrent callers race on the
// database row, not on in-process state.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sindikatncr/membership-backend/internal/db/models"
)

// memberColumns is the canonical select list for scanning into models.Member.
const memberColumns = `
	id, member_seq, quicklook_id, full_name, email, city, organization,
	status, verification_status, verification_method,
	reminder_email_sent, card_sent, is_anonymous,
	member_id, evidence_path, approved_by,
	created_at, updated_at, method_selected_at, verified_at,
	reminder_sent_at, approved_at, joined_at`

// MemberRepository handles member database operations
type MemberRepository struct {
	db *sqlx.DB
}

// NewMemberRepository creates a new MemberRepository
func NewMemberRepository(db *sqlx.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

// MemberFilters contains filters for listing members
type MemberFilters struct {
	Status             *string
	VerificationStatus *string
	Search             *string // matches full_name, email, or quicklook_id
}

// CreateMember inserts a new membership application. The database assigns
// member_seq; the generated ID, sequence, and timestamps are written back
// into the supplied model.
func (r *MemberRepository) CreateMember(ctx context.Context, m *models.Member) error {
	m.ID = uuid.New().String()
	now := time.Now()
	m.CreatedAt = now
	m.UpdatedAt = now
	if m.Status == "" {
		m.Status = models.StatusPending
	}
	if m.VerificationStatus == "" {
		m.VerificationStatus = models.VerificationPending
	}

	query := `
		INSERT INTO members (
			id, quicklook_id, full_name, email, city, organization,
			status, verification_status, verification_method, is_anonymous,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING member_seq
	`

	err := r.db.QueryRowContext(ctx, query,
		m.ID,
		m.QuicklookID,
		m.FullName,
		m.Email,
		m.City,
		m.Organization,
		m.Status,
		m.VerificationStatus,
		m.VerificationMethod,
		m.IsAnonymous,
		m.CreatedAt,
		m.UpdatedAt,
	).Scan(&m.MemberSeq)
	if err != nil {
		return fmt.Errorf("failed to insert member: %w", err)
	}

	return nil
}

// GetMemberByID retrieves a member by UUID. Returns (nil, nil) when not found.
func (r *MemberRepository) GetMemberByID(ctx context.Context, id string) (*models.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE id = $1`

	var m models.Member
	err := r.db.GetContext(ctx, &m, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// FindVerifyingByQuicklookID returns the member currently holding the quicklook id,
// i.e. one whose verification progressed to code_verified, contacted, or verified.
// Pending applications that never advanced do not reserve the id.
// Returns (nil, nil) when the id is free.
func (r *MemberRepository) FindVerifyingByQuicklookID(ctx context.Context, quicklookID string) (*models.Member, error) {
	query := `
		SELECT ` + memberColumns + `
		FROM members
		WHERE quicklook_id = $1
		  AND verification_status IN ('code_verified', 'contacted', 'verified')
		LIMIT 1
	`

	var m models.Member
	err := r.db.GetContext(ctx, &m, query, quicklookID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// SelectVerificationMethod records the member's chosen verification channel.
// Re-selection overwrites the previous choice and refreshes method_selected_at.
// Returns false when the member does not exist or is no longer awaiting verification.
func (r *MemberRepository) SelectVerificationMethod(ctx context.Context, id, method string, now time.Time) (bool, error) {
	query := `
		UPDATE members
		SET verification_method = $2, method_selected_at = $3, updated_at = $3
		WHERE id = $1 AND verification_status = 'pending'
	`

	res, err := r.db.ExecContext(ctx, query, id, method, now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// SetEvidencePath records the storage path of uploaded badge evidence.
func (r *MemberRepository) SetEvidencePath(ctx context.Context, id, path string) error {
	query := `UPDATE members SET evidence_path = $2, updated_at = NOW() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id, path)
	return err
}

// MarkEmailVerified transitions a member to code_verified. The update is
// conditional: the member must still be pending and on the email channel (or
// no channel yet), so a concurrent override or a second scan of the same
// member is a no-op. Returns true when this call performed the transition.
func (r *MemberRepository) MarkEmailVerified(ctx context.Context, id string, now time.Time) (bool, error) {
	query := `
		UPDATE members
		SET verification_status = 'code_verified', verification_method = 'email',
		    verified_at = $2, updated_at = $2
		WHERE id = $1
		  AND verification_status = 'pending'
		  AND (verification_method IS NULL OR verification_method = 'email')
	`

	res, err := r.db.ExecContext(ctx, query, id, now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// OverrideVerificationStatus sets the verification status directly (admin action).
// Only 'verified' and 'flagged' are accepted as override targets.
func (r *MemberRepository) OverrideVerificationStatus(ctx context.Context, id, status string, now time.Time) (bool, error) {
	if status != models.VerificationVerified && status != models.VerificationFlagged {
		return false, fmt.Errorf("invalid override status: %s", status)
	}

	query := `
		UPDATE members
		SET verification_status = $2, verified_at = $3, updated_at = $3
		WHERE id = $1
	`

	res, err := r.db.ExecContext(ctx, query, id, status, now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// FindVerificationCandidates returns members eligible for a mailbox match:
// still pending verification and on the email channel (or none selected yet).
func (r *MemberRepository) FindVerificationCandidates(ctx context.Context) ([]*models.Member, error) {
	query := `
		SELECT ` + memberColumns + `
		FROM members
		WHERE status = 'pending'
		  AND verification_status = 'pending'
		  AND (verification_method IS NULL OR verification_method = 'email')
		ORDER BY created_at
	`

	members := make([]*models.Member, 0)
	if err := r.db.SelectContext(ctx, &members, query); err != nil {
		return nil, err
	}
	return members, nil
}

// FindStalledPending returns members who selected a verification method before
// the cutoff, are still pending on both lifecycles, and have never been sent
// (or claimed for) a reminder. Members who never selected a method are excluded;
// the stall clock starts at method selection, not at application time.
func (r *MemberRepository) FindStalledPending(ctx context.Context, cutoff time.Time) ([]*models.Member, error) {
	query := `
		SELECT ` + memberColumns + `
		FROM members
		WHERE status = 'pending'
		  AND verification_status = 'pending'
		  AND reminder_email_sent = FALSE
		  AND reminder_sent_at IS NULL
		  AND method_selected_at IS NOT NULL
		  AND method_selected_at < $1
		ORDER BY method_selected_at
	`

	members := make([]*models.Member, 0)
	if err := r.db.SelectContext(ctx, &members, query, cutoff); err != nil {
		return nil, err
	}
	return members, nil
}

// ClaimReminder stamps reminder_sent_at as a claim before sending. Overlapping
// scheduler runs race on this update; only one caller wins the row.
func (r *MemberRepository) ClaimReminder(ctx context.Context, id string, now time.Time) (bool, error) {
	query := `
		UPDATE members
		SET reminder_sent_at = $2, updated_at = $2
		WHERE id = $1 AND reminder_email_sent = FALSE AND reminder_sent_at IS NULL
	`

	res, err := r.db.ExecContext(ctx, query, id, now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ClearReminderClaim releases a claim after a failed send so a later run retries.
func (r *MemberRepository) ClearReminderClaim(ctx context.Context, id string) error {
	query := `
		UPDATE members
		SET reminder_sent_at = NULL, updated_at = NOW()
		WHERE id = $1 AND reminder_email_sent = FALSE
	`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

// MarkReminderSent confirms delivery. Once set, reminder_email_sent never resets.
func (r *MemberRepository) MarkReminderSent(ctx context.Context, id string) error {
	query := `UPDATE members SET reminder_email_sent = TRUE, updated_at = NOW() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	return err
}

// ApproveMember performs the single activating update: status, member number,
// card flag, join and approval timestamps, and the approving admin, all at once.
// The WHERE clause makes a second approval of an active member a no-op; the
// caller distinguishes that case via the returned bool.
func (r *MemberRepository) ApproveMember(ctx context.Context, id, memberNumber, approvedBy string, now time.Time) (bool, error) {
	query := `
		UPDATE members
		SET status = 'active',
		    member_id = $2,
		    card_sent = TRUE,
		    approved_by = $3,
		    approved_at = $4,
		    joined_at = COALESCE(joined_at, $4),
		    updated_at = $4
		WHERE id = $1 AND status <> 'active'
	`

	res, err := r.db.ExecContext(ctx, query, id, memberNumber, approvedBy, now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListMembers retrieves members with optional filters and pagination.
func (r *MemberRepository) ListMembers(ctx context.Context, filters MemberFilters, limit, offset int) ([]*models.Member, int, error) {
	countQuery := `SELECT COUNT(*) FROM members WHERE 1=1`
	query := `SELECT ` + memberColumns + ` FROM members WHERE 1=1`

	args := make([]interface{}, 0)
	paramIndex := 1

	if filters.Status != nil {
		clause := fmt.Sprintf(` AND status = $%d`, paramIndex)
		countQuery += clause
		query += clause
		args = append(args, *filters.Status)
		paramIndex++
	}

	if filters.VerificationStatus != nil {
		clause := fmt.Sprintf(` AND verification_status = $%d`, paramIndex)
		countQuery += clause
		query += clause
		args = append(args, *filters.VerificationStatus)
		paramIndex++
	}

	if filters.Search != nil {
		clause := fmt.Sprintf(` AND (full_name ILIKE $%d OR email ILIKE $%d OR quicklook_id ILIKE $%d)`,
			paramIndex, paramIndex, paramIndex)
		countQuery += clause
		query += clause
		args = append(args, "%"+*filters.Search+"%")
		paramIndex++
	}

	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, paramIndex, paramIndex+1)
	args = append(args, limit, offset)

	members := make([]*models.Member, 0)
	if err := r.db.SelectContext(ctx, &members, query, args...); err != nil {
		return nil, 0, err
	}
	return members, total, nil
}

// ListMembersByIDs retrieves the given members in one query (bulk notifier input).
func (r *MemberRepository) ListMembersByIDs(ctx context.Context, ids []string) ([]*models.Member, error) {
	if len(ids) == 0 {
		return []*models.Member{}, nil
	}

	query, args, err := sqlx.In(`SELECT `+memberColumns+` FROM members WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	query = r.db.Rebind(query)

	members := make([]*models.Member, 0)
	if err := r.db.SelectContext(ctx, &members, query, args...); err != nil {
		return nil, err
	}
	return members, nil
}

// UpdateMember updates the profile fields an operator may edit.
func (r *MemberRepository) UpdateMember(ctx context.Context, m *models.Member) error {
	query := `
		UPDATE members
		SET full_name = $2, email = $3, city = $4, organization = $5,
		    is_anonymous = $6, updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.db.ExecContext(ctx, query,
		m.ID, m.FullName, m.Email, m.City, m.Organization, m.IsAnonymous)
	return err
}

// DeleteMember removes a member; verification events cascade at the schema level.
func (r *MemberRepository) DeleteMember(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM members WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
