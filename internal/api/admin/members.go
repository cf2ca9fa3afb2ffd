// members.go implements the back-office member management endpoints: listing,
// inspection, profile edits, deletion, verification override, approval, card
// resend, and manual reminders. Every mutation writes an audit entry with the
// acting admin and client IP.
package admin

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sindikatncr/membership-backend/internal/db/models"
	"github.com/sindikatncr/membership-backend/internal/db/repositories"
	"github.com/sindikatncr/membership-backend/internal/jobs"
	"github.com/sindikatncr/membership-backend/internal/middleware"
	"github.com/sindikatncr/membership-backend/internal/services"
	"github.com/sindikatncr/membership-backend/internal/storage"
	"github.com/sindikatncr/membership-backend/internal/telemetry"
)

// MemberHandlers handles admin member management.
type MemberHandlers struct {
	memberRepo *repositories.MemberRepository
	eventRepo  *repositories.VerificationEventRepository
	auditRepo  *repositories.AuditRepository
	approval   *services.ApprovalService
	reminders  *jobs.ReminderScheduler
	store      storage.Storage
}

// NewMemberHandlers creates a MemberHandlers instance.
func NewMemberHandlers(
	memberRepo *repositories.MemberRepository,
	eventRepo *repositories.VerificationEventRepository,
	auditRepo *repositories.AuditRepository,
	approval *services.ApprovalService,
	reminders *jobs.ReminderScheduler,
	store storage.Storage,
) *MemberHandlers {
	return &MemberHandlers{
		memberRepo: memberRepo,
		eventRepo:  eventRepo,
		auditRepo:  auditRepo,
		approval:   approval,
		reminders:  reminders,
		store:      store,
	}
}

// adminID returns the authenticated admin's id from the request context.
func adminID(c *gin.Context) string {
	id, _ := c.Get(middleware.AdminIDKey)
	s, _ := id.(string)
	return s
}

// audit writes one audit entry; failures are logged, never surfaced.
func (h *MemberHandlers) audit(c *gin.Context, action, memberID string, metadata map[string]interface{}) {
	actor := adminID(c)
	resourceType := "member"
	ip := c.ClientIP()
	entry := &models.AuditLog{
		AdminID:      &actor,
		Action:       action,
		ResourceType: &resourceType,
		ResourceID:   &memberID,
		Metadata:     metadata,
		IPAddress:    &ip,
	}
	if err := h.auditRepo.CreateAuditLog(c.Request.Context(), entry); err != nil {
		slog.Error("failed to write audit entry", "action", action, "member_id", memberID, "error", err)
	}
}

// List returns members with optional status, verification, and search filters.
// GET /api/v1/members?status=&verification_status=&search=&page=&per_page=
func (h *MemberHandlers) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	var filters repositories.MemberFilters
	if v := c.Query("status"); v != "" {
		filters.Status = &v
	}
	if v := c.Query("verification_status"); v != "" {
		filters.VerificationStatus = &v
	}
	if v := c.Query("search"); v != "" {
		filters.Search = &v
	}

	members, total, err := h.memberRepo.ListMembers(c.Request.Context(), filters, perPage, (page-1)*perPage)
	if err != nil {
		slog.Error("failed to list members", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list members"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"members": members,
		"pagination": gin.H{
			"page":     page,
			"per_page": perPage,
			"total":    total,
		},
	})
}

// Get returns one member together with their verification event trail.
// GET /api/v1/members/:id
func (h *MemberHandlers) Get(c *gin.Context) {
	m, ok := h.loadMember(c)
	if !ok {
		return
	}

	events, err := h.eventRepo.ListEventsByMember(c.Request.Context(), m.ID)
	if err != nil {
		slog.Error("failed to list verification events", "member_id", m.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load verification history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"member": m, "events": events})
}

type updateMemberRequest struct {
	FullName     *string `json:"fullName"`
	Email        *string `json:"email"`
	City         *string `json:"city"`
	Organization *string `json:"organization"`
	IsAnonymous  *bool   `json:"isAnonymous"`
}

// Update edits profile fields. Lifecycle fields (status, verification,
// membership number) are not editable here; they move through their own
// endpoints so the state machine stays consistent.
// PUT /api/v1/members/:id
func (h *MemberHandlers) Update(c *gin.Context) {
	m, ok := h.loadMember(c)
	if !ok {
		return
	}

	var req updateMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if req.FullName != nil {
		m.FullName = *req.FullName
	}
	if req.Email != nil {
		m.Email = *req.Email
	}
	if req.City != nil {
		m.City = *req.City
	}
	if req.Organization != nil {
		m.Organization = *req.Organization
	}
	if req.IsAnonymous != nil {
		m.IsAnonymous = *req.IsAnonymous
	}

	if err := h.memberRepo.UpdateMember(c.Request.Context(), m); err != nil {
		slog.Error("failed to update member", "member_id", m.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update member"})
		return
	}

	h.audit(c, models.ActionMemberUpdated, m.ID, nil)
	c.JSON(http.StatusOK, gin.H{"member": m})
}

// Delete removes a member and their stored evidence. Verification events go
// with the row via the foreign key cascade.
// DELETE /api/v1/members/:id
func (h *MemberHandlers) Delete(c *gin.Context) {
	m, ok := h.loadMember(c)
	if !ok {
		return
	}

	if m.EvidencePath != nil && *m.EvidencePath != "" {
		if err := h.store.Delete(c.Request.Context(), *m.EvidencePath); err != nil {
			slog.Error("failed to delete evidence file", "member_id", m.ID, "path", *m.EvidencePath, "error", err)
		}
	}

	deleted, err := h.memberRepo.DeleteMember(c.Request.Context(), m.ID)
	if err != nil {
		slog.Error("failed to delete member", "member_id", m.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete member"})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "Member not found"})
		return
	}

	h.audit(c, models.ActionMemberDeleted, m.ID, map[string]interface{}{
		"quicklook_id": m.QuicklookID,
		"full_name":    m.FullName,
	})
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

type approveRequest struct {
	Override       bool   `json:"override"`
	OverrideReason string `json:"overrideReason"`
}

// Approve activates a member, generates their documents, and emails them.
// A second approval of an active member is reported as already approved.
// POST /api/v1/members/:id/approve
func (h *MemberHandlers) Approve(c *gin.Context) {
	var req approveRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
	}

	result, err := h.approval.Approve(c.Request.Context(), c.Param("id"), adminID(c), req.Override, req.OverrideReason)
	if err != nil {
		if errors.Is(err, services.ErrMemberNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Member not found"})
			return
		}
		// Administrators see the failed step verbatim so they can decide
		// whether to retry the approval or only resend documents.
		slog.Error("approval failed", "member_id", c.Param("id"), "error", err)
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// ResendCard regenerates an active member's documents and re-sends the email.
// POST /api/v1/members/:id/resend-card
func (h *MemberHandlers) ResendCard(c *gin.Context) {
	result, err := h.approval.ResendCard(c.Request.Context(), c.Param("id"), adminID(c))
	if err != nil {
		if errors.Is(err, services.ErrMemberNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Member not found"})
			return
		}
		slog.Error("card resend failed", "member_id", c.Param("id"), "error", err)
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// SendReminder triggers one verification reminder for a member on operator
// request, under the same once-only claim as the scheduled job.
// POST /api/v1/members/:id/send-reminder
func (h *MemberHandlers) SendReminder(c *gin.Context) {
	m, ok := h.loadMember(c)
	if !ok {
		return
	}

	if err := h.reminders.RemindMember(c.Request.Context(), m); err != nil {
		if errors.Is(err, jobs.ErrAlreadyReminded) {
			c.JSON(http.StatusConflict, gin.H{"error": "Reminder was already sent to this member"})
			return
		}
		slog.Error("manual reminder failed", "member_id", m.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.audit(c, models.ActionReminderSent, m.ID, nil)
	c.JSON(http.StatusOK, gin.H{"sent": true})
}

type overrideRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// OverrideVerification sets verification_status directly to verified or
// flagged, bypassing the member's chosen channel. The reason is mandatory and
// lands in the audit trail together with the state being overridden.
// POST /api/v1/members/:id/verification
func (h *MemberHandlers) OverrideVerification(c *gin.Context) {
	m, ok := h.loadMember(c)
	if !ok {
		return
	}

	var req overrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if req.Status != models.VerificationVerified && req.Status != models.VerificationFlagged {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Status must be 'verified' or 'flagged'"})
		return
	}
	if req.Reason == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A reason is required for verification overrides"})
		return
	}

	previousStatus := m.VerificationStatus
	updated, err := h.memberRepo.OverrideVerificationStatus(c.Request.Context(), m.ID, req.Status, time.Now())
	if err != nil {
		slog.Error("verification override failed", "member_id", m.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to override verification status"})
		return
	}
	if !updated {
		c.JSON(http.StatusNotFound, gin.H{"error": "Member not found"})
		return
	}

	detail := req.Reason
	if err := h.eventRepo.CreateEvent(c.Request.Context(), &models.VerificationEvent{
		MemberID:  m.ID,
		EventType: models.EventStatusOverride,
		Detail:    &detail,
	}); err != nil {
		slog.Error("failed to record override event", "member_id", m.ID, "error", err)
	}

	method := "none"
	if m.VerificationMethod != nil {
		method = *m.VerificationMethod
	}
	telemetry.VerificationsTotal.WithLabelValues(method, req.Status).Inc()
	h.audit(c, models.ActionMethodOverridden, m.ID, map[string]interface{}{
		"previous_status": previousStatus,
		"new_status":      req.Status,
		"reason":          req.Reason,
	})

	c.JSON(http.StatusOK, gin.H{"memberId": m.ID, "verificationStatus": req.Status})
}

// loadMember resolves the :id parameter, writing the error response itself
// when the member cannot be loaded.
func (h *MemberHandlers) loadMember(c *gin.Context) (*models.Member, bool) {
	m, err := h.memberRepo.GetMemberByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		slog.Error("failed to load member", "member_id", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load member"})
		return nil, false
	}
	if m == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Member not found"})
		return nil, false
	}
	return m, true
}
