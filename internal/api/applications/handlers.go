// Package applications implements the public membership application intake
// endpoint. Persistence must be durable before the verification token is
// issued; the office notification afterwards is best-effort only.
package applications

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sindikatncr/membership-backend/internal/auth"
	"github.com/sindikatncr/membership-backend/internal/config"
	"github.com/sindikatncr/membership-backend/internal/db/models"
	"github.com/sindikatncr/membership-backend/internal/db/repositories"
	"github.com/sindikatncr/membership-backend/internal/mailer"
	"github.com/sindikatncr/membership-backend/internal/safego"
	"github.com/sindikatncr/membership-backend/internal/telemetry"
	"github.com/sindikatncr/membership-backend/internal/validation"
)

// Handler handles application intake.
type Handler struct {
	cfg        *config.Config
	memberRepo *repositories.MemberRepository
	tokens     *auth.TokenService
	mail       mailer.Mailer
}

// NewHandler creates an intake Handler.
func NewHandler(cfg *config.Config, memberRepo *repositories.MemberRepository, tokens *auth.TokenService, mail mailer.Mailer) *Handler {
	return &Handler{
		cfg:        cfg,
		memberRepo: memberRepo,
		tokens:     tokens,
		mail:       mail,
	}
}

type submitRequest struct {
	FullName     string `json:"fullName"`
	Email        string `json:"email"`
	QuicklookID  string `json:"quicklookId"`
	City         string `json:"city"`
	Organization string `json:"organization"`
	JoinConsent  bool   `json:"joinConsent"`
	GDPRConsent  bool   `json:"gdprConsent"`
	IsAnonymous  bool   `json:"isAnonymous"`
}

// Submit accepts a new membership application.
// POST /api/v1/applications
func (h *Handler) Submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		telemetry.ApplicationsRejectedTotal.WithLabelValues("validation").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := validation.ValidateApplication(&validation.Application{
		FullName:     req.FullName,
		Email:        req.Email,
		QuicklookID:  req.QuicklookID,
		City:         req.City,
		Organization: req.Organization,
		JoinConsent:  req.JoinConsent,
		GDPRConsent:  req.GDPRConsent,
	}); err != nil {
		telemetry.ApplicationsRejectedTotal.WithLabelValues("validation").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	existing, err := h.memberRepo.FindVerifyingByQuicklookID(c.Request.Context(), req.QuicklookID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check existing applications"})
		return
	}
	if existing != nil {
		telemetry.ApplicationsRejectedTotal.WithLabelValues("duplicate").Inc()
		c.JSON(http.StatusConflict, gin.H{
			"error": "An application with this quicklook id is already being verified",
		})
		return
	}

	m := &models.Member{
		QuicklookID:        req.QuicklookID,
		FullName:           req.FullName,
		Email:              req.Email,
		City:               req.City,
		Organization:       req.Organization,
		Status:             models.StatusPending,
		VerificationStatus: models.VerificationPending,
		IsAnonymous:        req.IsAnonymous,
	}
	if err := h.memberRepo.CreateMember(c.Request.Context(), m); err != nil {
		slog.Error("failed to create member", "quicklook_id", req.QuicklookID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save application"})
		return
	}

	token, err := h.tokens.Issue(m.ID, m.QuicklookID)
	if err != nil {
		slog.Error("failed to issue verification token", "member_id", m.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to issue verification token"})
		return
	}

	telemetry.ApplicationsSubmittedTotal.Inc()
	slog.Info("application submitted", "member_id", m.ID, "quicklook_id", m.QuicklookID)

	h.notifyOffice(m)

	c.JSON(http.StatusOK, gin.H{
		"memberId": m.ID,
		"token":    token,
	})
}

// notifyOffice sends a new-application notice to the office mailbox. Failures
// are logged and never fail the submission.
func (h *Handler) notifyOffice(m *models.Member) {
	if !h.cfg.Notifications.Enabled || h.cfg.Notifications.OfficeEmail == "" {
		return
	}

	msg := &mailer.Message{
		To:      []string{h.cfg.Notifications.OfficeEmail},
		Subject: fmt.Sprintf("Nova pristupnica: %s", m.FullName),
		Body: fmt.Sprintf(
			"Primljena je nova pristupnica.\r\n\r\n"+
				"Ime i prezime: %s\r\nEmail: %s\r\nQuicklook ID: %s\r\nMesto: %s\r\nOrganizacija: %s\r\n",
			m.FullName, m.Email, m.QuicklookID, m.City, m.Organization),
	}
	safego.Go(func() {
		if err := h.mail.Send(context.Background(), msg); err != nil {
			slog.Error("failed to send office notification", "member_id", m.ID, "error", err)
		}
	})
}
