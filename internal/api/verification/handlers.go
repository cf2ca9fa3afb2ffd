// Package verification implements the member-facing verification endpoints:
// the emailed verify link, verification method selection, and badge evidence
// upload. Every endpoint authenticates with the verification token issued at
// intake; there is no member session.
package verification

import (
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sindikatncr/membership-backend/internal/auth"
	"github.com/sindikatncr/membership-backend/internal/config"
	"github.com/sindikatncr/membership-backend/internal/db/models"
	"github.com/sindikatncr/membership-backend/internal/db/repositories"
	"github.com/sindikatncr/membership-backend/internal/storage"
	"github.com/sindikatncr/membership-backend/internal/validation"
)

// Handler handles the verification token endpoints.
type Handler struct {
	cfg        *config.Config
	memberRepo *repositories.MemberRepository
	eventRepo  *repositories.VerificationEventRepository
	tokens     *auth.TokenService
	store      storage.Storage
}

// NewHandler creates a verification Handler.
func NewHandler(
	cfg *config.Config,
	memberRepo *repositories.MemberRepository,
	eventRepo *repositories.VerificationEventRepository,
	tokens *auth.TokenService,
	store storage.Storage,
) *Handler {
	return &Handler{
		cfg:        cfg,
		memberRepo: memberRepo,
		eventRepo:  eventRepo,
		tokens:     tokens,
		store:      store,
	}
}

// redirect sends the browser to a frontend path with optional query string.
func (h *Handler) redirect(c *gin.Context, path string) {
	c.Redirect(http.StatusFound, h.cfg.Server.FrontendURL+path)
}

// VerifyLink validates the emailed verification link and redirects to the
// method selection view, or back to the application form with an error code.
// GET /api/v1/verify?token=...
func (h *Handler) VerifyLink(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		h.redirect(c, "/apply?error=missing_token")
		return
	}

	claims, err := h.tokens.Verify(token)
	if err != nil {
		h.redirect(c, "/apply?error=invalid_token")
		return
	}

	m, err := h.memberRepo.GetMemberByID(c.Request.Context(), claims.MemberID)
	if err != nil {
		slog.Error("failed to load member for verify link", "member_id", claims.MemberID, "error", err)
		h.redirect(c, "/apply?error=server_error")
		return
	}
	if m == nil || m.QuicklookID != claims.QuicklookID {
		h.redirect(c, "/apply?error=invalid_token")
		return
	}
	if m.VerificationComplete() {
		h.redirect(c, "/verification/done")
		return
	}

	h.redirect(c, "/verification/method?token="+token)
}

type selectMethodRequest struct {
	Token  string `json:"token"`
	Method string `json:"method"`
}

// SelectMethod records the member's chosen verification channel. Re-selection
// overwrites the previous choice.
// POST /api/v1/verification/method
func (h *Handler) SelectMethod(c *gin.Context) {
	var req selectMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	claims, err := h.tokens.Verify(req.Token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		return
	}
	if !models.ValidMethod(req.Method) {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Unknown verification method %q", req.Method)})
		return
	}

	selected, err := h.memberRepo.SelectVerificationMethod(c.Request.Context(), claims.MemberID, req.Method, time.Now())
	if err != nil {
		slog.Error("failed to select verification method", "member_id", claims.MemberID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save method selection"})
		return
	}
	if !selected {
		c.JSON(http.StatusConflict, gin.H{"error": "Member is no longer awaiting verification"})
		return
	}

	detail := req.Method
	if err := h.eventRepo.CreateEvent(c.Request.Context(), &models.VerificationEvent{
		MemberID:  claims.MemberID,
		EventType: models.EventMethodSelected,
		Detail:    &detail,
	}); err != nil {
		slog.Error("failed to record method selection event", "member_id", claims.MemberID, "error", err)
	}

	slog.Info("verification method selected", "member_id", claims.MemberID, "method", req.Method)
	c.JSON(http.StatusOK, gin.H{"memberId": claims.MemberID, "method": req.Method})
}

// UploadEvidence accepts a badge photo for the badge verification method. The
// upload records evidence only; an administrator confirms it out of band.
// POST /api/v1/verification/evidence (multipart: token, file)
func (h *Handler) UploadEvidence(c *gin.Context) {
	token := c.PostForm("token")
	claims, err := h.tokens.Verify(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		return
	}

	m, err := h.memberRepo.GetMemberByID(c.Request.Context(), claims.MemberID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load member"})
		return
	}
	if m == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing evidence file"})
		return
	}

	contentType := file.Header.Get("Content-Type")
	if err := validation.ValidateEvidenceFile(file.Filename, contentType, file.Size); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read evidence file"})
		return
	}
	defer src.Close()

	path := fmt.Sprintf("evidence/%s/%s", m.ID, filepath.Base(file.Filename))
	result, err := h.store.Upload(c.Request.Context(), path, src, file.Size)
	if err != nil {
		slog.Error("failed to store evidence", "member_id", m.ID, "path", path, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store evidence file"})
		return
	}

	if err := h.memberRepo.SetEvidencePath(c.Request.Context(), m.ID, result.Path); err != nil {
		slog.Error("failed to record evidence path", "member_id", m.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save evidence reference"})
		return
	}

	if err := h.eventRepo.CreateEvent(c.Request.Context(), &models.VerificationEvent{
		MemberID:  m.ID,
		EventType: models.EventEvidenceStored,
		Detail:    &result.Path,
	}); err != nil {
		slog.Error("failed to record evidence event", "member_id", m.ID, "error", err)
	}

	slog.Info("evidence stored", "member_id", m.ID, "path", result.Path, "checksum", result.Checksum)
	c.JSON(http.StatusOK, gin.H{"path": result.Path})
}
