// auth.go implements the admin login endpoint. Admin accounts are provisioned
// directly in the database; login exchanges email and password for a session
// JWT that the rest of the admin API requires.
package admin

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/sindikatncr/membership-backend/internal/auth"
	"github.com/sindikatncr/membership-backend/internal/db/models"
	"github.com/sindikatncr/membership-backend/internal/db/repositories"
)

// AuthHandlers handles admin authentication.
type AuthHandlers struct {
	adminRepo *repositories.AdminRepository
	auditRepo *repositories.AuditRepository
	sessions  *auth.SessionService
}

// NewAuthHandlers creates an AuthHandlers instance.
func NewAuthHandlers(adminRepo *repositories.AdminRepository, auditRepo *repositories.AuditRepository, sessions *auth.SessionService) *AuthHandlers {
	return &AuthHandlers{
		adminRepo: adminRepo,
		auditRepo: auditRepo,
		sessions:  sessions,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges admin credentials for a session token. Wrong email and wrong
// password return the same response so accounts cannot be enumerated.
// POST /api/v1/auth/login
func (h *AuthHandlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and password are required"})
		return
	}

	admin, err := h.adminRepo.GetAdminByEmail(c.Request.Context(), req.Email)
	if err != nil {
		slog.Error("failed to load admin account", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
		return
	}
	if admin == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, err := h.sessions.Issue(admin.ID, admin.Email, admin.Role)
	if err != nil {
		slog.Error("failed to issue session", "admin_id", admin.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
		return
	}

	if err := h.adminRepo.TouchLastLogin(c.Request.Context(), admin.ID, time.Now()); err != nil {
		slog.Error("failed to record last login", "admin_id", admin.ID, "error", err)
	}

	ip := c.ClientIP()
	if err := h.auditRepo.CreateAuditLog(c.Request.Context(), &models.AuditLog{
		AdminID:   &admin.ID,
		Action:    models.ActionAdminLogin,
		IPAddress: &ip,
	}); err != nil {
		slog.Error("failed to write login audit entry", "admin_id", admin.ID, "error", err)
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"admin": gin.H{
			"id":    admin.ID,
			"email": admin.Email,
			"name":  admin.Name,
			"role":  admin.Role,
		},
	})
}
