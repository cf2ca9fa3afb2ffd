// Package middleware provides Gin HTTP middleware for authentication,
// rate limiting, security headers, request ids, and metrics.
//
// Middleware ordering matters and is enforced in router.go:
//
//	Recovery, RequestID, Metrics, Logger, CORS, Security, then per-group
//	RateLimit and Auth ahead of the handler.
//
// Rate limiting runs before auth to block brute-force attacks before any DB work.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sindikatncr/membership-backend/internal/auth"
	"github.com/sindikatncr/membership-backend/internal/db/repositories"
)

// Context keys populated by AdminAuthMiddleware.
const (
	AdminKey      = "admin"
	AdminIDKey    = "admin_id"
	AdminRoleKey  = "admin_role"
	AdminEmailKey = "admin_email"
)

// AdminAuthMiddleware validates the admin session bearer token and loads the
// account behind it. Deleted accounts are rejected even while their session
// token is still cryptographically valid.
func AdminAuthMiddleware(sessions *auth.SessionService, adminRepo *repositories.AdminRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing or malformed authorization header",
			})
			return
		}

		claims, err := sessions.Validate(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid credentials",
			})
			return
		}

		admin, err := adminRepo.GetAdminByID(c.Request.Context(), claims.AdminID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to load admin account",
			})
			return
		}
		if admin == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Account not found",
			})
			return
		}

		c.Set(AdminKey, admin)
		c.Set(AdminIDKey, admin.ID)
		c.Set(AdminRoleKey, admin.Role)
		c.Set(AdminEmailKey, admin.Email)

		c.Next()
	}
}

// RequireRole aborts with 403 unless the authenticated admin holds one of the
// given roles. Must run after AdminAuthMiddleware.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(c *gin.Context) {
		role := c.GetString(AdminRoleKey)
		if !allowed[role] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Insufficient role",
			})
			return
		}
		c.Next()
	}
}

// bearerToken extracts a non-empty bearer token from the Authorization header.
func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}
