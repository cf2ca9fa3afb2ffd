// Package api wires together all HTTP routes for the membership backend.
//
// Route grouping:
//   - Public routes (/api/v1/applications, /api/v1/verify, /api/v1/verification/*)
//     are unauthenticated: applicants have no account, only the
//     verification token from their email. They sit behind rate limiting, with
//     a stricter bucket on the intake endpoint.
//   - Admin routes (/api/v1/...) require an admin session token; destructive
//     operations additionally require the admin role.
//   - Cron routes (/cron/*) are bearer-secret protected and run one idempotent
//     pass of a background job, for external schedulers.
package api

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/sindikatncr/membership-backend/internal/api/admin"
	"github.com/sindikatncr/membership-backend/internal/api/applications"
	"github.com/sindikatncr/membership-backend/internal/api/cron"
	"github.com/sindikatncr/membership-backend/internal/api/verification"
	"github.com/sindikatncr/membership-backend/internal/auth"
	"github.com/sindikatncr/membership-backend/internal/config"
	"github.com/sindikatncr/membership-backend/internal/db/models"
	"github.com/sindikatncr/membership-backend/internal/db/repositories"
	"github.com/sindikatncr/membership-backend/internal/jobs"
	"github.com/sindikatncr/membership-backend/internal/mailbox"
	"github.com/sindikatncr/membership-backend/internal/mailer"
	"github.com/sindikatncr/membership-backend/internal/middleware"
	"github.com/sindikatncr/membership-backend/internal/services"
	"github.com/sindikatncr/membership-backend/internal/storage"

	// Import storage backends to register them
	_ "github.com/sindikatncr/membership-backend/internal/storage/local"
)

// BackgroundServices holds references to background jobs and resources that
// must be stopped during graceful shutdown. The caller (cmd/server) calls
// Shutdown() when the process receives a termination signal.
type BackgroundServices struct {
	scanner      *jobs.MailboxScanner
	reminders    *jobs.ReminderScheduler
	rateLimiters []*middleware.RateLimiter
}

// Shutdown stops all background goroutines. It should be called after the
// HTTP server has been shut down so in-flight requests drain first.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	if bg.scanner != nil {
		bg.scanner.Stop()
	}
	if bg.reminders != nil {
		bg.reminders.Stop()
	}
	for _, rl := range bg.rateLimiters {
		rl.Stop()
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, db *sql.DB) (*gin.Engine, *BackgroundServices) {
	router := gin.New()

	// Initialize storage backend
	storageBackend, err := storage.NewStorage(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage backend: %v", err)
	}
	log.Printf("Initialized storage backend: %s", cfg.Storage.DefaultBackend)

	// Initialize repositories
	sqlxDB := sqlx.NewDb(db, "postgres")
	memberRepo := repositories.NewMemberRepository(sqlxDB)
	adminRepo := repositories.NewAdminRepository(sqlxDB)
	eventRepo := repositories.NewVerificationEventRepository(sqlxDB)
	auditRepo := repositories.NewAuditRepository(db)

	// Core services
	tokens := auth.NewTokenService(cfg.Verification.TokenSecret, cfg.Verification.TokenTTL)
	sessions := auth.NewSessionService(cfg.Auth.SessionSecret, cfg.Auth.SessionTTL)
	mail := mailer.NewSMTPMailer(&cfg.Notifications.SMTP)
	approvalService := services.NewApprovalService(memberRepo, auditRepo, mail, &cfg.Membership, &cfg.Notifications)
	bulkNotifier := services.NewBulkNotifier(memberRepo, auditRepo, mail, &cfg.Notifications)

	// Background jobs. Both also back the /cron trigger endpoints, so they are
	// created even when their internal ticker never fires.
	scanner := jobs.NewMailboxScanner(memberRepo, eventRepo,
		mailbox.NewDialer(&cfg.Verification.Mailbox), &cfg.Verification.Mailbox, cfg.Verification.ScanInterval)
	reminders := jobs.NewReminderScheduler(memberRepo, eventRepo, tokens, mail,
		cfg.Server.BaseURL, cfg.Verification.ReminderThreshold, cfg.Verification.ReminderInterval)
	go scanner.Start(context.Background())
	go reminders.Start(context.Background())

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware(cfg))
	router.Use(CORSMiddleware(cfg))
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig()))

	// Health check endpoint
	router.GET("/health", healthCheckHandler(db))

	// Readiness check endpoint (includes storage backend probe)
	router.GET("/ready", readinessHandler(db, storageBackend))

	// API version
	router.GET("/version", versionHandler())

	// Initialize handlers
	intakeHandler := applications.NewHandler(cfg, memberRepo, tokens, mail)
	verificationHandler := verification.NewHandler(cfg, memberRepo, eventRepo, tokens, storageBackend)
	authHandlers := admin.NewAuthHandlers(adminRepo, auditRepo, sessions)
	memberHandlers := admin.NewMemberHandlers(memberRepo, eventRepo, auditRepo, approvalService, reminders, storageBackend)
	notificationHandlers := admin.NewNotificationHandlers(bulkNotifier)
	auditHandlers := admin.NewAuditHandlers(auditRepo)
	fileHandlers := admin.NewFileHandlers(storageBackend)
	cronHandler := cron.NewHandler(&cfg.Verification, scanner, reminders)

	// Initialize rate limiters
	rl := cfg.Security.RateLimiting
	authRateLimiter := middleware.NewRateLimiter(middleware.AuthRateLimitConfig())
	generalRateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimitConfig(rl.RequestsPerMinute, rl.Burst))
	intakeRateLimiter := middleware.NewRateLimiter(middleware.IntakeRateLimitConfig(rl.IntakePerMinute, rl.IntakeBurst))

	// limited applies a rate limiter only when rate limiting is enabled.
	limited := func(limiter *middleware.RateLimiter) gin.HandlerFunc {
		if !rl.Enabled {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimitMiddleware(limiter)
	}

	apiV1 := router.Group("/api/v1")
	{
		// Public intake endpoint (stricter rate limit bucket)
		apiV1.POST("/applications", limited(intakeRateLimiter), intakeHandler.Submit)

		// Public verification endpoints (token-authenticated in the handler)
		publicGroup := apiV1.Group("")
		publicGroup.Use(limited(generalRateLimiter))
		{
			publicGroup.GET("/verify", verificationHandler.VerifyLink)
			publicGroup.POST("/verification/method", verificationHandler.SelectMethod)
			publicGroup.POST("/verification/evidence", verificationHandler.UploadEvidence)
		}

		// Admin login (no session required, stricter rate limit)
		apiV1.POST("/auth/login", limited(authRateLimiter), authHandlers.Login)

		// Admin endpoints (session required)
		adminGroup := apiV1.Group("")
		adminGroup.Use(limited(generalRateLimiter))
		adminGroup.Use(middleware.AdminAuthMiddleware(sessions, adminRepo))
		{
			adminGroup.GET("/members", memberHandlers.List)
			adminGroup.GET("/members/:id", memberHandlers.Get)
			adminGroup.PUT("/members/:id", memberHandlers.Update)
			adminGroup.POST("/members/:id/approve", memberHandlers.Approve)
			adminGroup.POST("/members/:id/resend-card", memberHandlers.ResendCard)
			adminGroup.POST("/members/:id/send-reminder", memberHandlers.SendReminder)
			adminGroup.POST("/members/:id/verification", memberHandlers.OverrideVerification)

			adminGroup.POST("/notifications/bulk", notificationHandlers.SendBulk)
			adminGroup.GET("/audit-logs", auditHandlers.List)
			adminGroup.GET("/files/*filepath", fileHandlers.Serve)

			// Deletion is restricted to the admin role; operators review and
			// approve but never remove records.
			adminGroup.DELETE("/members/:id",
				middleware.RequireRole(models.RoleAdmin),
				memberHandlers.Delete)
		}
	}

	// Cron trigger endpoints for external schedulers
	cronGroup := router.Group("/cron")
	cronGroup.Use(middleware.CronAuthMiddleware(cfg.Verification.CronSecret))
	{
		cronGroup.GET("/mailbox-scan", cronHandler.MailboxScan)
		cronGroup.GET("/reminders", cronHandler.Reminders)
	}

	bg := &BackgroundServices{
		scanner:      scanner,
		reminders:    reminders,
		rateLimiters: []*middleware.RateLimiter{authRateLimiter, generalRateLimiter, intakeRateLimiter},
	}

	return router, bg
}

// healthCheckHandler returns the health status of the service
func healthCheckHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// readinessHandler returns the readiness status of the service. Unlike the
// liveness probe (/health), this also checks the storage backend so a
// readiness gate fails when evidence uploads would error.
func readinessHandler(db *sql.DB, storageBackend storage.Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := gin.H{}

		if err := db.Ping(); err != nil {
			checks["database"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "database not ready",
			})
			return
		}
		checks["database"] = "healthy"

		// Probe with a known-absent sentinel path. Exists() exercises the
		// backend without creating any state.
		if _, err := storageBackend.Exists(c.Request.Context(), ".readiness-probe"); err != nil {
			checks["storage"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "storage backend not ready",
			})
			return
		}
		checks["storage"] = "healthy"

		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// versionHandler returns the API version
func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":     "0.1.0",
			"api_version": "v1",
		})
	}
}

// LoggerMiddleware provides structured logging
func LoggerMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		requestID, _ := c.Get(middleware.RequestIDKey)
		slog.LogAttrs(
			c.Request.Context(),
			slog.LevelInfo,
			"http request",
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("query", query),
			slog.Int("status", c.Writer.Status()),
			slog.Int("size", c.Writer.Size()),
			slog.Duration("latency", latency),
			slog.String("ip", c.ClientIP()),
			slog.String("request_id", fmt.Sprintf("%v", requestID)),
			slog.String("user_agent", c.Request.UserAgent()),
		)
	}
}

// CORSMiddleware handles CORS
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		allowed := false
		for _, allowedOrigin := range cfg.Security.CORS.AllowedOrigins {
			if allowedOrigin == "*" || allowedOrigin == origin {
				allowed = true
				break
			}
		}

		if allowed {
			if origin == "" {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
			}
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Requested-With")
			c.Header("Access-Control-Max-Age", "3600")
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
