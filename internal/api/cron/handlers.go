// Package cron exposes the background jobs to external schedulers. The routes
// sit behind a shared bearer secret and simply run one pass of the job,
// returning its counts; every run is idempotent, so an in-process ticker and
// an external scheduler can coexist.
package cron

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sindikatncr/membership-backend/internal/config"
	"github.com/sindikatncr/membership-backend/internal/jobs"
)

// Handler handles the cron trigger endpoints.
type Handler struct {
	cfg       *config.VerificationConfig
	scanner   *jobs.MailboxScanner
	reminders *jobs.ReminderScheduler
}

// NewHandler creates a cron Handler.
func NewHandler(cfg *config.VerificationConfig, scanner *jobs.MailboxScanner, reminders *jobs.ReminderScheduler) *Handler {
	return &Handler{
		cfg:       cfg,
		scanner:   scanner,
		reminders: reminders,
	}
}

// MailboxScan runs one verification mailbox scan.
// GET /cron/mailbox-scan
func (h *Handler) MailboxScan(c *gin.Context) {
	if !h.cfg.Mailbox.Enabled {
		c.JSON(http.StatusOK, gin.H{"disabled": true})
		return
	}

	result, err := h.scanner.Scan(c.Request.Context())
	if err != nil {
		slog.Error("cron mailbox scan failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// Reminders runs one reminder pass.
// GET /cron/reminders
func (h *Handler) Reminders(c *gin.Context) {
	result, err := h.reminders.Run(c.Request.Context())
	if err != nil {
		slog.Error("cron reminder run failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}
