// notifications.go implements the bulk notification endpoint. Delivery is
// strictly sequential with a fixed pause between messages; the handler simply
// reports the aggregate outcome.
package admin

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sindikatncr/membership-backend/internal/services"
)

// NotificationHandlers handles admin bulk notifications.
type NotificationHandlers struct {
	notifier *services.BulkNotifier
}

// NewNotificationHandlers creates a NotificationHandlers instance.
func NewNotificationHandlers(notifier *services.BulkNotifier) *NotificationHandlers {
	return &NotificationHandlers{notifier: notifier}
}

type bulkSendRequest struct {
	MemberIDs []string `json:"memberIds"`
	Subject   string   `json:"subject"`
	Message   string   `json:"message"`
}

// SendBulk sends a templated message to a set of members.
// POST /api/v1/notifications/bulk
func (h *NotificationHandlers) SendBulk(c *gin.Context) {
	var req bulkSendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if len(req.MemberIDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "At least one member id is required"})
		return
	}
	if req.Subject == "" || req.Message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Subject and message are required"})
		return
	}

	result, err := h.notifier.SendBulk(c.Request.Context(), req.MemberIDs, req.Subject, req.Message, adminID(c))
	if err != nil {
		// Cancellation mid-batch still reports the partial outcome.
		if result != nil && (errors.Is(err, c.Request.Context().Err()) || result.Sent > 0 || result.Failed > 0) {
			slog.Warn("bulk send interrupted", "sent", result.Sent, "failed", result.Failed, "error", err)
			c.JSON(http.StatusOK, result)
			return
		}
		slog.Error("bulk send failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Bulk send failed"})
		return
	}

	c.JSON(http.StatusOK, result)
}
