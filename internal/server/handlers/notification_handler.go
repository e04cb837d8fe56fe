package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/medrefill/internal/domain/models"
	"github.com/mamadbah2/medrefill/internal/service/reminders"
)

// ReminderService is the reminder surface the HTTP layer depends on.
type ReminderService interface {
	TriggerReminderCheck(ctx context.Context) (models.DispatchReport, error)
	SendImmediateReminder(ctx context.Context, userID, medicineID string) error
	Status() reminders.ScheduleStatus
	History(ctx context.Context) ([]models.DispatchReport, error)
}

// NotificationHandler serves /api/notifications.
type NotificationHandler struct {
	svc    ReminderService
	logger *zap.Logger
}

// NewNotificationHandler constructs the notification HTTP handler.
func NewNotificationHandler(svc ReminderService, logger *zap.Logger) *NotificationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationHandler{svc: svc, logger: logger}
}

// TriggerReminderCheck runs the daily dispatch immediately.
func (h *NotificationHandler) TriggerReminderCheck(c *gin.Context) {
	report, err := h.svc.TriggerReminderCheck(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Reminder check triggered successfully", "report": report})
}

// SendImmediateReminder sends a reminder for one of the caller's medicines.
func (h *NotificationHandler) SendImmediateReminder(c *gin.Context) {
	err := h.svc.SendImmediateReminder(c.Request.Context(), currentUserID(c), c.Param("medicineId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Reminder sent successfully"})
}

// Status describes the reminder schedule.
func (h *NotificationHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Status())
}

// History lists recent dispatch reports.
func (h *NotificationHandler) History(c *gin.Context) {
	reports, err := h.svc.History(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, reports)
}
