package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/medrefill/internal/domain/models"
	"github.com/mamadbah2/medrefill/internal/domain/status"
	client "github.com/mamadbah2/medrefill/pkg/clients/whatsapp"
)

const whatsAppChannelName = "whatsapp"

// WhatsAppChannel sends a short text reminder to users who opted in with a
// phone number. Users without one are skipped.
type WhatsAppChannel struct {
	client client.Client
	loc    *time.Location
	now    func() time.Time
	logger *zap.Logger
}

// NewWhatsAppChannel wires a WhatsApp channel.
func NewWhatsAppChannel(c client.Client, loc *time.Location, logger *zap.Logger) *WhatsAppChannel {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &WhatsAppChannel{client: c, loc: loc, now: time.Now, logger: logger}
}

// SendSingle implements Channel.
func (c *WhatsAppChannel) SendSingle(ctx context.Context, user models.User, medicine models.Medicine) error {
	return c.send(ctx, user, "Medicine refill reminder", []models.Medicine{medicine})
}

// SendBatch implements Channel.
func (c *WhatsAppChannel) SendBatch(ctx context.Context, user models.User, medicines []models.Medicine, mode models.DispatchMode) error {
	title := fmt.Sprintf("%d medicines need a refill", len(medicines))
	if mode == models.DispatchWeekly {
		title = "Weekly medicine summary"
	}
	return c.send(ctx, user, title, medicines)
}

func (c *WhatsAppChannel) send(ctx context.Context, user models.User, title string, medicines []models.Medicine) error {
	if !user.WhatsAppNotificationsEnabled || user.Phone == "" {
		return nil
	}

	body := textReminder(title, medicines, status.Today(c.now(), c.loc))
	id, err := c.client.SendText(ctx, user.Phone, body)
	if err != nil {
		return &ChannelError{Channel: whatsAppChannelName, UserID: user.ID, Err: err}
	}

	c.logger.Info("reminder whatsapp sent", zap.String("user_id", user.ID), zap.String("message_id", id))
	return nil
}

func textReminder(title string, medicines []models.Medicine, today time.Time) string {
	var b strings.Builder
	b.WriteString(title)
	for _, m := range medicines {
		fmt.Fprintf(&b, "\n- %s: %d doses, %d day(s) left (%s)",
			m.Name, m.RemainingDoses(), status.DaysLeft(m.RefillDate, today), strings.ReplaceAll(string(m.Status), "_", " "))
	}
	return b.String()
}
