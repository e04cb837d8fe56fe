package notification

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"github.com/mamadbah2/medrefill/internal/config"
	"github.com/mamadbah2/medrefill/internal/domain/models"
)

const emailChannelName = "email"

// MailSender is the subset of the SendGrid client used for delivery.
type MailSender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// EmailChannel delivers reminders through SendGrid.
type EmailChannel struct {
	sender   MailSender
	renderer *Renderer
	from     *mail.Email
	timeout  time.Duration
	logger   *zap.Logger
}

// NewSendGridSender builds the SendGrid client for cfg.
func NewSendGridSender(cfg config.EmailConfig) *sendgrid.Client {
	return sendgrid.NewSendClient(cfg.SendGridAPIKey)
}

// NewEmailChannel wires an email channel. timeout bounds every send.
func NewEmailChannel(cfg config.EmailConfig, sender MailSender, renderer *Renderer, timeout time.Duration, logger *zap.Logger) *EmailChannel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailChannel{
		sender:   sender,
		renderer: renderer,
		from:     mail.NewEmail(cfg.FromName, cfg.FromAddress),
		timeout:  timeout,
		logger:   logger,
	}
}

// SendSingle implements Channel.
func (c *EmailChannel) SendSingle(ctx context.Context, user models.User, medicine models.Medicine) error {
	msg, err := c.renderer.Single(user, medicine)
	if err != nil {
		return &ChannelError{Channel: emailChannelName, UserID: user.ID, Err: err}
	}
	return c.send(ctx, user, msg)
}

// SendBatch implements Channel.
func (c *EmailChannel) SendBatch(ctx context.Context, user models.User, medicines []models.Medicine, mode models.DispatchMode) error {
	msg, err := c.renderer.Batch(user, medicines, mode)
	if err != nil {
		return &ChannelError{Channel: emailChannelName, UserID: user.ID, Err: err}
	}
	return c.send(ctx, user, msg)
}

func (c *EmailChannel) send(ctx context.Context, user models.User, msg Message) error {
	if user.Email == "" {
		return &ChannelError{Channel: emailChannelName, UserID: user.ID, Err: ErrNoRecipient}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	to := mail.NewEmail(user.Name, user.Email)
	message := mail.NewSingleEmail(c.from, msg.Subject, to, msg.Plain, msg.HTML)

	resp, err := c.sender.SendWithContext(ctx, message)
	if err != nil {
		return &ChannelError{Channel: emailChannelName, UserID: user.ID, Err: fmt.Errorf("send through sendgrid: %w", err)}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &ChannelError{
			Channel: emailChannelName,
			UserID:  user.ID,
			Err:     fmt.Errorf("sendgrid returned status %d: %s", resp.StatusCode, resp.Body),
		}
	}

	c.logger.Info("reminder email sent",
		zap.String("user_id", user.ID),
		zap.String("email", user.Email),
		zap.String("subject", msg.Subject))
	return nil
}
