// Package notification renders reminders and delivers them to users.
package notification

import (
	"context"
	"errors"
	"fmt"

	"github.com/mamadbah2/medrefill/internal/domain/models"
)

// Channel delivers reminders. Implementations bound every call with a
// timeout and report failure through the returned error.
type Channel interface {
	SendSingle(ctx context.Context, user models.User, medicine models.Medicine) error
	SendBatch(ctx context.Context, user models.User, medicines []models.Medicine, mode models.DispatchMode) error
}

// ChannelError is a failed delivery to one user.
type ChannelError struct {
	Channel string
	UserID  string
	Err     error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("%s delivery to user %s failed: %v", e.Channel, e.UserID, e.Err)
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}

// ErrNoRecipient indicates the user has no address for the channel.
var ErrNoRecipient = errors.New("user has no recipient address")

// Multi delivers through every channel and fails if any of them fails.
type Multi []Channel

// SendSingle implements Channel.
func (m Multi) SendSingle(ctx context.Context, user models.User, medicine models.Medicine) error {
	var errs []error
	for _, ch := range m {
		if err := ch.SendSingle(ctx, user, medicine); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SendBatch implements Channel.
func (m Multi) SendBatch(ctx context.Context, user models.User, medicines []models.Medicine, mode models.DispatchMode) error {
	var errs []error
	for _, ch := range m {
		if err := ch.SendBatch(ctx, user, medicines, mode); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
