package reminders

import (
	"context"
	"fmt"
	"time"

	"github.com/mamadbah2/medrefill/internal/domain/models"
	"github.com/mamadbah2/medrefill/internal/domain/status"
)

// DueFinder queries medicines whose refill date lies in [from, to] with
// reminders enabled on the medicine and its owner.
type DueFinder interface {
	FindDue(ctx context.Context, from, to time.Time) ([]models.DueMedicine, error)
}

// Selector picks the medicines a dispatch run should remind about.
type Selector struct {
	store DueFinder
}

// NewSelector builds a selector over store.
func NewSelector(store DueFinder) *Selector {
	return &Selector{store: store}
}

// SelectDue returns medicines with a refill date in [asOf, asOf+horizonDays],
// both ends inclusive, whose medicine and owner have reminders enabled.
func (s *Selector) SelectDue(ctx context.Context, asOf time.Time, horizonDays int) ([]models.DueMedicine, error) {
	from := status.Date(asOf)
	to := from.AddDate(0, 0, horizonDays)

	rows, err := s.store.FindDue(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("find due medicines: %w", err)
	}

	due := rows[:0]
	for _, row := range rows {
		if isDue(row, from, to) {
			due = append(due, row)
		}
	}
	return due, nil
}

func isDue(row models.DueMedicine, from, to time.Time) bool {
	if !row.Medicine.NotificationsEnabled || !row.Owner.EmailNotificationsEnabled {
		return false
	}
	refill := status.Date(row.Medicine.RefillDate)
	return !refill.Before(from) && !refill.After(to)
}
