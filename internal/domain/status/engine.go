// Package status derives a medicine's refill date and urgency tier.
//
// Every function takes "today" explicitly; nothing here reads the clock.
// Dates are civil dates stored as midnight UTC.
package status

import (
	"errors"
	"fmt"
	"time"

	"github.com/mamadbah2/medrefill/internal/domain/models"
)

// ErrInvalidDosage is returned when a medicine with supply left has a
// non-positive daily dosage. Input validation should make this unreachable.
var ErrInvalidDosage = errors.New("dosage per day must be positive")

// Snapshot holds the inputs of a recomputation.
type Snapshot struct {
	CurrentQuantity   *int
	DosagePerDay      int
	LowStockThreshold int
}

// Derived holds the outputs of a recomputation.
type Derived struct {
	RefillDate time.Time
	Status     models.MedicineStatus
}

// SnapshotOf extracts the recomputation inputs of m.
func SnapshotOf(m models.Medicine) Snapshot {
	return Snapshot{
		CurrentQuantity:   m.CurrentQuantity,
		DosagePerDay:      m.DosagePerDay,
		LowStockThreshold: m.LowStockThreshold,
	}
}

// Recompute derives the refill date and status for s as of today.
func Recompute(s Snapshot, today time.Time) (Derived, error) {
	today = Date(today)

	if s.CurrentQuantity == nil || *s.CurrentQuantity <= 0 {
		return Derived{RefillDate: today, Status: models.StatusRefillNeeded}, nil
	}

	if s.DosagePerDay <= 0 {
		return Derived{}, fmt.Errorf("%w: got %d", ErrInvalidDosage, s.DosagePerDay)
	}

	daysUntilEmpty := *s.CurrentQuantity / s.DosagePerDay
	refillDate := today.AddDate(0, 0, daysUntilEmpty)

	daysLeft := DaysBetween(today, refillDate)

	var tier models.MedicineStatus
	switch {
	case daysLeft <= 0:
		tier = models.StatusRefillNeeded
	case daysLeft <= s.LowStockThreshold:
		tier = models.StatusLow
	default:
		tier = models.StatusOK
	}

	return Derived{RefillDate: refillDate, Status: tier}, nil
}

// Apply recomputes m in place.
func Apply(m *models.Medicine, today time.Time) error {
	derived, err := Recompute(SnapshotOf(*m), today)
	if err != nil {
		return fmt.Errorf("recompute medicine %s: %w", m.ID, err)
	}
	m.RefillDate = derived.RefillDate
	m.Status = derived.Status
	return nil
}

// TakeDose consumes one unit of m and recomputes. At zero it leaves the
// quantity untouched.
func TakeDose(m *models.Medicine, today time.Time) error {
	if m.CurrentQuantity != nil && *m.CurrentQuantity > 0 {
		m.CurrentQuantity = models.IntPtr(*m.CurrentQuantity - 1)
	}
	return Apply(m, today)
}

// Refill adds quantity to m, resets the total to the new current quantity
// and recomputes.
func Refill(m *models.Medicine, quantity int, today time.Time) error {
	current := quantity
	if m.CurrentQuantity != nil {
		current += *m.CurrentQuantity
	}
	m.CurrentQuantity = models.IntPtr(current)
	m.TotalQuantity = current
	return Apply(m, today)
}

// DaysLeft returns the whole days from today until refillDate, never negative.
func DaysLeft(refillDate, today time.Time) int {
	if refillDate.IsZero() {
		return 0
	}
	days := DaysBetween(Date(today), Date(refillDate))
	if days < 0 {
		return 0
	}
	return days
}

// DaysBetween returns the signed number of calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(Date(b).Sub(Date(a)).Hours() / 24)
}

// Date truncates t to its calendar date as midnight UTC.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today returns the calendar date of now in loc as midnight UTC.
func Today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return Date(now.In(loc))
}
