package models

import "time"

// MedicineStatus is the urgency tier derived from the days of supply left.
type MedicineStatus string

const (
	StatusOK           MedicineStatus = "OK"
	StatusLow          MedicineStatus = "LOW"
	StatusRefillNeeded MedicineStatus = "REFILL_NEEDED"
)

// DefaultLowStockThreshold is the number of days of supply under which a
// medicine is considered LOW.
const DefaultLowStockThreshold = 5

// ParseMedicineStatus maps the wire representation to a MedicineStatus.
func ParseMedicineStatus(value string) (MedicineStatus, bool) {
	switch MedicineStatus(value) {
	case StatusOK, StatusLow, StatusRefillNeeded:
		return MedicineStatus(value), true
	default:
		return "", false
	}
}

// Medicine is a tracked medication and its remaining supply.
//
// RefillDate and Status are derived fields. They are only written by the
// status package and must be recomputed after any change to DosagePerDay,
// CurrentQuantity or LowStockThreshold.
type Medicine struct {
	ID                   string         `bson:"_id" json:"id"`
	OwnerID              string         `bson:"owner_id" json:"ownerId"`
	Name                 string         `bson:"name" json:"medicineName"`
	DosagePerDay         int            `bson:"dosage_per_day" json:"dosagePerDay"`
	TotalQuantity        int            `bson:"total_quantity" json:"totalQuantity"`
	CurrentQuantity      *int           `bson:"current_quantity,omitempty" json:"currentQuantity"`
	StartDate            time.Time      `bson:"start_date" json:"startDate"`
	LowStockThreshold    int            `bson:"low_stock_threshold" json:"lowStockThreshold"`
	NotificationsEnabled bool           `bson:"notifications_enabled" json:"notificationsEnabled"`
	RefillDate           time.Time      `bson:"refill_date" json:"refillDate"`
	Status               MedicineStatus `bson:"status" json:"status"`
	Version              int64          `bson:"version" json:"-"`
	CreatedAt            time.Time      `bson:"created_at" json:"createdAt"`
	UpdatedAt            time.Time      `bson:"updated_at" json:"updatedAt"`
}

// RemainingDoses reports the current quantity, treating an unset quantity as zero.
func (m Medicine) RemainingDoses() int {
	if m.CurrentQuantity == nil {
		return 0
	}
	return *m.CurrentQuantity
}

// MedicineInput is the payload accepted when creating or editing a medicine.
type MedicineInput struct {
	Name                 string    `json:"medicineName" validate:"required,notblank"`
	DosagePerDay         int       `json:"dosagePerDay" validate:"required,gt=0"`
	TotalQuantity        int       `json:"totalQuantity" validate:"required,gt=0"`
	StartDate            time.Time `json:"startDate" validate:"required"`
	CurrentQuantity      *int      `json:"currentQuantity,omitempty" validate:"omitempty,gte=0"`
	NotificationsEnabled *bool     `json:"notificationsEnabled,omitempty"`
	LowStockThreshold    *int      `json:"lowStockThreshold,omitempty" validate:"omitempty,gte=0"`
}

// DashboardSummary aggregates a user's medicines by status.
type DashboardSummary struct {
	TotalMedicines  int        `json:"totalMedicines"`
	RefillNeeded    int64      `json:"refillNeeded"`
	LowStock        int64      `json:"lowStock"`
	OK              int64      `json:"ok"`
	RecentMedicines []Medicine `json:"recentMedicines"`
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}
