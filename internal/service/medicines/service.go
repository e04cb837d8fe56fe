package medicines

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mamadbah2/medrefill/internal/domain/models"
	"github.com/mamadbah2/medrefill/internal/domain/status"
)

const (
	maxSaveAttempts = 3
	recentLimit     = 5
)

// Repository persists medicines. SaveMedicine must reject stale versions
// with models.ErrVersionConflict.
type Repository interface {
	SaveMedicine(ctx context.Context, m *models.Medicine) error
	FindMedicineByID(ctx context.Context, id string) (models.Medicine, error)
	FindMedicinesByOwner(ctx context.Context, ownerID string) ([]models.Medicine, error)
	FindMedicinesByOwnerAndStatus(ctx context.Context, ownerID string, status models.MedicineStatus) ([]models.Medicine, error)
	CountMedicinesByStatus(ctx context.Context, ownerID string) (map[models.MedicineStatus]int64, error)
	DeleteMedicine(ctx context.Context, id, ownerID string) error
}

// Service manages a user's medicines and keeps their derived fields current.
type Service struct {
	repo     Repository
	validate *validator.Validate
	loc      *time.Location
	now      func() time.Time
	newID    func() string
	logger   *zap.Logger
}

// NewService constructs the medicine service. Calendar dates are taken in loc.
func NewService(repo Repository, loc *time.Location, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}

	return &Service{
		repo:     repo,
		validate: newValidator(),
		loc:      loc,
		now:      time.Now,
		newID:    uuid.NewString,
		logger:   logger,
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	return v
}

// Create validates input and stores a new medicine owned by ownerID.
func (s *Service) Create(ctx context.Context, ownerID string, input models.MedicineInput) (models.Medicine, error) {
	if err := s.validateInput(input); err != nil {
		return models.Medicine{}, err
	}

	now := s.now().UTC()
	m := models.Medicine{
		ID:                   s.newID(),
		OwnerID:              ownerID,
		CurrentQuantity:      models.IntPtr(input.TotalQuantity),
		LowStockThreshold:    models.DefaultLowStockThreshold,
		NotificationsEnabled: true,
		CreatedAt:            now,
	}
	applyInput(&m, input)

	if err := s.persist(ctx, &m); err != nil {
		return models.Medicine{}, err
	}

	s.logger.Info("medicine created",
		zap.String("medicine_id", m.ID),
		zap.String("owner_id", ownerID),
		zap.String("status", string(m.Status)))
	return m, nil
}

// Get returns the medicine if ownerID owns it.
func (s *Service) Get(ctx context.Context, ownerID, id string) (models.Medicine, error) {
	return s.load(ctx, ownerID, id)
}

// List returns the owner's medicines by refill date ascending.
func (s *Service) List(ctx context.Context, ownerID string) ([]models.Medicine, error) {
	medicines, err := s.repo.FindMedicinesByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list medicines: %w", err)
	}
	return medicines, nil
}

// ListByStatus returns the owner's medicines with the given status.
func (s *Service) ListByStatus(ctx context.Context, ownerID string, st models.MedicineStatus) ([]models.Medicine, error) {
	medicines, err := s.repo.FindMedicinesByOwnerAndStatus(ctx, ownerID, st)
	if err != nil {
		return nil, fmt.Errorf("list medicines by status %s: %w", st, err)
	}
	return medicines, nil
}

// Update replaces the editable fields of a medicine. Optional fields left
// unset in input keep their stored value.
func (s *Service) Update(ctx context.Context, ownerID, id string, input models.MedicineInput) (models.Medicine, error) {
	if err := s.validateInput(input); err != nil {
		return models.Medicine{}, err
	}
	return s.mutate(ctx, ownerID, id, "update", func(m *models.Medicine) error {
		applyInput(m, input)
		return nil
	})
}

// Delete removes the medicine if ownerID owns it.
func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	if err := s.repo.DeleteMedicine(ctx, id, ownerID); err != nil {
		return err
	}
	s.logger.Info("medicine deleted", zap.String("medicine_id", id), zap.String("owner_id", ownerID))
	return nil
}

// TakeDose consumes one unit. At zero the quantity is left as is.
func (s *Service) TakeDose(ctx context.Context, ownerID, id string) (models.Medicine, error) {
	return s.mutate(ctx, ownerID, id, "take dose", func(m *models.Medicine) error {
		return status.TakeDose(m, s.today())
	})
}

// Refill adds quantity units and resets the total to the new current quantity.
func (s *Service) Refill(ctx context.Context, ownerID, id string, quantity int) (models.Medicine, error) {
	if quantity <= 0 {
		return models.Medicine{}, models.NewValidationError("quantity", "must be greater than 0")
	}
	return s.mutate(ctx, ownerID, id, "refill", func(m *models.Medicine) error {
		return status.Refill(m, quantity, s.today())
	})
}

// DashboardSummary counts the owner's medicines by status and returns the
// first few by refill date.
func (s *Service) DashboardSummary(ctx context.Context, ownerID string) (models.DashboardSummary, error) {
	medicines, err := s.List(ctx, ownerID)
	if err != nil {
		return models.DashboardSummary{}, err
	}

	counts, err := s.repo.CountMedicinesByStatus(ctx, ownerID)
	if err != nil {
		return models.DashboardSummary{}, fmt.Errorf("count medicines by status: %w", err)
	}

	recent := medicines
	if len(recent) > recentLimit {
		recent = recent[:recentLimit]
	}

	return models.DashboardSummary{
		TotalMedicines:  len(medicines),
		RefillNeeded:    counts[models.StatusRefillNeeded],
		LowStock:        counts[models.StatusLow],
		OK:              counts[models.StatusOK],
		RecentMedicines: recent,
	}, nil
}

// Today returns the current calendar date in the service's timezone.
func (s *Service) Today() time.Time {
	return s.today()
}

func (s *Service) today() time.Time {
	return status.Today(s.now(), s.loc)
}

func (s *Service) load(ctx context.Context, ownerID, id string) (models.Medicine, error) {
	m, err := s.repo.FindMedicineByID(ctx, id)
	if err != nil {
		return models.Medicine{}, err
	}
	if m.OwnerID != ownerID {
		return models.Medicine{}, models.ErrNotFound
	}
	return m, nil
}

// mutate reloads and reapplies fn when the record changed underneath us.
func (s *Service) mutate(ctx context.Context, ownerID, id, op string, fn func(*models.Medicine) error) (models.Medicine, error) {
	var lastErr error
	for attempt := 1; attempt <= maxSaveAttempts; attempt++ {
		m, err := s.load(ctx, ownerID, id)
		if err != nil {
			return models.Medicine{}, err
		}
		if err := fn(&m); err != nil {
			return models.Medicine{}, fmt.Errorf("%s medicine %s: %w", op, id, err)
		}

		err = s.persist(ctx, &m)
		if err == nil {
			return m, nil
		}
		if !errors.Is(err, models.ErrVersionConflict) {
			return models.Medicine{}, err
		}

		lastErr = err
		s.logger.Debug("medicine changed concurrently, retrying",
			zap.String("medicine_id", id),
			zap.String("op", op),
			zap.Int("attempt", attempt))
	}
	return models.Medicine{}, fmt.Errorf("%s medicine %s: %w", op, id, lastErr)
}

func (s *Service) persist(ctx context.Context, m *models.Medicine) error {
	if err := status.Apply(m, s.today()); err != nil {
		return err
	}
	m.UpdatedAt = s.now().UTC()
	if err := s.repo.SaveMedicine(ctx, m); err != nil {
		return fmt.Errorf("save medicine %s: %w", m.ID, err)
	}
	return nil
}

func applyInput(m *models.Medicine, input models.MedicineInput) {
	m.Name = strings.TrimSpace(input.Name)
	m.DosagePerDay = input.DosagePerDay
	m.TotalQuantity = input.TotalQuantity
	m.StartDate = status.Date(input.StartDate)
	if input.CurrentQuantity != nil {
		m.CurrentQuantity = models.IntPtr(*input.CurrentQuantity)
	}
	if input.NotificationsEnabled != nil {
		m.NotificationsEnabled = *input.NotificationsEnabled
	}
	if input.LowStockThreshold != nil {
		m.LowStockThreshold = *input.LowStockThreshold
	}
}

func (s *Service) validateInput(input models.MedicineInput) error {
	err := s.validate.Struct(input)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate medicine: %w", err)
	}

	verr := &models.ValidationError{}
	for _, fe := range fieldErrs {
		verr.Fields = append(verr.Fields, models.FieldError{Field: fe.Field(), Message: describe(fe)})
	}
	return verr
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	default:
		return "is invalid"
	}
}
